// Package server exposes workbooks over HTTP. each workbook is loaded from a
// store into its own model; requests against one workbook are serialized,
// different workbooks are served concurrently.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
	"github.com/vogtb/go-spreadsheet/packages/store"
)

// Server holds the open workbooks
type Server struct {
	store     store.Store
	logger    *slog.Logger
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	modelOpts []spreadsheet.Option
	newID     func() string

	mu       sync.Mutex
	sessions map[string]*session
}

// session is one open workbook. mu guards the model, which is not safe for
// concurrent use. a nil model is a workbook that was deleted or failed to
// save while the session was shared.
type session struct {
	mu    sync.Mutex
	model *spreadsheet.Model
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRegistry registers the server and model metrics on reg and serves
// them at /metrics
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// WithModelOptions are passed to every model the server opens
func WithModelOptions(opts ...spreadsheet.Option) Option {
	return func(s *Server) {
		s.modelOpts = append(s.modelOpts, opts...)
	}
}

// WithIDGenerator replaces the uuid ids given to created workbooks
func WithIDGenerator(newID func() string) Option {
	return func(s *Server) {
		s.newID = newID
	}
}

func New(st store.Store, opts ...Option) *Server {
	s := &Server{
		store:    st,
		logger:   slog.Default(),
		newID:    uuid.NewString,
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	s.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sheetctl_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	if err := s.registry.Register(s.requests); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			s.requests = already.ExistingCollector.(*prometheus.CounterVec)
		}
	}
	s.modelOpts = append([]spreadsheet.Option{
		spreadsheet.WithLogger(s.logger),
		spreadsheet.WithMetrics(spreadsheet.NewMetrics(s.registry)),
	}, s.modelOpts...)
	return s
}

// Handler returns the routes
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/workbooks", func(r chi.Router) {
		r.Get("/", s.listWorkbooks)
		r.Post("/", s.createWorkbook)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getWorkbook)
			r.Put("/", s.putWorkbook)
			r.Delete("/", s.deleteWorkbook)
			r.Post("/commands", s.dispatch)
			r.Get("/sheets", s.listSheets)
			r.Get("/sheets/{sheet}/cells/{xc}", s.getCell)
			r.Get("/xlsx", s.exportXLSX)
		})
	})
	return r
}

// instrument counts requests and logs them at info
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		s.logger.Info("request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// open returns the session of workbook id, loading it from the store on
// first use. the store is read without holding the session map.
func (s *Server) open(ctx context.Context, id string) (*session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if ok {
		return sess, nil
	}
	data, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	model, err := spreadsheet.NewModel(data, s.modelOpts...)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// a concurrent request may have opened it meanwhile
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}
	sess = &session{model: model}
	s.sessions[id] = sess
	return sess, nil
}

// replace installs a fresh model for id and persists it. the session keeps
// its lock across the save and the swap so an in-flight dispatch cannot
// save the old model over the new one.
func (s *Server) replace(ctx context.Context, id string, data *spreadsheet.WorkbookData) error {
	model, err := spreadsheet.NewModel(data, s.modelOpts...)
	if err != nil {
		return err
	}
	s.mu.Lock()
	sess, existed := s.sessions[id]
	if !existed {
		sess = &session{}
		s.sessions[id] = sess
	}
	s.mu.Unlock()

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := s.store.Save(ctx, id, model.Export()); err != nil {
		if !existed {
			s.drop(id, sess)
		}
		return err
	}
	sess.model = model
	return nil
}

// remove deletes workbook id. a request still holding the old session sees
// it as gone.
func (s *Server) remove(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		sess.model = nil
	}
	return s.store.Delete(ctx, id)
}

// drop unmaps sess unless another one took its place
func (s *Server) drop(id string, sess *session) {
	s.mu.Lock()
	if s.sessions[id] == sess {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
}
