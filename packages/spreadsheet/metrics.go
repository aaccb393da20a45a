package spreadsheet

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the prometheus collectors of a model. a nil *Metrics records
// nothing.
type Metrics struct {
	commands       *prometheus.CounterVec
	dispatchTime   *prometheus.HistogramVec
	evaluatedCells prometheus.Counter
	asyncResults   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg. collectors
// already registered by another model are shared.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spreadsheet_commands_total",
			Help: "Dispatched commands by type and status.",
		}, []string{"type", "status"}),
		dispatchTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spreadsheet_dispatch_duration_seconds",
			Help:    "Time spent dispatching a top-level command, evaluation included.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"type"}),
		evaluatedCells: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spreadsheet_evaluated_cells_total",
			Help: "Formula cells computed by the evaluator.",
		}),
		asyncResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spreadsheet_async_results_total",
			Help: "Settled async function results by outcome.",
		}, []string{"outcome"}),
	}
	if reg == nil {
		return m
	}
	m.commands = register(reg, m.commands)
	m.dispatchTime = register(reg, m.dispatchTime)
	m.evaluatedCells = register(reg, m.evaluatedCells)
	m.asyncResults = register(reg, m.asyncResults)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) observeDispatch(cmdType string, result CommandResult, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(cmdType, string(result.Status)).Inc()
	m.dispatchTime.WithLabelValues(cmdType).Observe(elapsed.Seconds())
}

func (m *Metrics) addEvaluated(n int) {
	if m == nil || n == 0 {
		return
	}
	m.evaluatedCells.Add(float64(n))
}

func (m *Metrics) asyncResult(outcome string) {
	if m == nil {
		return
	}
	m.asyncResults.WithLabelValues(outcome).Inc()
}
