package spreadsheet

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Option configures a Model
type Option func(*modelConfig)

type modelConfig struct {
	logger       *slog.Logger
	functions    *FunctionRegistry
	historyLimit int
	scheduler    Scheduler
	metrics      *Metrics
	newID        func() string
}

// WithLogger sets the model logger, silent by default
func WithLogger(logger *slog.Logger) Option {
	return func(c *modelConfig) { c.logger = logger }
}

// WithFunctions sets the function registry formulas are compiled against.
// the default registry holds the built-in functions.
func WithFunctions(functions *FunctionRegistry) Option {
	return func(c *modelConfig) { c.functions = functions }
}

// WithHistoryLimit bounds the undo stack
func WithHistoryLimit(limit int) Option {
	return func(c *modelConfig) { c.historyLimit = limit }
}

// WithScheduler sets where async results re-enter the model. by default
// they wait in a TaskQueue drained by RunPending.
func WithScheduler(scheduler Scheduler) Option {
	return func(c *modelConfig) { c.scheduler = scheduler }
}

// WithMetrics records dispatch and evaluation metrics
func WithMetrics(metrics *Metrics) Option {
	return func(c *modelConfig) { c.metrics = metrics }
}

// WithIDGenerator sets how missing sheet and conditional format ids are
// generated
func WithIDGenerator(newID func() string) Option {
	return func(c *modelConfig) { c.newID = newID }
}

// Model is a workbook in memory. every change goes through Dispatch, reads
// go through Getters. a model is not safe for concurrent use.
type Model struct {
	logger    *slog.Logger
	metrics   *Metrics
	history   *History
	evaluator *Evaluator
	scheduler Scheduler
	newID     func() string
	getters   *Getters

	sheets    *sheetsPlugin
	cells     *cellsPlugin
	merges    *mergesPlugin
	cfs       *cfPlugin
	selection *selectionPlugin
	plugins   []Plugin

	depth int

	subMu       sync.Mutex
	subscribers map[int]func()
	nextSub     int
}

// NewModel loads data into a new model. a nil data creates a workbook with
// a single empty sheet.
func NewModel(data *WorkbookData, opts ...Option) (*Model, error) {
	cfg := modelConfig{
		logger:       slog.New(slog.DiscardHandler),
		historyLimit: DefaultHistoryLimit,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.functions == nil {
		cfg.functions = NewDefaultFunctionRegistry(&WallClock{}, &DefaultRandomGenerator{})
	}
	if cfg.scheduler == nil {
		cfg.scheduler = NewTaskQueue()
	}

	m := &Model{
		logger:      cfg.logger,
		metrics:     cfg.metrics,
		history:     NewHistory(cfg.historyLimit),
		scheduler:   cfg.scheduler,
		newID:       cfg.newID,
		subscribers: make(map[int]func()),
	}
	env := &pluginEnv{
		history:  m.history,
		logger:   m.logger,
		newID:    m.newID,
		dispatch: m.Dispatch,
	}
	m.sheets = newSheetsPlugin(env)
	m.cells = newCellsPlugin(env)
	m.merges = newMergesPlugin(env)
	m.cfs = newCFPlugin(env)
	m.selection = newSelectionPlugin(env)
	edition := newEditionPlugin(env)
	autofill := newAutofillPlugin(env)
	m.plugins = []Plugin{m.sheets, m.cells, m.merges, m.cfs, m.selection, edition, autofill}

	m.getters = &Getters{
		history:   m.history,
		sheets:    m.sheets,
		cells:     m.cells,
		merges:    m.merges,
		cfs:       m.cfs,
		selection: m.selection,
		edition:   edition,
		autofill:  autofill,
	}
	env.getters = m.getters

	m.evaluator = newEvaluator(m.cells, CompileEnv{
		Functions:    cfg.functions,
		ResolveSheet: m.getters.SheetIDByName,
	}, m.scheduler, m.logger, m.metrics)
	m.evaluator.onAsyncUpdate = m.notify
	env.evaluator = m.evaluator
	m.getters.evaluator = m.evaluator

	if err := m.load(data); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Model) load(data *WorkbookData) error {
	if data == nil {
		data = &WorkbookData{}
	}
	d := *data
	d.Sheets = slices.Clone(data.Sheets)
	normalizeWorkbook(&d)

	m.sheets.load(&d)
	if err := m.cells.load(&d); err != nil {
		return err
	}
	if err := m.merges.load(&d); err != nil {
		return err
	}
	m.cfs.load(&d)
	m.selection.reset(d.ActiveSheet)

	m.evaluator.MarkRebuild()
	m.evaluator.Flush()
	return nil
}

// Getters returns the read-only view of the model
func (m *Model) Getters() *Getters {
	return m.getters
}

// Dispatch validates cmd and applies it. a cancelled command changes
// nothing. commands dispatched while another one is being handled are
// part of the same undo step.
func (m *Model) Dispatch(cmd Command) CommandResult {
	cmd = m.prepare(cmd)
	if m.depth > 0 {
		return m.dispatchNested(cmd)
	}

	start := time.Now()
	var result CommandResult
	switch cmd.(type) {
	case Undo:
		result = m.replay(m.history.undo, ReasonEmptyUndoStack)
	case Redo:
		result = m.replay(m.history.redo, ReasonEmptyRedoStack)
	default:
		result = m.run(cmd)
	}
	m.metrics.observeDispatch(cmd.Type(), result, time.Since(start))
	if !result.IsSuccess() {
		m.logger.Debug("command cancelled", "type", cmd.Type(), "reason", string(result.Reason))
	}
	return result
}

func (m *Model) run(cmd Command) CommandResult {
	if reason := m.allow(cmd); reason != ReasonNone {
		return Cancelled(reason)
	}
	m.history.begin(cmd.Type())
	m.depth++
	m.handle(cmd)
	for _, p := range m.plugins {
		p.Finalize()
	}
	m.depth--
	m.history.commit(onlyActiveSheet)

	m.evaluator.Flush()
	m.notify()
	return Success
}

func (m *Model) dispatchNested(cmd Command) CommandResult {
	switch cmd.(type) {
	case Undo, Redo:
		return Cancelled(ReasonInvalidCommand)
	}
	if reason := m.allow(cmd); reason != ReasonNone {
		return Cancelled(reason)
	}
	m.depth++
	m.handle(cmd)
	m.depth--
	return Success
}

func (m *Model) allow(cmd Command) CancelledReason {
	for _, p := range m.plugins {
		if reason := p.AllowDispatch(cmd); reason != ReasonNone {
			return reason
		}
	}
	return ReasonNone
}

func (m *Model) handle(cmd Command) {
	for _, p := range m.plugins {
		p.BeforeHandle(cmd)
	}
	for _, p := range m.plugins {
		p.Handle(cmd)
	}
}

// replay undoes or redoes one step and recomputes
func (m *Model) replay(step func() bool, empty CancelledReason) CommandResult {
	if !step() {
		return Cancelled(empty)
	}
	for _, p := range m.plugins {
		p.Finalize()
	}
	m.evaluator.Flush()
	m.notify()
	return Success
}

// onlyActiveSheet tells whether a step only switched the active sheet
func onlyActiveSheet(patches []patch) bool {
	for _, p := range patches {
		if p.slotName() != slotActiveSheet {
			return false
		}
	}
	return true
}

// prepare fills the ids a command may leave out
func (m *Model) prepare(cmd Command) Command {
	switch c := cmd.(type) {
	case CreateSheet:
		if c.SheetID == "" {
			c.SheetID = m.newID()
		}
		return c
	case DuplicateSheet:
		if c.SheetIDTo == "" {
			c.SheetIDTo = m.newID()
		}
		return c
	case ActivateSheet:
		if c.SheetIDFrom == "" {
			c.SheetIDFrom = m.getters.ActiveSheetID()
		}
		return c
	case AddConditionalFormat:
		if c.CF.ID == "" {
			c.CF.ID = m.newID()
		}
		return c
	}
	return cmd
}

// Subscribe registers fn to run after every update: each applied top-level
// command and each applied async result. the returned func unsubscribes.
func (m *Model) Subscribe(fn func()) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subscribers[id] = fn
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.subscribers, id)
	}
}

func (m *Model) notify() {
	m.subMu.Lock()
	fns := make([]func(), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// RunPending applies the async results settled since the last call. it
// only drains the default TaskQueue, a custom Scheduler is drained by its
// owner.
func (m *Model) RunPending() int {
	if q, ok := m.scheduler.(*TaskQueue); ok {
		return q.RunPending()
	}
	return 0
}

// Scheduler returns the scheduler async results are handed to
func (m *Model) Scheduler() Scheduler {
	return m.scheduler
}

// Export returns the current workbook in its persisted form
func (m *Model) Export() *WorkbookData {
	data := &WorkbookData{Version: CurrentVersion}
	m.sheets.export(data)
	m.cells.export(data)
	m.merges.export(data)
	m.cfs.export(data)
	return data
}
