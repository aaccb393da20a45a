package spreadsheet

import (
	"errors"
	"iter"
	"log/slog"
	"maps"
	"slices"
)

// CellState is the evaluation state of a formula cell
type CellState uint8

const (
	CellStateIdle CellState = iota
	CellStatePending
	CellStateComputed
	CellStateCyclic
	CellStateError
	CellStateWaiting // an async call has not settled, the previous value is shown
)

func (s CellState) String() string {
	switch s {
	case CellStatePending:
		return "pending"
	case CellStateComputed:
		return "computed"
	case CellStateCyclic:
		return "cyclic"
	case CellStateError:
		return "error"
	case CellStateWaiting:
		return "waiting"
	default:
		return "idle"
	}
}

// cellSource is what the evaluator reads from the state-owning plugins
type cellSource interface {
	contentAt(addr CellAddress) string
	formulaCells() iter.Seq2[CellAddress, string]
	occupiedPositions(sheetID string, zone Zone) iter.Seq[Position]
}

// formulaNode is the evaluator's record for one formula cell
type formulaNode struct {
	addr       CellAddress
	text       string
	compiled   *Compiled
	state      CellState
	value      Primitive
	generation uint64

	// settled async results of the current invocation, by call index
	asyncValues  map[int]Primitive
	asyncWaiting map[int]*Future
	resume       bool
}

// Evaluator keeps the values of formula cells up to date. changed cells are
// collected while a command runs and recomputed, together with everything
// depending on them, by Flush.
type Evaluator struct {
	source    cellSource
	formulas  *FormulaTable
	graph     *DependencyGraph
	scheduler Scheduler
	logger    *slog.Logger
	metrics   *Metrics

	nodes   map[CellAddress]*formulaNode
	changed map[CellAddress]struct{}
	rebuild bool

	stack   []*formulaNode
	onStack map[CellAddress]int

	generation  uint64
	evaluations uint64
	computed    int

	// onAsyncUpdate is called once after an async result was applied
	onAsyncUpdate func()
}

func newEvaluator(source cellSource, env CompileEnv, scheduler Scheduler, logger *slog.Logger, metrics *Metrics) *Evaluator {
	return &Evaluator{
		source:    source,
		formulas:  NewFormulaTable(env),
		graph:     NewDependencyGraph(),
		scheduler: scheduler,
		logger:    logger,
		metrics:   metrics,
		nodes:     make(map[CellAddress]*formulaNode),
		changed:   make(map[CellAddress]struct{}),
		onStack:   make(map[CellAddress]int),
	}
}

// MarkChanged records that the content at addr may differ from what the
// evaluator compiled
func (e *Evaluator) MarkChanged(addr CellAddress) {
	e.changed[addr] = struct{}{}
}

// MarkRebuild asks the next Flush to recompile every formula, needed when
// sheet names or ids change meaning
func (e *Evaluator) MarkRebuild() {
	e.rebuild = true
}

// Flush recompiles changed formulas and recomputes every cell that may
// depend on them, plus volatile cells
func (e *Evaluator) Flush() {
	pending := make(map[CellAddress]struct{})
	if e.rebuild {
		e.rebuildAll(pending)
	} else {
		e.applyChanges(pending)
	}

	volatile := e.graph.GetVolatileCells()
	for _, addr := range volatile {
		pending[addr] = struct{}{}
	}
	for _, addr := range e.graph.GetAllDependents(volatile...) {
		if _, ok := e.nodes[addr]; ok {
			pending[addr] = struct{}{}
		}
	}
	e.recompute(pending)
	e.evaluations++
}

func (e *Evaluator) rebuildAll(pending map[CellAddress]struct{}) {
	for _, node := range e.nodes {
		e.formulas.Release(node.compiled)
	}
	previous := e.nodes
	e.nodes = make(map[CellAddress]*formulaNode)
	e.graph.Clear()
	for addr, text := range e.source.formulaCells() {
		node := e.attach(addr, text)
		if old, ok := previous[addr]; ok {
			node.value = old.value
		}
		pending[addr] = struct{}{}
	}
	e.rebuild = false
	clear(e.changed)
}

func (e *Evaluator) applyChanges(pending map[CellAddress]struct{}) {
	if len(e.changed) == 0 {
		return
	}
	addrs := slices.SortedFunc(maps.Keys(e.changed), compareAddresses)
	clear(e.changed)

	touched := make([]CellAddress, 0, len(addrs))
	for _, addr := range addrs {
		content := e.source.contentAt(addr)
		node, exists := e.nodes[addr]
		if exists && node.text == content {
			continue
		}
		var previous Primitive
		if exists {
			previous = node.value
			e.detach(node)
		}
		if kindOfContent(content) == CellKindFormula {
			// a waiting formula keeps showing what the cell showed before
			e.attach(addr, content).value = previous
			pending[addr] = struct{}{}
		}
		touched = append(touched, addr)
	}
	for _, addr := range e.graph.GetAllDependents(touched...) {
		if _, ok := e.nodes[addr]; ok {
			pending[addr] = struct{}{}
		}
	}
}

func (e *Evaluator) attach(addr CellAddress, text string) *formulaNode {
	e.generation++
	compiled := e.formulas.Acquire(text, addr)
	node := &formulaNode{
		addr:       addr,
		text:       text,
		compiled:   compiled,
		generation: e.generation,
	}
	e.nodes[addr] = node
	e.graph.SetFormula(addr, compiled.References(addr), compiled.Volatile)
	return node
}

func (e *Evaluator) detach(node *formulaNode) {
	e.formulas.Release(node.compiled)
	e.graph.RemoveFormula(node.addr)
	delete(e.nodes, node.addr)
}

func (e *Evaluator) recompute(pending map[CellAddress]struct{}) {
	if len(pending) == 0 {
		return
	}
	order := e.graph.GetCalculationOrder(pending)
	for _, addr := range order {
		if node := e.nodes[addr]; node != nil {
			node.state = CellStatePending
		}
	}
	e.computed = 0
	for _, addr := range order {
		e.computeCell(e.nodes[addr])
	}
	e.metrics.addEvaluated(e.computed)
}

func (e *Evaluator) computeCell(node *formulaNode) {
	if node == nil || node.state != CellStatePending {
		return
	}
	if !node.resume {
		node.asyncValues = nil
		node.asyncWaiting = nil
	}
	node.resume = false

	e.onStack[node.addr] = len(e.stack)
	e.stack = append(e.stack, node)
	value, err := node.compiled.Evaluate(&evalContext{e: e, node: node})
	e.stack = e.stack[:len(e.stack)-1]
	delete(e.onStack, node.addr)
	e.computed++

	if node.state == CellStateCyclic {
		node.value = cycleError()
		return
	}
	switch {
	case errors.Is(err, errAsyncPending):
		node.state = CellStateWaiting
		return
	case err != nil:
		node.value = asSpreadsheetError(err)
	default:
		node.value = cellResult(value)
	}
	if _, isErr := node.value.(*SpreadsheetError); isErr {
		node.state = CellStateError
	} else {
		node.state = CellStateComputed
	}
}

// cellResult turns the value of a formula into a cell value. a range
// holding a single cell collapses to that cell.
func cellResult(value Primitive) Primitive {
	switch v := value.(type) {
	case nil:
		return 0.0
	case float64:
		if v == 0 {
			return 0.0
		}
	case Range:
		bounds := v.Bounds()
		if bounds.Zone.Width() != 1 || bounds.Zone.Height() != 1 {
			return NewSpreadsheetError(ErrorCodeError, "Range cannot be used as a cell value")
		}
		for _, inner := range v.Iterate() {
			return cellResult(inner)
		}
		return 0.0
	}
	return value
}

func cycleError() *SpreadsheetError {
	return NewSpreadsheetError(ErrorCodeCycle, "Circular reference")
}

func (e *Evaluator) readCell(addr CellAddress) Primitive {
	node, ok := e.nodes[addr]
	if !ok {
		return literalValue(e.source.contentAt(addr))
	}
	if idx, visiting := e.onStack[addr]; visiting {
		for _, n := range e.stack[idx:] {
			n.state = CellStateCyclic
		}
		return cycleError()
	}
	if node.state == CellStatePending {
		e.computeCell(node)
	}
	if node.state == CellStateCyclic {
		return cycleError()
	}
	return node.value
}

func (e *Evaluator) readRange(sheetID string, zone Zone) Range {
	return &CellRange{
		address:   RangeAddress{SheetID: sheetID, Zone: zone},
		positions: e.source.occupiedPositions,
		read:      e.readCell,
	}
}

func (e *Evaluator) callAsync(node *formulaNode, call *FunctionCallNode, args []Primitive) (Primitive, error) {
	idx := call.AsyncIndex()
	if v, ok := node.asyncValues[idx]; ok {
		return v, nil
	}
	if _, ok := node.asyncWaiting[idx]; ok {
		return nil, errAsyncPending
	}

	result, err := call.spec.invoke(args)
	if err != nil {
		return asSpreadsheetError(err), nil
	}
	future, ok := result.(*Future)
	if !ok {
		return result, nil
	}

	if node.asyncWaiting == nil {
		node.asyncWaiting = make(map[int]*Future)
	}
	node.asyncWaiting[idx] = future
	addr, generation := node.addr, node.generation
	future.Then(func(value Primitive, err error) {
		e.scheduler.Schedule(func() {
			e.resolveAsync(addr, generation, idx, future, value, err)
		})
	})
	return nil, errAsyncPending
}

// resolveAsync is the single re-entry point of async results. the result
// is applied only when the call that produced it is still the live one.
func (e *Evaluator) resolveAsync(addr CellAddress, generation uint64, idx int, future *Future, value Primitive, err error) {
	node, ok := e.nodes[addr]
	if !ok || node.generation != generation || node.asyncWaiting[idx] != future {
		e.logger.Debug("discarding stale async result", "cell", addr.String())
		e.metrics.asyncResult("discarded")
		return
	}

	delete(node.asyncWaiting, idx)
	if err != nil {
		value = asSpreadsheetError(err)
	}
	if node.asyncValues == nil {
		node.asyncValues = make(map[int]Primitive)
	}
	node.asyncValues[idx] = value
	node.resume = true

	pending := map[CellAddress]struct{}{addr: {}}
	for _, dependent := range e.graph.GetAllDependents(addr) {
		if _, ok := e.nodes[dependent]; ok {
			pending[dependent] = struct{}{}
		}
	}
	e.recompute(pending)
	e.evaluations++
	e.logger.Debug("async result applied", "cell", addr.String(), "recomputed", len(pending))
	e.metrics.asyncResult("applied")
	if e.onAsyncUpdate != nil {
		e.onAsyncUpdate()
	}
}

// Value returns the evaluated value at addr
func (e *Evaluator) Value(addr CellAddress) Primitive {
	if node, ok := e.nodes[addr]; ok {
		if node.state == CellStateCyclic {
			return cycleError()
		}
		return node.value
	}
	return literalValue(e.source.contentAt(addr))
}

// State returns the evaluation state of the formula at addr, idle for
// cells without a formula
func (e *Evaluator) State(addr CellAddress) CellState {
	if node, ok := e.nodes[addr]; ok {
		return node.state
	}
	return CellStateIdle
}

// Evaluations counts flushes and applied async results. it changes
// whenever a value may have
func (e *Evaluator) Evaluations() uint64 {
	return e.evaluations
}

// EvaluateFormula evaluates formula text on a sheet without storing it,
// references are relative to A1. async functions are not allowed.
func (e *Evaluator) EvaluateFormula(sheetID, text string) Primitive {
	compiled := Compile(text, CellAddress{SheetID: sheetID}, e.formulas.env)
	value, err := compiled.Evaluate(&evalContext{e: e, anchor: CellAddress{SheetID: sheetID}})
	if err != nil {
		return asSpreadsheetError(err)
	}
	if r, ok := value.(Range); ok {
		return cellResult(r)
	}
	return value
}

// Compile compiles text at anchor against the evaluator's functions and
// sheets without evaluating it
func (e *Evaluator) Compile(text string, anchor CellAddress) *Compiled {
	return Compile(text, anchor, e.formulas.env)
}

// FormulaCount returns the number of distinct compiled formulas
func (e *Evaluator) FormulaCount() int {
	return e.formulas.Count()
}

type evalContext struct {
	e      *Evaluator
	node   *formulaNode
	anchor CellAddress
}

func (c *evalContext) Anchor() CellAddress {
	if c.node != nil {
		return c.node.addr
	}
	return c.anchor
}

func (c *evalContext) ReadCell(addr CellAddress) Primitive {
	return c.e.readCell(addr)
}

func (c *evalContext) ReadRange(sheetID string, zone Zone) Range {
	return c.e.readRange(sheetID, zone)
}

func (c *evalContext) CallAsync(call *FunctionCallNode, args []Primitive) (Primitive, error) {
	if c.node == nil {
		return NewSpreadsheetError(ErrorCodeError, "some formulas are not supported"), nil
	}
	return c.e.callAsync(c.node, call, args)
}
