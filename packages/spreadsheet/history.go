package spreadsheet

import "iter"

// DefaultHistoryLimit is the number of undo steps kept by default
const DefaultHistoryLimit = 99

// kvStore is the storage behind a slot. most slots use a plain map, the
// cell position index uses chunked grids.
type kvStore[K comparable, V any] interface {
	load(key K) (V, bool)
	store(key K, value V)
	remove(key K)
	size() int
	all() iter.Seq2[K, V]
}

type mapStore[K comparable, V any] map[K]V

func (m mapStore[K, V]) load(key K) (V, bool) {
	v, ok := m[key]
	return v, ok
}

func (m mapStore[K, V]) store(key K, value V) { m[key] = value }
func (m mapStore[K, V]) remove(key K)         { delete(m, key) }
func (m mapStore[K, V]) size() int            { return len(m) }

func (m mapStore[K, V]) all() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for k, v := range m {
			if !yield(k, v) {
				return
			}
		}
	}
}

// mapSlot is a typed slice of workbook state owned by exactly one plugin.
// every mutation made during a dispatch goes through setEntry/deleteEntry so
// that history can replay it in both directions.
type mapSlot[K comparable, V any] struct {
	name     string
	data     kvStore[K, V]
	equal    func(a, b V) bool
	onChange func(key K, value V, present bool)
}

func newMapSlot[K comparable, V any](name string, equal func(a, b V) bool) *mapSlot[K, V] {
	return &mapSlot[K, V]{name: name, data: mapStore[K, V]{}, equal: equal}
}

func (s *mapSlot[K, V]) get(key K) (V, bool) {
	return s.data.load(key)
}

func (s *mapSlot[K, V]) len() int {
	return s.data.size()
}

func (s *mapSlot[K, V]) all() iter.Seq2[K, V] {
	return s.data.all()
}

// write mutates without recording
func (s *mapSlot[K, V]) write(key K, value V, present bool) {
	if present {
		s.data.store(key, value)
	} else {
		s.data.remove(key)
	}
	if s.onChange != nil {
		s.onChange(key, value, present)
	}
}

// patch is one reversible state change
type patch interface {
	undo()
	redo()
	slotName() string
	noop() bool
	target() any
	absorb(next patch)
}

type entryPatch[K comparable, V any] struct {
	slot      *mapSlot[K, V]
	key       K
	before    V
	hadBefore bool
	after     V
	hasAfter  bool
}

type patchTarget[K comparable] struct {
	slot any
	key  K
}

func (p *entryPatch[K, V]) undo()            { p.slot.write(p.key, p.before, p.hadBefore) }
func (p *entryPatch[K, V]) redo()            { p.slot.write(p.key, p.after, p.hasAfter) }
func (p *entryPatch[K, V]) slotName() string { return p.slot.name }

func (p *entryPatch[K, V]) target() any {
	return patchTarget[K]{slot: p.slot, key: p.key}
}

func (p *entryPatch[K, V]) noop() bool {
	if p.hadBefore != p.hasAfter {
		return false
	}
	if !p.hadBefore {
		return true
	}
	return p.slot.equal != nil && p.slot.equal(p.before, p.after)
}

// absorb folds a later patch of the same target into p. the earliest
// before and the latest after are kept.
func (p *entryPatch[K, V]) absorb(next patch) {
	n := next.(*entryPatch[K, V])
	p.after = n.after
	p.hasAfter = n.hasAfter
}

func setEntry[K comparable, V any](h *History, s *mapSlot[K, V], key K, value V) {
	before, had := s.get(key)
	s.write(key, value, true)
	h.record(&entryPatch[K, V]{
		slot: s, key: key,
		before: before, hadBefore: had,
		after: value, hasAfter: true,
	})
}

func deleteEntry[K comparable, V any](h *History, s *mapSlot[K, V], key K) {
	before, had := s.get(key)
	if !had {
		return
	}
	var zero V
	s.write(key, zero, false)
	h.record(&entryPatch[K, V]{
		slot: s, key: key,
		before: before, hadBefore: true,
		after: zero, hasAfter: false,
	})
}

// valueSlot is a single-valued slot (active sheet, sheet order)
type valueSlot[V any] struct {
	inner *mapSlot[struct{}, V]
}

func newValueSlot[V any](name string, initial V, equal func(a, b V) bool) *valueSlot[V] {
	s := &valueSlot[V]{inner: newMapSlot[struct{}, V](name, equal)}
	s.inner.write(struct{}{}, initial, true)
	return s
}

func (s *valueSlot[V]) get() V {
	v, _ := s.inner.get(struct{}{})
	return v
}

func (s *valueSlot[V]) set(h *History, v V) {
	setEntry(h, s.inner, struct{}{}, v)
}

func (s *valueSlot[V]) load(v V) {
	s.inner.write(struct{}{}, v, true)
}

type historyStep struct {
	command string
	patches []patch
	index   map[any]int
}

func (s *historyStep) effective() []patch {
	out := make([]patch, 0, len(s.patches))
	for _, p := range s.patches {
		if !p.noop() {
			out = append(out, p)
		}
	}
	return out
}

// History records the patches of each top-level command and replays them
// for undo and redo. the stacks are bounded, the oldest step is dropped
// silently.
type History struct {
	limit     int
	current   *historyStep
	undoStack []*historyStep
	redoStack []*historyStep
}

// NewHistory creates a history bounded to limit steps
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

func (h *History) record(p patch) {
	if h == nil || h.current == nil {
		return
	}
	step := h.current
	key := p.target()
	if i, ok := step.index[key]; ok {
		step.patches[i].absorb(p)
		return
	}
	step.index[key] = len(step.patches)
	step.patches = append(step.patches, p)
}

func (h *History) recording() bool {
	return h.current != nil
}

func (h *History) begin(command string) {
	h.current = &historyStep{command: command, index: make(map[any]int)}
}

// commit closes the recording scope. the step is pushed unless it is empty
// or skip says so.
func (h *History) commit(skip func(patches []patch) bool) bool {
	step := h.current
	h.current = nil
	if step == nil {
		return false
	}
	step.patches = step.effective()
	if len(step.patches) == 0 {
		return false
	}
	if skip != nil && skip(step.patches) {
		return false
	}
	h.undoStack = append(h.undoStack, step)
	if len(h.undoStack) > h.limit {
		h.undoStack = h.undoStack[len(h.undoStack)-h.limit:]
	}
	h.redoStack = nil
	return true
}

func (h *History) undo() bool {
	if len(h.undoStack) == 0 {
		return false
	}
	step := h.undoStack[len(h.undoStack)-1]
	h.undoStack = h.undoStack[:len(h.undoStack)-1]
	for i := len(step.patches) - 1; i >= 0; i-- {
		step.patches[i].undo()
	}
	h.redoStack = append(h.redoStack, step)
	return true
}

func (h *History) redo() bool {
	if len(h.redoStack) == 0 {
		return false
	}
	step := h.redoStack[len(h.redoStack)-1]
	h.redoStack = h.redoStack[:len(h.redoStack)-1]
	for _, p := range step.patches {
		p.redo()
	}
	h.undoStack = append(h.undoStack, step)
	return true
}

func (h *History) CanUndo() bool { return len(h.undoStack) > 0 }
func (h *History) CanRedo() bool { return len(h.redoStack) > 0 }

// UndoDepth returns the number of steps that can be undone
func (h *History) UndoDepth() int { return len(h.undoStack) }
