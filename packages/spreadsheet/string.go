package spreadsheet

// InternTable provides value interning for the style and border
// dictionaries. ids start at 1, 0 is reserved for "none". entries are
// append-only for the lifetime of a workbook so that ids stored in cells and
// in history patches never dangle.
type InternTable[V comparable] struct {
	entries *mapSlot[int, V]
	ids     map[V]int
	nextID  int
}

// newInternTable creates a new intern table whose entries are tracked by
// history under the given slot name
func newInternTable[V comparable](name string) *InternTable[V] {
	t := &InternTable[V]{
		ids:    make(map[V]int),
		nextID: 1, // start at 1, reserve 0 for nil/empty
	}
	t.entries = newMapSlot[int, V](name, func(a, b V) bool { return a == b })
	t.entries.onChange = func(id int, value V, present bool) {
		if present {
			t.ids[value] = id
			if id >= t.nextID {
				t.nextID = id + 1
			}
			return
		}
		for v, existing := range t.ids {
			if existing == id {
				delete(t.ids, v)
			}
		}
	}
	return t
}

// Intern adds a value to the table or returns the id of an identical
// existing entry
func (t *InternTable[V]) Intern(h *History, v V) int {
	if id, exists := t.ids[v]; exists {
		return id
	}
	id := t.nextID
	setEntry(h, t.entries, id, v)
	return id
}

// Get retrieves a value by its id
func (t *InternTable[V]) Get(id int) (V, bool) {
	return t.entries.get(id)
}

// Contains checks if a value exists in the table and returns its id
func (t *InternTable[V]) Contains(v V) (int, bool) {
	id, exists := t.ids[v]
	return id, exists
}

// Count returns the number of unique values in the table
func (t *InternTable[V]) Count() int {
	return t.entries.len()
}

// Snapshot copies the table for export
func (t *InternTable[V]) Snapshot() map[int]V {
	out := make(map[int]V, t.entries.len())
	for id, v := range t.entries.all() {
		out[id] = v
	}
	return out
}

// load replaces the content without recording history
func (t *InternTable[V]) load(values map[int]V) {
	for id, v := range values {
		t.entries.write(id, v, true)
	}
}
