package spreadsheet

import "iter"

// RangeAddress represents a range of cells within a single sheet
type RangeAddress struct {
	SheetID string
	Zone    Zone
}

// Contains reports whether the cell lies in the range
func (r RangeAddress) Contains(addr CellAddress) bool {
	return r.SheetID == addr.SheetID && r.Zone.Contains(addr.Col, addr.Row)
}

// Range represents a lazy range type for memory-efficient formula evaluation.
// only non-empty cells are visited, row by row.
type Range interface {
	Bounds() RangeAddress
	Iterate() iter.Seq2[Position, Primitive]
	IterateValues() iter.Seq[Primitive]
}

// CellRange implements Range for lazy cell iteration
type CellRange struct {
	address   RangeAddress
	positions func(sheetID string, zone Zone) iter.Seq[Position]
	read      func(addr CellAddress) Primitive
}

// Bounds returns the range boundaries
func (r *CellRange) Bounds() RangeAddress {
	return r.address
}

// Iterate returns an iterator over the occupied cells of the range
func (r *CellRange) Iterate() iter.Seq2[Position, Primitive] {
	return func(yield func(Position, Primitive) bool) {
		if r.positions == nil {
			return
		}
		for pos := range r.positions(r.address.SheetID, r.address.Zone) {
			value := r.read(CellAddress{SheetID: r.address.SheetID, Col: pos.Col, Row: pos.Row})
			if !yield(pos, value) {
				return
			}
		}
	}
}

// IterateValues returns an iterator over cell values in the range
func (r *CellRange) IterateValues() iter.Seq[Primitive] {
	return func(yield func(Primitive) bool) {
		for _, value := range r.Iterate() {
			if !yield(value) {
				return
			}
		}
	}
}
