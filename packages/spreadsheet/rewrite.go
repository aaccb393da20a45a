package spreadsheet

import (
	"slices"
	"strconv"
	"strings"
)

// Axis selects columns or rows in structural edits
type Axis int

const (
	AxisCol Axis = iota
	AxisRow
)

// refCorner is one cell of a textual reference
type refCorner struct {
	Col      int
	Row      int
	ColFixed bool
	RowFixed bool
}

func (c refCorner) index(axis Axis) int {
	if axis == AxisCol {
		return c.Col
	}
	return c.Row
}

func (c *refCorner) setIndex(axis Axis, v int) {
	if axis == AxisCol {
		c.Col = v
	} else {
		c.Row = v
	}
}

func (c refCorner) String() string {
	var b strings.Builder
	if c.ColFixed {
		b.WriteByte('$')
	}
	b.WriteString(ColumnName(c.Col))
	if c.RowFixed {
		b.WriteByte('$')
	}
	b.WriteString(strconv.Itoa(c.Row + 1))
	return b.String()
}

// textRef is a reference token of a formula
type textRef struct {
	Sheet     string
	Qualified bool
	Start     refCorner
	End       refCorner
	IsRange   bool
}

func (r textRef) String() string {
	var b strings.Builder
	if r.Qualified {
		b.WriteString(QuoteSheetName(r.Sheet))
		b.WriteByte('!')
	}
	b.WriteString(r.Start.String())
	if r.IsRange {
		b.WriteByte(':')
		b.WriteString(r.End.String())
	}
	return b.String()
}

func parseTextRef(tok Token) (textRef, bool) {
	sheet, ref, qualified := splitSheetPrefix(tok.Value)
	out := textRef{Sheet: sheet, Qualified: qualified, IsRange: tok.Type == TokenRange}
	parts := strings.Split(ref, ":")
	corners := make([]refCorner, 0, 2)
	for _, part := range parts {
		col, row, colFixed, rowFixed, err := parseCellAddress(part)
		if err != nil {
			return textRef{}, false
		}
		corners = append(corners, refCorner{Col: col, Row: row, ColFixed: colFixed, RowFixed: rowFixed})
	}
	out.Start = corners[0]
	out.End = corners[len(corners)-1]
	return out, true
}

// QuoteSheetName returns the name as it must appear before '!' in a formula
func QuoteSheetName(name string) string {
	plain := name != ""
	for i, ch := range name {
		if !(isASCIILetter(ch) || ch == '_' || (i > 0 && ch >= '0' && ch <= '9')) {
			plain = false
			break
		}
	}
	if upper := strings.ToUpper(name); upper == "TRUE" || upper == "FALSE" {
		plain = false
	}
	if plain {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// rewriteReferences calls fn for every reference of formula and splices
// the returned text in place. text that does not tokenize is returned
// unchanged.
func rewriteReferences(formula string, fn func(ref textRef) (string, bool)) string {
	if !strings.HasPrefix(formula, "=") {
		return formula
	}
	tokens, errs := NewLexer(formula).Tokenize()
	if len(errs) > 0 {
		return formula
	}

	runes := []rune(formula)
	var b strings.Builder
	last := 0
	changed := false
	for _, tok := range tokens {
		if tok.Type != TokenCell && tok.Type != TokenRange {
			continue
		}
		ref, ok := parseTextRef(tok)
		if !ok {
			continue
		}
		replacement, rewrite := fn(ref)
		if !rewrite {
			continue
		}
		b.WriteString(string(runes[last:tok.Pos]))
		b.WriteString(replacement)
		last = tok.End
		changed = true
	}
	if !changed {
		return formula
	}
	b.WriteString(string(runes[last:]))
	return b.String()
}

// TranslateFormula moves the relative axes of every reference by the
// offset. fixed axes never move. a reference pushed off the grid becomes
// #REF.
func TranslateFormula(formula string, dCol, dRow int) string {
	if dCol == 0 && dRow == 0 {
		return formula
	}
	return rewriteReferences(formula, func(ref textRef) (string, bool) {
		for _, c := range []*refCorner{&ref.Start, &ref.End} {
			if !c.ColFixed {
				c.Col += dCol
			}
			if !c.RowFixed {
				c.Row += dRow
			}
			if c.Col < 0 || c.Row < 0 {
				return invalidRefText, true
			}
		}
		return ref.String(), true
	})
}

// RenameSheetInFormula rewrites the sheet prefix of references to oldName
func RenameSheetInFormula(formula, oldName, newName string) string {
	return rewriteReferences(formula, func(ref textRef) (string, bool) {
		if !ref.Qualified || !sameSheetName(ref.Sheet, oldName) {
			return "", false
		}
		ref.Sheet = newName
		return ref.String(), true
	})
}

// InvalidateSheetInFormula replaces references to a deleted sheet by #REF
func InvalidateSheetInFormula(formula, sheetName string) string {
	return rewriteReferences(formula, func(ref textRef) (string, bool) {
		if !ref.Qualified || !sameSheetName(ref.Sheet, sheetName) {
			return "", false
		}
		return invalidRefText, true
	})
}

// refTargetsSheet reports whether ref points at target when it appears in
// a formula of formulaSheet
func refTargetsSheet(ref textRef, formulaSheet, target string) bool {
	if ref.Qualified {
		return sameSheetName(ref.Sheet, target)
	}
	return sameSheetName(formulaSheet, target)
}

// InsertInFormula shifts references of target that sit at or after base
// by quantity along axis. ranges straddling base grow.
func InsertInFormula(formula, formulaSheet, target string, axis Axis, base, quantity int) string {
	return rewriteReferences(formula, func(ref textRef) (string, bool) {
		if !refTargetsSheet(ref, formulaSheet, target) {
			return "", false
		}
		changed := false
		for _, c := range []*refCorner{&ref.Start, &ref.End} {
			if idx := c.index(axis); idx >= base {
				c.setIndex(axis, idx+quantity)
				changed = true
			}
		}
		if !changed {
			return "", false
		}
		return ref.String(), true
	})
}

// RemoveInFormula adjusts references of target after the removal of the
// given indexes. a cell on a removed line becomes #REF, ranges shrink and
// become #REF once fully removed.
func RemoveInFormula(formula, formulaSheet, target string, axis Axis, removed []int) string {
	removed = slices.Clone(removed)
	slices.Sort(removed)
	removed = slices.Compact(removed)
	shift := func(idx int) int {
		n, _ := slices.BinarySearch(removed, idx)
		return idx - n
	}
	isRemoved := func(idx int) bool {
		_, found := slices.BinarySearch(removed, idx)
		return found
	}

	return rewriteReferences(formula, func(ref textRef) (string, bool) {
		if !refTargetsSheet(ref, formulaSheet, target) {
			return "", false
		}
		start, end := ref.Start.index(axis), ref.End.index(axis)
		if start > end {
			start, end = end, start
		}
		if !ref.IsRange {
			if isRemoved(start) {
				return invalidRefText, true
			}
			if s := shift(start); s != start {
				ref.Start.setIndex(axis, s)
				return ref.String(), true
			}
			return "", false
		}

		first, last := -1, -1
		for idx := start; idx <= end; idx++ {
			if !isRemoved(idx) {
				if first == -1 {
					first = idx
				}
				last = idx
			}
		}
		if first == -1 {
			return invalidRefText, true
		}
		newStart, newEnd := shift(first), shift(last)
		if ref.Start.index(axis) <= ref.End.index(axis) {
			ref.Start.setIndex(axis, newStart)
			ref.End.setIndex(axis, newEnd)
		} else {
			ref.Start.setIndex(axis, newEnd)
			ref.End.setIndex(axis, newStart)
		}
		return ref.String(), true
	})
}
