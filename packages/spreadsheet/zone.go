package spreadsheet

import (
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"
)

// Position is a 0-based column/row pair within a sheet
type Position struct {
	Col int `json:"col" mapstructure:"col"`
	Row int `json:"row" mapstructure:"row"`
}

// CellAddress locates a cell in the workbook
type CellAddress struct {
	SheetID string
	Col     int
	Row     int
}

func (a CellAddress) String() string {
	return a.SheetID + "!" + ToXC(a.Col, a.Row)
}

// Zone is an axis-aligned rectangle in 0-based coordinates. the canonical
// form has Top <= Bottom and Left <= Right.
type Zone struct {
	Top    int `json:"top" mapstructure:"top"`
	Left   int `json:"left" mapstructure:"left"`
	Bottom int `json:"bottom" mapstructure:"bottom"`
	Right  int `json:"right" mapstructure:"right"`
}

// ZoneOf returns the single-cell zone at col, row
func ZoneOf(col, row int) Zone {
	return Zone{Top: row, Left: col, Bottom: row, Right: col}
}

// Canonical swaps reversed bounds
func (z Zone) Canonical() Zone {
	return Zone{
		Top:    min(z.Top, z.Bottom),
		Left:   min(z.Left, z.Right),
		Bottom: max(z.Top, z.Bottom),
		Right:  max(z.Left, z.Right),
	}
}

func (z Zone) Width() int  { return z.Right - z.Left + 1 }
func (z Zone) Height() int { return z.Bottom - z.Top + 1 }

// Contains reports whether col, row lies inside the zone
func (z Zone) Contains(col, row int) bool {
	return col >= z.Left && col <= z.Right && row >= z.Top && row <= z.Bottom
}

// Overlaps reports whether the two zones share at least one cell
func (z Zone) Overlaps(o Zone) bool {
	return z.Left <= o.Right && o.Left <= z.Right && z.Top <= o.Bottom && o.Top <= z.Bottom
}

// Union returns the smallest zone containing both
func (z Zone) Union(o Zone) Zone {
	return Zone{
		Top:    min(z.Top, o.Top),
		Left:   min(z.Left, o.Left),
		Bottom: max(z.Bottom, o.Bottom),
		Right:  max(z.Right, o.Right),
	}
}

// IsWithin reports whether the zone fits in a sheet of the given size
func (z Zone) IsWithin(cols, rows int) bool {
	return z.Top >= 0 && z.Left >= 0 && z.Bottom < rows && z.Right < cols &&
		z.Top <= z.Bottom && z.Left <= z.Right
}

// Positions iterates the zone row by row
func (z Zone) Positions() iter.Seq[Position] {
	return func(yield func(Position) bool) {
		for row := z.Top; row <= z.Bottom; row++ {
			for col := z.Left; col <= z.Right; col++ {
				if !yield(Position{Col: col, Row: row}) {
					return
				}
			}
		}
	}
}

func (z Zone) String() string {
	return ZoneToXC(z)
}

// ColumnName converts a 0-based column index to letters (0 -> A, 26 -> AA)
func ColumnName(col int) string {
	name := ""
	col++
	for col > 0 {
		col--
		name = string(rune('A'+col%26)) + name
		col /= 26
	}
	return name
}

// ToXC converts 0-based coordinates to an A1 address
func ToXC(col, row int) string {
	return ColumnName(col) + strconv.Itoa(row+1)
}

// ZoneToXC renders a zone as "A1" or "A1:B2"
func ZoneToXC(z Zone) string {
	if z.Top == z.Bottom && z.Left == z.Right {
		return ToXC(z.Left, z.Top)
	}
	return ToXC(z.Left, z.Top) + ":" + ToXC(z.Right, z.Bottom)
}

// splitCellAddress separates "$A$1" into its column letters, row digits
// and fixed flags
func splitCellAddress(cell string) (letters string, digits string, colFixed, rowFixed bool, ok bool) {
	s := cell
	if strings.HasPrefix(s, "$") {
		colFixed = true
		s = s[1:]
	}
	letterEnd := 0
	for letterEnd < len(s) && isASCIILetter(rune(s[letterEnd])) {
		letterEnd++
	}
	if letterEnd == 0 {
		return "", "", false, false, false
	}
	letters = s[:letterEnd]
	s = s[letterEnd:]
	if strings.HasPrefix(s, "$") {
		rowFixed = true
		s = s[1:]
	}
	if s == "" {
		return "", "", false, false, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", "", false, false, false
		}
	}
	return letters, s, colFixed, rowFixed, true
}

func isASCIILetter(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

// parseCellAddress parses a cell address like "A1" or "$B$2" into column
// and row indices (0-based) plus the fixed flags of each axis
func parseCellAddress(cell string) (col, row int, colFixed, rowFixed bool, err error) {
	letters, digits, colFixed, rowFixed, ok := splitCellAddress(cell)
	if !ok {
		return 0, 0, false, false, NewApplicationError(InvalidArgument, fmt.Sprintf("invalid cell reference: %s", cell))
	}

	// parse column (A=0, B=1, ..., Z=25, AA=26, AB=27, ...)
	colStr := strings.ToUpper(letters)
	col = 0
	for _, ch := range colStr {
		col = col*26 + int(ch-'A') + 1
	}
	col--

	// parse row (1-based in notation, but we want 0-based)
	rowNum, err := strconv.Atoi(digits)
	if err != nil {
		return 0, 0, false, false, NewApplicationError(InvalidArgument, fmt.Sprintf("invalid row number: %s", digits))
	}
	if rowNum < 1 {
		return 0, 0, false, false, NewApplicationError(InvalidArgument, fmt.Sprintf("row number must be positive: %d", rowNum))
	}
	return col, rowNum - 1, colFixed, rowFixed, nil
}

// ParseXC parses "A1" into 0-based col and row
func ParseXC(xc string) (col, row int, err error) {
	col, row, _, _, err = parseCellAddress(strings.TrimSpace(xc))
	return col, row, err
}

// ParseZone parses "A1" or "A1:B3" into a canonical zone
func ParseZone(xc string) (Zone, error) {
	parts := strings.Split(strings.TrimSpace(xc), ":")
	if len(parts) > 2 {
		return Zone{}, NewApplicationError(InvalidArgument, fmt.Sprintf("invalid range format: %s", xc))
	}
	startCol, startRow, err := ParseXC(parts[0])
	if err != nil {
		return Zone{}, err
	}
	if len(parts) == 1 {
		return ZoneOf(startCol, startRow), nil
	}
	endCol, endRow, err := ParseXC(parts[1])
	if err != nil {
		return Zone{}, err
	}
	return Zone{Top: startRow, Left: startCol, Bottom: endRow, Right: endCol}.Canonical(), nil
}

// ParseZones parses a list of range strings
func ParseZones(ranges []string) ([]Zone, error) {
	zones := make([]Zone, 0, len(ranges))
	for _, r := range ranges {
		z, err := ParseZone(r)
		if err != nil {
			return nil, err
		}
		zones = append(zones, z)
	}
	return zones, nil
}

// ZonesToXC renders zones as range strings
func ZonesToXC(zones []Zone) []string {
	out := make([]string, 0, len(zones))
	for _, z := range zones {
		out = append(out, ZoneToXC(z))
	}
	return out
}

// RecomputeZones returns a minimal list of rectangles covering every cell of
// keep that is not in remove. columns are scanned left to right, each
// column split into vertical runs, and identical runs of adjacent columns
// are merged.
func RecomputeZones(keep []Zone, remove []Zone) []Zone {
	cells := make(map[Position]struct{})
	for _, z := range keep {
		for p := range z.Canonical().Positions() {
			cells[p] = struct{}{}
		}
	}
	for _, z := range remove {
		for p := range z.Canonical().Positions() {
			delete(cells, p)
		}
	}
	if len(cells) == 0 {
		return nil
	}

	byCol := make(map[int][]int)
	for p := range cells {
		byCol[p.Col] = append(byCol[p.Col], p.Row)
	}
	cols := make([]int, 0, len(byCol))
	for col, rows := range byCol {
		slices.Sort(rows)
		cols = append(cols, col)
	}
	slices.Sort(cols)

	type run struct{ top, bottom int }
	runsOf := func(rows []int) []run {
		var runs []run
		for _, r := range rows {
			if n := len(runs); n > 0 && runs[n-1].bottom == r-1 {
				runs[n-1].bottom = r
				continue
			}
			runs = append(runs, run{top: r, bottom: r})
		}
		return runs
	}

	// open zones keyed by their vertical run, extended while the next
	// column has the same run
	open := make(map[run]Zone)
	var result []Zone
	prevCol := -2
	for _, col := range cols {
		runs := runsOf(byCol[col])
		next := make(map[run]Zone, len(runs))
		for _, r := range runs {
			if z, ok := open[r]; ok && prevCol == col-1 {
				z.Right = col
				next[r] = z
				delete(open, r)
				continue
			}
			next[r] = Zone{Top: r.top, Bottom: r.bottom, Left: col, Right: col}
		}
		for _, z := range open {
			result = append(result, z)
		}
		open = next
		prevCol = col
	}
	for _, z := range open {
		result = append(result, z)
	}
	slices.SortFunc(result, func(a, b Zone) int {
		if a.Left != b.Left {
			return a.Left - b.Left
		}
		return a.Top - b.Top
	})
	return result
}

func (z Zone) span(axis Axis) (int, int) {
	if axis == AxisCol {
		return z.Left, z.Right
	}
	return z.Top, z.Bottom
}

func (z Zone) withSpan(axis Axis, start, end int) Zone {
	if axis == AxisCol {
		z.Left, z.Right = start, end
	} else {
		z.Top, z.Bottom = start, end
	}
	return z
}

// insertInZone shifts z for quantity lines inserted at index at. a zone
// straddling the insertion grows.
func insertInZone(z Zone, axis Axis, at, quantity int) Zone {
	start, end := z.span(axis)
	switch {
	case start >= at:
		start, end = start+quantity, end+quantity
	case end >= at:
		end += quantity
	}
	return z.withSpan(axis, start, end)
}

// removeFromZone shrinks z after the removal of sorted unique indexes. it
// reports false when every line of z was removed.
func removeFromZone(z Zone, axis Axis, removed []int) (Zone, bool) {
	start, end := z.span(axis)
	before := func(idx int) int {
		n, _ := slices.BinarySearch(removed, idx)
		return n
	}
	inside := before(end+1) - before(start)
	if inside == end-start+1 {
		return z, false
	}
	newStart := start - before(start)
	return z.withSpan(axis, newStart, newStart+(end-start+1-inside)-1), true
}
