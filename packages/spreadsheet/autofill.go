package spreadsheet

import (
	"math"
	"strconv"
	"strings"
)

// Direction is the way an autofill extends its source
type Direction uint8

const (
	DirectionUp Direction = iota
	DirectionDown
	DirectionLeft
	DirectionRight
)

func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	case DirectionLeft:
		return "left"
	default:
		return "right"
	}
}

func (d Direction) axis() Axis {
	if d == DirectionUp || d == DirectionDown {
		return AxisRow
	}
	return AxisCol
}

// sign is +1 when the fill moves towards higher indexes
func (d Direction) sign() int {
	if d == DirectionUp || d == DirectionLeft {
		return -1
	}
	return 1
}

// autofillTarget computes the direction of a fill from source towards the
// cell at col,row and the zone it covers. the zone spans the full width or
// height of the source. false when the cell lies inside the source's
// rows and columns.
func autofillTarget(source Zone, col, row int) (Direction, Zone, bool) {
	distances := [...]int{
		DirectionUp:    source.Top - row,
		DirectionDown:  row - source.Bottom,
		DirectionLeft:  source.Left - col,
		DirectionRight: col - source.Right,
	}
	best, bestDistance := DirectionUp, 0
	for d, distance := range distances {
		if distance > bestDistance {
			best, bestDistance = Direction(d), distance
		}
	}
	if bestDistance == 0 {
		return 0, Zone{}, false
	}
	zone := source
	switch best {
	case DirectionUp:
		zone.Top, zone.Bottom = row, source.Top-1
	case DirectionDown:
		zone.Top, zone.Bottom = source.Bottom+1, row
	case DirectionLeft:
		zone.Left, zone.Right = col, source.Left-1
	case DirectionRight:
		zone.Left, zone.Right = source.Right+1, col
	}
	return best, zone, true
}

// seedCell is one source cell of a fill line
type seedCell struct {
	pos  Position
	cell Cell
}

// filledCell is one generated cell. Source is the seed it derives from.
type filledCell struct {
	Position Position
	Source   Position
	Cell     Cell
}

// generateAutofill produces the cells of target from the cells of source.
// cellAt returns the source cell at a position, zero when empty.
func generateAutofill(source Zone, dir Direction, target Zone, cellAt func(col, row int) Cell) []filledCell {
	axis := dir.axis()
	var out []filledCell

	lineStart, lineEnd := source.span(otherAxis(axis))
	for line := lineStart; line <= lineEnd; line++ {
		seed := seedLine(source, dir, line, cellAt)
		gen := newLineGenerator(seed, dir)

		tStart, tEnd := target.span(axis)
		count := tEnd - tStart + 1
		for t := range count {
			idx := tStart + t
			if dir.sign() < 0 {
				idx = tEnd - t
			}
			pos := positionOn(axis, idx, line)
			src, cell := gen.at(t)
			out = append(out, filledCell{Position: pos, Source: src, Cell: cell})
		}
	}
	return out
}

func otherAxis(axis Axis) Axis {
	if axis == AxisRow {
		return AxisCol
	}
	return AxisRow
}

// positionOn builds the position at index idx of the fill axis on line
func positionOn(axis Axis, idx, line int) Position {
	if axis == AxisRow {
		return Position{Col: line, Row: idx}
	}
	return Position{Col: idx, Row: line}
}

// seedLine lists the source cells of one line ordered in the fill direction
func seedLine(source Zone, dir Direction, line int, cellAt func(col, row int) Cell) []seedCell {
	start, end := source.span(dir.axis())
	seed := make([]seedCell, 0, end-start+1)
	for i := start; i <= end; i++ {
		pos := positionOn(dir.axis(), i, line)
		seed = append(seed, seedCell{pos: pos, cell: cellAt(pos.Col, pos.Row)})
	}
	if dir.sign() < 0 {
		for i, j := 0, len(seed)-1; i < j; i, j = i+1, j-1 {
			seed[i], seed[j] = seed[j], seed[i]
		}
	}
	return seed
}

// numberGroup is a run of consecutive numeric seed cells
type numberGroup struct {
	length int
	step   float64
}

type lineGenerator struct {
	dir    Direction
	seed   []seedCell
	groups []*numberGroup // per seed position, nil when not numeric
}

func newLineGenerator(seed []seedCell, dir Direction) *lineGenerator {
	g := &lineGenerator{dir: dir, seed: seed, groups: make([]*numberGroup, len(seed))}
	for i := 0; i < len(seed); {
		if _, ok := seedNumber(seed[i].cell); !ok {
			i++
			continue
		}
		j := i
		var values []float64
		for j < len(seed) {
			v, ok := seedNumber(seed[j].cell)
			if !ok {
				break
			}
			values = append(values, v)
			j++
		}
		group := &numberGroup{length: len(values), step: float64(dir.sign())}
		if len(values) > 1 {
			// the average step, exact for arithmetic progressions
			group.step = (values[len(values)-1] - values[0]) / float64(len(values)-1)
		}
		for k := i; k < j; k++ {
			g.groups[k] = group
		}
		i = j
	}
	return g
}

// seedNumber reads a literal numeric cell
func seedNumber(c Cell) (float64, bool) {
	if c.Content == "" || c.IsFormula() {
		return 0, false
	}
	return parseNumberContent(c.Content)
}

// at generates the t-th cell past the source edge, 0-based
func (g *lineGenerator) at(t int) (Position, Cell) {
	n := len(g.seed)
	s := t % n
	cycle := t/n + 1
	seed := g.seed[s]
	cell := seed.cell
	cell.ID = 0

	switch {
	case cell.Content == "":
	case cell.IsFormula():
		delta := n * cycle * g.dir.sign()
		if g.dir.axis() == AxisRow {
			cell.Content = TranslateFormula(cell.Content, 0, delta)
		} else {
			cell.Content = TranslateFormula(cell.Content, delta, 0)
		}
	case g.groups[s] != nil:
		group := g.groups[s]
		v, _ := seedNumber(cell)
		next := v + group.step*float64(group.length*cycle)
		cell.Content = formatNumberContent(next, strings.HasSuffix(strings.TrimSpace(cell.Content), "%"))
	}
	return seed.pos, cell
}

// formatNumberContent writes a generated number back as cell content
func formatNumberContent(v float64, percent bool) string {
	if percent {
		v *= 100
	}
	v = math.Round(v*1e10) / 1e10
	text := strconv.FormatFloat(v, 'f', -1, 64)
	if percent {
		text += "%"
	}
	return text
}
