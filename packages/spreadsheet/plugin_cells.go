package spreadsheet

import (
	"iter"
	"slices"
)

// cellsPlugin owns the cell arena, the position index and the style and
// border dictionaries
type cellsPlugin struct {
	basePlugin
	cells     *mapSlot[CellID, Cell]
	positions *mapSlot[CellAddress, CellID]
	index     *positionIndex
	styles    *InternTable[Style]
	borders   *InternTable[Border]
	nextID    CellID

	// names of sheets renamed or deleted by the command being handled
	previousNames map[string]string
}

func newCellsPlugin(env *pluginEnv) *cellsPlugin {
	p := &cellsPlugin{
		basePlugin:    basePlugin{env: env},
		cells:         newMapSlot[CellID, Cell]("cells", func(a, b Cell) bool { return a == b }),
		positions:     newMapSlot[CellAddress, CellID]("positions", func(a, b CellID) bool { return a == b }),
		index:         newPositionIndex(),
		styles:        newInternTable[Style]("styles"),
		borders:       newInternTable[Border]("borders"),
		previousNames: make(map[string]string),
	}
	p.positions.data = p.index
	p.positions.onChange = func(addr CellAddress, _ CellID, _ bool) {
		env.evaluator.MarkChanged(addr)
	}
	p.cells.onChange = func(id CellID, _ Cell, _ bool) {
		if addr, ok := p.index.addressOf(id); ok {
			env.evaluator.MarkChanged(addr)
		}
	}
	return p
}

func (p *cellsPlugin) cellAt(addr CellAddress) (Cell, bool) {
	id, ok := p.positions.get(addr)
	if !ok {
		return Cell{}, false
	}
	return p.cells.get(id)
}

func (p *cellsPlugin) contentAt(addr CellAddress) string {
	cell, _ := p.cellAt(addr)
	return cell.Content
}

func (p *cellsPlugin) formulaCells() iter.Seq2[CellAddress, string] {
	return func(yield func(CellAddress, string) bool) {
		for addr, id := range p.positions.all() {
			cell, ok := p.cells.get(id)
			if !ok || !cell.IsFormula() {
				continue
			}
			if !yield(addr, cell.Content) {
				return
			}
		}
	}
}

// occupiedPositions iterates the cells of zone that exist, row by row
func (p *cellsPlugin) occupiedPositions(sheetID string, zone Zone) iter.Seq[Position] {
	return func(yield func(Position) bool) {
		ci := p.index.sheet(sheetID)
		if ci == nil {
			return
		}
		if zone.Width()*zone.Height() <= ci.Len() {
			for pos := range zone.Positions() {
				if _, ok := ci.Get(pos.Col, pos.Row); ok && !yield(pos) {
					return
				}
			}
			return
		}
		var found []Position
		for pos := range ci.All() {
			if zone.Contains(pos.Col, pos.Row) {
				found = append(found, pos)
			}
		}
		slices.SortFunc(found, func(a, b Position) int {
			if a.Row != b.Row {
				return a.Row - b.Row
			}
			return a.Col - b.Col
		})
		for _, pos := range found {
			if !yield(pos) {
				return
			}
		}
	}
}

// sheetCells iterates the cells of one sheet
func (p *cellsPlugin) sheetCells(sheetID string) iter.Seq2[Position, Cell] {
	return func(yield func(Position, Cell) bool) {
		ci := p.index.sheet(sheetID)
		if ci == nil {
			return
		}
		for pos, id := range ci.All() {
			cell, ok := p.cells.get(id)
			if ok && !yield(pos, cell) {
				return
			}
		}
	}
}

func (p *cellsPlugin) AllowDispatch(cmd Command) CancelledReason {
	switch c := cmd.(type) {
	case UpdateCell:
		if reason := p.checkTarget(c.SheetID, ZoneOf(c.Col, c.Row)); reason != ReasonNone {
			return reason
		}
		if c.Style != nil && *c.Style != 0 {
			if _, ok := p.styles.Get(*c.Style); !ok {
				return ReasonInvalidCommand
			}
		}
		if c.Border != nil && *c.Border != 0 {
			if _, ok := p.borders.Get(*c.Border); !ok {
				return ReasonInvalidCommand
			}
		}
	case SetValue:
		col, row, err := ParseXC(c.XC)
		if err != nil {
			return ReasonInvalidCommand
		}
		return p.checkTarget(c.SheetID, ZoneOf(col, row))
	case ClearCell:
		return p.checkTarget(c.SheetID, ZoneOf(c.Col, c.Row))
	case DeleteContent:
		return p.checkTarget(c.SheetID, c.Target...)
	case SetFormatting:
		return p.checkTarget(c.SheetID, c.Target...)
	case ClearFormatting:
		return p.checkTarget(c.SheetID, c.Target...)
	case SetFormatter:
		return p.checkTarget(c.SheetID, c.Target...)
	}
	return ReasonNone
}

func (p *cellsPlugin) BeforeHandle(cmd Command) {
	switch c := cmd.(type) {
	case RenameSheet:
		p.rememberName(c.SheetID)
	case DeleteSheet:
		p.rememberName(c.SheetID)
	}
}

func (p *cellsPlugin) rememberName(sheetID string) {
	if sheet, ok := p.env.getters.SheetByID(sheetID); ok {
		p.previousNames[sheetID] = sheet.Name
	}
}

func (p *cellsPlugin) Handle(cmd Command) {
	switch c := cmd.(type) {
	case UpdateCell:
		p.updateCell(CellAddress{SheetID: c.SheetID, Col: c.Col, Row: c.Row}, func(cell Cell) Cell {
			if c.Content != nil {
				cell.Content = *c.Content
			}
			if c.Style != nil {
				cell.Style = *c.Style
			}
			if c.Border != nil {
				cell.Border = *c.Border
			}
			if c.Format != nil {
				cell.Format = *c.Format
			}
			return cell
		})

	case SetValue:
		col, row, _ := ParseXC(c.XC)
		p.updateCell(CellAddress{SheetID: c.SheetID, Col: col, Row: row}, func(cell Cell) Cell {
			cell.Content = c.Text
			return cell
		})

	case ClearCell:
		p.updateCell(CellAddress{SheetID: c.SheetID, Col: c.Col, Row: c.Row}, func(Cell) Cell {
			return Cell{}
		})

	case DeleteContent:
		p.eachExisting(c.SheetID, c.Target, func(cell Cell) Cell {
			cell.Content = ""
			return cell
		})

	case ClearFormatting:
		p.eachExisting(c.SheetID, c.Target, func(cell Cell) Cell {
			cell.Style, cell.Border, cell.Format = 0, 0, ""
			return cell
		})

	case SetFormatting:
		var borderID *int
		if c.Border != nil {
			id := 0
			if !c.Border.IsZero() {
				id = p.borders.Intern(p.env.history, *c.Border)
			}
			borderID = &id
		}
		p.eachPosition(c.SheetID, c.Target, func(cell Cell) Cell {
			if c.Style != nil {
				current, _ := p.styles.Get(cell.Style)
				cell.Style = p.internStyle(c.Style.mergeMissing(current))
			}
			if borderID != nil {
				cell.Border = *borderID
			}
			return cell
		})

	case SetFormatter:
		p.eachPosition(c.SheetID, c.Target, func(cell Cell) Cell {
			cell.Format = c.Format
			return cell
		})

	case AddColumns:
		at := insertionIndex(c.Base, c.Position)
		p.insertLines(c.SheetID, AxisCol, at, c.Quantity)
	case AddRows:
		at := insertionIndex(c.Base, c.Position)
		p.insertLines(c.SheetID, AxisRow, at, c.Quantity)
	case RemoveColumns:
		p.removeLines(c.SheetID, AxisCol, c.Columns)
	case RemoveRows:
		p.removeLines(c.SheetID, AxisRow, c.Rows)

	case RenameSheet:
		oldName := p.previousNames[c.SheetID]
		p.rewriteFormulas(func(_ CellAddress, content string) string {
			return RenameSheetInFormula(content, oldName, c.Name)
		})

	case DeleteSheet:
		name := p.previousNames[c.SheetID]
		for pos := range p.sheetCells(c.SheetID) {
			p.removeCell(CellAddress{SheetID: c.SheetID, Col: pos.Col, Row: pos.Row})
		}
		p.rewriteFormulas(func(_ CellAddress, content string) string {
			return InvalidateSheetInFormula(content, name)
		})

	case DuplicateSheet:
		for pos, cell := range p.sheetCells(c.SheetID) {
			p.updateCell(CellAddress{SheetID: c.SheetIDTo, Col: pos.Col, Row: pos.Row}, func(Cell) Cell {
				cell.ID = 0
				return cell
			})
		}
	}
}

func (p *cellsPlugin) Finalize() {
	clear(p.previousNames)
}

func (p *cellsPlugin) internStyle(s Style) int {
	if s.IsZero() {
		return 0
	}
	return p.styles.Intern(p.env.history, s)
}

// updateCell applies mutate to the cell at addr, creating it when needed.
// a cell left with nothing in it is removed.
func (p *cellsPlugin) updateCell(addr CellAddress, mutate func(Cell) Cell) {
	h := p.env.history
	id, exists := p.positions.get(addr)
	var cell Cell
	if exists {
		cell, _ = p.cells.get(id)
	}
	next := mutate(cell)
	if next.isEmpty() {
		if exists {
			p.removeCell(addr)
		}
		return
	}
	if !exists {
		p.nextID++
		id = p.nextID
		setEntry(h, p.positions, addr, id)
	}
	next.ID = id
	setEntry(h, p.cells, id, next)
}

func (p *cellsPlugin) removeCell(addr CellAddress) {
	id, ok := p.positions.get(addr)
	if !ok {
		return
	}
	deleteEntry(p.env.history, p.positions, addr)
	deleteEntry(p.env.history, p.cells, id)
}

// eachExisting applies mutate to the existing cells of zones
func (p *cellsPlugin) eachExisting(sheetID string, zones []Zone, mutate func(Cell) Cell) {
	for _, zone := range zones {
		for pos := range p.occupiedPositions(sheetID, zone) {
			p.updateCell(CellAddress{SheetID: sheetID, Col: pos.Col, Row: pos.Row}, mutate)
		}
	}
}

// eachPosition applies mutate to every position of zones, empty or not
func (p *cellsPlugin) eachPosition(sheetID string, zones []Zone, mutate func(Cell) Cell) {
	for _, zone := range zones {
		for pos := range zone.Positions() {
			p.updateCell(CellAddress{SheetID: sheetID, Col: pos.Col, Row: pos.Row}, mutate)
		}
	}
}

// moveCells re-positions the cells of a sheet along axis. remap returns
// the new index, false when the cell is dropped.
func (p *cellsPlugin) moveCells(sheetID string, axis Axis, remap func(int) (int, bool)) {
	h := p.env.history
	type move struct {
		to CellAddress
		id CellID
	}
	var moves []move
	var dropped []CellAddress
	ci := p.index.sheet(sheetID)
	if ci == nil {
		return
	}
	for pos, id := range ci.All() {
		idx := pos.Col
		if axis == AxisRow {
			idx = pos.Row
		}
		next, keep := remap(idx)
		from := CellAddress{SheetID: sheetID, Col: pos.Col, Row: pos.Row}
		if !keep {
			dropped = append(dropped, from)
			continue
		}
		if next == idx {
			continue
		}
		to := from
		if axis == AxisCol {
			to.Col = next
		} else {
			to.Row = next
		}
		moves = append(moves, move{to: to, id: id})
		dropped = append(dropped, from)
	}
	moved := make(map[CellID]struct{}, len(moves))
	for _, m := range moves {
		moved[m.id] = struct{}{}
	}
	for _, addr := range dropped {
		id, _ := p.positions.get(addr)
		deleteEntry(h, p.positions, addr)
		if _, ok := moved[id]; !ok {
			deleteEntry(h, p.cells, id)
		}
	}
	for _, m := range moves {
		setEntry(h, p.positions, m.to, m.id)
	}
}

func (p *cellsPlugin) insertLines(sheetID string, axis Axis, at, quantity int) {
	p.moveCells(sheetID, axis, func(idx int) (int, bool) {
		if idx >= at {
			return idx + quantity, true
		}
		return idx, true
	})
	target := p.sheetName(sheetID)
	p.rewriteFormulas(func(addr CellAddress, content string) string {
		return InsertInFormula(content, p.sheetName(addr.SheetID), target, axis, at, quantity)
	})
}

func (p *cellsPlugin) removeLines(sheetID string, axis Axis, indexes []int) {
	removed := uniqueSorted(indexes)
	p.moveCells(sheetID, axis, func(idx int) (int, bool) {
		n, found := slices.BinarySearch(removed, idx)
		return idx - n, !found
	})
	target := p.sheetName(sheetID)
	p.rewriteFormulas(func(addr CellAddress, content string) string {
		return RemoveInFormula(content, p.sheetName(addr.SheetID), target, axis, removed)
	})
}

func (p *cellsPlugin) sheetName(sheetID string) string {
	sheet, _ := p.env.getters.SheetByID(sheetID)
	return sheet.Name
}

// rewriteFormulas replaces the content of every formula cell by rewrite's
// result
func (p *cellsPlugin) rewriteFormulas(rewrite func(addr CellAddress, content string) string) {
	type change struct {
		id   CellID
		cell Cell
	}
	var changes []change
	for addr, id := range p.positions.all() {
		cell, ok := p.cells.get(id)
		if !ok || !cell.IsFormula() {
			continue
		}
		if next := rewrite(addr, cell.Content); next != cell.Content {
			cell.Content = next
			changes = append(changes, change{id: id, cell: cell})
		}
	}
	for _, c := range changes {
		setEntry(p.env.history, p.cells, c.id, c.cell)
	}
}

func (p *cellsPlugin) load(data *WorkbookData) error {
	p.styles.load(data.Styles)
	p.borders.load(data.Borders)
	for _, sheet := range data.Sheets {
		for xc, cd := range sheet.Cells {
			col, row, err := ParseXC(xc)
			if err != nil {
				return err
			}
			cell := Cell{Content: cd.Content, Style: cd.Style, Border: cd.Border, Format: cd.Format}
			if cell.isEmpty() {
				continue
			}
			p.nextID++
			cell.ID = p.nextID
			p.positions.write(CellAddress{SheetID: sheet.ID, Col: col, Row: row}, cell.ID, true)
			p.cells.write(cell.ID, cell, true)
		}
	}
	return nil
}

func (p *cellsPlugin) export(data *WorkbookData) {
	data.Styles = p.styles.Snapshot()
	data.Borders = p.borders.Snapshot()
	for i := range data.Sheets {
		sheet := &data.Sheets[i]
		sheet.Cells = map[string]CellData{}
		for pos, cell := range p.sheetCells(sheet.ID) {
			sheet.Cells[ToXC(pos.Col, pos.Row)] = CellData{
				Content: cell.Content,
				Style:   cell.Style,
				Border:  cell.Border,
				Format:  cell.Format,
			}
		}
	}
}
