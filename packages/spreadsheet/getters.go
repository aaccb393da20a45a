package spreadsheet

// Getters is the read-only view of a model. plugins read each other
// through it and collaborators read the model through it after an update
// notification.
type Getters struct {
	history   *History
	evaluator *Evaluator
	sheets    *sheetsPlugin
	cells     *cellsPlugin
	merges    *mergesPlugin
	cfs       *cfPlugin
	selection *selectionPlugin
	edition   *editionPlugin
	autofill  *autofillPlugin
}

// Sheets lists the sheets in workbook order
func (g *Getters) Sheets() []SheetInfo {
	return g.sheets.list()
}

func (g *Getters) SheetByID(id string) (SheetInfo, bool) {
	return g.sheets.sheet(id)
}

// SheetIDByName looks a sheet up by name, ignoring case
func (g *Getters) SheetIDByName(name string) (string, bool) {
	return g.sheets.idByName(name)
}

func (g *Getters) ActiveSheetID() string {
	return g.sheets.active.get()
}

// ColSize returns the size override of a column, false when it has the
// default size
func (g *Getters) ColSize(sheetID string, col int) (float64, bool) {
	return g.sheets.headerSize(sheetID, AxisCol, col)
}

func (g *Getters) RowSize(sheetID string, row int) (float64, bool) {
	return g.sheets.headerSize(sheetID, AxisRow, row)
}

// Figures returns the opaque figures of a sheet
func (g *Getters) Figures(sheetID string) []Figure {
	figures, _ := g.sheets.figures.get(sheetID)
	return figures
}

func (g *Getters) CellAt(sheetID string, col, row int) (Cell, bool) {
	return g.cells.cellAt(CellAddress{SheetID: sheetID, Col: col, Row: row})
}

func (g *Getters) CellByID(id CellID) (Cell, bool) {
	return g.cells.cells.get(id)
}

// CellPosition returns where the cell with id currently sits
func (g *Getters) CellPosition(id CellID) (CellAddress, bool) {
	return g.cells.index.addressOf(id)
}

// EvaluatedValue returns the computed value of a cell: nil for empty cells,
// float64, string, bool or *SpreadsheetError otherwise
func (g *Getters) EvaluatedValue(sheetID string, col, row int) Primitive {
	return g.evaluator.Value(CellAddress{SheetID: sheetID, Col: col, Row: row})
}

// CellState returns the evaluation state of a formula cell
func (g *Getters) CellState(sheetID string, col, row int) CellState {
	return g.evaluator.State(CellAddress{SheetID: sheetID, Col: col, Row: row})
}

// CellText returns the displayed text of a cell, formatted with the cell's
// format
func (g *Getters) CellText(sheetID string, col, row int) string {
	cell, _ := g.CellAt(sheetID, col, row)
	return formatValue(g.EvaluatedValue(sheetID, col, row), cell.Format)
}

// EvaluateFormula evaluates formula text on a sheet without storing it
func (g *Getters) EvaluateFormula(sheetID, text string) Primitive {
	return g.evaluator.EvaluateFormula(sheetID, text)
}

// Style returns the style registered under id
func (g *Getters) Style(id int) (Style, bool) {
	return g.cells.styles.Get(id)
}

func (g *Getters) Border(id int) (Border, bool) {
	return g.cells.borders.Get(id)
}

// CellStyle returns the style of a cell with its conditional style merged
// over it
func (g *Getters) CellStyle(sheetID string, col, row int) Style {
	var base Style
	if cell, ok := g.CellAt(sheetID, col, row); ok {
		base, _ = g.Style(cell.Style)
	}
	if cf, ok := g.ConditionalStyleAt(sheetID, col, row); ok {
		return cf.mergeMissing(base)
	}
	return base
}

func (g *Getters) Merges(sheetID string) []Zone {
	return g.merges.list(sheetID)
}

func (g *Getters) MergeAt(sheetID string, col, row int) (Zone, bool) {
	return g.merges.mergeAt(sheetID, col, row)
}

func (g *Getters) ConditionalFormats(sheetID string) []ConditionalFormat {
	return g.cfs.list(sheetID)
}

// ConditionalStyleAt returns the merged style of every conditional format
// matching the cell
func (g *Getters) ConditionalStyleAt(sheetID string, col, row int) (Style, bool) {
	return g.cfs.styleAt(sheetID, col, row)
}

func (g *Getters) Selection() Selection {
	return g.selection.current()
}

// ActiveCell is the anchor of the selection
func (g *Getters) ActiveCell() Position {
	return g.selection.selection.Anchor
}

func (g *Getters) EditionState() EditionState {
	return g.edition.state
}

func (g *Getters) CanUndo() bool { return g.history.CanUndo() }
func (g *Getters) CanRedo() bool { return g.history.CanRedo() }

// AutofillZone returns the zone the next AUTOFILL fills
func (g *Getters) AutofillZone() (Zone, bool) {
	return g.autofill.zone()
}
