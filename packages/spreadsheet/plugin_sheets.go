package spreadsheet

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/text/cases"
)

const (
	DefaultColNumber = 26
	DefaultRowNumber = 100

	forbiddenSheetChars = `*?/\[]`
	slotActiveSheet     = "activeSheet"
)

// SheetInfo describes a sheet
type SheetInfo struct {
	ID   string
	Name string
	Cols int
	Rows int
}

// Figure is an opaque drawing record carried through persistence
type Figure map[string]any

type headerKey struct {
	sheetID string
	axis    Axis
	index   int
}

// foldName returns the case-insensitive form of a sheet name
func foldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

func sameSheetName(a, b string) bool {
	return foldName(a) == foldName(b)
}

// insertionIndex is the first index shifted by an ADD_COLUMNS/ADD_ROWS
func insertionIndex(base int, position string) int {
	if position == InsertAfter {
		return base + 1
	}
	return base
}

type sheetsPlugin struct {
	basePlugin
	sheets  *mapSlot[string, SheetInfo]
	order   *valueSlot[[]string]
	active  *valueSlot[string]
	sizes   *mapSlot[headerKey, float64]
	figures *mapSlot[string, []Figure]

	byName map[string]string // folded name -> id
	folded map[string]string // id -> folded name
}

func newSheetsPlugin(env *pluginEnv) *sheetsPlugin {
	p := &sheetsPlugin{
		basePlugin: basePlugin{env: env},
		sheets:     newMapSlot[string, SheetInfo]("sheets", func(a, b SheetInfo) bool { return a == b }),
		order:      newValueSlot("sheetOrder", []string(nil), slices.Equal[[]string]),
		active:     newValueSlot(slotActiveSheet, "", func(a, b string) bool { return a == b }),
		sizes:      newMapSlot[headerKey, float64]("headerSizes", func(a, b float64) bool { return a == b }),
		figures:    newMapSlot[string, []Figure]("figures", func(a, b []Figure) bool { return cmp.Equal(a, b) }),
		byName:     make(map[string]string),
		folded:     make(map[string]string),
	}
	p.sheets.onChange = func(id string, info SheetInfo, present bool) {
		if old, ok := p.folded[id]; ok {
			delete(p.byName, old)
			delete(p.folded, id)
		}
		if present {
			name := foldName(info.Name)
			p.byName[name] = id
			p.folded[id] = name
		}
		env.evaluator.MarkRebuild()
	}
	return p
}

func (p *sheetsPlugin) sheet(id string) (SheetInfo, bool) {
	return p.sheets.get(id)
}

func (p *sheetsPlugin) idByName(name string) (string, bool) {
	id, ok := p.byName[foldName(name)]
	return id, ok
}

func (p *sheetsPlugin) list() []SheetInfo {
	out := make([]SheetInfo, 0, p.sheets.len())
	for _, id := range p.order.get() {
		if info, ok := p.sheets.get(id); ok {
			out = append(out, info)
		}
	}
	return out
}

func (p *sheetsPlugin) headerSize(sheetID string, axis Axis, index int) (float64, bool) {
	return p.sizes.get(headerKey{sheetID: sheetID, axis: axis, index: index})
}

func (p *sheetsPlugin) checkName(name string, except string) CancelledReason {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || strings.ContainsAny(trimmed, forbiddenSheetChars) {
		return ReasonInvalidSheetName
	}
	if id, ok := p.idByName(trimmed); ok && id != except {
		return ReasonDuplicatedSheetName
	}
	return ReasonNone
}

func (p *sheetsPlugin) checkIndexes(sheetID string, axis Axis, indexes []int) CancelledReason {
	info, ok := p.sheet(sheetID)
	if !ok {
		return ReasonInvalidSheetID
	}
	if len(indexes) == 0 {
		return ReasonEmptyTarget
	}
	limit := info.Cols
	if axis == AxisRow {
		limit = info.Rows
	}
	for _, idx := range indexes {
		if idx < 0 || idx >= limit {
			return ReasonTargetOutOfSheet
		}
	}
	return ReasonNone
}

func (p *sheetsPlugin) AllowDispatch(cmd Command) CancelledReason {
	switch c := cmd.(type) {
	case CreateSheet:
		if c.SheetID == "" {
			return ReasonInvalidSheetID
		}
		if _, exists := p.sheet(c.SheetID); exists {
			return ReasonInvalidSheetID
		}
		if c.Name != "" {
			if reason := p.checkName(c.Name, ""); reason != ReasonNone {
				return reason
			}
		}
		if c.Position != nil && (*c.Position < 0 || *c.Position > len(p.order.get())) {
			return ReasonInvalidCommand
		}
		if c.Cols < 0 || c.Rows < 0 {
			return ReasonInvalidCommand
		}
	case DeleteSheet:
		if _, ok := p.sheet(c.SheetID); !ok {
			return ReasonInvalidSheetID
		}
		if p.sheets.len() <= 1 {
			return ReasonNotEnoughSheets
		}
	case DuplicateSheet:
		if _, ok := p.sheet(c.SheetID); !ok {
			return ReasonInvalidSheetID
		}
		if _, exists := p.sheet(c.SheetIDTo); exists || c.SheetIDTo == "" {
			return ReasonInvalidSheetID
		}
		if c.Name != "" {
			return p.checkName(c.Name, "")
		}
	case RenameSheet:
		if _, ok := p.sheet(c.SheetID); !ok {
			return ReasonInvalidSheetID
		}
		return p.checkName(c.Name, c.SheetID)
	case MoveSheet:
		idx := slices.Index(p.order.get(), c.SheetID)
		if idx < 0 {
			return ReasonInvalidSheetID
		}
		switch c.Direction {
		case MoveLeft:
			if idx == 0 {
				return ReasonWrongSheetMove
			}
		case MoveRight:
			if idx == len(p.order.get())-1 {
				return ReasonWrongSheetMove
			}
		default:
			return ReasonInvalidCommand
		}
	case ActivateSheet:
		if _, ok := p.sheet(c.SheetIDTo); !ok {
			return ReasonInvalidSheetID
		}
	case ResizeColumns:
		if c.Size <= 0 {
			return ReasonInvalidCommand
		}
		return p.checkIndexes(c.SheetID, AxisCol, c.Columns)
	case ResizeRows:
		if c.Size <= 0 {
			return ReasonInvalidCommand
		}
		return p.checkIndexes(c.SheetID, AxisRow, c.Rows)
	case AddColumns:
		return p.checkInsertion(c.SheetID, AxisCol, c.Base, c.Quantity, c.Position)
	case AddRows:
		return p.checkInsertion(c.SheetID, AxisRow, c.Base, c.Quantity, c.Position)
	case RemoveColumns:
		return p.checkRemoval(c.SheetID, AxisCol, c.Columns)
	case RemoveRows:
		return p.checkRemoval(c.SheetID, AxisRow, c.Rows)
	}
	return ReasonNone
}

func (p *sheetsPlugin) checkInsertion(sheetID string, axis Axis, base, quantity int, position string) CancelledReason {
	if reason := p.checkIndexes(sheetID, axis, []int{base}); reason != ReasonNone {
		return reason
	}
	if quantity <= 0 || (position != InsertBefore && position != InsertAfter) {
		return ReasonInvalidCommand
	}
	return ReasonNone
}

func (p *sheetsPlugin) checkRemoval(sheetID string, axis Axis, indexes []int) CancelledReason {
	if reason := p.checkIndexes(sheetID, axis, indexes); reason != ReasonNone {
		return reason
	}
	info, _ := p.sheet(sheetID)
	limit := info.Cols
	if axis == AxisRow {
		limit = info.Rows
	}
	if len(uniqueSorted(indexes)) >= limit {
		return ReasonNotEnoughElements
	}
	return ReasonNone
}

func (p *sheetsPlugin) Handle(cmd Command) {
	h := p.env.history
	switch c := cmd.(type) {
	case CreateSheet:
		info := SheetInfo{ID: c.SheetID, Name: strings.TrimSpace(c.Name), Cols: c.Cols, Rows: c.Rows}
		if info.Name == "" {
			info.Name = p.nextSheetName()
		}
		if info.Cols == 0 {
			info.Cols = DefaultColNumber
		}
		if info.Rows == 0 {
			info.Rows = DefaultRowNumber
		}
		setEntry(h, p.sheets, info.ID, info)
		order := p.order.get()
		position := len(order)
		if c.Position != nil {
			position = *c.Position
		}
		p.order.set(h, slices.Insert(slices.Clone(order), position, info.ID))
		if c.Activate {
			p.active.set(h, info.ID)
		}

	case DeleteSheet:
		order := slices.Clone(p.order.get())
		idx := slices.Index(order, c.SheetID)
		order = slices.Delete(order, idx, idx+1)
		p.order.set(h, order)
		deleteEntry(h, p.sheets, c.SheetID)
		deleteEntry(h, p.figures, c.SheetID)
		for key := range p.sheetSizes(c.SheetID) {
			deleteEntry(h, p.sizes, key)
		}
		if p.active.get() == c.SheetID {
			p.active.set(h, order[max(0, idx-1)])
		}

	case DuplicateSheet:
		source, _ := p.sheet(c.SheetID)
		name := strings.TrimSpace(c.Name)
		if name == "" {
			name = p.copyName(source.Name)
		}
		setEntry(h, p.sheets, c.SheetIDTo, SheetInfo{ID: c.SheetIDTo, Name: name, Cols: source.Cols, Rows: source.Rows})
		order := slices.Clone(p.order.get())
		idx := slices.Index(order, c.SheetID)
		p.order.set(h, slices.Insert(order, idx+1, c.SheetIDTo))
		for key, size := range p.sheetSizes(c.SheetID) {
			key.sheetID = c.SheetIDTo
			setEntry(h, p.sizes, key, size)
		}
		if figures, ok := p.figures.get(c.SheetID); ok {
			setEntry(h, p.figures, c.SheetIDTo, slices.Clone(figures))
		}

	case RenameSheet:
		info, _ := p.sheet(c.SheetID)
		info.Name = strings.TrimSpace(c.Name)
		setEntry(h, p.sheets, info.ID, info)

	case MoveSheet:
		order := slices.Clone(p.order.get())
		idx := slices.Index(order, c.SheetID)
		other := idx + 1
		if c.Direction == MoveLeft {
			other = idx - 1
		}
		order[idx], order[other] = order[other], order[idx]
		p.order.set(h, order)

	case ActivateSheet:
		p.active.set(h, c.SheetIDTo)

	case ResizeColumns:
		for _, col := range c.Columns {
			setEntry(h, p.sizes, headerKey{sheetID: c.SheetID, axis: AxisCol, index: col}, c.Size)
		}
	case ResizeRows:
		for _, row := range c.Rows {
			setEntry(h, p.sizes, headerKey{sheetID: c.SheetID, axis: AxisRow, index: row}, c.Size)
		}

	case AddColumns:
		p.insertHeaders(c.SheetID, AxisCol, insertionIndex(c.Base, c.Position), c.Quantity)
	case AddRows:
		p.insertHeaders(c.SheetID, AxisRow, insertionIndex(c.Base, c.Position), c.Quantity)
	case RemoveColumns:
		p.removeHeaders(c.SheetID, AxisCol, c.Columns)
	case RemoveRows:
		p.removeHeaders(c.SheetID, AxisRow, c.Rows)
	}
}

func (p *sheetsPlugin) sheetSizes(sheetID string) map[headerKey]float64 {
	out := make(map[headerKey]float64)
	for key, size := range p.sizes.all() {
		if key.sheetID == sheetID {
			out[key] = size
		}
	}
	return out
}

func (p *sheetsPlugin) insertHeaders(sheetID string, axis Axis, at, quantity int) {
	h := p.env.history
	info, _ := p.sheet(sheetID)
	if axis == AxisCol {
		info.Cols += quantity
	} else {
		info.Rows += quantity
	}
	setEntry(h, p.sheets, sheetID, info)
	p.moveSizes(sheetID, axis, func(idx int) (int, bool) {
		if idx >= at {
			return idx + quantity, true
		}
		return idx, true
	})
}

func (p *sheetsPlugin) removeHeaders(sheetID string, axis Axis, indexes []int) {
	h := p.env.history
	removed := uniqueSorted(indexes)
	info, _ := p.sheet(sheetID)
	if axis == AxisCol {
		info.Cols -= len(removed)
	} else {
		info.Rows -= len(removed)
	}
	setEntry(h, p.sheets, sheetID, info)
	p.moveSizes(sheetID, axis, func(idx int) (int, bool) {
		n, found := slices.BinarySearch(removed, idx)
		return idx - n, !found
	})
}

// moveSizes re-keys the size overrides of one axis. remap returns the new
// index and false when the override is dropped.
func (p *sheetsPlugin) moveSizes(sheetID string, axis Axis, remap func(int) (int, bool)) {
	h := p.env.history
	moved := make(map[headerKey]float64)
	for key, size := range p.sheetSizes(sheetID) {
		if key.axis != axis {
			continue
		}
		deleteEntry(h, p.sizes, key)
		if idx, keep := remap(key.index); keep {
			key.index = idx
			moved[key] = size
		}
	}
	for key, size := range moved {
		setEntry(h, p.sizes, key, size)
	}
}

func (p *sheetsPlugin) nextSheetName() string {
	for i := p.sheets.len() + 1; ; i++ {
		name := fmt.Sprintf("Sheet%d", i)
		if _, taken := p.idByName(name); !taken {
			return name
		}
	}
}

func (p *sheetsPlugin) copyName(source string) string {
	name := "Copy of " + source
	if _, taken := p.idByName(name); !taken {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s (%d)", name, i)
		if _, taken := p.idByName(candidate); !taken {
			return candidate
		}
	}
}

func (p *sheetsPlugin) load(data *WorkbookData) {
	order := make([]string, 0, len(data.Sheets))
	for _, sheet := range data.Sheets {
		p.sheets.write(sheet.ID, SheetInfo{ID: sheet.ID, Name: sheet.Name, Cols: sheet.ColNumber, Rows: sheet.RowNumber}, true)
		order = append(order, sheet.ID)
		for idx, header := range sheet.Cols {
			p.sizes.write(headerKey{sheetID: sheet.ID, axis: AxisCol, index: idx}, header.Size, true)
		}
		for idx, header := range sheet.Rows {
			p.sizes.write(headerKey{sheetID: sheet.ID, axis: AxisRow, index: idx}, header.Size, true)
		}
		p.figures.write(sheet.ID, slices.Clone(sheet.Figures), true)
	}
	p.order.load(order)
	p.active.load(data.ActiveSheet)
}

func (p *sheetsPlugin) export(data *WorkbookData) {
	data.ActiveSheet = p.active.get()
	for _, info := range p.list() {
		sheet := SheetData{
			ID:        info.ID,
			Name:      info.Name,
			ColNumber: info.Cols,
			RowNumber: info.Rows,
			Cols:      map[int]HeaderData{},
			Rows:      map[int]HeaderData{},
			Figures:   []Figure{},
		}
		for key, size := range p.sheetSizes(info.ID) {
			if key.axis == AxisCol {
				sheet.Cols[key.index] = HeaderData{Size: size}
			} else {
				sheet.Rows[key.index] = HeaderData{Size: size}
			}
		}
		if figures, ok := p.figures.get(info.ID); ok && figures != nil {
			sheet.Figures = slices.Clone(figures)
		}
		data.Sheets = append(data.Sheets, sheet)
	}
}

func uniqueSorted(indexes []int) []int {
	out := slices.Clone(indexes)
	slices.Sort(out)
	return slices.Compact(out)
}
