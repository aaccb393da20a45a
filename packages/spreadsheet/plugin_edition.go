package spreadsheet

import "unicode/utf8"

// EditionMode tells whether the composer is open
type EditionMode string

const (
	EditionInactive EditionMode = "inactive"
	EditionEditing  EditionMode = "editing"
)

// EditionState is the composer content of the cell being edited. Start and
// End delimit the composer selection in runes.
type EditionState struct {
	Mode    EditionMode `json:"mode"`
	SheetID string      `json:"sheetId,omitempty"`
	Col     int         `json:"col"`
	Row     int         `json:"row"`
	Content string      `json:"content"`
	Start   int         `json:"start"`
	End     int         `json:"end"`
}

type editionPlugin struct {
	basePlugin
	state EditionState
}

func newEditionPlugin(env *pluginEnv) *editionPlugin {
	return &editionPlugin{
		basePlugin: basePlugin{env: env},
		state:      EditionState{Mode: EditionInactive},
	}
}

func (p *editionPlugin) editing() bool {
	return p.state.Mode == EditionEditing
}

func (p *editionPlugin) AllowDispatch(cmd Command) CancelledReason {
	switch c := cmd.(type) {
	case SetCurrentContent:
		if !p.editing() {
			return ReasonNotEditing
		}
	case ChangeComposerSelection:
		if !p.editing() {
			return ReasonNotEditing
		}
		length := utf8.RuneCountInString(p.state.Content)
		if c.Start < 0 || c.End < c.Start || c.End > length {
			return ReasonWrongComposerSelection
		}
	case StopEdition:
		if !p.editing() {
			return ReasonNotEditing
		}
	}
	return ReasonNone
}

// BeforeHandle commits a pending edition when the selection moves away
func (p *editionPlugin) BeforeHandle(cmd Command) {
	if !p.editing() {
		return
	}
	switch cmd.(type) {
	case SelectCell, SetSelection, ActivateSheet, StartEdition:
		p.commit()
	}
}

func (p *editionPlugin) Handle(cmd Command) {
	switch c := cmd.(type) {
	case StartEdition:
		sheetID := p.env.getters.ActiveSheetID()
		anchor := p.env.getters.ActiveCell()
		content := ""
		if c.Text != nil {
			content = *c.Text
		} else if cell, ok := p.env.getters.CellAt(sheetID, anchor.Col, anchor.Row); ok {
			content = cell.Content
		}
		end := utf8.RuneCountInString(content)
		p.state = EditionState{
			Mode:    EditionEditing,
			SheetID: sheetID,
			Col:     anchor.Col,
			Row:     anchor.Row,
			Content: content,
			Start:   end,
			End:     end,
		}
	case SetCurrentContent:
		end := utf8.RuneCountInString(c.Content)
		p.state.Content = c.Content
		p.state.Start, p.state.End = end, end
	case ChangeComposerSelection:
		p.state.Start, p.state.End = c.Start, c.End
	case StopEdition:
		if c.Cancel {
			p.cancel()
		} else {
			p.commit()
		}
	case DeleteSheet:
		if p.editing() && p.state.SheetID == c.SheetID {
			p.cancel()
		}
	case AddColumns:
		at := insertionIndex(c.Base, c.Position)
		p.follow(c.SheetID, func(z Zone) (Zone, bool) { return insertInZone(z, AxisCol, at, c.Quantity), true })
	case AddRows:
		at := insertionIndex(c.Base, c.Position)
		p.follow(c.SheetID, func(z Zone) (Zone, bool) { return insertInZone(z, AxisRow, at, c.Quantity), true })
	case RemoveColumns:
		removed := uniqueSorted(c.Columns)
		p.follow(c.SheetID, func(z Zone) (Zone, bool) { return removeFromZone(z, AxisCol, removed) })
	case RemoveRows:
		removed := uniqueSorted(c.Rows)
		p.follow(c.SheetID, func(z Zone) (Zone, bool) { return removeFromZone(z, AxisRow, removed) })
	}
}

// follow moves the edited cell along with inserted or removed headers. the
// edition is dropped with its row or column.
func (p *editionPlugin) follow(sheetID string, move func(Zone) (Zone, bool)) {
	if !p.editing() || p.state.SheetID != sheetID {
		return
	}
	z, ok := move(ZoneOf(p.state.Col, p.state.Row))
	if !ok {
		p.cancel()
		return
	}
	p.state.Col, p.state.Row = z.Left, z.Top
}

// commit writes the composer content into the edited cell
func (p *editionPlugin) commit() {
	state := p.state
	p.cancel()
	cell, _ := p.env.getters.CellAt(state.SheetID, state.Col, state.Row)
	if cell.Content == state.Content {
		return
	}
	content := state.Content
	result := p.env.dispatch(UpdateCell{SheetID: state.SheetID, Col: state.Col, Row: state.Row, Content: &content})
	if !result.IsSuccess() {
		p.env.logger.Warn("edition not committed",
			"sheet", state.SheetID, "cell", ToXC(state.Col, state.Row), "reason", string(result.Reason))
	}
}

func (p *editionPlugin) cancel() {
	p.state = EditionState{Mode: EditionInactive}
}
