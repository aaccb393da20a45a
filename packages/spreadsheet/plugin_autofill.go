package spreadsheet

import "slices"

type autofillSelection struct {
	sheetID   string
	source    Zone
	target    Zone
	direction Direction
}

// autofillPlugin keeps the pending autofill zone and applies fills through
// cell and conditional format commands
type autofillPlugin struct {
	basePlugin
	pending *autofillSelection
}

func newAutofillPlugin(env *pluginEnv) *autofillPlugin {
	return &autofillPlugin{basePlugin: basePlugin{env: env}}
}

// zone returns the pending autofill zone
func (p *autofillPlugin) zone() (Zone, bool) {
	if p.pending == nil {
		return Zone{}, false
	}
	return p.pending.target, true
}

func (p *autofillPlugin) source() (Zone, CancelledReason) {
	selection := p.env.getters.Selection()
	if len(selection.Zones) != 1 {
		return Zone{}, ReasonInvalidAutofillSelection
	}
	return selection.Zones[0], ReasonNone
}

func (p *autofillPlugin) AllowDispatch(cmd Command) CancelledReason {
	switch c := cmd.(type) {
	case AutofillSelect:
		if _, reason := p.source(); reason != ReasonNone {
			return reason
		}
		return p.checkTarget(p.env.getters.ActiveSheetID(), ZoneOf(c.Col, c.Row))
	case Autofill:
		if p.pending == nil {
			return ReasonInvalidAutofillSelection
		}
	case AutofillAuto:
		if _, _, ok := p.autoTarget(); !ok {
			return ReasonInvalidAutofillSelection
		}
	}
	return ReasonNone
}

func (p *autofillPlugin) Handle(cmd Command) {
	switch c := cmd.(type) {
	case AutofillSelect:
		source, _ := p.source()
		p.pending = nil
		if dir, target, ok := autofillTarget(source, c.Col, c.Row); ok {
			p.pending = &autofillSelection{
				sheetID:   p.env.getters.ActiveSheetID(),
				source:    source,
				target:    target,
				direction: dir,
			}
		}
	case Autofill:
		p.fill(*p.pending)
		p.pending = nil
	case AutofillAuto:
		col, row, _ := p.autoTarget()
		p.env.dispatch(AutofillSelect{Col: col, Row: row})
		if p.pending != nil {
			p.env.dispatch(Autofill{})
		}
	case ActivateSheet, DeleteSheet:
		p.pending = nil
	}
}

// autoTarget extends the selection down along the filled cells of the
// column next to it, left first
func (p *autofillPlugin) autoTarget() (int, int, bool) {
	source, reason := p.source()
	if reason != ReasonNone {
		return 0, 0, false
	}
	g := p.env.getters
	sheetID := g.ActiveSheetID()
	sheet, ok := g.SheetByID(sheetID)
	if !ok {
		return 0, 0, false
	}
	for _, col := range []int{source.Left - 1, source.Right + 1} {
		if col < 0 || col >= sheet.Cols {
			continue
		}
		row := source.Bottom
		for row+1 < sheet.Rows {
			if cell, ok := g.CellAt(sheetID, col, row+1); !ok || cell.Content == "" {
				break
			}
			row++
		}
		if row > source.Bottom {
			return source.Left, row, true
		}
	}
	return 0, 0, false
}

func (p *autofillPlugin) fill(sel autofillSelection) {
	g := p.env.getters
	cells := generateAutofill(sel.source, sel.direction, sel.target, func(col, row int) Cell {
		cell, _ := g.CellAt(sel.sheetID, col, row)
		return cell
	})
	for _, fc := range cells {
		content, style, border, format := fc.Cell.Content, fc.Cell.Style, fc.Cell.Border, fc.Cell.Format
		p.env.dispatch(UpdateCell{
			SheetID: sel.sheetID,
			Col:     fc.Position.Col,
			Row:     fc.Position.Row,
			Content: &content,
			Style:   &style,
			Border:  &border,
			Format:  &format,
		})
	}
	p.copyConditionalFormats(sel.sheetID, cells)
	p.env.dispatch(SetSelection{
		Anchor: Position{Col: sel.source.Left, Row: sel.source.Top},
		Zones:  []Zone{sel.source.Union(sel.target)},
	})
}

// copyConditionalFormats gives every generated cell the conditional format
// membership of its source cell. zones are extended, never duplicated.
func (p *autofillPlugin) copyConditionalFormats(sheetID string, cells []filledCell) {
	for _, cf := range p.env.getters.ConditionalFormats(sheetID) {
		zones, err := ParseZones(cf.Ranges)
		if err != nil {
			continue
		}
		contains := func(pos Position) bool {
			return slices.ContainsFunc(zones, func(z Zone) bool { return z.Contains(pos.Col, pos.Row) })
		}
		var added, removed []Zone
		for _, fc := range cells {
			inSource, inTarget := contains(fc.Source), contains(fc.Position)
			switch {
			case inSource && !inTarget:
				added = append(added, ZoneOf(fc.Position.Col, fc.Position.Row))
			case !inSource && inTarget:
				removed = append(removed, ZoneOf(fc.Position.Col, fc.Position.Row))
			}
		}
		if len(added) == 0 && len(removed) == 0 {
			continue
		}
		next := RecomputeZones(append(zones, added...), removed)
		if len(next) == 0 {
			p.env.dispatch(RemoveConditionalFormat{SheetID: sheetID, ID: cf.ID})
			continue
		}
		cf.Ranges = ZonesToXC(next)
		p.env.dispatch(AddConditionalFormat{SheetID: sheetID, CF: cf})
	}
}
