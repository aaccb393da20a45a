package spreadsheet

import "slices"

// Selection is the selected zones of the active sheet. Anchor is the active
// cell and lies inside one of the zones.
type Selection struct {
	Anchor Position `json:"anchor"`
	Zones  []Zone   `json:"zones"`
}

// selectionPlugin holds UI state only, selection changes are never part of
// the undo history
type selectionPlugin struct {
	basePlugin
	sheetID   string
	selection Selection
}

func newSelectionPlugin(env *pluginEnv) *selectionPlugin {
	p := &selectionPlugin{basePlugin: basePlugin{env: env}}
	p.reset("")
	return p
}

func (p *selectionPlugin) reset(sheetID string) {
	p.sheetID = sheetID
	p.selection = Selection{Zones: []Zone{ZoneOf(0, 0)}}
}

func (p *selectionPlugin) current() Selection {
	return Selection{Anchor: p.selection.Anchor, Zones: slices.Clone(p.selection.Zones)}
}

func (p *selectionPlugin) AllowDispatch(cmd Command) CancelledReason {
	active := p.env.getters.ActiveSheetID()
	switch c := cmd.(type) {
	case SelectCell:
		return p.checkTarget(active, ZoneOf(c.Col, c.Row))
	case SetSelection:
		if len(c.Zones) == 0 {
			return ReasonMalformedSelection
		}
		inside := false
		for _, z := range c.Zones {
			if z.Canonical().Contains(c.Anchor.Col, c.Anchor.Row) {
				inside = true
			}
		}
		if !inside {
			return ReasonMalformedSelection
		}
		return p.checkTarget(active, canonicalZones(c.Zones)...)
	}
	return ReasonNone
}

func (p *selectionPlugin) Handle(cmd Command) {
	switch c := cmd.(type) {
	case SelectCell:
		zone := ZoneOf(c.Col, c.Row)
		if merge, ok := p.env.getters.MergeAt(p.env.getters.ActiveSheetID(), c.Col, c.Row); ok {
			zone = merge
		}
		p.sheetID = p.env.getters.ActiveSheetID()
		p.selection = Selection{Anchor: Position{Col: c.Col, Row: c.Row}, Zones: []Zone{zone}}
	case SetSelection:
		p.sheetID = p.env.getters.ActiveSheetID()
		p.selection = Selection{Anchor: c.Anchor, Zones: canonicalZones(c.Zones)}
	case ActivateSheet:
		p.reset(c.SheetIDTo)
	}
}

// Finalize follows the active sheet and keeps the selection inside it
func (p *selectionPlugin) Finalize() {
	active := p.env.getters.ActiveSheetID()
	if p.sheetID != active {
		p.reset(active)
		return
	}
	sheet, ok := p.env.getters.SheetByID(active)
	if !ok {
		return
	}
	clamp := func(v, limit int) int { return min(max(v, 0), limit-1) }
	zones := make([]Zone, 0, len(p.selection.Zones))
	for _, z := range p.selection.Zones {
		zones = append(zones, Zone{
			Top:    clamp(z.Top, sheet.Rows),
			Left:   clamp(z.Left, sheet.Cols),
			Bottom: clamp(z.Bottom, sheet.Rows),
			Right:  clamp(z.Right, sheet.Cols),
		})
	}
	p.selection.Zones = zones
	p.selection.Anchor = Position{
		Col: clamp(p.selection.Anchor.Col, sheet.Cols),
		Row: clamp(p.selection.Anchor.Row, sheet.Rows),
	}
}

func canonicalZones(zones []Zone) []Zone {
	out := make([]Zone, len(zones))
	for i, z := range zones {
		out[i] = z.Canonical()
	}
	return out
}
