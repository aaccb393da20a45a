package spreadsheet

import "slices"

type mergesPlugin struct {
	basePlugin
	merges *mapSlot[string, []Zone]
}

func newMergesPlugin(env *pluginEnv) *mergesPlugin {
	return &mergesPlugin{
		basePlugin: basePlugin{env: env},
		merges:     newMapSlot[string, []Zone]("merges", slices.Equal[[]Zone]),
	}
}

func (p *mergesPlugin) list(sheetID string) []Zone {
	zones, _ := p.merges.get(sheetID)
	return slices.Clone(zones)
}

func (p *mergesPlugin) mergeAt(sheetID string, col, row int) (Zone, bool) {
	zones, _ := p.merges.get(sheetID)
	for _, z := range zones {
		if z.Contains(col, row) {
			return z, true
		}
	}
	return Zone{}, false
}

func (p *mergesPlugin) AllowDispatch(cmd Command) CancelledReason {
	switch c := cmd.(type) {
	case AddMerge:
		zone := c.Zone.Canonical()
		if reason := p.checkTarget(c.SheetID, zone); reason != ReasonNone {
			return reason
		}
		if zone.Width() == 1 && zone.Height() == 1 {
			return ReasonInvalidCommand
		}
		zones, _ := p.merges.get(c.SheetID)
		for _, z := range zones {
			if z.Overlaps(zone) {
				return ReasonMergeOverlap
			}
		}
	case RemoveMerge:
		if reason := p.checkSheet(c.SheetID); reason != ReasonNone {
			return reason
		}
		zones, _ := p.merges.get(c.SheetID)
		if !slices.Contains(zones, c.Zone.Canonical()) {
			return ReasonInvalidCommand
		}
	}
	return ReasonNone
}

func (p *mergesPlugin) Handle(cmd Command) {
	h := p.env.history
	switch c := cmd.(type) {
	case AddMerge:
		zone := c.Zone.Canonical()
		zones, _ := p.merges.get(c.SheetID)
		setEntry(h, p.merges, c.SheetID, append(slices.Clone(zones), zone))
		// only the top-left cell keeps its content
		rest := RecomputeZones([]Zone{zone}, []Zone{ZoneOf(zone.Left, zone.Top)})
		if len(rest) > 0 {
			p.env.dispatch(DeleteContent{SheetID: c.SheetID, Target: rest})
		}

	case RemoveMerge:
		zones, _ := p.merges.get(c.SheetID)
		zone := c.Zone.Canonical()
		p.set(c.SheetID, slices.DeleteFunc(slices.Clone(zones), func(z Zone) bool { return z == zone }))

	case AddColumns:
		at := insertionIndex(c.Base, c.Position)
		p.adjust(c.SheetID, func(z Zone) (Zone, bool) { return insertInZone(z, AxisCol, at, c.Quantity), true })
	case AddRows:
		at := insertionIndex(c.Base, c.Position)
		p.adjust(c.SheetID, func(z Zone) (Zone, bool) { return insertInZone(z, AxisRow, at, c.Quantity), true })
	case RemoveColumns:
		removed := uniqueSorted(c.Columns)
		p.adjust(c.SheetID, func(z Zone) (Zone, bool) { return removeFromZone(z, AxisCol, removed) })
	case RemoveRows:
		removed := uniqueSorted(c.Rows)
		p.adjust(c.SheetID, func(z Zone) (Zone, bool) { return removeFromZone(z, AxisRow, removed) })

	case DeleteSheet:
		deleteEntry(h, p.merges, c.SheetID)
	case DuplicateSheet:
		if zones, ok := p.merges.get(c.SheetID); ok {
			setEntry(h, p.merges, c.SheetIDTo, slices.Clone(zones))
		}
	}
}

// adjust maps every merge of the sheet, dropping the ones that vanish or
// shrink to a single cell
func (p *mergesPlugin) adjust(sheetID string, fn func(Zone) (Zone, bool)) {
	zones, ok := p.merges.get(sheetID)
	if !ok {
		return
	}
	next := make([]Zone, 0, len(zones))
	for _, z := range zones {
		if moved, keep := fn(z); keep && (moved.Width() > 1 || moved.Height() > 1) {
			next = append(next, moved)
		}
	}
	p.set(sheetID, next)
}

func (p *mergesPlugin) set(sheetID string, zones []Zone) {
	if len(zones) == 0 {
		deleteEntry(p.env.history, p.merges, sheetID)
		return
	}
	setEntry(p.env.history, p.merges, sheetID, zones)
}

func (p *mergesPlugin) load(data *WorkbookData) error {
	for _, sheet := range data.Sheets {
		if len(sheet.Merges) == 0 {
			continue
		}
		zones, err := ParseZones(sheet.Merges)
		if err != nil {
			return err
		}
		p.merges.write(sheet.ID, zones, true)
	}
	return nil
}

func (p *mergesPlugin) export(data *WorkbookData) {
	for i := range data.Sheets {
		data.Sheets[i].Merges = ZonesToXC(p.list(data.Sheets[i].ID))
	}
}
