package spreadsheet

import (
	"slices"

	"github.com/google/go-cmp/cmp"
)

type cfCacheEntry struct {
	evaluations uint64
	revision    uint64
	styles      map[Position]Style
}

// cfPlugin owns the conditional formats of every sheet and caches the
// computed styles until a value or a rule changes
type cfPlugin struct {
	basePlugin
	cfs      *mapSlot[string, []ConditionalFormat]
	revision uint64
	cache    map[string]cfCacheEntry
}

func newCFPlugin(env *pluginEnv) *cfPlugin {
	p := &cfPlugin{
		basePlugin: basePlugin{env: env},
		cfs: newMapSlot[string, []ConditionalFormat]("conditionalFormats", func(a, b []ConditionalFormat) bool {
			return cmp.Equal(a, b)
		}),
		cache: make(map[string]cfCacheEntry),
	}
	p.cfs.onChange = func(string, []ConditionalFormat, bool) {
		p.revision++
	}
	return p
}

func (p *cfPlugin) list(sheetID string) []ConditionalFormat {
	cfs, _ := p.cfs.get(sheetID)
	return slices.Clone(cfs)
}

// styleAt returns the conditional style of a cell, false when no rule
// applies to it
func (p *cfPlugin) styleAt(sheetID string, col, row int) (Style, bool) {
	cfs, ok := p.cfs.get(sheetID)
	if !ok || len(cfs) == 0 {
		return Style{}, false
	}
	evaluator := p.env.evaluator
	entry, cached := p.cache[sheetID]
	if !cached || entry.evaluations != evaluator.Evaluations() || entry.revision != p.revision {
		entry = cfCacheEntry{
			evaluations: evaluator.Evaluations(),
			revision:    p.revision,
			styles: computeConditionalStyles(cfs, cfInputs{
				value: func(col, row int) Primitive {
					return evaluator.Value(CellAddress{SheetID: sheetID, Col: col, Row: row})
				},
				formula: func(text string) Primitive {
					return evaluator.EvaluateFormula(sheetID, text)
				},
			}),
		}
		p.cache[sheetID] = entry
	}
	style, ok := entry.styles[Position{Col: col, Row: row}]
	return style, ok
}

func (p *cfPlugin) AllowDispatch(cmd Command) CancelledReason {
	switch c := cmd.(type) {
	case AddConditionalFormat:
		if reason := p.checkSheet(c.SheetID); reason != ReasonNone {
			return reason
		}
		zones, err := ParseZones(c.CF.Ranges)
		if err != nil {
			return ReasonInvalidCommand
		}
		if reason := p.checkTarget(c.SheetID, zones...); reason != ReasonNone {
			return reason
		}
		return p.checkRule(c.SheetID, c.CF.Rule)
	case RemoveConditionalFormat:
		if reason := p.checkSheet(c.SheetID); reason != ReasonNone {
			return reason
		}
		if p.indexOf(c.SheetID, c.ID) < 0 {
			return ReasonUnknownConditionalFormat
		}
	}
	return ReasonNone
}

func (p *cfPlugin) checkRule(sheetID string, rule CFRule) CancelledReason {
	switch rule.Type {
	case RuleCellIs:
		return p.checkCellIs(sheetID, rule)
	case RuleColorScale:
		return p.checkColorScale(sheetID, rule)
	}
	return ReasonInvalidCFRule
}

func (p *cfPlugin) checkCellIs(sheetID string, rule CFRule) CancelledReason {
	op, ok := canonicalOperator(string(rule.Operator))
	if !ok {
		return ReasonInvalidCFOperator
	}
	if len(rule.Values) < 1 || rule.Values[0] == "" {
		return ReasonFirstArgMissing
	}
	if op.operandCount() == 2 && (len(rule.Values) < 2 || rule.Values[1] == "") {
		return ReasonSecondArgMissing
	}
	for _, value := range rule.Values[:op.operandCount()] {
		if kindOfContent(value) != CellKindFormula {
			continue
		}
		compiled := p.env.evaluator.Compile(value, CellAddress{SheetID: sheetID})
		if compiled.Err != nil {
			return ReasonValueInvalidFormula
		}
		if compiled.Async {
			return ReasonValueAsyncFormula
		}
	}
	return ReasonNone
}

type thresholdReasons struct {
	nan, invalidFormula, async CancelledReason
}

var (
	minReasons = thresholdReasons{ReasonMinNaN, ReasonMinInvalidFormula, ReasonMinAsyncFormula}
	midReasons = thresholdReasons{ReasonMidNaN, ReasonMidInvalidFormula, ReasonMidAsyncFormula}
	maxReasons = thresholdReasons{ReasonMaxNaN, ReasonMaxInvalidFormula, ReasonMaxAsyncFormula}
)

func (p *cfPlugin) checkColorScale(sheetID string, rule CFRule) CancelledReason {
	if rule.Minimum == nil || rule.Maximum == nil {
		return ReasonInvalidCFRule
	}
	checks := []func() CancelledReason{
		func() CancelledReason { return p.checkThreshold(sheetID, *rule.Minimum, minReasons) },
		func() CancelledReason { return p.checkThreshold(sheetID, *rule.Maximum, maxReasons) },
	}
	if rule.Midpoint != nil {
		checks = append(checks, func() CancelledReason {
			// the midpoint cannot be the range's own extreme
			if rule.Midpoint.Type == ThresholdValue {
				return ReasonInvalidCFThresholdType
			}
			return p.checkThreshold(sheetID, *rule.Midpoint, midReasons)
		})
	}
	checks = append(checks,
		func() CancelledReason { return checkOrder(rule.Minimum, rule.Maximum, ReasonMinBiggerThanMax) },
		func() CancelledReason { return checkOrder(rule.Minimum, rule.Midpoint, ReasonMinBiggerThanMid) },
		func() CancelledReason { return checkOrder(rule.Midpoint, rule.Maximum, ReasonMidBiggerThanMax) },
	)
	return firstReason(checks...)
}

func (p *cfPlugin) checkThreshold(sheetID string, t ColorScaleThreshold, reasons thresholdReasons) CancelledReason {
	switch t.Type {
	case ThresholdValue:
		return ReasonNone
	case ThresholdNumber, ThresholdPercentage, ThresholdPercentile:
		if _, ok := parseThresholdNumber(t.Value); !ok {
			return reasons.nan
		}
		return ReasonNone
	case ThresholdFormula:
		compiled := p.env.evaluator.Compile(t.Value, CellAddress{SheetID: sheetID})
		if compiled.Err != nil {
			return reasons.invalidFormula
		}
		if compiled.Async {
			return reasons.async
		}
		return ReasonNone
	}
	return ReasonInvalidCFThresholdType
}

// checkOrder compares two thresholds of the same numeric type
func checkOrder(lower, upper *ColorScaleThreshold, reason CancelledReason) CancelledReason {
	if lower == nil || upper == nil || lower.Type != upper.Type {
		return ReasonNone
	}
	switch lower.Type {
	case ThresholdNumber, ThresholdPercentage, ThresholdPercentile:
	default:
		return ReasonNone
	}
	a, _ := parseThresholdNumber(lower.Value)
	b, _ := parseThresholdNumber(upper.Value)
	if a >= b {
		return reason
	}
	return ReasonNone
}

func (p *cfPlugin) indexOf(sheetID, id string) int {
	cfs, _ := p.cfs.get(sheetID)
	return slices.IndexFunc(cfs, func(cf ConditionalFormat) bool { return cf.ID == id })
}

func (p *cfPlugin) Handle(cmd Command) {
	h := p.env.history
	switch c := cmd.(type) {
	case AddConditionalFormat:
		cf := normalizeCF(c.CF)
		cfs := p.list(c.SheetID)
		if i := p.indexOf(c.SheetID, cf.ID); i >= 0 {
			cfs[i] = cf
		} else {
			cfs = append(cfs, cf)
		}
		setEntry(h, p.cfs, c.SheetID, cfs)

	case RemoveConditionalFormat:
		i := p.indexOf(c.SheetID, c.ID)
		p.set(c.SheetID, slices.Delete(p.list(c.SheetID), i, i+1))

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
		deleteEntry(h, p.cfs, c.SheetID)
	case DuplicateSheet:
		cfs := p.list(c.SheetID)
		if len(cfs) == 0 {
			return
		}
		for i := range cfs {
			cfs[i].ID = p.env.newID()
			cfs[i].Ranges = slices.Clone(cfs[i].Ranges)
		}
		setEntry(h, p.cfs, c.SheetIDTo, cfs)
	}
}

// normalizeCF stores zones and operators in their canonical spelling
func normalizeCF(cf ConditionalFormat) ConditionalFormat {
	zones, _ := ParseZones(cf.Ranges)
	cf.Ranges = ZonesToXC(zones)
	cf.Rule.Values = slices.Clone(cf.Rule.Values)
	if op, ok := canonicalOperator(string(cf.Rule.Operator)); ok {
		cf.Rule.Operator = op
	}
	return cf
}

// adjust maps the zones of every format of the sheet. a format left without
// zones is dropped.
func (p *cfPlugin) adjust(sheetID string, fn func(Zone) (Zone, bool)) {
	cfs := p.list(sheetID)
	if len(cfs) == 0 {
		return
	}
	next := make([]ConditionalFormat, 0, len(cfs))
	for _, cf := range cfs {
		zones, err := ParseZones(cf.Ranges)
		if err != nil {
			continue
		}
		var moved []Zone
		for _, z := range zones {
			if m, keep := fn(z); keep {
				moved = append(moved, m)
			}
		}
		if len(moved) == 0 {
			continue
		}
		cf.Ranges = ZonesToXC(moved)
		next = append(next, cf)
	}
	p.set(sheetID, next)
}

func (p *cfPlugin) set(sheetID string, cfs []ConditionalFormat) {
	if len(cfs) == 0 {
		deleteEntry(p.env.history, p.cfs, sheetID)
		return
	}
	setEntry(p.env.history, p.cfs, sheetID, cfs)
}

func (p *cfPlugin) load(data *WorkbookData) {
	for _, sheet := range data.Sheets {
		if len(sheet.ConditionalFormats) > 0 {
			p.cfs.write(sheet.ID, slices.Clone(sheet.ConditionalFormats), true)
		}
	}
}

func (p *cfPlugin) export(data *WorkbookData) {
	for i := range data.Sheets {
		data.Sheets[i].ConditionalFormats = p.list(data.Sheets[i].ID)
		if data.Sheets[i].ConditionalFormats == nil {
			data.Sheets[i].ConditionalFormats = []ConditionalFormat{}
		}
	}
}
