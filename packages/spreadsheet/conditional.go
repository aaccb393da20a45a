package spreadsheet

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// CFOperator is the comparison of a CellIsRule
type CFOperator string

const (
	OpEqual              CFOperator = "Equal"
	OpNotEqual           CFOperator = "NotEqual"
	OpContainsText       CFOperator = "ContainsText"
	OpNotContains        CFOperator = "NotContains"
	OpBeginsWith         CFOperator = "BeginsWith"
	OpEndsWith           CFOperator = "EndsWith"
	OpBetween            CFOperator = "Between"
	OpNotBetween         CFOperator = "NotBetween"
	OpGreaterThan        CFOperator = "GreaterThan"
	OpGreaterThanOrEqual CFOperator = "GreaterThanOrEqual"
	OpLessThan           CFOperator = "LessThan"
	OpLessThanOrEqual    CFOperator = "LessThanOrEqual"
)

var cfOperators = []CFOperator{
	OpEqual, OpNotEqual, OpContainsText, OpNotContains, OpBeginsWith, OpEndsWith,
	OpBetween, OpNotBetween, OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual,
}

// canonicalOperator matches name case-insensitively against the known
// operators
func canonicalOperator(name string) (CFOperator, bool) {
	for _, op := range cfOperators {
		if strings.EqualFold(string(op), name) {
			return op, true
		}
	}
	return "", false
}

func (op CFOperator) operandCount() int {
	if op == OpBetween || op == OpNotBetween {
		return 2
	}
	return 1
}

// Rule types
const (
	RuleCellIs     = "CellIsRule"
	RuleColorScale = "ColorScaleRule"
)

// Threshold types of a color scale
const (
	ThresholdValue      = "value"
	ThresholdNumber     = "number"
	ThresholdPercentage = "percentage"
	ThresholdPercentile = "percentile"
	ThresholdFormula    = "formula"
)

// ColorScaleThreshold is one point of a color scale. Color is 0xRRGGBB.
type ColorScaleThreshold struct {
	Type  string `json:"type" mapstructure:"type"`
	Value string `json:"value,omitempty" mapstructure:"value"`
	Color int    `json:"color" mapstructure:"color"`
}

// CFRule is tagged by Type. CellIsRule uses Operator, Values and Style,
// ColorScaleRule uses the thresholds.
type CFRule struct {
	Type     string               `json:"type" mapstructure:"type"`
	Operator CFOperator           `json:"operator,omitempty" mapstructure:"operator"`
	Values   []string             `json:"values,omitempty" mapstructure:"values"`
	Style    Style                `json:"style,omitzero" mapstructure:"style"`
	Minimum  *ColorScaleThreshold `json:"minimum,omitempty" mapstructure:"minimum"`
	Midpoint *ColorScaleThreshold `json:"midpoint,omitempty" mapstructure:"midpoint"`
	Maximum  *ColorScaleThreshold `json:"maximum,omitempty" mapstructure:"maximum"`
}

// ConditionalFormat applies Rule to the cells of Ranges
type ConditionalFormat struct {
	ID     string   `json:"id" mapstructure:"id"`
	Ranges []string `json:"ranges" mapstructure:"ranges"`
	Rule   CFRule   `json:"rule" mapstructure:"rule"`
}

// cfInputs is what rule evaluation reads
type cfInputs struct {
	value   func(col, row int) Primitive
	formula func(text string) Primitive
}

// operand resolves a rule value: formulas are evaluated, anything else is
// taken literally
func (in cfInputs) operand(raw string) Primitive {
	if strings.HasPrefix(raw, "=") {
		return in.formula(raw)
	}
	return literalValue(raw)
}

// computeConditionalStyles evaluates the formats of one sheet in order and
// returns the merged style of every cell at least one rule applies to
func computeConditionalStyles(cfs []ConditionalFormat, in cfInputs) map[Position]Style {
	styles := make(map[Position]Style)
	apply := func(pos Position, s Style) {
		styles[pos] = styles[pos].mergeMissing(s)
	}
	for _, cf := range cfs {
		zones, err := ParseZones(cf.Ranges)
		if err != nil {
			continue
		}
		switch cf.Rule.Type {
		case RuleCellIs:
			operands := make([]Primitive, len(cf.Rule.Values))
			for i, raw := range cf.Rule.Values {
				operands[i] = in.operand(raw)
			}
			for _, zone := range zones {
				for pos := range zone.Positions() {
					if cellIsMatches(cf.Rule.Operator, in.value(pos.Col, pos.Row), operands) {
						apply(pos, cf.Rule.Style)
					}
				}
			}
		case RuleColorScale:
			for pos, color := range colorScale(cf.Rule, zones, in) {
				apply(pos, Style{FillColor: color})
			}
		}
	}
	return styles
}

func cellIsMatches(op CFOperator, value Primitive, operands []Primitive) bool {
	if value == nil || value == "" {
		return false
	}
	if len(operands) < op.operandCount() {
		return false
	}

	switch op {
	case OpEqual, OpNotEqual:
		equal := false
		left, leftOk := value.(float64)
		right, rightOk := toNumber(operands[0])
		if leftOk && rightOk {
			equal = left == right
		} else {
			equal = strings.EqualFold(toString(value), toString(operands[0]))
		}
		return equal == (op == OpEqual)
	case OpContainsText, OpNotContains, OpBeginsWith, OpEndsWith:
		text := strings.ToLower(toString(value))
		needle := strings.ToLower(toString(operands[0]))
		switch op {
		case OpContainsText:
			return strings.Contains(text, needle)
		case OpNotContains:
			return !strings.Contains(text, needle)
		case OpBeginsWith:
			return strings.HasPrefix(text, needle)
		default:
			return strings.HasSuffix(text, needle)
		}
	}

	x, ok := value.(float64)
	if !ok {
		return false
	}
	a, ok := toNumber(operands[0])
	if !ok {
		return false
	}
	switch op {
	case OpGreaterThan:
		return x > a
	case OpGreaterThanOrEqual:
		return x >= a
	case OpLessThan:
		return x < a
	case OpLessThanOrEqual:
		return x <= a
	case OpBetween, OpNotBetween:
		b, ok := toNumber(operands[1])
		if !ok {
			return false
		}
		lo, hi := min(a, b), max(a, b)
		return (x >= lo && x <= hi) == (op == OpBetween)
	}
	return false
}

// colorScale returns the fill color of every numeric cell of zones lying
// between the resolved minimum and maximum
func colorScale(rule CFRule, zones []Zone, in cfInputs) map[Position]string {
	if rule.Minimum == nil || rule.Maximum == nil {
		return nil
	}
	values := make(map[Position]float64)
	for _, zone := range zones {
		for pos := range zone.Positions() {
			if v, ok := in.value(pos.Col, pos.Row).(float64); ok {
				values[pos] = v
			}
		}
	}
	if len(values) == 0 {
		return nil
	}
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		sorted = append(sorted, v)
	}
	slices.Sort(sorted)

	minValue, ok := resolveThreshold(*rule.Minimum, sorted, sorted[0], in)
	if !ok {
		return nil
	}
	maxValue, ok := resolveThreshold(*rule.Maximum, sorted, sorted[len(sorted)-1], in)
	if !ok || minValue > maxValue {
		return nil
	}
	var midValue float64
	if rule.Midpoint != nil {
		midValue, ok = resolveThreshold(*rule.Midpoint, sorted, (minValue+maxValue)/2, in)
		if !ok || midValue < minValue || midValue > maxValue {
			return nil
		}
	}

	out := make(map[Position]string, len(values))
	for pos, v := range values {
		if v < minValue || v > maxValue {
			continue
		}
		var color int
		switch {
		case rule.Midpoint == nil:
			color = interpolateColor(rule.Minimum.Color, rule.Maximum.Color, minValue, maxValue, v)
		case v <= midValue:
			color = interpolateColor(rule.Minimum.Color, rule.Midpoint.Color, minValue, midValue, v)
		default:
			color = interpolateColor(rule.Midpoint.Color, rule.Maximum.Color, midValue, maxValue, v)
		}
		out[pos] = colorHex(color)
	}
	return out
}

// resolveThreshold turns a threshold into a value. fallback is used by the
// "value" type: the smallest or largest value of the range.
func resolveThreshold(t ColorScaleThreshold, sorted []float64, fallback float64, in cfInputs) (float64, bool) {
	switch t.Type {
	case ThresholdValue:
		return fallback, true
	case ThresholdNumber:
		return parseThresholdNumber(t.Value)
	case ThresholdPercentage:
		p, ok := parseThresholdNumber(t.Value)
		if !ok {
			return 0, false
		}
		lo, hi := sorted[0], sorted[len(sorted)-1]
		return lo + (hi-lo)*p/100, true
	case ThresholdPercentile:
		p, ok := parseThresholdNumber(t.Value)
		if !ok {
			return 0, false
		}
		return percentile(sorted, p/100), true
	case ThresholdFormula:
		v, ok := in.formula(t.Value).(float64)
		return v, ok
	}
	return 0, false
}

func parseThresholdNumber(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// percentile interpolates linearly between the closest ranks, p in [0,1]
func percentile(sorted []float64, p float64) float64 {
	p = min(max(p, 0), 1)
	rank := p * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	return sorted[lower] + (sorted[upper]-sorted[lower])*(rank-float64(lower))
}

// interpolateColor blends every channel independently and rounds it
func interpolateColor(fromColor, toColor int, fromValue, toValue, v float64) int {
	if toValue == fromValue {
		return fromColor
	}
	t := (v - fromValue) / (toValue - fromValue)
	channel := func(shift uint) int {
		a := float64((fromColor >> shift) & 0xff)
		b := float64((toColor >> shift) & 0xff)
		return int(math.Round(a + (b-a)*t))
	}
	return channel(16)<<16 | channel(8)<<8 | channel(0)
}

func colorHex(color int) string {
	return fmt.Sprintf("#%06x", color&0xffffff)
}
