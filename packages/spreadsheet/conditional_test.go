package spreadsheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cellIsCF(ranges []string, op CFOperator, style Style, values ...string) ConditionalFormat {
	return ConditionalFormat{
		Ranges: ranges,
		Rule:   CFRule{Type: RuleCellIs, Operator: op, Values: values, Style: style},
	}
}

func colorScaleCF(ranges []string, minimum, midpoint, maximum *ColorScaleThreshold) ConditionalFormat {
	return ConditionalFormat{
		Ranges: ranges,
		Rule:   CFRule{Type: RuleColorScale, Minimum: minimum, Midpoint: midpoint, Maximum: maximum},
	}
}

func TestCellIsMatches(t *testing.T) {
	cases := []struct {
		name     string
		op       CFOperator
		value    Primitive
		operands []Primitive
		want     bool
	}{
		{"equal numbers", OpEqual, 2.0, []Primitive{2.0}, true},
		{"equal number and text", OpEqual, 2.0, []Primitive{"2"}, true},
		{"equal text ignores case", OpEqual, "Hello", []Primitive{"hello"}, true},
		{"not equal", OpNotEqual, 3.0, []Primitive{2.0}, true},
		{"contains", OpContainsText, "Spreadsheet", []Primitive{"SHEET"}, true},
		{"not contains", OpNotContains, "Spreadsheet", []Primitive{"cell"}, true},
		{"begins with", OpBeginsWith, "Spreadsheet", []Primitive{"spread"}, true},
		{"ends with", OpEndsWith, "Spreadsheet", []Primitive{"spread"}, false},
		{"contains a number", OpContainsText, 1234.0, []Primitive{"23"}, true},
		{"greater than", OpGreaterThan, 5.0, []Primitive{4.0}, true},
		{"greater than text value", OpGreaterThan, "5", []Primitive{4.0}, false},
		{"greater or equal", OpGreaterThanOrEqual, 4.0, []Primitive{4.0}, true},
		{"less than", OpLessThan, 4.0, []Primitive{4.0}, false},
		{"less or equal", OpLessThanOrEqual, 4.0, []Primitive{4.0}, true},
		{"between", OpBetween, 5.0, []Primitive{1.0, 10.0}, true},
		{"between reversed bounds", OpBetween, 5.0, []Primitive{10.0, 1.0}, true},
		{"not between", OpNotBetween, 5.0, []Primitive{1.0, 10.0}, false},
		{"between missing operand", OpBetween, 5.0, []Primitive{1.0}, false},
		{"empty cell never matches", OpEqual, nil, []Primitive{""}, false},
		{"empty text never matches", OpNotContains, "", []Primitive{"x"}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, cellIsMatches(c.op, c.value, c.operands))
		})
	}
}

func TestInterpolateColor(t *testing.T) {
	assert.Equal(t, 0xff00ff, interpolateColor(0xff00ff, 0x123456, 10, 20, 10))
	assert.Equal(t, 0x123456, interpolateColor(0xff00ff, 0x123456, 10, 20, 20))
	assert.Equal(t, 0x808080, interpolateColor(0x000000, 0xffffff, 0, 2, 1))
	assert.Equal(t, 0xabcdef, interpolateColor(0xabcdef, 0x000000, 5, 5, 5))
	assert.Equal(t, "#00ff00", colorHex(0x00ff00))
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 1.0, percentile(sorted, 0))
	assert.Equal(t, 3.0, percentile(sorted, 0.5))
	assert.Equal(t, 5.0, percentile(sorted, 1))
	assert.InDelta(t, 1.4, percentile(sorted, 0.1), 1e-9)
}

func TestColorScaleStyles(t *testing.T) {
	m := newTestModel(t, nil)
	setContent(t, m, "Sheet1", "A1", "10")
	setContent(t, m, "Sheet1", "A2", "15")
	setContent(t, m, "Sheet1", "A3", "20")
	setContent(t, m, "Sheet1", "A4", "text")

	cf := colorScaleCF([]string{"A1:A5"},
		&ColorScaleThreshold{Type: ThresholdValue, Color: 0xff00ff},
		nil,
		&ColorScaleThreshold{Type: ThresholdValue, Color: 0x123456},
	)
	require.True(t, m.Dispatch(AddConditionalFormat{SheetID: "Sheet1", CF: cf}).IsSuccess())

	g := m.Getters()
	style, ok := g.ConditionalStyleAt("Sheet1", 0, 0)
	require.True(t, ok)
	assert.Equal(t, "#ff00ff", style.FillColor)
	style, _ = g.ConditionalStyleAt("Sheet1", 0, 2)
	assert.Equal(t, "#123456", style.FillColor)
	style, _ = g.ConditionalStyleAt("Sheet1", 0, 1)
	assert.Equal(t, "#891aab", style.FillColor)

	_, ok = g.ConditionalStyleAt("Sheet1", 0, 3)
	assert.False(t, ok, "text cells get no color")
	_, ok = g.ConditionalStyleAt("Sheet1", 0, 4)
	assert.False(t, ok, "empty cells get no color")

	// values follow recomputation
	setContent(t, m, "Sheet1", "A3", "30")
	style, _ = g.ConditionalStyleAt("Sheet1", 0, 2)
	assert.Equal(t, "#123456", style.FillColor)
	style, _ = g.ConditionalStyleAt("Sheet1", 0, 1)
	assert.NotEqual(t, "#891aab", style.FillColor)
}

func TestColorScaleThresholdTypes(t *testing.T) {
	m := newTestModel(t, nil)
	for i, v := range []string{"0", "25", "50", "75", "100"} {
		setContent(t, m, "Sheet1", ToXC(0, i), v)
	}
	setContent(t, m, "Sheet1", "B1", "80")

	cf := colorScaleCF([]string{"A1:A5"},
		&ColorScaleThreshold{Type: ThresholdNumber, Value: "25", Color: 0x000000},
		&ColorScaleThreshold{Type: ThresholdPercentile, Value: "50", Color: 0x0000ff},
		&ColorScaleThreshold{Type: ThresholdFormula, Value: "=B1", Color: 0xff0000},
	)
	require.True(t, m.Dispatch(AddConditionalFormat{SheetID: "Sheet1", CF: cf}).IsSuccess())

	g := m.Getters()
	_, ok := g.ConditionalStyleAt("Sheet1", 0, 0)
	assert.False(t, ok, "below the minimum")
	style, _ := g.ConditionalStyleAt("Sheet1", 0, 1)
	assert.Equal(t, "#000000", style.FillColor)
	style, _ = g.ConditionalStyleAt("Sheet1", 0, 2)
	assert.Equal(t, "#0000ff", style.FillColor)
	_, ok = g.ConditionalStyleAt("Sheet1", 0, 4)
	assert.False(t, ok, "above the maximum")

	setContent(t, m, "Sheet1", "B1", "100")
	style, _ = g.ConditionalStyleAt("Sheet1", 0, 4)
	assert.Equal(t, "#ff0000", style.FillColor)
}

func TestConditionalStylesMergePerField(t *testing.T) {
	m := newTestModel(t, nil)
	setContent(t, m, "Sheet1", "A1", "5")
	require.True(t, m.Dispatch(AddConditionalFormat{SheetID: "Sheet1", CF: cellIsCF([]string{"A1"}, OpGreaterThan, Style{FillColor: "#ff0000"}, "1")}).IsSuccess())
	require.True(t, m.Dispatch(AddConditionalFormat{SheetID: "Sheet1", CF: cellIsCF([]string{"A1:B2"}, OpLessThan, Style{Bold: true, FillColor: "#00ff00"}, "10")}).IsSuccess())

	style, ok := m.Getters().ConditionalStyleAt("Sheet1", 0, 0)
	require.True(t, ok)
	assert.Equal(t, Style{Bold: true, FillColor: "#ff0000"}, style)
}

func TestCellIsRuleWithFormulaOperand(t *testing.T) {
	m := newTestModel(t, nil)
	setContent(t, m, "Sheet1", "A1", "5")
	setContent(t, m, "Sheet1", "C1", "4")
	require.True(t, m.Dispatch(AddConditionalFormat{SheetID: "Sheet1", CF: cellIsCF([]string{"A1"}, OpGreaterThan, Style{Italic: true}, "=C1")}).IsSuccess())

	_, ok := m.Getters().ConditionalStyleAt("Sheet1", 0, 0)
	assert.True(t, ok)

	setContent(t, m, "Sheet1", "C1", "6")
	_, ok = m.Getters().ConditionalStyleAt("Sheet1", 0, 0)
	assert.False(t, ok)
}

func TestConditionalFormatValidation(t *testing.T) {
	registry := NewDefaultFunctionRegistry(&WallClock{}, &DefaultRandomGenerator{})
	registry.MustRegister("WAIT", FunctionSpec{
		Description: "never settles",
		Returns:     []ArgType{ArgNumber},
		Async:       true,
		Compute:     func(args ...Primitive) (Primitive, error) { return NewFuture(), nil },
	})
	number := func(v string) *ColorScaleThreshold {
		return &ColorScaleThreshold{Type: ThresholdNumber, Value: v}
	}
	formula := func(v string) *ColorScaleThreshold {
		return &ColorScaleThreshold{Type: ThresholdFormula, Value: v}
	}
	valueType := &ColorScaleThreshold{Type: ThresholdValue}
	style := Style{Bold: true}

	cases := []struct {
		name   string
		cf     ConditionalFormat
		reason CancelledReason
	}{
		{"min bigger than max", colorScaleCF([]string{"A1:A5"}, number("20"), nil, number("10")), ReasonMinBiggerThanMax},
		{"min equal to max", colorScaleCF([]string{"A1:A5"}, number("10"), nil, number("10")), ReasonMinBiggerThanMax},
		{"min bigger than mid", colorScaleCF([]string{"A1:A5"}, number("5"), number("4"), number("10")), ReasonMinBiggerThanMid},
		{"mid bigger than max", colorScaleCF([]string{"A1:A5"}, number("1"), number("40"), number("10")), ReasonMidBiggerThanMax},
		{"min not a number", colorScaleCF([]string{"A1:A5"}, number(""), nil, valueType), ReasonMinNaN},
		{"mid not a number", colorScaleCF([]string{"A1:A5"}, valueType, number("abc"), valueType), ReasonMidNaN},
		{"max not a number", colorScaleCF([]string{"A1:A5"}, valueType, nil, number("1O")), ReasonMaxNaN},
		{"invalid min formula", colorScaleCF([]string{"A1:A5"}, formula("=SUM("), nil, valueType), ReasonMinInvalidFormula},
		{"invalid max formula", colorScaleCF([]string{"A1:A5"}, valueType, nil, formula("=1+")), ReasonMaxInvalidFormula},
		{"async mid formula", colorScaleCF([]string{"A1:A5"}, valueType, formula("=WAIT()"), valueType), ReasonMidAsyncFormula},
		{"value midpoint", colorScaleCF([]string{"A1:A5"}, valueType, valueType, valueType), ReasonInvalidCFThresholdType},
		{"unknown threshold type", colorScaleCF([]string{"A1:A5"}, &ColorScaleThreshold{Type: "median"}, nil, valueType), ReasonInvalidCFThresholdType},
		{"missing maximum", colorScaleCF([]string{"A1:A5"}, valueType, nil, nil), ReasonInvalidCFRule},
		{"unknown rule", ConditionalFormat{Ranges: []string{"A1"}, Rule: CFRule{Type: "DataBar"}}, ReasonInvalidCFRule},
		{"unknown operator", cellIsCF([]string{"A1"}, "Around", style, "1"), ReasonInvalidCFOperator},
		{"first value missing", cellIsCF([]string{"A1"}, OpEqual, style), ReasonFirstArgMissing},
		{"second value missing", cellIsCF([]string{"A1"}, OpBetween, style, "1", ""), ReasonSecondArgMissing},
		{"invalid value formula", cellIsCF([]string{"A1"}, OpEqual, style, "=SUM("), ReasonValueInvalidFormula},
		{"async value formula", cellIsCF([]string{"A1"}, OpEqual, style, "=WAIT()"), ReasonValueAsyncFormula},
		{"bad range", cellIsCF([]string{"A1:"}, OpEqual, style, "1"), ReasonInvalidCommand},
		{"range out of sheet", cellIsCF([]string{"A1:A500"}, OpEqual, style, "1"), ReasonTargetOutOfSheet},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := newTestModel(t, nil, WithFunctions(registry))
			result := m.Dispatch(AddConditionalFormat{SheetID: "Sheet1", CF: c.cf})
			assert.Equal(t, c.reason, result.Reason)
			assert.Empty(t, m.Getters().ConditionalFormats("Sheet1"))
		})
	}

	t.Run("message", func(t *testing.T) {
		m := newTestModel(t, nil)
		result := m.Dispatch(AddConditionalFormat{SheetID: "Sheet1", CF: colorScaleCF([]string{"A1:A5"}, number("20"), nil, number("10"))})
		assert.Equal(t, "Minimum must be smaller then Maximum", result.Message())
	})
}

func TestConditionalFormatLifecycle(t *testing.T) {
	m := newTestModel(t, nil)
	g := m.Getters()

	cf := cellIsCF([]string{"B2:C3", "E1"}, "greaterthan", Style{Bold: true}, "0")
	require.True(t, m.Dispatch(AddConditionalFormat{SheetID: "Sheet1", CF: cf}).IsSuccess())
	cfs := g.ConditionalFormats("Sheet1")
	require.Len(t, cfs, 1)
	id := cfs[0].ID
	assert.NotEmpty(t, id)
	assert.Equal(t, OpGreaterThan, cfs[0].Rule.Operator)

	// same id replaces
	replaced := cellIsCF([]string{"A1"}, OpLessThan, Style{Italic: true}, "0")
	replaced.ID = id
	require.True(t, m.Dispatch(AddConditionalFormat{SheetID: "Sheet1", CF: replaced}).IsSuccess())
	cfs = g.ConditionalFormats("Sheet1")
	require.Len(t, cfs, 1)
	assert.Equal(t, []string{"A1"}, cfs[0].Ranges)

	require.True(t, m.Dispatch(Undo{}).IsSuccess())
	assert.Equal(t, []string{"B2:C3", "E1"}, g.ConditionalFormats("Sheet1")[0].Ranges)

	require.True(t, m.Dispatch(AddRows{SheetID: "Sheet1", Base: 0, Quantity: 1, Position: InsertBefore}).IsSuccess())
	assert.Equal(t, []string{"B3:C4", "E2"}, g.ConditionalFormats("Sheet1")[0].Ranges)

	require.True(t, m.Dispatch(RemoveColumns{SheetID: "Sheet1", Columns: []int{4}}).IsSuccess())
	assert.Equal(t, []string{"B3:C4"}, g.ConditionalFormats("Sheet1")[0].Ranges)

	require.True(t, m.Dispatch(RemoveColumns{SheetID: "Sheet1", Columns: []int{1, 2}}).IsSuccess())
	assert.Empty(t, g.ConditionalFormats("Sheet1"), "a format without zones is dropped")

	result := m.Dispatch(RemoveConditionalFormat{SheetID: "Sheet1", ID: id})
	assert.Equal(t, ReasonUnknownConditionalFormat, result.Reason)

	require.True(t, m.Dispatch(Undo{}).IsSuccess())
	require.True(t, m.Dispatch(RemoveConditionalFormat{SheetID: "Sheet1", ID: id}).IsSuccess())
	assert.Empty(t, g.ConditionalFormats("Sheet1"))
}

func TestDuplicateSheetCopiesConditionalFormats(t *testing.T) {
	m := newTestModel(t, nil)
	require.True(t, m.Dispatch(AddConditionalFormat{SheetID: "Sheet1", CF: cellIsCF([]string{"A1"}, OpEqual, Style{Bold: true}, "1")}).IsSuccess())
	require.True(t, m.Dispatch(DuplicateSheet{SheetID: "Sheet1", SheetIDTo: "copy"}).IsSuccess())

	original := m.Getters().ConditionalFormats("Sheet1")
	copied := m.Getters().ConditionalFormats("copy")
	require.Len(t, copied, 1)
	assert.NotEqual(t, original[0].ID, copied[0].ID)
	assert.Equal(t, original[0].Rule, copied[0].Rule)

	require.True(t, m.Dispatch(DeleteSheet{SheetID: "copy"}).IsSuccess())
	assert.Empty(t, m.Getters().ConditionalFormats("copy"))
}
