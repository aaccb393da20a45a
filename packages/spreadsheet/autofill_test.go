package spreadsheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selectZone(t *testing.T, m *Model, xc string) {
	t.Helper()
	zone, err := ParseZone(xc)
	require.NoError(t, err)
	result := m.Dispatch(SetSelection{Anchor: Position{Col: zone.Left, Row: zone.Top}, Zones: []Zone{zone}})
	require.True(t, result.IsSuccess(), "SET_SELECTION %s: %s", xc, result.Reason)
}

func autofillTo(t *testing.T, m *Model, xc string) {
	t.Helper()
	col, row, err := ParseXC(xc)
	require.NoError(t, err)
	require.True(t, m.Dispatch(AutofillSelect{Col: col, Row: row}).IsSuccess())
	require.True(t, m.Dispatch(Autofill{}).IsSuccess())
}

func contentAt(m *Model, sheetID, xc string) string {
	col, row, _ := ParseXC(xc)
	cell, _ := m.Getters().CellAt(sheetID, col, row)
	return cell.Content
}

func TestAutofillTarget(t *testing.T) {
	source := Zone{Top: 2, Left: 2, Bottom: 3, Right: 3} // C3:D4
	cases := []struct {
		name     string
		col, row int
		dir      Direction
		target   Zone
		ok       bool
	}{
		{"down", 2, 6, DirectionDown, Zone{Top: 4, Left: 2, Bottom: 6, Right: 3}, true},
		{"up", 3, 0, DirectionUp, Zone{Top: 0, Left: 2, Bottom: 1, Right: 3}, true},
		{"right", 5, 3, DirectionRight, Zone{Top: 2, Left: 4, Bottom: 3, Right: 5}, true},
		{"left", 0, 2, DirectionLeft, Zone{Top: 2, Left: 0, Bottom: 3, Right: 1}, true},
		{"diagonal tie goes vertical", 5, 5, DirectionDown, Zone{Top: 4, Left: 2, Bottom: 5, Right: 3}, true},
		{"farther axis wins", 7, 4, DirectionRight, Zone{Top: 2, Left: 4, Bottom: 3, Right: 7}, true},
		{"inside the source", 3, 3, 0, Zone{}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			dir, target, ok := autofillTarget(source, c.col, c.row)
			require.Equal(t, c.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, c.dir, dir)
			assert.Equal(t, c.target, target)
		})
	}
}

func TestGenerateAutofillLine(t *testing.T) {
	seed := map[Position]Cell{
		{Col: 0, Row: 0}: {Content: "1"},
		{Col: 0, Row: 1}: {Content: "2"},
		{Col: 0, Row: 2}: {Content: "x"},
		{Col: 0, Row: 3}: {Content: "10"},
	}
	source := Zone{Top: 0, Left: 0, Bottom: 3, Right: 0}
	target := Zone{Top: 4, Left: 0, Bottom: 11, Right: 0}
	cells := generateAutofill(source, DirectionDown, target, func(col, row int) Cell {
		return seed[Position{Col: col, Row: row}]
	})

	var contents []string
	for _, c := range cells {
		contents = append(contents, c.Cell.Content)
	}
	assert.Equal(t, []string{"3", "4", "x", "11", "5", "6", "x", "12"}, contents)
	assert.Equal(t, Position{Col: 0, Row: 2}, cells[6].Source)
}

func TestAutofillArithmeticProgression(t *testing.T) {
	m := newTestModel(t, nil)
	setContent(t, m, "Sheet1", "A1", "1")
	setContent(t, m, "Sheet1", "A2", "3")
	selectZone(t, m, "A1:A2")

	require.True(t, m.Dispatch(AutofillSelect{Col: 0, Row: 5}).IsSuccess())
	zone, ok := m.Getters().AutofillZone()
	require.True(t, ok)
	assert.Equal(t, "A3:A6", ZoneToXC(zone))

	require.True(t, m.Dispatch(Autofill{}).IsSuccess())
	for xc, want := range map[string]float64{"A3": 5, "A4": 7, "A5": 9, "A6": 11} {
		assert.Equal(t, want, valueAt(m, "Sheet1", xc), xc)
	}

	_, ok = m.Getters().AutofillZone()
	assert.False(t, ok)
	assert.Equal(t, []Zone{{Top: 0, Left: 0, Bottom: 5, Right: 0}}, m.Getters().Selection().Zones)

	// the whole fill is one step
	require.True(t, m.Dispatch(Undo{}).IsSuccess())
	for _, xc := range []string{"A3", "A4", "A5", "A6"} {
		assert.Empty(t, contentAt(m, "Sheet1", xc), xc)
	}
	assert.Equal(t, 3.0, valueAt(m, "Sheet1", "A2"))
}

func TestAutofillSingleNumberSteps(t *testing.T) {
	m := newTestModel(t, nil)
	setContent(t, m, "Sheet1", "B5", "5")
	selectZone(t, m, "B5")
	autofillTo(t, m, "B3")
	assert.Equal(t, "4", contentAt(m, "Sheet1", "B4"))
	assert.Equal(t, "3", contentAt(m, "Sheet1", "B3"))

	selectZone(t, m, "B5")
	autofillTo(t, m, "D5")
	assert.Equal(t, "6", contentAt(m, "Sheet1", "C5"))
	assert.Equal(t, "7", contentAt(m, "Sheet1", "D5"))
}

func TestAutofillFormulasAndText(t *testing.T) {
	m := newTestModel(t, nil)
	for i, v := range []string{"1", "2", "3", "4"} {
		setContent(t, m, "Sheet1", ToXC(0, i), v)
	}
	setContent(t, m, "Sheet1", "B1", "=A1*2+$A$1")
	setContent(t, m, "Sheet1", "C1", "a")
	setContent(t, m, "Sheet1", "C2", "b")

	selectZone(t, m, "B1")
	autofillTo(t, m, "B4")
	assert.Equal(t, "=A2*2+$A$1", contentAt(m, "Sheet1", "B2"))
	assert.Equal(t, "=A4*2+$A$1", contentAt(m, "Sheet1", "B4"))
	assert.Equal(t, 9.0, valueAt(m, "Sheet1", "B4"))

	selectZone(t, m, "C1:C2")
	autofillTo(t, m, "C5")
	assert.Equal(t, "a", contentAt(m, "Sheet1", "C3"))
	assert.Equal(t, "b", contentAt(m, "Sheet1", "C4"))
	assert.Equal(t, "a", contentAt(m, "Sheet1", "C5"))
}

func TestAutofillCopiesStyleAndErasesWithEmptySource(t *testing.T) {
	m := newTestModel(t, nil)
	setContent(t, m, "Sheet1", "A1", "x")
	require.True(t, m.Dispatch(SetFormatting{
		SheetID: "Sheet1",
		Target:  []Zone{ZoneOf(0, 0)},
		Style:   &Style{Bold: true},
	}).IsSuccess())
	setContent(t, m, "Sheet1", "A4", "old")

	selectZone(t, m, "A1:A2")
	autofillTo(t, m, "A4")

	assert.Equal(t, "x", contentAt(m, "Sheet1", "A3"))
	assert.True(t, m.Getters().CellStyle("Sheet1", 0, 2).Bold)
	assert.Empty(t, contentAt(m, "Sheet1", "A4"))
}

func TestAutofillCopiesConditionalFormats(t *testing.T) {
	m := newTestModel(t, nil)
	setContent(t, m, "Sheet1", "A1", "1")
	require.True(t, m.Dispatch(AddConditionalFormat{
		SheetID: "Sheet1",
		CF:      cellIsCF([]string{"A1"}, OpGreaterThan, Style{Italic: true}, "0"),
	}).IsSuccess())
	require.True(t, m.Dispatch(AddConditionalFormat{
		SheetID: "Sheet1",
		CF:      cellIsCF([]string{"B2:B3"}, OpGreaterThan, Style{Bold: true}, "0"),
	}).IsSuccess())

	selectZone(t, m, "A1")
	autofillTo(t, m, "A3")

	cfs := m.Getters().ConditionalFormats("Sheet1")
	require.Len(t, cfs, 2)
	assert.Equal(t, []string{"A1:A3"}, cfs[0].Ranges)
	style, ok := m.Getters().ConditionalStyleAt("Sheet1", 0, 2)
	require.True(t, ok)
	assert.True(t, style.Italic)

	// an empty source takes the membership away
	selectZone(t, m, "C2:C3")
	autofillTo(t, m, "B3")
	assert.Len(t, m.Getters().ConditionalFormats("Sheet1"), 1)
}

func TestAutofillAuto(t *testing.T) {
	m := newTestModel(t, nil)
	for i, v := range []string{"1", "2", "3", "4"} {
		setContent(t, m, "Sheet1", ToXC(0, i), v)
	}
	setContent(t, m, "Sheet1", "B1", "10")
	setContent(t, m, "Sheet1", "B2", "20")
	selectZone(t, m, "B1:B2")

	require.True(t, m.Dispatch(AutofillAuto{}).IsSuccess())
	assert.Equal(t, 30.0, valueAt(m, "Sheet1", "B3"))
	assert.Equal(t, 40.0, valueAt(m, "Sheet1", "B4"))
	assert.Empty(t, contentAt(m, "Sheet1", "B5"))

	selectZone(t, m, "E1")
	assert.Equal(t, ReasonInvalidAutofillSelection, m.Dispatch(AutofillAuto{}).Reason)
}

func TestAutofillRejections(t *testing.T) {
	m := newTestModel(t, nil)
	assert.Equal(t, ReasonInvalidAutofillSelection, m.Dispatch(Autofill{}).Reason)

	selectZone(t, m, "A1")
	assert.Equal(t, ReasonTargetOutOfSheet, m.Dispatch(AutofillSelect{Col: 0, Row: 500}).Reason)

	require.True(t, m.Dispatch(AutofillSelect{Col: 0, Row: 0}).IsSuccess())
	_, ok := m.Getters().AutofillZone()
	assert.False(t, ok, "a cell inside the source selects nothing")
	assert.Equal(t, ReasonInvalidAutofillSelection, m.Dispatch(Autofill{}).Reason)

	require.True(t, m.Dispatch(SetSelection{
		Anchor: Position{},
		Zones:  []Zone{ZoneOf(0, 0), ZoneOf(2, 2)},
	}).IsSuccess())
	assert.Equal(t, ReasonInvalidAutofillSelection, m.Dispatch(AutofillSelect{Col: 0, Row: 4}).Reason)
}
