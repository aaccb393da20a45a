package spreadsheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectCellExpandsToMerge(t *testing.T) {
	m := newTestModel(t, nil)
	merge := Zone{Top: 1, Left: 1, Bottom: 2, Right: 3}
	require.True(t, m.Dispatch(AddMerge{SheetID: "Sheet1", Zone: merge}).IsSuccess())

	require.True(t, m.Dispatch(SelectCell{Col: 2, Row: 2}).IsSuccess())
	selection := m.Getters().Selection()
	assert.Equal(t, Position{Col: 2, Row: 2}, selection.Anchor)
	assert.Equal(t, []Zone{merge}, selection.Zones)
}

func TestSelectionIsNotUndoable(t *testing.T) {
	m := newTestModel(t, nil)
	require.True(t, m.Dispatch(SelectCell{Col: 4, Row: 4}).IsSuccess())
	require.True(t, m.Dispatch(SetSelection{
		Anchor: Position{Col: 2, Row: 2},
		Zones:  []Zone{{Top: 4, Left: 4, Bottom: 1, Right: 1}},
	}).IsSuccess())

	assert.False(t, m.Getters().CanUndo())
	assert.Equal(t, []Zone{{Top: 1, Left: 1, Bottom: 4, Right: 4}}, m.Getters().Selection().Zones)
}

func TestSelectionRejections(t *testing.T) {
	m := newTestModel(t, nil)
	cases := []struct {
		name   string
		cmd    Command
		reason CancelledReason
	}{
		{"no zones", SetSelection{}, ReasonMalformedSelection},
		{"anchor outside", SetSelection{Anchor: Position{Col: 5, Row: 5}, Zones: []Zone{ZoneOf(0, 0)}}, ReasonMalformedSelection},
		{"zone outside the sheet", SetSelection{Anchor: Position{}, Zones: []Zone{{Bottom: 200}}}, ReasonTargetOutOfSheet},
		{"cell outside the sheet", SelectCell{Col: 26, Row: 0}, ReasonTargetOutOfSheet},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.reason, m.Dispatch(c.cmd).Reason)
		})
	}
}

func TestSelectionFollowsSheetChanges(t *testing.T) {
	m := newTestModel(t, nil)
	g := m.Getters()
	require.True(t, m.Dispatch(CreateSheet{SheetID: "s2"}).IsSuccess())
	require.True(t, m.Dispatch(SelectCell{Col: 3, Row: 99}).IsSuccess())

	require.True(t, m.Dispatch(RemoveRows{SheetID: "Sheet1", Rows: rangeInts(0, 10)}).IsSuccess())
	assert.Equal(t, Position{Col: 3, Row: 89}, g.ActiveCell())
	assert.Equal(t, []Zone{ZoneOf(3, 89)}, g.Selection().Zones)

	require.True(t, m.Dispatch(ActivateSheet{SheetIDTo: "s2"}).IsSuccess())
	assert.Equal(t, Position{}, g.ActiveCell())
	assert.Equal(t, []Zone{ZoneOf(0, 0)}, g.Selection().Zones)
}
