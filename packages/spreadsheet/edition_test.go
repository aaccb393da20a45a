package spreadsheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditionCommitsComposerContent(t *testing.T) {
	m := newTestModel(t, nil)
	g := m.Getters()
	setContent(t, m, "Sheet1", "B2", "5")
	require.True(t, m.Dispatch(SelectCell{Col: 1, Row: 1}).IsSuccess())

	require.True(t, m.Dispatch(StartEdition{}).IsSuccess())
	state := g.EditionState()
	assert.Equal(t, EditionEditing, state.Mode)
	assert.Equal(t, "5", state.Content)
	assert.Equal(t, 1, state.Start)
	assert.Equal(t, 1, state.End)

	require.True(t, m.Dispatch(SetCurrentContent{Content: "=2*3"}).IsSuccess())
	assert.Equal(t, 4, g.EditionState().End)
	require.True(t, m.Dispatch(ChangeComposerSelection{Start: 1, End: 2}).IsSuccess())
	assert.Equal(t, ReasonWrongComposerSelection, m.Dispatch(ChangeComposerSelection{Start: 3, End: 5}).Reason)
	assert.Equal(t, ReasonWrongComposerSelection, m.Dispatch(ChangeComposerSelection{Start: 2, End: 1}).Reason)

	require.True(t, m.Dispatch(StopEdition{}).IsSuccess())
	assert.Equal(t, EditionInactive, g.EditionState().Mode)
	assert.Equal(t, 6.0, valueAt(m, "Sheet1", "B2"))

	require.True(t, m.Dispatch(Undo{}).IsSuccess())
	assert.Equal(t, 5.0, valueAt(m, "Sheet1", "B2"))
}

func TestEditionCancel(t *testing.T) {
	m := newTestModel(t, nil)
	setContent(t, m, "Sheet1", "A1", "keep")
	require.True(t, m.Dispatch(StartEdition{Text: ptr("x")}).IsSuccess())
	assert.Equal(t, "x", m.Getters().EditionState().Content)

	require.True(t, m.Dispatch(StopEdition{Cancel: true}).IsSuccess())
	assert.Equal(t, "keep", contentAt(m, "Sheet1", "A1"))
}

func TestEditionCommitsWhenSelectionMoves(t *testing.T) {
	m := newTestModel(t, nil)
	require.True(t, m.Dispatch(StartEdition{Text: ptr("hello")}).IsSuccess())
	require.True(t, m.Dispatch(SelectCell{Col: 3, Row: 3}).IsSuccess())

	assert.Equal(t, EditionInactive, m.Getters().EditionState().Mode)
	assert.Equal(t, "hello", contentAt(m, "Sheet1", "A1"))
	assert.Equal(t, Position{Col: 3, Row: 3}, m.Getters().ActiveCell())
}

func TestEditionWithoutChangeIsNotUndoable(t *testing.T) {
	m := newTestModel(t, nil)
	require.True(t, m.Dispatch(StartEdition{}).IsSuccess())
	require.True(t, m.Dispatch(StopEdition{}).IsSuccess())
	assert.False(t, m.Getters().CanUndo())
}

func TestEditionCommandsNeedAnOpenComposer(t *testing.T) {
	m := newTestModel(t, nil)
	assert.Equal(t, ReasonNotEditing, m.Dispatch(SetCurrentContent{Content: "x"}).Reason)
	assert.Equal(t, ReasonNotEditing, m.Dispatch(ChangeComposerSelection{}).Reason)
	assert.Equal(t, ReasonNotEditing, m.Dispatch(StopEdition{}).Reason)
}

func TestEditionDroppedWithItsSheet(t *testing.T) {
	m := newTestModel(t, nil)
	require.True(t, m.Dispatch(CreateSheet{SheetID: "s2", Activate: true}).IsSuccess())
	require.True(t, m.Dispatch(StartEdition{Text: ptr("draft")}).IsSuccess())
	require.True(t, m.Dispatch(DeleteSheet{SheetID: "s2"}).IsSuccess())

	assert.Equal(t, EditionInactive, m.Getters().EditionState().Mode)
	assert.Empty(t, contentAt(m, "Sheet1", "A1"))
}

func TestEditionFollowsInsertedAndRemovedHeaders(t *testing.T) {
	m := newTestModel(t, nil)
	g := m.Getters()
	setContent(t, m, "Sheet1", "B3", "old")
	require.True(t, m.Dispatch(SelectCell{Col: 1, Row: 2}).IsSuccess())
	require.True(t, m.Dispatch(StartEdition{Text: ptr("new")}).IsSuccess())

	require.True(t, m.Dispatch(AddRows{SheetID: "Sheet1", Base: 0, Quantity: 2, Position: InsertBefore}).IsSuccess())
	require.True(t, m.Dispatch(AddColumns{SheetID: "Sheet1", Base: 1, Quantity: 1, Position: InsertAfter}).IsSuccess())
	require.True(t, m.Dispatch(RemoveRows{SheetID: "Sheet1", Rows: []int{0}}).IsSuccess())
	state := g.EditionState()
	assert.Equal(t, EditionEditing, state.Mode)
	assert.Equal(t, 1, state.Col)
	assert.Equal(t, 3, state.Row)

	require.True(t, m.Dispatch(StopEdition{}).IsSuccess())
	assert.Equal(t, "new", contentAt(m, "Sheet1", "B4"))
	assert.Empty(t, contentAt(m, "Sheet1", "B3"))

	// removing the edited column drops the edition
	require.True(t, m.Dispatch(StartEdition{Text: ptr("lost")}).IsSuccess())
	require.True(t, m.Dispatch(RemoveColumns{SheetID: "Sheet1", Columns: []int{0, 1}}).IsSuccess())
	assert.Equal(t, EditionInactive, g.EditionState().Mode)
	assert.Equal(t, ReasonNotEditing, m.Dispatch(StopEdition{}).Reason)
}
