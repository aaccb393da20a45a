package spreadsheet

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

// sequentialIDs generates id-1, id-2... so that runs are reproducible
func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestModel(t *testing.T, data *WorkbookData, opts ...Option) *Model {
	t.Helper()
	opts = append([]Option{WithIDGenerator(sequentialIDs())}, opts...)
	m, err := NewModel(data, opts...)
	require.NoError(t, err)
	return m
}

func setContent(t *testing.T, m *Model, sheetID, xc, content string) {
	t.Helper()
	result := m.Dispatch(SetValue{SheetID: sheetID, XC: xc, Text: content})
	require.True(t, result.IsSuccess(), "SET_VALUE %s: %s", xc, result.Reason)
}

func valueAt(m *Model, sheetID, xc string) Primitive {
	col, row, _ := ParseXC(xc)
	return m.Getters().EvaluatedValue(sheetID, col, row)
}

func TestNewModelDefaults(t *testing.T) {
	m := newTestModel(t, nil)
	g := m.Getters()

	assert.Equal(t, []SheetInfo{{ID: "Sheet1", Name: "Sheet1", Cols: DefaultColNumber, Rows: DefaultRowNumber}}, g.Sheets())
	assert.Equal(t, "Sheet1", g.ActiveSheetID())
	assert.Equal(t, Selection{Anchor: Position{}, Zones: []Zone{ZoneOf(0, 0)}}, g.Selection())
	assert.False(t, g.CanUndo())
	assert.False(t, g.CanRedo())
}

func TestDispatchCancelledCommandChangesNothing(t *testing.T) {
	m := newTestModel(t, nil)
	before := m.Export()

	cases := []struct {
		name   string
		cmd    Command
		reason CancelledReason
	}{
		{"unknown sheet", UpdateCell{SheetID: "nope", Content: ptr("1")}, ReasonInvalidSheetID},
		{"out of sheet", UpdateCell{SheetID: "Sheet1", Col: 500, Content: ptr("1")}, ReasonTargetOutOfSheet},
		{"last sheet", DeleteSheet{SheetID: "Sheet1"}, ReasonNotEnoughSheets},
		{"bad name", CreateSheet{Name: "a?b"}, ReasonInvalidSheetName},
		{"duplicate name", CreateSheet{Name: "sheet1"}, ReasonDuplicatedSheetName},
		{"move too far", MoveSheet{SheetID: "Sheet1", Direction: MoveLeft}, ReasonWrongSheetMove},
		{"single cell merge", AddMerge{SheetID: "Sheet1", Zone: ZoneOf(1, 1)}, ReasonInvalidCommand},
		{"remove every column", RemoveColumns{SheetID: "Sheet1", Columns: rangeInts(0, DefaultColNumber)}, ReasonNotEnoughElements},
		{"empty undo", Undo{}, ReasonEmptyUndoStack},
		{"empty redo", Redo{}, ReasonEmptyRedoStack},
		{"not editing", StopEdition{}, ReasonNotEditing},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			result := m.Dispatch(c.cmd)
			assert.False(t, result.IsSuccess())
			assert.Equal(t, c.reason, result.Reason)
			assert.Empty(t, cmp.Diff(before, m.Export(), cmpopts.EquateEmpty()))
		})
	}
}

func rangeInts(from, to int) []int {
	out := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}

func TestFormulaPropagation(t *testing.T) {
	m := newTestModel(t, nil)
	setContent(t, m, "Sheet1", "A1", "2")
	setContent(t, m, "Sheet1", "A2", "=A1*3")
	setContent(t, m, "Sheet1", "A3", "=SUM(A1:A2)")
	setContent(t, m, "Sheet1", "A4", "=A3&\"!\"")

	assert.Equal(t, 6.0, valueAt(m, "Sheet1", "A2"))
	assert.Equal(t, 8.0, valueAt(m, "Sheet1", "A3"))
	assert.Equal(t, "8!", valueAt(m, "Sheet1", "A4"))

	setContent(t, m, "Sheet1", "A1", "10")
	assert.Equal(t, 30.0, valueAt(m, "Sheet1", "A2"))
	assert.Equal(t, 40.0, valueAt(m, "Sheet1", "A3"))
	assert.Equal(t, "40!", valueAt(m, "Sheet1", "A4"))
}

func TestSharedCompiledFormulas(t *testing.T) {
	m := newTestModel(t, nil)
	for row := 1; row <= 20; row++ {
		setContent(t, m, "Sheet1", fmt.Sprintf("A%d", row), fmt.Sprint(row))
		setContent(t, m, "Sheet1", fmt.Sprintf("B%d", row), fmt.Sprintf("=A%d*2", row))
	}
	assert.Equal(t, 1, m.evaluator.FormulaCount())
	assert.Equal(t, 40.0, valueAt(m, "Sheet1", "B20"))
}

func TestUndoRedoInverse(t *testing.T) {
	m := newTestModel(t, nil)
	setContent(t, m, "Sheet1", "A1", "1")
	setContent(t, m, "Sheet1", "B1", "=A1+1")
	initial := m.Export()

	commands := []Command{
		SetValue{SheetID: "Sheet1", XC: "A1", Text: "5"},
		SetFormatting{SheetID: "Sheet1", Target: []Zone{{Top: 0, Left: 0, Bottom: 2, Right: 2}}, Style: &Style{Bold: true}},
		AddMerge{SheetID: "Sheet1", Zone: Zone{Top: 3, Left: 0, Bottom: 4, Right: 1}},
		CreateSheet{Name: "Data", Activate: true},
		AddColumns{SheetID: "Sheet1", Base: 0, Quantity: 2, Position: InsertBefore},
		ResizeRows{SheetID: "Sheet1", Rows: []int{0, 1}, Size: 40},
		AddConditionalFormat{SheetID: "Sheet1", CF: ConditionalFormat{
			Ranges: []string{"C1:C5"},
			Rule:   CFRule{Type: RuleCellIs, Operator: OpGreaterThan, Values: []string{"2"}, Style: Style{FillColor: "#ff0000"}},
		}},
	}
	var snapshots []*WorkbookData
	for _, cmd := range commands {
		require.True(t, m.Dispatch(cmd).IsSuccess(), cmd.Type())
		snapshots = append(snapshots, m.Export())
	}

	for i := len(commands) - 1; i >= 0; i-- {
		require.True(t, m.Dispatch(Undo{}).IsSuccess())
		want := initial
		if i > 0 {
			want = snapshots[i-1]
		}
		assert.Empty(t, cmp.Diff(want, m.Export(), cmpopts.EquateEmpty()), "after undoing %s", commands[i].Type())
	}
	assert.Equal(t, 1.0, valueAt(m, "Sheet1", "A1"))
	assert.Equal(t, 2.0, valueAt(m, "Sheet1", "B1"))

	for i := range commands {
		require.True(t, m.Dispatch(Redo{}).IsSuccess())
		assert.Empty(t, cmp.Diff(snapshots[i], m.Export(), cmpopts.EquateEmpty()), "after redoing %s", commands[i].Type())
	}
	// A1 moved to C1 with the inserted columns
	assert.Equal(t, 6.0, valueAt(m, "Sheet1", "D1"))
}

func TestActivateSheetIsNotUndoable(t *testing.T) {
	m := newTestModel(t, nil)
	require.True(t, m.Dispatch(CreateSheet{SheetID: "s2", Name: "Two"}).IsSuccess())
	depth := m.history.UndoDepth()

	require.True(t, m.Dispatch(ActivateSheet{SheetIDTo: "s2"}).IsSuccess())
	assert.Equal(t, depth, m.history.UndoDepth())
	assert.Equal(t, "s2", m.Getters().ActiveSheetID())
}

func TestMergeKeepsTopLeftContentInOneStep(t *testing.T) {
	m := newTestModel(t, nil)
	setContent(t, m, "Sheet1", "A1", "keep")
	setContent(t, m, "Sheet1", "B2", "drop")

	zone := Zone{Top: 0, Left: 0, Bottom: 1, Right: 1}
	require.True(t, m.Dispatch(AddMerge{SheetID: "Sheet1", Zone: zone}).IsSuccess())
	assert.Equal(t, "keep", valueAt(m, "Sheet1", "A1"))
	assert.Nil(t, valueAt(m, "Sheet1", "B2"))
	assert.Equal(t, []Zone{zone}, m.Getters().Merges("Sheet1"))

	result := m.Dispatch(AddMerge{SheetID: "Sheet1", Zone: Zone{Top: 1, Left: 1, Bottom: 2, Right: 2}})
	assert.Equal(t, ReasonMergeOverlap, result.Reason)

	// the nested DELETE_CONTENT is part of the same undo step
	require.True(t, m.Dispatch(Undo{}).IsSuccess())
	assert.Equal(t, "drop", valueAt(m, "Sheet1", "B2"))
	assert.Empty(t, m.Getters().Merges("Sheet1"))
}

func TestStructuralChangesRewriteFormulas(t *testing.T) {
	m := newTestModel(t, nil)
	setContent(t, m, "Sheet1", "A1", "1")
	setContent(t, m, "Sheet1", "C1", "3")
	setContent(t, m, "Sheet1", "E1", "=A1+C1")
	setContent(t, m, "Sheet1", "E2", "=SUM(A1:C1)")

	require.True(t, m.Dispatch(AddColumns{SheetID: "Sheet1", Base: 1, Quantity: 2, Position: InsertBefore}).IsSuccess())
	g := m.Getters()
	cell, ok := g.CellAt("Sheet1", 6, 0)
	require.True(t, ok)
	assert.Equal(t, "=A1+E1", cell.Content)
	cell, _ = g.CellAt("Sheet1", 6, 1)
	assert.Equal(t, "=SUM(A1:E1)", cell.Content)
	assert.Equal(t, 4.0, valueAt(m, "Sheet1", "G1"))

	require.True(t, m.Dispatch(RemoveColumns{SheetID: "Sheet1", Columns: []int{0}}).IsSuccess())
	cell, _ = g.CellAt("Sheet1", 5, 0)
	assert.Equal(t, "=#REF+D1", cell.Content)
	assert.Equal(t, ErrorCodeRef, valueAt(m, "Sheet1", "F1").(*SpreadsheetError).ErrorCode)
	cell, _ = g.CellAt("Sheet1", 5, 1)
	assert.Equal(t, "=SUM(A1:D1)", cell.Content)
	assert.Equal(t, 3.0, valueAt(m, "Sheet1", "F2"))
}

func TestSheetLifecycle(t *testing.T) {
	m := newTestModel(t, nil)
	g := m.Getters()

	require.True(t, m.Dispatch(CreateSheet{SheetID: "s2", Name: "Data"}).IsSuccess())
	setContent(t, m, "s2", "A1", "7")
	setContent(t, m, "Sheet1", "A1", "=Data!A1*2")
	assert.Equal(t, 14.0, valueAt(m, "Sheet1", "A1"))

	require.True(t, m.Dispatch(RenameSheet{SheetID: "s2", Name: "Input"}).IsSuccess())
	cell, _ := g.CellAt("Sheet1", 0, 0)
	assert.Equal(t, "=Input!A1*2", cell.Content)

	require.True(t, m.Dispatch(DuplicateSheet{SheetID: "s2", SheetIDTo: "s3"}).IsSuccess())
	copied, ok := g.SheetByID("s3")
	require.True(t, ok)
	assert.NotEqual(t, "Input", copied.Name)
	assert.Equal(t, 7.0, valueAt(m, "s3", "A1"))

	require.True(t, m.Dispatch(MoveSheet{SheetID: "s3", Direction: MoveLeft}).IsSuccess())
	var order []string
	for _, sheet := range g.Sheets() {
		order = append(order, sheet.ID)
	}
	assert.Equal(t, []string{"Sheet1", "s3", "s2"}, order)

	require.True(t, m.Dispatch(DeleteSheet{SheetID: "s2"}).IsSuccess())
	cell, _ = g.CellAt("Sheet1", 0, 0)
	assert.Equal(t, "=#REF*2", cell.Content)
	assert.Equal(t, ErrorCodeRef, valueAt(m, "Sheet1", "A1").(*SpreadsheetError).ErrorCode)

	require.True(t, m.Dispatch(Undo{}).IsSuccess())
	assert.Equal(t, 14.0, valueAt(m, "Sheet1", "A1"))
}

func TestCreateSheetGeneratesIDAndName(t *testing.T) {
	m := newTestModel(t, nil)
	require.True(t, m.Dispatch(CreateSheet{}).IsSuccess())
	sheets := m.Getters().Sheets()
	require.Len(t, sheets, 2)
	assert.Equal(t, "id-1", sheets[1].ID)
	assert.Equal(t, "Sheet2", sheets[1].Name)
}

func TestDeterministicReplay(t *testing.T) {
	script := []Command{
		CreateSheet{Name: "Data"},
		SetValue{SheetID: "Sheet1", XC: "A1", Text: "1"},
		SetValue{SheetID: "Sheet1", XC: "A2", Text: "=A1*2"},
		AddConditionalFormat{SheetID: "Sheet1", CF: ConditionalFormat{
			Ranges: []string{"A1:A2"},
			Rule:   CFRule{Type: RuleCellIs, Operator: OpEqual, Values: []string{"2"}, Style: Style{Bold: true}},
		}},
		AddRows{SheetID: "Sheet1", Base: 0, Quantity: 1, Position: InsertBefore},
		Undo{},
		Redo{},
	}
	run := func() *WorkbookData {
		m := newTestModel(t, nil)
		for _, cmd := range script {
			m.Dispatch(cmd)
		}
		return m.Export()
	}
	assert.Empty(t, cmp.Diff(run(), run()))
}

func TestExportImportRoundTrip(t *testing.T) {
	m := newTestModel(t, nil)
	setContent(t, m, "Sheet1", "A1", "12.5")
	setContent(t, m, "Sheet1", "A2", "=A1*2")
	require.True(t, m.Dispatch(SetFormatting{
		SheetID: "Sheet1",
		Target:  []Zone{ZoneOf(0, 1)},
		Style:   &Style{Italic: true, TextColor: "#123456"},
		Border:  &Border{Top: BorderSide{Style: "thin", Color: "#000000"}},
	}).IsSuccess())
	require.True(t, m.Dispatch(SetFormatter{SheetID: "Sheet1", Target: []Zone{ZoneOf(0, 1)}, Format: "0.00"}).IsSuccess())
	require.True(t, m.Dispatch(AddMerge{SheetID: "Sheet1", Zone: Zone{Top: 4, Left: 0, Bottom: 5, Right: 2}}).IsSuccess())
	require.True(t, m.Dispatch(ResizeColumns{SheetID: "Sheet1", Columns: []int{0}, Size: 120}).IsSuccess())
	require.True(t, m.Dispatch(CreateSheet{SheetID: "s2", Name: "Other"}).IsSuccess())

	exported := m.Export()
	raw, err := MarshalWorkbook(exported)
	require.NoError(t, err)
	parsed, err := ParseWorkbook(raw)
	require.NoError(t, err)

	reloaded := newTestModel(t, parsed)
	assert.Empty(t, cmp.Diff(exported, reloaded.Export(), cmpopts.EquateEmpty()))
	assert.Equal(t, 25.0, valueAt(reloaded, "Sheet1", "A2"))
	assert.Equal(t, "25.00", reloaded.Getters().CellText("Sheet1", 0, 1))
}

func TestNestedDispatchRejectsUndo(t *testing.T) {
	m := newTestModel(t, nil)
	m.depth = 1
	assert.Equal(t, ReasonInvalidCommand, m.Dispatch(Undo{}).Reason)
	m.depth = 0
}

func TestSubscribe(t *testing.T) {
	m := newTestModel(t, nil)
	calls := 0
	unsubscribe := m.Subscribe(func() { calls++ })

	setContent(t, m, "Sheet1", "A1", "1")
	m.Dispatch(DeleteSheet{SheetID: "Sheet1"}) // cancelled
	assert.Equal(t, 1, calls)

	unsubscribe()
	setContent(t, m, "Sheet1", "A1", "2")
	assert.Equal(t, 1, calls)
}

func TestCellStyleMergesConditionalStyle(t *testing.T) {
	m := newTestModel(t, nil)
	setContent(t, m, "Sheet1", "A1", "5")
	require.True(t, m.Dispatch(SetFormatting{SheetID: "Sheet1", Target: []Zone{ZoneOf(0, 0)}, Style: &Style{Bold: true, FillColor: "#ffffff"}}).IsSuccess())
	require.True(t, m.Dispatch(AddConditionalFormat{SheetID: "Sheet1", CF: ConditionalFormat{
		Ranges: []string{"A1"},
		Rule:   CFRule{Type: RuleCellIs, Operator: OpGreaterThan, Values: []string{"3"}, Style: Style{FillColor: "#ff0000"}},
	}}).IsSuccess())

	assert.Equal(t, Style{Bold: true, FillColor: "#ff0000"}, m.Getters().CellStyle("Sheet1", 0, 0))

	setContent(t, m, "Sheet1", "A1", "1")
	assert.Equal(t, Style{Bold: true, FillColor: "#ffffff"}, m.Getters().CellStyle("Sheet1", 0, 0))
}
