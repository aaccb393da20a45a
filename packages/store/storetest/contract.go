// Package storetest holds the behaviour every store.Store must share
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
	"github.com/vogtb/go-spreadsheet/packages/store"
)

// Workbook builds a small workbook with a formula, a second sheet and a merge
func Workbook(t *testing.T) *spreadsheet.WorkbookData {
	t.Helper()
	s := spreadsheet.NewSpreadsheet()
	require.NoError(t, s.Set("A1", 2.0))
	require.NoError(t, s.Set("A2", "=A1*21"))
	require.NoError(t, s.AddWorksheet("Notes"))
	require.NoError(t, s.Set("Notes!B2", "hello"))
	result := s.Model().Dispatch(spreadsheet.AddMerge{
		SheetID: "Sheet1",
		Zone:    spreadsheet.Zone{Top: 4, Left: 0, Bottom: 5, Right: 1},
	})
	require.True(t, result.IsSuccess())
	return s.Model().Export()
}

// RunContract runs the shared store tests against s
func RunContract(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("Save and Load", func(t *testing.T) {
		data := Workbook(t)
		require.NoError(t, s.Save(ctx, "budget", data))

		loaded, err := s.Load(ctx, "budget")
		require.NoError(t, err)
		assert.Equal(t, spreadsheet.CurrentVersion, loaded.Version)
		require.Len(t, loaded.Sheets, 2)
		assert.Equal(t, "Notes", loaded.Sheets[1].Name)
		assert.Equal(t, "=A1*21", loaded.Sheets[0].Cells["A2"].Content)
		assert.Equal(t, []string{"A5:B6"}, loaded.Sheets[0].Merges)

		opened, err := spreadsheet.OpenSpreadsheet(loaded)
		require.NoError(t, err)
		value, err := opened.Get("A2")
		require.NoError(t, err)
		assert.Equal(t, 42.0, value)
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		data := Workbook(t)
		data.Sheets[0].Cells["A1"] = spreadsheet.CellData{Content: "5"}
		require.NoError(t, s.Save(ctx, "budget", data))

		loaded, err := s.Load(ctx, "budget")
		require.NoError(t, err)
		assert.Equal(t, "5", loaded.Sheets[0].Cells["A1"].Content)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := s.Load(ctx, "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("Save Rejects Empty ID", func(t *testing.T) {
		assert.Error(t, s.Save(ctx, "", Workbook(t)))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "scratch", Workbook(t)))
		require.NoError(t, s.Delete(ctx, "scratch"))

		_, err := s.Load(ctx, "scratch")
		assert.ErrorIs(t, err, store.ErrNotFound)
		// deleting twice is fine
		assert.NoError(t, s.Delete(ctx, "scratch"))
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "zeta", Workbook(t)))
		require.NoError(t, s.Save(ctx, "alpha", Workbook(t)))

		ids, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha", "budget", "zeta"}, ids)
	})
}
