package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogtb/go-spreadsheet/internal/logging"
	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
	"github.com/vogtb/go-spreadsheet/packages/store"
)

type fixture struct {
	t       *testing.T
	store   *store.Bolt
	server  *Server
	handler http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.OpenBolt(filepath.Join(t.TempDir(), "workbooks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	n := 0
	srv := New(st,
		WithLogger(logging.NewNop()),
		WithRegistry(prometheus.NewRegistry()),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("wb%d", n)
		}),
	)
	return &fixture{t: t, store: st, server: srv, handler: srv.Handler()}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	f.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func (f *fixture) decode(w *httptest.ResponseRecorder, v any) {
	f.t.Helper()
	require.NoError(f.t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func (f *fixture) create() string {
	f.t.Helper()
	w := f.do(http.MethodPost, "/workbooks", "")
	require.Equal(f.t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct{ ID string }
	f.decode(w, &resp)
	return resp.ID
}

func (f *fixture) cell(id, sheet, xc string) cellResponse {
	f.t.Helper()
	w := f.do(http.MethodGet, "/workbooks/"+id+"/sheets/"+sheet+"/cells/"+xc, "")
	require.Equal(f.t, http.StatusOK, w.Code, w.Body.String())
	var resp cellResponse
	f.decode(w, &resp)
	return resp
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestDispatchCommands(t *testing.T) {
	f := newFixture(t)
	id := f.create()

	w := f.do(http.MethodPost, "/workbooks/"+id+"/commands", `[
		{"type": "SET_VALUE", "sheetId": "Sheet1", "xc": "A1", "text": "4"},
		{"type": "SET_VALUE", "sheetId": "Sheet1", "xc": "A2", "text": "=A1*10"},
		{"type": "DELETE_SHEET", "sheetId": "Sheet1"}
	]`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct{ Results []commandResult }
	f.decode(w, &resp)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, spreadsheet.StatusSuccess, resp.Results[0].Status)
	assert.Equal(t, spreadsheet.StatusCancelled, resp.Results[2].Status)
	assert.Equal(t, spreadsheet.ReasonNotEnoughSheets, resp.Results[2].Reason)
	assert.NotEmpty(t, resp.Results[2].Message)

	cell := f.cell(id, "Sheet1", "A2")
	assert.Equal(t, "=A1*10", cell.Content)
	assert.Equal(t, 40.0, cell.Value)
	assert.Equal(t, "40", cell.Text)

	// a single object is a batch of one
	w = f.do(http.MethodPost, "/workbooks/"+id+"/commands", `{"type": "UNDO"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, f.cell(id, "Sheet1", "A2").Value)
}

func TestDispatchPersistsToStore(t *testing.T) {
	f := newFixture(t)
	id := f.create()
	w := f.do(http.MethodPost, "/workbooks/"+id+"/commands",
		`{"type": "SET_VALUE", "sheetId": "Sheet1", "xc": "B3", "text": "saved"}`)
	require.Equal(t, http.StatusOK, w.Code)

	data, err := f.store.Load(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "saved", data.Sheets[0].Cells["B3"].Content)

	// a fresh server reads the workbook back from the store
	other := New(f.store, WithLogger(logging.NewNop()))
	f.handler = other.Handler()
	assert.Equal(t, "saved", f.cell(id, "Sheet1", "B3").Value)
}

func TestMalformedBatchChangesNothing(t *testing.T) {
	f := newFixture(t)
	id := f.create()

	cases := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"missing type", `[{"sheetId": "Sheet1"}]`},
		{"unknown type in batch", `[
			{"type": "SET_VALUE", "sheetId": "Sheet1", "xc": "A1", "text": "1"},
			{"type": "TELEPORT"}
		]`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := f.do(http.MethodPost, "/workbooks/"+id+"/commands", c.body)
			assert.Contains(t, []int{http.StatusBadRequest, http.StatusNotFound}, w.Code)
		})
	}
	assert.Nil(t, f.cell(id, "Sheet1", "A1").Value)
}

func TestCellErrorsAndLookups(t *testing.T) {
	f := newFixture(t)
	id := f.create()
	f.do(http.MethodPost, "/workbooks/"+id+"/commands", `[
		{"type": "CREATE_SHEET", "sheetId": "s2", "name": "Costs"},
		{"type": "SET_VALUE", "sheetId": "s2", "xc": "A1", "text": "=A1"}
	]`)

	// by name and by id
	cell := f.cell(id, "Costs", "A1")
	assert.Equal(t, "s2", cell.Sheet)
	assert.Equal(t, map[string]any{"error": "#CYCLE", "message": "Circular reference"}, cell.Value)
	assert.Equal(t, "s2", f.cell(id, "s2", "A1").Sheet)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/workbooks/"+id+"/sheets/nope/cells/A1", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/workbooks/"+id+"/sheets/s2/cells/1A", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/workbooks/missing/sheets/Sheet1/cells/A1", "").Code)

	w := f.do(http.MethodGet, "/workbooks/"+id+"/sheets", "")
	require.Equal(t, http.StatusOK, w.Code)
	var sheets struct{ Sheets []sheetResponse }
	f.decode(w, &sheets)
	require.Len(t, sheets.Sheets, 2)
	assert.Equal(t, "Costs", sheets.Sheets[1].Name)
}

func TestWorkbookLifecycle(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPut, "/workbooks/imported", `{
		"version": 1,
		"sheets": [{"name": "Plan", "cells": {"A1": {"content": "3"}, "A2": {"content": "=A1+A1"}}}]
	}`)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	assert.Equal(t, 6.0, f.cell("imported", "Plan", "A2").Value)

	w = f.do(http.MethodGet, "/workbooks/imported", "")
	require.Equal(t, http.StatusOK, w.Code)
	data, err := spreadsheet.ParseWorkbook(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, spreadsheet.CurrentVersion, data.Version)
	assert.Equal(t, "Plan", data.Sheets[0].ID)

	f.create()
	w = f.do(http.MethodGet, "/workbooks", "")
	var list struct{ Workbooks []string }
	f.decode(w, &list)
	assert.Equal(t, []string{"imported", "wb1"}, list.Workbooks)

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/workbooks/imported", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/workbooks/imported", "").Code)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, "/workbooks/bad", `[1, 2]`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, "/workbooks/bad", ``).Code)
}

func TestExportXLSX(t *testing.T) {
	f := newFixture(t)
	id := f.create()
	w := f.do(http.MethodGet, "/workbooks/"+id+"/xlsx", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	// xlsx files are zip archives
	assert.True(t, strings.HasPrefix(w.Body.String(), "PK"))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	id := f.create()
	f.do(http.MethodPost, "/workbooks/"+id+"/commands",
		`{"type": "SET_VALUE", "sheetId": "Sheet1", "xc": "A1", "text": "=1+1"}`)

	w := f.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `spreadsheet_commands_total{status="SUCCESS",type="SET_VALUE"} 1`)
	assert.Contains(t, body, `sheetctl_http_requests_total{code="201"`)
}

func TestReplaceOpenWorkbook(t *testing.T) {
	f := newFixture(t)
	id := f.create()
	f.do(http.MethodPost, "/workbooks/"+id+"/commands",
		`{"type": "SET_VALUE", "sheetId": "Sheet1", "xc": "A1", "text": "before"}`)

	w := f.do(http.MethodPut, "/workbooks/"+id,
		`{"version": 1, "sheets": [{"name": "Sheet1", "cells": {"B1": {"content": "after"}}}]}`)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	assert.Nil(t, f.cell(id, "Sheet1", "A1").Value)

	// later commands run against the replacement and persist on top of it
	w = f.do(http.MethodPost, "/workbooks/"+id+"/commands",
		`{"type": "SET_VALUE", "sheetId": "Sheet1", "xc": "C1", "text": "next"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data, err := f.store.Load(context.Background(), id)
	require.NoError(t, err)
	assert.NotContains(t, data.Sheets[0].Cells, "A1")
	assert.Equal(t, "after", data.Sheets[0].Cells["B1"].Content)
	assert.Equal(t, "next", data.Sheets[0].Cells["C1"].Content)
}

func TestDeletedWorkbookIsNotRecreated(t *testing.T) {
	f := newFixture(t)
	id := f.create()
	f.cell(id, "Sheet1", "A1")

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/workbooks/"+id, "").Code)
	w := f.do(http.MethodPost, "/workbooks/"+id+"/commands",
		`{"type": "SET_VALUE", "sheetId": "Sheet1", "xc": "A1", "text": "1"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	_, err := f.store.Load(context.Background(), id)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestConcurrentReplaceAndDispatch(t *testing.T) {
	f := newFixture(t)
	id := f.create()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			f.do(http.MethodPut, "/workbooks/"+id,
				fmt.Sprintf(`{"version": 1, "sheets": [{"name": "Sheet1", "cells": {"A1": {"content": "put %d"}}}]}`, i))
		}()
		go func() {
			defer wg.Done()
			f.do(http.MethodPost, "/workbooks/"+id+"/commands",
				fmt.Sprintf(`{"type": "SET_VALUE", "sheetId": "Sheet1", "xc": "A1", "text": "set %d"}`, i))
		}()
	}
	wg.Wait()

	// what is served is what is stored
	data, err := f.store.Load(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, data.Sheets[0].Cells["A1"].Content, f.cell(id, "Sheet1", "A1").Content)
}
