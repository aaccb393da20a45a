package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
	"github.com/vogtb/go-spreadsheet/packages/store"
	"github.com/vogtb/go-spreadsheet/packages/xlsx"
)

const maxBody = 8 << 20

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listWorkbooks(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"workbooks": ids})
}

// createWorkbook stores a new workbook, empty or from the JSON body
func (s *Server) createWorkbook(w http.ResponseWriter, r *http.Request) {
	data, err := readWorkbook(r, true)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id := s.newID()
	if err := s.replace(r.Context(), id, data); err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("workbook created", "id", id)
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) getWorkbook(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *session) {
		raw, err := spreadsheet.MarshalWorkbook(sess.model.Export())
		if err != nil {
			s.writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(raw)
	})
}

// putWorkbook replaces a workbook, creating it when the id is new
func (s *Server) putWorkbook(w http.ResponseWriter, r *http.Request) {
	data, err := readWorkbook(r, false)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.replace(r.Context(), chi.URLParam(r, "id"), data); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteWorkbook(w http.ResponseWriter, r *http.Request) {
	if err := s.remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type commandResult struct {
	Status  spreadsheet.CommandStatus   `json:"status"`
	Reason  spreadsheet.CancelledReason `json:"reason,omitempty"`
	Message string                      `json:"message,omitempty"`
}

// dispatch runs one command object or an array of them in order. every
// command is decoded before the first one runs, so a malformed batch changes
// nothing.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	cmds, err := readCommands(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.withSession(w, r, func(sess *session) {
		results := make([]commandResult, 0, len(cmds))
		changed := false
		for _, cmd := range cmds {
			result := sess.model.Dispatch(cmd)
			changed = changed || result.IsSuccess()
			results = append(results, commandResult{
				Status:  result.Status,
				Reason:  result.Reason,
				Message: result.Message(),
			})
		}
		if changed {
			if err := s.store.Save(r.Context(), chi.URLParam(r, "id"), sess.model.Export()); err != nil {
				s.writeError(w, err)
				return
			}
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"results": results})
	})
}

type sheetResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Cols   int    `json:"cols"`
	Rows   int    `json:"rows"`
	Active bool   `json:"active"`
}

func (s *Server) listSheets(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *session) {
		g := sess.model.Getters()
		sheets := []sheetResponse{}
		for _, sheet := range g.Sheets() {
			sheets = append(sheets, sheetResponse{
				ID:     sheet.ID,
				Name:   sheet.Name,
				Cols:   sheet.Cols,
				Rows:   sheet.Rows,
				Active: sheet.ID == g.ActiveSheetID(),
			})
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"sheets": sheets})
	})
}

type cellResponse struct {
	Sheet            string             `json:"sheet"`
	XC               string             `json:"xc"`
	Content          string             `json:"content"`
	Value            any                `json:"value"`
	Text             string             `json:"text"`
	State            string             `json:"state"`
	Format           string             `json:"format,omitempty"`
	Style            *spreadsheet.Style `json:"style,omitempty"`
	ConditionalStyle *spreadsheet.Style `json:"conditionalStyle,omitempty"`
}

// getCell reads one cell. the sheet is given by id or by name.
func (s *Server) getCell(w http.ResponseWriter, r *http.Request) {
	col, row, err := spreadsheet.ParseXC(chi.URLParam(r, "xc"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.withSession(w, r, func(sess *session) {
		g := sess.model.Getters()
		sheetID, ok := resolveSheet(g, chi.URLParam(r, "sheet"))
		if !ok {
			s.writeError(w, spreadsheet.NewApplicationError(spreadsheet.NotFound, "sheet not found"))
			return
		}
		resp := cellResponse{
			Sheet: sheetID,
			XC:    spreadsheet.ToXC(col, row),
			Value: jsonValue(g.EvaluatedValue(sheetID, col, row)),
			Text:  g.CellText(sheetID, col, row),
			State: g.CellState(sheetID, col, row).String(),
		}
		if cell, ok := g.CellAt(sheetID, col, row); ok {
			resp.Content = cell.Content
			resp.Format = cell.Format
		}
		if style := g.CellStyle(sheetID, col, row); !style.IsZero() {
			resp.Style = &style
		}
		if style, ok := g.ConditionalStyleAt(sheetID, col, row); ok {
			resp.ConditionalStyle = &style
		}
		s.writeJSON(w, http.StatusOK, resp)
	})
}

func (s *Server) exportXLSX(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *session) {
		var buf bytes.Buffer
		if err := xlsx.Write(&buf, sess.model); err != nil {
			s.writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", chi.URLParam(r, "id")+".xlsx"))
		w.Write(buf.Bytes())
	})
}

// withSession runs fn holding the lock of the workbook named in the url.
// async results settled since the last request are applied first.
func (s *Server) withSession(w http.ResponseWriter, r *http.Request, fn func(*session)) {
	sess, err := s.open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.model == nil {
		s.writeError(w, store.ErrNotFound)
		return
	}
	sess.model.RunPending()
	fn(sess)
}

func resolveSheet(g *spreadsheet.Getters, ref string) (string, bool) {
	if _, ok := g.SheetByID(ref); ok {
		return ref, true
	}
	return g.SheetIDByName(ref)
}

// jsonValue renders error values as an object, the rest as plain JSON
func jsonValue(value spreadsheet.Primitive) any {
	if e, ok := value.(*spreadsheet.SpreadsheetError); ok {
		return map[string]string{"error": e.Sentinel(), "message": e.Message}
	}
	return value
}

func readWorkbook(r *http.Request, allowEmpty bool) (*spreadsheet.WorkbookData, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return nil, spreadsheet.NewApplicationError(spreadsheet.InvalidArgument, "Invalid request body")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		if allowEmpty {
			return nil, nil
		}
		return nil, spreadsheet.NewApplicationError(spreadsheet.InvalidArgument, "empty workbook")
	}
	return spreadsheet.ParseWorkbook(raw)
}

func readCommands(r *http.Request) ([]spreadsheet.Command, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return nil, spreadsheet.NewApplicationError(spreadsheet.InvalidArgument, "Invalid request body")
	}
	raw = bytes.TrimSpace(raw)
	var docs []map[string]any
	if len(raw) > 0 && raw[0] == '[' {
		err = json.Unmarshal(raw, &docs)
	} else {
		var doc map[string]any
		err = json.Unmarshal(raw, &doc)
		docs = append(docs, doc)
	}
	if err != nil {
		return nil, spreadsheet.NewApplicationError(spreadsheet.InvalidArgument, fmt.Sprintf("Invalid request body: %v", err))
	}
	cmds := make([]spreadsheet.Command, 0, len(docs))
	for i, doc := range docs {
		cmd, err := spreadsheet.DecodeCommand(doc)
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", i, err)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

// writeError maps store and application errors to a status code
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var appErr *spreadsheet.AppError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &appErr):
		status = appErrorStatus(appErr.Code)
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	} else {
		s.logger.Debug("request rejected", "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func appErrorStatus(code spreadsheet.AppErrorCode) int {
	switch code {
	case spreadsheet.InvalidArgument, spreadsheet.OutOfRange:
		return http.StatusBadRequest
	case spreadsheet.NotFound:
		return http.StatusNotFound
	case spreadsheet.AlreadyExists, spreadsheet.FailedPrecondition:
		return http.StatusConflict
	case spreadsheet.Unimplemented:
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}
