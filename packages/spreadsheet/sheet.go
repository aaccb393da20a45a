package spreadsheet

import (
	"fmt"
	"strconv"
	"strings"
)

// Spreadsheet is an address based API over a Model: cells are read and
// written with "A1" or "Sheet2!B3" addresses, unqualified addresses point
// at the active sheet
type Spreadsheet struct {
	model *Model
}

// NewSpreadsheet creates a spreadsheet holding one empty sheet, Sheet1
func NewSpreadsheet(opts ...Option) *Spreadsheet {
	s, err := OpenSpreadsheet(nil, opts...)
	if err != nil {
		// an empty workbook always loads
		panic(err)
	}
	return s
}

// OpenSpreadsheet creates a spreadsheet from a persisted workbook
func OpenSpreadsheet(data *WorkbookData, opts ...Option) (*Spreadsheet, error) {
	model, err := NewModel(data, opts...)
	if err != nil {
		return nil, err
	}
	return &Spreadsheet{model: model}, nil
}

// Model returns the underlying model
func (s *Spreadsheet) Model() *Model {
	return s.model
}

type SpreadsheetInterface interface {
	// cell methods

	Get(address string) (Primitive, error)
	Set(address string, value Primitive) error
	Remove(address string) error

	// worksheet methods

	AddWorksheet(name string) error
	RemoveWorksheet(name string) error
	RenameWorksheet(oldName string, newName string) error
	DoesWorksheetExist(name string) bool
	ListWorksheets() []string

	// common methods

	Calculate() error
}

var _ SpreadsheetInterface = (*Spreadsheet)(nil)

// resolveAddress splits an address into its sheet id and position
func (s *Spreadsheet) resolveAddress(address string) (CellAddress, error) {
	g := s.model.Getters()
	sheetID := g.ActiveSheetID()
	xc := address
	if i := strings.LastIndex(address, "!"); i >= 0 {
		name := address[:i]
		if len(name) >= 2 && strings.HasPrefix(name, "'") && strings.HasSuffix(name, "'") {
			name = strings.ReplaceAll(name[1:len(name)-1], "''", "'")
		}
		id, ok := g.SheetIDByName(name)
		if !ok {
			return CellAddress{}, NewApplicationError(NotFound, fmt.Sprintf("Worksheet %q not found", name))
		}
		sheetID = id
		xc = address[i+1:]
	}
	col, row, err := ParseXC(xc)
	if err != nil {
		return CellAddress{}, NewApplicationError(InvalidArgument, fmt.Sprintf("Invalid address: %v", err))
	}
	return CellAddress{SheetID: sheetID, Col: col, Row: row}, nil
}

// Get returns the evaluated value of a cell, nil when it is empty
func (s *Spreadsheet) Get(address string) (Primitive, error) {
	addr, err := s.resolveAddress(address)
	if err != nil {
		return nil, err
	}
	return s.model.Getters().EvaluatedValue(addr.SheetID, addr.Col, addr.Row), nil
}

// Set writes the content of a cell. strings starting with "=" are formulas,
// nil clears the content.
func (s *Spreadsheet) Set(address string, value Primitive) error {
	addr, err := s.resolveAddress(address)
	if err != nil {
		return err
	}
	content, err := contentOf(value)
	if err != nil {
		return err
	}
	return resultError(s.model.Dispatch(UpdateCell{
		SheetID: addr.SheetID,
		Col:     addr.Col,
		Row:     addr.Row,
		Content: &content,
	}))
}

func contentOf(value Primitive) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	case bool:
		return strings.ToUpper(strconv.FormatBool(v)), nil
	}
	return "", NewApplicationError(InvalidArgument, fmt.Sprintf("unsupported value type %T", value))
}

// Remove deletes a cell, its content and its formatting
func (s *Spreadsheet) Remove(address string) error {
	addr, err := s.resolveAddress(address)
	if err != nil {
		return err
	}
	return resultError(s.model.Dispatch(ClearCell{SheetID: addr.SheetID, Col: addr.Col, Row: addr.Row}))
}

// AddWorksheet appends a sheet
func (s *Spreadsheet) AddWorksheet(name string) error {
	position := len(s.model.Getters().Sheets())
	return resultError(s.model.Dispatch(CreateSheet{Name: name, Position: &position}))
}

// RemoveWorksheet deletes a sheet. formulas referencing it become #REF
func (s *Spreadsheet) RemoveWorksheet(name string) error {
	id, ok := s.model.Getters().SheetIDByName(name)
	if !ok {
		return NewApplicationError(NotFound, "Worksheet not found")
	}
	return resultError(s.model.Dispatch(DeleteSheet{SheetID: id}))
}

// RenameWorksheet renames a sheet and the references to it
func (s *Spreadsheet) RenameWorksheet(oldName string, newName string) error {
	id, ok := s.model.Getters().SheetIDByName(oldName)
	if !ok {
		return NewApplicationError(NotFound, "Worksheet not found")
	}
	return resultError(s.model.Dispatch(RenameSheet{SheetID: id, Name: newName}))
}

func (s *Spreadsheet) DoesWorksheetExist(name string) bool {
	_, ok := s.model.Getters().SheetIDByName(name)
	return ok
}

// ListWorksheets returns the sheet names in workbook order
func (s *Spreadsheet) ListWorksheets() []string {
	sheets := s.model.Getters().Sheets()
	names := make([]string, 0, len(sheets))
	for _, sheet := range sheets {
		names = append(names, sheet.Name)
	}
	return names
}

// Calculate applies the async results settled so far. synchronous
// formulas are always up to date.
func (s *Spreadsheet) Calculate() error {
	s.model.RunPending()
	return nil
}

// resultError turns a cancelled dispatch into an application error
func resultError(result CommandResult) error {
	if result.IsSuccess() {
		return nil
	}
	code := FailedPrecondition
	switch result.Reason {
	case ReasonInvalidSheetID:
		code = NotFound
	case ReasonDuplicatedSheetName:
		code = AlreadyExists
	case ReasonInvalidSheetName, ReasonInvalidCommand, ReasonEmptyTarget:
		code = InvalidArgument
	case ReasonTargetOutOfSheet:
		code = OutOfRange
	}
	return NewApplicationError(code, result.Message())
}

// RunnableSpreadsheet provides a chainable interface for
// spreadsheet operations. wraps the standard Spreadsheet and tracks
// errors internally
type RunnableSpreadsheet struct {
	spreadsheet *Spreadsheet
	err         error
	printLn     func(string)
}

// NewRunnableSpreadsheet creates a new RunnableSpreadsheet. printLn is
// used by Log and CheckError
func NewRunnableSpreadsheet(printLn func(string), opts ...Option) *RunnableSpreadsheet {
	return &RunnableSpreadsheet{
		spreadsheet: NewSpreadsheet(opts...),
		printLn:     printLn,
	}
}

// Chain wraps s in a RunnableSpreadsheet printing through printLn
func (s *Spreadsheet) Chain(printLn func(string)) *RunnableSpreadsheet {
	return &RunnableSpreadsheet{spreadsheet: s, printLn: printLn}
}

// do runs fn unless an earlier step failed
func (r *RunnableSpreadsheet) do(fn func(s *Spreadsheet) error) *RunnableSpreadsheet {
	if r.err == nil {
		r.err = fn(r.spreadsheet)
	}
	return r
}

func (r *RunnableSpreadsheet) Set(address string, value Primitive) *RunnableSpreadsheet {
	return r.do(func(s *Spreadsheet) error { return s.Set(address, value) })
}

func (r *RunnableSpreadsheet) Remove(address string) *RunnableSpreadsheet {
	return r.do(func(s *Spreadsheet) error { return s.Remove(address) })
}

func (r *RunnableSpreadsheet) AddWorksheet(name string) *RunnableSpreadsheet {
	return r.do(func(s *Spreadsheet) error { return s.AddWorksheet(name) })
}

func (r *RunnableSpreadsheet) RemoveWorksheet(name string) *RunnableSpreadsheet {
	return r.do(func(s *Spreadsheet) error { return s.RemoveWorksheet(name) })
}

func (r *RunnableSpreadsheet) RenameWorksheet(oldName, newName string) *RunnableSpreadsheet {
	return r.do(func(s *Spreadsheet) error { return s.RenameWorksheet(oldName, newName) })
}

// Dispatch sends a raw command, a cancellation becomes the chain error
func (r *RunnableSpreadsheet) Dispatch(cmd Command) *RunnableSpreadsheet {
	return r.do(func(s *Spreadsheet) error { return resultError(s.model.Dispatch(cmd)) })
}

func (r *RunnableSpreadsheet) Calculate() *RunnableSpreadsheet {
	return r.do(func(s *Spreadsheet) error { return s.Calculate() })
}

// Run applies pending async results and returns the spreadsheet, or the
// first error of the chain
func (r *RunnableSpreadsheet) Run() (*Spreadsheet, error) {
	r.Calculate()
	if r.err != nil {
		return nil, r.err
	}
	return r.spreadsheet, nil
}

// RunOrPanic is Run for examples and tests that fail fast
func (r *RunnableSpreadsheet) RunOrPanic() *Spreadsheet {
	spreadsheet, err := r.Run()
	if err != nil {
		panic(err)
	}
	return spreadsheet
}

func (r *RunnableSpreadsheet) Error() error {
	return r.err
}

// CheckError prints the current error state
func (r *RunnableSpreadsheet) CheckError() *RunnableSpreadsheet {
	if r.err != nil {
		r.printLn(fmt.Sprintf("ERROR: %v", r.err))
	} else {
		r.printLn("No errors")
	}
	return r
}

// Spreadsheet returns the underlying spreadsheet, bypassing error tracking
func (r *RunnableSpreadsheet) Spreadsheet() *Spreadsheet {
	return r.spreadsheet
}

func (r *RunnableSpreadsheet) Reset() *RunnableSpreadsheet {
	r.err = nil
	return r
}

// Then runs fn unless the chain failed
func (r *RunnableSpreadsheet) Then(fn func(*RunnableSpreadsheet) *RunnableSpreadsheet) *RunnableSpreadsheet {
	if r.err != nil {
		return r
	}
	return fn(r)
}

// OnError replaces the chain error with what fn returns
func (r *RunnableSpreadsheet) OnError(fn func(error) error) *RunnableSpreadsheet {
	if r.err != nil {
		r.err = fn(r.err)
	}
	return r
}

func (r *RunnableSpreadsheet) Must() *RunnableSpreadsheet {
	if r.err != nil {
		panic(r.err)
	}
	return r
}

// SetBatch writes several cells, stopping at the first failure
func (r *RunnableSpreadsheet) SetBatch(cells map[string]Primitive) *RunnableSpreadsheet {
	return r.do(func(s *Spreadsheet) error {
		for address, value := range cells {
			if err := s.Set(address, value); err != nil {
				return err
			}
		}
		return nil
	})
}

// WithWorksheet adds the sheet unless it exists
func (r *RunnableSpreadsheet) WithWorksheet(name string) *RunnableSpreadsheet {
	return r.do(func(s *Spreadsheet) error {
		if s.DoesWorksheetExist(name) {
			return nil
		}
		return s.AddWorksheet(name)
	})
}

func (r *RunnableSpreadsheet) If(condition bool, fn func(*RunnableSpreadsheet) *RunnableSpreadsheet) *RunnableSpreadsheet {
	if r.err != nil || !condition {
		return r
	}
	return fn(r)
}

// ForEach calls fn for every cell of the rectangle, row by row
func (r *RunnableSpreadsheet) ForEach(startRow, endRow int, startCol, endCol int, fn func(row, col int, r *RunnableSpreadsheet)) *RunnableSpreadsheet {
	for row := startRow; row <= endRow && r.err == nil; row++ {
		for col := startCol; col <= endCol && r.err == nil; col++ {
			fn(row, col, r)
		}
	}
	return r
}

// Value reads one cell, nil once the chain failed
func (r *RunnableSpreadsheet) Value(address string) Primitive {
	values := r.Values(address)
	if values == nil {
		return nil
	}
	return values[0]
}

func (r *RunnableSpreadsheet) Values(addresses ...string) []Primitive {
	if r.err != nil {
		return nil
	}
	values := make([]Primitive, len(addresses))
	for i, address := range addresses {
		val, err := r.spreadsheet.Get(address)
		if err != nil {
			r.err = err
			return nil
		}
		values[i] = val
	}
	return values
}

// Log prints the value of a cell
func (r *RunnableSpreadsheet) Log(address string) *RunnableSpreadsheet {
	return r.do(func(s *Spreadsheet) error {
		val, err := s.Get(address)
		if err != nil {
			return err
		}
		if val == nil {
			r.printLn(fmt.Sprintf("%s: <empty>", address))
		} else {
			r.printLn(fmt.Sprintf("%s: %s", address, toString(val)))
		}
		return nil
	})
}
