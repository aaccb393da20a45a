package xlsx

import (
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

// ReadFile imports the xlsx file at path
func ReadFile(path string) (*spreadsheet.WorkbookData, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	return Read(in)
}

// Read imports an xlsx document. sheet ids are the sheet names.
func Read(r io.Reader) (*spreadsheet.WorkbookData, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	reader := &styleReader{
		file:   f,
		styles: map[int]spreadsheet.Style{},
		ids:    map[spreadsheet.Style]int{},
	}
	data := &spreadsheet.WorkbookData{
		Version: spreadsheet.CurrentVersion,
		Styles:  reader.styles,
	}
	for _, name := range f.GetSheetList() {
		sheet, err := readSheet(f, reader, name)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
		data.Sheets = append(data.Sheets, sheet)
	}
	if len(data.Sheets) > 0 {
		data.ActiveSheet = f.GetSheetName(f.GetActiveSheetIndex())
	}
	return data, nil
}

func readSheet(f *excelize.File, styles *styleReader, name string) (spreadsheet.SheetData, error) {
	sheet := spreadsheet.SheetData{
		ID:        name,
		Name:      name,
		ColNumber: spreadsheet.DefaultColNumber,
		RowNumber: spreadsheet.DefaultRowNumber,
		Cells:     map[string]spreadsheet.CellData{},
	}
	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return sheet, err
	}
	for r, row := range rows {
		for c, value := range row {
			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return sheet, err
			}
			content, err := cellContent(f, name, axis, value)
			if err != nil {
				return sheet, err
			}
			cell := spreadsheet.CellData{Content: content}
			cell.Style, cell.Format, err = styles.read(name, axis)
			if err != nil {
				return sheet, err
			}
			if cell == (spreadsheet.CellData{}) {
				continue
			}
			sheet.Cells[spreadsheet.ToXC(c, r)] = cell
			sheet.ColNumber = max(sheet.ColNumber, c+1)
			sheet.RowNumber = max(sheet.RowNumber, r+1)
		}
	}

	merges, err := f.GetMergeCells(name)
	if err != nil {
		return sheet, err
	}
	for _, mc := range merges {
		left, top, err := excelize.CellNameToCoordinates(mc.GetStartAxis())
		if err != nil {
			return sheet, err
		}
		right, bottom, err := excelize.CellNameToCoordinates(mc.GetEndAxis())
		if err != nil {
			return sheet, err
		}
		zone := spreadsheet.Zone{Top: top - 1, Left: left - 1, Bottom: bottom - 1, Right: right - 1}
		sheet.Merges = append(sheet.Merges, zone.String())
		sheet.ColNumber = max(sheet.ColNumber, right)
		sheet.RowNumber = max(sheet.RowNumber, bottom)
	}
	return sheet, nil
}

// cellContent prefers the formula over the cached value
func cellContent(f *excelize.File, sheet, axis, value string) (string, error) {
	formula, err := f.GetCellFormula(sheet, axis)
	if err != nil {
		return "", err
	}
	if formula != "" {
		return "=" + formula, nil
	}
	kind, err := f.GetCellType(sheet, axis)
	if err != nil {
		return "", err
	}
	if kind == excelize.CellTypeBool {
		if value == "1" {
			return "TRUE", nil
		}
		return "FALSE", nil
	}
	return value, nil
}

// styleReader interns the excel styles it meets into workbook style ids
type styleReader struct {
	file   *excelize.File
	styles map[int]spreadsheet.Style
	ids    map[spreadsheet.Style]int
}

func (r *styleReader) read(sheet, axis string) (int, string, error) {
	xid, err := r.file.GetCellStyle(sheet, axis)
	if err != nil || xid == 0 {
		return 0, "", err
	}
	xs, err := r.file.GetStyle(xid)
	if err != nil {
		return 0, "", err
	}
	var style spreadsheet.Style
	if xs.Font != nil {
		style.Bold = xs.Font.Bold
		style.Italic = xs.Font.Italic
		style.Strikethrough = xs.Font.Strike
		style.TextColor = fromExcelColor(xs.Font.Color)
	}
	if xs.Fill.Type == "pattern" && len(xs.Fill.Color) > 0 {
		style.FillColor = fromExcelColor(xs.Fill.Color[0])
	}
	if xs.Alignment != nil {
		style.Align = xs.Alignment.Horizontal
	}
	var format string
	if xs.CustomNumFmt != nil {
		format = *xs.CustomNumFmt
	}
	if style.IsZero() {
		return 0, format, nil
	}
	id, ok := r.ids[style]
	if !ok {
		id = len(r.ids) + 1
		r.ids[style] = id
		r.styles[id] = style
	}
	return id, format, nil
}
