// Package xlsx converts workbooks to and from Office Open XML files.
//
// Write exports contents, cached values, styles, number formats, merges and
// header sizes. Read imports contents, styles without font sizes, number
// formats and merges. borders, conditional formats and figures are not
// carried either way.
package xlsx

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

// header sizes are pixels in a workbook, excel wants characters and points
const (
	pixelsPerChar  = 7.0
	pointsPerPixel = 0.75
)

// WriteFile exports the model to path
func WriteFile(path string, m *spreadsheet.Model) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(out, m); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Write exports the model as an xlsx document. formula cells carry both the
// formula and the value the model computed for them.
func Write(w io.Writer, m *spreadsheet.Model) error {
	f := excelize.NewFile()
	defer f.Close()

	data := m.Export()
	g := m.Getters()
	styles := &styleWriter{file: f, styles: data.Styles, ids: map[styleKey]int{}}

	for i, sheet := range data.Sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet.Name); err != nil {
				return fmt.Errorf("sheet %q: %w", sheet.Name, err)
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			return fmt.Errorf("sheet %q: %w", sheet.Name, err)
		}
		if err := writeSheet(f, g, styles, sheet); err != nil {
			return fmt.Errorf("sheet %q: %w", sheet.Name, err)
		}
	}

	if active, ok := g.SheetByID(data.ActiveSheet); ok {
		if idx, err := f.GetSheetIndex(active.Name); err == nil && idx >= 0 {
			f.SetActiveSheet(idx)
		}
	}
	return f.Write(w)
}

func writeSheet(f *excelize.File, g *spreadsheet.Getters, styles *styleWriter, sheet spreadsheet.SheetData) error {
	for _, xc := range slices.Sorted(maps.Keys(sheet.Cells)) {
		cell := sheet.Cells[xc]
		col, row, err := spreadsheet.ParseXC(xc)
		if err != nil {
			return err
		}
		name, err := excelize.CoordinatesToCellName(col+1, row+1)
		if err != nil {
			return err
		}
		value := g.EvaluatedValue(sheet.ID, col, row)
		if err := f.SetCellValue(sheet.Name, name, excelValue(value)); err != nil {
			return err
		}
		// formula last, setting a value drops it
		if strings.HasPrefix(cell.Content, "=") {
			if err := f.SetCellFormula(sheet.Name, name, cell.Content[1:]); err != nil {
				return err
			}
		}
		if cell.Style == 0 && cell.Format == "" {
			continue
		}
		styleID, err := styles.id(cell.Style, cell.Format)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet.Name, name, name, styleID); err != nil {
			return err
		}
	}

	for _, xc := range sheet.Merges {
		zone, err := spreadsheet.ParseZone(xc)
		if err != nil {
			return err
		}
		topLeft, _ := excelize.CoordinatesToCellName(zone.Left+1, zone.Top+1)
		bottomRight, _ := excelize.CoordinatesToCellName(zone.Right+1, zone.Bottom+1)
		if err := f.MergeCell(sheet.Name, topLeft, bottomRight); err != nil {
			return err
		}
	}

	for _, col := range slices.Sorted(maps.Keys(sheet.Cols)) {
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet.Name, name, name, sheet.Cols[col].Size/pixelsPerChar); err != nil {
			return err
		}
	}
	for _, row := range slices.Sorted(maps.Keys(sheet.Rows)) {
		if err := f.SetRowHeight(sheet.Name, row+1, sheet.Rows[row].Size*pointsPerPixel); err != nil {
			return err
		}
	}
	return nil
}

// excelValue maps an evaluated value to what excelize stores. errors are
// written as their sentinel text.
func excelValue(value spreadsheet.Primitive) any {
	switch v := value.(type) {
	case *spreadsheet.SpreadsheetError:
		return v.Sentinel()
	case nil:
		return ""
	}
	return value
}

type styleKey struct {
	style  int
	format string
}

// styleWriter registers one excel style per (style id, number format) pair
type styleWriter struct {
	file   *excelize.File
	styles map[int]spreadsheet.Style
	ids    map[styleKey]int
}

func (w *styleWriter) id(styleID int, format string) (int, error) {
	key := styleKey{styleID, format}
	if id, ok := w.ids[key]; ok {
		return id, nil
	}
	style := w.styles[styleID]
	xs := &excelize.Style{
		Font: &excelize.Font{
			Bold:   style.Bold,
			Italic: style.Italic,
			Strike: style.Strikethrough,
			Size:   style.FontSize,
			Color:  toExcelColor(style.TextColor),
		},
	}
	if style.FillColor != "" {
		xs.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{toExcelColor(style.FillColor)}}
	}
	if style.Align != "" {
		xs.Alignment = &excelize.Alignment{Horizontal: style.Align}
	}
	if format != "" {
		xs.CustomNumFmt = &format
	}
	id, err := w.file.NewStyle(xs)
	if err != nil {
		return 0, err
	}
	w.ids[key] = id
	return id, nil
}

func toExcelColor(color string) string {
	return strings.ToUpper(strings.TrimPrefix(color, "#"))
}

// fromExcelColor reads "FF0000" or "FFFF0000" (with alpha) as "#ff0000"
func fromExcelColor(color string) string {
	color = strings.TrimPrefix(color, "#")
	if len(color) == 8 {
		color = color[2:]
	}
	if len(color) != 6 {
		return ""
	}
	return "#" + strings.ToLower(color)
}
