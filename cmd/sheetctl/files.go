package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
	"github.com/vogtb/go-spreadsheet/packages/xlsx"
)

// readWorkbookFile loads a .json or .xlsx workbook
func readWorkbookFile(path string) (*spreadsheet.WorkbookData, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return xlsx.ReadFile(path)
	case ".json":
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		data, err := spreadsheet.ParseWorkbook(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("unsupported workbook file %s, want .json or .xlsx", path)
}

// writeWorkbookFile saves the model as .json or .xlsx
func writeWorkbookFile(path string, m *spreadsheet.Model) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return xlsx.WriteFile(path, m)
	case ".json":
		raw, err := spreadsheet.MarshalWorkbook(m.Export())
		if err != nil {
			return err
		}
		return os.WriteFile(path, append(raw, '\n'), 0o644)
	}
	return fmt.Errorf("unsupported workbook file %s, want .json or .xlsx", path)
}
