package spreadsheet

import (
	"encoding/json"
	"fmt"
)

// WorkbookData is the persisted form of a workbook
type WorkbookData struct {
	Version     int            `json:"version" mapstructure:"version"`
	ActiveSheet string         `json:"activeSheet" mapstructure:"activeSheet"`
	Sheets      []SheetData    `json:"sheets" mapstructure:"sheets"`
	Styles      map[int]Style  `json:"styles" mapstructure:"styles"`
	Borders     map[int]Border `json:"borders" mapstructure:"borders"`
}

type SheetData struct {
	ID                 string              `json:"id" mapstructure:"id"`
	Name               string              `json:"name" mapstructure:"name"`
	ColNumber          int                 `json:"colNumber" mapstructure:"colNumber"`
	RowNumber          int                 `json:"rowNumber" mapstructure:"rowNumber"`
	Cols               map[int]HeaderData  `json:"cols" mapstructure:"cols"`
	Rows               map[int]HeaderData  `json:"rows" mapstructure:"rows"`
	Cells              map[string]CellData `json:"cells" mapstructure:"cells"`
	Merges             []string            `json:"merges" mapstructure:"merges"`
	ConditionalFormats []ConditionalFormat `json:"conditionalFormats" mapstructure:"conditionalFormats"`
	Figures            []Figure            `json:"figures" mapstructure:"figures"`
}

type HeaderData struct {
	Size float64 `json:"size" mapstructure:"size"`
}

type CellData struct {
	Content string `json:"content,omitempty" mapstructure:"content"`
	Style   int    `json:"style,omitempty" mapstructure:"style"`
	Border  int    `json:"border,omitempty" mapstructure:"border"`
	Format  string `json:"format,omitempty" mapstructure:"format"`
}

// ParseWorkbook decodes a JSON workbook of any known version
func ParseWorkbook(raw []byte) (*WorkbookData, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, NewApplicationError(InvalidArgument, fmt.Sprintf("invalid workbook: %v", err))
	}
	return DecodeWorkbook(doc)
}

// DecodeWorkbook migrates a loosely typed workbook document to the current
// version and decodes it
func DecodeWorkbook(doc map[string]any) (*WorkbookData, error) {
	if doc == nil {
		doc = map[string]any{}
	}
	if err := migrate(doc); err != nil {
		return nil, err
	}
	var data WorkbookData
	if err := decodeMap(doc, &data); err != nil {
		return nil, NewApplicationError(InvalidArgument, fmt.Sprintf("invalid workbook: %v", err))
	}
	normalizeWorkbook(&data)
	return &data, nil
}

// MarshalWorkbook encodes data as indented JSON
func MarshalWorkbook(data *WorkbookData) ([]byte, error) {
	return json.MarshalIndent(data, "", "  ")
}

// normalizeWorkbook fills what a valid document may omit
func normalizeWorkbook(data *WorkbookData) {
	data.Version = CurrentVersion
	if len(data.Sheets) == 0 {
		data.Sheets = []SheetData{{ID: "Sheet1", Name: "Sheet1"}}
	}
	active := false
	for i := range data.Sheets {
		sheet := &data.Sheets[i]
		if sheet.ColNumber <= 0 {
			sheet.ColNumber = DefaultColNumber
		}
		if sheet.RowNumber <= 0 {
			sheet.RowNumber = DefaultRowNumber
		}
		if sheet.ID == data.ActiveSheet {
			active = true
		}
	}
	if !active {
		data.ActiveSheet = data.Sheets[0].ID
	}
}
