package spreadsheet

import (
	"strconv"
	"strings"
)

// Primitive represents basic spreadsheet value types.
// types:
//   - float64: numeric values (integers are converted to float64)
//   - string: text values
//   - bool: boolean values (TRUE/FALSE)
//   - nil: empty cells
//   - *SpreadsheetError: error values (#BAD_EXPR, #ERROR, #CYCLE, #REF)
type Primitive any

// ErrorCode represents the in-band error sentinels a cell can evaluate to
type ErrorCode uint8

const (
	ErrorCodeBadExpr ErrorCode = 1 // #BAD_EXPR - unparsable formula or unknown function
	ErrorCodeError   ErrorCode = 2 // #ERROR - runtime failure inside an expression
	ErrorCodeCycle   ErrorCode = 3 // #CYCLE - circular dependency
	ErrorCodeRef     ErrorCode = 4 // #REF - reference to a deleted sheet or area
)

// ErrorMapper maps error code numbers to their string representations
var ErrorMapper = map[ErrorCode]string{
	ErrorCodeBadExpr: "#BAD_EXPR",
	ErrorCodeError:   "#ERROR",
	ErrorCodeCycle:   "#CYCLE",
	ErrorCodeRef:     "#REF",
}

// SpreadsheetError preserves error code for display in cells
type SpreadsheetError struct {
	ErrorCode ErrorCode
	Message   string
}

func (e *SpreadsheetError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return ErrorMapper[e.ErrorCode]
}

// Sentinel returns the value shown in the cell, e.g. "#CYCLE".
func (e *SpreadsheetError) Sentinel() string {
	return ErrorMapper[e.ErrorCode]
}

func NewSpreadsheetError(code ErrorCode, message string) *SpreadsheetError {
	if message == "" {
		message = ErrorMapper[code]
	}
	return &SpreadsheetError{
		ErrorCode: code,
		Message:   message,
	}
}

// CellKind is derived from the raw content of a cell
type CellKind uint8

const (
	CellKindEmpty   CellKind = 0
	CellKindText    CellKind = 1
	CellKindNumber  CellKind = 2
	CellKindFormula CellKind = 3
)

func (k CellKind) String() string {
	switch k {
	case CellKindText:
		return "text"
	case CellKindNumber:
		return "number"
	case CellKindFormula:
		return "formula"
	default:
		return "empty"
	}
}

// CellID is the stable identity of a cell. it survives row and column
// insertion/deletion, only the position index changes.
type CellID uint32

// Cell is the persisted part of a cell. the evaluated value lives in the
// evaluator, never here.
type Cell struct {
	ID      CellID
	Content string
	Style   int    // style dictionary id, 0 for none
	Border  int    // border dictionary id, 0 for none
	Format  string // number format, e.g. "0.00%" or "m/d/yyyy"
}

// Kind returns the derived kind of the cell content
func (c Cell) Kind() CellKind {
	return kindOfContent(c.Content)
}

// IsFormula reports whether the content starts with '='
func (c Cell) IsFormula() bool {
	return strings.HasPrefix(c.Content, "=")
}

// isEmpty is the sparse invariant: a cell that carries nothing must not exist
func (c Cell) isEmpty() bool {
	return c.Content == "" && c.Style == 0 && c.Border == 0 && c.Format == ""
}

func kindOfContent(content string) CellKind {
	switch {
	case content == "":
		return CellKindEmpty
	case strings.HasPrefix(content, "="):
		return CellKindFormula
	}
	if _, ok := parseNumberContent(content); ok {
		return CellKindNumber
	}
	return CellKindText
}

// parseNumberContent parses a literal number, with an optional trailing
// percent sign
func parseNumberContent(content string) (float64, bool) {
	s := strings.TrimSpace(content)
	if s == "" {
		return 0, false
	}
	percent := false
	if strings.HasSuffix(s, "%") {
		percent = true
		s = strings.TrimSpace(s[:len(s)-1])
	}
	num, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if percent {
		num = num / 100
	}
	return num, true
}

// literalValue evaluates non-formula content
func literalValue(content string) Primitive {
	if content == "" {
		return nil
	}
	if num, ok := parseNumberContent(content); ok {
		return num
	}
	switch strings.ToUpper(content) {
	case "TRUE":
		return true
	case "FALSE":
		return false
	}
	return content
}

// Style holds the visual attributes of a cell. zero values mean "not set",
// which lets conditional formats merge styles field by field.
type Style struct {
	Bold          bool    `json:"bold,omitempty" mapstructure:"bold"`
	Italic        bool    `json:"italic,omitempty" mapstructure:"italic"`
	Strikethrough bool    `json:"strikethrough,omitempty" mapstructure:"strikethrough"`
	FontSize      float64 `json:"fontSize,omitempty" mapstructure:"fontSize"`
	FillColor     string  `json:"fillColor,omitempty" mapstructure:"fillColor"`
	TextColor     string  `json:"textColor,omitempty" mapstructure:"textColor"`
	Align         string  `json:"align,omitempty" mapstructure:"align"`
}

// IsZero reports whether no attribute is set
func (s Style) IsZero() bool {
	return s == Style{}
}

// mergeMissing copies every field of other that is not already set on s
func (s Style) mergeMissing(other Style) Style {
	if !s.Bold {
		s.Bold = other.Bold
	}
	if !s.Italic {
		s.Italic = other.Italic
	}
	if !s.Strikethrough {
		s.Strikethrough = other.Strikethrough
	}
	if s.FontSize == 0 {
		s.FontSize = other.FontSize
	}
	if s.FillColor == "" {
		s.FillColor = other.FillColor
	}
	if s.TextColor == "" {
		s.TextColor = other.TextColor
	}
	if s.Align == "" {
		s.Align = other.Align
	}
	return s
}

// BorderSide describes one edge of a cell border
type BorderSide struct {
	Style string `json:"style,omitempty" mapstructure:"style"`
	Color string `json:"color,omitempty" mapstructure:"color"`
}

// Border describes the four edges of a cell
type Border struct {
	Top    BorderSide `json:"top,omitempty" mapstructure:"top"`
	Left   BorderSide `json:"left,omitempty" mapstructure:"left"`
	Bottom BorderSide `json:"bottom,omitempty" mapstructure:"bottom"`
	Right  BorderSide `json:"right,omitempty" mapstructure:"right"`
}

// IsZero reports whether no side is set
func (b Border) IsZero() bool {
	return b == Border{}
}
