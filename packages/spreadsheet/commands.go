package spreadsheet

import (
	"fmt"
	"slices"

	"github.com/mitchellh/mapstructure"
)

// Command is a structured intent dispatched into the model. the set of
// commands is closed, every variant is declared in this file.
type Command interface {
	Type() string
	command()
}

// Direction of a MOVE_SHEET command
const (
	MoveLeft  = "left"
	MoveRight = "right"
)

// Insertion side of ADD_COLUMNS and ADD_ROWS
const (
	InsertBefore = "before"
	InsertAfter  = "after"
)

type CreateSheet struct {
	SheetID  string `json:"sheetId" mapstructure:"sheetId"`
	Name     string `json:"name,omitempty" mapstructure:"name"`
	Position *int   `json:"position,omitempty" mapstructure:"position"`
	Activate bool   `json:"activate,omitempty" mapstructure:"activate"`
	Cols     int    `json:"cols,omitempty" mapstructure:"cols"`
	Rows     int    `json:"rows,omitempty" mapstructure:"rows"`
}

type DeleteSheet struct {
	SheetID string `json:"sheetId" mapstructure:"sheetId"`
}

// DuplicateSheet copies a sheet. an empty SheetIDTo is filled with a new id
// before the command reaches the plugins.
type DuplicateSheet struct {
	SheetID   string `json:"sheetId" mapstructure:"sheetId"`
	SheetIDTo string `json:"sheetIdTo,omitempty" mapstructure:"sheetIdTo"`
	Name      string `json:"name,omitempty" mapstructure:"name"`
}

type RenameSheet struct {
	SheetID string `json:"sheetId" mapstructure:"sheetId"`
	Name    string `json:"name" mapstructure:"name"`
}

type MoveSheet struct {
	SheetID   string `json:"sheetId" mapstructure:"sheetId"`
	Direction string `json:"direction" mapstructure:"direction"`
}

type ActivateSheet struct {
	SheetIDFrom string `json:"sheetIdFrom,omitempty" mapstructure:"sheetIdFrom"`
	SheetIDTo   string `json:"sheetIdTo" mapstructure:"sheetIdTo"`
}

type ResizeColumns struct {
	SheetID string  `json:"sheetId" mapstructure:"sheetId"`
	Columns []int   `json:"columns" mapstructure:"columns"`
	Size    float64 `json:"size" mapstructure:"size"`
}

type ResizeRows struct {
	SheetID string  `json:"sheetId" mapstructure:"sheetId"`
	Rows    []int   `json:"rows" mapstructure:"rows"`
	Size    float64 `json:"size" mapstructure:"size"`
}

type AddColumns struct {
	SheetID  string `json:"sheetId" mapstructure:"sheetId"`
	Base     int    `json:"base" mapstructure:"base"`
	Quantity int    `json:"quantity" mapstructure:"quantity"`
	Position string `json:"position" mapstructure:"position"`
}

type AddRows struct {
	SheetID  string `json:"sheetId" mapstructure:"sheetId"`
	Base     int    `json:"base" mapstructure:"base"`
	Quantity int    `json:"quantity" mapstructure:"quantity"`
	Position string `json:"position" mapstructure:"position"`
}

type RemoveColumns struct {
	SheetID string `json:"sheetId" mapstructure:"sheetId"`
	Columns []int  `json:"columns" mapstructure:"columns"`
}

type RemoveRows struct {
	SheetID string `json:"sheetId" mapstructure:"sheetId"`
	Rows    []int  `json:"rows" mapstructure:"rows"`
}

// UpdateCell sets the given parts of a cell, nil fields are left alone
type UpdateCell struct {
	SheetID string  `json:"sheetId" mapstructure:"sheetId"`
	Col     int     `json:"col" mapstructure:"col"`
	Row     int     `json:"row" mapstructure:"row"`
	Content *string `json:"content,omitempty" mapstructure:"content"`
	Style   *int    `json:"style,omitempty" mapstructure:"style"`
	Border  *int    `json:"border,omitempty" mapstructure:"border"`
	Format  *string `json:"format,omitempty" mapstructure:"format"`
}

type SetValue struct {
	SheetID string `json:"sheetId" mapstructure:"sheetId"`
	XC      string `json:"xc" mapstructure:"xc"`
	Text    string `json:"text" mapstructure:"text"`
}

type ClearCell struct {
	SheetID string `json:"sheetId" mapstructure:"sheetId"`
	Col     int    `json:"col" mapstructure:"col"`
	Row     int    `json:"row" mapstructure:"row"`
}

type DeleteContent struct {
	SheetID string `json:"sheetId" mapstructure:"sheetId"`
	Target  []Zone `json:"target" mapstructure:"target"`
}

type SetFormatting struct {
	SheetID string  `json:"sheetId" mapstructure:"sheetId"`
	Target  []Zone  `json:"target" mapstructure:"target"`
	Style   *Style  `json:"style,omitempty" mapstructure:"style"`
	Border  *Border `json:"border,omitempty" mapstructure:"border"`
}

type ClearFormatting struct {
	SheetID string `json:"sheetId" mapstructure:"sheetId"`
	Target  []Zone `json:"target" mapstructure:"target"`
}

type SetFormatter struct {
	SheetID string `json:"sheetId" mapstructure:"sheetId"`
	Target  []Zone `json:"target" mapstructure:"target"`
	Format  string `json:"format" mapstructure:"format"`
}

type AddMerge struct {
	SheetID string `json:"sheetId" mapstructure:"sheetId"`
	Zone    Zone   `json:"zone" mapstructure:"zone"`
}

type RemoveMerge struct {
	SheetID string `json:"sheetId" mapstructure:"sheetId"`
	Zone    Zone   `json:"zone" mapstructure:"zone"`
}

// AddConditionalFormat adds cf to the sheet, or replaces the format with
// the same id. an empty id is filled before dispatch.
type AddConditionalFormat struct {
	SheetID string            `json:"sheetId" mapstructure:"sheetId"`
	CF      ConditionalFormat `json:"cf" mapstructure:"cf"`
}

type RemoveConditionalFormat struct {
	SheetID string `json:"sheetId" mapstructure:"sheetId"`
	ID      string `json:"id" mapstructure:"id"`
}

type SelectCell struct {
	Col int `json:"col" mapstructure:"col"`
	Row int `json:"row" mapstructure:"row"`
}

type SetSelection struct {
	Anchor Position `json:"anchor" mapstructure:"anchor"`
	Zones  []Zone   `json:"zones" mapstructure:"zones"`
}

type StartEdition struct {
	Text *string `json:"text,omitempty" mapstructure:"text"`
}

type SetCurrentContent struct {
	Content string `json:"content" mapstructure:"content"`
}

type ChangeComposerSelection struct {
	Start int `json:"start" mapstructure:"start"`
	End   int `json:"end" mapstructure:"end"`
}

type StopEdition struct {
	Cancel bool `json:"cancel,omitempty" mapstructure:"cancel"`
}

type AutofillSelect struct {
	Col int `json:"col" mapstructure:"col"`
	Row int `json:"row" mapstructure:"row"`
}

type Autofill struct{}

type AutofillAuto struct{}

type Undo struct{}

type Redo struct{}

func (CreateSheet) Type() string             { return "CREATE_SHEET" }
func (DeleteSheet) Type() string             { return "DELETE_SHEET" }
func (DuplicateSheet) Type() string          { return "DUPLICATE_SHEET" }
func (RenameSheet) Type() string             { return "RENAME_SHEET" }
func (MoveSheet) Type() string               { return "MOVE_SHEET" }
func (ActivateSheet) Type() string           { return "ACTIVATE_SHEET" }
func (ResizeColumns) Type() string           { return "RESIZE_COLUMNS" }
func (ResizeRows) Type() string              { return "RESIZE_ROWS" }
func (AddColumns) Type() string              { return "ADD_COLUMNS" }
func (AddRows) Type() string                 { return "ADD_ROWS" }
func (RemoveColumns) Type() string           { return "REMOVE_COLUMNS" }
func (RemoveRows) Type() string              { return "REMOVE_ROWS" }
func (UpdateCell) Type() string              { return "UPDATE_CELL" }
func (SetValue) Type() string                { return "SET_VALUE" }
func (ClearCell) Type() string               { return "CLEAR_CELL" }
func (DeleteContent) Type() string           { return "DELETE_CONTENT" }
func (SetFormatting) Type() string           { return "SET_FORMATTING" }
func (ClearFormatting) Type() string         { return "CLEAR_FORMATTING" }
func (SetFormatter) Type() string            { return "SET_FORMATTER" }
func (AddMerge) Type() string                { return "ADD_MERGE" }
func (RemoveMerge) Type() string             { return "REMOVE_MERGE" }
func (AddConditionalFormat) Type() string    { return "ADD_CONDITIONAL_FORMAT" }
func (RemoveConditionalFormat) Type() string { return "REMOVE_CONDITIONAL_FORMAT" }
func (SelectCell) Type() string              { return "SELECT_CELL" }
func (SetSelection) Type() string            { return "SET_SELECTION" }
func (StartEdition) Type() string            { return "START_EDITION" }
func (SetCurrentContent) Type() string       { return "SET_CURRENT_CONTENT" }
func (ChangeComposerSelection) Type() string { return "CHANGE_COMPOSER_SELECTION" }
func (StopEdition) Type() string             { return "STOP_EDITION" }
func (AutofillSelect) Type() string          { return "AUTOFILL_SELECT" }
func (Autofill) Type() string                { return "AUTOFILL" }
func (AutofillAuto) Type() string            { return "AUTOFILL_AUTO" }
func (Undo) Type() string                    { return "UNDO" }
func (Redo) Type() string                    { return "REDO" }

func (CreateSheet) command()             {}
func (DeleteSheet) command()             {}
func (DuplicateSheet) command()          {}
func (RenameSheet) command()             {}
func (MoveSheet) command()               {}
func (ActivateSheet) command()           {}
func (ResizeColumns) command()           {}
func (ResizeRows) command()              {}
func (AddColumns) command()              {}
func (AddRows) command()                 {}
func (RemoveColumns) command()           {}
func (RemoveRows) command()              {}
func (UpdateCell) command()              {}
func (SetValue) command()                {}
func (ClearCell) command()               {}
func (DeleteContent) command()           {}
func (SetFormatting) command()           {}
func (ClearFormatting) command()         {}
func (SetFormatter) command()            {}
func (AddMerge) command()                {}
func (RemoveMerge) command()             {}
func (AddConditionalFormat) command()    {}
func (RemoveConditionalFormat) command() {}
func (SelectCell) command()              {}
func (SetSelection) command()            {}
func (StartEdition) command()            {}
func (SetCurrentContent) command()       {}
func (ChangeComposerSelection) command() {}
func (StopEdition) command()             {}
func (AutofillSelect) command()          {}
func (Autofill) command()                {}
func (AutofillAuto) command()            {}
func (Undo) command()                    {}
func (Redo) command()                    {}

var commandDecoders = map[string]func(map[string]any) (Command, error){
	"CREATE_SHEET":              decodeAs[CreateSheet],
	"DELETE_SHEET":              decodeAs[DeleteSheet],
	"DUPLICATE_SHEET":           decodeAs[DuplicateSheet],
	"RENAME_SHEET":              decodeAs[RenameSheet],
	"MOVE_SHEET":                decodeAs[MoveSheet],
	"ACTIVATE_SHEET":            decodeAs[ActivateSheet],
	"RESIZE_COLUMNS":            decodeAs[ResizeColumns],
	"RESIZE_ROWS":               decodeAs[ResizeRows],
	"ADD_COLUMNS":               decodeAs[AddColumns],
	"ADD_ROWS":                  decodeAs[AddRows],
	"REMOVE_COLUMNS":            decodeAs[RemoveColumns],
	"REMOVE_ROWS":               decodeAs[RemoveRows],
	"UPDATE_CELL":               decodeAs[UpdateCell],
	"SET_VALUE":                 decodeAs[SetValue],
	"CLEAR_CELL":                decodeAs[ClearCell],
	"DELETE_CONTENT":            decodeAs[DeleteContent],
	"SET_FORMATTING":            decodeAs[SetFormatting],
	"CLEAR_FORMATTING":          decodeAs[ClearFormatting],
	"SET_FORMATTER":             decodeAs[SetFormatter],
	"ADD_MERGE":                 decodeAs[AddMerge],
	"REMOVE_MERGE":              decodeAs[RemoveMerge],
	"ADD_CONDITIONAL_FORMAT":    decodeAs[AddConditionalFormat],
	"REMOVE_CONDITIONAL_FORMAT": decodeAs[RemoveConditionalFormat],
	"SELECT_CELL":               decodeAs[SelectCell],
	"SET_SELECTION":             decodeAs[SetSelection],
	"START_EDITION":             decodeAs[StartEdition],
	"SET_CURRENT_CONTENT":       decodeAs[SetCurrentContent],
	"CHANGE_COMPOSER_SELECTION": decodeAs[ChangeComposerSelection],
	"STOP_EDITION":              decodeAs[StopEdition],
	"AUTOFILL_SELECT":           decodeAs[AutofillSelect],
	"AUTOFILL":                  decodeAs[Autofill],
	"AUTOFILL_AUTO":             decodeAs[AutofillAuto],
	"UNDO":                      decodeAs[Undo],
	"REDO":                      decodeAs[Redo],
}

// DecodeCommand decodes the wire form {type: TAG, ...payload} of a command
func DecodeCommand(raw map[string]any) (Command, error) {
	tag, _ := raw["type"].(string)
	if tag == "" {
		return nil, NewApplicationError(InvalidArgument, "command has no type")
	}
	decode, ok := commandDecoders[tag]
	if !ok {
		return nil, NewApplicationError(NotFound, fmt.Sprintf("unknown command type: %s", tag))
	}
	cmd, err := decode(raw)
	if err != nil {
		return nil, NewApplicationError(InvalidArgument, fmt.Sprintf("invalid %s payload: %v", tag, err))
	}
	return cmd, nil
}

// CommandTypes lists every command tag, sorted
func CommandTypes() []string {
	types := make([]string, 0, len(commandDecoders))
	for tag := range commandDecoders {
		types = append(types, tag)
	}
	slices.Sort(types)
	return types
}

func decodeAs[C Command](raw map[string]any) (Command, error) {
	var cmd C
	if err := decodeMap(raw, &cmd); err != nil {
		return nil, err
	}
	return cmd, nil
}

// decodeMap decodes loosely typed input (JSON, YAML) into a tagged struct
func decodeMap(input any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		Squash:           true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}
