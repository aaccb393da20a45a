package spreadsheet

// CommandStatus is the outcome of a dispatch
type CommandStatus string

const (
	StatusSuccess   CommandStatus = "SUCCESS"
	StatusCancelled CommandStatus = "CANCELLED"
)

// CancelledReason names why a command was rejected. a rejected command
// changes nothing.
type CancelledReason string

const (
	ReasonNone                     CancelledReason = ""
	ReasonInvalidSheetID           CancelledReason = "InvalidSheetId"
	ReasonDuplicatedSheetName      CancelledReason = "DuplicatedSheetName"
	ReasonInvalidSheetName         CancelledReason = "InvalidSheetName"
	ReasonMalformedSelection       CancelledReason = "MalformedSelection"
	ReasonNotEnoughSheets          CancelledReason = "NotEnoughSheets"
	ReasonNotEnoughElements        CancelledReason = "NotEnoughElements"
	ReasonEmptyUndoStack           CancelledReason = "EmptyUndoStack"
	ReasonEmptyRedoStack           CancelledReason = "EmptyRedoStack"
	ReasonWrongComposerSelection   CancelledReason = "WrongComposerSelection"
	ReasonTargetOutOfSheet         CancelledReason = "TargetOutOfSheet"
	ReasonMergeOverlap             CancelledReason = "MergeOverlap"
	ReasonWrongSheetMove           CancelledReason = "WrongSheetMove"
	ReasonNotEditing               CancelledReason = "NotEditing"
	ReasonInvalidAutofillSelection CancelledReason = "InvalidAutofillSelection"
	ReasonEmptyTarget              CancelledReason = "EmptyTarget"
	ReasonInvalidCommand           CancelledReason = "InvalidCommand"

	// conditional formats
	ReasonMinBiggerThanMax         CancelledReason = "MinBiggerThanMax"
	ReasonMinBiggerThanMid         CancelledReason = "MinBiggerThanMid"
	ReasonMidBiggerThanMax         CancelledReason = "MidBiggerThanMax"
	ReasonMinNaN                   CancelledReason = "MinNaN"
	ReasonMidNaN                   CancelledReason = "MidNaN"
	ReasonMaxNaN                   CancelledReason = "MaxNaN"
	ReasonMinInvalidFormula        CancelledReason = "MinInvalidFormula"
	ReasonMidInvalidFormula        CancelledReason = "MidInvalidFormula"
	ReasonMaxInvalidFormula        CancelledReason = "MaxInvalidFormula"
	ReasonMinAsyncFormula          CancelledReason = "MinAsyncFormulaNotSupported"
	ReasonMidAsyncFormula          CancelledReason = "MidAsyncFormulaNotSupported"
	ReasonMaxAsyncFormula          CancelledReason = "MaxAsyncFormulaNotSupported"
	ReasonFirstArgMissing          CancelledReason = "FirstArgMissing"
	ReasonSecondArgMissing         CancelledReason = "SecondArgMissing"
	ReasonValueInvalidFormula      CancelledReason = "ValueCellIsInvalidFormula"
	ReasonValueAsyncFormula        CancelledReason = "ValueAsyncFormulaNotSupported"
	ReasonInvalidCFOperator        CancelledReason = "InvalidOperator"
	ReasonInvalidCFRule            CancelledReason = "InvalidRule"
	ReasonInvalidCFThresholdType   CancelledReason = "InvalidThresholdType"
	ReasonUnknownConditionalFormat CancelledReason = "UnknownConditionalFormat"
)

const asyncFormulaMessage = "some formulas are not supported"

var reasonMessages = map[CancelledReason]string{
	ReasonInvalidSheetID:           "The sheet does not exist",
	ReasonDuplicatedSheetName:      "A sheet with the same name already exists",
	ReasonInvalidSheetName:         "The sheet name is invalid",
	ReasonMalformedSelection:       "The selection is malformed",
	ReasonNotEnoughSheets:          "A workbook must keep at least one sheet",
	ReasonNotEnoughElements:        "A sheet must keep at least one row and one column",
	ReasonEmptyUndoStack:           "Nothing to undo",
	ReasonEmptyRedoStack:           "Nothing to redo",
	ReasonWrongComposerSelection:   "The composer selection is out of bounds",
	ReasonTargetOutOfSheet:         "The target is out of the sheet",
	ReasonMergeOverlap:             "The merge overlaps an existing merge",
	ReasonWrongSheetMove:           "The sheet cannot be moved further",
	ReasonNotEditing:               "No edition in progress",
	ReasonInvalidAutofillSelection: "The autofill selection is invalid",
	ReasonEmptyTarget:              "The target is empty",
	ReasonInvalidCommand:           "The command is invalid",

	ReasonMinBiggerThanMax:         "Minimum must be smaller then Maximum",
	ReasonMinBiggerThanMid:         "Minimum must be smaller then Midpoint",
	ReasonMidBiggerThanMax:         "Midpoint must be smaller then Maximum",
	ReasonMinNaN:                   "The minpoint must be a number",
	ReasonMidNaN:                   "The midpoint must be a number",
	ReasonMaxNaN:                   "The maxpoint must be a number",
	ReasonMinInvalidFormula:        "Invalid Minpoint formula",
	ReasonMidInvalidFormula:        "Invalid Midpoint formula",
	ReasonMaxInvalidFormula:        "Invalid Maxpoint formula",
	ReasonMinAsyncFormula:          asyncFormulaMessage,
	ReasonMidAsyncFormula:          asyncFormulaMessage,
	ReasonMaxAsyncFormula:          asyncFormulaMessage,
	ReasonFirstArgMissing:          "The argument is missing. Please provide a value",
	ReasonSecondArgMissing:         "The second argument is missing. Please provide a value",
	ReasonValueInvalidFormula:      "Invalid formula",
	ReasonValueAsyncFormula:        asyncFormulaMessage,
	ReasonInvalidCFOperator:        "Unknown operator",
	ReasonInvalidCFRule:            "Unknown rule type",
	ReasonInvalidCFThresholdType:   "Unknown threshold type",
	ReasonUnknownConditionalFormat: "The conditional format does not exist",
}

// CommandResult is returned by Model.Dispatch
type CommandResult struct {
	Status CommandStatus   `json:"status"`
	Reason CancelledReason `json:"reason,omitempty"`
}

// Success is the result of an accepted command
var Success = CommandResult{Status: StatusSuccess}

// Cancelled is the result of a command rejected for reason
func Cancelled(reason CancelledReason) CommandResult {
	return CommandResult{Status: StatusCancelled, Reason: reason}
}

// IsSuccess reports whether the command was applied
func (r CommandResult) IsSuccess() bool {
	return r.Status == StatusSuccess
}

// Message is the human readable reason of a cancellation
func (r CommandResult) Message() string {
	if r.IsSuccess() {
		return ""
	}
	if msg, ok := reasonMessages[r.Reason]; ok {
		return msg
	}
	return string(r.Reason)
}
