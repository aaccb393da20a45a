package spreadsheet

import "log/slog"

// Plugin owns one slice of the model state and reacts to commands. the
// model calls AllowDispatch on every plugin before any of them handles the
// command, so a rejection leaves the state untouched.
type Plugin interface {
	AllowDispatch(cmd Command) CancelledReason
	BeforeHandle(cmd Command)
	Handle(cmd Command)
	Finalize()
}

// pluginEnv is what a plugin may use besides its own state
type pluginEnv struct {
	history   *History
	getters   *Getters
	evaluator *Evaluator
	logger    *slog.Logger
	newID     func() string
	// dispatch runs a sub-command inside the current history step
	dispatch func(cmd Command) CommandResult
}

// basePlugin provides no-op hooks
type basePlugin struct {
	env *pluginEnv
}

func (basePlugin) AllowDispatch(Command) CancelledReason { return ReasonNone }
func (basePlugin) BeforeHandle(Command)                  {}
func (basePlugin) Handle(Command)                        {}
func (basePlugin) Finalize()                             {}

// checkSheet is the common validation of commands addressing a sheet
func (p basePlugin) checkSheet(sheetID string) CancelledReason {
	if _, ok := p.env.getters.SheetByID(sheetID); !ok {
		return ReasonInvalidSheetID
	}
	return ReasonNone
}

// checkTarget validates zones against the sheet bounds
func (p basePlugin) checkTarget(sheetID string, zones ...Zone) CancelledReason {
	sheet, ok := p.env.getters.SheetByID(sheetID)
	if !ok {
		return ReasonInvalidSheetID
	}
	if len(zones) == 0 {
		return ReasonEmptyTarget
	}
	for _, z := range zones {
		if !z.IsWithin(sheet.Cols, sheet.Rows) {
			return ReasonTargetOutOfSheet
		}
	}
	return ReasonNone
}

// firstReason returns the first rejection of checks, evaluated in order
func firstReason(checks ...func() CancelledReason) CancelledReason {
	for _, check := range checks {
		if reason := check(); reason != ReasonNone {
			return reason
		}
	}
	return ReasonNone
}
