package spreadsheet

import "fmt"

// CurrentVersion is the workbook version written by Export
const CurrentVersion = 3

// migrations[i] upgrades a document from version i+1 to i+2
var migrations = []func(doc map[string]any){
	migrateSheetIDs,
	migrateFiguresAndOperators,
}

// migrate upgrades doc in place to CurrentVersion. a document without
// version is version 1.
func migrate(doc map[string]any) error {
	version := 1
	if raw, ok := doc["version"]; ok {
		v, ok := toNumber(raw)
		if !ok || v < 1 || v != float64(int(v)) {
			return NewApplicationError(InvalidArgument, fmt.Sprintf("invalid workbook version %v", raw))
		}
		version = int(v)
	}
	if version > CurrentVersion {
		return NewApplicationError(FailedPrecondition, fmt.Sprintf("workbook version %d is newer than %d", version, CurrentVersion))
	}
	for v := version; v < CurrentVersion; v++ {
		migrations[v-1](doc)
		doc["version"] = v + 1
	}
	return nil
}

func sheetMaps(doc map[string]any) []map[string]any {
	list, _ := doc["sheets"].([]any)
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if sheet, ok := item.(map[string]any); ok {
			out = append(out, sheet)
		}
	}
	return out
}

// migrateSheetIDs gives sheets an id, their name, and points the active
// sheet at an id instead of a name
func migrateSheetIDs(doc map[string]any) {
	active, _ := doc["activeSheet"].(string)
	for _, sheet := range sheetMaps(doc) {
		name, _ := sheet["name"].(string)
		if id, ok := sheet["id"].(string); !ok || id == "" {
			sheet["id"] = name
		}
		if name == active {
			doc["activeSheet"] = sheet["id"]
		}
	}
}

// migrateFiguresAndOperators adds the figures list and writes conditional
// format operators in their canonical case
func migrateFiguresAndOperators(doc map[string]any) {
	for _, sheet := range sheetMaps(doc) {
		if _, ok := sheet["figures"]; !ok {
			sheet["figures"] = []any{}
		}
		cfs, _ := sheet["conditionalFormats"].([]any)
		for _, item := range cfs {
			cf, _ := item.(map[string]any)
			rule, _ := cf["rule"].(map[string]any)
			name, _ := rule["operator"].(string)
			if op, ok := canonicalOperator(name); ok {
				rule["operator"] = string(op)
			}
		}
	}
}
