package spreadsheet

// ASTKey represents a normalized AST used as a key for formula deduplication,
// two formulas with the same structure (ignoring whitespace) relative to
// their cells will have the same ASTKey
type ASTKey string

// FormulaTable interns compiled formulas by ASTKey. "=A1+1" in B1 and
// "=A2+1" in B2 share one entry.
type FormulaTable struct {
	env       CompileEnv
	astIndex  map[ASTKey]*Compiled // normalized AST -> compiled formula
	refCounts map[ASTKey]int       // normalized AST -> cells using it
}

// NewFormulaTable creates a new formula table
func NewFormulaTable(env CompileEnv) *FormulaTable {
	return &FormulaTable{
		env:       env,
		astIndex:  make(map[ASTKey]*Compiled),
		refCounts: make(map[ASTKey]int),
	}
}

// Acquire compiles text at anchor and returns the shared entry for its
// key. failed compiles are not interned.
func (ft *FormulaTable) Acquire(text string, anchor CellAddress) *Compiled {
	compiled := Compile(text, anchor, ft.env)
	if compiled.Err != nil {
		return compiled
	}
	if existing, ok := ft.astIndex[compiled.Key]; ok {
		ft.refCounts[compiled.Key]++
		return existing
	}
	ft.astIndex[compiled.Key] = compiled
	ft.refCounts[compiled.Key] = 1
	return compiled
}

// Release drops one use of c, forgetting it with the last one
func (ft *FormulaTable) Release(c *Compiled) {
	if c == nil || c.Err != nil {
		return
	}
	if ft.astIndex[c.Key] != c {
		return
	}
	ft.refCounts[c.Key]--
	if ft.refCounts[c.Key] <= 0 {
		delete(ft.refCounts, c.Key)
		delete(ft.astIndex, c.Key)
	}
}

// Count returns the number of distinct formulas
func (ft *FormulaTable) Count() int {
	return len(ft.astIndex)
}

// ReferenceCount returns how many cells use the formula with this key
func (ft *FormulaTable) ReferenceCount(key ASTKey) int {
	return ft.refCounts[key]
}

// Clear removes every entry
func (ft *FormulaTable) Clear() {
	ft.astIndex = make(map[ASTKey]*Compiled)
	ft.refCounts = make(map[ASTKey]int)
}
