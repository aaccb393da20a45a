package spreadsheet

import "strings"

// Reference is one address a formula reads, resolved against its anchor
type Reference struct {
	SheetID string
	Zone    Zone
	IsRange bool
}

// CompileEnv is what the compiler binds a formula against
type CompileEnv struct {
	Functions    *FunctionRegistry
	ResolveSheet func(name string) (string, bool)
}

// Compiled is a parsed and bound formula. it does not depend on the anchor
// cell: relative references are stored as offsets, so one Compiled is
// shared by every cell whose formula normalizes to the same key.
type Compiled struct {
	Key      ASTKey
	AST      ASTNode
	Async    bool
	Volatile bool
	// Err is set when the formula cannot be compiled. the cell evaluates to
	// it permanently while keeping its raw text.
	Err *SpreadsheetError
}

// Compile tokenizes, parses and binds formula text at anchor
func Compile(text string, anchor CellAddress, env CompileEnv) *Compiled {
	lexer := NewLexer(strings.TrimSpace(text))
	tokens, lexErrors := lexer.Tokenize()
	if len(lexErrors) > 0 {
		return &Compiled{Err: badExpr("Invalid formula: %s", lexErrors[0])}
	}

	parser := NewParser(tokens, &ParserContext{
		Anchor:       anchor,
		ResolveSheet: env.ResolveSheet,
		Functions:    env.Functions,
	})
	ast, err := parser.Parse()
	if err != nil {
		return &Compiled{Err: asSpreadsheetError(err)}
	}

	return &Compiled{
		Key:      ASTKey(ast.ToString()),
		AST:      ast,
		Async:    parser.asyncCount > 0,
		Volatile: parser.volatile,
	}
}

// Evaluate runs the formula. a compile error is returned as the value.
func (c *Compiled) Evaluate(ctx EvalContext) (Primitive, error) {
	if c.Err != nil {
		return c.Err, nil
	}
	return c.AST.Eval(ctx)
}

// References lists every cell and range the formula reads when evaluated
// at anchor. references that resolve off the grid are left out.
func (c *Compiled) References(anchor CellAddress) []Reference {
	if c.AST == nil {
		return nil
	}
	var refs []Reference
	walkAST(c.AST, func(node ASTNode) {
		switch n := node.(type) {
		case *CellRefNode:
			if addr, ok := n.Address(anchor); ok {
				refs = append(refs, Reference{SheetID: addr.SheetID, Zone: ZoneOf(addr.Col, addr.Row)})
			}
		case *RangeNode:
			if sheetID, zone, ok := n.Zone(anchor); ok {
				refs = append(refs, Reference{SheetID: sheetID, Zone: zone, IsRange: true})
			}
		}
	})
	return refs
}

// walkAST visits node and its children depth-first
func walkAST(node ASTNode, visit func(ASTNode)) {
	visit(node)
	switch n := node.(type) {
	case *BinaryOpNode:
		walkAST(n.Left, visit)
		walkAST(n.Right, visit)
	case *UnaryOpNode:
		walkAST(n.Operand, visit)
	case *FunctionCallNode:
		for _, arg := range n.Args {
			walkAST(arg, visit)
		}
	}
}
