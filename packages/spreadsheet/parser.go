package spreadsheet

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type NodePosition struct {
	Start int
	End   int
}

// AST enables dependency extraction, formula transformation, and
// volatile function detection through tree traversal rather than
// regex/string manipulation.
type ASTNode interface {
	Eval(ctx EvalContext) (Primitive, error)
	GetPosition() NodePosition
	ToString() string
}

// EvalContext resolves references while a formula is evaluated. reads of
// formula cells that are still pending compute them first.
type EvalContext interface {
	Anchor() CellAddress
	ReadCell(addr CellAddress) Primitive
	ReadRange(sheetID string, zone Zone) Range
	CallAsync(call *FunctionCallNode, args []Primitive) (Primitive, error)
}

// errAsyncPending unwinds an evaluation that is waiting on a future. it is
// never turned into a cell value.
var errAsyncPending = errors.New("async result pending")

// ParserContext provides context for parsing relative references
type ParserContext struct {
	Anchor       CellAddress
	ResolveSheet func(name string) (string, bool)
	Functions    *FunctionRegistry
}

// Parser parses tokens into an AST
type Parser struct {
	tokens     []Token
	pos        int
	context    *ParserContext
	asyncCount int
	volatile   bool
}

// AxisRef is one axis of a reference. a fixed axis ($) holds the absolute
// 0-based index, a relative one holds the offset from the anchor cell.
type AxisRef struct {
	Value int
	Fixed bool
}

func (a AxisRef) resolve(anchor int) int {
	if a.Fixed {
		return a.Value
	}
	return anchor + a.Value
}

func (a AxisRef) key() string {
	if a.Fixed {
		return "$" + strconv.Itoa(a.Value)
	}
	return strconv.Itoa(a.Value)
}

func newAxisRef(index, anchor int, fixed bool) AxisRef {
	if fixed {
		return AxisRef{Value: index, Fixed: true}
	}
	return AxisRef{Value: index - anchor}
}

// StringNode represents a string literal
type StringNode struct {
	Value    string
	Position NodePosition
}

func (n *StringNode) Eval(ctx EvalContext) (Primitive, error) {
	return n.Value, nil
}

func (n *StringNode) GetPosition() NodePosition {
	return n.Position
}

func (n *StringNode) ToString() string {
	escaped := strings.ReplaceAll(n.Value, "\"", "\"\"")
	return fmt.Sprintf("\"%s\"", escaped)
}

// NumberNode represents a numeric literal
type NumberNode struct {
	Value    float64
	Position NodePosition
}

func (n *NumberNode) Eval(ctx EvalContext) (Primitive, error) {
	return n.Value, nil
}

func (n *NumberNode) GetPosition() NodePosition {
	return n.Position
}

func (n *NumberNode) ToString() string {
	return strconv.FormatFloat(n.Value, 'g', -1, 64)
}

// BooleanNode represents a boolean literal
type BooleanNode struct {
	Value    bool
	Position NodePosition
}

func (n *BooleanNode) Eval(ctx EvalContext) (Primitive, error) {
	return n.Value, nil
}

func (n *BooleanNode) GetPosition() NodePosition {
	return n.Position
}

func (n *BooleanNode) ToString() string {
	if n.Value {
		return "TRUE"
	}
	return "FALSE"
}

// CellRefNode represents a single cell reference. an empty SheetID means
// the sheet of the evaluated cell.
type CellRefNode struct {
	SheetID  string
	Col      AxisRef
	Row      AxisRef
	Position NodePosition
}

// Address resolves the reference against the anchor cell
func (n *CellRefNode) Address(anchor CellAddress) (CellAddress, bool) {
	sheetID := n.SheetID
	if sheetID == "" {
		sheetID = anchor.SheetID
	}
	col := n.Col.resolve(anchor.Col)
	row := n.Row.resolve(anchor.Row)
	if col < 0 || row < 0 {
		return CellAddress{}, false
	}
	return CellAddress{SheetID: sheetID, Col: col, Row: row}, true
}

func (n *CellRefNode) Eval(ctx EvalContext) (Primitive, error) {
	addr, ok := n.Address(ctx.Anchor())
	if !ok {
		return nil, NewSpreadsheetError(ErrorCodeRef, "Invalid cell reference")
	}
	return ctx.ReadCell(addr), nil
}

func (n *CellRefNode) GetPosition() NodePosition {
	return n.Position
}

func (n *CellRefNode) ToString() string {
	return fmt.Sprintf("REF(%s,%s,%s)", n.SheetID, n.Col.key(), n.Row.key())
}

// RangeNode represents a rectangular range of cells
type RangeNode struct {
	SheetID  string
	StartCol AxisRef
	StartRow AxisRef
	EndCol   AxisRef
	EndRow   AxisRef
	Position NodePosition
}

// Zone resolves the range against the anchor cell
func (n *RangeNode) Zone(anchor CellAddress) (string, Zone, bool) {
	sheetID := n.SheetID
	if sheetID == "" {
		sheetID = anchor.SheetID
	}
	z := Zone{
		Left:   n.StartCol.resolve(anchor.Col),
		Top:    n.StartRow.resolve(anchor.Row),
		Right:  n.EndCol.resolve(anchor.Col),
		Bottom: n.EndRow.resolve(anchor.Row),
	}.Canonical()
	if z.Left < 0 || z.Top < 0 {
		return "", Zone{}, false
	}
	return sheetID, z, true
}

func (n *RangeNode) Eval(ctx EvalContext) (Primitive, error) {
	sheetID, zone, ok := n.Zone(ctx.Anchor())
	if !ok {
		return nil, NewSpreadsheetError(ErrorCodeRef, "Invalid range reference")
	}
	return ctx.ReadRange(sheetID, zone), nil
}

func (n *RangeNode) GetPosition() NodePosition {
	return n.Position
}

func (n *RangeNode) ToString() string {
	return fmt.Sprintf("RANGE(%s,%s,%s,%s,%s)", n.SheetID,
		n.StartCol.key(), n.StartRow.key(), n.EndCol.key(), n.EndRow.key())
}

// BrokenRefNode is a reference that can no longer be resolved: an explicit
// #REF left behind by a deletion, or a sheet name that does not exist
type BrokenRefNode struct {
	Code     ErrorCode
	Message  string
	Position NodePosition
}

func (n *BrokenRefNode) Eval(ctx EvalContext) (Primitive, error) {
	return nil, NewSpreadsheetError(n.Code, n.Message)
}

func (n *BrokenRefNode) GetPosition() NodePosition {
	return n.Position
}

func (n *BrokenRefNode) ToString() string {
	return fmt.Sprintf("BROKEN(%d,%q)", n.Code, n.Message)
}

// BinaryOpNode represents a binary operation
type BinaryOpNode struct {
	Op       BinaryOp
	Left     ASTNode
	Right    ASTNode
	Position NodePosition
}

// evalOperand evaluates a child node, turning evaluation errors into error
// values. a pending async result is passed through untouched.
func evalOperand(node ASTNode, ctx EvalContext) (Primitive, error) {
	val, err := node.Eval(ctx)
	if err != nil {
		if errors.Is(err, errAsyncPending) {
			return nil, err
		}
		return asSpreadsheetError(err), nil
	}
	return val, nil
}

// asSpreadsheetError converts any evaluation error into an error value
func asSpreadsheetError(err error) *SpreadsheetError {
	var spreadsheetErr *SpreadsheetError
	if errors.As(err, &spreadsheetErr) {
		return spreadsheetErr
	}
	return NewSpreadsheetError(ErrorCodeError, err.Error())
}

func (n *BinaryOpNode) Eval(ctx EvalContext) (Primitive, error) {
	leftVal, err := evalOperand(n.Left, ctx)
	if err != nil {
		return nil, err
	}
	rightVal, err := evalOperand(n.Right, ctx)
	if err != nil {
		return nil, err
	}

	// propagate errors
	if err, ok := leftVal.(*SpreadsheetError); ok {
		return err, nil
	}
	if err, ok := rightVal.(*SpreadsheetError); ok {
		return err, nil
	}
	if isRange(leftVal) || isRange(rightVal) {
		return nil, NewSpreadsheetError(ErrorCodeError, "Operators require single values, not ranges")
	}

	switch n.Op {
	case BinOpAdd, BinOpSubtract, BinOpMultiply, BinOpDivide, BinOpPower:
		leftNum, leftOk := toNumber(leftVal)
		rightNum, rightOk := toNumber(rightVal)
		if !leftOk || !rightOk {
			return nil, NewSpreadsheetError(ErrorCodeError, fmt.Sprintf("%s requires numeric values", n.opName()))
		}
		switch n.Op {
		case BinOpAdd:
			return leftNum + rightNum, nil
		case BinOpSubtract:
			return leftNum - rightNum, nil
		case BinOpMultiply:
			return leftNum * rightNum, nil
		case BinOpDivide:
			if rightNum == 0 {
				return nil, NewSpreadsheetError(ErrorCodeError, "Division by zero")
			}
			return leftNum / rightNum, nil
		default:
			result := math.Pow(leftNum, rightNum)
			if math.IsNaN(result) || math.IsInf(result, 0) {
				return nil, NewSpreadsheetError(ErrorCodeError, "Invalid power")
			}
			return result, nil
		}

	case BinOpConcat:
		return toString(leftVal) + toString(rightVal), nil

	case BinOpEqual:
		return comparePrimitives(leftVal, rightVal) == 0, nil

	case BinOpNotEqual:
		return comparePrimitives(leftVal, rightVal) != 0, nil
	}

	cmp := comparePrimitives(leftVal, rightVal)
	if cmp == -2 {
		return nil, NewSpreadsheetError(ErrorCodeError, "Cannot compare these values")
	}
	switch n.Op {
	case BinOpLess:
		return cmp < 0, nil
	case BinOpLessEqual:
		return cmp <= 0, nil
	case BinOpGreater:
		return cmp > 0, nil
	case BinOpGreaterEqual:
		return cmp >= 0, nil
	}
	return nil, NewSpreadsheetError(ErrorCodeError, "Unknown operator")
}

func (n *BinaryOpNode) opName() string {
	switch n.Op {
	case BinOpAdd:
		return "Addition"
	case BinOpSubtract:
		return "Subtraction"
	case BinOpMultiply:
		return "Multiplication"
	case BinOpDivide:
		return "Division"
	default:
		return "Power"
	}
}

func (n *BinaryOpNode) GetPosition() NodePosition {
	return n.Position
}

var binaryOpSymbols = map[BinaryOp]string{
	BinOpAdd:          "+",
	BinOpSubtract:     "-",
	BinOpMultiply:     "*",
	BinOpDivide:       "/",
	BinOpPower:        "^",
	BinOpConcat:       "&",
	BinOpEqual:        "=",
	BinOpNotEqual:     "<>",
	BinOpLess:         "<",
	BinOpLessEqual:    "<=",
	BinOpGreater:      ">",
	BinOpGreaterEqual: ">=",
}

func (n *BinaryOpNode) ToString() string {
	return fmt.Sprintf("(%s%s%s)", n.Left.ToString(), binaryOpSymbols[n.Op], n.Right.ToString())
}

// UnaryOpNode represents a unary operation
type UnaryOpNode struct {
	Op       UnaryOp
	Operand  ASTNode
	Position NodePosition
}

func (n *UnaryOpNode) Eval(ctx EvalContext) (Primitive, error) {
	val, err := evalOperand(n.Operand, ctx)
	if err != nil {
		return nil, err
	}
	if err, ok := val.(*SpreadsheetError); ok {
		return err, nil
	}

	num, ok := toNumber(val)
	if !ok || isRange(val) {
		return nil, NewSpreadsheetError(ErrorCodeError, "Unary operator requires a numeric value")
	}
	switch n.Op {
	case UnaryOpPlus:
		return num, nil
	case UnaryOpMinus:
		return -num, nil
	case UnaryOpPercent:
		return num / 100.0, nil
	default:
		return nil, NewSpreadsheetError(ErrorCodeError, "Unknown unary operator")
	}
}

func (n *UnaryOpNode) GetPosition() NodePosition {
	return n.Position
}

func (n *UnaryOpNode) ToString() string {
	switch n.Op {
	case UnaryOpMinus:
		return "-" + n.Operand.ToString()
	case UnaryOpPercent:
		return fmt.Sprintf("(%s%%)", n.Operand.ToString())
	default:
		return "+" + n.Operand.ToString()
	}
}

// FunctionCallNode represents a call of a registered function. the spec
// is bound at parse time.
type FunctionCallNode struct {
	Name       string
	Args       []ASTNode
	Position   NodePosition
	spec       *FunctionSpec
	asyncIndex int
}

// AsyncIndex identifies this call among the async calls of its formula
func (n *FunctionCallNode) AsyncIndex() int {
	return n.asyncIndex
}

func (n *FunctionCallNode) Eval(ctx EvalContext) (Primitive, error) {
	args := make([]Primitive, len(n.Args))
	for i, argNode := range n.Args {
		v, err := evalOperand(argNode, ctx)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	coerced, errVal := n.spec.coerceArgs(n.Name, args)
	if errVal != nil {
		return errVal, nil
	}
	if n.spec.Async {
		return ctx.CallAsync(n, coerced)
	}
	return n.spec.invoke(coerced)
}

func (n *FunctionCallNode) GetPosition() NodePosition {
	return n.Position
}

func (n *FunctionCallNode) ToString() string {
	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = arg.ToString()
	}
	return fmt.Sprintf("%s(%s)", n.Name, strings.Join(args, ","))
}

// NewParser creates a new parser with the given tokens and context
func NewParser(tokens []Token, context *ParserContext) *Parser {
	return &Parser{
		tokens:  tokens,
		pos:     0,
		context: context,
	}
}

func badExpr(format string, args ...any) *SpreadsheetError {
	return NewSpreadsheetError(ErrorCodeBadExpr, fmt.Sprintf(format, args...))
}

// Parse parses the tokens into an AST
func (p *Parser) Parse() (ASTNode, error) {
	if len(p.tokens) == 0 {
		return nil, badExpr("no tokens to parse")
	}

	if p.tokens[p.pos].Type != TokenEquals {
		return nil, badExpr("formula must start with '='")
	}
	p.pos++ // consume the equals token

	node, err := p.parseComparison()
	if err != nil {
		return nil, err
	}

	// ensure we've consumed all tokens except EOF
	if p.pos < len(p.tokens) && p.tokens[p.pos].Type != TokenEOF {
		return nil, badExpr("unexpected token after expression: %s", p.tokens[p.pos].Value)
	}

	return node, nil
}

func (p *Parser) peekBinaryOp() (Token, bool) {
	if p.pos >= len(p.tokens) || p.tokens[p.pos].Type != TokenBinaryOp {
		return Token{}, false
	}
	return p.tokens[p.pos], true
}

// parseLevel parses one left-associative binary precedence level
func (p *Parser) parseLevel(ops map[string]BinaryOp, next func() (ASTNode, error)) (ASTNode, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}

	for {
		tok, ok := p.peekBinaryOp()
		if !ok {
			return left, nil
		}
		op, ok := ops[tok.Value]
		if !ok {
			return left, nil
		}

		p.pos++
		right, err := next()
		if err != nil {
			return nil, err
		}

		left = &BinaryOpNode{
			Op:       op,
			Left:     left,
			Right:    right,
			Position: NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End},
		}
	}
}

var (
	comparisonOps = map[string]BinaryOp{
		"=": BinOpEqual, "<>": BinOpNotEqual, "!=": BinOpNotEqual,
		"<": BinOpLess, "<=": BinOpLessEqual, ">": BinOpGreater, ">=": BinOpGreaterEqual,
	}
	concatOps         = map[string]BinaryOp{"&": BinOpConcat}
	additiveOps       = map[string]BinaryOp{"+": BinOpAdd, "-": BinOpSubtract}
	multiplicativeOps = map[string]BinaryOp{"*": BinOpMultiply, "/": BinOpDivide}
	powerOps          = map[string]BinaryOp{"^": BinOpPower}
)

// parseComparison handles comparison operators (lowest precedence)
func (p *Parser) parseComparison() (ASTNode, error) {
	return p.parseLevel(comparisonOps, p.parseConcatenation)
}

// parseConcatenation handles string concatenation operator
func (p *Parser) parseConcatenation() (ASTNode, error) {
	return p.parseLevel(concatOps, p.parseAddition)
}

// parseAddition handles addition and subtraction
func (p *Parser) parseAddition() (ASTNode, error) {
	return p.parseLevel(additiveOps, p.parseMultiplication)
}

// parseMultiplication handles multiplication and division
func (p *Parser) parseMultiplication() (ASTNode, error) {
	return p.parseLevel(multiplicativeOps, p.parsePower)
}

// parsePower handles exponentiation, left-associative like the other
// binary levels
func (p *Parser) parsePower() (ASTNode, error) {
	return p.parseLevel(powerOps, p.parseUnary)
}

// parseUnary handles unary operators
func (p *Parser) parseUnary() (ASTNode, error) {
	if p.pos >= len(p.tokens) {
		return nil, badExpr("unexpected end of expression")
	}

	tok := p.tokens[p.pos]
	if tok.Type != TokenUnaryPrefixOp {
		return p.parsePostfix()
	}

	op := UnaryOpPlus
	if tok.Value == "-" {
		op = UnaryOpMinus
	}
	p.pos++
	operand, err := p.parseUnary() // recurse for chained unary operators
	if err != nil {
		return nil, err
	}

	return &UnaryOpNode{
		Op:       op,
		Operand:  operand,
		Position: NodePosition{Start: tok.Pos, End: operand.GetPosition().End},
	}, nil
}

// parsePostfix handles postfix operators (percent), which bind tighter
// than unary prefix operators
func (p *Parser) parsePostfix() (ASTNode, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for p.pos < len(p.tokens) && p.tokens[p.pos].Type == TokenUnaryPostfixOp {
		tok := p.tokens[p.pos]
		p.pos++
		node = &UnaryOpNode{
			Op:       UnaryOpPercent,
			Operand:  node,
			Position: NodePosition{Start: node.GetPosition().Start, End: tok.End},
		}
	}

	return node, nil
}

// parsePrimary handles primary expressions (literals, references,
// functions, parentheses)
func (p *Parser) parsePrimary() (ASTNode, error) {
	if p.pos >= len(p.tokens) {
		return nil, badExpr("unexpected end of expression")
	}

	tok := p.tokens[p.pos]
	position := NodePosition{Start: tok.Pos, End: tok.End}

	switch tok.Type {
	case TokenNumber:
		p.pos++
		val, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, badExpr("invalid number: %s", tok.Value)
		}
		return &NumberNode{Value: val, Position: position}, nil

	case TokenString:
		p.pos++
		return &StringNode{Value: tok.Value, Position: position}, nil

	case TokenBoolean:
		p.pos++
		return &BooleanNode{Value: tok.Value == "TRUE", Position: position}, nil

	case TokenCell:
		p.pos++
		return p.parseCellReference(tok)

	case TokenRange:
		p.pos++
		return p.parseRange(tok)

	case TokenInvalidRef:
		p.pos++
		return &BrokenRefNode{Code: ErrorCodeRef, Message: "Invalid reference", Position: position}, nil

	case TokenIdentifier:
		return nil, badExpr("invalid name: %s", tok.Value)

	case TokenFunction:
		return p.parseFunctionCall()

	case TokenLeftParen:
		p.pos++
		node, err := p.parseComparison()
		if err != nil {
			return nil, err
		}

		if p.pos >= len(p.tokens) || p.tokens[p.pos].Type != TokenRightParen {
			return nil, badExpr("expected closing parenthesis")
		}
		p.pos++

		return node, nil

	default:
		return nil, badExpr("unexpected token: %s", tok.Value)
	}
}

// parseFunctionCall parses a function call and binds it to the registry
func (p *Parser) parseFunctionCall() (ASTNode, error) {
	funcTok := p.tokens[p.pos]
	funcName := funcTok.Value
	p.pos++

	if p.pos >= len(p.tokens) || p.tokens[p.pos].Type != TokenLeftParen {
		return nil, badExpr("expected '(' after function name")
	}
	p.pos++

	args := []ASTNode{}
	if p.pos < len(p.tokens) && p.tokens[p.pos].Type == TokenRightParen {
		p.pos++
	} else {
		for {
			arg, err := p.parseComparison()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)

			if p.pos >= len(p.tokens) {
				return nil, badExpr("unexpected end in function arguments")
			}
			if p.tokens[p.pos].Type == TokenRightParen {
				p.pos++
				break
			}
			if p.tokens[p.pos].Type != TokenComma {
				return nil, badExpr("expected ',' or ')' in function arguments")
			}
			p.pos++
		}
	}

	node := &FunctionCallNode{
		Name:     funcName,
		Args:     args,
		Position: NodePosition{Start: funcTok.Pos, End: p.tokens[p.pos-1].End},
	}
	if err := p.bindFunction(node); err != nil {
		return nil, err
	}
	return node, nil
}

func (p *Parser) bindFunction(node *FunctionCallNode) error {
	if p.context == nil || p.context.Functions == nil {
		return badExpr("Invalid formula: unknown function %s", node.Name)
	}
	spec, ok := p.context.Functions.Get(node.Name)
	if !ok {
		return badExpr("Invalid formula: unknown function %s", node.Name)
	}
	minArgs, maxArgs := spec.arity()
	if len(node.Args) < minArgs || (maxArgs >= 0 && len(node.Args) > maxArgs) {
		return badExpr("Invalid number of arguments for the %s function", node.Name)
	}
	node.spec = spec
	if spec.Async {
		node.asyncIndex = p.asyncCount
		p.asyncCount++
	}
	if spec.Volatile {
		p.volatile = true
	}
	return nil
}

// splitSheetPrefix separates "Sheet1!A1" or "'My Sheet'!A1" into the
// unquoted sheet name and the reference part
func splitSheetPrefix(value string) (sheetName string, ref string, qualified bool) {
	idx := strings.LastIndex(value, "!")
	if idx == -1 {
		return "", value, false
	}
	sheetName = value[:idx]
	if strings.HasPrefix(sheetName, "'") && strings.HasSuffix(sheetName, "'") && len(sheetName) >= 2 {
		sheetName = strings.ReplaceAll(sheetName[1:len(sheetName)-1], "''", "'")
	}
	return sheetName, value[idx+1:], true
}

// resolveSheet maps the sheet prefix of a token to a sheet id. a broken
// node is returned when the sheet does not exist.
func (p *Parser) resolveSheet(tok Token) (string, string, ASTNode) {
	sheetName, ref, qualified := splitSheetPrefix(tok.Value)
	if !qualified {
		return "", ref, nil
	}
	if p.context != nil && p.context.ResolveSheet != nil {
		if id, ok := p.context.ResolveSheet(sheetName); ok {
			if id == p.context.Anchor.SheetID {
				return "", ref, nil
			}
			return id, ref, nil
		}
	}
	return "", ref, &BrokenRefNode{
		Code:     ErrorCodeError,
		Message:  fmt.Sprintf("Invalid sheet name: %s", sheetName),
		Position: NodePosition{Start: tok.Pos, End: tok.End},
	}
}

// parseCellReference parses a cell reference token into a CellRefNode
func (p *Parser) parseCellReference(tok Token) (ASTNode, error) {
	sheetID, cellStr, broken := p.resolveSheet(tok)
	if broken != nil {
		return broken, nil
	}

	col, row, colFixed, rowFixed, err := parseCellAddress(cellStr)
	if err != nil {
		return nil, badExpr("invalid cell reference: %s", cellStr)
	}

	anchor := p.context.Anchor
	return &CellRefNode{
		SheetID:  sheetID,
		Col:      newAxisRef(col, anchor.Col, colFixed),
		Row:      newAxisRef(row, anchor.Row, rowFixed),
		Position: NodePosition{Start: tok.Pos, End: tok.End},
	}, nil
}

// parseRange parses a range token into a RangeNode
func (p *Parser) parseRange(tok Token) (ASTNode, error) {
	sheetID, rangeStr, broken := p.resolveSheet(tok)
	if broken != nil {
		return broken, nil
	}

	parts := strings.Split(rangeStr, ":")
	if len(parts) != 2 {
		return nil, badExpr("invalid range format: %s", rangeStr)
	}
	startCol, startRow, startColFixed, startRowFixed, err := parseCellAddress(parts[0])
	if err != nil {
		return nil, badExpr("invalid start cell in range: %s", parts[0])
	}
	endCol, endRow, endColFixed, endRowFixed, err := parseCellAddress(parts[1])
	if err != nil {
		return nil, badExpr("invalid end cell in range: %s", parts[1])
	}

	anchor := p.context.Anchor
	return &RangeNode{
		SheetID:  sheetID,
		StartCol: newAxisRef(startCol, anchor.Col, startColFixed),
		StartRow: newAxisRef(startRow, anchor.Row, startRowFixed),
		EndCol:   newAxisRef(endCol, anchor.Col, endColFixed),
		EndRow:   newAxisRef(endRow, anchor.Row, endRowFixed),
		Position: NodePosition{Start: tok.Pos, End: tok.End},
	}, nil
}

// comparePrimitives compares two primitive values. returns -1 if left < right,
// 0 if equal, 1 if left > right, -2 if not comparable. empty compares as
// the zero value of the other side, text compares case-insensitively.
func comparePrimitives(left, right Primitive) int {
	if left == nil && right == nil {
		return 0
	}
	if left == nil {
		left = zeroLike(right)
	}
	if right == nil {
		right = zeroLike(left)
	}

	switch l := left.(type) {
	case float64:
		r, ok := right.(float64)
		if !ok {
			// numbers sort before text and booleans
			return -1
		}
		return compareOrdered(l, r)
	case string:
		switch r := right.(type) {
		case string:
			return compareOrdered(strings.ToUpper(l), strings.ToUpper(r))
		case float64:
			return 1
		default:
			return -1
		}
	case bool:
		r, ok := right.(bool)
		if !ok {
			return 1
		}
		return compareOrdered(boolToNumber(l), boolToNumber(r))
	}
	return -2
}

func compareOrdered[T float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func zeroLike(v Primitive) Primitive {
	switch v.(type) {
	case string:
		return ""
	case bool:
		return false
	default:
		return 0.0
	}
}
