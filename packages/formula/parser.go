package formula

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultMaxDepth bounds the nesting of parentheses, calls and unary
// operators.
const DefaultMaxDepth = 256

type NodePosition struct {
	Start int
	End   int
}

// ASTNode is a node of a compiled expression. Evaluation only ever looks
// names up in the Context handed to Eval.
type ASTNode interface {
	Eval(ctx Context) (float64, error)
	GetPosition() NodePosition
	ToString() string
	writeTo(b *strings.Builder)
}

// nodeString renders n into a single buffer.
func nodeString(n ASTNode) string {
	var b strings.Builder
	n.writeTo(&b)
	return b.String()
}

// Parser parses tokens into an AST
type Parser struct {
	tokens   []Token
	pos      int
	depth    int
	maxDepth int
}

// NumberNode represents a numeric literal
type NumberNode struct {
	Value    float64
	Position NodePosition
}

func (n *NumberNode) Eval(ctx Context) (float64, error) {
	return n.Value, nil
}

func (n *NumberNode) GetPosition() NodePosition {
	return n.Position
}

func (n *NumberNode) ToString() string { return nodeString(n) }

func (n *NumberNode) writeTo(b *strings.Builder) {
	b.WriteString(strconv.FormatFloat(n.Value, 'g', -1, 64))
}

// IdentifierNode is a reference to a constant, a variable or a result
type IdentifierNode struct {
	Name     string
	Position NodePosition
}

func (n *IdentifierNode) Eval(ctx Context) (float64, error) {
	sym, ok := ctx[n.Name]
	if !ok {
		return 0, NewEvalError(ErrorCodeName, n.Name+" is not defined", n.Position.Start)
	}
	if sym.IsFunction() {
		return 0, NewEvalError(ErrorCodeNotValue, n.Name+" is a function, not a number", n.Position.Start)
	}
	return sym.Value, nil
}

func (n *IdentifierNode) GetPosition() NodePosition {
	return n.Position
}

func (n *IdentifierNode) ToString() string { return nodeString(n) }

func (n *IdentifierNode) writeTo(b *strings.Builder) {
	b.WriteString(n.Name)
}

// BinaryOpNode represents a binary operation
type BinaryOpNode struct {
	Op       BinaryOp
	Left     ASTNode
	Right    ASTNode
	Position NodePosition
}

func (n *BinaryOpNode) Eval(ctx Context) (float64, error) {
	left, err := n.Left.Eval(ctx)
	if err != nil {
		return 0, err
	}
	right, err := n.Right.Eval(ctx)
	if err != nil {
		return 0, err
	}

	// IEEE semantics throughout: division by zero yields ±Inf or NaN
	switch n.Op {
	case BinOpAdd:
		return left + right, nil
	case BinOpSubtract:
		return left - right, nil
	case BinOpMultiply:
		return left * right, nil
	case BinOpDivide:
		return left / right, nil
	case BinOpModulo:
		return math.Mod(left, right), nil
	case BinOpPower:
		return Pow(left, right), nil
	default:
		return 0, NewEvalError(ErrorCodeOther, "unknown binary operator", n.Position.Start)
	}
}

func (n *BinaryOpNode) GetPosition() NodePosition {
	return n.Position
}

func (n *BinaryOpNode) ToString() string { return nodeString(n) }

func (n *BinaryOpNode) writeTo(b *strings.Builder) {
	opStr := ""
	switch n.Op {
	case BinOpAdd:
		opStr = "+"
	case BinOpSubtract:
		opStr = "-"
	case BinOpMultiply:
		opStr = "*"
	case BinOpDivide:
		opStr = "/"
	case BinOpModulo:
		opStr = "%"
	case BinOpPower:
		opStr = "^"
	}
	b.WriteByte('(')
	n.Left.writeTo(b)
	b.WriteString(opStr)
	n.Right.writeTo(b)
	b.WriteByte(')')
}

// UnaryOpNode represents a unary operation
type UnaryOpNode struct {
	Op       UnaryOp
	Operand  ASTNode
	Position NodePosition
}

func (n *UnaryOpNode) Eval(ctx Context) (float64, error) {
	val, err := n.Operand.Eval(ctx)
	if err != nil {
		return 0, err
	}

	switch n.Op {
	case UnaryOpPlus:
		return val, nil
	case UnaryOpMinus:
		return -val, nil
	default:
		return 0, NewEvalError(ErrorCodeOther, "unknown unary operator", n.Position.Start)
	}
}

func (n *UnaryOpNode) GetPosition() NodePosition {
	return n.Position
}

func (n *UnaryOpNode) ToString() string { return nodeString(n) }

func (n *UnaryOpNode) writeTo(b *strings.Builder) {
	if n.Op == UnaryOpMinus {
		b.WriteByte('-')
	} else {
		b.WriteByte('+')
	}
	n.Operand.writeTo(b)
}

// FunctionCallNode represents a function call
type FunctionCallNode struct {
	Name     string
	Args     []ASTNode
	Position NodePosition
}

func (n *FunctionCallNode) Eval(ctx Context) (float64, error) {
	sym, ok := ctx[n.Name]
	if !ok {
		return 0, NewEvalError(ErrorCodeName, n.Name+" is not defined", n.Position.Start)
	}
	if !sym.IsFunction() || sym.Fn == nil {
		return 0, NewEvalError(ErrorCodeNotCallable, n.Name+" is not a function", n.Position.Start)
	}

	args := make([]float64, len(n.Args))
	for i, argNode := range n.Args {
		v, err := argNode.Eval(ctx)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}

	if !sym.acceptsArgs(len(args)) {
		return 0, NewEvalError(ErrorCodeArity, arityMessage(n.Name, sym, len(args)), n.Position.Start)
	}
	return sym.Fn(args...), nil
}

func arityMessage(name string, sym Symbol, got int) string {
	switch {
	case sym.MinArgs == sym.MaxArgs:
		return fmt.Sprintf("%s expects %d %s, got %d", name, sym.MinArgs, plural(sym.MinArgs, "argument"), got)
	case got < sym.MinArgs:
		return fmt.Sprintf("%s expects at least %d %s, got %d", name, sym.MinArgs, plural(sym.MinArgs, "argument"), got)
	default:
		return fmt.Sprintf("%s expects at most %d %s, got %d", name, sym.MaxArgs, plural(sym.MaxArgs, "argument"), got)
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

func (n *FunctionCallNode) GetPosition() NodePosition {
	return n.Position
}

func (n *FunctionCallNode) ToString() string { return nodeString(n) }

func (n *FunctionCallNode) writeTo(b *strings.Builder) {
	b.WriteString(n.Name)
	b.WriteByte('(')
	for i, arg := range n.Args {
		if i > 0 {
			b.WriteByte(',')
		}
		arg.writeTo(b)
	}
	b.WriteByte(')')
}

// NewParser creates a new parser with the given tokens
func NewParser(tokens []Token) *Parser {
	return &Parser{
		tokens:   tokens,
		pos:      0,
		maxDepth: DefaultMaxDepth,
	}
}

// Parse parses the tokens into an AST
func (p *Parser) Parse() (ASTNode, error) {
	if len(p.tokens) == 0 || p.tokens[0].Type == TokenEOF {
		return nil, NewEvalError(ErrorCodeEmpty, "empty expression", 0)
	}

	node, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	// ensure we've consumed all tokens except EOF
	if tok := p.current(); tok.Type != TokenEOF {
		return nil, NewEvalError(ErrorCodeSyntax, fmt.Sprintf("unexpected token after expression: %s", tok.Value), tok.Pos)
	}

	return node, nil
}

// ParseExpression tokenizes and parses expr in one step.
func ParseExpression(expr string) (ASTNode, error) {
	tokens, err := NewLexer(expr).Tokenize()
	if err != nil {
		return nil, err
	}
	return NewParser(tokens).Parse()
}

func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

// descend accounts for one level of recursion; callers defer p.ascend().
func (p *Parser) descend() error {
	p.depth++
	if p.depth > p.maxDepth {
		return NewEvalError(ErrorCodeDepth, "expression is nested too deeply", p.current().Pos)
	}
	return nil
}

func (p *Parser) ascend() {
	p.depth--
}

// parseExpression handles a full (sub-)expression
func (p *Parser) parseExpression() (ASTNode, error) {
	if err := p.descend(); err != nil {
		return nil, err
	}
	defer p.ascend()
	return p.parseAddition()
}

// parseAddition handles addition and subtraction (lowest precedence)
func (p *Parser) parseAddition() (ASTNode, error) {
	left, err := p.parseMultiplication()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.current()
		if tok.Type != TokenBinaryOp {
			break
		}

		var op BinaryOp
		switch tok.Value {
		case "+":
			op = BinOpAdd
		case "-":
			op = BinOpSubtract
		default:
			return left, nil
		}

		p.pos++
		right, err := p.parseMultiplication()
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

	return left, nil
}

// parseMultiplication handles multiplication, division, and modulo
func (p *Parser) parseMultiplication() (ASTNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.current()
		if tok.Type != TokenBinaryOp {
			break
		}

		var op BinaryOp
		switch tok.Value {
		case "*":
			op = BinOpMultiply
		case "/":
			op = BinOpDivide
		case "%":
			op = BinOpModulo
		default:
			return left, nil
		}

		p.pos++
		right, err := p.parseUnary()
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

	return left, nil
}

// parseUnary handles unary operators. They bind looser than
// exponentiation, so -2^2 is -(2^2).
func (p *Parser) parseUnary() (ASTNode, error) {
	tok := p.current()
	if tok.Type != TokenUnaryPrefixOp {
		return p.parsePower()
	}

	var op UnaryOp
	switch tok.Value {
	case "+":
		op = UnaryOpPlus
	case "-":
		op = UnaryOpMinus
	default:
		return nil, NewEvalError(ErrorCodeSyntax, "unexpected token: "+tok.Value, tok.Pos)
	}

	if err := p.descend(); err != nil {
		return nil, err
	}
	defer p.ascend()

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

// parsePower handles exponentiation with ^ or **
func (p *Parser) parsePower() (ASTNode, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	tok := p.current()
	if tok.Type != TokenBinaryOp || (tok.Value != "^" && tok.Value != "**") {
		return left, nil
	}

	if err := p.descend(); err != nil {
		return nil, err
	}
	defer p.ascend()

	// right-associative, and the exponent may carry its own sign
	p.pos++
	right, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	return &BinaryOpNode{
		Op:       BinOpPower,
		Left:     left,
		Right:    right,
		Position: NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End},
	}, nil
}

// parsePrimary handles primary expressions (literals, names, calls,
// parentheses)
func (p *Parser) parsePrimary() (ASTNode, error) {
	tok := p.current()
	end := tok.Pos + len([]rune(tok.Value))

	switch tok.Type {
	case TokenNumber:
		p.pos++
		val, err := parseNumberLiteral(tok.Value)
		if err != nil {
			return nil, NewEvalError(ErrorCodeSyntax, fmt.Sprintf("invalid number: %s", tok.Value), tok.Pos)
		}
		return &NumberNode{
			Value:    val,
			Position: NodePosition{Start: tok.Pos, End: end},
		}, nil

	case TokenIdentifier:
		p.pos++
		return &IdentifierNode{
			Name:     tok.Value,
			Position: NodePosition{Start: tok.Pos, End: end},
		}, nil

	case TokenFunction:
		return p.parseFunctionCall()

	case TokenLeftParen:
		p.pos++
		if p.current().Type == TokenRightParen {
			return nil, NewEvalError(ErrorCodeSyntax, "unexpected token: )", p.current().Pos)
		}
		node, err := p.parseExpression()
		if err != nil {
			return nil, err
		}

		if p.current().Type != TokenRightParen {
			return nil, NewEvalError(ErrorCodeSyntax, "expected closing parenthesis", p.current().Pos)
		}
		p.pos++

		return node, nil

	case TokenEOF:
		return nil, NewEvalError(ErrorCodeSyntax, "unexpected end of expression", tok.Pos)

	default:
		return nil, NewEvalError(ErrorCodeSyntax, fmt.Sprintf("unexpected token: %s", tok.Value), tok.Pos)
	}
}

// parseFunctionCall parses a function call
func (p *Parser) parseFunctionCall() (ASTNode, error) {
	funcTok := p.current()
	if funcTok.Type != TokenFunction {
		return nil, NewEvalError(ErrorCodeSyntax, "expected function name", funcTok.Pos)
	}
	p.pos++

	// expect opening parenthesis
	if p.current().Type != TokenLeftParen {
		return nil, NewEvalError(ErrorCodeSyntax, "expected '(' after function name", p.current().Pos)
	}
	p.pos++

	args := []ASTNode{}

	// check for empty argument list
	if p.current().Type == TokenRightParen {
		p.pos++
		return &FunctionCallNode{
			Name:     funcTok.Value,
			Args:     args,
			Position: NodePosition{Start: funcTok.Pos, End: p.tokens[p.pos-1].Pos + 1},
		}, nil
	}

	// parse arguments
	for {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		tok := p.current()
		if tok.Type == TokenRightParen {
			p.pos++
			break
		}
		if tok.Type != TokenComma {
			return nil, NewEvalError(ErrorCodeSyntax, "expected ',' or ')' in function arguments", tok.Pos)
		}
		p.pos++
	}

	return &FunctionCallNode{
		Name:     funcTok.Value,
		Args:     args,
		Position: NodePosition{Start: funcTok.Pos, End: p.tokens[p.pos-1].Pos + 1},
	}, nil
}

// parseNumberLiteral converts a number token. Literals beyond the float64
// range become ±Inf or 0 like JavaScript's.
func parseNumberLiteral(s string) (float64, error) {
	if v, ok := parseRadixLiteral(s); ok {
		return v, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, err
	}
	return v, nil
}
