package formula

import (
	"fmt"
	"unicode"
)

// TokenType represents different types of tokens in formulas
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenNumber
	TokenFunction // identifier directly followed by '('
	TokenIdentifier
	TokenUnaryPrefixOp
	TokenBinaryOp
	TokenComma
	TokenLeftParen
	TokenRightParen
	TokenWhitespace
	TokenError
)

var tokenNames = map[TokenType]string{
	TokenEOF:           "end of expression",
	TokenNumber:        "number",
	TokenFunction:      "function",
	TokenIdentifier:    "identifier",
	TokenUnaryPrefixOp: "unary operator",
	TokenBinaryOp:      "operator",
	TokenComma:         "','",
	TokenLeftParen:     "'('",
	TokenRightParen:    "')'",
	TokenWhitespace:    "whitespace",
	TokenError:         "error",
}

func (t TokenType) String() string {
	return tokenNames[t]
}

// BinaryOp represents binary operators in AST nodes
type BinaryOp int

const (
	BinOpAdd BinaryOp = iota
	BinOpSubtract
	BinOpMultiply
	BinOpDivide
	BinOpModulo
	BinOpPower
)

// UnaryOp represents unary operators in AST nodes
type UnaryOp int

const (
	UnaryOpPlus UnaryOp = iota
	UnaryOpMinus
)

// character classification constants. slightly easier to read.
const (
	charNull       = 0
	charPercent    = '%'
	charLParen     = '('
	charRParen     = ')'
	charAsterisk   = '*'
	charPlus       = '+'
	charComma      = ','
	charMinus      = '-'
	charPeriod     = '.'
	charSlash      = '/'
	charCaret      = '^'
	charUnderscore = '_'
)

// tokenTransitions maps the current state to valid next token types
var tokenTransitions = map[TokenState]map[TokenType]bool{
	StateStart: {
		TokenUnaryPrefixOp: true, // unary +/-
		TokenNumber:        true,
		TokenFunction:      true,
		TokenIdentifier:    true,
		TokenLeftParen:     true,
	},
	StateAfterValue: { // after number, identifier
		TokenBinaryOp:   true,
		TokenRightParen: true,
		TokenComma:      true, // only if in function
		TokenEOF:        true,
		// whitespace is significant - no consecutive values
	},
	StateAfterOperator: {
		TokenNumber:        true,
		TokenFunction:      true,
		TokenIdentifier:    true,
		TokenLeftParen:     true,
		TokenUnaryPrefixOp: true, // 2*-3, --x
	},
	StateAfterLeftParen: {
		TokenNumber:        true,
		TokenFunction:      true,
		TokenIdentifier:    true,
		TokenLeftParen:     true, // nested
		TokenUnaryPrefixOp: true, // unary
		TokenRightParen:    true, // empty parens for arg-less functions like random()
	},
	StateAfterRightParen: {
		TokenBinaryOp:   true,
		TokenRightParen: true, // if nested
		TokenComma:      true, // if in function
		TokenEOF:        true,
	},
	StateAfterComma: { // only valid in function context
		TokenNumber:        true,
		TokenFunction:      true,
		TokenIdentifier:    true,
		TokenLeftParen:     true,
		TokenUnaryPrefixOp: true, // unary
	},
	StateAfterFunction: {
		TokenLeftParen: true, // nothing else is valid
	},
}

// Token represents a lexical token with position information
type Token struct {
	Type  TokenType
	Value string
	Pos   int // rune position in input
}

// TokenState represents the lexer state for validation
type TokenState int

const (
	StateStart TokenState = iota
	StateAfterValue
	StateAfterOperator
	StateAfterLeftParen
	StateAfterRightParen
	StateAfterComma
	StateAfterFunction
)

// Lexer tokenizes formula expressions
type Lexer struct {
	runes      []rune // UTF-8 aware representation
	pos        int
	state      TokenState
	parenDepth int
	tokens     []Token
}

// NewLexer creates a new lexer for the given expression. Glyph
// substitution has to happen before.
func NewLexer(input string) *Lexer {
	return &Lexer{
		runes:  []rune(input),
		pos:    0,
		state:  StateStart,
		tokens: []Token{},
	}
}

// Tokenize tokenizes the entire input. The returned error is an *EvalError
// of code ErrorCodeSyntax.
func (l *Lexer) Tokenize() ([]Token, error) {
	for l.pos < len(l.runes) {
		tok := l.nextToken()
		if tok.Type == TokenError {
			return nil, NewEvalError(ErrorCodeSyntax, tok.Value, tok.Pos)
		}
		if tok.Type == TokenWhitespace || tok.Type == TokenEOF {
			continue
		}
		if !l.validateTransition(tok.Type) {
			return nil, NewEvalError(ErrorCodeSyntax, "unexpected token: "+tok.Value, tok.Pos)
		}
		l.tokens = append(l.tokens, tok)
		l.updateState(tok.Type)
	}

	if l.parenDepth > 0 {
		return nil, NewEvalError(ErrorCodeSyntax, "unbalanced parentheses: missing closing parenthesis", l.pos)
	}
	if !l.validateTransition(TokenEOF) {
		return nil, NewEvalError(ErrorCodeSyntax, "unexpected end of expression", l.pos)
	}

	l.tokens = append(l.tokens, Token{Type: TokenEOF, Pos: l.pos})
	return l.tokens, nil
}

// validateTransition checks if the token type is valid in current state
func (l *Lexer) validateTransition(tokenType TokenType) bool {
	validTokens, exists := tokenTransitions[l.state]
	if !exists {
		return false
	}
	return validTokens[tokenType]
}

// updateState updates the lexer state based on the token type
func (l *Lexer) updateState(tokenType TokenType) {
	switch tokenType {
	case TokenNumber, TokenIdentifier:
		l.state = StateAfterValue
	case TokenUnaryPrefixOp, TokenBinaryOp:
		l.state = StateAfterOperator
	case TokenLeftParen:
		l.state = StateAfterLeftParen
	case TokenRightParen:
		l.state = StateAfterRightParen
	case TokenComma:
		l.state = StateAfterComma
	case TokenFunction:
		l.state = StateAfterFunction
	}
}

// nextToken returns the next token from the input
func (l *Lexer) nextToken() Token {
	startPos := l.pos
	if l.skipWhitespace() {
		return Token{Type: TokenWhitespace, Pos: startPos}
	}

	if l.pos >= len(l.runes) {
		return Token{Type: TokenEOF, Pos: l.pos}
	}

	ch := l.current()

	// check for numbers
	if isDigit(ch) || (ch == charPeriod && isDigit(l.peek(1))) {
		return l.scanNumber()
	}

	// check for operators and special characters
	switch ch {
	case charLParen:
		l.pos++
		l.parenDepth++
		return Token{Type: TokenLeftParen, Value: "(", Pos: startPos}
	case charRParen:
		l.pos++
		l.parenDepth--
		if l.parenDepth < 0 {
			return Token{Type: TokenError, Value: "unexpected closing parenthesis", Pos: startPos}
		}
		return Token{Type: TokenRightParen, Value: ")", Pos: startPos}
	case charComma:
		l.pos++
		return Token{Type: TokenComma, Value: ",", Pos: startPos}
	case charPlus, charMinus:
		return l.scanUnaryPrefixOrBinaryOp()
	case charAsterisk, charSlash, charCaret, charPercent:
		return l.scanBinaryOp()
	}

	// check for identifiers and functions
	if isAlpha(ch) || ch == charUnderscore {
		return l.scanIdentifier()
	}

	// unknown character
	l.pos++
	return Token{Type: TokenError, Value: fmt.Sprintf("unexpected character: %q", ch), Pos: startPos}
}

// helper methods for character navigation and classification

// substring returns a substring of the original input based on rune positions
func (l *Lexer) substring(start, end int) string {
	if start < 0 || end > len(l.runes) || start > end {
		return ""
	}
	return string(l.runes[start:end])
}

func (l *Lexer) current() rune {
	if l.pos >= len(l.runes) {
		return charNull
	}
	return l.runes[l.pos]
}

func (l *Lexer) peek(offset int) rune {
	pos := l.pos + offset
	if pos >= len(l.runes) || pos < 0 {
		return charNull
	}
	return l.runes[pos]
}

// skipWhitespace advances over whitespace and reports whether it did.
func (l *Lexer) skipWhitespace() bool {
	start := l.pos
	for l.pos < len(l.runes) && unicode.IsSpace(l.current()) {
		l.pos++
	}
	return l.pos > start
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isAlpha(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isAlphaNumeric(ch rune) bool {
	return isAlpha(ch) || isDigit(ch)
}

func isWordChar(ch rune) bool {
	return isAlphaNumeric(ch) || ch == charUnderscore
}

// scanNumber scans a number token including decimals, scientific notation
// and 0x/0o/0b prefixed integers
func (l *Lexer) scanNumber() Token {
	startPos := l.pos

	if l.current() == '0' && isRadixPrefix(l.peek(1)) {
		l.pos += 2
		for isAlphaNumeric(l.current()) {
			l.pos++
		}
		value := l.substring(startPos, l.pos)
		if _, ok := parseRadixLiteral(value); !ok {
			return Token{Type: TokenError, Value: "invalid number: " + value, Pos: startPos}
		}
		return Token{Type: TokenNumber, Value: value, Pos: startPos}
	}

	// scan integer part
	for isDigit(l.current()) {
		l.pos++
	}

	// decimal part, "1." is a complete number
	if l.current() == charPeriod {
		l.pos++ // consume '.'
		for isDigit(l.current()) {
			l.pos++
		}
	}

	// check for scientific notation (e or E)
	if l.current() == 'e' || l.current() == 'E' {
		savedPos := l.pos
		l.pos++ // consume 'e' or 'E'

		// optional + or - sign
		if l.current() == charPlus || l.current() == charMinus {
			l.pos++
		}

		// must have at least one digit after e/E
		if !isDigit(l.current()) {
			// not scientific notation, restore position
			l.pos = savedPos
		} else {
			// scan exponent digits
			for isDigit(l.current()) {
				l.pos++
			}
		}
	}

	value := l.substring(startPos, l.pos)
	return Token{Type: TokenNumber, Value: value, Pos: startPos}
}

func isRadixPrefix(ch rune) bool {
	switch ch {
	case 'x', 'X', 'o', 'O', 'b', 'B':
		return true
	}
	return false
}

// scanIdentifier scans identifiers and function names
func (l *Lexer) scanIdentifier() Token {
	startPos := l.pos

	for isWordChar(l.current()) {
		l.pos++
	}
	value := l.substring(startPos, l.pos)

	// it's a function if the next non-blank character opens a paren
	ahead := l.pos
	for ahead < len(l.runes) && unicode.IsSpace(l.runes[ahead]) {
		ahead++
	}
	if ahead < len(l.runes) && l.runes[ahead] == charLParen {
		return Token{Type: TokenFunction, Value: value, Pos: startPos}
	}

	return Token{Type: TokenIdentifier, Value: value, Pos: startPos}
}

// scanUnaryPrefixOrBinaryOp scans + and - which can be either unary
// prefix or binary
func (l *Lexer) scanUnaryPrefixOrBinaryOp() Token {
	startPos := l.pos
	ch := l.current()
	l.pos++

	if l.isUnaryContext() {
		return Token{Type: TokenUnaryPrefixOp, Value: string(ch), Pos: startPos}
	}
	return Token{Type: TokenBinaryOp, Value: string(ch), Pos: startPos}
}

// scanBinaryOp scans binary operators
func (l *Lexer) scanBinaryOp() Token {
	startPos := l.pos
	ch := l.current()
	l.pos++

	switch ch {
	case charAsterisk:
		if l.current() == charAsterisk {
			l.pos++
			return Token{Type: TokenBinaryOp, Value: "**", Pos: startPos}
		}
		return Token{Type: TokenBinaryOp, Value: "*", Pos: startPos}
	case charSlash:
		return Token{Type: TokenBinaryOp, Value: "/", Pos: startPos}
	case charCaret:
		return Token{Type: TokenBinaryOp, Value: "^", Pos: startPos}
	case charPercent:
		return Token{Type: TokenBinaryOp, Value: "%", Pos: startPos}
	}

	return Token{Type: TokenError, Value: "unknown operator", Pos: startPos}
}

// isUnaryContext checks if the current context allows for unary operators
func (l *Lexer) isUnaryContext() bool {
	// unary operators are allowed after:
	// - start of expression
	// - after another operator
	// - after left paren
	// - after comma
	switch l.state {
	case StateStart, StateAfterOperator, StateAfterLeftParen, StateAfterComma:
		return true
	default:
		return false
	}
}
