package formula

import (
	"math"
	"strconv"
	"strings"
)

// errorPrefix starts every failure message handed to callers.
const errorPrefix = "Error: "

// glyphReplacer maps the display glyphs for multiplication and division
// to their operators, everywhere in the expression.
var glyphReplacer = strings.NewReplacer("×", "*", "÷", "/")

// Normalize applies the glyph substitution and trims surrounding blanks.
func Normalize(expression string) string {
	return strings.TrimSpace(glyphReplacer.Replace(expression))
}

// Policy decides how evaluation treats non-finite results.
type Policy struct {
	// StrictFinite turns NaN and ±Inf results into failures. Without it
	// they are ordinary values.
	StrictFinite bool
}

// DefaultPolicy reports non-finite results as values.
var DefaultPolicy = Policy{}

// StrictPolicy reports non-finite results as failures.
var StrictPolicy = Policy{StrictFinite: true}

// Result is the outcome of evaluating one expression. Exactly one of Value
// (OK set) or Message (OK unset) is meaningful.
type Result struct {
	OK      bool      `json:"ok"`
	Value   float64   `json:"value"`
	Message string    `json:"message,omitempty"`
	Code    ErrorCode `json:"-"`
}

// Success wraps a value.
func Success(v float64) Result {
	return Result{OK: true, Value: v}
}

// Failure wraps an error, prefixing its message.
func Failure(err error) Result {
	return Result{
		OK:      false,
		Message: errorPrefix + err.Error(),
		Code:    errorCodeOf(err),
	}
}

func (r Result) String() string {
	if r.OK {
		return formatNumber(r.Value)
	}
	return r.Message
}

// Program is a compiled expression, reusable across contexts.
type Program struct {
	Source string // normalized expression
	Root   ASTNode
}

// Compile normalizes and parses expression.
func Compile(expression string) (*Program, error) {
	src := Normalize(expression)
	if src == "" {
		return nil, NewEvalError(ErrorCodeEmpty, "empty expression", 0)
	}
	root, err := ParseExpression(src)
	if err != nil {
		return nil, err
	}
	return &Program{Source: src, Root: root}, nil
}

// Evaluate runs the program against ctx. It never panics on behalf of the
// expression; all failures come back as a failed Result.
func (p *Program) Evaluate(ctx Context, policy Policy) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			tracer().Errorf("evaluating %q panicked: %v", p.Source, r)
			result = Failure(NewEvalError(ErrorCodeOther, "evaluation failed", -1))
		}
	}()
	v, err := p.Root.Eval(ctx)
	if err != nil {
		return Failure(err)
	}
	if policy.StrictFinite && (math.IsNaN(v) || math.IsInf(v, 0)) {
		return Failure(NewEvalError(ErrorCodeNonFinite, "result is not a finite number", -1))
	}
	return Success(v)
}

// Evaluate evaluates expression against ctx under the default policy,
// which reports NaN and infinities as values.
func Evaluate(expression string, ctx Context) Result {
	return EvaluateWithPolicy(expression, ctx, DefaultPolicy)
}

// EvaluateWithPolicy evaluates expression against ctx.
func EvaluateWithPolicy(expression string, ctx Context, policy Policy) Result {
	prog, err := Compile(expression)
	if err != nil {
		return Failure(err)
	}
	return prog.Evaluate(ctx, policy)
}

// formatNumber renders v the way JavaScript's String(number) does for the
// common cases.
func formatNumber(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}
	abs := math.Abs(v)
	if abs >= 1e21 || (abs != 0 && abs < 1e-6) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
