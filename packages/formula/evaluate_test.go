package formula

import (
	"math"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contextFor(useDegree bool, bindings map[string]string, expr string) Context {
	table := Symbols(useDegree)
	return BuildContext(table, nil, bindings, ExtractVariables(expr, table))
}

func evalExpr(t *testing.T, expr string, bindings map[string]string) Result {
	t.Helper()
	return Evaluate(expr, contextFor(false, bindings, expr))
}

func TestEvaluateArithmetic(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "webtool.formula")
	defer teardown()
	//
	cases := map[string]float64{
		"1+2*3":              7,
		"(1+2)*3":            9,
		"2^10":               1024,
		"2**3**2":            512,
		"-2^2":               -4,
		"(-2)^2":             4,
		"2^-1":               0.5,
		"7 % 3":              1,
		"-7 % 3":             -1,
		"5.5 % 2":            1.5,
		"10/4":               2.5,
		"3×4÷2":              6,
		"2×3×4":              24,
		"12÷2÷3":             2,
		"--3":                3,
		"+-3":                -3,
		"0x10 + 0b11":        19,
		"max(1, 5, 3)":       5,
		"hypot(3, 4)":        5,
		"round(2.5)":         3,
		"abs(-3) + sqrt(16)": 7,
		"1e3 / 1E2":          10,
	}
	for expr, want := range cases {
		res := evalExpr(t, expr, nil)
		require.True(t, res.OK, "%s: %s", expr, res.Message)
		assert.InDelta(t, want, res.Value, 1e-12, expr)
	}
}

func TestEvaluateGlyphsEverywhere(t *testing.T) {
	res := evalExpr(t, "3×4÷2", nil)
	require.True(t, res.OK)
	assert.Equal(t, 6.0, res.Value)
	assert.Equal(t, "2*3*4/2/3", Normalize(" 2×3×4÷2÷3 "))
}

func TestEvaluateVariables(t *testing.T) {
	res := evalExpr(t, "x * y + z", map[string]string{"x": "2", "y": " 3 "})
	require.True(t, res.OK, res.Message)
	assert.Equal(t, 7.0, res.Value, "z defaults to 1")

	res = evalExpr(t, "PI", map[string]string{"PI": "2"})
	require.True(t, res.OK)
	assert.Equal(t, math.Pi, res.Value, "PI is predefined, not a variable, so it is not bound")

	ctx := BuildContext(Symbols(false), nil, map[string]string{"PI": "2"}, []string{"PI"})
	res = Evaluate("PI", ctx)
	require.True(t, res.OK)
	assert.Equal(t, 2.0, res.Value, "a variable shadows the predefined constant")
}

func TestEvaluateDegreeScenario(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "webtool.formula")
	defer teardown()
	//
	bindings := map[string]string{"x": "30"}
	res := Evaluate("sin(x)", contextFor(true, bindings, "sin(x)"))
	require.True(t, res.OK, res.Message)
	assert.InDelta(t, 0.5, res.Value, 1e-9)

	res = Evaluate("sin(x)", contextFor(false, bindings, "sin(x)"))
	require.True(t, res.OK)
	assert.InDelta(t, math.Sin(30), res.Value, 1e-12)

	for _, x := range []string{"-1", "-0.5", "0", "0.3", "1"} {
		b := map[string]string{"x": x}
		expr := "sin(rad(deg(asin(x))))"
		res := Evaluate(expr, contextFor(true, b, expr))
		require.True(t, res.OK)
		assert.InDelta(t, CoerceNumber(x), res.Value, 1e-9, x)
	}
}

func TestEvaluateFailures(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "webtool.formula")
	defer teardown()
	//
	cases := []struct {
		expr    string
		code    ErrorCode
		message string
	}{
		{"", ErrorCodeEmpty, "Error: empty expression"},
		{"   ", ErrorCodeEmpty, "Error: empty expression"},
		{"1 +", ErrorCodeSyntax, "Error: unexpected end of expression"},
		{"(1", ErrorCodeSyntax, "Error: unbalanced parentheses: missing closing parenthesis"},
		{"r3 + 1", ErrorCodeName, "Error: r3 is not defined"},
		{"foo(1)", ErrorCodeNotCallable, "Error: foo is not a function"},
		{"PI(2)", ErrorCodeNotCallable, "Error: PI is not a function"},
		{"sin + 1", ErrorCodeNotValue, "Error: sin is a function, not a number"},
		{"atan2(1)", ErrorCodeArity, "Error: atan2 expects 2 arguments, got 1"},
		{"sqrt()", ErrorCodeArity, "Error: sqrt expects 1 argument, got 0"},
		{"random(1)", ErrorCodeArity, "Error: random expects 0 arguments, got 1"},
	}
	for _, c := range cases {
		res := evalExpr(t, c.expr, nil)
		assert.False(t, res.OK, c.expr)
		assert.Equal(t, c.code, res.Code, c.expr)
		assert.Equal(t, c.message, res.Message, c.expr)
	}
}

func TestEvaluateNonFinitePolicy(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "webtool.formula")
	defer teardown()
	//
	ctx := contextFor(false, nil, "")
	for _, expr := range []string{"1/0", "-1/0", "0/0", "log(-1)", "sqrt(-1)", "1e308*10"} {
		res := Evaluate(expr, ctx)
		require.True(t, res.OK, expr)
		assert.False(t, isFinite(res.Value), expr)

		strict := EvaluateWithPolicy(expr, ctx, StrictPolicy)
		assert.False(t, strict.OK, expr)
		assert.Equal(t, ErrorCodeNonFinite, strict.Code)
		assert.Equal(t, "Error: result is not a finite number", strict.Message)
	}
	res := EvaluateWithPolicy("1/4", ctx, StrictPolicy)
	require.True(t, res.OK)
	assert.Equal(t, 0.25, res.Value)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func TestEvaluateIdempotent(t *testing.T) {
	ctx := contextFor(true, map[string]string{"a": "3", "b": "4"}, "hypot(a, b) + sin(a)")
	first := Evaluate("hypot(a, b) + sin(a)", ctx)
	second := Evaluate("hypot(a, b) + sin(a)", ctx)
	assert.Equal(t, first, second)

	prog, err := Compile("a * b")
	require.NoError(t, err)
	assert.Equal(t, prog.Evaluate(ctx, DefaultPolicy), prog.Evaluate(ctx, DefaultPolicy))
	assert.Equal(t, 12.0, prog.Evaluate(ctx, DefaultPolicy).Value)
}

func TestEvaluateCannotReachOutsideContext(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "webtool.formula")
	defer teardown()
	//
	res := Evaluate("sin(1)", Context{})
	assert.False(t, res.OK)
	assert.Equal(t, "Error: sin is not defined", res.Message)
	assert.Equal(t, ErrorCodeName, res.Code)

	broken := Context{"f": Symbol{Kind: SymbolFunction, MinArgs: 0, MaxArgs: -1, Fn: func(...float64) float64 {
		panic("boom")
	}}}
	res = Evaluate("f()", broken)
	assert.False(t, res.OK)
	assert.Equal(t, ErrorCodeOther, res.Code)
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "5", Success(5).String())
	assert.Equal(t, "0.1", Success(0.1).String())
	assert.Equal(t, "-2.5", Success(-2.5).String())
	assert.Equal(t, "NaN", Success(math.NaN()).String())
	assert.Equal(t, "Infinity", Success(math.Inf(1)).String())
	assert.Equal(t, "-Infinity", Success(math.Inf(-1)).String())
	assert.Equal(t, "1e+21", Success(1e21).String())
	assert.Equal(t, "100000000000000000000", Success(1e20).String())
	assert.Equal(t, "Error: x", Failure(NewEvalError(ErrorCodeOther, "x", -1)).String())
}
