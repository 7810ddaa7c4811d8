package formula

import (
	"math"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedRandom float64

func (f fixedRandom) Float64() float64 {
	return float64(f)
}

func call(t *testing.T, table *SymbolTable, name string, args ...float64) float64 {
	t.Helper()
	sym, ok := table.Lookup(name)
	require.True(t, ok, name)
	require.True(t, sym.IsFunction(), name)
	return sym.Fn(args...)
}

func TestSymbolTableContents(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "webtool.formula")
	defer teardown()
	//
	table := BuildSymbolTable(false)
	for _, name := range []string{"abs", "acos", "acosh", "asin", "asinh", "atan", "atan2", "atanh",
		"cbrt", "ceil", "clz32", "cos", "cosh", "exp", "expm1", "floor", "fround", "hypot", "imul",
		"log", "log1p", "log10", "log2", "max", "min", "pow", "random", "round", "sign", "sin",
		"sinh", "sqrt", "tan", "tanh", "trunc", "rad", "deg"} {
		sym, ok := table.Lookup(name)
		assert.True(t, ok, name)
		assert.True(t, sym.IsFunction(), name)
		assert.NotEmpty(t, sym.Description, name)
	}
	for _, name := range []string{"E", "LN10", "LN2", "LOG10E", "LOG2E", "PI", "SQRT1_2", "SQRT2"} {
		sym, ok := table.Lookup(name)
		assert.True(t, ok, name)
		assert.False(t, sym.IsFunction(), name)
	}
	assert.Equal(t, 45, table.Len())
	assert.Len(t, table.Functions(), 37)
	assert.Len(t, table.Constants(), 8)
	assert.True(t, table.IsPredefined("PI"))
	assert.False(t, table.IsPredefined("pi"))
	assert.False(t, table.IsPredefined("x"))
	names := table.Names()
	assert.IsIncreasing(t, names)
}

func TestSymbolTableSharedPerMode(t *testing.T) {
	assert.Same(t, Symbols(true), Symbols(true))
	assert.Same(t, Symbols(false), Symbols(false))
	assert.NotSame(t, Symbols(true), Symbols(false))
	assert.True(t, Symbols(true).Degree())
	assert.False(t, Symbols(false).Degree())
	assert.NotSame(t, BuildSymbolTable(true), BuildSymbolTable(true))
}

func TestAngleWrapper(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "webtool.formula")
	defer teardown()
	//
	deg := BuildSymbolTable(true)
	rad := BuildSymbolTable(false)

	assert.InDelta(t, 0.5, call(t, deg, "sin", 30), 1e-9)
	assert.InDelta(t, 0.5, call(t, deg, "cos", 60), 1e-9)
	assert.InDelta(t, 1.0, call(t, deg, "tan", 45), 1e-9)
	assert.InDelta(t, 30.0, call(t, deg, "asin", 0.5), 1e-9)
	assert.InDelta(t, 60.0, call(t, deg, "acos", 0.5), 1e-9)
	assert.InDelta(t, 45.0, call(t, deg, "atan", 1), 1e-9)
	assert.InDelta(t, 135.0, call(t, deg, "atan2", 1, -1), 1e-9)

	assert.InDelta(t, 1.0, call(t, rad, "sin", math.Pi/2), 1e-9)
	assert.InDelta(t, math.Pi/4, call(t, rad, "atan2", 1, 1), 1e-9)

	// hyperbolic functions are not angle functions
	assert.Equal(t, math.Sinh(1), call(t, deg, "sinh", 1))

	// wrapping an already wrapped table does not convert twice
	twice := WrapTrig(deg, true)
	assert.InDelta(t, 0.5, call(t, twice, "sin", 30), 1e-9)
	back := WrapTrig(deg, false)
	assert.InDelta(t, 1.0, call(t, back, "sin", math.Pi/2), 1e-9)
	assert.False(t, back.Degree())
}

func TestDegreeRoundTrip(t *testing.T) {
	table := BuildSymbolTable(true)
	for x := -1.0; x <= 1.0; x += 0.125 {
		asin := call(t, table, "asin", x)
		assert.InDelta(t, x, call(t, table, "sin", asin), 1e-9)
		// asin yields degrees already, the conversion pair is the identity
		got := call(t, table, "sin", call(t, table, "deg", call(t, table, "rad", asin)))
		assert.InDelta(t, x, got, 1e-9)
	}
}

func TestJavaScriptMathSemantics(t *testing.T) {
	table := BuildSymbolTable(false)

	assert.Equal(t, 3.0, call(t, table, "round", 2.5))
	assert.Equal(t, -2.0, call(t, table, "round", -2.5))
	assert.Equal(t, -3.0, call(t, table, "round", -2.6))
	assert.True(t, math.Signbit(call(t, table, "round", -0.4)))
	assert.True(t, math.IsNaN(call(t, table, "round", math.NaN())))

	assert.True(t, math.IsInf(call(t, table, "max"), -1))
	assert.True(t, math.IsInf(call(t, table, "min"), 1))
	assert.Equal(t, 3.0, call(t, table, "max", 1, 3, 2))
	assert.Equal(t, 1.0, call(t, table, "min", 1, 3, 2))
	assert.True(t, math.IsNaN(call(t, table, "max", 1, math.NaN(), 2)))

	assert.Equal(t, 1.0, call(t, table, "sign", 5))
	assert.Equal(t, -1.0, call(t, table, "sign", -0.1))
	assert.Equal(t, 0.0, call(t, table, "sign", 0))
	assert.True(t, math.IsNaN(call(t, table, "sign", math.NaN())))

	assert.True(t, math.IsNaN(call(t, table, "pow", 1, math.Inf(1))))
	assert.True(t, math.IsNaN(call(t, table, "pow", 2, math.NaN())))
	assert.Equal(t, 1.0, call(t, table, "pow", math.NaN(), 0))
	assert.Equal(t, 8.0, call(t, table, "pow", 2, 3))

	assert.Equal(t, 5.0, call(t, table, "hypot", 3, 4))
	assert.Equal(t, 0.0, call(t, table, "hypot"))
	assert.True(t, math.IsInf(call(t, table, "hypot", math.NaN(), math.Inf(-1)), 1))
	assert.True(t, math.IsNaN(call(t, table, "hypot", math.NaN(), 1)))

	assert.Equal(t, 31.0, call(t, table, "clz32", 1))
	assert.Equal(t, 32.0, call(t, table, "clz32", 0))
	assert.Equal(t, 0.0, call(t, table, "clz32", -1))
	assert.Equal(t, -5.0, call(t, table, "imul", 0xffffffff, 5))
	assert.Equal(t, 12.0, call(t, table, "imul", 3, 4))
	assert.Equal(t, float64(float32(5.5)), call(t, table, "fround", 5.5))
	assert.NotEqual(t, 5.05, call(t, table, "fround", 5.05))

	assert.InDelta(t, 2.0, call(t, table, "cbrt", 8), 1e-12)
	assert.Equal(t, -4.0, call(t, table, "trunc", -4.7))
	assert.InDelta(t, math.Pi, call(t, table, "rad", 180), 1e-12)
	assert.InDelta(t, 180.0, call(t, table, "deg", math.Pi), 1e-12)
}

func TestRandomIsInjectable(t *testing.T) {
	table := NewBuiltInFunctions(fixedRandom(0.25)).SymbolTable(false)
	assert.Equal(t, 0.25, call(t, table, "random"))

	def := BuildSymbolTable(false)
	r := call(t, def, "random")
	assert.GreaterOrEqual(t, r, 0.0)
	assert.Less(t, r, 1.0)
}

func TestToUint32(t *testing.T) {
	assert.Equal(t, uint32(0), ToUint32(math.NaN()))
	assert.Equal(t, uint32(0), ToUint32(math.Inf(1)))
	assert.Equal(t, uint32(4294967295), ToUint32(-1))
	assert.Equal(t, uint32(1), ToUint32(4294967297))
	assert.Equal(t, uint32(3), ToUint32(3.9))
}
