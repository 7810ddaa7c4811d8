package formula

import (
	"math"
	"math/bits"
	"math/rand"
)

// RandomGenerator interface provides random number generation for testing
type RandomGenerator interface {
	Float64() float64
}

// DefaultRandomGenerator uses the standard library's rand package
type DefaultRandomGenerator struct{}

func (d *DefaultRandomGenerator) Float64() float64 {
	return rand.Float64()
}

// BuiltInFunctions contains the numeric functions and constants every
// formula can reference. The set mirrors JavaScript's Math namespace,
// including its treatment of NaN, infinities and 32-bit integer helpers.
type BuiltInFunctions struct {
	rng RandomGenerator
}

// NewDefaultBuiltInFunctions creates a BuiltInFunctions with default
// implementations
func NewDefaultBuiltInFunctions() *BuiltInFunctions {
	return &BuiltInFunctions{
		rng: &DefaultRandomGenerator{},
	}
}

// NewBuiltInFunctions creates a BuiltInFunctions drawing random numbers
// from rng.
func NewBuiltInFunctions(rng RandomGenerator) *BuiltInFunctions {
	if rng == nil {
		rng = &DefaultRandomGenerator{}
	}
	return &BuiltInFunctions{rng: rng}
}

// builtinConstants are the numeric constants of the Math namespace.
var builtinConstants = map[string]float64{
	"E":       math.E,
	"LN10":    math.Ln10,
	"LN2":     math.Ln2,
	"LOG10E":  math.Log10E,
	"LOG2E":   math.Log2E,
	"PI":      math.Pi,
	"SQRT1_2": 1 / math.Sqrt2,
	"SQRT2":   math.Sqrt2,
}

var constantDescriptions = map[string]string{
	"E":       "Euler's number",
	"LN10":    "natural logarithm of 10",
	"LN2":     "natural logarithm of 2",
	"LOG10E":  "base-10 logarithm of E",
	"LOG2E":   "base-2 logarithm of E",
	"PI":      "ratio of a circle's circumference to its diameter",
	"SQRT1_2": "square root of 1/2",
	"SQRT2":   "square root of 2",
}

// functionSpec describes one function entry before it is bound to a
// BuiltInFunctions receiver.
type functionSpec struct {
	name        string
	minArgs     int
	maxArgs     int // < 0: variadic
	description string
	fn          func(bf *BuiltInFunctions) func(args ...float64) float64
}

func unary(f func(float64) float64) func(*BuiltInFunctions) func(...float64) float64 {
	return func(*BuiltInFunctions) func(...float64) float64 {
		return func(args ...float64) float64 {
			return f(args[0])
		}
	}
}

func binary(f func(float64, float64) float64) func(*BuiltInFunctions) func(...float64) float64 {
	return func(*BuiltInFunctions) func(...float64) float64 {
		return func(args ...float64) float64 {
			return f(args[0], args[1])
		}
	}
}

func variadic(f func(...float64) float64) func(*BuiltInFunctions) func(...float64) float64 {
	return func(*BuiltInFunctions) func(...float64) float64 {
		return f
	}
}

var builtinFunctions = []functionSpec{
	{"abs", 1, 1, "absolute value", unary(math.Abs)},
	{"acos", 1, 1, "arccosine", unary(math.Acos)},
	{"acosh", 1, 1, "hyperbolic arccosine", unary(math.Acosh)},
	{"asin", 1, 1, "arcsine", unary(math.Asin)},
	{"asinh", 1, 1, "hyperbolic arcsine", unary(math.Asinh)},
	{"atan", 1, 1, "arctangent", unary(math.Atan)},
	{"atan2", 2, 2, "arctangent of y/x, quadrant aware", binary(math.Atan2)},
	{"atanh", 1, 1, "hyperbolic arctangent", unary(math.Atanh)},
	{"cbrt", 1, 1, "cube root", unary(math.Cbrt)},
	{"ceil", 1, 1, "smallest integer not less than x", unary(math.Ceil)},
	{"clz32", 1, 1, "leading zero bits of the 32-bit integer x", unary(Clz32)},
	{"cos", 1, 1, "cosine", unary(math.Cos)},
	{"cosh", 1, 1, "hyperbolic cosine", unary(math.Cosh)},
	{"exp", 1, 1, "e raised to x", unary(math.Exp)},
	{"expm1", 1, 1, "exp(x) - 1", unary(math.Expm1)},
	{"floor", 1, 1, "largest integer not greater than x", unary(math.Floor)},
	{"fround", 1, 1, "nearest single precision value", unary(Fround)},
	{"hypot", 0, -1, "square root of the sum of squares", variadic(Hypot)},
	{"imul", 2, 2, "32-bit integer multiplication", binary(Imul)},
	{"log", 1, 1, "natural logarithm", unary(math.Log)},
	{"log1p", 1, 1, "log(1 + x)", unary(math.Log1p)},
	{"log10", 1, 1, "base-10 logarithm", unary(math.Log10)},
	{"log2", 1, 1, "base-2 logarithm", unary(math.Log2)},
	{"max", 0, -1, "largest argument", variadic(Max)},
	{"min", 0, -1, "smallest argument", variadic(Min)},
	{"pow", 2, 2, "x raised to y", binary(Pow)},
	{"random", 0, 0, "pseudo-random number in [0, 1)", func(bf *BuiltInFunctions) func(...float64) float64 {
		return func(...float64) float64 { return bf.rng.Float64() }
	}},
	{"round", 1, 1, "nearest integer, halves rounded up", unary(Round)},
	{"sign", 1, 1, "sign of x", unary(Sign)},
	{"sin", 1, 1, "sine", unary(math.Sin)},
	{"sinh", 1, 1, "hyperbolic sine", unary(math.Sinh)},
	{"sqrt", 1, 1, "square root", unary(math.Sqrt)},
	{"tan", 1, 1, "tangent", unary(math.Tan)},
	{"tanh", 1, 1, "hyperbolic tangent", unary(math.Tanh)},
	{"trunc", 1, 1, "integer part of x", unary(math.Trunc)},
	{"rad", 1, 1, "degrees to radians", unary(degToRad)},
	{"deg", 1, 1, "radians to degrees", unary(radToDeg)},
}

// SymbolTable builds the radian-mode table of all built-ins bound to bf and
// applies the angle wrapper for useDegree.
func (bf *BuiltInFunctions) SymbolTable(useDegree bool) *SymbolTable {
	symbols := make(map[string]Symbol, len(builtinConstants)+len(builtinFunctions))
	for name, v := range builtinConstants {
		s := Constant(v)
		s.Description = constantDescriptions[name]
		symbols[name] = s
	}
	for _, spec := range builtinFunctions {
		symbols[spec.name] = Symbol{
			Kind:        SymbolFunction,
			Fn:          spec.fn(bf),
			MinArgs:     spec.minArgs,
			MaxArgs:     spec.maxArgs,
			Description: spec.description,
		}
	}
	return WrapTrig(&SymbolTable{symbols: symbols}, useDegree)
}

// --- JavaScript-compatible numeric helpers ---------------------------------

func degToRad(x float64) float64 {
	return x * math.Pi / 180
}

func radToDeg(x float64) float64 {
	return x * 180 / math.Pi
}

// Round rounds to the nearest integer with halves rounded toward +Inf.
func Round(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	r := math.Floor(x)
	if x-r >= 0.5 {
		r++
	}
	if r == 0 {
		return math.Copysign(0, x)
	}
	return r
}

// Sign returns 1, -1, a signed zero, or NaN.
func Sign(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return math.NaN()
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return x
}

// Pow differs from math.Pow for NaN exponents and for a base of ±1 raised
// to an infinite power, both of which are NaN.
func Pow(x, y float64) float64 {
	if math.IsNaN(y) {
		return math.NaN()
	}
	if math.IsInf(y, 0) && math.Abs(x) == 1 {
		return math.NaN()
	}
	return math.Pow(x, y)
}

// Max returns -Inf for no arguments and NaN if any argument is NaN.
func Max(args ...float64) float64 {
	m := math.Inf(-1)
	for _, a := range args {
		m = math.Max(m, a)
	}
	return m
}

// Min returns +Inf for no arguments and NaN if any argument is NaN.
func Min(args ...float64) float64 {
	m := math.Inf(1)
	for _, a := range args {
		m = math.Min(m, a)
	}
	return m
}

// Hypot is +Inf if any argument is infinite, even when another is NaN.
func Hypot(args ...float64) float64 {
	h := 0.0
	nan := false
	for _, a := range args {
		if math.IsInf(a, 0) {
			return math.Inf(1)
		}
		if math.IsNaN(a) {
			nan = true
			continue
		}
		h = math.Hypot(h, a)
	}
	if nan {
		return math.NaN()
	}
	return h
}

// ToUint32 converts x modulo 2^32, mapping NaN and infinities to 0.
func ToUint32(x float64) uint32 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	m := math.Mod(math.Trunc(x), 1<<32)
	if m < 0 {
		m += 1 << 32
	}
	return uint32(m)
}

func Clz32(x float64) float64 {
	return float64(bits.LeadingZeros32(ToUint32(x)))
}

func Imul(a, b float64) float64 {
	return float64(int32(ToUint32(a) * ToUint32(b)))
}

func Fround(x float64) float64 {
	return float64(float32(x))
}
