package formula

import (
	"errors"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// DefaultBinding is the value a variable takes until the user enters one.
const DefaultBinding = "1"

// Context is the flat name to symbol mapping an expression is evaluated
// against. It is built per row and never shared between rows.
type Context map[string]Symbol

// PriorResults collects the values of successfully evaluated rows under
// their result names r1, r2, …, in row order.
type PriorResults struct {
	values *linkedhashmap.Map
}

func NewPriorResults() *PriorResults {
	return &PriorResults{values: linkedhashmap.New()}
}

// Record publishes the value of row index i (zero-based) as r{i+1}.
func (p *PriorResults) Record(i int, v float64) {
	p.values.Put(ResultRef(i), v)
}

func (p *PriorResults) Get(name string) (float64, bool) {
	v, ok := p.values.Get(name)
	if !ok {
		return 0, false
	}
	return v.(float64), true
}

func (p *PriorResults) Len() int {
	return p.values.Size()
}

// Names returns the recorded result names in row order.
func (p *PriorResults) Names() []string {
	keys := p.values.Keys()
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.(string)
	}
	return names
}

// Each calls fn for every recorded result in row order.
func (p *PriorResults) Each(fn func(name string, v float64)) {
	it := p.values.Iterator()
	for it.Next() {
		fn(it.Key().(string), it.Value().(float64))
	}
}

// BuildContext assembles the evaluation context of one row: the predefined
// symbols, overlaid by prior results, overlaid by the coerced bindings of
// varsNeeded. Later layers win, so a binding named PI shadows the
// constant. Variables without a binding get DefaultBinding.
func BuildContext(table *SymbolTable, prior *PriorResults, bindings map[string]string, varsNeeded []string) Context {
	return buildContext(table, prior, bindings, varsNeeded, DefaultBinding)
}

func buildContext(table *SymbolTable, prior *PriorResults, bindings map[string]string,
	varsNeeded []string, fallback string) Context {
	size := len(varsNeeded)
	if table != nil {
		size += len(table.symbols)
	}
	ctx := make(Context, size)
	if table != nil {
		for name, s := range table.symbols {
			ctx[name] = s
		}
	}
	if prior != nil {
		prior.Each(func(name string, v float64) {
			ctx[name] = Constant(v)
		})
	}
	for _, name := range varsNeeded {
		raw, ok := bindings[name]
		if !ok {
			raw = fallback
		}
		ctx[name] = Constant(CoerceNumber(raw))
	}
	return ctx
}

var decimalLiteral = regexp.MustCompile(`^[+-]?(?:[0-9]+\.?[0-9]*|\.[0-9]+)(?:[eE][+-]?[0-9]+)?$`)

// CoerceNumber converts user input to a number the way JavaScript's
// Number(string) does: surrounding whitespace is ignored, the empty string
// is 0, decimal and exponent notation, 0x/0o/0b integers and a signed
// "Infinity" are accepted. Everything else is NaN.
func CoerceNumber(s string) float64 {
	s = strings.TrimFunc(s, isJSSpace)
	switch s {
	case "":
		return 0
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	if v, ok := parseRadixLiteral(s); ok {
		return v
	}
	if !decimalLiteral.MatchString(s) {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return math.NaN()
	}
	return v
}

func isJSSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}

// parseRadixLiteral parses unsigned 0x, 0o and 0b integer literals.
func parseRadixLiteral(s string) (float64, bool) {
	if len(s) < 3 || s[0] != '0' {
		return 0, false
	}
	var base int
	switch s[1] {
	case 'x', 'X':
		base = 16
	case 'o', 'O':
		base = 8
	case 'b', 'B':
		base = 2
	default:
		return 0, false
	}
	digits := s[2:]
	if digits[0] == '+' || digits[0] == '-' {
		return 0, false
	}
	n, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return 0, false
	}
	f, _ := new(big.Float).SetInt(n).Float64()
	return f, true
}
