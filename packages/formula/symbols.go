package formula

import (
	"math"
	"sort"
	"sync"
)

// SymbolKind tells constants from callable functions.
type SymbolKind uint8

const (
	SymbolConstant SymbolKind = iota
	SymbolFunction
)

// Symbol is a named entry an expression can refer to: either a numeric
// value or a function of numeric arguments.
type Symbol struct {
	Kind        SymbolKind
	Value       float64
	Fn          func(args ...float64) float64
	MinArgs     int
	MaxArgs     int // < 0: variadic
	Description string
}

// Constant creates a value symbol.
func Constant(v float64) Symbol {
	return Symbol{Kind: SymbolConstant, Value: v}
}

func (s Symbol) IsFunction() bool {
	return s.Kind == SymbolFunction
}

// acceptsArgs reports whether a call with n arguments satisfies the arity.
func (s Symbol) acceptsArgs(n int) bool {
	return n >= s.MinArgs && (s.MaxArgs < 0 || n <= s.MaxArgs)
}

// Predicate tells whether a name is predefined and thus never a variable.
type Predicate interface {
	IsPredefined(name string) bool
}

// NameSet is a Predicate over a fixed set of names.
type NameSet map[string]struct{}

func NewNameSet(names ...string) NameSet {
	set := make(NameSet, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func (s NameSet) IsPredefined(name string) bool {
	_, ok := s[name]
	return ok
}

// SymbolTable holds the predefined names available to every expression.
// It is not modified after construction and may be shared between
// goroutines.
type SymbolTable struct {
	useDegree bool
	symbols   map[string]Symbol
}

// BuildSymbolTable creates a fresh table of all built-in functions and
// constants, with trigonometric functions working in degrees if useDegree
// is set.
func BuildSymbolTable(useDegree bool) *SymbolTable {
	return NewDefaultBuiltInFunctions().SymbolTable(useDegree)
}

var (
	symbolsOnce   [2]sync.Once
	sharedSymbols [2]*SymbolTable
)

// Symbols returns a process-wide table for the given angle mode, building
// it on first use.
func Symbols(useDegree bool) *SymbolTable {
	i := 0
	if useDegree {
		i = 1
	}
	symbolsOnce[i].Do(func() {
		sharedSymbols[i] = BuildSymbolTable(useDegree)
	})
	return sharedSymbols[i]
}

func (t *SymbolTable) Lookup(name string) (Symbol, bool) {
	s, ok := t.symbols[name]
	return s, ok
}

func (t *SymbolTable) IsPredefined(name string) bool {
	_, ok := t.symbols[name]
	return ok
}

// Degree reports the angle mode the trigonometric entries use.
func (t *SymbolTable) Degree() bool {
	return t.useDegree
}

func (t *SymbolTable) Len() int {
	return len(t.symbols)
}

// Names returns all predefined names, sorted.
func (t *SymbolTable) Names() []string {
	return t.names(func(Symbol) bool { return true })
}

// Functions returns the names of all function entries, sorted.
func (t *SymbolTable) Functions() []string {
	return t.names(Symbol.IsFunction)
}

// Constants returns the names of all constant entries, sorted.
func (t *SymbolTable) Constants() []string {
	return t.names(func(s Symbol) bool { return !s.IsFunction() })
}

func (t *SymbolTable) names(keep func(Symbol) bool) []string {
	names := make([]string, 0, len(t.symbols))
	for name, s := range t.symbols {
		if keep(s) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// --- Angle mode ------------------------------------------------------------

// trigFunctions are the entries affected by the angle mode. The wrapped
// versions always build on these, never on a table's current entry, so
// wrapping twice does not convert twice.
var trigFunctions = map[string]func(args ...float64) float64{
	"sin":   func(a ...float64) float64 { return math.Sin(a[0]) },
	"cos":   func(a ...float64) float64 { return math.Cos(a[0]) },
	"tan":   func(a ...float64) float64 { return math.Tan(a[0]) },
	"asin":  func(a ...float64) float64 { return math.Asin(a[0]) },
	"acos":  func(a ...float64) float64 { return math.Acos(a[0]) },
	"atan":  func(a ...float64) float64 { return math.Atan(a[0]) },
	"atan2": func(a ...float64) float64 { return math.Atan2(a[0], a[1]) },
}

var inverseTrig = map[string]bool{
	"asin": true, "acos": true, "atan": true, "atan2": true,
}

// WrapTrig returns a copy of table whose trigonometric entries take and
// return angles in degrees if useDegree is set, or radians otherwise. All
// other entries are copied unchanged.
func WrapTrig(table *SymbolTable, useDegree bool) *SymbolTable {
	symbols := make(map[string]Symbol, len(table.symbols)+len(trigFunctions))
	for name, s := range table.symbols {
		symbols[name] = s
	}
	for name, f := range trigFunctions {
		s, ok := symbols[name]
		if !ok {
			s = Symbol{Kind: SymbolFunction, MinArgs: 1, MaxArgs: 1}
			if name == "atan2" {
				s.MinArgs, s.MaxArgs = 2, 2
			}
		}
		s.Kind = SymbolFunction
		s.Fn = angleFunc(f, inverseTrig[name], useDegree)
		symbols[name] = s
	}
	return &SymbolTable{useDegree: useDegree, symbols: symbols}
}

func angleFunc(f func(...float64) float64, inverse, useDegree bool) func(...float64) float64 {
	if !useDegree {
		return f
	}
	if inverse {
		return func(args ...float64) float64 {
			return radToDeg(f(args...))
		}
	}
	return func(args ...float64) float64 {
		return f(degToRad(args[0]))
	}
}
