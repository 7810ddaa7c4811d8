/*
Package formula evaluates the arithmetic formulas typed into the formula
calculator.

A formula is a plain arithmetic expression such as

	sin(x) + cos(y) × r1

over predefined math functions and constants (see BuildSymbolTable), free
variables bound by the caller, and result references r1, r2, … which denote
the values of earlier rows of a Sheet. Expressions are parsed by a small
recursive-descent parser into an AST and evaluated against a flat Context;
nothing outside that context is reachable from a formula.

Failures never escape as panics or Go errors from the evaluation entry
points: they are reported as a Result with OK set to false and a message
prefixed "Error: ".
*/
package formula

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'webtool.formula'.
func tracer() tracing.Trace {
	return tracing.Select("webtool.formula")
}
