package main

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/edoli/webtool/packages/formula"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// resultPrinter writes results with locale-aware number formatting
type resultPrinter struct {
	out       io.Writer
	msg       *message.Printer
	precision int // maximum decimal places, -1 for the shortest exact form
}

func newResultPrinter(out io.Writer, locale string, precision int) *resultPrinter {
	tag, err := language.Parse(locale)
	if err != nil {
		tracer().Infof("unknown locale %q, using English: %v", locale, err)
		tag = language.English
	}
	return &resultPrinter{
		out:       out,
		msg:       message.NewPrinter(tag),
		precision: precision,
	}
}

// number formats v. Non-finite values print as JavaScript does.
func (p *resultPrinter) number(v float64) string {
	switch {
	case math.IsNaN(v), math.IsInf(v, 0):
		return formula.Success(v).String()
	case p.precision < 0:
		return formula.Success(v).String()
	}
	return p.msg.Sprint(number.Decimal(v, number.MaxFractionDigits(p.precision)))
}

// result formats a value or the error message of a failed result
func (p *resultPrinter) result(res formula.Result) string {
	if !res.OK {
		return res.Message
	}
	return p.number(res.Value)
}

// rows prints every row as "r1: template = value"
func (p *resultPrinter) rows(templates []string, results []formula.Result) {
	width := 0
	for _, t := range templates {
		if n := len([]rune(t)); n > width {
			width = n
		}
	}
	for i, res := range results {
		t := templates[i]
		pad := strings.Repeat(" ", width-len([]rune(t)))
		fmt.Fprintf(p.out, "%s: %s%s = %s\n", formula.ResultRef(i), t, pad, p.result(res))
	}
}

// bindings prints the variables in use and how many rows each affects
func (p *resultPrinter) bindings(sheet *formula.Sheet) {
	bindings := sheet.Bindings()
	for _, name := range sheet.Variables() {
		rows := sheet.AffectedBy(name)
		fmt.Fprintf(p.out, "%s = %q (affects %d rows)\n", name, bindings[name], len(rows))
	}
}

// functions prints the predefined names of table with their descriptions
func (p *resultPrinter) functions(table *formula.SymbolTable) {
	fmt.Fprintln(p.out, "Functions:")
	for _, name := range table.Functions() {
		sym, _ := table.Lookup(name)
		fmt.Fprintf(p.out, "  %-18s %s\n", signature(name, sym), sym.Description)
	}
	fmt.Fprintln(p.out, "Constants:")
	for _, name := range table.Constants() {
		sym, _ := table.Lookup(name)
		fmt.Fprintf(p.out, "  %-18s %s = %s\n", name, sym.Description, formula.Success(sym.Value).String())
	}
	if table.Degree() {
		fmt.Fprintln(p.out, "Trigonometric functions use degrees.")
	}
}

func signature(name string, sym formula.Symbol) string {
	params := []string{"x", "y"}
	switch {
	case sym.MaxArgs < 0:
		return name + "(x, ...)"
	case sym.MaxArgs == 0:
		return name + "()"
	case sym.MaxArgs <= len(params):
		return name + "(" + strings.Join(params[:sym.MaxArgs], ", ") + ")"
	}
	return name + "(...)"
}

// presetInputs prints the input fields of a preset
func (p *resultPrinter) presetInputs(preset formula.Preset) {
	fmt.Fprintf(p.out, "%s: %s\n", preset.Name, preset.Formula)
	for _, in := range preset.Inputs() {
		fmt.Fprintf(p.out, "  %-22s %-9s %s\n", in.Name, in.Kind, in.Label)
	}
}

// presets prints one line per preset
func (p *resultPrinter) presets(presets []formula.Preset) {
	for _, key := range formula.PresetKeys(presets) {
		preset, _ := formula.FindPreset(presets, key)
		fmt.Fprintf(p.out, "%-16s %s\n", key, preset.Name)
	}
}
