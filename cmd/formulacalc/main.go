// Command formulacalc evaluates sheets of arithmetic formulas: one-shot
// from the command line, from YAML sheet files, from share links, or
// interactively.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"syscall"

	"github.com/edoli/webtool/packages/config"
	"github.com/edoli/webtool/packages/formula"
	"github.com/npillmayer/schuko/schukonf/testconfig"
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/schuko/tracing/gologadapter"
	"github.com/npillmayer/schuko/tracing/trace2go"
)

// Version is set at compile time via -ldflags
var Version = "0.4.0"

// tracer traces with key 'webtool.cli'
func tracer() tracing.Trace {
	return tracing.Select("webtool.cli")
}

var traceKeys = []string{"webtool.cli", "webtool.config", "webtool.formula"}

// setupTracing routes all tracers to the go logger
func setupTracing(verbose bool) error {
	level := "Error"
	if verbose {
		level = "Debug"
	}
	tracing.RegisterTraceAdapter("go", gologadapter.GetAdapter(), false)
	conf := testconfig.Conf{"tracing.adapter": "go"}
	for _, key := range traceKeys {
		conf["trace."+key] = level
	}
	if err := trace2go.ConfigureRoot(conf, "trace", trace2go.ReplaceTracers(true)); err != nil {
		return err
	}
	tracing.SetTraceSelector(trace2go.Selector())
	return nil
}

// listFlag collects a repeatable string flag
type listFlag []string

func (l *listFlag) String() string {
	return strings.Join(*l, ", ")
}

func (l *listFlag) Set(s string) error {
	*l = append(*l, s)
	return nil
}

// varsFlag collects repeatable name=value flags
type varsFlag map[string]string

func (v varsFlag) String() string {
	pairs := make([]string, 0, len(v))
	for name, value := range v {
		pairs = append(pairs, name+"="+value)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

func (v varsFlag) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("expected name=value, got %q", s)
	}
	v[strings.TrimSpace(name)] = value
	return nil
}

// options are the parsed command line
type options struct {
	configPath string
	exprs      listFlag
	vars       varsFlag
	degree     bool
	strict     bool
	precision  int
	locale     string
	watch      bool
	share      bool
	open       string
	highlight  bool
	verbose    bool
	version    bool
	files      []string
}

// app carries what every mode needs
type app struct {
	cfg    *config.Config
	stdout io.Writer
	stderr io.Writer
	out    *resultPrinter
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, os.Getenv))
}

// run executes the command line and returns the exit status
func run(args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if opts.version {
		fmt.Fprintf(stdout, "formulacalc version %s\n", Version)
		return 0
	}
	if err := setupTracing(opts.verbose); err != nil {
		fmt.Fprintf(stderr, "Error: configuring tracing: %v\n", err)
		return 1
	}

	cfg, err := config.Load(opts.configPath, getenv)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	applyOverrides(cfg, opts)
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	a := &app{
		cfg:    cfg,
		stdout: stdout,
		stderr: stderr,
		out:    newResultPrinter(stdout, cfg.Locale, cfg.Precision),
	}

	// subcommands
	if len(opts.files) > 0 {
		switch opts.files[0] {
		case "preset":
			return a.presetCommand(opts.files[1:])
		case "presets":
			a.out.presets(cfg.AllPresets())
			return 0
		case "funcs":
			a.out.functions(formula.Symbols(cfg.Degree))
			return 0
		}
	}

	switch {
	case len(opts.exprs) > 0:
		return a.evalExpressions(opts)
	case opts.open != "":
		return a.openLink(opts)
	case opts.share:
		return a.shareFiles(opts.files)
	case opts.watch:
		if len(opts.files) != 1 {
			fmt.Fprintln(stderr, "Error: -watch requires exactly one sheet file")
			return 2
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := a.watchSheet(ctx, opts.files[0], opts); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	case len(opts.files) > 0:
		return a.evalFiles(opts)
	default:
		if err := startREPL(a); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{vars: varsFlag{}}
	fs := flag.NewFlagSet("formulacalc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printHelp(stderr) }

	fs.StringVar(&opts.configPath, "config", "", "Config file (default: $"+config.EnvConfig+" or "+config.FileName+")")
	fs.Var(&opts.exprs, "e", "Formula to evaluate, repeat for more rows")
	fs.Var(opts.vars, "var", "Variable binding name=value, repeatable")
	fs.BoolVar(&opts.degree, "deg", false, "Trigonometric functions use degrees")
	fs.BoolVar(&opts.strict, "strict", false, "Treat NaN and Infinity as errors")
	fs.IntVar(&opts.precision, "precision", -2, "Decimal places of printed results (-1 = exact)")
	fs.StringVar(&opts.locale, "locale", "", "Locale for printed numbers")
	fs.BoolVar(&opts.watch, "watch", false, "Re-evaluate the sheet file whenever it changes")
	fs.BoolVar(&opts.share, "share", false, "Print the share link query of each sheet file")
	fs.StringVar(&opts.open, "open", "", "Evaluate a share link or its query")
	fs.BoolVar(&opts.highlight, "html", false, "Print formulas as highlighted HTML")
	fs.BoolVar(&opts.verbose, "v", false, "Verbose tracing")
	fs.BoolVar(&opts.version, "version", false, "Show version information")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	opts.files = fs.Args()
	return opts, nil
}

// applyOverrides lets command line flags win over the config file
func applyOverrides(cfg *config.Config, opts *options) {
	if opts.degree {
		cfg.Degree = true
	}
	if opts.strict {
		cfg.StrictFinite = true
	}
	if opts.precision >= -1 {
		cfg.Precision = opts.precision
	}
	if opts.locale != "" {
		cfg.Locale = opts.locale
	}
}

func printHelp(w io.Writer) {
	fmt.Fprintf(w, `formulacalc - formula calculator version %s

Usage:
  formulacalc [options]                     Start interactive mode
  formulacalc [options] -e FORMULA...       Evaluate formulas as a sheet
  formulacalc [options] SHEET.yaml...       Evaluate sheet files
  formulacalc -watch SHEET.yaml             Re-evaluate a sheet on every save
  formulacalc -share SHEET.yaml...          Print share link queries
  formulacalc -open LINK                    Evaluate a share link
  formulacalc preset KEY [name=value...]    Evaluate a special-calculator preset
  formulacalc presets                       List presets
  formulacalc funcs                         List functions and constants

Options:
  -config FILE       Config file (default: $%s, ./%s, ~/.config/formulacalc/%s)
  -e FORMULA         Formula to evaluate; repeat for more rows (r1, r2, ...)
  -var NAME=VALUE    Variable binding; repeatable
  -deg               Trigonometric functions use degrees
  -strict            Treat NaN and Infinity as errors
  -precision N       Decimal places of printed results (-1 = exact)
  -locale TAG        Locale for printed numbers (e.g. de, fr-CH)
  -html              Print formulas as highlighted HTML
  -v                 Verbose tracing
  -version           Show version information

Examples:
  formulacalc -e "2+3" -e "r1×2"
  formulacalc -deg -e "sin(x)" -var x=30
  formulacalc preset data_between date1=2024-01-01 date2=2024-03-01 boolIncludeStartDate=on
`, Version, config.EnvConfig, config.FileName, config.FileName)
}

// newSheet creates a sheet configured by the config and loaded with state
func (a *app) newSheet(state formula.State) *formula.Sheet {
	sheet := formula.NewSheet(a.cfg.SheetOptions()...)
	sheet.Load(state)
	return sheet
}

// report prints the rows of sheet and returns 1 if any row failed
func (a *app) report(sheet *formula.Sheet, highlight bool) int {
	results := sheet.Evaluate()
	templates := sheet.Templates()
	if highlight {
		table := sheet.SymbolTable()
		for i, t := range templates {
			fmt.Fprintf(a.stdout, "<div class=\"row\">%s</div>\n", formula.Highlight(t, table, formula.Focus{}))
			fmt.Fprintf(a.stdout, "<div class=\"result\">%s</div>\n", a.out.result(results[i]))
		}
	} else if len(results) == 1 {
		fmt.Fprintln(a.stdout, a.out.result(results[0]))
	} else {
		a.out.rows(templates, results)
	}
	for _, res := range results {
		if !res.OK {
			return 1
		}
	}
	return 0
}

// bindVars applies -var bindings, warning about variables no row uses
func (a *app) bindVars(state *formula.State, vars map[string]string) {
	if len(vars) == 0 {
		return
	}
	used := formula.VariablesInUse(state.Templates, formula.Symbols(state.UseDegree))
	if state.Variables == nil {
		state.Variables = make(map[string]string, len(vars))
	}
	for name, value := range vars {
		if !slices.Contains(used, name) {
			fmt.Fprintf(a.stderr, "warning: variable %s is not used by any formula\n", name)
			continue
		}
		state.Variables[name] = value
	}
}

func (a *app) evalExpressions(opts *options) int {
	state := formula.State{Templates: opts.exprs, UseDegree: a.cfg.Degree}
	a.bindVars(&state, opts.vars)
	return a.report(a.newSheet(state), opts.highlight)
}

func (a *app) evalFiles(opts *options) int {
	status := 0
	for i, path := range opts.files {
		state, err := config.LoadSheet(path, a.cfg.Degree)
		if err != nil {
			fmt.Fprintf(a.stderr, "Error: %v\n", err)
			status = 1
			continue
		}
		a.bindVars(&state, opts.vars)
		if len(opts.files) > 1 {
			if i > 0 {
				fmt.Fprintln(a.stdout)
			}
			fmt.Fprintf(a.stdout, "# %s\n", filepath.Base(path))
		}
		if a.report(a.newSheet(state), opts.highlight) != 0 {
			status = 1
		}
	}
	return status
}

func (a *app) shareFiles(files []string) int {
	if len(files) == 0 {
		fmt.Fprintln(a.stderr, "Error: -share requires a sheet file")
		return 2
	}
	status := 0
	for _, path := range files {
		state, err := config.LoadSheet(path, a.cfg.Degree)
		if err != nil {
			fmt.Fprintf(a.stderr, "Error: %v\n", err)
			status = 1
			continue
		}
		fmt.Fprintf(a.stdout, "?%s\n", formula.QueryString(state))
	}
	return status
}

func (a *app) openLink(opts *options) int {
	state, err := formula.ParseShareQuery(opts.open)
	if err != nil {
		// decodable parameters still apply
		fmt.Fprintf(a.stderr, "warning: %v\n", err)
	}
	if len(state.Templates) == 0 {
		fmt.Fprintln(a.stderr, "Error: share link contains no formulas")
		return 1
	}
	if opts.degree {
		state.UseDegree = true
	}
	a.bindVars(&state, opts.vars)
	return a.report(a.newSheet(state), opts.highlight)
}

func (a *app) presetCommand(args []string) int {
	presets := a.cfg.AllPresets()
	if len(args) == 0 {
		a.out.presets(presets)
		return 0
	}
	preset, err := formula.FindPreset(presets, args[0])
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}
	if len(args) == 1 {
		a.out.presetInputs(preset)
		return 0
	}

	values := varsFlag{}
	for _, arg := range args[1:] {
		if err := values.Set(arg); err != nil {
			fmt.Fprintf(a.stderr, "Error: %v\n", err)
			return 2
		}
	}
	res := preset.Evaluate(values)
	fmt.Fprintln(a.stdout, res.Display)
	if !res.Result.OK {
		fmt.Fprintln(a.stderr, res.Result.Message)
		return 1
	}
	return 0
}
