package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/derekparker/trie"
	"github.com/edoli/webtool/packages/config"
	"github.com/edoli/webtool/packages/formula"
	"github.com/peterh/liner"
)

const prompt = ">> "

// kinds of completion candidates, stored as trie node meta data
const (
	completeFunction = "function"
	completeConstant = "constant"
	completeVariable = "variable"
	completeCommand  = "command"
)

var replCommands = []string{
	":set", ":deg", ":rad", ":list", ":vars", ":edit", ":rm", ":clear",
	":share", ":open", ":save", ":load", ":html", ":funcs", ":help",
}

// session is the state of an interactive sheet
type session struct {
	app   *app
	sheet *formula.Sheet
	out   io.Writer
	names *trie.Trie
	vars  []string // variables currently in the completion trie
}

func newSession(a *app, out io.Writer) *session {
	s := &session{
		app:   a,
		sheet: formula.NewSheet(a.cfg.SheetOptions()...),
		out:   out,
		names: trie.New(),
	}
	table := formula.Symbols(false)
	for _, name := range table.Functions() {
		s.names.Add(name, completeFunction)
	}
	for _, name := range table.Constants() {
		s.names.Add(name, completeConstant)
	}
	for _, cmd := range replCommands {
		s.names.Add(cmd, completeCommand)
	}
	return s
}

// startREPL starts the REPL with line editing, history, and tab completion
func startREPL(a *app) error {
	line := liner.NewLiner()
	defer line.Close()

	// Enable Ctrl+C to abort current line
	line.SetCtrlCAborts(true)

	s := newSession(a, a.stdout)
	line.SetCompleter(s.complete)

	// Load command history from file
	historyFile := a.cfg.HistoryFile
	if historyFile != "" {
		if f, err := os.Open(historyFile); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
		// Save history on exit
		defer func() {
			if f, err := os.Create(historyFile); err == nil {
				line.WriteHistory(f)
				f.Close()
			}
		}()
	}

	fmt.Fprintf(s.out, "formulacalc %s\n", Version)
	fmt.Fprintln(s.out, "Each line adds a formula; r1, r2, ... refer to earlier results.")
	fmt.Fprintln(s.out, "Type ':help' for commands, 'exit' or Ctrl+D to quit")
	fmt.Fprintln(s.out, "")

	for {
		input, err := line.Prompt(prompt)
		if err != nil {
			if err == liner.ErrPromptAborted {
				fmt.Fprintln(s.out, "^C")
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(s.out, "\nGoodbye!")
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}
		if quit := s.execute(input); quit {
			fmt.Fprintln(s.out, "Goodbye!")
			return nil
		}
	}
}

// execute handles one line of input. It reports whether the session
// should end.
func (s *session) execute(input string) bool {
	trimmed := strings.TrimSpace(input)
	switch {
	case trimmed == "":
		return false
	case trimmed == "exit" || trimmed == "quit":
		return true
	case strings.HasPrefix(trimmed, ":"):
		if err := s.command(trimmed); err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
		s.refreshCompletions()
		return false
	}

	s.sheet.AddFormula(trimmed)
	s.refreshCompletions()
	results := s.sheet.Evaluate()
	i := len(results) - 1
	fmt.Fprintf(s.out, "%s = %s\n", formula.ResultRef(i), s.app.out.result(results[i]))
	return false
}

// command runs a REPL command (a line starting with ':')
func (s *session) command(line string) error {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case ":help":
		s.help()
	case ":set":
		if len(args) < 1 {
			return fmt.Errorf("usage: :set NAME VALUE")
		}
		name, value, ok := strings.Cut(strings.Join(args, " "), "=")
		if !ok {
			name, value = args[0], strings.Join(args[1:], " ")
		}
		if err := s.sheet.SetBinding(strings.TrimSpace(name), strings.TrimSpace(value)); err != nil {
			return err
		}
		s.list()
	case ":deg", ":rad":
		s.sheet.SetDegree(cmd == ":deg")
		s.list()
	case ":list":
		s.list()
	case ":vars":
		s.app.out.bindings(s.sheet)
	case ":edit":
		if len(args) < 2 {
			return fmt.Errorf("usage: :edit ROW FORMULA")
		}
		id, err := s.rowID(args[0])
		if err != nil {
			return err
		}
		if err := s.sheet.UpdateFormula(id, strings.Join(args[1:], " ")); err != nil {
			return err
		}
		s.list()
	case ":rm":
		if len(args) == 0 {
			return s.sheet.RemoveLast()
		}
		id, err := s.rowID(args[0])
		if err != nil {
			return err
		}
		deps, err := s.sheet.Dependents(id)
		if err != nil {
			return err
		}
		if err := s.sheet.RemoveFormula(id); err != nil {
			return err
		}
		if len(deps) > 0 {
			fmt.Fprintf(s.out, "note: %d later rows referred to the removed result\n", len(deps))
		}
	case ":clear":
		s.sheet.Clear()
	case ":share":
		fmt.Fprintf(s.out, "?%s\n", formula.QueryString(s.sheet.State()))
	case ":open":
		if len(args) != 1 {
			return fmt.Errorf("usage: :open LINK")
		}
		state, err := formula.ParseShareQuery(args[0])
		if err != nil {
			fmt.Fprintf(s.out, "warning: %v\n", err)
		}
		s.sheet.Load(state)
		s.list()
	case ":save":
		if len(args) != 1 {
			return fmt.Errorf("usage: :save FILE")
		}
		return config.SaveSheet(args[0], s.sheet.State())
	case ":load":
		if len(args) != 1 {
			return fmt.Errorf("usage: :load FILE")
		}
		state, err := config.LoadSheet(args[0], s.sheet.Degree())
		if err != nil {
			return err
		}
		s.sheet.Load(state)
		s.list()
	case ":html":
		table := s.sheet.SymbolTable()
		for i, t := range s.sheet.Templates() {
			fmt.Fprintf(s.out, "%s: %s\n", formula.ResultRef(i), formula.Highlight(t, table, formula.Focus{}))
		}
	case ":funcs":
		s.app.out.functions(s.sheet.SymbolTable())
	default:
		return fmt.Errorf("unknown command %s, try :help", cmd)
	}
	return nil
}

// rowID maps a row number ("2" or "r2") to its formula ID
func (s *session) rowID(arg string) (formula.FormulaID, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(arg, "r"))
	formulas := s.sheet.Formulas()
	if err != nil || n < 1 || n > len(formulas) {
		return 0, fmt.Errorf("no row %s", arg)
	}
	return formulas[n-1].ID, nil
}

func (s *session) list() {
	if s.sheet.Len() == 0 {
		fmt.Fprintln(s.out, "(empty)")
		return
	}
	s.app.out.rows(s.sheet.Templates(), s.sheet.Evaluate())
}

func (s *session) help() {
	fmt.Fprint(s.out, `Commands:
  :set NAME VALUE    Bind a variable (also NAME=VALUE)
  :deg, :rad         Switch trigonometric functions to degrees or radians
  :list              Evaluate and print all rows
  :vars              Print variable bindings
  :edit ROW FORMULA  Replace a row
  :rm [ROW]          Remove a row, the last one by default
  :clear             Remove all rows
  :share             Print a share link query
  :open LINK         Load a share link
  :save FILE         Save the sheet as YAML
  :load FILE         Load a YAML sheet
  :html              Print rows as highlighted HTML
  :funcs             List functions and constants
  exit, quit         Leave
`)
}

// refreshCompletions keeps the variables in the completion trie in sync
// with the sheet
func (s *session) refreshCompletions() {
	current := s.sheet.Variables()
	for _, name := range s.vars {
		if node, ok := s.names.Find(name); ok && node.Meta() == completeVariable {
			s.names.Remove(name)
		}
	}
	for _, name := range current {
		if _, ok := s.names.Find(name); !ok {
			s.names.Add(name, completeVariable)
		}
	}
	s.vars = current
}

// complete returns completions for the word at the end of line. Functions
// complete with an opening parenthesis.
func (s *session) complete(line string) []string {
	start := len(line)
	for start > 0 && isNameByte(line[start-1]) {
		start--
	}
	if start > 0 && line[start-1] == ':' && strings.TrimSpace(line[:start-1]) == "" {
		start-- // command
	}
	prefix := line[start:]
	if prefix == "" {
		return nil
	}

	candidates := s.names.PrefixSearch(prefix)
	sort.Strings(candidates)
	completions := make([]string, 0, len(candidates))
	for _, name := range candidates {
		if node, ok := s.names.Find(name); ok && node.Meta() == completeFunction {
			name += "("
		}
		completions = append(completions, line[:start]+name)
	}
	return completions
}

func isNameByte(b byte) bool {
	return b == '_' || ('0' <= b && b <= '9') || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}
