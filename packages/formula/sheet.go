package formula

import (
	"fmt"
	"sort"
)

// FormulaID identifies a row of a Sheet. IDs are never reused within a
// sheet; 0 is never assigned.
type FormulaID uint32

// Formula is one row of a sheet: an expression template which may refer
// to variables and to the results of earlier rows.
type Formula struct {
	ID       FormulaID
	Template string
}

// compiledRow is a row ready for evaluation.
type compiledRow struct {
	template string
	program  *Program
	err      error
}

// evaluateRows is the sheet pass: rows are evaluated in order, each seeing
// the results of the earlier rows that succeeded.
func evaluateRows(rows []compiledRow, table *SymbolTable, bindings map[string]string,
	policy Policy, fallback string) []Result {
	prior := NewPriorResults()
	results := make([]Result, len(rows))
	for i, row := range rows {
		var res Result
		if row.err != nil {
			res = Failure(row.err)
		} else {
			vars := ExtractVariables(row.template, table)
			ctx := buildContext(table, prior, bindings, vars, fallback)
			res = row.program.Evaluate(ctx, policy)
		}
		if res.OK {
			prior.Record(i, res.Value)
		}
		tracer().Debugf("%s: %q -> %s", ResultRef(i), row.template, res)
		results[i] = res
	}
	return results
}

// EvaluateSheet evaluates formulas in order under the default policy. Row
// i may refer to the results of rows before it as r1 … r{i}; a row that
// fails leaves its result name undefined.
func EvaluateSheet(formulas []Formula, bindings map[string]string, useDegree bool) []Result {
	return EvaluateSheetWithPolicy(formulas, bindings, useDegree, DefaultPolicy)
}

// EvaluateSheetWithPolicy is EvaluateSheet with an explicit policy for
// non-finite results.
func EvaluateSheetWithPolicy(formulas []Formula, bindings map[string]string, useDegree bool,
	policy Policy) []Result {
	rows := make([]compiledRow, len(formulas))
	for i, f := range formulas {
		prog, err := Compile(f.Template)
		rows[i] = compiledRow{template: f.Template, program: prog, err: err}
	}
	return evaluateRows(rows, Symbols(useDegree), bindings, policy, DefaultBinding)
}

// --- Sheet -----------------------------------------------------------------

// Sheet is an ordered collection of formula rows sharing one set of
// variable bindings and one angle mode. Variables come into existence
// with the default binding when a row first refers to them and disappear
// when no row refers to them any more.
//
// A Sheet is not safe for concurrent use.
type Sheet struct {
	storage    *Storage
	formulas   []*Formula
	byID       map[FormulaID]*Formula
	rowVars    map[FormulaID][]string // variables each row holds a reference to
	nextID     FormulaID
	useDegree  bool
	policy     Policy
	functions  *BuiltInFunctions
	table      *SymbolTable // for useDegree, nil until needed
	graphDirty bool
}

// Option configures a Sheet
type Option func(*Sheet)

// WithPolicy sets the policy for non-finite results
func WithPolicy(policy Policy) Option {
	return func(s *Sheet) {
		s.policy = policy
	}
}

// WithDegree starts the sheet in degree mode
func WithDegree(useDegree bool) Option {
	return func(s *Sheet) {
		s.useDegree = useDegree
	}
}

// WithDefaultBinding sets the value new variables start out with
func WithDefaultBinding(value string) Option {
	return func(s *Sheet) {
		s.storage.bindings = NewBindingTable(value)
	}
}

// WithFunctions replaces the built-in functions, e.g. to make random
// deterministic
func WithFunctions(bf *BuiltInFunctions) Option {
	return func(s *Sheet) {
		s.functions = bf
	}
}

// NewSheet creates an empty sheet
func NewSheet(opts ...Option) *Sheet {
	s := &Sheet{
		storage: newStorage(DefaultBinding),
		byID:    make(map[FormulaID]*Formula),
		rowVars: make(map[FormulaID][]string),
		nextID:  1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// symbols returns the symbol table for the current angle mode. It is
// rebuilt only after the mode changed.
func (s *Sheet) symbols() *SymbolTable {
	if s.table == nil {
		if s.functions != nil {
			s.table = s.functions.SymbolTable(s.useDegree)
		} else {
			s.table = Symbols(s.useDegree)
		}
	}
	return s.table
}

// AddFormula appends a row and returns it
func (s *Sheet) AddFormula(template string) Formula {
	f := &Formula{ID: s.nextID, Template: template}
	s.nextID++

	s.acquireRow(f)
	s.formulas = append(s.formulas, f)
	s.byID[f.ID] = f
	s.graphDirty = true
	return *f
}

// acquireRow makes the row hold references to its variables and program
func (s *Sheet) acquireRow(f *Formula) {
	vars := ExtractVariables(f.Template, s.symbols())
	for _, name := range vars {
		s.storage.bindings.Acquire(name)
	}
	s.rowVars[f.ID] = vars
	s.storage.programs.Intern(f.ID, f.Template)
}

// releaseVars drops the references held for vars
func (s *Sheet) releaseVars(vars []string) {
	for _, name := range vars {
		if s.storage.bindings.Release(name) {
			tracer().Debugf("variable %s no longer in use", name)
		}
	}
}

// UpdateFormula replaces the template of row id. Variables still referred
// to keep their bindings.
func (s *Sheet) UpdateFormula(id FormulaID, template string) error {
	f, exists := s.byID[id]
	if !exists {
		return NewApplicationError(NotFound, fmt.Sprintf("formula %d not found", id))
	}
	if f.Template == template {
		return nil
	}

	// acquire the new references before releasing the old ones, so shared
	// variables never pass through a count of zero
	old := s.rowVars[id]
	f.Template = template
	s.acquireRow(f)
	s.releaseVars(old)
	s.graphDirty = true
	return nil
}

// RemoveFormula removes row id. Later rows move up, so their result names
// change.
func (s *Sheet) RemoveFormula(id FormulaID) error {
	if _, exists := s.byID[id]; !exists {
		return NewApplicationError(NotFound, fmt.Sprintf("formula %d not found", id))
	}

	s.releaseVars(s.rowVars[id])
	s.storage.programs.Release(id)
	delete(s.rowVars, id)
	delete(s.byID, id)
	for i, f := range s.formulas {
		if f.ID == id {
			s.formulas = append(s.formulas[:i], s.formulas[i+1:]...)
			break
		}
	}
	s.graphDirty = true
	return nil
}

// RemoveLast removes the last row. The only remaining row is never
// removed.
func (s *Sheet) RemoveLast() error {
	if len(s.formulas) <= 1 {
		return NewApplicationError(FailedPrecondition, "cannot remove the only formula")
	}
	return s.RemoveFormula(s.formulas[len(s.formulas)-1].ID)
}

// Formulas returns all rows in order
func (s *Sheet) Formulas() []Formula {
	formulas := make([]Formula, len(s.formulas))
	for i, f := range s.formulas {
		formulas[i] = *f
	}
	return formulas
}

// Len returns the number of rows
func (s *Sheet) Len() int {
	return len(s.formulas)
}

// Templates returns the templates of all rows in order
func (s *Sheet) Templates() []string {
	templates := make([]string, len(s.formulas))
	for i, f := range s.formulas {
		templates[i] = f.Template
	}
	return templates
}

// SetBinding sets the value of a variable some row refers to
func (s *Sheet) SetBinding(name, value string) error {
	if !s.storage.bindings.Set(name, value) {
		return NewApplicationError(NotFound, fmt.Sprintf("variable %s is not used by any formula", name))
	}
	return nil
}

// Binding returns the value of a variable
func (s *Sheet) Binding(name string) (string, bool) {
	return s.storage.bindings.Get(name)
}

// Bindings returns the values of all variables in use
func (s *Sheet) Bindings() map[string]string {
	return s.storage.bindings.Values()
}

// Variables returns the variables in use, in order of first reference
func (s *Sheet) Variables() []string {
	return VariablesInUse(s.Templates(), s.symbols())
}

// SetDegree switches the angle mode
func (s *Sheet) SetDegree(useDegree bool) {
	if s.useDegree == useDegree {
		return
	}
	s.useDegree = useDegree
	s.table = nil
}

// Degree reports whether trigonometric functions work in degrees
func (s *Sheet) Degree() bool {
	return s.useDegree
}

// Policy returns the policy for non-finite results
func (s *Sheet) Policy() Policy {
	return s.policy
}

// SymbolTable returns the predefined names of the current angle mode
func (s *Sheet) SymbolTable() *SymbolTable {
	return s.symbols()
}

// Evaluate evaluates all rows in order
func (s *Sheet) Evaluate() []Result {
	rows := make([]compiledRow, len(s.formulas))
	for i, f := range s.formulas {
		prog, err := s.storage.programs.Lookup(f.ID)
		rows[i] = compiledRow{template: f.Template, program: prog, err: err}
	}
	results := evaluateRows(rows, s.symbols(), s.storage.bindings.Values(), s.policy, s.storage.bindings.Default())

	for i, res := range results {
		if res.OK {
			continue
		}
		if deps := s.graph().GetAllDependents(i); len(deps) > 0 {
			tracer().Infof("%s failed, affecting %d later rows: %s", ResultRef(i), len(deps), res.Message)
		}
	}
	return results
}

// graph returns the result graph, rebuilt if rows changed
func (s *Sheet) graph() *ResultGraph {
	if s.graphDirty {
		s.storage.graph.Rebuild(s.Templates(), s.symbols())
		s.graphDirty = false
	}
	return s.storage.graph
}

// index returns the position of row id
func (s *Sheet) index(id FormulaID) (int, bool) {
	for i, f := range s.formulas {
		if f.ID == id {
			return i, true
		}
	}
	return 0, false
}

func (s *Sheet) rowIDs(rows []int) []FormulaID {
	ids := make([]FormulaID, len(rows))
	for i, row := range rows {
		ids[i] = s.formulas[row].ID
	}
	return ids
}

// Dependents returns the rows that read the result of row id, directly or
// through other rows, in sheet order
func (s *Sheet) Dependents(id FormulaID) ([]FormulaID, error) {
	i, ok := s.index(id)
	if !ok {
		return nil, NewApplicationError(NotFound, fmt.Sprintf("formula %d not found", id))
	}
	return s.rowIDs(s.graph().GetAllDependents(i)), nil
}

// AffectedBy returns the rows whose result depends on the binding of
// name, in sheet order
func (s *Sheet) AffectedBy(name string) []FormulaID {
	return s.rowIDs(s.graph().GetAffectedRows(name))
}

// DanglingReferences returns the result names row id refers to that can
// never be defined: its own, later rows', or r0.
func (s *Sheet) DanglingReferences(id FormulaID) ([]string, error) {
	i, ok := s.index(id)
	if !ok {
		return nil, NewApplicationError(NotFound, fmt.Sprintf("formula %d not found", id))
	}
	return s.graph().GetDanglingReferences(i), nil
}

// Clear removes all rows and variables
func (s *Sheet) Clear() {
	s.formulas = nil
	s.byID = make(map[FormulaID]*Formula)
	s.rowVars = make(map[FormulaID][]string)
	s.storage.bindings.Clear()
	s.storage.programs.Clear()
	s.storage.graph.Clear()
	s.graphDirty = false
}

// State returns the persistent state of the sheet
func (s *Sheet) State() State {
	return State{
		Templates: s.Templates(),
		Variables: s.Bindings(),
		UseDegree: s.useDegree,
	}
}

// Load replaces the sheet's contents with state. Bindings for variables
// no template refers to are ignored.
func (s *Sheet) Load(state State) {
	s.Clear()
	s.SetDegree(state.UseDegree)
	for _, t := range state.Templates {
		s.AddFormula(t)
	}
	for name, value := range state.Variables {
		if err := s.SetBinding(name, value); err != nil {
			tracer().Debugf("ignoring binding: %v", err)
		}
	}
}

// --- Chaining --------------------------------------------------------------

// RunnableSheet provides a chainable interface for sheet operations.
// wraps the standard Sheet and tracks errors internally
type RunnableSheet struct {
	sheet   *Sheet
	results []Result
	err     error
	printLn func(string)
}

// NewRunnableSheet creates a new RunnableSheet. printLn is required and
// will be used for all logging operations (Log, CheckError)
func NewRunnableSheet(printLn func(string), opts ...Option) *RunnableSheet {
	return &RunnableSheet{
		sheet:   NewSheet(opts...),
		printLn: printLn,
	}
}

// Add appends a row (chainable)
func (r *RunnableSheet) Add(templates ...string) *RunnableSheet {
	if r.err != nil {
		return r // no-op if there's already an error
	}
	for _, t := range templates {
		r.sheet.AddFormula(t)
	}
	return r
}

// Set sets a variable binding (chainable)
func (r *RunnableSheet) Set(name, value string) *RunnableSheet {
	if r.err != nil {
		return r // no-op if there's already an error
	}
	r.err = r.sheet.SetBinding(name, value)
	return r
}

// SetBatch sets several bindings (chainable). Names are applied in sorted
// order so the first failure is deterministic.
func (r *RunnableSheet) SetBatch(bindings map[string]string) *RunnableSheet {
	for _, name := range sortedKeys(bindings) {
		r.Set(name, bindings[name])
	}
	return r
}

// Degree switches the angle mode (chainable)
func (r *RunnableSheet) Degree(useDegree bool) *RunnableSheet {
	if r.err != nil {
		return r // no-op if there's already an error
	}
	r.sheet.SetDegree(useDegree)
	return r
}

// RemoveLast removes the last row (chainable)
func (r *RunnableSheet) RemoveLast() *RunnableSheet {
	if r.err != nil {
		return r // no-op if there's already an error
	}
	r.err = r.sheet.RemoveLast()
	return r
}

// Evaluate evaluates all rows (chainable)
func (r *RunnableSheet) Evaluate() *RunnableSheet {
	if r.err != nil {
		return r // no-op if there's already an error
	}
	r.results = r.sheet.Evaluate()
	return r
}

// Run evaluates all rows and returns the results and any error.
// typically the last method in the chain
func (r *RunnableSheet) Run() ([]Result, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.results = r.sheet.Evaluate()
	return r.results, nil
}

// Results returns the results of the last evaluation
func (r *RunnableSheet) Results() []Result {
	return r.results
}

// Error returns the current error state
func (r *RunnableSheet) Error() error {
	return r.err
}

// CheckError logs the current error using the printLn function (chainable)
func (r *RunnableSheet) CheckError() *RunnableSheet {
	if r.err != nil {
		r.printLn(fmt.Sprintf("ERROR: %v", r.err))
	} else {
		r.printLn("No errors")
	}
	return r
}

// Log prints the result of every row of the last evaluation (chainable)
func (r *RunnableSheet) Log() *RunnableSheet {
	for i, res := range r.results {
		r.printLn(fmt.Sprintf("%s = %s", ResultRef(i), res))
	}
	return r
}

// Sheet returns the underlying sheet. use with caution as it bypasses
// error tracking.
func (r *RunnableSheet) Sheet() *Sheet {
	return r.sheet
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
