package formula

// ASTKey represents a normalized AST used as a key for program
// deduplication: two templates with the same structure (ignoring
// whitespace, redundant parens and glyphs) share one compiled program.
type ASTKey string

// ProgramID identifies a compiled program in a ProgramCache. 0 is never
// used.
type ProgramID uint32

// cachedProgram is a compile outcome. Templates that fail to compile are
// cached as well, with err set.
type cachedProgram struct {
	program *Program
	err     error
}

// ProgramCache stores compiled templates centrally and tracks which sheet
// rows use them.
type ProgramCache struct {
	// core program storage

	sourceIndex map[string]ProgramID        // normalized source -> program ID
	astIndex    map[ASTKey]ProgramID        // normalized AST -> program ID
	programs    map[ProgramID]cachedProgram // program ID -> compile outcome
	refCounts   map[ProgramID]int           // program ID -> reference count

	// row tracking

	rowsUsingProgram map[ProgramID]map[FormulaID]struct{} // program ID -> rows using it
	programAtRow     map[FormulaID]ProgramID              // row -> program ID (reverse index)

	nextID ProgramID
}

// NewProgramCache creates a new program cache
func NewProgramCache() *ProgramCache {
	return &ProgramCache{
		sourceIndex:      make(map[string]ProgramID),
		astIndex:         make(map[ASTKey]ProgramID),
		programs:         make(map[ProgramID]cachedProgram),
		refCounts:        make(map[ProgramID]int),
		rowsUsingProgram: make(map[ProgramID]map[FormulaID]struct{}),
		programAtRow:     make(map[FormulaID]ProgramID),
		nextID:           1, // start at 1, reserve 0 for no program
	}
}

// normalizeAST converts an AST to its normalized string representation
func normalizeAST(ast ASTNode) ASTKey {
	if ast == nil {
		return ""
	}
	return ASTKey(ast.ToString())
}

// Intern compiles template for row, or reuses an equal program, and makes
// row reference it. A program previously used by row is released.
func (pc *ProgramCache) Intern(row FormulaID, template string) ProgramID {
	id := pc.lookupOrCompile(Normalize(template))
	if old, exists := pc.programAtRow[row]; exists {
		if old == id {
			// row already uses this program; undo the extra reference
			pc.refCounts[id]--
			return id
		}
		pc.release(row, old)
	}
	pc.trackRowUsage(id, row)
	return id
}

// lookupOrCompile returns the ID for src with one reference added.
func (pc *ProgramCache) lookupOrCompile(src string) ProgramID {
	if id, exists := pc.sourceIndex[src]; exists {
		pc.refCounts[id]++
		return id
	}

	var entry cachedProgram
	var key ASTKey
	if src == "" {
		entry.err = NewEvalError(ErrorCodeEmpty, "empty expression", 0)
	} else if root, err := ParseExpression(src); err != nil {
		entry.err = err
	} else {
		entry.program = &Program{Source: src, Root: root}
		key = normalizeAST(root)
		if id, exists := pc.astIndex[key]; exists {
			pc.sourceIndex[src] = id
			pc.refCounts[id]++
			return id
		}
	}

	// add new program
	id := pc.nextID
	pc.sourceIndex[src] = id
	if key != "" {
		pc.astIndex[key] = id
	}
	pc.programs[id] = entry
	pc.refCounts[id] = 1
	pc.nextID++
	return id
}

// trackRowUsage adds a row to the set of rows using a program
func (pc *ProgramCache) trackRowUsage(id ProgramID, row FormulaID) {
	if pc.rowsUsingProgram[id] == nil {
		pc.rowsUsingProgram[id] = make(map[FormulaID]struct{})
	}
	pc.rowsUsingProgram[id][row] = struct{}{}
	pc.programAtRow[row] = id
}

// Release drops the reference row holds. It reports whether the program
// was removed as a result.
func (pc *ProgramCache) Release(row FormulaID) bool {
	id, exists := pc.programAtRow[row]
	if !exists {
		return false
	}
	return pc.release(row, id)
}

func (pc *ProgramCache) release(row FormulaID, id ProgramID) bool {
	if rows, ok := pc.rowsUsingProgram[id]; ok {
		delete(rows, row)
		if len(rows) == 0 {
			delete(pc.rowsUsingProgram, id)
		}
	}
	if pc.programAtRow[row] == id {
		delete(pc.programAtRow, row)
	}

	pc.refCounts[id]--
	if pc.refCounts[id] > 0 {
		return false
	}
	pc.removeProgram(id)
	return true
}

// removeProgram removes a program and all index entries pointing at it
func (pc *ProgramCache) removeProgram(id ProgramID) {
	entry := pc.programs[id]
	for src, sid := range pc.sourceIndex {
		if sid == id {
			delete(pc.sourceIndex, src)
		}
	}
	if entry.program != nil {
		delete(pc.astIndex, normalizeAST(entry.program.Root))
	}
	delete(pc.programs, id)
	delete(pc.refCounts, id)
	delete(pc.rowsUsingProgram, id)
}

// Lookup returns the program row uses, or the error its template failed
// to compile with.
func (pc *ProgramCache) Lookup(row FormulaID) (*Program, error) {
	id, exists := pc.programAtRow[row]
	if !exists {
		return nil, NewApplicationError(NotFound, "no program for row")
	}
	entry := pc.programs[id]
	return entry.program, entry.err
}

// GetProgramID returns the ID of the program row uses
func (pc *ProgramCache) GetProgramID(row FormulaID) (ProgramID, bool) {
	id, exists := pc.programAtRow[row]
	return id, exists
}

// GetRowsUsingProgram returns all rows sharing a program
func (pc *ProgramCache) GetRowsUsingProgram(id ProgramID) []FormulaID {
	rows := make([]FormulaID, 0, len(pc.rowsUsingProgram[id]))
	for row := range pc.rowsUsingProgram[id] {
		rows = append(rows, row)
	}
	return rows
}

// GetReferenceCount returns the reference count for a program ID
func (pc *ProgramCache) GetReferenceCount(id ProgramID) int {
	return pc.refCounts[id]
}

// Count returns the number of distinct programs in the cache
func (pc *ProgramCache) Count() int {
	return len(pc.programs)
}

// TotalReferences returns the total number of references across all
// programs
func (pc *ProgramCache) TotalReferences() int {
	total := 0
	for _, count := range pc.refCounts {
		total += count
	}
	return total
}

// Clear removes all programs from the cache
func (pc *ProgramCache) Clear() {
	pc.sourceIndex = make(map[string]ProgramID)
	pc.astIndex = make(map[ASTKey]ProgramID)
	pc.programs = make(map[ProgramID]cachedProgram)
	pc.refCounts = make(map[ProgramID]int)
	pc.rowsUsingProgram = make(map[ProgramID]map[FormulaID]struct{})
	pc.programAtRow = make(map[FormulaID]ProgramID)
	pc.nextID = 1
}
