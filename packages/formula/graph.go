package formula

import (
	"sort"
	"strconv"
)

// DependencyNode represents a sheet row in the result graph
type DependencyNode struct {
	// position of *THIS* row
	Row int

	// row-to-row dependencies through result references
	Precedents map[int]*DependencyNode // rows whose results this row reads
	Dependents map[int]*DependencyNode // rows that read this row's result

	// variables the row's template refers to
	Variables map[string]struct{}
}

// ResultGraph tracks which rows read the results of which other rows, and
// which rows use which variables. Only references to earlier rows are
// edges: a row can never see the result of itself or a later row.
type ResultGraph struct {
	nodes         map[int]*DependencyNode     // all rows in the graph
	variableUsers map[string]map[int]struct{} // variable -> rows using it
	dangling      map[int]map[string]struct{} // row -> result refs that can never resolve
}

// NewResultGraph creates a new result graph
func NewResultGraph() *ResultGraph {
	return &ResultGraph{
		nodes:         make(map[int]*DependencyNode),
		variableUsers: make(map[string]map[int]struct{}),
		dangling:      make(map[int]map[string]struct{}),
	}
}

// Rebuild replaces the graph with the dependencies of templates, one per
// row in order.
func (dg *ResultGraph) Rebuild(templates []string, predefined Predicate) {
	dg.Clear()
	for i, template := range templates {
		node := dg.GetOrCreateNode(i)
		for _, w := range scanWords(template) {
			if !w.isIdentifier() {
				continue
			}
			if IsResultRef(w.Text) {
				n, err := strconv.Atoi(w.Text[1:])
				if err == nil && n >= 1 && n-1 < i {
					dg.AddDependency(i, n-1)
				} else {
					dg.addDangling(i, w.Text)
				}
				continue
			}
			if isReservedName(w.Text) {
				continue
			}
			if predefined != nil && predefined.IsPredefined(w.Text) {
				continue
			}
			node.Variables[w.Text] = struct{}{}
			if dg.variableUsers[w.Text] == nil {
				dg.variableUsers[w.Text] = make(map[int]struct{})
			}
			dg.variableUsers[w.Text][i] = struct{}{}
		}
	}
}

func (dg *ResultGraph) addDangling(row int, ref string) {
	if dg.dangling[row] == nil {
		dg.dangling[row] = make(map[string]struct{})
	}
	dg.dangling[row][ref] = struct{}{}
}

// GetOrCreateNode gets an existing node or creates a new one
func (dg *ResultGraph) GetOrCreateNode(row int) *DependencyNode {
	if node, exists := dg.nodes[row]; exists {
		return node
	}

	node := &DependencyNode{
		Row:        row,
		Precedents: make(map[int]*DependencyNode),
		Dependents: make(map[int]*DependencyNode),
		Variables:  make(map[string]struct{}),
	}
	dg.nodes[row] = node
	return node
}

// AddDependency records that row from reads the result of row to
func (dg *ResultGraph) AddDependency(from, to int) {
	fromNode := dg.GetOrCreateNode(from)
	toNode := dg.GetOrCreateNode(to)

	fromNode.Precedents[to] = toNode
	toNode.Dependents[from] = fromNode
}

// GetDirectPrecedents returns the rows whose results row reads, ascending
func (dg *ResultGraph) GetDirectPrecedents(row int) []int {
	node, exists := dg.nodes[row]
	if !exists {
		return nil
	}
	return sortedRows(node.Precedents)
}

// GetDirectDependents returns the rows directly reading row's result,
// ascending
func (dg *ResultGraph) GetDirectDependents(row int) []int {
	node, exists := dg.nodes[row]
	if !exists {
		return nil
	}
	return sortedRows(node.Dependents)
}

// GetAllDependents returns all rows affected by row (transitive closure),
// ascending
func (dg *ResultGraph) GetAllDependents(row int) []int {
	visited := make(map[int]struct{})
	var result []int
	dg.collectDependents(row, visited, &result)
	sort.Ints(result)
	return result
}

// collectDependents recursively collects all dependents
func (dg *ResultGraph) collectDependents(row int, visited map[int]struct{}, result *[]int) {
	if _, alreadyVisited := visited[row]; alreadyVisited {
		return
	}
	visited[row] = struct{}{}

	node, exists := dg.nodes[row]
	if !exists {
		return
	}

	for dependent := range node.Dependents {
		if _, alreadyVisited := visited[dependent]; !alreadyVisited {
			*result = append(*result, dependent)
			dg.collectDependents(dependent, visited, result)
		}
	}
}

// GetRowsUsingVariable returns the rows whose templates refer to name,
// ascending
func (dg *ResultGraph) GetRowsUsingVariable(name string) []int {
	rows := make([]int, 0, len(dg.variableUsers[name]))
	for row := range dg.variableUsers[name] {
		rows = append(rows, row)
	}
	sort.Ints(rows)
	return rows
}

// GetAffectedRows returns all rows that change when the binding of name
// changes: its direct users and everything depending on them.
func (dg *ResultGraph) GetAffectedRows(name string) []int {
	visited := make(map[int]struct{})
	var result []int
	for _, row := range dg.GetRowsUsingVariable(name) {
		if _, seen := visited[row]; !seen {
			result = append(result, row)
		}
		dg.collectDependents(row, visited, &result)
	}
	sort.Ints(result)
	return result
}

// GetDanglingReferences returns the result references of row that point
// at itself, a later row or no row at all, sorted.
func (dg *ResultGraph) GetDanglingReferences(row int) []string {
	refs := make([]string, 0, len(dg.dangling[row]))
	for ref := range dg.dangling[row] {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

// NodeCount returns the number of nodes in the graph
func (dg *ResultGraph) NodeCount() int {
	return len(dg.nodes)
}

// Clear removes all nodes and dependencies from the graph
func (dg *ResultGraph) Clear() {
	dg.nodes = make(map[int]*DependencyNode)
	dg.variableUsers = make(map[string]map[int]struct{})
	dg.dangling = make(map[int]map[string]struct{})
}

func sortedRows(m map[int]*DependencyNode) []int {
	rows := make([]int, 0, len(m))
	for row := range m {
		rows = append(rows, row)
	}
	sort.Ints(rows)
	return rows
}
