package formula

// BindingTable holds the raw text the user entered for each variable,
// with reference counting: a variable exists while at least one row
// references it, starting out with the default binding.
type BindingTable struct {
	values       map[string]string
	refCounts    map[string]int // number of rows referencing each variable
	defaultValue string
}

// NewBindingTable creates a new binding table. New variables start out
// as defaultValue.
func NewBindingTable(defaultValue string) *BindingTable {
	return &BindingTable{
		values:       make(map[string]string),
		refCounts:    make(map[string]int),
		defaultValue: defaultValue,
	}
}

// Acquire adds a reference to name, creating it with the default binding
// if it does not exist yet. Returns true if the variable was created.
func (bt *BindingTable) Acquire(name string) bool {
	if _, exists := bt.values[name]; exists {
		bt.refCounts[name]++
		return false
	}
	bt.values[name] = bt.defaultValue
	bt.refCounts[name] = 1
	return true
}

// Release decrements the reference count for name. if the count reaches
// 0, the variable and its binding are removed. returns true if the
// variable was removed, false otherwise.
func (bt *BindingTable) Release(name string) bool {
	if _, exists := bt.values[name]; !exists {
		return false
	}

	bt.refCounts[name]--
	if bt.refCounts[name] <= 0 {
		delete(bt.values, name)
		delete(bt.refCounts, name)
		return true
	}

	return false
}

// Set replaces the binding of an existing variable. Returns false if no
// row references name.
func (bt *BindingTable) Set(name, value string) bool {
	if _, exists := bt.values[name]; !exists {
		return false
	}
	bt.values[name] = value
	return true
}

// Get retrieves the binding of a variable
func (bt *BindingTable) Get(name string) (string, bool) {
	v, exists := bt.values[name]
	return v, exists
}

// Default returns the binding new variables start out with
func (bt *BindingTable) Default() string {
	return bt.defaultValue
}

// GetReferenceCount returns the number of rows referencing name
func (bt *BindingTable) GetReferenceCount(name string) int {
	return bt.refCounts[name]
}

// Count returns the number of variables in the table
func (bt *BindingTable) Count() int {
	return len(bt.values)
}

// TotalReferences returns the total number of references across all
// variables
func (bt *BindingTable) TotalReferences() int {
	total := 0
	for _, count := range bt.refCounts {
		total += count
	}
	return total
}

// Values returns a copy of all bindings
func (bt *BindingTable) Values() map[string]string {
	values := make(map[string]string, len(bt.values))
	for k, v := range bt.values {
		values[k] = v
	}
	return values
}

// Clear removes all variables from the table
func (bt *BindingTable) Clear() {
	bt.values = make(map[string]string)
	bt.refCounts = make(map[string]int)
}
