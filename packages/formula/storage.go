package formula

// Storage holds references to the shared tables a Sheet maintains
type Storage struct {
	bindings *BindingTable
	programs *ProgramCache
	graph    *ResultGraph
}

func newStorage(defaultBinding string) *Storage {
	return &Storage{
		bindings: NewBindingTable(defaultBinding),
		programs: NewProgramCache(),
		graph:    NewResultGraph(),
	}
}
