package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// Symbol is one declared constant or variable.
type Symbol struct {
	Name  string
	Kind  Kind  // kind of the most recently stored value
	Value Value // folded value; the last assigned one for variables
	Blob  string
	Cell  string // storage cell label; empty for constants
}

// SymbolTable holds the constants and variables of one generation pass.
// Both tables share a single global namespace: blocks do not open scopes.
type SymbolTable struct {
	constants map[string]*Symbol
	variables map[string]*Symbol
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		constants: make(map[string]*Symbol),
		variables: make(map[string]*Symbol),
	}
}

// checkUnused fails when name is already declared in either table. what
// names the declaration being attempted.
func (s *SymbolTable) checkUnused(name, what string) error {
	if _, ok := s.constants[name]; ok {
		return nameErrorf("%s %q is already declared as a constant", what, name)
	}
	if _, ok := s.variables[name]; ok {
		return nameErrorf("%s %q is already declared as a variable", what, name)
	}
	return nil
}

// DefineConst records an immutable constant. The name must be unused in
// both tables.
func (s *SymbolTable) DefineConst(name string, value Value, blob string) (*Symbol, error) {
	if err := s.checkUnused(name, "constant"); err != nil {
		return nil, err
	}
	sym := &Symbol{Name: name, Kind: value.Kind(), Value: value, Blob: blob}
	s.constants[name] = sym
	return sym, nil
}

// DefineVar records a variable with its storage cell. The name must be
// unused in both tables.
func (s *SymbolTable) DefineVar(name string, value Value, blob, cell string) (*Symbol, error) {
	if err := s.checkUnused(name, "variable"); err != nil {
		return nil, err
	}
	sym := &Symbol{Name: name, Kind: value.Kind(), Value: value, Blob: blob, Cell: cell}
	s.variables[name] = sym
	return sym, nil
}

// Variable returns the variable called name, rejecting constants and
// undeclared names. It is the check every assignment goes through.
func (s *SymbolTable) Variable(name string) (*Symbol, error) {
	if _, ok := s.constants[name]; ok {
		return nil, nameErrorf("cannot assign to constant %q", name)
	}
	sym, ok := s.variables[name]
	if !ok {
		return nil, nameErrorf("assignment to undeclared variable %q", name)
	}
	return sym, nil
}

// Assign overwrites a variable's folded value and, when blob is not empty,
// its current printable blob.
func (s *SymbolTable) Assign(name string, value Value, blob string) error {
	sym, err := s.Variable(name)
	if err != nil {
		return err
	}
	sym.Value = value
	sym.Kind = value.Kind()
	if blob != "" {
		sym.Blob = blob
	}
	return nil
}

// Lookup returns the symbol and whether it was found. Constants are
// checked before variables.
func (s *SymbolTable) Lookup(name string) (*Symbol, bool) {
	if sym, ok := s.constants[name]; ok {
		return sym, true
	}
	sym, ok := s.variables[name]
	return sym, ok
}

// IsConst reports whether name is a declared constant.
func (s *SymbolTable) IsConst(name string) bool {
	_, ok := s.constants[name]
	return ok
}

// Variables returns the declared variables sorted by name.
func (s *SymbolTable) Variables() []*Symbol {
	return sortedSymbols(s.variables)
}

func sortedSymbols(table map[string]*Symbol) []*Symbol {
	out := make([]*Symbol, 0, len(table))
	for _, sym := range table {
		out = append(out, sym)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// String returns a deterministically ordered dump of the table.
func (s *SymbolTable) String() string {
	var sb strings.Builder
	dump := func(title string, table map[string]*Symbol) {
		if len(table) == 0 {
			fmt.Fprintf(&sb, "%s: (empty)\n", title)
			return
		}
		fmt.Fprintf(&sb, "%s:\n", title)
		for _, sym := range sortedSymbols(table) {
			fmt.Fprintf(&sb, "  %-20s  %-8s %-24q Blob: %s", sym.Name, sym.Kind, sym.Value.String(), sym.Blob)
			if sym.Cell != "" {
				fmt.Fprintf(&sb, " Cell: %s", sym.Cell)
			}
			sb.WriteByte('\n')
		}
	}
	dump("Constants", s.constants)
	dump("Variables", s.variables)
	return sb.String()
}
