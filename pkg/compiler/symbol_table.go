package compiler

import "fmt"

// SymbolKind says how a name was introduced into a function scope.
type SymbolKind int

const (
	SymbolParam SymbolKind = iota
	SymbolVar
	SymbolFunction
	SymbolLet
	SymbolConst
	SymbolClass
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolParam:
		return "param"
	case SymbolVar:
		return "var"
	case SymbolFunction:
		return "function"
	case SymbolLet:
		return "let"
	case SymbolConst:
		return "const"
	case SymbolClass:
		return "class"
	}
	return fmt.Sprintf("SymbolKind(%d)", int(k))
}

// Symbol represents an entry in the symbol table.
type Symbol struct {
	Name  string
	Kind  SymbolKind
	Slot  int  // Index of the binding in its scope, in definition order
	Outer bool // True when resolved from an enclosing scope
}

// SymbolTable manages symbols for a single scope.
type SymbolTable struct {
	Outer *SymbolTable      // Pointer to the symbol table of the enclosing scope
	store map[string]Symbol // Stores symbols defined in *this* scope
	names []string
}

// NewSymbolTable creates a new, top-level symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{store: make(map[string]Symbol)}
}

// NewEnclosedSymbolTable creates a new symbol table enclosed by an outer scope.
func NewEnclosedSymbolTable(outer *SymbolTable) *SymbolTable {
	return &SymbolTable{
		Outer: outer,
		store: make(map[string]Symbol),
	}
}

// Define adds a new symbol to the *current* scope's table. Redefining a name
// keeps its slot and updates the kind.
func (st *SymbolTable) Define(name string, kind SymbolKind) Symbol {
	if existing, ok := st.store[name]; ok {
		existing.Kind = kind
		st.store[name] = existing
		return existing
	}
	symbol := Symbol{Name: name, Kind: kind, Slot: len(st.names)}
	st.store[name] = symbol
	st.names = append(st.names, name)
	return symbol
}

// Resolve looks up a symbol name starting from the current scope and traversing
// up through outer scopes until found. It returns the found symbol, the table
// it was found in, and a boolean indicating success.
func (st *SymbolTable) Resolve(name string) (Symbol, *SymbolTable, bool) {
	if symbol, ok := st.store[name]; ok {
		return symbol, st, true
	}
	if st.Outer != nil {
		symbol, definingTable, ok := st.Outer.Resolve(name)
		if ok {
			symbol.Outer = true
			return symbol, definingTable, true
		}
	}
	return Symbol{}, nil, false
}

// Len returns the number of symbols defined in this scope.
func (st *SymbolTable) Len() int { return len(st.names) }

// Names returns the names defined in this scope in slot order.
func (st *SymbolTable) Names() []string {
	return append([]string(nil), st.names...)
}
