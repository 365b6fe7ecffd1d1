package parser

// DefaultBindingName is the local binding that holds the value of
// `export default <expression>` and of anonymous default function/class
// declarations. It cannot collide with a user identifier.
const DefaultBindingName = "*default*"

// VariableFlags annotates a declared name.
type VariableFlags uint8

const (
	VarFlag VariableFlags = 1 << iota
	LetFlag
	ConstFlag
	FunctionFlag
	ClassFlag
	ExportedFlag
	ImportedFlag
	ImportedNamespaceFlag
)

// VariableEntry is the declaration-analysis record of one name.
type VariableEntry struct {
	Flags VariableFlags
}

func (e *VariableEntry) IsVar() bool               { return e.Flags&VarFlag != 0 }
func (e *VariableEntry) IsLet() bool               { return e.Flags&LetFlag != 0 }
func (e *VariableEntry) IsConst() bool             { return e.Flags&ConstFlag != 0 }
func (e *VariableEntry) IsFunction() bool          { return e.Flags&FunctionFlag != 0 }
func (e *VariableEntry) IsClass() bool             { return e.Flags&ClassFlag != 0 }
func (e *VariableEntry) IsExported() bool          { return e.Flags&ExportedFlag != 0 }
func (e *VariableEntry) IsImported() bool          { return e.Flags&ImportedFlag != 0 }
func (e *VariableEntry) IsImportedNamespace() bool { return e.Flags&ImportedNamespaceFlag != 0 }

// VariableEnvironment is an insertion-ordered map of name to entry.
type VariableEnvironment struct {
	names   []string
	entries map[string]*VariableEntry
}

// NewVariableEnvironment returns an empty environment.
func NewVariableEnvironment() *VariableEnvironment {
	return &VariableEnvironment{entries: make(map[string]*VariableEntry)}
}

// Add declares name, or returns the existing entry if already declared.
func (env *VariableEnvironment) Add(name string) *VariableEntry {
	if e, ok := env.entries[name]; ok {
		return e
	}
	e := &VariableEntry{}
	env.entries[name] = e
	env.names = append(env.names, name)
	return e
}

// Get looks name up.
func (env *VariableEnvironment) Get(name string) (*VariableEntry, bool) {
	e, ok := env.entries[name]
	return e, ok
}

// Contains reports whether name is declared.
func (env *VariableEnvironment) Contains(name string) bool {
	_, ok := env.entries[name]
	return ok
}

// Len returns the number of names.
func (env *VariableEnvironment) Len() int { return len(env.names) }

// Names returns the declared names in declaration order.
func (env *VariableEnvironment) Names() []string {
	return append([]string(nil), env.names...)
}

// Range calls fn for each name in declaration order until fn returns false.
func (env *VariableEnvironment) Range(fn func(name string, entry *VariableEntry) bool) {
	for _, name := range env.names {
		if !fn(name, env.entries[name]) {
			return
		}
	}
}

// ModuleScopeData records, for each exported local name, the export names
// it is exported under, in declaration order.
type ModuleScopeData struct {
	exportedBindings map[string][]string
	exportNames      map[string]bool
}

// NewModuleScopeData returns empty module scope data.
func NewModuleScopeData() *ModuleScopeData {
	return &ModuleScopeData{
		exportedBindings: make(map[string][]string),
		exportNames:      make(map[string]bool),
	}
}

// ExportName reserves exportName, reporting false if the module already
// exports that name.
func (d *ModuleScopeData) ExportName(exportName string) bool {
	if d.exportNames[exportName] {
		return false
	}
	d.exportNames[exportName] = true
	return true
}

// ExportBinding records that localName is exported as exportName.
func (d *ModuleScopeData) ExportBinding(localName, exportName string) {
	d.exportedBindings[localName] = append(d.exportedBindings[localName], exportName)
}

// ExportedBindings returns the export names of localName in declaration
// order. The result must not be modified.
func (d *ModuleScopeData) ExportedBindings(localName string) []string {
	return d.exportedBindings[localName]
}

// HasExportName reports whether the module exports exportName through any
// export form.
func (d *ModuleScopeData) HasExportName(exportName string) bool {
	return d.exportNames[exportName]
}
