package modules

import "esmod/pkg/parser"

// Binding is a named top-level declaration annotated with its export and
// import status. It is read-only once produced by declaration analysis.
type Binding struct {
	LocalName           string
	IsExported          bool
	IsImported          bool
	IsImportedNamespace bool
}

// bindingsOf converts a declaration environment into bindings, keeping
// declaration order.
func bindingsOf(env *parser.VariableEnvironment) []Binding {
	if env == nil {
		return nil
	}
	bindings := make([]Binding, 0, env.Len())
	env.Range(func(name string, entry *parser.VariableEntry) bool {
		bindings = append(bindings, Binding{
			LocalName:           name,
			IsExported:          entry.IsExported(),
			IsImported:          entry.IsImported(),
			IsImportedNamespace: entry.IsImportedNamespace(),
		})
		return true
	})
	return bindings
}
