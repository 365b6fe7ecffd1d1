package modules

import (
	"esmod/pkg/parser"
)

// analyzeModule collects the import and export facts of prog into a fresh
// record builder and classifies its top-level bindings.
//
// From-clause exports and star exports are appended by the tree walk first;
// the classifier's local and indirect entries follow, declared bindings
// before lexical ones.
func analyzeModule(key string, prog *parser.Program) (b *recordBuilder) {
	defer func() {
		if r := recover(); r != nil {
			if ie, ok := r.(*InternalError); ok && ie.ModuleKey == "" {
				ie.ModuleKey = key
			}
			panic(r)
		}
	}()

	b = newRecordBuilder(key, prog.Source)
	walkStatements(b, prog.Statements)

	declared := bindingsOf(prog.VarDeclarations)
	lexical := bindingsOf(prog.LexicalVariables)
	b.setBindings(declared, lexical)

	for _, bindings := range [][]Binding{declared, lexical} {
		for _, binding := range bindings {
			if !binding.IsExported {
				continue
			}
			var aliases []string
			if prog.ModuleScope != nil {
				aliases = prog.ModuleScope.ExportedBindings(binding.LocalName)
			}
			b.setExportNames(binding.LocalName, aliases)
			b.appendExportEntries(Classify(binding, aliases, b.importEntry(binding.LocalName))...)
		}
	}
	return b
}

func walkStatements(b *recordBuilder, stmts []parser.Statement) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *parser.ImportDeclaration:
			request := s.Source.Value
			b.appendRequestedModule(request)
			for _, spec := range s.Specifiers {
				b.appendImportEntry(ImportEntry{
					LocalName:     spec.LocalName(),
					ImportName:    spec.ImportName(),
					ModuleRequest: request,
				})
			}

		case *parser.ExportNamedDeclaration:
			if s.Source == nil {
				// Local exports are classified from the binding table.
				continue
			}
			request := s.Source.Value
			b.appendRequestedModule(request)
			for _, spec := range s.Specifiers {
				b.appendExportEntries(IndirectExport{
					ExportName:    spec.Exported.Value,
					ImportName:    spec.Local.Value,
					ModuleRequest: request,
				})
			}

		case *parser.ExportAllDeclaration:
			request := s.Source.Value
			b.appendRequestedModule(request)
			if s.Exported != nil {
				b.appendExportEntries(IndirectExport{
					ExportName:    s.Exported.Value,
					ImportName:    "*",
					ModuleRequest: request,
				})
				continue
			}
			b.appendExportEntries(StarExport{ModuleRequest: request})
			b.appendStarExportEntry(request)
		}
	}
}
