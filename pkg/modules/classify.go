package modules

import "fmt"

// InternalError reports broken bookkeeping between declaration analysis and
// the tree walk. It is raised with panic, never returned.
type InternalError struct {
	ModuleKey string
	Msg       string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("modules: internal error in %s: %s", e.ModuleKey, e.Msg)
}

// Classify returns the export entries contributed by binding b.
//
// aliases are the names b is exported under, in declaration order. entry is
// the import entry recorded for b.LocalName, or nil when there is none.
//
// A binding that is imported (but not as a namespace) and exported is a
// re-export and yields IndirectExport entries; entry must then be non-nil.
// Every other exported binding, namespace imports included, yields
// LocalExport entries.
func Classify(b Binding, aliases []string, entry *ImportEntry) []ExportEntry {
	if !b.IsExported || len(aliases) == 0 {
		return nil
	}

	entries := make([]ExportEntry, 0, len(aliases))
	if !b.IsImported || b.IsImportedNamespace {
		for _, alias := range aliases {
			entries = append(entries, LocalExport{ExportName: alias, LocalName: b.LocalName})
		}
		return entries
	}

	if entry == nil {
		panic(&InternalError{Msg: fmt.Sprintf("no import entry for exported import binding '%s'", b.LocalName)})
	}
	for _, alias := range aliases {
		entries = append(entries, IndirectExport{
			ExportName:    alias,
			ImportName:    entry.ImportName,
			ModuleRequest: entry.ModuleRequest,
		})
	}
	return entries
}
