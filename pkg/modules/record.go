package modules

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"esmod/pkg/parser"
	"esmod/pkg/source"
)

// Record is the analysis result for one module: its bindings, the import
// and export facts collected from its declarations and the modules it
// requests. A Record is immutable; all slice accessors return copies.
type Record struct {
	key    string
	source *source.SourceFile

	declared []Binding
	lexical  []Binding

	importEntries     []ImportEntry
	exportEntries     []ExportEntry
	starExportEntries []string
	requestedModules  []string

	// exportNames maps an exported local binding to its export names.
	exportNames map[string][]string

	properties map[string]any
}

func (r *Record) Key() string                { return r.key }
func (r *Record) Source() *source.SourceFile { return r.source }

// SourceURL returns the URL the module was loaded from, or "" for sources
// without one.
func (r *Record) SourceURL() string {
	if r.source == nil {
		return ""
	}
	return r.source.URL
}

func (r *Record) DeclaredBindings() []Binding  { return append([]Binding(nil), r.declared...) }
func (r *Record) LexicalBindings() []Binding   { return append([]Binding(nil), r.lexical...) }
func (r *Record) ImportEntries() []ImportEntry { return append([]ImportEntry(nil), r.importEntries...) }
func (r *Record) ExportEntries() []ExportEntry { return append([]ExportEntry(nil), r.exportEntries...) }
func (r *Record) StarExportEntries() []string  { return append([]string(nil), r.starExportEntries...) }
func (r *Record) RequestedModules() []string   { return append([]string(nil), r.requestedModules...) }

// Binding looks up a top-level binding by local name, declared bindings
// first.
func (r *Record) Binding(name string) (Binding, bool) {
	for _, b := range r.declared {
		if b.LocalName == name {
			return b, true
		}
	}
	for _, b := range r.lexical {
		if b.LocalName == name {
			return b, true
		}
	}
	return Binding{}, false
}

// ImportEntry returns the import entry recorded for localName.
func (r *Record) ImportEntry(localName string) (ImportEntry, bool) {
	for _, e := range r.importEntries {
		if e.LocalName == localName {
			return e, true
		}
	}
	return ImportEntry{}, false
}

// Property returns a host-visible value attached to the record.
func (r *Record) Property(name string) (any, bool) {
	v, ok := r.properties[name]
	return v, ok
}

// CommonJSFunction returns the compiled CommonJS wrapper attached by
// default-export synthesis, or nil.
func (r *Record) CommonJSFunction() Callable {
	fn, _ := r.properties[CommonJSModuleFunction].(Callable)
	return fn
}

// PropertyNames lists attached property names in sorted order.
func (r *Record) PropertyNames() []string {
	names := make([]string, 0, len(r.properties))
	for name := range r.properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the structural invariants of the record: every local
// export names a known binding, every export name of an exported binding
// has its own entry, indirect exports of imported bindings agree with the
// import entry, every re-export names a requested module, and the default
// binding is exported only as default.
func (r *Record) Validate() error {
	requested := make(map[string]bool, len(r.requestedModules))
	for _, m := range r.requestedModules {
		requested[m] = true
	}

	for _, entry := range r.exportEntries {
		switch e := entry.(type) {
		case LocalExport:
			if _, ok := r.Binding(e.LocalName); !ok {
				return fmt.Errorf("%w: local export %q refers to unknown binding %q", ErrInvalidRecord, e.ExportName, e.LocalName)
			}
			if e.LocalName == parser.DefaultBindingName && e.ExportName != "default" {
				return fmt.Errorf("%w: %q may only be exported as default", ErrInvalidRecord, e.LocalName)
			}
		case IndirectExport:
			if !requested[e.ModuleRequest] {
				return fmt.Errorf("%w: indirect export %q requests unlisted module %q", ErrInvalidRecord, e.ExportName, e.ModuleRequest)
			}
		case StarExport:
			if !requested[e.ModuleRequest] {
				return fmt.Errorf("%w: star export requests unlisted module %q", ErrInvalidRecord, e.ModuleRequest)
			}
		}
	}

	// Re-exports of imported bindings must agree with the import entry.
	for _, bindings := range [][]Binding{r.declared, r.lexical} {
		for _, b := range bindings {
			if !b.IsExported {
				continue
			}
			names := r.exportNames[b.LocalName]
			if !b.IsImported || b.IsImportedNamespace {
				for _, name := range names {
					if !r.hasLocal(b.LocalName, name) {
						return fmt.Errorf("%w: binding %q has no local export as %q", ErrInvalidRecord, b.LocalName, name)
					}
				}
				continue
			}
			imp, ok := r.ImportEntry(b.LocalName)
			if !ok {
				return fmt.Errorf("%w: imported binding %q has no import entry", ErrInvalidRecord, b.LocalName)
			}
			if len(names) == 0 && !r.hasIndirect(imp, "") {
				return fmt.Errorf("%w: exported import %q has no matching indirect export", ErrInvalidRecord, b.LocalName)
			}
			for _, name := range names {
				if !r.hasIndirect(imp, name) {
					return fmt.Errorf("%w: exported import %q has no indirect export as %q", ErrInvalidRecord, b.LocalName, name)
				}
			}
		}
	}

	for _, m := range r.starExportEntries {
		if !requested[m] {
			return fmt.Errorf("%w: star export %q is not a requested module", ErrInvalidRecord, m)
		}
	}
	return nil
}

// hasIndirect reports whether an indirect export forwards imp under
// exportName, or under any name when exportName is empty.
func (r *Record) hasIndirect(imp ImportEntry, exportName string) bool {
	for _, entry := range r.exportEntries {
		e, ok := entry.(IndirectExport)
		if !ok || e.ImportName != imp.ImportName || e.ModuleRequest != imp.ModuleRequest {
			continue
		}
		if exportName == "" || e.ExportName == exportName {
			return true
		}
	}
	return false
}

func (r *Record) hasLocal(localName, exportName string) bool {
	for _, entry := range r.exportEntries {
		if e, ok := entry.(LocalExport); ok && e.LocalName == localName && e.ExportName == exportName {
			return true
		}
	}
	return false
}

// Dump writes a human-readable listing of the record.
func (r *Record) Dump(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyzing ModuleRecord key(%s)\n", r.key)

	fmt.Fprintf(&b, "    Dependencies: %d modules\n", len(r.requestedModules))
	for _, m := range r.requestedModules {
		fmt.Fprintf(&b, "      module(%s)\n", strconv.Quote(m))
	}

	fmt.Fprintf(&b, "    Import: %d entries\n", len(r.importEntries))
	for _, e := range r.importEntries {
		kind := "named"
		if e.ImportName == "*" {
			kind = "namespace"
		}
		fmt.Fprintf(&b, "      import(%s), local(%s), module(%s), type(%s)\n", e.ImportName, e.LocalName, strconv.Quote(e.ModuleRequest), kind)
	}

	fmt.Fprintf(&b, "    Export: %d entries\n", len(r.exportEntries))
	for _, entry := range r.exportEntries {
		switch e := entry.(type) {
		case LocalExport:
			fmt.Fprintf(&b, "      [Local] export(%s), local(%s)\n", e.ExportName, e.LocalName)
		case IndirectExport:
			fmt.Fprintf(&b, "      [Indirect] export(%s), import(%s), module(%s)\n", e.ExportName, e.ImportName, strconv.Quote(e.ModuleRequest))
		case StarExport:
			fmt.Fprintf(&b, "      [Star] module(%s)\n", strconv.Quote(e.ModuleRequest))
		}
	}

	fmt.Fprintf(&b, "    Star: %d entries\n", len(r.starExportEntries))
	for _, m := range r.starExportEntries {
		fmt.Fprintf(&b, "      [Star] module(%s)\n", strconv.Quote(m))
	}

	if names := r.PropertyNames(); len(names) > 0 {
		fmt.Fprintf(&b, "    Properties: %d\n", len(names))
		for _, name := range names {
			fmt.Fprintf(&b, "      %s: %v\n", name, r.properties[name])
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// DumpString returns the Dump output as a string.
func (r *Record) DumpString() string {
	var b strings.Builder
	_ = r.Dump(&b)
	return b.String()
}

// recordBuilder accumulates a Record during one analysis pass. The lists
// are append-only; requested modules and star exports are ordered sets.
type recordBuilder struct {
	rec *Record

	requestedSet map[string]bool
	starSet      map[string]bool
	imports      map[string]int
}

func newRecordBuilder(key string, src *source.SourceFile) *recordBuilder {
	return &recordBuilder{
		rec:          &Record{key: key, source: src},
		requestedSet: make(map[string]bool),
		starSet:      make(map[string]bool),
		imports:      make(map[string]int),
	}
}

func (b *recordBuilder) setBindings(declared, lexical []Binding) {
	b.rec.declared = declared
	b.rec.lexical = lexical
}

func (b *recordBuilder) appendRequestedModule(request string) {
	if b.requestedSet[request] {
		return
	}
	b.requestedSet[request] = true
	b.rec.requestedModules = append(b.rec.requestedModules, request)
}

// appendImportEntry records entry, keeping the first entry for a local name.
func (b *recordBuilder) appendImportEntry(entry ImportEntry) {
	if _, ok := b.imports[entry.LocalName]; ok {
		return
	}
	b.imports[entry.LocalName] = len(b.rec.importEntries)
	b.rec.importEntries = append(b.rec.importEntries, entry)
}

func (b *recordBuilder) importEntry(localName string) *ImportEntry {
	i, ok := b.imports[localName]
	if !ok {
		return nil
	}
	entry := b.rec.importEntries[i]
	return &entry
}

// setExportNames records the export names of the exported binding local.
func (b *recordBuilder) setExportNames(local string, names []string) {
	if len(names) == 0 {
		return
	}
	if b.rec.exportNames == nil {
		b.rec.exportNames = make(map[string][]string)
	}
	b.rec.exportNames[local] = append([]string(nil), names...)
}

func (b *recordBuilder) appendExportEntries(entries ...ExportEntry) {
	b.rec.exportEntries = append(b.rec.exportEntries, entries...)
}

func (b *recordBuilder) appendStarExportEntry(request string) {
	if b.starSet[request] {
		return
	}
	b.starSet[request] = true
	b.rec.starExportEntries = append(b.rec.starExportEntries, request)
}

// needsDefaultExport reports whether the module declared no imports, no
// exports and no star exports.
func (b *recordBuilder) needsDefaultExport() bool {
	return len(b.rec.requestedModules) == 0 &&
		len(b.rec.exportEntries) == 0 &&
		len(b.rec.starExportEntries) == 0
}

func (b *recordBuilder) build() *Record {
	return b.rec
}

// withProperty returns a copy of r with name set to value. The copy shares
// r's immutable slices.
func (r *Record) withProperty(name string, value any) *Record {
	cp := *r
	cp.properties = make(map[string]any, len(r.properties)+1)
	for k, v := range r.properties {
		cp.properties[k] = v
	}
	cp.properties[name] = value
	return &cp
}
