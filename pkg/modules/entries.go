package modules

import (
	"fmt"
	"strconv"
)

// ImportEntry binds a local name to a name imported from another module.
// ImportName is "default" for default imports and "*" for namespace imports.
type ImportEntry struct {
	LocalName     string
	ImportName    string
	ModuleRequest string
}

func (e ImportEntry) String() string {
	return fmt.Sprintf("import %s as %s from %s", e.ImportName, e.LocalName, strconv.Quote(e.ModuleRequest))
}

// ExportKind identifies the variant of an ExportEntry.
type ExportKind int

const (
	ExportLocal    ExportKind = iota // value lives in this module
	ExportIndirect                   // value lives in another module and is re-exported
	ExportStar                       // every name of another module is re-exported
)

func (k ExportKind) String() string {
	switch k {
	case ExportLocal:
		return "local"
	case ExportIndirect:
		return "indirect"
	case ExportStar:
		return "star"
	default:
		return fmt.Sprintf("ExportKind(%d)", int(k))
	}
}

// ExportEntry describes how one exported name is satisfied. It is a closed
// sum: the only implementations are LocalExport, IndirectExport and
// StarExport, and consumers switch on the concrete type.
type ExportEntry interface {
	Kind() ExportKind
	String() string
	exportEntry()
}

// LocalExport exports the local binding LocalName as ExportName.
type LocalExport struct {
	ExportName string
	LocalName  string
}

// IndirectExport re-exports ImportName of ModuleRequest as ExportName. An
// ImportName of "*" re-exports the namespace object of ModuleRequest.
type IndirectExport struct {
	ExportName    string
	ImportName    string
	ModuleRequest string
}

// StarExport re-exports every name of ModuleRequest.
type StarExport struct {
	ModuleRequest string
}

func (LocalExport) Kind() ExportKind    { return ExportLocal }
func (IndirectExport) Kind() ExportKind { return ExportIndirect }
func (StarExport) Kind() ExportKind     { return ExportStar }

func (LocalExport) exportEntry()    {}
func (IndirectExport) exportEntry() {}
func (StarExport) exportEntry()     {}

func (e LocalExport) String() string {
	return fmt.Sprintf("local %s as %s", e.LocalName, e.ExportName)
}

func (e IndirectExport) String() string {
	return fmt.Sprintf("indirect %s as %s from %s", e.ImportName, e.ExportName, strconv.Quote(e.ModuleRequest))
}

func (e StarExport) String() string {
	return fmt.Sprintf("star from %s", strconv.Quote(e.ModuleRequest))
}

// ExportName returns the name entry is exported under, or "" for a
// StarExport, which exports no single name.
func ExportName(entry ExportEntry) string {
	switch e := entry.(type) {
	case LocalExport:
		return e.ExportName
	case IndirectExport:
		return e.ExportName
	case StarExport:
		return ""
	}
	panic(fmt.Sprintf("modules: internal error: unknown export entry %T", entry))
}
