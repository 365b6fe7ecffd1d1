package driver

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/davecgh/go-spew/spew"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"esmod/pkg/modules"
)

// Format selects how Render writes a record.
type Format int

const (
	FormatText Format = iota // the record dump
	FormatJSON
	FormatSpew
)

func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatJSON:
		return "json"
	case FormatSpew:
		return "spew"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat parses a -format flag value.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "text", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "spew":
		return FormatSpew, nil
	}
	return 0, fmt.Errorf("unknown format %q (want text, json or spew)", s)
}

// RecordView is a plain-data snapshot of a record, used by the json and
// spew formats.
type RecordView struct {
	Key               string
	URL               string
	RequestedModules  []string
	ImportEntries     []modules.ImportEntry
	ExportEntries     []modules.ExportEntry
	StarExportEntries []string
	DeclaredBindings  []modules.Binding
	LexicalBindings   []modules.Binding
	Properties        map[string]string
}

func NewRecordView(rec *modules.Record) *RecordView {
	v := &RecordView{
		Key:               rec.Key(),
		URL:               rec.SourceURL(),
		RequestedModules:  rec.RequestedModules(),
		ImportEntries:     rec.ImportEntries(),
		ExportEntries:     rec.ExportEntries(),
		StarExportEntries: rec.StarExportEntries(),
		DeclaredBindings:  rec.DeclaredBindings(),
		LexicalBindings:   rec.LexicalBindings(),
	}
	if names := rec.PropertyNames(); len(names) > 0 {
		v.Properties = make(map[string]string, len(names))
		for _, name := range names {
			value, _ := rec.Property(name)
			v.Properties[name] = fmt.Sprint(value)
		}
	}
	return v
}

// Struct converts the view to a protobuf Struct. Field names are
// lowerCamelCase; export entries carry their kind.
func (v *RecordView) Struct() (*structpb.Struct, error) {
	imports := make([]interface{}, len(v.ImportEntries))
	for i, e := range v.ImportEntries {
		imports[i] = map[string]interface{}{
			"importName":    e.ImportName,
			"localName":     e.LocalName,
			"moduleRequest": e.ModuleRequest,
		}
	}

	exports := make([]interface{}, len(v.ExportEntries))
	for i, e := range v.ExportEntries {
		fields := map[string]interface{}{"kind": e.Kind().String()}
		switch e := e.(type) {
		case modules.LocalExport:
			fields["exportName"] = e.ExportName
			fields["localName"] = e.LocalName
		case modules.IndirectExport:
			fields["exportName"] = e.ExportName
			fields["importName"] = e.ImportName
			fields["moduleRequest"] = e.ModuleRequest
		case modules.StarExport:
			fields["moduleRequest"] = e.ModuleRequest
		}
		exports[i] = fields
	}

	m := map[string]interface{}{
		"key":               v.Key,
		"url":               v.URL,
		"requestedModules":  stringList(v.RequestedModules),
		"importEntries":     imports,
		"exportEntries":     exports,
		"starExportEntries": stringList(v.StarExportEntries),
		"declaredBindings":  bindingList(v.DeclaredBindings),
		"lexicalBindings":   bindingList(v.LexicalBindings),
	}
	if len(v.Properties) > 0 {
		props := make(map[string]interface{}, len(v.Properties))
		for name, value := range v.Properties {
			props[name] = value
		}
		m["properties"] = props
	}
	return structpb.NewStruct(m)
}

func stringList(values []string) []interface{} {
	list := make([]interface{}, len(values))
	for i, s := range values {
		list[i] = s
	}
	return list
}

func bindingList(bindings []modules.Binding) []interface{} {
	list := make([]interface{}, len(bindings))
	for i, b := range bindings {
		list[i] = map[string]interface{}{
			"localName":           b.LocalName,
			"isExported":          b.IsExported,
			"isImported":          b.IsImported,
			"isImportedNamespace": b.IsImportedNamespace,
		}
	}
	return list
}

var spewConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	DisableMethods:          true,
	SortKeys:                true,
}

// Render writes rec to w in the given format.
func Render(w io.Writer, rec *modules.Record, format Format) error {
	switch format {
	case FormatText:
		return rec.Dump(w)
	case FormatJSON:
		data, err := StableJSON(rec)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, data)
		return err
	case FormatSpew:
		spewConfig.Fdump(w, NewRecordView(rec))
		return nil
	}
	return fmt.Errorf("unknown format %v", format)
}

// StableJSON renders rec as indented JSON with sorted keys. protojson
// output is not byte-stable, so it is re-indented by encoding/json.
func StableJSON(rec *modules.Record) (string, error) {
	st, err := NewRecordView(rec).Struct()
	if err != nil {
		return "", fmt.Errorf("record struct: %w", err)
	}
	data, err := protojson.Marshal(st)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	var rm json.RawMessage = data
	data, err = json.MarshalIndent(rm, "", "  ")
	if err != nil {
		return "", fmt.Errorf("json marshal: %w", err)
	}
	return string(data), nil
}
