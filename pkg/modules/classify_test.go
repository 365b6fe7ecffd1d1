package modules

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		binding Binding
		aliases []string
		entry   *ImportEntry
		want    []ExportEntry
	}{
		{
			name:    "not exported",
			binding: Binding{LocalName: "x"},
			aliases: []string{"x"},
			want:    nil,
		},
		{
			name:    "not exported import",
			binding: Binding{LocalName: "a", IsImported: true},
			entry:   &ImportEntry{LocalName: "a", ImportName: "a", ModuleRequest: "mod"},
			want:    nil,
		},
		{
			name:    "local",
			binding: Binding{LocalName: "x", IsExported: true},
			aliases: []string{"x"},
			want:    []ExportEntry{LocalExport{ExportName: "x", LocalName: "x"}},
		},
		{
			name:    "namespace import is local",
			binding: Binding{LocalName: "ns", IsExported: true, IsImported: true, IsImportedNamespace: true},
			aliases: []string{"mod"},
			entry:   &ImportEntry{LocalName: "ns", ImportName: "*", ModuleRequest: "mod"},
			want:    []ExportEntry{LocalExport{ExportName: "mod", LocalName: "ns"}},
		},
		{
			name:    "indirect",
			binding: Binding{LocalName: "a", IsExported: true, IsImported: true},
			aliases: []string{"a"},
			entry:   &ImportEntry{LocalName: "a", ImportName: "a", ModuleRequest: "mod"},
			want:    []ExportEntry{IndirectExport{ExportName: "a", ImportName: "a", ModuleRequest: "mod"}},
		},
		{
			name:    "indirect default import under two names",
			binding: Binding{LocalName: "d", IsExported: true, IsImported: true},
			aliases: []string{"first", "second"},
			entry:   &ImportEntry{LocalName: "d", ImportName: "default", ModuleRequest: "./dep.js"},
			want: []ExportEntry{
				IndirectExport{ExportName: "first", ImportName: "default", ModuleRequest: "./dep.js"},
				IndirectExport{ExportName: "second", ImportName: "default", ModuleRequest: "./dep.js"},
			},
		},
		{
			name:    "aliases keep declaration order",
			binding: Binding{LocalName: "x", IsExported: true},
			aliases: []string{"a", "b"},
			want: []ExportEntry{
				LocalExport{ExportName: "a", LocalName: "x"},
				LocalExport{ExportName: "b", LocalName: "x"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.binding, tt.aliases, tt.entry)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Classify() mismatch (-want +got):\n%s", diff)
			}
			again := Classify(tt.binding, tt.aliases, tt.entry)
			if diff := cmp.Diff(got, again); diff != "" {
				t.Errorf("Classify() is not idempotent (-first +second):\n%s", diff)
			}
		})
	}
}

func TestClassifyMissingImportEntryPanics(t *testing.T) {
	defer func() {
		r := recover()
		ie, ok := r.(*InternalError)
		if !ok {
			t.Fatalf("expected *InternalError panic, got %#v", r)
		}
		if ie.Msg != "no import entry for exported import binding 'a'" {
			t.Errorf("unexpected message %q", ie.Msg)
		}
	}()
	Classify(Binding{LocalName: "a", IsExported: true, IsImported: true}, []string{"a"}, nil)
}

func TestExportEntryKinds(t *testing.T) {
	tests := []struct {
		entry ExportEntry
		kind  ExportKind
		name  string
		str   string
	}{
		{LocalExport{"a", "x"}, ExportLocal, "a", "local x as a"},
		{IndirectExport{"b", "y", "m"}, ExportIndirect, "b", `indirect y as b from "m"`},
		{StarExport{"m"}, ExportStar, "", `star from "m"`},
	}
	for _, tt := range tests {
		if tt.entry.Kind() != tt.kind {
			t.Errorf("%v: expected kind %s, got %s", tt.entry, tt.kind, tt.entry.Kind())
		}
		if got := ExportName(tt.entry); got != tt.name {
			t.Errorf("%v: expected export name %q, got %q", tt.entry, tt.name, got)
		}
		if tt.entry.String() != tt.str {
			t.Errorf("expected %q, got %q", tt.str, tt.entry.String())
		}
	}
}
