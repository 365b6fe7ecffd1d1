package modules_test

import (
	stderrors "errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"esmod/pkg/compiler"
	"esmod/pkg/errors"
	"esmod/pkg/modules"
	"esmod/pkg/modules/mocks"
	"esmod/pkg/parser"
	"esmod/pkg/source"
)

const fullModule = `import d, { a as b } from "./dep.js";
import * as ns from "./ns.js";
import "./side.js";
export { x as y, z } from "./re.js";
export * from "./all.js";
export * as bundle from "./bundle.js";
export { b as renamed, ns, d };
export var v = 1;
export function f() {}
export let l;
export class C {}
export default 42;
`

func parse(t *testing.T, key, content string) (*source.SourceFile, *parser.Program) {
	t.Helper()
	src := source.NewSourceFile(key, key, content)
	prog, err := parser.ParseModule(src)
	require.NoError(t, err)
	return src, prog
}

func isSynthetic(src *source.SourceFile) bool {
	return src.Content == modules.SyntheticDefaultExportSource
}

func TestAnalyzeModule(t *testing.T) {
	rec, err := modules.NewAnalyzer().AnalyzeSource("/app/main.js", source.NewSourceFile("main.js", "/app/main.js", fullModule))
	require.NoError(t, err)

	if rec.Key() != "/app/main.js" || rec.SourceURL() != "/app/main.js" {
		t.Errorf("unexpected key %q / url %q", rec.Key(), rec.SourceURL())
	}

	wantRequested := []string{"./dep.js", "./ns.js", "./side.js", "./re.js", "./all.js", "./bundle.js"}
	if diff := cmp.Diff(wantRequested, rec.RequestedModules()); diff != "" {
		t.Errorf("requested modules mismatch (-want +got):\n%s", diff)
	}

	wantImports := []modules.ImportEntry{
		{LocalName: "d", ImportName: "default", ModuleRequest: "./dep.js"},
		{LocalName: "b", ImportName: "a", ModuleRequest: "./dep.js"},
		{LocalName: "ns", ImportName: "*", ModuleRequest: "./ns.js"},
	}
	if diff := cmp.Diff(wantImports, rec.ImportEntries()); diff != "" {
		t.Errorf("import entries mismatch (-want +got):\n%s", diff)
	}

	wantExports := []modules.ExportEntry{
		modules.IndirectExport{ExportName: "y", ImportName: "x", ModuleRequest: "./re.js"},
		modules.IndirectExport{ExportName: "z", ImportName: "z", ModuleRequest: "./re.js"},
		modules.StarExport{ModuleRequest: "./all.js"},
		modules.IndirectExport{ExportName: "bundle", ImportName: "*", ModuleRequest: "./bundle.js"},
		modules.LocalExport{ExportName: "v", LocalName: "v"},
		modules.LocalExport{ExportName: "f", LocalName: "f"},
		modules.IndirectExport{ExportName: "d", ImportName: "default", ModuleRequest: "./dep.js"},
		modules.IndirectExport{ExportName: "renamed", ImportName: "a", ModuleRequest: "./dep.js"},
		modules.LocalExport{ExportName: "ns", LocalName: "ns"},
		modules.LocalExport{ExportName: "l", LocalName: "l"},
		modules.LocalExport{ExportName: "C", LocalName: "C"},
		modules.LocalExport{ExportName: "default", LocalName: parser.DefaultBindingName},
	}
	if diff := cmp.Diff(wantExports, rec.ExportEntries()); diff != "" {
		t.Errorf("export entries mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"./all.js"}, rec.StarExportEntries()); diff != "" {
		t.Errorf("star export entries mismatch (-want +got):\n%s", diff)
	}
	if rec.CommonJSFunction() != nil {
		t.Errorf("expected no CommonJS function for a module with exports")
	}
	if err := rec.Validate(); err != nil {
		t.Errorf("Validate() failed: %v", err)
	}

	ns, ok := rec.Binding("ns")
	if !ok || !ns.IsExported || !ns.IsImported || !ns.IsImportedNamespace {
		t.Errorf("unexpected ns binding %+v (found %v)", ns, ok)
	}
}

func TestAnalyzeIsRepeatable(t *testing.T) {
	_, prog := parse(t, "/m.js", fullModule)
	analyzer := modules.NewAnalyzer()

	first, err := analyzer.Analyze("/m.js", prog)
	require.NoError(t, err)
	second, err := analyzer.Analyze("/m.js", prog)
	require.NoError(t, err)

	if first == second {
		t.Errorf("expected a fresh record per analysis")
	}
	if diff := cmp.Diff(first.ExportEntries(), second.ExportEntries()); diff != "" {
		t.Errorf("export entries differ between runs (-first +second):\n%s", diff)
	}
}

func TestSynthesisPrecondition(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		synthesize bool
		wrapper    bool
	}{
		{"empty module", "", true, true},
		{"script body", "var x = 1;\nconsole.log(x)\n", true, true},
		{"empty export clause", "export {}", true, false},
		{"bare import", `import "x";`, false, false},
		{"star export", `export * from "x";`, false, false},
		{"local export", `export const a = 1;`, false, false},
		{"re-export", `export { a } from "x";`, false, false},
		{"default export", `export default function () {}`, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsedSynthetic := false
			moduleParser := modules.ModuleParserFunc(func(src *source.SourceFile) (*parser.Program, error) {
				if isSynthetic(src) {
					parsedSynthetic = true
				}
				return parser.ParseModule(src)
			})

			rec, err := modules.NewAnalyzer(modules.WithParser(moduleParser)).
				AnalyzeSource("/m.js", source.NewSourceFile("m.js", "/m.js", tt.input))
			require.NoError(t, err)

			if parsedSynthetic != tt.synthesize {
				t.Fatalf("expected synthesis %v, got %v", tt.synthesize, parsedSynthetic)
			}
			if got := rec.CommonJSFunction() != nil; got != tt.wrapper {
				t.Errorf("expected CommonJS function %v, got %v", tt.wrapper, got)
			}
			if !tt.synthesize {
				return
			}
			want := []modules.ExportEntry{modules.LocalExport{ExportName: "default", LocalName: parser.DefaultBindingName}}
			if diff := cmp.Diff(want, rec.ExportEntries()); diff != "" {
				t.Errorf("export entries mismatch (-want +got):\n%s", diff)
			}
			if len(rec.RequestedModules()) != 0 || len(rec.StarExportEntries()) != 0 || len(rec.ImportEntries()) != 0 {
				t.Errorf("expected no requests, stars or imports after synthesis")
			}
			if err := rec.Validate(); err != nil {
				t.Errorf("Validate() failed: %v", err)
			}
		})
	}
}

func TestSynthesizedCommonJSFunction(t *testing.T) {
	content := "var dep = require('./dep')\nmodule.exports = dep\n"
	src := source.NewScriptSource("lib.js", "file:///srv/lib.js", content)
	sink := modules.NewCollectingSink()

	rec, err := modules.NewAnalyzer(modules.WithSink(sink)).AnalyzeSource("/srv/lib.js", src)
	require.NoError(t, err)

	if rec.Source() != src {
		t.Errorf("expected the synthesized record to keep the original source")
	}
	fn := rec.CommonJSFunction()
	require.NotNil(t, fn)

	if fn.Name() != compiler.AnonymousFunctionName {
		t.Errorf("expected function name %q, got %q", compiler.AnonymousFunctionName, fn.Name())
	}
	if diff := cmp.Diff([]string{"exports", "require", "module", "__filename", "__dirname"}, fn.Params()); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
	if fn.Source().URL != "file:///srv/lib.js" {
		t.Errorf("expected wrapper origin file:///srv/lib.js, got %q", fn.Source().URL)
	}
	if want := modules.CommonJSFunctionPrologue + content + modules.CommonJSFunctionEpilogue; fn.Source().Content != want {
		t.Errorf("unexpected wrapper source %q", fn.Source().Content)
	}
	if prop, ok := rec.Property(modules.CommonJSModuleFunction); !ok || prop != fn {
		t.Errorf("expected the function under %s", modules.CommonJSModuleFunction)
	}
	if len(sink.Diagnostics()) != 0 {
		t.Errorf("expected no diagnostics, got %v", sink.Diagnostics())
	}
}

func TestSyntheticParseFailure(t *testing.T) {
	src, prog := parse(t, "/m.js", "let a = 1")
	failure := stderrors.New("synthetic parse failed")

	moduleParser := mocks.NewModuleParser(t)
	moduleParser.
		On("ParseModule", mock.MatchedBy(isSynthetic)).
		Once().
		Return(nil, failure)
	capturer := mocks.NewDiagnosticsCapturer(t)

	analyzer := modules.NewAnalyzer(modules.WithParser(moduleParser), modules.WithSink(capturer.Sink))
	rec, err := analyzer.Analyze("/m.js", prog)
	require.NoError(t, err)
	require.NotNil(t, rec)

	if len(rec.ExportEntries()) != 0 {
		t.Errorf("expected the record to stay as built, got %v", rec.ExportEntries())
	}
	if _, ok := rec.Binding("a"); !ok {
		t.Errorf("expected the original bindings to be kept")
	}
	if rec.CommonJSFunction() == nil {
		t.Errorf("expected the CommonJS wrapper to be attached despite the parse failure")
	}

	require.Len(t, capturer.Got, 1)
	d := capturer.Got[0]
	if d.Kind != modules.DiagnosticDefaultExportParse || d.Severity != modules.SeverityError {
		t.Errorf("unexpected diagnostic %v", d)
	}
	if d.ModuleKey != "/m.js" || d.Snippet != modules.SyntheticDefaultExportSource || !stderrors.Is(d.Err, failure) {
		t.Errorf("unexpected diagnostic payload %+v", d)
	}
	if rec.Source() != src {
		t.Errorf("expected the original source")
	}
}

func TestCommonJSCompileFailure(t *testing.T) {
	_, prog := parse(t, "/m.js", "var a = 1")
	failure := stderrors.New("compile failed")

	functionCompiler := mocks.NewFunctionCompiler(t)
	functionCompiler.
		On("CompileFunction", mock.Anything).
		Once().
		Return(nil, failure)
	capturer := mocks.NewDiagnosticsCapturer(t)

	analyzer := modules.NewAnalyzer(modules.WithCompiler(functionCompiler), modules.WithSink(capturer.Sink))
	rec, err := analyzer.Analyze("/m.js", prog)
	require.NoError(t, err)

	want := []modules.ExportEntry{modules.LocalExport{ExportName: "default", LocalName: parser.DefaultBindingName}}
	if diff := cmp.Diff(want, rec.ExportEntries()); diff != "" {
		t.Errorf("export entries mismatch (-want +got):\n%s", diff)
	}
	if _, ok := rec.Property(modules.CommonJSModuleFunction); ok {
		t.Errorf("expected no CommonJS function after a compile failure")
	}

	require.Len(t, capturer.Got, 1)
	d := capturer.Got[0]
	if d.Kind != modules.DiagnosticCommonJSCompile || !stderrors.Is(d.Err, failure) {
		t.Errorf("unexpected diagnostic %v", d)
	}
	if want := modules.CommonJSFunctionPrologue + "var a = 1" + modules.CommonJSFunctionEpilogue; d.Snippet != want {
		t.Errorf("expected the wrapped source as snippet, got %q", d.Snippet)
	}
}

func TestCommonJSCompileRejectsModuleSyntaxInBody(t *testing.T) {
	// Valid module code that is not a valid function body.
	sink := modules.NewCollectingSink()
	rec, err := modules.NewAnalyzer(modules.WithSink(sink)).
		AnalyzeSource("/m.js", source.NewSourceFile("m.js", "/m.js", "export {}\n"))
	require.NoError(t, err)

	if rec.CommonJSFunction() != nil {
		t.Errorf("expected no CommonJS function")
	}
	diags := sink.Diagnostics()
	require.Len(t, diags, 1)
	var compileErr *errors.CompileError
	if diags[0].Kind != modules.DiagnosticCommonJSCompile || !stderrors.As(diags[0].Err, &compileErr) {
		t.Fatalf("expected a CommonJS compile diagnostic with a *errors.CompileError, got %v", diags[0])
	}
	if compileErr.Message() != "export declarations may only appear at top level of a module" || compileErr.Line != 2 {
		t.Errorf("unexpected compile error %v", compileErr)
	}
}

func TestBothSynthesisStepsFail(t *testing.T) {
	_, prog := parse(t, "/m.js", "")

	moduleParser := mocks.NewModuleParser(t)
	moduleParser.On("ParseModule", mock.Anything).Return(nil, stderrors.New("parse"))
	functionCompiler := mocks.NewFunctionCompiler(t)
	functionCompiler.On("CompileFunction", mock.Anything).Return(nil, stderrors.New("compile"))
	capturer := mocks.NewDiagnosticsCapturer(t)

	rec, err := modules.NewAnalyzer(
		modules.WithParser(moduleParser),
		modules.WithCompiler(functionCompiler),
		modules.WithSink(capturer.Sink),
	).Analyze("/m.js", prog)
	require.NoError(t, err)

	if len(rec.ExportEntries()) != 0 || len(rec.PropertyNames()) != 0 {
		t.Errorf("expected the original empty record, got %s", rec.DumpString())
	}
	var kinds []modules.DiagnosticKind
	for _, d := range capturer.Got {
		kinds = append(kinds, d.Kind)
	}
	if diff := cmp.Diff([]modules.DiagnosticKind{modules.DiagnosticDefaultExportParse, modules.DiagnosticCommonJSCompile}, kinds); diff != "" {
		t.Errorf("diagnostic kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestWrapperCompiledWithOriginalURL(t *testing.T) {
	src := source.NewScriptSource("w.js", "https://example.com/w.js", "exports.a = 1")
	prog, err := parser.ParseModule(src)
	require.NoError(t, err)

	compiled, err := compiler.NewCompiler().CompileFunction(modules.WrapCommonJS(src))
	require.NoError(t, err)

	functionCompiler := mocks.NewFunctionCompiler(t)
	functionCompiler.
		On("CompileFunction", mock.MatchedBy(func(wrapped *source.SourceFile) bool {
			return wrapped.URL == src.URL && wrapped.Content == modules.CommonJSFunctionPrologue+src.Content+modules.CommonJSFunctionEpilogue
		})).
		Once().
		Return(compiled, nil)

	rec, err := modules.NewAnalyzer(modules.WithCompiler(functionCompiler)).Analyze("w", prog)
	require.NoError(t, err)
	if rec.CommonJSFunction() != compiled {
		t.Errorf("expected the compiled wrapper to be attached")
	}
}

func TestDumpModuleRecord(t *testing.T) {
	for _, dump := range []bool{false, true} {
		sink := modules.NewCollectingSink()
		config := modules.DefaultAnalyzerConfig()
		config.DumpModuleRecord = dump

		rec, err := modules.NewAnalyzer(modules.WithSink(sink), modules.WithConfig(config)).
			AnalyzeSource("/m.js", source.NewSourceFile("m.js", "/m.js", `export { a } from "./a.js"`))
		require.NoError(t, err)

		diags := sink.Diagnostics()
		if !dump {
			if len(diags) != 0 {
				t.Errorf("expected no diagnostics without dump-module-record, got %v", diags)
			}
			continue
		}
		require.Len(t, diags, 1)
		if diags[0].Kind != modules.DiagnosticRecordDump || diags[0].Severity != modules.SeverityInfo {
			t.Errorf("unexpected diagnostic %v", diags[0])
		}
		if diags[0].Message != rec.DumpString() {
			t.Errorf("expected the dump as message, got %q", diags[0].Message)
		}
	}
}

func TestAnalyzeErrors(t *testing.T) {
	analyzer := modules.NewAnalyzer()

	rec, err := analyzer.Analyze("/m.js", nil)
	if rec != nil || !stderrors.Is(err, modules.ErrNoProgram) {
		t.Errorf("expected ErrNoProgram, got %v, %v", rec, err)
	}

	rec, err = analyzer.AnalyzeSource("/bad.js", source.NewSourceFile("bad.js", "/bad.js", "export { missing }"))
	if rec != nil || err == nil {
		t.Fatalf("expected a parse error, got %v, %v", rec, err)
	}
	var syntaxErr *errors.SyntaxError
	if !stderrors.As(err, &syntaxErr) {
		t.Fatalf("expected a *errors.SyntaxError, got %T", err)
	}
	if syntaxErr.Message() != "exported binding 'missing' needs to refer to a top-level declared variable" {
		t.Errorf("unexpected message %q", syntaxErr.Message())
	}
}

func TestMissingImportEntryPanics(t *testing.T) {
	lexicals := parser.NewVariableEnvironment()
	lexicals.Add("a").Flags |= parser.ImportedFlag | parser.ExportedFlag | parser.ConstFlag
	scope := parser.NewModuleScopeData()
	scope.ExportBinding("a", "a")
	prog := &parser.Program{
		VarDeclarations:  parser.NewVariableEnvironment(),
		LexicalVariables: lexicals,
		ModuleScope:      scope,
	}

	defer func() {
		ie, ok := recover().(*modules.InternalError)
		if !ok {
			t.Fatalf("expected an *modules.InternalError panic")
		}
		if ie.ModuleKey != "/broken.js" {
			t.Errorf("expected the module key on the internal error, got %q", ie.ModuleKey)
		}
	}()
	_, _ = modules.NewAnalyzer().Analyze("/broken.js", prog)
	t.Fatal("expected a panic")
}
