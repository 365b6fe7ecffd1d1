package parser

import (
	stderrors "errors"
	"strings"
	"testing"

	"esmod/pkg/errors"
	"esmod/pkg/source"

	"github.com/google/go-cmp/cmp"
)

func parseModule(t *testing.T, input string) *Program {
	t.Helper()
	program, err := ParseModule(source.NewSourceFile("test.mjs", "/test.mjs", input))
	if err != nil {
		t.Fatalf("ParseModule(%q) failed: %v", input, err)
	}
	return program
}

func parseModuleError(t *testing.T, input string) *errors.SyntaxError {
	t.Helper()
	_, err := ParseModule(source.NewSourceFile("test.mjs", "/test.mjs", input))
	if err == nil {
		t.Fatalf("ParseModule(%q) succeeded, expected an error", input)
	}
	var syntaxErr *errors.SyntaxError
	if !stderrors.As(err, &syntaxErr) {
		t.Fatalf("expected *errors.SyntaxError, got %T: %v", err, err)
	}
	return syntaxErr
}

func TestParseImportDeclarations(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		locals   []string
		imports  []string
		source   string
	}{
		{`import "side-effect";`, `import "side-effect";`, nil, nil, "side-effect"},
		{`import d from "m"`, `import d from "m";`, []string{"d"}, []string{"default"}, "m"},
		{`import * as ns from './ns.js';`, `import * as ns from "./ns.js";`, []string{"ns"}, []string{"*"}, "./ns.js"},
		{`import { a, b as c, "str name" as s, default as dd } from "m";`,
			`import { a, b as c, "str name" as s, default as dd } from "m";`,
			[]string{"a", "c", "s", "dd"}, []string{"a", "b", "str name", "default"}, "m"},
		{`import d, { x } from "m";`, `import d, { x } from "m";`, []string{"d", "x"}, []string{"default", "x"}, "m"},
		{`import d, * as ns from "m";`, `import d, * as ns from "m";`, []string{"d", "ns"}, []string{"default", "*"}, "m"},
		{`import from from "m";`, `import from from "m";`, []string{"from"}, []string{"default"}, "m"},
	}

	for _, tt := range tests {
		program := parseModule(t, tt.input)
		if len(program.Statements) != 1 {
			t.Errorf("%s: expected 1 statement, got %d", tt.input, len(program.Statements))
			continue
		}
		decl, ok := program.Statements[0].(*ImportDeclaration)
		if !ok {
			t.Errorf("%s: expected *ImportDeclaration, got %T", tt.input, program.Statements[0])
			continue
		}
		if got := decl.String(); got != tt.expected {
			t.Errorf("%s: String() expected %q, got %q", tt.input, tt.expected, got)
		}
		if decl.Source.Value != tt.source {
			t.Errorf("%s: source expected %q, got %q", tt.input, tt.source, decl.Source.Value)
		}
		var locals, imports []string
		for _, spec := range decl.Specifiers {
			locals = append(locals, spec.LocalName())
			imports = append(imports, spec.ImportName())
		}
		if diff := cmp.Diff(tt.locals, locals); diff != "" {
			t.Errorf("%s: local names mismatch (-want +got):\n%s", tt.input, diff)
		}
		if diff := cmp.Diff(tt.imports, imports); diff != "" {
			t.Errorf("%s: import names mismatch (-want +got):\n%s", tt.input, diff)
		}
	}
}

func TestImportBindingsAreLexical(t *testing.T) {
	program := parseModule(t, `import d, { a } from "m"; import * as ns from "n";`)

	for _, name := range []string{"d", "a", "ns"} {
		entry, ok := program.LexicalVariables.Get(name)
		if !ok {
			t.Errorf("expected %q in lexical variables", name)
			continue
		}
		if !entry.IsImported() {
			t.Errorf("%q: expected imported flag", name)
		}
		if got, want := entry.IsImportedNamespace(), name == "ns"; got != want {
			t.Errorf("%q: IsImportedNamespace expected %v, got %v", name, want, got)
		}
	}
	if program.VarDeclarations.Len() != 0 {
		t.Errorf("expected no var declarations, got %v", program.VarDeclarations.Names())
	}
}

func TestImportAttributes(t *testing.T) {
	program := parseModule(t, `import data from "./data.json" with { type: "json" };
export { x } from "./x.js" assert { "type": "js" };
export * from "./all.js" with {};`)

	imp := program.Statements[0].(*ImportDeclaration)
	if diff := cmp.Diff(map[string]string{"type": "json"}, imp.Attributes); diff != "" {
		t.Errorf("import attributes mismatch (-want +got):\n%s", diff)
	}
	named := program.Statements[1].(*ExportNamedDeclaration)
	if named.Attributes["type"] != "js" {
		t.Errorf("expected assert attributes on re-export, got %v", named.Attributes)
	}
	all := program.Statements[2].(*ExportAllDeclaration)
	if all.Attributes == nil || len(all.Attributes) != 0 {
		t.Errorf("expected empty attribute map, got %v", all.Attributes)
	}
}

func TestParseExportDeclarations(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`export var a = 1, b;`, `export var a, b;`},
		{`export let { x, y: [z, ...rest] } = obj;`, `export let x, z, rest;`},
		{`export const c = () => {}`, `export const c;`},
		{`export function f(a, b = 2, ...c) { return a }`, `export function f(a, b, c) { ... }`},
		{`export async function* g() {}`, `export async function* g() { ... }`},
		{`export class K extends Base { m() {} }`, `export class K { ... }`},
		{`let a; export { a, a as "string name" };`, `export { a, a as "string name" };`},
		{`export { x as default, y } from "./m.js";`, `export { x as default, y } from "./m.js";`},
		{`export * from "m";`, `export * from "m";`},
		{`export * as ns from "m";`, `export * as ns from "m";`},
		{`export default 1 + 2;`, `export default 1 + 2;`},
		{`export default function () {}`, `export default function() { ... }`},
		{`export default class {}`, `export default class { ... }`},
	}

	for _, tt := range tests {
		program := parseModule(t, tt.input)
		last := program.Statements[len(program.Statements)-1]
		if got := last.String(); got != tt.expected {
			t.Errorf("%s: String() expected %q, got %q", tt.input, tt.expected, got)
		}
	}
}

func TestExportedBindings(t *testing.T) {
	input := `
export { a as first };
var a = 1;
export { a as second, b };
function b() {}
export default a;
export { c as d } from "m";
export * as ns from "n";
`
	program := parseModule(t, input)
	scope := program.ModuleScope

	if diff := cmp.Diff([]string{"first", "second"}, scope.ExportedBindings("a")); diff != "" {
		t.Errorf("aliases of a mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"b"}, scope.ExportedBindings("b")); diff != "" {
		t.Errorf("aliases of b mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"default"}, scope.ExportedBindings(DefaultBindingName)); diff != "" {
		t.Errorf("aliases of %s mismatch (-want +got):\n%s", DefaultBindingName, diff)
	}
	if got := scope.ExportedBindings("c"); len(got) != 0 {
		t.Errorf("re-exported names must not be local bindings, got %v", got)
	}
	for _, name := range []string{"first", "second", "b", "default", "d", "ns"} {
		if !scope.HasExportName(name) {
			t.Errorf("expected export name %q to be reserved", name)
		}
	}

	entry, _ := program.VarDeclarations.Get("a")
	if !entry.IsVar() || !entry.IsExported() {
		t.Errorf("a: expected exported var, got flags %08b", entry.Flags)
	}
	entry, _ = program.VarDeclarations.Get("b")
	if !entry.IsFunction() || !entry.IsExported() {
		t.Errorf("b: expected exported function, got flags %08b", entry.Flags)
	}
	entry, _ = program.LexicalVariables.Get(DefaultBindingName)
	if entry == nil || !entry.IsConst() || !entry.IsExported() {
		t.Errorf("expected exported lexical %s", DefaultBindingName)
	}
}

func TestDefaultExportBindings(t *testing.T) {
	tests := []struct {
		input     string
		local     string
		lexical   bool
		localName string
	}{
		{`export default function named() {}`, "named", false, "named"},
		{`export default function () {}`, DefaultBindingName, false, DefaultBindingName},
		{`export default async function () {}`, DefaultBindingName, false, DefaultBindingName},
		{`export default class Named {}`, "Named", true, "Named"},
		{`export default class {}`, DefaultBindingName, true, DefaultBindingName},
		{`export default { a: 1 };`, DefaultBindingName, true, DefaultBindingName},
	}

	for _, tt := range tests {
		program := parseModule(t, tt.input)
		decl := program.Statements[0].(*ExportDefaultDeclaration)
		if decl.LocalName != tt.localName {
			t.Errorf("%s: LocalName expected %q, got %q", tt.input, tt.localName, decl.LocalName)
		}
		env := program.VarDeclarations
		if tt.lexical {
			env = program.LexicalVariables
		}
		if !env.Contains(tt.local) {
			t.Errorf("%s: expected %q declared (lexical=%v)", tt.input, tt.local, tt.lexical)
		}
		if diff := cmp.Diff([]string{"default"}, program.ModuleScope.ExportedBindings(tt.local)); diff != "" {
			t.Errorf("%s: aliases mismatch (-want +got):\n%s", tt.input, diff)
		}
	}
}

func TestDeclarationEnvironments(t *testing.T) {
	input := `
var v1, { v2, k: v3 } = o, [v4, , v5 = 1] = arr;
let l1 = 1;
const c1 = 2;
function f1() {}
async function f2() {}
class K1 {}
if (cond) { let hidden = 1 }
`
	program := parseModule(t, input)

	if diff := cmp.Diff([]string{"v1", "v2", "v3", "v4", "v5", "f1", "f2"}, program.VarDeclarations.Names()); diff != "" {
		t.Errorf("var declarations mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"l1", "c1", "K1"}, program.LexicalVariables.Names()); diff != "" {
		t.Errorf("lexical declarations mismatch (-want +got):\n%s", diff)
	}
}

func TestOpaqueStatements(t *testing.T) {
	input := `console.log("a")
x = y
let z = 1
if (a) { b() } else { c() }
for (let i = 0; i < 3; i++) { use(i) }
const w = {a: [1, 2, {b: 3}]}
import("./lazy.js").then(m => m)
obj.import = obj.export
tag` + "`t ${ {a} }`" + `
export { z, w }`

	program := parseModule(t, input)

	var kinds []string
	for _, stmt := range program.Statements {
		switch s := stmt.(type) {
		case *OpaqueStatement:
			kinds = append(kinds, "opaque:"+s.Text)
		case *VariableDeclaration:
			kinds = append(kinds, "decl:"+s.String())
		case *ExportNamedDeclaration:
			kinds = append(kinds, "export")
		default:
			kinds = append(kinds, "other")
		}
	}
	expected := []string{
		`opaque:console.log("a")`,
		`opaque:x = y`,
		`decl:let z;`,
		`opaque:if (a) { b() } else { c() }`,
		`opaque:for (let i = 0; i < 3; i++) { use(i) }`,
		`decl:const w;`,
		`opaque:import("./lazy.js").then(m => m)`,
		`opaque:obj.import = obj.export`,
		"opaque:tag`t ${ {a} }`",
		`export`,
	}
	if diff := cmp.Diff(expected, kinds); diff != "" {
		t.Errorf("statements mismatch (-want +got):\n%s", diff)
	}
	if program.LexicalVariables.Contains("i") {
		t.Errorf("loop variable must not be a top-level binding")
	}
}

func TestDeclarationAfterBlockOnSameLine(t *testing.T) {
	program := parseModule(t, `if (a) { b() } let x = 1; export { x };`)
	if !program.LexicalVariables.Contains("x") {
		t.Fatalf("expected x to be declared")
	}
}

func TestRegexAfterDeclarationBody(t *testing.T) {
	tests := []struct {
		input    string
		exported string
	}{
		{"export function f() {}\n/\\(/.test('(')", "f"},
		{"export class C {}\n/\\(/.test('(')", "C"},
		{"export default function () {}\n/=/.test('=')", "default"},
		{"export async function g() {} /}/g.exec(s); export { g as h }", "h"},
		{"function f() {}\n/a/.test(s); export { f }", "f"},
	}

	for _, tt := range tests {
		program := parseModule(t, tt.input)
		if !program.ModuleScope.HasExportName(tt.exported) {
			t.Errorf("%q: expected export name %q", tt.input, tt.exported)
		}
		if len(program.Statements) < 2 {
			t.Errorf("%q: expected the regex statement to follow the declaration, got %d statements", tt.input, len(program.Statements))
		}
	}

	// Division is still division after an expression's closing brace.
	parseModule(t, "let o = {} / 2; export { o };")
}

func TestSyntaxErrors(t *testing.T) {
	tests := []struct {
		input   string
		message string
		line    int
		column  int
	}{
		{`export { missing };`, "exported binding 'missing' needs to refer to a top-level declared variable", 1, 10},
		{"let a;\nexport { a, a };", "cannot export a duplicate name 'a'", 2, 13},
		{`export default 1; export default 2;`, "cannot export a duplicate name 'default'", 1, 26},
		{`export * as x from "m"; let x; export { x };`, "cannot export a duplicate name 'x'", 1, 41},
		{`let a; let a;`, "identifier 'a' has already been declared", 1, 12},
		{`let a; var a;`, "identifier 'a' has already been declared", 1, 12},
		{`import a from "m"; function a() {}`, "identifier 'a' has already been declared", 1, 29},
		{`function f() {} function f() {}`, "identifier 'f' has already been declared", 1, 26},
		{`if (x) { export const a = 1 }`, "export declarations may only appear at top level of a module", 1, 10},
		{`{ import a from "m" }`, "import declarations may only appear at top level of a module", 1, 3},
		{`import { a b } from "m";`, "unexpected token 'b'", 1, 12},
		{`import * from "m";`, "expected 'as' after '*' in import declaration", 1, 10},
		{`import a "m";`, "expected 'from'", 1, 10},
		{`import { "str" } from "m";`, "string-named imports must use 'as' to provide a local name", 1, 10},
		{`export { "str" };`, "'str' is not a valid local binding to export; use a from clause", 1, 10},
		{`export const a;`, "missing initializer in const declaration", 1, 14},
		{`export default;`, "expected expression after 'export default'", 1, 15},
		{`let x = (1;`, "unexpected end of input", 1, 12},
		{`let s = "open`, "unterminated string literal", 1, 9},
		{`function () {}`, "function name expected", 1, 10},
		{`}`, "unexpected token '}'", 1, 1},
		{`export let a = 1 let b = 2`, "unexpected token 'let'", 1, 18},
	}

	for _, tt := range tests {
		err := parseModuleError(t, tt.input)
		if !strings.Contains(err.Message(), tt.message) {
			t.Errorf("%s: expected message containing %q, got %q", tt.input, tt.message, err.Message())
		}
		if err.Line != tt.line || err.Column != tt.column {
			t.Errorf("%s: expected error at %d:%d, got %d:%d", tt.input, tt.line, tt.column, err.Line, err.Column)
		}
		if err.Source == nil || err.Source.Name != "test.mjs" {
			t.Errorf("%s: expected error to carry its source file", tt.input)
		}
	}
}

func TestScriptModeRejectsModuleSyntax(t *testing.T) {
	for _, input := range []string{`import a from "m";`, `export var a;`} {
		_, err := ParseScript(source.NewScriptSource("script.js", "script.js", input))
		if err == nil {
			t.Errorf("%s: expected script parse to fail", input)
		}
	}

	program, err := ParseScript(source.NewScriptSource("script.js", "script.js", `var a = import("m"); function a() {} var a;`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"a"}, program.VarDeclarations.Names()); diff != "" {
		t.Errorf("var declarations mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFunctionProgram(t *testing.T) {
	input := "(function (exports, require, module, __filename, __dirname) {\nvar a = require('a')\nlet b = 2\nreturn module.exports\n})"
	fn, err := ParseFunctionProgram(source.NewSyntheticSource(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fn.Name != nil {
		t.Errorf("expected anonymous function, got %s", fn.Name.Value)
	}
	if diff := cmp.Diff([]string{"exports", "require", "module", "__filename", "__dirname"}, fn.Params); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
	if !fn.Variables.Contains("a") || !fn.Lexicals.Contains("b") {
		t.Errorf("expected body declarations a (var) and b (let)")
	}
	if fn.BodyText != "\nvar a = require('a')\nlet b = 2\nreturn module.exports\n" {
		t.Errorf("unexpected body text %q", fn.BodyText)
	}
	if len(fn.Body) != 3 {
		t.Errorf("expected 3 body statements, got %d", len(fn.Body))
	}
}

func TestParseFunctionProgramErrors(t *testing.T) {
	tests := []struct {
		input   string
		message string
	}{
		{"(function (module) { let module = 1 })", "identifier 'module' has already been declared"},
		{"(function () { export default 1 })", "export declarations may only appear at top level of a module"},
		{"(function () { })()", "unexpected token '('"},
		{"function () {}", "expected '('"},
		{"(function () { ", "unexpected end of input"},
	}

	for _, tt := range tests {
		_, err := ParseFunctionProgram(source.NewSyntheticSource(tt.input))
		if err == nil {
			t.Errorf("%s: expected error", tt.input)
			continue
		}
		if !strings.Contains(err.Error(), tt.message) {
			t.Errorf("%s: expected error containing %q, got %q", tt.input, tt.message, err.Error())
		}
	}
}
