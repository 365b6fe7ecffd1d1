package parser

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"esmod/pkg/lexer"
	"esmod/pkg/source"
)

// --- Interfaces ---

// Node is the base interface for all AST nodes.
type Node interface {
	TokenLiteral() string // Returns the literal value of the token associated with the node
	String() string       // Returns a string representation of the node (for debugging)
}

// Statement represents a top-level statement node in the AST.
type Statement interface {
	Node
	statementNode()
}

// ImportSpecifier is one binding introduced by an import declaration.
type ImportSpecifier interface {
	Node
	importSpecifierNode()
	LocalName() string  // Binding created in this module
	ImportName() string // Name requested from the other module ("default", "*" or a named export)
}

// --- Program Node ---

// Program is the root node of the AST together with the results of
// declaration analysis.
type Program struct {
	Statements []Statement
	Source     *source.SourceFile

	// VarDeclarations holds var and function declarations, LexicalVariables
	// holds let/const/class declarations and import bindings. Both keep
	// declaration order.
	VarDeclarations  *VariableEnvironment
	LexicalVariables *VariableEnvironment

	// ModuleScope maps local names to the names they are exported under.
	ModuleScope *ModuleScopeData
}

func (p *Program) TokenLiteral() string {
	if len(p.Statements) > 0 {
		return p.Statements[0].TokenLiteral()
	}
	return ""
}

func (p *Program) String() string {
	var out bytes.Buffer
	for i, s := range p.Statements {
		if i > 0 {
			out.WriteString("\n")
		}
		out.WriteString(s.String())
	}
	return out.String()
}

// --- Leaves ---

// Identifier is a binding or reference name.
type Identifier struct {
	Token lexer.Token
	Value string
}

func (i *Identifier) TokenLiteral() string { return i.Token.Literal }
func (i *Identifier) String() string       { return i.Value }

// StringLiteral is a quoted string, used for module requests and string
// export names.
type StringLiteral struct {
	Token lexer.Token
	Value string // Decoded value
}

func (s *StringLiteral) TokenLiteral() string { return s.Token.Literal }
func (s *StringLiteral) String() string       { return strconv.Quote(s.Value) }

// ModuleExportName is an export or import name, written either as an
// IdentifierName or as a string literal.
type ModuleExportName struct {
	Token    lexer.Token
	Value    string
	IsString bool
}

func (m *ModuleExportName) TokenLiteral() string { return m.Token.Literal }
func (m *ModuleExportName) String() string {
	if m.IsString {
		return strconv.Quote(m.Value)
	}
	return m.Value
}

// --- Import declarations ---

// ImportDeclaration represents all import forms:
// import "m"; import d from "m"; import * as ns from "m";
// import { a, b as c } from "m"; import d, { a } from "m"
type ImportDeclaration struct {
	Token      lexer.Token // The 'import' token
	Specifiers []ImportSpecifier
	Source     *StringLiteral
	Attributes map[string]string // with { type: "json" }
}

func (d *ImportDeclaration) statementNode()       {}
func (d *ImportDeclaration) TokenLiteral() string { return d.Token.Literal }
func (d *ImportDeclaration) String() string {
	if len(d.Specifiers) == 0 {
		return fmt.Sprintf("import %s;", d.Source)
	}
	var parts []string
	var named []string
	for _, spec := range d.Specifiers {
		if n, ok := spec.(*ImportNamedSpecifier); ok {
			named = append(named, n.String())
			continue
		}
		parts = append(parts, spec.String())
	}
	if len(named) > 0 {
		parts = append(parts, "{ "+strings.Join(named, ", ")+" }")
	}
	return fmt.Sprintf("import %s from %s;", strings.Join(parts, ", "), d.Source)
}

// ImportDefaultSpecifier: import d from "m"
type ImportDefaultSpecifier struct {
	Token lexer.Token
	Local *Identifier
}

func (s *ImportDefaultSpecifier) importSpecifierNode() {}
func (s *ImportDefaultSpecifier) TokenLiteral() string { return s.Token.Literal }
func (s *ImportDefaultSpecifier) String() string       { return s.Local.Value }
func (s *ImportDefaultSpecifier) LocalName() string    { return s.Local.Value }
func (s *ImportDefaultSpecifier) ImportName() string   { return "default" }

// ImportNamespaceSpecifier: import * as ns from "m"
type ImportNamespaceSpecifier struct {
	Token lexer.Token
	Local *Identifier
}

func (s *ImportNamespaceSpecifier) importSpecifierNode() {}
func (s *ImportNamespaceSpecifier) TokenLiteral() string { return s.Token.Literal }
func (s *ImportNamespaceSpecifier) String() string       { return "* as " + s.Local.Value }
func (s *ImportNamespaceSpecifier) LocalName() string    { return s.Local.Value }
func (s *ImportNamespaceSpecifier) ImportName() string   { return "*" }

// ImportNamedSpecifier: import { a as b } from "m"
type ImportNamedSpecifier struct {
	Token    lexer.Token
	Imported *ModuleExportName
	Local    *Identifier
}

func (s *ImportNamedSpecifier) importSpecifierNode() {}
func (s *ImportNamedSpecifier) TokenLiteral() string { return s.Token.Literal }
func (s *ImportNamedSpecifier) String() string {
	if s.Imported.IsString || s.Imported.Value != s.Local.Value {
		return s.Imported.String() + " as " + s.Local.Value
	}
	return s.Local.Value
}
func (s *ImportNamedSpecifier) LocalName() string  { return s.Local.Value }
func (s *ImportNamedSpecifier) ImportName() string { return s.Imported.Value }

// --- Export declarations ---

// ExportSpecifier is one entry of an export clause: { local as exported }.
// With a from clause, Local names the export of the other module.
type ExportSpecifier struct {
	Token    lexer.Token
	Local    *ModuleExportName
	Exported *ModuleExportName
}

func (s *ExportSpecifier) String() string {
	if s.Local.Value == s.Exported.Value && s.Local.IsString == s.Exported.IsString {
		return s.Local.String()
	}
	return s.Local.String() + " as " + s.Exported.String()
}

// ExportNamedDeclaration represents:
// export var/let/const/function/class ...;
// export { a, b as c };
// export { a as b } from "m";
type ExportNamedDeclaration struct {
	Token       lexer.Token // The 'export' token
	Declaration Statement   // Set for the declaration form
	Specifiers  []*ExportSpecifier
	Source      *StringLiteral // Set when a from clause is present
	Attributes  map[string]string
}

func (d *ExportNamedDeclaration) statementNode()       {}
func (d *ExportNamedDeclaration) TokenLiteral() string { return d.Token.Literal }
func (d *ExportNamedDeclaration) String() string {
	if d.Declaration != nil {
		return "export " + d.Declaration.String()
	}
	specs := make([]string, len(d.Specifiers))
	for i, s := range d.Specifiers {
		specs[i] = s.String()
	}
	out := "export { " + strings.Join(specs, ", ") + " }"
	if d.Source != nil {
		out += " from " + d.Source.String()
	}
	return out + ";"
}

// ExportDefaultDeclaration represents export default <function|class|expr>.
type ExportDefaultDeclaration struct {
	Token lexer.Token // The 'export' token

	// Declaration is a *FunctionDeclaration or *ClassDeclaration, or nil
	// for the expression form.
	Declaration Statement

	// LocalName is the binding holding the default export: the declared
	// name, or DefaultBindingName for anonymous forms and expressions.
	LocalName string

	// Expression is the source text of the expression form.
	Expression string
}

func (d *ExportDefaultDeclaration) statementNode()       {}
func (d *ExportDefaultDeclaration) TokenLiteral() string { return d.Token.Literal }
func (d *ExportDefaultDeclaration) String() string {
	if d.Declaration != nil {
		return "export default " + d.Declaration.String()
	}
	return "export default " + d.Expression + ";"
}

// ExportAllDeclaration represents export * from "m" and export * as ns from "m".
type ExportAllDeclaration struct {
	Token      lexer.Token
	Exported   *ModuleExportName // nil for the plain star form
	Source     *StringLiteral
	Attributes map[string]string
}

func (d *ExportAllDeclaration) statementNode()       {}
func (d *ExportAllDeclaration) TokenLiteral() string { return d.Token.Literal }
func (d *ExportAllDeclaration) String() string {
	if d.Exported != nil {
		return fmt.Sprintf("export * as %s from %s;", d.Exported, d.Source)
	}
	return fmt.Sprintf("export * from %s;", d.Source)
}

// --- Declarations ---

// VariableDeclaration is a var, let or const statement. Names lists every
// identifier bound by its declarators, destructuring patterns included.
type VariableDeclaration struct {
	Token lexer.Token // VAR, LET or CONST
	Names []*Identifier
}

func (d *VariableDeclaration) statementNode()       {}
func (d *VariableDeclaration) TokenLiteral() string { return d.Token.Literal }
func (d *VariableDeclaration) String() string {
	names := make([]string, len(d.Names))
	for i, n := range d.Names {
		names[i] = n.Value
	}
	return d.Token.Literal + " " + strings.Join(names, ", ") + ";"
}

// FunctionDeclaration is a (possibly async or generator) function
// declaration. Name is nil only under export default.
type FunctionDeclaration struct {
	Token       lexer.Token
	Name        *Identifier
	IsAsync     bool
	IsGenerator bool
	Params      []string
	BodyStart   int // byte offset of '{'
	BodyEnd     int // byte offset after '}'
}

func (d *FunctionDeclaration) statementNode()       {}
func (d *FunctionDeclaration) TokenLiteral() string { return d.Token.Literal }
func (d *FunctionDeclaration) String() string {
	var out strings.Builder
	if d.IsAsync {
		out.WriteString("async ")
	}
	out.WriteString("function")
	if d.IsGenerator {
		out.WriteString("*")
	}
	if d.Name != nil {
		out.WriteString(" " + d.Name.Value)
	}
	out.WriteString("(" + strings.Join(d.Params, ", ") + ") { ... }")
	return out.String()
}

// ClassDeclaration is a class declaration. Name is nil only under export
// default.
type ClassDeclaration struct {
	Token lexer.Token
	Name  *Identifier
}

func (d *ClassDeclaration) statementNode()       {}
func (d *ClassDeclaration) TokenLiteral() string { return d.Token.Literal }
func (d *ClassDeclaration) String() string {
	if d.Name == nil {
		return "class { ... }"
	}
	return "class " + d.Name.Value + " { ... }"
}

// OpaqueStatement is any statement the module analysis does not need to
// look into. Text is its source text.
type OpaqueStatement struct {
	Token lexer.Token
	Text  string
}

func (s *OpaqueStatement) statementNode()       {}
func (s *OpaqueStatement) TokenLiteral() string { return s.Token.Literal }
func (s *OpaqueStatement) String() string       { return s.Text }

// FunctionLiteral is the result of parsing a standalone function program
// such as a CommonJS wrapper: (function (exports, require) { ... })
type FunctionLiteral struct {
	Token      lexer.Token
	Name       *Identifier
	Params     []string
	Body       []Statement
	BodyText   string
	Variables  *VariableEnvironment // var and function declarations of the body
	Lexicals   *VariableEnvironment // let/const/class declarations of the body
	SourceFile *source.SourceFile
}

func (f *FunctionLiteral) TokenLiteral() string { return f.Token.Literal }
func (f *FunctionLiteral) String() string {
	name := ""
	if f.Name != nil {
		name = " " + f.Name.Value
	}
	return fmt.Sprintf("function%s(%s) { ... }", name, strings.Join(f.Params, ", "))
}
