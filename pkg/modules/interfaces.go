package modules

import (
	"io/fs"

	"esmod/pkg/parser"
	"esmod/pkg/source"
)

// ModuleFS is the file system view module sources are read from.
type ModuleFS interface {
	fs.FS
	fs.ReadFileFS // Required for reading module content
}

// ModuleResolver resolves module specifiers to module sources
type ModuleResolver interface {
	// Name returns a human-readable name for this resolver
	Name() string

	// CanResolve returns true if this resolver can handle the given specifier
	CanResolve(specifier string) bool

	// Resolve attempts to resolve a module specifier to a concrete module.
	// fromKey is the key of the requesting module (for relative resolution)
	Resolve(specifier string, fromKey string) (*ResolvedModule, error)

	// Priority returns the priority of this resolver (lower = higher priority)
	Priority() int
}

// ModuleParser parses module code, running declaration analysis.
type ModuleParser interface {
	ParseModule(src *source.SourceFile) (*parser.Program, error)
}

// ModuleParserFunc adapts a function to ModuleParser.
type ModuleParserFunc func(src *source.SourceFile) (*parser.Program, error)

func (f ModuleParserFunc) ParseModule(src *source.SourceFile) (*parser.Program, error) {
	return f(src)
}

// FunctionCompiler compiles a source consisting of one parenthesized
// function expression.
type FunctionCompiler interface {
	CompileFunction(src *source.SourceFile) (Callable, error)
}

// Callable is a compiled function artifact. It is never invoked by this
// package.
type Callable interface {
	Name() string
	Params() []string
	Source() *source.SourceFile
	String() string
}

// Sink receives structured diagnostics. Implementations shared between
// analyzers must be safe for concurrent use.
type Sink interface {
	Report(d Diagnostic)
}
