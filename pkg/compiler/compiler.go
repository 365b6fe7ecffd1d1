package compiler

import (
	stderrors "errors"
	"fmt"
	"strings"
	"sync/atomic"

	"esmod/pkg/errors"
	"esmod/pkg/parser"
	"esmod/pkg/source"
)

// AnonymousFunctionName is the name given to compiled function expressions
// that do not declare one.
const AnonymousFunctionName = "anonymous"

// Function is the compiled form of a function program. It keeps the
// parameter list, the body text and the resolved scope of the body.
type Function struct {
	name    string
	params  []string
	body    string
	source  *source.SourceFile
	symbols *SymbolTable
}

func (f *Function) Name() string               { return f.name }
func (f *Function) Params() []string           { return append([]string(nil), f.params...) }
func (f *Function) Arity() int                 { return len(f.params) }
func (f *Function) Body() string               { return f.body }
func (f *Function) Source() *source.SourceFile { return f.source }
func (f *Function) Symbols() *SymbolTable      { return f.symbols }
func (f *Function) String() string             { return fmt.Sprintf("<function %s>", f.name) }
func (f *Function) Origin() string             { return f.source.URL }

// CompilerStats counts the work done by one Compiler.
type CompilerStats struct {
	FunctionsCompiled int
	BytesCompiled     int
	Failures          int
}

// Compiler turns function programs, such as CommonJS wrappers, into Function
// values. It is safe for concurrent use once its globals are defined.
type Compiler struct {
	globals *SymbolTable

	functions atomic.Int64
	bytes     atomic.Int64
	failures  atomic.Int64
}

// NewCompiler creates a compiler whose functions resolve free names against
// an empty global scope.
func NewCompiler() *Compiler {
	return &Compiler{globals: NewSymbolTable()}
}

// DefineGlobal makes name resolvable from every function compiled later.
func (c *Compiler) DefineGlobal(name string) {
	c.globals.Define(name, SymbolVar)
}

// Stats returns a snapshot of the compiler's counters.
func (c *Compiler) Stats() CompilerStats {
	return CompilerStats{
		FunctionsCompiled: int(c.functions.Load()),
		BytesCompiled:     int(c.bytes.Load()),
		Failures:          int(c.failures.Load()),
	}
}

// CompileFunction parses src as a single parenthesized function expression
// and compiles it. Failures are returned as *errors.CompileError wrapping the
// underlying syntax error.
func (c *Compiler) CompileFunction(src *source.SourceFile) (*Function, error) {
	c.bytes.Add(int64(len(src.Content)))
	lit, err := parser.ParseFunctionProgram(src)
	if err != nil {
		c.failures.Add(1)
		return nil, newCompileError(src, err)
	}

	fn := &Function{
		name:    AnonymousFunctionName,
		params:  lit.Params,
		body:    lit.BodyText,
		source:  src,
		symbols: NewEnclosedSymbolTable(c.globals),
	}
	if lit.Name != nil {
		fn.name = lit.Name.Value
	}

	for _, param := range lit.Params {
		fn.symbols.Define(param, SymbolParam)
	}
	lit.Variables.Range(func(name string, entry *parser.VariableEntry) bool {
		switch {
		case entry.IsFunction():
			fn.symbols.Define(name, SymbolFunction)
		case fn.isParam(name):
			// var redeclaring a parameter keeps the parameter binding
		default:
			fn.symbols.Define(name, SymbolVar)
		}
		return true
	})
	lit.Lexicals.Range(func(name string, entry *parser.VariableEntry) bool {
		switch {
		case entry.IsClass():
			fn.symbols.Define(name, SymbolClass)
		case entry.IsConst():
			fn.symbols.Define(name, SymbolConst)
		default:
			fn.symbols.Define(name, SymbolLet)
		}
		return true
	})

	c.functions.Add(1)
	return fn, nil
}

func (f *Function) isParam(name string) bool {
	for _, p := range f.params {
		if p == name {
			return true
		}
	}
	return false
}

func newCompileError(src *source.SourceFile, err error) *errors.CompileError {
	compileErr := &errors.CompileError{
		Position: errors.Position{Line: 1, Column: 1, Source: src},
		Msg:      err.Error(),
	}
	var sourceErr errors.SourceError
	if stderrors.As(err, &sourceErr) {
		compileErr.Position = sourceErr.Pos()
		compileErr.Msg = strings.TrimSpace(sourceErr.Message())
	}
	return compileErr.CausedBy(err)
}
