package modules

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"esmod/pkg/compiler"
	"esmod/pkg/parser"
	"esmod/pkg/source"
)

var (
	ErrNoProgram     = errors.New("modules: no program to analyze")
	ErrInvalidRecord = errors.New("modules: invalid module record")
)

type AnalyzerOption func(*Analyzer) *Analyzer

func WithLogger(logger zerolog.Logger) AnalyzerOption {
	return func(a *Analyzer) *Analyzer {
		a.logger = logger
		return a
	}
}

// WithSink sets where non-fatal analysis diagnostics go.
func WithSink(sink Sink) AnalyzerOption {
	return func(a *Analyzer) *Analyzer {
		a.sink = sink
		return a
	}
}

// WithParser replaces the module parser, used for the input of
// AnalyzeSource and for the synthetic default export.
func WithParser(p ModuleParser) AnalyzerOption {
	return func(a *Analyzer) *Analyzer {
		a.parser = p
		return a
	}
}

// WithCompiler replaces the compiler used for CommonJS wrappers.
func WithCompiler(c FunctionCompiler) AnalyzerOption {
	return func(a *Analyzer) *Analyzer {
		a.compiler = c
		return a
	}
}

func WithConfig(config *AnalyzerConfig) AnalyzerOption {
	return func(a *Analyzer) *Analyzer {
		a.config = config
		return a
	}
}

// Analyzer builds module records. An Analyzer holds no per-module state
// and may be shared by concurrent analyses as long as its parser, compiler
// and sink are safe for concurrent use.
type Analyzer struct {
	logger   zerolog.Logger
	sink     Sink
	parser   ModuleParser
	compiler FunctionCompiler
	config   *AnalyzerConfig
}

func NewAnalyzer(options ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		logger:   zerolog.Nop(),
		sink:     NopSink{},
		parser:   ModuleParserFunc(parser.ParseModule),
		compiler: NewFunctionCompiler(compiler.NewCompiler()),
		config:   DefaultAnalyzerConfig(),
	}
	for _, opt := range options {
		a = opt(a)
	}
	return a
}

// Config returns the analyzer's configuration.
func (a *Analyzer) Config() AnalyzerConfig {
	return *a.config
}

// AnalyzeSource parses src as a module and analyzes it under key.
func (a *Analyzer) AnalyzeSource(key string, src *source.SourceFile) (*Record, error) {
	prog, err := a.parser.ParseModule(src)
	if err != nil {
		return nil, fmt.Errorf("parsing module %s: %w", key, err)
	}
	return a.Analyze(key, prog)
}

// Analyze builds the record of an already parsed module. When the module
// declares no imports and no exports, the returned record instead carries a
// synthesized default export and, if the module source compiles as a
// CommonJS function body, the compiled wrapper as the CommonJSModuleFunction
// property.
//
// The record's key is the canonical (NFC) form of key, the form the
// Registry stores it under.
func (a *Analyzer) Analyze(key string, prog *parser.Program) (*Record, error) {
	if prog == nil {
		return nil, ErrNoProgram
	}
	key = CanonicalKey(key)

	a.logger.Debug().Str("module", key).Int("statements", len(prog.Statements)).Msg("analyzing module")
	rec := a.analyze(key, prog, false)
	a.logger.Debug().
		Str("module", key).
		Int("requested", len(rec.requestedModules)).
		Int("imports", len(rec.importEntries)).
		Int("exports", len(rec.exportEntries)).
		Int("stars", len(rec.starExportEntries)).
		Msg("analyzed module")

	if a.config.DumpModuleRecord {
		a.sink.Report(Diagnostic{
			Kind:      DiagnosticRecordDump,
			Severity:  SeverityInfo,
			ModuleKey: key,
			Message:   rec.DumpString(),
		})
	}
	return rec, nil
}

func (a *Analyzer) analyze(key string, prog *parser.Program, synthesized bool) *Record {
	b := analyzeModule(key, prog)
	rec := b.build()
	if !synthesized && b.needsDefaultExport() {
		rec = a.ensureDefaultExport(rec)
	}
	return rec
}

// ensureDefaultExport handles a module with no imports, exports or star
// exports. It re-analyzes `export default undefined;` under the same key
// and, separately, compiles the module text as a CommonJS function.
//
// Treating such a module as CommonJS is a heuristic, not module-linking
// semantics. Both steps report failures to the sink and never fail the
// analysis; this may warrant a load-time error instead.
func (a *Analyzer) ensureDefaultExport(rec *Record) *Record {
	key := rec.Key()
	a.logger.Debug().Str("module", key).Msg("module has no imports or exports, synthesizing default export")

	out := rec
	synthetic := source.NewSyntheticSource(SyntheticDefaultExportSource)
	prog, err := a.parser.ParseModule(synthetic)
	if err == nil && prog == nil {
		err = ErrNoProgram
	}
	if err != nil {
		a.sink.Report(Diagnostic{
			Kind:      DiagnosticDefaultExportParse,
			Severity:  SeverityError,
			ModuleKey: key,
			Snippet:   synthetic.Content,
			Message:   "failed to parse synthetic default export",
			Err:       err,
		})
	} else {
		out = a.analyze(key, prog, true)
		// The replacement still describes the original module.
		out.source = rec.source
	}

	wrapped := WrapCommonJS(rec.Source())
	fn, err := a.compiler.CompileFunction(wrapped)
	if err == nil && fn == nil {
		err = fmt.Errorf("compiler returned no function for %s", key)
	}
	if err != nil {
		a.sink.Report(Diagnostic{
			Kind:      DiagnosticCommonJSCompile,
			Severity:  SeverityError,
			ModuleKey: key,
			Snippet:   wrapped.Content,
			Message:   "failed to compile CommonJS module function",
			Err:       err,
		})
		return out
	}
	a.logger.Debug().Str("module", key).Str("function", fn.Name()).Msg("attached CommonJS module function")
	return out.withProperty(CommonJSModuleFunction, fn)
}
