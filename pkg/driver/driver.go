package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	perrors "esmod/pkg/errors"
	"esmod/pkg/modules"
	"esmod/pkg/source"
)

// ErrNoMatches is returned by AnalyzeFiles when no pattern matches a file.
var ErrNoMatches = errors.New("no files match")

// Session analyzes modules and keeps their records. It maintains state
// between separate analyses so that records produced by one call can be
// inspected by later ones.
type Session struct {
	logger     zerolog.Logger
	sink       modules.Sink
	config     modules.AnalyzerConfig
	poolConfig modules.PoolConfig
	registry   *modules.Registry
	memory     *modules.MemoryResolver
	resolvers  *modules.ResolverChain
	analyzer   *modules.Analyzer
}

// SessionOption is a function that configures a Session.
type SessionOption func(*Session) *Session

// WithLogger sets the logger used by the session, its analyzer and its
// worker pools.
func WithLogger(logger zerolog.Logger) SessionOption {
	return func(s *Session) *Session {
		s.logger = logger
		return s
	}
}

// WithSink sets where analysis diagnostics are reported.
func WithSink(sink modules.Sink) SessionOption {
	return func(s *Session) *Session {
		s.sink = sink
		return s
	}
}

// WithAnalyzerConfig sets the analyzer configuration.
func WithAnalyzerConfig(config *modules.AnalyzerConfig) SessionOption {
	return func(s *Session) *Session {
		s.config = *config
		return s
	}
}

// WithPoolConfig sets the worker pool configuration used by AnalyzeFiles.
func WithPoolConfig(config *modules.PoolConfig) SessionOption {
	return func(s *Session) *Session {
		s.poolConfig = *config
		return s
	}
}

// WithResolver adds a resolver consulted by AnalyzeGraph.
func WithResolver(r modules.ModuleResolver) SessionOption {
	return func(s *Session) *Session {
		s.resolvers.Add(r)
		return s
	}
}

// WithBaseDir resolves modules from an OS directory.
func WithBaseDir(dir string) SessionOption {
	return WithResolver(modules.NewOSFileSystemResolver(dir))
}

// NewSession creates a session. Its in-memory resolver is always part of
// the resolver chain.
func NewSession(options ...SessionOption) *Session {
	s := &Session{
		logger:     zerolog.Nop(),
		sink:       modules.NopSink{},
		config:     *modules.DefaultAnalyzerConfig(),
		poolConfig: *modules.DefaultPoolConfig(),
		registry:   modules.NewRegistry(),
		memory:     modules.NewMemoryResolver("Memory"),
		resolvers:  modules.NewResolverChain(),
	}
	s.resolvers.Add(s.memory)
	for _, opt := range options {
		s = opt(s)
	}
	s.analyzer = modules.NewAnalyzer(
		modules.WithLogger(s.logger),
		modules.WithSink(s.sink),
		modules.WithConfig(&s.config),
	)
	return s
}

func (s *Session) Registry() *modules.Registry       { return s.registry }
func (s *Session) Memory() *modules.MemoryResolver   { return s.memory }
func (s *Session) Resolvers() *modules.ResolverChain { return s.resolvers }
func (s *Session) Analyzer() *modules.Analyzer       { return s.analyzer }

// AnalyzeString analyzes content as a module named key. An empty key
// analyzes it as -e input.
func (s *Session) AnalyzeString(key, content string) (*modules.Record, error) {
	if key == "" {
		src := source.NewEvalSource(content)
		return s.AnalyzeSource(src.Name, src)
	}
	return s.AnalyzeSource(key, source.NewSourceFile(key, key, content))
}

// AnalyzeFile reads and analyzes one file. The record is keyed by the
// slash-separated path.
func (s *Session) AnalyzeFile(filename string) (*modules.Record, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	return s.AnalyzeSource(filepath.ToSlash(filename), source.FromFile(filename, string(content)))
}

// AnalyzeSource analyzes src and registers the outcome under key.
func (s *Session) AnalyzeSource(key string, src *source.SourceFile) (*modules.Record, error) {
	s.registry.UpdateState(key, modules.ModuleAnalyzing)
	rec, err := s.analyzer.AnalyzeSource(key, src)
	if err != nil {
		s.registry.SetError(key, err)
		return nil, err
	}
	s.registry.Set(key, rec)
	return rec, nil
}

// AnalyzeFiles analyzes every file of fsys matching one of the doublestar
// patterns on a worker pool. Results are sorted by key; a module that
// fails to parse is reported through its result's Err, not the returned
// error.
func (s *Session) AnalyzeFiles(ctx context.Context, fsys fs.FS, patterns ...string) ([]*modules.AnalysisResult, error) {
	paths, err := expandPatterns(fsys, patterns)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMatches, strings.Join(patterns, " "))
	}
	s.logger.Debug().Int("files", len(paths)).Strs("patterns", patterns).Msg("analyzing files")

	pool := modules.NewWorkerPool(&s.poolConfig, s.analyzer,
		modules.WithRegistry(s.registry),
		modules.WithPoolLogger(s.logger),
	)
	if err := pool.Start(ctx); err != nil {
		return nil, err
	}

	type submitOutcome struct {
		submitErr   error
		shutdownErr error
	}
	done := make(chan submitOutcome, 1)
	go func() {
		var submitErr error
		for _, p := range paths {
			content, err := fs.ReadFile(fsys, p)
			if err != nil {
				submitErr = fmt.Errorf("failed to read %s: %w", p, err)
				break
			}
			job := &modules.AnalysisJob{Key: p, Source: source.NewSourceFile(p, p, string(content))}
			if err := pool.Submit(job); err != nil {
				submitErr = fmt.Errorf("failed to submit %s: %w", p, err)
				break
			}
		}
		done <- submitOutcome{submitErr, pool.Shutdown(ctx)}
	}()

	var (
		results   []*modules.AnalysisResult
		submitErr error
	)
	resultChan, doneChan := pool.Results(), done
	for resultChan != nil {
		select {
		case res, open := <-resultChan:
			if !open {
				resultChan = nil
				continue
			}
			results = append(results, res)
		case outcome := <-doneChan:
			doneChan = nil
			submitErr = outcome.submitErr
			if outcome.shutdownErr != nil {
				// results are never closed after a failed shutdown
				return sortResults(results), errors.Join(submitErr, outcome.shutdownErr)
			}
		}
	}
	if doneChan != nil {
		submitErr = (<-doneChan).submitErr
	}
	return sortResults(results), submitErr
}

func sortResults(results []*modules.AnalysisResult) []*modules.AnalysisResult {
	sort.Slice(results, func(i, j int) bool { return results[i].Key < results[j].Key })
	return results
}

// expandPatterns returns the sorted, de-duplicated files matching patterns.
func expandPatterns(fsys fs.FS, patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				paths = append(paths, m)
			}
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// GraphError records a module of a graph that could not be analyzed, or a
// request that could not be resolved.
type GraphError struct {
	Key       string // module being analyzed or requesting
	Specifier string // unresolved request, empty for analysis failures
	Err       error
}

func (e *GraphError) Error() string {
	if e.Specifier != "" {
		return fmt.Sprintf("%s: cannot resolve %q: %v", e.Key, e.Specifier, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Key, e.Err)
}

func (e *GraphError) Unwrap() error { return e.Err }

// Graph is the set of modules reachable from an entry module.
type Graph struct {
	Entry        string
	Keys         []string                   // analysis order (breadth first)
	Records      map[string]*modules.Record // successfully analyzed modules
	Dependencies map[string][]string        // resolved keys of each module's requests
	Errors       []*GraphError
}

// AnalyzeGraph resolves specifier and analyzes it and every module it
// transitively requests. Unresolvable requests and modules that fail to
// parse are collected in Graph.Errors; only failure to resolve the entry
// or cancellation of ctx are returned as errors.
func (s *Session) AnalyzeGraph(ctx context.Context, specifier string) (*Graph, error) {
	entry, err := s.resolvers.Resolve(specifier, "")
	if err != nil {
		return nil, err
	}

	g := &Graph{
		Entry:        entry.Key,
		Records:      make(map[string]*modules.Record),
		Dependencies: make(map[string][]string),
	}
	seen := map[string]bool{entry.Key: true}
	queue := []*modules.ResolvedModule{entry}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return g, err
		}
		m := queue[0]
		queue = queue[1:]
		g.Keys = append(g.Keys, m.Key)

		rec, err := s.AnalyzeSource(m.Key, m.Source)
		if err != nil {
			g.Errors = append(g.Errors, &GraphError{Key: m.Key, Err: err})
			continue
		}
		g.Records[m.Key] = rec
		s.logger.Debug().Str("module", m.Key).Str("resolver", m.Resolver).Msg("graph module analyzed")

		for _, request := range rec.RequestedModules() {
			dep, err := s.resolvers.Resolve(request, m.Key)
			if err != nil {
				g.Errors = append(g.Errors, &GraphError{Key: m.Key, Specifier: request, Err: err})
				continue
			}
			g.Dependencies[m.Key] = append(g.Dependencies[m.Key], dep.Key)
			if !seen[dep.Key] {
				seen[dep.Key] = true
				queue = append(queue, dep)
			}
		}
	}
	return g, nil
}

// DisplayError prints err to w. Positioned source errors are shown with
// the offending line of content and a caret.
func DisplayError(w io.Writer, content string, err error) {
	var list perrors.List
	if errors.As(err, &list) {
		perrors.DisplayErrors(w, content, list)
		return
	}
	var srcErr perrors.SourceError
	if errors.As(err, &srcErr) {
		perrors.DisplayErrors(w, content, []perrors.SourceError{srcErr})
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}
