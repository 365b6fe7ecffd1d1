package modules

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// DiagnosticKind classifies a Diagnostic.
type DiagnosticKind int

const (
	DiagnosticDefaultExportParse DiagnosticKind = iota // synthetic default export failed to parse
	DiagnosticCommonJSCompile                          // CommonJS wrapper failed to compile
	DiagnosticRecordDump                               // record dump requested by configuration
)

func (k DiagnosticKind) String() string {
	switch k {
	case DiagnosticDefaultExportParse:
		return "default-export-parse"
	case DiagnosticCommonJSCompile:
		return "commonjs-compile"
	case DiagnosticRecordDump:
		return "record-dump"
	default:
		return fmt.Sprintf("DiagnosticKind(%d)", int(k))
	}
}

// Severity of a Diagnostic.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Diagnostic is a non-fatal report produced during analysis.
type Diagnostic struct {
	Kind      DiagnosticKind
	Severity  Severity
	ModuleKey string
	Snippet   string // source text the diagnostic is about
	Message   string
	Err       error
}

func (d Diagnostic) String() string {
	if d.Err != nil {
		return fmt.Sprintf("%s %s [%s]: %s: %v", d.Severity, d.Kind, d.ModuleKey, d.Message, d.Err)
	}
	return fmt.Sprintf("%s %s [%s]: %s", d.Severity, d.Kind, d.ModuleKey, d.Message)
}

// LogSink writes diagnostics to a zerolog logger.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Report(d Diagnostic) {
	var event *zerolog.Event
	switch d.Severity {
	case SeverityError:
		event = s.logger.Error()
	case SeverityWarning:
		event = s.logger.Warn()
	default:
		event = s.logger.Info()
	}
	event = event.Str("kind", d.Kind.String()).Str("module", d.ModuleKey)
	if d.Kind != DiagnosticRecordDump && d.Snippet != "" {
		event = event.Str("snippet", d.Snippet)
	}
	if d.Err != nil {
		event = event.Err(d.Err)
	}
	event.Msg(d.Message)
}

// CollectingSink keeps every reported diagnostic. It is safe for concurrent
// use.
type CollectingSink struct {
	mu    sync.Mutex
	diags []Diagnostic
}

func NewCollectingSink() *CollectingSink {
	return &CollectingSink{}
}

func (s *CollectingSink) Report(d Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diags = append(s.diags, d)
}

// Diagnostics returns the diagnostics reported so far.
func (s *CollectingSink) Diagnostics() []Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Diagnostic(nil), s.diags...)
}

// Reset discards collected diagnostics.
func (s *CollectingSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diags = nil
}

// NopSink drops every diagnostic.
type NopSink struct{}

func (NopSink) Report(Diagnostic) {}
