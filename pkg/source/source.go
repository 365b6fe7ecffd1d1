package source

import (
	"path/filepath"
	"strings"
)

// SourceType distinguishes module code from classic script code.
type SourceType int

const (
	ModuleSource SourceType = iota // Parsed with import/export declarations allowed
	ScriptSource                   // Parsed as a script (e.g. a CommonJS function body)
)

func (t SourceType) String() string {
	switch t {
	case ModuleSource:
		return "module"
	case ScriptSource:
		return "script"
	default:
		return "unknown"
	}
}

// SourceFile represents a source file with its content and metadata
type SourceFile struct {
	Name    string     // Display name (e.g., "main.js", "<stdin>", "<repl>")
	Path    string     // Full file path (empty for REPL/eval)
	URL     string     // Origin reported for diagnostics (may be empty)
	Type    SourceType // Module or script
	Content string     // The source code content
	lines   []string   // Cached split lines (lazy initialization)
}

// NewSourceFile creates a new module source file
func NewSourceFile(name, path, content string) *SourceFile {
	return &SourceFile{
		Name:    name,
		Path:    path,
		URL:     path,
		Type:    ModuleSource,
		Content: content,
	}
}

// NewEvalSource creates a module source for -e input
func NewEvalSource(content string) *SourceFile {
	return &SourceFile{
		Name:    "<eval>",
		Type:    ModuleSource,
		Content: content,
	}
}

// NewReplSource creates a module source for REPL input
func NewReplSource(content string) *SourceFile {
	return &SourceFile{
		Name:    "<repl>",
		Type:    ModuleSource,
		Content: content,
	}
}

// NewSyntheticSource creates a module source that has no origin of its own.
func NewSyntheticSource(content string) *SourceFile {
	return &SourceFile{
		Name:    "<synthetic>",
		Type:    ModuleSource,
		Content: content,
	}
}

// NewScriptSource creates a script source reporting the given URL as its origin.
func NewScriptSource(name, url, content string) *SourceFile {
	return &SourceFile{
		Name:    name,
		URL:     url,
		Type:    ScriptSource,
		Content: content,
	}
}

// Lines returns the source split into lines (cached)
func (sf *SourceFile) Lines() []string {
	if sf.lines == nil {
		sf.lines = strings.Split(sf.Content, "\n")
	}
	return sf.lines
}

// Line returns the 1-based line n, or "" when out of range.
func (sf *SourceFile) Line(n int) string {
	lines := sf.Lines()
	if n < 1 || n > len(lines) {
		return ""
	}
	return lines[n-1]
}

// Snippet returns at most max bytes of the content, cut on a rune boundary
// and suffixed with "..." when truncated. max <= 0 returns everything.
func (sf *SourceFile) Snippet(max int) string {
	if max <= 0 || len(sf.Content) <= max {
		return sf.Content
	}
	cut := max
	for cut > 0 && !isRuneStart(sf.Content[cut]) {
		cut--
	}
	return sf.Content[:cut] + "..."
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

// DisplayPath returns the best path for display (prefers Path, then URL, then Name)
func (sf *SourceFile) DisplayPath() string {
	if sf.Path != "" {
		return sf.Path
	}
	if sf.URL != "" {
		return sf.URL
	}
	return sf.Name
}

// IsFile returns true if this represents an actual file (has a path)
func (sf *SourceFile) IsFile() bool {
	return sf.Path != ""
}

// FromFile creates a module SourceFile from a file path and content
func FromFile(filePath, content string) *SourceFile {
	name := filepath.Base(filePath)
	return NewSourceFile(name, filePath, content)
}
