package modules

import (
	"runtime"
	"time"

	"esmod/pkg/source"
)

// ModuleState is the analysis state of a module in the registry
type ModuleState int

const (
	ModuleUnknown   ModuleState = iota // Initial state
	ModuleQueued                       // Submitted for analysis
	ModuleAnalyzing                    // Currently being analyzed
	ModuleAnalyzed                     // Record available
	ModuleError                        // Parse or analysis failed
)

func (s ModuleState) String() string {
	switch s {
	case ModuleUnknown:
		return "unknown"
	case ModuleQueued:
		return "queued"
	case ModuleAnalyzing:
		return "analyzing"
	case ModuleAnalyzed:
		return "analyzed"
	case ModuleError:
		return "error"
	default:
		return "invalid"
	}
}

// ResolvedModule is a module found by a resolver
type ResolvedModule struct {
	Specifier string             // Original specifier
	Key       string             // Canonical module key
	Source    *source.SourceFile // Module source
	Resolver  string             // Name of resolver that resolved this
}

// AnalysisJob is a module analysis task for the worker pool
type AnalysisJob struct {
	Key       string             // Module key the record is stored under
	Source    *source.SourceFile // Source content
	Timestamp time.Time          // When job was created
}

// AnalysisResult is the outcome of one AnalysisJob
type AnalysisResult struct {
	Key       string        // Module key that was analyzed
	Record    *Record       // Resulting record, nil on error
	Err       error         // Parse or analysis error
	Duration  time.Duration // Time taken to analyze
	WorkerID  int           // ID of worker that analyzed this
	Timestamp time.Time     // When analysis completed
}

// AnalyzerConfig configures an Analyzer.
type AnalyzerConfig struct {
	// DumpModuleRecord emits each finished record's dump to the sink.
	DumpModuleRecord bool
}

func DefaultAnalyzerConfig() *AnalyzerConfig {
	return &AnalyzerConfig{}
}

// PoolConfig configures a WorkerPool.
type PoolConfig struct {
	NumWorkers       int // Number of analysis workers (0 = auto)
	JobBufferSize    int // Size of job queue buffer
	ResultBufferSize int // Size of result channel buffer
}

// DefaultPoolConfig returns sensible default configuration
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		NumWorkers:       runtime.NumCPU(), // Use all available CPUs
		JobBufferSize:    100,
		ResultBufferSize: 100,
	}
}

// WorkerPoolStats contains statistics about worker pool performance
type WorkerPoolStats struct {
	TotalJobs     int           // Total jobs processed
	ActiveJobs    int           // Currently active jobs
	CompletedJobs int           // Successfully completed jobs
	FailedJobs    int           // Failed jobs
	AverageTime   time.Duration // Average processing time per job
	TotalTime     time.Duration // Total time spent processing
	WorkerCount   int           // Number of active workers
}

// RegistryStats contains statistics about the module registry
type RegistryStats struct {
	TotalModules    int // Total modules in registry
	AnalyzedModules int // Modules with a record
	FailedModules   int // Modules whose analysis failed
	CacheHits       int // Number of lookups that found a record
	CacheMisses     int // Number of lookups that found nothing
}
