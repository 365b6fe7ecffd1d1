package modules

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrPoolNotStarted     = errors.New("modules: worker pool not started")
	ErrPoolStopped        = errors.New("modules: worker pool stopped")
	ErrPoolAlreadyStarted = errors.New("modules: worker pool already started")
)

// WorkerPool analyzes independent modules in parallel. Each job is
// analyzed synchronously by one worker; results are stored in the
// registry, when one is configured, and delivered on Results.
type WorkerPool struct {
	// Configuration
	numWorkers   int
	jobBuffer    int
	resultBuffer int
	analyzer     *Analyzer
	registry     *Registry
	logger       zerolog.Logger

	// Channels
	jobQueue   chan *AnalysisJob
	resultChan chan *AnalysisResult

	// Control
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeLock sync.RWMutex // Held for reading while sending on jobQueue

	// State
	started    atomic.Bool
	stopped    atomic.Bool
	activeJobs atomic.Int32

	// Statistics
	stats      WorkerPoolStats
	statsMutex sync.RWMutex
}

// analysisWorker represents a single worker goroutine
type analysisWorker struct {
	id   int
	pool *WorkerPool
}

type WorkerPoolOption func(*WorkerPool) *WorkerPool

// WithRegistry makes workers record their outcome in registry.
func WithRegistry(registry *Registry) WorkerPoolOption {
	return func(wp *WorkerPool) *WorkerPool {
		wp.registry = registry
		return wp
	}
}

func WithPoolLogger(logger zerolog.Logger) WorkerPoolOption {
	return func(wp *WorkerPool) *WorkerPool {
		wp.logger = logger
		return wp
	}
}

// NewWorkerPool creates a new parallel analysis worker pool
func NewWorkerPool(config *PoolConfig, analyzer *Analyzer, options ...WorkerPoolOption) *WorkerPool {
	if config == nil {
		config = DefaultPoolConfig()
	}
	numWorkers := config.NumWorkers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	wp := &WorkerPool{
		numWorkers:   numWorkers,
		jobBuffer:    config.JobBufferSize,
		resultBuffer: config.ResultBufferSize,
		analyzer:     analyzer,
		logger:       zerolog.Nop(),
	}
	for _, opt := range options {
		wp = opt(wp)
	}
	return wp
}

// Start initializes and starts the worker pool
func (wp *WorkerPool) Start(ctx context.Context) error {
	if !wp.started.CompareAndSwap(false, true) {
		return ErrPoolAlreadyStarted
	}

	wp.ctx, wp.cancel = context.WithCancel(ctx)
	wp.jobQueue = make(chan *AnalysisJob, wp.jobBuffer)
	wp.resultChan = make(chan *AnalysisResult, wp.resultBuffer)
	wp.stats = WorkerPoolStats{WorkerCount: wp.numWorkers}

	for i := 0; i < wp.numWorkers; i++ {
		worker := &analysisWorker{id: i, pool: wp}
		wp.wg.Add(1)
		go worker.run(wp.ctx)
	}
	wp.logger.Debug().Int("workers", wp.numWorkers).Msg("worker pool started")
	return nil
}

// Submit queues a job, blocking while the queue is full
func (wp *WorkerPool) Submit(job *AnalysisJob) error {
	if !wp.started.Load() {
		return ErrPoolNotStarted
	}

	wp.closeLock.RLock()
	defer wp.closeLock.RUnlock()
	if wp.stopped.Load() {
		return ErrPoolStopped
	}

	if job.Timestamp.IsZero() {
		job.Timestamp = time.Now()
	}
	if wp.registry != nil {
		wp.registry.UpdateState(job.Key, ModuleQueued)
	}

	wp.activeJobs.Add(1)
	select {
	case wp.jobQueue <- job:
		wp.statsMutex.Lock()
		wp.stats.TotalJobs++
		wp.statsMutex.Unlock()
		return nil
	case <-wp.ctx.Done():
		wp.activeJobs.Add(-1)
		return wp.ctx.Err()
	}
}

// Results returns the channel analysis results are delivered on. It is
// closed by a successful Shutdown.
func (wp *WorkerPool) Results() <-chan *AnalysisResult {
	return wp.resultChan
}

// Shutdown stops accepting jobs and waits for queued jobs to finish
func (wp *WorkerPool) Shutdown(ctx context.Context) error {
	if !wp.started.Load() {
		return ErrPoolNotStarted
	}
	wp.closeLock.Lock()
	if !wp.stopped.CompareAndSwap(false, true) {
		wp.closeLock.Unlock()
		return ErrPoolStopped
	}
	close(wp.jobQueue)
	wp.closeLock.Unlock()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.cancel()
		close(wp.resultChan)
		wp.logger.Debug().Msg("worker pool stopped")
		return nil
	case <-ctx.Done():
		// Timeout - force shutdown
		wp.cancel()
		return ctx.Err()
	}
}

// HasActiveJobs returns true if there are jobs queued or in progress
func (wp *WorkerPool) HasActiveJobs() bool {
	return wp.activeJobs.Load() > 0
}

// GetStats returns current worker pool statistics
func (wp *WorkerPool) GetStats() WorkerPoolStats {
	wp.statsMutex.RLock()
	defer wp.statsMutex.RUnlock()

	stats := wp.stats
	stats.ActiveJobs = int(wp.activeJobs.Load())
	return stats
}

// run is the main worker loop
func (w *analysisWorker) run(ctx context.Context) {
	defer w.pool.wg.Done()

	for {
		select {
		case job, ok := <-w.pool.jobQueue:
			if !ok {
				return
			}
			result := w.processJob(job)

			w.pool.statsMutex.Lock()
			if result.Err == nil {
				w.pool.stats.CompletedJobs++
			} else {
				w.pool.stats.FailedJobs++
			}
			w.pool.stats.TotalTime += result.Duration
			w.pool.stats.AverageTime = w.pool.stats.TotalTime / time.Duration(w.pool.stats.CompletedJobs+w.pool.stats.FailedJobs)
			w.pool.statsMutex.Unlock()

			w.pool.activeJobs.Add(-1)

			select {
			case w.pool.resultChan <- result:
			case <-ctx.Done():
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// processJob analyzes a single module
func (w *analysisWorker) processJob(job *AnalysisJob) *AnalysisResult {
	startTime := time.Now()
	registry := w.pool.registry
	if registry != nil {
		registry.UpdateState(job.Key, ModuleAnalyzing)
	}

	w.pool.logger.Debug().Int("worker", w.id).Str("module", job.Key).Msg("analysis started")
	record, err := w.pool.analyzer.AnalyzeSource(job.Key, job.Source)

	result := &AnalysisResult{
		Key:       job.Key,
		Record:    record,
		Err:       err,
		Duration:  time.Since(startTime),
		WorkerID:  w.id,
		Timestamp: time.Now(),
	}
	if registry != nil {
		if err != nil {
			registry.SetError(job.Key, err)
		} else {
			registry.Set(job.Key, record)
		}
	}
	w.pool.logger.Debug().Int("worker", w.id).Str("module", job.Key).Dur("duration", result.Duration).Err(err).Msg("analysis finished")
	return result
}
