package modules

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"esmod/pkg/source"
)

func newTestPool(t *testing.T, workers int, options ...WorkerPoolOption) *WorkerPool {
	t.Helper()
	config := DefaultPoolConfig()
	config.NumWorkers = workers
	pool := NewWorkerPool(config, NewAnalyzer(), options...)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("Expected successful start, got error: %v", err)
	}
	return pool
}

func shutdown(t *testing.T, pool *WorkerPool) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return pool.Shutdown(ctx)
}

func TestWorkerPoolBasic(t *testing.T) {
	pool := newTestPool(t, 2)

	if pool.HasActiveJobs() {
		t.Error("Expected no active jobs initially")
	}

	job := &AnalysisJob{
		Key:    "test.js",
		Source: source.NewSourceFile("test.js", "test.js", "export const test = true;"),
	}
	if err := pool.Submit(job); err != nil {
		t.Fatalf("Expected successful job submission, got error: %v", err)
	}

	select {
	case result := <-pool.Results():
		if result.Key != "test.js" {
			t.Errorf("Expected key 'test.js', got '%s'", result.Key)
		}
		if result.Err != nil {
			t.Errorf("Expected successful analysis, got error: %v", result.Err)
		}
		if result.Record == nil || len(result.Record.ExportEntries()) != 1 {
			t.Errorf("Expected a record with one export, got %v", result.Record)
		}
	case <-time.After(2 * time.Second):
		t.Error("Timeout waiting for result")
	}

	if err := shutdown(t, pool); err != nil {
		t.Errorf("Expected successful shutdown, got error: %v", err)
	}
	if _, ok := <-pool.Results(); ok {
		t.Error("Expected results channel to be closed after shutdown")
	}
}

func TestWorkerPoolMultipleJobs(t *testing.T) {
	registry := NewRegistry()
	pool := newTestPool(t, 3, WithRegistry(registry))
	defer shutdown(t, pool)

	jobCount := 6
	for i := 0; i < jobCount; i++ {
		content := fmt.Sprintf("export const test%d = %d;", i, i)
		if i%3 == 0 {
			content = "export {" // syntax error
		}
		key := fmt.Sprintf("/src/test%d.js", i)
		if err := pool.Submit(&AnalysisJob{Key: key, Source: source.NewSourceFile(key, key, content)}); err != nil {
			t.Errorf("Expected successful job submission for job %d, got error: %v", i, err)
		}
	}

	results := make(map[string]*AnalysisResult, jobCount)
	timeout := time.After(5 * time.Second)
	for len(results) < jobCount {
		select {
		case result := <-pool.Results():
			results[result.Key] = result
		case <-timeout:
			t.Fatalf("Timeout waiting for results, got %d/%d", len(results), jobCount)
		}
	}

	for i := 0; i < jobCount; i++ {
		key := fmt.Sprintf("/src/test%d.js", i)
		result, ok := results[key]
		if !ok {
			t.Errorf("Expected to process %s", key)
			continue
		}
		state, err := registry.State(key)
		if i%3 == 0 {
			if result.Err == nil || state != ModuleError || err == nil {
				t.Errorf("%s: expected failed analysis, got state %s err %v", key, state, result.Err)
			}
			continue
		}
		if result.Err != nil || state != ModuleAnalyzed {
			t.Errorf("%s: expected analyzed module, got state %s err %v", key, state, result.Err)
		}
		if registry.Get(key) != result.Record {
			t.Errorf("%s: expected registry to hold the result record", key)
		}
	}

	stats := pool.GetStats()
	if stats.TotalJobs != jobCount || stats.CompletedJobs != 4 || stats.FailedJobs != 2 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if pool.HasActiveJobs() {
		t.Error("Expected no active jobs once every result arrived")
	}
}

func TestWorkerPoolStats(t *testing.T) {
	pool := newTestPool(t, 2)
	defer shutdown(t, pool)

	stats := pool.GetStats()
	if stats.WorkerCount != 2 {
		t.Errorf("Expected 2 workers, got %d", stats.WorkerCount)
	}
	if stats.TotalJobs != 0 {
		t.Errorf("Expected 0 total jobs initially, got %d", stats.TotalJobs)
	}

	job := &AnalysisJob{Key: "stats-test.js", Source: source.NewSourceFile("stats-test.js", "stats-test.js", "var x = 1")}
	if err := pool.Submit(job); err != nil {
		t.Fatalf("Expected successful job submission, got error: %v", err)
	}
	if job.Timestamp.IsZero() {
		t.Error("Expected Submit to stamp the job")
	}

	select {
	case <-pool.Results():
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for result")
	}

	stats = pool.GetStats()
	if stats.TotalJobs != 1 {
		t.Errorf("Expected 1 total job, got %d", stats.TotalJobs)
	}
	if stats.CompletedJobs != 1 {
		t.Errorf("Expected 1 completed job, got %d", stats.CompletedJobs)
	}
}

func TestWorkerPoolShutdown(t *testing.T) {
	pool := newTestPool(t, 2)

	if err := shutdown(t, pool); err != nil {
		t.Errorf("Expected successful shutdown, got error: %v", err)
	}

	job := &AnalysisJob{Key: "after-shutdown.js", Source: source.NewSourceFile("a.js", "a.js", "")}
	if err := pool.Submit(job); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("Expected ErrPoolStopped when submitting to stopped pool, got %v", err)
	}
	if err := shutdown(t, pool); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("Expected ErrPoolStopped on second shutdown, got %v", err)
	}
}

func TestWorkerPoolStartTwice(t *testing.T) {
	pool := newTestPool(t, 1)
	defer shutdown(t, pool)

	if err := pool.Start(context.Background()); !errors.Is(err, ErrPoolAlreadyStarted) {
		t.Errorf("Expected ErrPoolAlreadyStarted, got %v", err)
	}
}

func TestWorkerPoolNotStarted(t *testing.T) {
	pool := NewWorkerPool(nil, NewAnalyzer())
	if err := pool.Submit(&AnalysisJob{Key: "x"}); !errors.Is(err, ErrPoolNotStarted) {
		t.Errorf("Expected ErrPoolNotStarted, got %v", err)
	}
}
