// Package batch restores whole directories of images through the pipeline
// with a bounded worker pool.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/pixel-revival/revive/internal/pipeline"
)

// Config holds all configuration for a batch run.
type Config struct {
	// Stage selection, same semantics as a single restoration request.
	Options pipeline.Options

	// Pipeline settings
	ModelsDir  string
	NumThreads int

	// Output settings
	OutputDir string
	Suffix    string

	// Parallel processing settings
	Workers int

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	Quiet bool
}

// FileResult records the outcome for one input file.
type FileResult struct {
	Path       string
	OutputPath string
	Duration   time.Duration
	Err        error
}

// Result holds the outcome of a batch run.
type Result struct {
	Files       []FileResult
	Duration    time.Duration
	WorkerCount int
}

// Processed returns the number of files restored without error.
func (r *Result) Processed() int {
	n := 0
	for _, f := range r.Files {
		if f.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the number of files that could not be restored.
func (r *Result) Failed() int {
	return len(r.Files) - r.Processed()
}

// PrintStats prints a processing summary to stdout.
func (r *Result) PrintStats() {
	avg := time.Duration(0)
	if len(r.Files) > 0 {
		avg = r.Duration / time.Duration(len(r.Files))
	}
	throughput := 0.0
	if r.Duration > 0 {
		throughput = float64(len(r.Files)) / r.Duration.Seconds()
	}

	_, _ = fmt.Fprintf(os.Stdout, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(os.Stdout, "  Total images: %d\n", len(r.Files))
	_, _ = fmt.Fprintf(os.Stdout, "  Processed: %d\n", r.Processed())
	_, _ = fmt.Fprintf(os.Stdout, "  Failed: %d\n", r.Failed())
	_, _ = fmt.Fprintf(os.Stdout, "  Workers: %d\n", r.WorkerCount)
	_, _ = fmt.Fprintf(os.Stdout, "  Duration: %v\n", r.Duration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(os.Stdout, "  Avg per image: %v\n", avg.Round(time.Millisecond))
	_, _ = fmt.Fprintf(os.Stdout, "  Throughput: %.1f images/sec\n", throughput)
}

// ProcessBatch discovers image files under the given paths, builds a
// pipeline from the configuration, and restores every file in parallel.
func ProcessBatch(ctx context.Context, paths []string, config *Config) (*Result, error) {
	pl, err := pipeline.NewBuilder().
		WithModelsDir(config.ModelsDir).
		WithThreads(config.NumThreads).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	defer func() {
		if err := pl.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing pipeline: %v\n", err)
		}
	}()

	return ProcessBatchWithPipeline(ctx, paths, config, pl)
}

// ProcessBatchWithPipeline is ProcessBatch with a caller-supplied pipeline.
// The caller keeps ownership of the pipeline.
func ProcessBatchWithPipeline(ctx context.Context, paths []string,
	config *Config, pl *pipeline.Pipeline) (*Result, error) {
	if err := config.Options.Validate(); err != nil {
		return nil, err
	}

	files, err := discoverImageFiles(paths, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no image files found")
	}

	workers := config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(files) {
		workers = len(files)
	}

	startTime := time.Now()
	results := processImagesParallel(ctx, pl, files, config, workers)

	return &Result{
		Files:       results,
		Duration:    time.Since(startTime),
		WorkerCount: workers,
	}, nil
}
