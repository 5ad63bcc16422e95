package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"github.com/pixel-revival/revive/internal/pipeline"
)

// processImagesParallel restores the given files with a fixed pool of
// workers. Each file produces a FileResult; per-file failures do not stop
// the batch, but context cancellation does.
func processImagesParallel(ctx context.Context, pl *pipeline.Pipeline,
	files []string, config *Config, workers int) []FileResult {
	jobs := make(chan int)
	results := make([]FileResult, len(files))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = processSingleImage(ctx, pl, files[idx], config)
			}
		}()
	}

feed:
	for idx := range files {
		select {
		case jobs <- idx:
		case <-ctx.Done():
			// Mark everything not yet dispatched as cancelled. Workers only
			// touch indices that were sent, so these slots are ours.
			for rest := idx; rest < len(files); rest++ {
				results[rest] = FileResult{Path: files[rest], Err: ctx.Err()}
			}
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	return results
}

// processSingleImage loads, restores, and saves one file.
func processSingleImage(ctx context.Context, pl *pipeline.Pipeline, path string, config *Config) FileResult {
	start := time.Now()
	result := FileResult{Path: path}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		result.Err = fmt.Errorf("failed to load %s: %w", path, err)
		return result
	}

	res, err := pl.Run(ctx, img, config.Options)
	if err != nil {
		result.Err = fmt.Errorf("failed to restore %s: %w", path, err)
		return result
	}

	outPath := outputPath(path, config)
	if dir := filepath.Dir(outPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			result.Err = fmt.Errorf("failed to create output dir: %w", err)
			return result
		}
	}
	if err := imaging.Save(res.Final(), outPath); err != nil {
		result.Err = fmt.Errorf("failed to save %s: %w", outPath, err)
		return result
	}

	result.OutputPath = outPath
	result.Duration = time.Since(start)
	if !config.Quiet {
		slog.Info("restored image", "input", path, "output", outPath,
			"duration", result.Duration.Round(time.Millisecond))
	}
	return result
}

// outputPath derives the destination file name. Outputs are always PNG to
// avoid recompressing restored pixels.
func outputPath(path string, config *Config) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	suffix := config.Suffix
	if suffix == "" {
		suffix = "_restored"
	}

	dir := config.OutputDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	return filepath.Join(dir, stem+suffix+".png")
}
