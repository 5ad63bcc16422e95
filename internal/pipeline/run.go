package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/pixel-revival/revive/internal/model"
	"github.com/pixel-revival/revive/internal/quality"
)

// StageOutput is the image produced by one enabled stage together with its
// wall-clock duration.
type StageOutput struct {
	Name     string
	Image    image.Image
	Duration time.Duration
}

// Result is the outcome of one pipeline run. Stages holds outputs of
// enabled stages in execution order; disabled stages leave no entry. In
// evaluation mode GroundTruth carries the original upload, Degraded the
// synthetic input, and Metrics one record per retained image keyed by stage
// name (plus DegradedKey for the raw degraded input).
type Result struct {
	Input       image.Image
	Stages      []StageOutput
	GroundTruth image.Image
	Degraded    image.Image
	Metrics     map[string]quality.Record
	Total       time.Duration
}

// Stage returns the output image of a stage by name.
func (r *Result) Stage(name string) (image.Image, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s.Image, true
		}
	}
	return nil, false
}

// Final returns the terminal result: the last enabled stage's output, or
// the pipeline input unchanged when no stage is enabled.
func (r *Result) Final() image.Image {
	if len(r.Stages) == 0 {
		return r.Input
	}
	return r.Stages[len(r.Stages)-1].Image
}

// ProcessingTime renders the total duration for display, e.g. "2.34s".
func (r *Result) ProcessingTime() string {
	return fmt.Sprintf("%.2fs", r.Total.Seconds())
}

// Run executes the pipeline on img with the given options.
func (p *Pipeline) Run(ctx context.Context, img image.Image, opts Options) (*Result, error) {
	return p.RunWithProgress(ctx, img, opts, nil)
}

// RunWithProgress is Run with per-stage progress reporting. The context is
// checked between stages, never mid-stage; when the configured timeout
// elapses the remaining stages are not started and the request fails with a
// deadline error.
func (p *Pipeline) RunWithProgress(ctx context.Context, img image.Image, opts Options, reporter StageReporter) (*Result, error) {
	if p == nil || p.registry == nil {
		return nil, errors.New("pipeline not initialized")
	}
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if reporter == nil {
		reporter = NoOpReporter{}
	}

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	totalStart := time.Now()
	res := &Result{Input: img}

	current := img
	if opts.Evaluation {
		slog.Debug("Generating degraded input", "severity", opts.Severity)
		degraded, err := p.degrader.Apply(img, opts.Severity)
		if err != nil {
			return nil, fmt.Errorf("degrade input: %w", err)
		}
		// The ground truth is always the original upload; the degraded
		// image, not the original, feeds the first enabled stage.
		res.GroundTruth = img
		res.Degraded = degraded
		current = degraded
	}

	stages := []struct {
		name     string
		enabled  bool
		enhancer model.Enhancer
	}{
		{StagePreprocessed, opts.Preprocess, p.pre},
		{StageDeblurred, opts.Deblur, p.deblurEnhancer(opts.FaceEnhance)},
		{StageEDSR, opts.EDSR, p.registry.EDSR},
	}

	for _, st := range stages {
		if !st.enabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("pipeline aborted before stage %q: %w", st.name, err)
		}
		reporter.StageStarted(st.name)
		slog.Debug("Running stage", "stage", st.name, "adapter", st.enhancer.Name())

		stageStart := time.Now()
		out, err := st.enhancer.Enhance(ctx, current)
		if err != nil {
			return nil, &StageError{Stage: st.name, Err: err}
		}
		if out == nil {
			return nil, &StageError{Stage: st.name, Err: errors.New("adapter returned no image")}
		}
		dur := time.Since(stageStart)
		reporter.StageCompleted(st.name, dur)
		slog.Debug("Stage completed", "stage", st.name, "duration_ms", dur.Milliseconds())

		res.Stages = append(res.Stages, StageOutput{Name: st.name, Image: out, Duration: dur})
		current = out
	}

	if opts.Evaluation {
		if err := p.evaluate(res); err != nil {
			return nil, err
		}
	}

	res.Total = time.Since(totalStart)
	slog.Debug("Pipeline completed",
		"stages", len(res.Stages),
		"evaluation", opts.Evaluation,
		"total_ms", res.Total.Milliseconds())
	return res, nil
}

// evaluate scores the degraded input and every stage output against the
// ground truth. Records only depend on one image pair each, so they are
// computed concurrently.
func (p *Pipeline) evaluate(res *Result) error {
	type job struct {
		key string
		img image.Image
	}
	jobs := []job{{DegradedKey, res.Degraded}}
	for _, s := range res.Stages {
		jobs = append(jobs, job{s.Name, s.Image})
	}

	res.Metrics = make(map[string]quality.Record, len(jobs))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, j := range jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := quality.Evaluate(j.img, res.GroundTruth)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("metrics for %q: %w", j.key, err)
				}
				return
			}
			res.Metrics[j.key] = rec
		}()
	}
	wg.Wait()
	if firstErr != nil {
		return firstErr
	}
	return nil
}
