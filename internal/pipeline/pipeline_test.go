package pipeline

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixel-revival/revive/internal/quality"
	"github.com/pixel-revival/revive/internal/testutil"
)

func stubPipeline(t *testing.T, edsr, realesrgan, gfpgan *testutil.StubEnhancer) *Pipeline {
	t.Helper()
	pl, err := NewBuilder().
		WithRegistry(testutil.StubRegistry(edsr, realesrgan, gfpgan)).
		WithTimeout(0).
		Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = pl.Close() })
	return pl
}

func identityStubs() (edsr, realesrgan, gfpgan *testutil.StubEnhancer) {
	return &testutil.StubEnhancer{StageName: "edsr"},
		&testutil.StubEnhancer{StageName: "realesrgan"},
		&testutil.StubEnhancer{StageName: "gfpgan"}
}

func TestRunPassthroughWhenAllStagesDisabled(t *testing.T) {
	edsr, esrgan, gfpgan := identityStubs()
	pl := stubPipeline(t, edsr, esrgan, gfpgan)

	img := testutil.GradientImage(testutil.SmallSize)
	res, err := pl.Run(context.Background(), img, Options{})
	require.NoError(t, err)

	assert.Empty(t, res.Stages)
	assert.Same(t, image.Image(img), res.Final())
	assert.Zero(t, edsr.Calls)
	assert.Zero(t, esrgan.Calls)
}

func TestRunStageOrderAndSelection(t *testing.T) {
	edsr, esrgan, gfpgan := identityStubs()
	pl := stubPipeline(t, edsr, esrgan, gfpgan)

	img := testutil.GradientImage(testutil.SmallSize)
	res, err := pl.Run(context.Background(), img, Options{Preprocess: true, Deblur: true, EDSR: true})
	require.NoError(t, err)

	require.Len(t, res.Stages, 3)
	assert.Equal(t, StagePreprocessed, res.Stages[0].Name)
	assert.Equal(t, StageDeblurred, res.Stages[1].Name)
	assert.Equal(t, StageEDSR, res.Stages[2].Name)
	assert.Equal(t, 1, esrgan.Calls)
	assert.Equal(t, 1, edsr.Calls)
	assert.Zero(t, gfpgan.Calls)
}

func TestRunFaceEnhanceUsesFaceModel(t *testing.T) {
	edsr, esrgan, gfpgan := identityStubs()
	pl := stubPipeline(t, edsr, esrgan, gfpgan)

	img := testutil.GradientImage(testutil.SmallSize)
	_, err := pl.Run(context.Background(), img, Options{Deblur: true, FaceEnhance: true})
	require.NoError(t, err)

	assert.Equal(t, 1, gfpgan.Calls)
	assert.Zero(t, esrgan.Calls)
}

func TestRunStageDimensions(t *testing.T) {
	edsr := testutil.UpscaleEnhancer("edsr", 4)
	_, esrgan, gfpgan := identityStubs()
	pl := stubPipeline(t, edsr, esrgan, gfpgan)

	img := testutil.GradientImage(testutil.ImageSize{Width: 100, Height: 100})
	res, err := pl.Run(context.Background(), img, Options{Preprocess: true, EDSR: true})
	require.NoError(t, err)

	pre, ok := res.Stage(StagePreprocessed)
	require.True(t, ok)
	assert.Equal(t, 100, pre.Bounds().Dx())
	assert.Equal(t, 100, pre.Bounds().Dy())

	out, ok := res.Stage(StageEDSR)
	require.True(t, ok)
	assert.Equal(t, 400, out.Bounds().Dx())
	assert.Equal(t, 400, out.Bounds().Dy())

	_, ok = res.Stage(StageDeblurred)
	assert.False(t, ok)
}

func TestRunStageFailureAborts(t *testing.T) {
	boom := errors.New("inference exploded")
	edsr, esrgan, gfpgan := identityStubs()
	esrgan.Fn = func(image.Image) (image.Image, error) { return nil, boom }
	pl := stubPipeline(t, edsr, esrgan, gfpgan)

	img := testutil.GradientImage(testutil.SmallSize)
	_, err := pl.Run(context.Background(), img, Options{Deblur: true, EDSR: true})
	require.Error(t, err)

	assert.True(t, IsStageError(err))
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, edsr.Calls, "later stages must not run after a failure")
}

func TestRunRejectsInvalidOptions(t *testing.T) {
	edsr, esrgan, gfpgan := identityStubs()
	pl := stubPipeline(t, edsr, esrgan, gfpgan)

	img := testutil.GradientImage(testutil.SmallSize)
	_, err := pl.Run(context.Background(), img, Options{FaceEnhance: true})
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestRunNilImage(t *testing.T) {
	edsr, esrgan, gfpgan := identityStubs()
	pl := stubPipeline(t, edsr, esrgan, gfpgan)

	_, err := pl.Run(context.Background(), nil, Options{})
	assert.Error(t, err)
}

func TestRunEvaluationMode(t *testing.T) {
	edsr := testutil.UpscaleEnhancer("edsr", 4)
	_, esrgan, gfpgan := identityStubs()
	pl := stubPipeline(t, edsr, esrgan, gfpgan)

	img := testutil.GradientImage(testutil.ImageSize{Width: 256, Height: 256})
	opts, err := ParseOptions(false, false, true, false, true, "heavy")
	require.NoError(t, err)

	res, err := pl.Run(context.Background(), img, opts)
	require.NoError(t, err)

	// Ground truth is the untouched upload; the degraded copy feeds the
	// stages. Heavy degradation downscales 4x.
	assert.Same(t, image.Image(img), res.GroundTruth)
	require.NotNil(t, res.Degraded)
	assert.Equal(t, 64, res.Degraded.Bounds().Dx())
	assert.Equal(t, 64, res.Degraded.Bounds().Dy())

	out, ok := res.Stage(StageEDSR)
	require.True(t, ok)
	assert.Equal(t, 256, out.Bounds().Dx())

	require.Contains(t, res.Metrics, DegradedKey)
	require.Contains(t, res.Metrics, StageEDSR)
	assert.NotContains(t, res.Metrics, StageDeblurred)

	for key, rec := range res.Metrics {
		assert.Greater(t, rec.PSNR, 0.0, "metric %s", key)
		assert.LessOrEqual(t, rec.PSNR, quality.PSNRCap, "metric %s", key)
	}
}

// A smooth fixture and a denoising 4x upscaler: the stub removes the noise
// the degradation injected, so the restored output must score strictly
// better than the raw degraded input. A plain resampling stub would tie
// with the evaluator's own upsample of the degraded image.
func TestRunEvaluationRestorationImproves(t *testing.T) {
	edsr := testutil.DenoisingUpscaleEnhancer("edsr", 4)
	_, esrgan, gfpgan := identityStubs()
	pl := stubPipeline(t, edsr, esrgan, gfpgan)

	img := testutil.GradientImage(testutil.ImageSize{Width: 256, Height: 256})
	opts, err := ParseOptions(false, false, true, false, true, "heavy")
	require.NoError(t, err)

	res, err := pl.Run(context.Background(), img, opts)
	require.NoError(t, err)

	degraded := res.Metrics[DegradedKey]
	restored := res.Metrics[StageEDSR]
	assert.Greater(t, restored.PSNR, degraded.PSNR)
}

func TestRunDeterministicDegradation(t *testing.T) {
	build := func() *Pipeline {
		edsr, esrgan, gfpgan := identityStubs()
		return stubPipeline(t, edsr, esrgan, gfpgan)
	}
	img := testutil.TexturedImage(testutil.MediumSize, 5)
	opts, err := ParseOptions(false, false, false, false, true, "medium")
	require.NoError(t, err)

	a, err := build().Run(context.Background(), img, opts)
	require.NoError(t, err)
	b, err := build().Run(context.Background(), img, opts)
	require.NoError(t, err)

	assert.Equal(t, a.Metrics[DegradedKey], b.Metrics[DegradedKey])
}

func TestRunTimeoutBetweenStages(t *testing.T) {
	edsr, esrgan, gfpgan := identityStubs()
	esrgan.Fn = func(img image.Image) (image.Image, error) {
		time.Sleep(50 * time.Millisecond)
		return img, nil
	}
	pl, err := NewBuilder().
		WithRegistry(testutil.StubRegistry(edsr, esrgan, gfpgan)).
		WithTimeout(10 * time.Millisecond).
		Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = pl.Close() })

	img := testutil.GradientImage(testutil.SmallSize)
	_, err = pl.Run(context.Background(), img, Options{Deblur: true, EDSR: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, edsr.Calls)
}

func TestCloseLeavesInjectedRegistryOpen(t *testing.T) {
	edsr, esrgan, gfpgan := identityStubs()
	pl, err := NewBuilder().
		WithRegistry(testutil.StubRegistry(edsr, esrgan, gfpgan)).
		Build()
	require.NoError(t, err)

	require.NoError(t, pl.Close())
	assert.False(t, edsr.Closed)
	assert.False(t, esrgan.Closed)
}

func TestResultProcessingTimeFormat(t *testing.T) {
	res := &Result{Total: 2340 * time.Millisecond}
	assert.Equal(t, "2.34s", res.ProcessingTime())
}

type recordingReporter struct {
	started   []string
	completed []string
}

func (r *recordingReporter) StageStarted(name string) { r.started = append(r.started, name) }
func (r *recordingReporter) StageCompleted(name string, _ time.Duration) {
	r.completed = append(r.completed, name)
}

func TestRunWithProgressReportsStages(t *testing.T) {
	edsr, esrgan, gfpgan := identityStubs()
	pl := stubPipeline(t, edsr, esrgan, gfpgan)

	rep := &recordingReporter{}
	img := testutil.GradientImage(testutil.SmallSize)
	_, err := pl.RunWithProgress(context.Background(), img,
		Options{Preprocess: true, EDSR: true}, rep)
	require.NoError(t, err)

	assert.Equal(t, []string{StagePreprocessed, StageEDSR}, rep.started)
	assert.Equal(t, rep.started, rep.completed)
}
