package quality

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixel-revival/revive/internal/testutil"
)

func TestEvaluateIdenticalImages(t *testing.T) {
	img := testutil.TexturedImage(testutil.MediumSize, 7)

	rec, err := Evaluate(img, img)
	require.NoError(t, err)

	assert.InDelta(t, 0.0, rec.MSE, 1e-9)
	assert.InDelta(t, 0.0, rec.MAE, 1e-9)
	assert.InDelta(t, PSNRCap, rec.PSNR, 1e-9)
	assert.InDelta(t, 1.0, rec.SSIM, 1e-9)
}

func TestEvaluateUniformImages(t *testing.T) {
	// Zero-variance inputs must not produce NaN from the SSIM variance terms.
	a := testutil.UniformImage(testutil.SmallSize, color.NRGBA{R: 128, G: 128, B: 128, A: 255})
	b := testutil.UniformImage(testutil.SmallSize, color.NRGBA{R: 120, G: 120, B: 120, A: 255})

	rec, err := Evaluate(a, b)
	require.NoError(t, err)

	assert.False(t, rec.SSIM != rec.SSIM, "SSIM must not be NaN")
	assert.Greater(t, rec.MSE, 0.0)
	assert.Less(t, rec.PSNR, PSNRCap)
}

func TestEvaluateDistinctImages(t *testing.T) {
	truth := testutil.TexturedImage(testutil.MediumSize, 7)
	other := testutil.TexturedImage(testutil.MediumSize, 8)

	rec, err := Evaluate(other, truth)
	require.NoError(t, err)

	assert.Greater(t, rec.MSE, 0.0)
	assert.Greater(t, rec.MAE, 0.0)
	assert.Less(t, rec.PSNR, PSNRCap)
	assert.Less(t, rec.SSIM, 1.0)
	assert.Greater(t, rec.SSIM, -1.0)
}

func TestEvaluateResamplesLowerResolution(t *testing.T) {
	truth := testutil.TexturedImage(testutil.ImageSize{Width: 256, Height: 256}, 7)
	candidate := testutil.TexturedImage(testutil.ImageSize{Width: 64, Height: 64}, 7)

	rec, err := Evaluate(candidate, truth)
	require.NoError(t, err)

	// Downsampled content compared after upsampling is imperfect but finite.
	assert.Greater(t, rec.PSNR, 0.0)
	assert.LessOrEqual(t, rec.PSNR, PSNRCap)
}

func TestEvaluateAspectMismatch(t *testing.T) {
	truth := testutil.TexturedImage(testutil.ImageSize{Width: 256, Height: 256}, 7)
	candidate := testutil.TexturedImage(testutil.ImageSize{Width: 256, Height: 128}, 7)

	_, err := Evaluate(candidate, truth)
	require.Error(t, err)
	assert.True(t, IsShapeError(err))
}

func TestEvaluateNilImages(t *testing.T) {
	img := testutil.GradientImage(testutil.SmallSize)

	_, err := Evaluate(nil, img)
	require.Error(t, err)

	_, err = Evaluate(img, nil)
	require.Error(t, err)
}

func TestPSNRMonotoneInMSE(t *testing.T) {
	low := psnrFromMSE(10)
	high := psnrFromMSE(100)
	assert.Greater(t, low, high)
}

func TestSSIMSymmetry(t *testing.T) {
	a := testutil.TexturedImage(testutil.MediumSize, 1)
	b := testutil.TexturedImage(testutil.MediumSize, 2)

	recAB, err := Evaluate(a, b)
	require.NoError(t, err)
	recBA, err := Evaluate(b, a)
	require.NoError(t, err)

	assert.InDelta(t, recAB.SSIM, recBA.SSIM, 1e-9)
}
