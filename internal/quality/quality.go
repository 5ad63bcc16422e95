// Package quality scores restored images against a ground truth with the
// standard full-reference metrics PSNR, SSIM, MSE and MAE.
package quality

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/pixel-revival/revive/internal/imageutil"
)

// PSNRCap is the PSNR reported for identical images. A perfect
// reconstruction has MSE 0 and mathematically infinite PSNR; the value is
// capped at this sentinel so records stay JSON-encodable. Any computed PSNR
// above the cap is clamped to it as well.
const PSNRCap = 100.0

// Pixel values are compared on the 8-bit 0-255 range.
const maxPixelValue = 255.0

// SSIM uses the reference 11x11 gaussian window (sigma 1.5) with the
// standard stabilization constants C1=(K1*L)^2, C2=(K2*L)^2, K1=0.01,
// K2=0.03, L=255. The constants keep uniform-image denominators away from
// zero, so constant images never produce NaN.
const (
	ssimWindow = 11
	ssimSigma  = 1.5
	ssimC1     = (0.01 * maxPixelValue) * (0.01 * maxPixelValue)
	ssimC2     = (0.03 * maxPixelValue) * (0.03 * maxPixelValue)
)

// Record holds the metric values for one image pair.
type Record struct {
	PSNR float64 `json:"psnr"`
	SSIM float64 `json:"ssim"`
	MSE  float64 `json:"mse"`
	MAE  float64 `json:"mae"`
}

// ShapeError indicates an image pair that cannot be meaningfully compared:
// missing images or a resolution mismatch that resampling cannot resolve.
type ShapeError struct {
	Reason string
}

func (e *ShapeError) Error() string { return "metrics: " + e.Reason }

// IsShapeError reports whether err is (or wraps) a ShapeError.
func IsShapeError(err error) bool {
	var se *ShapeError
	return errors.As(err, &se)
}

// aspectTolerance is the allowed relative aspect-ratio deviation when
// deciding whether a resolution mismatch can be fixed by resampling.
// Integer downscales of odd dimensions shift the ratio slightly, so an
// exact match cannot be required.
const aspectTolerance = 0.02

// Evaluate computes all metrics between a candidate image and the ground
// truth. If resolutions differ but aspect ratios agree, the lower-resolution
// image is upsampled to the other's size with Lanczos before comparison.
// Incompatible shapes yield a ShapeError.
func Evaluate(candidate, truth image.Image) (Record, error) {
	if candidate == nil || truth == nil {
		return Record{}, &ShapeError{Reason: "nil image"}
	}
	a := imageutil.ToNRGBA(candidate)
	b := imageutil.ToNRGBA(truth)

	aw, ah := imageutil.Dimensions(a)
	bw, bh := imageutil.Dimensions(b)
	if aw < 1 || ah < 1 || bw < 1 || bh < 1 {
		return Record{}, &ShapeError{Reason: "empty image"}
	}

	if aw != bw || ah != bh {
		ra := float64(aw) / float64(ah)
		rb := float64(bw) / float64(bh)
		if math.Abs(ra-rb)/rb > aspectTolerance {
			return Record{}, &ShapeError{
				Reason: fmt.Sprintf("aspect ratio mismatch: %dx%d vs %dx%d", aw, ah, bw, bh),
			}
		}
		if aw*ah < bw*bh {
			a = imageutil.Upscale(a, bw, bh)
		} else {
			b = imageutil.Upscale(b, aw, ah)
		}
	}

	mse, mae := pixelErrors(a, b)
	rec := Record{
		MSE:  mse,
		MAE:  mae,
		PSNR: psnrFromMSE(mse),
		SSIM: ssim(a, b),
	}
	return rec, nil
}

// psnrFromMSE converts MSE on the 0-255 range to dB, applying the cap.
func psnrFromMSE(mse float64) float64 {
	if mse <= 0 {
		return PSNRCap
	}
	psnr := 20 * math.Log10(maxPixelValue/math.Sqrt(mse))
	if psnr > PSNRCap {
		return PSNRCap
	}
	return psnr
}

// pixelErrors computes MSE and MAE averaged over all pixels and RGB
// channels of two same-sized images.
func pixelErrors(a, b *image.NRGBA) (mse, mae float64) {
	w, h := imageutil.Dimensions(a)
	var sumSq, sumAbs float64
	for y := range h {
		for x := range w {
			ai := a.PixOffset(x, y)
			bi := b.PixOffset(x, y)
			for c := range 3 {
				d := float64(a.Pix[ai+c]) - float64(b.Pix[bi+c])
				sumSq += d * d
				sumAbs += math.Abs(d)
			}
		}
	}
	n := float64(w * h * 3)
	return sumSq / n, sumAbs / n
}
