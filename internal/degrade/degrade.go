// Package degrade synthesizes low-quality inputs from clean images for
// evaluation mode. A clean upload is pushed through a capture/compression
// style chain (gaussian blur, sensor noise, JPEG artifacts, downscaling) so
// the restoration pipeline can be scored against a known ground truth.
package degrade

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"math/rand"
	"strings"

	"github.com/disintegration/imaging"
)

// Severity selects one of the degradation presets.
type Severity string

const (
	SeverityLight  Severity = "light"
	SeverityMedium Severity = "medium"
	SeverityHeavy  Severity = "heavy"
)

// ParseSeverity validates a severity name from request input. Matching is
// case-insensitive and ignores surrounding whitespace.
func ParseSeverity(s string) (Severity, error) {
	normalized := Severity(strings.ToLower(strings.TrimSpace(s)))
	switch normalized {
	case SeverityLight, SeverityMedium, SeverityHeavy:
		return normalized, nil
	}
	return "", fmt.Errorf("unknown degradation type %q (expected light, medium or heavy)", s)
}

// Params are the knobs of one degradation recipe. A zero value for a field
// disables that operation.
type Params struct {
	BlurSigma   float64 // gaussian blur sigma
	NoiseSigma  float64 // additive gaussian noise stddev, 0-255 scale
	JPEGQuality int     // lossy compression quality, 0 disables
	Downscale   int     // downscale factor, <=1 disables
}

// presetParams returns the recipe for a severity level. The presets are
// ordered: each level blurs harder, adds more noise, compresses harder and
// drops more resolution than the one before it, so PSNR against the clean
// image decreases strictly with severity.
func presetParams(s Severity) Params {
	switch s {
	case SeverityMedium:
		return Params{BlurSigma: 1.6, NoiseSigma: 10, JPEGQuality: 75, Downscale: 2}
	case SeverityHeavy:
		return Params{BlurSigma: 2.4, NoiseSigma: 12, JPEGQuality: 60, Downscale: 4}
	default:
		return Params{BlurSigma: 1.0, NoiseSigma: 8}
	}
}

// Generator degrades clean images. The noise source is seeded so a given
// generator produces the same degraded image for the same input.
type Generator struct {
	seed int64
}

// NewGenerator creates a degradation generator with the given noise seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{seed: seed}
}

// Apply degrades img with the preset for the given severity. The returned
// image is always RGB at the same or smaller resolution than the input; the
// input is never mutated.
func (g *Generator) Apply(img image.Image, severity Severity) (*image.NRGBA, error) {
	return g.ApplyParams(img, presetParams(severity))
}

// ApplyParams degrades img with an explicit recipe. Operations run in the
// fixed order blur, noise, compression, downscale.
func (g *Generator) ApplyParams(img image.Image, p Params) (*image.NRGBA, error) {
	if img == nil {
		return nil, fmt.Errorf("degrade: nil image")
	}
	out := imaging.Clone(img)
	if p.BlurSigma > 0 {
		out = imaging.Blur(out, p.BlurSigma)
	}
	if p.NoiseSigma > 0 {
		out = addNoise(out, p.NoiseSigma, g.seed)
	}
	if p.JPEGQuality > 0 {
		var err error
		out, err = jpegRoundTrip(out, p.JPEGQuality)
		if err != nil {
			return nil, err
		}
	}
	if p.Downscale > 1 {
		b := out.Bounds()
		w := maxInt(1, b.Dx()/p.Downscale)
		h := maxInt(1, b.Dy()/p.Downscale)
		// Lanczos keeps downscaling reproducible and high quality.
		out = imaging.Resize(out, w, h, imaging.Lanczos)
	}
	return out, nil
}

// addNoise adds seeded additive gaussian noise to every RGB channel.
func addNoise(img *image.NRGBA, sigma float64, seed int64) *image.NRGBA {
	rng := rand.New(rand.NewSource(seed))
	out := imaging.Clone(img)
	for i := 0; i < len(out.Pix); i += 4 {
		for c := range 3 {
			v := float64(out.Pix[i+c]) + rng.NormFloat64()*sigma
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			out.Pix[i+c] = uint8(v)
		}
	}
	return out
}

// jpegRoundTrip encodes to JPEG at the given quality and decodes the result,
// leaving real compression artifacts in the raster.
func jpegRoundTrip(img *image.NRGBA, quality int) (*image.NRGBA, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("degrade: jpeg encode: %w", err)
	}
	decoded, err := jpeg.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("degrade: jpeg decode: %w", err)
	}
	return imaging.Clone(decoded), nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
