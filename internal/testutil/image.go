// Package testutil provides synthetic image fixtures for tests. Restoration
// metrics behave very differently on smooth and textured content, so both
// kinds of fixture are available.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// ImageSize represents common image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Common test image sizes.
	SmallSize  = ImageSize{64, 64}
	MediumSize = ImageSize{256, 256}
	LargeSize  = ImageSize{512, 512}
)

// GradientImage creates a smooth diagonal gradient. Useful where a
// low-frequency image is wanted, e.g. when upscaling artifacts should stay
// small.
func GradientImage(size ImageSize) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size.Width, size.Height))
	for y := 0; y < size.Height; y++ {
		for x := 0; x < size.Width; x++ {
			r := uint8(255 * x / max(size.Width-1, 1))
			g := uint8(255 * y / max(size.Height-1, 1))
			b := uint8((int(r) + int(g)) / 2)
			img.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return img
}

// TexturedImage creates a high-frequency fixture: a checkerboard modulated
// by sinusoids plus seeded speckle. Degradations destroy detail here in
// proportion to their strength, which smooth fixtures do not guarantee.
func TexturedImage(size ImageSize, seed int64) *image.NRGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, size.Width, size.Height))
	for y := 0; y < size.Height; y++ {
		for x := 0; x < size.Width; x++ {
			base := 64
			if (x/4+y/4)%2 == 0 {
				base = 192
			}
			wave := 40 * math.Sin(float64(x)*0.7) * math.Cos(float64(y)*0.5)
			speckle := rng.Float64()*30 - 15
			v := clampInt(base+int(wave)+int(speckle), 0, 255)
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(v),
				G: uint8(clampInt(255-v, 0, 255)),
				B: uint8(clampInt(v/2+64, 0, 255)),
				A: 255,
			})
		}
	}
	return img
}

// UniformImage creates a single-color fixture.
func UniformImage(size ImageSize, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size.Width, size.Height))
	for y := 0; y < size.Height; y++ {
		for x := 0; x < size.Width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// EncodePNG encodes an image to PNG bytes, failing the test on error.
func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// SavePNG writes a fixture into the test's temp dir and returns its path.
func SavePNG(t *testing.T, img image.Image, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()
	require.NoError(t, png.Encode(f, img))
	return path
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
