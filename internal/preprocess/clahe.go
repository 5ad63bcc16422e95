// Package preprocess implements the contrast-enhancement stage that runs
// ahead of the neural restoration models. The main operation is CLAHE
// (contrast-limited adaptive histogram equalization) applied to the luma
// channel, which lifts local contrast without blowing out highlights the way
// plain histogram equalization does.
package preprocess

import (
	"context"
	"errors"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

const (
	// DefaultClipLimit matches the contrast clip used by the restoration
	// pipeline's preprocessing call.
	DefaultClipLimit = 1.5

	// DefaultTileGrid is the number of tiles per axis.
	DefaultTileGrid = 8

	histBins = 256
)

// Config holds preprocessing stage settings.
type Config struct {
	ClipLimit float64 // contrast clip limit, must be >= 1
	TileGrid  int     // tiles per axis for the adaptive grid
	Gamma     float64 // optional gamma correction, 0 disables
}

// DefaultConfig returns the stage defaults.
func DefaultConfig() Config {
	return Config{
		ClipLimit: DefaultClipLimit,
		TileGrid:  DefaultTileGrid,
		Gamma:     0,
	}
}

// Enhancer applies CLAHE (and optional gamma correction) to an image. It
// satisfies the model.Enhancer capability interface so the orchestrator can
// treat it like any other stage adapter.
type Enhancer struct {
	cfg Config
}

// New creates a preprocessing enhancer, falling back to defaults for
// out-of-range settings.
func New(cfg Config) *Enhancer {
	if cfg.ClipLimit < 1 {
		cfg.ClipLimit = DefaultClipLimit
	}
	if cfg.TileGrid < 2 {
		cfg.TileGrid = DefaultTileGrid
	}
	return &Enhancer{cfg: cfg}
}

// Name identifies the stage adapter.
func (e *Enhancer) Name() string { return "clahe" }

// Close is a no-op; the stage holds no model session.
func (e *Enhancer) Close() error { return nil }

// Enhance returns a contrast-enhanced copy of img. The input is not mutated.
func (e *Enhancer) Enhance(ctx context.Context, img image.Image) (image.Image, error) {
	if img == nil {
		return nil, errors.New("preprocess: nil image")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := CLAHE(img, e.cfg.ClipLimit, e.cfg.TileGrid)
	if e.cfg.Gamma > 0 && e.cfg.Gamma != 1.0 {
		out = Gamma(out, e.cfg.Gamma)
	}
	return out, nil
}

// CLAHE performs contrast-limited adaptive histogram equalization on the
// luma channel of img. The image is divided into a grid x grid tile layout;
// each tile gets a clipped, redistributed histogram mapping, and per-pixel
// values are bilinearly interpolated between the four surrounding tile
// mappings. Chroma is preserved by scaling RGB by the luma ratio.
func CLAHE(img image.Image, clipLimit float64, grid int) *image.NRGBA {
	src := imaging.Clone(img)
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return src
	}
	if grid > w {
		grid = w
	}
	if grid > h {
		grid = h
	}
	if grid < 1 {
		grid = 1
	}

	luma := make([]uint8, w*h)
	for y := range h {
		for x := range w {
			i := src.PixOffset(x, y)
			r := float64(src.Pix[i])
			g := float64(src.Pix[i+1])
			bb := float64(src.Pix[i+2])
			luma[y*w+x] = uint8(clamp255(0.299*r + 0.587*g + 0.114*bb))
		}
	}

	luts := buildTileLUTs(luma, w, h, grid, clipLimit)

	tileW := float64(w) / float64(grid)
	tileH := float64(h) / float64(grid)
	out := imaging.Clone(src)
	for y := range h {
		for x := range w {
			v := luma[y*w+x]
			mapped := interpolateLUT(luts, grid, tileW, tileH, x, y, v)
			if v == 0 {
				continue
			}
			scale := float64(mapped) / float64(v)
			i := out.PixOffset(x, y)
			out.Pix[i] = uint8(clamp255(float64(out.Pix[i]) * scale))
			out.Pix[i+1] = uint8(clamp255(float64(out.Pix[i+1]) * scale))
			out.Pix[i+2] = uint8(clamp255(float64(out.Pix[i+2]) * scale))
		}
	}
	return out
}

// buildTileLUTs computes one clipped-equalization lookup table per tile.
func buildTileLUTs(luma []uint8, w, h, grid int, clipLimit float64) [][]uint8 {
	luts := make([][]uint8, grid*grid)
	for ty := range grid {
		for tx := range grid {
			x0 := tx * w / grid
			x1 := (tx + 1) * w / grid
			y0 := ty * h / grid
			y1 := (ty + 1) * h / grid
			luts[ty*grid+tx] = tileLUT(luma, w, x0, x1, y0, y1, clipLimit)
		}
	}
	return luts
}

func tileLUT(luma []uint8, w, x0, x1, y0, y1 int, clipLimit float64) []uint8 {
	var hist [histBins]int
	n := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			hist[luma[y*w+x]]++
			n++
		}
	}
	lut := make([]uint8, histBins)
	if n == 0 {
		for v := range histBins {
			lut[v] = uint8(v)
		}
		return lut
	}

	// Clip each bin at clipLimit times the uniform bin height and hand the
	// excess back evenly across all bins. This caps the slope of the CDF and
	// with it the amount of contrast amplification.
	clip := int(clipLimit * float64(n) / histBins)
	if clip < 1 {
		clip = 1
	}
	excess := 0
	for v := range histBins {
		if hist[v] > clip {
			excess += hist[v] - clip
			hist[v] = clip
		}
	}
	redist := excess / histBins
	for v := range histBins {
		hist[v] += redist
	}
	// Spread the leftover at a fixed stride across the bins instead of
	// piling it into the lowest ones, which skews small tiles.
	if rem := excess % histBins; rem > 0 {
		step := histBins / rem
		if step < 1 {
			step = 1
		}
		for v := 0; v < histBins && rem > 0; v += step {
			hist[v]++
			rem--
		}
	}

	// Anchor the mapping at the first occupied bin so a flat tile maps
	// to roughly itself instead of saturating.
	cdfMin := 0
	for v := range histBins {
		if hist[v] > 0 {
			cdfMin = hist[v]
			break
		}
	}
	if cdfMin >= n {
		for v := range histBins {
			lut[v] = uint8(v)
		}
		return lut
	}
	cdf := 0
	for v := range histBins {
		cdf += hist[v]
		lut[v] = uint8(clamp255(math.Round(float64(cdf-cdfMin) * 255.0 / float64(n-cdfMin))))
	}
	return lut
}

// interpolateLUT applies bilinear interpolation between the four tile
// mappings surrounding pixel (x, y).
func interpolateLUT(luts [][]uint8, grid int, tileW, tileH float64, x, y int, v uint8) uint8 {
	fx := (float64(x)+0.5)/tileW - 0.5
	fy := (float64(y)+0.5)/tileH - 0.5
	tx0 := int(math.Floor(fx))
	ty0 := int(math.Floor(fy))
	wx := fx - float64(tx0)
	wy := fy - float64(ty0)

	tx1 := clampIdx(tx0+1, grid)
	ty1 := clampIdx(ty0+1, grid)
	tx0 = clampIdx(tx0, grid)
	ty0 = clampIdx(ty0, grid)

	v00 := float64(luts[ty0*grid+tx0][v])
	v01 := float64(luts[ty0*grid+tx1][v])
	v10 := float64(luts[ty1*grid+tx0][v])
	v11 := float64(luts[ty1*grid+tx1][v])

	top := v00*(1-wx) + v01*wx
	bot := v10*(1-wx) + v11*wx
	return uint8(clamp255(top*(1-wy) + bot*wy))
}

// Gamma applies gamma correction via a lookup table, following the
// convention of imaging.AdjustGamma: values above 1.0 lighten the image,
// values below darken it.
func Gamma(img image.Image, gamma float64) *image.NRGBA {
	if gamma <= 0 {
		gamma = 1.0
	}
	inv := 1.0 / gamma
	var lut [256]uint8
	for i := range 256 {
		lut[i] = uint8(clamp255(math.Pow(float64(i)/255.0, inv)*255.0 + 0.5))
	}
	out := imaging.Clone(img)
	for i := 0; i < len(out.Pix); i += 4 {
		out.Pix[i] = lut[out.Pix[i]]
		out.Pix[i+1] = lut[out.Pix[i+1]]
		out.Pix[i+2] = lut[out.Pix[i+2]]
	}
	return out
}

func clamp255(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

func clampIdx(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
