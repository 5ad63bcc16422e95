package quality

import (
	"image"
	"math"

	"github.com/pixel-revival/revive/internal/imageutil"
)

// ssim computes the mean structural similarity over the three RGB channels
// of two same-sized images. Per channel, local means, variances and
// covariance are estimated with a separable gaussian filter, the SSIM map is
// averaged over all pixels, and the channel results are averaged.
func ssim(a, b *image.NRGBA) float64 {
	w, h := imageutil.Dimensions(a)
	kernel := gaussianKernel(ssimWindow, ssimSigma)

	var total float64
	for c := range 3 {
		pa := channelPlane(a, w, h, c)
		pb := channelPlane(b, w, h, c)
		total += ssimPlane(pa, pb, w, h, kernel)
	}
	return total / 3
}

// ssimPlane computes mean SSIM for one channel plane pair.
func ssimPlane(a, b []float64, w, h int, kernel []float64) float64 {
	mu1 := gaussianFilter(a, w, h, kernel)
	mu2 := gaussianFilter(b, w, h, kernel)
	aa := multiply(a, a)
	bb := multiply(b, b)
	ab := multiply(a, b)
	e11 := gaussianFilter(aa, w, h, kernel)
	e22 := gaussianFilter(bb, w, h, kernel)
	e12 := gaussianFilter(ab, w, h, kernel)

	var sum float64
	for i := range mu1 {
		m1, m2 := mu1[i], mu2[i]
		var1 := e11[i] - m1*m1
		var2 := e22[i] - m2*m2
		cov := e12[i] - m1*m2
		num := (2*m1*m2 + ssimC1) * (2*cov + ssimC2)
		den := (m1*m1 + m2*m2 + ssimC1) * (var1 + var2 + ssimC2)
		sum += num / den
	}
	return sum / float64(len(mu1))
}

func multiply(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] * b[i]
	}
	return out
}

// channelPlane extracts one RGB channel as a float64 plane.
func channelPlane(img *image.NRGBA, w, h, c int) []float64 {
	out := make([]float64, w*h)
	for y := range h {
		for x := range w {
			out[y*w+x] = float64(img.Pix[img.PixOffset(x, y)+c])
		}
	}
	return out
}

// gaussianKernel returns a normalized 1-D gaussian kernel of the given size.
func gaussianKernel(size int, sigma float64) []float64 {
	k := make([]float64, size)
	half := size / 2
	var sum float64
	for i := range size {
		d := float64(i - half)
		k[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range size {
		k[i] /= sum
	}
	return k
}

// gaussianFilter applies a separable gaussian convolution with clamped
// edges. Clamping keeps border statistics well defined without shrinking
// the SSIM map.
func gaussianFilter(plane []float64, w, h int, kernel []float64) []float64 {
	half := len(kernel) / 2

	tmp := make([]float64, w*h)
	for y := range h {
		row := y * w
		for x := range w {
			var acc float64
			for k, kv := range kernel {
				xx := clampInt(x+k-half, 0, w-1)
				acc += plane[row+xx] * kv
			}
			tmp[row+x] = acc
		}
	}

	out := make([]float64, w*h)
	for y := range h {
		for x := range w {
			var acc float64
			for k, kv := range kernel {
				yy := clampInt(y+k-half, 0, h-1)
				acc += tmp[yy*w+x] * kv
			}
			out[y*w+x] = acc
		}
	}
	return out
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
