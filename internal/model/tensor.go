package model

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/pixel-revival/revive/internal/mempool"
)

// imageToTensor converts an image to an NCHW float32 tensor on the 0-255
// range, the convention the restoration networks were exported with. The
// returned slice comes from the buffer pool; callers hand it back with
// mempool.PutFloat32 once the input tensor is destroyed.
func imageToTensor(img image.Image) ([]float32, int, int) {
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()
	w, h := b.Dx(), b.Dy()

	data := mempool.GetFloat32(3 * h * w)
	plane := h * w
	for y := range h {
		for x := range w {
			i := nrgba.PixOffset(x, y)
			idx := y*w + x
			data[idx] = float32(nrgba.Pix[i])
			data[plane+idx] = float32(nrgba.Pix[i+1])
			data[2*plane+idx] = float32(nrgba.Pix[i+2])
		}
	}
	return data, w, h
}

// tensorToImage converts an NCHW float32 tensor on the 0-255 range back to
// an image, clamping out-of-range activations.
func tensorToImage(data []float32, width, height int) (*image.NRGBA, error) {
	plane := width * height
	if len(data) < 3*plane {
		return nil, fmt.Errorf("tensor too small: %d values for %dx%d RGB", len(data), width, height)
	}
	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			idx := y*width + x
			i := out.PixOffset(x, y)
			out.Pix[i] = clampByte(data[idx])
			out.Pix[i+1] = clampByte(data[plane+idx])
			out.Pix[i+2] = clampByte(data[2*plane+idx])
			out.Pix[i+3] = 0xff
		}
	}
	return out, nil
}

func clampByte(v float32) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
