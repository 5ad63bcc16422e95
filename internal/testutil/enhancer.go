package testutil

import (
	"context"
	"image"

	"github.com/disintegration/imaging"

	"github.com/pixel-revival/revive/internal/model"
)

// StubEnhancer is a model.Enhancer double for tests that cannot load real
// ONNX sessions. Fn defaults to identity.
type StubEnhancer struct {
	StageName string
	Fn        func(image.Image) (image.Image, error)
	Calls     int
	Closed    bool
}

func (s *StubEnhancer) Name() string { return s.StageName }

func (s *StubEnhancer) Enhance(_ context.Context, img image.Image) (image.Image, error) {
	s.Calls++
	if s.Fn == nil {
		return img, nil
	}
	return s.Fn(img)
}

func (s *StubEnhancer) Close() error {
	s.Closed = true
	return nil
}

// UpscaleEnhancer returns a stub that upscales by the given factor with a
// touch of smoothing, a crude stand-in for a super-resolution model.
func UpscaleEnhancer(name string, scale int) *StubEnhancer {
	return &StubEnhancer{
		StageName: name,
		Fn: func(img image.Image) (image.Image, error) {
			b := img.Bounds()
			up := imaging.Resize(img, b.Dx()*scale, b.Dy()*scale, imaging.Lanczos)
			return imaging.Blur(up, 0.5), nil
		},
	}
}

// DenoisingUpscaleEnhancer returns a stub that suppresses pixel noise
// before upscaling. Unlike UpscaleEnhancer it actually cleans up a degraded
// input instead of just resampling it, the way a trained restoration model
// would.
func DenoisingUpscaleEnhancer(name string, scale int) *StubEnhancer {
	return &StubEnhancer{
		StageName: name,
		Fn: func(img image.Image) (image.Image, error) {
			b := img.Bounds()
			den := imaging.Blur(img, 1.2)
			return imaging.Resize(den, b.Dx()*scale, b.Dy()*scale, imaging.Lanczos), nil
		},
	}
}

// StubRegistry assembles a model.Registry from stub enhancers.
func StubRegistry(edsr, realesrgan, gfpgan model.Enhancer) *model.Registry {
	return &model.Registry{
		EDSR:       edsr,
		RealESRGAN: realesrgan,
		GFPGAN:     gfpgan,
	}
}
