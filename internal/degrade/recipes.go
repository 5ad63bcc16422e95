package degrade

import "fmt"

// Recipe names the additional degradation chains exposed by the CLI beyond
// the three evaluation presets.
type Recipe string

const (
	RecipeBicubic       Recipe = "bicubic"
	RecipeBlurDownscale Recipe = "blur_downscale"
	RecipeNoiseDown     Recipe = "noise_downscale"
	RecipeJPEGDown      Recipe = "jpeg_downscale"
	RecipeRealistic     Recipe = "realistic"
)

// RecipeParams resolves a recipe name to its parameter set. Severity preset
// names are accepted too, so the CLI can use a single flag for both.
func RecipeParams(name string, scale int) (Params, error) {
	if scale <= 1 {
		scale = 4
	}
	if sev, err := ParseSeverity(name); err == nil {
		return presetParams(sev), nil
	}
	switch Recipe(name) {
	case RecipeBicubic:
		return Params{Downscale: scale}, nil
	case RecipeBlurDownscale:
		return Params{BlurSigma: 2.0, Downscale: scale}, nil
	case RecipeNoiseDown:
		return Params{NoiseSigma: 10, Downscale: scale}, nil
	case RecipeJPEGDown:
		return Params{JPEGQuality: 50, Downscale: scale}, nil
	case RecipeRealistic:
		return Params{BlurSigma: 1.0, NoiseSigma: 5, JPEGQuality: 70, Downscale: scale}, nil
	}
	return Params{}, fmt.Errorf("unknown degradation recipe %q", name)
}
