// Package model wraps the pretrained restoration networks behind a small
// capability interface. The networks themselves (EDSR, Real-ESRGAN, GFPGAN)
// are pretrained ONNX models executed with ONNX Runtime; this package only
// handles session lifecycle and tensor conversion, never the architectures.
package model

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
)

// Enhancer is the capability interface every pipeline stage adapter
// implements: consume an image, return a new enhanced image. Implementations
// must be safe for concurrent use and must not mutate the input.
type Enhancer interface {
	Name() string
	Enhance(ctx context.Context, img image.Image) (image.Image, error)
	Close() error
}

// Config holds settings for one ONNX-backed enhancer.
type Config struct {
	ModelPath  string
	Scale      int // expected spatial upscale factor of the network
	NumThreads int
}

// Default model filenames under the models directory.
const (
	EDSRModelFile       = "edsr_baseline_x4.onnx"
	RealESRGANModelFile = "realesrgan_x4plus.onnx"
	GFPGANModelFile     = "gfpgan_v1.3.onnx"
)

// EnvModelsDir is the environment variable overriding the models directory.
const EnvModelsDir = "REVIVE_MODELS_DIR"

// DefaultModelsDir is the fallback models directory.
const DefaultModelsDir = "models"

// GetModelsDir resolves the models directory, preferring the explicit value,
// then the environment, then the default.
func GetModelsDir(dir string) string {
	if dir != "" {
		return dir
	}
	if env := os.Getenv(EnvModelsDir); env != "" {
		return env
	}
	return DefaultModelsDir
}

// NewEDSR creates the EDSR super-resolution adapter (4x post-processing
// stage).
func NewEDSR(cfg Config) (Enhancer, error) {
	return newSuperResolver("edsr", cfg)
}

// NewRealESRGAN creates the Real-ESRGAN adapter used by the deblur stage.
func NewRealESRGAN(cfg Config) (Enhancer, error) {
	return newSuperResolver("realesrgan", cfg)
}

// NewGFPGAN creates the GFPGAN face-restoration adapter applied after
// Real-ESRGAN when face enhancement is requested.
func NewGFPGAN(cfg Config) (Enhancer, error) {
	return newSuperResolver("gfpgan", cfg)
}

// Registry bundles the adapters the orchestrator selects from by
// configuration.
type Registry struct {
	EDSR       Enhancer
	RealESRGAN Enhancer
	GFPGAN     Enhancer
}

// RegistryConfig holds per-network model settings.
type RegistryConfig struct {
	ModelsDir  string
	NumThreads int
}

// NewRegistry loads all three network adapters from the models directory.
// Loading fails if any model file is missing; sessions already opened are
// closed on the way out.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	dir := GetModelsDir(cfg.ModelsDir)
	edsr, err := NewEDSR(Config{
		ModelPath:  filepath.Join(dir, EDSRModelFile),
		Scale:      4,
		NumThreads: cfg.NumThreads,
	})
	if err != nil {
		return nil, fmt.Errorf("init edsr: %w", err)
	}
	esrgan, err := NewRealESRGAN(Config{
		ModelPath:  filepath.Join(dir, RealESRGANModelFile),
		Scale:      4,
		NumThreads: cfg.NumThreads,
	})
	if err != nil {
		_ = edsr.Close()
		return nil, fmt.Errorf("init realesrgan: %w", err)
	}
	gfpgan, err := NewGFPGAN(Config{
		ModelPath:  filepath.Join(dir, GFPGANModelFile),
		Scale:      4,
		NumThreads: cfg.NumThreads,
	})
	if err != nil {
		_ = edsr.Close()
		_ = esrgan.Close()
		return nil, fmt.Errorf("init gfpgan: %w", err)
	}
	return &Registry{EDSR: edsr, RealESRGAN: esrgan, GFPGAN: gfpgan}, nil
}

// Close releases all model sessions.
func (r *Registry) Close() error {
	var firstErr error
	for _, e := range []Enhancer{r.EDSR, r.RealESRGAN, r.GFPGAN} {
		if e == nil {
			continue
		}
		if err := e.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
