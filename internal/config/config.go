package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/pixel-revival/revive/internal/model"
	"github.com/pixel-revival/revive/internal/pipeline"
	"github.com/pixel-revival/revive/internal/preprocess"
)

// DefaultConfig returns the configuration defaults used when neither the
// config file nor environment variables set a value.
func DefaultConfig() *Config {
	return &Config{
		ModelsDir: model.DefaultModelsDir,
		LogLevel:  "info",
		Verbose:   false,
		Pipeline: PipelineConfig{
			NumThreads: 0,
			Preprocess: PreprocessConfig{
				ClipLimit: preprocess.DefaultClipLimit,
				TileGrid:  preprocess.DefaultTileGrid,
				Gamma:     1.0,
			},
			DegradationSeed:  1,
			TimeoutSec:       120,
			WarmupIterations: 0,
		},
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			CORSOrigin:       "*",
			MaxUploadMB:      50,
			TimeoutSec:       300,
			ShutdownTimeout:  10,
			ArtifactDir:      "artifacts",
			RetentionMinutes: 60,
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var problems []string

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error", "":
	default:
		problems = append(problems, fmt.Sprintf("log_level: unknown level %q", c.LogLevel))
	}

	if c.Pipeline.NumThreads < 0 {
		problems = append(problems, "pipeline.num_threads: must not be negative")
	}
	if c.Pipeline.Preprocess.ClipLimit <= 0 {
		problems = append(problems, "pipeline.preprocess.clip_limit: must be positive")
	}
	if c.Pipeline.Preprocess.TileGrid < 1 {
		problems = append(problems, "pipeline.preprocess.tile_grid: must be at least 1")
	}
	if c.Pipeline.Preprocess.Gamma <= 0 {
		problems = append(problems, "pipeline.preprocess.gamma: must be positive")
	}
	if c.Pipeline.TimeoutSec < 0 {
		problems = append(problems, "pipeline.timeout_sec: must not be negative")
	}
	if c.Pipeline.WarmupIterations < 0 {
		problems = append(problems, "pipeline.warmup_iterations: must not be negative")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port: %d out of range", c.Server.Port))
	}
	if c.Server.MaxUploadMB < 1 {
		problems = append(problems, "server.max_upload_mb: must be at least 1")
	}
	if c.Server.RetentionMinutes < 1 {
		problems = append(problems, "server.retention_minutes: must be at least 1")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ToPipelineConfig converts the loaded settings into the pipeline package's
// config type.
func (c *Config) ToPipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.ModelsDir = model.GetModelsDir(c.ModelsDir)
	cfg.NumThreads = c.Pipeline.NumThreads
	cfg.Preprocess = preprocess.Config{
		ClipLimit: c.Pipeline.Preprocess.ClipLimit,
		TileGrid:  c.Pipeline.Preprocess.TileGrid,
		Gamma:     c.Pipeline.Preprocess.Gamma,
	}
	cfg.DegradationSeed = c.Pipeline.DegradationSeed
	cfg.Timeout = time.Duration(c.Pipeline.TimeoutSec) * time.Second
	cfg.WarmupIterations = c.Pipeline.WarmupIterations
	return cfg
}

// Retention returns the artifact retention window as a duration.
func (c *ServerConfig) Retention() time.Duration {
	return time.Duration(c.RetentionMinutes) * time.Minute
}
