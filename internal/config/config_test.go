package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"negative threads", func(c *Config) { c.Pipeline.NumThreads = -1 }, "num_threads"},
		{"zero clip limit", func(c *Config) { c.Pipeline.Preprocess.ClipLimit = 0 }, "clip_limit"},
		{"zero tile grid", func(c *Config) { c.Pipeline.Preprocess.TileGrid = 0 }, "tile_grid"},
		{"negative gamma", func(c *Config) { c.Pipeline.Preprocess.Gamma = -0.5 }, "gamma"},
		{"port out of range", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"zero upload limit", func(c *Config) { c.Server.MaxUploadMB = 0 }, "max_upload_mb"},
		{"zero retention", func(c *Config) { c.Server.RetentionMinutes = 0 }, "retention_minutes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "loud"
	cfg.Server.Port = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "server.port")
}

func TestToPipelineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.TimeoutSec = 45
	cfg.Pipeline.DegradationSeed = 7
	cfg.Pipeline.Preprocess.ClipLimit = 2.5

	pc := cfg.ToPipelineConfig()
	assert.Equal(t, 45*time.Second, pc.Timeout)
	assert.Equal(t, int64(7), pc.DegradationSeed)
	assert.InDelta(t, 2.5, pc.Preprocess.ClipLimit, 1e-9)
	assert.NotEmpty(t, pc.ModelsDir)
}

func TestRetention(t *testing.T) {
	sc := ServerConfig{RetentionMinutes: 90}
	assert.Equal(t, 90*time.Minute, sc.Retention())
}
