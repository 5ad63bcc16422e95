package config

// Config represents the complete configuration for the revive restoration
// application. It includes settings for all commands (enhance, degrade,
// evaluate, serve) and supports loading from configuration files,
// environment variables, and command-line flags.
type Config struct {
	// Global settings
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Pipeline configuration
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// PipelineConfig contains restoration pipeline settings.
type PipelineConfig struct {
	// Thread count per ONNX session, 0 lets the runtime decide
	NumThreads int `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`

	// Contrast enhancement settings
	Preprocess PreprocessConfig `mapstructure:"preprocess" yaml:"preprocess" json:"preprocess"`

	// Seed for synthetic degradation in evaluation mode
	DegradationSeed int64 `mapstructure:"degradation_seed" yaml:"degradation_seed" json:"degradation_seed"`

	// Per-request processing deadline in seconds
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`

	// Warmup iterations
	WarmupIterations int `mapstructure:"warmup_iterations" yaml:"warmup_iterations" json:"warmup_iterations"`
}

// PreprocessConfig contains CLAHE contrast enhancement settings.
type PreprocessConfig struct {
	ClipLimit float64 `mapstructure:"clip_limit" yaml:"clip_limit" json:"clip_limit"`
	TileGrid  int     `mapstructure:"tile_grid" yaml:"tile_grid" json:"tile_grid"`
	Gamma     float64 `mapstructure:"gamma" yaml:"gamma" json:"gamma"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host             string `mapstructure:"host" yaml:"host" json:"host"`
	Port             int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin       string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB      int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec       int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout  int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	ArtifactDir      string `mapstructure:"artifact_dir" yaml:"artifact_dir" json:"artifact_dir"`
	RetentionMinutes int    `mapstructure:"retention_minutes" yaml:"retention_minutes" json:"retention_minutes"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains optional per-client limits; zero disables a
// limit.
type RateLimitConfig struct {
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDayMB   int64 `mapstructure:"max_data_per_day_mb" yaml:"max_data_per_day_mb" json:"max_data_per_day_mb"`
}
