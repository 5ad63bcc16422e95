package server

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pixel-revival/revive/internal/pipeline"
	"github.com/pixel-revival/revive/internal/quality"
	"github.com/pixel-revival/revive/internal/storage"
)

// pipelineInterface defines the methods needed by the server from a pipeline.
type pipelineInterface interface {
	Run(ctx context.Context, img image.Image, opts pipeline.Options) (*pipeline.Result, error)
	RunWithProgress(ctx context.Context, img image.Image, opts pipeline.Options,
		reporter pipeline.StageReporter) (*pipeline.Result, error)
	Info() map[string]interface{}
	Close() error
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline    pipelineInterface
	store       *storage.Store
	rateLimiter *RateLimiter
	corsOrigin  string
	maxUploadMB int64
	timeoutSec  int
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigin     string
	MaxUploadMB    int64
	TimeoutSec     int
	ArtifactDir    string
	Retention      time.Duration
	PipelineConfig pipeline.Config
	RateLimit      RateLimitConfig
}

// RateLimitConfig holds optional per-client limits. Zero values disable the
// corresponding limit.
type RateLimitConfig struct {
	RequestsPerMinute int
	MaxRequestsPerDay int
	MaxDataPerDay     int64
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

type ModelsResponse struct {
	Pipeline map[string]interface{} `json:"pipeline"`
	Stages   []string               `json:"stages"`
}

// PipelineResponse is the JSON body of a /api/pipeline request. Stage
// outputs are base64 PNG data URLs, present only for enabled stages;
// GroundTruth, Degraded, and Metrics appear only in evaluation mode.
type PipelineResponse struct {
	Success        bool                      `json:"success"`
	GroundTruth    string                    `json:"ground_truth,omitempty"`
	Degraded       string                    `json:"degraded,omitempty"`
	Preprocessed   string                    `json:"preprocessed,omitempty"`
	Deblurred      string                    `json:"deblurred,omitempty"`
	EDSR           string                    `json:"edsr,omitempty"`
	Metrics        map[string]quality.Record `json:"metrics,omitempty"`
	ProcessingTime string                    `json:"processing_time,omitempty"`
	Error          string                    `json:"error,omitempty"`
}

// ArtifactInfo describes a stored image artifact.
type ArtifactInfo struct {
	Filename string `json:"filename"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	URL      string `json:"url"`
}

// DenoiseResponse is the JSON body of a /api/denoise request. Input and
// Output reference artifacts served by /api/images/{id}.
type DenoiseResponse struct {
	Success        bool          `json:"success"`
	Input          *ArtifactInfo `json:"input,omitempty"`
	Output         *ArtifactInfo `json:"output,omitempty"`
	ProcessingTime string        `json:"processing_time,omitempty"`
	Error          string        `json:"error,omitempty"`
}

type CleanupResponse struct {
	Success bool   `json:"success"`
	Deleted int    `json:"deleted"`
	Error   string `json:"error,omitempty"`
}

// NewServer creates a new restoration server instance.
func NewServer(config Config) (*Server, error) {
	cfg := config.PipelineConfig

	nb := pipeline.NewBuilder().
		WithModelsDir(cfg.ModelsDir).
		WithThreads(cfg.NumThreads).
		WithPreprocess(cfg.Preprocess).
		WithDegradationSeed(cfg.DegradationSeed).
		WithWarmupIterations(cfg.WarmupIterations)
	if cfg.Timeout > 0 {
		nb = nb.WithTimeout(cfg.Timeout)
	}

	pl, err := nb.Build()
	if err != nil {
		return nil, err
	}

	return NewServerWithPipeline(config, pl)
}

// NewServerWithPipeline creates a server around an already-built pipeline.
// Used directly by tests that inject stub model sessions.
func NewServerWithPipeline(config Config, pl *pipeline.Pipeline) (*Server, error) {
	if config.MaxUploadMB <= 0 {
		config.MaxUploadMB = 50
	}
	dir := config.ArtifactDir
	if dir == "" {
		dir = "artifacts"
	}
	store, err := storage.New(dir, config.Retention)
	if err != nil {
		_ = pl.Close()
		return nil, fmt.Errorf("server: init artifact store: %w", err)
	}

	var limiter *RateLimiter
	if config.RateLimit.RequestsPerMinute > 0 || config.RateLimit.MaxRequestsPerDay > 0 ||
		config.RateLimit.MaxDataPerDay > 0 {
		limiter = NewRateLimiter(config.RateLimit)
	}

	return &Server{
		pipeline:    pl,
		store:       store,
		rateLimiter: limiter,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeoutSec:  config.TimeoutSec,
	}, nil
}

// Close releases server resources.
func (s *Server) Close() error {
	if s.pipeline != nil {
		return s.pipeline.Close()
	}
	return nil
}

// Store exposes the artifact store, mainly so a janitor goroutine can sweep
// it.
func (s *Server) Store() *storage.Store { return s.store }

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/models", s.corsMiddleware(s.modelsHandler))
	mux.HandleFunc("/api/pipeline", s.corsMiddleware(s.rateLimitMiddleware(s.pipelineHandler)))
	mux.HandleFunc("/api/pipeline/ws", s.pipelineWebSocketHandler)
	mux.HandleFunc("/api/denoise", s.corsMiddleware(s.rateLimitMiddleware(s.denoiseHandler)))
	mux.HandleFunc("/api/images/", s.corsMiddleware(s.imageHandler))
	mux.HandleFunc("/api/cleanup", s.corsMiddleware(s.cleanupHandler))
	mux.Handle("/metrics", promhttp.Handler())
}
