package support

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http/httptest"
	"os"

	"github.com/pixel-revival/revive/internal/pipeline"
	"github.com/pixel-revival/revive/internal/server"
	"github.com/pixel-revival/revive/internal/testutil"
)

// TestContext holds the state shared by the API scenario steps.
type TestContext struct {
	HTTPServer *httptest.Server
	Server     *server.Server
	TempDir    string

	// Last HTTP exchange
	LastStatusCode int
	LastBody       []byte
	LastJSON       map[string]interface{}
}

// NewTestContext creates a fresh context with its own artifact directory.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "revive-api-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	return &TestContext{TempDir: tempDir}, nil
}

// Cleanup stops the server and removes scenario artifacts.
func (testCtx *TestContext) Cleanup() error {
	if testCtx.HTTPServer != nil {
		testCtx.HTTPServer.Close()
		testCtx.HTTPServer = nil
	}
	if testCtx.Server != nil {
		if err := testCtx.Server.Close(); err != nil {
			return err
		}
		testCtx.Server = nil
	}
	return os.RemoveAll(testCtx.TempDir)
}

// StartServer builds a server around a stub-model pipeline and serves it
// over httptest. Real model sessions are not needed for API behavior.
func (testCtx *TestContext) StartServer(rateLimit server.RateLimitConfig) error {
	pl, err := pipeline.NewBuilder().
		WithRegistry(testutil.StubRegistry(
			testutil.UpscaleEnhancer("edsr", 4),
			&testutil.StubEnhancer{StageName: "realesrgan"},
			&testutil.StubEnhancer{StageName: "gfpgan"},
		)).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	srv, err := server.NewServerWithPipeline(server.Config{
		CORSOrigin:  "*",
		MaxUploadMB: 10,
		ArtifactDir: testCtx.TempDir,
		RateLimit:   rateLimit,
	}, pl)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	mux := newMux(srv)
	testCtx.Server = srv
	testCtx.HTTPServer = httptest.NewServer(mux)
	return nil
}

// recordResponse captures a response body and, when it parses as a JSON
// object, its decoded form.
func (testCtx *TestContext) recordResponse(status int, body []byte) {
	testCtx.LastStatusCode = status
	testCtx.LastBody = body
	testCtx.LastJSON = nil

	var decoded map[string]interface{}
	if err := json.Unmarshal(body, &decoded); err == nil {
		testCtx.LastJSON = decoded
	}
}

// testImagePNG returns an encoded PNG of a small gradient image.
func testImagePNG() ([]byte, error) {
	img := testutil.GradientImage(testutil.ImageSize{Width: 96, Height: 96})
	return encodePNG(img)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}
