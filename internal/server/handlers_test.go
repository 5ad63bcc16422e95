package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixel-revival/revive/internal/testutil"
)

func TestHealthEndpoint(t *testing.T) {
	_, mux := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.NotEmpty(t, resp.Time)
}

func TestHealthEndpointMethodNotAllowed(t *testing.T) {
	_, mux := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestModelsEndpoint(t *testing.T) {
	_, mux := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/models", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ModelsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"preprocessed", "deblurred", "edsr"}, resp.Stages)
	assert.Contains(t, resp.Pipeline, "models")
}

func TestCORSPreflight(t *testing.T) {
	_, mux := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/pipeline", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestPipelineEndpoint(t *testing.T) {
	_, mux := newTestServer(t)

	img := testutil.GradientImage(testutil.ImageSize{Width: 100, Height: 100})
	body, contentType := multipartImage(t, img, map[string]string{
		"enable_preprocess": "true",
		"enable_deblur":     "false",
		"enable_edsr":       "true",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/pipeline", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp PipelineResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.True(t, strings.HasPrefix(resp.Preprocessed, "data:image/png;base64,"))
	assert.True(t, strings.HasPrefix(resp.EDSR, "data:image/png;base64,"))
	assert.Empty(t, resp.Deblurred)
	assert.Empty(t, resp.GroundTruth)
	assert.Empty(t, resp.Degraded)
	assert.Nil(t, resp.Metrics)
	assert.True(t, strings.HasSuffix(resp.ProcessingTime, "s"))
}

func TestPipelineEndpointDefaultsStagesOn(t *testing.T) {
	// Absent toggles mean the full restoration pipeline, not a passthrough.
	_, mux := newTestServer(t)

	img := testutil.GradientImage(testutil.SmallSize)
	body, contentType := multipartImage(t, img, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/pipeline", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp PipelineResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Preprocessed)
	assert.NotEmpty(t, resp.Deblurred)
	assert.NotEmpty(t, resp.EDSR)
	assert.Empty(t, resp.Degraded)
}

func TestPipelineEndpointEvaluation(t *testing.T) {
	_, mux := newTestServer(t)

	img := testutil.GradientImage(testutil.ImageSize{Width: 128, Height: 128})
	body, contentType := multipartImage(t, img, map[string]string{
		"enable_edsr":      "true",
		"evaluation_mode":  "true",
		"degradation_type": "heavy",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/pipeline", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp PipelineResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.True(t, strings.HasPrefix(resp.GroundTruth, "data:image/png;base64,"))
	assert.True(t, strings.HasPrefix(resp.Degraded, "data:image/png;base64,"))
	require.Contains(t, resp.Metrics, "degraded")
	require.Contains(t, resp.Metrics, "edsr")
	assert.Greater(t, resp.Metrics["edsr"].PSNR, 0.0)
}

func TestPipelineEndpointFaceEnhanceWithoutDeblur(t *testing.T) {
	_, mux := newTestServer(t)

	img := testutil.GradientImage(testutil.SmallSize)
	body, contentType := multipartImage(t, img, map[string]string{
		"enable_deblur":       "false",
		"enable_face_enhance": "true",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/pipeline", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp PipelineResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "face enhancement")
}

func TestPipelineEndpointUnknownDegradationType(t *testing.T) {
	_, mux := newTestServer(t)

	img := testutil.GradientImage(testutil.SmallSize)
	body, contentType := multipartImage(t, img, map[string]string{
		"evaluation_mode":  "true",
		"degradation_type": "apocalyptic",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/pipeline", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPipelineEndpointNoFile(t *testing.T) {
	_, mux := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/pipeline", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPipelineEndpointInvalidImage(t *testing.T) {
	_, mux := newTestServer(t)

	body, contentType := multipartRaw(t, []byte("this is not a png"), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/pipeline", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDenoiseAndArtifactRoundTrip(t *testing.T) {
	_, mux := newTestServer(t)

	img := testutil.GradientImage(testutil.ImageSize{Width: 32, Height: 32})
	body, contentType := multipartImage(t, img, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/denoise", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp DenoiseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Input)
	require.NotNil(t, resp.Output)
	assert.Equal(t, 32, resp.Input.Width)
	assert.Equal(t, 32, resp.Input.Height)
	require.True(t, strings.HasPrefix(resp.Input.URL, "/api/images/"))
	require.True(t, strings.HasPrefix(resp.Output.URL, "/api/images/"))

	// Fetch the stored output back
	req = httptest.NewRequest(http.MethodGet, resp.Output.URL, nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestImageEndpointUnknownID(t *testing.T) {
	_, mux := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/images/00000000-0000-0000-0000-000000000000.png", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImageEndpointBadID(t *testing.T) {
	_, mux := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/images/nested/secrets.png", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCleanupEndpoint(t *testing.T) {
	_, mux := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/cleanup", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp CleanupResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Zero(t, resp.Deleted)
}

func TestRateLimitExceeded(t *testing.T) {
	_, mux := newTestServerWithConfig(t, Config{
		CORSOrigin:  "*",
		MaxUploadMB: 10,
		ArtifactDir: t.TempDir(),
		RateLimit:   RateLimitConfig{RequestsPerMinute: 1},
	})

	img := testutil.GradientImage(testutil.SmallSize)
	for i := range 2 {
		body, contentType := multipartImage(t, img, map[string]string{"enable_edsr": "true"})
		req := httptest.NewRequest(http.MethodPost, "/api/pipeline", body)
		req.Header.Set("Content-Type", contentType)
		req.RemoteAddr = "10.1.2.3:1234"
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if i == 0 {
			assert.Equal(t, http.StatusOK, rec.Code)
		} else {
			assert.Equal(t, http.StatusTooManyRequests, rec.Code)
			assert.Equal(t, "minute", rec.Header().Get("X-RateLimit-Type"))
		}
	}
}
