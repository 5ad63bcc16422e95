package server

import (
	"bytes"
	"image"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pixel-revival/revive/internal/pipeline"
	"github.com/pixel-revival/revive/internal/testutil"
)

// newTestServer builds a server around a stub-model pipeline so handler
// tests run without ONNX sessions.
func newTestServer(t *testing.T) (*Server, *http.ServeMux) {
	t.Helper()
	return newTestServerWithConfig(t, Config{
		CORSOrigin:  "*",
		MaxUploadMB: 10,
		ArtifactDir: t.TempDir(),
	})
}

func newTestServerWithConfig(t *testing.T, cfg Config) (*Server, *http.ServeMux) {
	t.Helper()

	pl, err := pipeline.NewBuilder().
		WithRegistry(testutil.StubRegistry(
			testutil.UpscaleEnhancer("edsr", 4),
			&testutil.StubEnhancer{StageName: "realesrgan"},
			&testutil.StubEnhancer{StageName: "gfpgan"},
		)).
		WithTimeout(0).
		Build()
	require.NoError(t, err)

	srv, err := NewServerWithPipeline(cfg, pl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	return srv, mux
}

// multipartImage builds a multipart body with an encoded PNG under the
// "image" field plus any extra string fields.
func multipartImage(t *testing.T, img image.Image, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("image", "upload.png")
	require.NoError(t, err)
	_, err = part.Write(testutil.EncodePNG(t, img))
	require.NoError(t, err)

	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

// multipartRaw is like multipartImage but puts arbitrary bytes in the
// "image" field, for exercising decode failures.
func multipartRaw(t *testing.T, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("image", "upload.bin")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)

	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}
