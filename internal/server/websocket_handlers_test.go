package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixel-revival/revive/internal/testutil"
)

// mockWebSocketConn records messages written through the conn writer seam.
type mockWebSocketConn struct {
	sentMessages []sentMessage
}

type sentMessage struct {
	messageType int
	data        []byte
}

func (m *mockWebSocketConn) WriteMessage(messageType int, data []byte) error {
	m.sentMessages = append(m.sentMessages, sentMessage{
		messageType: messageType,
		data:        data,
	})
	return nil
}

func (m *mockWebSocketConn) responses(t *testing.T) []WebSocketResponse {
	t.Helper()
	out := make([]WebSocketResponse, len(m.sentMessages))
	for i, msg := range m.sentMessages {
		require.Equal(t, websocket.TextMessage, msg.messageType)
		require.NoError(t, json.Unmarshal(msg.data, &out[i]))
	}
	return out
}

func wsRequestJSON(t *testing.T, req WebSocketRequest) []byte {
	t.Helper()
	data, err := json.Marshal(req)
	require.NoError(t, err)
	return data
}

func TestHandleWebSocketMessageStreamsProgress(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := &mockWebSocketConn{}

	img := testutil.GradientImage(testutil.SmallSize)
	data := wsRequestJSON(t, WebSocketRequest{
		Image:      testutil.EncodePNG(t, img),
		Preprocess: true,
		EDSR:       true,
	})

	srv.handleWebSocketMessage(context.Background(), conn, data)

	responses := conn.responses(t)
	require.Len(t, responses, 3)

	assert.Equal(t, "processing", responses[0].Status)
	assert.Equal(t, "preprocessed", responses[0].Stage)
	assert.Equal(t, "processing", responses[1].Status)
	assert.Equal(t, "edsr", responses[1].Stage)

	final := responses[2]
	assert.Equal(t, "pipeline_response", final.Type)
	assert.Equal(t, "completed", final.Status)
	assert.Contains(t, final.Images, "input")
	assert.Contains(t, final.Images, "preprocessed")
	assert.Contains(t, final.Images, "edsr")
	assert.NotContains(t, final.Images, "deblurred")
	for name, url := range final.Images {
		assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"), "image %s", name)
	}

	require.NotEmpty(t, final.RequestID)
	for _, resp := range responses {
		assert.Equal(t, final.RequestID, resp.RequestID)
	}
}

func TestHandleWebSocketMessageEvaluation(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := &mockWebSocketConn{}

	img := testutil.GradientImage(testutil.ImageSize{Width: 128, Height: 128})
	data := wsRequestJSON(t, WebSocketRequest{
		Image:           testutil.EncodePNG(t, img),
		EDSR:            true,
		Evaluation:      true,
		DegradationType: "medium",
	})

	srv.handleWebSocketMessage(context.Background(), conn, data)

	responses := conn.responses(t)
	require.NotEmpty(t, responses)

	final := responses[len(responses)-1]
	require.Equal(t, "completed", final.Status, final.Error)
	assert.Contains(t, final.Images, "degraded")
	require.Contains(t, final.Metrics, "degraded")
	require.Contains(t, final.Metrics, "edsr")
	assert.Greater(t, final.Metrics["edsr"].PSNR, 0.0)
}

func TestHandleWebSocketMessageInvalidJSON(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := &mockWebSocketConn{}

	srv.handleWebSocketMessage(context.Background(), conn, []byte("{not json"))

	responses := conn.responses(t)
	require.Len(t, responses, 1)
	assert.Equal(t, "error", responses[0].Type)
	assert.Equal(t, "error", responses[0].Status)
	assert.Equal(t, "invalid_request", responses[0].ErrorType)
	assert.Contains(t, responses[0].Error, "Failed to parse request")
}

func TestHandleWebSocketMessageNoImage(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := &mockWebSocketConn{}

	srv.handleWebSocketMessage(context.Background(), conn, wsRequestJSON(t, WebSocketRequest{EDSR: true}))

	responses := conn.responses(t)
	require.Len(t, responses, 1)
	assert.Equal(t, "invalid_request", responses[0].ErrorType)
	assert.Contains(t, responses[0].Error, "No image data provided")
}

func TestHandleWebSocketMessageUndecodableImage(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := &mockWebSocketConn{}

	data := wsRequestJSON(t, WebSocketRequest{Image: []byte("not a png"), EDSR: true})
	srv.handleWebSocketMessage(context.Background(), conn, data)

	responses := conn.responses(t)
	require.Len(t, responses, 1)
	assert.Equal(t, "invalid_request", responses[0].ErrorType)
	assert.Contains(t, responses[0].Error, "Invalid image")
}

func TestHandleWebSocketMessageRejectsBadOptions(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := &mockWebSocketConn{}

	img := testutil.GradientImage(testutil.SmallSize)
	data := wsRequestJSON(t, WebSocketRequest{
		Image:       testutil.EncodePNG(t, img),
		FaceEnhance: true,
	})

	srv.handleWebSocketMessage(context.Background(), conn, data)

	responses := conn.responses(t)
	require.Len(t, responses, 1)
	assert.Equal(t, "invalid_request", responses[0].ErrorType)
	assert.Contains(t, responses[0].Error, "face enhancement")
}

func TestSendWebSocketError(t *testing.T) {
	conn := &mockWebSocketConn{}
	srv := &Server{}

	srv.sendWebSocketError(conn, "processing_error", "stage blew up")

	responses := conn.responses(t)
	require.Len(t, responses, 1)
	assert.Equal(t, "error", responses[0].Type)
	assert.Equal(t, "error", responses[0].Status)
	assert.Equal(t, "processing_error", responses[0].ErrorType)
	assert.Equal(t, "stage blew up", responses[0].Error)
}

func TestWebSocketUpgraderAllowsAnyOrigin(t *testing.T) {
	allowed := upgrader.CheckOrigin(&http.Request{
		Header: http.Header{"Origin": []string{"http://example.com"}},
	})
	assert.True(t, allowed)
}
