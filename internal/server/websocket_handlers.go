package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pixel-revival/revive/internal/imageutil"
	"github.com/pixel-revival/revive/internal/pipeline"
	"github.com/pixel-revival/revive/internal/quality"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow connections from any origin in development
		// In production, you should check against allowed origins
		return true
	},
}

// WebSocketRequest represents a restoration request via WebSocket. Image
// carries the raw upload bytes (base64 in the JSON encoding).
type WebSocketRequest struct {
	Image           []byte `json:"image"`
	Preprocess      bool   `json:"enable_preprocess"`
	Deblur          bool   `json:"enable_deblur"`
	EDSR            bool   `json:"enable_edsr"`
	FaceEnhance     bool   `json:"enable_face_enhance"`
	Evaluation      bool   `json:"evaluation_mode"`
	DegradationType string `json:"degradation_type,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// WebSocketResponse represents a message sent back to the client. Status is
// "processing" for per-stage progress updates, then "completed" or "error".
type WebSocketResponse struct {
	Type      string                    `json:"type"`
	Status    string                    `json:"status"`
	Stage     string                    `json:"stage,omitempty"`
	Images    map[string]string         `json:"images,omitempty"`
	Metrics   map[string]quality.Record `json:"metrics,omitempty"`
	Error     string                    `json:"error,omitempty"`
	ErrorType string                    `json:"error_type,omitempty"`
	RequestID string                    `json:"request_id,omitempty"`
}

// wsStageReporter streams per-stage progress to the client as the pipeline
// runs.
type wsStageReporter struct {
	server    *Server
	conn      WebSocketConnWriter
	requestID string
}

func (r *wsStageReporter) StageStarted(name string) {
	r.server.sendWebSocketResponse(r.conn, WebSocketResponse{
		Type:      "pipeline_response",
		Status:    "processing",
		Stage:     name,
		RequestID: r.requestID,
	})
}

func (r *wsStageReporter) StageCompleted(name string, d time.Duration) {
	stageDuration.WithLabelValues(name).Observe(d.Seconds())
}

// pipelineWebSocketHandler handles WebSocket connections for restoration
// with live stage progress.
func (s *Server) pipelineWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	s.handleWebSocketConnection(r.Context(), conn)
}

// handleWebSocketConnection processes messages from a WebSocket connection.
func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn) {
	// Set read deadline to prevent hanging connections
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// Send ping messages to keep connection alive
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			break
		}

		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(ctx, conn, data)
		}
	}
}

// handleWebSocketMessage runs the pipeline for a single WebSocket request.
// It only ever writes to conn; reads stay in handleWebSocketConnection.
func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, data []byte) {
	var req WebSocketRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	requestID := strconv.FormatInt(time.Now().UnixNano(), 10)

	if len(req.Image) == 0 {
		s.sendWebSocketError(conn, "invalid_request", "No image data provided")
		return
	}

	img, _, err := imageutil.DecodeBytes(req.Image, s.maxUploadMB*1024*1024)
	if err != nil {
		s.sendWebSocketError(conn, "invalid_request", fmt.Sprintf("Invalid image: %v", err))
		return
	}

	opts, err := pipeline.ParseOptions(
		req.Preprocess, req.Deblur, req.EDSR, req.FaceEnhance, req.Evaluation, req.DegradationType)
	if err != nil {
		s.sendWebSocketError(conn, "invalid_request", err.Error())
		return
	}

	if s.pipeline == nil {
		s.sendWebSocketError(conn, "processing_error", "Pipeline not initialized")
		return
	}

	reporter := &wsStageReporter{server: s, conn: conn, requestID: requestID}

	start := time.Now()
	res, err := s.pipeline.RunWithProgress(ctx, img, opts, reporter)
	duration := time.Since(start)

	if err != nil {
		restoreRequestsTotal.WithLabelValues("websocket", "error").Inc()
		s.sendWebSocketError(conn, "processing_error", fmt.Sprintf("Pipeline processing failed: %v", err))
		return
	}

	restoreRequestsTotal.WithLabelValues("websocket", "success").Inc()
	restoreProcessingDuration.WithLabelValues("websocket").Observe(duration.Seconds())

	images, err := encodeResultImages(res, opts)
	if err != nil {
		s.sendWebSocketError(conn, "processing_error", fmt.Sprintf("Failed to encode result: %v", err))
		return
	}

	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      "pipeline_response",
		Status:    "completed",
		Images:    images,
		Metrics:   res.Metrics,
		RequestID: requestID,
	})
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, errorType, message string) {
	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      "error",
		Status:    "error",
		Error:     message,
		ErrorType: errorType,
	})
}
