package server

import (
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pixel-revival/revive/internal/imageutil"
	"github.com/pixel-revival/revive/internal/pipeline"
)

// pipelineHandler runs the full restoration pipeline on an uploaded image
// and returns every retained stage output inline as data URLs.
func (s *Server) pipelineHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	img, size, ok := s.readUploadedImage(w, r)
	if !ok {
		return
	}
	uploadSizeBytes.Observe(float64(size))

	// The stage toggles default to on when absent; clients disable a
	// stage by sending an explicit false.
	opts, err := pipeline.ParseOptions(
		formBool(r, "enable_preprocess", true),
		formBool(r, "enable_deblur", true),
		formBool(r, "enable_edsr", true),
		formBool(r, "enable_face_enhance", false),
		formBool(r, "evaluation_mode", false),
		r.FormValue("degradation_type"),
	)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), errorStatus(err))
		return
	}

	if s.pipeline == nil {
		s.writeErrorResponse(w, "Pipeline not initialized", http.StatusServiceUnavailable)
		return
	}

	start := time.Now()
	res, err := s.pipeline.Run(r.Context(), img, opts)
	duration := time.Since(start)

	if err != nil {
		restoreRequestsTotal.WithLabelValues("pipeline", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Pipeline processing failed: %v", err), errorStatus(err))
		return
	}

	restoreRequestsTotal.WithLabelValues("pipeline", "success").Inc()
	restoreProcessingDuration.WithLabelValues("pipeline").Observe(duration.Seconds())
	for _, stage := range res.Stages {
		stageDuration.WithLabelValues(stage.Name).Observe(stage.Duration.Seconds())
	}

	response, err := buildPipelineResponse(res, opts)
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Failed to encode result: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding pipeline response: %v\n", err)
	}
}

// denoiseHandler runs only the super-resolution stage and stores input and
// output as artifacts, returning their URLs instead of inline data.
func (s *Server) denoiseHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	img, size, ok := s.readUploadedImage(w, r)
	if !ok {
		return
	}
	uploadSizeBytes.Observe(float64(size))

	if s.pipeline == nil {
		s.writeDenoiseError(w, "Pipeline not initialized", http.StatusServiceUnavailable)
		return
	}

	opts := pipeline.Options{EDSR: true}

	start := time.Now()
	res, err := s.pipeline.Run(r.Context(), img, opts)
	duration := time.Since(start)

	if err != nil {
		restoreRequestsTotal.WithLabelValues("denoise", "error").Inc()
		s.writeDenoiseError(w, fmt.Sprintf("Processing failed: %v", err), errorStatus(err))
		return
	}

	restoreRequestsTotal.WithLabelValues("denoise", "success").Inc()
	restoreProcessingDuration.WithLabelValues("denoise").Observe(duration.Seconds())

	input, err := s.storeArtifact(res.Input, "input")
	if err != nil {
		s.writeDenoiseError(w, fmt.Sprintf("Failed to store result: %v", err), http.StatusInternalServerError)
		return
	}
	output, err := s.storeArtifact(res.Final(), "output")
	if err != nil {
		s.writeDenoiseError(w, fmt.Sprintf("Failed to store result: %v", err), http.StatusInternalServerError)
		return
	}

	response := DenoiseResponse{
		Success:        true,
		Input:          input,
		Output:         output,
		ProcessingTime: res.ProcessingTime(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding denoise response: %v\n", err)
	}
}

// readUploadedImage parses the multipart form and decodes the "image" file
// field. On failure it writes the error response and returns ok=false.
func (s *Server) readUploadedImage(w http.ResponseWriter, r *http.Request) (image.Image, int64, bool) {
	maxBytes := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "too large") {
			s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		}
		return nil, 0, false
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return nil, 0, false
	}
	defer func() { _ = file.Close() }()

	if header.Size > maxBytes {
		s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		return nil, 0, false
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read image data", http.StatusInternalServerError)
		return nil, 0, false
	}

	img, _, err := imageutil.DecodeBytes(data, maxBytes)
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Invalid image: %v", err), http.StatusBadRequest)
		return nil, 0, false
	}
	return img, header.Size, true
}

// buildPipelineResponse renders the run result in the pipeline response
// shape, with each enabled stage output under its own key.
func buildPipelineResponse(res *pipeline.Result, opts pipeline.Options) (PipelineResponse, error) {
	response := PipelineResponse{
		Success:        true,
		Metrics:        res.Metrics,
		ProcessingTime: res.ProcessingTime(),
	}

	if opts.Evaluation {
		url, err := imageutil.ToDataURL(res.GroundTruth)
		if err != nil {
			return PipelineResponse{}, err
		}
		response.GroundTruth = url

		url, err = imageutil.ToDataURL(res.Degraded)
		if err != nil {
			return PipelineResponse{}, err
		}
		response.Degraded = url
	}

	for _, stage := range res.Stages {
		url, err := imageutil.ToDataURL(stage.Image)
		if err != nil {
			return PipelineResponse{}, err
		}
		switch stage.Name {
		case pipeline.StagePreprocessed:
			response.Preprocessed = url
		case pipeline.StageDeblurred:
			response.Deblurred = url
		case pipeline.StageEDSR:
			response.EDSR = url
		}
	}
	return response, nil
}

// encodeResultImages renders the run result as a stage-name to data-URL
// map for the websocket surface. The original upload is always included
// under "input"; in evaluation mode the degraded input is included as well.
func encodeResultImages(res *pipeline.Result, opts pipeline.Options) (map[string]string, error) {
	images := make(map[string]string, len(res.Stages)+2)

	url, err := imageutil.ToDataURL(res.Input)
	if err != nil {
		return nil, err
	}
	images["input"] = url

	if opts.Evaluation && res.Degraded != nil {
		url, err := imageutil.ToDataURL(res.Degraded)
		if err != nil {
			return nil, err
		}
		images[pipeline.DegradedKey] = url
	}

	for _, stage := range res.Stages {
		url, err := imageutil.ToDataURL(stage.Image)
		if err != nil {
			return nil, err
		}
		images[stage.Name] = url
	}
	return images, nil
}

// storeArtifact encodes an image as PNG, persists it, and describes the
// stored artifact.
func (s *Server) storeArtifact(img image.Image, label string) (*ArtifactInfo, error) {
	data, err := imageutil.EncodePNG(img)
	if err != nil {
		return nil, err
	}
	id, err := s.store.Put(data, label, "png")
	if err != nil {
		return nil, err
	}
	w, h := imageutil.Dimensions(img)
	return &ArtifactInfo{
		Filename: id,
		Width:    w,
		Height:   h,
		URL:      "/api/images/" + id,
	}, nil
}

// writeDenoiseError writes a JSON error in the denoise response shape.
func (s *Server) writeDenoiseError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(DenoiseResponse{Success: false, Error: message}); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing error response: %v\n", err)
	}
}

// formBool reads a form flag, accepting "true"/"1"/"yes"/"on". A field
// that is absent from the form falls back to def.
func formBool(r *http.Request, name string, def bool) bool {
	vals, ok := r.Form[name]
	if !ok || len(vals) == 0 {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(vals[0])) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}
