package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pixel-revival/revive/internal/storage"
)

// imageHandler serves a stored artifact by ID.
func (s *Server) imageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/images/")
	if id == "" || strings.Contains(id, "/") {
		s.writeErrorResponse(w, "Invalid image id", http.StatusBadRequest)
		return
	}

	data, err := s.store.Read(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.writeErrorResponse(w, "Image not found", http.StatusNotFound)
			return
		}
		s.writeErrorResponse(w, "Invalid image id", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := w.Write(data); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing image response: %v\n", err)
	}
}

// cleanupHandler triggers a retention sweep over stored artifacts.
func (s *Server) cleanupHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	deleted, err := s.store.Sweep(time.Now())
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(CleanupResponse{Success: false, Error: err.Error()})
		return
	}

	artifactsDeleted.Add(float64(deleted))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(CleanupResponse{Success: true, Deleted: deleted}); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding cleanup response: %v\n", err)
	}
}
