// Package storage keeps per-request image artifacts on the local
// filesystem. Artifacts are ephemeral: they exist so a response can
// reference them by URL, and a retention sweep removes anything older than
// the configured window.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultRetention is how long artifacts stay retrievable before the sweep
// removes them.
const DefaultRetention = time.Hour

// artifactName limits artifact IDs to uuid-with-suffix names, which also
// rules out path traversal.
var artifactName = regexp.MustCompile(`^[a-zA-Z0-9-]+(_[a-z]+)?\.[a-z]+$`)

// ErrNotFound is returned when an artifact ID does not resolve to a file.
var ErrNotFound = errors.New("storage: artifact not found")

// Store is a directory-backed artifact store. Safe for concurrent use: each
// artifact is written once under a fresh uuid name and never modified.
type Store struct {
	dir       string
	retention time.Duration
}

// New initializes a store rooted at dir, creating it if needed. A
// non-positive retention falls back to DefaultRetention.
func New(dir string, retention time.Duration) (*Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("storage: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure directory: %w", err)
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Store{dir: dir, retention: retention}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

// Retention returns the configured retention window.
func (s *Store) Retention() time.Duration { return s.retention }

// Put writes data under a fresh uuid-based name and returns the artifact
// ID. label distinguishes related artifacts of one request ("input",
// "output"); ext is the file extension without the dot.
func (s *Store) Put(data []byte, label, ext string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("storage: empty artifact")
	}
	if ext == "" {
		ext = "png"
	}
	id := uuid.NewString()
	name := id + "." + ext
	if label != "" {
		name = fmt.Sprintf("%s_%s.%s", id, label, ext)
	}
	if !artifactName.MatchString(name) {
		return "", fmt.Errorf("storage: invalid artifact name %q", name)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write artifact: %w", err)
	}
	return name, nil
}

// Path resolves an artifact ID to its on-disk path, rejecting names that
// could escape the store directory. ErrNotFound is returned for unknown
// IDs.
func (s *Store) Path(id string) (string, error) {
	if !artifactName.MatchString(id) {
		return "", fmt.Errorf("storage: invalid artifact id %q", id)
	}
	p := filepath.Join(s.dir, id)
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("storage: stat artifact: %w", err)
	}
	return p, nil
}

// Read returns an artifact's bytes.
func (s *Store) Read(id string) ([]byte, error) {
	p, err := s.Path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p) //nolint:gosec // G304: path validated by Path
	if err != nil {
		return nil, fmt.Errorf("storage: read artifact: %w", err)
	}
	return data, nil
}

// Sweep deletes artifacts older than the retention window and reports how
// many were removed. Files younger than the window are never touched, so a
// sweep can run concurrently with live requests without deleting artifacts
// an in-flight response still references.
func (s *Store) Sweep(now time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("storage: list artifacts: %w", err)
	}
	deleted := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= s.retention {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err == nil {
			deleted++
		}
	}
	return deleted, nil
}
