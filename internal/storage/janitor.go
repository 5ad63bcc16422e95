package storage

import (
	"context"
	"log/slog"
	"time"
)

// Janitor runs a periodic retention sweep over a store until the context
// is cancelled. Intended to be started as a goroutine alongside the server.
func Janitor(ctx context.Context, store *Store, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			deleted, err := store.Sweep(now)
			if err != nil {
				slog.Warn("artifact sweep failed", "error", err)
				continue
			}
			if deleted > 0 {
				slog.Debug("artifact sweep", "deleted", deleted)
			}
		}
	}
}
