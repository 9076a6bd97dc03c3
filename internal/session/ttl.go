package session

import (
	"context"
	"log/slog"
	"time"
)

const minSweepInterval = time.Second

// StartIdleSweeper runs a background goroutine that periodically removes
// sessions idle for longer than ttl. It stops when ctx is cancelled.
// A non-positive ttl disables the sweeper.
func StartIdleSweeper(ctx context.Context, r *Registry, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	interval := ttl / 4
	if interval < minSweepInterval {
		interval = minSweepInterval
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Idle sweeper started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				if n := r.SweepIdle(ttl); n > 0 {
					slog.Info("Idle sweeper cleanup completed", "removed", n, "remaining", r.Len())
				}
			case <-ctx.Done():
				slog.Info("Idle sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
