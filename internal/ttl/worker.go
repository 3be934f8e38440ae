// Package ttl runs the periodic cleanup sweep over the cache store.
package ttl

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// Cleaner removes cached records older than maxAge.
type Cleaner interface {
	CleanupOldData(ctx context.Context, maxAge time.Duration) (int64, error)
}

// Start sweeps records older than maxAge every interval until ctx is done.
func Start(ctx context.Context, logger *log.Logger, interval, maxAge time.Duration, cleaner Cleaner) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := cleaner.CleanupOldData(ctx, maxAge)
			if err != nil {
				logger.Warn("cache cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("cache cleanup removed old records", "count", n, "max_age", maxAge)
			}
		}
	}
}
