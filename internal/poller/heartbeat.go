package poller

import (
	"context"
	"time"
)

// Heartbeat calls fn with the current time every interval until ctx is
// cancelled. fn must not block on I/O; it drives countdown repaints and the
// zero-crossing check.
func Heartbeat(ctx context.Context, interval time.Duration, fn func(now time.Time)) error {
	if interval <= 0 {
		interval = DefaultHeartbeat
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			fn(now)
		}
	}
}
