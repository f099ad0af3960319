package conn

import (
	"context"
	"sync/atomic"
	"time"
)

// watchdogLoop is C6: every interval it compares now against the reader's
// last-data timestamp; exceeding 2*interval with no bytes read is fatal.
// Comparing against 2*interval rather than interval gives one full health
// ping a chance to round-trip before the connection is condemned.
func watchdogLoop(ctx context.Context, interval time.Duration, lastData *int64, metrics Metrics) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	threshold := 2 * interval

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
		last := time.Unix(0, atomic.LoadInt64(lastData))
		idle := time.Since(last)
		metrics.ObserveIdle(idle.Seconds())
		if idle > threshold {
			return ErrIdleTimeout.New("no data received for %s (threshold %s)", idle, threshold)
		}
	}
}
