package conn

import (
	"context"
	"time"

	"resp3conn/internal/queue"
	"resp3conn/internal/workerpool"
	"resp3conn/resp3"
)

// healthLoop is C5: every interval it enqueues a PING carrying
// healthCheckID, exactly as exec would, and discards the response itself —
// its only purpose is to elicit wire traffic so the idle watchdog (C6) has
// something to observe. A pooled worker (internal/workerpool) reports the
// round-trip to metrics without holding up the next tick.
func healthLoop(ctx context.Context, q *queue.Queue, interval time.Duration, healthCheckID string, metrics Metrics) error {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}

		req, err := resp3.AppendCommand(nil, "PING", healthCheckID)
		if err != nil {
			continue
		}
		entry := q.Enqueue(resp3.Request{Bytes: req, NCmds: 1}, func(resp3.Node) {})
		start := time.Now()
		workerpool.Go(func() {
			<-entry.Done()
			err, _ := entry.Result()
			metrics.ObserveHealthCheck(time.Since(start).Seconds(), err)
		})
	}
}
