package conn

import (
	"context"
	"math"

	"resp3conn/internal/queue"
)

// writerLoop is C3: it repeats "coalesce, write, mark written" until ctx
// cancellation ends it or a write fails. It never blocks on
// a read and it is the only goroutine that ever writes to s, which is what
// keeps wire order equal to enqueue order (spec.md §4.3).
//
// Coalesce can legitimately return count == 0 while the queue itself is
// non-empty: a written entry still awaiting its response sits at the front
// and there is nothing unwritten behind it. That is the ordinary
// one-request-in-flight state, not an error, so the loop suspends on
// q.Wake() rather than spinning — Wake only fires when the unwritten
// suffix transitions from empty to non-empty (see Enqueue), which is
// exactly the condition this loop is waiting on.
func writerLoop(ctx context.Context, q *queue.Queue, s Stream, addr string, coalesce bool, limit int, metrics Metrics) error {
	effLimit := 1
	if coalesce {
		effLimit = limit
		if effLimit <= 0 {
			effLimit = math.MaxInt32
		}
	}
	for {
		payload, count, totalCmds := q.Coalesce(effLimit)
		if count == 0 {
			select {
			case <-q.Wake():
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		if _, err := s.Write(payload); err != nil {
			return ErrWriteError.Wrap(err, "write to %s", addr)
		}
		q.MarkWritten(count)
		metrics.ObserveWriteBatch(count, totalCmds)
	}
}
