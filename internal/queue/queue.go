// Package queue implements the FIFO of in-flight and pending requests
// described in spec.md §4.2. It is the one piece of connection state
// touched both by submitter goroutines (Enqueue, via Connection.Exec) and
// by the connection's own writer/reader goroutines, so it is the single
// lock the concurrency model in spec.md §5 calls for.
package queue

import (
	"sync"

	"resp3conn/resp3"
)

// Adapter receives every node of the response to the request it was
// registered with, in depth-tagged pre-order. It is the "visitor trait"
// design note §9 describes; copy Node.Bytes before returning if you need
// to keep it.
type Adapter func(resp3.Node)

// Entry is one submitted request, as described in spec.md §3.
// It is never copied once enqueued; Queue always hands out pointers.
type Entry struct {
	Request resp3.Request
	Adapter Adapter

	nCmds    int64
	written  bool
	stop     bool
	resolved bool
	done     chan struct{}
	err      error
	bytes    int64
}

// Done returns the channel that closes once the entry is fully resolved
// (completed, failed, or aborted). It is the request's "wakeup".
func (e *Entry) Done() <-chan struct{} { return e.done }

// Result returns the outcome once Done has fired: the error (nil on
// success) and the number of response bytes read for this request.
func (e *Entry) Result() (error, int64) { return e.err, e.bytes }

// Written reports whether the writer has already put this entry's bytes
// on the wire.
func (e *Entry) Written() bool { return e.written }

// resolve fires the wakeup at most once. Callers must hold the owning
// Queue's mu for the whole call: resolve itself does not lock, and the mutex
// is what keeps the resolved check-and-set safe against a concurrent
// resolver. Closing done under the lock does not block.
func (e *Entry) resolve(err error, bytes int64) (fired bool) {
	if e.resolved {
		return false
	}
	e.resolved = true
	e.err = err
	e.bytes = bytes
	close(e.done)
	return true
}

// Queue is a FIFO of *Entry. Order matches Enqueue call order exactly, and
// the writer and reader both drain it strictly from the front, which is
// how spec.md §3 guarantees wire order equals enqueue order.
type Queue struct {
	mu      sync.Mutex
	entries []*Entry
	wake    chan struct{}
}

// New creates an empty queue. wake is signaled (non-blocking) whenever an
// entry is enqueued into an otherwise-idle queue, per spec.md §4.3's
// writer-wake discipline.
func New() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Wake is raised exactly when Enqueue transitions the queue from empty to
// non-empty; the writer loop selects on it while idle.
func (q *Queue) Wake() <-chan struct{} { return q.wake }

// Enqueue appends a new entry for req, wiring it to adapter, and returns
// it. New entries always land at the back of the queue, behind any
// already-written-but-unanswered run at the front, so they always join
// the unwritten suffix. Wake is signaled exactly when that suffix was
// empty before this call: the writer only ever waits on Wake when it
// has nothing left to coalesce, never merely because the queue as a
// whole happens to be empty (a written entry can still be sitting at
// the front, awaiting its response, while the writer has nothing more
// to send).
func (q *Queue) Enqueue(req resp3.Request, adapter Adapter) *Entry {
	e := &Entry{
		Request: req,
		Adapter: adapter,
		nCmds:   int64(req.NCmds),
		done:    make(chan struct{}),
	}
	q.mu.Lock()
	wasIdle := len(q.entries) == q.writtenPrefixLen()
	q.entries = append(q.entries, e)
	q.mu.Unlock()
	if wasIdle {
		select {
		case q.wake <- struct{}{}:
		default:
		}
	}
	return e
}

// Len reports the number of entries currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Front returns the head entry, or nil if the queue is empty.
func (q *Queue) Front() *Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return nil
	}
	return q.entries[0]
}

// HeadExpectsResponse reports whether the front entry still has
// outstanding top-level responses to consume.
func (q *Queue) HeadExpectsResponse() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries) > 0 && q.entries[0].nCmds > 0
}

// DecrementHead is called by the reader after each top-level response
// belonging to the head entry. When its nCmds counter reaches zero the
// head is popped and its wakeup fires with success.
func (q *Queue) DecrementHead(bytes int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return
	}
	head := q.entries[0]
	head.nCmds--
	if head.nCmds <= 0 {
		q.entries = q.entries[1:]
		head.resolve(nil, bytes)
	}
}

// FailHead completes the head entry with err without waiting for further
// top-level responses (spec.md §4.4's ExecError path: the connection stays
// healthy, only this request fails).
func (q *Queue) FailHead(err error, bytes int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return
	}
	head := q.entries[0]
	q.entries = q.entries[1:]
	head.resolve(err, bytes)
}

// Cancel marks e as stopped. If it has not yet been written to the wire
// it is removed from the queue outright and its wakeup fires with err
// immediately. If it has already been written, spec.md §5 requires its
// slot to remain — the reader still owns draining its response bytes —
// so it stays queued, but its wakeup still fires with err right away;
// DecrementHead/FailHead later find it already resolved and skip the
// second wakeup.
func (q *Queue) Cancel(e *Entry, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e.stop = true
	if !e.written {
		for i, it := range q.entries {
			if it == e {
				q.entries = append(q.entries[:i], q.entries[i+1:]...)
				break
			}
		}
	}
	e.resolve(err, 0)
}

// writtenPrefixLen returns the length of the queue's leading run of
// already-written entries. Written entries stay queued, awaiting their
// response, until the reader removes them, so they always form a prefix:
// the writer only ever appends "written" to the front-most unwritten
// run, never to one behind already-written entries. Callers must hold mu.
func (q *Queue) writtenPrefixLen() int {
	i := 0
	for i < len(q.entries) && q.entries[i].written {
		i++
	}
	return i
}

// MarkWritten flips the written flag on the next n entries still
// unwritten (the batch the writer just sent, which sits right after
// whatever already-written entries are still awaiting responses), and
// fires the wakeup of every one of them whose NCmds is zero —
// fire-and-forget requests are removed right here, per spec.md §4.3,
// strictly before the reader can act on a now-stale front.
func (q *Queue) MarkWritten(n int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	start := q.writtenPrefixLen()
	end := start + n
	if end > len(q.entries) {
		end = len(q.entries)
	}
	kept := append([]*Entry(nil), q.entries[:start]...)
	for _, e := range q.entries[start:end] {
		e.written = true
		if e.nCmds <= 0 {
			e.resolve(nil, 0)
		} else {
			kept = append(kept, e)
		}
	}
	q.entries = append(kept, q.entries[end:]...)
}

// Coalesce returns a contiguous byte slice built from the payloads of the
// largest run of still-unwritten entries (bounded by limit) that
// immediately follows any already-written-but-unanswered entries at the
// front of the queue, plus the number of entries and the sum of their
// NCmds. When limit <= 1 only the first unwritten entry is included,
// realizing Opts.CoalesceRequests == false.
func (q *Queue) Coalesce(limit int) (payload []byte, count int, totalCmds int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if limit <= 0 {
		limit = 1
	}
	start := q.writtenPrefixLen()
	for i := start; i < len(q.entries) && i-start < limit; i++ {
		e := q.entries[i]
		payload = append(payload, e.Request.Bytes...)
		totalCmds += int64(e.Request.NCmds)
		count++
	}
	return payload, count, totalCmds
}

// DropUnwritten removes every entry that has not yet been written and
// fails it with err; entries already written but still awaiting responses
// are left in place (the reader will still observe their response bytes
// on a connection that is about to be torn down, so they get failed too,
// but only once the caller — the supervisor's cleanup step — decides no
// more data is coming and calls DropAll instead).
func (q *Queue) DropUnwritten(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.entries[:0:0]
	for _, e := range q.entries {
		if e.written {
			kept = append(kept, e)
		} else {
			e.stop = true
			e.resolve(err, 0)
		}
	}
	q.entries = kept
}

// DropAll empties the queue and fails every remaining entry with err,
// regardless of written state. Used by the supervisor's cleanup step
// (spec.md §4.7 step 5) and by Close.
func (q *Queue) DropAll(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	all := q.entries
	q.entries = nil
	for _, e := range all {
		e.stop = true
		e.resolve(err, 0)
	}
}
