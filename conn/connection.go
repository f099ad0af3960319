// Package conn implements the connection engine: the writer, reader,
// health, and idle-watchdog loops that together keep one multiplexed
// RESP3 connection to Redis alive, plus the supervisor that sequences
// resolve/connect/handshake around them and the public surface (Exec,
// ReceivePush, Run, Close) submitters and callers use.
package conn

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/gofrs/uuid"

	"resp3conn/internal/queue"
	"resp3conn/resp3"
)

// Connection is a single multiplexed connection to a Redis server. Its
// queue and push channel outlive any one Run invocation: requests
// submitted while disconnected stay queued for the next successful
// handshake unless Opts.CloseOnConnectionLost is set.
type Connection struct {
	lastData int64 // atomic Unix nanoseconds of the last byte read

	addr string
	opts Opts

	queue  *queue.Queue
	pushCh chan pushMessage

	connected int32 // atomic bool: a handshake has completed and no fatal error has occurred since

	mu        sync.Mutex
	stream    Stream
	runCancel context.CancelFunc

	closedOnce sync.Once
	closed     chan struct{}
}

// New creates a Connection targeting addr ("host:port"). It does not dial;
// call Run to establish and service the connection.
func New(addr string, opts Opts) *Connection {
	o := opts.withDefaults()
	if o.HealthCheckID == "" {
		if id, err := uuid.NewV4(); err == nil {
			o.HealthCheckID = id.String()
		}
	}
	if o.ClientName == "" {
		if id, err := uuid.NewV4(); err == nil {
			o.ClientName = "resp3conn-" + id.String()
		}
	}
	return &Connection{
		addr:   addr,
		opts:   o,
		queue:  queue.New(),
		pushCh: make(chan pushMessage, o.PushBufferSize),
		closed: make(chan struct{}),
	}
}

// Addr returns the configured target address.
func (c *Connection) Addr() string { return c.addr }

// ConnectedNow reports whether the most recent handshake succeeded and no
// fatal error has ended that Run invocation since.
func (c *Connection) ConnectedNow() bool {
	return atomic.LoadInt32(&c.connected) != 0
}

// Exec is C8's exec: it enqueues req, waits for its wakeup (or ctx, or
// Close, whichever comes first), and returns the outcome. A ctx
// cancellation after the request has already been written to the wire
// still lets the reader drain its response bytes (spec.md §5); only the
// caller's wait is cut short.
func (c *Connection) Exec(ctx context.Context, req resp3.Request, adapter queue.Adapter) (error, int64) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.opts.CloseOnConnectionLost && !c.ConnectedNow() {
		return ErrNotConnected.New("exec on %s with no live connection", c.addr), 0
	}
	select {
	case <-c.closed:
		return ErrOperationAborted.New("connection to %s is closed", c.addr), 0
	default:
	}

	e := c.queue.Enqueue(req, adapter)
	select {
	case <-e.Done():
		return e.Result()
	case <-ctx.Done():
		c.queue.Cancel(e, ErrOperationAborted.Wrap(ctx.Err(), "exec on %s canceled", c.addr))
	case <-c.closed:
		c.queue.Cancel(e, ErrOperationAborted.New("connection to %s is closed", c.addr))
	}
	<-e.Done()
	return e.Result()
}

// ReceivePush is C8's receive_push: it waits for one fully-decoded
// Push-rooted response and replays its nodes into adapter. Supporting more
// than one concurrent caller is not required by spec.md §4.8; callers that
// do so simply race over which one receives the next message.
func (c *Connection) ReceivePush(ctx context.Context, adapter queue.Adapter) (error, int64) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case msg := <-c.pushCh:
		for _, n := range msg.nodes {
			adapter(n)
		}
		return nil, msg.bytes
	case <-ctx.Done():
		return ErrOperationAborted.Wrap(ctx.Err(), "receive_push on %s canceled", c.addr), 0
	case <-c.closed:
		return ErrOperationAborted.New("connection to %s is closed", c.addr), 0
	}
}

// Close cancels any running Run, marks every queued entry stop=true and
// fires their wakeups with OperationAborted, empties the queue, and closes
// the socket. Close is idempotent.
func (c *Connection) Close() error {
	c.closedOnce.Do(func() {
		close(c.closed)
		c.queue.DropAll(ErrOperationAborted.New("connection to %s is closed", c.addr))

		c.mu.Lock()
		if c.runCancel != nil {
			c.runCancel()
		}
		stream := c.stream
		c.mu.Unlock()

		if stream != nil {
			stream.Close()
		}
		atomic.StoreInt32(&c.connected, 0)
		c.opts.Logger.Report(LogClosed, c)
	})
	return nil
}
