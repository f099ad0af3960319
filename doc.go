/*
Package resp3conn is a single-connection RESP3 client with implicit
pipelining.

It maintains one TCP connection to a Redis-protocol server, serializes
requests from any number of concurrent callers onto it, and demultiplexes
the responses back to the right caller, strictly in wire order. Callers
never block each other waiting on a connection-wide lock for the
duration of a round trip: submitting a request only takes the request
queue's lock long enough to append an entry.

Structure

  - resp3 decodes and encodes the wire protocol: a streaming, re-entrant
    parser plus a command serializer.

  - internal/queue is the FIFO of in-flight and pending requests shared
    between submitter goroutines and the connection's own writer and
    reader goroutines.

  - conn wires both into a supervised connection: a writer loop, a reader
    loop, a periodic health check, an idle watchdog, and the public
    Connection type (Exec, ReceivePush, Run, Close) that ties them
    together.

Usage

	c := conn.New("localhost:6379", conn.Opts{})
	go c.Run(ctx)

	err, _ := c.Exec(ctx, req, func(n resp3.Node) { ... })

Run blocks until the connection ends (I/O error, protocol error, idle
timeout, or explicit Close) and returns why. Reconnection, if wanted, is
the caller's responsibility: calling Run again dials a fresh socket and
redoes the handshake, but the request queue itself outlives any single
Run — requests submitted while no connection is live simply wait, and
are written out as soon as the next Run call's handshake succeeds.

Limitations

  - No connection pooling or cluster routing: this package manages
    exactly one connection to one address.

  - Subscribing (SUBSCRIBE/PSUBSCRIBE) is not a distinct mode here;
    out-of-band messages arrive as ordinary RESP3 Push frames, collected
    with ReceivePush.
*/
package resp3conn
