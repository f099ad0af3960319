package conn

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"resp3conn/resp3"
)

// Run is C7, the supervisor. It resolves the address, connects, performs
// the RESP3 handshake, then fans C3–C6 out as siblings under a
// first-error-wins discipline, and finally drains the queue with whatever
// error ended the run. Run may be called again after it returns;
// reconnection is caller-driven (spec.md §4.7).
func (c *Connection) Run(ctx context.Context) error {
	select {
	case <-c.closed:
		return ErrOperationAborted.New("connection to %s is closed", c.addr)
	default:
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.runCancel = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.runCancel = nil
		c.mu.Unlock()
		cancel()
	}()

	c.opts.Metrics.IncReconnect()

	stream, err := c.resolveAndConnect(runCtx)
	if err != nil {
		return err
	}
	stream = withIOTimeout(stream, c.opts.IOTimeout)

	if err := c.handshake(runCtx, stream); err != nil {
		stream.Close()
		c.opts.Logger.Report(LogHandshakeFailed, c, err)
		return err
	}

	c.mu.Lock()
	c.stream = stream
	c.mu.Unlock()
	atomic.StoreInt64(&c.lastData, time.Now().UnixNano())
	atomic.StoreInt32(&c.connected, 1)
	c.opts.Logger.Report(LogConnected, c)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return writerLoop(gctx, c.queue, stream, c.addr, c.opts.CoalesceRequests, c.opts.CoalesceLimit, c.opts.Metrics)
	})
	g.Go(func() error {
		p := &resp3.Parser{MaxDepth: c.opts.MaxDepth, MaxSize: c.opts.MaxReadSize}
		return readerLoop(gctx, c.queue, c.pushCh, stream, c.addr, p, &c.lastData)
	})
	g.Go(func() error {
		return healthLoop(gctx, c.queue, c.opts.PingInterval, c.opts.HealthCheckID, c.opts.Metrics)
	})
	g.Go(func() error {
		return watchdogLoop(gctx, c.opts.PingInterval, &c.lastData, c.opts.Metrics)
	})

	runErr := g.Wait()
	runErr = c.classifyRunEnd(runErr, ctx)

	atomic.StoreInt32(&c.connected, 0)
	c.mu.Lock()
	c.stream = nil
	c.mu.Unlock()
	stream.Close()
	c.queue.DropAll(runErr)
	c.opts.Logger.Report(LogDisconnected, c, runErr)

	return runErr
}

// classifyRunEnd turns the raw errgroup result into one of the typed
// errors spec.md §7 lists: a plain context.Canceled means either Close or
// the caller's ctx ended the run, not a sibling failure, so it is
// rewrapped as OperationAborted; anything else is already typed by the
// sibling that produced it.
func (c *Connection) classifyRunEnd(err error, callerCtx context.Context) error {
	if err != context.Canceled {
		return err
	}
	select {
	case <-c.closed:
		return ErrOperationAborted.Wrap(err, "connection to %s closed", c.addr)
	default:
	}
	if callerCtx.Err() != nil {
		return ErrOperationAborted.Wrap(callerCtx.Err(), "run for %s canceled", c.addr)
	}
	return ErrOperationAborted.Wrap(err, "run for %s canceled", c.addr)
}

func (c *Connection) resolveAndConnect(ctx context.Context) (Stream, error) {
	host, port, err := net.SplitHostPort(c.addr)
	if err != nil {
		return nil, ErrResolveError.Wrap(err, "split host:port for %s", c.addr).WithProperty(EKAddress, c.addr)
	}

	c.opts.Logger.Report(LogResolving, c)
	resolveCtx, rcancel := context.WithTimeout(ctx, c.opts.ResolveTimeout)
	ips, err := net.DefaultResolver.LookupHost(resolveCtx, host)
	timedOut := resolveCtx.Err() == context.DeadlineExceeded
	rcancel()
	if err != nil {
		if timedOut {
			return nil, ErrResolveTimeout.Wrap(err, "resolve %s", host).WithProperty(EKAddress, c.addr)
		}
		return nil, ErrResolveError.Wrap(err, "resolve %s", host).WithProperty(EKAddress, c.addr)
	}

	c.opts.Logger.Report(LogConnecting, c)
	var lastErr error
	for _, ip := range ips {
		connectCtx, ccancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
		s, derr := c.opts.Dialer(connectCtx, "tcp", net.JoinHostPort(ip, port))
		timedOut = connectCtx.Err() == context.DeadlineExceeded
		ccancel()
		if derr == nil {
			return s, nil
		}
		if timedOut {
			lastErr = ErrConnectTimeout.Wrap(derr, "connect to %s", ip).WithProperty(EKAddress, c.addr)
		} else {
			lastErr = ErrConnectError.Wrap(derr, "connect to %s", ip).WithProperty(EKAddress, c.addr)
		}
	}
	if lastErr == nil {
		lastErr = ErrConnectError.New("no addresses resolved for %s", host)
	}
	return nil, lastErr
}

// handshake sends HELLO 3 (plus optional AUTH/SETNAME) and parses exactly
// one top-level response; any server error there is fatal.
func (c *Connection) handshake(ctx context.Context, s Stream) error {
	args := []interface{}{"3"}
	if c.opts.Username != "" || c.opts.Password != "" {
		user := c.opts.Username
		if user == "" {
			user = "default"
		}
		args = append(args, "AUTH", user, c.opts.Password)
	}
	if c.opts.ClientName != "" {
		args = append(args, "SETNAME", c.opts.ClientName)
	}

	buf, err := resp3.AppendCommand(nil, "HELLO", args...)
	if err != nil {
		return ErrHandshakeFailed.Wrap(err, "build HELLO for %s", c.addr)
	}
	if _, err := s.Write(buf); err != nil {
		return ErrHandshakeFailed.Wrap(err, "write HELLO to %s", c.addr)
	}

	p := &resp3.Parser{MaxDepth: c.opts.MaxDepth, MaxSize: c.opts.MaxReadSize}
	nodes, err := readOneResponse(s, p)
	if err != nil {
		return ErrHandshakeFailed.Wrap(err, "read HELLO response from %s", c.addr)
	}
	if len(nodes) > 0 && (nodes[0].Kind == resp3.SimpleError || nodes[0].Kind == resp3.BlobError) {
		return ErrHandshakeFailed.New("%s", nodes[0].Bytes)
	}
	return nil
}

// readOneResponse blocks reading from s until the parser reports one
// complete top-level response, returning its nodes with Bytes copied.
func readOneResponse(s Stream, p *resp3.Parser) ([]resp3.Node, error) {
	var nodes []resp3.Node
	visit := func(n resp3.Node, _ error) resp3.Action {
		nodes = append(nodes, cloneNode(n))
		return resp3.ActionContinue
	}
	buf := make([]byte, 4096)
	for {
		k, err := s.Read(buf)
		if err != nil {
			return nil, err
		}
		_, complete, err := p.FeedSize(buf[:k], visit)
		if err != nil {
			return nil, err
		}
		if complete {
			return nodes, nil
		}
	}
}
