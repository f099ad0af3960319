package conn

import "log"

// LogKind identifies a connection lifecycle event reported to Logger.
type LogKind int

const (
	LogResolving LogKind = iota
	LogConnecting
	LogConnected
	LogHandshakeFailed
	LogDisconnected
	LogIdleTimeout
	LogClosed
	LogMAX
)

// Logger receives lifecycle events from a running Connection. Report must
// not block; it is called from whichever internal goroutine observed the
// event.
type Logger interface {
	Report(event LogKind, c *Connection, v ...interface{})
}

type defaultLogger struct{}

func (defaultLogger) Report(event LogKind, c *Connection, v ...interface{}) {
	switch event {
	case LogResolving:
		log.Printf("resp3conn: resolving %s", c.addr)
	case LogConnecting:
		log.Printf("resp3conn: connecting to %s", c.addr)
	case LogConnected:
		log.Printf("resp3conn: connected to %s", c.addr)
	case LogHandshakeFailed:
		log.Printf("resp3conn: handshake with %s failed: %s", c.addr, v[0])
	case LogDisconnected:
		log.Printf("resp3conn: disconnected from %s: %s", c.addr, v[0])
	case LogIdleTimeout:
		log.Printf("resp3conn: %s idle for %s, closing", c.addr, v[0])
	case LogClosed:
		log.Printf("resp3conn: %s closed", c.addr)
	default:
		args := []interface{}{"resp3conn: unexpected event", event, c.addr}
		log.Print(append(args, v...)...)
	}
}
