package conn

import "time"

const (
	defaultResolveTimeout = 1 * time.Second
	defaultConnectTimeout = 1 * time.Second
	defaultPingInterval   = 5 * time.Second
	defaultMaxReadSize    = 512 * 1024 * 1024
	defaultPushBufferSize = 64
)

// Opts configures a Connection. Every field has a zero-value default
// described alongside it; spec.md §6 enumerates each one's effect.
type Opts struct {
	// ResolveTimeout bounds DNS resolution. Zero selects a 1s default.
	ResolveTimeout time.Duration
	// ConnectTimeout bounds the TCP dial. Zero selects a 1s default.
	ConnectTimeout time.Duration
	// SSLHandshakeTimeout is the TLS handshake deadline setting. The core
	// never sets up TLS itself and never reads this field; it is not passed
	// to Dialer.
	SSLHandshakeTimeout time.Duration
	// IOTimeout bounds every individual socket read and write once
	// connected. Zero disables the deadline.
	IOTimeout time.Duration
	// PingInterval is the health-loop period and the idle-watchdog's unit:
	// the watchdog fires after 2*PingInterval with no bytes read. Zero
	// selects a 5s default.
	PingInterval time.Duration
	// MaxReadSize bounds response size; exceeding it is fatal
	// (ResponseTooLarge). Zero selects a 512MiB default.
	MaxReadSize int64
	// MaxDepth bounds aggregate nesting; exceeding it is fatal
	// (ProtocolError wrapping resp3.ErrProtocolNesting). Zero selects
	// resp3.DefaultMaxDepth.
	MaxDepth int
	// CoalesceRequests enables the writer merging multiple queued requests
	// into one write; when false the writer sends one request per write.
	CoalesceRequests bool
	// CoalesceLimit caps how many queued requests one write may merge when
	// CoalesceRequests is set. Zero means unbounded.
	CoalesceLimit int

	// HealthCheckID is sent as PING's argument, letting operators
	// correlate health traffic with a specific client instance in a
	// MONITOR or slowlog capture. Empty generates a random one via uuid.
	HealthCheckID string
	Username      string
	Password      string
	ClientName    string

	// ReconnectWaitInterval is advisory: the core never reconnects on its
	// own (spec.md §4.7), but a caller driving Run in a loop can read this
	// back to decide how long to wait before calling Run again.
	ReconnectWaitInterval time.Duration

	// CloseOnConnectionLost, when set, fails every request submitted while
	// no connection is live (NotConnected) instead of queueing it for the
	// next successful handshake.
	CloseOnConnectionLost bool

	// PushBufferSize bounds the push channel's capacity. Zero selects a
	// default of 64; ReceivePush applies backpressure to the reader once
	// it is full, per spec.md §5.
	PushBufferSize int

	Dialer Dialer
	Logger Logger
	Metrics Metrics
}

func (o *Opts) withDefaults() Opts {
	out := *o
	if out.ResolveTimeout <= 0 {
		out.ResolveTimeout = defaultResolveTimeout
	}
	if out.ConnectTimeout <= 0 {
		out.ConnectTimeout = defaultConnectTimeout
	}
	if out.PingInterval <= 0 {
		out.PingInterval = defaultPingInterval
	}
	if out.MaxReadSize <= 0 {
		out.MaxReadSize = defaultMaxReadSize
	}
	if out.PushBufferSize <= 0 {
		out.PushBufferSize = defaultPushBufferSize
	}
	if out.Dialer == nil {
		out.Dialer = DialTCP
	}
	if out.Logger == nil {
		out.Logger = defaultLogger{}
	}
	if out.Metrics == nil {
		out.Metrics = NopMetrics{}
	}
	return out
}
