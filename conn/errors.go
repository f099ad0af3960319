package conn

import (
	"github.com/joomcode/errorx"
)

// Namespace groups every error type the connection engine raises, mirroring
// spec.md §7 one-to-one.
var Namespace = errorx.NewNamespace("conn")

// TraitConnectivity marks errors that mean "this connection is no longer
// usable" as opposed to per-request failures the connection survives.
var TraitConnectivity = errorx.RegisterTrait("connectivity")

var (
	ErrResolveTimeout   = Namespace.NewType("resolve_timeout", TraitConnectivity)
	ErrResolveError     = Namespace.NewType("resolve_error", TraitConnectivity)
	ErrConnectTimeout   = Namespace.NewType("connect_timeout", TraitConnectivity)
	ErrConnectError     = Namespace.NewType("connect_error", TraitConnectivity)
	ErrHandshakeFailed  = Namespace.NewType("handshake_failed", TraitConnectivity)
	ErrIdleTimeout      = Namespace.NewType("idle_timeout", TraitConnectivity)
	ErrWriteError       = Namespace.NewType("write_error", TraitConnectivity)
	ErrReadError        = Namespace.NewType("read_error", TraitConnectivity)
	ErrProtocolError    = Namespace.NewType("protocol_error", TraitConnectivity)
	ErrResponseTooLarge = Namespace.NewType("response_too_large", TraitConnectivity)

	// ErrExecError wraps a server-level error response (RESP3 SimpleError or
	// BlobError at the root of a top-level response). It carries no
	// connectivity trait: the connection stays healthy.
	ErrExecError = Namespace.NewType("exec_error")

	// ErrOperationAborted is the error every still-pending request's wakeup
	// fires with when Close or per-request cancellation cuts it short.
	ErrOperationAborted = Namespace.NewType("operation_aborted")

	// ErrNotConnected is returned by Exec when no connection is live and
	// Opts.CloseOnConnectionLost is set.
	ErrNotConnected = Namespace.NewType("not_connected", TraitConnectivity)
)

// EKAddress carries the address being resolved/connected in error properties.
var EKAddress = errorx.RegisterProperty("address")
