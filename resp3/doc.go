// Package resp3 decodes the Redis RESP3 wire protocol incrementally.
//
// Parser.Feed consumes whatever bytes are available, emits one Node per
// value to a caller-supplied Visitor in depth-tagged pre-order, and stops
// as soon as either a full top-level response has been decoded or the
// buffered bytes run out. It never blocks and never reads from a socket
// itself — the reader loop in package conn owns the connection and drives
// the parser across successive reads.
package resp3
