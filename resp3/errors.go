package resp3

import (
	"errors"

	"github.com/joomcode/errorx"
)

// ErrIncomplete is not a failure: it means the buffer fed so far does not
// contain a full top-level response yet. The caller should read more bytes
// from the wire and Feed them in.
var ErrIncomplete = errors.New("resp3: incomplete response, need more bytes")

// ErrAborted is returned by Feed when a Visitor returns ActionAbort.
var ErrAborted = errors.New("resp3: aborted by visitor")

// Namespace groups every fatal parse-error type the decoder can raise.
// These mirror spec.md §4.1's error kinds one-to-one.
var Namespace = errorx.NewNamespace("resp3")

var (
	ErrBadKindByte           = Namespace.NewType("bad_kind_byte")
	ErrBadLength             = Namespace.NewType("bad_length")
	ErrBadUTF8InInlineHeader = Namespace.NewType("bad_utf8_inline_header")
	ErrProtocolNesting       = Namespace.NewType("protocol_nesting")
	ErrResponseTooLarge      = Namespace.NewType("response_too_large")
)
