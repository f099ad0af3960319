package resp3

import (
	"fmt"
	"strconv"
)

// Request is an opaque, caller-owned sequence of already-serialized RESP3
// command frames plus the number of top-level responses it expects.
// Commands that produce no reply (e.g. the SUBSCRIBE family) contribute 0.
// The connection engine never inspects Bytes; it only writes them and
// counts NCmds top-level responses off the wire.
type Request struct {
	Bytes []byte
	NCmds int
}

// AppendCommand serializes one RESP3 command (a name and its arguments) as
// a request array and appends it to buf, returning the grown slice. It is
// the minimal external-collaborator serializer spec.md carves out of the
// core; callers needing richer argument handling should use their own.
func AppendCommand(buf []byte, cmd string, args ...interface{}) ([]byte, error) {
	buf = appendHeader(buf, '*', int64(len(args)+1))
	buf = appendBulkString(buf, cmd)
	for _, arg := range args {
		var err error
		buf, err = appendArg(buf, arg)
		if err != nil {
			return nil, fmt.Errorf("resp3.AppendCommand: %w", err)
		}
	}
	return buf, nil
}

func appendArg(buf []byte, arg interface{}) ([]byte, error) {
	switch v := arg.(type) {
	case string:
		return appendBulkString(buf, v), nil
	case []byte:
		return appendBulkBytes(buf, v), nil
	case int:
		return appendBulkString(buf, strconv.FormatInt(int64(v), 10)), nil
	case int64:
		return appendBulkString(buf, strconv.FormatInt(v, 10)), nil
	case uint64:
		return appendBulkString(buf, strconv.FormatUint(v, 10)), nil
	case float64:
		return appendBulkString(buf, strconv.FormatFloat(v, 'f', -1, 64)), nil
	case bool:
		if v {
			return appendBulkString(buf, "1"), nil
		}
		return appendBulkString(buf, "0"), nil
	case nil:
		return appendBulkString(buf, ""), nil
	default:
		return nil, fmt.Errorf("argument type %T not supported", arg)
	}
}

func appendHeader(buf []byte, marker byte, n int64) []byte {
	buf = append(buf, marker)
	buf = strconv.AppendInt(buf, n, 10)
	return append(buf, '\r', '\n')
}

func appendBulkString(buf []byte, s string) []byte {
	buf = appendHeader(buf, '$', int64(len(s)))
	buf = append(buf, s...)
	return append(buf, '\r', '\n')
}

func appendBulkBytes(buf []byte, b []byte) []byte {
	buf = appendHeader(buf, '$', int64(len(b)))
	buf = append(buf, b...)
	return append(buf, '\r', '\n')
}
