package conn

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/joomcode/errorx"

	"resp3conn/internal/queue"
	"resp3conn/resp3"
)

// pushMessage is one fully-decoded Push-rooted top-level response, buffered
// for ReceivePush. Every Node's Bytes has been copied out of the parser's
// read buffer, since it must outlive the reader's next Read call.
type pushMessage struct {
	nodes []resp3.Node
	bytes int64
}

// readerLoop is C4: it drives a resp3.Parser across successive reads from
// s, routing each completed top-level response to either the push channel
// or the front of the request queue, and stamping lastData (an atomic Unix
// nanosecond timestamp the idle watchdog reads) after every socket read.
func readerLoop(ctx context.Context, q *queue.Queue, pushCh chan<- pushMessage, s Stream, addr string, p *resp3.Parser, lastData *int64) error {
	buf := make([]byte, 64*1024)

	var (
		rootSeen  bool
		isPush    bool
		isExecErr bool
		cur       *queue.Entry
		execMsg   []byte
		pushNodes []resp3.Node
	)

	visit := func(n resp3.Node, _ error) resp3.Action {
		if !rootSeen {
			rootSeen = true
			switch n.Kind {
			case resp3.Push:
				isPush = true
			case resp3.SimpleError, resp3.BlobError:
				cur = q.Front()
				isExecErr = true
				execMsg = append(execMsg[:0], n.Bytes...)
			default:
				cur = q.Front()
			}
		}
		if isPush {
			pushNodes = append(pushNodes, cloneNode(n))
		} else if cur != nil {
			cur.Adapter(n)
		}
		return resp3.ActionContinue
	}

	reset := func() {
		rootSeen, isPush, isExecErr, cur = false, false, false, nil
		pushNodes = pushNodes[:0]
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		k, err := s.Read(buf)
		if err != nil {
			return ErrReadError.Wrap(err, "read from %s", addr)
		}
		atomic.StoreInt64(lastData, time.Now().UnixNano())

		data := buf[:k]
		for {
			n, complete, ferr := p.FeedSize(data, visit)
			data = nil
			if ferr != nil {
				return classifyParseError(ferr)
			}
			if !complete {
				break
			}

			switch {
			case isPush:
				msg := pushMessage{nodes: append([]resp3.Node(nil), pushNodes...), bytes: n}
				select {
				case pushCh <- msg:
				case <-ctx.Done():
					return ctx.Err()
				}
			case isExecErr:
				q.FailHead(ErrExecError.New("%s", execMsg), n)
			default:
				q.DecrementHead(n)
			}
			reset()
		}
	}
}

// cloneNode copies n.Bytes so the node remains valid after the parser's
// buffer is reused by the next Read.
func cloneNode(n resp3.Node) resp3.Node {
	if n.Bytes != nil {
		n.Bytes = append([]byte(nil), n.Bytes...)
	}
	return n
}

func classifyParseError(err error) error {
	if errorx.IsOfType(err, resp3.ErrResponseTooLarge) {
		return ErrResponseTooLarge.Wrap(err, "response exceeded configured limit")
	}
	return ErrProtocolError.Wrap(err, "resp3 decode")
}
