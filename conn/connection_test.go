package conn_test

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/joomcode/errorx"
	"github.com/stretchr/testify/require"

	"resp3conn/conn"
	"resp3conn/resp3"
)

// readCommand parses one RESP array-of-bulk-strings request off r, which is
// all this engine ever sends: a minimal server-side stand-in for exercising
// the client without a real Redis binary.
func readCommand(r *bufio.Reader) ([]string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	line = strings.TrimRight(line, "\r\n")
	if len(line) == 0 || line[0] != '*' {
		return nil, fmt.Errorf("fake server: expected array header, got %q", line)
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil {
		return nil, err
	}
	args := make([]string, n)
	for i := 0; i < n; i++ {
		hdr, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		hdr = strings.TrimRight(hdr, "\r\n")
		blen, err := strconv.Atoi(hdr[1:])
		if err != nil {
			return nil, err
		}
		buf := make([]byte, blen+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		args[i] = string(buf[:blen])
	}
	return args, nil
}

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	return ln
}

// acceptAndHandshake accepts one connection, consumes its HELLO request,
// and replies with an empty map (a valid, minimal HELLO response), leaving
// the connection ready for the scripted part of a test.
func acceptAndHandshake(t *testing.T, ln net.Listener) (net.Conn, *bufio.Reader) {
	t.Helper()
	c, err := ln.Accept()
	require.NoError(t, err)
	r := bufio.NewReader(c)
	cmd, err := readCommand(r)
	require.NoError(t, err)
	require.Equal(t, "HELLO", cmd[0])
	_, err = c.Write([]byte("%0\r\n"))
	require.NoError(t, err)
	return c, r
}

func runCtx(t *testing.T, c *conn.Connection) chan error {
	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()
	return done
}

func TestPipelineOrderingAndCoalescing(t *testing.T) {
	ln := listen(t)
	srvDone := make(chan error, 1)
	go func() {
		srvDone <- func() error {
			sc, sr := acceptAndHandshake(t, ln)
			defer sc.Close()

			cmd, err := readCommand(sr)
			if err != nil {
				return err
			}
			if cmd[0] != "SET" {
				return fmt.Errorf("expected SET, got %v", cmd)
			}
			cmd2, err := readCommand(sr)
			if err != nil {
				return err
			}
			if cmd2[0] != "GET" {
				return fmt.Errorf("expected GET, got %v", cmd2)
			}
			if _, err := sc.Write([]byte("+OK\r\n$1\r\n1\r\n")); err != nil {
				return err
			}
			<-time.After(50 * time.Millisecond)
			return nil
		}()
	}()

	c := conn.New(ln.Addr().String(), conn.Opts{
		IOTimeout:        time.Second,
		PingInterval:     5 * time.Second,
		CoalesceRequests: true,
	})
	defer c.Close()
	runDone := runCtx(t, c)

	setReq, err := resp3.AppendCommand(nil, "SET", "a", 1)
	require.NoError(t, err)
	getReq, err := resp3.AppendCommand(nil, "GET", "a")
	require.NoError(t, err)

	var setResult, getResult string
	setCh := make(chan struct{ err error })

	go func() {
		err, _ := c.Exec(context.Background(), resp3.Request{Bytes: setReq, NCmds: 1}, func(n resp3.Node) {
			setResult = string(n.Bytes)
		})
		setCh <- struct{ err error }{err}
	}()
	// Let the SET submitter enqueue first: wire order is enqueue order, and
	// the fake server expects SET before GET.
	time.Sleep(20 * time.Millisecond)

	err, _ = c.Exec(context.Background(), resp3.Request{Bytes: getReq, NCmds: 1}, func(n resp3.Node) {
		getResult = string(n.Bytes)
	})
	require.NoError(t, err)
	require.Equal(t, "1", getResult)

	res := <-setCh
	require.NoError(t, res.err)
	require.Equal(t, "OK", setResult)

	require.NoError(t, <-srvDone)
	c.Close()
	<-runDone
}

func TestExecErrorKeepsConnectionAlive(t *testing.T) {
	ln := listen(t)
	go func() {
		sc, sr := acceptAndHandshake(t, ln)
		defer sc.Close()

		cmd, err := readCommand(sr)
		require.NoError(t, err)
		require.Equal(t, "SET", cmd[0])
		_, err = sc.Write([]byte("-ERR wrong number of arguments for 'set' command\r\n"))
		require.NoError(t, err)

		cmd2, err := readCommand(sr)
		require.NoError(t, err)
		require.Equal(t, "PING", cmd2[0])
		_, err = sc.Write([]byte("+PONG\r\n"))
		require.NoError(t, err)
	}()

	c := conn.New(ln.Addr().String(), conn.Opts{IOTimeout: time.Second, PingInterval: 5 * time.Second})
	defer c.Close()
	runDone := runCtx(t, c)

	badReq, err := resp3.AppendCommand(nil, "SET")
	require.NoError(t, err)
	err, _ = c.Exec(context.Background(), resp3.Request{Bytes: badReq, NCmds: 1}, func(resp3.Node) {})
	require.Error(t, err)
	require.True(t, errorx.IsOfType(err, conn.ErrExecError))
	require.Contains(t, err.Error(), "wrong number of arguments")

	pingReq, err := resp3.AppendCommand(nil, "PING", "x")
	require.NoError(t, err)
	var pong string
	err, _ = c.Exec(context.Background(), resp3.Request{Bytes: pingReq, NCmds: 1}, func(n resp3.Node) { pong = string(n.Bytes) })
	require.NoError(t, err)
	require.Equal(t, "PONG", pong)

	c.Close()
	<-runDone
}

func TestPushInterleave(t *testing.T) {
	ln := listen(t)
	go func() {
		sc, sr := acceptAndHandshake(t, ln)
		defer sc.Close()

		cmd, err := readCommand(sr)
		require.NoError(t, err)
		require.Equal(t, "GET", cmd[0])
		_, err = sc.Write([]byte("*2\r\n$3\r\nGET\r\n$1\r\na\r\n"))
		require.NoError(t, err)
		_, err = sc.Write([]byte(">2\r\n+pubsub\r\n+hi\r\n"))
		require.NoError(t, err)
	}()

	c := conn.New(ln.Addr().String(), conn.Opts{IOTimeout: time.Second, PingInterval: 5 * time.Second})
	defer c.Close()
	runDone := runCtx(t, c)

	getReq, err := resp3.AppendCommand(nil, "GET", "a")
	require.NoError(t, err)
	var nodes []resp3.Node
	err, _ = c.Exec(context.Background(), resp3.Request{Bytes: getReq, NCmds: 1}, func(n resp3.Node) {
		nodes = append(nodes, n)
	})
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	var pushNodes []resp3.Node
	err, _ = c.ReceivePush(context.Background(), func(n resp3.Node) { pushNodes = append(pushNodes, n) })
	require.NoError(t, err)
	require.Len(t, pushNodes, 3)
	require.Equal(t, resp3.Push, pushNodes[0].Kind)

	c.Close()
	<-runDone
}

func TestCloseDuringPipelineAbortsPending(t *testing.T) {
	ln := listen(t)
	blockServer := make(chan struct{})
	go func() {
		sc, sr := acceptAndHandshake(t, ln)
		defer sc.Close()
		readCommand(sr)
		sc.Write([]byte("$1\r\n1\r\n"))
		// second request is read off the wire but never answered, so it is
		// still awaiting its response when Close runs.
		readCommand(sr)
		<-blockServer
	}()
	defer close(blockServer)

	c := conn.New(ln.Addr().String(), conn.Opts{IOTimeout: time.Second, PingInterval: 5 * time.Second})
	runDone := runCtx(t, c)

	req1, _ := resp3.AppendCommand(nil, "GET", "a")
	err, _ := c.Exec(context.Background(), resp3.Request{Bytes: req1, NCmds: 1}, func(resp3.Node) {})
	require.NoError(t, err)

	req2, _ := resp3.AppendCommand(nil, "GET", "b")
	pending := make(chan error, 1)
	go func() {
		err, _ := c.Exec(context.Background(), resp3.Request{Bytes: req2, NCmds: 1}, func(resp3.Node) {})
		pending <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, c.Close())

	err = <-pending
	require.Error(t, err)
	require.True(t, errorx.IsOfType(err, conn.ErrOperationAborted))
	<-runDone
}

func TestHandshakeErrorIsFatal(t *testing.T) {
	ln := listen(t)
	go func() {
		c, err := ln.Accept()
		require.NoError(t, err)
		defer c.Close()
		r := bufio.NewReader(c)
		_, err = readCommand(r)
		require.NoError(t, err)
		c.Write([]byte("-NOAUTH Authentication required.\r\n"))
	}()

	c := conn.New(ln.Addr().String(), conn.Opts{IOTimeout: time.Second})
	err := c.Run(context.Background())
	require.Error(t, err)
	require.True(t, errorx.IsOfType(err, conn.ErrHandshakeFailed))
	require.Contains(t, err.Error(), "NOAUTH")
}

func TestIdleWatchdogFiresWhenServerGoesSilent(t *testing.T) {
	ln := listen(t)
	stop := make(chan struct{})
	t.Cleanup(func() { close(stop) })
	go func() {
		sc, _ := acceptAndHandshake(t, ln)
		defer sc.Close()
		<-stop
	}()

	c := conn.New(ln.Addr().String(), conn.Opts{
		IOTimeout:    5 * time.Second,
		PingInterval: 30 * time.Millisecond,
	})
	defer c.Close()

	err := c.Run(context.Background())
	require.Error(t, err)
	require.True(t, errorx.IsOfType(err, conn.ErrIdleTimeout))
}
