package redisconn

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"time"
)

// transport unifies TCP and UNIX-domain byte streams behind one read/write
// interface (spec §4.2). Only one transport is ever live for a Connection
// at a time; reconnection replaces it wholesale.
type transport struct {
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration
}

// dial opens a TCP connection to host:port, or a UNIX connection to path if
// path is non-empty (path takes priority, per spec §4.2/§6).
func dial(ctx context.Context, host string, port int, path string, dialTimeout time.Duration) (*transport, error) {
	d := net.Dialer{Timeout: dialTimeout}
	var conn net.Conn
	var err error
	if path != "" {
		conn, err = d.DialContext(ctx, "unix", path)
	} else {
		conn, err = d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	}
	if err != nil {
		return nil, newErrWrap(ErrKindConnection, ErrDial, err)
	}
	return &transport{conn: conn, reader: bufio.NewReader(conn)}, nil
}

// write sends b, applying the transport's write deadline when one is set
// (mirrors redisconn/deadline_io.go and redis_conn/deadline_io.go: deadlines
// are set per-call, not once at dial time, so a long-idle connection isn't
// penalized by a stale deadline).
func (t *transport) write(b []byte) error {
	if t.timeout > 0 {
		t.conn.SetWriteDeadline(time.Now().Add(t.timeout))
	}
	_, err := t.conn.Write(b)
	if err != nil {
		return newErrWrap(ErrKindIO, ErrIO, err)
	}
	return nil
}

func (t *transport) setReadDeadline() {
	if t.timeout > 0 {
		t.conn.SetReadDeadline(time.Now().Add(t.timeout))
	}
}

func (t *transport) close() {
	t.conn.Close()
}
