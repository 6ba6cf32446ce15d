// Package testbed implements a minimal in-process RESP server for
// exercising the connect/write/read loops in tests without a real Redis
// instance. Grounded on the teacher's testbed package, which spawned a real
// redis-server binary and dialed it directly (testbed/server.go,
// testbed/conn.go); this version replaces the subprocess with an in-memory
// command table so the test suite has no external dependency.
package testbed

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/kvlink/redisconn/resp"
)

// Server is a tiny RESP-speaking server supporting just enough commands to
// drive AUTH/SELECT setup and a handful of data commands: PING, SET, GET,
// INCR, AUTH, SELECT, ECHO.
type Server struct {
	ln net.Listener

	mu       sync.Mutex
	data     map[string][]byte
	password string
	received []string

	// Drop, if set, causes the very next reply on any connection to be a
	// raw close instead of an answer, simulating a mid-stream disconnect.
	Drop bool
	// Garble, if set, writes a malformed header instead of a real reply,
	// simulating a framing desync.
	Garble bool
}

// Listen starts a Server on a loopback TCP port chosen by the OS.
func Listen() (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &Server{ln: ln, data: make(map[string][]byte)}
	go s.acceptLoop()
	return s, nil
}

// Addr is the host:port a Connection should dial.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// RequirePassword makes AUTH mandatory; any command issued before a
// successful AUTH is answered with an error reply.
func (s *Server) RequirePassword(pw string) {
	s.mu.Lock()
	s.password = pw
	s.mu.Unlock()
}

// Close stops accepting connections.
func (s *Server) Close() error { return s.ln.Close() }

// Received returns, in arrival order, a space-joined rendering of every
// command this server has dispatched since it started (or since
// ResetReceived was last called). Tests use it to assert wire ordering
// across priorities.
func (s *Server) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.received))
	copy(out, s.received)
	return out
}

// ResetReceived clears the recorded command log.
func (s *Server) ResetReceived() {
	s.mu.Lock()
	s.received = nil
	s.mu.Unlock()
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)

	authed := s.password == ""
	for {
		v, err := resp.Read(r)
		if err != nil {
			return
		}
		args := flatten(v)
		if len(args) == 0 {
			continue
		}

		s.mu.Lock()
		drop, garble := s.Drop, s.Garble
		s.Drop, s.Garble = false, false
		s.received = append(s.received, strings.Join(args, " "))
		s.mu.Unlock()
		if drop {
			return
		}
		if garble {
			conn.Write([]byte("*not-a-length\r\n"))
			continue
		}

		reply := s.dispatch(args, &authed)
		if _, err := conn.Write(reply); err != nil {
			return
		}
	}
}

func flatten(v resp.ReplyValue) []string {
	if v.Kind != '*' {
		return nil
	}
	out := make([]string, len(v.Array))
	for i, e := range v.Array {
		if e.Kind == '$' {
			out[i] = string(e.Bulk)
		} else {
			out[i] = e.Str
		}
	}
	return out
}

func (s *Server) dispatch(args []string, authed *bool) []byte {
	cmd := upper(args[0])

	if !*authed && cmd != "AUTH" {
		return errorReply("NOAUTH Authentication required")
	}

	switch cmd {
	case "AUTH":
		if len(args) != 2 {
			return errorReply("ERR wrong number of arguments for 'auth' command")
		}
		s.mu.Lock()
		ok := args[1] == s.password
		s.mu.Unlock()
		if !ok {
			return errorReply("ERR invalid password")
		}
		*authed = true
		return simpleReply("OK")

	case "SELECT":
		return simpleReply("OK")

	case "PING":
		if len(args) > 1 {
			return bulkReply([]byte(args[1]))
		}
		return simpleReply("PONG")

	case "ECHO":
		if len(args) != 2 {
			return errorReply("ERR wrong number of arguments for 'echo' command")
		}
		return bulkReply([]byte(args[1]))

	case "SET":
		if len(args) != 3 {
			return errorReply("ERR wrong number of arguments for 'set' command")
		}
		s.mu.Lock()
		s.data[args[1]] = []byte(args[2])
		s.mu.Unlock()
		return simpleReply("OK")

	case "GET":
		if len(args) != 2 {
			return errorReply("ERR wrong number of arguments for 'get' command")
		}
		s.mu.Lock()
		v, ok := s.data[args[1]]
		s.mu.Unlock()
		if !ok {
			return nullBulkReply()
		}
		return bulkReply(v)

	case "INCR":
		if len(args) != 2 {
			return errorReply("ERR wrong number of arguments for 'incr' command")
		}
		s.mu.Lock()
		n := parseStored(s.data[args[1]]) + 1
		s.data[args[1]] = []byte(fmt.Sprintf("%d", n))
		s.mu.Unlock()
		return integerReply(n)

	default:
		return errorReply(fmt.Sprintf("ERR unknown command '%s'", args[0]))
	}
}

func parseStored(b []byte) int64 {
	var n int64
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int64(c-'0')
	}
	return n
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

func simpleReply(s string) []byte  { return []byte("+" + s + "\r\n") }
func errorReply(s string) []byte   { return []byte("-" + s + "\r\n") }
func integerReply(i int64) []byte  { return []byte(fmt.Sprintf(":%d\r\n", i)) }
func nullBulkReply() []byte        { return []byte("$-1\r\n") }
func bulkReply(b []byte) []byte {
	return []byte(fmt.Sprintf("$%d\r\n%s\r\n", len(b), b))
}
