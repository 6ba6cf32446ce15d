package redisconn

import (
	"fmt"
	"log"
	"strings"
)

// LogKind identifies which lifecycle event a Logger.Report call describes.
type LogKind int

const (
	LogConnecting LogKind = iota
	LogConnected
	LogConnectFailed
	LogDisconnected
	LogContextClosed
	LogQuerySubmitted
	LogSendFailed
	LogReceiveFailed
	LogFramingError
	LogOnConnectedHookFailed
	LogMAX
)

// Logger is the pluggable logging hook every Connection uses instead of
// calling the log package directly, grounded on the teacher's
// redisconn.Logger.
type Logger interface {
	Report(event LogKind, conn *Connection, v ...interface{})
}

// defaultLogger logs through the standard log package, the way the
// teacher's defaultLogger does.
type defaultLogger struct{}

func (defaultLogger) Report(event LogKind, conn *Connection, v ...interface{}) {
	switch event {
	case LogConnecting:
		log.Printf("redisconn: connecting to %s", conn.addr())
	case LogConnected:
		log.Printf("redisconn: connected to %s", conn.addr())
	case LogConnectFailed:
		log.Printf("redisconn: connection to %s failed: %s", conn.addr(), v[0])
	case LogDisconnected:
		log.Printf("redisconn: connection to %s broken: %s", conn.addr(), v[0])
	case LogContextClosed:
		log.Printf("redisconn: connect to %s explicitly closed", conn.addr())
	case LogQuerySubmitted:
		log.Printf("redisconn: %s query to %s at priority %s: %s", v[0], conn.addr(), v[1], v[2])
	case LogSendFailed:
		log.Printf("redisconn: error sending query to %s:%s %s", conn.addr(), v[0], v[1])
	case LogReceiveFailed:
		log.Printf("redisconn: error receiving response from %s: %s", conn.addr(), v[0])
	case LogFramingError:
		log.Printf("redisconn: framing error on %s, reconnecting: %s", conn.addr(), v[0])
	case LogOnConnectedHookFailed:
		log.Printf("redisconn: on-connected hook for %s failed: %s", conn.addr(), v[0])
	default:
		log.Print(append([]interface{}{"redisconn: unexpected event:", event, conn}, v...)...)
	}
}

// NoopLogger discards every event.
type NoopLogger struct{}

func (NoopLogger) Report(LogKind, *Connection, ...interface{}) {}

const (
	maxLoggedArgs     = 7
	maxLoggedArgBytes = 61
)

// redactQuery renders a Query for the notice-level submission log: at most
// the first 7 arguments, each truncated to 61 bytes with a trailing
// ellipsis, with a trailing "..." if the query itself had more arguments
// (spec §6). Grounded on the original's LogQuery (8 args / 64 bytes);
// spec.md deliberately tightens both numbers, and SPEC_FULL follows spec.md.
func redactQuery(q Query) string {
	var b strings.Builder
	n := len(q)
	if n > maxLoggedArgs {
		n = maxLoggedArgs
	}
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(redactArg(q[i]))
	}
	if len(q) > maxLoggedArgs {
		b.WriteString(" ...")
	}
	return b.String()
}

func redactArg(v interface{}) string {
	s := argString(v)
	if len(s) > maxLoggedArgBytes {
		return s[:maxLoggedArgBytes] + "..."
	}
	return s
}

func argString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
