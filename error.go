package redisconn

import (
	"fmt"
	"strings"
)

// ErrorKind classifies an Error by which part of the connection's lifecycle
// produced it.
type ErrorKind uint32

// ErrorCode further refines an ErrorKind.
type ErrorCode uint32

const (
	// ErrKindOpts - construction options are invalid.
	ErrKindOpts ErrorKind = iota + 1
	// ErrKindContext - the caller's context was done before a reply arrived.
	ErrKindContext
	// ErrKindConnection - no transport is currently connected.
	ErrKindConnection
	// ErrKindIO - a read or write against the transport failed.
	ErrKindIO
	// ErrKindRequest - a query could not be encoded or written to the transport.
	ErrKindRequest
	// ErrKindResponse - a reply could not be decoded, or the wire framing
	// desynchronized. Always escalates to a reconnect.
	ErrKindResponse
)

var kindName = map[ErrorKind]string{
	ErrKindOpts:       "ErrKindOpts",
	ErrKindContext:    "ErrKindContext",
	ErrKindConnection: "ErrKindConnection",
	ErrKindIO:         "ErrKindIO",
	ErrKindRequest:    "ErrKindRequest",
	ErrKindResponse:   "ErrKindResponse",
}

func (k ErrorKind) String() string {
	if s, ok := kindName[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrKindUnknown%d", k)
}

const (
	// ErrNoAddressProvided - neither Host/Port nor UnixPath were set.
	ErrNoAddressProvided ErrorCode = iota + 1
	// ErrContextClosed - caller's context was cancelled.
	ErrContextClosed
	// ErrNotConnected - operation attempted while disconnected.
	ErrNotConnected
	// ErrDial - could not open the transport.
	ErrDial
	// ErrAuth - AUTH failed during connection setup.
	ErrAuth
	// ErrConnSetup - some other connection setup step (SELECT) failed.
	ErrConnSetup
	// ErrIO - read/write error, or the connection was closed mid-operation.
	ErrIO
	// ErrArgumentType - a Query argument isn't one of the encodable types.
	ErrArgumentType
	// ErrResponseFormat - the reply byte stream doesn't parse as RESP; a
	// framing desync, always escalated to a reconnect.
	ErrResponseFormat
	// ErrSendFailed - a queued item could not be sent: encoding it failed or
	// the write to the transport failed; the underlying error is its cause.
	ErrSendFailed
)

var codeName = map[ErrorCode]string{
	ErrNoAddressProvided: "ErrNoAddressProvided",
	ErrContextClosed:     "ErrContextClosed",
	ErrNotConnected:      "ErrNotConnected",
	ErrDial:              "ErrDial",
	ErrAuth:              "ErrAuth",
	ErrConnSetup:         "ErrConnSetup",
	ErrIO:                "ErrIO",
	ErrArgumentType:      "ErrArgumentType",
	ErrResponseFormat:    "ErrResponseFormat",
	ErrSendFailed:        "ErrSendFailed",
}

func (c ErrorCode) String() string {
	if s, ok := codeName[c]; ok {
		return s
	}
	return fmt.Sprintf("ErrCodeUnknown%d", c)
}

var defMessage = map[ErrorCode]string{
	ErrNoAddressProvided: "neither host:port nor a unix path were provided",
	ErrContextClosed:     "caller's context is done",
	ErrNotConnected:      "connection is not established",
	ErrDial:              "could not connect",
	ErrAuth:              "auth was not successful",
	ErrConnSetup:         "connection setup unsuccessful",
	ErrIO:                "io error",
	ErrArgumentType:      "query argument type is not supported",
	ErrResponseFormat:    "reply is malformed",
	ErrSendFailed:        "send failed",
}

// Error is returned for every failure that escapes the core: bad options,
// connection problems, encode/decode problems. A plain RESP error reply is
// carried as a Reply value instead (see ReplyError), never as an Error.
type Error struct {
	Kind ErrorKind
	Code ErrorCode
	*kv
}

func newErr(kind ErrorKind, code ErrorCode) *Error {
	return &Error{Kind: kind, Code: code}
}

func newErrWrap(kind ErrorKind, code ErrorCode, err error) *Error {
	return Error{Kind: kind, Code: code}.With("cause", err)
}

// With attaches a named field to a copy of the error. Concurrency-safe: the
// receiver is copied, not mutated, so one *Error template may be reused from
// many goroutines.
func (e Error) With(name string, value interface{}) *Error {
	e.kv = &kv{name: name, value: value, next: e.kv}
	return &e
}

// WithMsg attaches a human-readable message to a copy of the error.
func (e Error) WithMsg(msg string) *Error {
	return e.With("message", msg)
}

// KindOf reports whether the error's code is c.
func (e *Error) KindOf(c ErrorCode) bool {
	return e != nil && e.Code == c
}

func (e Error) Error() string {
	msg := e.msg()
	rest := e.restAsString()
	if rest != "" {
		return fmt.Sprintf("%s (%s %s)", msg, e.Code, rest)
	}
	return fmt.Sprintf("%s (%s)", msg, e.Code)
}

func (e Error) msg() string {
	if m, ok := e.Get("message").(string); ok {
		return m
	}
	if err := e.Cause(); err != nil {
		return err.Error()
	}
	if m := defMessage[e.Code]; m != "" {
		return m
	}
	return "redisconn error"
}

// Cause returns the underlying error this one wraps, if any.
func (e Error) Cause() error {
	if ierr := e.Get("cause"); ierr != nil {
		if err, ok := ierr.(error); ok {
			return err
		}
	}
	return nil
}

func (e Error) restAsString() string {
	var parts []string
	for kv := e.kv; kv != nil; kv = kv.next {
		if kv.name != "message" && kv.name != "cause" {
			parts = append(parts, fmt.Sprintf("%s: %v", kv.name, kv.value))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

type kv struct {
	name  string
	value interface{}
	next  *kv
}

func (kv *kv) Get(name string) interface{} {
	for kv != nil {
		if kv.name == name {
			return kv.value
		}
		kv = kv.next
	}
	return nil
}
