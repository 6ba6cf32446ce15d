package redisconn

import "github.com/joomcode/errorx"

// Structured properties attached to the errorx.Error decorations passed to
// Logger.Report, so a custom Logger can pull connection context out of a
// failure without string-parsing it.
var (
	EKAddr = errorx.RegisterProperty("addr")
	EKDb   = errorx.RegisterProperty("db")
)

func withNewProperty(err *errorx.Error, p errorx.Property, v interface{}) *errorx.Error {
	if _, ok := err.Property(p); ok {
		return err
	}
	return err.WithProperty(p, v)
}

// decorate wraps a raw transport/protocol error for logging, tagging it
// with the connection's address and (if selected) db index. This is
// separate from *Error: decorate's result is only ever handed to a Logger,
// never returned to a caller.
func (c *Connection) decorate(err error, msg string) *errorx.Error {
	e := errorx.Decorate(err, msg)
	e = withNewProperty(e, EKAddr, c.addr())
	if c.opts.DB != 0 {
		e = withNewProperty(e, EKDb, c.opts.DB)
	}
	return e
}
