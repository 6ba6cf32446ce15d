package redisconn

import (
	"context"
	"errors"
	"time"

	"github.com/kvlink/redisconn/resp"
)

// connectLoop is entered once per Start() (or re-entered after a drop via
// the connecting CAS in reconnect) and runs until the first successful
// connection, then exits (spec §4.3). On cancellation it returns silently,
// distinguishing that from a connect failure, which is logged and retried.
func (c *Connection) connectLoop() {
	defer c.connecting.Store(c.connected.Load())

	for {
		if c.ctx.Err() != nil {
			return
		}

		c.logger().Report(LogConnecting, c)
		tr, err := dial(c.ctx, c.opts.Host, c.opts.Port, c.opts.UnixPath, c.opts.DialTimeout)
		if err != nil {
			if errors.Is(c.ctx.Err(), context.Canceled) {
				return
			}
			c.logger().Report(LogConnectFailed, c, c.decorate(err, "dial failed"))
			if !c.sleepBackoff() {
				return
			}
			continue
		}
		tr.timeout = c.opts.IOTimeout

		// AUTH/SELECT run directly against the freshly dialed transport,
		// bypassing the priority queues entirely, so they are guaranteed to
		// reach the server before any caller-submitted traffic — mirrors the
		// original's inline handling in Connect() (icingadb's
		// RedisConnection::Connect performs its setup before marking itself
		// available for regular traffic).
		if err := c.authAndSelect(tr); err != nil {
			tr.close()
			c.logger().Report(LogConnectFailed, c, c.decorate(err, "setup failed"))
			if !c.sleepBackoff() {
				return
			}
			continue
		}

		// Publish the transport and mark connected *before* running the
		// caller's OnConnectedHook (spec §4.3: "mark connected=true, invoke
		// the on-connected hook"): the hook is handed a Connection whose
		// normal AwaitOne/FireOne API already works, rather than one whose
		// write loop has nowhere to send to yet.
		c.tr.Store(tr)
		c.connected.Store(true)
		c.logger().Report(LogConnected, c)
		c.writeSignal.Set()

		if hook := c.getOnConnected(); hook != nil {
			if err := hook(c.ctx, c); err != nil {
				c.logger().Report(LogOnConnectedHookFailed, c, c.decorate(err, "on-connected hook failed"))
			}
		}
		return
	}
}

// authAndSelect issues AUTH/SELECT (whichever are configured) directly
// against tr, ahead of the regular queues.
func (c *Connection) authAndSelect(tr *transport) error {
	if c.opts.Password != "" {
		if err := c.controlCall(tr, Query{"AUTH", c.opts.Password}); err != nil {
			return newErrWrap(ErrKindConnection, ErrAuth, err)
		}
	}
	if c.opts.DB != 0 {
		if err := c.controlCall(tr, Query{"SELECT", c.opts.DB}); err != nil {
			return newErrWrap(ErrKindConnection, ErrConnSetup, err)
		}
	}
	return nil
}

func (c *Connection) controlCall(tr *transport, q Query) error {
	buf, err := encodeQuery(nil, q)
	if err != nil {
		return err
	}
	if err := tr.write(buf); err != nil {
		return err
	}
	tr.setReadDeadline()
	rv, err := resp.Read(tr.reader)
	if err != nil {
		return err
	}
	reply := replyFromValue(rv)
	if reply.Kind == ReplyError {
		return errors.New(reply.Str)
	}
	return nil
}

// sleepBackoff waits the configured ReconnectPause, returning false if the
// connection's context was cancelled first.
func (c *Connection) sleepBackoff() bool {
	t := time.NewTimer(c.opts.ReconnectPause)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// reconnect tears down the current transport and state after a fatal I/O
// or framing error, fails every outstanding sink, and restarts the connect
// loop (spec §7/§9, REDESIGN FLAGS: framing errors escalate to a full
// reconnect rather than being swallowed).
func (c *Connection) reconnect(tr *transport, cause error) {
	// Only the caller that actually clears the shared pointer is the winner:
	// write and read loop can both detect failure on the same dead
	// transport and both call reconnect, but exactly one CompareAndSwap
	// against the same old *transport succeeds. The loser has nothing left
	// to do — the winner already tears everything down and restarts.
	if !c.tr.CompareAndSwap(tr, nil) {
		return
	}
	tr.close()
	c.connected.Store(false)

	c.logger().Report(LogDisconnected, c, c.decorate(cause, "connection lost"))

	c.strand.postSync(func() {
		c.qs.failAllOutstanding(newErrWrap(ErrKindConnection, ErrNotConnected, cause))
	})

	// connecting was left true by the connect loop that published tr (it
	// stores connecting := connected on exit, per the original's Connect()
	// deferred reset); reset it here so the CompareAndSwap below can win and
	// spawn a fresh connect loop for this drop.
	c.connecting.Store(false)
	if c.connecting.CompareAndSwap(false, true) {
		go c.connectLoop()
	}
}
