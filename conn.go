package redisconn

import (
	"context"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultReconnectPause = 5 * time.Second
	defaultIOTimeout      = 1 * time.Second
)

// OnConnectedHook runs on every successful connect, after the built-in
// AUTH/SELECT setup. It should not perform long blocking operations (per
// the original RedisConnection::SetConnectedCallback's documented
// contract). It runs on the connect loop's goroutine after the transport
// has been published, so regular traffic, including the hook's own
// AwaitOne/FireOne calls, is already being written while it runs.
type OnConnectedHook func(ctx context.Context, conn *Connection) error

// Opts configures a Connection. Host/Port select a TCP transport;
// UnixPath, if non-empty, selects a UNIX transport instead and Host/Port
// are ignored (spec §4.2/§6).
type Opts struct {
	Host     string
	Port     int
	UnixPath string

	Password string
	DB       int

	// Priorities is the compile-time-known count of priority classes this
	// Connection recognizes; Priority values must be in [0, Priorities).
	Priorities int

	// PriorityNames labels priority classes for log output only; PriorityNames[i]
	// names Priority(i). A missing or short entry falls back to the numeric value.
	PriorityNames []string

	ReconnectPause time.Duration
	DialTimeout    time.Duration
	IOTimeout      time.Duration

	Logger Logger
}

// Connection is the single-connection pipelined query engine: one
// transport, a strand serializing all shared mutable state, and three
// long-lived loops (connect, write, read) layered over it.
type Connection struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   Opts

	strand      *strand
	qs          *queueSet
	writeSignal *signal
	readSignal  *signal

	started    atomic.Bool
	connecting atomic.Bool
	connected  atomic.Bool

	tr atomic.Pointer[transport]

	hookMu      sync.Mutex
	onConnected OnConnectedHook
}

// Connect validates opts and returns a Connection that has not yet dialed
// anything; call Start to begin connecting. Grounded on the teacher's
// redisconn.Connect, which likewise validates before doing any I/O.
func Connect(ctx context.Context, opts Opts) (*Connection, error) {
	if ctx == nil {
		return nil, newErr(ErrKindOpts, ErrNoAddressProvided).WithMsg("context must not be nil")
	}
	if opts.UnixPath == "" && opts.Host == "" {
		return nil, newErr(ErrKindOpts, ErrNoAddressProvided)
	}
	if opts.Priorities <= 0 {
		opts.Priorities = 1
	}
	if opts.ReconnectPause == 0 {
		opts.ReconnectPause = defaultReconnectPause
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = opts.ReconnectPause / 2
	}
	if opts.IOTimeout == 0 {
		opts.IOTimeout = defaultIOTimeout
	} else if opts.IOTimeout < 0 {
		opts.IOTimeout = 0
	}
	if opts.Logger == nil {
		opts.Logger = defaultLogger{}
	}

	c := &Connection{opts: opts}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.strand = newStrand()
	c.qs = newQueueSet(opts.Priorities)
	c.writeSignal = newSignal()
	c.readSignal = newSignal()
	return c, nil
}

// Start spawns the strand and its write/read loops (idempotently, on first
// call only) and, if no connect loop is running and no connection is up,
// spawns a fresh connect loop. Reconnection after a connection drop is
// started by reconnect, not by Start.
func (c *Connection) Start() {
	if c.started.CompareAndSwap(false, true) {
		go c.strand.run()
		go c.writeLoop()
		go c.readLoop()
	}
	if c.connecting.CompareAndSwap(false, true) {
		go c.connectLoop()
	}
}

// IsConnected reports whether a transport is currently live.
func (c *Connection) IsConnected() bool {
	return c.connected.Load()
}

// Close tears the connection down: cancels the context (stopping the
// connect loop and unblocking any in-flight dial), stops the strand, and
// fails every outstanding sink.
func (c *Connection) Close() {
	c.logger().Report(LogContextClosed, c)
	c.cancel()
	if tr := c.tr.Load(); tr != nil {
		tr.close()
	}
	c.strand.postSync(func() {
		c.qs.failAllOutstanding(newErr(ErrKindContext, ErrContextClosed))
	})
	c.strand.stop()
}

// SetOnConnected installs the hook run after every successful connect, once
// the built-in AUTH/SELECT setup (if configured) has completed.
func (c *Connection) SetOnConnected(hook OnConnectedHook) {
	c.hookMu.Lock()
	c.onConnected = hook
	c.hookMu.Unlock()
}

func (c *Connection) getOnConnected() OnConnectedHook {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	return c.onConnected
}

func (c *Connection) addr() string {
	if c.opts.UnixPath != "" {
		return c.opts.UnixPath
	}
	return net.JoinHostPort(c.opts.Host, strconv.Itoa(c.opts.Port))
}

func (c *Connection) logger() Logger {
	return c.opts.Logger
}

// priorityName renders p using the caller's PriorityNames, falling back to
// its numeric value when unnamed.
func (c *Connection) priorityName(p Priority) string {
	if int(p) >= 0 && int(p) < len(c.opts.PriorityNames) {
		if name := c.opts.PriorityNames[p]; name != "" {
			return name
		}
	}
	return strconv.Itoa(int(p))
}

// FireOne submits a query for sending and discards its reply (spec §4.6).
func (c *Connection) FireOne(query Query, priority Priority) {
	c.logger().Report(LogQuerySubmitted, c, "firing and forgetting", c.priorityName(priority), redactQuery(query))
	c.strand.post(func() {
		c.qs.enqueue(priority, fireOneItem(query))
		c.writeSignal.Set()
	})
}

// FireMany submits queries as a single batch for sending, discarding every
// reply; the batch writes contiguously, so no other item can interleave
// between the queries (spec §4.4).
func (c *Connection) FireMany(queries []Query, priority Priority) {
	for _, q := range queries {
		c.logger().Report(LogQuerySubmitted, c, "firing and forgetting", c.priorityName(priority), redactQuery(q))
	}
	c.strand.post(func() {
		c.qs.enqueue(priority, fireManyItem(queries))
		c.writeSignal.Set()
	})
}

// AwaitOne submits a query, blocks the caller until its reply arrives (or
// ctx is done, or the send/decode fails), and returns the reply.
func (c *Connection) AwaitOne(ctx context.Context, query Query, priority Priority) (Reply, error) {
	c.logger().Report(LogQuerySubmitted, c, "executing", c.priorityName(priority), redactQuery(query))
	sink := newReplySink()
	c.strand.post(func() {
		c.qs.enqueue(priority, awaitOneItem(query, sink))
		c.writeSignal.Set()
	})
	return sink.wait(ctx.Done())
}

// AwaitMany submits queries as a single batch, blocks the caller until all
// replies arrive in order, and returns them.
func (c *Connection) AwaitMany(ctx context.Context, queries []Query, priority Priority) ([]Reply, error) {
	for _, q := range queries {
		c.logger().Report(LogQuerySubmitted, c, "executing", c.priorityName(priority), redactQuery(q))
	}
	sink := newReplyListSink(len(queries))
	c.strand.post(func() {
		c.qs.enqueue(priority, awaitManyItem(queries, sink))
		c.writeSignal.Set()
	})
	return sink.wait(ctx.Done())
}

// Suppress excludes priority from being drained by the writer until
// Unsuppress is called.
func (c *Connection) Suppress(priority Priority) {
	c.strand.post(func() {
		c.qs.suppress(priority)
	})
}

// Unsuppress re-admits priority to the writer's scan and wakes it in case
// work had piled up while suppressed.
func (c *Connection) Unsuppress(priority Priority) {
	c.strand.post(func() {
		c.qs.unsuppress(priority)
		c.writeSignal.Set()
	})
}
