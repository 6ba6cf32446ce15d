package redisconn_test

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/kvlink/redisconn"
	"github.com/kvlink/redisconn/testbed"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// Suite drives the literal end-to-end scenarios the package's invariants
// promise, against an in-process testbed server, grounded on the teacher's
// own conn_test.go suite shape (SetupTest/TearDownTest per case, a shared
// context with a generous timeout so CI scheduling jitter never fails a
// test that the invariants themselves are satisfying).
type Suite struct {
	suite.Suite

	srv *testbed.Server
	ctx context.Context
	cancel context.CancelFunc
}

func (s *Suite) SetupTest() {
	srv, err := testbed.Listen()
	s.Require().NoError(err)
	s.srv = srv
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 10*time.Second)
}

func (s *Suite) TearDownTest() {
	s.cancel()
	s.srv.Close()
}

func (s *Suite) connect(opts redisconn.Opts) *redisconn.Connection {
	host, portStr, err := net.SplitHostPort(s.srv.Addr())
	s.Require().NoError(err)
	port, err := strconv.Atoi(portStr)
	s.Require().NoError(err)

	opts.Host = host
	opts.Port = port
	if opts.Priorities == 0 {
		opts.Priorities = 2
	}
	if opts.ReconnectPause == 0 {
		opts.ReconnectPause = 20 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = redisconn.NoopLogger{}
	}

	conn, err := redisconn.Connect(s.ctx, opts)
	s.Require().NoError(err)
	conn.Start()
	return conn
}

func TestSuite(t *testing.T) {
	suite.Run(t, new(Suite))
}

// Scenario 1: simple round-trip.
func (s *Suite) TestSimpleRoundTrip() {
	conn := s.connect(redisconn.Opts{})
	defer conn.Close()

	reply, err := conn.AwaitOne(s.ctx, redisconn.Query{"PING"}, 0)
	s.Require().NoError(err)
	s.Equal(redisconn.ReplySimpleString, reply.Kind)
	s.Equal("PONG", reply.Str)
}

// Scenario 2: pipelined bulk.
func (s *Suite) TestPipelinedBulk() {
	conn := s.connect(redisconn.Opts{})
	defer conn.Close()

	replies, err := conn.AwaitMany(s.ctx, []redisconn.Query{
		{"SET", "k", "v"},
		{"GET", "k"},
	}, 0)
	s.Require().NoError(err)
	s.Require().Len(replies, 2)
	s.Equal("OK", replies[0].Str)
	s.Equal([]byte("v"), replies[1].Bulk)
}

// Scenario 3: priority preemption. A burst of low-priority fire-and-forget
// writes queued while that class is suppressed must not reach the wire
// before a high-priority write queued afterward.
func (s *Suite) TestPriorityPreemption() {
	conn := s.connect(redisconn.Opts{Priorities: 2})
	defer conn.Close()

	conn.Suppress(1)
	for i := 0; i < 100; i++ {
		conn.FireOne(redisconn.Query{"SET", "a", "1"}, 1)
	}
	_, err := conn.AwaitOne(s.ctx, redisconn.Query{"SET", "b", "2"}, 0)
	s.Require().NoError(err)

	conn.Unsuppress(1)
	_, err = conn.AwaitOne(s.ctx, redisconn.Query{"PING"}, 1)
	s.Require().NoError(err)

	received := s.srv.Received()
	bIndex := -1
	for i, cmd := range received {
		if cmd == "SET b 2" {
			bIndex = i
			break
		}
	}
	s.Require().GreaterOrEqual(bIndex, 0, "SET b 2 must have reached the server")
	for i, cmd := range received {
		if cmd == "SET a 1" {
			s.Greater(i, bIndex, "SET a 1 must not precede SET b 2 on the wire")
		}
	}
}

// Scenario 4: fire-and-forget coalescing is exercised at the ledger level in
// TestQueueSet_AppendIgnore_CoalescesAdjacentEntries (queueset_test.go);
// here we only confirm the end-to-end effect is invisible to the caller —
// a burst of fire-and-forget calls followed by an awaited call still gets
// its own, correctly routed reply.
func (s *Suite) TestFireAndForgetBurstThenAwait() {
	conn := s.connect(redisconn.Opts{})
	defer conn.Close()

	for i := 0; i < 500; i++ {
		conn.FireOne(redisconn.Query{"SET", "burst", "x"}, 0)
	}
	reply, err := conn.AwaitOne(s.ctx, redisconn.Query{"GET", "burst"}, 0)
	s.Require().NoError(err)
	s.Equal([]byte("x"), reply.Bulk)
}

// Scenario 5: a send/receive failure fails the caller's sink; the
// connection transparently reconnects and subsequent calls succeed.
func (s *Suite) TestSinkFailsOnDisconnectThenReconnects() {
	conn := s.connect(redisconn.Opts{})
	defer conn.Close()

	_, err := conn.AwaitOne(s.ctx, redisconn.Query{"PING"}, 0)
	s.Require().NoError(err)

	s.srv.Drop = true
	_, err = conn.AwaitOne(s.ctx, redisconn.Query{"PING"}, 0)
	s.Require().Error(err)

	s.Require().Eventually(func() bool {
		reply, err := conn.AwaitOne(s.ctx, redisconn.Query{"PING"}, 0)
		return err == nil && reply.Str == "PONG"
	}, 2*time.Second, 10*time.Millisecond)
}

// Scenario 6: interleaved concurrent producers each see their own,
// correctly-ordered replies, and no reply is lost or duplicated.
func (s *Suite) TestInterleavedConcurrentAwaits() {
	conn := s.connect(redisconn.Opts{})
	defer conn.Close()

	const perProducer = 10
	const producers = 2

	var wg sync.WaitGroup
	results := make(chan int64, perProducer*producers)
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				reply, err := conn.AwaitOne(s.ctx, redisconn.Query{"INCR", "c"}, 0)
				require.NoError(s.T(), err)
				results <- reply.Int
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool)
	var sum int64
	for v := range results {
		s.False(seen[v], "value %d returned more than once", v)
		seen[v] = true
		sum += v
	}
	s.Len(seen, perProducer*producers)
	s.EqualValues((perProducer*producers)*(perProducer*producers+1)/2, sum)
}

// AUTH/SELECT are issued automatically as part of the connect handshake
// when Password/DB are configured.
func (s *Suite) TestAuthAndSelectOnConnect() {
	s.srv.RequirePassword("hunter2")
	conn := s.connect(redisconn.Opts{Password: "hunter2", DB: 3})
	defer conn.Close()

	reply, err := conn.AwaitOne(s.ctx, redisconn.Query{"PING"}, 0)
	s.Require().NoError(err)
	s.Equal("PONG", reply.Str)

	received := s.srv.Received()
	s.Require().NotEmpty(received)
	s.Equal("AUTH hunter2", received[0])
	s.Equal("SELECT 3", received[1])
}

// SetOnConnected runs after the built-in AUTH/SELECT setup (here SELECT,
// since DB is set) and can issue its own commands on the freshly
// (re)established connection.
func (s *Suite) TestOnConnectedHookRunsAfterSetup() {
	ran := make(chan struct{}, 1)
	host, portStr, err := net.SplitHostPort(s.srv.Addr())
	s.Require().NoError(err)
	port, _ := strconv.Atoi(portStr)

	conn, err := redisconn.Connect(s.ctx, redisconn.Opts{
		Host:           host,
		Port:           port,
		DB:             3,
		Priorities:     1,
		ReconnectPause: 20 * time.Millisecond,
		Logger:         redisconn.NoopLogger{},
	})
	s.Require().NoError(err)
	conn.SetOnConnected(func(ctx context.Context, c *redisconn.Connection) error {
		received := s.srv.Received()
		afterSetup := len(received) > 0 && received[0] == "SELECT 3"
		reply, err := c.AwaitOne(ctx, redisconn.Query{"ECHO", "hook-ran"}, 0)
		if err != nil {
			return err
		}
		if afterSetup && string(reply.Bulk) == "hook-ran" {
			select {
			case ran <- struct{}{}:
			default:
			}
		}
		return nil
	})
	conn.Start()
	defer conn.Close()

	s.Require().Eventually(func() bool {
		select {
		case <-ran:
			return true
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
