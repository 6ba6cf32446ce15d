/*
Package redisconn is a single-connection, implicitly pipelined client for a
Redis-compatible key/value server.

https://redis.io/topics/pipelining

Rather than one connection per in-flight request, redisconn keeps exactly one
TCP or UNIX connection open and multiplexes every caller's commands onto it.
A write loop drains caller-submitted commands highest-priority-first and
writes them back to back; a read loop consumes the replies in the exact
order they were written and routes each one back to whichever caller asked
for it, using a FIFO ledger rather than per-request correlation ids (Redis's
wire protocol carries none).

Capabilities

- implicit pipelining: many concurrent callers, one connection,

- priority scheduling: callers tag each command with a priority class, and
the writer always drains the highest non-suppressed, non-empty class next,

- fire-and-forget or awaited calls, singly or in batches,

- automatic reconnection with a fixed backoff, AUTH/SELECT issued on every
connect from Opts.Password/Opts.DB, and a pluggable on-connect hook for
further setup,

- pluggable logging.

Limitations

- no cluster/sentinel topology handling, no transactions, no pub/sub: this
package is the single-connection core only,

- a lost connection does not replay commands whose replies were lost; the
caller's pending calls are failed and must be retried by the caller.

Usage

	conn, err := redisconn.Connect(ctx, redisconn.Opts{
		Host: "127.0.0.1",
		Port: 6379,
	})
	if err != nil {
		log.Fatal(err)
	}
	conn.Start()

	reply, err := conn.AwaitOne(ctx, redisconn.Query{"PING"}, 0)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(reply.String())

Command arguments accepted in a Query are nil, []byte, string, any integer
type, float32/float64 and bool; they are serialized exactly as Redis expects
bulk strings to be serialized (numbers in decimal, bool as "0"/"1", nil as
an empty string). Replies come back as a Reply, a five-kind tagged union
mirroring the RESP grammar (simple string, error, integer, bulk string,
array); a RESP error reply is a Reply value, not a Go error — Go errors are
reserved for transport and protocol failures.
*/
package redisconn
