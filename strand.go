package redisconn

import "errors"

// errStopped is returned by signal.Wait (and surfaced nowhere else) when the
// connection is being torn down while a loop was parked waiting for work.
var errStopped = errors.New("redisconn: stopped")

// strand is the single-threaded cooperative dispatcher spec §4.1 describes:
// every mutation of the queue set, ledger, and suppression set happens
// inside a closure posted here, so those structures need no locking at
// all — the only synchronization is the channel hand-off inherent in
// posting from an arbitrary producer goroutine. The connection flags and
// the transport pointer are atomics and are updated outside the strand.
//
// This is the idiomatic Go rendering of what the source implements with a
// boost::asio::io_context::strand: one goroutine draining a channel of
// closures, nothing fancier.
type strand struct {
	jobs chan func()
	done chan struct{}
}

func newStrand() *strand {
	return &strand{
		jobs: make(chan func(), 256),
		done: make(chan struct{}),
	}
}

// run is the strand's body; Connection.Start spawns it in its own
// goroutine. It keeps dispatching posted closures until stop is called.
func (s *strand) run() {
	for {
		select {
		case f := <-s.jobs:
			f()
		case <-s.done:
			return
		}
	}
}

// post hands a closure to the strand from any goroutine. It never blocks
// the caller past the channel send itself — posting is the one piece of
// cross-goroutine synchronization this package needs.
func (s *strand) post(f func()) {
	select {
	case s.jobs <- f:
	case <-s.done:
	}
}

func (s *strand) stop() {
	close(s.done)
}

// postSync posts f and blocks the caller until it has run on the strand.
// Used by loops and by Close to read back a result (or simply to
// sequence-after a mutation) without needing their own locking.
func (s *strand) postSync(f func()) {
	wait := make(chan struct{})
	s.post(func() {
		f()
		close(wait)
	})
	select {
	case <-wait:
	case <-s.done:
	}
}
