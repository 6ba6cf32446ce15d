package redisconn

import (
	"github.com/edwingeng/deque/v2"
)

// action tags a ledger entry: what the reader must do with the next Amount
// replies on the wire.
type action int

const (
	actionIgnore action = iota
	actionDeliver
	actionDeliverBulk
)

// ledgerEntry is one FutureResponseActions record (spec §3/§4.7): "the next
// Amount replies belong to this disposition". Adjacent Ignore entries
// coalesce, and so do adjacent Deliver entries; DeliverBulk never coalesces
// because each bulk call owns its own list sink.
type ledgerEntry struct {
	action action
	amount int
}

// writeItem is a WriteQueueItem (spec §3): exactly one of fire-one,
// fire-many, await-one, await-many, tagged by which sink fields are set.
type writeItem struct {
	queries []Query // len 1 for *One, len N for *Many

	// set only for AwaitOne
	sink *replySink
	// set only for AwaitMany
	listSink *replyListSink
}

func fireOneItem(q Query) writeItem     { return writeItem{queries: []Query{q}} }
func fireManyItem(qs []Query) writeItem { return writeItem{queries: qs} }

func awaitOneItem(q Query, sink *replySink) writeItem {
	return writeItem{queries: []Query{q}, sink: sink}
}

func awaitManyItem(qs []Query, sink *replyListSink) writeItem {
	return writeItem{queries: qs, listSink: sink}
}

// queueSet holds every piece of strand-owned mutable state: the
// priority-indexed write queues, the ledger, and the two reply-promise
// FIFOs. It must only be touched from the strand goroutine.
type queueSet struct {
	writes   []*deque.Deque[writeItem] // indexed by Priority, highest first
	ledger   *deque.Deque[ledgerEntry]
	promises *deque.Deque[*replySink]
	listProm *deque.Deque[*replyListSink]

	suppressed map[Priority]bool
}

func newQueueSet(priorities int) *queueSet {
	qs := &queueSet{
		writes:     make([]*deque.Deque[writeItem], priorities),
		ledger:     deque.NewDeque[ledgerEntry](),
		promises:   deque.NewDeque[*replySink](),
		listProm:   deque.NewDeque[*replyListSink](),
		suppressed: make(map[Priority]bool),
	}
	for i := range qs.writes {
		qs.writes[i] = deque.NewDeque[writeItem]()
	}
	return qs
}

// enqueue appends item to its priority's write queue. Must run on the
// strand.
func (qs *queueSet) enqueue(p Priority, item writeItem) {
	qs.writes[p].PushBack(item)
}

// nextWritable scans from the highest priority down and returns the head of
// the first non-empty, non-suppressed queue. Called once per write-loop
// iteration; the writer re-scans from the top after every single item so
// that a newly-arrived higher-priority item preempts whatever is queued
// below it (spec §4.4).
func (qs *queueSet) nextWritable() (Priority, writeItem, bool) {
	for p := 0; p < len(qs.writes); p++ {
		if qs.suppressed[Priority(p)] {
			continue
		}
		q := qs.writes[p]
		if q.Len() == 0 {
			continue
		}
		return Priority(p), q.PopFront(), true
	}
	return 0, writeItem{}, false
}

// appendIgnore records that n upcoming replies must be discarded,
// coalescing into the ledger's tail entry when possible (spec §4.7). The
// tail is inspected by popping it off the back and pushing back either the
// merged entry or both the old tail and the new one.
func (qs *queueSet) appendIgnore(n int) {
	qs.appendCoalescing(actionIgnore, n)
}

// appendDeliver records that n upcoming replies must each be handed to the
// next sink in ReplyPromises, coalescing with the tail the same way
// appendIgnore does.
func (qs *queueSet) appendDeliver(n int) {
	qs.appendCoalescing(actionDeliver, n)
}

func (qs *queueSet) appendCoalescing(a action, n int) {
	if qs.ledger.Len() > 0 {
		tail := qs.ledger.PopBack()
		if tail.action == a {
			tail.amount += n
			qs.ledger.PushBack(tail)
			return
		}
		qs.ledger.PushBack(tail)
	}
	qs.ledger.PushBack(ledgerEntry{action: a, amount: n})
}

// appendDeliverBulk records that the next n replies belong to a single
// AwaitMany caller. Never coalesces: each bulk call owns its own list sink.
func (qs *queueSet) appendDeliverBulk(n int) {
	qs.ledger.PushBack(ledgerEntry{action: actionDeliverBulk, amount: n})
}

func (qs *queueSet) hasLedgerEntries() bool {
	return qs.ledger.Len() > 0
}

func (qs *queueSet) popLedgerEntry() ledgerEntry {
	return qs.ledger.PopFront()
}

func (qs *queueSet) pushPromise(s *replySink)         { qs.promises.PushBack(s) }
func (qs *queueSet) popPromise() *replySink           { return qs.promises.PopFront() }
func (qs *queueSet) pushListPromise(s *replyListSink) { qs.listProm.PushBack(s) }
func (qs *queueSet) popListPromise() *replyListSink   { return qs.listProm.PopFront() }

// failAllOutstanding fails every sink currently sitting in the promise
// FIFOs and drains the ledger. reconnect uses it after any fatal I/O or
// framing error, since none of the in-flight replies can be received on the
// next transport, and Close uses it on teardown (spec §7/§9, REDESIGN FLAGS).
func (qs *queueSet) failAllOutstanding(err error) {
	for qs.promises.Len() > 0 {
		qs.promises.PopFront().fail(err)
	}
	for qs.listProm.Len() > 0 {
		qs.listProm.PopFront().fail(err)
	}
	for qs.ledger.Len() > 0 {
		qs.ledger.PopFront()
	}
}

// suppress/unsuppress mutate the suppression set; must run on the strand.
func (qs *queueSet) suppress(p Priority)          { qs.suppressed[p] = true }
func (qs *queueSet) unsuppress(p Priority)        { delete(qs.suppressed, p) }
func (qs *queueSet) isSuppressed(p Priority) bool { return qs.suppressed[p] }
