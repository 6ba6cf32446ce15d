package redisconn

import (
	"errors"

	"github.com/kvlink/redisconn/resp"
)

// readLoop is the long-lived goroutine that drains the ledger against the
// wire (spec §4.5). It wakes on readSignal, then drains every ledger entry
// currently recorded, reading exactly as many replies off the transport as
// each entry calls for and routing them to Ignore/Deliver/DeliverBulk.
//
// A *resp.FramingError means the byte stream desynchronized and nothing
// further on this transport can be trusted; per REDESIGN FLAGS this always
// escalates to a full reconnect rather than being treated as a per-query
// failure. A plain transport error (EOF, reset) reconnects the same way,
// without implying any byte-level corruption.
func (c *Connection) readLoop() {
	for {
		if err := c.readSignal.Wait(c.strand.done); err != nil {
			return
		}
		c.readAllPending()
	}
}

func (c *Connection) readAllPending() {
	for {
		tr := c.tr.Load()
		if tr == nil {
			return
		}

		var entry ledgerEntry
		var has bool
		c.strand.postSync(func() {
			has = c.qs.hasLedgerEntries()
			if has {
				entry = c.qs.popLedgerEntry()
			}
		})
		if !has {
			return
		}

		if err := c.readEntry(tr, entry); err != nil {
			kind := LogReceiveFailed
			var rerr *Error
			if errors.As(err, &rerr) && rerr.KindOf(ErrResponseFormat) {
				kind = LogFramingError
			}
			c.logger().Report(kind, c, c.decorate(err, "receive failed"))
			c.reconnect(tr, err)
			return
		}
	}
}

// readEntry consumes entry.amount replies from tr and routes each one per
// entry.action.
func (c *Connection) readEntry(tr *transport, entry ledgerEntry) error {
	switch entry.action {
	case actionIgnore:
		for i := 0; i < entry.amount; i++ {
			if _, err := c.readOne(tr); err != nil {
				return err
			}
		}
		return nil

	case actionDeliver:
		for i := 0; i < entry.amount; i++ {
			reply, err := c.readOne(tr)
			if err != nil {
				return err
			}
			var sink *replySink
			c.strand.postSync(func() {
				sink = c.qs.popPromise()
			})
			sink.resolve(reply)
		}
		return nil

	case actionDeliverBulk:
		replies := make([]Reply, 0, entry.amount)
		for i := 0; i < entry.amount; i++ {
			reply, err := c.readOne(tr)
			if err != nil {
				return err
			}
			replies = append(replies, reply)
		}
		var sink *replyListSink
		c.strand.postSync(func() {
			sink = c.qs.popListPromise()
		})
		sink.resolve(replies)
		return nil

	default:
		return errors.New("redisconn: unknown ledger action")
	}
}

func (c *Connection) readOne(tr *transport) (Reply, error) {
	tr.setReadDeadline()
	v, err := resp.Read(tr.reader)
	if err != nil {
		var fe *resp.FramingError
		if errors.As(err, &fe) {
			return Reply{}, newErrWrap(ErrKindResponse, ErrResponseFormat, err)
		}
		return Reply{}, newErrWrap(ErrKindIO, ErrIO, err)
	}
	return replyFromValue(v), nil
}
