package redisconn

// writeLoop is the long-lived goroutine that drains the priority write
// queues onto the wire (spec §4.4). It waits for writeSignal, then repeats:
// pop the highest-priority non-suppressed item via the strand, perform the
// blocking socket write outside the strand, and post the outcome back.
// Re-scanning from the top after every single item (rather than draining a
// whole queue before moving on) is what lets a newly-submitted
// higher-priority item preempt one that is merely queued, without ever
// preempting a write already in flight.
func (c *Connection) writeLoop() {
	for {
		if err := c.writeSignal.Wait(c.strand.done); err != nil {
			return
		}
		for c.writeOnce() {
		}
	}
}

// writeOnce sends at most one WriteQueueItem and reports whether there may
// be more work immediately available (so the caller should call again
// without waiting on writeSignal).
func (c *Connection) writeOnce() bool {
	type popped struct {
		prio Priority
		item writeItem
		ok   bool
	}
	var got popped
	c.strand.postSync(func() {
		p, item, ok := c.qs.nextWritable()
		got = popped{p, item, ok}
	})
	if !got.ok {
		return false
	}

	tr := c.tr.Load()
	if tr == nil {
		// Not connected; the connect loop will Set writeSignal again once
		// it succeeds. Put the item back at the front of its queue so
		// ordering among same-priority items is preserved.
		c.strand.post(func() {
			c.qs.writes[got.prio].PushFront(got.item)
		})
		return false
	}

	buf, err := c.encodeItem(got.item)
	if err != nil {
		c.failWrite(got.item, err)
		return true
	}

	if werr := tr.write(buf); werr != nil {
		c.logger().Report(LogSendFailed, c, redactQuery(got.item.queries[0]), c.decorate(werr, "send failed"))
		c.failWrite(got.item, werr)
		c.reconnect(tr, werr)
		return false
	}

	n := len(got.item.queries)
	c.strand.post(func() {
		switch {
		case got.item.sink != nil:
			c.qs.appendDeliver(n)
			c.qs.pushPromise(got.item.sink)
		case got.item.listSink != nil:
			c.qs.appendDeliverBulk(n)
			c.qs.pushListPromise(got.item.listSink)
		default:
			c.qs.appendIgnore(n)
		}
		c.readSignal.Set()
	})
	return true
}

// encodeItem renders every query in item back-to-back into one buffer, so
// the whole batch reaches the wire as one Write call (spec §4.4: a
// FireMany/AwaitMany batch is contiguous on the wire).
func (c *Connection) encodeItem(item writeItem) ([]byte, error) {
	var buf []byte
	for _, q := range item.queries {
		b, err := encodeQuery(buf, q)
		if err != nil {
			return nil, err
		}
		buf = b
	}
	return buf, nil
}

// failWrite fails item's sink (if any) with err wrapped as ErrSendFailed,
// without ever recording a ledger entry, since nothing was actually sent — a
// fire-and-forget item is simply dropped. writeOnce logs a send failure
// before calling it; an encode failure is not logged (spec §7/§8).
func (c *Connection) failWrite(item writeItem, err error) {
	wrapped := newErrWrap(ErrKindRequest, ErrSendFailed, err)
	switch {
	case item.sink != nil:
		item.sink.fail(wrapped)
	case item.listSink != nil:
		item.listSink.fail(wrapped)
	}
}
