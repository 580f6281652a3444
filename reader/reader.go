package reader

import (
	"context"
	"fmt"

	"github.com/joeycumines/go-replicore/dbmsevent"
)

type (
	// Item is the result of a Get call: exactly one of Event or Control is
	// set.
	Item struct {
		Event   *dbmsevent.Event
		Control *dbmsevent.Control
	}

	// Gate lets a Reader coordinate critical-section serialization with its
	// owning dispatch queue, without the reader needing to know the queue's
	// internal bookkeeping (cs_queue, retirement tracking). It is satisfied
	// by the dispatch package's Queue.
	Gate interface {
		// Await blocks the caller, identified by partition, until it is
		// safe to emit a data event with the given seqno: either no
		// pending critical section owned by a different partition covers
		// seqno, or the one that did has since retired.
		Await(ctx context.Context, partition uint32, seqno uint64) error
		// Retired notifies the gate that partition has just delivered a
		// data event with the given seqno, so critical-section retirement
		// can be detected.
		Retired(partition uint32, seqno uint64)
	}

	// Reader is C4: a per-partition reader owning a bounded data queue and
	// a bounded control queue, merged in strict seqno order by Get.
	//
	// Routing (which events reach this Reader at all) is the caller's
	// responsibility: the dispatch queue computes partitioner(event) once
	// and calls PutEvent only on the chosen Reader, rather than every
	// Reader re-evaluating the partitioner and discarding what isn't
	// theirs.
	Reader struct {
		id    uint32
		queue chan *dbmsevent.Event
		ctrl  chan dbmsevent.Control
		gate  Gate

		// pendingEvent/pendingControl hold an item already pulled off its
		// channel by a prior Get call but not yet delivered, because the
		// other queue's item had to go first. At most one of each is ever
		// buffered at a time.
		pendingEvent   *dbmsevent.Event
		pendingControl *dbmsevent.Control
	}
)

// New constructs a Reader for the given partition id, with the given queue
// capacities. gate may be nil, in which case critical-section gating is
// skipped (suitable for single-partition configurations and tests).
func New(id uint32, maxSize, maxControlEvents int, gate Gate) *Reader {
	if maxSize <= 0 || maxControlEvents <= 0 {
		panic(`reader: capacities must be positive`)
	}
	return &Reader{
		id:    id,
		queue: make(chan *dbmsevent.Event, maxSize),
		ctrl:  make(chan dbmsevent.Control, maxControlEvents),
		gate:  gate,
	}
}

// ID returns the partition this Reader serves.
func (r *Reader) ID() uint32 { return r.id }

// PutEvent enqueues e, blocking while the data queue is full or until ctx
// is done.
func (r *Reader) PutEvent(ctx context.Context, e *dbmsevent.Event) error {
	select {
	case r.queue <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PutControl enqueues c, blocking while the control queue is full or until
// ctx is done.
func (r *Reader) PutControl(ctx context.Context, c dbmsevent.Control) error {
	select {
	case r.ctrl <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get returns the next item in seqno order, merging the data and control
// queues: a control event with seqno S is delivered after every data event
// with seqno < S already enqueued here, and before any with seqno > S. When
// both queues have an item ready with equal seqno, the data event wins, per
// the tie-break in spec.md §4.3.
//
// Whichever item loses a comparison is buffered (pendingEvent/
// pendingControl) rather than re-read from its channel, so it is still the
// one compared and delivered on the next call.
func (r *Reader) Get(ctx context.Context) (Item, error) {
	for {
		if r.pendingEvent == nil {
			if e, ok := r.tryEvent(); ok {
				r.pendingEvent = e
			}
		}
		if r.pendingControl == nil {
			if c, ok := r.tryControl(); ok {
				r.pendingControl = &c
			}
		}

		switch {
		case r.pendingEvent != nil && r.pendingControl != nil:
			if r.pendingEvent.Seqno <= r.pendingControl.Seqno {
				e := r.pendingEvent
				r.pendingEvent = nil
				return r.deliver(ctx, e)
			}
			c := r.pendingControl
			r.pendingControl = nil
			return Item{Control: c}, nil
		case r.pendingEvent != nil:
			e := r.pendingEvent
			r.pendingEvent = nil
			return r.deliver(ctx, e)
		case r.pendingControl != nil:
			c := r.pendingControl
			r.pendingControl = nil
			return Item{Control: c}, nil
		}

		select {
		case e := <-r.queue:
			r.pendingEvent = e
		case c := <-r.ctrl:
			r.pendingControl = &c
		case <-ctx.Done():
			return Item{}, ctx.Err()
		}
	}
}

func (r *Reader) tryEvent() (*dbmsevent.Event, bool) {
	select {
	case e := <-r.queue:
		return e, true
	default:
		return nil, false
	}
}

func (r *Reader) tryControl() (dbmsevent.Control, bool) {
	select {
	case c := <-r.ctrl:
		return c, true
	default:
		return dbmsevent.Control{}, false
	}
}

func (r *Reader) deliver(ctx context.Context, e *dbmsevent.Event) (Item, error) {
	if r.gate != nil {
		if err := r.gate.Await(ctx, r.id, e.Seqno); err != nil {
			return Item{}, err
		}
	}
	item := Item{Event: e}
	if r.gate != nil {
		r.gate.Retired(r.id, e.Seqno)
	}
	return item, nil
}

func (i Item) String() string {
	switch {
	case i.Event != nil:
		return fmt.Sprintf(`event(seqno=%d,fragno=%d,last=%t)`, i.Event.Seqno, i.Event.Fragno, i.Event.LastFrag)
	case i.Control != nil:
		return i.Control.String()
	default:
		return `<empty item>`
	}
}
