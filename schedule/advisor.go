package schedule

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-replicore/dbmsevent"
)

type (
	// Result is the advisory decision returned by Advisor.Advise.
	Result int

	// Range configures one entry of the range-based advisory
	// configuration: a span matched by seqno, event id, or an arbitrary
	// predicate, associated with the Result to return while it matches.
	//
	// Exactly one matching mode should be configured per Range; Matches
	// checks seqno bounds first, then event-id bounds, then Predicate, in
	// that order, so a Range that sets more than one is not rejected, just
	// resolved by that priority.
	Range struct {
		// FromSeqno/ToSeqno bound an inclusive seqno span. Ignored if both
		// are zero.
		FromSeqno, ToSeqno uint64
		// FromEventID/ToEventID bound an inclusive lexicographic event-id
		// span. Ignored if both are empty.
		FromEventID, ToEventID string
		// Predicate, if set, matches directly against the header.
		Predicate func(h dbmsevent.Header) bool
		// Result is returned by Advise while this Range matches.
		Result Result
	}

	// Config configures an Advisor.
	Config struct {
		// Ranges are tested in order; the first match wins.
		Ranges []Range
	}

	// Advisor is C6: per-task advisory state consulted once per event by
	// the stage loop.
	Advisor struct {
		ranges []Range

		cancelled atomic.Bool

		mu         sync.Mutex
		lastHeader dbmsevent.Header
		eventCount uint64
	}
)

const (
	// Proceed indicates the event should be processed normally.
	Proceed Result = iota
	// ContinueNext advances the restart position without committing, then
	// skips processing this event.
	ContinueNext
	// ContinueNextCommit advances the restart position, committing any
	// pending block, then skips processing this event.
	ContinueNextCommit
	// Quit advances the restart position without committing, then stops
	// the task loop.
	Quit
)

func (r Result) String() string {
	switch r {
	case Proceed:
		return `PROCEED`
	case ContinueNext:
		return `CONTINUE_NEXT`
	case ContinueNextCommit:
		return `CONTINUE_NEXT_COMMIT`
	case Quit:
		return `QUIT`
	default:
		return fmt.Sprintf(`Result(%d)`, int(r))
	}
}

// Matches reports whether h falls within r's configured span.
func (r Range) Matches(h dbmsevent.Header) bool {
	if r.FromSeqno != 0 || r.ToSeqno != 0 {
		return h.Seqno >= r.FromSeqno && h.Seqno <= r.ToSeqno
	}
	if r.FromEventID != `` || r.ToEventID != `` {
		return h.EventID >= r.FromEventID && h.EventID <= r.ToEventID
	}
	if r.Predicate != nil {
		return r.Predicate(h)
	}
	return false
}

func (r Range) validate() error {
	switch {
	case r.FromSeqno != 0 || r.ToSeqno != 0:
		if r.FromSeqno > r.ToSeqno {
			return fmt.Errorf(`seqno range [%d,%d] is inverted`, r.FromSeqno, r.ToSeqno)
		}
	case r.FromEventID != `` || r.ToEventID != ``:
		if r.FromEventID > r.ToEventID {
			return fmt.Errorf(`event-id range [%q,%q] is inverted`, r.FromEventID, r.ToEventID)
		}
	case r.Predicate == nil:
		return fmt.Errorf(`range has no seqno bounds, event-id bounds, or predicate`)
	}
	return nil
}

// New constructs an Advisor. It panics if cfg contains an invalid Range
// (inverted bounds, or no matching mode configured), mirroring the
// reject-bad-config-up-front discipline used elsewhere in this module.
func New(cfg Config) *Advisor {
	for i, r := range cfg.Ranges {
		if err := r.validate(); err != nil {
			panic(fmt.Sprintf(`schedule: range %d: %s`, i, err))
		}
	}
	return &Advisor{ranges: append([]Range(nil), cfg.Ranges...)}
}

// Advise returns the advisory Result for h, per the first matching
// configured Range, else Proceed.
func (a *Advisor) Advise(h dbmsevent.Header) Result {
	for _, r := range a.ranges {
		if r.Matches(h) {
			return r.Result
		}
	}
	return Proceed
}

// Cancel latches cancellation. Once set it is never cleared.
func (a *Advisor) Cancel() { a.cancelled.Store(true) }

// Cancelled reports whether Cancel has been called.
func (a *Advisor) Cancelled() bool { return a.cancelled.Load() }

// RecordProcessed records h as the last-processed header and increments
// the cumulative event count, per spec.md §4.6 step 2.
func (a *Advisor) RecordProcessed(h dbmsevent.Header) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastHeader = h
	a.eventCount++
}

// LastProcessed returns the most recently recorded header and the
// cumulative event count.
func (a *Advisor) LastProcessed() (dbmsevent.Header, uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastHeader, a.eventCount
}
