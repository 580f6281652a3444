package stage

import (
	"context"
	"fmt"

	"github.com/joeycumines/go-replicore/dbmsevent"
	"github.com/joeycumines/go-replicore/reerr"
	"github.com/joeycumines/go-replicore/replog"
	"github.com/joeycumines/go-replicore/schedule"
)

type (
	// Extractor pulls the next Event from the upstream source. A nil Event
	// with a nil error means "try again" (an empty poll).
	Extractor interface {
		Extract(ctx context.Context) (*dbmsevent.Event, error)
		// HasMore reports whether the extractor believes more data is
		// immediately available, consulted when deciding whether a
		// block-commit batch may grow further.
		HasMore() bool
	}

	// Filter inspects an Event and may suppress it by returning a nil Event
	// and a nil error.
	Filter interface {
		Filter(ctx context.Context, event *dbmsevent.Event) (*dbmsevent.Event, error)
	}

	// Applier is the sink: it applies events, commits or rolls back the
	// current block, and records restart position.
	Applier interface {
		Apply(ctx context.Context, event *dbmsevent.Event, commit, rollback, syncThlWithExtractor bool) error
		Commit(ctx context.Context) error
		Rollback(ctx context.Context) error
		UpdatePosition(ctx context.Context, header dbmsevent.Header, commit, recoverable bool) error
	}

	// FailurePolicy governs how a phase failure is handled.
	FailurePolicy int
)

const (
	// Stop surfaces the failure as an error and ends the task.
	Stop FailurePolicy = iota
	// Warn logs the failure and continues at the next poll.
	Warn
)

func (p FailurePolicy) String() string {
	switch p {
	case Stop:
		return `STOP`
	case Warn:
		return `WARN`
	default:
		return fmt.Sprintf(`FailurePolicy(%d)`, int(p))
	}
}

// Config configures a Task.
type Config struct {
	// SourceID identifies this task when stamping dbmsevent.Header values.
	SourceID string

	// BlockCommitRows is the number of transactions folded into one commit.
	// 1 disables block-commit batching (every transaction commits on its
	// own). Must be >= 1.
	BlockCommitRows int

	ExtractorFailurePolicy FailurePolicy
	ApplierFailurePolicy   FailurePolicy

	SyncThlWithExtractor bool
	AutoSync             bool

	Advisor *schedule.Advisor
	Timers  *schedule.PhaseTimers
	Logger  *replog.Logger
}

// Task is the stage task loop (C7): single-threaded, binding one Extractor,
// an ordered chain of Filters, and one Applier.
type Task struct {
	cfg       Config
	extractor Extractor
	filters   []Filter
	applier   Applier
	advisor   *schedule.Advisor
	timers    *schedule.PhaseTimers
	log       *replog.Logger
}

// New constructs a Task. extractor and applier must be non-nil; cfg must
// name a valid BlockCommitRows.
func New(cfg Config, extractor Extractor, filters []Filter, applier Applier) (*Task, error) {
	if extractor == nil {
		return nil, fmt.Errorf(`stage: nil extractor`)
	}
	if applier == nil {
		return nil, fmt.Errorf(`stage: nil applier`)
	}
	if cfg.BlockCommitRows < 1 {
		return nil, fmt.Errorf(`stage: block commit rows must be >= 1, got %d`, cfg.BlockCommitRows)
	}
	if cfg.Advisor == nil {
		cfg.Advisor = schedule.New(schedule.Config{})
	}
	if cfg.Timers == nil {
		cfg.Timers = schedule.NewPhaseTimers(cfg.Logger)
	}

	return &Task{
		cfg:       cfg,
		extractor: extractor,
		filters:   filters,
		applier:   applier,
		advisor:   cfg.Advisor,
		timers:    cfg.Timers,
		log:       replog.OrNoOp(cfg.Logger),
	}, nil
}

// Run executes the main loop until cancellation, a QUIT advisory, an
// uncaught panic, or a STOP-policy failure. It always flushes a final,
// possibly partial, block via Applier.Commit before returning, unless a
// panic unwound the stack, in which case Applier.Rollback runs instead and
// the panic is re-raised.
func (t *Task) Run(ctx context.Context) (err error) {
	var (
		firstIteration    = true
		blockEventCount   int
		haveLastService   bool
		lastService       string
		currentEvent      *dbmsevent.Event
		currentSuppressed bool
		firstSuppressed   *dbmsevent.Event
		lastSuppressed    *dbmsevent.Event
		unwinding         = true
	)

	defer func() {
		if unwinding {
			_ = t.applier.Rollback(ctx)
			return
		}
		if cerr := t.applier.Commit(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()

mainLoop:
	for {
		if firstIteration {
			firstIteration = false
			if t.cfg.AutoSync {
				t.log.Info().Log(`in sequence`)
			}
		}

		if currentEvent != nil && !currentSuppressed {
			t.advisor.RecordProcessed(currentEvent.Header(t.cfg.SourceID))
			currentEvent = nil
		}

		if t.advisor.Cancelled() {
			break mainLoop
		}

		var event *dbmsevent.Event
		extractErr := t.timers.Time(`extract`, func() error {
			e, xerr := t.extractor.Extract(ctx)
			event = e
			return xerr
		})
		if extractErr != nil {
			if t.cfg.ExtractorFailurePolicy == Stop {
				err = reerr.Extraction(extractErr)
				break mainLoop
			}
			t.log.Warning().Err(extractErr).Log(`extractor failure`)
			continue
		}
		if event == nil {
			continue
		}

		if t.cfg.BlockCommitRows > 1 && !event.Heartbeat() {
			if haveLastService && lastService != event.Service {
				if event.Fragno != 0 {
					t.log.Warning().Str(`service`, event.Service).Log(`service change mid-fragmented-transaction`)
				} else if cerr := t.applier.Commit(ctx); cerr != nil {
					err = reerr.Application(cerr, event.Seqno, event.EventID)
					break mainLoop
				} else {
					blockEventCount = 0
				}
			}
			lastService = event.Service
			haveLastService = true
		}

		switch result := t.advisor.Advise(event.Header(t.cfg.SourceID)); result {
		case schedule.Proceed:
			// fall through to filtering/apply below
		case schedule.ContinueNext:
			if uerr := t.applier.UpdatePosition(ctx, event.Header(t.cfg.SourceID), false, true); uerr != nil {
				err = uerr
				break mainLoop
			}
			continue
		case schedule.ContinueNextCommit:
			if uerr := t.applier.UpdatePosition(ctx, event.Header(t.cfg.SourceID), true, true); uerr != nil {
				err = uerr
				break mainLoop
			}
			continue
		case schedule.Quit:
			_ = t.applier.UpdatePosition(ctx, event.Header(t.cfg.SourceID), false, true)
			break mainLoop
		default:
			err = fmt.Errorf(`stage: unrecognized advisory result %v`, result)
			break mainLoop
		}

		filtered := event
		filterErr := t.timers.Time(`filter`, func() error {
			for _, f := range t.filters {
				var ferr error
				filtered, ferr = f.Filter(ctx, filtered)
				if ferr != nil || filtered == nil {
					return ferr
				}
			}
			return nil
		})
		if filterErr != nil {
			err = reerr.Application(filterErr, event.Seqno, event.EventID)
			break mainLoop
		}

		if filtered == nil {
			if firstSuppressed == nil {
				firstSuppressed = event
			}
			lastSuppressed = event
			currentEvent = event
			currentSuppressed = true
			continue
		}

		if firstSuppressed != nil {
			rangeEvent := filteredRange(firstSuppressed, lastSuppressed)
			if aerr := t.applier.Apply(ctx, rangeEvent, false, false, false); aerr != nil {
				err = reerr.Application(aerr, rangeEvent.Seqno, rangeEvent.EventID)
				break mainLoop
			}
			firstSuppressed, lastSuppressed = nil, nil
		}

		event = filtered
		var doRollback bool

		if event.Fragno == 0 && !event.LastFrag {
			if cerr := t.applier.Commit(ctx); cerr != nil {
				err = reerr.Application(cerr, event.Seqno, event.EventID)
				break mainLoop
			}
			blockEventCount = 0
		}
		if event.Fragno == 0 && event.Rollback() {
			if cerr := t.applier.Commit(ctx); cerr != nil {
				err = reerr.Application(cerr, event.Seqno, event.EventID)
				break mainLoop
			}
			blockEventCount = 0
			doRollback = true
		}
		if event.UnsafeForBlockCommit() {
			if cerr := t.applier.Commit(ctx); cerr != nil {
				err = reerr.Application(cerr, event.Seqno, event.EventID)
				break mainLoop
			}
			blockEventCount = 0
		}

		var doCommit bool
		switch {
		case event.UnsafeForBlockCommit():
			doCommit = true
		case t.cfg.BlockCommitRows > 1:
			if event.LastFrag {
				blockEventCount++
				doCommit = blockEventCount >= t.cfg.BlockCommitRows || !t.extractor.HasMore()
			}
		default:
			doCommit = event.LastFrag
		}

		applyErr := t.timers.Time(`apply`, func() error {
			return t.applier.Apply(ctx, event, doCommit, doRollback, t.cfg.SyncThlWithExtractor)
		})
		if applyErr != nil {
			if t.cfg.ApplierFailurePolicy == Stop {
				err = reerr.Application(applyErr, event.Seqno, event.EventID)
				break mainLoop
			}
			t.log.Warning().Err(applyErr).Log(`applier failure`)
			continue
		}

		if doCommit {
			blockEventCount = 0
		}
		currentEvent = event
		currentSuppressed = false
	}

	unwinding = false
	return err
}

// filteredRange synthesizes the coalesced marker delivered to the applier in
// place of a run of filter-suppressed events, so restart position still
// advances monotonically across the suppressed range.
func filteredRange(first, last *dbmsevent.Event) *dbmsevent.Event {
	return &dbmsevent.Event{
		Seqno:    last.Seqno,
		Fragno:   last.Fragno,
		LastFrag: last.LastFrag,
		EventID:  last.EventID,
		Service:  last.Service,
		Metadata: dbmsevent.Metadata{
			`FILTERED_RANGE_FROM`: first.EventID,
			`FILTERED_RANGE_TO`:   last.EventID,
		},
	}
}
