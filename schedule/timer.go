package schedule

import (
	"sync"
	"time"

	"github.com/joeycumines/go-replicore/replog"
)

// PhaseTimers accumulates interval timing for the extract/filter/apply
// phases of the stage task loop, split out since each has independent
// backpressure and failure characteristics.
type PhaseTimers struct {
	log *replog.Logger

	mu    sync.Mutex
	total map[string]time.Duration
	count map[string]uint64
}

// NewPhaseTimers constructs a PhaseTimers. A nil logger defaults to no-op.
func NewPhaseTimers(log *replog.Logger) *PhaseTimers {
	return &PhaseTimers{
		log:   replog.OrNoOp(log),
		total: make(map[string]time.Duration, 3),
		count: make(map[string]uint64, 3),
	}
}

// Time runs fn, recording its duration under phase ("extract", "filter", or
// "apply"), and returns whatever fn returns.
func (p *PhaseTimers) Time(phase string, fn func() error) error {
	p.log.Debug().Str(`phase`, phase).Log(`phase started`)
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	p.mu.Lock()
	p.total[phase] += elapsed
	p.count[phase]++
	p.mu.Unlock()

	p.log.Debug().Str(`phase`, phase).Int64(`elapsed_ns`, elapsed.Nanoseconds()).Log(`phase stopped`)
	return err
}

// Stats returns the cumulative duration and call count recorded for phase.
func (p *PhaseTimers) Stats(phase string) (time.Duration, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total[phase], p.count[phase]
}
