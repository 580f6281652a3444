package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/joeycumines/go-replicore/dbmsevent"
	"github.com/joeycumines/go-replicore/partition"
	"github.com/joeycumines/go-replicore/reader"
	"github.com/joeycumines/go-replicore/reerr"
	"github.com/joeycumines/go-replicore/replog"
	"github.com/joeycumines/go-replicore/seqno"
)

type (
	// Predicate matches a Header, e.g. to request a SYNC control once a
	// given restart point has been reached.
	Predicate func(h dbmsevent.Header) bool

	// Config configures a Queue.
	Config struct {
		// Partitions is the number of C4 readers to create. Must be positive.
		Partitions uint32
		// Partitioner computes the {partition, critical} result for each
		// event. Required.
		Partitioner partition.Partitioner
		// TaskHint is passed to Partitioner verbatim, identifying which
		// stage/task this Queue serves.
		TaskHint string
		// ReaderMaxSize is the per-reader data queue capacity.
		ReaderMaxSize int
		// ReaderMaxControl is the per-reader control queue capacity.
		ReaderMaxControl int
		// CSQueueCapacity bounds the number of critical sections that may
		// be pending retirement at once. Must be positive.
		CSQueueCapacity int
		// SyncInterval, if positive, requests a periodic SYNC control every
		// SyncInterval last-fragment events.
		SyncInterval uint32
		// Logger receives structured diagnostics. Defaults to a no-op.
		Logger *replog.Logger
	}

	// Queue is C5: the parallel dispatch queue, the heart of the system.
	// Single-producer (Put is never called concurrently with itself),
	// N-consumer (the readers it owns).
	Queue struct {
		partitions uint32
		partition  partition.Partitioner
		taskHint   string
		readers    []*reader.Reader
		head       *seqno.Counter
		log        *replog.Logger

		mu              sync.Mutex
		wake            chan struct{} // broadcast-and-replace on every state change below
		pendingCS       *dbmsevent.CriticalSection
		csQueue         *csFIFO
		csCapacity      int
		retired         map[uint32]uint64 // partition -> highest retired seqno
		syncCounter     uint32
		syncInterval    uint32
		watchPredicates map[string]Predicate
		stopRequested   bool
		lastInserted    *dbmsevent.Event
		currentService  string

		transactions   uint64
		serializations uint64
		discards       uint64
	}
)

// New constructs a Queue and its Partitions readers.
func New(cfg Config) (*Queue, error) {
	if cfg.Partitions == 0 {
		return nil, fmt.Errorf(`dispatch: Partitions must be positive`)
	}
	if cfg.Partitioner == nil {
		return nil, fmt.Errorf(`dispatch: Partitioner is required`)
	}
	if cfg.CSQueueCapacity <= 0 {
		return nil, fmt.Errorf(`dispatch: CSQueueCapacity must be positive`)
	}

	q := &Queue{
		partitions:      cfg.Partitions,
		partition:       cfg.Partitioner,
		taskHint:        cfg.TaskHint,
		head:            seqno.New(),
		log:             replog.OrNoOp(cfg.Logger),
		wake:            make(chan struct{}),
		csQueue:         newCSFIFO(),
		csCapacity:      cfg.CSQueueCapacity,
		retired:         make(map[uint32]uint64, cfg.Partitions),
		syncInterval:    cfg.SyncInterval,
		watchPredicates: make(map[string]Predicate),
	}

	q.readers = make([]*reader.Reader, cfg.Partitions)
	for i := range q.readers {
		q.readers[i] = reader.New(uint32(i), cfg.ReaderMaxSize, cfg.ReaderMaxControl, q)
	}

	return q, nil
}

// Reader returns the per-partition reader for partition i.
func (q *Queue) Reader(i uint32) *reader.Reader { return q.readers[i] }

// Head returns the shared monotonic sequence counter.
func (q *Queue) Head() *seqno.Counter { return q.head }

// CurrentService returns the service tag of the most recently inserted
// event that carried a non-empty Service, for C7's service-change detection
// (spec.md §4.6 step 6). Events with an empty Service leave it unchanged.
func (q *Queue) CurrentService() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.currentService
}

// LastInserted returns the most recently inserted event, or nil if Put has
// never been called.
func (q *Queue) LastInserted() *dbmsevent.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastInserted
}

// RequestStop latches stop_requested; a STOP control is broadcast on the
// next last-fragment event processed by Put.
func (q *Queue) RequestStop() {
	q.mu.Lock()
	q.stopRequested = true
	q.mu.Unlock()
}

// Watch registers a named Predicate; the first last-fragment event whose
// header it matches triggers a SYNC control and removes the predicate.
func (q *Queue) Watch(name string, p Predicate) {
	q.mu.Lock()
	q.watchPredicates[name] = p
	q.mu.Unlock()
}

// Put is called in-order by the upstream extractor; events must arrive
// with strictly increasing (seqno, fragno) tuples. It implements the
// algorithm in spec.md §4.4.
func (q *Queue) Put(ctx context.Context, event *dbmsevent.Event) error {
	if event.Seqno < q.head.Get() {
		// seqno is monotonically non-decreasing, not strictly increasing:
		// fragments of one transaction share a seqno.
		return reerr.Invariant(fmt.Errorf(`dispatch: seqno %d regressed past head %d`, event.Seqno, q.head.Get()))
	}

	q.mu.Lock()
	if event.LastFrag {
		q.transactions++
	}
	if event.Empty() {
		q.discards++
		q.mu.Unlock()
		return nil
	}

	result := q.partition(event, q.taskHint)
	if result.Partition >= q.partitions {
		q.mu.Unlock()
		return reerr.Invariant(fmt.Errorf(`dispatch: partitioner returned out-of-range partition %d (have %d)`, result.Partition, q.partitions))
	}

	if result.Critical {
		q.serializations++
		switch {
		case q.pendingCS == nil:
			cs := dbmsevent.CriticalSection{Partition: result.Partition, StartSeqno: event.Seqno, EndSeqno: event.Seqno}
			q.pendingCS = &cs
		case q.pendingCS.Partition == result.Partition:
			q.pendingCS.EndSeqno = event.Seqno
		default:
			if err := q.enqueueCSLocked(ctx, *q.pendingCS); err != nil {
				q.mu.Unlock()
				return err
			}
			cs := dbmsevent.CriticalSection{Partition: result.Partition, StartSeqno: event.Seqno, EndSeqno: event.Seqno}
			q.pendingCS = &cs
		}
	} else if q.pendingCS != nil {
		if err := q.enqueueCSLocked(ctx, *q.pendingCS); err != nil {
			q.mu.Unlock()
			return err
		}
		q.pendingCS = nil
	}
	q.mu.Unlock()

	if err := q.readers[result.Partition].PutEvent(ctx, event); err != nil {
		return reerr.Cancelled(err)
	}

	q.head.Set(event.Seqno)

	q.mu.Lock()
	q.lastInserted = event
	if event.Service != `` {
		q.currentService = event.Service
	}
	q.mu.Unlock()

	if event.LastFrag {
		if err := q.injectControls(ctx, event); err != nil {
			return err
		}
	}

	return nil
}

// injectControls implements the post-event control injection step, called
// only for last-fragment events.
func (q *Queue) injectControls(ctx context.Context, event *dbmsevent.Event) error {
	q.mu.Lock()
	needsSync := false

	stop := q.stopRequested
	q.stopRequested = false

	for name, p := range q.watchPredicates {
		h := event.Header(``)
		if p(h) {
			needsSync = true
			delete(q.watchPredicates, name)
		}
	}

	if q.syncInterval > 0 {
		q.syncCounter++
		if q.syncCounter >= q.syncInterval {
			needsSync = true
			q.syncCounter = 0
		}
	}

	if event.Heartbeat() {
		needsSync = true
	}
	q.mu.Unlock()

	if stop {
		if err := q.broadcastControl(ctx, dbmsevent.Control{Kind: dbmsevent.ControlStop, Seqno: event.Seqno}); err != nil {
			return err
		}
	}
	if needsSync {
		if err := q.broadcastControl(ctx, dbmsevent.Control{Kind: dbmsevent.ControlSync, Seqno: event.Seqno}); err != nil {
			return err
		}
	}
	return nil
}

// broadcastControl pushes c into every reader's control queue. Ordering
// across readers is not synchronized; each reader individually sees
// controls in broadcast order.
func (q *Queue) broadcastControl(ctx context.Context, c dbmsevent.Control) error {
	for _, r := range q.readers {
		if err := r.PutControl(ctx, c); err != nil {
			return reerr.Cancelled(err)
		}
	}
	return nil
}

// enqueueCSLocked pushes cs into cs_queue, blocking (while releasing mu)
// until capacity is available. Caller must hold q.mu; it is released and
// re-acquired internally.
func (q *Queue) enqueueCSLocked(ctx context.Context, cs dbmsevent.CriticalSection) error {
	for q.csQueue.Len() >= q.csCapacity {
		wake := q.wake
		q.mu.Unlock()
		select {
		case <-wake:
		case <-ctx.Done():
			q.mu.Lock()
			return reerr.Cancelled(ctx.Err())
		}
		q.mu.Lock()
	}
	q.csQueue.Push(cs)
	q.broadcastWakeLocked()
	return nil
}

// PendingCriticalSections returns the number of critical sections currently
// queued for retirement (not counting one still being extended in-flight).
func (q *Queue) PendingCriticalSections() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.csQueue.Len()
}

// broadcastWakeLocked wakes every Await/enqueue waiter. Caller must hold
// q.mu.
func (q *Queue) broadcastWakeLocked() {
	close(q.wake)
	q.wake = make(chan struct{})
}

// Await implements reader.Gate: it blocks partition i until no pending or
// queued critical section owned by a different partition covers seqno, or
// the one that did has retired.
func (q *Queue) Await(ctx context.Context, i uint32, seqno uint64) error {
	q.mu.Lock()
	for {
		cs, ok := q.pendingSectionLocked(seqno)
		if !ok || cs.Partition == i {
			q.mu.Unlock()
			return nil
		}
		wake := q.wake
		q.mu.Unlock()
		select {
		case <-wake:
		case <-ctx.Done():
			return ctx.Err()
		}
		q.mu.Lock()
	}
}

func (q *Queue) pendingSectionLocked(seqno uint64) (dbmsevent.CriticalSection, bool) {
	if q.pendingCS != nil && q.pendingCS.Contains(seqno) {
		return *q.pendingCS, true
	}
	return q.csQueue.Find(seqno)
}

// Retired implements reader.Gate: partition i has just delivered a data
// event with the given seqno. It advances i's retirement watermark and, if
// that closes out the head of cs_queue, retires it.
func (q *Queue) Retired(i uint32, seqno uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if cur := q.retired[i]; seqno > cur {
		q.retired[i] = seqno
	}

	for {
		cs, ok := q.csQueue.Front()
		if !ok {
			return
		}
		if q.retired[cs.Partition] < cs.EndSeqno {
			return // owning partition hasn't drained through EndSeqno yet
		}
		for p := uint32(0); p < q.partitions; p++ {
			if p == cs.Partition {
				continue
			}
			if q.retired[p] < cs.StartSeqno {
				return // another partition hasn't confirmed it is past StartSeqno
			}
		}
		q.csQueue.PopFront()
		q.broadcastWakeLocked()
	}
}

// Status returns the snapshot described in spec.md §6.
func (q *Queue) Status() map[string]any {
	q.mu.Lock()
	defer q.mu.Unlock()

	criticalPartition := any(-1)
	if q.pendingCS != nil {
		criticalPartition = int(q.pendingCS.Partition)
	}

	queues := make(map[string]int, len(q.readers))
	for i := range q.readers {
		queues[fmt.Sprintf(`%d`, i)] = q.retiredOrZero(uint32(i))
	}

	status := map[string]any{
		`head_seqno`:          q.head.Get(),
		`max_size`:            q.csCapacity,
		`event_count`:         q.transactions,
		`discard_count`:       q.discards,
		`queues`:              queues,
		`sync_enabled`:        q.syncInterval > 0,
		`sync_interval`:       q.syncInterval,
		`serialized`:          q.pendingCS != nil,
		`serialization_count`: q.serializations,
		`stop_requested`:      q.stopRequested,
		`critical_partition`:  criticalPartition,
	}
	return status
}

func (q *Queue) retiredOrZero(i uint32) int {
	return int(q.retired[i])
}
