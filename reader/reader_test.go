package reader

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/go-replicore/dbmsevent"
	"github.com/stretchr/testify/assert"
)

// fakeGate records Await/Retired calls and lets a test hold up delivery of
// a given seqno until released.
type fakeGate struct {
	mu      sync.Mutex
	hold    map[uint64]chan struct{}
	retired []uint64
}

func newFakeGate() *fakeGate {
	return &fakeGate{hold: map[uint64]chan struct{}{}}
}

func (g *fakeGate) block(seqno uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hold[seqno] = make(chan struct{})
}

func (g *fakeGate) release(seqno uint64) {
	g.mu.Lock()
	ch, ok := g.hold[seqno]
	delete(g.hold, seqno)
	g.mu.Unlock()
	if ok {
		close(ch)
	}
}

func (g *fakeGate) Await(ctx context.Context, partition uint32, seqno uint64) error {
	g.mu.Lock()
	ch := g.hold[seqno]
	g.mu.Unlock()
	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *fakeGate) Retired(partition uint32, seqno uint64) {
	g.mu.Lock()
	g.retired = append(g.retired, seqno)
	g.mu.Unlock()
}

func TestReader_PutEventGet(t *testing.T) {
	r := New(0, 4, 4, nil)
	ctx := context.Background()

	e := &dbmsevent.Event{Seqno: 1, LastFrag: true}
	assert.NoError(t, r.PutEvent(ctx, e))

	item, err := r.Get(ctx)
	assert.NoError(t, err)
	assert.Same(t, e, item.Event)
	assert.Nil(t, item.Control)
}

func TestReader_DataBeforeControlOnTie(t *testing.T) {
	r := New(0, 4, 4, nil)
	ctx := context.Background()

	e := &dbmsevent.Event{Seqno: 5, LastFrag: true}
	c := dbmsevent.Control{Kind: dbmsevent.ControlSync, Seqno: 5}

	// enqueue control first; data must still come out first since both are
	// ready when Get is called.
	assert.NoError(t, r.PutControl(ctx, c))
	assert.NoError(t, r.PutEvent(ctx, e))

	item, err := r.Get(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, item.Event)

	item, err = r.Get(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, item.Control)
}

func TestReader_ControlBeforeDataOnLowerSeqno(t *testing.T) {
	r := New(0, 4, 4, nil)
	ctx := context.Background()

	e := &dbmsevent.Event{Seqno: 10, LastFrag: true}
	c := dbmsevent.Control{Kind: dbmsevent.ControlSync, Seqno: 5}

	// enqueue the higher-seqno event first, as a lagging consumer would see
	// it already sitting in queue by the time the lower-seqno control
	// arrives in ctrl; Get must still deliver the control first.
	assert.NoError(t, r.PutEvent(ctx, e))
	assert.NoError(t, r.PutControl(ctx, c))

	item, err := r.Get(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, item.Control)
	assert.Equal(t, uint64(5), item.Control.Seqno)

	item, err = r.Get(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, item.Event)
	assert.Same(t, e, item.Event)
}

func TestReader_DataBeforeControlOnLowerSeqno(t *testing.T) {
	r := New(0, 4, 4, nil)
	ctx := context.Background()

	e := &dbmsevent.Event{Seqno: 5, LastFrag: true}
	c := dbmsevent.Control{Kind: dbmsevent.ControlSync, Seqno: 10}

	assert.NoError(t, r.PutControl(ctx, c))
	assert.NoError(t, r.PutEvent(ctx, e))

	item, err := r.Get(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, item.Event)
	assert.Same(t, e, item.Event)

	item, err = r.Get(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, item.Control)
	assert.Equal(t, uint64(10), item.Control.Seqno)
}

func TestReader_PutEvent_BlocksWhenFull(t *testing.T) {
	r := New(0, 1, 1, nil)
	ctx := context.Background()
	assert.NoError(t, r.PutEvent(ctx, &dbmsevent.Event{Seqno: 1}))

	done := make(chan error, 1)
	go func() { done <- r.PutEvent(context.Background(), &dbmsevent.Event{Seqno: 2}) }()

	select {
	case err := <-done:
		t.Fatalf(`PutEvent on a full queue returned early: %v`, err)
	case <-time.After(10 * time.Millisecond):
	}

	_, err := r.Get(ctx)
	assert.NoError(t, err)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal(`PutEvent did not unblock after a Get freed capacity`)
	}
}

func TestReader_Get_ContextCancel(t *testing.T) {
	r := New(0, 1, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Get(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReader_CriticalSectionGate(t *testing.T) {
	gate := newFakeGate()
	gate.block(10)
	r := New(2, 4, 4, gate)
	ctx := context.Background()

	assert.NoError(t, r.PutEvent(ctx, &dbmsevent.Event{Seqno: 10, LastFrag: true}))

	done := make(chan struct{})
	go func() {
		_, err := r.Get(context.Background())
		assert.NoError(t, err)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal(`Get returned before the gate released seqno 10`)
	case <-time.After(10 * time.Millisecond):
	}

	gate.release(10)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal(`Get did not unblock after gate release`)
	}

	gate.mu.Lock()
	retired := append([]uint64(nil), gate.retired...)
	gate.mu.Unlock()
	assert.Equal(t, []uint64{10}, retired)
}
