package schedule

import (
	"testing"
	"time"

	"github.com/joeycumines/go-replicore/dbmsevent"
	"github.com/stretchr/testify/assert"
)

func TestAdvisor_Advise_Proceed(t *testing.T) {
	a := New(Config{})
	assert.Equal(t, Proceed, a.Advise(dbmsevent.Header{Seqno: 42}))
}

func TestAdvisor_Advise_SeqnoRange(t *testing.T) {
	a := New(Config{Ranges: []Range{
		{FromSeqno: 10, ToSeqno: 20, Result: ContinueNext},
	}})

	assert.Equal(t, Proceed, a.Advise(dbmsevent.Header{Seqno: 9}))
	assert.Equal(t, ContinueNext, a.Advise(dbmsevent.Header{Seqno: 10}))
	assert.Equal(t, ContinueNext, a.Advise(dbmsevent.Header{Seqno: 20}))
	assert.Equal(t, Proceed, a.Advise(dbmsevent.Header{Seqno: 21}))
}

func TestAdvisor_Advise_EventIDRange(t *testing.T) {
	a := New(Config{Ranges: []Range{
		{FromEventID: `a`, ToEventID: `m`, Result: ContinueNextCommit},
	}})

	assert.Equal(t, ContinueNextCommit, a.Advise(dbmsevent.Header{EventID: `c`}))
	assert.Equal(t, Proceed, a.Advise(dbmsevent.Header{EventID: `z`}))
}

func TestAdvisor_Advise_Predicate(t *testing.T) {
	a := New(Config{Ranges: []Range{
		{Predicate: func(h dbmsevent.Header) bool { return h.SourceID == `quarantine` }, Result: Quit},
	}})

	assert.Equal(t, Quit, a.Advise(dbmsevent.Header{SourceID: `quarantine`}))
	assert.Equal(t, Proceed, a.Advise(dbmsevent.Header{SourceID: `normal`}))
}

func TestAdvisor_Advise_FirstMatchWins(t *testing.T) {
	a := New(Config{Ranges: []Range{
		{FromSeqno: 1, ToSeqno: 100, Result: ContinueNext},
		{FromSeqno: 50, ToSeqno: 60, Result: Quit},
	}})
	assert.Equal(t, ContinueNext, a.Advise(dbmsevent.Header{Seqno: 55}))
}

func TestNew_PanicsOnInvertedRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal(`expected panic`)
		}
	}()
	New(Config{Ranges: []Range{{FromSeqno: 20, ToSeqno: 10, Result: Quit}}})
}

func TestNew_PanicsOnEmptyRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal(`expected panic`)
		}
	}()
	New(Config{Ranges: []Range{{Result: Quit}}})
}

func TestAdvisor_Cancel_Latches(t *testing.T) {
	a := New(Config{})
	assert.False(t, a.Cancelled())
	a.Cancel()
	assert.True(t, a.Cancelled())
	a.Cancel() // idempotent
	assert.True(t, a.Cancelled())
}

func TestAdvisor_RecordProcessed(t *testing.T) {
	a := New(Config{})
	h1 := dbmsevent.Header{Seqno: 1}
	h2 := dbmsevent.Header{Seqno: 2}

	a.RecordProcessed(h1)
	a.RecordProcessed(h2)

	last, count := a.LastProcessed()
	assert.Equal(t, h2, last)
	assert.EqualValues(t, 2, count)
}

func TestResult_String(t *testing.T) {
	assert.Equal(t, `PROCEED`, Proceed.String())
	assert.Equal(t, `QUIT`, Quit.String())
}

func TestPhaseTimers_Time(t *testing.T) {
	p := NewPhaseTimers(nil)

	err := p.Time(`extract`, func() error {
		time.Sleep(time.Millisecond)
		return nil
	})
	assert.NoError(t, err)

	elapsed, count := p.Stats(`extract`)
	assert.EqualValues(t, 1, count)
	assert.True(t, elapsed > 0)

	_, count = p.Stats(`apply`)
	assert.EqualValues(t, 0, count)
}
