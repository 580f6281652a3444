package dispatch

import (
	"github.com/joeycumines/go-replicore/dbmsevent"
	"github.com/joeycumines/go-replicore/ringbuf"
)

// csFIFO is cs_queue: critical sections enqueued in strictly increasing,
// non-overlapping StartSeqno order. It keeps the StartSeqno values in a
// ringbuf.Ring so Find can binary-search for the section (if any) covering
// a given seqno, the same way catrate's ring buffer locates the window
// bounding a given time.
type csFIFO struct {
	keys *ringbuf.Ring[uint64]
	data []dbmsevent.CriticalSection
}

func newCSFIFO() *csFIFO {
	return &csFIFO{keys: ringbuf.New[uint64](8)}
}

func (q *csFIFO) Len() int { return len(q.data) }

func (q *csFIFO) Push(cs dbmsevent.CriticalSection) {
	q.keys.PushBack(cs.StartSeqno)
	q.data = append(q.data, cs)
}

func (q *csFIFO) Front() (dbmsevent.CriticalSection, bool) {
	if len(q.data) == 0 {
		return dbmsevent.CriticalSection{}, false
	}
	return q.data[0], true
}

func (q *csFIFO) PopFront() dbmsevent.CriticalSection {
	cs := q.data[0]
	q.keys.PopFront()
	q.data = q.data[1:]
	return cs
}

// Find returns the critical section, if any, whose [StartSeqno, EndSeqno]
// contains seqno.
func (q *csFIFO) Find(seqno uint64) (dbmsevent.CriticalSection, bool) {
	idx := q.keys.Search(seqno) // first index with key >= seqno
	if idx < q.keys.Len() && q.keys.Get(idx) == seqno {
		if cs := q.data[idx]; cs.Contains(seqno) {
			return cs, true
		}
	}
	if idx > 0 {
		if cs := q.data[idx-1]; cs.Contains(seqno) {
			return cs, true
		}
	}
	return dbmsevent.CriticalSection{}, false
}
