package dbmsevent

import "fmt"

// CriticalSection represents a contiguous range of event seqnos that the
// partitioner marked critical and which all routed to the same partition.
// Sections are enqueued in strictly increasing StartSeqno and never
// overlap; EndSeqno only ever grows while a section is pending.
type CriticalSection struct {
	Partition  uint32
	StartSeqno uint64
	EndSeqno   uint64
}

// Contains reports whether seqno falls within [StartSeqno, EndSeqno].
func (c CriticalSection) Contains(seqno uint64) bool {
	return seqno >= c.StartSeqno && seqno <= c.EndSeqno
}

// Valid reports whether the section satisfies the ordering invariant
// StartSeqno <= EndSeqno.
func (c CriticalSection) Valid() bool { return c.StartSeqno <= c.EndSeqno }

func (c CriticalSection) String() string {
	return fmt.Sprintf(`cs(part=%d,[%d,%d])`, c.Partition, c.StartSeqno, c.EndSeqno)
}
