package dbmsevent

import "fmt"

type (
	// MetadataKey names a recognized entry in Event.Metadata.
	MetadataKey string

	// Metadata is a small key/value bag attached to an Event. Only the keys
	// named by the MetadataKey* constants are interpreted by the core; any
	// other key is carried through unexamined.
	Metadata map[string]string

	// Event is an ordered batch of row changes or a SQL statement, as
	// extracted from the upstream source. Within one Seqno, Fragno values
	// must form a gap-free 0..F prefix, with exactly one fragment (the one
	// with the maximum Fragno) carrying LastFrag true.
	Event struct {
		// Seqno is the transaction sequence number, monotonically
		// non-decreasing across the stream.
		Seqno uint64
		// Fragno is the intra-transaction fragment index, 0..F.
		Fragno uint32
		// LastFrag marks the fragment that closes the transaction.
		LastFrag bool
		// EventID is an opaque upstream position string (e.g. a binlog
		// file:offset pair), suitable for persisting as a restart point.
		EventID string
		// Service tags the logical source this event originated from.
		Service string
		// Metadata carries recognized and arbitrary key/value annotations.
		Metadata Metadata
		// Payload is the opaque row-change/statement content. An empty
		// Payload causes the dispatch queue to discard the event outright.
		Payload []byte
	}

	// Header is the minimal restart descriptor: the smallest amount of
	// state required to resume replication without gap or duplicate. Every
	// successfully processed Event yields a Header that may be persisted.
	Header struct {
		Seqno    uint64
		Fragno   uint32
		LastFrag bool
		EventID  string
		SourceID string
	}
)

const (
	MetadataHeartbeat            MetadataKey = `HEARTBEAT`
	MetadataRollback             MetadataKey = `ROLLBACK`
	MetadataUnsafeForBlockCommit MetadataKey = `UNSAFE_FOR_BLOCK_COMMIT`
	MetadataService              MetadataKey = `SERVICE`
)

// Get returns the raw value for key, and whether it was present.
func (m Metadata) Get(key MetadataKey) (string, bool) {
	if m == nil {
		return ``, false
	}
	v, ok := m[string(key)]
	return v, ok
}

// Has reports whether key is present in m, regardless of value (the
// metadata keys the core interprets are presence flags, not booleans).
func (m Metadata) Has(key MetadataKey) bool {
	_, ok := m.Get(key)
	return ok
}

// Heartbeat reports whether this event is a heartbeat marker.
func (e *Event) Heartbeat() bool { return e.Metadata.Has(MetadataHeartbeat) }

// Rollback reports whether this event marks a transaction rollback.
func (e *Event) Rollback() bool { return e.Metadata.Has(MetadataRollback) }

// UnsafeForBlockCommit reports whether this event must not be folded into a
// pending block-commit batch.
func (e *Event) UnsafeForBlockCommit() bool { return e.Metadata.Has(MetadataUnsafeForBlockCommit) }

// Empty reports whether Payload carries no data, the discard condition used
// by the dispatch queue.
func (e *Event) Empty() bool { return len(e.Payload) == 0 }

// Header extracts the restart descriptor for e. sourceID identifies the
// stage/task persisting the header, since Event itself carries no notion of
// which downstream task processed it.
func (e *Event) Header(sourceID string) Header {
	return Header{
		Seqno:    e.Seqno,
		Fragno:   e.Fragno,
		LastFrag: e.LastFrag,
		EventID:  e.EventID,
		SourceID: sourceID,
	}
}

// Validate reports a non-nil error if e holds a structurally impossible
// value; the only such value it checks is a zero Seqno. It does not check
// the fragment invariants documented on Event, which span several events
// and depend on the caller's fragment tracking.
func (e *Event) Validate() error {
	if e.Seqno == 0 {
		return fmt.Errorf(`dbmsevent: invalid event: seqno must be positive`)
	}
	return nil
}

func (h Header) String() string {
	return fmt.Sprintf(`%s@%d.%d(last=%t,id=%s)`, h.SourceID, h.Seqno, h.Fragno, h.LastFrag, h.EventID)
}
