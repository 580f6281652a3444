package dbmsevent

import "testing"

func TestEvent_Empty(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    bool
	}{
		{name: "nil_payload", payload: nil, want: true},
		{name: "empty_payload", payload: []byte{}, want: true},
		{name: "non_empty_payload", payload: []byte{1}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Event{Payload: tt.payload}
			if got := e.Empty(); got != tt.want {
				t.Fatalf(`Empty() = %v, want %v`, got, tt.want)
			}
		})
	}
}

func TestEvent_MetadataFlags(t *testing.T) {
	e := Event{Metadata: Metadata{
		string(MetadataHeartbeat):            ``,
		string(MetadataUnsafeForBlockCommit): `1`,
	}}

	if !e.Heartbeat() {
		t.Fatal(`expected Heartbeat() true`)
	}
	if e.Rollback() {
		t.Fatal(`expected Rollback() false`)
	}
	if !e.UnsafeForBlockCommit() {
		t.Fatal(`expected UnsafeForBlockCommit() true`)
	}

	var nilEvent Event
	if nilEvent.Heartbeat() || nilEvent.Rollback() || nilEvent.UnsafeForBlockCommit() {
		t.Fatal(`expected all flags false on zero-value event`)
	}
}

func TestEvent_Header(t *testing.T) {
	e := Event{Seqno: 5, Fragno: 2, LastFrag: true, EventID: `file:100`}
	h := e.Header(`src1`)
	want := Header{Seqno: 5, Fragno: 2, LastFrag: true, EventID: `file:100`, SourceID: `src1`}
	if h != want {
		t.Fatalf(`Header() = %+v, want %+v`, h, want)
	}
}

func TestCriticalSection_Contains(t *testing.T) {
	cs := CriticalSection{Partition: 1, StartSeqno: 10, EndSeqno: 20}
	for _, seqno := range []uint64{9, 10, 15, 20, 21} {
		want := seqno >= 10 && seqno <= 20
		if got := cs.Contains(seqno); got != want {
			t.Fatalf(`Contains(%d) = %v, want %v`, seqno, got, want)
		}
	}
}

func TestNumericChunk_Poison(t *testing.T) {
	var poison NumericChunk
	if !poison.Poison() {
		t.Fatal(`expected zero-value chunk to be a poison pill`)
	}
	if poison.WholeTable() {
		t.Fatal(`poison pill must not be reported as a whole-table chunk`)
	}

	whole := NumericChunk{Table: Table{Schema: `s`, Name: `t`}}
	if whole.Poison() {
		t.Fatal(`whole-table chunk must not be reported as poison`)
	}
	if !whole.WholeTable() {
		t.Fatal(`expected whole-table chunk`)
	}
}
