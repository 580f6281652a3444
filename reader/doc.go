// Package reader implements C4: a per-partition reader owning a bounded
// data queue and a bounded control queue, merged in strict seqno order on
// read, with a critical-section gate that gives way to cross-partition
// serialization when required.
package reader
