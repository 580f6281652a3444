// Package dispatch implements C5, the parallel dispatch queue: the single
// producer that fans a totally-ordered event stream out to N per-partition
// readers, injects control events at aligned points, and enforces
// critical-section serialization across partitions without a global lock.
package dispatch
