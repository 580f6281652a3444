// Package seqno implements the single advancing watermark ("head seqno")
// shared between the extractor, the parallel dispatch queue, and every
// per-partition reader: a monotonically non-decreasing uint64 plus a
// cancellable wait-for-at-least-N primitive.
package seqno
