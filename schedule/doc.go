// Package schedule implements C6, the progress tracker consulted by the
// stage task loop: an advisory decision per event driven by configured
// seqno/event-id/predicate ranges, restart-point bookkeeping, per-phase
// interval timing, and a latched cancellation flag.
package schedule
