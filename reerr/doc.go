// Package reerr defines the replication core's error taxonomy: EXTRACTION,
// APPLICATION, CANCELLED, INVARIANT, and RESOURCE (which always surfaces as
// INVARIANT). Filter errors are never part of this taxonomy — a filter
// returning nil suppresses an event, and a filter returning an error is
// escalated by the caller as an APPLICATION-class error.
package reerr
