// Package stage implements C7, the stage task loop: a single-threaded loop
// binding an Extractor, a chain of Filters, and an Applier, with block-commit
// batching and per-phase failure policy.
package stage
