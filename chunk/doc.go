// Package chunk implements C8, the chunk planner: given a store connection,
// an optional chunk-definitions document, and a target channel count, it
// divides tables into numeric key-range chunks for parallel bulk extraction,
// terminating each worker's stream with a poison-pill chunk.
package chunk
