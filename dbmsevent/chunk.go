package dbmsevent

import (
	"fmt"
	"math/big"
)

// Table identifies a schema-qualified table.
type Table struct {
	Schema string
	Name   string
}

func (t Table) String() string { return fmt.Sprintf(`%s.%s`, t.Schema, t.Name) }

// NumericChunk describes a bounded key-range slice of a table for parallel
// snapshot extraction. StartKey/EndKey are nil to mean "whole table" (no
// bound on that side); by construction of the planner a chunk is
// closed-open on StartKey and closed on EndKey: (StartKey, EndKey].
//
// A zero-value NumericChunk (empty Table, nil bounds, zero TotalBlocks) is
// a poison pill: workers receiving one should exit cleanly rather than plan
// further work.
type NumericChunk struct {
	Table       Table
	StartKey    *big.Rat
	EndKey      *big.Rat
	Columns     []string
	TotalBlocks int
}

// Poison reports whether c is the sentinel value signaling worker shutdown.
func (c NumericChunk) Poison() bool {
	return c.Table == Table{} && c.StartKey == nil && c.EndKey == nil && c.TotalBlocks == 0
}

// WholeTable reports whether c has no range bounds, i.e. covers the entire
// table.
func (c NumericChunk) WholeTable() bool {
	return !c.Poison() && c.StartKey == nil && c.EndKey == nil
}

func (c NumericChunk) String() string {
	if c.Poison() {
		return `chunk(poison)`
	}
	if c.WholeTable() {
		return fmt.Sprintf(`chunk(%s, whole-table)`, c.Table)
	}
	return fmt.Sprintf(`chunk(%s, (%s,%s])`, c.Table, ratString(c.StartKey), ratString(c.EndKey))
}

func ratString(r *big.Rat) string {
	if r == nil {
		return `-inf`
	}
	return r.RatString()
}
