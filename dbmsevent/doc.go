// Package dbmsevent defines the immutable event, header, and control-event
// types that flow through the replication core: extractor, parallel
// dispatch queue, per-partition readers, and appliers all exchange values
// of these types rather than anything upstream-specific.
package dbmsevent
