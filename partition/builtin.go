package partition

import (
	"hash/fnv"

	"github.com/joeycumines/go-replicore/dbmsevent"
)

// ByShardKeyHash returns a Partitioner that hashes cfg.ShardKey(event) (or
// event.Service, if ShardKey is nil) together with the task hint, using
// FNV-1a, and takes the result modulo cfg.Partitions: the default
// implementation described in spec.md §4.2. The same shard key may route
// to different partitions under different task hints.
//
// It panics lazily, at call time, if cfg.Partitions is zero.
func ByShardKeyHash(cfg Config) Partitioner {
	shardKey := cfg.ShardKey
	if shardKey == nil {
		shardKey = func(event *dbmsevent.Event) string { return event.Service }
	}
	critical := cfg.Critical
	if critical == nil {
		critical = func(*dbmsevent.Event) bool { return false }
	}

	return func(event *dbmsevent.Event, taskHint string) Result {
		if cfg.Partitions == 0 {
			panic(`partition: ByShardKeyHash: Partitions must be positive`)
		}

		h := fnv.New32a()
		_, _ = h.Write([]byte(shardKey(event)))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(taskHint))

		return Result{
			Partition: h.Sum32() % cfg.Partitions,
			Critical:  critical(event),
		}
	}
}

// Fixed returns a Partitioner that always routes to the given partition and
// never marks an event critical. Useful for single-partition stages and
// tests.
func Fixed(partition uint32) Partitioner {
	return func(*dbmsevent.Event, string) Result {
		return Result{Partition: partition, Critical: false}
	}
}
