package partition

import (
	"fmt"
	"sync"

	"github.com/joeycumines/go-replicore/dbmsevent"
)

type (
	// Result is the outcome of routing a single event: which partition it
	// belongs to, and whether it must be globally serialized against every
	// other partition.
	Result struct {
		Partition uint32
		Critical  bool
	}

	// Partitioner maps an event (plus an opaque per-task hint, e.g. a
	// stage/task name) to a Result. Implementations must be pure and
	// stateless: they may not observe or mutate state outside the event
	// itself.
	Partitioner func(event *dbmsevent.Event, taskHint string) Result

	// Config configures a builtin Partitioner factory.
	Config struct {
		// Partitions is the number of partitions to route across. Must be
		// positive.
		Partitions uint32
		// ShardKey extracts the string used to compute a partition, given
		// an event. Defaults to using Event.Service if nil.
		ShardKey func(event *dbmsevent.Event) string
		// Critical reports whether an event must be globally serialized.
		// Defaults to "never critical" if nil.
		Critical func(event *dbmsevent.Event) bool
	}

	// Factory builds a Partitioner from a Config, for use with Register.
	Factory func(Config) Partitioner
)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		`hash`:  func(cfg Config) Partitioner { return ByShardKeyHash(cfg) },
		`fixed`: func(cfg Config) Partitioner { return Fixed(0) },
	}
)

// Register associates a symbolic name with a Factory, so it can later be
// selected by name (e.g. from configuration) without runtime class
// loading. Registering under an existing name replaces it.
func Register(name string, factory Factory) {
	if name == `` {
		panic(`partition: register: empty name`)
	}
	if factory == nil {
		panic(`partition: register: nil factory`)
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Lookup returns the Factory registered under name, if any.
func Lookup(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// New builds a Partitioner using the Factory registered under name.
func New(name string, cfg Config) (Partitioner, error) {
	f, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf(`partition: no partitioner registered under name %q`, name)
	}
	return f(cfg), nil
}
