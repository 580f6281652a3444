package xruntime

import (
	"fmt"
	"runtime/debug"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/joeycumines/go-replicore/replog"
)

// defaultMemoryLimitRatio is applied when Config.MemoryLimitRatio is unset;
// it leaves headroom below the cgroup's hard memory limit for non-Go memory
// (mmap'd buffers, the network stack, etc.).
const defaultMemoryLimitRatio = 0.9

// Config configures Configure.
type Config struct {
	// MemoryLimitRatio is the fraction of the cgroup memory limit GOMEMLIMIT
	// is set to. Zero defaults to defaultMemoryLimitRatio.
	MemoryLimitRatio float64
	Logger           *replog.Logger
}

// Configure matches GOMAXPROCS to the visible cgroup CPU quota and GOMEMLIMIT
// to its memory limit (scaled by Config.MemoryLimitRatio), returning an undo
// func that restores both to their pre-call values. Call it once from the
// process embedding the engine, before constructing any component.
func Configure(cfg Config) (undo func(), err error) {
	log := replog.OrNoOp(cfg.Logger)
	ratio := defaultRatio(cfg.MemoryLimitRatio)
	prevMemLimit := debug.SetMemoryLimit(-1)

	undoProcs, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		log.Info().Str(`component`, `automaxprocs`).Log(fmt.Sprintf(format, args...))
	}))
	if err != nil {
		return nil, fmt.Errorf(`xruntime: set GOMAXPROCS: %w`, err)
	}

	limit, err := memlimit.SetGoMemLimitWithOpts(memlimit.WithRatio(ratio))
	if err != nil {
		undoProcs()
		return nil, fmt.Errorf(`xruntime: set GOMEMLIMIT: %w`, err)
	}

	log.Info().
		Str(`gomemlimit_bytes`, fmt.Sprintf(`%v`, limit)).
		Str(`ratio`, fmt.Sprintf(`%.2f`, ratio)).
		Log(`memory limit configured`)

	return func() {
		undoProcs()
		debug.SetMemoryLimit(prevMemLimit)
	}, nil
}

func defaultRatio(ratio float64) float64 {
	if ratio <= 0 {
		return defaultMemoryLimitRatio
	}
	return ratio
}
