package replog

import (
	"io"
	"os"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the structured logger type used throughout the replication
// core.
type Logger = logiface.Logger[*stumpy.Event]

// New constructs a Logger writing newline-delimited JSON to w. A nil w
// defaults to os.Stderr.
func New(w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
	)
}

// NoOp returns a Logger that discards everything, suitable as a default
// when no logger is injected.
func NoOp() *Logger {
	return stumpy.L.New(stumpy.L.WithStumpy(stumpy.WithWriter(io.Discard), stumpy.WithTimeField(``)))
}

// OrNoOp returns l if non-nil, else NoOp(). Every core component that
// accepts an optional *Logger should route construction through this so a
// nil logger is never dereferenced.
func OrNoOp(l *Logger) *Logger {
	if l != nil {
		return l
	}
	return NoOp()
}
