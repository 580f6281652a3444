package replog

import (
	"bytes"
	"strings"
	"testing"
)

func TestNew_WritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf)

	logger.Info().Str(`component`, `dispatch`).Log(`started`)

	out := buf.String()
	if !strings.Contains(out, `started`) {
		t.Fatalf(`expected log output to contain message, got %q`, out)
	}
	if !strings.Contains(out, `dispatch`) {
		t.Fatalf(`expected log output to contain field, got %q`, out)
	}
}

func TestOrNoOp(t *testing.T) {
	if got := OrNoOp(nil); got == nil {
		t.Fatal(`expected a non-nil no-op logger`)
	}

	l := New(nil)
	if got := OrNoOp(l); got != l {
		t.Fatal(`expected OrNoOp to pass through a non-nil logger`)
	}
}
