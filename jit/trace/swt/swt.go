// Package swt is the software tracing backend.
// Locations are appended by the instrumented code (or the interpreter) as blocks run.
package swt

import (
	"sync"

	"tlog.app/go/errors"
	"tlog.app/go/loc"

	"github.com/slowlang/metatrace/jit/sir"
	"github.com/slowlang/metatrace/jit/trace"
)

type Tracer struct {
	mu      sync.Mutex
	locs    trace.Locs
	stopped bool

	from loc.PC
}

var ErrStopped = errors.New("tracer stopped")

// Start begins a new recording.
func Start() *Tracer {
	return &Tracer{from: loc.Caller(1)}
}

// StartedAt is the call site of Start.
func (t *Tracer) StartedAt() loc.PC { return t.from }

// Record appends one location. Records after StopTracing are dropped.
func (t *Tracer) Record(sym string, bb sir.BasicBlockIndex) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}

	t.locs = append(t.locs, trace.Location{Symbol: sym, BB: bb})
}

// StopTracing ends the recording and returns it.
// The recorded trace is owned by the caller.
func (t *Tracer) StopTracing() (trace.SirTrace, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return nil, errors.Wrap(ErrStopped, "started at %v", t.from)
	}

	t.stopped = true
	l := t.locs
	t.locs = nil

	return l, nil
}

var (
	_ trace.ThreadTracer = &Tracer{}
	_ trace.Recorder     = &Tracer{}
)
