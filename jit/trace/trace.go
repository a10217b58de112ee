package trace

import (
	"fmt"

	"tlog.app/go/tlog/tlwire"

	"github.com/slowlang/metatrace/jit/sir"
)

type (
	// Location is one executed basic block.
	// An empty Symbol means the block has no SIR.
	Location struct {
		Symbol string
		BB     sir.BasicBlockIndex
	}

	// SirTrace is a recorded sequence of locations.
	// Loc panics if i is out of range.
	SirTrace interface {
		Len() int
		Loc(i int) Location
	}

	// Locs is an in-memory SirTrace.
	Locs []Location

	// Iter walks a SirTrace front to back with one location of lookahead.
	Iter struct {
		t SirTrace
		i int
	}

	Kind int

	// ThreadTracer is a started trace recording bound to one thread.
	ThreadTracer interface {
		StopTracing() (SirTrace, error)
	}

	// Recorder receives every executed block.
	Recorder interface {
		Record(sym string, bb sir.BasicBlockIndex)
	}
)

const (
	SoftwareTracing Kind = iota
	HardwareTracing
)

var (
	// StopTracingSymbol is the function whose call ends a recorded trace.
	StopTracingSymbol = "stop_tracing"

	// StartTracingSymbol is the function whose call starts recording.
	StartTracingSymbol = "start_tracing"
)

func (l Location) String() string {
	if l.Symbol == "" {
		return fmt.Sprintf("<unknown>:bb%d", l.BB)
	}

	return fmt.Sprintf("%s:bb%d", l.Symbol, l.BB)
}

func (l Location) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	return e.AppendFormat(b, "%v", l)
}

// Known reports whether the location has SIR.
func (l Location) Known() bool { return l.Symbol != "" }

func (t Locs) Len() int { return len(t) }

func (t Locs) Loc(i int) Location {
	if i < 0 || i >= len(t) {
		panic(fmt.Sprintf("trace location %d out of range [0, %d)", i, len(t)))
	}

	return t[i]
}

// Collect copies any SirTrace into Locs.
func Collect(t SirTrace) Locs {
	if l, ok := t.(Locs); ok {
		return l
	}

	l := make(Locs, t.Len())

	for i := range l {
		l[i] = t.Loc(i)
	}

	return l
}

func NewIter(t SirTrace) *Iter {
	return &Iter{t: t}
}

// Next returns the next location and advances.
func (it *Iter) Next() (Location, bool) {
	if it.i >= it.t.Len() {
		return Location{}, false
	}

	l := it.t.Loc(it.i)
	it.i++

	return l, true
}

// Peek returns the next location without advancing.
func (it *Iter) Peek() (Location, bool) {
	if it.i >= it.t.Len() {
		return Location{}, false
	}

	return it.t.Loc(it.i), true
}

// Pos is the index of the location Next would return.
func (it *Iter) Pos() int { return it.i }

func (k Kind) String() string {
	switch k {
	case SoftwareTracing:
		return "software"
	case HardwareTracing:
		return "hardware"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}
