package tir

import (
	"fmt"
	"slices"
	"strings"

	"github.com/slowlang/metatrace/jit/sir"
)

type (
	// Trace is a straight-line path through the SIR with guarded speculation.
	// It is immutable once New returns.
	Trace struct {
		ops    []Op
		inputs *sir.Local

		// LocalDecls holds every local referenced by the ops, renamed.
		LocalDecls map[sir.Local]sir.LocalDecl
	}

	// Op is a sir.Statement or a Guard.
	Op interface {
		String() string
	}

	// Guard states the assumptions from its position in a trace onward.
	Guard struct {
		Place sir.Place
		Kind  GuardKind
	}

	GuardKind interface {
		isGuardKind()
		String() string
	}

	// Integer requires the value to equal V.
	Integer struct {
		V sir.U128
	}

	// OtherInteger requires the value to be none of Vs.
	OtherInteger struct {
		Vs []sir.U128
	}

	// Boolean requires the value to equal B.
	Boolean struct {
		B bool
	}

	// Bodies is the read-only symbol table lowering consumes.
	Bodies interface {
		Body(sym string) (*sir.Body, bool)
	}

	NoSIRError struct {
		Symbol string
	}
)

func (Integer) isGuardKind()      {}
func (OtherInteger) isGuardKind() {}
func (Boolean) isGuardKind()      {}

func (g Guard) String() string { return fmt.Sprintf("guard(%v, %v)", g.Place, g.Kind) }

func (k Integer) String() string { return fmt.Sprintf("integer(%v)", k.V) }
func (k Boolean) String() string { return fmt.Sprintf("bool(%v)", k.B) }

func (k OtherInteger) String() string {
	l := make([]string, len(k.Vs))

	for i, v := range k.Vs {
		l[i] = v.String()
	}

	return "other_integer([" + strings.Join(l, ", ") + "])"
}

func NewNoSIRError(sym string) NoSIRError { return NoSIRError{Symbol: sym} }

func (e NoSIRError) Error() string {
	return fmt.Sprintf("no SIR for symbol: %s", e.Symbol)
}

// Op returns the i-th operation. Out of range is a caller bug.
func (t *Trace) Op(i int) Op {
	if i < 0 || i >= len(t.ops) {
		panic(fmt.Sprintf("bogus trace index %d (len %d)", i, len(t.ops)))
	}

	return t.ops[i]
}

func (t *Trace) Len() int { return len(t.ops) }

// Inputs is the trace-inputs local of the traced code, if any.
func (t *Trace) Inputs() (sir.Local, bool) {
	if t.inputs == nil {
		return 0, false
	}

	return *t.inputs, true
}

// Locals returns the keys of LocalDecls in ascending order.
func (t *Trace) Locals() []sir.Local {
	l := make([]sir.Local, 0, len(t.LocalDecls))

	for x := range t.LocalDecls {
		l = append(l, x)
	}

	slices.Sort(l)

	return l
}

func (t *Trace) String() string {
	var b strings.Builder

	b.WriteString("local_decls:\n")

	for _, l := range t.Locals() {
		fmt.Fprintf(&b, "  %v: %v\n", l, t.LocalDecls[l])
	}

	b.WriteString("ops:\n")

	for _, op := range t.ops {
		fmt.Fprintf(&b, "  %v\n", op)
	}

	return b.String()
}
