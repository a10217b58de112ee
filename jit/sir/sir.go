package sir

import (
	"fmt"
	"strings"

	"tlog.app/go/tlog/tlwire"
)

type (
	// Local names a variable slot of one body activation.
	Local uint32

	BasicBlockIndex uint32

	// TypeID is a crate hash plus an index into that crate's type table.
	TypeID struct {
		Crate uint64
		Index uint32
	}

	LocalDecl struct {
		Ty TypeID
	}

	Place struct {
		Local      Local
		Projection []Projection
	}

	Projection interface {
		isProjection()
		String() string
	}

	Field uint32

	Deref struct{}

	UnimplementedProj string

	BodyFlags uint8

	// Body is the SIR of one function.
	Body struct {
		Symbol      string
		Blocks      []BasicBlock
		Flags       BodyFlags
		TraceInputs *Local
		Locals      []LocalDecl

		// Filled by LayOut. Offsets are in bytes from the frame base.
		Offsets []int
		Layout  SizeAlign
	}

	BasicBlock struct {
		Stmts []Statement
		Term  Terminator
	}
)

const (
	ReturnLocal      Local = 0
	TraceInputsLocal Local = 1
)

const (
	FlagTraceHead BodyFlags = 1 << iota
	FlagTraceTail
	FlagDoNotTrace
	FlagTraceDebug
	FlagInterpStep
)

func (Field) isProjection()             {}
func (Deref) isProjection()             {}
func (UnimplementedProj) isProjection() {}

func (f Field) String() string             { return fmt.Sprintf(".%d", uint32(f)) }
func (Deref) String() string               { return ".*" }
func (p UnimplementedProj) String() string { return fmt.Sprintf(".(unimplemented projection: %q)", string(p)) }

func (l Local) String() string { return fmt.Sprintf("$%d", uint32(l)) }

func (l Local) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	return e.AppendFormat(b, "$%d", uint32(l))
}

func (t TypeID) String() string { return fmt.Sprintf("(%d, %d)", t.Crate, t.Index) }

func (d LocalDecl) String() string { return d.Ty.String() }

// LocalPlace is a Place without projections.
func LocalPlace(l Local) Place { return Place{Local: l} }

func (p Place) String() string {
	if len(p.Projection) == 0 {
		return p.Local.String()
	}

	var b strings.Builder

	b.WriteString(p.Local.String())

	for _, x := range p.Projection {
		b.WriteString(x.String())
	}

	return b.String()
}

func (p Place) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	return e.AppendFormat(b, "%v", p)
}

// WithLocal returns a copy of p based on l. Projections are shared.
func (p Place) WithLocal(l Local) Place {
	p.Local = l
	return p
}

var flagNames = []struct {
	f BodyFlags
	n string
}{
	{FlagTraceHead, "trace_head"},
	{FlagTraceTail, "trace_tail"},
	{FlagDoNotTrace, "do_not_trace"},
	{FlagTraceDebug, "trace_debug"},
	{FlagInterpStep, "interp_step"},
}

func (f BodyFlags) Has(x BodyFlags) bool { return f&x == x }

func (f BodyFlags) String() string {
	var l []string

	for _, x := range flagNames {
		if f.Has(x.f) {
			l = append(l, x.n)
		}
	}

	return "[" + strings.Join(l, ", ") + "]"
}

// Block returns the block bb. Out of range is a caller bug.
func (b *Body) Block(bb BasicBlockIndex) *BasicBlock {
	if int(bb) >= len(b.Blocks) {
		panic(fmt.Sprintf("%v: no block bb%d (%d blocks)", b.Symbol, bb, len(b.Blocks)))
	}

	return &b.Blocks[bb]
}

// Decl returns the declaration of l.
func (b *Body) Decl(l Local) LocalDecl {
	if int(l) >= len(b.Locals) {
		panic(fmt.Sprintf("%v: no local %v (%d locals)", b.Symbol, l, len(b.Locals)))
	}

	return b.Locals[l]
}

func (b *Body) LaidOut() bool { return b.Offsets != nil }
