package interp

import (
	"context"
	"unsafe"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/metatrace/jit/sir"
	"github.com/slowlang/metatrace/jit/trace"
)

type (
	// Registry resolves callee bodies and the types of resolved places.
	Registry interface {
		Body(sym string) (*sir.Body, bool)
		Ty(id sir.TypeID) (sir.Ty, bool)
	}

	// Interpreter executes SIR bodies against raw memory.
	// It is a reference implementation: anything it does not support panics.
	Interpreter struct {
		reg Registry

		frames []*StackFrame
		bbidx  sir.BasicBlockIndex

		// keeps the caller memory reachable while its address is stored in a frame
		inputs unsafe.Pointer

		rec trace.Recorder
	}

	// resume is where execution continues after a call returns.
	// A nil resume is a call with no destination.
	resume struct {
		dest sir.IPlace
		bb   sir.BasicBlockIndex
	}
)

// New prepares a frame for body. body must be laid out.
func New(reg Registry, body *sir.Body) *Interpreter {
	return &Interpreter{
		reg:    reg,
		frames: []*StackFrame{newFrame(body)},
	}
}

// SetTraceInputs stores p in the trace inputs local of the entry frame.
// The memory p points to is written by Interpret.
func (i *Interpreter) SetTraceInputs(p unsafe.Pointer) {
	i.inputs = p

	dst := i.frame().slot(sir.TraceInputsLocal, 0, sir.PtrSize)
	writePtr(dst, p)
}

// SetRecorder makes the interpreter report every executed block to r.
func (i *Interpreter) SetRecorder(r trace.Recorder) {
	i.rec = r
}

// Frame returns the innermost frame.
func (i *Interpreter) Frame() *StackFrame { return i.frame() }

// Interpret runs body from its entry block until it returns.
// Bodies marked as trace debug helpers are skipped.
func (i *Interpreter) Interpret(ctx context.Context, body *sir.Body) {
	if body.Flags.Has(sir.FlagTraceDebug) {
		return
	}

	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "interp", "symbol", body.Symbol)
	defer tr.Finish()

	bodies := []*sir.Body{body}
	var returns []*resume

	steps := 0

	for {
		b := bodies[len(bodies)-1]

		if i.rec != nil {
			i.rec.Record(b.Symbol, i.bbidx)
		}

		bb := b.Block(i.bbidx)

		step := b.Flags.Has(sir.FlagInterpStep) || tr.If("interp_step")

		for _, s := range bb.Stmts {
			if step {
				tr.Printw("stmt", "symbol", b.Symbol, "bb", i.bbidx, "stmt", s, "typ", tlog.NextAsType, s)
			}

			i.stmt(b, s)
		}

		steps++

		switch term := bb.Term.(type) {
		case sir.CallTerm:
			callee := i.callee(b, term)

			f := newFrame(callee)
			i.copyArgs(f, b, callee, term)

			var r *resume
			if term.Dest != nil {
				r = &resume{dest: term.Dest.IPlace, bb: term.Dest.Target}
			}

			if step {
				tr.Printw("call", "caller", b.Symbol, "callee", callee.Symbol, "frames", len(i.frames)+1)
			}

			i.frames = append(i.frames, f)
			returns = append(returns, r)
			bodies = append(bodies, callee)
			i.bbidx = 0
		case sir.Return:
			if len(returns) == 0 {
				tr.V("interp_exit").Printw("done", "blocks", steps)
				return
			}

			r := returns[len(returns)-1]
			returns = returns[:len(returns)-1]

			old := i.frames[len(i.frames)-1]
			i.frames = i.frames[:len(i.frames)-1]

			if r == nil {
				panic(errors.New("%v: returned from a call without destination", b.Symbol))
			}

			if r.dest == nil {
				panic(errors.New("%v: call destination was not resolved", bodies[len(bodies)-2].Symbol))
			}

			size := i.size(r.dest.TypeID())

			writeVal(i.ptr(r.dest, size), old.slot(sir.ReturnLocal, 0, size), size)

			old.release()

			i.bbidx = r.bb
			bodies = bodies[:len(bodies)-1]
		default:
			panic(errors.New("%v: bb%d: unsupported terminator: %v", b.Symbol, i.bbidx, term))
		}
	}
}

func (i *Interpreter) frame() *StackFrame {
	return i.frames[len(i.frames)-1]
}

func (i *Interpreter) stmt(b *sir.Body, s sir.Statement) {
	switch s := s.(type) {
	case sir.Nop:
	case sir.Store:
		i.store(s.Dst, s.Src)
	case sir.MkRef:
		i.mkref(s.Dst, s.Src)
	default:
		panic(errors.New("%v: bb%d: unsupported statement: %v", b.Symbol, i.bbidx, s))
	}
}

func (i *Interpreter) store(dst, src sir.IPlace) {
	switch src := src.(type) {
	case sir.Val, sir.Indirect:
		size := i.size(src.TypeID())

		writeVal(i.ptr(dst, size), i.ptr(src, size), size)
	case sir.Const:
		size := i.size(src.Ty)

		i.writeConst(i.ptr(dst, size), src.Val, size)
	default:
		panic(src)
	}
}

func (i *Interpreter) mkref(dst, src sir.IPlace) {
	if _, ok := src.(sir.Const); ok {
		panic(errors.New("reference to constant %v", src))
	}

	p := i.ptr(src, 0)

	writePtr(i.ptr(dst, sir.PtrSize), p)
}

func (i *Interpreter) writeConst(dst unsafe.Pointer, c sir.Constant, size int) {
	switch c := c.(type) {
	case sir.ConstInt:
		n := c.Width.Bytes()
		if n != size {
			panic(errors.New("constant %v does not fit %d bytes", c, size))
		}

		writeInt(dst, c.Bits, n)
	case sir.ConstBool:
		var v uint8
		if c {
			v = 1
		}

		*(*uint8)(dst) = v
	case sir.ConstTuple:
		if !sir.IsZeroSized(i.ty(sir.TypeID(c))) {
			panic(errors.New("non zero-sized tuple constant %v", c))
		}
	default:
		panic(errors.New("unsupported constant: %v", c))
	}
}

// ptr resolves p to an address in the innermost frame or behind a pointer stored there.
// size is the number of bytes about to be accessed.
func (i *Interpreter) ptr(p sir.IPlace, size int) unsafe.Pointer {
	return i.frame().ptr(p, size)
}

func (f *StackFrame) ptr(p sir.IPlace, size int) unsafe.Pointer {
	switch p := p.(type) {
	case sir.Val:
		return f.slot(p.Local, p.Off, size)
	case sir.Indirect:
		at := f.slot(p.Ptr.Local, p.Ptr.Off, sir.PtrSize)

		return unsafe.Add(readPtr(at), p.Off)
	case sir.Const:
		panic(errors.New("constant %v has no address", p))
	default:
		panic(p)
	}
}

func (i *Interpreter) callee(b *sir.Body, term sir.CallTerm) *sir.Body {
	if !term.Fn.Known() {
		panic(errors.New("%v: bb%d: call to unknown target", b.Symbol, i.bbidx))
	}

	callee, ok := i.reg.Body(term.Fn.Symbol)
	if !ok {
		panic(errors.New("%v: bb%d: no SIR for callee %v", b.Symbol, i.bbidx, term.Fn.Symbol))
	}

	return callee
}

// copyArgs writes the call arguments into the callee locals $1..$n.
func (i *Interpreter) copyArgs(f *StackFrame, b, callee *sir.Body, term sir.CallTerm) {
	if len(term.IArgs) != len(term.Args) {
		panic(errors.New("%v: call to %v: %d of %d arguments resolved", b.Symbol, callee.Symbol, len(term.IArgs), len(term.Args)))
	}

	for n, a := range term.IArgs {
		l := sir.Local(n + 1)
		size := i.size(a.TypeID())
		dst := f.slot(l, 0, size)

		switch a := a.(type) {
		case sir.Val, sir.Indirect:
			writeVal(dst, i.ptr(a, size), size)
		case sir.Const:
			i.writeConst(dst, a.Val, size)
		default:
			panic(a)
		}
	}
}

func (i *Interpreter) ty(id sir.TypeID) sir.Ty {
	t, ok := i.reg.Ty(id)
	if !ok {
		panic(errors.New("unknown type %v", id))
	}

	if u, ok := t.(sir.UnimplementedTy); ok {
		panic(errors.New("type %v: %v", id, u))
	}

	return t
}

func (i *Interpreter) size(id sir.TypeID) int {
	return i.ty(id).Size()
}
