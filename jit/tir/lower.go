package tir

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/metatrace/jit/sir"
	"github.com/slowlang/metatrace/jit/trace"
)

// New lowers a recorded location sequence into a Trace.
// Calls to bodies with SIR are inlined between Enter and Leave markers,
// branches become guards and the tracer's own start/stop code is trimmed.
//
// The only returned error is NoSIRError. Malformed input panics.
func New(ctx context.Context, bodies Bodies, st trace.SirTrace) (t *Trace, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "tir: lower", "locations", st.Len())
	defer tr.Finish("err", &err)

	var ops []Op
	var inputs *sir.Local

	rn := newRenamer()
	it := trace.NewIter(st)

	for {
		loc, ok := it.Next()
		if !ok {
			break
		}

		b, ok := bodies.Body(loc.Symbol)
		if !ok {
			return nil, NewNoSIRError(loc.Symbol)
		}

		inputs = b.TraceInputs

		rn.initAcc(len(b.Locals))

		bb := b.Block(loc.BB)

		if tr.If("tir_loc") {
			tr.Printw("location", "loc", loc, "depth", rn.depth(), "offset", rn.offset(), "stmts", len(bb.Stmts), "term", bb.Term)
		}

		for _, s := range bb.Stmts {
			ops = append(ops, rn.stmt(s, b))
		}

		switch term := bb.Term.(type) {
		case sir.CallTerm:
			ops = append(ops, lowerCall(bodies, rn, b, term))
		case sir.Return:
			rn.leave()
			ops = append(ops, sir.Leave{})
		}

		g, ok := guard(rn, b, bb.Term, it)
		if ok {
			ops = append(ops, g)
		}
	}

	tr.V("tir_ops").Printw("ops before trimming", "ops", len(ops))

	ops = trim(ops)

	t = &Trace{
		ops:        ops,
		inputs:     inputs,
		LocalDecls: usedDecls(ops, rn.used),
	}

	tr.Printw("lowered", "ops", len(t.ops), "locals", len(t.LocalDecls))

	return t, nil
}

func lowerCall(bodies Bodies, rn *renamer, b *sir.Body, term sir.CallTerm) sir.Statement {
	var dest *sir.Place
	if term.Dest != nil {
		dest = rn.optPlace(&term.Dest.Place, b)
	}

	args := rn.operands(term.Args, b)

	var callee *sir.Body
	if term.Fn.Known() {
		callee, _ = bodies.Body(term.Fn.Symbol)
	}

	if callee == nil {
		return sir.Call{Fn: term.Fn, Args: args, Dest: dest}
	}

	off := rn.enter(len(callee.Locals), dest)

	// Arguments are live on entry without ever being assigned in the callee.
	for i := range args {
		l := sir.Local(i + 1)
		rn.used[l+sir.Local(off)] = callee.Decl(l)
	}

	return sir.Enter{Fn: term.Fn, Args: args, Dest: dest, Offset: off}
}

// guard derives the check the recorded path depends on, peeking at the next
// location for switches.
func guard(rn *renamer, b *sir.Body, term sir.Terminator, it *trace.Iter) (Guard, bool) {
	switch term := term.(type) {
	case sir.Goto, sir.Return, sir.Drop, sir.DropAndReplace, sir.CallTerm, sir.UnimplementedTerm:
		return Guard{}, false
	case sir.Unreachable:
		panic(errors.New("%v: traced unreachable code", b.Symbol))
	case sir.SwitchInt:
		next, ok := it.Peek()
		if !ok {
			panic(errors.New("%v: trace ends at switch on %v", b.Symbol, term.Discr))
		}

		// Only the renamer scope of the switching body is open here:
		// call and return terminators never reach this branch.
		p := rn.place(term.Discr, b)

		for i, bb := range term.Targets {
			if bb == next.BB {
				return Guard{Place: p, Kind: Integer{V: term.Values[i]}}, true
			}
		}

		// Anything else took the otherwise edge.
		return Guard{Place: p, Kind: OtherInteger{Vs: append([]sir.U128(nil), term.Values...)}}, true
	case sir.Assert:
		return Guard{Place: rn.place(term.Cond, b), Kind: Boolean{B: term.Expected}}, true
	default:
		panic(term)
	}
}
