package tir

import (
	"strings"

	"tlog.app/go/errors"

	"github.com/slowlang/metatrace/jit/sir"
	"github.com/slowlang/metatrace/jit/trace"
)

// trim removes the remnants of the calls which start (one op) and stop (six ops) the tracer.
// The expected shape is fixed, anything else panics.
func trim(ops []Op) []Op {
	pop := func(want string, ok func(op Op) bool) {
		if len(ops) == 0 {
			panic(errors.New("trim trace tail: expected %v, got end of trace", want))
		}

		last := ops[len(ops)-1]
		if !ok(last) {
			panic(errors.New("trim trace tail: expected %v, got %v", want, last))
		}

		ops = ops[:len(ops)-1]
	}

	pop("call to "+trace.StopTracingSymbol, func(op Op) bool {
		e, ok := op.(sir.Enter)
		return ok && strings.Contains(e.Fn.Symbol, trace.StopTracingSymbol)
	})

	pop("assignment", func(op Op) bool {
		_, ok := op.(sir.Assign)
		return ok
	})

	pop("assignment of false", func(op Op) bool {
		a, ok := op.(sir.Assign)
		if !ok {
			return false
		}

		u, ok := a.Rvalue.(sir.Use)

		return ok && u.Op == sir.Operand(sir.ConstBool(false))
	})

	for i := 0; i < 3; i++ {
		pop("storage dead", isStorageDead)
	}

	if len(ops) == 0 {
		panic(errors.New("trim trace head: expected storage dead, got end of trace"))
	}

	if !isStorageDead(ops[0]) {
		panic(errors.New("trim trace head: expected storage dead, got %v", ops[0]))
	}

	return ops[1:]
}

func isStorageDead(op Op) bool {
	_, ok := op.(sir.StorageDead)
	return ok
}

// usedDecls keeps only the declarations of locals the ops still refer to.
func usedDecls(ops []Op, all map[sir.Local]sir.LocalDecl) map[sir.Local]sir.LocalDecl {
	res := map[sir.Local]sir.LocalDecl{}

	for _, op := range ops {
		for _, l := range opLocals(nil, op) {
			d, ok := all[l]
			if !ok {
				panic(errors.New("local %v of %v was never renamed", l, op))
			}

			res[l] = d
		}
	}

	return res
}

// opLocals appends every local op mentions, read or written.
func opLocals(l []sir.Local, op Op) []sir.Local {
	switch op := op.(type) {
	case Guard:
		return append(l, op.Place.Local)
	case sir.Enter:
		l = append(l, sir.MaybeDefinedLocals(op)...)

		for _, a := range op.Args {
			l = sir.OperandLocals(l, a)
		}

		if op.Dest != nil {
			l = append(l, op.Dest.Local)
		}

		return l
	case sir.Statement:
		return append(l, sir.ReferencedLocals(op)...)
	default:
		panic(op)
	}
}
