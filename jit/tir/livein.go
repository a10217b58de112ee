package tir

import (
	"github.com/slowlang/metatrace/jit/set"
	"github.com/slowlang/metatrace/jit/sir"
)

// LiveIn returns the locals read by the trace before any op writes them.
// Those are the values a compiled trace has to load on entry.
func (t *Trace) LiveIn() []sir.Local {
	n := 0
	for l := range t.LocalDecls {
		n = max(n, int(l)+1)
	}

	def := set.MakeBitmap(n)
	live := set.MakeBitmap(n)

	for _, op := range t.ops {
		reads := set.MakeBitmap(n)
		var writes []sir.Local

		read := func(ls ...sir.Local) {
			for _, l := range ls {
				reads.Set(int(l))
			}
		}

		switch op := op.(type) {
		case Guard:
			read(op.Place.Local)
		case sir.Assign:
			read(sir.RvalueLocals(nil, op.Rvalue)...)

			if len(op.Place.Projection) != 0 {
				read(op.Place.Local)
			} else {
				writes = append(writes, op.Place.Local)
			}
		case sir.Enter:
			for _, a := range op.Args {
				read(sir.OperandLocals(nil, a)...)
			}

			writes = sir.MaybeDefinedLocals(op)
		case sir.Call:
			read(sir.UsedLocals(op)...)

			if op.Dest != nil && len(op.Dest.Projection) == 0 {
				writes = append(writes, op.Dest.Local)
			} else if op.Dest != nil {
				read(op.Dest.Local)
			}
		case sir.Store:
			read(sir.UsedLocals(op)...)
			writes = t.ipWrite(op.Dst, read)
		case sir.MkRef:
			if l, ok := sir.IPlaceLocal(op.Src); ok {
				if _, ok := op.Src.(sir.Indirect); ok {
					read(l)
				}
			}

			writes = t.ipWrite(op.Dst, read)
		case sir.Statement:
			read(sir.UsedLocals(op)...)
		}

		reads.AndNot(def)
		live.Or(reads)

		for _, l := range writes {
			def.Set(int(l))
		}
	}

	r := make([]sir.Local, 0, live.Size())

	for _, i := range live.Slice() {
		r = append(r, sir.Local(i))
	}

	return r
}

// ipWrite returns the local a store to p fully overwrites.
// Partial stores and stores through pointers read the local instead.
func (t *Trace) ipWrite(p sir.IPlace, read func(ls ...sir.Local)) []sir.Local {
	switch p := p.(type) {
	case sir.Val:
		if p.Off == 0 && t.LocalDecls[p.Local].Ty == p.Ty {
			return []sir.Local{p.Local}
		}

		read(p.Local)
	case sir.Indirect:
		read(p.Ptr.Local)
	}

	return nil
}
