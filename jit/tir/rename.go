package tir

import (
	"fmt"

	"tlog.app/go/errors"

	"github.com/slowlang/metatrace/jit/sir"
)

type (
	// renamer alpha-renames locals of inlined bodies so frames never collide.
	renamer struct {
		// offsets has one entry per open frame, the outermost being 0.
		offsets []uint32
		// acc is the number of locals claimed by all frames seen so far.
		acc    uint32
		accSet bool

		// returns has one entry per inlined call. A nil entry is a diverging call.
		returns []*sir.Place

		used map[sir.Local]sir.LocalDecl
	}
)

func newRenamer() *renamer {
	return &renamer{
		offsets: []uint32{0},
		used:    map[sir.Local]sir.LocalDecl{},
	}
}

func (r *renamer) offset() uint32 { return r.offsets[len(r.offsets)-1] }

func (r *renamer) depth() int { return len(r.offsets) - 1 }

// initAcc sets the accumulator from the outermost body. Later calls are no-ops.
func (r *renamer) initAcc(n int) {
	if r.accSet {
		return
	}

	r.acc = uint32(n)
	r.accSet = true
}

// enter opens a frame for a callee with n locals and returns its offset.
func (r *renamer) enter(n int, dest *sir.Place) uint32 {
	off := r.acc

	r.offsets = append(r.offsets, off)
	r.acc += uint32(n)
	r.returns = append(r.returns, dest)

	return off
}

func (r *renamer) leave() {
	if len(r.offsets) <= 1 {
		panic(errors.New("unbalanced enter/leave: leave at the outermost frame"))
	}

	r.offsets = r.offsets[:len(r.offsets)-1]
	r.returns = r.returns[:len(r.returns)-1]
}

func (r *renamer) local(l sir.Local, b *sir.Body) sir.Local {
	x := l + sir.Local(r.offset())
	r.used[x] = b.Decl(l)

	return x
}

func (r *renamer) place(p sir.Place, b *sir.Body) sir.Place {
	if p.Local != sir.ReturnLocal || len(r.returns) == 0 {
		return p.WithLocal(r.local(p.Local, b))
	}

	dest := r.returns[len(r.returns)-1]
	if dest == nil {
		panic(errors.New("%v: return value %v referenced inside a diverging call", b.Symbol, p))
	}

	if len(p.Projection) == 0 {
		return *dest
	}

	proj := make([]sir.Projection, 0, len(dest.Projection)+len(p.Projection))
	proj = append(proj, dest.Projection...)
	proj = append(proj, p.Projection...)

	return sir.Place{Local: dest.Local, Projection: proj}
}

func (r *renamer) optPlace(p *sir.Place, b *sir.Body) *sir.Place {
	if p == nil {
		return nil
	}

	x := r.place(*p, b)

	return &x
}

func (r *renamer) operand(op sir.Operand, b *sir.Body) sir.Operand {
	switch op := op.(type) {
	case sir.Place:
		return r.place(op, b)
	case sir.Constant:
		return op
	default:
		panic(op)
	}
}

func (r *renamer) operands(ops []sir.Operand, b *sir.Body) []sir.Operand {
	res := make([]sir.Operand, len(ops))

	for i, op := range ops {
		res[i] = r.operand(op, b)
	}

	return res
}

func (r *renamer) rvalue(v sir.Rvalue, b *sir.Body) sir.Rvalue {
	switch v := v.(type) {
	case sir.Use:
		return sir.Use{Op: r.operand(v.Op, b)}
	case sir.BinaryOp:
		return sir.BinaryOp{Op: v.Op, L: r.operand(v.L, b), R: r.operand(v.R, b)}
	case sir.CheckedBinaryOp:
		return sir.CheckedBinaryOp{Op: v.Op, L: r.operand(v.L, b), R: r.operand(v.R, b)}
	case sir.Ref:
		return sir.Ref{Place: r.place(v.Place, b)}
	case sir.UnimplementedRvalue:
		return v
	default:
		panic(v)
	}
}

// iplace renames the frame local of a resolved place.
// The return local of an inlined call can only be substituted if the
// destination is a plain local.
func (r *renamer) iplace(p sir.IPlace, b *sir.Body) sir.IPlace {
	l, ok := sir.IPlaceLocal(p)
	if !ok {
		return p
	}

	if l != sir.ReturnLocal || len(r.returns) == 0 {
		return sir.WithIPlaceLocal(p, r.local(l, b))
	}

	dest := r.returns[len(r.returns)-1]
	if dest == nil || len(dest.Projection) != 0 {
		panic(errors.New("%v: cannot substitute return value of %v into %v", b.Symbol, p, optString(dest)))
	}

	return sir.WithIPlaceLocal(p, dest.Local)
}

func (r *renamer) stmt(s sir.Statement, b *sir.Body) sir.Statement {
	switch s := s.(type) {
	case sir.Nop, sir.Unimplemented:
		return s
	case sir.StorageDead:
		return sir.StorageDead{Local: r.local(s.Local, b)}
	case sir.Assign:
		return sir.Assign{Place: r.place(s.Place, b), Rvalue: r.rvalue(s.Rvalue, b)}
	case sir.Store:
		return sir.Store{Dst: r.iplace(s.Dst, b), Src: r.iplace(s.Src, b)}
	case sir.MkRef:
		return sir.MkRef{Dst: r.iplace(s.Dst, b), Src: r.iplace(s.Src, b)}
	case sir.Enter, sir.Leave, sir.Call:
		panic(errors.New("%v: trace-only statement in SIR: %v", b.Symbol, s))
	default:
		panic(s)
	}
}

func optString(p *sir.Place) string {
	if p == nil {
		return "none"
	}

	return fmt.Sprintf("%v", *p)
}
