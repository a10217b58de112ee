package tir

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/metatrace/jit/sir"
	"github.com/slowlang/metatrace/jit/trace"
)

type bodyMap map[string]*sir.Body

func (m bodyMap) Body(sym string) (*sir.Body, bool) {
	b, ok := m[sym]
	return b, ok
}

var (
	tUsize = sir.TypeID{Crate: 1, Index: 0}
	tBool  = sir.TypeID{Crate: 1, Index: 1}
	tUnit  = sir.TypeID{Crate: 1, Index: 2}
)

func decls(tys ...sir.TypeID) []sir.LocalDecl {
	r := make([]sir.LocalDecl, len(tys))

	for i, t := range tys {
		r[i] = sir.LocalDecl{Ty: t}
	}

	return r
}

func usizes(n int) []sir.LocalDecl {
	r := make([]sir.LocalDecl, n)

	for i := range r {
		r[i] = sir.LocalDecl{Ty: tUsize}
	}

	return r
}

func lp(l sir.Local) sir.Place { return sir.LocalPlace(l) }

func assign(l sir.Local, r sir.Rvalue) sir.Assign { return sir.Assign{Place: lp(l), Rvalue: r} }

func use(op sir.Operand) sir.Use { return sir.Use{Op: op} }

func call(fn string, dest sir.Local, target sir.BasicBlockIndex, args ...sir.Operand) sir.CallTerm {
	return sir.CallTerm{
		Fn:   sir.Fn(fn),
		Args: args,
		Dest: &sir.CallDest{Place: lp(dest), Target: target},
	}
}

// stopBlock is the code the tracer's stop call compiles to.
func stopBlock(dead [3]sir.Local, flag, arg, dest sir.Local, target sir.BasicBlockIndex) sir.BasicBlock {
	return sir.BasicBlock{
		Stmts: []sir.Statement{
			sir.StorageDead{Local: dead[0]},
			sir.StorageDead{Local: dead[1]},
			sir.StorageDead{Local: dead[2]},
			assign(flag, use(sir.Bool(false))),
			assign(arg, use(lp(2))),
		},
		Term: call(trace.StopTracingSymbol, dest, target, lp(arg)),
	}
}

func loopBodies() bodyMap {
	in := sir.TraceInputsLocal

	return bodyMap{
		"work": {
			Symbol:      "work",
			TraceInputs: &in,
			Locals:      decls(tUnit, tUsize, tUsize, tBool, tUsize, tUsize, tUsize, tUsize, tBool, tUsize, tUnit),
			Blocks:      []sir.BasicBlock{
				{Term: sir.Goto{Target: 1}},
				{Stmts: []sir.Statement{sir.StorageDead{Local: 4}}, Term: sir.Goto{Target: 2}},
				{
					Stmts: []sir.Statement{assign(3, sir.BinaryOp{Op: sir.Lt, L: lp(2), R: sir.Usize(10)})},
					Term: sir.SwitchInt{
						Discr:     lp(3),
						Values:    []sir.U128{sir.U128From64(0)},
						Targets:   []sir.BasicBlockIndex{4},
						Otherwise: 3,
					},
				},
				{Term: call("bump", 2, 5, lp(2))},
				stopBlock([3]sir.Local{5, 6, 7}, 8, 9, 10, 6),
				{Term: sir.Goto{Target: 2}},
				{Term: sir.Return{}},
			},
		},
		"bump": {
			Symbol: "bump",
			Locals: usizes(3),
			Blocks: []sir.BasicBlock{{
				Stmts: []sir.Statement{
					assign(2, use(lp(1))),
					assign(0, sir.BinaryOp{Op: sir.Add, L: lp(2), R: sir.Usize(1)}),
				},
				Term: sir.Return{},
			}},
		},
		trace.StopTracingSymbol: {
			Symbol: trace.StopTracingSymbol,
			Locals: decls(tUnit, tUsize),
			Blocks: []sir.BasicBlock{{Term: sir.Return{}}},
		},
	}
}

func loopTrace(n int) trace.Locs {
	l := trace.Locs{{Symbol: "work", BB: 1}}

	for i := 0; i < n; i++ {
		l = append(l,
			trace.Location{Symbol: "work", BB: 2},
			trace.Location{Symbol: "work", BB: 3},
			trace.Location{Symbol: "bump", BB: 0},
			trace.Location{Symbol: "work", BB: 5},
		)
	}

	return append(l,
		trace.Location{Symbol: "work", BB: 2},
		trace.Location{Symbol: "work", BB: 4},
	)
}

func opStrings(t *Trace) []string {
	r := make([]string, t.Len())

	for i := range r {
		r[i] = t.Op(i).String()
	}

	return r
}

func TestLowerLoop(t *testing.T) {
	ctx := context.Background()

	tt, err := New(ctx, loopBodies(), loopTrace(2))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"$3 = lt($2, 10usize)",
		"guard($3, other_integer([0]))",
		"enter(bump, [$2], $2, 11)",
		"$13 = $12",
		"$2 = add($13, 1usize)",
		"leave",
		"$3 = lt($2, 10usize)",
		"guard($3, other_integer([0]))",
		"enter(bump, [$2], $2, 14)",
		"$16 = $15",
		"$2 = add($16, 1usize)",
		"leave",
		"$3 = lt($2, 10usize)",
		"guard($3, integer(0))",
	}, opStrings(tt))

	in, ok := tt.Inputs()
	assert.True(t, ok)
	assert.Equal(t, sir.TraceInputsLocal, in)

	assert.Equal(t, []sir.Local{2, 3, 12, 13, 15, 16}, tt.Locals())
	assert.Equal(t, sir.LocalDecl{Ty: tBool}, tt.LocalDecls[3])
	assert.Equal(t, sir.LocalDecl{Ty: tUsize}, tt.LocalDecls[12])

	assert.Equal(t, []sir.Local{2}, tt.LiveIn())

	assert.Panics(t, func() { tt.Op(tt.Len()) })
}

func TestLowerLoopGrows(t *testing.T) {
	ctx := context.Background()
	prev := -1

	for n := 0; n < 6; n++ {
		tt, err := New(ctx, loopBodies(), loopTrace(n))
		require.NoError(t, err)

		assert.Equal(t, 6*n+2, tt.Len(), "iterations %d", n)
		assert.Greater(t, tt.Len(), prev)
		prev = tt.Len()

		var guards []GuardKind

		for i := 0; i < tt.Len(); i++ {
			if g, ok := tt.Op(i).(Guard); ok {
				guards = append(guards, g.Kind)
			}
		}

		require.Len(t, guards, n+1)

		for _, g := range guards[:n] {
			assert.Equal(t, OtherInteger{Vs: []sir.U128{sir.U128From64(0)}}, g)
		}

		assert.Equal(t, Integer{V: sir.U128From64(0)}, guards[n])
	}
}

func nestedBodies() bodyMap {
	return bodyMap{
		"main": {
			Symbol: "main",
			Locals: usizes(8),
			Blocks: []sir.BasicBlock{
				{
					Stmts: []sir.Statement{sir.StorageDead{Local: 7}},
					Term:  call("f", 2, 1, lp(1)),
				},
				stopBlock([3]sir.Local{4, 5, 6}, 5, 6, 3, 2),
				{Term: sir.Return{}},
			},
		},
		"f": {
			Symbol: "f",
			Locals: usizes(4),
			Blocks: []sir.BasicBlock{
				{
					Stmts: []sir.Statement{assign(2, use(lp(1)))},
					Term:  call("g", 3, 1, lp(2)),
				},
				{
					Stmts: []sir.Statement{assign(0, sir.BinaryOp{Op: sir.Add, L: lp(3), R: lp(2)})},
					Term:  sir.Return{},
				},
			},
		},
		"g": {
			Symbol: "g",
			Locals: usizes(3),
			Blocks: []sir.BasicBlock{{
				Stmts: []sir.Statement{
					assign(2, sir.BinaryOp{Op: sir.Mul, L: lp(1), R: sir.Usize(2)}),
					assign(0, use(lp(2))),
				},
				Term: sir.Return{},
			}},
		},
		trace.StopTracingSymbol: {
			Symbol: trace.StopTracingSymbol,
			Locals: decls(tUnit, tUsize),
			Blocks: []sir.BasicBlock{{Term: sir.Return{}}},
		},
	}
}

func TestLowerNested(t *testing.T) {
	tt, err := New(context.Background(), nestedBodies(), trace.Locs{
		{Symbol: "main", BB: 0},
		{Symbol: "f", BB: 0},
		{Symbol: "g", BB: 0},
		{Symbol: "f", BB: 1},
		{Symbol: "main", BB: 1},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"enter(f, [$1], $2, 8)",
		"$10 = $9",
		"enter(g, [$10], $11, 12)",
		"$14 = mul($13, 2usize)",
		"$11 = $14",
		"leave",
		"$2 = add($11, $10)",
		"leave",
	}, opStrings(tt))

	_, ok := tt.Inputs()
	assert.False(t, ok)

	// Each frame owns a contiguous range starting at its offset.
	frames := map[sir.Local]int{}

	for i := 0; i < tt.Len(); i++ {
		if e, ok := tt.Op(i).(sir.Enter); ok {
			frames[sir.Local(e.Offset)] = i
		}
	}

	assert.Equal(t, map[sir.Local]int{8: 0, 12: 2}, frames)

	for _, l := range tt.Locals() {
		switch {
		case l < 8:
		case l < 12:
			assert.Contains(t, []sir.Local{9, 10, 11}, l)
		default:
			assert.Contains(t, []sir.Local{13, 14}, l)
		}
	}

	// Renamed return locals never appear: they are replaced by the call destination.
	for i := 0; i < tt.Len(); i++ {
		op, ok := tt.Op(i).(sir.Statement)
		if !ok {
			continue
		}

		assert.NotContains(t, opLocals(nil, op), sir.Local(8), "op %d %v", i, op)
		assert.NotContains(t, opLocals(nil, op), sir.Local(12), "op %d %v", i, op)
	}

	assert.Equal(t, []sir.Local{1}, tt.LiveIn())
}

func TestLowerNoSIR(t *testing.T) {
	_, err := New(context.Background(), loopBodies(), trace.Locs{
		{Symbol: "work", BB: 1},
		{Symbol: "memcpy", BB: 0},
	})

	var nosir NoSIRError
	require.True(t, errors.As(err, &nosir), "err: %v", err)
	assert.Equal(t, "memcpy", nosir.Symbol)
	assert.Equal(t, "no SIR for symbol: memcpy", err.Error())
}

func TestLowerNativeCall(t *testing.T) {
	bodies := nestedBodies()
	bodies["main"].Blocks[0].Term = call("native", 2, 1, lp(1), sir.U8(3))

	tt, err := New(context.Background(), bodies, trace.Locs{
		{Symbol: "main", BB: 0},
		{Symbol: "main", BB: 1},
	})
	require.NoError(t, err)

	require.Equal(t, 1, tt.Len())

	c, ok := tt.Op(0).(sir.Call)
	require.True(t, ok)
	assert.Equal(t, "$2 = call(native, [$1, 3u8])", c.String())

	assert.Equal(t, []sir.Local{1, 2}, tt.Locals())
}

func TestLowerStopCallOffset(t *testing.T) {
	bodies := nestedBodies()

	ops := lowerRaw(t, bodies, trace.Locs{
		{Symbol: "main", BB: 0},
		{Symbol: "f", BB: 0},
		{Symbol: "g", BB: 0},
		{Symbol: "f", BB: 1},
		{Symbol: "main", BB: 1},
	})

	// Leaving frames never gives their locals back.
	e, ok := ops[len(ops)-1].(sir.Enter)
	require.True(t, ok)
	assert.Equal(t, uint32(15), e.Offset)
}

// lowerRaw is New without trimming.
func lowerRaw(t *testing.T, bodies Bodies, st trace.SirTrace) (ops []Op) {
	t.Helper()

	rn := newRenamer()
	it := trace.NewIter(st)

	for {
		loc, ok := it.Next()
		if !ok {
			break
		}

		b, _ := bodies.Body(loc.Symbol)
		rn.initAcc(len(b.Locals))
		bb := b.Block(loc.BB)

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

		if g, ok := guard(rn, b, bb.Term, it); ok {
			ops = append(ops, g)
		}
	}

	return ops
}

func TestGuards(t *testing.T) {
	b := &sir.Body{Symbol: "sw", Locals: usizes(4)}
	sw := sir.SwitchInt{
		Discr:     lp(1),
		Values:    []sir.U128{sir.U128From64(0), sir.U128From64(1)},
		Targets:   []sir.BasicBlockIndex{1, 2},
		Otherwise: 3,
	}

	g, ok := guard(newRenamer(), b, sw, trace.NewIter(trace.Locs{{Symbol: "sw", BB: 2}}))
	require.True(t, ok)
	assert.Equal(t, Guard{Place: lp(1), Kind: Integer{V: sir.U128From64(1)}}, g)
	assert.Equal(t, "guard($1, integer(1))", g.String())

	g, ok = guard(newRenamer(), b, sw, trace.NewIter(trace.Locs{{Symbol: "sw", BB: 3}}))
	require.True(t, ok)
	assert.Equal(t, OtherInteger{Vs: sw.Values}, g.Kind)
	assert.Equal(t, "guard($1, other_integer([0, 1]))", g.String())

	assert.Panics(t, func() {
		guard(newRenamer(), b, sw, trace.NewIter(trace.Locs{}))
	})

	g, ok = guard(newRenamer(), b, sir.Assert{Cond: lp(2), Expected: true, Target: 1}, trace.NewIter(trace.Locs{}))
	require.True(t, ok)
	assert.Equal(t, "guard($2, bool(true))", g.String())

	for _, term := range []sir.Terminator{
		sir.Goto{Target: 1},
		sir.Return{},
		sir.Drop{Location: lp(1), Target: 1},
		sir.UnimplementedTerm("x"),
		call("f", 1, 1),
	} {
		_, ok = guard(newRenamer(), b, term, trace.NewIter(trace.Locs{}))
		assert.False(t, ok, "%v", term)
	}

	assert.Panics(t, func() {
		guard(newRenamer(), b, sir.Unreachable{}, trace.NewIter(trace.Locs{}))
	})
}

func TestGuardRenamed(t *testing.T) {
	rn := newRenamer()
	rn.initAcc(10)

	dest := lp(3)
	rn.enter(4, &dest)

	b := &sir.Body{Symbol: "callee", Locals: usizes(4)}

	g, ok := guard(rn, b, sir.Assert{Cond: lp(2), Expected: false}, nil)
	require.True(t, ok)
	assert.Equal(t, lp(12), g.Place)

	g, ok = guard(rn, b, sir.Assert{Cond: lp(0), Expected: false}, nil)
	require.True(t, ok)
	assert.Equal(t, lp(3), g.Place)
}

func TestTrim(t *testing.T) {
	tail := func() []Op {
		return []Op{
			sir.StorageDead{Local: 1},
			sir.StorageDead{Local: 2},
			sir.StorageDead{Local: 3},
			assign(4, use(sir.Bool(false))),
			assign(5, use(lp(1))),
			sir.Enter{Fn: sir.Fn("yk::" + trace.StopTracingSymbol), Offset: 10},
		}
	}

	body := []Op{sir.Nop{}, sir.Leave{}}

	ops := append([]Op{sir.StorageDead{Local: 9}}, body...)
	ops = append(ops, tail()...)

	assert.Equal(t, body, trim(ops))

	for i := range tail() {
		ops := append([]Op{sir.StorageDead{Local: 9}}, body...)
		bad := tail()
		bad[i] = sir.Nop{}
		ops = append(ops, bad...)

		assert.Panics(t, func() { trim(ops) }, "broken tail op %d", i)
	}

	assert.Panics(t, func() { trim(append(body, tail()...)) }, "no head storage dead")
	assert.Panics(t, func() { trim(tail()) }, "empty head")
	assert.Panics(t, func() { trim(nil) })

	wrongStop := tail()
	wrongStop[5] = sir.Enter{Fn: sir.Fn("start_tracing")}
	assert.Panics(t, func() { trim(append([]Op{sir.StorageDead{}}, wrongStop...)) })

	notFalse := tail()
	notFalse[3] = assign(4, use(sir.Bool(true)))
	assert.Panics(t, func() { trim(append([]Op{sir.StorageDead{}}, notFalse...)) })
}

func TestRenamer(t *testing.T) {
	b := &sir.Body{Symbol: "f", Locals: usizes(5)}

	rn := newRenamer()
	rn.initAcc(5)
	rn.initAcc(100)

	assert.Equal(t, lp(0), rn.place(lp(0), b), "outermost return local is kept")
	assert.Equal(t, sir.Local(3), rn.local(3, b))

	dest := sir.Place{Local: 2, Projection: []sir.Projection{sir.Field(1)}}
	assert.Equal(t, uint32(5), rn.enter(5, &dest))
	assert.Equal(t, uint32(10), rn.enter(3, nil))

	assert.Equal(t, sir.Local(11), rn.local(1, b))
	assert.Panics(t, func() { rn.place(lp(0), b) }, "diverging call has no return place")
	rn.leave()

	assert.Equal(t, "$2.1.0", rn.place(sir.Place{Local: 0, Projection: []sir.Projection{sir.Field(0)}}, b).String())
	assert.Equal(t, sir.Local(6), rn.local(1, b))

	assert.Panics(t, func() {
		rn.iplace(sir.Val{Local: 0, Ty: tUsize}, b)
	}, "projected destination cannot take a resolved place")

	rn.leave()
	assert.Panics(t, rn.leave)

	st := rn.stmt(sir.Store{Dst: sir.Val{Local: 1, Off: 4}, Src: sir.Const{Val: sir.U8(1)}}, b)
	assert.Equal(t, "store($1+4, 1u8)", st.String())

	assert.Panics(t, func() { rn.stmt(sir.Leave{}, b) })
}

func TestTraceString(t *testing.T) {
	tt, err := New(context.Background(), loopBodies(), loopTrace(0))
	require.NoError(t, err)

	assert.Equal(t, fmt.Sprintf(`local_decls:
  $2: %v
  $3: %v
ops:
  $3 = lt($2, 10usize)
  guard($3, integer(0))
`, tUsize, tBool), tt.String())
}

func TestLiveInStores(t *testing.T) {
	tPair := sir.TypeID{Crate: 1, Index: 4}
	tRef := sir.TypeID{Crate: 1, Index: 5}

	tt := &Trace{
		ops: []Op{
			// $2.8 is written, $2.0 still comes from outside
			sir.Store{Dst: sir.Val{Local: 2, Off: 8, Ty: tUsize}, Src: sir.Const{Val: sir.Usize(1), Ty: tUsize}},
			// full overwrite
			sir.Store{Dst: sir.Val{Local: 3, Ty: tUsize}, Src: sir.Val{Local: 2, Ty: tUsize}},
			sir.MkRef{Dst: sir.Val{Local: 4, Ty: tRef}, Src: sir.Val{Local: 3, Ty: tUsize}},
			// through the pointer in $5
			sir.Store{Dst: sir.Indirect{Ptr: sir.PtrLoc{Local: 5}, Ty: tUsize}, Src: sir.Val{Local: 3, Ty: tUsize}},
			Guard{Place: lp(3), Kind: Integer{V: sir.U128From64(1)}},
			Guard{Place: lp(4), Kind: Integer{V: sir.U128From64(1)}},
		},
		LocalDecls: map[sir.Local]sir.LocalDecl{
			2: {Ty: tPair},
			3: {Ty: tUsize},
			4: {Ty: tRef},
			5: {Ty: tRef},
		},
	}

	assert.Equal(t, []sir.Local{2, 5}, tt.LiveIn())
}
