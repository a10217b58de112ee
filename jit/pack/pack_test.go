package pack

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/metatrace/jit/sir"
)

func TestLoadFile(t *testing.T) {
	ctx := context.Background()

	p, err := LoadFile(ctx, "testdata/work.yaml")
	require.NoError(t, err)

	assert.Equal(t, []string{"bump", "opaque", "pair", "stop_tracing", "work"}, p.Symbols())

	w, ok := p.Body("work")
	require.True(t, ok)

	assert.True(t, w.Flags.Has(sir.FlagTraceHead))
	require.NotNil(t, w.TraceInputs)
	assert.Equal(t, sir.Local(1), *w.TraceInputs)
	assert.Len(t, w.Locals, 11)
	assert.Len(t, w.Blocks, 7)

	assert.Equal(t, sir.Goto{Target: 2}, w.Block(5).Term)
	assert.Equal(t, []sir.Statement{sir.StorageDead{Local: 4}}, w.Block(1).Stmts)
	assert.Equal(t, "$3 = lt($2, 10usize)", w.Block(2).Stmts[0].String())
	assert.Equal(t, "switch_int $3, [0], [bb4], bb3", w.Block(2).Term.String())
	assert.Equal(t, "$2 = call bump($2) -> bb5", w.Block(3).Term.String())
	assert.Equal(t, sir.Assign{Place: sir.LocalPlace(8), Rvalue: sir.Use{Op: sir.ConstBool(false)}}, w.Block(4).Stmts[3])

	require.True(t, w.LaidOut())
	assert.Equal(t, 0, w.Offsets[0])
	assert.Equal(t, 0, w.Offsets[1])

	b, ok := p.Body("bump")
	require.True(t, ok)
	assert.Equal(t, sir.SizeAlign{Size: 24, Align: 8}, b.Layout)
	assert.Equal(t, sir.Return{}, b.Block(0).Term)

	o, ok := p.Body("opaque")
	require.True(t, ok)
	assert.False(t, o.LaidOut())
	assert.Equal(t, sir.UnimplementedTerm("closure call"), o.Block(0).Term)

	pr, ok := p.Body("pair")
	require.True(t, ok)
	assert.True(t, pr.Flags.Has(sir.FlagInterpStep))
	assert.Equal(t, []int{0, 0, 16}, pr.Offsets)
	assert.Equal(t, sir.SizeAlign{Size: 24, Align: 8}, pr.Layout)
	assert.Equal(t, "store(*($2+0)+0, 3u8)", pr.Block(0).Stmts[2].String())
	assert.Equal(t, sir.MkRef{
		Dst: sir.Val{Local: 2, Ty: sir.TypeID{Crate: 1, Index: 5}},
		Src: sir.Val{Local: 1, Off: 8, Ty: sir.TypeID{Crate: 1, Index: 3}},
	}, pr.Block(0).Stmts[1])

	_, ok = p.Body("missing")
	assert.False(t, ok)
}

func TestTypes(t *testing.T) {
	p, err := LoadFile(context.Background(), "testdata/work.yaml")
	require.NoError(t, err)

	ty, ok := p.Ty(sir.TypeID{Crate: 1, Index: 4})
	require.True(t, ok)
	assert.Equal(t, sir.TupleTy{
		Fields: sir.Fields{
			Offsets: []int{0, 8},
			Tys:     []sir.TypeID{{Crate: 1, Index: 0}, {Crate: 1, Index: 3}},
		},
		SizeAlign: sir.SizeAlign{Size: 16, Align: 8},
	}, ty)

	ty, ok = p.Ty(sir.TypeID{Crate: 1, Index: 5})
	require.True(t, ok)
	assert.Equal(t, sir.RefTy{Pointee: sir.TypeID{Crate: 1, Index: 0}}, ty)

	_, ok = p.Ty(sir.TypeID{Crate: 1, Index: 100})
	assert.False(t, ok)

	_, ok = p.Ty(sir.TypeID{Crate: 2})
	assert.False(t, ok)
}

func TestLoadErrors(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		name string
		data string
	}{
		{"unknown field", "typez: []"},
		{"unknown type", "types: [{crate: 1, types: [float]}]"},
		{"bad type id", "types: [{crate: 1, types: [{ref: [1]}]}]"},
		{"dup crate", "types: [{crate: 1, types: []}, {crate: 1, types: []}]"},
		{"field overflow", "types: [{crate: 1, types: [u8, {tuple: {offsets: [1], tys: [[1, 0]], size: 1, align: 1}}]}]"},
		{"dup body", "bodies: [{symbol: f, blocks: [{term: return}]}, {symbol: f, blocks: [{term: return}]}]"},
		{"no symbol", "bodies: [{blocks: [{term: return}]}]"},
		{"no term", "bodies: [{symbol: f, blocks: [{stmts: [nop]}]}]"},
		{"bad flag", "bodies: [{symbol: f, flags: [fast], blocks: [{term: return}]}]"},
		{"bad stmt", "bodies: [{symbol: f, blocks: [{stmts: [{jump: 1}], term: return}]}]"},
		{"bad place", "bodies: [{symbol: f, blocks: [{stmts: [{assign: [x, $1]}], term: return}]}]"},
		{"bad rvalue", "bodies: [{symbol: f, blocks: [{stmts: [{assign: [$1, {pow: [$1, $2]}]}], term: return}]}]"},
		{"switch arity", "bodies: [{symbol: f, blocks: [{term: {switch: {discr: $1, values: [0, 1], targets: [1], otherwise: 0}}}]}]"},
		{"bare iplace", "bodies: [{symbol: f, blocks: [{stmts: [{store: [x, y]}], term: return}]}]"},
	} {
		_, err := Load(ctx, []byte(tc.data))
		assert.Error(t, err, tc.name)
	}
}

func TestDecodeCall(t *testing.T) {
	_, bodies, err := Decode([]byte(`
bodies:
  - symbol: f
    blocks:
      - term:
          call:
            fn: foo
            args: [5u8]
            iargs: [{const: [5u8, [1, 3]]}]
            dest: $2
            idest: {val: [2, 0, [1, 3]]}
            target: 1
      - term: {call: {args: []}}
      - term: {call: {fn: g}}
`))
	require.NoError(t, err)
	require.Len(t, bodies, 1)

	b := bodies[0]
	u8 := sir.TypeID{Crate: 1, Index: 3}

	assert.Equal(t, sir.CallTerm{
		Fn:    sir.Fn("foo"),
		Args:  []sir.Operand{sir.U8(5)},
		IArgs: []sir.IPlace{sir.Const{Val: sir.U8(5), Ty: u8}},
		Dest: &sir.CallDest{
			Place:  sir.LocalPlace(2),
			IPlace: sir.Val{Local: 2, Ty: u8},
			Target: 1,
		},
	}, b.Block(0).Term)

	c := b.Block(1).Term.(sir.CallTerm)
	assert.False(t, c.Fn.Known())
	assert.Nil(t, c.Dest)

	c = b.Block(2).Term.(sir.CallTerm)
	assert.Equal(t, "g", c.Fn.Symbol)
	assert.Nil(t, c.Dest)
}

func TestGlobal(t *testing.T) {
	old := Loader
	defer func() { Loader = old }()

	calls := 0

	Loader = func(ctx context.Context) (*Pack, error) {
		calls++
		return LoadFile(ctx, "testdata/work.yaml")
	}

	p, err := Global()
	require.NoError(t, err)

	q, err := Global()
	require.NoError(t, err)

	assert.Same(t, p, q)
	assert.Equal(t, 1, calls)

	_, ok := p.Body("work")
	assert.True(t, ok)
}
