package jit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/metatrace/jit/pack"
	"github.com/slowlang/metatrace/jit/sir"
	"github.com/slowlang/metatrace/jit/tir"
	"github.com/slowlang/metatrace/jit/trace"
	"github.com/slowlang/metatrace/jit/trace/swt"
)

func loadPack(t *testing.T) *pack.Pack {
	t.Helper()

	p, err := pack.LoadFile(context.Background(), "pack/testdata/work.yaml")
	require.NoError(t, err)

	return p
}

func TestLowerFile(t *testing.T) {
	ctx := context.Background()
	p := loadPack(t)

	tt, err := LowerFile(ctx, p, "testdata/loop.yaml")
	require.NoError(t, err)

	assert.Equal(t, 14, tt.Len())
	assert.Equal(t, "enter(bump, [$2], $2, 14)", tt.Op(8).String())
	assert.Equal(t, []sir.Local{2}, tt.LiveIn())

	in, ok := tt.Inputs()
	assert.True(t, ok)
	assert.Equal(t, sir.TraceInputsLocal, in)

	_, err = LowerFile(ctx, p, "testdata/missing.yaml")
	assert.Error(t, err)
}

func TestLowerFileGlobal(t *testing.T) {
	old := pack.Loader
	defer func() { pack.Loader = old }()

	pack.Loader = func(ctx context.Context) (*pack.Pack, error) {
		return pack.LoadFile(ctx, "pack/testdata/work.yaml")
	}

	tt, err := LowerFile(context.Background(), nil, "testdata/loop.yaml")
	require.NoError(t, err)

	assert.Equal(t, 14, tt.Len())
}

func TestLowerNoSIR(t *testing.T) {
	ctx := context.Background()
	p := loadPack(t)

	_, err := LowerFile(ctx, p, "testdata/native.yaml")

	var nosir tir.NoSIRError
	require.True(t, errors.As(err, &nosir), "err: %v", err)
	assert.Equal(t, "memcpy", nosir.Symbol)
}

func TestStartTracing(t *testing.T) {
	tt, err := StartTracing(trace.SoftwareTracing)
	require.NoError(t, err)
	assert.IsType(t, &swt.Tracer{}, tt)

	st, err := tt.StopTracing()
	require.NoError(t, err)
	assert.Equal(t, 0, st.Len())

	_, err = StartTracing(trace.HardwareTracing)
	assert.ErrorIs(t, err, ErrUnsupportedKind)
}

func TestRecord(t *testing.T) {
	ctx := context.Background()
	p := loadPack(t)

	locs, err := Record(ctx, p, "pair", nil)
	require.NoError(t, err)
	assert.Equal(t, trace.Locs{{Symbol: "pair"}}, locs)

	_, err = Record(ctx, p, "opaque", nil)
	assert.Error(t, err)

	_, err = Record(ctx, p, "missing", nil)

	var nosir tir.NoSIRError
	assert.True(t, errors.As(err, &nosir))
}
