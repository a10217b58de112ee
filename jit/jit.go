package jit

import (
	"context"
	"unsafe"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/metatrace/jit/format"
	"github.com/slowlang/metatrace/jit/interp"
	"github.com/slowlang/metatrace/jit/pack"
	"github.com/slowlang/metatrace/jit/tir"
	"github.com/slowlang/metatrace/jit/trace"
	"github.com/slowlang/metatrace/jit/trace/swt"
)

var ErrUnsupportedKind = errors.New("tracing kind not supported")

// StartTracing starts recording the current thread with a backend of the given kind.
// Only software tracing is compiled in.
func StartTracing(kind trace.Kind) (trace.ThreadTracer, error) {
	switch kind {
	case trace.SoftwareTracing:
		return swt.Start(), nil
	default:
		return nil, errors.Wrap(ErrUnsupportedKind, "%v", kind)
	}
}

// Lower lowers st into trace IR.
func Lower(ctx context.Context, bodies tir.Bodies, st trace.SirTrace) (*tir.Trace, error) {
	t, err := tir.New(ctx, bodies, st)
	if err != nil {
		return nil, errors.Wrap(err, "lower")
	}

	if tr := tlog.SpanFromContext(ctx); tr.If("dump_tir") {
		b, err := format.Format(ctx, nil, t)
		if err != nil {
			return nil, errors.Wrap(err, "format")
		}

		tr.Printw("trace ir", "dump", string(b))
	}

	return t, nil
}

// LowerFile lowers the trace stored in file name.
// The global pack is used if p is nil.
func LowerFile(ctx context.Context, p *pack.Pack, name string) (t *tir.Trace, err error) {
	if p == nil {
		p, err = pack.Global()
		if err != nil {
			return nil, err
		}
	}

	st, err := trace.LoadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "load trace")
	}

	tlog.SpanFromContext(ctx).Printw("read trace", "locations", st.Len(), "name", name)

	return Lower(ctx, p, st)
}

// Record interprets body sym with a software tracer attached and returns the executed locations.
// inputs, if not nil, is passed as the trace inputs pointer.
func Record(ctx context.Context, p *pack.Pack, sym string, inputs unsafe.Pointer) (_ trace.Locs, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "jit: record", "symbol", sym)
	defer tr.Finish("err", &err)

	b, ok := p.Body(sym)
	if !ok {
		return nil, tir.NewNoSIRError(sym)
	}

	if !b.LaidOut() {
		return nil, errors.New("%v: body has no layout", sym)
	}

	tt := swt.Start()

	in := interp.New(p, b)
	in.SetRecorder(tt)

	if inputs != nil {
		in.SetTraceInputs(inputs)
	}

	in.Interpret(ctx, b)

	st, err := tt.StopTracing()
	if err != nil {
		return nil, errors.Wrap(err, "stop tracing")
	}

	return trace.Collect(st), nil
}
