package format

import (
	"context"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"

	"github.com/slowlang/metatrace/jit/pack"
	"github.com/slowlang/metatrace/jit/sir"
	"github.com/slowlang/metatrace/jit/tir"
)

// Format appends a human readable dump of x to b.
// Supported are *sir.Body, *tir.Trace and *pack.Pack.
func Format(ctx context.Context, b []byte, x any) ([]byte, error) {
	return format(ctx, b, x, 0)
}

func format(ctx context.Context, b []byte, x any, d int) ([]byte, error) {
	switch x := x.(type) {
	case *sir.Body:
		return formatBody(ctx, b, x, d)
	case *tir.Trace:
		return formatTrace(ctx, b, x, d)
	case *pack.Pack:
		return formatPack(ctx, b, x, d)
	default:
		return nil, errors.New("unsupported type: %T", x)
	}
}

func formatPack(ctx context.Context, b []byte, x *pack.Pack, d int) (_ []byte, err error) {
	for i, sym := range x.Symbols() {
		if i != 0 {
			b = append(b, '\n')
		}

		body, _ := x.Body(sym)

		b, err = formatBody(ctx, b, body, d)
		if err != nil {
			return nil, errors.Wrap(err, "body %v", sym)
		}
	}

	return b, nil
}

func formatBody(ctx context.Context, b []byte, x *sir.Body, d int) (_ []byte, err error) {
	b = app(b, d, "fn %v", x.Symbol)

	if x.Flags != 0 {
		b = app(b, 0, " %v", x.Flags)
	}

	if x.TraceInputs != nil {
		b = app(b, 0, " inputs=%v", *x.TraceInputs)
	}

	if x.LaidOut() {
		b = app(b, 0, " size=%d align=%d", x.Layout.Size, x.Layout.Align)
	}

	b = append(b, " {\n"...)

	for i, l := range x.Locals {
		b = app(b, d+1, "%v: %v", sir.Local(i), l.Ty)

		if x.LaidOut() {
			b = app(b, 0, " +%d", x.Offsets[i])
		}

		b = append(b, '\n')
	}

	for i, bb := range x.Blocks {
		b = app(b, d, "bb%d:\n", i)

		for _, s := range bb.Stmts {
			b = app(b, d+1, "%v\n", s)
		}

		if bb.Term == nil {
			return nil, errors.New("bb%d: no terminator", i)
		}

		b = app(b, d+1, "%v\n", bb.Term)
	}

	b = app(b, d, "}\n")

	return b, nil
}

func formatTrace(ctx context.Context, b []byte, x *tir.Trace, d int) (_ []byte, err error) {
	b = app(b, d, "trace")

	if l, ok := x.Inputs(); ok {
		b = app(b, 0, " inputs=%v", l)
	}

	b = app(b, 0, " ops=%d {\n", x.Len())

	for _, l := range x.Locals() {
		b = app(b, d+1, "%v: %v\n", l, x.LocalDecls[l].Ty)
	}

	depth := d + 1

	for i := 0; i < x.Len(); i++ {
		op := x.Op(i)

		if _, ok := op.(sir.Leave); ok && depth > d+1 {
			depth--
		}

		b = app(b, depth, "%v\n", op)

		if _, ok := op.(sir.Enter); ok {
			depth++
		}
	}

	b = app(b, d, "}\n")

	return b, nil
}

func app(b []byte, d int, f string, args ...any) []byte {
	const tabs = "\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t"

	if d > len(tabs) {
		d = len(tabs)
	}

	b = append(b, tabs[:d]...)
	b = hfmt.Appendf(b, f, args...)

	return b
}
