package pack

import (
	"context"
	"os"
	"sort"
	"sync"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/metatrace/jit/sir"
)

type (
	// Pack is the read-only table of SIR bodies and types of a program.
	// It is never mutated after New returns, so it is safe to share.
	Pack struct {
		bodies map[string]*sir.Body
		types  map[uint64][]sir.Ty
	}
)

// EnvPath names the environment variable the default Loader reads the pack path from.
const EnvPath = "METATRACE_SIR"

// Loader populates the process-wide pack on the first Global call.
// Replace it before that call to change the source.
var Loader = func(ctx context.Context) (*Pack, error) {
	path := os.Getenv(EnvPath)
	if path == "" {
		return New(ctx, nil, nil)
	}

	return LoadFile(ctx, path)
}

var global struct {
	once sync.Once
	p    *Pack
	err  error
}

// Global returns the process-wide pack, loading it once.
func Global() (*Pack, error) {
	global.once.Do(func() {
		ctx := tlog.ContextWithSpan(context.Background(), tlog.Root())

		global.p, global.err = Loader(ctx)
		if global.err != nil {
			global.err = errors.Wrap(global.err, "load global pack")
		}
	})

	return global.p, global.err
}

// New builds a pack and lays out every body.
// Bodies whose locals have no layout (unimplemented types) are kept for tracing
// but cannot be interpreted.
func New(ctx context.Context, types []sir.Types, bodies []*sir.Body) (p *Pack, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "pack: new", "crates", len(types), "bodies", len(bodies))
	defer tr.Finish("err", &err)

	p = &Pack{
		bodies: make(map[string]*sir.Body, len(bodies)),
		types:  make(map[uint64][]sir.Ty, len(types)),
	}

	for _, ts := range types {
		if _, ok := p.types[ts.Crate]; ok {
			return nil, errors.New("duplicate type table for crate %d", ts.Crate)
		}

		p.types[ts.Crate] = ts.Types
	}

	for _, ts := range types {
		for i, t := range ts.Types {
			if err = sir.CheckFields(p, t); err != nil {
				return nil, errors.Wrap(err, "type %v", sir.TypeID{Crate: ts.Crate, Index: uint32(i)})
			}
		}
	}

	for _, b := range bodies {
		if _, ok := p.bodies[b.Symbol]; ok {
			return nil, errors.New("duplicate body: %v", b.Symbol)
		}

		p.bodies[b.Symbol] = b

		if err := b.LayOut(p); err != nil {
			tr.Printw("body not laid out", "symbol", b.Symbol, "reason", err)
			continue
		}

		tr.V("pack_layout").Printw("body laid out", "symbol", b.Symbol, "offsets", b.Offsets, "size", b.Layout.Size, "align", b.Layout.Align)
	}

	return p, nil
}

// Body returns the body of sym.
func (p *Pack) Body(sym string) (*sir.Body, bool) {
	b, ok := p.bodies[sym]
	return b, ok
}

func (p *Pack) Ty(id sir.TypeID) (sir.Ty, bool) {
	ts, ok := p.types[id.Crate]
	if !ok || int(id.Index) >= len(ts) {
		return nil, false
	}

	return ts[id.Index], true
}

// Symbols returns all body symbols in sorted order.
func (p *Pack) Symbols() []string {
	l := make([]string, 0, len(p.bodies))

	for s := range p.bodies {
		l = append(l, s)
	}

	sort.Strings(l)

	return l
}
