package main

import (
	"context"
	"fmt"
	"os"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/metatrace/jit"
	"github.com/slowlang/metatrace/jit/format"
	"github.com/slowlang/metatrace/jit/pack"
	"github.com/slowlang/metatrace/jit/trace"
)

func main() {
	dumpCmd := &cli.Command{
		Name:        "dump",
		Description: "print bodies of sir pack files",
		Action:      dumpAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("v", "", "verbosity topics"),
		},
	}

	lowerCmd := &cli.Command{
		Name:        "lower",
		Description: "lower recorded traces into trace ir",
		Action:      lowerAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("pack", "", "sir pack file (default $"+pack.EnvPath+")"),
			cli.NewFlag("v", "", "verbosity topics"),
		},
	}

	hotCmd := &cli.Command{
		Name:        "hot",
		Description: "print the most executed blocks of recorded traces",
		Action:      hotAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("k", 10, "number of blocks"),
		},
	}

	app := &cli.Command{
		Name:        "metatrace",
		Description: "metatrace is a tool for inspecting sir packs and traces",
		Commands: []*cli.Command{
			dumpCmd,
			lowerCmd,
			hotCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func newContext(c *cli.Command) context.Context {
	if v := c.String("v"); v != "" {
		tlog.SetVerbosity(v)
	}

	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	return ctx
}

func dumpAct(c *cli.Command) (err error) {
	ctx := newContext(c)

	for _, a := range c.Args {
		p, err := pack.LoadFile(ctx, a)
		if err != nil {
			return errors.Wrap(err, "load %v", a)
		}

		b, err := format.Format(ctx, nil, p)
		if err != nil {
			return errors.Wrap(err, "format %v", a)
		}

		fmt.Printf("%s", b)
	}

	return nil
}

func lowerAct(c *cli.Command) (err error) {
	ctx := newContext(c)

	var p *pack.Pack

	if name := c.String("pack"); name != "" {
		p, err = pack.LoadFile(ctx, name)
		if err != nil {
			return errors.Wrap(err, "load pack")
		}
	}

	for _, a := range c.Args {
		t, err := jit.LowerFile(ctx, p, a)
		if err != nil {
			return errors.Wrap(err, "lower %v", a)
		}

		b, err := format.Format(ctx, nil, t)
		if err != nil {
			return errors.Wrap(err, "format %v", a)
		}

		fmt.Printf("%s", b)
	}

	return nil
}

func hotAct(c *cli.Command) (err error) {
	k := c.Int("k")

	for _, a := range c.Args {
		st, err := trace.LoadFile(a)
		if err != nil {
			return errors.Wrap(err, "hot %v", a)
		}

		fmt.Printf("%v: %d locations\n", a, st.Len())

		for _, h := range trace.Hot(st, k) {
			fmt.Printf("\t%8d  %v\n", h.N, h.Location)
		}
	}

	return nil
}
