package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xyproto/env/v2"
	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/rvlift/translator"
	"github.com/slowlang/rvlift/translator/emit"
)

func main() {
	app := &cli.Command{
		Name:        "rvlift",
		Description: "rvlift translates a 32-bit risc-v elf executable into c sources",
		Action:      translateAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("O", env.Int("RVLIFT_O", 1), "optimization level (0, 1 or 2)"),
			cli.NewFlag("impl", "", "implementation file path (default is the header path with a .c suffix)"),
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func translateAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	if len(c.Args) != 2 {
		return errors.New("usage: rvlift [-O level] <elf> <header>")
	}

	input, header := c.Args[0], c.Args[1]

	impl := c.String("impl")
	if impl == "" {
		impl = strings.TrimSuffix(header, filepath.Ext(header)) + ".c"
	}

	out, err := translator.TranslateFile(ctx, input, translator.Options{
		Level: c.Int("O"),
	})
	if err != nil {
		return errors.Wrap(err, "translate %v", input)
	}

	p := &emit.Prog{
		Entry:    out.Entry,
		Brk:      out.Brk,
		Blocks:   out.Blocks,
		Indirect: out.Indirect,
		Data:     out.Data,
	}

	err = writeFile(header, func(w io.Writer) error {
		return emit.Header(ctx, w, p)
	})
	if err != nil {
		return errors.Wrap(err, "emit %v", header)
	}

	err = writeFile(impl, func(w io.Writer) error {
		return emit.Source(ctx, w, p, filepath.Base(header))
	})
	if err != nil {
		return errors.Wrap(err, "emit %v", impl)
	}

	return nil
}

func writeFile(name string, f func(io.Writer) error) (err error) {
	w, err := os.Create(name)
	if err != nil {
		return errors.Wrap(err, "create")
	}

	defer func() {
		e := w.Close()
		if err == nil && e != nil {
			err = errors.Wrap(e, "close")
		}
	}()

	return f(w)
}
