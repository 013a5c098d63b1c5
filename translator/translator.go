package translator

import (
	"context"
	"os"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/rvlift/translator/alloc"
	"github.com/slowlang/rvlift/translator/block"
	"github.com/slowlang/rvlift/translator/decode"
	"github.com/slowlang/rvlift/translator/ir"
	"github.com/slowlang/rvlift/translator/load"
	"github.com/slowlang/rvlift/translator/opt"
)

type (
	Options struct {
		// Level is the optimization level, 0 to 2.
		Level int
	}

	// Out is everything the emitter needs.
	Out struct {
		Entry ir.Addr
		Brk   ir.Addr

		Blocks   map[ir.Addr]*ir.Block
		Indirect []ir.Addr
		Data     []load.Chunk
	}
)

func TranslateFile(ctx context.Context, name string, opts Options) (*Out, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(data), "name", name)

	return Translate(ctx, data, opts)
}

// Translate lifts a 32-bit risc-v static executable into a simplified
// block map ready for emission.
func Translate(ctx context.Context, data []byte, opts Options) (_ *Out, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "translate", "level", opts.Level)
	defer tr.Finish("err", &err)

	p, err := load.Load(ctx, data)
	if err != nil {
		return nil, errors.Wrap(err, "load")
	}

	insns, ind, err := decode.Chunks(ctx, p.Code)
	if err != nil {
		return nil, errors.Wrap(err, "decode")
	}

	targets := mapset.NewThreadUnsafeSet(ind...)
	targets.Add(p.Entry)

	indirect := targets.ToSlice()
	slices.Sort(indirect)

	blocks, err := block.Build(ctx, insns, indirect)
	if err != nil {
		return nil, errors.Wrap(err, "build blocks")
	}

	blocks, err = opt.Simplify(ctx, opts.Level, indirect, blocks)
	if err != nil {
		return nil, errors.Wrap(err, "simplify")
	}

	for addr, b := range blocks {
		blocks[addr] = alloc.Assign(b)
	}

	return &Out{
		Entry:    p.Entry,
		Brk:      p.Brk,
		Blocks:   blocks,
		Indirect: indirect,
		Data:     p.Data,
	}, nil
}
