package block

import (
	"context"
	"fmt"

	"nikand.dev/go/heap"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/rvlift/translator/ir"
)

type (
	UnknownJumpTargetError struct {
		From, Target ir.Addr
	}

	qinsn struct {
		ir.Insn
		seq int
	}
)

// Build partitions the decoded statement stream into basic blocks.
//
// A block begins at the first statement, at every indirect jump target,
// at every direct jump target and right after a terminator. It is closed
// at the first terminator after its start; a block falling through into
// the next entry is closed with a synthetic always taken jump.
func Build(ctx context.Context, insns []ir.Insn, indirect []ir.Addr) (_ map[ir.Addr]*ir.Block, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "build blocks", "insns", len(insns), "indirect", len(indirect))
	defer tr.Finish("err", &err)

	if len(insns) == 0 {
		return nil, errors.New("empty code stream")
	}

	insns = normalize(insns)

	first := make(map[ir.Addr]int, len(insns))

	for i, insn := range insns {
		if _, ok := first[insn.Addr]; !ok {
			first[insn.Addr] = i
		}
	}

	starts := map[ir.Addr]struct{}{
		insns[0].Addr: {},
	}

	for _, a := range indirect {
		if _, ok := first[a]; !ok {
			return nil, UnknownJumpTargetError{Target: a}
		}

		starts[a] = struct{}{}
	}

	for _, insn := range insns {
		j, ok := insn.Stmt.(ir.Jump)
		if !ok {
			continue
		}

		for _, t := range []ir.Addr{j.Then, j.Else} {
			if _, ok := first[t]; !ok {
				return nil, UnknownJumpTargetError{From: insn.Addr, Target: t}
			}

			starts[t] = struct{}{}
		}
	}

	blocks := map[ir.Addr]*ir.Block{}

	var code []ir.Stmt
	var entry ir.Addr
	open := false

	for i, insn := range insns {
		_, boundary := starts[insn.Addr]
		boundary = boundary && (i == 0 || insns[i-1].Addr != insn.Addr)

		if open && boundary {
			code = append(code, ir.Jump{Cond: ir.LitCond(true), Then: insn.Addr, Else: insn.Addr})
			blocks[entry] = &ir.Block{Code: code}
			open = false
		}

		if !open {
			entry = insn.Addr
			code = nil
			open = true
		}

		code = append(code, insn.Stmt)

		if ir.IsTerm(insn.Stmt) {
			blocks[entry] = &ir.Block{Code: code}
			open = false
		}
	}

	if open {
		code = append(code, ir.Break{})
		blocks[entry] = &ir.Block{Code: code}
	}

	tr.Printw("blocks built", "blocks", len(blocks))

	return blocks, nil
}

// normalize restores the global address order of the stream.
// Chunks may be decoded in any order, statements lifted from
// the same pc keep their relative order.
func normalize(insns []ir.Insn) []ir.Insn {
	h := heap.Heap[qinsn]{Less: qinsnLess}

	for i, insn := range insns {
		h.Push(qinsn{Insn: insn, seq: i})
	}

	res := make([]ir.Insn, 0, len(insns))

	for h.Len() != 0 {
		res = append(res, h.Pop().Insn)
	}

	return res
}

func qinsnLess(d []qinsn, i, j int) bool {
	if d[i].Addr != d[j].Addr {
		return d[i].Addr < d[j].Addr
	}

	return d[i].seq < d[j].seq
}

func (e UnknownJumpTargetError) Error() string {
	if e.From != 0 {
		return fmt.Sprintf("jump target %#x (from %#x) is not a statement address", e.Target, e.From)
	}

	return fmt.Sprintf("indirect jump target %#x is not a statement address", e.Target)
}
