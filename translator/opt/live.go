package opt

import (
	"context"

	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/slowlang/rvlift/translator/ir"
	"github.com/slowlang/rvlift/translator/region"
)

type (
	// InOut is the liveness state at block boundaries.
	InOut struct {
		In, Out region.Region
	}

	flow struct {
		gen, kill region.Region
		direct    []ir.Addr
		indirect  bool
	}
)

// Liveness runs backward dataflow over the block map.
// Blocks reached through a computed jump all share the same set of
// feasible targets, so the indirect edge reads a single region, the union
// of the in sets of every declared target.
func Liveness(ctx context.Context, blocks map[ir.Addr]*ir.Block, indirect []ir.Addr) map[ir.Addr]InOut {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "liveness", "blocks", len(blocks))
	defer tr.Finish()

	flows := make(map[ir.Addr]*flow, len(blocks))

	for addr, b := range blocks {
		f := &flow{}
		f.gen, f.kill = genKill(b)
		f.direct, f.indirect = successors(b)

		flows[addr] = f
	}

	state := make(map[ir.Addr]InOut, len(blocks))
	rounds := 0

	for {
		rounds++

		indirectIn := region.Region(0)

		for _, t := range indirect {
			indirectIn = indirectIn.Union(state[t].In)
		}

		next := make(map[ir.Addr]InOut, len(blocks))
		changed := false

		for addr, f := range flows {
			out := region.Region(0)

			for _, s := range f.direct {
				out = out.Union(state[s].In)
			}

			if f.indirect {
				out = out.Union(indirectIn)
			}

			in := out.Diff(f.kill).Union(f.gen)

			next[addr] = InOut{In: in, Out: out}
			changed = changed || next[addr] != state[addr]
		}

		state = next

		if !changed {
			break
		}
	}

	tr.V("rounds").Printw("liveness converged", "rounds", rounds, "from", loc.Caller(0))

	return state
}

// genKill folds the block backward into the region read before any write
// in the block (gen) and the region written anywhere in it (kill).
func genKill(b *ir.Block) (gen, kill region.Region) {
	for i := len(b.Code) - 1; i >= 0; i-- {
		s := b.Code[i]

		rd := region.ReadStmt(s)
		wr := region.WriteStmt(s)

		gen = gen.Diff(wr).Union(rd)
		kill = kill.Union(wr)
	}

	return gen, kill
}

func successors(b *ir.Block) (direct []ir.Addr, indirect bool) {
	switch s := b.Code[len(b.Code)-1].(type) {
	case ir.Jump:
		switch c := s.Cond.(type) {
		case ir.LitCond:
			if c {
				direct = []ir.Addr{s.Then}
			} else {
				direct = []ir.Addr{s.Else}
			}
		default:
			direct = []ir.Addr{s.Then, s.Else}
		}
	case ir.IndirectJump:
		indirect = true
	case ir.Syscall:
		direct = []ir.Addr{s.Ret}
		indirect = true
	case ir.Break:
	}

	return direct, indirect
}
