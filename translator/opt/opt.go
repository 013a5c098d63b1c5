package opt

import (
	"context"
	"fmt"
	"slices"

	"tlog.app/go/tlog"

	"github.com/slowlang/rvlift/translator/ir"
)

type BadLevelError struct {
	Level int
}

// Simplify rewrites the block map under the given optimization level.
//
// Level 0 returns the input as is. Level 1 runs the per-block pipeline:
// shadowed stores are lifted into Lets, then folding, substitution,
// constant propagation and cleanup repeat to a fixed point. Level 2 also
// runs whole-program liveness, demotes stores that are dead on block exit
// and reruns the per-block pipeline over what that exposed.
//
// The input map is never mutated, each stage builds a new one.
func Simplify(ctx context.Context, level int, indirect []ir.Addr, blocks map[ir.Addr]*ir.Block) (_ map[ir.Addr]*ir.Block, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "simplify", "level", level, "blocks", len(blocks))
	defer tr.Finish("err", &err)

	switch level {
	case 0:
		return blocks, nil
	case 1, 2:
	default:
		return nil, BadLevelError{Level: level}
	}

	res := mapBlocks(blocks, liftBlock)
	res = mapBlocks(res, simplifyFix)

	if level == 1 {
		return res, nil
	}

	live := Liveness(ctx, res, indirect)

	for _, addr := range sortedAddrs(res) {
		res[addr] = dceBlock(res[addr], live[addr].Out)
	}

	res = mapBlocks(res, simplifyFix)

	return res, nil
}

// simplifyFix iterates the per-block pipeline until the code stops changing.
func simplifyFix(b *ir.Block) *ir.Block {
	for {
		b1 := simplifyBB1(b)
		if slices.Equal(b1.Code, b.Code) {
			return b1
		}

		b = b1
	}
}

func simplifyBB1(b *ir.Block) *ir.Block {
	b = foldBlock(b)
	b = substBlock(b)
	b = constPropBlock(b)
	b = cleanBlock(b)

	return b
}

func foldBlock(b *ir.Block) *ir.Block {
	code := make([]ir.Stmt, len(b.Code))

	for i, s := range b.Code {
		if j, ok := s.(ir.Jump); ok {
			code[i] = ir.Jump{Cond: ConstFoldCond(j.Cond), Then: j.Then, Else: j.Else}
			continue
		}

		code[i] = ir.MapStmt(s, ConstFold)
	}

	return &ir.Block{Code: code, Slots: b.Slots}
}

func mapBlocks(blocks map[ir.Addr]*ir.Block, f func(*ir.Block) *ir.Block) map[ir.Addr]*ir.Block {
	res := make(map[ir.Addr]*ir.Block, len(blocks))

	for _, addr := range sortedAddrs(blocks) {
		res[addr] = f(blocks[addr])
	}

	return res
}

func sortedAddrs(blocks map[ir.Addr]*ir.Block) []ir.Addr {
	addrs := make([]ir.Addr, 0, len(blocks))

	for addr := range blocks {
		addrs = append(addrs, addr)
	}

	slices.Sort(addrs)

	return addrs
}

func (e BadLevelError) Error() string {
	return fmt.Sprintf("unknown optimization level: %d", e.Level)
}
