package block

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/rvlift/translator/ir"
)

func TestBuild(t *testing.T) {
	ctx := context.Background()

	insns := []ir.Insn{
		{Addr: 0x0, Stmt: ir.StoreReg{Reg: ir.A0, Expr: ir.Lit(1)}},
		{Addr: 0x4, Stmt: ir.Jump{Cond: ir.BinCond{Op: ir.Ne, L: ir.LoadReg(ir.A0), R: ir.Lit(0)}, Then: 0x0, Else: 0x8}},
		{Addr: 0x8, Stmt: ir.Break{}},
	}

	blocks, err := Build(ctx, insns, nil)
	require.NoError(t, err)

	require.Len(t, blocks, 2)
	require.Contains(t, blocks, ir.Addr(0x0))
	require.Contains(t, blocks, ir.Addr(0x8))

	assert.Len(t, blocks[0x0].Code, 2)
	assert.Equal(t, []ir.Stmt{ir.Break{}}, blocks[0x8].Code)

	// every direct target is a block entry
	for _, b := range blocks {
		for _, s := range b.Code {
			if j, ok := s.(ir.Jump); ok {
				assert.Contains(t, blocks, j.Then)
				assert.Contains(t, blocks, j.Else)
			}
		}
	}
}

func TestBuildFallThrough(t *testing.T) {
	ctx := context.Background()

	insns := []ir.Insn{
		{Addr: 0x0, Stmt: ir.StoreReg{Reg: ir.A0, Expr: ir.Lit(1)}},
		{Addr: 0x4, Stmt: ir.StoreReg{Reg: ir.A1, Expr: ir.Lit(2)}},
	}

	blocks, err := Build(ctx, insns, []ir.Addr{0x4})
	require.NoError(t, err)

	require.Len(t, blocks, 2)

	// the first block falls into the entry at 0x4 and is closed with an
	// always taken jump there
	require.Len(t, blocks[0x0].Code, 2)
	assert.Equal(t, ir.Jump{Cond: ir.LitCond(true), Then: 0x4, Else: 0x4}, blocks[0x0].Code[1])

	// the last block has no terminator to inherit
	require.Len(t, blocks[0x4].Code, 2)
	assert.Equal(t, ir.Break{}, blocks[0x4].Code[1])
}

func TestBuildMultipleStatementsPerAddress(t *testing.T) {
	ctx := context.Background()

	// a call lifts into a link store and a jump at the same pc
	insns := []ir.Insn{
		{Addr: 0x0, Stmt: ir.StoreReg{Reg: ir.Ra, Expr: ir.Lit(4)}},
		{Addr: 0x0, Stmt: ir.Jump{Cond: ir.LitCond(true), Then: 0x4, Else: 0x4}},
		{Addr: 0x4, Stmt: ir.Break{}},
	}

	blocks, err := Build(ctx, insns, []ir.Addr{0x0})
	require.NoError(t, err)

	require.Len(t, blocks, 2)
	assert.Len(t, blocks[0x0].Code, 2)
}

func TestBuildNormalizesOrder(t *testing.T) {
	ctx := context.Background()

	insns := []ir.Insn{
		{Addr: 0x8, Stmt: ir.Break{}},
		{Addr: 0x0, Stmt: ir.StoreReg{Reg: ir.A0, Expr: ir.Lit(1)}},
		{Addr: 0x4, Stmt: ir.Jump{Cond: ir.LitCond(true), Then: 0x8, Else: 0x8}},
	}

	blocks, err := Build(ctx, insns, nil)
	require.NoError(t, err)

	require.Contains(t, blocks, ir.Addr(0x0))
	require.Len(t, blocks[0x0].Code, 2)
}

func TestBuildUnknownTarget(t *testing.T) {
	ctx := context.Background()

	insns := []ir.Insn{
		{Addr: 0x0, Stmt: ir.Jump{Cond: ir.LitCond(true), Then: 0x100, Else: 0x100}},
	}

	_, err := Build(ctx, insns, nil)
	require.Error(t, err)

	var e UnknownJumpTargetError
	require.ErrorAs(t, err, &e)
	assert.Equal(t, ir.Addr(0x100), e.Target)

	_, err = Build(ctx, insns[:0:0], nil)
	require.Error(t, err)
}

func TestBuildUnknownIndirectTarget(t *testing.T) {
	ctx := context.Background()

	insns := []ir.Insn{
		{Addr: 0x0, Stmt: ir.Break{}},
	}

	_, err := Build(ctx, insns, []ir.Addr{0x40})

	var e UnknownJumpTargetError
	require.ErrorAs(t, err, &e)
	assert.Equal(t, ir.Addr(0x40), e.Target)
}
