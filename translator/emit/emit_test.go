package emit

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/rvlift/translator/alloc"
	"github.com/slowlang/rvlift/translator/ir"
	"github.com/slowlang/rvlift/translator/load"
)

func testProg() *Prog {
	blocks := map[ir.Addr]*ir.Block{
		0x100: {Code: []ir.Stmt{
			ir.Let{Name: "v", Expr: ir.LoadMem{Op: ir.MemW, Addr: ir.LoadReg(ir.Sp)}},
			ir.StoreReg{Reg: ir.A0, Expr: ir.Bin{Op: ir.Add, L: ir.Var("v"), R: ir.Lit(1)}},
			ir.Jump{Cond: ir.BinCond{Op: ir.Lt, L: ir.LoadReg(ir.A0), R: ir.Lit(10)}, Then: 0x100, Else: 0x104},
		}},
		0x104: {Code: []ir.Stmt{
			ir.StoreMem{Op: ir.MemW, Addr: ir.LoadReg(ir.Sp), Val: ir.LoadReg(ir.A0)},
			ir.Syscall{Ret: 0x108},
		}},
		0x108: {Code: []ir.Stmt{
			ir.IndirectJump{Dst: ir.LoadReg(ir.Ra)},
		}},
	}

	for addr, b := range blocks {
		blocks[addr] = alloc.Assign(b)
	}

	return &Prog{
		Entry:    0x100,
		Brk:      0x2000,
		Blocks:   blocks,
		Indirect: []ir.Addr{0x100},
		Data:     []load.Chunk{{Addr: 0x1000, Data: []byte{1, 2, 3, 4}}},
	}
}

func TestHeader(t *testing.T) {
	var buf bytes.Buffer

	err := Header(context.Background(), &buf, testProg())
	require.NoError(t, err)

	src := buf.String()

	assert.Contains(t, src, "#define RVLIFT_ENTRY 0x100u")
	assert.Contains(t, src, "#define RVLIFT_BRK 0x2000u")
	assert.Contains(t, src, "struct rvlift_cpu {")
	assert.Contains(t, src, "uint32_t ra;")
	assert.Contains(t, src, "uint32_t a7;")
	assert.Contains(t, src, "int rvlift_syscall(void);")
	assert.Contains(t, src, "rvlift_div")

	assert.Equal(t, ir.NumRegs, strings.Count(src, "\tuint32_t "))
}

func TestSource(t *testing.T) {
	var buf bytes.Buffer

	err := Source(context.Background(), &buf, testProg(), "out.h")
	require.NoError(t, err)

	src := buf.String()

	assert.Contains(t, src, `#include "out.h"`)
	assert.Contains(t, src, "rvlift_data_0")
	assert.Contains(t, src, "memcpy(rvlift_mem + 0x1000u, rvlift_data_0, sizeof rvlift_data_0);")

	assert.Contains(t, src, "case 0x100u: goto L_100;")
	assert.Contains(t, src, "L_104:")

	assert.Contains(t, src, "l0 = rvlift_lw(c->sp);")
	assert.Contains(t, src, "c->a0 = (l0 + 0x1u);")
	assert.Contains(t, src, "if ((int32_t)c->a0 < (int32_t)0xau) goto L_100;")
	assert.Contains(t, src, "goto L_104;")

	assert.Contains(t, src, "rvlift_sw(c->sp, c->a0);")
	assert.Contains(t, src, "if (rvlift_syscall()) return 0;")

	assert.Contains(t, src, "pc = c->ra;")
	assert.Contains(t, src, "goto dispatch;")
}
