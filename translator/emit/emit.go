package emit

import (
	"context"
	"fmt"
	"io"
	"slices"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/rvlift/translator/alloc"
	"github.com/slowlang/rvlift/translator/ir"
	"github.com/slowlang/rvlift/translator/load"
)

// Prog is what the emitter needs to know about the translated program.
type Prog struct {
	Entry ir.Addr
	Brk   ir.Addr

	Blocks   map[ir.Addr]*ir.Block
	Indirect []ir.Addr
	Data     []load.Chunk
}

const stackSize = 1 << 20

// Header writes the c interface of the translated program: the guest cpu
// state, the guest memory, the inline memory and alu helpers and the
// syscall shim hook the embedder provides.
func Header(ctx context.Context, w io.Writer, p *Prog) (err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "emit header")
	defer tr.Finish("err", &err)

	b := fmt.Appendf(nil, `/* generated by rvlift, do not edit */

#ifndef RVLIFT_H
#define RVLIFT_H

#include <stdint.h>
#include <string.h>

#define RVLIFT_ENTRY 0x%xu
#define RVLIFT_BRK 0x%xu
#define RVLIFT_MEM_SIZE 0x%xu

struct rvlift_cpu {
`, uint32(p.Entry), uint32(p.Brk), uint32(p.Brk)+stackSize)

	for r := ir.Reg(1); r <= ir.NumRegs; r++ {
		b = fmt.Appendf(b, "\tuint32_t %s;\n", r)
	}

	b = append(b, `};

extern struct rvlift_cpu rvlift_cpu;
extern uint8_t rvlift_mem[];

/* provided by the embedder; nonzero return stops the guest */
int rvlift_syscall(void);

void rvlift_init(void);
int rvlift_run(uint32_t pc);

static inline uint32_t rvlift_lw(uint32_t a) { uint32_t v; memcpy(&v, rvlift_mem + a, 4); return v; }
static inline uint32_t rvlift_lh(uint32_t a) { int16_t v; memcpy(&v, rvlift_mem + a, 2); return (uint32_t)(int32_t)v; }
static inline uint32_t rvlift_lhu(uint32_t a) { uint16_t v; memcpy(&v, rvlift_mem + a, 2); return v; }
static inline uint32_t rvlift_lb(uint32_t a) { return (uint32_t)(int32_t)(int8_t)rvlift_mem[a]; }
static inline uint32_t rvlift_lbu(uint32_t a) { return rvlift_mem[a]; }

static inline void rvlift_sw(uint32_t a, uint32_t v) { memcpy(rvlift_mem + a, &v, 4); }
static inline void rvlift_sh(uint32_t a, uint32_t v) { uint16_t h = (uint16_t)v; memcpy(rvlift_mem + a, &h, 2); }
static inline void rvlift_sb(uint32_t a, uint32_t v) { rvlift_mem[a] = (uint8_t)v; }

static inline uint32_t rvlift_mulh(uint32_t a, uint32_t b) { return (uint32_t)((int64_t)(int32_t)a * (int64_t)(int32_t)b >> 32); }
static inline uint32_t rvlift_mulhu(uint32_t a, uint32_t b) { return (uint32_t)((uint64_t)a * (uint64_t)b >> 32); }

static inline uint32_t rvlift_div(uint32_t a, uint32_t b) {
	if (b == 0) return 0xffffffffu;
	if (a == 0x80000000u && b == 0xffffffffu) return a;
	return (uint32_t)((int32_t)a / (int32_t)b);
}

static inline uint32_t rvlift_divu(uint32_t a, uint32_t b) { return b == 0 ? 0xffffffffu : a / b; }

static inline uint32_t rvlift_rem(uint32_t a, uint32_t b) {
	if (b == 0) return a;
	if (a == 0x80000000u && b == 0xffffffffu) return 0;
	return (uint32_t)((int32_t)a % (int32_t)b);
}

static inline uint32_t rvlift_remu(uint32_t a, uint32_t b) { return b == 0 ? a : a % b; }

#endif
`...)

	_, err = w.Write(b)

	return errors.Wrap(err, "write")
}

// Source writes the implementation: the data images, rvlift_init copying
// them into guest memory and rvlift_run with one label per basic block.
func Source(ctx context.Context, w io.Writer, p *Prog, header string) (err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "emit source", "blocks", len(p.Blocks))
	defer tr.Finish("err", &err)

	b := fmt.Appendf(nil, `/* generated by rvlift, do not edit */

#include "%s"

struct rvlift_cpu rvlift_cpu;
uint8_t rvlift_mem[RVLIFT_MEM_SIZE];
`, header)

	for i, c := range p.Data {
		b = fmt.Appendf(b, "\nstatic const uint8_t rvlift_data_%d[] = {", i)

		for j, v := range c.Data {
			if j%16 == 0 {
				b = append(b, "\n\t"...)
			}

			b = fmt.Appendf(b, "0x%02x,", v)
		}

		b = append(b, "\n};\n"...)
	}

	b = append(b, "\nvoid rvlift_init(void) {\n"...)

	for i, c := range p.Data {
		b = fmt.Appendf(b, "\tmemcpy(rvlift_mem + 0x%xu, rvlift_data_%d, sizeof rvlift_data_%d);\n", uint32(c.Addr), i, i)
	}

	b = append(b, "}\n"...)

	b = fmt.Appendf(b, `
int rvlift_run(uint32_t pc) {
	struct rvlift_cpu *c = &rvlift_cpu;
`)

	if n := maxSlots(p.Blocks); n != 0 {
		b = append(b, "\tuint32_t"...)

		for i := 0; i < n; i++ {
			b = fmt.Appendf(b, " l%d%s", i, comma(i, n))
		}

		b = append(b, ";\n"...)
	}

	// computed jumps can only land on declared targets
	b = append(b, "\ndispatch:\n\tswitch (pc) {\n"...)

	targets := slices.Clone(p.Indirect)
	slices.Sort(targets)

	for _, addr := range targets {
		b = fmt.Appendf(b, "\tcase 0x%xu: goto L_%x;\n", uint32(addr), uint32(addr))
	}

	b = append(b, "\tdefault: return -1;\n\t}\n"...)

	for _, addr := range sortedAddrs(p.Blocks) {
		b = fmt.Appendf(b, "\nL_%x:\n", uint32(addr))

		b, err = appendBlock(b, p.Blocks[addr])
		if err != nil {
			return errors.Wrap(err, "block %#x", addr)
		}
	}

	b = append(b, "}\n"...)

	_, err = w.Write(b)

	return errors.Wrap(err, "write")
}

func appendBlock(b []byte, blk *ir.Block) ([]byte, error) {
	for _, s := range blk.Code {
		switch s := s.(type) {
		case ir.Let:
			slot, ok := blk.Slots[s.Name]
			if !ok {
				return b, errors.New("variable %v has no slot", s.Name)
			}

			b = fmt.Appendf(b, "\tl%d = ", slot)
			b = appendExpr(b, s.Expr, blk)
			b = append(b, ";\n"...)
		case ir.StoreReg:
			b = fmt.Appendf(b, "\tc->%s = ", s.Reg)
			b = appendExpr(b, s.Expr, blk)
			b = append(b, ";\n"...)
		case ir.StoreMem:
			b = fmt.Appendf(b, "\trvlift_s%s(", width(s.Op))
			b = appendExpr(b, s.Addr, blk)
			b = append(b, ", "...)
			b = appendExpr(b, s.Val, blk)
			b = append(b, ");\n"...)
		case ir.Jump:
			switch c := s.Cond.(type) {
			case ir.LitCond:
				if c {
					b = fmt.Appendf(b, "\tgoto L_%x;\n", uint32(s.Then))
				} else {
					b = fmt.Appendf(b, "\tgoto L_%x;\n", uint32(s.Else))
				}
			case ir.BinCond:
				b = append(b, "\tif ("...)
				b = appendCond(b, c, blk)
				b = fmt.Appendf(b, ") goto L_%x;\n\tgoto L_%x;\n", uint32(s.Then), uint32(s.Else))
			}
		case ir.IndirectJump:
			b = append(b, "\tpc = "...)
			b = appendExpr(b, s.Dst, blk)
			b = append(b, ";\n\tgoto dispatch;\n"...)
		case ir.Syscall:
			b = fmt.Appendf(b, "\tif (rvlift_syscall()) return 0;\n\tgoto L_%x;\n", uint32(s.Ret))
		case ir.Break:
			b = append(b, "\treturn 0;\n"...)
		default:
			return b, errors.New("unexpected statement: %T", s)
		}
	}

	return b, nil
}

func appendExpr(b []byte, e ir.Expr, blk *ir.Block) []byte {
	switch e := e.(type) {
	case ir.Lit:
		b = fmt.Appendf(b, "0x%xu", uint32(e))
	case ir.Var:
		b = fmt.Appendf(b, "l%d", blk.Slots[ir.Name(e)])
	case ir.LoadReg:
		b = fmt.Appendf(b, "c->%s", ir.Reg(e))
	case ir.LoadMem:
		b = fmt.Appendf(b, "rvlift_l%s(", e.Op)
		b = appendExpr(b, e.Addr, blk)
		b = append(b, ')')
	case ir.Un:
		if e.Op == ir.Neg {
			b = append(b, "(-"...)
		} else {
			b = append(b, "(~"...)
		}

		b = appendExpr(b, e.X, blk)
		b = append(b, ')')
	case ir.Bin:
		b = appendBin(b, e, blk)
	}

	return b
}

func appendBin(b []byte, e ir.Bin, blk *ir.Block) []byte {
	bin := func(op string) []byte {
		b = append(b, '(')
		b = appendExpr(b, e.L, blk)
		b = append(b, ' ')
		b = append(b, op...)
		b = append(b, ' ')
		b = appendExpr(b, e.R, blk)
		b = append(b, ')')

		return b
	}

	call := func(f string) []byte {
		b = fmt.Appendf(b, "rvlift_%s(", f)
		b = appendExpr(b, e.L, blk)
		b = append(b, ", "...)
		b = appendExpr(b, e.R, blk)
		b = append(b, ')')

		return b
	}

	switch e.Op {
	case ir.Add:
		return bin("+")
	case ir.Sub:
		return bin("-")
	case ir.Mul:
		return bin("*")
	case ir.And:
		return bin("&")
	case ir.Or:
		return bin("|")
	case ir.Xor:
		return bin("^")
	case ir.Mulh, ir.Mulhu, ir.Div, ir.Divu, ir.Rem, ir.Remu:
		return call(e.Op.String())
	case ir.Sll:
		b = append(b, '(')
		b = appendExpr(b, e.L, blk)
		b = append(b, " << ("...)
		b = appendExpr(b, e.R, blk)
		b = append(b, " & 31))"...)
	case ir.Srl:
		b = append(b, '(')
		b = appendExpr(b, e.L, blk)
		b = append(b, " >> ("...)
		b = appendExpr(b, e.R, blk)
		b = append(b, " & 31))"...)
	case ir.Sra:
		b = append(b, "(uint32_t)((int32_t)"...)
		b = appendExpr(b, e.L, blk)
		b = append(b, " >> ("...)
		b = appendExpr(b, e.R, blk)
		b = append(b, " & 31))"...)
	case ir.Slt:
		b = append(b, "((int32_t)"...)
		b = appendExpr(b, e.L, blk)
		b = append(b, " < (int32_t)"...)
		b = appendExpr(b, e.R, blk)
		b = append(b, " ? 1u : 0u)"...)
	case ir.Sltu:
		b = append(b, '(')
		b = appendExpr(b, e.L, blk)
		b = append(b, " < "...)
		b = appendExpr(b, e.R, blk)
		b = append(b, " ? 1u : 0u)"...)
	}

	return b
}

func appendCond(b []byte, c ir.BinCond, blk *ir.Block) []byte {
	signed := c.Op == ir.Lt || c.Op == ir.Ge

	var op string

	switch c.Op {
	case ir.Eq:
		op = "=="
	case ir.Ne:
		op = "!="
	case ir.Lt, ir.Ltu:
		op = "<"
	case ir.Ge, ir.Geu:
		op = ">="
	}

	if signed {
		b = append(b, "(int32_t)"...)
	}

	b = appendExpr(b, c.L, blk)
	b = fmt.Appendf(b, " %s ", op)

	if signed {
		b = append(b, "(int32_t)"...)
	}

	b = appendExpr(b, c.R, blk)

	return b
}

func width(op ir.MemOp) string {
	switch op {
	case ir.MemB, ir.MemBU:
		return "b"
	case ir.MemH, ir.MemHU:
		return "h"
	}

	return "w"
}

func maxSlots(blocks map[ir.Addr]*ir.Block) (n int) {
	for _, blk := range blocks {
		if s := alloc.Slots(blk); s > n {
			n = s
		}
	}

	return n
}

func sortedAddrs(blocks map[ir.Addr]*ir.Block) []ir.Addr {
	addrs := make([]ir.Addr, 0, len(blocks))

	for addr := range blocks {
		addrs = append(addrs, addr)
	}

	slices.Sort(addrs)

	return addrs
}

func comma(i, n int) string {
	if i+1 < n {
		return ","
	}

	return ""
}
