package decode

import (
	"context"
	"encoding/binary"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/rvlift/translator/ir"
	"github.com/slowlang/rvlift/translator/load"
)

// Chunks lifts the executable segments into ir statements.
//
// Besides the code itself the decoder reports the addresses a computed
// jump may land on: the return site of every call that links through ra.
// The program entry is not included. The list may contain duplicates, the
// caller normalizes it.
func Chunks(ctx context.Context, chunks []load.Chunk) (insns []ir.Insn, indirect []ir.Addr, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "decode", "chunks", len(chunks))
	defer tr.Finish("err", &err)

	for _, c := range chunks {
		if len(c.Data)%4 != 0 {
			return nil, nil, errors.New("code chunk at %#x: length %d is not a multiple of 4", c.Addr, len(c.Data))
		}

		for off := 0; off < len(c.Data); off += 4 {
			pc := c.Addr + ir.Addr(off)
			w := binary.LittleEndian.Uint32(c.Data[off:])

			st, ind := one(pc, w)

			if st == nil {
				tr.V("unknown").Printw("unknown instruction", "pc", pc, "word", w)

				st = []ir.Stmt{ir.Break{}}
			}

			for _, s := range st {
				insns = append(insns, ir.Insn{Addr: pc, Stmt: s})
			}

			indirect = append(indirect, ind...)
		}
	}

	tr.Printw("decoded", "insns", len(insns), "indirect", len(indirect))

	return insns, indirect, nil
}

// one lifts a single instruction word. It returns nil for a word that is
// not a valid rv32im instruction.
func one(pc ir.Addr, w uint32) (st []ir.Stmt, ind []ir.Addr) {
	if w&3 != 3 {
		return nil, nil
	}

	rd := int(w>>7) & 31
	rs1 := int(w>>15) & 31
	rs2 := int(w>>20) & 31
	funct3 := w >> 12 & 7
	funct7 := w >> 25

	switch w & 0x7f {
	case 0x37: // lui
		return write(pc, rd, ir.Lit(immU(w))), nil
	case 0x17: // auipc
		return write(pc, rd, ir.Lit(int32(pc)+immU(w))), nil
	case 0x6f: // jal
		target := ir.Addr(int32(pc) + immJ(w))

		st = link(rd, pc)
		st = append(st, ir.Jump{Cond: ir.LitCond(true), Then: target, Else: target})

		if ir.RegByX(rd) == ir.Ra {
			ind = []ir.Addr{pc + 4}
		}

		return st, ind
	case 0x67: // jalr
		if funct3 != 0 {
			return nil, nil
		}

		dst := ir.Bin{
			Op: ir.And,
			L:  ir.Bin{Op: ir.Add, L: regE(rs1), R: ir.Lit(immI(w))},
			R:  ir.Lit(-2),
		}

		st = link(rd, pc)
		st = append(st, ir.IndirectJump{Dst: dst})

		if ir.RegByX(rd) == ir.Ra {
			ind = []ir.Addr{pc + 4}
		}

		return st, ind
	case 0x63: // branches
		var op ir.CondOp

		switch funct3 {
		case 0:
			op = ir.Eq
		case 1:
			op = ir.Ne
		case 4:
			op = ir.Lt
		case 5:
			op = ir.Ge
		case 6:
			op = ir.Ltu
		case 7:
			op = ir.Geu
		default:
			return nil, nil
		}

		cond := ir.BinCond{Op: op, L: regE(rs1), R: regE(rs2)}

		return []ir.Stmt{ir.Jump{Cond: cond, Then: ir.Addr(int32(pc) + immB(w)), Else: pc + 4}}, nil
	case 0x03: // loads
		var op ir.MemOp

		switch funct3 {
		case 0:
			op = ir.MemB
		case 1:
			op = ir.MemH
		case 2:
			op = ir.MemW
		case 4:
			op = ir.MemBU
		case 5:
			op = ir.MemHU
		default:
			return nil, nil
		}

		addr := ir.Bin{Op: ir.Add, L: regE(rs1), R: ir.Lit(immI(w))}

		return write(pc, rd, ir.LoadMem{Op: op, Addr: addr}), nil
	case 0x23: // stores
		var op ir.MemOp

		switch funct3 {
		case 0:
			op = ir.MemB
		case 1:
			op = ir.MemH
		case 2:
			op = ir.MemW
		default:
			return nil, nil
		}

		addr := ir.Bin{Op: ir.Add, L: regE(rs1), R: ir.Lit(immS(w))}

		return []ir.Stmt{ir.StoreMem{Op: op, Addr: addr, Val: regE(rs2)}}, nil
	case 0x13: // alu immediate
		e := aluImm(w, funct3, funct7, regE(rs1))
		if e == nil {
			return nil, nil
		}

		return write(pc, rd, e), nil
	case 0x33: // alu register
		e := aluReg(funct3, funct7, regE(rs1), regE(rs2))
		if e == nil {
			return nil, nil
		}

		return write(pc, rd, e), nil
	case 0x0f: // fence
		return fall(pc), nil
	case 0x73: // system
		switch w {
		case 0x00000073:
			return []ir.Stmt{ir.Syscall{Ret: pc + 4}}, nil
		case 0x00100073:
			return []ir.Stmt{ir.Break{}}, nil
		}

		return nil, nil
	}

	return nil, nil
}

func aluImm(w, funct3, funct7 uint32, rs1 ir.Expr) ir.Expr {
	imm := ir.Lit(immI(w))
	shamt := ir.Lit(w >> 20 & 31)

	switch funct3 {
	case 0:
		return ir.Bin{Op: ir.Add, L: rs1, R: imm}
	case 1:
		if funct7 != 0 {
			return nil
		}

		return ir.Bin{Op: ir.Sll, L: rs1, R: shamt}
	case 2:
		return ir.Bin{Op: ir.Slt, L: rs1, R: imm}
	case 3:
		return ir.Bin{Op: ir.Sltu, L: rs1, R: imm}
	case 4:
		return ir.Bin{Op: ir.Xor, L: rs1, R: imm}
	case 5:
		switch funct7 {
		case 0x00:
			return ir.Bin{Op: ir.Srl, L: rs1, R: shamt}
		case 0x20:
			return ir.Bin{Op: ir.Sra, L: rs1, R: shamt}
		}

		return nil
	case 6:
		return ir.Bin{Op: ir.Or, L: rs1, R: imm}
	case 7:
		return ir.Bin{Op: ir.And, L: rs1, R: imm}
	}

	return nil
}

func aluReg(funct3, funct7 uint32, rs1, rs2 ir.Expr) ir.Expr {
	if funct7 == 0x01 { // m extension
		switch funct3 {
		case 0:
			return ir.Bin{Op: ir.Mul, L: rs1, R: rs2}
		case 1:
			return ir.Bin{Op: ir.Mulh, L: rs1, R: rs2}
		case 2:
			// mulhsu a, b == mulhu a, b + (a >> 31) * b
			return ir.Bin{
				Op: ir.Add,
				L:  ir.Bin{Op: ir.Mulhu, L: rs1, R: rs2},
				R:  ir.Bin{Op: ir.Mul, L: ir.Bin{Op: ir.Sra, L: rs1, R: ir.Lit(31)}, R: rs2},
			}
		case 3:
			return ir.Bin{Op: ir.Mulhu, L: rs1, R: rs2}
		case 4:
			return ir.Bin{Op: ir.Div, L: rs1, R: rs2}
		case 5:
			return ir.Bin{Op: ir.Divu, L: rs1, R: rs2}
		case 6:
			return ir.Bin{Op: ir.Rem, L: rs1, R: rs2}
		case 7:
			return ir.Bin{Op: ir.Remu, L: rs1, R: rs2}
		}
	}

	var op ir.BinOp

	switch {
	case funct3 == 0 && funct7 == 0x00:
		op = ir.Add
	case funct3 == 0 && funct7 == 0x20:
		op = ir.Sub
	case funct3 == 1 && funct7 == 0x00:
		op = ir.Sll
	case funct3 == 2 && funct7 == 0x00:
		op = ir.Slt
	case funct3 == 3 && funct7 == 0x00:
		op = ir.Sltu
	case funct3 == 4 && funct7 == 0x00:
		op = ir.Xor
	case funct3 == 5 && funct7 == 0x00:
		op = ir.Srl
	case funct3 == 5 && funct7 == 0x20:
		op = ir.Sra
	case funct3 == 6 && funct7 == 0x00:
		op = ir.Or
	case funct3 == 7 && funct7 == 0x00:
		op = ir.And
	default:
		return nil
	}

	return ir.Bin{Op: op, L: rs1, R: rs2}
}

// regE reads machine register xn. x0 reads as zero.
func regE(n int) ir.Expr {
	if n == 0 {
		return ir.Lit(0)
	}

	return ir.LoadReg(ir.RegByX(n))
}

// write stores e into xn. A write to x0 has no effect, the instruction
// becomes a plain fall through so its address stays a valid jump target.
func write(pc ir.Addr, n int, e ir.Expr) []ir.Stmt {
	if n == 0 {
		return fall(pc)
	}

	return []ir.Stmt{ir.StoreReg{Reg: ir.RegByX(n), Expr: e}}
}

func link(rd int, pc ir.Addr) []ir.Stmt {
	if rd == 0 {
		return nil
	}

	return []ir.Stmt{ir.StoreReg{Reg: ir.RegByX(rd), Expr: ir.Lit(pc + 4)}}
}

func fall(pc ir.Addr) []ir.Stmt {
	return []ir.Stmt{ir.Jump{Cond: ir.LitCond(true), Then: pc + 4, Else: pc + 4}}
}

func immI(w uint32) int32 {
	return int32(w) >> 20
}

func immU(w uint32) int32 {
	return int32(w & 0xfffff000)
}

func immS(w uint32) int32 {
	return int32(w&0xfe000000)>>20 | int32(w>>7&0x1f)
}

func immB(w uint32) int32 {
	return int32(w&0x80000000)>>19 | int32(w&0x80)<<4 | int32(w>>20&0x7e0) | int32(w>>7&0x1e)
}

func immJ(w uint32) int32 {
	return int32(w&0x80000000)>>11 | int32(w&0xff000) | int32(w>>9&0x800) | int32(w>>20&0x7fe)
}
