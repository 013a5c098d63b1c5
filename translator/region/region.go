package region

import (
	"tlog.app/go/tlog/tlwire"

	"github.com/slowlang/rvlift/translator/ir"
)

// Region is a set of guest storage locations.
// Bit 0 stands for any memory location, bits 1..31 for the registers,
// indexed by their ir.Reg tag. The universe is fixed and small, so the
// whole set fits one word and all operations are single instructions.
type Region uint64

const (
	Mem Region = 1 << 0

	// All is the syscall footprint. Every bit of the word is set so it
	// overlaps anything ever added to the universe.
	All Region = ^Region(0)
)

func Of(r ir.Reg) Region {
	return 1 << uint(r)
}

func (r Region) Union(x Region) Region { return r | x }

func (r Region) Diff(x Region) Region { return r &^ x }

func (r Region) Overlaps(x Region) bool { return r&x != 0 }

func (r Region) Empty() bool { return r == 0 }

// ReadExpr is the set of locations e may read.
func ReadExpr(e ir.Expr) (r Region) {
	switch e := e.(type) {
	case ir.Lit, ir.Var:
	case ir.LoadReg:
		r = Of(ir.Reg(e))
	case ir.LoadMem:
		r = Mem.Union(ReadExpr(e.Addr))
	case ir.Un:
		r = ReadExpr(e.X)
	case ir.Bin:
		r = ReadExpr(e.L).Union(ReadExpr(e.R))
	}

	return r
}

// ReadCond is the set of locations c may read.
func ReadCond(c ir.Cond) (r Region) {
	if c, ok := c.(ir.BinCond); ok {
		r = ReadExpr(c.L).Union(ReadExpr(c.R))
	}

	return r
}

// ReadStmt is the set of locations s may read.
func ReadStmt(s ir.Stmt) (r Region) {
	switch s := s.(type) {
	case ir.Let:
		r = ReadExpr(s.Expr)
	case ir.StoreReg:
		r = ReadExpr(s.Expr)
	case ir.StoreMem:
		r = ReadExpr(s.Addr).Union(ReadExpr(s.Val))
	case ir.Jump:
		r = ReadCond(s.Cond)
	case ir.IndirectJump:
		r = ReadExpr(s.Dst)
	case ir.Syscall:
		r = All
	case ir.Break:
	}

	return r
}

// WriteStmt is the set of locations s may write.
func WriteStmt(s ir.Stmt) (r Region) {
	switch s := s.(type) {
	case ir.StoreReg:
		r = Of(s.Reg)
	case ir.StoreMem:
		r = Mem
	case ir.Syscall:
		r = All
	}

	return r
}

func (r Region) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	b = e.AppendTag(b, tlwire.Array, -1)

	for i := 0; i < 64; i++ {
		if r&(1<<i) != 0 {
			b = e.AppendInt(b, i)
		}
	}

	b = e.AppendBreak(b)

	return b
}
