package opt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slowlang/rvlift/translator/ir"
)

func a0() ir.Expr { return ir.LoadReg(ir.A0) }
func a1() ir.Expr { return ir.LoadReg(ir.A1) }

func TestFoldIdentities(t *testing.T) {
	for _, tc := range []struct {
		name string
		in   ir.Expr
		out  ir.Expr
	}{
		{"add zero", ir.Bin{Op: ir.Add, L: ir.Lit(0), R: a0()}, a0()},
		{"sub self", ir.Bin{Op: ir.Sub, L: a0(), R: a0()}, ir.Lit(0)},
		{"sub zero", ir.Bin{Op: ir.Sub, L: a0(), R: ir.Lit(0)}, a0()},
		{"sub from zero", ir.Bin{Op: ir.Sub, L: ir.Lit(0), R: a0()}, ir.Un{Op: ir.Neg, X: a0()}},
		{"add neg", ir.Bin{Op: ir.Add, L: a0(), R: ir.Un{Op: ir.Neg, X: a1()}}, ir.Bin{Op: ir.Sub, L: a0(), R: a1()}},
		{"sub neg", ir.Bin{Op: ir.Sub, L: a0(), R: ir.Un{Op: ir.Neg, X: a1()}}, ir.Bin{Op: ir.Add, L: a0(), R: a1()}},
		{"neg neg", ir.Un{Op: ir.Neg, X: ir.Un{Op: ir.Neg, X: a0()}}, a0()},
		{"not not", ir.Un{Op: ir.Not, X: ir.Un{Op: ir.Not, X: a0()}}, a0()},
		{"mul one", ir.Bin{Op: ir.Mul, L: ir.Lit(1), R: a0()}, a0()},
		{"mul zero", ir.Bin{Op: ir.Mul, L: a0(), R: ir.Lit(0)}, ir.Lit(0)},
		{"mul minus one", ir.Bin{Op: ir.Mul, L: ir.Lit(-1), R: a0()}, ir.Un{Op: ir.Neg, X: a0()}},
		{"mulhu one", ir.Bin{Op: ir.Mulhu, L: ir.Lit(1), R: a0()}, ir.Lit(0)},
		{"div one", ir.Bin{Op: ir.Div, L: a0(), R: ir.Lit(1)}, a0()},
		{"rem one", ir.Bin{Op: ir.Rem, L: a0(), R: ir.Lit(1)}, ir.Lit(0)},
		{"rem minus one", ir.Bin{Op: ir.Rem, L: a0(), R: ir.Lit(-1)}, ir.Lit(0)},
		{"and ones", ir.Bin{Op: ir.And, L: ir.Lit(-1), R: a0()}, a0()},
		{"and zero", ir.Bin{Op: ir.And, L: a0(), R: ir.Lit(0)}, ir.Lit(0)},
		{"or ones", ir.Bin{Op: ir.Or, L: a0(), R: ir.Lit(-1)}, ir.Lit(-1)},
		{"or zero", ir.Bin{Op: ir.Or, L: ir.Lit(0), R: a0()}, a0()},
		{"xor ones", ir.Bin{Op: ir.Xor, L: ir.Lit(-1), R: a0()}, ir.Un{Op: ir.Not, X: a0()}},
		{"xor zero", ir.Bin{Op: ir.Xor, L: a0(), R: ir.Lit(0)}, a0()},
		{"shift zero", ir.Bin{Op: ir.Sll, L: a0(), R: ir.Lit(0)}, a0()},
		{"sra zero", ir.Bin{Op: ir.Sra, L: a0(), R: ir.Lit(0)}, a0()},
		{"slt self", ir.Bin{Op: ir.Slt, L: a0(), R: a0()}, ir.Lit(0)},
		{"sltu zero", ir.Bin{Op: ir.Sltu, L: a0(), R: ir.Lit(0)}, ir.Lit(0)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.out, ConstFold(tc.in))
		})
	}
}

func TestFoldClustersLiterals(t *testing.T) {
	in := ir.Bin{Op: ir.Add, L: a0(), R: ir.Bin{Op: ir.Add, L: ir.Lit(1), R: ir.Lit(2)}}

	assert.Equal(t, ir.Bin{Op: ir.Add, L: ir.Lit(3), R: a0()}, ConstFold(in))

	// literals meet across a right leaning chain
	in = ir.Bin{Op: ir.Add, L: ir.Lit(5), R: ir.Bin{Op: ir.Add, L: a0(), R: ir.Lit(7)}}

	assert.Equal(t, ir.Bin{Op: ir.Add, L: ir.Lit(12), R: a0()}, ConstFold(in))
}

func TestFoldLiterals(t *testing.T) {
	for _, tc := range []struct {
		op   ir.BinOp
		a, b int32
		want int32
	}{
		{ir.Add, math.MaxInt32, 1, math.MinInt32},
		{ir.Sub, math.MinInt32, 1, math.MaxInt32},
		{ir.Mul, 0x10000, 0x10000, 0},
		{ir.Mulh, math.MinInt32, math.MinInt32, 0x40000000},
		{ir.Mulh, -1, -1, 0},
		{ir.Mulhu, -1, -1, -2},
		{ir.Div, 7, 2, 3},
		{ir.Div, -7, 2, -3},
		{ir.Div, 7, 0, -1},
		{ir.Div, math.MinInt32, -1, math.MinInt32},
		{ir.Divu, -1, 2, math.MaxInt32},
		{ir.Divu, 7, 0, -1},
		{ir.Rem, -7, 2, -1},
		{ir.Rem, 7, 0, 7},
		{ir.Rem, math.MinInt32, -1, 0},
		{ir.Remu, -1, 16, 15},
		{ir.Remu, 7, 0, 7},
		{ir.Sll, 1, 33, 2},
		{ir.Srl, -2, 1, math.MaxInt32},
		{ir.Sra, -2, 1, -1},
		{ir.Slt, -1, 0, 1},
		{ir.Sltu, -1, 0, 0},
		{ir.Sltu, 0, -1, 1},
	} {
		got := ConstFold(ir.Bin{Op: tc.op, L: ir.Lit(tc.a), R: ir.Lit(tc.b)})

		assert.Equal(t, ir.Lit(tc.want), got, "%v %d %d", tc.op, tc.a, tc.b)
	}
}

func TestFoldCond(t *testing.T) {
	// a set-if-less tested against zero becomes the comparison
	c := ir.BinCond{Op: ir.Ne, L: ir.Bin{Op: ir.Sltu, L: a0(), R: a1()}, R: ir.Lit(0)}
	assert.Equal(t, ir.BinCond{Op: ir.Ltu, L: a0(), R: a1()}, ConstFoldCond(c))

	c = ir.BinCond{Op: ir.Eq, L: ir.Bin{Op: ir.Sltu, L: a0(), R: a1()}, R: ir.Lit(0)}
	assert.Equal(t, ir.BinCond{Op: ir.Geu, L: a0(), R: a1()}, ConstFoldCond(c))

	c = ir.BinCond{Op: ir.Ne, L: ir.Bin{Op: ir.Slt, L: a0(), R: a1()}, R: ir.Lit(0)}
	assert.Equal(t, ir.BinCond{Op: ir.Lt, L: a0(), R: a1()}, ConstFoldCond(c))

	c = ir.BinCond{Op: ir.Eq, L: ir.Bin{Op: ir.Slt, L: a0(), R: a1()}, R: ir.Lit(0)}
	assert.Equal(t, ir.BinCond{Op: ir.Ge, L: a0(), R: a1()}, ConstFoldCond(c))

	assert.Equal(t, ir.LitCond(true), ConstFoldCond(ir.BinCond{Op: ir.Eq, L: a0(), R: a0()}))
	assert.Equal(t, ir.LitCond(false), ConstFoldCond(ir.BinCond{Op: ir.Ltu, L: a0(), R: ir.Lit(0)}))
	assert.Equal(t, ir.LitCond(true), ConstFoldCond(ir.BinCond{Op: ir.Geu, L: a0(), R: ir.Lit(0)}))
	assert.Equal(t, ir.LitCond(true), ConstFoldCond(ir.BinCond{Op: ir.Lt, L: ir.Lit(-1), R: ir.Lit(0)}))
	assert.Equal(t, ir.LitCond(false), ConstFoldCond(ir.BinCond{Op: ir.Ltu, L: ir.Lit(-1), R: ir.Lit(0)}))
}
