package opt

import (
	"math"

	"github.com/slowlang/rvlift/translator/ir"
)

// ConstFold rewrites e into its simplest equivalent form.
// One round moves literals to the left of commutative operators,
// re-parenthesizes right leaning chains of associative operators into left
// leaning ones so adjacent literals cluster, folds literal subtrees and
// applies algebraic identities. Rounds repeat until the tree stops changing.
func ConstFold(e ir.Expr) ir.Expr {
	for {
		e1 := constFold(associate(commute(e)))
		if e1 == e {
			return e1
		}

		e = e1
	}
}

// ConstFoldCond folds a condition the same way ConstFold folds expressions.
func ConstFoldCond(c ir.Cond) ir.Cond {
	for {
		c1 := condFold(c)
		if c1 == c {
			return c1
		}

		c = c1
	}
}

func commutative(op ir.BinOp) bool {
	switch op {
	case ir.Add, ir.Mul, ir.Mulh, ir.Mulhu, ir.And, ir.Or, ir.Xor:
		return true
	}

	return false
}

func associative(op ir.BinOp) bool {
	switch op {
	case ir.Add, ir.Mul, ir.And, ir.Or, ir.Xor:
		return true
	}

	return false
}

func commute(e ir.Expr) ir.Expr {
	switch e := e.(type) {
	case ir.Un:
		return ir.Un{Op: e.Op, X: commute(e.X)}
	case ir.LoadMem:
		return ir.LoadMem{Op: e.Op, Addr: commute(e.Addr)}
	case ir.Bin:
		if l, ok := e.R.(ir.Lit); ok && commutative(e.Op) {
			if _, lit := e.L.(ir.Lit); !lit {
				return ir.Bin{Op: e.Op, L: l, R: commute(e.L)}
			}
		}

		return ir.Bin{Op: e.Op, L: commute(e.L), R: commute(e.R)}
	}

	return e
}

func associate(e ir.Expr) ir.Expr {
	switch e := e.(type) {
	case ir.Un:
		return ir.Un{Op: e.Op, X: associate(e.X)}
	case ir.LoadMem:
		return ir.LoadMem{Op: e.Op, Addr: associate(e.Addr)}
	case ir.Bin:
		l, r := associate(e.L), associate(e.R)

		if rb, ok := r.(ir.Bin); ok && rb.Op == e.Op && associative(e.Op) {
			return ir.Bin{Op: e.Op, L: ir.Bin{Op: e.Op, L: l, R: rb.L}, R: rb.R}
		}

		return ir.Bin{Op: e.Op, L: l, R: r}
	}

	return e
}

func constFold(e ir.Expr) ir.Expr {
	switch e := e.(type) {
	case ir.Un:
		x := constFold(e.X)

		if l, ok := x.(ir.Lit); ok {
			return ir.Lit(evalUn(e.Op, int32(l)))
		}

		if u, ok := x.(ir.Un); ok && u.Op == e.Op {
			return u.X
		}

		return ir.Un{Op: e.Op, X: x}
	case ir.LoadMem:
		return ir.LoadMem{Op: e.Op, Addr: constFold(e.Addr)}
	case ir.Bin:
		return binFold(e.Op, constFold(e.L), constFold(e.R))
	}

	return e
}

func binFold(op ir.BinOp, l, r ir.Expr) ir.Expr {
	ll, llit := l.(ir.Lit)
	rl, rlit := r.(ir.Lit)

	if llit && rlit {
		return ir.Lit(evalBin(op, int32(ll), int32(rl)))
	}

	switch op {
	case ir.Add:
		if llit && ll == 0 {
			return r
		}
		if rlit && rl == 0 {
			return l
		}
		if n, ok := r.(ir.Un); ok && n.Op == ir.Neg {
			return ir.Bin{Op: ir.Sub, L: l, R: n.X}
		}
		if n, ok := l.(ir.Un); ok && n.Op == ir.Neg {
			return ir.Bin{Op: ir.Sub, L: r, R: n.X}
		}
	case ir.Sub:
		if rlit && rl == 0 {
			return l
		}
		if llit && ll == 0 {
			return ir.Un{Op: ir.Neg, X: r}
		}
		if l == r {
			return ir.Lit(0)
		}
		if n, ok := r.(ir.Un); ok && n.Op == ir.Neg {
			return ir.Bin{Op: ir.Add, L: l, R: n.X}
		}
	case ir.Mul:
		if llit {
			switch ll {
			case 1:
				return r
			case 0:
				return ir.Lit(0)
			case -1:
				return ir.Un{Op: ir.Neg, X: r}
			}
		}
	case ir.Mulh:
		if llit && ll == 0 {
			return ir.Lit(0)
		}
	case ir.Mulhu:
		// the high unsigned word of 1*x is zero for any 32-bit x
		if llit && (ll == 0 || ll == 1) {
			return ir.Lit(0)
		}
	case ir.Div, ir.Divu:
		if rlit && rl == 1 {
			return l
		}
	case ir.Rem:
		if rlit && (rl == 1 || rl == -1) {
			return ir.Lit(0)
		}
	case ir.Remu:
		if rlit && rl == 1 {
			return ir.Lit(0)
		}
	case ir.And:
		if llit && ll == -1 {
			return r
		}
		if llit && ll == 0 {
			return ir.Lit(0)
		}
	case ir.Or:
		if llit && ll == -1 {
			return ir.Lit(-1)
		}
		if llit && ll == 0 {
			return r
		}
	case ir.Xor:
		if llit && ll == -1 {
			return ir.Un{Op: ir.Not, X: r}
		}
		if llit && ll == 0 {
			return r
		}
	case ir.Sll, ir.Srl, ir.Sra:
		if rlit && rl == 0 {
			return l
		}
	case ir.Slt:
		if l == r {
			return ir.Lit(0)
		}
	case ir.Sltu:
		if l == r || rlit && rl == 0 {
			return ir.Lit(0)
		}
	}

	return ir.Bin{Op: op, L: l, R: r}
}

func condFold(c ir.Cond) ir.Cond {
	bc, ok := c.(ir.BinCond)
	if !ok {
		return c
	}

	l, r := ConstFold(bc.L), ConstFold(bc.R)

	ll, llit := l.(ir.Lit)
	rl, rlit := r.(ir.Lit)

	if llit && rlit {
		return ir.LitCond(evalCond(bc.Op, int32(ll), int32(rl)))
	}

	if bc.Op == ir.Eq && l == r {
		return ir.LitCond(true)
	}

	// a set-if-less compared against zero is the comparison itself
	if bc.Op == ir.Eq || bc.Op == ir.Ne {
		set, zero := l, r

		if llit && ll == 0 {
			set, zero = r, l
		}

		if z, ok := zero.(ir.Lit); ok && z == 0 {
			if b, ok := set.(ir.Bin); ok && (b.Op == ir.Slt || b.Op == ir.Sltu) {
				op := condOfSet(b.Op, bc.Op)

				return ir.BinCond{Op: op, L: b.L, R: b.R}
			}
		}
	}

	if rlit && rl == 0 {
		switch bc.Op {
		case ir.Ltu:
			return ir.LitCond(false)
		case ir.Geu:
			return ir.LitCond(true)
		}
	}

	return ir.BinCond{Op: bc.Op, L: l, R: r}
}

// condOfSet maps slt/sltu tested against zero to the direct condition.
// x != 0 keeps the comparison sense, x == 0 inverts it.
func condOfSet(set ir.BinOp, test ir.CondOp) ir.CondOp {
	switch {
	case set == ir.Slt && test == ir.Ne:
		return ir.Lt
	case set == ir.Slt && test == ir.Eq:
		return ir.Ge
	case set == ir.Sltu && test == ir.Ne:
		return ir.Ltu
	default:
		return ir.Geu
	}
}

func evalUn(op ir.UnOp, x int32) int32 {
	if op == ir.Neg {
		return -x
	}

	return ^x
}

// evalBin replicates the guest alu exactly, including the defined
// division corner cases and shift amount masking.
func evalBin(op ir.BinOp, a, b int32) int32 {
	switch op {
	case ir.Add:
		return a + b
	case ir.Sub:
		return a - b
	case ir.Mul:
		return a * b
	case ir.Mulh:
		return int32(int64(a) * int64(b) >> 32)
	case ir.Mulhu:
		return int32(uint64(uint32(a)) * uint64(uint32(b)) >> 32)
	case ir.Div:
		switch {
		case b == 0:
			return -1
		case a == math.MinInt32 && b == -1:
			return math.MinInt32
		}

		return a / b
	case ir.Divu:
		if b == 0 {
			return -1
		}

		return int32(uint32(a) / uint32(b))
	case ir.Rem:
		switch {
		case b == 0:
			return a
		case a == math.MinInt32 && b == -1:
			return 0
		}

		return a % b
	case ir.Remu:
		if b == 0 {
			return a
		}

		return int32(uint32(a) % uint32(b))
	case ir.And:
		return a & b
	case ir.Or:
		return a | b
	case ir.Xor:
		return a ^ b
	case ir.Sll:
		return a << (uint32(b) & 31)
	case ir.Srl:
		return int32(uint32(a) >> (uint32(b) & 31))
	case ir.Sra:
		return a >> (uint32(b) & 31)
	case ir.Slt:
		if a < b {
			return 1
		}

		return 0
	case ir.Sltu:
		if uint32(a) < uint32(b) {
			return 1
		}

		return 0
	}

	panic(op)
}

func evalCond(op ir.CondOp, a, b int32) bool {
	switch op {
	case ir.Eq:
		return a == b
	case ir.Ne:
		return a != b
	case ir.Lt:
		return a < b
	case ir.Ltu:
		return uint32(a) < uint32(b)
	case ir.Ge:
		return a >= b
	case ir.Geu:
		return uint32(a) >= uint32(b)
	}

	panic(op)
}
