package opt

import (
	"fmt"

	"github.com/slowlang/rvlift/translator/ir"
)

// liftBlock turns every register store shadowed by a later store to the
// same register into a Let. The store was only feeding reads inside the
// block, as a Let its value is visible to substitution and folding.
func liftBlock(b *ir.Block) *ir.Block {
	code := clone(b.Code)
	n := 0

	for i, s := range code {
		st, ok := s.(ir.StoreReg)
		if !ok || !shadowed(code[i+1:], st.Reg) {
			continue
		}

		v := ir.Name(fmt.Sprintf("nf_var_%d", n))
		n++

		code[i] = ir.Let{Name: v, Expr: st.Expr}

		renameReads(code[i+1:], st.Reg, v)
	}

	return &ir.Block{Code: code, Slots: b.Slots}
}

func shadowed(rest []ir.Stmt, r ir.Reg) bool {
	for _, s := range rest {
		if st, ok := s.(ir.StoreReg); ok && st.Reg == r {
			return true
		}
	}

	return false
}

// renameReads rewrites reads of r to v up to and including the next store
// to r. The rhs of that store still reads the old value, so it is rewritten
// too, everything after it refers to the new one.
func renameReads(rest []ir.Stmt, r ir.Reg, v ir.Name) {
	f := func(e ir.Expr) ir.Expr {
		if lr, ok := e.(ir.LoadReg); ok && ir.Reg(lr) == r {
			return ir.Var(v)
		}

		return e
	}

	for k, s := range rest {
		rest[k] = ir.MapStmt(s, func(e ir.Expr) ir.Expr { return ir.MapExpr(e, f) })

		if st, ok := s.(ir.StoreReg); ok && st.Reg == r {
			return
		}
	}
}

func clone(code []ir.Stmt) []ir.Stmt {
	return append([]ir.Stmt{}, code...)
}
