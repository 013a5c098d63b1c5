package opt

import (
	"github.com/slowlang/rvlift/translator/ir"
)

// constPropBlock propagates known register constants forward through the
// block. The environment maps registers to the literal last stored into
// them, a store of anything else invalidates the register.
func constPropBlock(b *ir.Block) *ir.Block {
	code := clone(b.Code)
	env := map[ir.Reg]int32{}

	sub := func(e ir.Expr) ir.Expr {
		return ir.MapExpr(e, func(e ir.Expr) ir.Expr {
			if lr, ok := e.(ir.LoadReg); ok {
				if n, ok := env[ir.Reg(lr)]; ok {
					return ir.Lit(n)
				}
			}

			return e
		})
	}

	for i, s := range code {
		st, ok := s.(ir.StoreReg)
		if !ok {
			code[i] = ir.MapStmt(s, sub)
			continue
		}

		if n, ok := st.Expr.(ir.Lit); ok {
			env[st.Reg] = int32(n)
			continue
		}

		code[i] = ir.StoreReg{Reg: st.Reg, Expr: sub(st.Expr)}
		delete(env, st.Reg)
	}

	return &ir.Block{Code: code, Slots: b.Slots}
}

// cleanBlock drops stores of a register to itself, substitution leaves
// them behind.
func cleanBlock(b *ir.Block) *ir.Block {
	code := make([]ir.Stmt, 0, len(b.Code))

	for _, s := range b.Code {
		if st, ok := s.(ir.StoreReg); ok {
			if lr, ok := st.Expr.(ir.LoadReg); ok && ir.Reg(lr) == st.Reg {
				continue
			}
		}

		code = append(code, s)
	}

	return &ir.Block{Code: code, Slots: b.Slots}
}
