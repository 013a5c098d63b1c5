package opt

import (
	"github.com/slowlang/rvlift/translator/ir"
	"github.com/slowlang/rvlift/translator/region"
)

// substBlock inlines Let bindings into the statements that read them.
//
// A binding is inlined when doing so cannot change what its expression
// reads (no data hazard) and either the expression is trivial to
// recompute or it is read at most once.
func substBlock(b *ir.Block) *ir.Block {
	code := clone(b.Code)

	for i := 0; i < len(code); i++ {
		let, ok := code[i].(ir.Let)
		if !ok {
			continue
		}

		rest := code[i+1:]

		if !substSafe(rest, let) {
			continue
		}

		if !simple(let.Expr) && uses(rest, let.Name) > 1 {
			continue
		}

		for k, s := range rest {
			rest[k] = replaceVar(s, let.Name, let.Expr)
		}

		code = append(code[:i], rest...)
		i--
	}

	return &ir.Block{Code: code, Slots: b.Slots}
}

// substSafe reports whether inlining let past rest keeps its value.
// The first statement overwriting anything the bound expression reads is
// located; a reference to the binding strictly after that point would
// recompute the expression from clobbered state.
func substSafe(rest []ir.Stmt, let ir.Let) bool {
	rd := region.ReadExpr(let.Expr)

	hazard := -1

	for k, s := range rest {
		if region.WriteStmt(s).Overlaps(rd) {
			hazard = k
			break
		}
	}

	if hazard < 0 {
		return true
	}

	return uses(rest[hazard+1:], let.Name) == 0
}

func simple(e ir.Expr) bool {
	switch e.(type) {
	case ir.Lit, ir.Var, ir.LoadReg:
		return true
	}

	return false
}

func uses(rest []ir.Stmt, v ir.Name) (n int) {
	for _, s := range rest {
		ir.VisitStmt(s, func(e ir.Expr) {
			if x, ok := e.(ir.Var); ok && ir.Name(x) == v {
				n++
			}
		})
	}

	return n
}

func replaceVar(s ir.Stmt, v ir.Name, val ir.Expr) ir.Stmt {
	f := func(e ir.Expr) ir.Expr {
		if x, ok := e.(ir.Var); ok && ir.Name(x) == v {
			return val
		}

		return e
	}

	return ir.MapStmt(s, func(e ir.Expr) ir.Expr { return ir.MapExpr(e, f) })
}
