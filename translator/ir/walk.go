package ir

// MapExpr rewrites e bottom up, applying f to every node.
func MapExpr(e Expr, f func(Expr) Expr) Expr {
	switch x := e.(type) {
	case LoadMem:
		e = LoadMem{Op: x.Op, Addr: MapExpr(x.Addr, f)}
	case Un:
		e = Un{Op: x.Op, X: MapExpr(x.X, f)}
	case Bin:
		e = Bin{Op: x.Op, L: MapExpr(x.L, f), R: MapExpr(x.R, f)}
	}

	return f(e)
}

// MapCond applies f to every expression operand of c.
func MapCond(c Cond, f func(Expr) Expr) Cond {
	switch c := c.(type) {
	case BinCond:
		return BinCond{Op: c.Op, L: f(c.L), R: f(c.R)}
	}

	return c
}

// MapStmt applies f to every expression operand of s,
// including the operands of a Jump condition.
func MapStmt(s Stmt, f func(Expr) Expr) Stmt {
	switch s := s.(type) {
	case Let:
		return Let{Name: s.Name, Expr: f(s.Expr)}
	case StoreReg:
		return StoreReg{Reg: s.Reg, Expr: f(s.Expr)}
	case StoreMem:
		return StoreMem{Op: s.Op, Addr: f(s.Addr), Val: f(s.Val)}
	case Jump:
		return Jump{Cond: MapCond(s.Cond, f), Then: s.Then, Else: s.Else}
	case IndirectJump:
		return IndirectJump{Dst: f(s.Dst)}
	}

	return s
}

// VisitExpr calls f for every node of e in preorder.
func VisitExpr(e Expr, f func(Expr)) {
	f(e)

	switch x := e.(type) {
	case LoadMem:
		VisitExpr(x.Addr, f)
	case Un:
		VisitExpr(x.X, f)
	case Bin:
		VisitExpr(x.L, f)
		VisitExpr(x.R, f)
	}
}

// VisitStmt calls f for every expression node of s.
func VisitStmt(s Stmt, f func(Expr)) {
	switch s := s.(type) {
	case Let:
		VisitExpr(s.Expr, f)
	case StoreReg:
		VisitExpr(s.Expr, f)
	case StoreMem:
		VisitExpr(s.Addr, f)
		VisitExpr(s.Val, f)
	case Jump:
		if c, ok := s.Cond.(BinCond); ok {
			VisitExpr(c.L, f)
			VisitExpr(c.R, f)
		}
	case IndirectJump:
		VisitExpr(s.Dst, f)
	}
}
