package alloc

import (
	"github.com/slowlang/rvlift/translator/ir"
)

// Assign maps every Let variable of the block to a target language local
// slot. Variables with overlapping live ranges get distinct slots,
// disjoint ranges reuse them. Ranges span from the Let to the last read.
func Assign(b *ir.Block) *ir.Block {
	def := map[ir.Name]int{}
	last := map[ir.Name]int{}
	var order []ir.Name

	for i, s := range b.Code {
		if l, ok := s.(ir.Let); ok {
			def[l.Name] = i
			last[l.Name] = i
			order = append(order, l.Name)
		}

		i := i

		ir.VisitStmt(s, func(e ir.Expr) {
			if v, ok := e.(ir.Var); ok {
				last[ir.Name(v)] = i
			}
		})
	}

	if order == nil {
		return b
	}

	slots := make(map[ir.Name]int, len(order))

	var free []int
	var act []ir.Name
	next := 0

	for _, v := range order {
		kept := act[:0]

		for _, a := range act {
			if last[a] < def[v] {
				free = append(free, slots[a])
			} else {
				kept = append(kept, a)
			}
		}

		act = append(kept, v)

		s := next

		if len(free) != 0 {
			m := 0

			for i := range free {
				if free[i] < free[m] {
					m = i
				}
			}

			s = free[m]
			free = append(free[:m], free[m+1:]...)
		} else {
			next++
		}

		slots[v] = s
	}

	return &ir.Block{Code: b.Code, Slots: slots}
}

// Slots returns the number of distinct slots the block uses.
func Slots(b *ir.Block) (n int) {
	for _, s := range b.Slots {
		if s >= n {
			n = s + 1
		}
	}

	return n
}
