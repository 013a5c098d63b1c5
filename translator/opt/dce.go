package opt

import (
	"fmt"

	"github.com/slowlang/rvlift/translator/ir"
	"github.com/slowlang/rvlift/translator/region"
)

// dceBlock demotes register stores that nothing after the block reads.
// The store becomes a Let so reads inside the block keep working, a
// following simplifier round then inlines or drops it.
func dceBlock(b *ir.Block, liveOut region.Region) *ir.Block {
	code := clone(b.Code)
	n := 0

	for i, s := range code {
		st, ok := s.(ir.StoreReg)
		if !ok || region.Of(st.Reg).Overlaps(liveOut) {
			continue
		}

		v := ir.Name(fmt.Sprintf("dead_var_%d", n))
		n++

		code[i] = ir.Let{Name: v, Expr: st.Expr}

		renameReads(code[i+1:], st.Reg, v)
	}

	return &ir.Block{Code: code, Slots: b.Slots}
}
