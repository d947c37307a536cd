package maker

import "github.com/chazu/jmaker/bytecode"

// reduce removes redundant instructions in one backward scan: gotos to the
// next instruction, conditional jumps over a goto, stores nobody reads
// (with the push that fed them) and store/load pairs of single-use
// temporaries. Named variables and parameters are never touched.
func (m *MethodMaker) reduce() {
	removed := 0
	for o := m.main.tail; o != nil; {
		prev := o.node().prev
		switch x := o.(type) {
		case *branchOp:
			if x.code == bytecode.OpGoto {
				if _, found := nextInstruction(x, x.target); found {
					m.main.remove(x)
					removed++
				}
				break
			}
			g, ok := nextCode(x).(*branchOp)
			if !ok || g.code != bytecode.OpGoto {
				break
			}
			if _, found := nextInstruction(g, x.target); found {
				x.code = bytecode.FlipIf(x.code)
				x.target = g.target
				m.main.remove(g)
				removed++
			}
		case *storeOp:
			info := m.vars[x.v]
			if info.name != "" || info.param != localVar {
				break
			}
			switch info.loads {
			case 0:
				if p := prevCode(x); p != nil && isPush(p) {
					prev = p.node().prev
					if l, ok := p.(*loadOp); ok {
						m.vars[l.v].loads--
					}
					m.main.remove(p)
					m.main.remove(x)
					removed += 2
					break
				}
				pop := popFor(info)
				m.main.replace(x, pop, pop)
				removed++
			case 1:
				if l, ok := nextCode(x).(*loadOp); ok && l.v == x.v {
					m.main.remove(l)
					m.main.remove(x)
					info.loads = 0
					removed += 2
				}
			}
		}
		o = prev
	}

	// Stores orphaned by the pairs removed above.
	for o := m.main.head; o != nil; {
		next := o.node().next
		if x, ok := o.(*storeOp); ok {
			info := m.vars[x.v]
			if info.name == "" && info.param == localVar && info.loads == 0 {
				pop := popFor(info)
				m.main.replace(x, pop, pop)
				removed++
			}
		}
		o = next
	}
	if removed > 0 {
		log.Debugf("%s: reduced %d instructions", m, removed)
	}
}

func popFor(info *varInfo) op {
	if info.typ.IsWide() {
		return &codeOp{code: bytecode.OpPOP2, pops: 1}
	}
	return &codeOp{code: bytecode.OpPop, pops: 1}
}

// nextCode returns the op directly after o, skipping only line markers.
func nextCode(o op) op {
	for o = o.node().next; o != nil; o = o.node().next {
		if _, ok := o.(*lineOp); !ok {
			return o
		}
	}
	return nil
}

// prevCode returns the op directly before o, skipping only line markers.
func prevCode(o op) op {
	for o = o.node().prev; o != nil; o = o.node().prev {
		if _, ok := o.(*lineOp); !ok {
			return o
		}
	}
	return nil
}
