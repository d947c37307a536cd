package maker

import (
	"github.com/chazu/jmaker/bytecode"
	"github.com/chazu/jmaker/jtype"
)

type flowEntry struct {
	label    int
	assigned bitset
}

// flow walks every reachable path, checking definite assignment and
// handler entry, then removes unreachable code and recounts loads.
func (m *MethodMaker) flow() {
	initial := newBitset(len(m.vars))
	if m.thisVar != nil {
		initial.set(m.thisVar.id)
	}
	for _, p := range m.paramVars {
		initial.set(p.id)
	}

	var work []flowEntry
	enqueue := func(target int, set bitset, viaHandler bool) {
		info := m.labels[target]
		if !info.positioned || info.op.prev == nil && m.main.head != op(info.op) {
			fail(m.String(), ErrUnpositionedLabel)
		}
		if info.handler && !viaHandler {
			failf(m.String(), ErrHandlerFallthrough, "branch into exception handler")
		}
		work = append(work, flowEntry{label: target, assigned: set})
	}

	m.walk(m.main.head, initial, enqueue)
	for len(work) > 0 {
		e := work[len(work)-1]
		work = work[:len(work)-1]
		m.walk(m.labels[e.label].op, e.assigned, enqueue)
	}

	// Drop unreachable code and regions whose handler is never entered.
	for o := m.main.head; o != nil; {
		next := o.node().next
		if _, ok := o.(*labelOp); !ok && !o.node().visited {
			m.main.remove(o)
		}
		o = next
	}
	live := m.regions[:0]
	for _, r := range m.regions {
		if m.labels[r.handler].reached {
			live = append(live, r)
		}
	}
	m.regions = live

	for _, v := range m.vars {
		v.loads = 0
	}
	for o := m.main.head; o != nil; o = o.node().next {
		switch x := o.(type) {
		case *loadOp:
			m.vars[x.v].loads++
		case *incOp:
			m.vars[x.v].loads++
		}
	}
}

// walk follows straight-line code from start with the given set of
// definitely assigned variables.
func (m *MethodMaker) walk(start op, set bitset, enqueue func(int, bitset, bool)) {
	set = set.clone()
	for o := start; o != nil; o = o.node().next {
		switch x := o.(type) {
		case *labelOp:
			info := m.labels[x.label]
			if info.handler && o != start {
				failf(m.String(), ErrHandlerFallthrough, "code falls into exception handler")
			}
			if info.reached {
				if !info.assigned.intersect(set) && o.node().visited {
					return
				}
				set = info.assigned.clone()
			} else {
				info.reached = true
				info.assigned = set.clone()
			}
		case *loadOp:
			m.checkAssigned(set, x.v)
		case *incOp:
			m.checkAssigned(set, x.v)
		case *storeOp:
			set.set(x.v)
		case *handlerFlowOp:
			enqueue(x.handler, set.clone(), true)
		case *branchOp:
			if x.code == bytecode.OpGoto {
				x.visited = true
				enqueue(x.target, set, false)
				return
			}
			x.assigned = set.clone()
			enqueue(x.target, x.assigned.clone(), false)
		case *switchOp:
			x.visited = true
			enqueue(x.dflt, set.clone(), false)
			for _, t := range x.targets {
				enqueue(t, set.clone(), false)
			}
			return
		case *codeOp:
			if x.ends {
				x.visited = true
				return
			}
		}
		o.node().visited = true
	}
	failf(m.String(), ErrNoReturn, "code can reach the end of the method")
}

func (m *MethodMaker) checkAssigned(set bitset, v int) {
	if !set.has(v) {
		info := m.vars[v]
		name := info.name
		if name == "" {
			name = "of type " + info.typ.String()
		}
		failf(m.String(), ErrUnassigned, "variable %s is not definitely assigned", name)
	}
}

// addImplicitReturn ends void methods that fall off the end.
func (m *MethodMaker) addImplicitReturn() {
	if m.ret == jtype.Void {
		m.main.append(&codeOp{code: bytecode.OpReturn, ends: true})
	}
}
