package maker

import (
	"math"
	"slices"
)

// allocateSlots assigns local variable slots. this and the parameters
// come first in declaration order, named variables get a slot of their
// own, and anonymous variables share slots when their live intervals do
// not overlap. It returns max_locals.
func (m *MethodMaker) allocateSlots() int {
	next := 0
	if m.thisVar != nil {
		m.vars[m.thisVar.id].slot = 0
		next = 1
	}
	for _, p := range m.paramVars {
		info := m.vars[p.id]
		info.slot = next
		next += info.typ.SlotWidth()
	}

	index := 0
	for o := m.main.head; o != nil; o = o.node().next {
		o.node().index = index
		if l, ok := o.(*labelOp); ok {
			m.labels[l.label].index = index
		}
		index++
	}
	for _, info := range m.vars {
		info.used = false
	}
	touch := func(v, at int) {
		info := m.vars[v]
		if !info.used {
			info.used = true
			info.start, info.end = at, at
			return
		}
		info.start = min(info.start, at)
		info.end = max(info.end, at)
	}
	for o := m.main.head; o != nil; o = o.node().next {
		switch x := o.(type) {
		case *loadOp:
			touch(x.v, x.index)
		case *storeOp:
			touch(x.v, x.index)
		case *incOp:
			touch(x.v, x.index)
		}
	}

	// A variable live at a loop head stays live through the loop's back
	// edge, and one live in a protected region stays live until its handler.
	type edge struct{ from, to int }
	var edges []edge
	for o := m.main.head; o != nil; o = o.node().next {
		switch x := o.(type) {
		case *branchOp:
			edges = append(edges, edge{x.index, m.labels[x.target].index})
		case *switchOp:
			edges = append(edges, edge{x.index, m.labels[x.dflt].index})
			for _, t := range x.targets {
				edges = append(edges, edge{x.index, m.labels[t].index})
			}
		}
	}
	for _, r := range m.regions {
		edges = append(edges, edge{m.labels[r.end].index, m.labels[r.start].index})
		edges = append(edges, edge{m.labels[r.handler].index, m.labels[r.start].index})
	}
	for changed := true; changed; {
		changed = false
		for _, e := range edges {
			if e.to >= e.from {
				continue
			}
			for _, info := range m.vars {
				if info.used && info.param == localVar && info.start <= e.to && e.to <= info.end && info.end < e.from {
					info.end = e.from
					changed = true
				}
			}
		}
	}

	var anon []*varInfo
	for _, info := range m.vars {
		if !info.used || info.param != localVar {
			continue
		}
		if info.name != "" {
			info.slot = next
			next += info.typ.SlotWidth()
			continue
		}
		anon = append(anon, info)
	}

	// First fit over slots ordered by interval start.
	slices.SortStableFunc(anon, func(a, b *varInfo) int { return a.start - b.start })
	base := next
	var busyUntil []int
	maxLocals := next
	for _, info := range anon {
		w := info.typ.SlotWidth()
		s := 0
		for ; ; s++ {
			for len(busyUntil) < s+w {
				busyUntil = append(busyUntil, -1)
			}
			free := true
			for k := range w {
				if busyUntil[s+k] >= info.start {
					free = false
					break
				}
			}
			if free {
				break
			}
		}
		for k := range w {
			busyUntil[s+k] = info.end
		}
		info.slot = base + s
		maxLocals = max(maxLocals, info.slot+w)
	}
	if maxLocals > math.MaxUint16 {
		failf(m.String(), ErrLimit, "too many local variables")
	}
	log.Debugf("%s: %d variables in %d slots", m, len(m.vars), maxLocals)
	return maxLocals
}
