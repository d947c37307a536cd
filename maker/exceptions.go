package maker

import (
	"github.com/chazu/jmaker/bytecode"
	"github.com/chazu/jmaker/jtype"
)

// region is one exception table entry: code between the start and end
// labels is protected by the handler label.
type region struct {
	start, end, handler int
	catchType           *jtype.Type // nil catches everything
	finally             bool
}

// Catch protects the code between start and end, which must both be
// positioned, and positions the handler at the current point. The handler
// receives the caught exception in the returned variable, typed as the
// most specific common superclass of types. With no types every
// Throwable is caught.
func (m *MethodMaker) Catch(start, end *Label, types ...any) *Variable {
	m.begin()
	m.checkRegion("Catch", start, end)
	caught := make([]*jtype.Type, len(types))
	for i, t := range types {
		caught[i] = m.class.resolve("Catch", t)
		if !jtype.IsAssignable(caught[i], jtype.Throwable) {
			failf("Catch", ErrUsage, "%s is not throwable", caught[i])
		}
	}
	common, entries := jtype.CommonCatchType(caught)
	if len(caught) == 0 {
		entries = []*jtype.Type{nil}
	}
	return m.catchRegion(start, end, common, entries, false)
}

func (m *MethodMaker) checkRegion(op string, start, end *Label) {
	m.checkLabel(op, start)
	m.checkLabel(op, end)
	if !m.labels[start.id].positioned || !m.labels[end.id].positioned {
		fail(op, ErrUnpositionedLabel)
	}
}

func (m *MethodMaker) catchRegion(start, end *Label, common *jtype.Type, entries []*jtype.Type, finally bool) *Variable {
	handler := m.newLabel()
	info := m.labels[handler.id]
	info.handler = true
	info.catchType = common
	for _, t := range entries {
		m.regions = append(m.regions, &region{
			start: start.id, end: end.id, handler: handler.id, catchType: t, finally: finally,
		})
	}

	flow := &opList{}
	flow.append(&handlerFlowOp{handler: handler.id})
	m.splices = append(m.splices, splice{label: start.id, chunk: flow, first: flow.head, last: flow.tail})

	handler.Here()
	ex := m.newVar(common, localVar)
	m.store(ex)
	return ex
}

// CatchFunc protects the code from start to the current point. When an
// exception of type t is thrown, handler runs with it and execution
// continues after the protected code.
func (m *MethodMaker) CatchFunc(start *Label, t any, handler func(ex *Variable)) {
	m.begin()
	end := m.Label().Here()
	cont := m.Label()
	m.Goto(cont)
	handler(m.Catch(start, end, t))
	cont.Here()
}

// Finally protects the code from start to the current point so that body
// runs on every exit: falling through, branching out, returning or
// throwing. Exits are rewritten to run a copy of body first.
func (m *MethodMaker) Finally(start *Label, body func()) {
	m.begin()
	m.checkLabel("Finally", start)
	sinfo := m.labels[start.id]
	if !sinfo.positioned {
		fail("Finally", ErrUnpositionedLabel)
	}
	m.applySplices(false)
	if sinfo.list != m.list {
		failf("Finally", ErrUsage, "start label is in a different code block")
	}
	m.rel = nil

	// labels positioned inside the protected code
	inside := make(map[int]bool)
	for o := sinfo.op.next; o != nil; o = o.node().next {
		if l, ok := o.(*labelOp); ok {
			inside[l.label] = true
		}
	}

	var exits []int
	exitLabels := make(map[int]*Label)
	exitFor := func(target int) int {
		if inside[target] || target == start.id {
			return target
		}
		l, ok := exitLabels[target]
		if !ok {
			l = m.newLabel()
			exitLabels[target] = l
			exits = append(exits, target)
		}
		return l.id
	}

	var retVar *Variable
	var retLabel *Label
	for o := sinfo.op.next; o != nil; {
		next := o.node().next
		switch x := o.(type) {
		case *branchOp:
			x.target = exitFor(x.target)
		case *switchOp:
			x.dflt = exitFor(x.dflt)
			for i, t := range x.targets {
				x.targets[i] = exitFor(t)
			}
		case *codeOp:
			if x.code.IsReturn() {
				if retLabel == nil {
					retLabel = m.newLabel()
					if m.ret != jtype.Void {
						retVar = m.newVar(m.ret, localVar)
					}
				}
				g := &branchOp{code: bytecode.OpGoto, target: retLabel.id}
				if retVar != nil {
					st := &storeOp{v: retVar.id}
					m.list.replace(x, st, st)
					m.list.insertAfter(st, g, g)
				} else {
					m.list.replace(x, g, g)
				}
			}
		}
		o = next
	}

	end := m.Label().Here()
	cont := m.Label()
	body()
	m.Goto(cont)

	for _, target := range exits {
		exitLabels[target].Here()
		body()
		m.branch(bytecode.OpGoto, target)
	}
	if retLabel != nil {
		retLabel.Here()
		body()
		if retVar != nil {
			m.Return(retVar)
		} else {
			m.Return()
		}
	}

	ex := m.catchRegion(start, end, jtype.Throwable, []*jtype.Type{nil}, true)
	body()
	m.load(ex)
	m.add(&codeOp{code: bytecode.OpAthrow, pops: 1, ends: true})
	cont.Here()
}
