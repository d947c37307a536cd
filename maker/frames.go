package maker

import "github.com/chazu/jmaker/classfile"

// frameBuilder collects stack map frames at branch targets and handlers
// while code is emitted.
type frameBuilder struct {
	m         *MethodMaker
	maxLocals int
	targets   map[int]bool
	initial   []classfile.VerificationType
	frames    []classfile.Frame
}

func (m *MethodMaker) newFrameBuilder(maxLocals int) *frameBuilder {
	fb := &frameBuilder{m: m, maxLocals: maxLocals, targets: make(map[int]bool)}
	for o := m.main.head; o != nil; o = o.node().next {
		switch x := o.(type) {
		case *branchOp:
			fb.targets[x.target] = true
		case *switchOp:
			fb.targets[x.dflt] = true
			for _, t := range x.targets {
				fb.targets[t] = true
			}
		}
	}
	for _, r := range m.regions {
		fb.targets[r.handler] = true
	}

	slots := fb.emptyLocals()
	if m.thisVar != nil {
		if m.isConstructor() {
			slots[0] = classfile.VerificationType{Tag: classfile.ItemUninitializedThis}
		} else {
			slots[0] = verificationType(entry(m.class.typ))
		}
	}
	for _, p := range m.paramVars {
		info := m.vars[p.id]
		slots[info.slot] = verificationType(entry(info.typ))
	}
	fb.initial = compactLocals(slots, m.vars, m.paramSlots())
	return fb
}

func (fb *frameBuilder) emptyLocals() []classfile.VerificationType {
	return make([]classfile.VerificationType, fb.maxLocals)
}

// paramSlots is the number of slots taken by this and the parameters.
func (m *MethodMaker) paramSlots() int {
	n := 0
	if m.thisVar != nil {
		n = 1
	}
	for _, p := range m.params {
		n += p.SlotWidth()
	}
	return n
}

// atLabel records the frame at a label once the stack state reflects
// entry to it.
func (fb *frameBuilder) atLabel(label, pc int, st *stackState) {
	m := fb.m
	info := m.labels[label]
	if !fb.targets[label] || !info.reached {
		return
	}
	locals := fb.emptyLocals()
	wide := make([]bool, fb.maxLocals)
	for id, v := range m.vars {
		if v.slot < 0 {
			continue
		}
		switch {
		case v.param == paramThis:
			if st.thisInit {
				locals[v.slot] = verificationType(entry(v.typ))
			} else {
				locals[v.slot] = classfile.VerificationType{Tag: classfile.ItemUninitializedThis}
			}
		case v.param >= 0:
			locals[v.slot] = verificationType(entry(v.typ))
		case !v.used || !info.assigned.has(id):
			continue
		case v.name != "" || v.start <= info.index && info.index <= v.end:
			locals[v.slot] = verificationType(entry(v.typ))
		default:
			continue
		}
		wide[v.slot] = v.typ.IsWide()
	}

	stack := make([]classfile.VerificationType, len(st.entries))
	for i, e := range st.entries {
		stack[i] = verificationType(e)
	}
	f := classfile.Frame{PC: pc, Locals: trimLocals(locals, wide), Stack: stack}
	if n := len(fb.frames); n > 0 && fb.frames[n-1].PC == pc {
		fb.frames[n-1] = f
		return
	}
	fb.frames = append(fb.frames, f)
}

// result returns the frames that lie within the code.
func (fb *frameBuilder) result(codeLen int) []classfile.Frame {
	out := fb.frames[:0]
	for _, f := range fb.frames {
		if f.PC < codeLen {
			out = append(out, f)
		}
	}
	return out
}

// trimLocals folds the second slot of each wide local into its entry and
// drops trailing unused slots.
func trimLocals(slots []classfile.VerificationType, wide []bool) []classfile.VerificationType {
	var out []classfile.VerificationType
	for s := 0; s < len(slots); s++ {
		out = append(out, slots[s])
		if wide[s] {
			s++
		}
	}
	for len(out) > 0 && out[len(out)-1].Tag == classfile.ItemTop {
		out = out[:len(out)-1]
	}
	return out
}

// compactLocals is trimLocals for the initial frame, where every wide
// local is a parameter.
func compactLocals(slots []classfile.VerificationType, vars []*varInfo, n int) []classfile.VerificationType {
	wide := make([]bool, len(slots))
	for _, v := range vars {
		if v.param != localVar && v.slot >= 0 && v.slot < n {
			wide[v.slot] = v.typ.IsWide()
		}
	}
	return trimLocals(slots, wide)
}
