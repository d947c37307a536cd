package maker

import (
	"github.com/chazu/jmaker/bytecode"
	"github.com/chazu/jmaker/classfile"
	"github.com/chazu/jmaker/jtype"
)

// stackEntry is one operand stack value during assembly.
type stackEntry struct {
	typ        *jtype.Type
	uninit     int // pc of the allocating new, or -1
	uninitThis bool
}

func entry(t *jtype.Type) stackEntry { return stackEntry{typ: t, uninit: -1} }

// stackState tracks the operand stack while instructions are emitted.
type stackState struct {
	m         *MethodMaker
	entries   []stackEntry
	depth     int // in slots
	maxDepth  int
	reachable bool
	thisInit  bool
}

func (s *stackState) push(e stackEntry) {
	s.entries = append(s.entries, e)
	s.depth += e.typ.SlotWidth()
	s.maxDepth = max(s.maxDepth, s.depth)
}

func (s *stackState) pop(n int) []stackEntry {
	if n > len(s.entries) {
		internalError("%s: pop of %d from stack of %d", s.m, n, len(s.entries))
	}
	popped := s.entries[len(s.entries)-n:]
	s.entries = s.entries[:len(s.entries)-n]
	for _, e := range popped {
		s.depth -= e.typ.SlotWidth()
	}
	return popped
}

func (s *stackState) snapshot() []stackEntry {
	return append([]stackEntry(nil), s.entries...)
}

// reset replaces the current stack.
func (s *stackState) reset(entries []stackEntry) {
	s.entries = append(s.entries[:0], entries...)
	s.depth = 0
	for _, e := range entries {
		s.depth += e.typ.SlotWidth()
	}
	s.maxDepth = max(s.maxDepth, s.depth)
}

// branchTo records the stack flowing into label target. The first edge
// defines it; later forward edges merge by common supertype and backward
// edges must agree.
func (s *stackState) branchTo(target int) {
	info := s.m.labels[target]
	if info.handler {
		return
	}
	if !info.hasEntry {
		info.hasEntry = true
		info.entry = s.snapshot()
		info.thisInit = s.thisInit
		return
	}
	merged, err := mergeStacks(info.entry, s.entries, info.emitted)
	if err != nil {
		fail(s.m.String(), err)
	}
	info.entry = merged
	info.thisInit = info.thisInit && s.thisInit
}

// enterLabel establishes the stack at a label from its recorded entry and
// any fallthrough.
func (s *stackState) enterLabel(label int) {
	info := s.m.labels[label]
	switch {
	case info.handler && info.reached:
		ct := info.catchType
		if ct == nil {
			ct = jtype.Throwable
		}
		s.reset([]stackEntry{entry(ct)})
		s.reachable = true
		s.thisInit = true
		for _, r := range s.m.regions {
			if r.handler == label {
				s.thisInit = s.m.labels[r.start].thisInit
				break
			}
		}
	case !info.hasEntry:
		if !s.reachable {
			s.reset(nil)
			s.reachable = info.reached
		}
	case s.reachable:
		merged, err := mergeStacks(info.entry, s.entries, false)
		if err != nil {
			fail(s.m.String(), err)
		}
		s.reset(merged)
		s.thisInit = s.thisInit && info.thisInit
	default:
		s.reset(info.entry)
		s.thisInit = info.thisInit
		s.reachable = true
	}
	info.hasEntry = true
	info.emitted = true
	info.entry = s.snapshot()
	info.thisInit = s.thisInit
}

// mergeStacks reconciles two stacks at a join. When exact is set, the
// incoming stack must be assignable to the established one.
func mergeStacks(a, b []stackEntry, exact bool) ([]stackEntry, error) {
	if len(a) != len(b) {
		return nil, &Error{Err: ErrStackMismatch}
	}
	out := make([]stackEntry, len(a))
	for i := range a {
		x, y := a[i], b[i]
		switch {
		case x == y:
			out[i] = x
		case x.uninit >= 0 || y.uninit >= 0 || x.uninitThis || y.uninitThis:
			return nil, &Error{Err: ErrStackMismatch}
		case exact:
			if !jtype.IsAssignable(y.typ, x.typ) {
				return nil, &Error{Err: ErrStackMismatch}
			}
			out[i] = x
		default:
			t := jtype.CommonSupertype(x.typ, y.typ)
			if t == nil || t.StackKind() != x.typ.StackKind() {
				return nil, &Error{Err: ErrStackMismatch}
			}
			out[i] = entry(t)
		}
	}
	return out, nil
}

// exec applies an instruction's stack effect. pc is the instruction's
// offset.
func (s *stackState) exec(o op, pc int) {
	m := s.m
	switch x := o.(type) {
	case *codeOp:
		switch {
		case x.code == bytecode.OpDup:
			top := s.pop(1)[0]
			s.push(top)
			s.push(top)
			return
		case x.initCall:
			args := s.pop(x.pops)
			recv := args[0]
			init := entry(recv.typ)
			if recv.uninitThis {
				s.thisInit = true
				init = entry(m.class.typ)
			}
			for i, e := range s.entries {
				if e.uninitThis && recv.uninitThis || e.uninit >= 0 && e.uninit == recv.uninit {
					s.entries[i] = init
				}
			}
		default:
			s.pop(x.pops)
		}
		switch {
		case x.alloc:
			s.push(stackEntry{typ: x.push, uninit: pc})
		case x.push != nil:
			s.push(entry(x.push))
		}
		if x.code.IsReturn() && len(s.entries) > 0 {
			failf(m.String(), ErrStackMismatch, "%d values left on the stack at %s", len(s.entries), x.code)
		}
		if x.ends {
			s.reachable = false
		}
	case *loadOp:
		info := m.vars[x.v]
		if info.param == paramThis && !s.thisInit {
			s.push(stackEntry{typ: info.typ, uninit: -1, uninitThis: true})
		} else {
			s.push(entry(info.typ))
		}
	case *storeOp:
		s.pop(1)
	case *branchOp:
		if x.code != bytecode.OpGoto {
			s.pop(bytecode.IfPops(x.code))
		}
		s.branchTo(x.target)
		if x.code == bytecode.OpGoto {
			s.reachable = false
		}
	case *switchOp:
		s.pop(1)
		s.branchTo(x.dflt)
		for _, t := range x.targets {
			s.branchTo(t)
		}
		s.reachable = false
	}
}

// verificationType maps a stack or local type to its stack map form.
func verificationType(e stackEntry) classfile.VerificationType {
	switch {
	case e.uninitThis:
		return classfile.VerificationType{Tag: classfile.ItemUninitializedThis}
	case e.uninit >= 0:
		return classfile.VerificationType{Tag: classfile.ItemUninitialized, Offset: e.uninit}
	}
	t := e.typ
	switch t.StackKind() {
	case jtype.StackInt:
		return classfile.VerificationType{Tag: classfile.ItemInteger}
	case jtype.StackFloat:
		return classfile.VerificationType{Tag: classfile.ItemFloat}
	case jtype.StackLong:
		return classfile.VerificationType{Tag: classfile.ItemLong}
	case jtype.StackDouble:
		return classfile.VerificationType{Tag: classfile.ItemDouble}
	}
	if t == jtype.Null {
		return classfile.VerificationType{Tag: classfile.ItemNull}
	}
	return classfile.VerificationType{Tag: classfile.ItemObject, Class: t.InternalName()}
}
