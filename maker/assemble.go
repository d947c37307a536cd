package maker

import (
	"math"
	"strconv"

	"github.com/chazu/jmaker/bytecode"
	"github.com/chazu/jmaker/classfile"
)

// finish lowers the recorded body to a Code attribute.
func (m *MethodMaker) finish() error {
	return catchUsage(m.String(), func() error {
		if !m.begun {
			m.layoutParams()
		}
		if m.isConstructor() && m.inits == 0 {
			failf(m.String(), ErrUsage, "constructor does not invoke a super or this constructor")
		}
		m.applySplices(true)
		m.addImplicitReturn()
		m.checkTargets()
		m.fuseBranches()
		m.flow()
		m.reduce()
		maxLocals := m.allocateSlots()
		size := m.relax()
		code := m.emit(size, maxLocals)
		m.result = code
		return nil
	})
}

// checkTargets rejects branches to labels that were never positioned.
func (m *MethodMaker) checkTargets() {
	check := func(target int) {
		if !m.labels[target].positioned {
			fail(m.String(), ErrUnpositionedLabel)
		}
	}
	for o := m.main.head; o != nil; o = o.node().next {
		switch x := o.(type) {
		case *branchOp:
			check(x.target)
		case *switchOp:
			check(x.dflt)
			for _, t := range x.targets {
				check(t)
			}
		}
	}
	for _, r := range m.regions {
		check(r.start)
		check(r.end)
	}
}

// ---------------------------------------------------------------------------
// Layout and branch relaxation
// ---------------------------------------------------------------------------

// size returns the encoded size of o at pc.
func (m *MethodMaker) size(o op, pc int) int {
	switch x := o.(type) {
	case *codeOp:
		return 1 + len(x.operands)
	case *loadOp:
		return localSize(m.vars[x.v].slot)
	case *storeOp:
		return localSize(m.vars[x.v].slot)
	case *incOp:
		if m.vars[x.v].slot <= math.MaxUint8 && x.amount >= math.MinInt8 && x.amount <= math.MaxInt8 {
			return 3
		}
		return 6
	case *branchOp:
		if x.wide {
			return 5
		}
		return 3
	case *switchOp:
		return switchSize(x, pc)
	}
	return 0
}

func localSize(slot int) int {
	switch {
	case slot <= 3:
		return 1
	case slot <= math.MaxUint8:
		return 2
	}
	return 4
}

// layout assigns code offsets, returning the code length.
func (m *MethodMaker) layout() int {
	pc := 0
	for o := m.main.head; o != nil; o = o.node().next {
		o.node().pc = pc
		pc += m.size(o, pc)
	}
	return pc
}

// relax starts every branch in its short form and widens those whose
// offsets do not fit until nothing changes. A conditional branch is widened
// by inverting it around a goto_w.
func (m *MethodMaker) relax() int {
	maxSize := m.class.opts.MaxCodeSize
	for pass := 0; pass < m.class.opts.MaxRelaxPasses; pass++ {
		size := m.layout()
		changed := false
		for o := m.main.head; o != nil; o = o.node().next {
			b, ok := o.(*branchOp)
			if !ok || b.wide {
				continue
			}
			offset := m.labels[b.target].op.pc - b.pc
			if offset >= math.MinInt16 && offset <= math.MaxInt16 {
				continue
			}
			changed = true
			if b.code == bytecode.OpGoto {
				b.wide = true
				continue
			}
			skip := m.newLabel()
			info := m.labels[skip.id]
			info.positioned = true
			info.list = &m.main
			info.reached = true
			info.assigned = b.assigned
			info.index = b.index
			far := &branchOp{code: bytecode.OpGoto, target: b.target, wide: true}
			far.index = b.index
			info.op.index = b.index
			m.main.insertAfter(b, far, far)
			m.main.insertAfter(far, info.op, info.op)
			b.code = bytecode.FlipIf(b.code)
			b.target = skip.id
		}
		if !changed {
			if size > maxSize {
				failf(m.String(), ErrCodeTooLarge, "%d bytes", size)
			}
			log.Debugf("%s: %d code bytes after %d relaxation passes", m, size, pass+1)
			return size
		}
		if size > maxSize*2 {
			failf(m.String(), ErrCodeTooLarge, "%d bytes", size)
		}
	}
	failf(m.String(), ErrCodeTooLarge, "branch relaxation did not converge in %d passes", m.class.opts.MaxRelaxPasses)
	return 0
}

// ---------------------------------------------------------------------------
// Emission
// ---------------------------------------------------------------------------

var (
	loadBase  = [...]bytecode.Opcode{bytecode.OpIload, bytecode.OpFload, bytecode.OpLload, bytecode.OpDload, bytecode.OpAload}
	load0     = [...]bytecode.Opcode{bytecode.OpIload0, bytecode.OpFload0, bytecode.OpLload0, bytecode.OpDload0, bytecode.OpAload0}
	storeBase = [...]bytecode.Opcode{bytecode.OpIstore, bytecode.OpFstore, bytecode.OpLstore, bytecode.OpDstore, bytecode.OpAstore}
	store0    = [...]bytecode.Opcode{bytecode.OpIstore0, bytecode.OpFstore0, bytecode.OpLstore0, bytecode.OpDstore0, bytecode.OpAstore0}
)

func emitLocal(b *bytecode.Buffer, base, short bytecode.Opcode, slot int) {
	switch {
	case slot <= 3:
		b.Emit(short + bytecode.Opcode(slot))
	case slot <= math.MaxUint8:
		b.EmitByte(base, byte(slot))
	default:
		b.Emit(bytecode.OpWide)
		b.EmitUint16(base, uint16(slot))
	}
}

// emit writes the final instructions, simulating the operand stack to
// compute max_stack and the stack map frames.
func (m *MethodMaker) emit(size, maxLocals int) *classfile.Code {
	buf := bytecode.NewBuffer()
	st := &stackState{m: m, reachable: true, thisInit: !m.isConstructor()}
	fb := m.newFrameBuilder(maxLocals)

	for o := m.main.head; o != nil; o = o.node().next {
		pc := buf.Len()
		if pc != o.node().pc {
			internalError("%s: op at %d laid out at %d", m, pc, o.node().pc)
		}
		switch x := o.(type) {
		case *labelOp:
			if err := buf.Position(x.label); err != nil {
				internalError("%s: %v", m, err)
			}
			st.enterLabel(x.label)
			fb.atLabel(x.label, pc, st)
			continue
		case *lineOp:
			buf.SetLine(x.line)
			continue
		case *handlerFlowOp:
			continue
		case *codeOp:
			buf.Emit(x.code)
			for _, b := range x.operands {
				buf.EmitU1(b)
			}
		case *loadOp:
			info := m.vars[x.v]
			k := info.typ.StackKind()
			emitLocal(buf, loadBase[k], load0[k], info.slot)
		case *storeOp:
			info := m.vars[x.v]
			k := info.typ.StackKind()
			emitLocal(buf, storeBase[k], store0[k], info.slot)
		case *incOp:
			slot := m.vars[x.v].slot
			if slot <= math.MaxUint8 && x.amount >= math.MinInt8 && x.amount <= math.MaxInt8 {
				buf.Emit(bytecode.OpIinc)
				buf.EmitU1(byte(slot))
				buf.EmitU1(byte(int8(x.amount)))
			} else {
				buf.Emit(bytecode.OpWide)
				buf.EmitUint16(bytecode.OpIinc, uint16(slot))
				buf.EmitU2(uint16(int16(x.amount)))
			}
		case *branchOp:
			code := x.code
			if x.wide {
				code = bytecode.OpGotoW
			}
			buf.EmitBranch(code, x.target)
		case *switchOp:
			emitSwitch(buf, x)
		}
		st.exec(o, pc)
	}

	bytes, err := buf.Finish()
	if err != nil {
		internalError("%s: %v", m, err)
	}
	if len(bytes) != size {
		internalError("%s: emitted %d bytes, laid out %d", m, len(bytes), size)
	}

	code := &classfile.Code{
		MaxStack:   st.maxDepth,
		MaxLocals:  maxLocals,
		Code:       bytes,
		Exceptions: m.exceptionTable(buf),
	}
	p := m.pool()
	if lines := buf.Lines(); len(lines) > 0 {
		table := make([]classfile.LineNumber, len(lines))
		for i, l := range lines {
			table[i] = classfile.LineNumber{PC: l.PC, Line: l.Line}
		}
		code.Attributes = append(code.Attributes, classfile.LineNumberTable(p, table))
	}
	if m.class.opts.LocalVariableTable {
		if vars := m.localVariables(len(bytes)); len(vars) > 0 {
			code.Attributes = append(code.Attributes, classfile.LocalVariableTable(p, vars))
		}
	}
	if frames := fb.result(len(bytes)); len(frames) > 0 && m.class.opts.Major >= 50 {
		code.Attributes = append(code.Attributes, classfile.StackMapTable(p, fb.initial, frames))
	}
	return code
}

func emitSwitch(buf *bytecode.Buffer, s *switchOp) {
	pos := buf.Len()
	if s.table {
		buf.Emit(bytecode.OpTableswitch)
		buf.Align4()
		buf.EmitOffset(pos, s.dflt, 4)
		lo, hi := s.keys[0], s.keys[len(s.keys)-1]
		buf.EmitS4(lo)
		buf.EmitS4(hi)
		i := 0
		for k := int64(lo); k <= int64(hi); k++ {
			if int64(s.keys[i]) == k {
				buf.EmitOffset(pos, s.targets[i], 4)
				i++
			} else {
				buf.EmitOffset(pos, s.dflt, 4)
			}
		}
		return
	}
	buf.Emit(bytecode.OpLookupswitch)
	buf.Align4()
	buf.EmitOffset(pos, s.dflt, 4)
	buf.EmitS4(int32(len(s.keys)))
	for i, k := range s.keys {
		buf.EmitS4(k)
		buf.EmitOffset(pos, s.targets[i], 4)
	}
}

// exceptionTable resolves regions in registration order. Empty regions are
// dropped.
func (m *MethodMaker) exceptionTable(buf *bytecode.Buffer) []classfile.ExceptionEntry {
	var out []classfile.ExceptionEntry
	for _, r := range m.regions {
		start, ok1 := buf.LabelPosition(r.start)
		end, ok2 := buf.LabelPosition(r.end)
		handler, ok3 := buf.LabelPosition(r.handler)
		if !ok1 || !ok2 || !ok3 {
			fail(m.String(), ErrUnpositionedLabel)
		}
		if start > end {
			failf(m.String(), ErrBadRegion, "region starts at %d after its end at %d", start, end)
		}
		if start == end {
			continue
		}
		if !r.finally && handler >= start && handler < end {
			failf(m.String(), ErrBadRegion, "handler at %d is inside its own region", handler)
		}
		var catchType uint16
		if r.catchType != nil {
			catchType = m.pool().Class(r.catchType.InternalName())
		}
		out = append(out, classfile.ExceptionEntry{StartPC: start, EndPC: end, HandlerPC: handler, CatchType: catchType})
	}
	if len(out) > math.MaxUint16 {
		failf(m.String(), ErrLimit, "too many exception handlers")
	}
	return out
}

// localVariables lists this, the parameters and named variables.
func (m *MethodMaker) localVariables(codeLen int) []classfile.LocalVariable {
	var out []classfile.LocalVariable
	for i, info := range m.vars {
		if info.slot < 0 || !info.used && info.param == localVar {
			continue
		}
		name := info.name
		if name == "" {
			if info.param == localVar {
				continue
			}
			name = paramName(info.param)
		}
		start, end := 0, codeLen
		if info.param == localVar {
			start, end = m.varRange(i, codeLen)
		}
		out = append(out, classfile.LocalVariable{
			StartPC:    start,
			Length:     end - start,
			Name:       name,
			Descriptor: info.typ.Descriptor(),
			Slot:       info.slot,
		})
	}
	return out
}

func paramName(i int) string {
	if i == paramThis {
		return "this"
	}
	return "arg" + strconv.Itoa(i)
}

// varRange spans from after the first store of v to the end of its last
// use.
func (m *MethodMaker) varRange(v, codeLen int) (int, int) {
	start, end := -1, 0
	for o := m.main.head; o != nil; o = o.node().next {
		var target int
		switch x := o.(type) {
		case *storeOp:
			target = x.v
		case *loadOp:
			target = x.v
		case *incOp:
			target = x.v
		default:
			continue
		}
		if target != v {
			continue
		}
		after := codeLen
		if n := o.node().next; n != nil {
			after = n.node().pc
		}
		if start < 0 {
			start = after
		}
		end = after
	}
	if start < 0 {
		return 0, 0
	}
	return start, max(start, end)
}
