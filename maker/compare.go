package maker

import (
	"github.com/chazu/jmaker/bytecode"
	"github.com/chazu/jmaker/jtype"
)

// cond is a comparison, ordered as the ifeq..ifle opcodes.
type cond int

const (
	condEq cond = iota
	condNe
	condLt
	condGe
	condGt
	condLe
)

var condNames = [...]string{"Eq", "Ne", "Lt", "Ge", "Gt", "Le"}

// relational remembers the most recent boolean produced by a comparison,
// so that an immediately following IfTrue or IfFalse can later be turned
// into a branch on the comparison itself.
type relational struct {
	list        *opList
	v           int
	branch      *branchOp
	isTrue, end int
}

// fusion is an IfTrue or IfFalse recorded right after the comparison that
// produced its operand. fuseBranches applies it once all loads are known.
type fusion struct {
	rel    *relational
	load   *loadOp
	branch *branchOp
	negate bool
}

// IfTrue branches to l when cond is true.
func (m *MethodMaker) IfTrue(cond any, l *Label) { m.ifBool("IfTrue", cond, l, true) }

// IfFalse branches to l when cond is false.
func (m *MethodMaker) IfFalse(cond any, l *Label) { m.ifBool("IfFalse", cond, l, false) }

func (m *MethodMaker) ifBool(op string, x any, l *Label, sense bool) {
	m.begin()
	m.checkLabel(op, l)
	o := m.operand(op, x)
	switch o := o.(type) {
	case varOperand:
		if r := m.fusable(o.v); r != nil {
			m.load(o.v)
			load := m.list.tail.(*loadOp)
			code := bytecode.OpIfeq
			if sense {
				code = bytecode.OpIfne
			}
			m.fusions = append(m.fusions, fusion{rel: r, load: load, branch: m.branch(code, l.id), negate: !sense})
			return
		}
	case constOperand:
		b, ok := o.value.(bool)
		if !ok {
			fail(op, &jtype.ConversionError{From: o.typ, To: jtype.Boolean, Value: o.value})
		}
		if b == sense {
			m.branch(bytecode.OpGoto, l.id)
		}
		return
	}
	m.pushAs(op, o, jtype.Boolean)
	if sense {
		m.branch(bytecode.OpIfne, l.id)
	} else {
		m.branch(bytecode.OpIfeq, l.id)
	}
}

// fusable returns the comparison that produced v when v was computed by
// the last recorded operation and is unnamed.
func (m *MethodMaker) fusable(v *Variable) *relational {
	r := m.rel
	if r == nil || r.v != v.id || r.list != m.list {
		return nil
	}
	m.rel = nil
	if m.vars[v.id].name != "" {
		return nil
	}
	if end, ok := m.list.tail.(*labelOp); !ok || end.label != r.end {
		return nil
	}
	return r
}

// fuseBranches retargets each comparison whose boolean result is read only
// by the IfTrue or IfFalse that follows it, dropping the boolean.
func (m *MethodMaker) fuseBranches() {
	fused := 0
	for _, f := range m.fusions {
		info := m.vars[f.rel.v]
		if info.loads != 1 || !m.fusionIntact(f) {
			continue
		}
		for o := f.rel.branch.next; o != op(f.branch); {
			next := o.node().next
			m.main.remove(o)
			o = next
		}
		m.main.remove(f.branch)
		info.loads = 0
		r := f.rel.branch
		r.target = f.branch.target
		if f.negate {
			r.code = bytecode.FlipIf(r.code)
		}
		fused++
	}
	if fused > 0 {
		log.Debugf("%s: fused %d comparisons into branches", m, fused)
	}
	m.fusions = nil
}

// fusionIntact reports whether the ops between the comparison and the
// boolean branch are still exactly the ones relation recorded.
func (m *MethodMaker) fusionIntact(f fusion) bool {
	if f.load.next != op(f.branch) {
		return false
	}
	want := []func(op) bool{
		func(o op) bool { _, ok := o.(*codeOp); return ok },
		func(o op) bool { s, ok := o.(*storeOp); return ok && s.v == f.rel.v },
		func(o op) bool { b, ok := o.(*branchOp); return ok && b.target == f.rel.end },
		func(o op) bool { l, ok := o.(*labelOp); return ok && l.label == f.rel.isTrue },
		func(o op) bool { _, ok := o.(*codeOp); return ok },
		func(o op) bool { s, ok := o.(*storeOp); return ok && s.v == f.rel.v },
		func(o op) bool { l, ok := o.(*labelOp); return ok && l.label == f.rel.end },
		func(o op) bool { return o == op(f.load) },
	}
	o := f.rel.branch.next
	for _, match := range want {
		if o == nil || !match(o) {
			return false
		}
		o = o.node().next
	}
	return true
}

// IfEq branches to l when a == b.
func (m *MethodMaker) IfEq(a, b any, l *Label) { m.ifCompare(condEq, a, b, l) }

// IfNe branches to l when a != b.
func (m *MethodMaker) IfNe(a, b any, l *Label) { m.ifCompare(condNe, a, b, l) }

// IfLt branches to l when a < b.
func (m *MethodMaker) IfLt(a, b any, l *Label) { m.ifCompare(condLt, a, b, l) }

// IfGe branches to l when a >= b.
func (m *MethodMaker) IfGe(a, b any, l *Label) { m.ifCompare(condGe, a, b, l) }

// IfGt branches to l when a > b.
func (m *MethodMaker) IfGt(a, b any, l *Label) { m.ifCompare(condGt, a, b, l) }

// IfLe branches to l when a <= b.
func (m *MethodMaker) IfLe(a, b any, l *Label) { m.ifCompare(condLe, a, b, l) }

func (m *MethodMaker) ifCompare(c cond, a, b any, l *Label) {
	m.begin()
	name := "If" + condNames[c]
	m.checkLabel(name, l)
	m.compareBranch(name, c, m.operand(name, a), m.operand(name, b), l.id)
}

// Eq returns v == x as a boolean.
func (v *Variable) Eq(x any) *Variable { return v.m.relation(condEq, v, x) }

// Ne returns v != x as a boolean.
func (v *Variable) Ne(x any) *Variable { return v.m.relation(condNe, v, x) }

// Lt returns v < x as a boolean.
func (v *Variable) Lt(x any) *Variable { return v.m.relation(condLt, v, x) }

// Ge returns v >= x as a boolean.
func (v *Variable) Ge(x any) *Variable { return v.m.relation(condGe, v, x) }

// Gt returns v > x as a boolean.
func (v *Variable) Gt(x any) *Variable { return v.m.relation(condGt, v, x) }

// Le returns v <= x as a boolean.
func (v *Variable) Le(x any) *Variable { return v.m.relation(condLe, v, x) }

func (m *MethodMaker) relation(c cond, v *Variable, x any) *Variable {
	m.begin()
	name := condNames[c]
	right := m.operand(name, x)
	result := m.newVar(jtype.Boolean, localVar)
	isTrue, end := m.newLabel(), m.newLabel()

	br := m.compareBranch(name, c, varOperand{v}, right, isTrue.id)
	m.pushConst(false, jtype.Boolean)
	m.store(result)
	m.branch(bytecode.OpGoto, end.id)
	isTrue.Here()
	m.pushConst(true, jtype.Boolean)
	m.store(result)
	end.Here()

	m.rel = &relational{list: m.list, v: result.id, branch: br, isTrue: isTrue.id, end: end.id}
	return result
}

// compareBranch records a conditional branch taken when a <c> b.
func (m *MethodMaker) compareBranch(op string, c cond, a, b operand, target int) *branchOp {
	at, bt := a.operandType(), b.operandType()

	if at == jtype.Null || bt == jtype.Null {
		other := a
		if at == jtype.Null {
			other = b
		}
		if c > condNe || !other.operandType().IsObject() {
			fail(op, &jtype.ConversionError{From: at, To: bt})
		}
		m.push(other)
		if c == condEq {
			return m.branch(bytecode.OpIfnull, target)
		}
		return m.branch(bytecode.OpIfnonnull, target)
	}

	if at.IsObject() && bt.IsObject() && c <= condNe {
		if !jtype.IsAssignable(at, bt) && !jtype.IsAssignable(bt, at) &&
			!at.IsInterface() && !bt.IsInterface() {
			fail(op, &jtype.ConversionError{From: bt, To: at})
		}
		m.push(a)
		m.push(b)
		return m.branch(bytecode.OpIfAcmpeq+bytecode.Opcode(c), target)
	}

	t := m.binaryType(arith{name: op, logical: c <= condNe}, a, b)
	if t == jtype.Boolean && c > condNe {
		fail(op, &jtype.ConversionError{From: bt, To: at})
	}
	m.pushAs(op, a, t)
	switch t.StackKind() {
	case jtype.StackInt:
		if isZero(b) {
			return m.branch(bytecode.OpIfeq+bytecode.Opcode(c), target)
		}
		m.pushAs(op, b, t)
		return m.branch(bytecode.OpIfIcmpeq+bytecode.Opcode(c), target)
	case jtype.StackLong:
		m.pushAs(op, b, t)
		m.code(bytecode.OpLcmp, nil, 2, jtype.Int)
	case jtype.StackFloat:
		m.pushAs(op, b, t)
		if c == condLt || c == condLe {
			m.code(bytecode.OpFcmpg, nil, 2, jtype.Int)
		} else {
			m.code(bytecode.OpFcmpl, nil, 2, jtype.Int)
		}
	case jtype.StackDouble:
		m.pushAs(op, b, t)
		if c == condLt || c == condLe {
			m.code(bytecode.OpDcmpg, nil, 2, jtype.Int)
		} else {
			m.code(bytecode.OpDcmpl, nil, 2, jtype.Int)
		}
	}
	return m.branch(bytecode.OpIfeq+bytecode.Opcode(c), target)
}

func isZero(o operand) bool {
	c, ok := o.(constOperand)
	if !ok {
		return false
	}
	switch v := c.value.(type) {
	case bool:
		return !v
	case int8:
		return v == 0
	case int16:
		return v == 0
	case uint16:
		return v == 0
	case int32:
		return v == 0
	}
	return false
}
