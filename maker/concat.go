package maker

import (
	"strings"

	"github.com/chazu/jmaker/bytecode"
	"github.com/chazu/jmaker/classfile"
	"github.com/chazu/jmaker/jtype"
)

const (
	recipeArg   = "\u0001"
	recipeConst = "\u0002"

	concatBootstrapDesc = "(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;" +
		"Ljava/lang/invoke/MethodType;Ljava/lang/String;[Ljava/lang/Object;)Ljava/lang/invoke/CallSite;"
)

// Concat returns the string concatenation of values. String constants are
// folded into the concatenation recipe; everything else is converted as by
// String.valueOf.
func (m *MethodMaker) Concat(values ...any) *Variable {
	m.begin()
	ops := m.operands("Concat", values)
	switch len(ops) {
	case 0:
		m.pushConst("", jtype.String)
		return m.resultVar(jtype.String)
	case 1:
		if c, ok := ops[0].(constOperand); ok && c.typ == jtype.String {
			m.pushConst(c.value, jtype.String)
			return m.resultVar(jtype.String)
		}
		m.valueOf(ops[0])
		return m.resultVar(jtype.String)
	}

	slots := 0
	for _, o := range ops {
		if !isStringConst(o) {
			slots += o.operandType().SlotWidth()
		}
	}
	if slots > m.class.opts.MaxConcatSlots || m.class.opts.Major < classfile.MajorJava11 {
		log.Debugf("%s: concatenation of %d slots uses StringBuilder", m, slots)
		m.concatBuilder(ops)
	} else {
		m.concatIndy(ops)
	}
	return m.resultVar(jtype.String)
}

func isStringConst(o operand) bool {
	c, ok := o.(constOperand)
	return ok && (c.typ == jtype.String || c.value == nil)
}

// valueOf pushes String.valueOf(o).
func (m *MethodMaker) valueOf(o operand) {
	t := o.operandType()
	param := appendType(t)
	if c, ok := o.(constOperand); ok && c.value == nil {
		m.pushConst("null", jtype.String)
		return
	}
	if param == jtype.String {
		param = jtype.Object
	}
	m.pushAs("Concat", o, param)
	desc := jtype.MethodDescriptor(jtype.String, []*jtype.Type{param})
	m.code(bytecode.OpInvokestatic, u2(m.pool().Methodref("java/lang/String", "valueOf", desc)), 1, jtype.String)
}

// appendType is the String.valueOf or StringBuilder.append overload for t.
func appendType(t *jtype.Type) *jtype.Type {
	switch t.Kind() {
	case jtype.KindBoolean, jtype.KindChar, jtype.KindInt, jtype.KindLong, jtype.KindFloat, jtype.KindDouble:
		return t
	case jtype.KindByte, jtype.KindShort:
		return jtype.Int
	}
	if t == jtype.String {
		return jtype.String
	}
	return jtype.Object
}

// concatIndy uses StringConcatFactory.makeConcatWithConstants.
func (m *MethodMaker) concatIndy(ops []operand) {
	p := m.pool()
	var recipe strings.Builder
	var consts []uint16
	var params []*jtype.Type
	for _, o := range ops {
		if c, ok := o.(constOperand); ok && (c.typ == jtype.String || c.value == nil) {
			s := "null"
			if c.value != nil {
				s = c.value.(string)
			}
			if strings.ContainsAny(s, recipeArg+recipeConst) {
				recipe.WriteString(recipeConst)
				consts = append(consts, p.String(s))
			} else {
				recipe.WriteString(s)
			}
			continue
		}
		t := o.operandType()
		m.pushAs("Concat", o, t)
		params = append(params, t)
		recipe.WriteString(recipeArg)
	}

	handle := p.MethodHandle(classfile.RefInvokeStatic,
		p.Methodref("java/lang/invoke/StringConcatFactory", "makeConcatWithConstants", concatBootstrapDesc))
	args := append([]uint16{p.String(recipe.String())}, consts...)
	bsm := m.class.bootstrap(handle, args)
	desc := jtype.MethodDescriptor(jtype.String, params)
	indy := p.InvokeDynamic(bsm, "makeConcatWithConstants", desc)
	m.code(bytecode.OpInvokedynamic, append(u2(indy), 0, 0), len(params), jtype.String)
}

// concatBuilder appends each value to a StringBuilder.
func (m *MethodMaker) concatBuilder(ops []operand) {
	p := m.pool()
	sb := jtype.StringBuilder.InternalName()
	m.add(&codeOp{code: bytecode.OpNew, operands: u2(p.Class(sb)), push: jtype.StringBuilder, alloc: true})
	m.code(bytecode.OpDup, nil, 0, nil)
	init := m.code(bytecode.OpInvokespecial, u2(p.Methodref(sb, "<init>", "()V")), 1, nil)
	init.initCall = true
	for _, o := range ops {
		if c, ok := o.(constOperand); ok && c.value == nil {
			o = constOperand{value: "null", typ: jtype.String}
		}
		param := appendType(o.operandType())
		m.pushAs("Concat", o, param)
		desc := jtype.MethodDescriptor(jtype.StringBuilder, []*jtype.Type{param})
		m.code(bytecode.OpInvokevirtual, u2(p.Methodref(sb, "append", desc)), 2, jtype.StringBuilder)
	}
	m.code(bytecode.OpInvokevirtual, u2(p.Methodref(sb, "toString", "()Ljava/lang/String;")), 1, jtype.String)
}
