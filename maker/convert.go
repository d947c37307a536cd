package maker

import (
	"github.com/chazu/jmaker/bytecode"
	"github.com/chazu/jmaker/jtype"
)

// pushAs pushes o converted to type to, applying the implicit conversion
// rules. Constants convert only when their value is preserved.
func (m *MethodMaker) pushAs(op string, o operand, to *jtype.Type) {
	if c, ok := o.(constOperand); ok {
		m.pushConstAs(op, c, to)
		return
	}
	from := o.operandType()
	code := from.ConversionCode(to)
	switch {
	case code == jtype.Disallowed:
		fail(op, &jtype.ConversionError{From: from, To: to})
	case code >= jtype.ConvRebox && code < jtype.ConvUnbox:
		m.push(m.rebox(o, to))
	default:
		m.push(o)
		m.convert(from, to, code)
	}
}

// pushConstAs pushes a constant as type to.
func (m *MethodMaker) pushConstAs(op string, c constOperand, to *jtype.Type) {
	from := c.typ
	switch {
	case c.value == nil:
		if !to.IsObject() {
			fail(op, &jtype.ConversionError{From: from, To: to})
		}
		m.pushConst(nil, jtype.Null)
		return
	case to.IsPrimitive():
		v, ok := jtype.NarrowConstant(c.value, to)
		if !ok {
			fail(op, &jtype.ConversionError{From: from, To: to, Value: c.value})
		}
		m.pushConst(v, to)
		return
	case from == jtype.String:
		if !jtype.IsAssignable(from, to) {
			fail(op, &jtype.ConversionError{From: from, To: to, Value: c.value})
		}
		m.pushConst(c.value, from)
		return
	}
	if prim := to.Unbox(); prim != nil {
		v, ok := jtype.NarrowConstant(c.value, prim)
		if !ok {
			fail(op, &jtype.ConversionError{From: from, To: to, Value: c.value})
		}
		m.pushConst(v, prim)
		m.box(prim)
		return
	}
	if from.IsPrimitive() && jtype.IsAssignable(from.Box(), to) {
		m.pushConst(c.value, from)
		m.box(from)
		return
	}
	fail(op, &jtype.ConversionError{From: from, To: to, Value: c.value})
}

// convert emits the instructions for an implicit conversion code.
func (m *MethodMaker) convert(from, to *jtype.Type, code int) {
	switch {
	case code == jtype.ConvNone:
	case code < jtype.ConvBox:
		m.widen(from, code)
	case code < jtype.ConvRebox:
		m.widen(from, code-jtype.ConvBox)
		prim := to.Unbox()
		if prim == nil {
			prim = from
		}
		m.box(prim)
	case code <= jtype.ConvUnbox+4:
		prim := from.Unbox()
		m.unbox(from, prim)
		m.widen(prim, code-jtype.ConvUnbox)
	default:
		internalError("conversion code %d", code)
	}
}

// widen emits a primitive widening conversion, returning the new type.
func (m *MethodMaker) widen(from *jtype.Type, code int) *jtype.Type {
	switch code {
	case jtype.ConvNone:
		return from
	case jtype.ConvI2L:
		m.code(bytecode.OpI2L, nil, 1, jtype.Long)
		return jtype.Long
	case jtype.ConvI2F:
		m.code(bytecode.OpI2F, nil, 1, jtype.Float)
		return jtype.Float
	case jtype.ConvI2D:
		m.code(bytecode.OpI2D, nil, 1, jtype.Double)
		return jtype.Double
	case jtype.ConvF2D:
		m.code(bytecode.OpF2D, nil, 1, jtype.Double)
		return jtype.Double
	}
	internalError("widening code %d", code)
	return nil
}

// box converts the primitive on the stack to its wrapper.
func (m *MethodMaker) box(prim *jtype.Type) {
	b := prim.Box()
	desc := jtype.MethodDescriptor(b, []*jtype.Type{prim})
	ref := m.pool().Methodref(b.InternalName(), "valueOf", desc)
	m.code(bytecode.OpInvokestatic, u2(ref), 1, b)
}

// unbox converts the wrapper on the stack to prim.
func (m *MethodMaker) unbox(boxed, prim *jtype.Type) {
	owner := boxed
	if owner.Unbox() == nil {
		owner = prim.Box()
	}
	ref := m.pool().Methodref(owner.InternalName(), prim.Name()+"Value", jtype.MethodDescriptor(prim, nil))
	m.code(bytecode.OpInvokevirtual, u2(ref), 1, prim)
}

// rebox converts a nullable wrapper into another wrapper type, keeping
// null as null. The result is left in a variable.
func (m *MethodMaker) rebox(o operand, to *jtype.Type) operand {
	from := o.operandType()
	src, ok := o.(varOperand)
	if !ok {
		m.push(o)
		src = varOperand{m.resultVar(from)}
	}
	dst := m.newVar(to, localVar)
	nonNull, cont := m.newLabel(), m.newLabel()

	m.load(src.v)
	m.branch(bytecode.OpIfnonnull, nonNull.id)
	m.pushConst(nil, jtype.Null)
	m.store(dst)
	m.branch(bytecode.OpGoto, cont.id)

	nonNull.Here()
	prim := from.Unbox()
	m.load(src.v)
	m.unbox(from, prim)
	m.box(m.widen(prim, prim.ConversionCode(to.Unbox())))
	m.store(dst)
	cont.Here()
	return varOperand{dst}
}

// stable returns an operand whose conversion to `to` is straight-line code,
// storing reboxed values in a variable first. Values pushed after an
// uninitialized instance or a receiver must not branch.
func (m *MethodMaker) stable(o operand, to *jtype.Type) operand {
	if _, ok := o.(constOperand); ok {
		return o
	}
	code := o.operandType().ConversionCode(to)
	if code >= jtype.ConvRebox && code < jtype.ConvUnbox {
		return m.rebox(o, to)
	}
	return o
}

// ---------------------------------------------------------------------------
// Explicit casts
// ---------------------------------------------------------------------------

// Cast converts v to type t, allowing narrowing primitive conversions,
// unboxing, boxing and reference casts checked at run time.
func (v *Variable) Cast(t any) *Variable {
	m := v.m
	m.begin()
	to := m.class.resolve("Cast", t)
	from := v.Type()
	if from == to {
		return v.Get()
	}
	code := from.ConversionCode(to)
	if code != jtype.Disallowed {
		m.pushAs("Cast", varOperand{v}, to)
		return m.resultVar(to)
	}

	m.load(v)
	switch {
	case from.IsPrimitive() && to.IsPrimitive():
		m.castPrimitive("Cast", from, to)
	case from.IsPrimitive():
		// int -> Long: convert then box
		prim := to.Unbox()
		if prim == nil {
			fail("Cast", &jtype.ConversionError{From: from, To: to})
		}
		m.castPrimitive("Cast", from, prim)
		m.box(prim)
	case to.IsPrimitive():
		boxed := from
		if from.Unbox() == nil {
			if !jtype.IsAssignable(to.Box(), from) {
				fail("Cast", &jtype.ConversionError{From: from, To: to})
			}
			boxed = to.Box()
			m.checkcast(boxed)
		}
		prim := boxed.Unbox()
		m.unbox(boxed, prim)
		m.castPrimitive("Cast", prim, to)
	default:
		if to.Unbox() != nil && from.Unbox() != nil {
			// no narrowing between wrappers
			fail("Cast", &jtype.ConversionError{From: from, To: to})
		}
		if !jtype.IsAssignable(to, from) && !from.IsInterface() && !to.IsInterface() {
			fail("Cast", &jtype.ConversionError{From: from, To: to})
		}
		m.checkcast(to)
	}
	return m.resultVar(to)
}

func (m *MethodMaker) checkcast(t *jtype.Type) {
	m.code(bytecode.OpCheckcast, u2(m.pool().Class(t.InternalName())), 1, t)
}

// castPrimitive converts between primitive types on the stack.
func (m *MethodMaker) castPrimitive(op string, from, to *jtype.Type) {
	if from == to {
		return
	}
	if from == jtype.Boolean || to == jtype.Boolean {
		fail(op, &jtype.ConversionError{From: from, To: to})
	}
	fk, tk := from.StackKind(), to.StackKind()
	if fk != tk {
		m.code(castOpcodes[fk][tk], nil, 1, stackTypes[tk])
	}
	if tk != jtype.StackInt {
		return
	}
	switch to {
	case jtype.Byte:
		if from != jtype.Byte {
			m.code(bytecode.OpI2B, nil, 1, jtype.Byte)
		}
	case jtype.Short:
		if from != jtype.Short && from != jtype.Byte {
			m.code(bytecode.OpI2S, nil, 1, jtype.Short)
		}
	case jtype.Char:
		m.code(bytecode.OpI2C, nil, 1, jtype.Char)
	}
}

var stackTypes = map[jtype.StackKind]*jtype.Type{
	jtype.StackInt:    jtype.Int,
	jtype.StackLong:   jtype.Long,
	jtype.StackFloat:  jtype.Float,
	jtype.StackDouble: jtype.Double,
}

var castOpcodes = map[jtype.StackKind]map[jtype.StackKind]bytecode.Opcode{
	jtype.StackInt: {
		jtype.StackLong: bytecode.OpI2L, jtype.StackFloat: bytecode.OpI2F, jtype.StackDouble: bytecode.OpI2D,
	},
	jtype.StackLong: {
		jtype.StackInt: bytecode.OpL2I, jtype.StackFloat: bytecode.OpL2F, jtype.StackDouble: bytecode.OpL2D,
	},
	jtype.StackFloat: {
		jtype.StackInt: bytecode.OpF2I, jtype.StackLong: bytecode.OpF2L, jtype.StackDouble: bytecode.OpF2D,
	},
	jtype.StackDouble: {
		jtype.StackInt: bytecode.OpD2I, jtype.StackLong: bytecode.OpD2L, jtype.StackFloat: bytecode.OpD2F,
	},
}
