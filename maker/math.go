package maker

import (
	"github.com/chazu/jmaker/bytecode"
	"github.com/chazu/jmaker/jtype"
)

// Base opcodes of the typed arithmetic families. The long, float and
// double forms follow the int form at offsets 1, 2 and 3.
type arith struct {
	name    string
	base    bytecode.Opcode
	integer bool // int and long only
	logical bool // also defined on boolean
	shift   bool
}

var (
	opAdd  = arith{name: "Add", base: bytecode.OpIadd}
	opSub  = arith{name: "Sub", base: bytecode.OpIsub}
	opMul  = arith{name: "Mul", base: bytecode.OpImul}
	opDiv  = arith{name: "Div", base: bytecode.OpIdiv}
	opRem  = arith{name: "Rem", base: bytecode.OpIrem}
	opAnd  = arith{name: "And", base: bytecode.OpIand, integer: true, logical: true}
	opOr   = arith{name: "Or", base: bytecode.OpIor, integer: true, logical: true}
	opXor  = arith{name: "Xor", base: bytecode.OpIxor, integer: true, logical: true}
	opShl  = arith{name: "Shl", base: bytecode.OpIshl, integer: true, shift: true}
	opShr  = arith{name: "Shr", base: bytecode.OpIshr, integer: true, shift: true}
	opUshr = arith{name: "Ushr", base: bytecode.OpIushr, integer: true, shift: true}
)

// Add returns v + x.
func (v *Variable) Add(x any) *Variable { return v.m.binary(opAdd, v, x) }

// Sub returns v - x.
func (v *Variable) Sub(x any) *Variable { return v.m.binary(opSub, v, x) }

// Mul returns v * x.
func (v *Variable) Mul(x any) *Variable { return v.m.binary(opMul, v, x) }

// Div returns v / x.
func (v *Variable) Div(x any) *Variable { return v.m.binary(opDiv, v, x) }

// Rem returns v % x.
func (v *Variable) Rem(x any) *Variable { return v.m.binary(opRem, v, x) }

// And returns v & x. Booleans are allowed.
func (v *Variable) And(x any) *Variable { return v.m.binary(opAnd, v, x) }

// Or returns v | x. Booleans are allowed.
func (v *Variable) Or(x any) *Variable { return v.m.binary(opOr, v, x) }

// Xor returns v ^ x. Booleans are allowed.
func (v *Variable) Xor(x any) *Variable { return v.m.binary(opXor, v, x) }

// Shl returns v << x.
func (v *Variable) Shl(x any) *Variable { return v.m.binary(opShl, v, x) }

// Shr returns v >> x.
func (v *Variable) Shr(x any) *Variable { return v.m.binary(opShr, v, x) }

// Ushr returns v >>> x.
func (v *Variable) Ushr(x any) *Variable { return v.m.binary(opUshr, v, x) }

// Neg returns -v.
func (v *Variable) Neg() *Variable {
	m := v.m
	m.begin()
	t := m.unaryType("Neg", v.Type(), false)
	m.pushAs("Neg", varOperand{v}, t)
	m.code(bytecode.OpIneg+typeOffset(t), nil, 1, t)
	m.narrowResult(t)
	return m.resultVar(t)
}

// Com returns the bitwise complement ~v.
func (v *Variable) Com() *Variable {
	m := v.m
	m.begin()
	t := m.unaryType("Com", v.Type(), true)
	var minusOne any = int32(-1)
	if t == jtype.Long {
		minusOne = int64(-1)
	}
	return m.binaryAs(opXor, t, varOperand{v}, constOperand{value: minusOne, typ: jtype.ConstantTypeOf(minusOne)})
}

// Not returns the logical negation of a boolean.
func (v *Variable) Not() *Variable {
	m := v.m
	m.begin()
	if v.Type().Unbox() != jtype.Boolean {
		fail("Not", &jtype.ConversionError{From: v.Type(), To: jtype.Boolean})
	}
	return m.binaryAs(opXor, jtype.Boolean, varOperand{v}, constOperand{value: true, typ: jtype.Boolean})
}

func (m *MethodMaker) binary(a arith, v *Variable, x any) *Variable {
	m.begin()
	left := varOperand{v}
	right := m.operand(a.name, x)
	if a.shift {
		return m.shift(a, left, right)
	}
	t := m.binaryType(a, left, right)
	return m.binaryAs(a, t, left, right)
}

func (m *MethodMaker) binaryAs(a arith, t *jtype.Type, left, right operand) *Variable {
	m.pushAs(a.name, left, t)
	m.pushAs(a.name, right, t)
	m.code(a.base+typeOffset(t), nil, 2, t)
	m.narrowResult(t)
	return m.resultVar(t)
}

func (m *MethodMaker) shift(a arith, left, right operand) *Variable {
	t := m.unaryType(a.name, left.operandType(), true)
	m.pushAs(a.name, left, t)
	if a.base == bytecode.OpIushr && (t == jtype.Byte || t == jtype.Short) {
		mask := int32(0xff)
		if t == jtype.Short {
			mask = 0xffff
		}
		m.pushInt(mask, jtype.Int)
		m.code(bytecode.OpIand, nil, 2, jtype.Int)
	}
	count := right.operandType().Unbox()
	switch {
	case count == nil || !count.IsNumeric() || count.StackKind() == jtype.StackFloat || count.StackKind() == jtype.StackDouble:
		fail(a.name, &jtype.ConversionError{From: right.operandType(), To: jtype.Int})
	case count == jtype.Long:
		if c, ok := right.(constOperand); ok {
			m.pushInt(int32(c.value.(int64)&63), jtype.Int)
		} else {
			m.pushAs(a.name, right, jtype.Long)
			m.code(bytecode.OpL2I, nil, 1, jtype.Int)
		}
	default:
		m.pushAs(a.name, right, jtype.Int)
	}
	m.code(a.base+typeOffset(t), nil, 2, t)
	m.narrowResult(t)
	return m.resultVar(t)
}

// binaryType applies binary numeric promotion. Operands of one small type
// keep that type, and constants that fit the other operand's type adopt
// it.
func (m *MethodMaker) binaryType(a arith, left, right operand) *jtype.Type {
	lt, rt := left.operandType(), right.operandType()
	pl, pr := lt.Unbox(), rt.Unbox()
	if c, ok := right.(constOperand); ok && pl != nil && pr != nil && pl != pr {
		if _, ok := jtype.NarrowConstant(c.value, pl); ok {
			pr = pl
		}
	}
	if pl == nil || pr == nil {
		fail(a.name, &jtype.ConversionError{From: rt, To: lt})
	}
	if pl == jtype.Boolean || pr == jtype.Boolean {
		if pl != pr || !a.logical {
			fail(a.name, &jtype.ConversionError{From: rt, To: lt})
		}
		return jtype.Boolean
	}
	var t *jtype.Type
	switch {
	case pl == pr:
		t = pl
	case pl == jtype.Double || pr == jtype.Double:
		t = jtype.Double
	case pl == jtype.Float || pr == jtype.Float:
		t = jtype.Float
	case pl == jtype.Long || pr == jtype.Long:
		t = jtype.Long
	default:
		t = jtype.Int
	}
	if a.integer && (t == jtype.Float || t == jtype.Double) {
		fail(a.name, &jtype.ConversionError{From: rt, To: jtype.Long})
	}
	return t
}

// unaryType unboxes t for a unary numeric operation.
func (m *MethodMaker) unaryType(op string, t *jtype.Type, integer bool) *jtype.Type {
	p := t.Unbox()
	if p == nil || !p.IsNumeric() || integer && (p == jtype.Float || p == jtype.Double) {
		fail(op, &jtype.ConversionError{From: t, To: jtype.Int})
	}
	return p
}

// narrowResult truncates an int result back to a small type.
func (m *MethodMaker) narrowResult(t *jtype.Type) {
	switch t {
	case jtype.Byte:
		m.code(bytecode.OpI2B, nil, 1, t)
	case jtype.Short:
		m.code(bytecode.OpI2S, nil, 1, t)
	case jtype.Char:
		m.code(bytecode.OpI2C, nil, 1, t)
	}
}

func typeOffset(t *jtype.Type) bytecode.Opcode {
	switch t.StackKind() {
	case jtype.StackLong:
		return 1
	case jtype.StackFloat:
		return 2
	case jtype.StackDouble:
		return 3
	}
	return 0
}
