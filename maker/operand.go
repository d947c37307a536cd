package maker

import "github.com/chazu/jmaker/jtype"

// operand is a value argument to a builder call: a variable, a constant
// or a field.
type operand interface {
	operandType() *jtype.Type
}

type varOperand struct {
	v *Variable
}

type constOperand struct {
	value any
	typ   *jtype.Type
}

type fieldOperand struct {
	f *Field
}

func (o varOperand) operandType() *jtype.Type   { return o.v.Type() }
func (o constOperand) operandType() *jtype.Type { return o.typ }
func (o fieldOperand) operandType() *jtype.Type { return o.f.Type() }

// operand normalizes a builder argument.
func (m *MethodMaker) operand(op string, x any) operand {
	switch v := x.(type) {
	case *Variable:
		m.checkVar(op, v)
		return varOperand{v}
	case *Field:
		m.checkField(op, v)
		return fieldOperand{v}
	case operand:
		return v
	}
	value, t, err := jtype.NormalizeConstant(x)
	if err != nil {
		failf(op, ErrUsage, "%v", err)
	}
	return constOperand{value: value, typ: t}
}

func (m *MethodMaker) operands(op string, xs []any) []operand {
	out := make([]operand, len(xs))
	for i, x := range xs {
		out[i] = m.operand(op, x)
	}
	return out
}

func operandTypes(ops []operand) []*jtype.Type {
	types := make([]*jtype.Type, len(ops))
	for i, o := range ops {
		types[i] = o.operandType()
	}
	return types
}

// push records the instructions that put the operand on the stack.
func (m *MethodMaker) push(o operand) {
	switch o := o.(type) {
	case varOperand:
		m.load(o.v)
	case constOperand:
		m.pushConst(o.value, o.typ)
	case fieldOperand:
		m.pushField(o.f)
	}
}
