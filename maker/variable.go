package maker

import (
	"math"

	"github.com/chazu/jmaker/jtype"
)

// Variable is a handle to a local variable or parameter of one method.
// Handles are only valid with the method that created them.
type Variable struct {
	m  *MethodMaker
	id int
}

func (v *Variable) info() *varInfo { return v.m.vars[v.id] }

// Type returns the variable's type.
func (v *Variable) Type() *jtype.Type { return v.info().typ }

// Method returns the method that owns v.
func (v *Variable) Method() *MethodMaker { return v.m }

// Name gives the variable a name. Named variables keep their own slot, are
// listed in the local variable table and are never removed as dead.
func (v *Variable) Name(name string) *Variable {
	if name == "" {
		failf("Name", ErrUsage, "empty variable name")
	}
	v.info().name = name
	return v
}

// VarName returns the name given to v, if any.
func (v *Variable) VarName() string { return v.info().name }

// Set assigns value, which may be another Variable, a Field or a constant.
// Constants are accepted when their value survives conversion to v's type.
func (v *Variable) Set(value any) {
	m := v.m
	m.begin()
	info := v.info()
	if info.unmodifiable {
		failf("Set", ErrUsage, "%s is unmodifiable", m.describe(v))
	}
	m.pushAs("Set", m.operand("Set", value), info.typ)
	m.store(v)
}

// Get copies the current value into a new variable.
func (v *Variable) Get() *Variable {
	m := v.m
	m.begin()
	m.load(v)
	return m.resultVar(v.Type())
}

// Clear assigns the default value of v's type: zero, false or null.
func (v *Variable) Clear() {
	v.Set(zeroValue(v.Type()))
}

func zeroValue(t *jtype.Type) any {
	switch t.Kind() {
	case jtype.KindBoolean:
		return false
	case jtype.KindByte:
		return int8(0)
	case jtype.KindChar:
		return uint16(0)
	case jtype.KindShort:
		return int16(0)
	case jtype.KindInt:
		return int32(0)
	case jtype.KindLong:
		return int64(0)
	case jtype.KindFloat:
		return float32(0)
	case jtype.KindDouble:
		return float64(0)
	}
	return nil
}

// Inc adds a constant amount to v in place.
func (v *Variable) Inc(amount any) {
	m := v.m
	m.begin()
	t := v.Type()
	if t == jtype.Int {
		if n, ok := amount.(int); ok && n >= math.MinInt16 && n <= math.MaxInt16 {
			m.add(&incOp{v: v.id, amount: int32(n)})
			m.vars[v.id].loads++
			return
		}
		if n, ok := amount.(int32); ok && n >= math.MinInt16 && n <= math.MaxInt16 {
			m.add(&incOp{v: v.id, amount: n})
			m.vars[v.id].loads++
			return
		}
	}
	v.Set(v.Add(m.narrowAmount("Inc", amount, t)))
}

// narrowAmount converts a constant increment to the variable's primitive
// type so that small types keep their width.
func (m *MethodMaker) narrowAmount(op string, amount any, t *jtype.Type) any {
	prim := t.Unbox()
	if prim == nil || !prim.IsNumeric() {
		failf(op, ErrUsage, "cannot increment %s", t)
	}
	value, from, err := jtype.NormalizeConstant(amount)
	if err != nil {
		if _, ok := amount.(*Variable); ok {
			return amount
		}
		failf(op, ErrUsage, "%v", err)
	}
	narrowed, ok := jtype.NarrowConstant(value, prim)
	if !ok {
		fail(op, &jtype.ConversionError{From: from, To: prim, Value: value})
	}
	return narrowed
}

// checkVar rejects variables created by another method.
func (m *MethodMaker) checkVar(op string, v *Variable) {
	if v == nil {
		failf(op, ErrUsage, "nil variable")
	}
	if v.m != m {
		failf(op, ErrForeignHandle, "variable of %s used in %s", v.m, m)
	}
}
