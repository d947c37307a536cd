package maker

import (
	"fmt"

	"github.com/chazu/jmaker/bytecode"
	"github.com/chazu/jmaker/jtype"
)

// Invoke calls a method of the class being built. Instance methods are
// called on this.
func (m *MethodMaker) Invoke(name string, args ...any) *Variable {
	m.begin()
	ops := m.operands("Invoke", args)
	jm := m.findMethod("Invoke", m.class.typ, name, ops, jtype.AnyStatic)
	if jm.Static {
		return m.invoke(bytecode.OpInvokestatic, jm, nil, ops)
	}
	return m.invoke(bytecode.OpInvokevirtual, jm, m.This(), ops)
}

// Invoke calls a method on the object held by v. Static methods of v's
// type are called without a receiver.
func (v *Variable) Invoke(name string, args ...any) *Variable {
	m := v.m
	m.begin()
	t := v.Type()
	if !t.IsObject() || t == jtype.Null {
		failf("Invoke", ErrUsage, "cannot invoke %s on %s", name, t)
	}
	owner := t
	if t.IsArray() {
		owner = jtype.Object
	}
	ops := m.operands("Invoke", args)
	jm := m.findMethod("Invoke", owner, name, ops, jtype.AnyStatic)
	if jm.Static {
		return m.invoke(bytecode.OpInvokestatic, jm, nil, ops)
	}
	if jm.Interface {
		return m.invoke(bytecode.OpInvokeinterface, jm, v, ops)
	}
	return m.invoke(bytecode.OpInvokevirtual, jm, v, ops)
}

// InvokeStatic calls a static method of any class.
func (m *MethodMaker) InvokeStatic(t any, name string, args ...any) *Variable {
	m.begin()
	owner := m.class.resolve("InvokeStatic", t)
	ops := m.operands("InvokeStatic", args)
	jm := m.findMethod("InvokeStatic", owner, name, ops, jtype.StaticOnly)
	return m.invoke(bytecode.OpInvokestatic, jm, nil, ops)
}

// InvokeSuperConstructor calls a superclass constructor on this.
func (m *MethodMaker) InvokeSuperConstructor(args ...any) {
	m.invokeConstructor("InvokeSuperConstructor", m.class.super, args)
}

// InvokeThisConstructor calls another constructor of the class being built
// on this.
func (m *MethodMaker) InvokeThisConstructor(args ...any) {
	m.invokeConstructor("InvokeThisConstructor", m.class.typ, args)
}

func (m *MethodMaker) invokeConstructor(op string, owner *jtype.Type, args []any) {
	m.begin()
	if !m.isConstructor() {
		failf(op, ErrUsage, "%s is not a constructor", m)
	}
	ops := m.operands(op, args)
	jm := m.findMethod(op, owner, "<init>", ops, jtype.InstanceOnly)
	ops = m.stableArgs(jm, ops)
	m.load(m.This())
	m.pushArgs(op, jm, ops)
	c := m.code(bytecode.OpInvokespecial, m.methodRef(jm), len(ops)+1, nil)
	c.initCall = true
	m.inits++
}

// New allocates an object and calls the constructor matching args.
func (m *MethodMaker) New(t any, args ...any) *Variable {
	m.begin()
	typ := m.class.resolve("New", t)
	if typ.IsArray() {
		return m.NewArray(typ, args...)
	}
	if !typ.IsObject() || typ == jtype.Null || typ.IsInterface() {
		failf("New", ErrUsage, "cannot instantiate %s", typ)
	}
	ops := m.operands("New", args)
	jm := m.findMethod("New", typ, "<init>", ops, jtype.InstanceOnly)
	ops = m.stableArgs(jm, ops)
	cls := u2(m.pool().Class(typ.InternalName()))
	m.add(&codeOp{code: bytecode.OpNew, operands: cls, push: typ, alloc: true})
	m.code(bytecode.OpDup, nil, 0, nil)
	m.pushArgs("New", jm, ops)
	c := m.code(bytecode.OpInvokespecial, m.methodRef(jm), len(ops)+1, nil)
	c.initCall = true
	return m.resultVar(typ)
}

func (m *MethodMaker) findMethod(op string, owner *jtype.Type, name string, ops []operand, mode jtype.StaticMode) *jtype.Method {
	jm, err := owner.FindMethod(name, operandTypes(ops), mode)
	if err != nil {
		fail(op, fmt.Errorf("%w: %v", ErrUsage, err))
	}
	return jm
}

// stableArgs stores arguments needing branchy conversions in variables so
// that argument pushing is straight-line code.
func (m *MethodMaker) stableArgs(jm *jtype.Method, ops []operand) []operand {
	out := make([]operand, len(ops))
	for i, o := range ops {
		out[i] = m.stable(o, jm.Params[i])
	}
	return out
}

func (m *MethodMaker) pushArgs(op string, jm *jtype.Method, ops []operand) {
	for i, o := range ops {
		m.pushAs(op, o, jm.Params[i])
	}
}

func (m *MethodMaker) methodRef(jm *jtype.Method) []byte {
	owner := jm.Owner.InternalName()
	desc := jm.Descriptor()
	if jm.Interface {
		return u2(m.pool().InterfaceMethodref(owner, jm.Name, desc))
	}
	return u2(m.pool().Methodref(owner, jm.Name, desc))
}

func (m *MethodMaker) invoke(code bytecode.Opcode, jm *jtype.Method, recv *Variable, ops []operand) *Variable {
	pops := len(ops)
	if recv != nil {
		ops = m.stableArgs(jm, ops)
		m.load(recv)
		pops++
	}
	m.pushArgs(jm.Name, jm, ops)
	operands := m.methodRef(jm)
	if code == bytecode.OpInvokeinterface {
		slots := 1
		for _, p := range jm.Params {
			slots += p.SlotWidth()
		}
		operands = append(operands, byte(slots), 0)
	}
	var push *jtype.Type
	if jm.Return != jtype.Void {
		push = jm.Return
	}
	m.code(code, operands, pops, push)
	if push == nil {
		return nil
	}
	return m.resultVar(push)
}

// ---------------------------------------------------------------------------
// Arrays
// ---------------------------------------------------------------------------

var newarrayCodes = map[jtype.Kind]byte{
	jtype.KindBoolean: 4,
	jtype.KindChar:    5,
	jtype.KindFloat:   6,
	jtype.KindDouble:  7,
	jtype.KindByte:    8,
	jtype.KindShort:   9,
	jtype.KindInt:     10,
	jtype.KindLong:    11,
}

// NewArray allocates an array of type t with the given dimension lengths.
// Fewer lengths than dimensions leave inner arrays null.
func (m *MethodMaker) NewArray(t any, dims ...any) *Variable {
	m.begin()
	typ := m.class.resolve("NewArray", t)
	if !typ.IsArray() {
		failf("NewArray", ErrUsage, "%s is not an array type", typ)
	}
	if len(dims) == 0 || len(dims) > typ.Dimensions() || len(dims) > 255 {
		failf("NewArray", ErrUsage, "bad dimension count %d for %s", len(dims), typ)
	}
	for _, d := range dims {
		m.pushAs("NewArray", m.operand("NewArray", d), jtype.Int)
	}
	elem := typ.Elem()
	switch {
	case len(dims) > 1:
		ops := append(u2(m.pool().Class(typ.InternalName())), byte(len(dims)))
		m.code(bytecode.OpMultianewarray, ops, len(dims), typ)
	case elem.IsPrimitive():
		m.code(bytecode.OpNewarray, []byte{newarrayCodes[elem.Kind()]}, 1, typ)
	default:
		m.code(bytecode.OpAnewarray, u2(m.pool().Class(elem.InternalName())), 1, typ)
	}
	return m.resultVar(typ)
}

func (v *Variable) arrayElem(op string) *jtype.Type {
	if !v.Type().IsArray() {
		failf(op, ErrUsage, "%s is not an array", v.m.describe(v))
	}
	return v.Type().Elem()
}

// Alength returns the length of the array held by v.
func (v *Variable) Alength() *Variable {
	m := v.m
	m.begin()
	v.arrayElem("Alength")
	m.load(v)
	m.code(bytecode.OpArraylength, nil, 1, jtype.Int)
	return m.resultVar(jtype.Int)
}

// Aget returns element index of the array held by v.
func (v *Variable) Aget(index any) *Variable {
	m := v.m
	m.begin()
	elem := v.arrayElem("Aget")
	m.load(v)
	m.pushAs("Aget", m.operand("Aget", index), jtype.Int)
	m.code(bytecode.OpIaload+arrayOffset(elem), nil, 2, elem)
	return m.resultVar(elem)
}

// Aset stores value at element index of the array held by v.
func (v *Variable) Aset(index, value any) {
	m := v.m
	m.begin()
	elem := v.arrayElem("Aset")
	idx := m.stable(m.operand("Aset", index), jtype.Int)
	val := m.stable(m.operand("Aset", value), elem)
	m.load(v)
	m.pushAs("Aset", idx, jtype.Int)
	m.pushAs("Aset", val, elem)
	m.code(bytecode.OpIastore+arrayOffset(elem), nil, 3, nil)
}

// arrayOffset is the offset from iaload/iastore of the element's opcode.
func arrayOffset(elem *jtype.Type) bytecode.Opcode {
	switch elem.Kind() {
	case jtype.KindLong:
		return 1
	case jtype.KindFloat:
		return 2
	case jtype.KindDouble:
		return 3
	case jtype.KindBoolean, jtype.KindByte:
		return 5
	case jtype.KindChar:
		return 6
	case jtype.KindShort:
		return 7
	case jtype.KindInt:
		return 0
	}
	return 4
}

// ---------------------------------------------------------------------------
// Objects
// ---------------------------------------------------------------------------

// InstanceOf reports whether v holds an instance of t.
func (v *Variable) InstanceOf(t any) *Variable {
	m := v.m
	m.begin()
	typ := m.class.resolve("InstanceOf", t)
	if !v.Type().IsObject() || !typ.IsObject() || typ == jtype.Null {
		failf("InstanceOf", ErrUsage, "instanceof between %s and %s", v.Type(), typ)
	}
	m.load(v)
	m.code(bytecode.OpInstanceof, u2(m.pool().Class(typ.InternalName())), 1, jtype.Boolean)
	return m.resultVar(jtype.Boolean)
}

// Throw throws the exception held by x.
func (m *MethodMaker) Throw(x any) {
	m.begin()
	m.pushAs("Throw", m.operand("Throw", x), jtype.Throwable)
	m.add(&codeOp{code: bytecode.OpAthrow, pops: 1, ends: true})
}

// MonitorEnter acquires the monitor of the object held by x.
func (m *MethodMaker) MonitorEnter(x any) {
	m.begin()
	m.pushAs("MonitorEnter", m.operand("MonitorEnter", x), jtype.Object)
	m.code(bytecode.OpMonitorenter, nil, 1, nil)
}

// MonitorExit releases the monitor of the object held by x.
func (m *MethodMaker) MonitorExit(x any) {
	m.begin()
	m.pushAs("MonitorExit", m.operand("MonitorExit", x), jtype.Object)
	m.code(bytecode.OpMonitorexit, nil, 1, nil)
}

// Sync runs body holding the monitor of lock, releasing it on every exit.
func (m *MethodMaker) Sync(lock any, body func()) {
	m.begin()
	o := m.operand("Sync", lock)
	v, ok := o.(varOperand)
	if !ok {
		m.pushAs("Sync", o, jtype.Object)
		v = varOperand{m.resultVar(jtype.Object)}
	}
	m.MonitorEnter(v.v)
	start := m.Label().Here()
	body()
	m.Finally(start, func() { m.MonitorExit(v.v) })
}
