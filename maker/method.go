package maker

import (
	"fmt"
	"math"

	"github.com/chazu/jmaker/bytecode"
	"github.com/chazu/jmaker/classfile"
	"github.com/chazu/jmaker/jtype"
)

// ---------------------------------------------------------------------------
// MethodMaker
// ---------------------------------------------------------------------------

// MethodMaker records the body of one method. Builder calls record
// operations; nothing is lowered to bytes until the owning class is
// finished. A MethodMaker must only be used by one goroutine.
//
// Misuse (incompatible types, handles from another method, unknown
// members) panics with an *Error. Use Try to convert those panics into
// errors.
type MethodMaker struct {
	class  *ClassMaker
	name   string
	ret    *jtype.Type
	params []*jtype.Type
	access uint16
	method *jtype.Method
	throws []*jtype.Type

	begun     bool
	thisVar   *Variable
	paramVars []*Variable

	vars    []*varInfo
	labels  []*labelInfo
	main    opList
	list    *opList
	splices []splice
	regions []*region
	rel     *relational
	fusions []fusion
	line    int
	inits   int

	result *classfile.Code
}

type varInfo struct {
	typ          *jtype.Type
	name         string
	param        int // parameter index, -1 for this, -2 for locals
	unmodifiable bool

	loads      int
	slot       int
	start, end int
	used       bool
}

const (
	localVar  = -2
	paramThis = -1
)

func newMethod(c *ClassMaker, name string, ret *jtype.Type, params []*jtype.Type) *MethodMaker {
	m := &MethodMaker{class: c, name: name, ret: ret, params: params}
	m.list = &m.main
	return m
}

func (m *MethodMaker) String() string {
	return m.class.typ.Name() + "." + m.name + jtype.MethodDescriptor(m.ret, m.params)
}

// Class returns the class this method belongs to.
func (m *MethodMaker) Class() *ClassMaker { return m.class }

// Name returns the method name.
func (m *MethodMaker) Name() string { return m.name }

// ReturnType returns the declared return type.
func (m *MethodMaker) ReturnType() *jtype.Type { return m.ret }

func (m *MethodMaker) isStatic() bool { return m.access&classfile.AccStatic != 0 }

func (m *MethodMaker) isConstructor() bool { return m.name == "<init>" }

func (m *MethodMaker) modifier(op string, flag uint16) *MethodMaker {
	if m.begun {
		failf(op, ErrUsage, "modifiers must be set before the body of %s", m)
	}
	m.access |= flag
	return m
}

// Public makes the method public.
func (m *MethodMaker) Public() *MethodMaker { return m.modifier("Public", classfile.AccPublic) }

// Private makes the method private.
func (m *MethodMaker) Private() *MethodMaker { return m.modifier("Private", classfile.AccPrivate) }

// Protected makes the method protected.
func (m *MethodMaker) Protected() *MethodMaker {
	return m.modifier("Protected", classfile.AccProtected)
}

// Final makes the method final.
func (m *MethodMaker) Final() *MethodMaker { return m.modifier("Final", classfile.AccFinal) }

// Synchronized marks the method synchronized.
func (m *MethodMaker) Synchronized() *MethodMaker {
	return m.modifier("Synchronized", classfile.AccSynchronized)
}

// Varargs marks the method as taking variable arguments.
func (m *MethodMaker) Varargs() *MethodMaker { return m.modifier("Varargs", classfile.AccVarargs) }

// Static makes the method static. It must precede any body operation.
func (m *MethodMaker) Static() *MethodMaker {
	if m.isConstructor() {
		failf("Static", ErrUsage, "constructors cannot be static")
	}
	m.modifier("Static", classfile.AccStatic)
	m.method = m.class.typ.AddMethod(m.name, m.ret, true, m.params...)
	return m
}

// Abstract makes the method abstract; it then has no body.
func (m *MethodMaker) Abstract() *MethodMaker {
	return m.modifier("Abstract", classfile.AccAbstract)
}

// Throws adds a type to the method's throws clause.
func (m *MethodMaker) Throws(t any) *MethodMaker {
	m.throws = append(m.throws, m.class.resolve("Throws", t))
	return m
}

// begin fixes the parameter layout on the first body operation.
func (m *MethodMaker) begin() {
	if m.begun {
		return
	}
	if m.class.finished {
		fail(m.String(), ErrFinished)
	}
	if m.access&classfile.AccAbstract != 0 {
		failf(m.String(), ErrUsage, "abstract method has no body")
	}
	m.layoutParams()
}

func (m *MethodMaker) layoutParams() {
	m.begun = true
	if !m.isStatic() {
		m.thisVar = m.newVar(m.class.typ, paramThis)
		m.vars[m.thisVar.id].name = "this"
		m.vars[m.thisVar.id].unmodifiable = true
	}
	for i, p := range m.params {
		m.paramVars = append(m.paramVars, m.newVar(p, i))
	}
}

func (m *MethodMaker) newVar(t *jtype.Type, param int) *Variable {
	m.vars = append(m.vars, &varInfo{typ: t, param: param, slot: -1})
	return &Variable{m: m, id: len(m.vars) - 1}
}

// This returns the receiver. It panics in static methods.
func (m *MethodMaker) This() *Variable {
	m.begin()
	if m.thisVar == nil {
		failf("This", ErrUsage, "static method %s has no this", m)
	}
	return m.thisVar
}

// Param returns parameter i, not counting this.
func (m *MethodMaker) Param(i int) *Variable {
	m.begin()
	if i < 0 || i >= len(m.paramVars) {
		failf("Param", ErrUsage, "%s has no parameter %d", m, i)
	}
	return m.paramVars[i]
}

// Var declares a new local variable of the given type. The type may be a
// *jtype.Type, a *ClassMaker or a type name.
func (m *MethodMaker) Var(t any) *Variable {
	m.begin()
	typ := m.class.resolve("Var", t)
	if typ == jtype.Void || typ == jtype.Null {
		failf("Var", ErrUsage, "variables cannot have type %s", typ)
	}
	return m.newVar(typ, localVar)
}

// LineNum sets the source line recorded for subsequent operations.
func (m *MethodMaker) LineNum(line int) {
	m.begin()
	if line <= 0 || line > math.MaxUint16 {
		failf("LineNum", ErrUsage, "line %d out of range", line)
	}
	if m.class.opts.LineNumbers {
		m.add(&lineOp{line: line})
	}
}

// Nop emits a nop instruction.
func (m *MethodMaker) Nop() {
	m.begin()
	m.code(bytecode.OpNop, nil, 0, nil)
}

// Return returns from the method. Void methods take no value.
func (m *MethodMaker) Return(value ...any) {
	m.begin()
	switch {
	case m.ret == jtype.Void:
		if len(value) != 0 {
			failf("Return", ErrUsage, "%s returns void", m)
		}
		m.add(&codeOp{code: bytecode.OpReturn, ends: true})
	case len(value) != 1:
		failf("Return", ErrUsage, "%s must return a %s", m, m.ret)
	default:
		m.pushAs("Return", m.operand("Return", value[0]), m.ret)
		m.add(&codeOp{code: returnOpcode(m.ret), pops: 1, ends: true})
	}
}

func returnOpcode(t *jtype.Type) bytecode.Opcode {
	switch t.StackKind() {
	case jtype.StackInt:
		return bytecode.OpIreturn
	case jtype.StackLong:
		return bytecode.OpLreturn
	case jtype.StackFloat:
		return bytecode.OpFreturn
	case jtype.StackDouble:
		return bytecode.OpDreturn
	case jtype.StackVoid:
		return bytecode.OpReturn
	}
	return bytecode.OpAreturn
}

// Goto branches unconditionally to l.
func (m *MethodMaker) Goto(l *Label) {
	m.begin()
	m.checkLabel("Goto", l)
	m.branch(bytecode.OpGoto, l.id)
}

// ---------------------------------------------------------------------------
// Recording helpers
// ---------------------------------------------------------------------------

func (m *MethodMaker) add(o op) {
	m.list.append(o)
}

// code records a plain instruction.
func (m *MethodMaker) code(code bytecode.Opcode, operands []byte, pops int, push *jtype.Type) *codeOp {
	o := &codeOp{code: code, operands: operands, pops: pops, push: push}
	m.add(o)
	return o
}

// pure records a side-effect free push.
func (m *MethodMaker) pure(code bytecode.Opcode, operands []byte, push *jtype.Type) {
	m.add(&codeOp{code: code, operands: operands, push: push, pure: true})
}

func (m *MethodMaker) branch(code bytecode.Opcode, target int) *branchOp {
	b := &branchOp{code: code, target: target}
	m.add(b)
	return b
}

func (m *MethodMaker) load(v *Variable) {
	m.vars[v.id].loads++
	m.add(&loadOp{v: v.id})
}

func (m *MethodMaker) store(v *Variable) {
	m.add(&storeOp{v: v.id})
}

func (m *MethodMaker) pool() *classfile.ConstantPool {
	return m.class.cf.Pool
}

func u2(v uint16) []byte {
	return []byte{byte(v >> 8), byte(v)}
}

// ldc loads a pool constant using the short form when the index allows.
func (m *MethodMaker) ldc(index uint16, t *jtype.Type) {
	switch {
	case t.IsWide():
		m.pure(bytecode.OpLdc2W, u2(index), t)
	case index <= math.MaxUint8:
		m.pure(bytecode.OpLdc, []byte{byte(index)}, t)
	default:
		m.pure(bytecode.OpLdcW, u2(index), t)
	}
}

// pushConst pushes a normalized constant of type t.
func (m *MethodMaker) pushConst(value any, t *jtype.Type) {
	switch v := value.(type) {
	case nil:
		m.pure(bytecode.OpAconstNull, nil, jtype.Null)
	case bool:
		if v {
			m.pure(bytecode.OpIconst1, nil, t)
		} else {
			m.pure(bytecode.OpIconst0, nil, t)
		}
	case int8:
		m.pushInt(int32(v), t)
	case int16:
		m.pushInt(int32(v), t)
	case uint16:
		m.pushInt(int32(v), t)
	case int32:
		m.pushInt(v, t)
	case int64:
		switch v {
		case 0:
			m.pure(bytecode.OpLconst0, nil, t)
		case 1:
			m.pure(bytecode.OpLconst1, nil, t)
		default:
			m.ldc(m.pool().Long(v), t)
		}
	case float32:
		switch math.Float32bits(v) {
		case 0:
			m.pure(bytecode.OpFconst0, nil, t)
		case math.Float32bits(1):
			m.pure(bytecode.OpFconst1, nil, t)
		case math.Float32bits(2):
			m.pure(bytecode.OpFconst2, nil, t)
		default:
			m.ldc(m.pool().Float(v), t)
		}
	case float64:
		switch math.Float64bits(v) {
		case 0:
			m.pure(bytecode.OpDconst0, nil, t)
		case math.Float64bits(1):
			m.pure(bytecode.OpDconst1, nil, t)
		default:
			m.ldc(m.pool().Double(v), t)
		}
	case string:
		m.ldc(m.pool().String(v), t)
	default:
		internalError("unexpected constant %T", value)
	}
}

func (m *MethodMaker) pushInt(v int32, t *jtype.Type) {
	switch {
	case v >= -1 && v <= 5:
		m.pure(bytecode.OpIconst0+bytecode.Opcode(v), nil, t)
	case v >= math.MinInt8 && v <= math.MaxInt8:
		m.pure(bytecode.OpBipush, []byte{byte(int8(v))}, t)
	case v >= math.MinInt16 && v <= math.MaxInt16:
		m.pure(bytecode.OpSipush, u2(uint16(int16(v))), t)
	default:
		m.ldc(m.pool().Integer(v), t)
	}
}

// resultVar stores the value on top of the stack into a new variable.
func (m *MethodMaker) resultVar(t *jtype.Type) *Variable {
	v := m.newVar(t, localVar)
	m.store(v)
	return v
}

func (m *MethodMaker) describe(v *Variable) string {
	info := m.vars[v.id]
	if info.name != "" {
		return fmt.Sprintf("%s %s", info.typ, info.name)
	}
	return info.typ.String()
}
