package maker

import (
	"strings"

	"github.com/chazu/jmaker/bytecode"
	"github.com/chazu/jmaker/classfile"
	"github.com/chazu/jmaker/jtype"
)

const bootstrapPrefix = "(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/MethodType;"

// Bootstrap names a static bootstrap method and the constants passed to it
// after the lookup, name and type. Args may hold strings, int, int32,
// int64, float32, float64 and types.
type Bootstrap struct {
	Class any
	Name  string
	Args  []any
}

// InvokeDynamic calls a dynamic call site linked by b. The call site has the
// given name and returns ret; args are pushed with their own types, null
// as Object. It returns nil for a void call site.
func (m *MethodMaker) InvokeDynamic(b Bootstrap, name string, ret any, args ...any) *Variable {
	m.begin()
	const op = "InvokeDynamic"
	if m.class.opts.Major < classfile.MajorJava7 {
		failf(op, ErrUsage, "invokedynamic needs class version %d, have %d", classfile.MajorJava7, m.class.opts.Major)
	}
	if name == "" || b.Name == "" {
		failf(op, ErrUsage, "call site and bootstrap need names")
	}
	rt := m.class.resolve(op, ret)
	ops := m.operands(op, args)
	bsm := m.bootstrapMethod(op, b)

	params := make([]*jtype.Type, len(ops))
	for i, o := range ops {
		t := o.operandType()
		if t == jtype.Null {
			t = jtype.Object
		}
		params[i] = t
		m.pushAs(op, o, t)
	}
	indy := m.pool().InvokeDynamic(bsm, name, jtype.MethodDescriptor(rt, params))
	var push *jtype.Type
	if rt != jtype.Void {
		push = rt
	}
	m.code(bytecode.OpInvokedynamic, append(u2(indy), 0, 0), len(ops), push)
	if push == nil {
		return nil
	}
	return m.resultVar(push)
}

// bootstrapMethod adds the handle and static arguments of b to the pool and
// registers them in the BootstrapMethods table.
func (m *MethodMaker) bootstrapMethod(op string, b Bootstrap) uint16 {
	p := m.pool()
	owner := m.class.resolve(op, b.Class)
	if !owner.IsObject() || owner.IsArray() || owner == jtype.Null {
		failf(op, ErrUsage, "bootstrap owner %s is not a class", owner)
	}
	var desc strings.Builder
	desc.WriteString(bootstrapPrefix)
	args := make([]uint16, len(b.Args))
	for i, a := range b.Args {
		switch a.(type) {
		case *jtype.Type, *ClassMaker:
			t := m.class.resolve(op, a)
			if !t.IsObject() || t == jtype.Null {
				failf(op, ErrUsage, "bootstrap argument %d: %s has no class constant", i, t)
			}
			args[i] = p.Class(t.InternalName())
			desc.WriteString(jtype.Class.Descriptor())
			continue
		}
		value, t, err := jtype.NormalizeConstant(a)
		if err != nil {
			failf(op, ErrUsage, "bootstrap argument %d: %v", i, err)
		}
		switch v := value.(type) {
		case string:
			args[i] = p.String(v)
		case int32:
			args[i] = p.Integer(v)
		case int64:
			args[i] = p.Long(v)
		case float32:
			args[i] = p.Float(v)
		case float64:
			args[i] = p.Double(v)
		default:
			failf(op, ErrUsage, "bootstrap argument %d: %s is not loadable", i, t)
		}
		desc.WriteString(t.Descriptor())
	}
	desc.WriteString(")Ljava/lang/invoke/CallSite;")

	var ref uint16
	if owner.IsInterface() {
		ref = p.InterfaceMethodref(owner.InternalName(), b.Name, desc.String())
	} else {
		ref = p.Methodref(owner.InternalName(), b.Name, desc.String())
	}
	return m.class.bootstrap(p.MethodHandle(classfile.RefInvokeStatic, ref), args)
}
