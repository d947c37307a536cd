package maker

import (
	"fmt"

	"github.com/chazu/jmaker/bytecode"
	"github.com/chazu/jmaker/jtype"
)

// Field is a handle for accessing a static field, or an instance field of
// a particular object, from one method.
type Field struct {
	m   *MethodMaker
	f   *jtype.Field
	obj *Variable
}

// Type returns the field type.
func (f *Field) Type() *jtype.Type { return f.f.Type }

// Name returns the field name.
func (f *Field) Name() string { return f.f.Name }

// Field accesses a field of the class being built: static fields directly,
// instance fields through this.
func (m *MethodMaker) Field(name string) *Field {
	m.begin()
	jf := m.lookupField("Field", m.class.typ, name)
	if jf.Static {
		return &Field{m: m, f: jf}
	}
	return &Field{m: m, f: jf, obj: m.This()}
}

// StaticField accesses a static field of any class.
func (m *MethodMaker) StaticField(t any, name string) *Field {
	m.begin()
	jf := m.lookupField("StaticField", m.class.resolve("StaticField", t), name)
	if !jf.Static {
		failf("StaticField", ErrUsage, "%s.%s is not static", jf.Owner, name)
	}
	return &Field{m: m, f: jf}
}

// Field accesses a field of the object held by v.
func (v *Variable) Field(name string) *Field {
	m := v.m
	m.begin()
	jf := m.lookupField("Field", v.Type(), name)
	if jf.Static {
		return &Field{m: m, f: jf}
	}
	return &Field{m: m, f: jf, obj: v}
}

func (m *MethodMaker) lookupField(op string, t *jtype.Type, name string) *jtype.Field {
	if !t.IsObject() || t.IsArray() {
		failf(op, ErrUsage, "%s has no fields", t)
	}
	jf, err := t.FindField(name)
	if err != nil {
		fail(op, fmt.Errorf("%w: %v", ErrUsage, err))
	}
	return jf
}

func (m *MethodMaker) checkField(op string, f *Field) {
	if f == nil {
		failf(op, ErrUsage, "nil field")
	}
	if f.m != m {
		failf(op, ErrForeignHandle, "field of %s used in %s", f.m, m)
	}
}

func (m *MethodMaker) fieldRef(f *jtype.Field) []byte {
	return u2(m.pool().Fieldref(f.Owner.InternalName(), f.Name, f.Type.Descriptor()))
}

// pushField records a getfield or getstatic.
func (m *MethodMaker) pushField(f *Field) {
	if f.obj == nil {
		m.code(bytecode.OpGetstatic, m.fieldRef(f.f), 0, f.f.Type)
		return
	}
	m.load(f.obj)
	m.code(bytecode.OpGetfield, m.fieldRef(f.f), 1, f.f.Type)
}

// Get copies the field value into a new variable.
func (f *Field) Get() *Variable {
	m := f.m
	m.begin()
	m.pushField(f)
	return m.resultVar(f.f.Type)
}

// Set assigns the field.
func (f *Field) Set(value any) {
	m := f.m
	m.begin()
	o := m.operand("Set", value)
	if f.obj == nil {
		m.pushAs("Set", o, f.f.Type)
		m.code(bytecode.OpPutstatic, m.fieldRef(f.f), 1, nil)
		return
	}
	o = m.stable(o, f.f.Type)
	m.load(f.obj)
	m.pushAs("Set", o, f.f.Type)
	m.code(bytecode.OpPutfield, m.fieldRef(f.f), 2, nil)
}

// Inc adds a constant amount to the field.
func (f *Field) Inc(amount any) {
	m := f.m
	m.begin()
	v := f.Get()
	f.Set(v.Add(m.narrowAmount("Inc", amount, f.f.Type)))
}
