// Package maker builds JVM classes through an imperative API. Method
// bodies are recorded as operations on typed variables and labels, then
// lowered to verifiable bytecode when the class is finished: flow analysis
// with definite assignment, dead code reduction, local slot allocation,
// branch relaxation, exception table construction and stack map frames.
package maker

import (
	"fmt"
	"math"

	"github.com/tliron/commonlog"

	"github.com/chazu/jmaker/classfile"
	"github.com/chazu/jmaker/helpercache"
	"github.com/chazu/jmaker/jtype"
)

var log = commonlog.GetLogger("jmaker.maker")

// Options controls class generation.
type Options struct {
	// Universe interns class types. Classes that refer to each other must
	// share one.
	Universe *jtype.Universe

	Major              uint16 // class file major version
	MaxCodeSize        int    // code attribute ceiling in bytes
	MaxRelaxPasses     int    // branch relaxation passes before giving up
	MaxConcatSlots     int    // argument slots for a fused string concatenation
	LineNumbers        bool   // emit LineNumberTable
	LocalVariableTable bool   // emit LocalVariableTable for named variables

	// Helpers caches synthetic helper classes. Defaults to a process-wide
	// cache.
	Helpers *helpercache.Cache[Class]
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		Major:          classfile.MajorJava17,
		MaxCodeSize:    math.MaxUint16,
		MaxRelaxPasses: 64,
		MaxConcatSlots: 200,
		LineNumbers:    true,
	}
}

// SharedHelpers is the process-wide helper class cache.
var SharedHelpers = helpercache.New[Class]("helpers")

func (o *Options) normalize() {
	d := DefaultOptions()
	if o.Universe == nil {
		o.Universe = jtype.NewUniverse()
	}
	if o.Major == 0 {
		o.Major = d.Major
	}
	if o.MaxCodeSize <= 0 || o.MaxCodeSize > math.MaxUint16 {
		o.MaxCodeSize = d.MaxCodeSize
	}
	if o.MaxRelaxPasses <= 0 {
		o.MaxRelaxPasses = d.MaxRelaxPasses
	}
	if o.MaxConcatSlots <= 0 || o.MaxConcatSlots > d.MaxConcatSlots {
		o.MaxConcatSlots = d.MaxConcatSlots
	}
	if o.Helpers == nil {
		o.Helpers = SharedHelpers
	}
}

// Class is a finished class: its binary name, class file bytes and the
// synthetic helper classes it depends on. Holding a Class keeps its
// helpers in the helper cache.
type Class struct {
	Name    string
	Bytes   []byte
	Helpers []*Class
}

// ---------------------------------------------------------------------------
// ClassMaker
// ---------------------------------------------------------------------------

// ClassMaker builds one class. Distinct ClassMakers may be used from
// distinct goroutines.
type ClassMaker struct {
	opts     Options
	u        *jtype.Universe
	typ      *jtype.Type
	access   uint16
	super    *jtype.Type
	ifaces   []*jtype.Type
	declared bool
	source   string

	cf      *classfile.ClassFile
	fields  []*FieldMaker
	methods []*MethodMaker

	bootstraps     []classfile.BootstrapMethod
	bootstrapIndex map[string]uint16
	helpers        []*Class
	helperNames    map[string]bool
	finished       bool
}

// NewClass starts a class with the given binary name, such as
// "demo.Hello".
func NewClass(name string, opts Options) *ClassMaker {
	opts.normalize()
	if name == "" {
		failf("NewClass", ErrUsage, "empty class name")
	}
	c := &ClassMaker{
		opts:           opts,
		u:              opts.Universe,
		typ:            opts.Universe.Class(name),
		access:         classfile.AccSuper,
		super:          jtype.Object,
		cf:             &classfile.ClassFile{Major: opts.Major, Pool: classfile.NewConstantPool()},
		bootstrapIndex: make(map[string]uint16),
		helperNames:    make(map[string]bool),
	}
	if c.typ.IsDeclared() {
		failf("NewClass", ErrUsage, "class %s is already declared", name)
	}
	return c
}

// Type returns the type of the class being built.
func (c *ClassMaker) Type() *jtype.Type { return c.typ }

// Universe returns the universe the class is declared in.
func (c *ClassMaker) Universe() *jtype.Universe { return c.u }

func (c *ClassMaker) String() string { return c.typ.Name() }

func (c *ClassMaker) flag(op string, f uint16) *ClassMaker {
	if c.declared {
		failf(op, ErrUsage, "class modifiers must be set before members of %s", c)
	}
	c.access |= f
	return c
}

// Public makes the class public.
func (c *ClassMaker) Public() *ClassMaker { return c.flag("Public", classfile.AccPublic) }

// Final makes the class final.
func (c *ClassMaker) Final() *ClassMaker { return c.flag("Final", classfile.AccFinal) }

// Abstract makes the class abstract.
func (c *ClassMaker) Abstract() *ClassMaker { return c.flag("Abstract", classfile.AccAbstract) }

// Synthetic marks the class as generated.
func (c *ClassMaker) Synthetic() *ClassMaker { return c.flag("Synthetic", classfile.AccSynthetic) }

// Interface makes the class an interface.
func (c *ClassMaker) Interface() *ClassMaker {
	c.flag("Interface", classfile.AccInterface|classfile.AccAbstract)
	c.access &^= classfile.AccSuper
	return c
}

// Extend sets the superclass.
func (c *ClassMaker) Extend(super any) *ClassMaker {
	t := c.resolve("Extend", super)
	if c.declared {
		failf("Extend", ErrUsage, "superclass of %s must be set before members", c)
	}
	if !t.IsObject() || t.IsArray() || t == jtype.Null || t.IsInterface() {
		failf("Extend", ErrUsage, "%s cannot extend %s", c, t)
	}
	c.super = t
	return c
}

// Implement adds an interface.
func (c *ClassMaker) Implement(iface any) *ClassMaker {
	t := c.resolve("Implement", iface)
	if c.declared {
		failf("Implement", ErrUsage, "interfaces of %s must be set before members", c)
	}
	c.ifaces = append(c.ifaces, t)
	return c
}

// SourceFile sets the SourceFile attribute.
func (c *ClassMaker) SourceFile(name string) *ClassMaker {
	c.source = name
	return c
}

// declare fixes the class hierarchy in the universe.
func (c *ClassMaker) declare() {
	if c.declared {
		return
	}
	if c.finished {
		fail(c.String(), ErrFinished)
	}
	if _, err := c.u.Declare(c.typ.Name(), c.super, c.access&classfile.AccInterface != 0, c.ifaces...); err != nil {
		fail(c.String(), fmt.Errorf("%w: %v", ErrUsage, err))
	}
	c.declared = true
}

// resolve converts a type argument: a *jtype.Type, a *ClassMaker or a type
// name such as "int", "String" or "demo.Point[]".
func (c *ClassMaker) resolve(op string, arg any) *jtype.Type {
	switch t := arg.(type) {
	case *jtype.Type:
		if t == nil {
			break
		}
		return t
	case *ClassMaker:
		return t.typ
	case string:
		typ, err := c.u.Lookup(t)
		if err != nil {
			fail(op, fmt.Errorf("%w: %v", ErrUsage, err))
		}
		return typ
	}
	failf(op, ErrUsage, "bad type %v (%T)", arg, arg)
	return nil
}

func (c *ClassMaker) resolveAll(op string, specs []any) []*jtype.Type {
	out := make([]*jtype.Type, len(specs))
	for i, s := range specs {
		out[i] = c.resolve(op, s)
		if out[i] == jtype.Void {
			failf(op, ErrUsage, "parameters cannot be void")
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Members
// ---------------------------------------------------------------------------

// FieldMaker declares a field.
type FieldMaker struct {
	class  *ClassMaker
	field  *jtype.Field
	access uint16
	init   any
}

// AddField declares a field of the given type.
func (c *ClassMaker) AddField(t any, name string) *FieldMaker {
	c.declare()
	typ := c.resolve("AddField", t)
	if typ == jtype.Void || typ == jtype.Null {
		failf("AddField", ErrUsage, "field %s cannot have type %s", name, typ)
	}
	for _, f := range c.fields {
		if f.field.Name == name {
			failf("AddField", ErrUsage, "duplicate field %s.%s", c, name)
		}
	}
	if len(c.fields) >= math.MaxUint16 {
		fail("AddField", ErrLimit)
	}
	f := &FieldMaker{class: c, field: c.typ.AddField(name, typ, false)}
	c.fields = append(c.fields, f)
	return f
}

// Name returns the field name.
func (f *FieldMaker) Name() string { return f.field.Name }

// Type returns the field type.
func (f *FieldMaker) Type() *jtype.Type { return f.field.Type }

// Public makes the field public.
func (f *FieldMaker) Public() *FieldMaker { f.access |= classfile.AccPublic; return f }

// Private makes the field private.
func (f *FieldMaker) Private() *FieldMaker { f.access |= classfile.AccPrivate; return f }

// Protected makes the field protected.
func (f *FieldMaker) Protected() *FieldMaker { f.access |= classfile.AccProtected; return f }

// Final makes the field final.
func (f *FieldMaker) Final() *FieldMaker { f.access |= classfile.AccFinal; return f }

// Volatile makes the field volatile.
func (f *FieldMaker) Volatile() *FieldMaker { f.access |= classfile.AccVolatile; return f }

// Transient makes the field transient.
func (f *FieldMaker) Transient() *FieldMaker { f.access |= classfile.AccTransient; return f }

// Static makes the field static.
func (f *FieldMaker) Static() *FieldMaker {
	f.access |= classfile.AccStatic
	f.field = f.class.typ.AddField(f.field.Name, f.field.Type, true)
	return f
}

// Init sets the ConstantValue of a static field. The value must be
// representable in the field's type.
func (f *FieldMaker) Init(value any) *FieldMaker {
	v, from, err := jtype.NormalizeConstant(value)
	if err != nil || v == nil {
		failf("Init", ErrUsage, "bad initial value %v for %s", value, f.field.Name)
	}
	to := f.field.Type
	switch {
	case to == jtype.String:
		if from != jtype.String {
			fail("Init", &jtype.ConversionError{From: from, To: to, Value: v})
		}
	case to.IsPrimitive():
		narrowed, ok := jtype.NarrowConstant(v, to)
		if !ok {
			fail("Init", &jtype.ConversionError{From: from, To: to, Value: v})
		}
		v = narrowed
	default:
		failf("Init", ErrUsage, "field %s of type %s cannot have a constant value", f.field.Name, to)
	}
	f.init = v
	return f
}

// InitInt is Init for int-like constants.
func (f *FieldMaker) InitInt(value int64) *FieldMaker {
	if f.field.Type == jtype.Long {
		return f.Init(value)
	}
	return f.Init(int32Checked(value))
}

// InitString is Init for string constants.
func (f *FieldMaker) InitString(value string) *FieldMaker { return f.Init(value) }

func int32Checked(v int64) any {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return v
	}
	return int32(v)
}

// AddMethod declares a method. Types may be given as *jtype.Type,
// *ClassMaker or type names.
func (c *ClassMaker) AddMethod(ret any, name string, params ...any) *MethodMaker {
	c.declare()
	if name == "" || name == "<init>" || name == "<clinit>" {
		failf("AddMethod", ErrUsage, "bad method name %q", name)
	}
	r := c.resolve("AddMethod", ret)
	m := c.addMethod(name, r, c.resolveAll("AddMethod", params), false)
	if c.access&classfile.AccInterface != 0 {
		m.access |= classfile.AccPublic | classfile.AccAbstract
	}
	return m
}

// AddConstructor declares a constructor.
func (c *ClassMaker) AddConstructor(params ...any) *MethodMaker {
	c.declare()
	return c.addMethod("<init>", jtype.Void, c.resolveAll("AddConstructor", params), false)
}

// AddClinit declares the static initializer.
func (c *ClassMaker) AddClinit() *MethodMaker {
	c.declare()
	for _, m := range c.methods {
		if m.name == "<clinit>" {
			failf("AddClinit", ErrUsage, "%s already has a static initializer", c)
		}
	}
	m := c.addMethod("<clinit>", jtype.Void, nil, true)
	m.access = classfile.AccStatic
	return m
}

func (c *ClassMaker) addMethod(name string, ret *jtype.Type, params []*jtype.Type, static bool) *MethodMaker {
	if c.finished {
		fail(c.String(), ErrFinished)
	}
	desc := jtype.MethodDescriptor(ret, params)
	for _, m := range c.methods {
		if m.name == name && jtype.MethodDescriptor(m.ret, m.params) == desc {
			failf("AddMethod", ErrUsage, "duplicate method %s.%s%s", c, name, desc)
		}
	}
	if len(c.methods) >= math.MaxUint16 {
		fail("AddMethod", ErrLimit)
	}
	slots := 0
	if !static {
		slots++
	}
	for _, p := range params {
		slots += p.SlotWidth()
	}
	if slots > math.MaxUint8 {
		failf("AddMethod", ErrLimit, "too many parameters for %s", name)
	}
	m := newMethod(c, name, ret, params)
	if static {
		m.access |= classfile.AccStatic
	}
	if name != "<clinit>" {
		m.method = c.typ.AddMethod(name, ret, static, params...)
	}
	c.methods = append(c.methods, m)
	return m
}

// bootstrap registers a bootstrap method, returning its table index.
func (c *ClassMaker) bootstrap(handle uint16, args []uint16) uint16 {
	key := fmt.Sprint(handle, args)
	if i, ok := c.bootstrapIndex[key]; ok {
		return i
	}
	i := uint16(len(c.bootstraps))
	c.bootstraps = append(c.bootstraps, classfile.BootstrapMethod{Handle: handle, Args: args})
	c.bootstrapIndex[key] = i
	return i
}

// addHelper keeps a strong reference to a helper class.
func (c *ClassMaker) addHelper(h *Class) {
	if !c.helperNames[h.Name] {
		c.helperNames[h.Name] = true
		c.helpers = append(c.helpers, h)
	}
}

// ---------------------------------------------------------------------------
// Finish
// ---------------------------------------------------------------------------

// Finish compiles every method and encodes the class. The ClassMaker
// cannot be used afterwards.
func (c *ClassMaker) Finish() (*Class, error) {
	if c.finished {
		return nil, &Error{Op: c.String(), Err: ErrFinished}
	}
	if err := Try(c.declare); err != nil {
		return nil, err
	}
	c.finished = true

	cf := c.cf
	p := cf.Pool
	cf.Access = c.access
	cf.This = p.Class(c.typ.InternalName())
	cf.Super = p.Class(c.super.InternalName())
	for _, i := range c.ifaces {
		cf.Interfaces = append(cf.Interfaces, p.Class(i.InternalName()))
	}

	for _, f := range c.fields {
		mem := &classfile.Member{
			Access:     f.access,
			Name:       p.Utf8(f.field.Name),
			Descriptor: p.Utf8(f.field.Type.Descriptor()),
		}
		if f.init != nil && f.access&classfile.AccStatic != 0 {
			mem.Attributes = append(mem.Attributes, classfile.ConstantValue(p, constantIndex(p, f.init)))
		}
		cf.Fields = append(cf.Fields, mem)
	}

	for _, m := range c.methods {
		mem := &classfile.Member{
			Access:     m.access,
			Name:       p.Utf8(m.name),
			Descriptor: p.Utf8(jtype.MethodDescriptor(m.ret, m.params)),
		}
		if m.access&(classfile.AccAbstract|classfile.AccNative) == 0 {
			if err := m.finish(); err != nil {
				return nil, err
			}
			mem.Attributes = append(mem.Attributes, m.result.Attribute(p))
		}
		if len(m.throws) > 0 {
			names := make([]string, len(m.throws))
			for i, t := range m.throws {
				names[i] = t.InternalName()
			}
			mem.Attributes = append(mem.Attributes, classfile.Exceptions(p, names))
		}
		cf.Methods = append(cf.Methods, mem)
	}

	if c.source != "" {
		cf.Attributes = append(cf.Attributes, classfile.SourceFile(p, c.source))
	}
	if len(c.bootstraps) > 0 {
		cf.Attributes = append(cf.Attributes, classfile.BootstrapMethods(p, c.bootstraps))
	}

	data, err := cf.Bytes()
	if err != nil {
		return nil, &Error{Op: c.String(), Err: fmt.Errorf("%w: %v", ErrLimit, err)}
	}
	log.Debugf("finished %s: %d methods, %d bytes", c, len(c.methods), len(data))
	return &Class{Name: c.typ.Name(), Bytes: data, Helpers: c.helpers}, nil
}

func constantIndex(p *classfile.ConstantPool, v any) uint16 {
	switch x := v.(type) {
	case bool:
		if x {
			return p.Integer(1)
		}
		return p.Integer(0)
	case int8:
		return p.Integer(int32(x))
	case int16:
		return p.Integer(int32(x))
	case uint16:
		return p.Integer(int32(x))
	case int32:
		return p.Integer(x)
	case int64:
		return p.Long(x)
	case float32:
		return p.Float(x)
	case float64:
		return p.Double(x)
	case string:
		return p.String(x)
	}
	internalError("bad constant value %T", v)
	return 0
}
