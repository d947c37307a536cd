// Package interp executes a subset of JVM bytecode: enough to run and test
// classes produced by the maker package. It supports the full instruction
// set used by generated code, classes defined from class file bytes, and
// a native subset of java.lang (strings, boxes, StringBuilder, Math,
// System.out and the common exception types).
//
// A VM is single threaded; monitors are checked for null but otherwise
// ignored.
package interp

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/jmaker/classfile"
)

var log = commonlog.GetLogger("jmaker.interp")

var (
	ErrNoClass        = errors.New("no such class")
	ErrNoMethod       = errors.New("no such method")
	ErrNoField        = errors.New("no such field")
	ErrDuplicateClass = errors.New("class already defined")
	ErrBadCode        = errors.New("malformed code")
	ErrUnsupported    = errors.New("unsupported operation")
	ErrStepLimit      = errors.New("step limit exceeded")
)

const (
	stateLoaded = iota
	stateInitializing
	stateInitialized
)

// Class is a class defined from a class file.
type Class struct {
	Name       string // internal name
	Super      string
	Interfaces []string
	File       *classfile.ClassFile

	methods    map[string]*method
	statics    map[string]any
	bootstraps []classfile.BootstrapMethod
	state      int
}

type method struct {
	class  *Class
	name   string
	desc   string
	access uint16
	code   *classfile.Code
	params []string
	ret    string
}

func (m *method) String() string {
	return binaryName(m.class.Name) + "." + m.name + m.desc
}

func (m *method) static() bool { return m.access&classfile.AccStatic != 0 }

// VM holds defined classes and executes their methods.
type VM struct {
	// Out receives System.out output.
	Out io.Writer
	// MaxDepth bounds the call depth; deeper calls throw
	// StackOverflowError.
	MaxDepth int
	// MaxSteps bounds the instructions executed per top-level invocation.
	// Zero means no limit.
	MaxSteps int64

	classes map[string]*Class
	depth   int
	steps   int64
	nextID  int32
	out     *Object
}

// New creates a VM writing System.out to out, or to os.Stdout when out is
// nil.
func New(out io.Writer) *VM {
	if out == nil {
		out = os.Stdout
	}
	vm := &VM{Out: out, MaxDepth: 512, classes: make(map[string]*Class)}
	vm.out = vm.newObject("java/io/PrintStream")
	return vm
}

func (vm *VM) newObject(class string) *Object {
	vm.nextID++
	return &Object{Class: class, Fields: make(map[string]any), id: vm.nextID}
}

// Define parses a class file and makes its class available.
func (vm *VM) Define(data []byte) (*Class, error) {
	cf, err := classfile.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("interp: %w", err)
	}
	name := cf.Name()
	if _, ok := vm.classes[name]; ok {
		return nil, fmt.Errorf("interp: %s: %w", binaryName(name), ErrDuplicateClass)
	}
	c := &Class{
		Name:    name,
		Super:   cf.SuperName(),
		File:    cf,
		methods: make(map[string]*method),
		statics: make(map[string]any),
	}
	for _, i := range cf.Interfaces {
		iname, err := cf.Pool.ClassNameAt(int(i))
		if err != nil {
			return nil, fmt.Errorf("interp: %s: %w", binaryName(name), err)
		}
		c.Interfaces = append(c.Interfaces, iname)
	}
	for _, mem := range cf.Methods {
		mname, desc := cf.MemberName(mem)
		params, ret, ok := parseDescriptor(desc)
		if !ok {
			return nil, fmt.Errorf("interp: %s.%s: bad descriptor %q: %w", binaryName(name), mname, desc, ErrBadCode)
		}
		code, err := cf.Code(mem)
		if err != nil {
			return nil, fmt.Errorf("interp: %s.%s: %w", binaryName(name), mname, err)
		}
		c.methods[mname+desc] = &method{
			class: c, name: mname, desc: desc, access: mem.Access,
			code: code, params: params, ret: ret,
		}
	}
	for _, f := range cf.Fields {
		if f.Access&classfile.AccStatic == 0 {
			continue
		}
		fname, desc := cf.MemberName(f)
		c.statics[fname] = zero(desc)
		if a, ok := cf.Attribute(f.Attributes, "ConstantValue"); ok && len(a.Data) == 2 {
			v, err := cf.Pool.LoadableAt(int(a.Data[0])<<8 | int(a.Data[1]))
			if err != nil {
				return nil, fmt.Errorf("interp: %s.%s: %w", binaryName(name), fname, err)
			}
			c.statics[fname] = v
		}
	}
	if a, ok := cf.Attribute(cf.Attributes, "BootstrapMethods"); ok {
		if c.bootstraps, err = classfile.DecodeBootstrapMethods(a.Data); err != nil {
			return nil, fmt.Errorf("interp: %s: %w", binaryName(name), err)
		}
	}
	vm.classes[name] = c
	log.Debugf("defined %s with %d methods", binaryName(name), len(c.methods))
	return c, nil
}

// Class returns a defined class by binary or internal name.
func (vm *VM) Class(name string) (*Class, bool) {
	c, ok := vm.classes[internalName(name)]
	return c, ok
}

// Methods lists the class's methods as name plus descriptor.
func (c *Class) Methods() []string {
	out := make([]string, 0, len(c.methods))
	for k := range c.methods {
		out = append(out, k)
	}
	return out
}

// FindMethod returns the descriptor of the method with the given name.
// It fails when the name is ambiguous.
func (c *Class) FindMethod(name string) (string, error) {
	var found []string
	for _, m := range c.methods {
		if m.name == name {
			found = append(found, m.desc)
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("interp: %s.%s: %w", binaryName(c.Name), name, ErrNoMethod)
	case 1:
		return found[0], nil
	}
	return "", fmt.Errorf("interp: %s.%s is overloaded; give a descriptor", binaryName(c.Name), name)
}

// InvokeStatic calls a static method. An empty descriptor selects the
// only method with that name.
func (vm *VM) InvokeStatic(class, name, desc string, args ...any) (any, error) {
	c, ok := vm.Class(class)
	if !ok {
		return nil, fmt.Errorf("interp: %s: %w", class, ErrNoClass)
	}
	if desc == "" {
		var err error
		if desc, err = c.FindMethod(name); err != nil {
			return nil, err
		}
	}
	return vm.top(func() (any, error) {
		return vm.invoke(c.Name, name, desc, args, false)
	})
}

// New allocates an instance of class and runs the constructor with the
// given descriptor.
func (vm *VM) New(class, desc string, args ...any) (*Object, error) {
	c, ok := vm.Class(class)
	if !ok {
		return nil, fmt.Errorf("interp: %s: %w", class, ErrNoClass)
	}
	var obj *Object
	_, err := vm.top(func() (any, error) {
		if err := vm.initClass(c.Name); err != nil {
			return nil, err
		}
		obj = vm.newObject(c.Name)
		return vm.invoke(c.Name, "<init>", desc, append([]any{obj}, args...), false)
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// InvokeVirtual calls an instance method on recv.
func (vm *VM) InvokeVirtual(recv any, name, desc string, args ...any) (any, error) {
	if recv == nil {
		return nil, fmt.Errorf("interp: %s on null: %w", name, ErrUnsupported)
	}
	return vm.top(func() (any, error) {
		return vm.invoke(className(recv), name, desc, append([]any{recv}, args...), true)
	})
}

// GetStatic reads a static field, initializing its class.
func (vm *VM) GetStatic(class, name string) (any, error) {
	c, ok := vm.Class(class)
	if !ok {
		return nil, fmt.Errorf("interp: %s: %w", class, ErrNoClass)
	}
	return vm.top(func() (any, error) {
		if err := vm.initClass(c.Name); err != nil {
			return nil, err
		}
		holder := vm.staticHolder(c.Name, name)
		if holder == nil {
			return nil, fmt.Errorf("interp: %s.%s: %w", binaryName(c.Name), name, ErrNoField)
		}
		return holder.statics[name], nil
	})
}

// top runs an entry point, converting malformed code panics into errors.
func (vm *VM) top(fn func() (any, error)) (result any, err error) {
	vm.steps = 0
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok && errors.Is(e, ErrStepLimit) {
				result, err = nil, e
				return
			}
			result, err = nil, fmt.Errorf("interp: %w: %v", ErrBadCode, r)
		}
	}()
	return fn()
}

// ---------------------------------------------------------------------------
// Class hierarchy
// ---------------------------------------------------------------------------

// nativeSupers lists the superclass then interfaces of library classes.
var nativeSupers = map[string][]string{
	"java/lang/Object":        nil,
	"java/lang/String":        {"java/lang/Object", "java/lang/CharSequence", "java/lang/Comparable", "java/io/Serializable"},
	"java/lang/StringBuilder": {"java/lang/Object", "java/lang/CharSequence", "java/io/Serializable"},
	"java/lang/Number":        {"java/lang/Object", "java/io/Serializable"},
	"java/lang/Boolean":       {"java/lang/Object", "java/lang/Comparable", "java/io/Serializable"},
	"java/lang/Character":     {"java/lang/Object", "java/lang/Comparable", "java/io/Serializable"},
	"java/lang/Byte":          {"java/lang/Number", "java/lang/Comparable"},
	"java/lang/Short":         {"java/lang/Number", "java/lang/Comparable"},
	"java/lang/Integer":       {"java/lang/Number", "java/lang/Comparable"},
	"java/lang/Long":          {"java/lang/Number", "java/lang/Comparable"},
	"java/lang/Float":         {"java/lang/Number", "java/lang/Comparable"},
	"java/lang/Double":        {"java/lang/Number", "java/lang/Comparable"},
	"java/lang/Math":          {"java/lang/Object"},
	"java/lang/System":        {"java/lang/Object"},
	"java/io/PrintStream":     {"java/lang/Object"},

	"java/lang/Throwable":                       {"java/lang/Object", "java/io/Serializable"},
	"java/lang/Exception":                       {"java/lang/Throwable"},
	"java/lang/Error":                           {"java/lang/Throwable"},
	"java/lang/StackOverflowError":              {"java/lang/Error"},
	"java/lang/RuntimeException":                {"java/lang/Exception"},
	"java/lang/ArithmeticException":             {"java/lang/RuntimeException"},
	"java/lang/NullPointerException":            {"java/lang/RuntimeException"},
	"java/lang/ClassCastException":              {"java/lang/RuntimeException"},
	"java/lang/IllegalStateException":           {"java/lang/RuntimeException"},
	"java/lang/IllegalArgumentException":        {"java/lang/RuntimeException"},
	"java/lang/NumberFormatException":           {"java/lang/IllegalArgumentException"},
	"java/lang/UnsupportedOperationException":   {"java/lang/RuntimeException"},
	"java/lang/NegativeArraySizeException":      {"java/lang/RuntimeException"},
	"java/lang/ArrayStoreException":             {"java/lang/RuntimeException"},
	"java/lang/IndexOutOfBoundsException":       {"java/lang/RuntimeException"},
	"java/lang/StringIndexOutOfBoundsException": {"java/lang/IndexOutOfBoundsException"},
	"java/lang/ArrayIndexOutOfBoundsException":  {"java/lang/IndexOutOfBoundsException"},
}

// supers returns the superclass and interfaces of a class, loaded or
// native.
func (vm *VM) supers(name string) []string {
	if c, ok := vm.classes[name]; ok {
		if c.Super == "" {
			return c.Interfaces
		}
		return append([]string{c.Super}, c.Interfaces...)
	}
	if s, ok := nativeSupers[name]; ok {
		return s
	}
	if name != "java/lang/Object" {
		return []string{"java/lang/Object"}
	}
	return nil
}

// superclass returns the direct superclass, or "" at the root.
func (vm *VM) superclass(name string) string {
	if c, ok := vm.classes[name]; ok {
		return c.Super
	}
	if s := nativeSupers[name]; len(s) > 0 {
		return s[0]
	}
	if name != "java/lang/Object" {
		return "java/lang/Object"
	}
	return ""
}

// isSubclass reports whether class from is to or inherits from it.
func (vm *VM) isSubclass(from, to string) bool {
	if from == to || to == "java/lang/Object" {
		return true
	}
	if from == "" || from[0] == '[' || to[0] == '[' {
		return arrayAssignable(vm, from, to)
	}
	for _, s := range vm.supers(from) {
		if vm.isSubclass(s, to) {
			return true
		}
	}
	return false
}

func arrayAssignable(vm *VM, from, to string) bool {
	if from == "" || from[0] != '[' {
		return false
	}
	if to[0] != '[' {
		return to == "java/lang/Cloneable" || to == "java/io/Serializable"
	}
	fe, te := from[1:], to[1:]
	switch {
	case fe == te:
		return true
	case fe[0] == 'L' && te[0] == 'L':
		return vm.isSubclass(fe[1:len(fe)-1], te[1:len(te)-1])
	case fe[0] == '[' && te[0] == '[':
		return arrayAssignable(vm, fe, te)
	case fe[0] == '[' && te[0] == 'L':
		return arrayAssignable(vm, fe, te[1:len(te)-1])
	}
	return false
}

func (vm *VM) isInstance(v any, class string) bool {
	return v != nil && vm.isSubclass(className(v), class)
}

// initClass runs static initialization for a loaded class and its
// superclasses.
func (vm *VM) initClass(name string) error {
	c, ok := vm.classes[name]
	if !ok || c.state != stateLoaded {
		return nil
	}
	c.state = stateInitializing
	if c.Super != "" {
		if err := vm.initClass(c.Super); err != nil {
			return err
		}
	}
	if m, ok := c.methods["<clinit>()V"]; ok {
		if _, err := vm.execute(m, nil); err != nil {
			return err
		}
	}
	c.state = stateInitialized
	return nil
}

// staticHolder finds the class declaring a static field, searching
// superclasses and interfaces.
func (vm *VM) staticHolder(class, name string) *Class {
	c, ok := vm.classes[class]
	if !ok {
		return nil
	}
	if _, ok := c.statics[name]; ok {
		return c
	}
	for _, s := range vm.supers(class) {
		if h := vm.staticHolder(s, name); h != nil {
			return h
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Invocation
// ---------------------------------------------------------------------------

// invoke calls a method. When virtual, lookup starts at the receiver's
// runtime class; otherwise at owner.
func (vm *VM) invoke(owner, name, desc string, args []any, virtual bool) (any, error) {
	start := owner
	if virtual {
		if args[0] == nil {
			return nil, vm.throw("java/lang/NullPointerException", "Cannot invoke \""+binaryName(owner)+"."+name+"()\" because value is null")
		}
		start = className(args[0])
		if start[0] == '[' {
			start = "java/lang/Object"
		}
	}
	key := name + desc
	for c := start; c != ""; c = vm.superclass(c) {
		if cls, ok := vm.classes[c]; ok {
			m, ok := cls.methods[key]
			if !ok || m.access&classfile.AccAbstract != 0 {
				continue
			}
			if m.static() {
				if err := vm.initClass(c); err != nil {
					return nil, err
				}
			}
			return vm.execute(m, args)
		}
		if fn, ok := natives[c+"."+key]; ok {
			return fn(vm, args)
		}
	}
	if virtual {
		// Default methods are not supported; interfaces may still declare
		// natives such as CharSequence.length.
		if fn, ok := natives[owner+"."+key]; ok {
			return fn(vm, args)
		}
	}
	return nil, fmt.Errorf("interp: %s.%s%s: %w", binaryName(owner), name, desc, ErrNoMethod)
}

// throw creates an exception of a library class.
func (vm *VM) throw(class, message string) error {
	obj := vm.newObject(class)
	if message != "" {
		obj.Fields["detailMessage"] = message
	}
	return &Exception{Object: obj}
}

// stringOf converts a reference to a string as String.valueOf does,
// calling toString on objects.
func (vm *VM) stringOf(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "null", nil
	case string:
		return x, nil
	}
	r, err := vm.invoke("java/lang/Object", "toString", "()Ljava/lang/String;", []any{v}, true)
	if err != nil {
		return "", err
	}
	if r == nil {
		return "null", nil
	}
	s, ok := r.(string)
	if !ok {
		return "", fmt.Errorf("interp: toString returned %T: %w", r, ErrBadCode)
	}
	return s, nil
}

// Format renders a value returned with descriptor desc the way
// String.valueOf would.
func (vm *VM) Format(v any, desc string) (string, error) {
	if len(desc) == 1 && strings.Contains("ZBCSIJFD", desc) {
		return formatPrimitive(v, desc[0]), nil
	}
	s, err := vm.top(func() (any, error) {
		return vm.stringOf(v)
	})
	if err != nil {
		return "", err
	}
	return s.(string), nil
}
