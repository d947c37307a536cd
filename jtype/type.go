// Package jtype is the type model used by the method compiler: canonical,
// interned JVM types with the conversion and assignability rules that
// govern every value-producing operation.
package jtype

import (
	"fmt"
	"strings"
	"sync"
)

// Kind classifies a Type.
type Kind uint8

const (
	KindVoid Kind = iota
	KindBoolean
	KindByte
	KindChar
	KindShort
	KindInt
	KindFloat
	KindLong
	KindDouble
	KindObject
	KindArray
	KindNull
)

var kindNames = [...]string{
	KindVoid:    "void",
	KindBoolean: "boolean",
	KindByte:    "byte",
	KindChar:    "char",
	KindShort:   "short",
	KindInt:     "int",
	KindFloat:   "float",
	KindLong:    "long",
	KindDouble:  "double",
	KindObject:  "object",
	KindArray:   "array",
	KindNull:    "null",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Type is a canonical JVM-visible type. Two Types that denote the same
// logical type within a Universe are the same pointer, so == is structural
// equality.
type Type struct {
	kind Kind
	name string
	desc string
	elem *Type

	// Object types only.
	super    *Type
	ifaces   []*Type
	iface    bool
	declared bool
	builtin  bool
	unboxed  *Type

	// Primitive types only.
	box *Type

	array   *Type
	fields  map[string]*Field
	methods map[string][]*Method
}

// arrayMu guards lazy creation of array types, which may be shared between
// universes when the element type is a built-in.
var arrayMu sync.Mutex

func newPrimitive(kind Kind, name, desc string) *Type {
	return &Type{kind: kind, name: name, desc: desc}
}

// Primitive and pseudo types. These are shared by every Universe.
var (
	Void    = newPrimitive(KindVoid, "void", "V")
	Boolean = newPrimitive(KindBoolean, "boolean", "Z")
	Byte    = newPrimitive(KindByte, "byte", "B")
	Char    = newPrimitive(KindChar, "char", "C")
	Short   = newPrimitive(KindShort, "short", "S")
	Int     = newPrimitive(KindInt, "int", "I")
	Float   = newPrimitive(KindFloat, "float", "F")
	Long    = newPrimitive(KindLong, "long", "J")
	Double  = newPrimitive(KindDouble, "double", "D")
	Null    = &Type{kind: KindNull, name: "null"}
)

// Kind returns the kind of the type.
func (t *Type) Kind() Kind { return t.kind }

// Name returns the Java source name, e.g. "int", "java.lang.String" or
// "int[]".
func (t *Type) Name() string { return t.name }

func (t *Type) String() string { return t.name }

// Descriptor returns the field descriptor, e.g. "I" or "Ljava/lang/String;".
// The null type has no descriptor.
func (t *Type) Descriptor() string { return t.desc }

// InternalName returns the name used by CONSTANT_Class entries: the binary
// name with slashes for classes, the descriptor for arrays.
func (t *Type) InternalName() string {
	switch t.kind {
	case KindObject:
		return strings.ReplaceAll(t.name, ".", "/")
	case KindArray:
		return t.desc
	}
	return t.desc
}

// IsPrimitive reports whether t is boolean or a numeric primitive.
func (t *Type) IsPrimitive() bool {
	return t.kind >= KindBoolean && t.kind <= KindDouble
}

// IsNumeric reports whether t is a primitive other than boolean.
func (t *Type) IsNumeric() bool {
	return t.kind >= KindByte && t.kind <= KindDouble
}

// IsIntLike reports whether t is computed with int instructions.
func (t *Type) IsIntLike() bool {
	return t.kind >= KindBoolean && t.kind <= KindInt
}

// IsObject reports whether values of t are references, including null.
func (t *Type) IsObject() bool {
	return t.kind == KindObject || t.kind == KindArray || t.kind == KindNull
}

// IsArray reports whether t is an array type.
func (t *Type) IsArray() bool { return t.kind == KindArray }

// IsInterface reports whether t is a declared interface.
func (t *Type) IsInterface() bool { return t.iface }

// IsWide reports whether t occupies two slots.
func (t *Type) IsWide() bool { return t.kind == KindLong || t.kind == KindDouble }

// SlotWidth is the number of local or stack slots used by a value of t.
func (t *Type) SlotWidth() int {
	switch t.kind {
	case KindVoid:
		return 0
	case KindLong, KindDouble:
		return 2
	}
	return 1
}

// Elem returns the element type of an array, or nil.
func (t *Type) Elem() *Type { return t.elem }

// Dimensions returns the array nesting depth.
func (t *Type) Dimensions() int {
	n := 0
	for e := t; e.kind == KindArray; e = e.elem {
		n++
	}
	return n
}

// Super returns the superclass of an object type. Interfaces report Object,
// matching the class file format; Object itself reports nil.
func (t *Type) Super() *Type {
	if t.kind == KindArray {
		return Object
	}
	return t.super
}

// Interfaces returns the directly implemented interfaces.
func (t *Type) Interfaces() []*Type {
	if t.kind == KindArray {
		return []*Type{Cloneable, Serializable}
	}
	return t.ifaces
}

// IsDeclared reports whether the hierarchy of an object type is known.
// Undeclared class references are assumed to extend Object.
func (t *Type) IsDeclared() bool { return t.declared || t.builtin }

// Box returns the wrapper class of a primitive, or nil.
func (t *Type) Box() *Type { return t.box }

// Unbox returns the primitive for a wrapper class, t itself for a primitive,
// and nil otherwise.
func (t *Type) Unbox() *Type {
	if t.IsPrimitive() {
		return t
	}
	return t.unboxed
}

// ArrayOf returns the array type with t as its element.
func (t *Type) ArrayOf() *Type {
	arrayMu.Lock()
	defer arrayMu.Unlock()
	if t.array == nil {
		t.array = &Type{
			kind: KindArray,
			name: t.name + "[]",
			desc: "[" + t.desc,
			elem: t,
		}
	}
	return t.array
}

// StackKind is the verifier category of a type on the operand stack.
type StackKind uint8

const (
	StackInt StackKind = iota
	StackFloat
	StackLong
	StackDouble
	StackRef
	StackVoid
)

// StackKind returns the verifier category of t.
func (t *Type) StackKind() StackKind {
	switch t.kind {
	case KindBoolean, KindByte, KindChar, KindShort, KindInt:
		return StackInt
	case KindFloat:
		return StackFloat
	case KindLong:
		return StackLong
	case KindDouble:
		return StackDouble
	case KindVoid:
		return StackVoid
	}
	return StackRef
}

// ForDescriptor parses a single field descriptor. Object types are resolved
// through u.
func (u *Universe) ForDescriptor(desc string) (*Type, error) {
	t, rest, err := u.parseDescriptor(desc)
	if err != nil {
		return nil, err
	}
	if rest != "" {
		return nil, fmt.Errorf("jtype: trailing characters in descriptor %q", desc)
	}
	return t, nil
}

// ParseMethodDescriptor splits "(params)ret" into types.
func (u *Universe) ParseMethodDescriptor(desc string) (ret *Type, params []*Type, err error) {
	if !strings.HasPrefix(desc, "(") {
		return nil, nil, fmt.Errorf("jtype: bad method descriptor %q", desc)
	}
	rest := desc[1:]
	for !strings.HasPrefix(rest, ")") {
		if rest == "" {
			return nil, nil, fmt.Errorf("jtype: unterminated method descriptor %q", desc)
		}
		var p *Type
		p, rest, err = u.parseDescriptor(rest)
		if err != nil {
			return nil, nil, err
		}
		params = append(params, p)
	}
	ret, rest, err = u.parseDescriptor(rest[1:])
	if err != nil {
		return nil, nil, err
	}
	if rest != "" {
		return nil, nil, fmt.Errorf("jtype: trailing characters in descriptor %q", desc)
	}
	return ret, params, nil
}

func (u *Universe) parseDescriptor(desc string) (*Type, string, error) {
	if desc == "" {
		return nil, "", fmt.Errorf("jtype: empty descriptor")
	}
	switch desc[0] {
	case 'V':
		return Void, desc[1:], nil
	case 'Z':
		return Boolean, desc[1:], nil
	case 'B':
		return Byte, desc[1:], nil
	case 'C':
		return Char, desc[1:], nil
	case 'S':
		return Short, desc[1:], nil
	case 'I':
		return Int, desc[1:], nil
	case 'F':
		return Float, desc[1:], nil
	case 'J':
		return Long, desc[1:], nil
	case 'D':
		return Double, desc[1:], nil
	case '[':
		elem, rest, err := u.parseDescriptor(desc[1:])
		if err != nil {
			return nil, "", err
		}
		return elem.ArrayOf(), rest, nil
	case 'L':
		end := strings.IndexByte(desc, ';')
		if end < 0 {
			return nil, "", fmt.Errorf("jtype: unterminated class descriptor %q", desc)
		}
		name := strings.ReplaceAll(desc[1:end], "/", ".")
		return u.Class(name), desc[end+1:], nil
	}
	return nil, "", fmt.Errorf("jtype: bad descriptor %q", desc)
}

// MethodDescriptor builds "(params)ret".
func MethodDescriptor(ret *Type, params []*Type) string {
	var b strings.Builder
	b.WriteByte('(')
	for _, p := range params {
		b.WriteString(p.desc)
	}
	b.WriteByte(')')
	b.WriteString(ret.desc)
	return b.String()
}
