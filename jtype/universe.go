package jtype

import (
	"fmt"
	"strings"
	"sync"
)

// Universe interns the class types referenced by one or more class makers.
// Primitive and java.lang types are shared by all universes and never
// change after package initialization.
type Universe struct {
	mu      sync.Mutex
	classes map[string]*Type
}

// NewUniverse returns an empty universe.
func NewUniverse() *Universe {
	return &Universe{classes: make(map[string]*Type)}
}

var primitivesByName = map[string]*Type{
	"void":    Void,
	"boolean": Boolean,
	"byte":    Byte,
	"char":    Char,
	"short":   Short,
	"int":     Int,
	"float":   Float,
	"long":    Long,
	"double":  Double,
}

// Class returns the object type with the given binary name, creating an
// undeclared type when it is not yet known. Slashes are accepted in place
// of dots.
func (u *Universe) Class(name string) *Type {
	name = strings.ReplaceAll(name, "/", ".")
	if t, ok := builtins[name]; ok {
		return t
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if t, ok := u.classes[name]; ok {
		return t
	}
	t := &Type{
		kind:  KindObject,
		name:  name,
		desc:  "L" + strings.ReplaceAll(name, ".", "/") + ";",
		super: Object,
	}
	u.classes[name] = t
	return t
}

// Declare records the hierarchy of a class. A class may be declared once;
// redeclaring with a different super type is an error.
func (u *Universe) Declare(name string, super *Type, iface bool, ifaces ...*Type) (*Type, error) {
	t := u.Class(name)
	if t.builtin {
		return nil, fmt.Errorf("jtype: cannot redeclare %s", name)
	}
	if super == nil {
		super = Object
	}
	if !super.IsObject() || super.kind == KindNull || super.kind == KindArray {
		return nil, fmt.Errorf("jtype: %s cannot extend %s", name, super.name)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if t.declared && t.super != super {
		return nil, fmt.Errorf("jtype: %s already declared with super %s", name, t.super.name)
	}
	for s := super; s != nil; s = s.super {
		if s == t {
			return nil, fmt.Errorf("jtype: circular hierarchy for %s", name)
		}
	}
	t.declared = true
	t.super = super
	t.iface = iface
	t.ifaces = append([]*Type(nil), ifaces...)
	return t, nil
}

// Lookup resolves a Java source type name: a primitive name, a class name,
// or either followed by one or more "[]".
func (u *Universe) Lookup(name string) (*Type, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("jtype: empty type name")
	}
	if strings.HasSuffix(name, "[]") {
		elem, err := u.Lookup(name[:len(name)-2])
		if err != nil {
			return nil, err
		}
		if elem == Void {
			return nil, fmt.Errorf("jtype: no arrays of void")
		}
		return elem.ArrayOf(), nil
	}
	if p, ok := primitivesByName[name]; ok {
		return p, nil
	}
	if t, ok := shortNames[name]; ok {
		return t, nil
	}
	if strings.ContainsAny(name, "[];") {
		return nil, fmt.Errorf("jtype: bad type name %q", name)
	}
	return u.Class(name), nil
}

// Classes returns the non-builtin classes known to u.
func (u *Universe) Classes() []*Type {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]*Type, 0, len(u.classes))
	for _, t := range u.classes {
		out = append(out, t)
	}
	return out
}
