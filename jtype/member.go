package jtype

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrNoSuchField  = errors.New("no such field")
	ErrNoSuchMethod = errors.New("no such method")
	ErrAmbiguous    = errors.New("ambiguous method invocation")
)

// memberMu guards the member tables of declared (non-builtin) types.
var memberMu sync.RWMutex

// Field is a field declared by a class.
type Field struct {
	Owner  *Type
	Name   string
	Type   *Type
	Static bool
}

// Method is a method or constructor declared by a class.
type Method struct {
	Owner     *Type
	Name      string
	Return    *Type
	Params    []*Type
	Static    bool
	Interface bool
}

// Descriptor returns the method descriptor.
func (m *Method) Descriptor() string {
	return MethodDescriptor(m.Return, m.Params)
}

func (m *Method) String() string {
	var b strings.Builder
	b.WriteString(m.Owner.name)
	b.WriteByte('.')
	b.WriteString(m.Name)
	b.WriteByte('(')
	for i, p := range m.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.name)
	}
	b.WriteByte(')')
	return b.String()
}

// AddField declares a field on t, replacing any field with the same name.
func (t *Type) AddField(name string, ft *Type, static bool) *Field {
	f := &Field{Owner: t, Name: name, Type: ft, Static: static}
	memberMu.Lock()
	defer memberMu.Unlock()
	if t.fields == nil {
		t.fields = make(map[string]*Field)
	}
	t.fields[name] = f
	return f
}

// AddMethod declares a method on t. A method with the same name and
// parameter types is replaced.
func (t *Type) AddMethod(name string, ret *Type, static bool, params ...*Type) *Method {
	m := &Method{
		Owner:     t,
		Name:      name,
		Return:    ret,
		Params:    append([]*Type(nil), params...),
		Static:    static,
		Interface: t.iface,
	}
	memberMu.Lock()
	defer memberMu.Unlock()
	if t.methods == nil {
		t.methods = make(map[string][]*Method)
	}
	list := t.methods[name]
	for i, old := range list {
		if sameParams(old.Params, m.Params) {
			list[i] = m
			return m
		}
	}
	t.methods[name] = append(list, m)
	return m
}

func sameParams(a, b []*Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// FindField looks up a field on t or its supertypes.
func (t *Type) FindField(name string) (*Field, error) {
	memberMu.RLock()
	defer memberMu.RUnlock()
	for s := t; s != nil; s = s.Super() {
		if f, ok := s.fields[name]; ok {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %s.%s", ErrNoSuchField, t.name, name)
}

// StaticMode filters method lookups.
type StaticMode int

const (
	InstanceOnly StaticMode = iota
	StaticOnly
	AnyStatic
)

// FindMethod selects the best method named name on t (or its supertypes)
// that accepts the argument types. The cost of a candidate is the sum of
// the conversion codes for its arguments; the cheapest candidate wins and
// ties are broken by specificity.
func (t *Type) FindMethod(name string, args []*Type, mode StaticMode) (*Method, error) {
	memberMu.RLock()
	candidates := t.collectMethods(name, nil, make(map[*Type]bool))
	memberMu.RUnlock()

	var best []*Method
	bestCost := Disallowed
	for _, m := range candidates {
		if len(m.Params) != len(args) {
			continue
		}
		if mode == InstanceOnly && m.Static || mode == StaticOnly && !m.Static {
			continue
		}
		cost := 0
		for i, a := range args {
			c := argumentCost(a, m.Params[i])
			if c == Disallowed {
				cost = Disallowed
				break
			}
			cost += c
		}
		if cost == Disallowed {
			continue
		}
		switch {
		case cost < bestCost:
			bestCost = cost
			best = append(best[:0], m)
		case cost == bestCost:
			best = append(best, m)
		}
	}

	switch len(best) {
	case 0:
		return nil, fmt.Errorf("%w: %s.%s%s", ErrNoSuchMethod, t.name, name, argList(args))
	case 1:
		return best[0], nil
	}

	// Prefer the candidate whose parameters are all assignable to every
	// other candidate's parameters.
outer:
	for _, m := range best {
		for _, o := range best {
			if o == m {
				continue
			}
			for i := range m.Params {
				if !IsAssignable(m.Params[i], o.Params[i]) {
					continue outer
				}
			}
		}
		return m, nil
	}
	return nil, fmt.Errorf("%w: %s.%s%s", ErrAmbiguous, t.name, name, argList(args))
}

// collectMethods gathers methods by name, subclass declarations first and
// overridden signatures skipped.
func (t *Type) collectMethods(name string, out []*Method, seen map[*Type]bool) []*Method {
	if t == nil || seen[t] {
		return out
	}
	seen[t] = true
next:
	for _, m := range t.methods[name] {
		for _, have := range out {
			if sameParams(have.Params, m.Params) {
				continue next
			}
		}
		out = append(out, m)
	}
	if name == "<init>" {
		return out
	}
	out = t.Super().collectMethods(name, out, seen)
	for _, i := range t.Interfaces() {
		out = i.collectMethods(name, out, seen)
	}
	return out
}

// argumentCost is the conversion cost of passing a value of type arg to a
// parameter of type param.
func argumentCost(arg, param *Type) int {
	if arg == Null {
		if param.IsObject() {
			return 0
		}
		return Disallowed
	}
	return arg.ConversionCode(param)
}

func argList(args []*Type) string {
	names := make([]string, len(args))
	for i, a := range args {
		names[i] = a.name
	}
	return "(" + strings.Join(names, ", ") + ")"
}
