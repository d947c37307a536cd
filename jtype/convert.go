package jtype

import (
	"errors"
	"fmt"
	"math"
)

// Disallowed is the conversion code for conversions that cannot be applied
// implicitly.
const Disallowed = math.MaxInt

// Conversion codes returned by ConversionCode.
const (
	ConvNone      = 0  // identity or reference widening
	ConvI2L       = 1  // int-like to long
	ConvI2F       = 2  // int-like to float
	ConvI2D       = 3  // int-like to double
	ConvF2D       = 4  // float to double
	ConvBox       = 5  // 5..9: optional widening (code-5), then box
	ConvRebox     = 10 // 10..14: unbox, widen (code-10), rebox; null preserved
	ConvUnbox     = 15 // 15..19: unbox, then optional widening (code-15)
	convUnboxLast = 19
)

// ErrIncompatibleType is wrapped by every conversion failure.
var ErrIncompatibleType = errors.New("incompatible types")

// ConversionError reports a conversion that is not allowed.
type ConversionError struct {
	From, To *Type
	Value    any
}

func (e *ConversionError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("incompatible types: constant %v of type %s cannot be converted to %s",
			e.Value, e.From.name, e.To.name)
	}
	return fmt.Sprintf("incompatible types: %s cannot be converted to %s", e.From.name, e.To.name)
}

func (e *ConversionError) Unwrap() error { return ErrIncompatibleType }

// ConversionCode classifies the implicit conversion from t to `to`. The
// codes are ordered by cost, so cheaper conversions are preferred when
// selecting among overloads.
func (t *Type) ConversionCode(to *Type) int {
	if t == to {
		return ConvNone
	}

	if t.IsPrimitive() {
		if to.IsPrimitive() {
			return primitiveWidening(t, to)
		}
		if unboxed := to.Unbox(); unboxed != nil {
			code := t.ConversionCode(unboxed)
			if code != Disallowed {
				code += ConvBox
			}
			return code
		}
		if to.IsObject() && to.kind != KindNull && IsAssignable(t.box, to) {
			return ConvBox
		}
		return Disallowed
	}

	if t.kind == KindNull {
		if to.IsObject() {
			return ConvNone
		}
		return Disallowed
	}

	if to.IsObject() && IsAssignable(t, to) {
		return ConvNone
	}

	fromUnboxed, toUnboxed := t.Unbox(), to.Unbox()
	if fromUnboxed == nil || toUnboxed == nil {
		return Disallowed
	}
	code := fromUnboxed.ConversionCode(toUnboxed)
	if code == Disallowed {
		return code
	}
	if to.IsObject() {
		return code + ConvRebox
	}
	return code + ConvUnbox
}

func primitiveWidening(from, to *Type) int {
	switch from.kind {
	case KindByte:
		switch to.kind {
		case KindShort, KindInt:
			return ConvNone
		case KindLong:
			return ConvI2L
		case KindFloat:
			return ConvI2F
		case KindDouble:
			return ConvI2D
		}
	case KindChar, KindShort:
		switch to.kind {
		case KindInt:
			return ConvNone
		case KindLong:
			return ConvI2L
		case KindFloat:
			return ConvI2F
		case KindDouble:
			return ConvI2D
		}
	case KindInt:
		switch to.kind {
		case KindLong:
			return ConvI2L
		case KindDouble:
			return ConvI2D
		}
	case KindFloat:
		if to.kind == KindDouble {
			return ConvF2D
		}
	}
	return Disallowed
}

// IsAssignable reports whether a value of type from may be stored where a
// value of type to is expected without any instruction. For primitives
// this is identity or an implicit widening conversion.
func IsAssignable(from, to *Type) bool {
	if from == to {
		return true
	}
	if from.IsPrimitive() || to.IsPrimitive() {
		if from.IsPrimitive() && to.IsPrimitive() {
			return primitiveWidening(from, to) != Disallowed
		}
		return false
	}
	if from.kind == KindNull {
		return to.IsObject()
	}
	if to.kind == KindNull || from.kind == KindVoid || to.kind == KindVoid {
		return false
	}
	if to == Object {
		return true
	}
	if from.kind == KindArray {
		if to.kind == KindArray {
			fe, te := from.elem, to.elem
			if fe.IsPrimitive() || te.IsPrimitive() {
				return fe == te
			}
			return IsAssignable(fe, te)
		}
		return to == Cloneable || to == Serializable
	}
	if to.kind == KindArray {
		return false
	}
	return isSubclass(from, to)
}

func isSubclass(from, to *Type) bool {
	for s := from; s != nil; s = s.super {
		if s == to {
			return true
		}
		if to.iface {
			for _, i := range s.ifaces {
				if isSubclass(i, to) {
					return true
				}
			}
		}
	}
	return false
}

// CommonSupertype returns the most specific type to which both a and b can
// be implicitly converted, or nil when none exists.
func CommonSupertype(a, b *Type) *Type {
	if a == b {
		return a
	}
	if a.IsPrimitive() || b.IsPrimitive() {
		pa, pb := a.Unbox(), b.Unbox()
		if pa == nil || pb == nil {
			return nil
		}
		if pa == pb {
			return pa
		}
		if primitiveWidening(pa, pb) != Disallowed {
			return pb
		}
		if primitiveWidening(pb, pa) != Disallowed {
			return pa
		}
		for _, c := range []*Type{Int, Long, Float, Double} {
			if primitiveWidening(pa, c) != Disallowed && primitiveWidening(pb, c) != Disallowed {
				return c
			}
		}
		return nil
	}
	if a.kind == KindNull {
		return b
	}
	if b.kind == KindNull {
		return a
	}
	if a.kind == KindArray && b.kind == KindArray {
		ae, be := a.elem, b.elem
		if !ae.IsPrimitive() && !be.IsPrimitive() {
			return CommonSupertype(ae, be).ArrayOf()
		}
		return Object
	}
	if IsAssignable(a, b) {
		return b
	}
	if IsAssignable(b, a) {
		return a
	}
	for s := a.Super(); s != nil; s = s.Super() {
		if s != Object && IsAssignable(b, s) {
			return s
		}
	}
	if i := commonInterface(a, b, make(map[*Type]bool)); i != nil {
		return i
	}
	return Object
}

func commonInterface(a, b *Type, seen map[*Type]bool) *Type {
	for s := a; s != nil; s = s.Super() {
		for _, i := range s.Interfaces() {
			if seen[i] {
				continue
			}
			seen[i] = true
			if IsAssignable(b, i) {
				return i
			}
			if found := commonInterface(i, b, seen); found != nil {
				return found
			}
		}
	}
	return nil
}

// CommonCatchType returns the most specific common superclass of the given
// throwable types, and the subset of types that must be caught
// individually. When the common type is itself one of the given types, the
// others are subclasses of it and only the common type remains.
func CommonCatchType(types []*Type) (*Type, []*Type) {
	if len(types) == 0 {
		return Throwable, nil
	}
	chains := make([][]*Type, len(types))
	minLen := math.MaxInt
	for i, t := range types {
		var chain []*Type
		for s := t; s != nil; s = s.Super() {
			chain = append(chain, s)
		}
		chains[i] = chain
		minLen = min(minLen, len(chain))
	}

	var common *Type
	for depth := 1; depth <= minLen; depth++ {
		level := chains[0][len(chains[0])-depth]
		for _, chain := range chains[1:] {
			if chain[len(chain)-depth] != level {
				return orThrowable(common), dedupe(types)
			}
		}
		common = level
	}
	return orThrowable(common), []*Type{common}
}

func orThrowable(t *Type) *Type {
	if t == nil || !IsAssignable(t, Throwable) {
		return Throwable
	}
	return t
}

func dedupe(types []*Type) []*Type {
	seen := make(map[*Type]bool, len(types))
	out := make([]*Type, 0, len(types))
	for _, t := range types {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
