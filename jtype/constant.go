package jtype

import (
	"fmt"
	"math"
)

// NormalizeConstant maps a Go value to its JVM constant representation and
// type. int8 is a byte, int16 a short, uint16 a char, int32 (and rune) an
// int, int64 a long. A plain int is an int when it fits and a long
// otherwise. Strings are java.lang.String and nil is the null type.
func NormalizeConstant(v any) (any, *Type, error) {
	switch x := v.(type) {
	case nil:
		return nil, Null, nil
	case bool:
		return x, Boolean, nil
	case int8:
		return x, Byte, nil
	case int16:
		return x, Short, nil
	case uint16:
		return x, Char, nil
	case int32:
		return x, Int, nil
	case int64:
		return x, Long, nil
	case float32:
		return x, Float, nil
	case float64:
		return x, Double, nil
	case string:
		return x, String, nil
	case int:
		if x >= math.MinInt32 && x <= math.MaxInt32 {
			return int32(x), Int, nil
		}
		return int64(x), Long, nil
	case uint8:
		return int32(x), Int, nil
	case uint32:
		if x <= math.MaxInt32 {
			return int32(x), Int, nil
		}
		return int64(x), Long, nil
	case uint:
		if uint64(x) <= math.MaxInt64 {
			return NormalizeConstant(int(x))
		}
	case uint64:
		if x <= math.MaxInt32 {
			return int32(x), Int, nil
		}
		if x <= math.MaxInt64 {
			return int64(x), Long, nil
		}
	}
	return nil, nil, fmt.Errorf("jtype: unsupported constant %v (%T)", v, v)
}

// NarrowConstant converts a normalized constant to the primitive type to,
// succeeding only when the value survives the round trip unchanged. This is
// what permits `byteVar.Set(100)` while rejecting `byteVar.Set(1000)`.
// Floating-point results preserve raw bits, so NaN payloads and the sign of
// zero are kept.
func NarrowConstant(v any, to *Type) (any, bool) {
	switch x := v.(type) {
	case bool:
		if to == Boolean {
			return x, true
		}
		return nil, false
	case int8:
		return fromInteger(int64(x), to)
	case int16:
		return fromInteger(int64(x), to)
	case uint16:
		return fromInteger(int64(x), to)
	case int32:
		return fromInteger(int64(x), to)
	case int64:
		return fromInteger(x, to)
	case float32:
		if to == Float {
			return x, true
		}
		if to == Double {
			return float64(x), true
		}
		return fromFloating(float64(x), to)
	case float64:
		if to == Double {
			return x, true
		}
		if to == Float {
			f := float32(x)
			if math.Float64bits(float64(f)) == math.Float64bits(x) {
				return f, true
			}
			return nil, false
		}
		return fromFloating(x, to)
	}
	return nil, false
}

func fromInteger(v int64, to *Type) (any, bool) {
	switch to.kind {
	case KindByte:
		if int64(int8(v)) == v {
			return int8(v), true
		}
	case KindShort:
		if int64(int16(v)) == v {
			return int16(v), true
		}
	case KindChar:
		if v >= 0 && v <= math.MaxUint16 {
			return uint16(v), true
		}
	case KindInt:
		if int64(int32(v)) == v {
			return int32(v), true
		}
	case KindLong:
		return v, true
	case KindFloat:
		f := float32(v)
		if f < 0x1p63 && f >= -0x1p63 && int64(f) == v {
			return f, true
		}
	case KindDouble:
		d := float64(v)
		if d < 0x1p63 && int64(d) == v {
			return d, true
		}
	}
	return nil, false
}

// fromFloating narrows an integral floating value to an integer type. The
// negative zero is rejected since no integer preserves its sign.
func fromFloating(d float64, to *Type) (any, bool) {
	if math.IsNaN(d) || math.IsInf(d, 0) || d != math.Trunc(d) || math.Signbit(d) && d == 0 {
		return nil, false
	}
	if d >= 0x1p63 || d < -0x1p63 {
		return nil, false
	}
	return fromInteger(int64(d), to)
}

// ConstantTypeOf returns the type of a Go constant value, or nil if the
// value is not a supported constant.
func ConstantTypeOf(v any) *Type {
	_, t, err := NormalizeConstant(v)
	if err != nil {
		return nil
	}
	return t
}
