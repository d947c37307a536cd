package jtype

import (
	"errors"
	"math"
	"testing"
)

func TestConversionCode(t *testing.T) {
	tests := []struct {
		from, to *Type
		want     int
	}{
		{Int, Int, ConvNone},
		{Byte, Int, ConvNone},
		{Byte, Short, ConvNone},
		{Char, Int, ConvNone},
		{Int, Long, ConvI2L},
		{Short, Float, ConvI2F},
		{Int, Double, ConvI2D},
		{Float, Double, ConvF2D},
		{Int, Float, Disallowed},
		{Long, Double, Disallowed},
		{Int, Byte, Disallowed},
		{Boolean, Int, Disallowed},
		{Int, IntBox, ConvBox},
		{Int, LongBox, ConvBox + ConvI2L},
		{Int, Object, ConvBox},
		{Int, Number, ConvBox},
		{Boolean, Object, ConvBox},
		{Boolean, Number, Disallowed},
		{IntBox, LongBox, ConvRebox + ConvI2L},
		{IntBox, Int, ConvUnbox},
		{IntBox, Double, ConvUnbox + ConvI2D},
		{String, Object, ConvNone},
		{String, CharSequence, ConvNone},
		{Object, String, Disallowed},
		{Null, String, ConvNone},
		{Null, Int, Disallowed},
	}
	for _, tt := range tests {
		if got := tt.from.ConversionCode(tt.to); got != tt.want {
			t.Errorf("%s -> %s: code = %d, want %d", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestIsAssignable(t *testing.T) {
	u := NewUniverse()
	base, err := u.Declare("demo.Base", nil, false, Comparable)
	if err != nil {
		t.Fatal(err)
	}
	derived, err := u.Declare("demo.Derived", base, false)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		from, to *Type
		want     bool
	}{
		{derived, base, true},
		{derived, Comparable, true},
		{base, derived, false},
		{derived.ArrayOf(), base.ArrayOf(), true},
		{Int.ArrayOf(), Long.ArrayOf(), false},
		{Int.ArrayOf(), Object, true},
		{Int.ArrayOf(), Cloneable, true},
		{Null, derived.ArrayOf(), true},
		{Byte, Int, true},
		{Int, Byte, false},
		{ArrayIndexOutOfBoundsException, RuntimeException, true},
	}
	for _, tt := range tests {
		if got := IsAssignable(tt.from, tt.to); got != tt.want {
			t.Errorf("IsAssignable(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestCommonSupertype(t *testing.T) {
	u := NewUniverse()
	base, _ := u.Declare("demo.Base", nil, false)
	left, _ := u.Declare("demo.Left", base, false)
	right, _ := u.Declare("demo.Right", base, false)

	tests := []struct {
		a, b, want *Type
	}{
		{Int, Int, Int},
		{Byte, Int, Int},
		{Int, Long, Long},
		{Short, Char, Int},
		{Int, Float, Double},
		{Long, Float, nil},
		{Boolean, Int, nil},
		{IntBox, Long, Long},
		{left, right, base},
		{left, Null, left},
		{left.ArrayOf(), right.ArrayOf(), base.ArrayOf()},
		{Int.ArrayOf(), Long.ArrayOf(), Object},
		{String, StringBuilder, CharSequence},
		{IntBox, LongBox, Number},
	}
	for _, tt := range tests {
		if got := CommonSupertype(tt.a, tt.b); got != tt.want {
			t.Errorf("CommonSupertype(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCommonCatchType(t *testing.T) {
	common, each := CommonCatchType([]*Type{IllegalStateException, ArithmeticException})
	if common != RuntimeException {
		t.Errorf("common = %s, want RuntimeException", common)
	}
	if len(each) != 2 {
		t.Errorf("catch list = %v, want both types", each)
	}

	common, each = CommonCatchType([]*Type{RuntimeException, ArithmeticException})
	if common != RuntimeException || len(each) != 1 || each[0] != RuntimeException {
		t.Errorf("subclass case = %s %v, want RuntimeException alone", common, each)
	}

	common, _ = CommonCatchType([]*Type{ArithmeticException, Error})
	if common != Throwable {
		t.Errorf("common = %s, want Throwable", common)
	}
}

// Implicit conversion of a literal succeeds iff the value is exactly
// representable in the target type.
func TestNarrowConstantPreservesValue(t *testing.T) {
	tests := []struct {
		value any
		to    *Type
		want  any
		ok    bool
	}{
		{int32(100), Byte, int8(100), true},
		{int32(1000), Byte, nil, false},
		{int32(-129), Byte, nil, false},
		{int32(65535), Char, uint16(65535), true},
		{int32(-1), Char, nil, false},
		{int32(32767), Short, int16(32767), true},
		{int32(16777216), Float, float32(16777216), true},
		{int32(16777217), Float, nil, false},
		{int32(math.MaxInt32), Float, nil, false},
		{int32(7), Double, float64(7), true},
		{int64(1) << 40, Int, nil, false},
		{int64(-5), Int, int32(-5), true},
		{int64(math.MaxInt64), Double, nil, false},
		{float32(2.5), Int, nil, false},
		{float32(3), Long, int64(3), true},
		{float32(3), Double, float64(3), true},
		{float64(0.1), Float, nil, false},
		{float64(0.5), Float, float32(0.5), true},
		{math.Copysign(0, -1), Int, nil, false},
		{math.NaN(), Int, nil, false},
		{true, Int, nil, false},
		{true, Boolean, true, true},
		{uint16('A'), Int, int32(65), true},
	}
	for _, tt := range tests {
		got, ok := NarrowConstant(tt.value, tt.to)
		if ok != tt.ok || ok && got != tt.want {
			t.Errorf("NarrowConstant(%v, %s) = %v, %v; want %v, %v", tt.value, tt.to, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNarrowConstantKeepsNaNPayload(t *testing.T) {
	bits := uint64(0x7ff8000000000001)
	got, ok := NarrowConstant(math.Float64frombits(bits), Double)
	if !ok || math.Float64bits(got.(float64)) != bits {
		t.Fatalf("double NaN payload not preserved: %v", got)
	}

	fbits := uint32(0x7fc00123)
	got, ok = NarrowConstant(math.Float32frombits(fbits), Float)
	if !ok || math.Float32bits(got.(float32)) != fbits {
		t.Fatalf("float NaN payload not preserved: %v", got)
	}
}

func TestNormalizeConstant(t *testing.T) {
	tests := []struct {
		in   any
		want *Type
	}{
		{1, Int},
		{1 << 40, Long},
		{int8(1), Byte},
		{uint16('x'), Char},
		{"s", String},
		{nil, Null},
		{float32(1), Float},
		{true, Boolean},
	}
	for _, tt := range tests {
		_, typ, err := NormalizeConstant(tt.in)
		if err != nil {
			t.Errorf("NormalizeConstant(%v): %v", tt.in, err)
			continue
		}
		if typ != tt.want {
			t.Errorf("NormalizeConstant(%v) type = %s, want %s", tt.in, typ, tt.want)
		}
	}
	if _, _, err := NormalizeConstant(struct{}{}); err == nil {
		t.Error("expected error for struct constant")
	}
}

func TestConversionErrorIs(t *testing.T) {
	err := error(&ConversionError{From: Long, To: Int})
	if !errors.Is(err, ErrIncompatibleType) {
		t.Fatal("ConversionError should match ErrIncompatibleType")
	}
	if got, want := err.Error(), "incompatible types: long cannot be converted to int"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
