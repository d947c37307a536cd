package interp

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/chazu/jmaker/classfile"
)

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		f       float64
		bitSize int
		want    string
	}{
		{0, 64, "0.0"},
		{math.Copysign(0, -1), 64, "-0.0"},
		{1, 64, "1.0"},
		{0.5, 64, "0.5"},
		{100, 32, "100.0"},
		{0.1, 32, "0.1"},
		{1e7, 64, "1.0E7"},
		{1.5e-4, 64, "1.5E-4"},
		{1e-3, 64, "0.001"},
		{math.NaN(), 64, "NaN"},
		{math.Inf(1), 64, "Infinity"},
		{math.Inf(-1), 32, "-Infinity"},
	}
	for _, tt := range tests {
		if got := formatFloat(tt.f, tt.bitSize); got != tt.want {
			t.Errorf("formatFloat(%v, %d) = %q, want %q", tt.f, tt.bitSize, got, tt.want)
		}
	}
}

func TestJavaHash(t *testing.T) {
	tests := []struct {
		s    string
		want int32
	}{
		{"", 0},
		{"a", 97},
		{"Aa", 2112},
		{"BB", 2112},
		{"hello", 99162322},
	}
	for _, tt := range tests {
		if got := javaHash(tt.s); got != tt.want {
			t.Errorf("javaHash(%q) = %d, want %d", tt.s, got, tt.want)
		}
	}
}

func TestFloatToInt(t *testing.T) {
	tests := []struct {
		f float64
		i int32
		l int64
	}{
		{math.NaN(), 0, 0},
		{1e20, math.MaxInt32, math.MaxInt64},
		{-1e20, math.MinInt32, math.MinInt64},
		{-2.7, -2, -2},
		{2.7, 2, 2},
	}
	for _, tt := range tests {
		if got := f2i(tt.f); got != tt.i {
			t.Errorf("f2i(%v) = %d, want %d", tt.f, got, tt.i)
		}
		if got := f2l(tt.f); got != tt.l {
			t.Errorf("f2l(%v) = %d, want %d", tt.f, got, tt.l)
		}
	}
}

func TestParseDescriptor(t *testing.T) {
	params, ret, ok := parseDescriptor("(I[JLjava/lang/String;[[Ljava/lang/Object;)V")
	if !ok {
		t.Fatal("descriptor rejected")
	}
	want := []string{"I", "[J", "Ljava/lang/String;", "[[Ljava/lang/Object;"}
	if len(params) != len(want) {
		t.Fatalf("params = %v", params)
	}
	for i := range want {
		if params[i] != want[i] {
			t.Errorf("param %d = %q, want %q", i, params[i], want[i])
		}
	}
	if ret != "V" {
		t.Errorf("ret = %q", ret)
	}
	for _, bad := range []string{"", "I", "(Q)V", "(Ljava/lang/String)V", "(I"} {
		if _, _, ok := parseDescriptor(bad); ok {
			t.Errorf("parseDescriptor(%q) accepted", bad)
		}
	}
}

func TestNatives(t *testing.T) {
	var out bytes.Buffer
	vm := New(&out)

	if got, err := vm.InvokeVirtual("héllo", "length", "()I"); err != nil || got != int32(5) {
		t.Errorf("length = %v, %v", got, err)
	}
	if got, err := vm.InvokeVirtual("abc", "hashCode", "()I"); err != nil || got != int32(96354) {
		t.Errorf("hashCode = %v, %v", got, err)
	}
	if got, err := vm.InvokeVirtual("abc", "equals", "(Ljava/lang/Object;)Z", "abc"); err != nil || got != int32(1) {
		t.Errorf("equals = %v, %v", got, err)
	}
	if _, err := vm.InvokeVirtual("abc", "charAt", "(I)C", int32(9)); err == nil {
		t.Error("charAt out of range should throw")
	}
	if _, err := vm.InvokeVirtual("abc", "frobnicate", "()V"); !errors.Is(err, ErrNoMethod) {
		t.Errorf("unknown method: err = %v", err)
	}
}

func TestHierarchy(t *testing.T) {
	vm := New(nil)
	tests := []struct {
		from, to string
		want     bool
	}{
		{"java/lang/ArithmeticException", "java/lang/Throwable", true},
		{"java/lang/ArithmeticException", "java/lang/Error", false},
		{"java/lang/Integer", "java/lang/Number", true},
		{"java/lang/String", "java/lang/CharSequence", true},
		{"java/lang/StringBuilder", "java/lang/Comparable", false},
		{"[Ljava/lang/String;", "[Ljava/lang/Object;", true},
		{"[I", "java/lang/Object", true},
		{"[I", "[J", false},
	}
	for _, tt := range tests {
		if got := vm.isSubclass(tt.from, tt.to); got != tt.want {
			t.Errorf("isSubclass(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestDefineErrors(t *testing.T) {
	vm := New(nil)
	if _, err := vm.Define([]byte{0xca, 0xfe}); err == nil {
		t.Error("truncated class accepted")
	}

	cf := classfile.New(classfile.MajorJava17, classfile.AccPublic|classfile.AccSuper, "demo/Empty", "java/lang/Object")
	data, err := cf.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := vm.Define(data); err != nil {
		t.Fatal(err)
	}
	if _, err := vm.Define(data); !errors.Is(err, ErrDuplicateClass) {
		t.Errorf("redefinition: err = %v", err)
	}
	if _, ok := vm.Class("demo.Empty"); !ok {
		t.Error("class not found by binary name")
	}
	if _, err := vm.InvokeStatic("demo.Empty", "main", ""); !errors.Is(err, ErrNoMethod) {
		t.Errorf("missing method: err = %v", err)
	}
	if _, err := vm.InvokeStatic("demo.Missing", "main", ""); !errors.Is(err, ErrNoClass) {
		t.Errorf("missing class: err = %v", err)
	}
}

func TestExceptionMessage(t *testing.T) {
	vm := New(nil)
	err := vm.throw("java/lang/IllegalStateException", "bad state")
	var ex *Exception
	if !errors.As(err, &ex) {
		t.Fatalf("err is %T", err)
	}
	if got := ex.Error(); got != "java.lang.IllegalStateException: bad state" {
		t.Errorf("Error() = %q", got)
	}
	if ex.Message() != "bad state" {
		t.Errorf("Message() = %q", ex.Message())
	}
}

func TestFormat(t *testing.T) {
	vm := New(nil)
	tests := []struct {
		v    any
		desc string
		want string
	}{
		{int32(1), "Z", "true"},
		{int32('x'), "C", "x"},
		{int32(-7), "I", "-7"},
		{int64(1) << 40, "J", "1099511627776"},
		{float32(2.5), "F", "2.5"},
		{float64(42), "D", "42.0"},
		{"text", "Ljava/lang/String;", "text"},
		{nil, "Ljava/lang/Object;", "null"},
	}
	for _, tt := range tests {
		got, err := vm.Format(tt.v, tt.desc)
		if err != nil {
			t.Errorf("Format(%v, %s): %v", tt.v, tt.desc, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Format(%v, %s) = %q, want %q", tt.v, tt.desc, got, tt.want)
		}
	}
}
