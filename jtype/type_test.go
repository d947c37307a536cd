package jtype

import (
	"errors"
	"sync"
	"testing"
)

func TestDescriptors(t *testing.T) {
	u := NewUniverse()
	tests := []struct {
		name     string
		desc     string
		internal string
	}{
		{"int", "I", "I"},
		{"boolean", "Z", "Z"},
		{"java.lang.String", "Ljava/lang/String;", "java/lang/String"},
		{"String", "Ljava/lang/String;", "java/lang/String"},
		{"int[]", "[I", "[I"},
		{"demo.Point[][]", "[[Ldemo/Point;", "[[Ldemo/Point;"},
	}
	for _, tt := range tests {
		typ, err := u.Lookup(tt.name)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", tt.name, err)
		}
		if got := typ.Descriptor(); got != tt.desc {
			t.Errorf("%s: Descriptor = %q, want %q", tt.name, got, tt.desc)
		}
		if got := typ.InternalName(); got != tt.internal {
			t.Errorf("%s: InternalName = %q, want %q", tt.name, got, tt.internal)
		}
		back, err := u.ForDescriptor(tt.desc)
		if err != nil {
			t.Fatalf("ForDescriptor(%q): %v", tt.desc, err)
		}
		if back != typ {
			t.Errorf("ForDescriptor(%q) = %v, want the interned %v", tt.desc, back, typ)
		}
	}
}

func TestInterning(t *testing.T) {
	u := NewUniverse()
	if u.Class("demo.A") != u.Class("demo/A") {
		t.Error("class types are not interned")
	}
	if Int.ArrayOf() != Int.ArrayOf() {
		t.Error("array types are not interned")
	}
	if u.Class("java.lang.String") != String {
		t.Error("builtin lookup did not return the shared type")
	}

	var wg sync.WaitGroup
	got := make([]*Type, 8)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i] = u.Class("demo.Concurrent").ArrayOf()
		}()
	}
	wg.Wait()
	for _, g := range got[1:] {
		if g != got[0] {
			t.Fatal("concurrent interning produced distinct types")
		}
	}
}

func TestParseMethodDescriptor(t *testing.T) {
	u := NewUniverse()
	ret, params, err := u.ParseMethodDescriptor("(IJ[Ljava/lang/String;)V")
	if err != nil {
		t.Fatal(err)
	}
	if ret != Void || len(params) != 3 || params[0] != Int || params[1] != Long || params[2] != String.ArrayOf() {
		t.Errorf("got %v %v", ret, params)
	}
	if got := MethodDescriptor(ret, params); got != "(IJ[Ljava/lang/String;)V" {
		t.Errorf("MethodDescriptor = %q", got)
	}
	for _, bad := range []string{"", "I", "(I", "(Q)V", "(I)VV", "(Ljava/lang/String)V"} {
		if _, _, err := u.ParseMethodDescriptor(bad); err == nil {
			t.Errorf("ParseMethodDescriptor(%q) succeeded", bad)
		}
	}
}

func TestDeclare(t *testing.T) {
	u := NewUniverse()
	a, err := u.Declare("demo.A", nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if a.Super() != Object || !a.IsDeclared() {
		t.Errorf("demo.A super = %v", a.Super())
	}
	b, _ := u.Declare("demo.B", a, false)
	if _, err := u.Declare("demo.A", b, false); err == nil {
		t.Error("expected redeclaration error")
	}
	if _, err := u.Declare("java.lang.String", nil, false); err == nil {
		t.Error("expected error redeclaring a builtin")
	}
	if _, err := u.Declare("demo.C", Int.ArrayOf(), false); err == nil {
		t.Error("expected error extending an array")
	}
}

func TestFindMethod(t *testing.T) {
	tests := []struct {
		owner *Type
		name  string
		args  []*Type
		mode  StaticMode
		desc  string
	}{
		{String, "valueOf", []*Type{Int}, StaticOnly, "(I)Ljava/lang/String;"},
		{String, "valueOf", []*Type{Byte}, StaticOnly, "(I)Ljava/lang/String;"},
		{String, "valueOf", []*Type{Char}, StaticOnly, "(C)Ljava/lang/String;"},
		{String, "valueOf", []*Type{Float}, StaticOnly, "(F)Ljava/lang/String;"},
		{String, "valueOf", []*Type{StringBuilder}, StaticOnly, "(Ljava/lang/Object;)Ljava/lang/String;"},
		{StringBuilder, "append", []*Type{String}, InstanceOnly, "(Ljava/lang/String;)Ljava/lang/StringBuilder;"},
		{StringBuilder, "append", []*Type{Short}, InstanceOnly, "(I)Ljava/lang/StringBuilder;"},
		{IntBox, "hashCode", nil, InstanceOnly, "()I"},
		{Math, "max", []*Type{Int, Long}, StaticOnly, "(JJ)J"},
		{PrintStream, "println", []*Type{Null}, InstanceOnly, "(Ljava/lang/String;)V"},
	}
	for _, tt := range tests {
		m, err := tt.owner.FindMethod(tt.name, tt.args, tt.mode)
		if err != nil {
			t.Errorf("%s.%s%v: %v", tt.owner, tt.name, tt.args, err)
			continue
		}
		if got := m.Descriptor(); got != tt.desc {
			t.Errorf("%s.%s%v = %s, want %s", tt.owner, tt.name, tt.args, got, tt.desc)
		}
	}

	if _, err := String.FindMethod("valueOf", []*Type{Int}, InstanceOnly); !errors.Is(err, ErrNoSuchMethod) {
		t.Errorf("instance lookup of static method: err = %v", err)
	}
	if _, err := String.FindMethod("nope", nil, AnyStatic); !errors.Is(err, ErrNoSuchMethod) {
		t.Errorf("missing method: err = %v", err)
	}
}

func TestFindField(t *testing.T) {
	u := NewUniverse()
	base, _ := u.Declare("demo.Base", nil, false)
	base.AddField("count", Int, false)
	derived, _ := u.Declare("demo.Derived", base, false)

	f, err := derived.FindField("count")
	if err != nil {
		t.Fatal(err)
	}
	if f.Owner != base || f.Type != Int {
		t.Errorf("field = %+v", f)
	}
	if _, err := derived.FindField("missing"); !errors.Is(err, ErrNoSuchField) {
		t.Errorf("err = %v", err)
	}
}
