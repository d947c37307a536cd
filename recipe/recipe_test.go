package recipe

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/jmaker/interp"
	"github.com/chazu/jmaker/maker"
)

func buildFile(t *testing.T, name string) (*interp.VM, *bytes.Buffer) {
	t.Helper()
	rc, err := Load(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cls, err := rc.Build(maker.DefaultOptions())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	var out bytes.Buffer
	vm := interp.New(&out)
	for _, h := range cls.Helpers {
		if _, err := vm.Define(h.Bytes); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := vm.Define(cls.Bytes); err != nil {
		t.Fatal(err)
	}
	return vm, &out
}

func TestHello(t *testing.T) {
	vm, out := buildFile(t, "hello.yaml")
	if _, err := vm.InvokeStatic("demo.Hello", "main", "()V"); err != nil {
		t.Fatal(err)
	}
	if got, want := out.String(), "2\nx is 2!\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestCounter(t *testing.T) {
	vm, _ := buildFile(t, "counter.yaml")

	obj, err := vm.New("demo.Counter", "(I)V", int32(10))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []int32{11, 12} {
		got, err := vm.InvokeVirtual(obj, "next", "()I")
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("next() = %v, want %d", got, want)
		}
	}

	got, err := vm.InvokeStatic("demo.Counter", "sum", "(I)J", int32(20))
	if err != nil {
		t.Fatal(err)
	}
	if got != int64(75) {
		t.Errorf("sum(20) = %v, want 75", got)
	}
	if v, err := vm.GetStatic("demo.Counter", "NAME"); err != nil || v != "counter" {
		t.Errorf("NAME = %v, %v", v, err)
	}
	if v, err := vm.GetStatic("demo.Counter", "STEP"); err != nil || v != int64(3) {
		t.Errorf("STEP = %v, %v", v, err)
	}
}

func TestControl(t *testing.T) {
	vm, out := buildFile(t, "control.yaml")

	for in, want := range map[string]string{"red": "warm", "blue": "cool", "green": "unknown"} {
		got, err := vm.InvokeStatic("demo.Control", "classify", "", in)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("classify(%q) = %v, want %s", in, got, want)
		}
	}
	for in, want := range map[int32]string{0: "none", 1: "one", 100: "hundred", 7: "many: 7"} {
		got, err := vm.InvokeStatic("demo.Control", "size", "", in)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("size(%d) = %v, want %s", in, got, want)
		}
	}

	got, err := vm.InvokeStatic("demo.Control", "divide", "", int32(6), int32(3))
	if err != nil || got != int32(2) {
		t.Errorf("divide(6, 3) = %v, %v", got, err)
	}
	got, err = vm.InvokeStatic("demo.Control", "divide", "", int32(1), int32(0))
	if err != nil || got != int32(-1) {
		t.Errorf("divide(1, 0) = %v, %v", got, err)
	}
	if want := "done\n/ by zero\ndone\n"; out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}

	for in, want := range map[float64]int32{1.5: 0, math.Inf(1): 0} {
		if got, err := vm.InvokeStatic("demo.Control", "isNaN", "", in); err != nil || got != want {
			t.Errorf("isNaN(%v) = %v, %v", in, got, err)
		}
	}
	if got, err := vm.InvokeStatic("demo.Control", "isNaN", "", math.NaN()); err != nil || got != int32(1) {
		t.Errorf("isNaN(NaN) = %v, %v", got, err)
	}

	_, err = vm.InvokeStatic("demo.Control", "fails", "")
	var ex *interp.Exception
	if !errors.As(err, &ex) || ex.Message() != "broken" {
		t.Errorf("fails: err = %v", err)
	}
}

func TestUnassignedRecipe(t *testing.T) {
	rc, err := Load(filepath.Join("testdata", "unassigned.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rc.Build(maker.DefaultOptions()); !errors.Is(err, maker.ErrUnassigned) {
		t.Fatalf("err = %v, want ErrUnassigned", err)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"no class", "methods: []"},
		{"unknown key", "class: a.B\ncolour: red"},
		{"unnamed method", "class: a.B\nmethods: [{returns: int}]"},
		{"untyped param", "class: a.B\nmethods: [{name: f, params: [{name: x}]}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(tt.src)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"unknown statement", "- jump: x", ErrInvalid},
		{"break outside loop", "- break: ~", ErrInvalid},
		{"redeclared", "- var: x\n  type: int\n- var: x\n  type: int", ErrInvalid},
		{"bad type", "- var: x\n  type: int\n  value: \"text\"", maker.ErrIncompatibleType},
		{"value from void", "- return: 1", ErrInvalid},
		{"unknown name", "- print: nothing", maker.ErrUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "class: demo.Bad\nmethods:\n  - name: run\n    modifiers: [static]\n    body:\n" + indent(tt.body, "      ")
			rc, err := Parse(strings.NewReader(src))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if _, err := rc.Build(maker.DefaultOptions()); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n") + "\n"
}

func TestSuffixedLiterals(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"5L", int64(5)},
		{"-7l", int64(-7)},
		{"1.5f", float32(1.5)},
		{"2d", float64(2)},
		{"7b", int8(7)},
		{"300s", int16(300)},
		{"c'x'", uint16('x')},
	}
	for _, tt := range tests {
		got, ok := suffixed(tt.in)
		if !ok || got != tt.want {
			t.Errorf("suffixed(%q) = %v (%T), %v; want %v (%T)", tt.in, got, got, ok, tt.want, tt.want)
		}
	}
	for _, bad := range []string{"L", "abc", "1x", "c'xy'"} {
		if _, ok := suffixed(bad); ok {
			t.Errorf("suffixed(%q) accepted", bad)
		}
	}
}
