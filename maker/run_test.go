package maker_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/chazu/jmaker/bytecode"
	"github.com/chazu/jmaker/classfile"
	"github.com/chazu/jmaker/interp"
	"github.com/chazu/jmaker/jtype"
	"github.com/chazu/jmaker/maker"
)

// load finishes c and defines it, with its helpers, in a fresh interpreter.
func load(t *testing.T, c *maker.ClassMaker) (*interp.VM, *bytes.Buffer, *maker.Class) {
	t.Helper()
	cls, err := c.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	var out bytes.Buffer
	vm := interp.New(&out)
	vm.MaxSteps = 1_000_000
	for _, h := range cls.Helpers {
		if _, err := vm.Define(h.Bytes); err != nil {
			t.Fatalf("define helper %s: %v", h.Name, err)
		}
	}
	if _, err := vm.Define(cls.Bytes); err != nil {
		t.Fatalf("define %s: %v", cls.Name, err)
	}
	return vm, &out, cls
}

func build(t *testing.T, fn func()) {
	t.Helper()
	if err := maker.Try(fn); err != nil {
		t.Fatalf("build: %v", err)
	}
}

func printLine(m *maker.MethodMaker, v any) {
	m.StaticField("java.lang.System", "out").Get().Invoke("println", v)
}

func methodCode(t *testing.T, cls *maker.Class, name string) (*classfile.ClassFile, *classfile.Code) {
	t.Helper()
	cf, err := classfile.Parse(cls.Bytes)
	if err != nil {
		t.Fatal(err)
	}
	mem := cf.FindMethod(name, "")
	if mem == nil {
		t.Fatalf("no method %s", name)
	}
	code, err := cf.Code(mem)
	if err != nil || code == nil {
		t.Fatalf("code of %s: %v", name, err)
	}
	return cf, code
}

func TestAssignedOnBothPaths(t *testing.T) {
	c := maker.NewClass("demo.Assign", maker.DefaultOptions()).Public()
	build(t, func() {
		m := c.AddMethod("void", "run").Public().Static()
		x := m.Var("int")
		x.Set(1)
		skip := m.Label()
		m.IfNe(x, 1, skip)
		x.Set(2)
		skip.Here()
		printLine(m, x)
	})
	vm, out, _ := load(t, c)
	if _, err := vm.InvokeStatic("demo.Assign", "run", "()V"); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); got != "2\n" {
		t.Errorf("output = %q, want %q", got, "2\n")
	}
}

func TestPossiblyUnassigned(t *testing.T) {
	c := maker.NewClass("demo.Unassigned", maker.DefaultOptions())
	build(t, func() {
		m := c.AddMethod("void", "run", "int").Static()
		x := m.Var("int")
		skip := m.Label()
		m.IfNe(m.Param(0), 1, skip)
		x.Set(2)
		skip.Here()
		printLine(m, x)
	})
	_, err := c.Finish()
	if !errors.Is(err, maker.ErrUnassigned) {
		t.Fatalf("err = %v, want ErrUnassigned", err)
	}
	var me *maker.Error
	if !errors.As(err, &me) {
		t.Errorf("err is %T, want *maker.Error", err)
	}
}

func TestArithmeticAndConversion(t *testing.T) {
	c := maker.NewClass("demo.Arith", maker.DefaultOptions())
	build(t, func() {
		m := c.AddMethod("int", "mix", "int", "int").Static()
		a, b := m.Param(0), m.Param(1)
		m.Return(a.Mul(b).Add(a.Div(b)))

		h := c.AddMethod("double", "half", "int").Static()
		h.Return(h.Param(0).Cast("double").Div(2.0))

		w := c.AddMethod("long", "widen", "int").Static()
		w.Return(w.Param(0).Cast("long").Shl(33))

		n := c.AddMethod("int", "narrow", "double").Static()
		n.Return(n.Param(0).Cast("int"))
	})
	vm, _, _ := load(t, c)

	tests := []struct {
		name string
		args []any
		want any
	}{
		{"mix", []any{int32(7), int32(2)}, int32(17)},
		{"mix", []any{int32(-7), int32(2)}, int32(-17)},
		{"half", []any{int32(7)}, 3.5},
		{"widen", []any{int32(1)}, int64(1) << 33},
		{"narrow", []any{math.NaN()}, int32(0)},
		{"narrow", []any{1e20}, int32(math.MaxInt32)},
		{"narrow", []any{-2.9}, int32(-2)},
	}
	for _, tt := range tests {
		got, err := vm.InvokeStatic("demo.Arith", tt.name, "", tt.args...)
		if err != nil {
			t.Errorf("%s%v: %v", tt.name, tt.args, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s%v = %v (%T), want %v (%T)", tt.name, tt.args, got, got, tt.want, tt.want)
		}
	}

	_, err := vm.InvokeStatic("demo.Arith", "mix", "", int32(1), int32(0))
	var ex *interp.Exception
	if !errors.As(err, &ex) || ex.Object.Class != "java/lang/ArithmeticException" {
		t.Errorf("division by zero: err = %v", err)
	}
}

func TestSmallTypeArithmetic(t *testing.T) {
	c := maker.NewClass("demo.Small", maker.DefaultOptions())
	build(t, func() {
		m := c.AddMethod("byte", "bump", "byte").Static()
		sum := m.Param(0).Add(1)
		if sum.Type() != jtype.Byte {
			t.Errorf("byte + 1 has type %s, want byte", sum.Type())
		}
		m.Return(sum)

		w := c.AddMethod("int", "wide", "byte", "short").Static()
		mixed := w.Param(0).Add(w.Param(1))
		if mixed.Type() != jtype.Int {
			t.Errorf("byte + short has type %s, want int", mixed.Type())
		}
		w.Return(mixed)
	})
	vm, _, _ := load(t, c)

	tests := []struct {
		name string
		args []any
		want int32
	}{
		{"bump", []any{int32(1)}, 2},
		{"bump", []any{int32(127)}, -128},
		{"wide", []any{int32(127), int32(1000)}, 1127},
	}
	for _, tt := range tests {
		got, err := vm.InvokeStatic("demo.Small", tt.name, "", tt.args...)
		if err != nil {
			t.Errorf("%s%v: %v", tt.name, tt.args, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s%v = %v (%T), want %d", tt.name, tt.args, got, got, tt.want)
		}
	}
}

func TestConstantConversionIsChecked(t *testing.T) {
	c := maker.NewClass("demo.Consts", maker.DefaultOptions())
	m := c.AddMethod("void", "run").Static()
	b := m.Var("byte")
	f := m.Var("float")

	if err := maker.Try(func() { b.Set(100) }); err != nil {
		t.Errorf("byte 100: %v", err)
	}
	for _, tc := range []struct {
		v     *maker.Variable
		value any
	}{
		{b, 300},
		{b, 1.5},
		{f, 0.1},
		{f, "x"},
	} {
		err := maker.Try(func() { tc.v.Set(tc.value) })
		if !errors.Is(err, maker.ErrIncompatibleType) {
			t.Errorf("Set(%v) on %s: err = %v", tc.value, tc.v.Type(), err)
		}
	}
	if err := maker.Try(func() { f.Set(0.5) }); err != nil {
		t.Errorf("float 0.5: %v", err)
	}
}

func TestNaNComparisons(t *testing.T) {
	c := maker.NewClass("demo.Cmp", maker.DefaultOptions())
	build(t, func() {
		for _, rel := range []string{"lt", "ge", "eq", "ne"} {
			m := c.AddMethod("boolean", rel, "double", "double").Static()
			a, b := m.Param(0), m.Param(1)
			switch rel {
			case "lt":
				m.Return(a.Lt(b))
			case "ge":
				m.Return(a.Ge(b))
			case "eq":
				m.Return(a.Eq(b))
			case "ne":
				m.Return(a.Ne(b))
			}
		}
	})
	vm, _, _ := load(t, c)

	nan := math.NaN()
	tests := []struct {
		rel  string
		a, b float64
		want int32
	}{
		{"lt", 1, 2, 1},
		{"lt", nan, 2, 0},
		{"lt", 1, nan, 0},
		{"ge", 2, 2, 1},
		{"ge", nan, 2, 0},
		{"ge", 2, nan, 0},
		{"eq", nan, nan, 0},
		{"ne", nan, nan, 1},
	}
	for _, tt := range tests {
		got, err := vm.InvokeStatic("demo.Cmp", tt.rel, "(DD)Z", tt.a, tt.b)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("%s(%v, %v) = %v, want %v", tt.rel, tt.a, tt.b, got, tt.want)
		}
	}
}

func TestComparisonReusedAfterBranch(t *testing.T) {
	c := maker.NewClass("demo.Fuse", maker.DefaultOptions())
	build(t, func() {
		m := c.AddMethod("boolean", "ifTrue", "int", "int").Static()
		lt := m.Param(0).Lt(m.Param(1))
		l := m.Label()
		m.IfTrue(lt, l)
		l.Here()
		m.Return(lt)

		m = c.AddMethod("boolean", "ifFalse", "int", "int").Static()
		lt = m.Param(0).Lt(m.Param(1))
		other := m.Label()
		m.IfFalse(lt, other)
		m.Return(lt)
		other.Here()
		m.Return(lt)

		m = c.AddMethod("int", "fused", "double", "double").Static()
		yes := m.Label()
		m.IfFalse(m.Param(0).Lt(m.Param(1)), yes)
		m.Return(1)
		yes.Here()
		m.Return(0)
	})
	vm, _, cls := load(t, c)

	tests := []struct {
		method string
		args   []any
		want   int32
	}{
		{"ifTrue", []any{int32(1), int32(2)}, 1},
		{"ifTrue", []any{int32(2), int32(1)}, 0},
		{"ifFalse", []any{int32(1), int32(2)}, 1},
		{"ifFalse", []any{int32(2), int32(2)}, 0},
		{"fused", []any{1.0, 2.0}, 1},
		{"fused", []any{2.0, 1.0}, 0},
		{"fused", []any{math.NaN(), 1.0}, 0},
	}
	for _, tt := range tests {
		got, err := vm.InvokeStatic("demo.Fuse", tt.method, "", tt.args...)
		if err != nil {
			t.Fatalf("%s%v: %v", tt.method, tt.args, err)
		}
		if got != tt.want {
			t.Errorf("%s%v = %v, want %d", tt.method, tt.args, got, tt.want)
		}
	}

	// A boolean read only by the branch needs no local.
	cf, code := methodCode(t, cls, "fused")
	if listing := bytecode.Disassemble(code.Code, cf.Pool); strings.Contains(listing, "istore") {
		t.Errorf("comparison result was stored:\n%s", listing)
	}
	cf, code = methodCode(t, cls, "ifTrue")
	if listing := bytecode.Disassemble(code.Code, cf.Pool); !strings.Contains(listing, "istore") {
		t.Errorf("reused comparison result was not stored:\n%s", listing)
	}
}

func TestFinishErrors(t *testing.T) {
	tests := []struct {
		name string
		body func(m *maker.MethodMaker)
		ret  string
		want error
	}{
		{
			name: "region starts after its end",
			ret:  "void",
			body: func(m *maker.MethodMaker) {
				end := m.Label().Here()
				printLine(m, "before")
				start := m.Label().Here()
				printLine(m, m.Param(0).Div(2))
				m.Return()
				m.Catch(start, end, "java.lang.ArithmeticException")
				m.Return()
			},
			want: maker.ErrBadRegion,
		},
		{
			name: "handler inside its own region",
			ret:  "void",
			body: func(m *maker.MethodMaker) {
				start := m.Label().Here()
				printLine(m, m.Param(0).Div(2))
				end := m.Label().Here()
				m.Return()
				start.Insert(func() {
					skip := m.Label()
					m.Goto(skip)
					m.Catch(start, end, "java.lang.ArithmeticException")
					m.Return()
					skip.Here()
				})
			},
			want: maker.ErrBadRegion,
		},
		{
			name: "end reached in int method",
			ret:  "int",
			body: func(m *maker.MethodMaker) {
				skip := m.Label()
				m.IfEq(m.Param(0), 0, skip)
				m.Return(1)
				skip.Here()
				printLine(m, "zero")
			},
			want: maker.ErrNoReturn,
		},
		{
			name: "branch to unpositioned label",
			ret:  "void",
			body: func(m *maker.MethodMaker) {
				m.Goto(m.Label())
			},
			want: maker.ErrUnpositionedLabel,
		},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := maker.NewClass(fmt.Sprintf("demo.Broken%d", i), maker.DefaultOptions())
			build(t, func() {
				tt.body(c.AddMethod(tt.ret, "run", "int").Static())
			})
			_, err := c.Finish()
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var me *maker.Error
			if !errors.As(err, &me) || !strings.Contains(me.Op, "run") {
				t.Errorf("err = %v, want a *maker.Error naming the method", err)
			}
		})
	}
}

func TestNaNPayloadsSurviveMethodBodies(t *testing.T) {
	tests := []struct {
		name  string
		typ   string
		value any
	}{
		{"quiet double", "double", math.Float64frombits(0x7ff8000000000123)},
		{"negative double", "double", math.Float64frombits(0xfff8000000000001)},
		{"quiet float", "float", math.Float32frombits(0x7fc00123)},
		{"negative float", "float", math.Float32frombits(0xffc00001)},
	}
	c := maker.NewClass("demo.Payload", maker.DefaultOptions())
	build(t, func() {
		for i, tt := range tests {
			m := c.AddMethod(tt.typ, fmt.Sprintf("constant%d", i)).Static()
			m.Return(tt.value)

			m = c.AddMethod(tt.typ, fmt.Sprintf("local%d", i)).Static()
			v := m.Var(tt.typ)
			v.Set(tt.value)
			m.Return(v)
		}
	})
	vm, _, _ := load(t, c)

	bits := func(v any) uint64 {
		switch x := v.(type) {
		case float32:
			return uint64(math.Float32bits(x))
		case float64:
			return math.Float64bits(x)
		}
		t.Fatalf("%v (%T) is not floating point", v, v)
		return 0
	}
	for i, tt := range tests {
		for _, kind := range []string{"constant", "local"} {
			got, err := vm.InvokeStatic("demo.Payload", fmt.Sprintf("%s%d", kind, i), "")
			if err != nil {
				t.Fatal(err)
			}
			if bits(got) != bits(tt.value) {
				t.Errorf("%s %s: got bits %x, want %x", tt.name, kind, bits(got), bits(tt.value))
			}
		}
	}
}

func TestLongBranchesAreRelaxed(t *testing.T) {
	tests := []struct {
		pairs int
		wide  bool
	}{
		{5000, false},
		{5460, true},
		{5470, true},
		{6000, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.pairs), func(t *testing.T) {
			name := fmt.Sprintf("demo.Big%d", tt.pairs)
			c := maker.NewClass(name, maker.DefaultOptions())
			build(t, func() {
				m := c.AddMethod("int", "spin", "int").Static()
				n := m.Param(0)
				i := m.Var("int")
				count := m.Var("int")
				i.Set(0)
				count.Set(0)
				top := m.Label().Here()
				done := m.Label()
				m.IfGe(i, n, done)
				for range tt.pairs {
					count.Inc(2)
					count.Inc(-1)
				}
				i.Inc(1)
				m.Goto(top)
				done.Here()
				m.Return(count)
			})
			vm, _, cls := load(t, c)

			cf, code := methodCode(t, cls, "spin")
			listing := bytecode.Disassemble(code.Code, cf.Pool)
			if got := strings.Contains(listing, "goto_w"); got != tt.wide {
				t.Errorf("goto_w present = %v, want %v (%d code bytes)", got, tt.wide, len(code.Code))
			}
			if tt.wide && len(code.Code) <= math.MaxInt16 {
				t.Errorf("code is only %d bytes", len(code.Code))
			}
			if _, ok := cf.Attribute(code.Attributes, "StackMapTable"); !ok {
				t.Error("no StackMapTable")
			}

			for _, arg := range []int32{0, 2} {
				got, err := vm.InvokeStatic(name, "spin", "(I)I", arg)
				if err != nil {
					t.Fatal(err)
				}
				if want := arg * int32(tt.pairs); got != want {
					t.Errorf("spin(%d) = %v, want %d", arg, got, want)
				}
			}
		})
	}
}

func TestCodeTooLarge(t *testing.T) {
	c := maker.NewClass("demo.Huge", maker.DefaultOptions())
	build(t, func() {
		m := c.AddMethod("void", "run").Static()
		x := m.Var("int").Name("x")
		x.Set(0)
		for k := 0; k < 30000; k++ {
			x.Inc(1)
		}
	})
	if _, err := c.Finish(); !errors.Is(err, maker.ErrCodeTooLarge) {
		t.Fatalf("err = %v, want ErrCodeTooLarge", err)
	}
}

func TestUnusedResultsKeepSideEffects(t *testing.T) {
	c := maker.NewClass("demo.Dead", maker.DefaultOptions())
	build(t, func() {
		tick := c.AddMethod("int", "tick").Static()
		printLine(tick, "tick")
		tick.Return(1)

		m := c.AddMethod("void", "run").Static()
		unused := m.Var("int")
		unused.Set(m.Invoke("tick"))
		m.Invoke("tick")
		x := m.Var("int")
		x.Set(5)
		x.Set(6)
		printLine(m, x)
	})
	vm, out, cls := load(t, c)
	if _, err := vm.InvokeStatic("demo.Dead", "run", "()V"); err != nil {
		t.Fatal(err)
	}
	if got, want := out.String(), "tick\ntick\n6\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}

	cf, code := methodCode(t, cls, "run")
	if n := strings.Count(bytecode.Disassemble(code.Code, cf.Pool), "invokestatic"); n != 2 {
		t.Errorf("found %d calls to tick, want 2", n)
	}
}

func TestHandlerFallthroughRejected(t *testing.T) {
	c := maker.NewClass("demo.Fall", maker.DefaultOptions())
	build(t, func() {
		m := c.AddMethod("void", "run", "int").Static()
		start := m.Label().Here()
		printLine(m, m.Param(0).Div(2))
		end := m.Label().Here()
		m.Catch(start, end, "java.lang.ArithmeticException")
		printLine(m, "caught")
	})
	if _, err := c.Finish(); !errors.Is(err, maker.ErrHandlerFallthrough) {
		t.Fatalf("err = %v, want ErrHandlerFallthrough", err)
	}
}

func TestCatch(t *testing.T) {
	c := maker.NewClass("demo.Catcher", maker.DefaultOptions())
	build(t, func() {
		m := c.AddMethod("int", "div", "int", "int").Static()
		start := m.Label().Here()
		m.Return(m.Param(0).Div(m.Param(1)))
		end := m.Label().Here()
		ex := m.Catch(start, end, "java.lang.ArithmeticException")
		printLine(m, ex.Invoke("getMessage"))
		m.Return(-1)

		f := c.AddMethod("void", "safe", "int").Static()
		begin := f.Label().Here()
		printLine(f, f.Param(0).Rem(0))
		f.CatchFunc(begin, "java.lang.ArithmeticException", func(ex *maker.Variable) {
			printLine(f, "handled")
		})
		printLine(f, "after")
	})
	vm, out, _ := load(t, c)

	got, err := vm.InvokeStatic("demo.Catcher", "div", "(II)I", int32(9), int32(3))
	if err != nil || got != int32(3) {
		t.Errorf("div(9, 3) = %v, %v", got, err)
	}
	got, err = vm.InvokeStatic("demo.Catcher", "div", "(II)I", int32(9), int32(0))
	if err != nil || got != int32(-1) {
		t.Errorf("div(9, 0) = %v, %v", got, err)
	}
	if _, err := vm.InvokeStatic("demo.Catcher", "safe", "(I)V", int32(4)); err != nil {
		t.Fatal(err)
	}
	if want := "/ by zero\nhandled\nafter\n"; out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestFinally(t *testing.T) {
	c := maker.NewClass("demo.Fin", maker.DefaultOptions())
	build(t, func() {
		m := c.AddMethod("int", "guarded", "int", "int").Static()
		start := m.Label().Here()
		printLine(m, "body")
		m.Return(m.Param(0).Div(m.Param(1)))
		m.Finally(start, func() {
			printLine(m, "finally")
		})

		loop := c.AddMethod("int", "loop", "int").Static()
		i := loop.Var("int")
		i.Set(0)
		top := loop.Label().Here()
		done := loop.Label()
		begin := loop.Label().Here()
		loop.IfGe(i, loop.Param(0), done)
		i.Inc(1)
		loop.Finally(begin, func() {
			printLine(loop, i)
		})
		loop.Goto(top)
		done.Here()
		loop.Return(i)
	})
	vm, out, _ := load(t, c)

	got, err := vm.InvokeStatic("demo.Fin", "guarded", "(II)I", int32(8), int32(2))
	if err != nil || got != int32(4) {
		t.Errorf("guarded(8, 2) = %v, %v", got, err)
	}
	if want := "body\nfinally\n"; out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}

	out.Reset()
	_, err = vm.InvokeStatic("demo.Fin", "guarded", "(II)I", int32(8), int32(0))
	var ex *interp.Exception
	if !errors.As(err, &ex) || ex.Object.Class != "java/lang/ArithmeticException" {
		t.Errorf("guarded(8, 0): err = %v", err)
	}
	if want := "body\nfinally\n"; out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}

	out.Reset()
	got, err = vm.InvokeStatic("demo.Fin", "loop", "(I)I", int32(2))
	if err != nil || got != int32(2) {
		t.Errorf("loop(2) = %v, %v", got, err)
	}
	if want := "1\n2\n2\n"; out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestSwitch(t *testing.T) {
	c := maker.NewClass("demo.Sw", maker.DefaultOptions())
	build(t, func() {
		for _, tc := range []struct {
			name string
			keys []int
		}{
			{"dense", []int{1, 2, 3}},
			{"sparse", []int{1, 2, 1000}},
		} {
			m := c.AddMethod("String", tc.name, "int").Static()
			dflt := m.Label()
			labels := []*maker.Label{m.Label(), m.Label(), m.Label()}
			m.Switch(m.Param(0), dflt, tc.keys, labels...)
			for i, l := range labels {
				l.Here()
				m.Return([]string{"one", "two", "three"}[i])
			}
			dflt.Here()
			m.Return("other")
		}

		s := c.AddMethod("int", "word", "String").Static()
		dflt := s.Label()
		labels := []*maker.Label{s.Label(), s.Label(), s.Label()}
		s.SwitchString(s.Param(0), dflt, []string{"Aa", "BB", "go"}, labels...)
		for i, l := range labels {
			l.Here()
			s.Return(i + 10)
		}
		dflt.Here()
		s.Return(-1)
	})
	vm, _, cls := load(t, c)
	if len(cls.Helpers) != 1 {
		t.Fatalf("got %d helpers, want 1", len(cls.Helpers))
	}

	for _, name := range []string{"dense", "sparse"} {
		third := int32(3)
		if name == "sparse" {
			third = 1000
		}
		for key, want := range map[int32]string{1: "one", 2: "two", third: "three", 7: "other", -1: "other"} {
			got, err := vm.InvokeStatic("demo.Sw", name, "", key)
			if err != nil {
				t.Fatal(err)
			}
			if got != want {
				t.Errorf("%s(%d) = %v, want %s", name, key, got, want)
			}
		}
	}

	cf, code := methodCode(t, cls, "sparse")
	if !strings.Contains(bytecode.Disassemble(code.Code, cf.Pool), "lookupswitch") {
		t.Error("sparse cases should use lookupswitch")
	}

	for key, want := range map[string]int32{"Aa": 10, "BB": 11, "go": 12, "Ab": -1, "": -1} {
		got, err := vm.InvokeStatic("demo.Sw", "word", "", key)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("word(%q) = %v, want %d", key, got, want)
		}
	}

	dup := maker.NewClass("demo.Dup", maker.DefaultOptions())
	err := maker.Try(func() {
		m := dup.AddMethod("void", "run", "int").Static()
		a, b := m.Label(), m.Label()
		m.Switch(m.Param(0), a, []int{1, 1}, a, b)
	})
	if !errors.Is(err, maker.ErrDuplicateCase) {
		t.Errorf("duplicate case: err = %v", err)
	}
}

func TestSwitchHelpersAreShared(t *testing.T) {
	opts := maker.DefaultOptions()
	var classes []*maker.Class
	for _, name := range []string{"demo.A", "demo.B"} {
		c := maker.NewClass(name, opts)
		build(t, func() {
			m := c.AddMethod("int", "pick", "String").Static()
			d, x := m.Label(), m.Label()
			m.SwitchString(m.Param(0), d, []string{"x", "y"}, x, d)
			x.Here()
			m.Return(1)
			d.Here()
			m.Return(0)
		})
		cls, err := c.Finish()
		if err != nil {
			t.Fatal(err)
		}
		classes = append(classes, cls)
	}
	if classes[0].Helpers[0] != classes[1].Helpers[0] {
		t.Error("identical string switches should share a helper")
	}
}

func TestConcat(t *testing.T) {
	for _, major := range []uint16{classfile.MajorJava8, classfile.MajorJava17} {
		opts := maker.DefaultOptions()
		opts.Major = major
		c := maker.NewClass("demo.Cat", opts)
		build(t, func() {
			m := c.AddMethod("String", "describe", "String", "int", "double", "boolean", "char").Static()
			m.Return(m.Concat("s=", m.Param(0), " i=", m.Param(1), " d=", m.Param(2),
				" b=", m.Param(3), " c=", m.Param(4), " null=", nil))
		})
		vm, _, cls := load(t, c)

		got, err := vm.InvokeStatic("demo.Cat", "describe", "", "x", int32(-3), 0.5, int32(1), int32('q'))
		if err != nil {
			t.Fatalf("major %d: %v", major, err)
		}
		if want := "s=x i=-3 d=0.5 b=true c=q null=null"; got != want {
			t.Errorf("major %d: got %q, want %q", major, got, want)
		}

		cf, code := methodCode(t, cls, "describe")
		indy := strings.Contains(bytecode.Disassemble(code.Code, cf.Pool), "invokedynamic")
		if indy != (major >= classfile.MajorJava11) {
			t.Errorf("major %d: invokedynamic = %v", major, indy)
		}
	}
}

func TestInvokeDynamic(t *testing.T) {
	c := maker.NewClass("demo.Linker", maker.DefaultOptions())
	link := maker.Bootstrap{Class: c, Name: "link", Args: []any{"tag", 7, int64(8), 1.5, jtype.String}}
	build(t, func() {
		m := c.AddMethod("long", "call", "int", "String").Static()
		m.Return(m.InvokeDynamic(link, "apply", "long", m.Param(0), m.Param(1), nil))

		m = c.AddMethod("void", "fire").Static()
		if v := m.InvokeDynamic(link, "fire", "void"); v != nil {
			t.Errorf("void call site returned %s", v.Type())
		}
		m.Return()
	})
	cls, err := c.Finish()
	if err != nil {
		t.Fatal(err)
	}

	cf, code := methodCode(t, cls, "call")
	at := bytes.IndexByte(code.Code, byte(bytecode.OpInvokedynamic))
	if at < 0 {
		t.Fatalf("no invokedynamic in:\n%s", bytecode.Disassemble(code.Code, cf.Pool))
	}
	site, err := cf.Pool.Entry(int(binary.BigEndian.Uint16(code.Code[at+1:])))
	if err != nil || site.Tag != classfile.TagInvokeDynamic {
		t.Fatalf("call site entry = %+v, %v", site, err)
	}
	name, desc, err := cf.Pool.NameAndTypeAt(int(site.B))
	if err != nil {
		t.Fatal(err)
	}
	if name != "apply" || desc != "(ILjava/lang/String;Ljava/lang/Object;)J" {
		t.Errorf("call site = %s%s", name, desc)
	}

	a, ok := cf.Attribute(cf.Attributes, "BootstrapMethods")
	if !ok {
		t.Fatal("no BootstrapMethods attribute")
	}
	bsms, err := classfile.DecodeBootstrapMethods(a.Data)
	if err != nil {
		t.Fatal(err)
	}
	if len(bsms) != 1 || site.A != 0 {
		t.Fatalf("%d bootstrap methods, call site uses %d", len(bsms), site.A)
	}
	handle, err := cf.Pool.Entry(int(bsms[0].Handle))
	if err != nil || handle.Tag != classfile.TagMethodHandle || handle.A != classfile.RefInvokeStatic {
		t.Fatalf("handle = %+v, %v", handle, err)
	}
	ref, err := cf.Pool.MemberRefAt(int(handle.B))
	if err != nil {
		t.Fatal(err)
	}
	wantDesc := "(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/MethodType;" +
		"Ljava/lang/String;IJDLjava/lang/Class;)Ljava/lang/invoke/CallSite;"
	if ref.Owner != "demo/Linker" || ref.Name != "link" || ref.Descriptor != wantDesc {
		t.Errorf("bootstrap = %+v", ref)
	}
	want := []any{"tag", int32(7), int64(8), 1.5, classfile.ClassRef("java/lang/String")}
	if len(bsms[0].Args) != len(want) {
		t.Fatalf("bootstrap has %d arguments, want %d", len(bsms[0].Args), len(want))
	}
	for i, idx := range bsms[0].Args {
		got, err := cf.Pool.LoadableAt(int(idx))
		if err != nil || got != want[i] {
			t.Errorf("argument %d = %v (%v), want %v", i, got, err, want[i])
		}
	}
}

func TestInvokeDynamicErrors(t *testing.T) {
	tests := []struct {
		name  string
		major uint16
		b     maker.Bootstrap
	}{
		{"old class version", 50, maker.Bootstrap{Class: "Object", Name: "link"}},
		{"boolean argument", 0, maker.Bootstrap{Class: "Object", Name: "link", Args: []any{true}}},
		{"primitive class argument", 0, maker.Bootstrap{Class: "Object", Name: "link", Args: []any{jtype.Int}}},
		{"null argument", 0, maker.Bootstrap{Class: "Object", Name: "link", Args: []any{nil}}},
		{"unnamed bootstrap", 0, maker.Bootstrap{Class: "Object"}},
		{"primitive owner", 0, maker.Bootstrap{Class: "int", Name: "link"}},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := maker.DefaultOptions()
			opts.Major = tt.major
			m := maker.NewClass(fmt.Sprintf("demo.BadLink%d", i), opts).AddMethod("void", "run").Static()
			err := maker.Try(func() { m.InvokeDynamic(tt.b, "site", "void") })
			if !errors.Is(err, maker.ErrUsage) {
				t.Errorf("err = %v, want ErrUsage", err)
			}
		})
	}
}

func TestFieldsAndConstructors(t *testing.T) {
	c := maker.NewClass("demo.Counter", maker.DefaultOptions()).Public()
	build(t, func() {
		c.AddField("int", "count").Private()
		c.AddField("int", "LIMIT").Public().Static().Final().InitInt(42)
		c.AddField("String", "greeting").Public().Static()

		ctor := c.AddConstructor("int").Public()
		ctor.InvokeSuperConstructor()
		ctor.Field("count").Set(ctor.Param(0))

		next := c.AddMethod("int", "next").Public()
		next.Field("count").Inc(1)
		next.Return(next.Field("count"))

		clinit := c.AddClinit()
		clinit.Field("greeting").Set("hi")
	})
	vm, _, _ := load(t, c)

	obj, err := vm.New("demo.Counter", "(I)V", int32(5))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []int32{6, 7} {
		got, err := vm.InvokeVirtual(obj, "next", "()I")
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("next() = %v, want %d", got, want)
		}
	}
	if v, err := vm.GetStatic("demo.Counter", "LIMIT"); err != nil || v != int32(42) {
		t.Errorf("LIMIT = %v, %v", v, err)
	}
	if v, err := vm.GetStatic("demo.Counter", "greeting"); err != nil || v != "hi" {
		t.Errorf("greeting = %v, %v", v, err)
	}
}

func TestConstructorMustInitialize(t *testing.T) {
	c := maker.NewClass("demo.NoSuper", maker.DefaultOptions())
	build(t, func() {
		c.AddConstructor().Public().Nop()
	})
	if _, err := c.Finish(); !errors.Is(err, maker.ErrUsage) {
		t.Fatalf("err = %v, want ErrUsage", err)
	}
}

func TestFinishedClassRejectsUse(t *testing.T) {
	c := maker.NewClass("demo.Done", maker.DefaultOptions())
	if _, err := c.Finish(); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Finish(); !errors.Is(err, maker.ErrFinished) {
		t.Errorf("second Finish: err = %v", err)
	}
	err := maker.Try(func() { c.AddMethod("void", "late") })
	if !errors.Is(err, maker.ErrFinished) {
		t.Errorf("AddMethod after Finish: err = %v", err)
	}
}

func TestDebugAttributes(t *testing.T) {
	opts := maker.DefaultOptions()
	opts.LocalVariableTable = true
	c := maker.NewClass("demo.Debug", opts).SourceFile("Debug.java")
	build(t, func() {
		m := c.AddMethod("int", "abs", "int").Static()
		m.LineNum(10)
		x := m.Var("int").Name("x")
		x.Set(m.Param(0))
		pos := m.Label()
		m.IfGe(x, 0, pos)
		m.LineNum(11)
		x.Set(x.Neg())
		pos.Here()
		m.LineNum(12)
		m.Return(x)
	})
	vm, _, cls := load(t, c)
	if got, err := vm.InvokeStatic("demo.Debug", "abs", "(I)I", int32(-4)); err != nil || got != int32(4) {
		t.Errorf("abs(-4) = %v, %v", got, err)
	}

	cf, code := methodCode(t, cls, "abs")
	for _, name := range []string{"LineNumberTable", "LocalVariableTable", "StackMapTable"} {
		if _, ok := cf.Attribute(code.Attributes, name); !ok {
			t.Errorf("missing %s", name)
		}
	}
	if _, ok := cf.Attribute(cf.Attributes, "SourceFile"); !ok {
		t.Error("missing SourceFile")
	}
}
