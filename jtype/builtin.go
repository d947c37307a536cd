package jtype

import "strings"

// Well-known library types. Their hierarchy and the members the compiler
// relies on are fixed at package initialization.
var (
	Object       = builtinClass("java.lang.Object")
	String       = builtinClass("java.lang.String")
	CharSequence = builtinClass("java.lang.CharSequence")
	Comparable   = builtinClass("java.lang.Comparable")
	Serializable = builtinClass("java.io.Serializable")
	Cloneable    = builtinClass("java.lang.Cloneable")
	Number       = builtinClass("java.lang.Number")
	BooleanBox   = builtinClass("java.lang.Boolean")
	CharBox      = builtinClass("java.lang.Character")
	ByteBox      = builtinClass("java.lang.Byte")
	ShortBox     = builtinClass("java.lang.Short")
	IntBox       = builtinClass("java.lang.Integer")
	LongBox      = builtinClass("java.lang.Long")
	FloatBox     = builtinClass("java.lang.Float")
	DoubleBox    = builtinClass("java.lang.Double")
	Class        = builtinClass("java.lang.Class")
	Math         = builtinClass("java.lang.Math")
	System       = builtinClass("java.lang.System")
	PrintStream  = builtinClass("java.io.PrintStream")

	StringBuilder = builtinClass("java.lang.StringBuilder")

	Throwable                      = builtinClass("java.lang.Throwable")
	Exception                      = builtinClass("java.lang.Exception")
	Error                          = builtinClass("java.lang.Error")
	RuntimeException               = builtinClass("java.lang.RuntimeException")
	IllegalStateException          = builtinClass("java.lang.IllegalStateException")
	IllegalArgumentException       = builtinClass("java.lang.IllegalArgumentException")
	ArithmeticException            = builtinClass("java.lang.ArithmeticException")
	NullPointerException           = builtinClass("java.lang.NullPointerException")
	ClassCastException             = builtinClass("java.lang.ClassCastException")
	IndexOutOfBoundsException      = builtinClass("java.lang.IndexOutOfBoundsException")
	ArrayIndexOutOfBoundsException = builtinClass("java.lang.ArrayIndexOutOfBoundsException")
	NegativeArraySizeException     = builtinClass("java.lang.NegativeArraySizeException")
	UnsupportedOperationException  = builtinClass("java.lang.UnsupportedOperationException")

	StringConcatFactory = builtinClass("java.lang.invoke.StringConcatFactory")
	MethodHandlesLookup = builtinClass("java.lang.invoke.MethodHandles$Lookup")
	MethodType          = builtinClass("java.lang.invoke.MethodType")
	CallSite            = builtinClass("java.lang.invoke.CallSite")
)

var (
	builtins   = make(map[string]*Type)
	shortNames = make(map[string]*Type)
)

func builtinClass(name string) *Type {
	return &Type{
		kind:    KindObject,
		name:    name,
		desc:    "L" + strings.ReplaceAll(name, ".", "/") + ";",
		builtin: true,
	}
}

func extend(t, super *Type, ifaces ...*Type) {
	t.super = super
	t.ifaces = ifaces
}

func iface(t *Type, supers ...*Type) {
	t.iface = true
	t.super = Object
	t.ifaces = supers
}

func pair(p, box *Type) {
	p.box = box
	box.unboxed = p
}

func init() {
	iface(CharSequence)
	iface(Comparable)
	iface(Serializable)
	iface(Cloneable)

	extend(String, Object, CharSequence, Comparable, Serializable)
	extend(Number, Object, Serializable)
	extend(BooleanBox, Object, Serializable, Comparable)
	extend(CharBox, Object, Serializable, Comparable)
	for _, b := range []*Type{ByteBox, ShortBox, IntBox, LongBox, FloatBox, DoubleBox} {
		extend(b, Number, Comparable)
	}
	extend(Class, Object, Serializable)
	extend(Math, Object)
	extend(System, Object)
	extend(PrintStream, Object)
	extend(StringBuilder, Object, CharSequence, Serializable)
	extend(StringConcatFactory, Object)
	extend(MethodHandlesLookup, Object)
	extend(MethodType, Object, Serializable)
	extend(CallSite, Object)

	extend(Throwable, Object, Serializable)
	extend(Exception, Throwable)
	extend(Error, Throwable)
	extend(RuntimeException, Exception)
	for _, t := range []*Type{
		IllegalStateException, IllegalArgumentException, ArithmeticException,
		NullPointerException, ClassCastException, IndexOutOfBoundsException,
		NegativeArraySizeException, UnsupportedOperationException,
	} {
		extend(t, RuntimeException)
	}
	extend(ArrayIndexOutOfBoundsException, IndexOutOfBoundsException)

	pair(Boolean, BooleanBox)
	pair(Char, CharBox)
	pair(Byte, ByteBox)
	pair(Short, ShortBox)
	pair(Int, IntBox)
	pair(Long, LongBox)
	pair(Float, FloatBox)
	pair(Double, DoubleBox)

	for _, t := range []*Type{
		Object, String, CharSequence, Comparable, Serializable, Cloneable, Number,
		BooleanBox, CharBox, ByteBox, ShortBox, IntBox, LongBox, FloatBox, DoubleBox,
		Class, Math, System, PrintStream, StringBuilder,
		Throwable, Exception, Error, RuntimeException, IllegalStateException,
		IllegalArgumentException, ArithmeticException, NullPointerException,
		ClassCastException, IndexOutOfBoundsException, ArrayIndexOutOfBoundsException,
		NegativeArraySizeException, UnsupportedOperationException,
		StringConcatFactory, MethodHandlesLookup, MethodType, CallSite,
	} {
		builtins[t.name] = t
		if strings.HasPrefix(t.name, "java.lang.") && !strings.Contains(t.name[10:], ".") {
			shortNames[t.name[10:]] = t
		}
	}

	defineMembers()
}

func defineMembers() {
	Object.AddMethod("<init>", Void, false)
	Object.AddMethod("hashCode", Int, false)
	Object.AddMethod("equals", Boolean, false, Object)
	Object.AddMethod("toString", String, false)

	for _, p := range []*Type{Boolean, Char, Int, Long, Float, Double, Object} {
		String.AddMethod("valueOf", String, true, p)
	}
	String.AddMethod("length", Int, false)
	String.AddMethod("charAt", Char, false, Int)
	String.AddMethod("hashCode", Int, false)
	String.AddMethod("equals", Boolean, false, Object)
	String.AddMethod("concat", String, false, String)
	String.AddMethod("isEmpty", Boolean, false)
	String.AddMethod("toString", String, false)
	CharSequence.AddMethod("length", Int, false)
	CharSequence.AddMethod("charAt", Char, false, Int)
	Comparable.AddMethod("compareTo", Int, false, Object)

	StringBuilder.AddMethod("<init>", Void, false)
	StringBuilder.AddMethod("<init>", Void, false, String)
	for _, p := range []*Type{Boolean, Char, Int, Long, Float, Double, String, CharSequence, Object} {
		StringBuilder.AddMethod("append", StringBuilder, false, p)
	}
	StringBuilder.AddMethod("toString", String, false)
	StringBuilder.AddMethod("length", Int, false)

	for _, p := range []*Type{Int, Long, Float, Double, Byte, Short} {
		Number.AddMethod(p.name+"Value", p, false)
	}
	for _, p := range []*Type{Boolean, Char, Byte, Short, Int, Long, Float, Double} {
		b := p.box
		b.AddMethod("valueOf", b, true, p)
		b.AddMethod(p.name+"Value", p, false)
		b.AddField("TYPE", Class, true)
		b.AddMethod("toString", String, true, p)
	}
	for _, p := range []*Type{Byte, Short, Int, Long, Float, Double} {
		p.box.AddField("MAX_VALUE", p, true)
		p.box.AddField("MIN_VALUE", p, true)
	}
	IntBox.AddMethod("parseInt", Int, true, String)
	LongBox.AddMethod("parseLong", Long, true, String)
	FloatBox.AddMethod("floatToRawIntBits", Int, true, Float)
	FloatBox.AddMethod("intBitsToFloat", Float, true, Int)
	FloatBox.AddMethod("isNaN", Boolean, true, Float)
	DoubleBox.AddMethod("doubleToRawLongBits", Long, true, Double)
	DoubleBox.AddMethod("longBitsToDouble", Double, true, Long)
	DoubleBox.AddMethod("isNaN", Boolean, true, Double)

	for _, p := range []*Type{Int, Long, Float, Double} {
		Math.AddMethod("max", p, true, p, p)
		Math.AddMethod("min", p, true, p, p)
		Math.AddMethod("abs", p, true, p)
	}

	System.AddField("out", PrintStream, true)
	System.AddField("err", PrintStream, true)
	System.AddMethod("identityHashCode", Int, true, Object)
	PrintStream.AddMethod("println", Void, false)
	for _, p := range []*Type{Boolean, Char, Int, Long, Float, Double, String, Object} {
		PrintStream.AddMethod("println", Void, false, p)
		PrintStream.AddMethod("print", Void, false, p)
	}

	Throwable.AddMethod("<init>", Void, false)
	Throwable.AddMethod("<init>", Void, false, String)
	Throwable.AddMethod("getMessage", String, false)
	Throwable.AddMethod("toString", String, false)
	for _, t := range []*Type{
		Exception, Error, RuntimeException, IllegalStateException,
		IllegalArgumentException, ArithmeticException, NullPointerException,
		ClassCastException, IndexOutOfBoundsException, ArrayIndexOutOfBoundsException,
		NegativeArraySizeException, UnsupportedOperationException,
	} {
		t.AddMethod("<init>", Void, false)
		t.AddMethod("<init>", Void, false, String)
	}
}
