package classfile

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestPoolDeduplicates(t *testing.T) {
	p := NewConstantPool()
	a := p.Methodref("java/lang/Object", "<init>", "()V")
	b := p.Methodref("java/lang/Object", "<init>", "()V")
	if a != b {
		t.Errorf("Methodref indexes differ: %d, %d", a, b)
	}
	if p.Class("java/lang/Object") == 0 {
		t.Error("class index is zero")
	}
	if p.Integer(1) == p.Float(math.Float32frombits(1)) {
		t.Error("int and float with equal bits share an entry")
	}
}

func TestPoolWideEntries(t *testing.T) {
	p := NewConstantPool()
	l := p.Long(42)
	next := p.Integer(7)
	if next != l+2 {
		t.Errorf("entry after long = %d, want %d", next, l+2)
	}
	if _, err := p.Entry(int(l) + 1); !errors.Is(err, ErrInvalidIndex) {
		t.Errorf("second slot of long: err = %v", err)
	}
}

func TestPoolKeepsNaNPayloads(t *testing.T) {
	p := NewConstantPool()
	quiet := p.Double(math.Float64frombits(0x7ff8000000000000))
	payload := p.Double(math.Float64frombits(0x7ff8000000000001))
	if quiet == payload {
		t.Fatal("distinct NaN payloads were merged")
	}
	v, err := p.LoadableAt(int(payload))
	if err != nil {
		t.Fatal(err)
	}
	if bits := math.Float64bits(v.(float64)); bits != 0x7ff8000000000001 {
		t.Errorf("bits = %#x", bits)
	}
	if p.Double(math.Copysign(0, -1)) == p.Double(0) {
		t.Error("-0.0 and +0.0 share an entry")
	}
}

func TestPoolFull(t *testing.T) {
	p := NewConstantPool()
	for i := range 70000 {
		p.Integer(int32(i))
	}
	if !errors.Is(p.Err(), ErrPoolFull) {
		t.Fatalf("err = %v", p.Err())
	}
	cf := &ClassFile{Major: MajorJava17, Pool: p}
	if _, err := cf.Bytes(); !errors.Is(err, ErrPoolFull) {
		t.Errorf("Bytes err = %v", err)
	}
}

func TestModifiedUTF8(t *testing.T) {
	tests := []struct {
		in   string
		want []byte
	}{
		{"abc", []byte("abc")},
		{"\x00", []byte{0xc0, 0x80}},
		{"é", []byte{0xc3, 0xa9}},
		{"\U0001F600", []byte{0xed, 0xa0, 0xbd, 0xed, 0xb8, 0x80}},
	}
	for _, tt := range tests {
		got := encodeModifiedUTF8(tt.in)
		if !bytes.Equal(got, tt.want) {
			t.Errorf("encode(%q) = % x, want % x", tt.in, got, tt.want)
		}
		back, err := decodeModifiedUTF8(got)
		if err != nil || back != tt.in {
			t.Errorf("decode(% x) = %q, %v", got, back, err)
		}
	}
}

func TestWriteAndParse(t *testing.T) {
	cf := New(MajorJava17, AccPublic|AccSuper, "demo/Hello", "java/lang/Object")
	p := cf.Pool
	cf.Fields = append(cf.Fields, &Member{
		Access:     AccPublic | AccStatic | AccFinal,
		Name:       p.Utf8("ANSWER"),
		Descriptor: p.Utf8("I"),
		Attributes: []Attribute{ConstantValue(p, p.Integer(42))},
	})
	code := &Code{
		MaxStack:  1,
		MaxLocals: 1,
		Code:      []byte{0x2a, 0xb7, 0, byte(p.Methodref("java/lang/Object", "<init>", "()V")), 0xb1},
		Exceptions: []ExceptionEntry{
			{StartPC: 0, EndPC: 4, HandlerPC: 4, CatchType: p.Class("java/lang/Throwable")},
		},
		Attributes: []Attribute{LineNumberTable(p, []LineNumber{{PC: 0, Line: 3}})},
	}
	cf.Methods = append(cf.Methods, &Member{
		Access:     AccPublic,
		Name:       p.Utf8("<init>"),
		Descriptor: p.Utf8("()V"),
		Attributes: []Attribute{code.Attribute(p)},
	})
	cf.Attributes = append(cf.Attributes, SourceFile(p, "Hello.java"))

	data, err := cf.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	back, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if back.Name() != "demo/Hello" || back.SuperName() != "java/lang/Object" {
		t.Errorf("names = %s extends %s", back.Name(), back.SuperName())
	}
	if back.FindField("ANSWER") == nil {
		t.Error("field ANSWER missing")
	}
	m := back.FindMethod("<init>", "()V")
	if m == nil {
		t.Fatal("constructor missing")
	}
	c, err := back.Code(m)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(c.Code, code.Code) || c.MaxStack != 1 || len(c.Exceptions) != 1 {
		t.Errorf("decoded code = %+v", c)
	}
	lnt, ok := back.Attribute(c.Attributes, "LineNumberTable")
	if !ok {
		t.Fatal("LineNumberTable missing")
	}
	lines, err := DecodeLineNumberTable(lnt.Data)
	if err != nil || len(lines) != 1 || lines[0].Line != 3 {
		t.Errorf("lines = %v, %v", lines, err)
	}

	again, err := back.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(again, data) {
		t.Error("re-encoding a parsed class changed its bytes")
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse([]byte{0xca, 0xfe, 0xba, 0xbf}); !errors.Is(err, ErrBadMagic) {
		t.Errorf("bad magic: err = %v", err)
	}
	if _, err := Parse([]byte{0xca, 0xfe, 0xba, 0xbe, 0, 0}); !errors.Is(err, ErrUnexpectedEOF) {
		t.Errorf("truncated: err = %v", err)
	}
}

func TestStackMapCompactForms(t *testing.T) {
	p := NewConstantPool()
	intT := VerificationType{Tag: ItemInteger}
	str := VerificationType{Tag: ItemObject, Class: "java/lang/String"}
	initial := []VerificationType{str}

	frames := []Frame{
		{PC: 5, Locals: initial},                                   // same
		{PC: 10, Locals: initial, Stack: []VerificationType{intT}}, // same_locals_1_stack_item
		{PC: 20, Locals: []VerificationType{str, intT, intT}},      // append 2
		{PC: 200, Locals: []VerificationType{str}},                 // chop 2
		{PC: 201, Locals: nil, Stack: []VerificationType{str, str}}, // full
	}
	attr := StackMapTable(p, initial, frames)

	wantKinds := []byte{5, 64 + 4, 253, 249, 255}
	d := &decoder{data: attr.Data}
	if n := d.u2(); n != 5 {
		t.Fatalf("frame count = %d", n)
	}
	if k := d.u1(); k != wantKinds[0] {
		t.Errorf("frame 0 type = %d, want %d", k, wantKinds[0])
	}
	if k := d.u1(); k != wantKinds[1] {
		t.Errorf("frame 1 type = %d, want %d", k, wantKinds[1])
	}

	got, err := DecodeStackMapTable(p, attr.Data, initial)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(frames) {
		t.Fatalf("decoded %d frames", len(got))
	}
	for i, f := range frames {
		g := got[i]
		if g.PC != f.PC || !typesEqual(g.Locals, f.Locals) || !typesEqual(g.Stack, f.Stack) {
			t.Errorf("frame %d = %+v, want %+v", i, g, f)
		}
	}
}

func TestStackMapExtendedDelta(t *testing.T) {
	p := NewConstantPool()
	attr := StackMapTable(p, nil, []Frame{{PC: 300}})
	want := []byte{0, 1, 251, 0x01, 0x2c}
	if !bytes.Equal(attr.Data, want) {
		t.Errorf("data = % x, want % x", attr.Data, want)
	}
}
