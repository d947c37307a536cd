// Package classfile reads and writes the JVM class file container: the
// constant pool, fields, methods and attributes.
package classfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Magic is the class file magic number.
const Magic uint32 = 0xCAFEBABE

// Class file versions.
const (
	MajorJava7  uint16 = 51
	MajorJava8  uint16 = 52
	MajorJava11 uint16 = 55
	MajorJava17 uint16 = 61
	MajorJava21 uint16 = 65
)

// Access flags. Some bits mean different things on classes, fields and
// methods.
const (
	AccPublic       uint16 = 0x0001
	AccPrivate      uint16 = 0x0002
	AccProtected    uint16 = 0x0004
	AccStatic       uint16 = 0x0008
	AccFinal        uint16 = 0x0010
	AccSuper        uint16 = 0x0020
	AccSynchronized uint16 = 0x0020
	AccVolatile     uint16 = 0x0040
	AccBridge       uint16 = 0x0040
	AccTransient    uint16 = 0x0080
	AccVarargs      uint16 = 0x0080
	AccNative       uint16 = 0x0100
	AccInterface    uint16 = 0x0200
	AccAbstract     uint16 = 0x0400
	AccStrict       uint16 = 0x0800
	AccSynthetic    uint16 = 0x1000
	AccAnnotation   uint16 = 0x2000
	AccEnum         uint16 = 0x4000
)

// Attribute is a raw attribute: a name index and its payload.
type Attribute struct {
	Name uint16
	Data []byte
}

// Member is a field or method.
type Member struct {
	Access     uint16
	Name       uint16
	Descriptor uint16
	Attributes []Attribute
}

// ClassFile is an in-memory class file. Names and types are indexes into
// Pool.
type ClassFile struct {
	Minor, Major uint16
	Pool         *ConstantPool
	Access       uint16
	This, Super  uint16
	Interfaces   []uint16
	Fields       []*Member
	Methods      []*Member
	Attributes   []Attribute
}

// New creates an empty class file with the given names.
func New(major uint16, access uint16, name, super string) *ClassFile {
	cf := &ClassFile{Major: major, Pool: NewConstantPool(), Access: access}
	cf.This = cf.Pool.Class(name)
	if super != "" {
		cf.Super = cf.Pool.Class(super)
	}
	return cf
}

// Name returns the internal name of this class.
func (cf *ClassFile) Name() string {
	s, _ := cf.Pool.ClassNameAt(int(cf.This))
	return s
}

// SuperName returns the internal name of the superclass, or "" for
// java/lang/Object.
func (cf *ClassFile) SuperName() string {
	if cf.Super == 0 {
		return ""
	}
	s, _ := cf.Pool.ClassNameAt(int(cf.Super))
	return s
}

// MemberName returns the name and descriptor of a member.
func (cf *ClassFile) MemberName(m *Member) (name, desc string) {
	name, _ = cf.Pool.Utf8At(int(m.Name))
	desc, _ = cf.Pool.Utf8At(int(m.Descriptor))
	return name, desc
}

// FindMethod returns the method with the given name and descriptor. An
// empty descriptor matches the first method with that name.
func (cf *ClassFile) FindMethod(name, desc string) *Member {
	for _, m := range cf.Methods {
		n, d := cf.MemberName(m)
		if n == name && (desc == "" || d == desc) {
			return m
		}
	}
	return nil
}

// FindField returns the field with the given name.
func (cf *ClassFile) FindField(name string) *Member {
	for _, f := range cf.Fields {
		if n, _ := cf.MemberName(f); n == name {
			return f
		}
	}
	return nil
}

// Attribute returns the first attribute of attrs with the given name.
func (cf *ClassFile) Attribute(attrs []Attribute, name string) (Attribute, bool) {
	for _, a := range attrs {
		if s, _ := cf.Pool.Utf8At(int(a.Name)); s == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// Code decodes the Code attribute of a method, or returns nil if it has
// none.
func (cf *ClassFile) Code(m *Member) (*Code, error) {
	a, ok := cf.Attribute(m.Attributes, "Code")
	if !ok {
		return nil, nil
	}
	return DecodeCode(a.Data)
}

// ---------------------------------------------------------------------------
// Writing
// ---------------------------------------------------------------------------

// Bytes encodes the class file.
func (cf *ClassFile) Bytes() ([]byte, error) {
	if err := cf.Pool.Err(); err != nil {
		return nil, fmt.Errorf("classfile: %s: %w", cf.Name(), err)
	}
	if len(cf.Interfaces) > math.MaxUint16 || len(cf.Fields) > math.MaxUint16 || len(cf.Methods) > math.MaxUint16 {
		return nil, fmt.Errorf("classfile: %s: too many members", cf.Name())
	}

	var buf bytes.Buffer
	w := writer{&buf}
	w.u4(Magic)
	w.u2(cf.Minor)
	w.u2(cf.Major)
	cf.Pool.writeTo(w)
	w.u2(cf.Access)
	w.u2(cf.This)
	w.u2(cf.Super)
	w.u2(uint16(len(cf.Interfaces)))
	for _, i := range cf.Interfaces {
		w.u2(i)
	}
	for _, members := range [][]*Member{cf.Fields, cf.Methods} {
		w.u2(uint16(len(members)))
		for _, m := range members {
			w.u2(m.Access)
			w.u2(m.Name)
			w.u2(m.Descriptor)
			if err := w.attributes(m.Attributes); err != nil {
				return nil, fmt.Errorf("classfile: %s: %w", cf.Name(), err)
			}
		}
	}
	if err := w.attributes(cf.Attributes); err != nil {
		return nil, fmt.Errorf("classfile: %s: %w", cf.Name(), err)
	}
	return buf.Bytes(), nil
}

// WriteTo writes the encoded class file to out.
func (cf *ClassFile) WriteTo(out io.Writer) (int64, error) {
	data, err := cf.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := out.Write(data)
	return int64(n), err
}

type writer struct {
	buf *bytes.Buffer
}

func (w writer) u1(v byte) {
	w.buf.WriteByte(v)
}

func (w writer) u2(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w writer) u4(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w writer) attributes(attrs []Attribute) error {
	if len(attrs) > math.MaxUint16 {
		return fmt.Errorf("too many attributes")
	}
	w.u2(uint16(len(attrs)))
	for _, a := range attrs {
		w.u2(a.Name)
		w.u4(uint32(len(a.Data)))
		w.buf.Write(a.Data)
	}
	return nil
}

func (p *ConstantPool) writeTo(w writer) {
	w.u2(uint16(len(p.entries)))
	for _, c := range p.entries[1:] {
		if c.Tag == 0 {
			continue // second slot of a long or double
		}
		w.u1(byte(c.Tag))
		switch c.Tag {
		case TagUtf8:
			b := encodeModifiedUTF8(c.Str)
			w.u2(uint16(len(b)))
			w.buf.Write(b)
		case TagInteger, TagFloat:
			w.u4(uint32(c.Bits))
		case TagLong, TagDouble:
			w.u4(uint32(c.Bits >> 32))
			w.u4(uint32(c.Bits))
		case TagClass, TagString, TagMethodType:
			w.u2(c.A)
		case TagMethodHandle:
			w.u1(byte(c.A))
			w.u2(c.B)
		default:
			w.u2(c.A)
			w.u2(c.B)
		}
	}
}
