package classfile

import (
	"encoding/binary"
	"fmt"
)

// ---------------------------------------------------------------------------
// Attribute encoders
// ---------------------------------------------------------------------------

type encoder struct {
	b []byte
}

func (e *encoder) u1(v int) { e.b = append(e.b, byte(v)) }
func (e *encoder) u2(v int) { e.b = binary.BigEndian.AppendUint16(e.b, uint16(v)) }
func (e *encoder) u4(v int) { e.b = binary.BigEndian.AppendUint32(e.b, uint32(v)) }

// ExceptionEntry is one row of a Code attribute's exception table.
// CatchType 0 catches everything.
type ExceptionEntry struct {
	StartPC, EndPC, HandlerPC int
	CatchType                 uint16
}

// Code is a decoded or to-be-encoded Code attribute.
type Code struct {
	MaxStack   int
	MaxLocals  int
	Code       []byte
	Exceptions []ExceptionEntry
	Attributes []Attribute
}

// Attribute encodes the Code attribute.
func (c *Code) Attribute(p *ConstantPool) Attribute {
	var e encoder
	e.u2(c.MaxStack)
	e.u2(c.MaxLocals)
	e.u4(len(c.Code))
	e.b = append(e.b, c.Code...)
	e.u2(len(c.Exceptions))
	for _, x := range c.Exceptions {
		e.u2(x.StartPC)
		e.u2(x.EndPC)
		e.u2(x.HandlerPC)
		e.u2(int(x.CatchType))
	}
	e.u2(len(c.Attributes))
	for _, a := range c.Attributes {
		e.u2(int(a.Name))
		e.u4(len(a.Data))
		e.b = append(e.b, a.Data...)
	}
	return Attribute{Name: p.Utf8("Code"), Data: e.b}
}

// DecodeCode decodes a Code attribute payload.
func DecodeCode(data []byte) (*Code, error) {
	d := &decoder{data: data}
	c := &Code{MaxStack: int(d.u2()), MaxLocals: int(d.u2())}
	c.Code = d.bytes(int(d.u4()))
	n := int(d.u2())
	for range n {
		c.Exceptions = append(c.Exceptions, ExceptionEntry{
			StartPC:   int(d.u2()),
			EndPC:     int(d.u2()),
			HandlerPC: int(d.u2()),
			CatchType: d.u2(),
		})
	}
	c.Attributes = d.attributes()
	if d.err != nil {
		return nil, fmt.Errorf("classfile: Code attribute: %w", d.err)
	}
	return c, nil
}

// LineNumber maps a code offset to a source line.
type LineNumber struct {
	PC, Line int
}

// LineNumberTable encodes a LineNumberTable attribute.
func LineNumberTable(p *ConstantPool, lines []LineNumber) Attribute {
	var e encoder
	e.u2(len(lines))
	for _, l := range lines {
		e.u2(l.PC)
		e.u2(l.Line)
	}
	return Attribute{Name: p.Utf8("LineNumberTable"), Data: e.b}
}

// DecodeLineNumberTable decodes a LineNumberTable payload.
func DecodeLineNumberTable(data []byte) ([]LineNumber, error) {
	d := &decoder{data: data}
	n := int(d.u2())
	lines := make([]LineNumber, 0, n)
	for range n {
		lines = append(lines, LineNumber{PC: int(d.u2()), Line: int(d.u2())})
	}
	return lines, d.err
}

// LocalVariable is one row of a LocalVariableTable.
type LocalVariable struct {
	StartPC, Length int
	Name            string
	Descriptor      string
	Slot            int
}

// LocalVariableTable encodes a LocalVariableTable attribute.
func LocalVariableTable(p *ConstantPool, vars []LocalVariable) Attribute {
	var e encoder
	e.u2(len(vars))
	for _, v := range vars {
		e.u2(v.StartPC)
		e.u2(v.Length)
		e.u2(int(p.Utf8(v.Name)))
		e.u2(int(p.Utf8(v.Descriptor)))
		e.u2(v.Slot)
	}
	return Attribute{Name: p.Utf8("LocalVariableTable"), Data: e.b}
}

// DecodeLocalVariableTable decodes a LocalVariableTable payload.
func DecodeLocalVariableTable(p *ConstantPool, data []byte) ([]LocalVariable, error) {
	d := &decoder{data: data}
	n := int(d.u2())
	vars := make([]LocalVariable, 0, n)
	for range n {
		v := LocalVariable{StartPC: int(d.u2()), Length: int(d.u2())}
		v.Name, _ = p.Utf8At(int(d.u2()))
		v.Descriptor, _ = p.Utf8At(int(d.u2()))
		v.Slot = int(d.u2())
		vars = append(vars, v)
	}
	return vars, d.err
}

// SourceFile encodes a SourceFile attribute.
func SourceFile(p *ConstantPool, name string) Attribute {
	var e encoder
	e.u2(int(p.Utf8(name)))
	return Attribute{Name: p.Utf8("SourceFile"), Data: e.b}
}

// ConstantValue encodes a ConstantValue attribute for a static field.
func ConstantValue(p *ConstantPool, index uint16) Attribute {
	var e encoder
	e.u2(int(index))
	return Attribute{Name: p.Utf8("ConstantValue"), Data: e.b}
}

// Exceptions encodes a method's throws clause.
func Exceptions(p *ConstantPool, classes []string) Attribute {
	var e encoder
	e.u2(len(classes))
	for _, c := range classes {
		e.u2(int(p.Class(c)))
	}
	return Attribute{Name: p.Utf8("Exceptions"), Data: e.b}
}

// BootstrapMethod is one entry of the BootstrapMethods attribute.
type BootstrapMethod struct {
	Handle uint16
	Args   []uint16
}

// BootstrapMethods encodes the class-level BootstrapMethods attribute.
func BootstrapMethods(p *ConstantPool, methods []BootstrapMethod) Attribute {
	var e encoder
	e.u2(len(methods))
	for _, m := range methods {
		e.u2(int(m.Handle))
		e.u2(len(m.Args))
		for _, a := range m.Args {
			e.u2(int(a))
		}
	}
	return Attribute{Name: p.Utf8("BootstrapMethods"), Data: e.b}
}

// DecodeBootstrapMethods decodes a BootstrapMethods payload.
func DecodeBootstrapMethods(data []byte) ([]BootstrapMethod, error) {
	d := &decoder{data: data}
	n := int(d.u2())
	methods := make([]BootstrapMethod, 0, n)
	for range n {
		m := BootstrapMethod{Handle: d.u2()}
		argc := int(d.u2())
		for range argc {
			m.Args = append(m.Args, d.u2())
		}
		methods = append(methods, m)
	}
	return methods, d.err
}
