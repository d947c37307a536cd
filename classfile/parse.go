package classfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	ErrBadMagic      = errors.New("invalid magic number")
	ErrUnexpectedEOF = errors.New("unexpected end of class data")
	ErrTrailingData  = errors.New("trailing data after class")
	ErrUnknownTag    = errors.New("unknown constant pool tag")
)

// ---------------------------------------------------------------------------
// Decoder: sticky-error big-endian reader
// ---------------------------------------------------------------------------

type decoder struct {
	data []byte
	off  int
	err  error
}

func (d *decoder) need(n int) bool {
	if d.err != nil {
		return false
	}
	if d.off+n > len(d.data) {
		d.err = ErrUnexpectedEOF
		return false
	}
	return true
}

func (d *decoder) u1() byte {
	if !d.need(1) {
		return 0
	}
	v := d.data[d.off]
	d.off++
	return v
}

func (d *decoder) u2() uint16 {
	if !d.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(d.data[d.off:])
	d.off += 2
	return v
}

func (d *decoder) u4() uint32 {
	if !d.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(d.data[d.off:])
	d.off += 4
	return v
}

func (d *decoder) bytes(n int) []byte {
	if n < 0 || !d.need(n) {
		return nil
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) attributes() []Attribute {
	n := int(d.u2())
	var attrs []Attribute
	for range n {
		name := d.u2()
		data := d.bytes(int(d.u4()))
		if d.err != nil {
			return nil
		}
		attrs = append(attrs, Attribute{Name: name, Data: data})
	}
	return attrs
}

// ---------------------------------------------------------------------------
// Parse
// ---------------------------------------------------------------------------

// Parse decodes a class file. Constant pool indexes are preserved, so
// attributes can be decoded against the returned pool.
func Parse(data []byte) (*ClassFile, error) {
	d := &decoder{data: data}
	if magic := d.u4(); d.err == nil && magic != Magic {
		return nil, fmt.Errorf("%w: %#x", ErrBadMagic, magic)
	}
	cf := &ClassFile{Minor: d.u2(), Major: d.u2()}

	pool, err := parsePool(d)
	if err != nil {
		return nil, err
	}
	cf.Pool = pool

	cf.Access = d.u2()
	cf.This = d.u2()
	cf.Super = d.u2()
	n := int(d.u2())
	for range n {
		cf.Interfaces = append(cf.Interfaces, d.u2())
	}
	cf.Fields = parseMembers(d)
	cf.Methods = parseMembers(d)
	cf.Attributes = d.attributes()

	if d.err != nil {
		return nil, fmt.Errorf("classfile: %w", d.err)
	}
	if d.off != len(d.data) {
		return nil, fmt.Errorf("classfile: %w: %d bytes", ErrTrailingData, len(d.data)-d.off)
	}
	return cf, nil
}

func parseMembers(d *decoder) []*Member {
	n := int(d.u2())
	members := make([]*Member, 0, n)
	for range n {
		m := &Member{Access: d.u2(), Name: d.u2(), Descriptor: d.u2()}
		m.Attributes = d.attributes()
		members = append(members, m)
	}
	return members
}

func parsePool(d *decoder) (*ConstantPool, error) {
	count := int(d.u2())
	p := NewConstantPool()
	for i := 1; i < count; i++ {
		c := Constant{Tag: Tag(d.u1())}
		switch c.Tag {
		case TagUtf8:
			s, err := decodeModifiedUTF8(d.bytes(int(d.u2())))
			if err != nil {
				return nil, err
			}
			c.Str = s
		case TagInteger, TagFloat:
			c.Bits = uint64(d.u4())
		case TagLong, TagDouble:
			hi := uint64(d.u4())
			c.Bits = hi<<32 | uint64(d.u4())
		case TagClass, TagString, TagMethodType:
			c.A = d.u2()
		case TagMethodHandle:
			c.A = uint16(d.u1())
			c.B = d.u2()
		case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType, TagInvokeDynamic:
			c.A = d.u2()
			c.B = d.u2()
		default:
			if d.err != nil {
				break
			}
			return nil, fmt.Errorf("classfile: %w %d at index %d", ErrUnknownTag, c.Tag, i)
		}
		if d.err != nil {
			return nil, fmt.Errorf("classfile: constant pool: %w", d.err)
		}
		if _, dup := p.index[c]; !dup {
			p.index[c] = uint16(len(p.entries))
		}
		p.entries = append(p.entries, c)
		if c.wide() {
			p.entries = append(p.entries, Constant{})
			i++
		}
		if len(p.entries) > math.MaxUint16 {
			return nil, fmt.Errorf("classfile: %w", ErrPoolFull)
		}
	}
	return p, nil
}
