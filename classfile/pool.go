package classfile

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"unicode/utf16"
)

var (
	ErrPoolFull     = errors.New("constant pool is full")
	ErrUtf8TooLong  = errors.New("constant string is too large")
	ErrInvalidIndex = errors.New("invalid constant pool index")
)

// Tag identifies the kind of a constant pool entry.
type Tag byte

const (
	TagUtf8               Tag = 1
	TagInteger            Tag = 3
	TagFloat              Tag = 4
	TagLong               Tag = 5
	TagDouble             Tag = 6
	TagClass              Tag = 7
	TagString             Tag = 8
	TagFieldref           Tag = 9
	TagMethodref          Tag = 10
	TagInterfaceMethodref Tag = 11
	TagNameAndType        Tag = 12
	TagMethodHandle       Tag = 15
	TagMethodType         Tag = 16
	TagInvokeDynamic      Tag = 18
)

// Method handle reference kinds.
const (
	RefGetField         = 1
	RefGetStatic        = 2
	RefPutField         = 3
	RefPutStatic        = 4
	RefInvokeVirtual    = 5
	RefInvokeStatic     = 6
	RefInvokeSpecial    = 7
	RefNewInvokeSpecial = 8
	RefInvokeInterface  = 9
)

// Constant is a single pool entry. Which fields are meaningful depends on
// Tag:
//
//	Utf8                  Str
//	Integer/Float         Bits (low 32 bits)
//	Long/Double           Bits
//	Class, String         A = Utf8 index
//	MethodType            A = descriptor index
//	NameAndType           A = name, B = descriptor
//	*ref                  A = class, B = NameAndType
//	MethodHandle          A = reference kind, B = member ref
//	InvokeDynamic         A = bootstrap method index, B = NameAndType
type Constant struct {
	Tag  Tag
	Str  string
	Bits uint64
	A, B uint16
}

func (c Constant) wide() bool {
	return c.Tag == TagLong || c.Tag == TagDouble
}

// ---------------------------------------------------------------------------
// ConstantPool: deduplicating pool builder
// ---------------------------------------------------------------------------

// ConstantPool assigns indexes to constants, returning the existing index
// for a constant that was already added. Floating point constants are
// compared by raw bits so distinct NaN payloads keep distinct entries.
//
// Adding to a full pool records ErrPoolFull, reported by Err and by the
// class writer, and returns index 0.
type ConstantPool struct {
	entries []Constant // index 0 unused; wide entries are followed by a zero slot
	index   map[Constant]uint16
	err     error
}

// NewConstantPool creates an empty pool.
func NewConstantPool() *ConstantPool {
	return &ConstantPool{
		entries: make([]Constant, 1, 64),
		index:   make(map[Constant]uint16),
	}
}

// Count returns the constant_pool_count value: one more than the highest
// index.
func (p *ConstantPool) Count() int {
	return len(p.entries)
}

// Err returns the first error encountered while adding constants.
func (p *ConstantPool) Err() error {
	return p.err
}

// Entry returns the constant at index.
func (p *ConstantPool) Entry(index int) (Constant, error) {
	if index <= 0 || index >= len(p.entries) || p.entries[index].Tag == 0 {
		return Constant{}, fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	return p.entries[index], nil
}

func (p *ConstantPool) add(c Constant) uint16 {
	if idx, ok := p.index[c]; ok {
		return idx
	}
	if p.err != nil {
		return 0
	}
	size := 1
	if c.wide() {
		size = 2
	}
	if len(p.entries)+size > math.MaxUint16 {
		p.err = ErrPoolFull
		return 0
	}
	idx := uint16(len(p.entries))
	p.entries = append(p.entries, c)
	if size == 2 {
		p.entries = append(p.entries, Constant{})
	}
	p.index[c] = idx
	return idx
}

// Utf8 adds a modified UTF-8 string.
func (p *ConstantPool) Utf8(s string) uint16 {
	if len(encodeModifiedUTF8(s)) > math.MaxUint16 {
		if p.err == nil {
			p.err = fmt.Errorf("%w: %d bytes", ErrUtf8TooLong, len(s))
		}
		return 0
	}
	return p.add(Constant{Tag: TagUtf8, Str: s})
}

// Class adds a class reference by internal name (java/lang/Object) or array
// descriptor.
func (p *ConstantPool) Class(internalName string) uint16 {
	return p.add(Constant{Tag: TagClass, A: p.Utf8(internalName)})
}

// String adds a string literal.
func (p *ConstantPool) String(s string) uint16 {
	return p.add(Constant{Tag: TagString, A: p.Utf8(s)})
}

// Integer adds an int constant.
func (p *ConstantPool) Integer(v int32) uint16 {
	return p.add(Constant{Tag: TagInteger, Bits: uint64(uint32(v))})
}

// Float adds a float constant by raw bits.
func (p *ConstantPool) Float(v float32) uint16 {
	return p.add(Constant{Tag: TagFloat, Bits: uint64(math.Float32bits(v))})
}

// Long adds a long constant. It occupies two indexes.
func (p *ConstantPool) Long(v int64) uint16 {
	return p.add(Constant{Tag: TagLong, Bits: uint64(v)})
}

// Double adds a double constant by raw bits. It occupies two indexes.
func (p *ConstantPool) Double(v float64) uint16 {
	return p.add(Constant{Tag: TagDouble, Bits: math.Float64bits(v)})
}

// NameAndType adds a name and descriptor pair.
func (p *ConstantPool) NameAndType(name, desc string) uint16 {
	return p.add(Constant{Tag: TagNameAndType, A: p.Utf8(name), B: p.Utf8(desc)})
}

// Fieldref adds a field reference.
func (p *ConstantPool) Fieldref(owner, name, desc string) uint16 {
	return p.add(Constant{Tag: TagFieldref, A: p.Class(owner), B: p.NameAndType(name, desc)})
}

// Methodref adds a class method reference.
func (p *ConstantPool) Methodref(owner, name, desc string) uint16 {
	return p.add(Constant{Tag: TagMethodref, A: p.Class(owner), B: p.NameAndType(name, desc)})
}

// InterfaceMethodref adds an interface method reference.
func (p *ConstantPool) InterfaceMethodref(owner, name, desc string) uint16 {
	return p.add(Constant{Tag: TagInterfaceMethodref, A: p.Class(owner), B: p.NameAndType(name, desc)})
}

// MethodHandle adds a method handle of the given reference kind.
func (p *ConstantPool) MethodHandle(kind int, ref uint16) uint16 {
	return p.add(Constant{Tag: TagMethodHandle, A: uint16(kind), B: ref})
}

// MethodType adds a method type by descriptor.
func (p *ConstantPool) MethodType(desc string) uint16 {
	return p.add(Constant{Tag: TagMethodType, A: p.Utf8(desc)})
}

// InvokeDynamic adds a dynamic call site referring to a bootstrap method
// table index.
func (p *ConstantPool) InvokeDynamic(bootstrap uint16, name, desc string) uint16 {
	return p.add(Constant{Tag: TagInvokeDynamic, A: bootstrap, B: p.NameAndType(name, desc)})
}

// ---------------------------------------------------------------------------
// Resolution helpers
// ---------------------------------------------------------------------------

// Utf8At returns the string stored at a Utf8 index.
func (p *ConstantPool) Utf8At(index int) (string, error) {
	c, err := p.expect(index, TagUtf8)
	if err != nil {
		return "", err
	}
	return c.Str, nil
}

// ClassNameAt returns the internal name of a Class entry.
func (p *ConstantPool) ClassNameAt(index int) (string, error) {
	c, err := p.expect(index, TagClass)
	if err != nil {
		return "", err
	}
	return p.Utf8At(int(c.A))
}

// NameAndTypeAt returns the name and descriptor of a NameAndType entry.
func (p *ConstantPool) NameAndTypeAt(index int) (name, desc string, err error) {
	c, err := p.expect(index, TagNameAndType)
	if err != nil {
		return "", "", err
	}
	if name, err = p.Utf8At(int(c.A)); err != nil {
		return "", "", err
	}
	desc, err = p.Utf8At(int(c.B))
	return name, desc, err
}

// MemberRef is a resolved field or method reference.
type MemberRef struct {
	Owner, Name, Descriptor string
	Interface               bool
}

// MemberRefAt resolves a Fieldref, Methodref or InterfaceMethodref.
func (p *ConstantPool) MemberRefAt(index int) (MemberRef, error) {
	c, err := p.Entry(index)
	if err != nil {
		return MemberRef{}, err
	}
	if c.Tag != TagFieldref && c.Tag != TagMethodref && c.Tag != TagInterfaceMethodref {
		return MemberRef{}, fmt.Errorf("%w: %d is not a member reference", ErrInvalidIndex, index)
	}
	var ref MemberRef
	if ref.Owner, err = p.ClassNameAt(int(c.A)); err != nil {
		return MemberRef{}, err
	}
	if ref.Name, ref.Descriptor, err = p.NameAndTypeAt(int(c.B)); err != nil {
		return MemberRef{}, err
	}
	ref.Interface = c.Tag == TagInterfaceMethodref
	return ref, nil
}

// ClassRef is the value loaded by ldc of a Class entry.
type ClassRef string

// LoadableAt returns the Go value of an ldc-loadable entry: int32, float32,
// int64, float64, string or ClassRef.
func (p *ConstantPool) LoadableAt(index int) (any, error) {
	c, err := p.Entry(index)
	if err != nil {
		return nil, err
	}
	switch c.Tag {
	case TagInteger:
		return int32(uint32(c.Bits)), nil
	case TagFloat:
		return math.Float32frombits(uint32(c.Bits)), nil
	case TagLong:
		return int64(c.Bits), nil
	case TagDouble:
		return math.Float64frombits(c.Bits), nil
	case TagString:
		return p.Utf8At(int(c.A))
	case TagClass:
		name, err := p.Utf8At(int(c.A))
		return ClassRef(name), err
	}
	return nil, fmt.Errorf("%w: %d is not loadable", ErrInvalidIndex, index)
}

func (p *ConstantPool) expect(index int, tag Tag) (Constant, error) {
	c, err := p.Entry(index)
	if err != nil {
		return c, err
	}
	if c.Tag != tag {
		return c, fmt.Errorf("%w: %d has tag %d, want %d", ErrInvalidIndex, index, c.Tag, tag)
	}
	return c, nil
}

// ConstantString renders an entry for disassembly listings.
func (p *ConstantPool) ConstantString(index int) string {
	c, err := p.Entry(index)
	if err != nil {
		return "?"
	}
	switch c.Tag {
	case TagUtf8:
		return c.Str
	case TagInteger, TagFloat, TagLong, TagDouble:
		v, _ := p.LoadableAt(index)
		return fmt.Sprint(v)
	case TagString:
		s, _ := p.Utf8At(int(c.A))
		return strconv.Quote(s)
	case TagClass:
		s, _ := p.Utf8At(int(c.A))
		return s
	case TagMethodType:
		s, _ := p.Utf8At(int(c.A))
		return s
	case TagNameAndType:
		name, desc, _ := p.NameAndTypeAt(index)
		return name + ":" + desc
	case TagFieldref, TagMethodref, TagInterfaceMethodref:
		ref, _ := p.MemberRefAt(index)
		return ref.Owner + "." + ref.Name + ":" + ref.Descriptor
	case TagMethodHandle:
		return fmt.Sprintf("handle %d %s", c.A, p.ConstantString(int(c.B)))
	case TagInvokeDynamic:
		name, desc, _ := p.NameAndTypeAt(int(c.B))
		return fmt.Sprintf("bsm %d %s:%s", c.A, name, desc)
	}
	return "?"
}

// ---------------------------------------------------------------------------
// Modified UTF-8
// ---------------------------------------------------------------------------

// encodeModifiedUTF8 encodes s as the JVM does: NUL takes two bytes and
// supplementary characters are written as surrogate pairs.
func encodeModifiedUTF8(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r >= 0x10000 {
			hi, lo := utf16.EncodeRune(r)
			out = appendModified(out, hi)
			out = appendModified(out, lo)
			continue
		}
		out = appendModified(out, r)
	}
	return out
}

func appendModified(out []byte, r rune) []byte {
	switch {
	case r != 0 && r < 0x80:
		return append(out, byte(r))
	case r < 0x800:
		return append(out, byte(0xc0|r>>6), byte(0x80|r&0x3f))
	default:
		return append(out, byte(0xe0|r>>12), byte(0x80|(r>>6)&0x3f), byte(0x80|r&0x3f))
	}
}

func decodeModifiedUTF8(b []byte) (string, error) {
	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xe0 == 0xc0 && i+1 < len(b):
			units = append(units, uint16(c&0x1f)<<6|uint16(b[i+1]&0x3f))
			i += 2
		case c&0xf0 == 0xe0 && i+2 < len(b):
			units = append(units, uint16(c&0x0f)<<12|uint16(b[i+1]&0x3f)<<6|uint16(b[i+2]&0x3f))
			i += 3
		default:
			return "", fmt.Errorf("classfile: malformed utf8 at byte %d", i)
		}
	}
	return string(utf16.Decode(units)), nil
}
