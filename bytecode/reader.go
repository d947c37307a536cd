package bytecode

import "encoding/binary"

// ---------------------------------------------------------------------------
// Reader for interpretation and disassembly
// ---------------------------------------------------------------------------

// Reader reads big-endian instruction streams.
type Reader struct {
	bytes []byte
	pos   int
}

// NewReader creates a reader for code.
func NewReader(code []byte) *Reader {
	return &Reader{bytes: code}
}

// Position returns the current read position.
func (r *Reader) Position() int {
	return r.pos
}

// HasMore returns true if there are more bytes to read.
func (r *Reader) HasMore() bool {
	return r.pos < len(r.bytes)
}

// ReadOpcode reads and returns the next opcode.
func (r *Reader) ReadOpcode() Opcode {
	return Opcode(r.ReadU1())
}

// ReadU1 reads an unsigned byte operand.
func (r *Reader) ReadU1() byte {
	if r.pos >= len(r.bytes) {
		panic("bytecode underflow")
	}
	b := r.bytes[r.pos]
	r.pos++
	return b
}

// ReadS1 reads a signed byte operand.
func (r *Reader) ReadS1() int8 {
	return int8(r.ReadU1())
}

// ReadU2 reads an unsigned 16-bit operand.
func (r *Reader) ReadU2() uint16 {
	if r.pos+2 > len(r.bytes) {
		panic("bytecode underflow")
	}
	v := binary.BigEndian.Uint16(r.bytes[r.pos:])
	r.pos += 2
	return v
}

// ReadS2 reads a signed 16-bit operand.
func (r *Reader) ReadS2() int16 {
	return int16(r.ReadU2())
}

// ReadS4 reads a signed 32-bit operand.
func (r *Reader) ReadS4() int32 {
	if r.pos+4 > len(r.bytes) {
		panic("bytecode underflow")
	}
	v := binary.BigEndian.Uint32(r.bytes[r.pos:])
	r.pos += 4
	return int32(v)
}

// Align4 skips switch padding.
func (r *Reader) Align4() {
	for r.pos%4 != 0 {
		r.pos++
	}
}

// Skip advances the position by n bytes.
func (r *Reader) Skip(n int) {
	r.pos += n
}

// Seek sets the read position.
func (r *Reader) Seek(pos int) {
	r.pos = pos
}

// Switch is a decoded tableswitch or lookupswitch.
type Switch struct {
	Default int     // absolute target
	Keys    []int32 // case values in table order
	Targets []int   // absolute targets, parallel to Keys
}

// ReadSwitch decodes the operands of a switch whose opcode was read at
// position at.
func (r *Reader) ReadSwitch(op Opcode, at int) Switch {
	r.Align4()
	var s Switch
	s.Default = at + int(r.ReadS4())
	if op == OpTableswitch {
		lo := r.ReadS4()
		hi := r.ReadS4()
		for k := int64(lo); k <= int64(hi); k++ {
			s.Keys = append(s.Keys, int32(k))
			s.Targets = append(s.Targets, at+int(r.ReadS4()))
		}
		return s
	}
	n := r.ReadS4()
	for range n {
		s.Keys = append(s.Keys, r.ReadS4())
		s.Targets = append(s.Targets, at+int(r.ReadS4()))
	}
	return s
}
