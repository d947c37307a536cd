package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	ErrUnresolvedLabel  = errors.New("branch to unpositioned label")
	ErrBranchOutOfRange = errors.New("branch offset out of range")
	ErrLabelPositioned  = errors.New("label already positioned")
)

// ---------------------------------------------------------------------------
// Buffer: append-only code with deferred branch patching
// ---------------------------------------------------------------------------

// PatchSite is a branch operand whose value is written once its label is
// positioned. The stored value is the label position minus Base.
type PatchSite struct {
	At    int // operand offset
	Base  int // offset the branch is relative to, normally its opcode
	Width int // 2 or 4 bytes
	Label int
}

// LineEntry maps a code offset to a source line.
type LineEntry struct {
	PC   int
	Line int
}

// Buffer accumulates instruction bytes. Labels are small integers owned by
// the caller; branch operands referring to them are recorded as patch sites
// and resolved by Finish.
type Buffer struct {
	bytes     []byte
	positions []int
	patches   []PatchSite
	lines     []LineEntry
	line      int
	lineDirty bool
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{bytes: make([]byte, 0, 64)}
}

// Len returns the current length.
func (b *Buffer) Len() int {
	return len(b.bytes)
}

// Bytes returns the code emitted so far. Patch sites may still hold
// placeholders until Finish is called.
func (b *Buffer) Bytes() []byte {
	return b.bytes
}

// SetLine makes line the source line of the next emitted instruction.
func (b *Buffer) SetLine(line int) {
	if line != b.line {
		b.line = line
		b.lineDirty = true
	}
}

// Lines returns the recorded line table in code order.
func (b *Buffer) Lines() []LineEntry {
	return b.lines
}

// Emit appends an opcode with no operands.
func (b *Buffer) Emit(op Opcode) {
	if b.lineDirty {
		b.lineDirty = false
		if n := len(b.lines); n > 0 && b.lines[n-1].PC == len(b.bytes) {
			b.lines[n-1].Line = b.line
		} else {
			b.lines = append(b.lines, LineEntry{PC: len(b.bytes), Line: b.line})
		}
	}
	b.bytes = append(b.bytes, byte(op))
}

// EmitU1 appends a raw operand byte.
func (b *Buffer) EmitU1(v byte) {
	b.bytes = append(b.bytes, v)
}

// EmitU2 appends a big-endian 16-bit operand.
func (b *Buffer) EmitU2(v uint16) {
	b.bytes = binary.BigEndian.AppendUint16(b.bytes, v)
}

// EmitS4 appends a big-endian 32-bit operand.
func (b *Buffer) EmitS4(v int32) {
	b.bytes = binary.BigEndian.AppendUint32(b.bytes, uint32(v))
}

// EmitByte appends an opcode with a single byte operand.
func (b *Buffer) EmitByte(op Opcode, operand byte) {
	b.Emit(op)
	b.EmitU1(operand)
}

// EmitUint16 appends an opcode with a 16-bit operand.
func (b *Buffer) EmitUint16(op Opcode, operand uint16) {
	b.Emit(op)
	b.EmitU2(operand)
}

// Align4 pads with zeros to the next multiple of four.
func (b *Buffer) Align4() {
	for len(b.bytes)%4 != 0 {
		b.bytes = append(b.bytes, 0)
	}
}

// EmitBranch appends a branch instruction whose offset is patched later.
// goto_w and jsr_w take a 4-byte offset, all others 2 bytes.
func (b *Buffer) EmitBranch(op Opcode, label int) {
	base := len(b.bytes)
	b.Emit(op)
	width := 2
	if op == OpGotoW || op == OpJsrW {
		width = 4
	}
	b.EmitOffset(base, label, width)
}

// EmitOffset appends a placeholder offset relative to base, as used by
// switch tables.
func (b *Buffer) EmitOffset(base, label, width int) {
	b.patches = append(b.patches, PatchSite{At: len(b.bytes), Base: base, Width: width, Label: label})
	for range width {
		b.bytes = append(b.bytes, 0)
	}
}

// Position binds label to the current offset.
func (b *Buffer) Position(label int) error {
	for len(b.positions) <= label {
		b.positions = append(b.positions, -1)
	}
	if b.positions[label] >= 0 {
		return fmt.Errorf("%w: %d", ErrLabelPositioned, label)
	}
	b.positions[label] = len(b.bytes)
	return nil
}

// LabelPosition returns the offset of a positioned label.
func (b *Buffer) LabelPosition(label int) (int, bool) {
	if label < len(b.positions) && b.positions[label] >= 0 {
		return b.positions[label], true
	}
	return 0, false
}

// Patches returns the recorded patch sites.
func (b *Buffer) Patches() []PatchSite {
	return b.patches
}

// Finish writes every patch site and returns the final code.
func (b *Buffer) Finish() ([]byte, error) {
	for _, p := range b.patches {
		pos, ok := b.LabelPosition(p.Label)
		if !ok {
			return nil, fmt.Errorf("%w: label %d at %d", ErrUnresolvedLabel, p.Label, p.Base)
		}
		offset := pos - p.Base
		switch p.Width {
		case 2:
			if offset < math.MinInt16 || offset > math.MaxInt16 {
				return nil, fmt.Errorf("%w: %d at %d", ErrBranchOutOfRange, offset, p.Base)
			}
			binary.BigEndian.PutUint16(b.bytes[p.At:], uint16(int16(offset)))
		case 4:
			binary.BigEndian.PutUint32(b.bytes[p.At:], uint32(int32(offset)))
		default:
			return nil, fmt.Errorf("bytecode: bad patch width %d", p.Width)
		}
	}
	return b.bytes, nil
}
