package classfile

import "fmt"

// ---------------------------------------------------------------------------
// StackMapTable
// ---------------------------------------------------------------------------

// Verification type tags.
const (
	ItemTop               byte = 0
	ItemInteger           byte = 1
	ItemFloat             byte = 2
	ItemDouble            byte = 3
	ItemLong              byte = 4
	ItemNull              byte = 5
	ItemUninitializedThis byte = 6
	ItemObject            byte = 7
	ItemUninitialized     byte = 8
)

// VerificationType is a stack map entry. Class is the internal name for
// ItemObject; Offset is the new instruction for ItemUninitialized. Long and
// double are a single entry, as in the encoded form.
type VerificationType struct {
	Tag    byte
	Class  string
	Offset int
}

func (v VerificationType) String() string {
	switch v.Tag {
	case ItemTop:
		return "top"
	case ItemInteger:
		return "int"
	case ItemFloat:
		return "float"
	case ItemDouble:
		return "double"
	case ItemLong:
		return "long"
	case ItemNull:
		return "null"
	case ItemUninitializedThis:
		return "uninitializedThis"
	case ItemObject:
		return v.Class
	case ItemUninitialized:
		return fmt.Sprintf("uninitialized(%d)", v.Offset)
	}
	return "?"
}

// Frame is the verifier state at a branch target.
type Frame struct {
	PC     int
	Locals []VerificationType
	Stack  []VerificationType
}

const (
	frameSameMax         = 63
	frameSameLocals1Min  = 64
	frameSameLocals1Max  = 127
	frameSameLocals1Ext  = 247
	frameChopMin         = 248
	frameSameExt         = 251
	frameAppendMax       = 254
	frameFull            = 255
	maxChopOrAppendCount = 3
)

// StackMapTable encodes frames using the most compact form for each.
// Frames must be sorted by PC without duplicates. initial is the implicit
// frame derived from the method descriptor.
func StackMapTable(p *ConstantPool, initial []VerificationType, frames []Frame) Attribute {
	var e encoder
	e.u2(len(frames))
	prev := initial
	prevPC := -1
	for _, f := range frames {
		delta := f.PC - prevPC - 1
		prevPC = f.PC
		encodeFrame(&e, p, prev, f, delta)
		prev = f.Locals
	}
	return Attribute{Name: p.Utf8("StackMapTable"), Data: e.b}
}

func encodeFrame(e *encoder, p *ConstantPool, prev []VerificationType, f Frame, delta int) {
	same := typesEqual(prev, f.Locals)
	switch {
	case same && len(f.Stack) == 0:
		if delta <= frameSameMax {
			e.u1(delta)
		} else {
			e.u1(frameSameExt)
			e.u2(delta)
		}
		return

	case same && len(f.Stack) == 1:
		if delta <= frameSameLocals1Max-frameSameLocals1Min {
			e.u1(frameSameLocals1Min + delta)
		} else {
			e.u1(frameSameLocals1Ext)
			e.u2(delta)
		}
		encodeType(e, p, f.Stack[0])
		return

	case len(f.Stack) == 0:
		diff := len(f.Locals) - len(prev)
		if diff < 0 && -diff <= maxChopOrAppendCount && typesEqual(prev[:len(f.Locals)], f.Locals) {
			e.u1(frameSameExt + diff)
			e.u2(delta)
			return
		}
		if diff > 0 && diff <= maxChopOrAppendCount && typesEqual(prev, f.Locals[:len(prev)]) {
			e.u1(frameSameExt + diff)
			e.u2(delta)
			for _, t := range f.Locals[len(prev):] {
				encodeType(e, p, t)
			}
			return
		}
	}

	e.u1(frameFull)
	e.u2(delta)
	e.u2(len(f.Locals))
	for _, t := range f.Locals {
		encodeType(e, p, t)
	}
	e.u2(len(f.Stack))
	for _, t := range f.Stack {
		encodeType(e, p, t)
	}
}

func encodeType(e *encoder, p *ConstantPool, t VerificationType) {
	e.u1(int(t.Tag))
	switch t.Tag {
	case ItemObject:
		e.u2(int(p.Class(t.Class)))
	case ItemUninitialized:
		e.u2(t.Offset)
	}
}

func typesEqual(a, b []VerificationType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// DecodeStackMapTable expands a StackMapTable payload into full frames with
// absolute PCs.
func DecodeStackMapTable(p *ConstantPool, data []byte, initial []VerificationType) ([]Frame, error) {
	d := &decoder{data: data}
	n := int(d.u2())
	frames := make([]Frame, 0, n)
	locals := initial
	pc := -1
	for range n {
		kind := int(d.u1())
		var f Frame
		var delta int
		switch {
		case kind <= frameSameMax:
			delta = kind
			f.Locals = locals
		case kind <= frameSameLocals1Max:
			delta = kind - frameSameLocals1Min
			f.Locals = locals
			f.Stack = []VerificationType{decodeType(d, p)}
		case kind == frameSameLocals1Ext:
			delta = int(d.u2())
			f.Locals = locals
			f.Stack = []VerificationType{decodeType(d, p)}
		case kind >= frameChopMin && kind < frameSameExt:
			delta = int(d.u2())
			keep := len(locals) - (frameSameExt - kind)
			if keep < 0 {
				return nil, fmt.Errorf("classfile: chop frame below zero locals")
			}
			f.Locals = locals[:keep]
		case kind == frameSameExt:
			delta = int(d.u2())
			f.Locals = locals
		case kind <= frameAppendMax:
			delta = int(d.u2())
			f.Locals = append([]VerificationType(nil), locals...)
			for range kind - frameSameExt {
				f.Locals = append(f.Locals, decodeType(d, p))
			}
		case kind == frameFull:
			delta = int(d.u2())
			nl := int(d.u2())
			for range nl {
				f.Locals = append(f.Locals, decodeType(d, p))
			}
			ns := int(d.u2())
			for range ns {
				f.Stack = append(f.Stack, decodeType(d, p))
			}
		default:
			return nil, fmt.Errorf("classfile: reserved frame type %d", kind)
		}
		pc += delta + 1
		f.PC = pc
		locals = f.Locals
		frames = append(frames, f)
	}
	if d.err != nil {
		return nil, fmt.Errorf("classfile: StackMapTable: %w", d.err)
	}
	return frames, nil
}

func decodeType(d *decoder, p *ConstantPool) VerificationType {
	t := VerificationType{Tag: d.u1()}
	switch t.Tag {
	case ItemObject:
		t.Class, _ = p.ClassNameAt(int(d.u2()))
	case ItemUninitialized:
		t.Offset = int(d.u2())
	}
	return t
}
