package bytecode

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// ConstantNamer renders constant pool entries referenced by instructions.
type ConstantNamer interface {
	ConstantString(index int) string
}

var newarrayTypes = map[byte]string{
	4: "boolean", 5: "char", 6: "float", 7: "double",
	8: "byte", 9: "short", 10: "int", 11: "long",
}

func constRef(pos int, name string, index int, names ConstantNamer) string {
	if names != nil {
		return fmt.Sprintf("%04d  %s #%d // %s", pos, name, index, names.ConstantString(index))
	}
	return fmt.Sprintf("%04d  %s #%d", pos, name, index)
}

// DisassembleInstruction disassembles a single instruction at the reader's
// position and advances the reader. Switches produce several lines.
func DisassembleInstruction(r *Reader, names ConstantNamer) string {
	pos := r.Position()
	op := r.ReadOpcode()
	info := op.Info()

	switch {
	case op == OpBipush:
		return fmt.Sprintf("%04d  %s %d", pos, info.Name, r.ReadS1())

	case op == OpSipush:
		return fmt.Sprintf("%04d  %s %d", pos, info.Name, r.ReadS2())

	case op == OpLdc:
		return constRef(pos, info.Name, int(r.ReadU1()), names)

	case op == OpLdcW || op == OpLdc2W ||
		op >= OpGetstatic && op <= OpInvokestatic ||
		op == OpNew || op == OpAnewarray || op == OpCheckcast || op == OpInstanceof:
		return constRef(pos, info.Name, int(r.ReadU2()), names)

	case op >= OpIload && op <= OpAload, op >= OpIstore && op <= OpAstore, op == OpRet:
		return fmt.Sprintf("%04d  %s %d", pos, info.Name, r.ReadU1())

	case op == OpIinc:
		slot := r.ReadU1()
		return fmt.Sprintf("%04d  %s %d %d", pos, info.Name, slot, r.ReadS1())

	case op == OpGotoW || op == OpJsrW:
		offset := int(r.ReadS4())
		return fmt.Sprintf("%04d  %s %d (-> %04d)", pos, info.Name, offset, pos+offset)

	case op.IsBranch():
		offset := int(r.ReadS2())
		return fmt.Sprintf("%04d  %s %d (-> %04d)", pos, info.Name, offset, pos+offset)

	case op == OpTableswitch || op == OpLookupswitch:
		s := r.ReadSwitch(op, pos)
		var b strings.Builder
		fmt.Fprintf(&b, "%04d  %s", pos, info.Name)
		for i, k := range s.Keys {
			fmt.Fprintf(&b, "\n        %d -> %04d", k, s.Targets[i])
		}
		fmt.Fprintf(&b, "\n        default -> %04d", s.Default)
		return b.String()

	case op == OpInvokeinterface:
		index := int(r.ReadU2())
		count := r.ReadU1()
		r.ReadU1()
		return constRef(pos, fmt.Sprintf("%s %d", info.Name, count), index, names)

	case op == OpInvokedynamic:
		index := int(r.ReadU2())
		r.ReadU2()
		return constRef(pos, info.Name, index, names)

	case op == OpNewarray:
		code := r.ReadU1()
		name, ok := newarrayTypes[code]
		if !ok {
			name = fmt.Sprintf("?%d", code)
		}
		return fmt.Sprintf("%04d  %s %s", pos, info.Name, name)

	case op == OpMultianewarray:
		index := int(r.ReadU2())
		dims := r.ReadU1()
		return constRef(pos, fmt.Sprintf("%s %d", info.Name, dims), index, names)

	case op == OpWide:
		inner := r.ReadOpcode()
		slot := r.ReadU2()
		if inner == OpIinc {
			return fmt.Sprintf("%04d  wide %s %d %d", pos, inner.Name(), slot, r.ReadS2())
		}
		return fmt.Sprintf("%04d  wide %s %d", pos, inner.Name(), slot)

	default:
		r.Skip(max(info.OperandBytes, 0))
		return fmt.Sprintf("%04d  %s", pos, info.Name)
	}
}

// Disassemble returns a full disassembly of code.
func Disassemble(code []byte, names ConstantNamer) string {
	r := NewReader(code)
	var lines []string
	for r.HasMore() {
		lines = append(lines, DisassembleInstruction(r, names))
	}
	return strings.Join(lines, "\n")
}
