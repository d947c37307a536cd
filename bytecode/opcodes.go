// Package bytecode defines the JVM instruction set, the backpatchable code
// buffer used by the method compiler, and a disassembler.
package bytecode

import "fmt"

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single JVM instruction.
type Opcode byte

// Constants
const (
	OpNop        Opcode = 0x00
	OpAconstNull Opcode = 0x01
	OpIconstM1   Opcode = 0x02
	OpIconst0    Opcode = 0x03
	OpIconst1    Opcode = 0x04
	OpIconst2    Opcode = 0x05
	OpIconst3    Opcode = 0x06
	OpIconst4    Opcode = 0x07
	OpIconst5    Opcode = 0x08
	OpLconst0    Opcode = 0x09
	OpLconst1    Opcode = 0x0A
	OpFconst0    Opcode = 0x0B
	OpFconst1    Opcode = 0x0C
	OpFconst2    Opcode = 0x0D
	OpDconst0    Opcode = 0x0E
	OpDconst1    Opcode = 0x0F
	OpBipush     Opcode = 0x10
	OpSipush     Opcode = 0x11
	OpLdc        Opcode = 0x12
	OpLdcW       Opcode = 0x13
	OpLdc2W      Opcode = 0x14
)

// Loads
const (
	OpIload  Opcode = 0x15
	OpLload  Opcode = 0x16
	OpFload  Opcode = 0x17
	OpDload  Opcode = 0x18
	OpAload  Opcode = 0x19
	OpIload0 Opcode = 0x1A
	OpIload1 Opcode = 0x1B
	OpIload2 Opcode = 0x1C
	OpIload3 Opcode = 0x1D
	OpLload0 Opcode = 0x1E
	OpLload1 Opcode = 0x1F
	OpLload2 Opcode = 0x20
	OpLload3 Opcode = 0x21
	OpFload0 Opcode = 0x22
	OpFload1 Opcode = 0x23
	OpFload2 Opcode = 0x24
	OpFload3 Opcode = 0x25
	OpDload0 Opcode = 0x26
	OpDload1 Opcode = 0x27
	OpDload2 Opcode = 0x28
	OpDload3 Opcode = 0x29
	OpAload0 Opcode = 0x2A
	OpAload1 Opcode = 0x2B
	OpAload2 Opcode = 0x2C
	OpAload3 Opcode = 0x2D
	OpIaload Opcode = 0x2E
	OpLaload Opcode = 0x2F
	OpFaload Opcode = 0x30
	OpDaload Opcode = 0x31
	OpAaload Opcode = 0x32
	OpBaload Opcode = 0x33
	OpCaload Opcode = 0x34
	OpSaload Opcode = 0x35
)

// Stores
const (
	OpIstore  Opcode = 0x36
	OpLstore  Opcode = 0x37
	OpFstore  Opcode = 0x38
	OpDstore  Opcode = 0x39
	OpAstore  Opcode = 0x3A
	OpIstore0 Opcode = 0x3B
	OpIstore1 Opcode = 0x3C
	OpIstore2 Opcode = 0x3D
	OpIstore3 Opcode = 0x3E
	OpLstore0 Opcode = 0x3F
	OpLstore1 Opcode = 0x40
	OpLstore2 Opcode = 0x41
	OpLstore3 Opcode = 0x42
	OpFstore0 Opcode = 0x43
	OpFstore1 Opcode = 0x44
	OpFstore2 Opcode = 0x45
	OpFstore3 Opcode = 0x46
	OpDstore0 Opcode = 0x47
	OpDstore1 Opcode = 0x48
	OpDstore2 Opcode = 0x49
	OpDstore3 Opcode = 0x4A
	OpAstore0 Opcode = 0x4B
	OpAstore1 Opcode = 0x4C
	OpAstore2 Opcode = 0x4D
	OpAstore3 Opcode = 0x4E
	OpIastore Opcode = 0x4F
	OpLastore Opcode = 0x50
	OpFastore Opcode = 0x51
	OpDastore Opcode = 0x52
	OpAastore Opcode = 0x53
	OpBastore Opcode = 0x54
	OpCastore Opcode = 0x55
	OpSastore Opcode = 0x56
)

// Stack
const (
	OpPop    Opcode = 0x57
	OpPOP2   Opcode = 0x58
	OpDup    Opcode = 0x59
	OpDupX1  Opcode = 0x5A
	OpDupX2  Opcode = 0x5B
	OpDUP2   Opcode = 0x5C
	OpDup2X1 Opcode = 0x5D
	OpDup2X2 Opcode = 0x5E
	OpSwap   Opcode = 0x5F
)

// Math
const (
	OpIadd  Opcode = 0x60
	OpLadd  Opcode = 0x61
	OpFadd  Opcode = 0x62
	OpDadd  Opcode = 0x63
	OpIsub  Opcode = 0x64
	OpLsub  Opcode = 0x65
	OpFsub  Opcode = 0x66
	OpDsub  Opcode = 0x67
	OpImul  Opcode = 0x68
	OpLmul  Opcode = 0x69
	OpFmul  Opcode = 0x6A
	OpDmul  Opcode = 0x6B
	OpIdiv  Opcode = 0x6C
	OpLdiv  Opcode = 0x6D
	OpFdiv  Opcode = 0x6E
	OpDdiv  Opcode = 0x6F
	OpIrem  Opcode = 0x70
	OpLrem  Opcode = 0x71
	OpFrem  Opcode = 0x72
	OpDrem  Opcode = 0x73
	OpIneg  Opcode = 0x74
	OpLneg  Opcode = 0x75
	OpFneg  Opcode = 0x76
	OpDneg  Opcode = 0x77
	OpIshl  Opcode = 0x78
	OpLshl  Opcode = 0x79
	OpIshr  Opcode = 0x7A
	OpLshr  Opcode = 0x7B
	OpIushr Opcode = 0x7C
	OpLushr Opcode = 0x7D
	OpIand  Opcode = 0x7E
	OpLand  Opcode = 0x7F
	OpIor   Opcode = 0x80
	OpLor   Opcode = 0x81
	OpIxor  Opcode = 0x82
	OpLxor  Opcode = 0x83
	OpIinc  Opcode = 0x84
)

// Conversions
const (
	OpI2L Opcode = 0x85
	OpI2F Opcode = 0x86
	OpI2D Opcode = 0x87
	OpL2I Opcode = 0x88
	OpL2F Opcode = 0x89
	OpL2D Opcode = 0x8A
	OpF2I Opcode = 0x8B
	OpF2L Opcode = 0x8C
	OpF2D Opcode = 0x8D
	OpD2I Opcode = 0x8E
	OpD2L Opcode = 0x8F
	OpD2F Opcode = 0x90
	OpI2B Opcode = 0x91
	OpI2C Opcode = 0x92
	OpI2S Opcode = 0x93
)

// Comparisons
const (
	OpLcmp  Opcode = 0x94
	OpFcmpl Opcode = 0x95
	OpFcmpg Opcode = 0x96
	OpDcmpl Opcode = 0x97
	OpDcmpg Opcode = 0x98
)

// Control
const (
	OpIfeq         Opcode = 0x99
	OpIfne         Opcode = 0x9A
	OpIflt         Opcode = 0x9B
	OpIfge         Opcode = 0x9C
	OpIfgt         Opcode = 0x9D
	OpIfle         Opcode = 0x9E
	OpIfIcmpeq     Opcode = 0x9F
	OpIfIcmpne     Opcode = 0xA0
	OpIfIcmplt     Opcode = 0xA1
	OpIfIcmpge     Opcode = 0xA2
	OpIfIcmpgt     Opcode = 0xA3
	OpIfIcmple     Opcode = 0xA4
	OpIfAcmpeq     Opcode = 0xA5
	OpIfAcmpne     Opcode = 0xA6
	OpGoto         Opcode = 0xA7
	OpJsr          Opcode = 0xA8
	OpRet          Opcode = 0xA9
	OpTableswitch  Opcode = 0xAA
	OpLookupswitch Opcode = 0xAB
	OpIreturn      Opcode = 0xAC
	OpLreturn      Opcode = 0xAD
	OpFreturn      Opcode = 0xAE
	OpDreturn      Opcode = 0xAF
	OpAreturn      Opcode = 0xB0
	OpReturn       Opcode = 0xB1
)

// References
const (
	OpGetstatic       Opcode = 0xB2
	OpPutstatic       Opcode = 0xB3
	OpGetfield        Opcode = 0xB4
	OpPutfield        Opcode = 0xB5
	OpInvokevirtual   Opcode = 0xB6
	OpInvokespecial   Opcode = 0xB7
	OpInvokestatic    Opcode = 0xB8
	OpInvokeinterface Opcode = 0xB9
	OpInvokedynamic   Opcode = 0xBA
	OpNew             Opcode = 0xBB
	OpNewarray        Opcode = 0xBC
	OpAnewarray       Opcode = 0xBD
	OpArraylength     Opcode = 0xBE
	OpAthrow          Opcode = 0xBF
	OpCheckcast       Opcode = 0xC0
	OpInstanceof      Opcode = 0xC1
	OpMonitorenter    Opcode = 0xC2
	OpMonitorexit     Opcode = 0xC3
)

// Extended
const (
	OpWide           Opcode = 0xC4
	OpMultianewarray Opcode = 0xC5
	OpIfnull         Opcode = 0xC6
	OpIfnonnull      Opcode = 0xC7
	OpGotoW          Opcode = 0xC8
	OpJsrW           Opcode = 0xC9
)
// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

const (
	// VariableOperands marks instructions whose operand length depends on
	// their position or contents (switches and wide).
	VariableOperands = -1

	// Varies marks instructions whose stack effect depends on a descriptor.
	Varies = -128
)

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name         string // mnemonic
	OperandBytes int    // operand bytes following the opcode
	StackEffect  int    // net effect in slots
}

// opcodeTable maps opcodes to their metadata.
var opcodeTable = map[Opcode]OpcodeInfo{
	OpNop:             {"nop", 0, 0},
	OpAconstNull:      {"aconst_null", 0, 1},
	OpIconstM1:        {"iconst_m1", 0, 1},
	OpIconst0:         {"iconst_0", 0, 1},
	OpIconst1:         {"iconst_1", 0, 1},
	OpIconst2:         {"iconst_2", 0, 1},
	OpIconst3:         {"iconst_3", 0, 1},
	OpIconst4:         {"iconst_4", 0, 1},
	OpIconst5:         {"iconst_5", 0, 1},
	OpLconst0:         {"lconst_0", 0, 2},
	OpLconst1:         {"lconst_1", 0, 2},
	OpFconst0:         {"fconst_0", 0, 1},
	OpFconst1:         {"fconst_1", 0, 1},
	OpFconst2:         {"fconst_2", 0, 1},
	OpDconst0:         {"dconst_0", 0, 2},
	OpDconst1:         {"dconst_1", 0, 2},
	OpBipush:          {"bipush", 1, 1},
	OpSipush:          {"sipush", 2, 1},
	OpLdc:             {"ldc", 1, 1},
	OpLdcW:            {"ldc_w", 2, 1},
	OpLdc2W:           {"ldc2_w", 2, 2},
	OpIload:           {"iload", 1, 1},
	OpLload:           {"lload", 1, 2},
	OpFload:           {"fload", 1, 1},
	OpDload:           {"dload", 1, 2},
	OpAload:           {"aload", 1, 1},
	OpIload0:          {"iload_0", 0, 1},
	OpIload1:          {"iload_1", 0, 1},
	OpIload2:          {"iload_2", 0, 1},
	OpIload3:          {"iload_3", 0, 1},
	OpLload0:          {"lload_0", 0, 2},
	OpLload1:          {"lload_1", 0, 2},
	OpLload2:          {"lload_2", 0, 2},
	OpLload3:          {"lload_3", 0, 2},
	OpFload0:          {"fload_0", 0, 1},
	OpFload1:          {"fload_1", 0, 1},
	OpFload2:          {"fload_2", 0, 1},
	OpFload3:          {"fload_3", 0, 1},
	OpDload0:          {"dload_0", 0, 2},
	OpDload1:          {"dload_1", 0, 2},
	OpDload2:          {"dload_2", 0, 2},
	OpDload3:          {"dload_3", 0, 2},
	OpAload0:          {"aload_0", 0, 1},
	OpAload1:          {"aload_1", 0, 1},
	OpAload2:          {"aload_2", 0, 1},
	OpAload3:          {"aload_3", 0, 1},
	OpIaload:          {"iaload", 0, -1},
	OpLaload:          {"laload", 0, 0},
	OpFaload:          {"faload", 0, -1},
	OpDaload:          {"daload", 0, 0},
	OpAaload:          {"aaload", 0, -1},
	OpBaload:          {"baload", 0, -1},
	OpCaload:          {"caload", 0, -1},
	OpSaload:          {"saload", 0, -1},
	OpIstore:          {"istore", 1, -1},
	OpLstore:          {"lstore", 1, -2},
	OpFstore:          {"fstore", 1, -1},
	OpDstore:          {"dstore", 1, -2},
	OpAstore:          {"astore", 1, -1},
	OpIstore0:         {"istore_0", 0, -1},
	OpIstore1:         {"istore_1", 0, -1},
	OpIstore2:         {"istore_2", 0, -1},
	OpIstore3:         {"istore_3", 0, -1},
	OpLstore0:         {"lstore_0", 0, -2},
	OpLstore1:         {"lstore_1", 0, -2},
	OpLstore2:         {"lstore_2", 0, -2},
	OpLstore3:         {"lstore_3", 0, -2},
	OpFstore0:         {"fstore_0", 0, -1},
	OpFstore1:         {"fstore_1", 0, -1},
	OpFstore2:         {"fstore_2", 0, -1},
	OpFstore3:         {"fstore_3", 0, -1},
	OpDstore0:         {"dstore_0", 0, -2},
	OpDstore1:         {"dstore_1", 0, -2},
	OpDstore2:         {"dstore_2", 0, -2},
	OpDstore3:         {"dstore_3", 0, -2},
	OpAstore0:         {"astore_0", 0, -1},
	OpAstore1:         {"astore_1", 0, -1},
	OpAstore2:         {"astore_2", 0, -1},
	OpAstore3:         {"astore_3", 0, -1},
	OpIastore:         {"iastore", 0, -3},
	OpLastore:         {"lastore", 0, -4},
	OpFastore:         {"fastore", 0, -3},
	OpDastore:         {"dastore", 0, -4},
	OpAastore:         {"aastore", 0, -3},
	OpBastore:         {"bastore", 0, -3},
	OpCastore:         {"castore", 0, -3},
	OpSastore:         {"sastore", 0, -3},
	OpPop:             {"pop", 0, -1},
	OpPOP2:            {"pop2", 0, -2},
	OpDup:             {"dup", 0, 1},
	OpDupX1:           {"dup_x1", 0, 1},
	OpDupX2:           {"dup_x2", 0, 1},
	OpDUP2:            {"dup2", 0, 2},
	OpDup2X1:          {"dup2_x1", 0, 2},
	OpDup2X2:          {"dup2_x2", 0, 2},
	OpSwap:            {"swap", 0, 0},
	OpIadd:            {"iadd", 0, -1},
	OpLadd:            {"ladd", 0, -2},
	OpFadd:            {"fadd", 0, -1},
	OpDadd:            {"dadd", 0, -2},
	OpIsub:            {"isub", 0, -1},
	OpLsub:            {"lsub", 0, -2},
	OpFsub:            {"fsub", 0, -1},
	OpDsub:            {"dsub", 0, -2},
	OpImul:            {"imul", 0, -1},
	OpLmul:            {"lmul", 0, -2},
	OpFmul:            {"fmul", 0, -1},
	OpDmul:            {"dmul", 0, -2},
	OpIdiv:            {"idiv", 0, -1},
	OpLdiv:            {"ldiv", 0, -2},
	OpFdiv:            {"fdiv", 0, -1},
	OpDdiv:            {"ddiv", 0, -2},
	OpIrem:            {"irem", 0, -1},
	OpLrem:            {"lrem", 0, -2},
	OpFrem:            {"frem", 0, -1},
	OpDrem:            {"drem", 0, -2},
	OpIneg:            {"ineg", 0, 0},
	OpLneg:            {"lneg", 0, 0},
	OpFneg:            {"fneg", 0, 0},
	OpDneg:            {"dneg", 0, 0},
	OpIshl:            {"ishl", 0, -1},
	OpLshl:            {"lshl", 0, -1},
	OpIshr:            {"ishr", 0, -1},
	OpLshr:            {"lshr", 0, -1},
	OpIushr:           {"iushr", 0, -1},
	OpLushr:           {"lushr", 0, -1},
	OpIand:            {"iand", 0, -1},
	OpLand:            {"land", 0, -2},
	OpIor:             {"ior", 0, -1},
	OpLor:             {"lor", 0, -2},
	OpIxor:            {"ixor", 0, -1},
	OpLxor:            {"lxor", 0, -2},
	OpIinc:            {"iinc", 2, 0},
	OpI2L:             {"i2l", 0, 1},
	OpI2F:             {"i2f", 0, 0},
	OpI2D:             {"i2d", 0, 1},
	OpL2I:             {"l2i", 0, -1},
	OpL2F:             {"l2f", 0, -1},
	OpL2D:             {"l2d", 0, 0},
	OpF2I:             {"f2i", 0, 0},
	OpF2L:             {"f2l", 0, 1},
	OpF2D:             {"f2d", 0, 1},
	OpD2I:             {"d2i", 0, -1},
	OpD2L:             {"d2l", 0, 0},
	OpD2F:             {"d2f", 0, -1},
	OpI2B:             {"i2b", 0, 0},
	OpI2C:             {"i2c", 0, 0},
	OpI2S:             {"i2s", 0, 0},
	OpLcmp:            {"lcmp", 0, -3},
	OpFcmpl:           {"fcmpl", 0, -1},
	OpFcmpg:           {"fcmpg", 0, -1},
	OpDcmpl:           {"dcmpl", 0, -3},
	OpDcmpg:           {"dcmpg", 0, -3},
	OpIfeq:            {"ifeq", 2, -1},
	OpIfne:            {"ifne", 2, -1},
	OpIflt:            {"iflt", 2, -1},
	OpIfge:            {"ifge", 2, -1},
	OpIfgt:            {"ifgt", 2, -1},
	OpIfle:            {"ifle", 2, -1},
	OpIfIcmpeq:        {"if_icmpeq", 2, -2},
	OpIfIcmpne:        {"if_icmpne", 2, -2},
	OpIfIcmplt:        {"if_icmplt", 2, -2},
	OpIfIcmpge:        {"if_icmpge", 2, -2},
	OpIfIcmpgt:        {"if_icmpgt", 2, -2},
	OpIfIcmple:        {"if_icmple", 2, -2},
	OpIfAcmpeq:        {"if_acmpeq", 2, -2},
	OpIfAcmpne:        {"if_acmpne", 2, -2},
	OpGoto:            {"goto", 2, 0},
	OpJsr:             {"jsr", 2, 1},
	OpRet:             {"ret", 1, 0},
	OpTableswitch:     {"tableswitch", VariableOperands, -1},
	OpLookupswitch:    {"lookupswitch", VariableOperands, -1},
	OpIreturn:         {"ireturn", 0, -1},
	OpLreturn:         {"lreturn", 0, -2},
	OpFreturn:         {"freturn", 0, -1},
	OpDreturn:         {"dreturn", 0, -2},
	OpAreturn:         {"areturn", 0, -1},
	OpReturn:          {"return", 0, 0},
	OpGetstatic:       {"getstatic", 2, Varies},
	OpPutstatic:       {"putstatic", 2, Varies},
	OpGetfield:        {"getfield", 2, Varies},
	OpPutfield:        {"putfield", 2, Varies},
	OpInvokevirtual:   {"invokevirtual", 2, Varies},
	OpInvokespecial:   {"invokespecial", 2, Varies},
	OpInvokestatic:    {"invokestatic", 2, Varies},
	OpInvokeinterface: {"invokeinterface", 4, Varies},
	OpInvokedynamic:   {"invokedynamic", 4, Varies},
	OpNew:             {"new", 2, 1},
	OpNewarray:        {"newarray", 1, 0},
	OpAnewarray:       {"anewarray", 2, 0},
	OpArraylength:     {"arraylength", 0, 0},
	OpAthrow:          {"athrow", 0, -1},
	OpCheckcast:       {"checkcast", 2, 0},
	OpInstanceof:      {"instanceof", 2, 0},
	OpMonitorenter:    {"monitorenter", 0, -1},
	OpMonitorexit:     {"monitorexit", 0, -1},
	OpWide:            {"wide", VariableOperands, Varies},
	OpMultianewarray:  {"multianewarray", 3, Varies},
	OpIfnull:          {"ifnull", 2, -1},
	OpIfnonnull:       {"ifnonnull", 2, -1},
	OpGotoW:           {"goto_w", 4, 0},
	OpJsrW:            {"jsr_w", 4, 1},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op)), OperandBytes: 0, StackEffect: 0}
}

// Name returns the mnemonic for an opcode.
func (op Opcode) Name() string {
	return op.Info().Name
}

// OperandBytes returns the number of operand bytes for an opcode.
func (op Opcode) OperandBytes() int {
	return op.Info().OperandBytes
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Name()
}

// IsBranch reports whether op carries a relative branch offset.
func (op Opcode) IsBranch() bool {
	return op >= OpIfeq && op <= OpJsr || op == OpIfnull || op == OpIfnonnull ||
		op == OpGotoW || op == OpJsrW
}

// IsIf reports whether op is a conditional branch.
func (op Opcode) IsIf() bool {
	return op >= OpIfeq && op <= OpIfAcmpne || op == OpIfnull || op == OpIfnonnull
}

// IsReturn reports whether op returns from the method.
func (op Opcode) IsReturn() bool {
	return op >= OpIreturn && op <= OpReturn
}

// EndsFlow reports whether execution never continues to the next
// instruction.
func (op Opcode) EndsFlow() bool {
	switch op {
	case OpGoto, OpGotoW, OpAthrow, OpTableswitch, OpLookupswitch, OpRet:
		return true
	}
	return op.IsReturn()
}

// FlipIf returns the conditional branch with the opposite sense.
func FlipIf(op Opcode) Opcode {
	if op >= OpIfnull {
		return op ^ 1
	}
	return ((op - 1) ^ 1) + 1
}

// IfPops returns the number of stack values a conditional branch consumes.
func IfPops(op Opcode) int {
	if op >= OpIfIcmpeq && op <= OpIfAcmpne {
		return 2
	}
	return 1
}
