package bytecode

import (
	"errors"
	"testing"
)

func TestBufferForwardAndBackwardBranches(t *testing.T) {
	b := NewBuffer()
	const top, out = 0, 1

	if err := b.Position(top); err != nil {
		t.Fatal(err)
	}
	b.Emit(OpIload0)
	b.EmitBranch(OpIfeq, out)
	b.Emit(OpNop)
	b.EmitBranch(OpGoto, top)
	if err := b.Position(out); err != nil {
		t.Fatal(err)
	}
	b.Emit(OpReturn)

	code, err := b.Finish()
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{
		byte(OpIload0),
		byte(OpIfeq), 0x00, 0x07,
		byte(OpNop),
		byte(OpGoto), 0xff, 0xfb,
		byte(OpReturn),
	}
	if string(code) != string(want) {
		t.Errorf("code = % x, want % x", code, want)
	}
}

func TestBufferWideGoto(t *testing.T) {
	b := NewBuffer()
	b.EmitBranch(OpGotoW, 0)
	b.Position(0)
	b.Emit(OpReturn)

	code, err := b.Finish()
	if err != nil {
		t.Fatal(err)
	}
	if len(code) != 6 || code[4] != 5 {
		t.Errorf("code = % x", code)
	}
}

func TestBufferErrors(t *testing.T) {
	b := NewBuffer()
	b.EmitBranch(OpGoto, 3)
	if _, err := b.Finish(); !errors.Is(err, ErrUnresolvedLabel) {
		t.Errorf("unresolved: err = %v", err)
	}

	b = NewBuffer()
	b.Position(0)
	if err := b.Position(0); !errors.Is(err, ErrLabelPositioned) {
		t.Errorf("double position: err = %v", err)
	}

	b = NewBuffer()
	b.EmitBranch(OpGoto, 0)
	for range 40000 {
		b.Emit(OpNop)
	}
	b.Position(0)
	if _, err := b.Finish(); !errors.Is(err, ErrBranchOutOfRange) {
		t.Errorf("far branch: err = %v", err)
	}
}

func TestBufferLines(t *testing.T) {
	b := NewBuffer()
	b.SetLine(10)
	b.Emit(OpIconst1)
	b.Emit(OpPop)
	b.SetLine(11)
	b.SetLine(12)
	b.Emit(OpReturn)

	lines := b.Lines()
	want := []LineEntry{{PC: 0, Line: 10}, {PC: 2, Line: 12}}
	if len(lines) != len(want) {
		t.Fatalf("lines = %v, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("lines[%d] = %v, want %v", i, lines[i], want[i])
		}
	}
}

func TestFlipIf(t *testing.T) {
	tests := []struct{ op, want Opcode }{
		{OpIfeq, OpIfne},
		{OpIfne, OpIfeq},
		{OpIflt, OpIfge},
		{OpIfgt, OpIfle},
		{OpIfIcmpeq, OpIfIcmpne},
		{OpIfIcmplt, OpIfIcmpge},
		{OpIfAcmpne, OpIfAcmpeq},
		{OpIfnull, OpIfnonnull},
		{OpIfnonnull, OpIfnull},
	}
	for _, tt := range tests {
		if got := FlipIf(tt.op); got != tt.want {
			t.Errorf("FlipIf(%s) = %s, want %s", tt.op, got, tt.want)
		}
	}
}
