package bytecode

import (
	"errors"
	"strings"
	"testing"
)

func TestAllOpcodesHaveMetadata(t *testing.T) {
	for _, op := range AllOpcodes() {
		info := GetOpcodeInfo(op)
		if info.Name == "" || strings.HasPrefix(info.Name, "UNKNOWN") {
			t.Errorf("Opcode 0x%02X has no metadata", byte(op))
		}
	}
}

func TestOpcodeCount(t *testing.T) {
	if got := OpcodeCount(); got != 24 {
		t.Errorf("OpcodeCount() = %d, want 24", got)
	}
}

func TestOpcodeByteValues(t *testing.T) {
	want := []Opcode{
		OpRet, OpPush, OpNeg, OpAdd, OpSub, OpMul, OpDiv, OpTrue, OpFalse, OpNil,
		OpNot, OpEq, OpGt, OpLt, OpPrint, OpPop, OpDefineGlobal, OpGetGlobal,
		OpSetGlobal, OpGetLocal, OpSetLocal, OpJZ, OpJMP, OpLOOP,
	}
	for i, op := range want {
		if byte(op) != byte(i) {
			t.Errorf("%s = %d, want %d", op, byte(op), i)
		}
	}
}

func TestOpcodeRoundTrip(t *testing.T) {
	for _, op := range AllOpcodes() {
		got, err := Decode(byte(op))
		if err != nil {
			t.Errorf("Decode(%d) error: %v", byte(op), err)
			continue
		}
		if got != op {
			t.Errorf("Decode(%d) = %s, want %s", byte(op), got, op)
		}
	}
}

func TestDecodeRejectsUnknownBytes(t *testing.T) {
	for b := 24; b <= 255; b++ {
		_, err := Decode(byte(b))
		var derr *DecodeError
		if !errors.As(err, &derr) {
			t.Errorf("Decode(%d) error = %v, want *DecodeError", b, err)
			continue
		}
		if derr.Byte != byte(b) {
			t.Errorf("DecodeError.Byte = %d, want %d", derr.Byte, b)
		}
	}
}

func TestOpcodeString(t *testing.T) {
	tests := []struct {
		op   Opcode
		want string
	}{
		{OpRet, "RET"},
		{OpPush, "PUSH"},
		{OpAdd, "ADD"},
		{OpDefineGlobal, "DEFINE_GLOBAL"},
		{OpGetLocal, "GET_LOCAL"},
		{OpJZ, "JZ"},
		{OpLOOP, "LOOP"},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Opcode(0x%02X).String() = %q, want %q", byte(tt.op), got, tt.want)
		}
	}
}

func TestUnknownOpcodeString(t *testing.T) {
	got := Opcode(0xEE).String()
	if !strings.HasPrefix(got, "UNKNOWN") {
		t.Errorf("Unknown opcode should return UNKNOWN, got %q", got)
	}
}

func TestOpcodeOperandLen(t *testing.T) {
	tests := []struct {
		op   Opcode
		want int
	}{
		{OpRet, 0},
		{OpAdd, 0},
		{OpPush, 1},
		{OpDefineGlobal, 1},
		{OpGetGlobal, 1},
		{OpSetGlobal, 1},
		{OpGetLocal, 1},
		{OpSetLocal, 1},
		{OpJZ, 2},
		{OpJMP, 2},
		{OpLOOP, 2},
	}

	for _, tt := range tests {
		if got := tt.op.OperandLen(); got != tt.want {
			t.Errorf("%s.OperandLen() = %d, want %d", tt.op, got, tt.want)
		}
		if got := tt.op.InstructionLen(); got != tt.want+1 {
			t.Errorf("%s.InstructionLen() = %d, want %d", tt.op, got, tt.want+1)
		}
	}
}

func TestOpcodeIsJump(t *testing.T) {
	for _, op := range AllOpcodes() {
		want := op == OpJZ || op == OpJMP || op == OpLOOP
		if got := op.IsJump(); got != want {
			t.Errorf("%s.IsJump() = %v, want %v", op, got, want)
		}
	}
}
