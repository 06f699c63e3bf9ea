package bytecode

import "fmt"

// Opcode represents a bytecode instruction. The byte values are stable
// within a build and every defined opcode round-trips through Decode.
type Opcode byte

const (
	OpRet  Opcode = iota // Pop and return top of stack (or nil)
	OpPush               // Push constant: OpPush <index:u8>
	OpNeg                // Negate number on top of stack
	OpAdd                // Pop two, push sum or concatenation
	OpSub                // Pop two, push difference (a - b where b is TOS)
	OpMul                // Pop two, push product
	OpDiv                // Pop two, push quotient
	OpTrue               // Push true
	OpFalse              // Push false
	OpNil                // Push nil
	OpNot                // Pop one, push its logical negation
	OpEq                 // Pop two, push equality
	OpGt                 // Pop two numbers, push a > b
	OpLt                 // Pop two numbers, push a < b
	OpPrint              // Pop and print
	OpPop                // Pop top of stack

	// ========================================================================
	// Variables
	// ========================================================================

	OpDefineGlobal // Pop and bind global: OpDefineGlobal <name:u8>
	OpGetGlobal    // Push global: OpGetGlobal <name:u8>
	OpSetGlobal    // Store TOS into existing global: OpSetGlobal <name:u8>
	OpGetLocal     // Push stack slot: OpGetLocal <slot:u8>
	OpSetLocal     // Store TOS into stack slot: OpSetLocal <slot:u8>

	// ========================================================================
	// Control flow (operand is an unsigned 16-bit big-endian delta measured
	// from the byte after the operand)
	// ========================================================================

	OpJZ   // Jump forward if TOS is falsey (TOS is not popped)
	OpJMP  // Jump forward unconditionally
	OpLOOP // Jump backward unconditionally

	opcodeCount
)

// OpcodeInfo provides metadata about an opcode.
type OpcodeInfo struct {
	Name       string // Human-readable name
	StackPop   int    // Number of values popped from stack
	StackPush  int    // Number of values pushed to stack
	OperandLen int    // Number of operand bytes following the opcode
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = [opcodeCount]OpcodeInfo{
	OpRet:  {"RET", 1, 0, 0},
	OpPush: {"PUSH", 0, 1, 1},
	OpNeg:  {"NEG", 1, 1, 0},

	// Arithmetic
	OpAdd: {"ADD", 2, 1, 0},
	OpSub: {"SUB", 2, 1, 0},
	OpMul: {"MUL", 2, 1, 0},
	OpDiv: {"DIV", 2, 1, 0},

	// Literals
	OpTrue:  {"TRUE", 0, 1, 0},
	OpFalse: {"FALSE", 0, 1, 0},
	OpNil:   {"NIL", 0, 1, 0},

	// Logic and comparison
	OpNot: {"NOT", 1, 1, 0},
	OpEq:  {"EQ", 2, 1, 0},
	OpGt:  {"GT", 2, 1, 0},
	OpLt:  {"LT", 2, 1, 0},

	OpPrint: {"PRINT", 1, 0, 0},
	OpPop:   {"POP", 1, 0, 0},

	// Variables
	OpDefineGlobal: {"DEFINE_GLOBAL", 1, 0, 1},
	OpGetGlobal:    {"GET_GLOBAL", 0, 1, 1},
	OpSetGlobal:    {"SET_GLOBAL", 1, 1, 1},
	OpGetLocal:     {"GET_LOCAL", 0, 1, 1},
	OpSetLocal:     {"SET_LOCAL", 1, 1, 1},

	// Control flow
	OpJZ:   {"JZ", 0, 0, 2},
	OpJMP:  {"JMP", 0, 0, 2},
	OpLOOP: {"LOOP", 0, 0, 2},
}

// DecodeError reports a byte that is not a defined opcode. It means the
// chunk was produced by an incompatible compiler; it is never a user error.
type DecodeError struct {
	Byte   byte
	Offset int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("unknown opcode 0x%02X at offset %d", e.Byte, e.Offset)
}

// Decode converts a byte back into an opcode.
func Decode(b byte) (Opcode, error) {
	if b >= byte(opcodeCount) {
		return 0, &DecodeError{Byte: b, Offset: -1}
	}
	return Opcode(b), nil
}

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool {
	return op < opcodeCount
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if op.Valid() {
		return opcodeInfoTable[op]
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandLen returns the number of operand bytes for this opcode.
func (op Opcode) OperandLen() int {
	return GetOpcodeInfo(op).OperandLen
}

// InstructionLen returns the total length of an instruction (1 + operand bytes).
func (op Opcode) InstructionLen() int {
	return 1 + op.OperandLen()
}

// IsJump returns true if this opcode is a jump instruction.
func (op Opcode) IsJump() bool {
	return op >= OpJZ && op <= OpLOOP
}

// AllOpcodes returns every defined opcode in byte order.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, opcodeCount)
	for op := Opcode(0); op < opcodeCount; op++ {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return int(opcodeCount)
}
