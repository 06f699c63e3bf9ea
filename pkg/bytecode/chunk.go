package bytecode

import (
	"errors"
	"math"
)

// MaxConstants is the size of a chunk's constant pool. Constant indices
// are a single byte.
const MaxConstants = 256

// MaxJump is the largest distance a jump operand can encode.
const MaxJump = math.MaxUint16

var (
	// ErrTooManyConstants is returned when the constant pool is full.
	ErrTooManyConstants = errors.New("too many constants in one chunk")

	// ErrJumpTooLarge is returned when a forward jump cannot be encoded.
	ErrJumpTooLarge = errors.New("too much code to jump over")

	// ErrLoopTooLarge is returned when a backward jump cannot be encoded.
	ErrLoopTooLarge = errors.New("loop body too large")
)

// Chunk is a compiled unit: bytecode, its constant pool and a line number
// for every code byte.
type Chunk struct {
	// Code section
	Code []byte

	// Constant pool referenced by OpPush and the global opcodes
	Constants []Value

	// Lines holds the source line of each byte in Code.
	Lines []int

	// Debug information: local slot -> variable name
	VarNames []string
}

// NewChunk creates a new empty chunk.
func NewChunk() *Chunk {
	return &Chunk{
		Code:      make([]byte, 0, 64),
		Constants: make([]Value, 0, 8),
		Lines:     make([]int, 0, 64),
	}
}

// Write appends one byte tagged with its source line.
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

// WriteOp appends an opcode and returns its offset.
func (c *Chunk) WriteOp(op Opcode, line int) int {
	offset := len(c.Code)
	c.Write(byte(op), line)
	return offset
}

// WriteOpWithOperand appends an opcode followed by a one-byte operand.
func (c *Chunk) WriteOpWithOperand(op Opcode, operand byte, line int) int {
	offset := c.WriteOp(op, line)
	c.Write(operand, line)
	return offset
}

// AddConstant adds a value to the pool and returns its index. An equal
// value already in the pool is reused. A full pool yields
// ErrTooManyConstants and leaves the chunk unchanged.
func (c *Chunk) AddConstant(value Value) (byte, error) {
	for i, v := range c.Constants {
		if Equal(v, value) {
			return byte(i), nil
		}
	}
	if len(c.Constants) >= MaxConstants {
		return 0, ErrTooManyConstants
	}
	c.Constants = append(c.Constants, value)
	return byte(len(c.Constants) - 1), nil
}

// EmitJump emits a jump instruction with a placeholder offset.
// Returns the offset of the placeholder for later patching.
func (c *Chunk) EmitJump(op Opcode, line int) int {
	c.WriteOp(op, line)
	c.Write(0xFF, line)
	c.Write(0xFF, line)
	return len(c.Code) - 2
}

// PatchJump makes the jump whose operand is at placeholderOffset land on
// the current end of the code.
func (c *Chunk) PatchJump(placeholderOffset int) error {
	// Relative to the byte after the 2-byte operand
	delta := len(c.Code) - placeholderOffset - 2
	if delta > MaxJump {
		return ErrJumpTooLarge
	}
	c.Code[placeholderOffset] = byte(delta >> 8)
	c.Code[placeholderOffset+1] = byte(delta)
	return nil
}

// EmitLoop emits a backward jump to loopStart.
func (c *Chunk) EmitLoop(loopStart int, line int) error {
	// Distance from the end of this instruction back to loopStart
	delta := len(c.Code) + OpLOOP.InstructionLen() - loopStart
	if delta > MaxJump {
		return ErrLoopTooLarge
	}
	c.WriteOp(OpLOOP, line)
	c.Write(byte(delta>>8), line)
	c.Write(byte(delta), line)
	return nil
}

// CurrentOffset returns the current offset in the code section.
func (c *Chunk) CurrentOffset() int {
	return len(c.Code)
}

// Line returns the source line of the byte at offset, or 0 when offset is
// out of range.
func (c *Chunk) Line(offset int) int {
	if offset < 0 || offset >= len(c.Lines) {
		return 0
	}
	return c.Lines[offset]
}

// SetVarName records the name of a local slot for disassembly.
func (c *Chunk) SetVarName(slot int, name string) {
	for len(c.VarNames) <= slot {
		c.VarNames = append(c.VarNames, "")
	}
	c.VarNames[slot] = name
}
