package bytecode

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Disassemble returns a human-readable bytecode listing for the chunk.
func (c *Chunk) Disassemble() string {
	return c.DisassembleWithName("")
}

// DisassembleWithName returns a human-readable bytecode listing with a name header.
func (c *Chunk) DisassembleWithName(name string) string {
	var sb strings.Builder

	// Header
	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}

	// Constants
	if len(c.Constants) > 0 {
		sb.WriteString("; Constants:\n")
		for i, v := range c.Constants {
			display := v.GoString()
			if len(display) > 40 {
				display = display[:37] + "..."
			}
			sb.WriteString(fmt.Sprintf(";   [%3d] %s\n", i, display))
		}
		sb.WriteString("\n")
	}

	// Locals
	if len(c.VarNames) > 0 {
		sb.WriteString(fmt.Sprintf("; Locals: %s\n\n", strings.Join(c.VarNames, ", ")))
	}

	// Code section
	sb.WriteString("; Code:\n")
	offset := 0
	prevLine := -1
	for offset < len(c.Code) {
		text, instrLen := c.disassembleInstruction(offset)

		line := c.Line(offset)
		if line == prevLine {
			sb.WriteString(fmt.Sprintf("%04X     |  %s\n", offset, text))
		} else {
			sb.WriteString(fmt.Sprintf("%04X  %4d  %s\n", offset, line, text))
		}
		prevLine = line

		offset += instrLen
	}

	return sb.String()
}

// disassembleInstruction disassembles a single instruction at the given offset.
// Returns the formatted string and the instruction length.
func (c *Chunk) disassembleInstruction(offset int) (string, int) {
	if offset >= len(c.Code) {
		return "<end of code>", 0
	}

	op := Opcode(c.Code[offset])
	if !op.Valid() {
		return op.String(), 1
	}

	instrLen := op.InstructionLen()
	if offset+instrLen > len(c.Code) {
		return fmt.Sprintf("%s <truncated>", op), len(c.Code) - offset
	}

	switch op {
	case OpPush:
		idx := int(c.Code[offset+1])
		return fmt.Sprintf("%-14s %3d ; %s", op, idx, c.constantText(idx)), instrLen

	case OpDefineGlobal, OpGetGlobal, OpSetGlobal:
		idx := int(c.Code[offset+1])
		return fmt.Sprintf("%-14s %3d ; %s", op, idx, c.constantText(idx)), instrLen

	case OpGetLocal, OpSetLocal:
		slot := int(c.Code[offset+1])
		if name := c.getVarName(slot); name != "" {
			return fmt.Sprintf("%-14s %3d ; %s", op, slot, name), instrLen
		}
		return fmt.Sprintf("%-14s %3d", op, slot), instrLen

	case OpJZ, OpJMP:
		delta := int(c.readUint16(offset + 1))
		return fmt.Sprintf("%-14s %3d -> %04X", op, delta, offset+instrLen+delta), instrLen

	case OpLOOP:
		delta := int(c.readUint16(offset + 1))
		return fmt.Sprintf("%-14s %3d -> %04X", op, delta, offset+instrLen-delta), instrLen

	default:
		return op.String(), instrLen
	}
}

// DisassembleInstruction returns a human-readable representation of a single instruction.
func (c *Chunk) DisassembleInstruction(offset int) string {
	line, _ := c.disassembleInstruction(offset)
	return line
}

func (c *Chunk) constantText(idx int) string {
	if idx >= len(c.Constants) {
		return "<bad constant>"
	}
	return c.Constants[idx].GoString()
}

// readUint16 reads a big-endian uint16 from the code at the given offset.
func (c *Chunk) readUint16(offset int) uint16 {
	if offset+1 >= len(c.Code) {
		return 0
	}
	return binary.BigEndian.Uint16(c.Code[offset:])
}

// getVarName returns the variable name for a local slot if available.
func (c *Chunk) getVarName(slot int) string {
	if slot < len(c.VarNames) {
		return c.VarNames[slot]
	}
	return ""
}

// DisassembleToLines returns the disassembly as a slice of lines.
func (c *Chunk) DisassembleToLines() []string {
	var lines []string
	offset := 0
	for offset < len(c.Code) {
		line, instrLen := c.disassembleInstruction(offset)
		lines = append(lines, fmt.Sprintf("%04X  %s", offset, line))
		offset += instrLen
	}
	return lines
}

// InstructionCount returns the number of instructions in the chunk.
func (c *Chunk) InstructionCount() int {
	count := 0
	offset := 0
	for offset < len(c.Code) {
		_, n := c.disassembleInstruction(offset)
		offset += n
		count++
	}
	return count
}

// FormatStack renders an operand stack bottom to top, e.g. `[ 1 ][ "a" ]`.
func FormatStack(stack []Value) string {
	if len(stack) == 0 {
		return "[ ]"
	}
	var sb strings.Builder
	for _, v := range stack {
		sb.WriteString("[ ")
		sb.WriteString(v.GoString())
		sb.WriteString(" ]")
	}
	return sb.String()
}
