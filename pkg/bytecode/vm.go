package bytecode

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// RuntimeError is an error raised while running a chunk. Line is the
// source line of the failing instruction.
type RuntimeError struct {
	Line    int
	Message string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("[line %d] Runtime error: %s", e.Line, e.Message)
}

// VM executes bytecode chunks. Globals persist across calls to Interpret,
// so one VM can serve a whole REPL session.
type VM struct {
	// Current execution state
	chunk *Chunk  // Current bytecode chunk
	ip    int     // Instruction pointer
	start int     // Offset of the instruction being executed
	stack []Value // Value stack
	sp    int     // Stack pointer

	globals map[string]Value
	strings *InternTable

	// Out receives the output of print. Defaults to os.Stdout.
	Out io.Writer

	// Trace, when set, receives the stack and each instruction before it
	// executes.
	Trace io.Writer

	// MaxSteps bounds the instructions one Interpret may execute. Zero
	// means no limit.
	MaxSteps int
}

// NewVM creates a VM sharing strings with the compiler that produces its
// chunks.
func NewVM(strings *InternTable) *VM {
	if strings == nil {
		strings = NewInternTable()
	}
	return &VM{
		stack:   make([]Value, 256),
		globals: make(map[string]Value),
		strings: strings,
		Out:     os.Stdout,
	}
}

// Strings returns the VM's intern table.
func (vm *VM) Strings() *InternTable {
	return vm.strings
}

// Global returns the value bound to a global name.
func (vm *VM) Global(name string) (Value, bool) {
	v, ok := vm.globals[name]
	return v, ok
}

// GlobalNames returns the names of all defined globals.
func (vm *VM) GlobalNames() []string {
	names := make([]string, 0, len(vm.globals))
	for name := range vm.globals {
		names = append(names, name)
	}
	return names
}

// Interpret runs chunk to its OpRet and returns the value it returned.
// A user-level failure is a *RuntimeError; an undecodable instruction is
// a *DecodeError. Globals defined before a failure stay defined.
func (vm *VM) Interpret(chunk *Chunk) (Value, error) {
	vm.chunk = chunk
	vm.ip = 0
	vm.sp = 0

	result, err := vm.run()
	if err != nil {
		vm.sp = 0
	}
	return result, err
}

// run is the main execution loop.
func (vm *VM) run() (Value, error) {
	code := vm.chunk.Code
	steps := 0
	for {
		if vm.ip >= len(code) {
			// Chunks end with OpRet; running off the end returns nil.
			return Nil(), nil
		}

		if vm.Trace != nil {
			fmt.Fprintf(vm.Trace, "          %s\n", FormatStack(vm.stack[:vm.sp]))
			fmt.Fprintf(vm.Trace, "%04X  %s\n", vm.ip, vm.chunk.DisassembleInstruction(vm.ip))
		}

		vm.start = vm.ip
		steps++
		if vm.MaxSteps > 0 && steps > vm.MaxSteps {
			return Nil(), vm.runtimeError(fmt.Sprintf("Step limit of %d instructions exceeded.", vm.MaxSteps))
		}

		op, err := Decode(code[vm.ip])
		if err != nil {
			derr := err.(*DecodeError)
			derr.Offset = vm.ip
			return Nil(), derr
		}
		vm.ip++

		switch op {
		case OpRet:
			if vm.sp == 0 {
				return Nil(), nil
			}
			return vm.pop(), nil

		case OpPush:
			vm.push(vm.chunk.Constants[vm.readByte()])

		case OpPop:
			vm.pop()

		case OpTrue:
			vm.push(Bool(true))

		case OpFalse:
			vm.push(Bool(false))

		case OpNil:
			vm.push(Nil())

		// ============ Arithmetic ============
		case OpNeg:
			if !vm.peek(0).IsNumber() {
				return Nil(), vm.runtimeError("Operand must be a number.")
			}
			vm.push(Number(-vm.pop().AsNumber()))

		case OpAdd:
			b := vm.pop()
			a := vm.pop()
			switch {
			case a.IsNumber() && b.IsNumber():
				vm.push(Number(a.AsNumber() + b.AsNumber()))
			case a.IsString() && b.IsString():
				vm.push(Object(vm.strings.Intern(a.AsString().Chars + b.AsString().Chars)))
			default:
				return Nil(), vm.runtimeError("Operands must be two numbers or two strings.")
			}

		case OpSub, OpMul, OpDiv, OpGt, OpLt:
			b := vm.pop()
			a := vm.pop()
			if !a.IsNumber() || !b.IsNumber() {
				return Nil(), vm.runtimeError("Operands must be numbers.")
			}
			vm.push(numericOp(op, a.AsNumber(), b.AsNumber()))

		// ============ Logic ============
		case OpNot:
			vm.push(Bool(vm.pop().IsFalsey()))

		case OpEq:
			b := vm.pop()
			a := vm.pop()
			vm.push(Bool(Equal(a, b)))

		case OpPrint:
			fmt.Fprintln(vm.Out, vm.pop().String())

		// ============ Variables ============
		case OpDefineGlobal:
			name := vm.readName()
			vm.globals[name] = vm.peek(0)
			vm.pop()

		case OpGetGlobal:
			name := vm.readName()
			value, ok := vm.globals[name]
			if !ok {
				return Nil(), vm.runtimeError(fmt.Sprintf("Undefined variable '%s'.", name))
			}
			vm.push(value)

		case OpSetGlobal:
			name := vm.readName()
			if _, ok := vm.globals[name]; !ok {
				return Nil(), vm.runtimeError(fmt.Sprintf("Undefined variable '%s'.", name))
			}
			vm.globals[name] = vm.peek(0)

		case OpGetLocal:
			slot := int(vm.readByte())
			vm.push(vm.stack[slot])

		case OpSetLocal:
			slot := int(vm.readByte())
			vm.stack[slot] = vm.peek(0)

		// ============ Control Flow ============
		case OpJZ:
			offset := int(vm.readUint16())
			if vm.peek(0).IsFalsey() {
				vm.ip += offset
			}

		case OpJMP:
			offset := int(vm.readUint16())
			vm.ip += offset

		case OpLOOP:
			offset := int(vm.readUint16())
			vm.ip -= offset
		}
	}
}

func numericOp(op Opcode, a, b float64) Value {
	switch op {
	case OpSub:
		return Number(a - b)
	case OpMul:
		return Number(a * b)
	case OpDiv:
		return Number(a / b)
	case OpGt:
		return Bool(a > b)
	case OpLt:
		return Bool(a < b)
	}
	panic(fmt.Sprintf("numericOp: unexpected opcode %s", op))
}

func (vm *VM) runtimeError(message string) error {
	return &RuntimeError{Line: vm.chunk.Line(vm.start), Message: message}
}

// Stack helpers

func (vm *VM) push(val Value) {
	if vm.sp == len(vm.stack) {
		vm.stack = append(vm.stack, make([]Value, len(vm.stack))...)
	}
	vm.stack[vm.sp] = val
	vm.sp++
}

func (vm *VM) pop() Value {
	if vm.sp == 0 {
		panic("bytecode: stack underflow")
	}
	vm.sp--
	return vm.stack[vm.sp]
}

func (vm *VM) peek(distance int) Value {
	return vm.stack[vm.sp-1-distance]
}

// Bytecode reading helpers

func (vm *VM) readByte() byte {
	b := vm.chunk.Code[vm.ip]
	vm.ip++
	return b
}

func (vm *VM) readUint16() uint16 {
	val := binary.BigEndian.Uint16(vm.chunk.Code[vm.ip:])
	vm.ip += 2
	return val
}

func (vm *VM) readName() string {
	return vm.chunk.Constants[vm.readByte()].AsString().Chars
}
