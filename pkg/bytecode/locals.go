package bytecode

import (
	"errors"

	"github.com/chazu/lox/compiler"
)

// MaxLocals is the number of locals that may be live at once. Slots are
// addressed by a single byte operand.
const MaxLocals = 255

// uninitialized marks a local that is declared but whose initializer has
// not finished compiling.
const uninitialized = -1

var (
	ErrTooManyLocals     = errors.New("Too many local variables in function.")
	ErrDuplicateLocal    = errors.New("Already a variable with this name in this scope.")
	ErrReadInInitializer = errors.New("Can't read local variable in its own initializer.")
)

// Local is one entry in the compiler's local table.
type Local struct {
	Name  compiler.Token
	Depth int
}

// LocalTable tracks block-scoped variables during compilation. The
// position of a local in the table is its VM stack slot.
type LocalTable struct {
	locals []Local
	depth  int
}

// Depth returns the current block nesting depth. Zero is global scope.
func (t *LocalTable) Depth() int { return t.depth }

// Len returns the number of live locals.
func (t *LocalTable) Len() int { return len(t.locals) }

// At returns the local in slot.
func (t *LocalTable) At(slot int) Local { return t.locals[slot] }

// BeginScope enters a block.
func (t *LocalTable) BeginScope() {
	t.depth++
}

// EndScope leaves a block and returns how many locals went out of scope.
// The caller emits one OpPop for each.
func (t *LocalTable) EndScope() int {
	t.depth--
	n := 0
	for len(t.locals) > 0 && t.locals[len(t.locals)-1].Depth > t.depth {
		t.locals = t.locals[:len(t.locals)-1]
		n++
	}
	return n
}

// Declare adds an uninitialized local in the current scope.
func (t *LocalTable) Declare(name compiler.Token) error {
	for i := len(t.locals) - 1; i >= 0; i-- {
		local := t.locals[i]
		if local.Depth != uninitialized && local.Depth < t.depth {
			break
		}
		if local.Name.Lexeme == name.Lexeme {
			return ErrDuplicateLocal
		}
	}
	if len(t.locals) >= MaxLocals {
		return ErrTooManyLocals
	}
	t.locals = append(t.locals, Local{Name: name, Depth: uninitialized})
	return nil
}

// MarkInitialized finishes the most recently declared local.
func (t *LocalTable) MarkInitialized() {
	if len(t.locals) == 0 {
		return
	}
	t.locals[len(t.locals)-1].Depth = t.depth
}

// Resolve finds the innermost local called name and returns its slot.
// found is false for names that must be globals.
func (t *LocalTable) Resolve(name string) (slot int, found bool, err error) {
	for i := len(t.locals) - 1; i >= 0; i-- {
		if t.locals[i].Name.Lexeme == name {
			if t.locals[i].Depth == uninitialized {
				return i, true, ErrReadInInitializer
			}
			return i, true, nil
		}
	}
	return 0, false, nil
}
