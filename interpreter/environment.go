package interpreter

import (
	"fmt"

	"github.com/chazu/lox/compiler"
)

// ---------------------------------------------------------------------------
// Environment: arena of scope frames addressed by index
// ---------------------------------------------------------------------------

// FrameID addresses one frame in an Environment's arena.
type FrameID int

// GlobalFrame is the root frame. It is never popped.
const GlobalFrame FrameID = 0

const noParent FrameID = -1

// Variable is one binding in a frame. A declared but unassigned variable
// has Defined == false and cannot be read.
type Variable struct {
	Defined bool
	Value   Value
}

type frame struct {
	vars     map[string]*Variable
	parent   FrameID
	captured bool
}

// Environment holds every scope frame created while a program runs.
// Closures refer to frames by FrameID, so a frame outlives the block or
// call that created it for as long as something captured it. Frames that
// were never captured are reclaimed when they are left, provided they are
// the most recently created.
type Environment struct {
	frames  []frame
	current FrameID
}

// NewEnvironment creates an environment holding only the global frame.
func NewEnvironment() *Environment {
	return &Environment{
		frames: []frame{{vars: make(map[string]*Variable), parent: noParent}},
	}
}

// Current returns the innermost active frame.
func (e *Environment) Current() FrameID { return e.current }

// IsGlobal reports whether execution is at global scope.
func (e *Environment) IsGlobal() bool { return e.current == GlobalFrame }

// Len returns the number of frames held in the arena.
func (e *Environment) Len() int { return len(e.frames) }

// NewFrame allocates a frame enclosed by parent without entering it.
func (e *Environment) NewFrame(parent FrameID) FrameID {
	e.frames = append(e.frames, frame{vars: make(map[string]*Variable), parent: parent})
	return FrameID(len(e.frames) - 1)
}

// Push enters a new frame enclosed by the current one.
func (e *Environment) Push() FrameID {
	e.current = e.NewFrame(e.current)
	return e.current
}

// Pop leaves the current frame for its parent. Popping the global frame
// is an internal error.
func (e *Environment) Pop() {
	if e.current == GlobalFrame {
		panic(&FatalError{Message: "attempted to pop the global frame"})
	}
	e.Leave(e.frames[e.current].parent)
}

// Enter makes a new frame enclosed by parent current and returns the
// frame that was current before, for Leave.
func (e *Environment) Enter(parent FrameID) (previous FrameID) {
	previous = e.current
	e.current = e.NewFrame(parent)
	return previous
}

// Leave makes previous current again. The frame being left is reclaimed
// when nothing captured it and nothing was allocated after it.
func (e *Environment) Leave(previous FrameID) {
	left := e.current
	e.current = previous
	if int(left) == len(e.frames)-1 && left != GlobalFrame && !e.frames[left].captured {
		e.frames = e.frames[:left]
	}
}

// Capture marks id as referenced by a closure.
func (e *Environment) Capture(id FrameID) {
	e.frames[id].captured = true
}

// Define binds name to value in the current frame, replacing any previous
// binding there.
func (e *Environment) Define(name string, value Value) {
	e.DefineIn(e.current, name, value)
}

// DefineIn binds name to value in frame id.
func (e *Environment) DefineIn(id FrameID, name string, value Value) {
	e.frames[id].vars[name] = &Variable{Defined: true, Value: value}
}

// Declare binds name in the current frame without a value. Reading it
// fails until it is assigned.
func (e *Environment) Declare(name string) {
	e.frames[e.current].vars[name] = &Variable{}
}

// Get looks name up through the whole chain, innermost frame first.
func (e *Environment) Get(name compiler.Token) (Value, error) {
	for id := e.current; id != noParent; id = e.frames[id].parent {
		if v, ok := e.frames[id].vars[name.Lexeme]; ok {
			if !v.Defined {
				return nil, &UndefinedVariableError{Name: name}
			}
			return v.Value, nil
		}
	}
	return nil, &UndefinedVariableError{Name: name}
}

// Assign rebinds the innermost existing name.
func (e *Environment) Assign(name compiler.Token, value Value) error {
	for id := e.current; id != noParent; id = e.frames[id].parent {
		if v, ok := e.frames[id].vars[name.Lexeme]; ok {
			v.Defined = true
			v.Value = value
			return nil
		}
	}
	return &UndefinedVariableError{Name: name}
}

// Ancestor returns the frame depth links above from. Walking past the
// global frame means resolver and interpreter disagree; it panics with a
// *FatalError.
func (e *Environment) Ancestor(from FrameID, depth int, name compiler.Token) FrameID {
	id := from
	for i := 0; i < depth; i++ {
		id = e.frames[id].parent
		if id == noParent {
			panic(&FatalError{
				Name:    name,
				Message: fmt.Sprintf("'%s' resolved %d frames deep, past the global frame", name.Lexeme, depth),
			})
		}
	}
	return id
}

// GetAt reads name from the frame exactly depth links above the current
// one.
func (e *Environment) GetAt(name compiler.Token, depth int) (Value, error) {
	return e.GetIn(e.Ancestor(e.current, depth, name), name)
}

// GetIn reads name from frame id only.
func (e *Environment) GetIn(id FrameID, name compiler.Token) (Value, error) {
	v, ok := e.frames[id].vars[name.Lexeme]
	if !ok || !v.Defined {
		return nil, &UndefinedVariableError{Name: name}
	}
	return v.Value, nil
}

// AssignAt rebinds name in the frame exactly depth links above the
// current one.
func (e *Environment) AssignAt(name compiler.Token, value Value, depth int) error {
	id := e.Ancestor(e.current, depth, name)
	v, ok := e.frames[id].vars[name.Lexeme]
	if !ok {
		return &UndefinedVariableError{Name: name}
	}
	v.Defined = true
	v.Value = value
	return nil
}

// Names returns the names bound in frame id, in no particular order.
func (e *Environment) Names(id FrameID) []string {
	names := make([]string, 0, len(e.frames[id].vars))
	for name := range e.frames[id].vars {
		names = append(names, name)
	}
	return names
}
