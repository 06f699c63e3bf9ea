package interpreter

import (
	"errors"
	"fmt"

	"github.com/chazu/lox/compiler"
)

// ---------------------------------------------------------------------------
// Callables
// ---------------------------------------------------------------------------

// Callable is anything a call expression can invoke.
type Callable interface {
	Name() string
	Arity() int
	Call(in *Interpreter, args []Value) (Value, error)
	String() string
}

// Native is a function implemented in Go.
type Native struct {
	name  string
	arity int
	fn    func(in *Interpreter, args []Value) (Value, error)
}

// NewNative wraps fn as a callable named name taking arity arguments.
func NewNative(name string, arity int, fn func(in *Interpreter, args []Value) (Value, error)) *Native {
	return &Native{name: name, arity: arity, fn: fn}
}

func (n *Native) Name() string { return n.name }
func (n *Native) Arity() int   { return n.arity }

func (n *Native) Call(in *Interpreter, args []Value) (Value, error) {
	return n.fn(in, args)
}

func (n *Native) String() string { return "<native fn>" }

// clock returns wall-clock seconds as a float.
func clock(in *Interpreter, _ []Value) (Value, error) {
	now := in.Now()
	return float64(now.UnixNano()) / 1e9, nil
}

// ---------------------------------------------------------------------------
// Function
// ---------------------------------------------------------------------------

// Function is a user-defined function or method together with the frame
// it closes over. A bound method also carries the instance that this
// refers to.
type Function struct {
	decl          *compiler.Function
	closure       FrameID
	this          *Instance
	isInitializer bool
}

func newFunction(decl *compiler.Function, closure FrameID, isInitializer bool) *Function {
	return &Function{decl: decl, closure: closure, isInitializer: isInitializer}
}

func (f *Function) Name() string { return f.decl.Name.Lexeme }
func (f *Function) Arity() int   { return len(f.decl.Params) }

func (f *Function) String() string { return fmt.Sprintf("<fn %s>", f.decl.Name.Lexeme) }

// Bind returns a copy of f with this bound to instance. The frame holding
// this is created per call, so binding allocates nothing in the arena.
func (f *Function) Bind(instance *Instance) *Function {
	return &Function{decl: f.decl, closure: f.closure, this: instance, isInitializer: f.isInitializer}
}

// Call runs the body in a fresh frame enclosed by the closure. A bound
// method gets a frame defining this between the closure and the body.
func (f *Function) Call(in *Interpreter, args []Value) (Value, error) {
	parent := f.closure
	if f.this != nil {
		previous := in.env.Enter(f.closure)
		defer in.env.Leave(previous)
		in.env.Define("this", f.this)
		parent = in.env.Current()
	}

	previous := in.env.Enter(parent)
	defer in.env.Leave(previous)

	for i, param := range f.decl.Params {
		in.env.Define(param.Lexeme, args[i])
	}

	err := in.executeStmts(f.decl.Body)
	var ret *returnSignal
	switch {
	case errors.As(err, &ret):
		if f.isInitializer {
			return f.this, nil
		}
		return ret.value, nil
	case err != nil:
		return nil, err
	}

	if f.isInitializer {
		return f.this, nil
	}
	return nil, nil
}

// returnSignal carries a return statement's value up to the enclosing
// Function.Call. It never escapes a call.
type returnSignal struct {
	value Value
}

func (r *returnSignal) Error() string { return "return outside of a function" }

// ---------------------------------------------------------------------------
// Class and Instance
// ---------------------------------------------------------------------------

// Class is a callable that constructs instances. Its initializer is the
// method named like the class.
type Class struct {
	name       string
	Superclass *Class
	methods    map[string]*Function
}

// NewClass creates a class. methods may be nil.
func NewClass(name string, superclass *Class, methods map[string]*Function) *Class {
	if methods == nil {
		methods = make(map[string]*Function)
	}
	return &Class{name: name, Superclass: superclass, methods: methods}
}

func (c *Class) Name() string   { return c.name }
func (c *Class) String() string { return c.name }

// FindMethod looks name up in c and then along the superclass chain.
func (c *Class) FindMethod(name string) (*Function, bool) {
	for k := c; k != nil; k = k.Superclass {
		if m, ok := k.methods[name]; ok {
			return m, true
		}
	}
	return nil, false
}

// initializer returns the nearest class's own initializer, so a subclass
// without one is constructed by its superclass's.
func (c *Class) initializer() *Function {
	for k := c; k != nil; k = k.Superclass {
		if m, ok := k.methods[k.name]; ok {
			return m
		}
	}
	return nil
}

// Arity is the initializer's arity, or zero without one.
func (c *Class) Arity() int {
	if init := c.initializer(); init != nil {
		return init.Arity()
	}
	return 0
}

// Call constructs an instance and runs the initializer bound to it. The
// result is always the new instance.
func (c *Class) Call(in *Interpreter, args []Value) (Value, error) {
	instance := NewInstance(c)
	if init := c.initializer(); init != nil {
		if _, err := init.Bind(instance).Call(in, args); err != nil {
			return nil, err
		}
	}
	return instance, nil
}

// Instance is an object with fields, created by calling a Class.
type Instance struct {
	class  *Class
	fields map[string]Value
}

// NewInstance creates an instance of class with no fields.
func NewInstance(class *Class) *Instance {
	return &Instance{class: class, fields: make(map[string]Value)}
}

// Class returns the instance's class.
func (i *Instance) Class() *Class { return i.class }

func (i *Instance) String() string { return i.class.name + " instance" }

// Get returns a field, or else a method bound to i.
func (i *Instance) Get(name compiler.Token) (Value, error) {
	if v, ok := i.fields[name.Lexeme]; ok {
		return v, nil
	}
	if m, ok := i.class.FindMethod(name.Lexeme); ok {
		return m.Bind(i), nil
	}
	return nil, &UndefinedPropertyError{Class: i.class.name, Property: name}
}

// Set creates or replaces a field.
func (i *Instance) Set(name compiler.Token, value Value) {
	i.fields[name.Lexeme] = value
}
