package interpreter

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/chazu/lox/compiler"
)

// DefaultMaxCallDepth bounds nested calls before a StackOverflowError.
const DefaultMaxCallDepth = 1000

// ---------------------------------------------------------------------------
// Interpreter: evaluates resolved syntax trees
// ---------------------------------------------------------------------------

// Interpreter runs statements that have been through the resolver. Its
// global frame persists across calls to Interpret, so one Interpreter can
// serve a whole REPL session.
type Interpreter struct {
	env *Environment

	// Out receives the output of print. Defaults to os.Stdout.
	Out io.Writer

	// Echo prints the value of each global expression statement that is
	// not nil, as a REPL does.
	Echo bool

	// Now is the time source behind clock().
	Now func() time.Time

	// MaxCallDepth bounds nested calls.
	MaxCallDepth int

	// MaxSteps bounds the statements one Interpret or Evaluate may
	// execute. Zero means no limit.
	MaxSteps int

	callDepth int
	steps     int
}

// New creates an interpreter with the native functions defined.
func New() *Interpreter {
	in := &Interpreter{
		env:          NewEnvironment(),
		Out:          os.Stdout,
		Now:          time.Now,
		MaxCallDepth: DefaultMaxCallDepth,
	}
	for _, native := range natives() {
		in.env.DefineIn(GlobalFrame, native.Name(), native)
	}
	return in
}

func natives() []*Native {
	return []*Native{
		NewNative("clock", 0, clock),
	}
}

// NativeNames lists the globals every interpreter starts with, for
// seeding a resolver.
func NativeNames() []string {
	var names []string
	for _, n := range natives() {
		names = append(names, n.Name())
	}
	return names
}

// Environment exposes the interpreter's frames.
func (in *Interpreter) Environment() *Environment { return in.env }

// Global returns the value of a defined global.
func (in *Interpreter) Global(name string) (Value, bool) {
	v, err := in.env.GetIn(GlobalFrame, compiler.SyntheticToken(name, 0))
	if err != nil {
		return nil, false
	}
	return v, true
}

// GlobalNames returns the names bound in the global frame, sorted.
func (in *Interpreter) GlobalNames() []string {
	names := in.env.Names(GlobalFrame)
	sort.Strings(names)
	return names
}

// Interpret executes top-level statements one after another. A statement
// that fails does not stop the ones after it; the failures are returned
// together. One failure is returned as is, several as a *ComposedError.
// Exceeding MaxSteps stops the run.
func (in *Interpreter) Interpret(stmts []compiler.Stmt) error {
	in.steps = 0
	var errs []RuntimeError
	for _, stmt := range stmts {
		if err := in.Execute(stmt); err != nil {
			errs = append(errs, err.(RuntimeError))
			if _, ok := err.(*StepLimitError); ok {
				break
			}
		}
	}
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	return newComposedError(errs)
}

// Execute runs one statement. The error, if any, is a RuntimeError.
func (in *Interpreter) Execute(stmt compiler.Stmt) error {
	in.callDepth = 0
	err := in.execute(stmt)
	if _, ok := err.(*returnSignal); ok {
		panic(&FatalError{Message: "return escaped every function"})
	}
	return err
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (in *Interpreter) executeStmts(stmts []compiler.Stmt) error {
	for _, stmt := range stmts {
		if err := in.execute(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interpreter) executeBlock(stmts []compiler.Stmt) error {
	in.env.Push()
	defer in.env.Pop()
	return in.executeStmts(stmts)
}

func (in *Interpreter) execute(stmt compiler.Stmt) error {
	in.steps++
	if in.MaxSteps > 0 && in.steps > in.MaxSteps {
		return &StepLimitError{Line: stmt.Span().Start.Line, Limit: in.MaxSteps}
	}

	switch s := stmt.(type) {
	case *compiler.Block:
		return in.executeBlock(s.Statements)

	case *compiler.Class:
		return in.executeClass(s)

	case *compiler.Expression:
		v, err := in.evaluate(s.Expression)
		if err != nil {
			return err
		}
		if in.Echo && in.env.IsGlobal() && v != nil {
			fmt.Fprintln(in.Out, Stringify(v))
		}
		return nil

	case *compiler.Function:
		in.env.Capture(in.env.Current())
		in.env.Define(s.Name.Lexeme, newFunction(s, in.env.Current(), false))
		return nil

	case *compiler.If:
		cond, err := in.evaluate(s.Condition)
		if err != nil {
			return err
		}
		if IsTruthy(cond) {
			return in.execute(s.Then)
		}
		if s.Else != nil {
			return in.execute(s.Else)
		}
		return nil

	case *compiler.Print:
		v, err := in.evaluate(s.Expression)
		if err != nil {
			return err
		}
		fmt.Fprintln(in.Out, Stringify(v))
		return nil

	case *compiler.Return:
		var v Value
		if s.Value != nil {
			var err error
			if v, err = in.evaluate(s.Value); err != nil {
				return err
			}
		}
		return &returnSignal{value: v}

	case *compiler.While:
		for {
			cond, err := in.evaluate(s.Condition)
			if err != nil {
				return err
			}
			if !IsTruthy(cond) {
				return nil
			}
			if err := in.execute(s.Body); err != nil {
				return err
			}
		}

	case *compiler.Let:
		if s.Initializer == nil {
			in.env.Declare(s.Name.Lexeme)
			return nil
		}
		v, err := in.evaluate(s.Initializer)
		if err != nil {
			return err
		}
		in.env.Define(s.Name.Lexeme, v)
		return nil
	}
	panic(&FatalError{Message: fmt.Sprintf("unexpected statement %T", stmt)})
}

func (in *Interpreter) executeClass(s *compiler.Class) error {
	var superclass *Class
	if s.Superclass != nil {
		v, err := in.evaluate(s.Superclass)
		if err != nil {
			return err
		}
		class, ok := v.(*Class)
		if !ok {
			return &TypeError{Operator: s.Superclass.Name, Message: "Superclass must be a class."}
		}
		superclass = class
	}

	closure := in.env.Current()
	if superclass != nil {
		closure = in.env.NewFrame(closure)
		in.env.DefineIn(closure, "super", superclass)
	}
	in.env.Capture(closure)

	methods := make(map[string]*Function, len(s.Methods))
	for _, m := range s.Methods {
		methods[m.Name.Lexeme] = newFunction(m, closure, m.Name.Lexeme == s.Name.Lexeme)
	}
	in.env.Define(s.Name.Lexeme, NewClass(s.Name.Lexeme, superclass, methods))
	return nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// Evaluate computes the value of a resolved expression.
func (in *Interpreter) Evaluate(expr compiler.Expr) (Value, error) {
	in.callDepth = 0
	in.steps = 0
	return in.evaluate(expr)
}

func (in *Interpreter) evaluate(expr compiler.Expr) (Value, error) {
	switch e := expr.(type) {
	case *compiler.Literal:
		return e.Value, nil

	case *compiler.Grouping:
		return in.evaluate(e.Expression)

	case *compiler.Variable:
		return in.lookupVariable(e.Name, e.Depth)

	case *compiler.Assign:
		v, err := in.evaluate(e.Value)
		if err != nil {
			return nil, err
		}
		if err := in.assignVariable(e.Name, e.Depth, v); err != nil {
			return nil, err
		}
		return v, nil

	case *compiler.Unary:
		right, err := in.evaluate(e.Right)
		if err != nil {
			return nil, err
		}
		return unary(e.Operator, right)

	case *compiler.Binary:
		left, err := in.evaluate(e.Left)
		if err != nil {
			return nil, err
		}
		right, err := in.evaluate(e.Right)
		if err != nil {
			return nil, err
		}
		return binary(e.Operator, left, right)

	case *compiler.Logical:
		left, err := in.evaluate(e.Left)
		if err != nil {
			return nil, err
		}
		if e.Operator.Type == compiler.TokenOr {
			if IsTruthy(left) {
				return left, nil
			}
		} else if !IsTruthy(left) {
			return left, nil
		}
		return in.evaluate(e.Right)

	case *compiler.Ternary:
		cond, err := in.evaluate(e.Condition)
		if err != nil {
			return nil, err
		}
		if IsTruthy(cond) {
			return in.evaluate(e.Then)
		}
		return in.evaluate(e.Else)

	case *compiler.Call:
		return in.call(e)

	case *compiler.Get:
		obj, err := in.evaluate(e.Object)
		if err != nil {
			return nil, err
		}
		instance, ok := obj.(*Instance)
		if !ok {
			return nil, &TypeError{Operator: e.Name, Message: "Only instances have properties."}
		}
		return instance.Get(e.Name)

	case *compiler.Set:
		obj, err := in.evaluate(e.Object)
		if err != nil {
			return nil, err
		}
		instance, ok := obj.(*Instance)
		if !ok {
			return nil, &TypeError{Operator: e.Name, Message: "Only instances have fields."}
		}
		v, err := in.evaluate(e.Value)
		if err != nil {
			return nil, err
		}
		instance.Set(e.Name, v)
		return v, nil

	case *compiler.This:
		return in.lookupVariable(e.Keyword, e.Depth)

	case *compiler.Super:
		return in.super(e)
	}
	panic(&FatalError{Message: fmt.Sprintf("unexpected expression %T", expr)})
}

// lookupVariable reads a resolved name. An unresolved depth means the
// resolver was skipped or failed, which is an internal error.
func (in *Interpreter) lookupVariable(name compiler.Token, depth int) (Value, error) {
	if depth == compiler.Unresolved {
		panic(&FatalError{Name: name, Message: fmt.Sprintf("'%s' was never resolved", name.Lexeme)})
	}
	return in.env.GetAt(name, depth)
}

func (in *Interpreter) assignVariable(name compiler.Token, depth int, v Value) error {
	if depth == compiler.Unresolved {
		panic(&FatalError{Name: name, Message: fmt.Sprintf("'%s' was never resolved", name.Lexeme)})
	}
	return in.env.AssignAt(name, v, depth)
}

func (in *Interpreter) call(e *compiler.Call) (Value, error) {
	callee, err := in.evaluate(e.Callee)
	if err != nil {
		return nil, err
	}

	args := make([]Value, 0, len(e.Arguments))
	for _, arg := range e.Arguments {
		v, err := in.evaluate(arg)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	fn, ok := callee.(Callable)
	if !ok {
		return nil, &TypeError{Operator: e.Paren, Message: "Can only call functions and classes."}
	}
	if len(args) != fn.Arity() {
		return nil, &IncorrectArgumentsError{Paren: e.Paren, Expected: fn.Arity(), Actual: len(args)}
	}

	if in.callDepth >= in.MaxCallDepth {
		return nil, &StackOverflowError{Paren: e.Paren, Depth: in.callDepth}
	}
	in.callDepth++
	defer func() { in.callDepth-- }()
	return fn.Call(in, args)
}

func (in *Interpreter) super(e *compiler.Super) (Value, error) {
	v, err := in.lookupVariable(e.Keyword, e.Depth)
	if err != nil {
		return nil, err
	}
	superclass := v.(*Class)

	this, err := in.lookupVariable(compiler.SyntheticToken("this", e.Keyword.Line()), e.Depth-1)
	if err != nil {
		return nil, err
	}
	instance := this.(*Instance)

	method, ok := superclass.FindMethod(e.Method.Lexeme)
	if !ok {
		return nil, &UndefinedPropertyError{Class: superclass.Name(), Property: e.Method}
	}
	return method.Bind(instance), nil
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

func unary(op compiler.Token, right Value) (Value, error) {
	switch op.Type {
	case compiler.TokenMinus:
		n, ok := right.(float64)
		if !ok {
			return nil, &TypeError{Operator: op, Message: "Operand must be a number."}
		}
		return -n, nil
	case compiler.TokenBang:
		return !IsTruthy(right), nil
	}
	panic(&FatalError{Name: op, Message: fmt.Sprintf("unexpected unary operator %s", op.Lexeme)})
}

func binary(op compiler.Token, left, right Value) (Value, error) {
	switch op.Type {
	case compiler.TokenEqualEqual:
		return IsEqual(left, right), nil
	case compiler.TokenBangEqual:
		return !IsEqual(left, right), nil
	case compiler.TokenPlus:
		switch l := left.(type) {
		case float64:
			if r, ok := right.(float64); ok {
				return l + r, nil
			}
		case string:
			if r, ok := right.(string); ok {
				return l + r, nil
			}
		}
		return nil, &TypeError{Operator: op, Message: "Two numbers or two strings required."}
	}

	l, lok := left.(float64)
	r, rok := right.(float64)
	if !lok || !rok {
		return nil, &TypeError{Operator: op, Message: "Operands must be numbers."}
	}
	switch op.Type {
	case compiler.TokenMinus:
		return l - r, nil
	case compiler.TokenStar:
		return l * r, nil
	case compiler.TokenSlash:
		return l / r, nil
	case compiler.TokenGreater:
		return l > r, nil
	case compiler.TokenGreaterEqual:
		return l >= r, nil
	case compiler.TokenLess:
		return l < r, nil
	case compiler.TokenLessEqual:
		return l <= r, nil
	}
	panic(&FatalError{Name: op, Message: fmt.Sprintf("unexpected binary operator %s", op.Lexeme)})
}
