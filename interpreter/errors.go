package interpreter

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/chazu/lox/compiler"
)

// RuntimeError is an error raised while evaluating a program. Token
// locates it in the source.
type RuntimeError interface {
	error
	Token() compiler.Token
}

func runtimeMessage(tok compiler.Token, message string) string {
	return fmt.Sprintf("[line %d] Runtime error: %s", tok.Line(), message)
}

// TypeError is an operation applied to operands of the wrong type.
type TypeError struct {
	Operator compiler.Token
	Message  string
}

func (e *TypeError) Error() string         { return runtimeMessage(e.Operator, e.Message) }
func (e *TypeError) Token() compiler.Token { return e.Operator }

// UndefinedVariableError is a read or write of a name with no value.
type UndefinedVariableError struct {
	Name compiler.Token
}

func (e *UndefinedVariableError) Error() string {
	return runtimeMessage(e.Name, fmt.Sprintf("Undefined variable '%s'.", e.Name.Lexeme))
}

func (e *UndefinedVariableError) Token() compiler.Token { return e.Name }

// UndefinedPropertyError is a Get of a name that is neither a field nor a
// method of the instance's class.
type UndefinedPropertyError struct {
	Class    string
	Property compiler.Token
}

func (e *UndefinedPropertyError) Error() string {
	return runtimeMessage(e.Property,
		fmt.Sprintf("Undefined property '%s' for instance of class %s.", e.Property.Lexeme, e.Class))
}

func (e *UndefinedPropertyError) Token() compiler.Token { return e.Property }

// IncorrectArgumentsError is a call whose argument count differs from the
// callee's arity.
type IncorrectArgumentsError struct {
	Paren    compiler.Token
	Expected int
	Actual   int
}

func (e *IncorrectArgumentsError) Error() string {
	return runtimeMessage(e.Paren,
		fmt.Sprintf("Expected %d arguments but got %d.", e.Expected, e.Actual))
}

func (e *IncorrectArgumentsError) Token() compiler.Token { return e.Paren }

// StackOverflowError is a call nested deeper than MaxCallDepth.
type StackOverflowError struct {
	Paren compiler.Token
	Depth int
}

func (e *StackOverflowError) Error() string {
	return runtimeMessage(e.Paren, fmt.Sprintf("Stack overflow (%d nested calls).", e.Depth))
}

func (e *StackOverflowError) Token() compiler.Token { return e.Paren }

// StepLimitError stops a program that executed more than MaxSteps
// statements in one run.
type StepLimitError struct {
	Line  int
	Limit int
}

func (e *StepLimitError) Error() string {
	return runtimeMessage(e.Token(), fmt.Sprintf("Step limit of %d statements exceeded.", e.Limit))
}

func (e *StepLimitError) Token() compiler.Token { return compiler.SyntheticToken("", e.Line) }

// FatalError means the resolver and the interpreter disagree about the
// program. It is raised with panic, never returned.
type FatalError struct {
	Name    compiler.Token
	Message string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("internal error: %s", e.Message)
}

func (e *FatalError) Token() compiler.Token { return e.Name }

// ComposedError aggregates the runtime errors of independently executed
// top-level statements.
type ComposedError struct {
	errs []RuntimeError
	merr *multierror.Error
}

func newComposedError(errs []RuntimeError) *ComposedError {
	var merr *multierror.Error
	for _, err := range errs {
		merr = multierror.Append(merr, err)
	}
	merr.ErrorFormat = func(es []error) string {
		lines := make([]string, len(es))
		for i, err := range es {
			lines[i] = err.Error()
		}
		return strings.Join(lines, "\n")
	}
	return &ComposedError{errs: errs, merr: merr}
}

func (e *ComposedError) Error() string { return e.merr.Error() }

// Token locates the first aggregated error.
func (e *ComposedError) Token() compiler.Token { return e.errs[0].Token() }

// Errors returns the aggregated errors in execution order.
func (e *ComposedError) Errors() []RuntimeError { return e.errs }

// Unwrap lets errors.As reach the aggregated errors.
func (e *ComposedError) Unwrap() error { return e.merr }
