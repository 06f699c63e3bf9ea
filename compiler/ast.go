package compiler

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for Lox
// ---------------------------------------------------------------------------

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// Unresolved is the depth of a variable reference the resolver has not
// annotated. Evaluating such a reference is an internal error.
const Unresolved = -1

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// Assign represents `name = value`.
type Assign struct {
	SpanVal Span
	Name    Token
	Value   Expr
	Depth   int
}

func (n *Assign) Span() Span { return n.SpanVal }
func (n *Assign) node()      {}
func (n *Assign) expr()      {}

// Binary represents an arithmetic, comparison or equality operation.
type Binary struct {
	SpanVal  Span
	Left     Expr
	Operator Token
	Right    Expr
}

func (n *Binary) Span() Span { return n.SpanVal }
func (n *Binary) node()      {}
func (n *Binary) expr()      {}

// Call represents a call expression. Paren is the closing parenthesis and
// locates runtime errors.
type Call struct {
	SpanVal   Span
	Callee    Expr
	Paren     Token
	Arguments []Expr
}

func (n *Call) Span() Span { return n.SpanVal }
func (n *Call) node()      {}
func (n *Call) expr()      {}

// Get represents property access `object.name`.
type Get struct {
	SpanVal Span
	Object  Expr
	Name    Token
}

func (n *Get) Span() Span { return n.SpanVal }
func (n *Get) node()      {}
func (n *Get) expr()      {}

// Grouping represents a parenthesized expression.
type Grouping struct {
	SpanVal    Span
	Expression Expr
}

func (n *Grouping) Span() Span { return n.SpanVal }
func (n *Grouping) node()      {}
func (n *Grouping) expr()      {}

// Literal represents nil, a boolean, a number or a string. Value holds
// nil, bool, float64 or string.
type Literal struct {
	SpanVal Span
	Value   interface{}
}

func (n *Literal) Span() Span { return n.SpanVal }
func (n *Literal) node()      {}
func (n *Literal) expr()      {}

// Logical represents `and` / `or`, which short-circuit.
type Logical struct {
	SpanVal  Span
	Left     Expr
	Operator Token
	Right    Expr
}

func (n *Logical) Span() Span { return n.SpanVal }
func (n *Logical) node()      {}
func (n *Logical) expr()      {}

// Set represents property assignment `object.name = value`.
type Set struct {
	SpanVal Span
	Object  Expr
	Name    Token
	Value   Expr
}

func (n *Set) Span() Span { return n.SpanVal }
func (n *Set) node()      {}
func (n *Set) expr()      {}

// Super represents `super.method`.
type Super struct {
	SpanVal Span
	Keyword Token
	Method  Token
	Depth   int
}

func (n *Super) Span() Span { return n.SpanVal }
func (n *Super) node()      {}
func (n *Super) expr()      {}

// This represents the `this` keyword.
type This struct {
	SpanVal Span
	Keyword Token
	Depth   int
}

func (n *This) Span() Span { return n.SpanVal }
func (n *This) node()      {}
func (n *This) expr()      {}

// Unary represents `-x` or `!x`.
type Unary struct {
	SpanVal  Span
	Operator Token
	Right    Expr
}

func (n *Unary) Span() Span { return n.SpanVal }
func (n *Unary) node()      {}
func (n *Unary) expr()      {}

// Ternary represents `condition ? then : else`.
type Ternary struct {
	SpanVal   Span
	Condition Expr
	Question  Token
	Then      Expr
	Else      Expr
}

func (n *Ternary) Span() Span { return n.SpanVal }
func (n *Ternary) node()      {}
func (n *Ternary) expr()      {}

// Variable represents a variable reference.
type Variable struct {
	SpanVal Span
	Name    Token
	Depth   int
}

func (n *Variable) Span() Span { return n.SpanVal }
func (n *Variable) node()      {}
func (n *Variable) expr()      {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// Block represents `{ ... }`, which opens a new scope.
type Block struct {
	SpanVal    Span
	Statements []Stmt
}

func (n *Block) Span() Span { return n.SpanVal }
func (n *Block) node()      {}
func (n *Block) stmt()      {}

// Class represents a class declaration. Superclass is nil when the class
// does not inherit.
type Class struct {
	SpanVal    Span
	Name       Token
	Superclass *Variable
	Methods    []*Function
}

func (n *Class) Span() Span { return n.SpanVal }
func (n *Class) node()      {}
func (n *Class) stmt()      {}

// Expression represents an expression evaluated for its effect.
type Expression struct {
	SpanVal    Span
	Expression Expr
}

func (n *Expression) Span() Span { return n.SpanVal }
func (n *Expression) node()      {}
func (n *Expression) stmt()      {}

// Function represents a function or method declaration.
type Function struct {
	SpanVal Span
	Name    Token
	Params  []Token
	Body    []Stmt
}

func (n *Function) Span() Span { return n.SpanVal }
func (n *Function) node()      {}
func (n *Function) stmt()      {}

// If represents `if (cond) then else otherwise`. Else may be nil.
type If struct {
	SpanVal   Span
	Condition Expr
	Then      Stmt
	Else      Stmt
}

func (n *If) Span() Span { return n.SpanVal }
func (n *If) node()      {}
func (n *If) stmt()      {}

// Print represents `print expr;`.
type Print struct {
	SpanVal    Span
	Expression Expr
}

func (n *Print) Span() Span { return n.SpanVal }
func (n *Print) node()      {}
func (n *Print) stmt()      {}

// Return represents `return [value];`. Value may be nil.
type Return struct {
	SpanVal Span
	Keyword Token
	Value   Expr
}

func (n *Return) Span() Span { return n.SpanVal }
func (n *Return) node()      {}
func (n *Return) stmt()      {}

// While represents a while loop. For loops are desugared into it.
type While struct {
	SpanVal   Span
	Condition Expr
	Body      Stmt
}

func (n *While) Span() Span { return n.SpanVal }
func (n *While) node()      {}
func (n *While) stmt()      {}

// Let represents `let name [= initializer];`. Initializer may be nil.
type Let struct {
	SpanVal     Span
	Name        Token
	Initializer Expr
}

func (n *Let) Span() Span { return n.SpanVal }
func (n *Let) node()      {}
func (n *Let) stmt()      {}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// tokenSpan returns the span covered by a single token.
func tokenSpan(tok Token) Span {
	end := tok.Pos
	end.Offset = tok.Pos.End
	end.Column += tok.Pos.End - tok.Pos.Offset
	return Span{Start: tok.Pos, End: end}
}

// joinSpans returns the span from the start of a to the end of b.
func joinSpans(a, b Span) Span {
	return Span{Start: a.Start, End: b.End}
}

// Contains reports whether the byte offset lies inside the span.
func (s Span) Contains(offset int) bool {
	return offset >= s.Start.Offset && offset < s.End.Offset
}
