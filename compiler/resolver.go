package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// ---------------------------------------------------------------------------
// Resolver: static scope analysis for the tree-walk interpreter
// ---------------------------------------------------------------------------

// FunctionType tracks what kind of function body is being resolved.
type FunctionType int

const (
	FunctionNone FunctionType = iota
	FunctionPlain
	FunctionMethod
	FunctionInitializer
)

// ClassType tracks what kind of class body is being resolved.
type ClassType int

const (
	ClassNone ClassType = iota
	ClassPlain
	ClassSubclass
)

type bindingKind int

const (
	bindingLet bindingKind = iota
	bindingParam
	bindingFunction
	bindingClass
	bindingImplicit // this, super and known globals
)

type binding struct {
	name    Token
	kind    bindingKind
	defined bool
	used    bool
}

// scope is one lexical scope. order keeps declaration order for warnings.
type scope struct {
	names map[string]*binding
	order []*binding
}

func newScope() *scope {
	return &scope{names: make(map[string]*binding)}
}

func (s *scope) declare(name Token, kind bindingKind) *binding {
	b := &binding{name: name, kind: kind}
	s.names[name.Lexeme] = b
	s.order = append(s.order, b)
	return b
}

// Resolver annotates every variable reference with the number of scopes
// between the reference and its declaration. Scope 0 is the global scope
// and survives across calls to Resolve, so a REPL can resolve one line at
// a time.
type Resolver struct {
	scopes  []*scope
	fn      FunctionType
	class   ClassType
	report  *Reporter
	hoisted map[string]bool
}

// NewResolver creates a resolver reporting into report.
func NewResolver(report *Reporter) *Resolver {
	if report == nil {
		report = &Reporter{}
	}
	return &Resolver{
		scopes: []*scope{newScope()},
		report: report,
	}
}

// SetReporter redirects diagnostics, keeping the global scope.
func (r *Resolver) SetReporter(report *Reporter) {
	r.report = report
}

// AddKnownGlobal declares a global that exists before any source runs,
// such as a native function.
func (r *Resolver) AddKnownGlobal(name string) {
	b := r.scopes[0].declare(SyntheticToken(name, 0), bindingImplicit)
	b.defined = true
	b.used = true
}

// Globals returns the names declared in the global scope, sorted.
func (r *Resolver) Globals() []string {
	names := make([]string, 0, len(r.scopes[0].names))
	for name := range r.scopes[0].names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve walks the statements of one program or REPL line.
func (r *Resolver) Resolve(stmts []Stmt) {
	r.hoisted = make(map[string]bool)
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *Let:
			r.hoisted[s.Name.Lexeme] = true
		case *Function:
			r.hoisted[s.Name.Lexeme] = true
		case *Class:
			r.hoisted[s.Name.Lexeme] = true
		}
	}

	for _, stmt := range stmts {
		r.resolveStmt(stmt)
	}
}

// ---------------------------------------------------------------------------
// Scopes
// ---------------------------------------------------------------------------

func (r *Resolver) innermost() *scope {
	return r.scopes[len(r.scopes)-1]
}

func (r *Resolver) isGlobal() bool {
	return len(r.scopes) == 1
}

func (r *Resolver) beginScope() {
	r.scopes = append(r.scopes, newScope())
}

func (r *Resolver) endScope() {
	s := r.innermost()
	r.scopes = r.scopes[:len(r.scopes)-1]

	var unused []string
	var first Token
	for _, b := range s.order {
		if b.kind != bindingLet || b.used {
			continue
		}
		if len(unused) == 0 {
			first = b.name
		}
		unused = append(unused, b.name.Lexeme)
	}
	if len(unused) > 0 {
		r.report.WarnAt(first, fmt.Sprintf("Unused local variable(s): %s.", strings.Join(unused, ", ")))
	}
}

func (r *Resolver) declare(name Token, kind bindingKind) {
	s := r.innermost()
	if prev, exists := s.names[name.Lexeme]; exists {
		if !r.isGlobal() {
			r.report.ErrorAt(name, "Already a variable with this name in this scope.")
		} else if prev.defined {
			// A redeclared global keeps its old value visible to its own
			// initializer.
			prev.name = name
			prev.kind = kind
			return
		}
	}
	s.declare(name, kind)
}

func (r *Resolver) define(name Token) {
	if b, ok := r.innermost().names[name.Lexeme]; ok {
		b.defined = true
	}
}

// defineImplicit declares and defines a name the user never wrote.
func (r *Resolver) defineImplicit(name string) {
	b := r.innermost().declare(SyntheticToken(name, 0), bindingImplicit)
	b.defined = true
}

// resolveLocal returns the depth of name, or reports it as undefined.
func (r *Resolver) resolveLocal(name Token) int {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if b, ok := r.scopes[i].names[name.Lexeme]; ok {
			b.used = true
			return len(r.scopes) - 1 - i
		}
	}
	// Function bodies run after the enclosing program has declared its
	// globals, so they may refer to globals declared further down.
	if r.fn != FunctionNone && r.hoisted[name.Lexeme] {
		return len(r.scopes) - 1
	}
	r.report.ErrorAt(name, fmt.Sprintf("Undefined variable '%s'.", name.Lexeme))
	return Unresolved
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (r *Resolver) resolveStmts(stmts []Stmt) {
	for _, stmt := range stmts {
		r.resolveStmt(stmt)
	}
}

func (r *Resolver) resolveStmt(stmt Stmt) {
	switch s := stmt.(type) {
	case *Block:
		r.beginScope()
		r.resolveStmts(s.Statements)
		r.endScope()

	case *Class:
		r.resolveClass(s)

	case *Expression:
		r.resolveExpr(s.Expression)

	case *Function:
		r.declare(s.Name, bindingFunction)
		r.define(s.Name)
		r.resolveFunction(s, FunctionPlain)

	case *If:
		r.resolveExpr(s.Condition)
		r.resolveStmt(s.Then)
		if s.Else != nil {
			r.resolveStmt(s.Else)
		}

	case *Print:
		r.resolveExpr(s.Expression)

	case *Return:
		if r.fn == FunctionNone {
			r.report.ErrorAt(s.Keyword, "Can't return from top-level code.")
		}
		if s.Value != nil {
			if r.fn == FunctionInitializer {
				r.report.ErrorAt(s.Keyword, "Can't return a value from an initializer.")
			}
			r.resolveExpr(s.Value)
		}

	case *While:
		r.resolveExpr(s.Condition)
		r.resolveStmt(s.Body)

	case *Let:
		r.declare(s.Name, bindingLet)
		if s.Initializer != nil {
			r.resolveExpr(s.Initializer)
		}
		r.define(s.Name)

	default:
		panic(fmt.Sprintf("resolver: unexpected statement %T", stmt))
	}
}

func (r *Resolver) resolveClass(s *Class) {
	enclosing := r.class
	r.class = ClassPlain
	defer func() { r.class = enclosing }()

	r.declare(s.Name, bindingClass)
	r.define(s.Name)

	if s.Superclass != nil {
		if s.Superclass.Name.Lexeme == s.Name.Lexeme {
			r.report.ErrorAt(s.Superclass.Name, "A class can't inherit from itself.")
		}
		r.class = ClassSubclass
		r.resolveExpr(s.Superclass)

		r.beginScope()
		r.defineImplicit("super")
	}

	r.beginScope()
	r.defineImplicit("this")

	for _, method := range s.Methods {
		kind := FunctionMethod
		if method.Name.Lexeme == s.Name.Lexeme {
			kind = FunctionInitializer
		}
		r.resolveFunction(method, kind)
	}

	r.endScope()
	if s.Superclass != nil {
		r.endScope()
	}
}

func (r *Resolver) resolveFunction(fn *Function, kind FunctionType) {
	enclosing := r.fn
	r.fn = kind
	defer func() { r.fn = enclosing }()

	r.beginScope()
	for _, param := range fn.Params {
		r.declare(param, bindingParam)
		r.define(param)
	}
	r.resolveStmts(fn.Body)
	r.endScope()
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (r *Resolver) resolveExpr(expr Expr) {
	switch e := expr.(type) {
	case *Assign:
		r.resolveExpr(e.Value)
		e.Depth = r.resolveLocal(e.Name)

	case *Binary:
		r.resolveExpr(e.Left)
		r.resolveExpr(e.Right)

	case *Call:
		r.resolveExpr(e.Callee)
		for _, arg := range e.Arguments {
			r.resolveExpr(arg)
		}

	case *Get:
		r.resolveExpr(e.Object)

	case *Grouping:
		r.resolveExpr(e.Expression)

	case *Literal:

	case *Logical:
		r.resolveExpr(e.Left)
		r.resolveExpr(e.Right)

	case *Set:
		r.resolveExpr(e.Value)
		r.resolveExpr(e.Object)

	case *Super:
		switch r.class {
		case ClassNone:
			r.report.ErrorAt(e.Keyword, "Can't use 'super' outside of a class.")
			return
		case ClassPlain:
			r.report.ErrorAt(e.Keyword, "Can't use 'super' in a class with no superclass.")
			return
		}
		e.Depth = r.resolveLocal(e.Keyword)

	case *This:
		if r.class == ClassNone {
			r.report.ErrorAt(e.Keyword, "Can't use 'this' outside of a class.")
			return
		}
		e.Depth = r.resolveLocal(e.Keyword)

	case *Unary:
		r.resolveExpr(e.Right)

	case *Ternary:
		r.resolveExpr(e.Condition)
		r.resolveExpr(e.Then)
		r.resolveExpr(e.Else)

	case *Variable:
		if b, ok := r.innermost().names[e.Name.Lexeme]; ok && !b.defined {
			r.report.ErrorAt(e.Name, "Can't read local variable in its own initializer.")
			return
		}
		e.Depth = r.resolveLocal(e.Name)

	default:
		panic(fmt.Sprintf("resolver: unexpected expression %T", expr))
	}
}

// Check parses and resolves input with a fresh global scope seeded with
// globals. Resolution is skipped when parsing failed. The statements are
// returned with depths filled in along with every diagnostic produced.
func Check(input string, globals ...string) ([]Stmt, []Diagnostic) {
	report := &Reporter{}
	stmts := NewParser(input, report).ParseProgram()
	if report.HadError() {
		return stmts, report.Diagnostics()
	}
	r := NewResolver(report)
	for _, g := range globals {
		r.AddKnownGlobal(g)
	}
	r.Resolve(stmts)
	return stmts, report.Diagnostics()
}
