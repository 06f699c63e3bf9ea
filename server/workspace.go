package server

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chazu/lox/compiler"
	"github.com/chazu/lox/driver"
	"github.com/chazu/lox/interpreter"
)

// DeclKind classifies a declaration found in a document.
type DeclKind int

const (
	DeclVariable DeclKind = iota
	DeclFunction
	DeclClass
	DeclMethod
	DeclParameter
)

func (k DeclKind) String() string {
	switch k {
	case DeclFunction:
		return "function"
	case DeclClass:
		return "class"
	case DeclMethod:
		return "method"
	case DeclParameter:
		return "parameter"
	}
	return "variable"
}

// Decl is a named declaration and the token that introduces it.
type Decl struct {
	Name      string
	Kind      DeclKind
	Token     compiler.Token
	Params    []string
	Container string // enclosing class for methods, function for parameters
	Super     string // superclass name for classes
	Methods   []string
	Global    bool
}

// Signature renders the declaration as it would appear in source.
func (d Decl) Signature() string {
	switch d.Kind {
	case DeclFunction:
		return fmt.Sprintf("fun %s(%s)", d.Name, strings.Join(d.Params, ", "))
	case DeclMethod:
		return fmt.Sprintf("%s.%s(%s)", d.Container, d.Name, strings.Join(d.Params, ", "))
	case DeclClass:
		if d.Super != "" {
			return fmt.Sprintf("class %s < %s", d.Name, d.Super)
		}
		return "class " + d.Name
	case DeclParameter:
		return fmt.Sprintf("%s (parameter of %s)", d.Name, d.Container)
	}
	return "let " + d.Name
}

// Analysis is the result of checking one document.
type Analysis struct {
	Text        string
	Diagnostics []compiler.Diagnostic
	Decls       []Decl
}

// Workspace holds per-document analyses and run sessions. It is owned by
// a Worker and must only be touched from the worker goroutine.
type Workspace struct {
	docs     map[string]*Analysis
	sessions *SessionStore
}

// NewWorkspace creates an empty workspace whose lox.run sessions use
// engine.
func NewWorkspace(engine driver.Engine) *Workspace {
	return &Workspace{
		docs:     make(map[string]*Analysis),
		sessions: NewSessionStore(engine),
	}
}

// Sessions returns the run sessions.
func (ws *Workspace) Sessions() *SessionStore { return ws.sessions }

// Analyze parses and resolves text, replacing any earlier analysis of uri.
func (ws *Workspace) Analyze(uri, text string) *Analysis {
	stmts, diags := compiler.Check(text, interpreter.NativeNames()...)
	a := &Analysis{
		Text:        text,
		Diagnostics: diags,
		Decls:       collectDecls(stmts),
	}
	ws.docs[uri] = a
	return a
}

// Get returns the last analysis of uri.
func (ws *Workspace) Get(uri string) (*Analysis, bool) {
	a, ok := ws.docs[uri]
	return a, ok
}

// Forget drops the analysis and run session of uri.
func (ws *Workspace) Forget(uri string) {
	delete(ws.docs, uri)
	ws.sessions.Destroy(uri)
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

func collectDecls(stmts []compiler.Stmt) []Decl {
	var decls []Decl
	var walk func(stmts []compiler.Stmt, global bool)
	walk = func(stmts []compiler.Stmt, global bool) {
		for _, stmt := range stmts {
			switch s := stmt.(type) {
			case *compiler.Let:
				decls = append(decls, Decl{Name: s.Name.Lexeme, Kind: DeclVariable, Token: s.Name, Global: global})
			case *compiler.Function:
				decls = append(decls, functionDecl(s, DeclFunction, "", global))
				decls = append(decls, paramDecls(s)...)
				walk(s.Body, false)
			case *compiler.Class:
				d := Decl{Name: s.Name.Lexeme, Kind: DeclClass, Token: s.Name, Global: global}
				if s.Superclass != nil {
					d.Super = s.Superclass.Name.Lexeme
				}
				for _, m := range s.Methods {
					d.Methods = append(d.Methods, m.Name.Lexeme)
				}
				decls = append(decls, d)
				for _, m := range s.Methods {
					decls = append(decls, functionDecl(m, DeclMethod, s.Name.Lexeme, false))
					decls = append(decls, paramDecls(m)...)
					walk(m.Body, false)
				}
			case *compiler.Block:
				walk(s.Statements, false)
			case *compiler.If:
				walk([]compiler.Stmt{s.Then}, false)
				if s.Else != nil {
					walk([]compiler.Stmt{s.Else}, false)
				}
			case *compiler.While:
				walk([]compiler.Stmt{s.Body}, false)
			}
		}
	}
	walk(stmts, true)
	return decls
}

func functionDecl(fn *compiler.Function, kind DeclKind, container string, global bool) Decl {
	d := Decl{Name: fn.Name.Lexeme, Kind: kind, Token: fn.Name, Container: container, Global: global}
	for _, p := range fn.Params {
		d.Params = append(d.Params, p.Lexeme)
	}
	return d
}

func paramDecls(fn *compiler.Function) []Decl {
	var out []Decl
	for _, p := range fn.Params {
		out = append(out, Decl{Name: p.Lexeme, Kind: DeclParameter, Token: p, Container: fn.Name.Lexeme})
	}
	return out
}

// Lookup returns the declarations named name, globals first.
func (a *Analysis) Lookup(name string) []Decl {
	var out []Decl
	for _, d := range a.Decls {
		if d.Name == name {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Global && !out[j].Global })
	return out
}

// References returns every identifier token in the document spelled name.
func (a *Analysis) References(name string) []compiler.Token {
	var refs []compiler.Token
	lexer := compiler.NewLexer(a.Text)
	for {
		tok := lexer.NextToken()
		if tok.Type == compiler.TokenEOF {
			break
		}
		if tok.Type == compiler.TokenIdentifier && tok.Lexeme == name {
			refs = append(refs, tok)
		}
	}
	return refs
}
