package compiler

import (
	"testing"
)

var fuzzSeeds = []string{
	// Tokens
	`( ) { } , . - + ; / * ? : ! != = == > >= < <=`,
	`42`, `3.14`, `"hello"`, `""`, "\"multi\nline\"",
	`foo`, `_x1`, `and class else false fun for if nil or print return super this true let while`,
	// Comments
	"// comment\nprint 1;",
	// Statements
	`let a = 1; print a;`,
	`{ let a = 1; { let a = 2; print a; } print a; }`,
	`if (a) print 1; else print 2;`,
	`while (i < 10) i = i + 1;`,
	`for (let i = 0; i < 3; i = i + 1) print i;`,
	`print a ? b : c ? d : e;`,
	`fun f(a, b) { return a + b; } print f(1, 2);`,
	`class A { init() { this.x = 1; } } class B < A { go() { return super.go(); } }`,
	// Broken input
	``, `(`, `)`, `{`, `}`, `;`, `=`, `let`, `let =`, `print`, `"open`, `@#$`,
	`a + b = c;`, `class A < A {}`, `return 1;`, `print this;`,
}

// ---------------------------------------------------------------------------
// FuzzLexer: ensure the lexer never panics on arbitrary input.
// ---------------------------------------------------------------------------

func FuzzLexer(f *testing.F) {
	for _, s := range fuzzSeeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, data string) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("lexer panicked on input %q: %v", data, r)
			}
		}()

		l := NewLexer(data)
		for i := 0; i < len(data)+100; i++ {
			if tok := l.NextToken(); tok.Type == TokenEOF {
				return
			}
		}
		t.Fatalf("lexer did not reach EOF on input %q", data)
	})
}

// ---------------------------------------------------------------------------
// FuzzCheck: parsing and resolving never panic. Diagnostics are acceptable.
// ---------------------------------------------------------------------------

func FuzzCheck(f *testing.F) {
	for _, s := range fuzzSeeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, data string) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("Check panicked on input %q: %v", data, r)
			}
		}()

		Check(data, "clock")
	})
}
