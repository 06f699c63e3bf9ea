package compiler

import (
	"strings"
	"testing"
)

// resolve parses and resolves source, failing on parse errors.
func resolve(t *testing.T, source string) ([]Stmt, []Diagnostic) {
	t.Helper()
	stmts, diags := Check(source, "clock")
	for _, d := range diags {
		if strings.Contains(d.Message, "Expect") {
			t.Fatalf("parse error: %v", d)
		}
	}
	return stmts, diags
}

func errorsOf(diags []Diagnostic) []string {
	var out []string
	for _, d := range diags {
		if d.Severity == SeverityError {
			out = append(out, d.Message)
		}
	}
	return out
}

func warningsOf(diags []Diagnostic) []string {
	var out []string
	for _, d := range diags {
		if d.Severity == SeverityWarning {
			out = append(out, d.Message)
		}
	}
	return out
}

func TestResolverErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"self reference", "let a = a;", "Can't read local variable in its own initializer."},
		{"local self reference", "{ let b = b; }", "Can't read local variable in its own initializer."},
		{"duplicate local", "{ let a = 1; let a = 2; print a; }", "Already a variable with this name in this scope."},
		{"duplicate param", "fun f(a, a) { print a; }", "Already a variable with this name in this scope."},
		{"top-level return", "return 1;", "Can't return from top-level code."},
		{"initializer value", "class A { A() { return 1; } }", "Can't return a value from an initializer."},
		{"this outside class", "print this;", "Can't use 'this' outside of a class."},
		{"this in function", "fun f() { return this; }", "Can't use 'this' outside of a class."},
		{"super outside class", "print super.x;", "Can't use 'super' outside of a class."},
		{"super without superclass", "class A { go() { super.go(); } }", "Can't use 'super' in a class with no superclass."},
		{"inherit self", "class A < A {}", "A class can't inherit from itself."},
		{"undefined", "print nope;", "Undefined variable 'nope'."},
		{"undefined assign", "nope = 1;", "Undefined variable 'nope'."},
		{"later global at top level", "print later; let later = 1;", "Undefined variable 'later'."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, diags := resolve(t, tc.source)
			errs := errorsOf(diags)
			found := false
			for _, e := range errs {
				if e == tc.want {
					found = true
				}
			}
			if !found {
				t.Errorf("errors = %v, want %q", errs, tc.want)
			}
		})
	}
}

func TestResolverAccepts(t *testing.T) {
	tests := []string{
		"let a = 1; let a = a + 1; print a;",
		"let a; a = 2; print a;",
		"class A { A() { return; } }",
		"fun f() { return g(); } fun g() { return 1; }",
		"class A { go() { return this; } } class B < A { go() { return super.go(); } }",
		"print clock();",
		"fun outer() { let x = 1; fun inner() { return x; } return inner; }",
	}

	for _, source := range tests {
		_, diags := resolve(t, source)
		if errs := errorsOf(diags); len(errs) > 0 {
			t.Errorf("Check(%q) errors = %v", source, errs)
		}
	}
}

func TestResolverDepths(t *testing.T) {
	stmts, diags := resolve(t, `
let g = 0;
{
  let a = 1;
  {
    print a;
    print g;
  }
}
`)
	if errs := errorsOf(diags); len(errs) > 0 {
		t.Fatalf("errors: %v", errs)
	}

	outer := stmts[1].(*Block)
	inner := outer.Statements[1].(*Block)
	readA := inner.Statements[0].(*Print).Expression.(*Variable)
	readG := inner.Statements[1].(*Print).Expression.(*Variable)

	if readA.Depth != 1 {
		t.Errorf("depth of a = %d, want 1", readA.Depth)
	}
	if readG.Depth != 2 {
		t.Errorf("depth of g = %d, want 2", readG.Depth)
	}
}

func TestResolverMethodDepths(t *testing.T) {
	stmts, diags := resolve(t, `
class A { m() { return 1; } }
class B < A {
  m() { return super.m() + this.n; }
}
`)
	if errs := errorsOf(diags); len(errs) > 0 {
		t.Fatalf("errors: %v", errs)
	}

	method := stmts[1].(*Class).Methods[0]
	sum := method.Body[0].(*Return).Value.(*Binary)
	sup := sum.Left.(*Call).Callee.(*Super)
	this := sum.Right.(*Get).Object.(*This)

	// function scope -> this scope -> super scope
	if this.Depth != 1 {
		t.Errorf("this depth = %d, want 1", this.Depth)
	}
	if sup.Depth != 2 {
		t.Errorf("super depth = %d, want 2", sup.Depth)
	}
}

func TestResolverUnusedLocalsWarnOncePerScope(t *testing.T) {
	_, diags := resolve(t, `
{
  let a = 1;
  let b = 2;
  let c = 3;
  print b;
}
fun f(unusedParam) {}
let unusedGlobal = 1;
`)
	if errs := errorsOf(diags); len(errs) > 0 {
		t.Fatalf("errors: %v", errs)
	}
	warnings := warningsOf(diags)
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want 1", warnings)
	}
	if warnings[0] != "Unused local variable(s): a, c." {
		t.Errorf("warning = %q", warnings[0])
	}
}

func TestResolverWarningsDoNotFail(t *testing.T) {
	report := &Reporter{}
	stmts := NewParser("{ let x = 1; }", report).ParseProgram()
	NewResolver(report).Resolve(stmts)
	if err := report.Err(); err != nil {
		t.Errorf("Err() = %v, want nil for warnings only", err)
	}
	if len(report.Diagnostics()) != 1 {
		t.Errorf("diagnostics = %v, want 1 warning", report.Diagnostics())
	}
}

func TestResolverPersistsGlobalsAcrossCalls(t *testing.T) {
	r := NewResolver(nil)

	report := &Reporter{}
	r.SetReporter(report)
	stmts, _ := Parse("let x = 1;")
	r.Resolve(stmts)

	report = &Reporter{}
	r.SetReporter(report)
	stmts, _ = Parse("print x;")
	r.Resolve(stmts)
	if report.HadError() {
		t.Errorf("second line errors: %v", report.Diagnostics())
	}

	got := r.Globals()
	if len(got) != 1 || got[0] != "x" {
		t.Errorf("Globals() = %v, want [x]", got)
	}
}
