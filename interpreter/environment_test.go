package interpreter

import (
	"errors"
	"testing"

	"github.com/chazu/lox/compiler"
)

func tok(name string) compiler.Token {
	return compiler.SyntheticToken(name, 1)
}

func TestEnvironmentDefineAndGet(t *testing.T) {
	env := NewEnvironment()
	env.Define("a", 1.0)

	v, err := env.Get(tok("a"))
	if err != nil || v != 1.0 {
		t.Errorf("Get(a) = %v, %v; want 1", v, err)
	}

	_, err = env.Get(tok("missing"))
	var uerr *UndefinedVariableError
	if !errors.As(err, &uerr) {
		t.Errorf("Get(missing) error = %v, want *UndefinedVariableError", err)
	}
}

func TestEnvironmentDeclareIsUnreadableUntilAssigned(t *testing.T) {
	env := NewEnvironment()
	env.Declare("a")

	if _, err := env.GetAt(tok("a"), 0); err == nil {
		t.Error("reading a declared variable should fail")
	}
	if err := env.AssignAt(tok("a"), "x", 0); err != nil {
		t.Fatal(err)
	}
	if v, err := env.GetAt(tok("a"), 0); err != nil || v != "x" {
		t.Errorf("GetAt(a) = %v, %v; want x", v, err)
	}
}

func TestEnvironmentPushPopShadowing(t *testing.T) {
	env := NewEnvironment()
	env.Define("a", "outer")
	env.Push()
	if env.IsGlobal() {
		t.Error("IsGlobal() after Push = true")
	}
	env.Define("a", "inner")

	if v, _ := env.Get(tok("a")); v != "inner" {
		t.Errorf("Get(a) = %v, want inner", v)
	}
	if v, _ := env.GetAt(tok("a"), 1); v != "outer" {
		t.Errorf("GetAt(a, 1) = %v, want outer", v)
	}

	env.Pop()
	if !env.IsGlobal() {
		t.Error("IsGlobal() after Pop = false")
	}
	if v, _ := env.Get(tok("a")); v != "outer" {
		t.Errorf("Get(a) after Pop = %v, want outer", v)
	}
}

func TestEnvironmentAssignWalksChain(t *testing.T) {
	env := NewEnvironment()
	env.Define("a", 1.0)
	env.Push()
	env.Push()

	if err := env.Assign(tok("a"), 2.0); err != nil {
		t.Fatal(err)
	}
	if err := env.AssignAt(tok("a"), 3.0, 1); err == nil {
		t.Error("AssignAt the wrong depth should fail")
	}
	env.Pop()
	env.Pop()
	if v, _ := env.Get(tok("a")); v != 2.0 {
		t.Errorf("a = %v, want 2", v)
	}

	var uerr *UndefinedVariableError
	if err := env.Assign(tok("nope"), 1.0); !errors.As(err, &uerr) {
		t.Errorf("Assign(nope) error = %v, want *UndefinedVariableError", err)
	}
}

func TestEnvironmentPopGlobalPanics(t *testing.T) {
	defer func() {
		if _, ok := recover().(*FatalError); !ok {
			t.Error("popping the global frame should panic with *FatalError")
		}
	}()
	NewEnvironment().Pop()
}

func TestEnvironmentAncestorPastRootPanics(t *testing.T) {
	env := NewEnvironment()
	env.Push()
	defer func() {
		if _, ok := recover().(*FatalError); !ok {
			t.Error("a depth past the global frame should panic with *FatalError")
		}
	}()
	_, _ = env.GetAt(tok("a"), 2)
}

func TestEnvironmentReclaimsUncapturedFrames(t *testing.T) {
	env := NewEnvironment()
	env.Push()
	env.Push()
	env.Pop()
	env.Pop()
	if env.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after leaving uncaptured frames", env.Len())
	}

	captured := env.Push()
	env.Define("kept", true)
	env.Capture(captured)
	env.Pop()
	if env.Len() != 2 {
		t.Fatalf("Len() = %d, want the captured frame kept", env.Len())
	}
	if v, err := env.GetIn(captured, tok("kept")); err != nil || v != true {
		t.Errorf("GetIn(captured) = %v, %v", v, err)
	}
}

func TestEnvironmentEnterLeave(t *testing.T) {
	env := NewEnvironment()
	closure := env.Push()
	env.Define("x", "closed over")
	env.Capture(closure)
	env.Pop()

	previous := env.Enter(closure)
	if previous != GlobalFrame {
		t.Errorf("Enter returned %d, want the global frame", previous)
	}
	if v, err := env.GetAt(tok("x"), 1); err != nil || v != "closed over" {
		t.Errorf("GetAt(x, 1) = %v, %v", v, err)
	}
	env.Leave(previous)
	if env.Current() != GlobalFrame {
		t.Errorf("Current() = %d after Leave", env.Current())
	}
}
