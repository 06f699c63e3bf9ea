package bytecode

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// runSource compiles and runs src on a fresh VM, returning what it
// printed and the value of its final OpRet.
func runSource(t *testing.T, src string) (string, Value, error) {
	t.Helper()
	table := NewInternTable()
	chunk, err := Compile(src, table)
	if err != nil {
		t.Fatalf("Compile(%q) error: %v", src, err)
	}
	var out bytes.Buffer
	vm := NewVM(table)
	vm.Out = &out
	v, err := vm.Interpret(chunk)
	return out.String(), v, err
}

// evalExpr compiles src as one expression and returns its value.
func evalExpr(t *testing.T, src string) (Value, error) {
	t.Helper()
	table := NewInternTable()
	chunk, err := CompileExpression(src, table)
	if err != nil {
		t.Fatalf("CompileExpression(%q) error: %v", src, err)
	}
	return NewVM(table).Interpret(chunk)
}

// chunkWithCode builds a chunk from raw bytes, all on line 1.
func chunkWithCode(code ...byte) *Chunk {
	c := NewChunk()
	for _, b := range code {
		c.Write(b, 1)
	}
	return c
}

// ============ Arithmetic Tests ============

func TestVMArithmetic(t *testing.T) {
	tests := []struct {
		src  string
		want float64
	}{
		{"1 + 2", 3},
		{"7 - 2", 5},
		{"2 - 7", -5},
		{"3 * 4", 12},
		{"9 / 2", 4.5},
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"-(3)", -3},
		{"--3", 3},
		{"10 - 2 - 3", 5},
	}

	for _, tt := range tests {
		v, err := evalExpr(t, tt.src)
		if err != nil {
			t.Errorf("%s: error %v", tt.src, err)
			continue
		}
		if !v.IsNumber() || v.AsNumber() != tt.want {
			t.Errorf("%s = %#v, want %v", tt.src, v, tt.want)
		}
	}
}

func TestVMStringConcatenationInterns(t *testing.T) {
	table := NewInternTable()
	chunk, err := CompileExpression(`"a" + "b"`, table)
	if err != nil {
		t.Fatal(err)
	}
	v, err := NewVM(table).Interpret(chunk)
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsString() || v.AsString().Chars != "ab" {
		t.Fatalf("result = %#v, want \"ab\"", v)
	}
	interned, ok := table.Lookup("ab")
	if !ok || interned != v.AsString() {
		t.Error("concatenation result should be interned in the shared table")
	}
}

func TestVMTypeErrors(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{`1 + "a"`, "Operands must be two numbers or two strings."},
		{`"a" - "b"`, "Operands must be numbers."},
		{`1 < nil`, "Operands must be numbers."},
		{`-"x"`, "Operand must be a number."},
		{`-true`, "Operand must be a number."},
	}

	for _, tt := range tests {
		_, err := evalExpr(t, tt.src)
		var rerr *RuntimeError
		if !errors.As(err, &rerr) {
			t.Errorf("%s: error = %v, want *RuntimeError", tt.src, err)
			continue
		}
		if rerr.Message != tt.want {
			t.Errorf("%s: message = %q, want %q", tt.src, rerr.Message, tt.want)
		}
		if rerr.Line != 1 {
			t.Errorf("%s: line = %d, want 1", tt.src, rerr.Line)
		}
	}
}

func TestVMRuntimeErrorLine(t *testing.T) {
	_, _, err := runSource(t, "let a = 1;\nlet b = 2;\nprint a + nil;")
	var rerr *RuntimeError
	if !errors.As(err, &rerr) {
		t.Fatalf("error = %v", err)
	}
	if rerr.Line != 3 {
		t.Errorf("line = %d, want 3", rerr.Line)
	}
}

// ============ Comparison and Logic Tests ============

func TestVMComparison(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{"1 < 2", true},
		{"2 < 1", false},
		{"2 > 1", true},
		{"1 <= 1", true},
		{"2 <= 1", false},
		{"1 >= 1", true},
		{"0 >= 1", false},
		{"1 == 1", true},
		{"1 != 1", false},
		{`"a" == "a"`, true},
		{`"a" != "b"`, true},
		{"nil == nil", true},
		{"nil == false", false},
		{`1 == "1"`, false},
		{"!nil", true},
		{"!true", false},
		{"true and false", false},
		{"false or true", true},
	}

	for _, tt := range tests {
		v, err := evalExpr(t, tt.src)
		if err != nil {
			t.Errorf("%s: error %v", tt.src, err)
			continue
		}
		if !v.IsBool() || v.AsBool() != tt.want {
			t.Errorf("%s = %#v, want %v", tt.src, v, tt.want)
		}
	}
}

func TestVMLogicalOperatorsReturnOperand(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"nil or 3", "3"},
		{"2 or 3", "2"},
		{"nil and 3", "nil"},
		{"2 and 3", "3"},
	}
	for _, tt := range tests {
		v, err := evalExpr(t, tt.src)
		if err != nil {
			t.Fatal(err)
		}
		if v.String() != tt.want {
			t.Errorf("%s = %v, want %s", tt.src, v, tt.want)
		}
	}
}

func TestVMZeroIsFalsey(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"!0", "true"},
		{"!1", "false"},
		{`!""`, "false"},
		{"0 ? 1 : 2", "2"},
		{"0 or 5", "5"},
	}
	for _, tt := range tests {
		v, err := evalExpr(t, tt.src)
		if err != nil {
			t.Fatal(err)
		}
		if v.String() != tt.want {
			t.Errorf("%s = %v, want %s", tt.src, v, tt.want)
		}
	}

	out, _, err := runSource(t, `if (0) print "truthy"; else print "falsey";`)
	if err != nil {
		t.Fatal(err)
	}
	if out != "falsey\n" {
		t.Errorf("if (0) printed %q, want falsey", out)
	}
}

func TestVMTernary(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"true ? 1 : 2", "1"},
		{"false ? 1 : 2", "2"},
		{"false ? 1 : true ? 2 : 3", "2"},
		{"nil ? 1 : nil ? 2 : 3", "3"},
	}
	for _, tt := range tests {
		v, err := evalExpr(t, tt.src)
		if err != nil {
			t.Fatal(err)
		}
		if v.String() != tt.want {
			t.Errorf("%s = %v, want %s", tt.src, v, tt.want)
		}
	}
}

// ============ Variable Tests ============

func TestVMGlobals(t *testing.T) {
	out, _, err := runSource(t, `
let a = 1;
let b;
print a;
print b;
a = a + 41;
print a;
b = a = 7;
print b;
`)
	if err != nil {
		t.Fatal(err)
	}
	if out != "1\nnil\n42\n7\n" {
		t.Errorf("output = %q", out)
	}
}

func TestVMUndefinedGlobal(t *testing.T) {
	tests := []string{"print nope;", "nope = 1;"}
	for _, src := range tests {
		_, _, err := runSource(t, src)
		var rerr *RuntimeError
		if !errors.As(err, &rerr) {
			t.Errorf("%s: error = %v, want *RuntimeError", src, err)
			continue
		}
		if rerr.Message != "Undefined variable 'nope'." {
			t.Errorf("%s: message = %q", src, rerr.Message)
		}
	}
}

func TestVMGlobalsPersistAcrossInterpret(t *testing.T) {
	table := NewInternTable()
	var out bytes.Buffer
	vm := NewVM(table)
	vm.Out = &out

	lines := []string{"let x = 1;", "print x + nil;", "x = x + 1;", "print x;"}
	for _, line := range lines {
		chunk, err := Compile(line, table)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = vm.Interpret(chunk)
	}
	if out.String() != "2\n" {
		t.Errorf("output = %q, want 2", out.String())
	}
	if v, ok := vm.Global("x"); !ok || v.AsNumber() != 2 {
		t.Errorf("Global(x) = %v, %v", v, ok)
	}
}

func TestVMLocalShadowing(t *testing.T) {
	out, _, err := runSource(t, "{ let a = 1; { let a = 2; print a; } print a; }")
	if err != nil {
		t.Fatal(err)
	}
	if out != "2\n1\n" {
		t.Errorf("output = %q, want \"2\\n1\\n\"", out)
	}
}

func TestVMLocalAssignment(t *testing.T) {
	out, _, err := runSource(t, `
let g = "global";
{
  let a = 1;
  let b = 2;
  a = b = a + b;
  print a;
  print b;
  print g;
}
`)
	if err != nil {
		t.Fatal(err)
	}
	if out != "3\n3\nglobal\n" {
		t.Errorf("output = %q", out)
	}
}

func TestVMLocalsArePopped(t *testing.T) {
	table := NewInternTable()
	chunk, err := Compile("{ let a = 1; let b = 2; }", table)
	if err != nil {
		t.Fatal(err)
	}
	pops := 0
	for offset := 0; offset < len(chunk.Code); {
		op := Opcode(chunk.Code[offset])
		if op == OpPop {
			pops++
		}
		offset += op.InstructionLen()
	}
	if pops != 2 {
		t.Errorf("pops = %d, want 2", pops)
	}

	vm := NewVM(table)
	if _, err := vm.Interpret(chunk); err != nil {
		t.Fatal(err)
	}
	if vm.sp != 0 {
		t.Errorf("stack depth after block = %d, want 0", vm.sp)
	}
}

// ============ Control Flow Tests ============

func TestVMIfElse(t *testing.T) {
	out, _, err := runSource(t, `
if (1 < 2) print "then"; else print "else";
if (1 > 2) print "then"; else print "else";
if (false) print "skipped";
print "done";
`)
	if err != nil {
		t.Fatal(err)
	}
	if out != "then\nelse\ndone\n" {
		t.Errorf("output = %q", out)
	}
}

func TestVMWhile(t *testing.T) {
	out, _, err := runSource(t, `
let i = 0;
while (i < 3) {
  print i;
  i = i + 1;
}
`)
	if err != nil {
		t.Fatal(err)
	}
	if out != "0\n1\n2\n" {
		t.Errorf("output = %q", out)
	}
}

func TestVMFor(t *testing.T) {
	out, _, err := runSource(t, `
let sum = 0;
for (let i = 1; i <= 4; i = i + 1) sum = sum + i;
print sum;
for (let j = 3; j; j = j - 1) print j;
`)
	if err != nil {
		t.Fatal(err)
	}
	if out != "10\n3\n2\n1\n" {
		t.Errorf("output = %q", out)
	}
}

func TestVMStackBalancedAfterStatements(t *testing.T) {
	table := NewInternTable()
	chunk, err := Compile(`
let x = 1;
x = 2;
if (x) { let y = x; } else {}
while (x > 0) x = x - 1;
for (let i = 0; i < 2; i = i + 1) {}
print x;
`, table)
	if err != nil {
		t.Fatal(err)
	}
	vm := NewVM(table)
	vm.Out = &bytes.Buffer{}
	if _, err := vm.Interpret(chunk); err != nil {
		t.Fatal(err)
	}
	if vm.sp != 0 {
		t.Errorf("stack depth = %d, want 0", vm.sp)
	}
}

// ============ Raw Bytecode Tests ============

func TestVMRetReturnsTopOrNil(t *testing.T) {
	v, err := NewVM(nil).Interpret(chunkWithCode(byte(OpRet)))
	if err != nil || !v.IsNil() {
		t.Errorf("empty RET = %#v, %v; want nil", v, err)
	}

	v, err = NewVM(nil).Interpret(chunkWithCode(byte(OpTrue), byte(OpRet)))
	if err != nil || !v.IsBool() || !v.AsBool() {
		t.Errorf("RET = %#v, %v; want true", v, err)
	}
}

func TestVMSubtractionOperandOrder(t *testing.T) {
	c := NewChunk()
	ten, _ := c.AddConstant(Number(10))
	three, _ := c.AddConstant(Number(3))
	c.WriteOpWithOperand(OpPush, ten, 1)
	c.WriteOpWithOperand(OpPush, three, 1)
	c.WriteOp(OpSub, 1)
	c.WriteOp(OpRet, 1)

	v, err := NewVM(nil).Interpret(c)
	if err != nil {
		t.Fatal(err)
	}
	if v.AsNumber() != 7 {
		t.Errorf("10 - 3 = %v, want 7", v)
	}
}

func TestVMJZPeeksWithoutPopping(t *testing.T) {
	// FALSE; JZ +0; RET -> the false is still on the stack
	v, err := NewVM(nil).Interpret(chunkWithCode(byte(OpFalse), byte(OpJZ), 0, 0, byte(OpRet)))
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsBool() || v.AsBool() {
		t.Errorf("result = %#v, want false", v)
	}
}

func TestVMJumpSkipsForward(t *testing.T) {
	// JMP +1 skips the TRUE, so RET returns the NIL pushed after it.
	code := chunkWithCode(byte(OpJMP), 0, 1, byte(OpTrue), byte(OpNil), byte(OpRet))
	v, err := NewVM(nil).Interpret(code)
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsNil() {
		t.Errorf("result = %#v, want nil", v)
	}
}

func TestVMUnknownOpcodeIsDecodeError(t *testing.T) {
	_, err := NewVM(nil).Interpret(chunkWithCode(byte(OpNil), 0xEE))
	var derr *DecodeError
	if !errors.As(err, &derr) {
		t.Fatalf("error = %v, want *DecodeError", err)
	}
	if derr.Offset != 1 || derr.Byte != 0xEE {
		t.Errorf("DecodeError = %+v", derr)
	}
	var rerr *RuntimeError
	if errors.As(err, &rerr) {
		t.Error("decode failure must not be a RuntimeError")
	}
}

func TestVMStepLimit(t *testing.T) {
	table := NewInternTable()
	chunk, err := Compile("let n = 0;\nwhile (true) n = n + 1;", table)
	if err != nil {
		t.Fatal(err)
	}
	vm := NewVM(table)
	vm.Out = &bytes.Buffer{}
	vm.MaxSteps = 100
	_, err = vm.Interpret(chunk)
	var rerr *RuntimeError
	if !errors.As(err, &rerr) {
		t.Fatalf("error = %v, want *RuntimeError", err)
	}
	if !strings.Contains(rerr.Message, "Step limit of 100 instructions exceeded.") {
		t.Errorf("Message = %q", rerr.Message)
	}
	if rerr.Line != 2 {
		t.Errorf("Line = %d, want 2", rerr.Line)
	}
	if n, ok := vm.Global("n"); !ok || n.AsNumber() <= 0 {
		t.Errorf("Global(n) = %v, %v, want a positive count", n, ok)
	}
}

func TestVMTrace(t *testing.T) {
	table := NewInternTable()
	chunk, err := Compile("print 1 + 2;", table)
	if err != nil {
		t.Fatal(err)
	}
	var trace bytes.Buffer
	vm := NewVM(table)
	vm.Out = &bytes.Buffer{}
	vm.Trace = &trace
	if _, err := vm.Interpret(chunk); err != nil {
		t.Fatal(err)
	}

	got := trace.String()
	for _, want := range []string{"PUSH", "ADD", "PRINT", "RET", "[ 1 ][ 2 ]", "[ 3 ]"} {
		if !strings.Contains(got, want) {
			t.Errorf("trace missing %q:\n%s", want, got)
		}
	}
}
