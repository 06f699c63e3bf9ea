// Package driver ties the front end to the two execution engines. A
// Session keeps globals alive between runs, which is what a REPL or an
// editor integration needs; Compile and Interpret are one-shot helpers.
package driver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/lox/compiler"
	"github.com/chazu/lox/interpreter"
	"github.com/chazu/lox/pkg/bytecode"
)

var log = commonlog.GetLogger("lox.driver")

// Exit statuses used by the command-line tool.
const (
	ExitOK      = 0
	ExitCompile = 65
	ExitRuntime = 70
	ExitIO      = 74
)

// ---------------------------------------------------------------------------
// Engines
// ---------------------------------------------------------------------------

// Engine selects how source is executed.
type Engine string

const (
	// EngineTree resolves the syntax tree and walks it.
	EngineTree Engine = "tree"
	// EngineVM compiles to bytecode and runs it on the stack machine.
	EngineVM Engine = "vm"
)

// ParseEngine maps a name from a flag or lox.toml to an Engine. The empty
// string selects the tree-walker.
func ParseEngine(name string) (Engine, error) {
	switch Engine(name) {
	case "", EngineTree:
		return EngineTree, nil
	case EngineVM:
		return EngineVM, nil
	}
	return "", fmt.Errorf("unknown engine %q (want %q or %q)", name, EngineTree, EngineVM)
}

// ---------------------------------------------------------------------------
// Session
// ---------------------------------------------------------------------------

// Options configures a Session.
type Options struct {
	Engine Engine

	// Out receives print output. Defaults to os.Stdout.
	Out io.Writer

	// Trace receives the VM's per-instruction trace. Ignored by the
	// tree-walker.
	Trace io.Writer

	// PrintCode receives a disassembly of every compiled chunk. Ignored by
	// the tree-walker.
	PrintCode io.Writer

	// Echo prints the value of global expression statements (tree-walker).
	Echo bool

	// MaxSteps bounds the work of one Run: statements on the tree-walker,
	// instructions on the VM. Zero means no limit.
	MaxSteps int
}

// Result describes a run that got past the front end.
type Result struct {
	// Diagnostics holds warnings, and errors when compilation failed.
	Diagnostics []compiler.Diagnostic
}

// Session runs successive pieces of source against the same globals.
type Session struct {
	ID     uuid.UUID
	engine Engine

	resolver *compiler.Resolver
	interp   *interpreter.Interpreter

	strings *bytecode.InternTable
	vm      *bytecode.VM

	printCode io.Writer
	runs      int
}

// NewSession creates a session for opts.Engine.
func NewSession(opts Options) *Session {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	engine := opts.Engine
	if engine == "" {
		engine = EngineTree
	}

	s := &Session{
		ID:        uuid.New(),
		engine:    engine,
		printCode: opts.PrintCode,
	}

	switch engine {
	case EngineVM:
		s.strings = bytecode.NewInternTable()
		s.vm = bytecode.NewVM(s.strings)
		s.vm.Out = out
		s.vm.Trace = opts.Trace
		s.vm.MaxSteps = opts.MaxSteps
	default:
		s.interp = interpreter.New()
		s.interp.Out = out
		s.interp.Echo = opts.Echo
		s.interp.MaxSteps = opts.MaxSteps
		s.resolver = compiler.NewResolver(nil)
		for _, name := range interpreter.NativeNames() {
			s.resolver.AddKnownGlobal(name)
		}
	}

	log.Debugf("session %s: created with engine %s", s.ID, engine)
	return s
}

// Engine reports which engine the session runs.
func (s *Session) Engine() Engine { return s.engine }

// Globals lists the global names currently known to the session, sorted.
func (s *Session) Globals() []string {
	if s.engine == EngineVM {
		names := s.vm.GlobalNames()
		sort.Strings(names)
		return names
	}
	return s.resolver.Globals()
}

// Run executes src. A front-end failure returns a *compiler.CompileError
// and its diagnostics in the Result; a runtime failure returns the
// engine's runtime error. Globals defined before a failure stay defined.
func (s *Session) Run(src string) (Result, error) {
	s.runs++
	if s.engine == EngineVM {
		return s.runVM(src)
	}
	return s.runTree(src)
}

func (s *Session) runTree(src string) (Result, error) {
	report := &compiler.Reporter{}
	stmts := compiler.NewParser(src, report).ParseProgram()
	if !report.HadError() {
		s.resolver.SetReporter(report)
		s.resolver.Resolve(stmts)
	}
	result := Result{Diagnostics: report.Diagnostics()}
	if err := report.Err(); err != nil {
		log.Debugf("session %s: run %d rejected with %d diagnostics", s.ID, s.runs, len(result.Diagnostics))
		return result, err
	}

	log.Debugf("session %s: run %d interpreting %d statements", s.ID, s.runs, len(stmts))
	return result, s.interp.Interpret(stmts)
}

func (s *Session) runVM(src string) (Result, error) {
	chunk, err := bytecode.Compile(src, s.strings)
	if err != nil {
		var ce *compiler.CompileError
		if errors.As(err, &ce) {
			log.Debugf("session %s: run %d rejected with %d diagnostics", s.ID, s.runs, len(ce.Diagnostics))
			return Result{Diagnostics: ce.Diagnostics}, err
		}
		return Result{}, err
	}

	if s.printCode != nil {
		fmt.Fprint(s.printCode, chunk.DisassembleWithName(s.chunkName()))
	}

	log.Debugf("session %s: run %d executing %d bytes", s.ID, s.runs, len(chunk.Code))
	_, err = s.vm.Interpret(chunk)
	return Result{}, err
}

func (s *Session) chunkName() string {
	if s.runs == 1 {
		return "script"
	}
	return fmt.Sprintf("script #%d", s.runs)
}

// ---------------------------------------------------------------------------
// One-shot helpers
// ---------------------------------------------------------------------------

// Compile compiles src to a chunk with a fresh intern table.
func Compile(src string) (*bytecode.Chunk, error) {
	return bytecode.Compile(src, bytecode.NewInternTable())
}

// Interpret runs src once on engine, printing to out.
func Interpret(src string, engine Engine, out io.Writer) error {
	_, err := NewSession(Options{Engine: engine, Out: out}).Run(src)
	return err
}

// ExitCode maps the error from a run to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		return ExitCompile
	}
	var pe *os.PathError
	if errors.As(err, &pe) {
		return ExitIO
	}
	return ExitRuntime
}
