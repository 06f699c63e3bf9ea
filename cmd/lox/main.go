// Lox CLI - runs scripts, evaluates source, hosts the REPL and the language server
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"

	"github.com/chazu/lox/compiler"
	"github.com/chazu/lox/driver"
	"github.com/chazu/lox/manifest"
	"github.com/chazu/lox/server"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("lox.cli")

func main() {
	os.Exit(run())
}

func run() int {
	verbose := flag.Bool("v", false, "Verbose output (debug logging)")
	engineName := flag.String("engine", "", "Execution engine: tree or vm (default from lox.toml, else tree)")
	source := flag.String("c", "", "Run the given source instead of a file")
	trace := flag.Bool("trace", false, "Trace every VM instruction to stderr (vm engine)")
	printCode := flag.Bool("print-code", false, "Print the disassembly of compiled chunks to stderr (vm engine)")
	lspMode := flag.Bool("lsp", false, "Start the language server on stdio")
	noColor := flag.Bool("no-color", false, "Disable colored output")
	noPrelude := flag.Bool("no-prelude", false, "Skip the [prelude] files from lox.toml")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: lox [options] [script.lox]\n\n")
		fmt.Fprintf(os.Stderr, "Runs a Lox script, or starts a REPL when no script is given.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  lox                          # Start REPL\n")
		fmt.Fprintf(os.Stderr, "  lox fib.lox                  # Run a script with the tree-walker\n")
		fmt.Fprintf(os.Stderr, "  lox -engine vm -trace loop.lox  # Run on the bytecode VM with tracing\n")
		fmt.Fprintf(os.Stderr, "  lox -c 'print 1 + 2;'        # Run source from the command line\n")
		fmt.Fprintf(os.Stderr, "  echo 'print 1;' | lox        # Piped stdin runs as a script\n")
		fmt.Fprintf(os.Stderr, "\nLanguage Server:\n")
		fmt.Fprintf(os.Stderr, "  lox -lsp                     # Serve LSP over stdio\n")
		fmt.Fprintf(os.Stderr, "\nExit status: 65 compile error, 70 runtime error, 74 I/O error.\n")
	}
	flag.Parse()

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return driver.ExitIO
	}
	m, err := manifest.FindAndLoad(cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return driver.ExitIO
	}
	if m == nil {
		m = manifest.Default()
	}

	// Flags override lox.toml
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["engine"] {
		m.Interpreter.Engine = *engineName
	}
	if set["trace"] {
		m.Interpreter.Trace = *trace
	}
	if set["print-code"] {
		m.Interpreter.PrintCode = *printCode
	}
	if *verbose && m.Log.Verbosity < 2 {
		m.Log.Verbosity = 2
	}

	commonlog.Configure(m.Log.Verbosity, m.LogFile())
	if m.Dir != "" {
		log.Debugf("loaded %s from %s", manifest.FileName, m.Dir)
	}

	engine, err := driver.ParseEngine(m.Interpreter.Engine)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	if *lspMode {
		if err := server.NewLSP(engine).Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	stdinTTY := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	stderrTTY := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	pal := newPalette(os.Stderr, !*noColor && m.UseColor(stderrTTY))

	opts := driver.Options{Engine: engine, Out: os.Stdout}
	if m.Interpreter.Trace {
		opts.Trace = os.Stderr
	}
	if m.Interpreter.PrintCode {
		opts.PrintCode = os.Stderr
	}

	var src, name string
	switch {
	case *source != "":
		src, name = *source, "-c"
	case flag.NArg() > 1:
		flag.Usage()
		return 2
	case flag.NArg() == 1:
		name = flag.Arg(0)
		data, err := os.ReadFile(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return driver.ExitIO
		}
		src = string(data)
	case !stdinTTY:
		name = "stdin"
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return driver.ExitIO
		}
		src = string(data)
	default:
		opts.Echo = true
		session := driver.NewSession(opts)
		if code := loadPrelude(session, m, *noPrelude, pal); code != driver.ExitOK {
			return code
		}
		r := &repl{
			session: session,
			pal:     pal,
			prompt:  m.REPL.Prompt,
			history: m.HistoryPath(),
		}
		return r.run()
	}

	session := driver.NewSession(opts)
	if code := loadPrelude(session, m, *noPrelude, pal); code != driver.ExitOK {
		return code
	}
	log.Debugf("running %s", name)
	result, err := session.Run(src)
	report(pal, result, err)
	return driver.ExitCode(err)
}

// loadPrelude runs the [prelude] files into session.
func loadPrelude(session *driver.Session, m *manifest.Manifest, skip bool, pal *palette) int {
	if skip || len(m.Prelude.Files) == 0 {
		return driver.ExitOK
	}
	files, err := m.ResolvePrelude()
	if err != nil {
		fmt.Fprintln(os.Stderr, pal.err(err.Error()))
		return driver.ExitIO
	}
	for _, f := range files {
		log.Debugf("prelude %s", f.Path)
		result, err := session.Run(f.Source)
		report(pal, result, err)
		if err != nil {
			fmt.Fprintln(os.Stderr, pal.err("in prelude "+f.Path))
			return driver.ExitCode(err)
		}
	}
	return driver.ExitOK
}

// report prints warnings and the error of one run to stderr.
func report(pal *palette, result driver.Result, err error) {
	for _, d := range result.Diagnostics {
		if d.Severity == compiler.SeverityWarning {
			fmt.Fprintln(os.Stderr, pal.warn(d.Error()))
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, pal.err(err.Error()))
	}
}
