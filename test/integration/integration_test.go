package integration_test

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/chazu/lox/driver"
	"github.com/chazu/lox/manifest"
)

// ---------------------------------------------------------------------------
// Integration test helpers
// ---------------------------------------------------------------------------

const examplesDir = "../../examples"

var (
	enginesPattern = regexp.MustCompile(`^// engines: (.+)$`)
	expectPattern  = regexp.MustCompile(`// expect(?:\((\w+)\))?: (.*)$`)
	errorPattern   = regexp.MustCompile(`// expect (runtime|compile) error: (.*)$`)
)

// script is one example program and what it should do.
type script struct {
	path    string
	source  string
	engines []driver.Engine
	output  map[driver.Engine][]string
	errKind string // "runtime", "compile" or empty
	errText string
}

// loadScript reads a .lox file and its expectation comments.
func loadScript(t *testing.T, path string) *script {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}

	s := &script{
		path:   path,
		source: string(data),
		output: make(map[driver.Engine][]string),
	}

	lines := strings.Split(s.source, "\n")
	if m := enginesPattern.FindStringSubmatch(lines[0]); m != nil {
		for _, name := range strings.Fields(m[1]) {
			engine, err := driver.ParseEngine(name)
			if err != nil {
				t.Fatalf("%s: %v", path, err)
			}
			s.engines = append(s.engines, engine)
		}
	} else {
		t.Fatalf("%s: first line must be an engines comment", path)
	}

	for _, line := range lines {
		if m := errorPattern.FindStringSubmatch(line); m != nil {
			s.errKind, s.errText = m[1], m[2]
			continue
		}
		m := expectPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		for _, engine := range s.engines {
			if m[1] == "" || m[1] == string(engine) {
				s.output[engine] = append(s.output[engine], m[2])
			}
		}
	}
	return s
}

// run executes the script on engine and checks its output and error.
func (s *script) run(t *testing.T, engine driver.Engine) {
	t.Helper()
	var out bytes.Buffer
	session := driver.NewSession(driver.Options{Engine: engine, Out: &out})
	_, err := session.Run(s.source)

	want := ""
	if lines := s.output[engine]; len(lines) > 0 {
		want = strings.Join(lines, "\n") + "\n"
	}
	if out.String() != want {
		t.Errorf("output =\n%s\nwant\n%s", out.String(), want)
	}

	switch s.errKind {
	case "":
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case "runtime":
		if driver.ExitCode(err) != driver.ExitRuntime {
			t.Errorf("error = %v, want a runtime error", err)
		}
	case "compile":
		if driver.ExitCode(err) != driver.ExitCompile {
			t.Errorf("error = %v, want a compile error", err)
		}
	}
	if s.errKind != "" && err != nil && !strings.Contains(err.Error(), s.errText) {
		t.Errorf("error = %q, want it to contain %q", err.Error(), s.errText)
	}
}

// ---------------------------------------------------------------------------
// Example programs
// ---------------------------------------------------------------------------

func TestExamplePrograms(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join(examplesDir, "*"+manifest.SourceExt))
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) == 0 {
		t.Fatalf("no examples found in %s", examplesDir)
	}

	for _, path := range paths {
		s := loadScript(t, path)
		for _, engine := range s.engines {
			name := strings.TrimSuffix(filepath.Base(path), manifest.SourceExt) + "/" + string(engine)
			t.Run(name, func(t *testing.T) {
				s.run(t, engine)
			})
		}
	}
}

// ---------------------------------------------------------------------------
// Cross-engine agreement
// ---------------------------------------------------------------------------

// Programs inside the shared subset that avoid 0 in conditions must print
// the same thing on both engines.
func TestEnginesAgree(t *testing.T) {
	programs := []string{
		`let x = 1; { let y = x + 1; print y; } print x;`,
		`let s = ""; for (let i = 0; i < 3; i = i + 1) s = s + "ab"; print s;`,
		`print (1 + 2) * 3 - 4 / 2;`,
		`print nil or false; print !!"text";`,
		`let a = "a"; let b = a + "b"; print b == "ab";`,
		`print 1 > 0 ? (2 > 3 ? "x" : "y") : "z";`,
	}

	for _, src := range programs {
		var tree, vm bytes.Buffer
		if err := driver.Interpret(src, driver.EngineTree, &tree); err != nil {
			t.Errorf("tree(%q) error: %v", src, err)
			continue
		}
		if err := driver.Interpret(src, driver.EngineVM, &vm); err != nil {
			t.Errorf("vm(%q) error: %v", src, err)
			continue
		}
		if tree.String() != vm.String() {
			t.Errorf("engines disagree on %q: tree %q, vm %q", src, tree.String(), vm.String())
		}
	}
}

// ---------------------------------------------------------------------------
// Prelude
// ---------------------------------------------------------------------------

func TestPreludeFeedsSession(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"lox.toml":    "[prelude]\nfiles = [\"prelude.lox\"]\n",
		"prelude.lox": "fun square(n) { return n * n; }\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	m, err := manifest.Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	prelude, err := m.ResolvePrelude()
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	session := driver.NewSession(driver.Options{Engine: driver.EngineTree, Out: &out})
	for _, f := range prelude {
		if _, err := session.Run(f.Source); err != nil {
			t.Fatalf("prelude %s: %v", f.Path, err)
		}
	}
	if _, err := session.Run("print square(7);"); err != nil {
		t.Fatal(err)
	}
	if out.String() != "49\n" {
		t.Errorf("output = %q, want %q", out.String(), "49\n")
	}
}
