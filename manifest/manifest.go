// Package manifest handles lox.toml configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked for by FindAndLoad.
const FileName = "lox.toml"

// Manifest represents a lox.toml configuration.
type Manifest struct {
	Interpreter Interpreter `toml:"interpreter"`
	REPL        REPL        `toml:"repl"`
	Log         Log         `toml:"log"`
	Prelude     Prelude     `toml:"prelude"`

	// Dir is the directory containing the lox.toml file (set at load time).
	Dir string `toml:"-"`
}

// Interpreter selects and instruments the execution engine.
type Interpreter struct {
	Engine    string `toml:"engine"`
	Trace     bool   `toml:"trace"`
	PrintCode bool   `toml:"print-code"`
}

// REPL configures the interactive prompt.
type REPL struct {
	Prompt  string `toml:"prompt"`
	History string `toml:"history"`
	Color   *bool  `toml:"color"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Prelude lists source files run before the script or REPL.
type Prelude struct {
	Files []string `toml:"files"`
}

// Default returns the configuration used when no lox.toml exists.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Interpreter.Engine == "" {
		m.Interpreter.Engine = "tree"
	}
	if m.REPL.Prompt == "" {
		m.REPL.Prompt = "> "
	}
	if m.REPL.History == "" {
		m.REPL.History = "~/.lox_history"
	}
}

// Load parses a lox.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	return &m, nil
}

// FindAndLoad walks up from startDir to find a lox.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// UseColor reports whether the REPL should color its output. Unset means
// color whenever the terminal supports it.
func (m *Manifest) UseColor(terminal bool) bool {
	if m.REPL.Color == nil {
		return terminal
	}
	return *m.REPL.Color && terminal
}

// HistoryPath expands a leading ~ in the history setting. An empty result
// disables history.
func (m *Manifest) HistoryPath() string {
	p := m.REPL.History
	if p == "-" {
		return ""
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	if !filepath.IsAbs(p) && m.Dir != "" {
		return filepath.Join(m.Dir, p)
	}
	return p
}

// LogFile returns the configured log file, or nil for stderr.
func (m *Manifest) LogFile() *string {
	if m.Log.File == "" {
		return nil
	}
	p := m.Log.File
	if !filepath.IsAbs(p) && m.Dir != "" {
		p = filepath.Join(m.Dir, p)
	}
	return &p
}
