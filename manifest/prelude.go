package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// SourceExt is the extension of Lox source files.
const SourceExt = ".lox"

// PreludeFile is one resolved prelude entry.
type PreludeFile struct {
	Path   string // absolute path
	Source string // file contents
}

// ResolvePrelude expands [prelude] files into the sources to run, in order.
// An entry naming a directory contributes every .lox file directly inside
// it, sorted by name. A file reached twice is only run once.
func (m *Manifest) ResolvePrelude() ([]PreludeFile, error) {
	seen := make(map[string]bool)
	var order []PreludeFile

	for _, entry := range m.Prelude.Files {
		paths, err := m.expandEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("resolving prelude %q: %w", entry, err)
		}

		for _, p := range paths {
			if seen[p] {
				continue
			}
			seen[p] = true

			data, err := os.ReadFile(p)
			if err != nil {
				return nil, fmt.Errorf("reading prelude %s: %w", p, err)
			}
			order = append(order, PreludeFile{Path: p, Source: string(data)})
		}
	}

	return order, nil
}

// expandEntry resolves one entry relative to the manifest directory.
func (m *Manifest) expandEntry(entry string) ([]string, error) {
	localPath := entry
	if !filepath.IsAbs(localPath) {
		localPath = filepath.Join(m.Dir, localPath)
	}

	localPath, err := filepath.Abs(localPath)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return nil, fmt.Errorf("not found at %s: %w", localPath, err)
	}
	if !info.IsDir() {
		return []string{localPath}, nil
	}

	entries, err := os.ReadDir(localPath)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != SourceExt {
			continue
		}
		paths = append(paths, filepath.Join(localPath, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
