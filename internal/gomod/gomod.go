// Package gomod maps directories to import paths inside a Go module.
package gomod

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
)

// Module is a Go module on disk.
type Module struct {
	Root string // directory holding go.mod
	Path string // module path
}

// Error is a module layout problem found at Dir.
type Error struct {
	Dir    string
	Reason string
}

func (e *Error) Error() string { return "gomod: " + e.Reason + ": " + filepath.ToSlash(e.Dir) }

// Find returns the module of the nearest go.mod at or above dir.
func Find(dir string) (Module, error) {
	for d := dir; ; {
		b, err := os.ReadFile(filepath.Join(d, "go.mod"))
		switch {
		case err == nil:
			p := modfile.ModulePath(b)
			if p == "" {
				return Module{}, &Error{Dir: d, Reason: "go.mod has no module directive"}
			}
			return Module{Root: d, Path: p}, nil
		case !errors.Is(err, fs.ErrNotExist):
			return Module{}, err
		}
		parent := filepath.Dir(d)
		if parent == d {
			return Module{}, &Error{Dir: dir, Reason: "no go.mod in any parent directory"}
		}
		d = parent
	}
}

// ImportPath returns the import path of dir, which must lie inside m.
func (m Module) ImportPath(dir string) (string, error) {
	rel, err := filepath.Rel(m.Root, dir)
	if err != nil {
		return "", err
	}
	if !filepath.IsLocal(rel) {
		return "", &Error{Dir: dir, Reason: "directory is outside module " + m.Path}
	}
	if rel == "." {
		return m.Path, nil
	}
	return path.Join(m.Path, filepath.ToSlash(rel)), nil
}

// Dir returns the package directory of importPath. ok is false when
// importPath is not a package path of m or its directory does not exist.
func (m Module) Dir(importPath string) (dir string, ok bool) {
	rel, found := strings.CutPrefix(importPath, m.Path)
	if !found || (rel != "" && !strings.HasPrefix(rel, "/")) {
		return "", false
	}
	dir = filepath.Join(m.Root, filepath.FromSlash(strings.TrimPrefix(rel, "/")))
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		return "", false
	}
	return dir, true
}
