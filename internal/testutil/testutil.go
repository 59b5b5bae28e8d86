// Package testutil holds the temp-package harness shared by contractgen tests.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Pkg is a throwaway package directory.
type Pkg struct {
	t   testing.TB
	Dir string
}

// NewPkg creates an empty package dir under t.TempDir().
func NewPkg(t testing.TB) *Pkg {
	t.Helper()
	return &Pkg{t: t, Dir: t.TempDir()}
}

// Write creates rel (and its parents) with content and returns the full path.
func (p *Pkg) Write(rel, content string) string {
	p.t.Helper()
	path := p.Path(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		p.t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		p.t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// Path returns the full path of rel.
func (p *Pkg) Path(rel string) string {
	return filepath.Join(p.Dir, rel)
}

// Read returns the content of rel.
func (p *Pkg) Read(rel string) string {
	p.t.Helper()
	b, err := os.ReadFile(p.Path(rel))
	if err != nil {
		p.t.Fatalf("read %s: %v", rel, err)
	}
	return string(b)
}

// GoMod writes a go.mod declaring modPath.
func (p *Pkg) GoMod(modPath string) {
	p.t.Helper()
	p.Write("go.mod", "module "+modPath+"\n\ngo 1.22\n")
}

// ChmodNoRead drops every permission of path until the test ends.
func ChmodNoRead(t testing.TB, path string) {
	t.Helper()
	if err := os.Chmod(path, 0o000); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(path, 0o644) })
}

// AssertContainsInOrder fails unless every part occurs in s, each after the
// previous one.
func AssertContainsInOrder(t testing.TB, s string, parts ...string) {
	t.Helper()
	pos := 0
	for _, p := range parts {
		i := strings.Index(s[pos:], p)
		if i < 0 {
			t.Fatalf("expected to find %q after pos=%d in:\n%s", p, pos, s)
			return
		}
		pos += i + len(p)
	}
}

// Squash collapses every run of whitespace to one space, for comparing
// generated code without caring about gofmt alignment.
func Squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
