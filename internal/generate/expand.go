package generate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/sghaida/contractgen/internal/config"
)

// Expand turns command line patterns into the absolute paths of candidate
// declaration files. A pattern is a file, a directory (its .go files), a
// go-style "dir/..." or a doublestar glob. Directories starting with "_" or
// ".", vendor and testdata are never entered by globs. Test files and
// generated files are always dropped. Include and exclude globs are matched
// against paths as the patterns spell them.
func Expand(patterns []string, cfg config.Config) ([]string, error) {
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}
	seen := map[string]bool{}
	var out []string
	for _, pattern := range patterns {
		matches, err := expandOne(pattern)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if !keep(m, cfg) {
				continue
			}
			abs, err := filepath.Abs(m)
			if err != nil {
				return nil, err
			}
			if !seen[abs] {
				seen[abs] = true
				out = append(out, abs)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func expandOne(pattern string) ([]string, error) {
	if base, ok := strings.CutSuffix(filepath.ToSlash(pattern), "/..."); ok || pattern == "..." {
		if !ok {
			base = "."
		}
		return glob(filepath.ToSlash(filepath.Join(base, "**", "*.go")), base)
	}
	if doublestar.ValidatePattern(filepath.ToSlash(pattern)) && strings.ContainsAny(pattern, "*?[{") {
		base, _ := doublestar.SplitPattern(filepath.ToSlash(pattern))
		return glob(filepath.ToSlash(pattern), filepath.FromSlash(base))
	}
	st, err := os.Stat(pattern)
	if err != nil {
		return nil, fmt.Errorf("pattern %s: %w", pattern, err)
	}
	if !st.IsDir() {
		return []string{pattern}, nil
	}
	return glob(filepath.ToSlash(filepath.Join(pattern, "*.go")), pattern)
}

func glob(pattern, root string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("pattern %s: %w", pattern, err)
	}
	var out []string
	for _, m := range matches {
		if !hidden(m, root) {
			out = append(out, m)
		}
	}
	return out, nil
}

// hidden reports whether a directory between root and path is one the go
// tool ignores.
func hidden(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	parts := strings.Split(filepath.ToSlash(filepath.Dir(rel)), "/")
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			continue
		}
		if strings.HasPrefix(p, "_") || strings.HasPrefix(p, ".") || p == "vendor" || p == "testdata" {
			return true
		}
	}
	return false
}

func keep(path string, cfg config.Config) bool {
	name := filepath.Base(path)
	if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") || strings.HasSuffix(name, cfg.OutputSuffix) {
		return false
	}
	slash := filepath.ToSlash(filepath.Clean(path))
	if len(cfg.Include) > 0 && !matchAny(cfg.Include, slash) {
		return false
	}
	return !matchAny(cfg.Exclude, slash)
}

func matchAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}
