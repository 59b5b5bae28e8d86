package source

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/tools/go/packages"

	"github.com/sghaida/contractgen/internal/gomod"
	"github.com/sghaida/contractgen/internal/model"
)

// ErrUnknownModule is returned when no declaration file declares the module.
var ErrUnknownModule = errors.New("no contract trait with that name")

// NotFoundError names the module and the directory that was searched.
type NotFoundError struct {
	Name string
	Dir  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no contract trait %s in %s", e.Name, filepath.ToSlash(e.Dir))
}

// Is lets errors.Is match ErrUnknownModule.
func (e *NotFoundError) Is(target error) bool { return target == ErrUnknownModule }

// Locator resolves import paths to package directories.
type Locator struct {
	BuildTag string

	mu    sync.Mutex
	cache map[string]string
	load  func(cfg *packages.Config, patterns ...string) ([]*packages.Package, error)
}

// NewLocator returns a Locator that falls back to go/packages for imports
// outside the current module.
func NewLocator(buildTag string) *Locator {
	return &Locator{BuildTag: buildTag, cache: map[string]string{}, load: packages.Load}
}

// Dir returns the directory of importPath as seen from fromDir.
func (l *Locator) Dir(importPath, fromDir string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if dir, ok := l.cache[importPath]; ok {
		return dir, nil
	}
	dir, err := l.find(importPath, fromDir)
	if err != nil {
		return "", err
	}
	l.cache[importPath] = dir
	return dir, nil
}

func (l *Locator) find(importPath, fromDir string) (string, error) {
	if m, err := gomod.Find(fromDir); err == nil {
		if dir, ok := m.Dir(importPath); ok {
			return dir, nil
		}
	}

	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles,
		Dir:  fromDir,
	}
	if l.BuildTag != "" {
		cfg.BuildFlags = []string{"-tags=" + l.BuildTag}
	}
	pkgs, err := l.load(cfg, importPath)
	if err != nil {
		return "", fmt.Errorf("locate %s: %w", importPath, err)
	}
	if len(pkgs) == 0 {
		return "", fmt.Errorf("locate %s: no package found", importPath)
	}
	pkg := pkgs[0]
	if len(pkg.Errors) > 0 {
		return "", fmt.Errorf("locate %s: %v", importPath, pkg.Errors[0])
	}
	files := append(append(append([]string{}, pkg.GoFiles...), pkg.IgnoredFiles...), pkg.OtherFiles...)
	if len(files) == 0 {
		return "", fmt.Errorf("locate %s: package has no files", importPath)
	}
	return filepath.Dir(files[0]), nil
}

type dirEntry struct {
	files   map[string]bool
	modules map[string]*model.ModuleInterface
	scanned bool
	err     error
}

// Registry indexes module declarations by directory. Directories are scanned
// on first use; files already parsed by the caller are preloaded.
type Registry struct {
	opts    Options
	locator *Locator
	log     *slog.Logger

	mu   sync.Mutex
	dirs map[string]*dirEntry
}

// NewRegistry returns an empty registry.
func NewRegistry(opts Options, locator *Locator, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{opts: opts, locator: locator, log: log, dirs: map[string]*dirEntry{}}
}

func (r *Registry) entry(dir string) *dirEntry {
	e, ok := r.dirs[dir]
	if !ok {
		e = &dirEntry{files: map[string]bool{}, modules: map[string]*model.ModuleInterface{}}
		r.dirs[dir] = e
	}
	return e
}

// Preload registers the modules of already parsed files.
func (r *Registry) Preload(files ...*File) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range files {
		if f == nil {
			continue
		}
		e := r.entry(f.Dir)
		e.files[f.Path] = true
		for _, m := range f.Modules {
			if m.ImportPath == "" {
				m.ImportPath = f.ImportPath
			}
			e.modules[m.Name] = m
		}
	}
}

// Module returns the module name declared in dir.
func (r *Registry) Module(dir, name string) (*model.ModuleInterface, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(dir)
	if m, ok := e.modules[name]; ok {
		return m, nil
	}
	if !e.scanned {
		e.scanned = true
		e.err = r.scan(dir, e)
	}
	if m, ok := e.modules[name]; ok {
		return m, nil
	}
	if e.err != nil {
		return nil, e.err
	}
	return nil, &NotFoundError{Name: name, Dir: dir}
}

// Modules returns every module known for dir, sorted by name.
func (r *Registry) Modules(dir string) []*model.ModuleInterface {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(dir)
	out := make([]*model.ModuleInterface, 0, len(e.modules))
	for _, m := range e.modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) scan(dir string, e *dirEntry) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("scan %s: %w", filepath.ToSlash(dir), err)
	}
	for _, de := range entries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		full := filepath.Join(dir, name)
		if e.files[full] {
			continue
		}
		src, err := os.ReadFile(full)
		if err != nil {
			return fmt.Errorf("scan %s: %w", filepath.ToSlash(full), err)
		}
		if !HasDirectives(src, r.opts.Prefix) {
			continue
		}
		f, diags := ParseFile(full, src, r.opts)
		if diags.HasErrors() {
			r.log.Debug("declaration file has errors", "file", full, "errors", len(diags.Errors()))
		}
		e.files[full] = true
		if f == nil {
			continue
		}
		f.ImportPath = ImportPathOf(dir)
		for _, m := range f.Modules {
			m.ImportPath = f.ImportPath
			e.modules[m.Name] = m
		}
	}
	return nil
}

// ImportPathOf returns the import path of dir, or "" outside a Go module.
func ImportPathOf(dir string) string {
	m, err := gomod.Find(dir)
	if err != nil {
		return ""
	}
	path, err := m.ImportPath(dir)
	if err != nil {
		return ""
	}
	return path
}

// Resolve finds the module ref points to, as written in from. The returned
// import is the one from uses for the module's package; it is zero for a
// module in from's own package.
func (r *Registry) Resolve(from *File, ref model.ModuleRef) (*model.ModuleInterface, model.Import, error) {
	if ref.Qualifier == "" {
		m, err := r.Module(from.Dir, ref.Name)
		return m, model.Import{}, err
	}
	imp, ok := from.Import(ref.Qualifier)
	if !ok {
		return nil, model.Import{}, fmt.Errorf("%s is not imported in %s", ref.Qualifier, filepath.Base(from.Path))
	}
	if r.locator == nil {
		return nil, imp, fmt.Errorf("cannot locate %s: no locator", imp.Path)
	}
	dir, err := r.locator.Dir(imp.Path, from.Dir)
	if err != nil {
		return nil, imp, err
	}
	m, err := r.Module(dir, ref.Name)
	if err != nil {
		return nil, imp, err
	}
	return m, imp, nil
}
