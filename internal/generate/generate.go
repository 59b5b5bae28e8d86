// Package generate runs contractgen over a set of declaration files.
package generate

import (
	"context"
	"errors"
	"fmt"
	"go/token"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sghaida/contractgen/internal/compose"
	"github.com/sghaida/contractgen/internal/config"
	"github.com/sghaida/contractgen/internal/diag"
	"github.com/sghaida/contractgen/internal/instantiate"
	"github.com/sghaida/contractgen/internal/logging"
	"github.com/sghaida/contractgen/internal/model"
	"github.com/sghaida/contractgen/internal/render"
	"github.com/sghaida/contractgen/internal/source"
	"github.com/sghaida/contractgen/internal/transform"
)

// StaleError lists the generated files a check run found out of date.
type StaleError struct{ Files []string }

func (e *StaleError) Error() string {
	return fmt.Sprintf("%d generated file(s) out of date: %s", len(e.Files), strings.Join(e.Files, ", "))
}

// Report summarizes a run.
type Report struct {
	Written   []string
	Unchanged []string
	Stale     []string
	Diags     diag.List
}

// Generator turns declaration files into generated files beside them.
type Generator struct {
	cfg     config.Config
	log     *slog.Logger
	locator *source.Locator

	mu        sync.Mutex
	artifacts map[*model.ModuleInterface]*artifact
}

type artifact struct {
	art *transform.Artifact
	err error
}

// New returns a Generator. A nil log discards output.
func New(cfg config.Config, log *slog.Logger) *Generator {
	config.ApplyDefaults(&cfg)
	if log == nil {
		log = logging.Discard()
	}
	return &Generator{
		cfg:       cfg,
		log:       logging.For(log, "generate"),
		locator:   source.NewLocator(cfg.BuildTag),
		artifacts: map[*model.ModuleInterface]*artifact{},
	}
}

func (g *Generator) sourceOptions() source.Options {
	return source.Options{Prefix: g.cfg.DirectivePrefix, BuildTag: g.cfg.BuildTag}
}

func (g *Generator) instantiateOptions() instantiate.Options {
	return instantiate.Options{
		Prefix:           g.cfg.DirectivePrefix,
		ABISuffix:        g.cfg.ABISuffix,
		ImplSuffix:       g.cfg.ImplSuffix,
		EmbedDiagnostics: g.cfg.Embed(),
	}
}

// Run expands patterns and generates every declaration file found. With
// check set nothing is written; out of date files are reported instead.
// The error is the aggregate of the error diagnostics, or a *StaleError.
func (g *Generator) Run(ctx context.Context, patterns []string, check bool) (Report, error) {
	var rep Report
	g.mu.Lock()
	g.artifacts = map[*model.ModuleInterface]*artifact{}
	g.mu.Unlock()

	paths, err := Expand(patterns, g.cfg)
	if err != nil {
		return rep, err
	}
	files, diags, err := g.parse(ctx, paths)
	if err != nil {
		return rep, err
	}
	rep.Diags.Append(diags)
	g.log.Debug("parsed declaration files", "candidates", len(paths), "files", len(files))

	reg := source.NewRegistry(g.sourceOptions(), g.locator, logging.For(g.log, "source"))
	reg.Preload(files...)

	outs := make([]output, len(files))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Jobs)
	for i, f := range files {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			outs[i] = g.file(reg, f, check)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return rep, err
	}

	for _, o := range outs {
		rep.Diags.Append(o.diags)
		switch {
		case o.path == "":
		case o.stale:
			rep.Stale = append(rep.Stale, o.path)
		case o.changed:
			rep.Written = append(rep.Written, o.path)
		default:
			rep.Unchanged = append(rep.Unchanged, o.path)
		}
	}
	rep.Diags.Sort()
	rep.Diags.Log(logging.For(g.log, "diag"))
	g.log.Info("generation finished",
		"written", len(rep.Written), "unchanged", len(rep.Unchanged), "stale", len(rep.Stale),
		"errors", len(rep.Diags.Errors()))

	if err := rep.Diags.Err(); err != nil {
		return rep, err
	}
	if len(rep.Stale) > 0 {
		return rep, &StaleError{Files: rep.Stale}
	}
	return rep, nil
}

func (g *Generator) parse(ctx context.Context, paths []string) ([]*source.File, diag.List, error) {
	files := make([]*source.File, len(paths))
	lists := make([]diag.List, len(paths))
	opts := g.sourceOptions()

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Jobs)
	for i, path := range paths {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			src, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			if !source.HasDirectives(src, opts.Prefix) {
				return nil
			}
			f, diags := source.ParseFile(path, src, opts)
			if f != nil {
				f.ImportPath = source.ImportPathOf(f.Dir)
			}
			files[i], lists[i] = f, diags
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}

	var out []*source.File
	var diags diag.List
	for i, f := range files {
		diags.Append(lists[i])
		if f != nil {
			out = append(out, f)
		}
	}
	return out, diags, nil
}

type output struct {
	path    string
	changed bool
	stale   bool
	diags   diag.List
}

func (g *Generator) file(reg *source.Registry, f *source.File, check bool) output {
	var o output
	if len(f.Modules) == 0 && len(f.Targets) == 0 {
		return o
	}
	pos := filePos(f)
	if !f.BuildTagged {
		o.diags.Warn(pos, filepath.Base(f.Path),
			"%s is not guarded by //go:build %s; its declarations will clash with the generated file",
			filepath.Base(f.Path), g.cfg.BuildTag)
	}

	var parts []string
	imports := [][]model.Import{f.Imports}
	for _, m := range f.Modules {
		art, err := g.artifact(m)
		if err != nil {
			o.diags.Structural(m.Pos, m.Name, "%v", err)
			continue
		}
		parts = append(parts, art.Code)
		imports = append(imports, m.Imports)
	}

	opts := g.instantiateOptions()
	templates := compose.TemplatesFunc(func(ref model.ModuleRef) (*instantiate.Template, error) {
		m, imp, err := reg.Resolve(f, ref)
		if err != nil {
			return nil, err
		}
		art, err := g.artifact(m)
		if err != nil {
			return nil, err
		}
		return instantiate.New(art, instantiate.Qualifier{Name: imp.Name, Path: imp.Path}, opts)
	})
	for _, t := range f.Targets {
		res := compose.Resolve(t, templates, opts)
		o.diags.Append(res.Diags)
		parts = append(parts, res.Code)
		imports = append(imports, res.Imports)
	}

	merged, err := render.MergeImports(imports...)
	if err != nil {
		o.diags.Structural(pos, filepath.Base(f.Path), "%v", err)
		return o
	}
	src, err := render.File{
		Package:    f.Package,
		Source:     filepath.Base(f.Path),
		SourceHash: f.Hash,
		BuildTag:   g.cfg.BuildTag,
		Imports:    merged,
		Body:       strings.Join(parts, "\n"),
	}.Bytes()
	if err != nil {
		var fe *render.FormatError
		if errors.As(err, &fe) {
			g.log.Debug("unformatted output", "file", f.Path, "src", string(fe.Src))
		}
		o.diags.Structural(pos, filepath.Base(f.Path), "render: %v", err)
		return o
	}

	o.path = render.OutputPath(f.Path, g.cfg.OutputSuffix)
	if check {
		o.stale, err = render.Check(o.path, src)
	} else {
		o.changed, err = render.Write(o.path, src)
	}
	if err != nil {
		o.diags.Structural(pos, filepath.Base(f.Path), "%v", err)
		o.path = ""
	}
	return o
}

// artifact transforms m once per run.
func (g *Generator) artifact(m *model.ModuleInterface) (*transform.Artifact, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if a, ok := g.artifacts[m]; ok {
		return a.art, a.err
	}
	art, err := transform.Transform(m, g.cfg.DirectivePrefix)
	g.artifacts[m] = &artifact{art: art, err: err}
	return art, err
}

func filePos(f *source.File) (pos token.Position) {
	pos.Filename = f.Path
	pos.Line = 1
	pos.Column = 1
	return pos
}
