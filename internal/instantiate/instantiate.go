// Package instantiate binds a target to a module implementation.
//
// A Template is built once per (module, target package) pair and is invoked in
// one of three forms:
//
//	Bare(site)           the module's own default, guarded when the module
//	                     requires an extension
//	Explicit(site, impl) wires the target to impl
//	Zero()               the default implementation as a type expression
//
// Only Explicit (and Bare, through it) produces code: the slot alias, the
// forwarding methods that make the target implement the module, and the
// boundary methods on the target's ABI type.
package instantiate

import (
	"bytes"
	"errors"
	"fmt"
	"go/token"
	"text/template"

	"github.com/sghaida/contractgen/internal/diag"
	"github.com/sghaida/contractgen/internal/model"
	"github.com/sghaida/contractgen/internal/transform"
)

// Qualifier is how the target package reaches the module package. Name is
// empty when both are the same package.
type Qualifier struct {
	Name string
	Path string
}

// Options are the naming and diagnostic knobs of emitted code.
type Options struct {
	Prefix           string // directive namespace used in example messages
	ABISuffix        string // Contract -> ContractABI
	ImplSuffix       string // Contract, Administratable -> ContractAdministratableImpl
	EmbedDiagnostics bool   // emit build-failing sentinels for configuration errors
}

// Site is where an instantiation is requested: the target and the directive.
type Site struct {
	Target string
	Pos    token.Position
}

// Instance is the output of one Bare or Explicit call.
type Instance struct {
	Module  string
	Chain   string // implementation the slot is bound to, "" when none could be
	Code    string
	Imports []model.Import
	Diags   diag.List
}

// Template is the instantiation template of one module.
type Template struct {
	mod     *model.ModuleInterface
	q       Qualifier
	opts    Options
	entries transform.Entries
	imports []model.Import
}

// New builds the template of art's module as seen through q.
func New(art *transform.Artifact, q Qualifier, opts Options) (*Template, error) {
	m := art.Module
	entries, err := transform.EntriesFor(m, q.Name)
	if err != nil {
		return nil, err
	}
	t := &Template{mod: m, q: q, opts: opts, entries: entries}
	for _, name := range entries.Qualifiers {
		if name == q.Name {
			t.imports = append(t.imports, model.Import{Name: q.Name, Path: q.Path})
			continue
		}
		imp, ok := lookup(m.Imports, name)
		if !ok {
			return nil, fmt.Errorf("%s: package %s used in a signature is not imported", m.Name, name)
		}
		t.imports = append(t.imports, imp)
	}
	return t, nil
}

func lookup(imports []model.Import, name string) (model.Import, bool) {
	for _, imp := range imports {
		if imp.Name == name {
			return imp, true
		}
	}
	return model.Import{}, false
}

// Module returns the module the template instantiates.
func (t *Template) Module() *model.ModuleInterface { return t.mod }

// ref qualifies a name declared in the module package.
func (t *Template) ref(name string) string {
	if t.q.Name == "" {
		return name
	}
	return t.q.Name + "." + name
}

// Path is the module reference as written from the target package.
func (t *Template) Path() string { return t.ref(t.mod.Name) }

// Zero returns the module's default implementation as a type expression.
func (t *Template) Zero(at Site) (string, error) {
	if !t.mod.HasDefault() {
		return "", diag.MissingDefault(at.Pos, t.mod.Name, t.opts.Prefix)
	}
	return t.ref(t.mod.Default), nil
}

// Bare binds the target to the module's default. Without a default it only
// emits a configuration error. When the module requires an extension the
// default is wrapped in the guard type and a configuration error is emitted as
// well.
func (t *Template) Bare(at Site) Instance {
	def, err := t.Zero(at)
	if err != nil {
		var d diag.Diagnostic
		errors.As(err, &d)
		inst := Instance{Module: t.mod.Name}
		inst.fail(t, at, d, diag.ReasonMissingDefault)
		return inst
	}
	if !t.mod.ExtensionRequired {
		return t.Explicit(at, def)
	}
	inst := t.Explicit(at, t.ref(t.mod.NeverName())+"["+def+"]")
	inst.fail(t, at, diag.MissingExtension(at.Pos, t.mod.Name, t.opts.Prefix), diag.ReasonMissingExtension)
	return inst
}

func (inst *Instance) fail(t *Template, at Site, d diag.Diagnostic, reason string) {
	inst.Diags.Add(d)
	if t.opts.EmbedDiagnostics {
		inst.Code = diag.Sentinel(diag.SentinelIdent(at.Target, t.mod.Name, reason), d) + inst.Code
	}
}

type explicitData struct {
	Target   string
	ABI      string
	Alias    string
	Module   string
	Dispatch string
	Impl     string
	Forward  []transform.Entry
	Boundary []transform.Entry
}

var explicitTpl = template.Must(template.New("explicit").Parse(`
// {{.Alias}} is the {{.Module}} implementation {{.Target}} is wired to.
type {{.Alias}} = {{.Dispatch}}[{{.Impl}}]
{{range .Forward}}
{{.Doc}}func ({{$.Target}}) {{.Name}}({{.Params}}){{.Results}} {
	var {{.Local}} {{$.Alias}}
	{{if .Return}}return {{end}}{{.Local}}.{{.Name}}({{.Args}})
}
{{end}}
{{- range .Boundary}}
{{.Doc}}func ({{$.ABI}}) {{.Name}}({{.Params}}){{.Results}} {
	var {{.Local}} {{$.Target}}
	{{if .Return}}return {{end}}{{.Local}}.{{.Name}}({{.Args}})
}
{{end}}`))

// Explicit wires the target to impl, a type expression valid in the target
// package.
func (t *Template) Explicit(at Site, impl string) Instance {
	inst := Instance{Module: t.mod.Name, Chain: impl, Imports: t.imports}
	data := explicitData{
		Target:   at.Target,
		ABI:      ABIName(at.Target, t.opts),
		Alias:    ImplName(at.Target, t.mod.Name, t.opts),
		Module:   t.Path(),
		Dispatch: t.ref(t.mod.DispatchName()),
		Impl:     impl,
	}
	// The bodies name the alias and the target; parameters must not shadow them.
	for _, e := range t.entries.Forward {
		data.Forward = append(data.Forward, e.Avoid(data.Alias, data.Target))
	}
	for _, e := range t.entries.Boundary {
		data.Boundary = append(data.Boundary, e.Avoid(data.Alias, data.Target))
	}
	var buf bytes.Buffer
	if err := explicitTpl.Execute(&buf, data); err != nil {
		inst.Diags.Structural(at.Pos, t.mod.Name, "instantiate %s for %s: %v", t.mod.Name, at.Target, err)
		return inst
	}
	inst.Code = buf.String()
	return inst
}

// ABIName is the name of target's boundary type.
func ABIName(target string, opts Options) string { return target + opts.ABISuffix }

// ImplName is the name of the slot alias of module on target.
func ImplName(target, module string, opts Options) string {
	return target + module + opts.ImplSuffix
}
