// Package compose resolves the module chains of a target and emits one
// instantiation per module.
//
// For a module entry with extensions [E1, E2] and base D the chain is the
// left fold
//
//	acc = D                   // explicit default, or the module's Zero form
//	acc = E1[Target, acc]
//	acc = E2[Target, acc]     // E2[Target, E1[Target, D]]
//
// so the first extension sits next to the base and the last one is reached
// first. An entry with neither extensions nor an explicit default uses the
// Bare form directly.
package compose

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/sghaida/contractgen/internal/diag"
	"github.com/sghaida/contractgen/internal/instantiate"
	"github.com/sghaida/contractgen/internal/model"
)

// Chain is an ordered extension list around a base implementation.
type Chain struct {
	Base string
	Exts []string
}

// Expr folds c into one nested type expression for target.
func (c Chain) Expr(target string) string {
	acc := c.Base
	for _, ext := range c.Exts {
		acc = ext + "[" + target + ", " + acc + "]"
	}
	return acc
}

// Templates looks up the instantiation template a module reference points to.
type Templates interface {
	Template(ref model.ModuleRef) (*instantiate.Template, error)
}

// TemplatesFunc adapts a function to Templates.
type TemplatesFunc func(ref model.ModuleRef) (*instantiate.Template, error)

// Template calls f.
func (f TemplatesFunc) Template(ref model.ModuleRef) (*instantiate.Template, error) { return f(ref) }

// Result is the generated code of one target.
type Result struct {
	Target    string
	Code      string
	Imports   []model.Import
	Instances []instantiate.Instance
	Diags     diag.List
}

type targetData struct {
	Doc  string
	Src  string
	Name string
	ABI  string
}

var targetTpl = template.Must(template.New("target").Parse(`{{.Doc}}type {{.Src}}

// {{.ABI}} is the boundary surface of {{.Name}}.
type {{.ABI}} struct{}
`))

// Resolve wires every module of t. Configuration problems are reported in
// the result and, when opts.EmbedDiagnostics is set, embedded as
// build-failing sentinels; they never stop the remaining modules.
func Resolve(t *model.Target, templates Templates, opts instantiate.Options) Result {
	res := Result{Target: t.Name}
	var buf bytes.Buffer
	if err := targetTpl.Execute(&buf, targetData{
		Doc:  model.CommentBlock(t.Doc),
		Src:  t.Src,
		Name: t.Name,
		ABI:  instantiate.ABIName(t.Name, opts),
	}); err != nil {
		res.Diags.Structural(t.Pos, t.Name, "render target %s: %v", t.Name, err)
		return res
	}

	owners := map[string]string{}  // method name -> module path
	aliases := map[string]string{} // slot alias -> module path
	for _, ref := range t.Modules {
		site := instantiate.Site{Target: t.Name, Pos: ref.Pos}
		tpl, err := templates.Template(ref)
		if err != nil {
			res.fail(&buf, opts, site, diag.UnknownModule(ref.Pos, ref.Path(), err), ref.Name, diag.ReasonUnknownModule)
			continue
		}
		alias := instantiate.ImplName(t.Name, tpl.Module().Name, opts)
		if owner, taken := aliases[alias]; taken {
			d := diag.Diagnostic{
				Pos:     ref.Pos,
				Kind:    diag.Configuration,
				Subject: ref.Path(),
				Message: fmt.Sprintf("contract trait `%s` cannot be wired: %s already binds %s", ref.Path(), alias, owner),
			}
			res.fail(&buf, opts, site, d, ref.Name, diag.ReasonAliasConflict)
			continue
		}
		if d, ok := conflict(owners, tpl, ref); ok {
			res.fail(&buf, opts, site, d, ref.Name, diag.ReasonMethodConflict)
			continue
		}

		inst, err := resolveOne(tpl, site, ref)
		if err != nil {
			var d diag.Diagnostic
			if !errors.As(err, &d) {
				d = diag.Diagnostic{Pos: site.Pos, Kind: diag.Configuration, Subject: ref.Path(), Message: err.Error()}
			}
			res.fail(&buf, opts, site, d, ref.Name, diag.ReasonMissingDefault)
			continue
		}
		res.Instances = append(res.Instances, inst)
		res.Imports = append(res.Imports, inst.Imports...)
		res.Diags.Append(inst.Diags)
		buf.WriteString(inst.Code)
		if inst.Chain == "" {
			continue
		}
		// Only a bound module owns its names.
		aliases[alias] = ref.Path()
		for _, m := range tpl.Module().Methods {
			owners[m.Name] = ref.Path()
		}
	}
	res.Code = buf.String()
	return res
}

// resolveOne picks the form for ref. The error is the Zero form's
// configuration error when a chain has no base to wrap.
func resolveOne(tpl *instantiate.Template, site instantiate.Site, ref model.ModuleRef) (instantiate.Instance, error) {
	if len(ref.Exts) == 0 && ref.Default == "" {
		return tpl.Bare(site), nil
	}
	base := ref.Default
	if base == "" {
		zero, err := tpl.Zero(site)
		if err != nil {
			return instantiate.Instance{}, err
		}
		base = zero
	}
	return tpl.Explicit(site, Chain{Base: base, Exts: ref.Exts}.Expr(site.Target)), nil
}

func conflict(owners map[string]string, tpl *instantiate.Template, ref model.ModuleRef) (diag.Diagnostic, bool) {
	var clashes []string
	for _, m := range tpl.Module().Methods {
		if owner, taken := owners[m.Name]; taken {
			clashes = append(clashes, m.Name+" ("+owner+")")
		}
	}
	if len(clashes) > 0 {
		return diag.Diagnostic{
			Pos:     ref.Pos,
			Kind:    diag.Configuration,
			Subject: ref.Path(),
			Message: fmt.Sprintf("contract trait `%s` cannot be wired: methods already provided by another trait: %s",
				ref.Path(), strings.Join(clashes, ", ")),
		}, true
	}
	return diag.Diagnostic{}, false
}

func (r *Result) fail(buf *bytes.Buffer, opts instantiate.Options, site instantiate.Site, d diag.Diagnostic, module, reason string) {
	r.Diags.Add(d)
	if opts.EmbedDiagnostics {
		buf.WriteString("\n")
		buf.WriteString(diag.Sentinel(diag.SentinelIdent(site.Target, module, reason), d))
	}
}
