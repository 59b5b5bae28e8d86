// Package transform turns one module interface into the declarations emitted
// into the module's own package.
//
// For a module M it emits, in order:
//
//   - M itself, with every directive marker stripped;
//   - MDispatch[I M], the current-implementation slot. Its methods forward to
//     I, except Internal methods with a hand-written body, which keep the body;
//   - MNever[N M] when M requires an extension: every method panics;
//   - MExt[T M, N any] when M is an extension.
//
// The boundary entry points are not emitted here: they belong to the targets
// and are rendered from EntriesFor by the instantiate package.
package transform

import (
	"bytes"
	"fmt"
	"strconv"
	"text/template"

	"github.com/sghaida/contractgen/internal/diag"
	"github.com/sghaida/contractgen/internal/model"
	"github.com/sghaida/contractgen/internal/typeexpr"
)

// Artifact is the generated code for one module.
type Artifact struct {
	Module *model.ModuleInterface
	// Code is unformatted Go source for the module's package, without package
	// clause or imports.
	Code string
	// Qualifiers are the package names Code uses; the renderer resolves
	// them against the module's imports.
	Qualifiers []string
	// GuardMessage is the panic message of the guard type, "" without one.
	GuardMessage string
}

type dispatchMethod struct {
	Entry
	Body *model.Body
}

type moduleData struct {
	Name      string
	Doc       string
	Iface     []Entry
	Dispatch  string
	Slot      string
	Methods   []dispatchMethod
	Never     string
	NeverSlot string
	NeverMsg  string // Go string literal
	Ext       string
	ExtT      string
	ExtN      string
}

var moduleTpl = template.Must(template.New("module").Parse(`{{.Doc}}type {{.Name}} interface {
{{- range .Iface}}
{{.Doc}}{{.Name}}({{.Params}}){{.Results}}
{{- end}}
}

// {{.Dispatch}} is the current-implementation slot of {{.Name}}. Its methods
// dispatch statically to {{.Slot}}.
type {{.Dispatch}}[{{.Slot}} {{.Name}}] struct{}
{{range .Methods}}
{{.Doc}}{{if .Body -}}
func ({{with .Body.Recv}}{{.}} {{end}}{{$.Dispatch}}[{{$.Slot}}]) {{.Name}}{{.Body.Sig}} {{.Body.Src}}
{{- else -}}
func ({{$.Dispatch}}[{{$.Slot}}]) {{.Name}}({{.Params}}){{.Results}} {
	var {{.Local}} {{$.Slot}}
	{{if .Return}}return {{end}}{{.Local}}.{{.Name}}({{.Args}})
}
{{- end}}
{{end}}
{{- if .Never}}
// {{.Never}} stands in for {{.Name}} when no extension was supplied. Every
// method panics.
type {{.Never}}[{{.NeverSlot}} {{.Name}}] struct{}
{{range .Iface}}
func ({{$.Never}}[{{$.NeverSlot}}]) {{.Name}}({{.Params}}){{.Results}} {
	panic({{$.NeverMsg}})
}
{{end}}
{{- end}}
{{- if .Ext}}
// {{.Ext}} is the extension template of {{.Name}}: {{.ExtT}} is the capability
// the extension consults, {{.ExtN}} the implementation it wraps.
type {{.Ext}}[{{.ExtT}} {{.Name}}, {{.ExtN}} any] struct{}
{{end}}`))

// Transform renders the module-side declarations of m.
func Transform(m *model.ModuleInterface, prefix string) (*Artifact, error) {
	entries, err := EntriesFor(m, "")
	if err != nil {
		return nil, err
	}
	taken, err := takenNames(m)
	if err != nil {
		return nil, err
	}

	data := moduleData{
		Name:     m.Name,
		Doc:      model.CommentBlock(m.Doc),
		Iface:    entries.Forward,
		Dispatch: m.DispatchName(),
		Slot:     fresh("I", taken),
	}
	for i, e := range entries.Forward {
		data.Methods = append(data.Methods, dispatchMethod{Entry: e, Body: m.Methods[i].Body})
	}

	art := &Artifact{Module: m, Qualifiers: entries.Qualifiers}
	if m.ExtensionRequired {
		art.GuardMessage = diag.MissingExtension(m.Pos, m.Name, prefix).Message
		data.Never = m.NeverName()
		data.NeverSlot = fresh("N", taken)
		data.NeverMsg = strconv.Quote(art.GuardMessage)
	}
	if m.IsExtension {
		data.Ext = m.ExtName()
		data.ExtT = fresh("T", taken)
		taken[data.ExtT] = true
		data.ExtN = fresh("N", taken)
	}

	var buf bytes.Buffer
	if err := moduleTpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("transform %s: %w", m.Name, err)
	}
	art.Code = buf.String()
	return art, nil
}

// takenNames collects every identifier m's signatures and bodies use,
// parameter and result names included, so type parameter names never shadow
// or collide with them.
func takenNames(m *model.ModuleInterface) (map[string]bool, error) {
	taken := map[string]bool{m.Name: true}
	add := func(src string) error {
		ids, err := typeexpr.Idents(src)
		if err != nil {
			return err
		}
		mark(taken, ids)
		return nil
	}
	for _, meth := range m.Methods {
		mark(taken, signatureNames(meth))
		for _, p := range meth.Params {
			if err := add(p.Type); err != nil {
				return nil, err
			}
		}
		for _, r := range meth.Results {
			if err := add(r.Type); err != nil {
				return nil, err
			}
		}
		if b := meth.Body; b != nil {
			if b.Recv != "" {
				taken[b.Recv] = true
			}
			if err := add("func" + b.Sig + " " + b.Src); err != nil {
				return nil, err
			}
		}
	}
	return taken, nil
}
