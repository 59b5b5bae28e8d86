// Package render assembles, formats and writes generated files.
package render

import (
	"bytes"
	"fmt"
	"go/format"
	"go/parser"
	"go/token"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/sghaida/contractgen/internal/model"
)

// File is one generated Go file.
type File struct {
	Package    string
	Source     string // base name of the declaration file
	SourceHash string
	BuildTag   string // the file is built only when the tag is unset
	Imports    []model.Import
	Body       string
}

type importLine struct {
	Alias string
	Path  string
}

type fileData struct {
	File
	Lines []importLine
}

var fileTpl = template.Must(template.New("file").Parse(`// Code generated by contractgen; DO NOT EDIT.
// Source: {{.Source}}
// Source-SHA256: {{.SourceHash}}
{{if .BuildTag}}
//go:build !{{.BuildTag}}
{{end}}
package {{.Package}}
{{if eq (len .Lines) 1}}{{with index .Lines 0}}
import {{if .Alias}}{{.Alias}} {{end}}{{printf "%q" .Path}}
{{end}}{{else if .Lines}}
import (
{{- range .Lines}}
	{{if .Alias}}{{.Alias}} {{end}}{{printf "%q" .Path}}
{{- end}}
)
{{end}}
{{.Body}}
`))

// FormatError is returned when the assembled source does not parse. Src is
// the unformatted output, for inspection.
type FormatError struct {
	Src []byte
	Err error
}

func (e *FormatError) Error() string { return "gofmt/format failed: " + e.Err.Error() }

func (e *FormatError) Unwrap() error { return e.Err }

// Bytes renders f, drops the imports the body does not use and formats the
// result.
func (f File) Bytes() ([]byte, error) {
	data := fileData{File: f}
	for _, imp := range f.Imports {
		line := importLine{Path: imp.Path}
		if imp.Name != path.Base(imp.Path) {
			line.Alias = imp.Name
		}
		data.Lines = append(data.Lines, line)
	}
	var buf bytes.Buffer
	if err := fileTpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return Prune(buf.Bytes())
}

// Prune removes unused imports from src and formats it.
func Prune(src []byte) ([]byte, error) {
	fset := token.NewFileSet()
	// UsesImport depends on object resolution.
	af, err := parser.ParseFile(fset, "", src, parser.ParseComments)
	if err != nil {
		return nil, &FormatError{Src: src, Err: err}
	}
	var unused []importLine
	for _, spec := range af.Imports {
		p := strings.Trim(spec.Path.Value, `"`)
		if astutil.UsesImport(af, p) {
			continue
		}
		line := importLine{Path: p}
		if spec.Name != nil {
			line.Alias = spec.Name.Name
		}
		unused = append(unused, line)
	}
	for _, line := range unused {
		astutil.DeleteNamedImport(fset, af, line.Alias, line.Path)
	}
	var out bytes.Buffer
	if err := format.Node(&out, fset, af); err != nil {
		return nil, &FormatError{Src: src, Err: err}
	}
	formatted, err := format.Source(out.Bytes())
	if err != nil {
		return nil, &FormatError{Src: out.Bytes(), Err: err}
	}
	return formatted, nil
}

// ImportConflictError reports one package name bound to two paths.
type ImportConflictError struct {
	Name  string
	Paths [2]string
}

func (e *ImportConflictError) Error() string {
	return fmt.Sprintf("import name %s refers to both %s and %s", e.Name, e.Paths[0], e.Paths[1])
}

// MergeImports dedupes the import groups and sorts them by path.
func MergeImports(groups ...[]model.Import) ([]model.Import, error) {
	type key struct {
		path string
		name string
	}
	seen := map[key]bool{}
	byName := map[string]string{}
	var out []model.Import
	for _, group := range groups {
		for _, imp := range group {
			if imp.Path == "" {
				continue
			}
			if imp.Name == "" {
				imp.Name = model.DefaultImportName(imp.Path)
			}
			if prev, ok := byName[imp.Name]; ok && prev != imp.Path {
				return nil, &ImportConflictError{Name: imp.Name, Paths: [2]string{prev, imp.Path}}
			}
			byName[imp.Name] = imp.Path
			k := key{path: imp.Path, name: imp.Name}
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, imp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path == out[j].Path {
			return out[i].Name < out[j].Name
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}

// OutputPath is the generated file written beside declPath.
func OutputPath(declPath, suffix string) string {
	dir, base := filepath.Split(declPath)
	return filepath.Join(dir, strings.TrimSuffix(base, ".go")+suffix)
}

// Write stores src at file unless it already holds exactly src.
func Write(file string, src []byte) (changed bool, err error) {
	if old, err := os.ReadFile(file); err == nil && bytes.Equal(old, src) {
		return false, nil
	}
	if err := os.WriteFile(file, src, 0o644); err != nil {
		return false, err
	}
	return true, nil
}

// Check reports whether file differs from src. A missing file is stale.
func Check(file string, src []byte) (stale bool, err error) {
	old, err := os.ReadFile(file)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return !bytes.Equal(old, src), nil
}
