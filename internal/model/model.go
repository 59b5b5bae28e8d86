// Package model holds the declarations contractgen works on: module interfaces
// ("contract traits"), their methods, and the targets that wire them.
//
// Types are kept as Go source text relative to the package that declared them.
// Emitters that write into another package qualify them (see internal/typeexpr).
package model

import (
	"go/token"
	"strings"
	"unicode"
)

// PassKind is how a parameter is passed to a module method.
type PassKind int

const (
	// ByValue parameters are forwarded unchanged everywhere.
	ByValue PassKind = iota
	// ByRef parameters are pointers; the boundary takes the pointee by value.
	ByRef
	// ByMutRef parameters are pointers tagged with //contract:mut.
	ByMutRef
)

func (k PassKind) String() string {
	switch k {
	case ByRef:
		return "ref"
	case ByMutRef:
		return "mut"
	default:
		return "value"
	}
}

// Visibility tells whether a method is exposed at the boundary.
type Visibility int

const (
	// Public methods get a boundary entry point on every wired target.
	Public Visibility = iota
	// Internal methods are composition-only.
	Internal
)

func (v Visibility) String() string {
	if v == Internal {
		return "internal"
	}
	return "public"
}

// Import is one import of a Go file.
type Import struct {
	Name string // alias or package name, never empty once resolved
	Path string
}

// Param is a method parameter.
type Param struct {
	Name string
	// Type is the declared type. For variadic params it is the element type.
	Type string
	// Elem is the pointee type for ByRef / ByMutRef params.
	Elem     string
	Pass     PassKind
	Variadic bool
}

// DeclType returns the type as written in a parameter list.
func (p Param) DeclType() string {
	if p.Variadic {
		return "..." + p.Type
	}
	return p.Type
}

// Result is a method result.
type Result struct {
	Name string
	Type string
}

// Body is a hand-written method body taken from the declaration file.
type Body struct {
	Recv string // receiver name; empty when the author left it unnamed
	Sig  string // parameters and results as written, e.g. "(e *host.Env) (ok bool)"
	Src  string // the block, braces included, byte-for-byte as written
	Pos  token.Position
}

// Method is one method of a module interface.
type Method struct {
	Name       string
	Doc        []string // comment lines as written, //contract: markers removed
	Params     []Param
	Results    []Result
	Visibility Visibility
	Body       *Body
	Pos        token.Position
}

// HasResults reports whether m returns anything.
func (m Method) HasResults() bool { return len(m.Results) > 0 }

// IsAbstract reports whether m has no hand-written body.
func (m Method) IsAbstract() bool { return m.Body == nil }

// ModuleInterface is a module declaration: an interface plus its options.
type ModuleInterface struct {
	Name              string
	Doc               []string
	Methods           []Method
	Default           string // implementation type in the module package, "" if none
	ExtensionRequired bool
	IsExtension       bool

	Package    string   // package name of the declaring file
	ImportPath string   // may be empty outside a Go module
	Dir        string   // directory of the declaring file
	Imports    []Import // imports of the declaring file
	Pos        token.Position
}

// HasDefault reports whether the module names a default implementation.
func (m *ModuleInterface) HasDefault() bool { return m.Default != "" }

// DispatchName is the name of the generated current-implementation slot type.
func (m *ModuleInterface) DispatchName() string { return m.Name + "Dispatch" }

// NeverName is the name of the generated guard type.
func (m *ModuleInterface) NeverName() string { return m.Name + "Never" }

// ExtName is the name of the generated extension template.
func (m *ModuleInterface) ExtName() string { return m.Name + "Ext" }

// Public returns the Public methods in declaration order.
func (m *ModuleInterface) Public() []Method {
	out := make([]Method, 0, len(m.Methods))
	for _, meth := range m.Methods {
		if meth.Visibility == Public {
			out = append(out, meth)
		}
	}
	return out
}

// Method looks a method up by name.
func (m *ModuleInterface) Method(name string) (*Method, bool) {
	for i := range m.Methods {
		if m.Methods[i].Name == name {
			return &m.Methods[i], true
		}
	}
	return nil, false
}

// ModuleRef is one entry of a derive directive.
type ModuleRef struct {
	Qualifier string   // package name in the target file, "" for the same package
	Name      string   // module interface name
	Exts      []string // extension type paths, in declaration order
	Default   string   // explicit base implementation, "" when absent
	Pos       token.Position
}

// Path returns the reference as written, e.g. "contractlib.Upgradable".
func (r ModuleRef) Path() string {
	if r.Qualifier == "" {
		return r.Name
	}
	return r.Qualifier + "." + r.Name
}

// Target is a struct declaration carrying a derive directive.
type Target struct {
	Name    string
	Doc     []string
	Src     string // type spec as written, without the "type" keyword
	Modules []ModuleRef
	Pos     token.Position
}

// CommentBlock joins comment lines for emission, one per line.
func CommentBlock(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// DefaultImportName guesses the package name of an unaliased import the way
// goimports does: the last path element, skipping a /vN major version suffix.
func DefaultImportName(path string) string {
	elems := strings.Split(path, "/")
	name := elems[len(elems)-1]
	if len(elems) > 1 && isMajorVersion(name) {
		name = elems[len(elems)-2]
	}
	name = strings.TrimPrefix(name, "go-")
	if i := strings.IndexFunc(name, notIdent); i >= 0 {
		name = name[:i]
	}
	return name
}

func notIdent(r rune) bool {
	return !(r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r))
}

func isMajorVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
