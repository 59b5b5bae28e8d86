// Package source reads contractgen declaration files.
//
// A declaration file is an ordinary Go file, normally guarded by
// //go:build contractgen so the toolchain ignores it, that carries directives:
//
//	//contract:trait default=Admin is_extension
//	type Administratable interface {
//		Admin(env *host.Env) host.Address
//		//contract:internal
//		RequireAdmin(env *host.Env)
//	}
//
//	func (self Administratable) RequireAdmin(env *host.Env) {
//		self.Admin(env).RequireAuth(env)
//	}
//
//	//contract:derive Administratable Upgradable(ext=AdministratableUpgrade)
//	type Contract struct{}
//
// Methods declared with the interface itself as receiver are the module's
// hand-written bodies.
package source

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"go/ast"
	"go/build/constraint"
	"go/parser"
	"go/token"
	"go/types"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sghaida/contractgen/internal/attr"
	"github.com/sghaida/contractgen/internal/diag"
	"github.com/sghaida/contractgen/internal/model"
)

// Options controls how directives are recognized.
type Options struct {
	Prefix   string // directive namespace, "contract" reads //contract:trait
	BuildTag string // tag that hides declaration files from normal builds
}

// File is one parsed declaration file.
type File struct {
	Path       string
	Dir        string
	Package    string
	ImportPath string // set by the caller when known
	Imports    []model.Import
	Modules    []*model.ModuleInterface
	Targets    []*model.Target
	// BuildTagged reports whether the file is only built with the build tag.
	BuildTagged bool
	Hash        string // sha256 of the source
}

// Import returns the import bound to name in f.
func (f *File) Import(name string) (model.Import, bool) {
	for _, imp := range f.Imports {
		if imp.Name == name {
			return imp, true
		}
	}
	return model.Import{}, false
}

// HasDirectives is a cheap pre-filter: it reports whether src mentions a
// type-level directive at all.
func HasDirectives(src []byte, prefix string) bool {
	return bytes.Contains(src, []byte("//"+prefix+":trait")) || bytes.Contains(src, []byte("//"+prefix+":derive"))
}

type directive struct {
	name string
	args string
	pos  token.Pos
}

type fileParser struct {
	fset   *token.FileSet
	src    []byte
	opts   Options
	diags  diag.List
	file   *File
	bodies map[string][]*ast.FuncDecl // receiver type name -> methods
}

// ParseFile parses the declaration file at path. Structural problems are
// reported per declaration; the returned File holds the declarations that
// parsed cleanly.
func ParseFile(path string, src []byte, opts Options) (*File, diag.List) {
	fset := token.NewFileSet()
	af, err := parser.ParseFile(fset, path, src, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		var diags diag.List
		diags.Structural(token.Position{Filename: path}, filepath.Base(path), "parse: %v", err)
		return nil, diags
	}

	sum := sha256.Sum256(src)
	p := &fileParser{
		fset: fset,
		src:  src,
		opts: opts,
		file: &File{
			Path:    path,
			Dir:     filepath.Dir(path),
			Package: af.Name.Name,
			Hash:    hex.EncodeToString(sum[:]),
		},
		bodies: map[string][]*ast.FuncDecl{},
	}
	p.file.BuildTagged = p.buildTagged(af)
	p.file.Imports = p.imports(af)

	for _, decl := range af.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			p.funcDecl(d)
		case *ast.GenDecl:
			p.genDecl(d)
		}
	}
	p.attachBodies()
	return p.file, p.diags
}

func (p *fileParser) position(pos token.Pos) token.Position { return p.fset.Position(pos) }

// buildTagged reports whether the //go:build line makes the file depend on
// the build tag being set.
func (p *fileParser) buildTagged(af *ast.File) bool {
	if p.opts.BuildTag == "" {
		return false
	}
	for _, cg := range af.Comments {
		if cg.Pos() > af.Package {
			break
		}
		for _, c := range cg.List {
			if !constraint.IsGoBuild(c.Text) {
				continue
			}
			expr, err := constraint.Parse(c.Text)
			if err != nil {
				continue
			}
			with := expr.Eval(func(tag string) bool { return tag == p.opts.BuildTag })
			without := expr.Eval(func(string) bool { return false })
			return with && !without
		}
	}
	return false
}

func (p *fileParser) imports(af *ast.File) []model.Import {
	out := make([]model.Import, 0, len(af.Imports))
	for _, spec := range af.Imports {
		path, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		imp := model.Import{Path: path, Name: model.DefaultImportName(path)}
		if spec.Name != nil {
			// dot and blank imports cannot qualify a type
			if spec.Name.Name == "." || spec.Name.Name == "_" {
				continue
			}
			imp.Name = spec.Name.Name
		}
		out = append(out, imp)
	}
	return out
}

// directives splits a doc comment into plain lines and directives.
func (p *fileParser) directives(cg *ast.CommentGroup) (doc []string, dirs []directive) {
	if cg == nil {
		return nil, nil
	}
	marker := "//" + p.opts.Prefix + ":"
	for _, c := range cg.List {
		rest, ok := strings.CutPrefix(c.Text, marker)
		if !ok {
			doc = append(doc, c.Text)
			continue
		}
		name, args := rest, ""
		if i := strings.IndexAny(rest, " \t"); i >= 0 {
			name, args = rest[:i], strings.TrimSpace(rest[i+1:])
		}
		dirs = append(dirs, directive{name: name, args: args, pos: c.Pos()})
	}
	// drop the "//" separator gofmt leaves before a trailing directive
	for len(doc) > 0 && strings.TrimSpace(doc[len(doc)-1]) == "//" {
		doc = doc[:len(doc)-1]
	}
	return doc, dirs
}

func (p *fileParser) funcDecl(d *ast.FuncDecl) {
	_, dirs := p.directives(d.Doc)
	for _, dir := range dirs {
		if dir.name == "trait" || dir.name == "derive" {
			p.diags.Structural(p.position(dir.pos), d.Name.Name,
				"%s:%s must annotate a type declaration, found func %s", p.opts.Prefix, dir.name, d.Name.Name)
		}
	}
	if d.Recv == nil || len(d.Recv.List) != 1 || d.Body == nil {
		return
	}
	if recv := recvTypeName(d.Recv.List[0].Type); recv != "" {
		p.bodies[recv] = append(p.bodies[recv], d)
	}
}

func recvTypeName(e ast.Expr) string {
	switch x := e.(type) {
	case *ast.Ident:
		return x.Name
	case *ast.StarExpr:
		return recvTypeName(x.X)
	case *ast.ParenExpr:
		return recvTypeName(x.X)
	}
	return ""
}

func (p *fileParser) genDecl(d *ast.GenDecl) {
	if d.Tok != token.TYPE {
		_, dirs := p.directives(d.Doc)
		for _, dir := range dirs {
			if dir.name == "trait" || dir.name == "derive" {
				p.diags.Structural(p.position(dir.pos), d.Tok.String(),
					"%s:%s must annotate a type declaration, found %s", p.opts.Prefix, dir.name, d.Tok)
			}
		}
		return
	}
	for _, spec := range d.Specs {
		ts := spec.(*ast.TypeSpec)
		cg := ts.Doc
		if cg == nil && len(d.Specs) == 1 {
			cg = d.Doc
		}
		doc, dirs := p.directives(cg)
		for _, dir := range dirs {
			switch dir.name {
			case "trait":
				p.module(ts, doc, dir)
			case "derive":
				p.target(ts, doc, dir)
			default:
				p.diags.Structural(p.position(dir.pos), ts.Name.Name,
					"unknown directive %s:%s on type %s", p.opts.Prefix, dir.name, ts.Name.Name)
			}
		}
	}
}

// -------------------------
// module declarations
// -------------------------

func (p *fileParser) module(ts *ast.TypeSpec, doc []string, dir directive) {
	name := ts.Name.Name
	pos := p.position(ts.Pos())
	it, ok := ts.Type.(*ast.InterfaceType)
	if !ok {
		p.diags.Structural(pos, name, "%s:trait must annotate an interface type, found %s type %s",
			p.opts.Prefix, kindOf(ts.Type), name)
		return
	}
	if ts.TypeParams != nil {
		p.diags.Structural(pos, name, "generic interface %s cannot be a contract trait", name)
		return
	}
	args, err := attr.ParseTrait(dir.args)
	if err != nil {
		p.diags.Structural(p.position(dir.pos), name, "%s: %v", name, err)
		return
	}

	mod := &model.ModuleInterface{
		Name:              name,
		Doc:               doc,
		Default:           args.Default,
		ExtensionRequired: args.ExtensionRequired,
		IsExtension:       args.IsExtension,
		Package:           p.file.Package,
		Dir:               p.file.Dir,
		Imports:           p.file.Imports,
		Pos:               pos,
	}
	failed := false
	for _, field := range it.Methods.List {
		// embedded interfaces and type-set terms have no name
		if len(field.Names) == 0 {
			continue
		}
		ft, ok := field.Type.(*ast.FuncType)
		if !ok {
			continue
		}
		m, ok := p.method(name, field.Names[0].Name, field, ft)
		if !ok {
			failed = true
			continue
		}
		mod.Methods = append(mod.Methods, m)
	}
	if failed {
		return
	}
	p.file.Modules = append(p.file.Modules, mod)
}

func (p *fileParser) method(iface, name string, field *ast.Field, ft *ast.FuncType) (model.Method, bool) {
	subject := iface + "." + name
	doc, dirs := p.directives(field.Doc)
	var margs attr.MethodArgs
	for _, dir := range dirs {
		if err := margs.Apply(dir.name, dir.args); err != nil {
			p.diags.Structural(p.position(dir.pos), subject, "%s: %v", subject, err)
			return model.Method{}, false
		}
	}

	m := model.Method{
		Name: name,
		Doc:  doc,
		Pos:  p.position(field.Pos()),
	}
	if margs.Internal {
		m.Visibility = model.Internal
	}

	seen := map[string]bool{}
	idx := 0
	for _, f := range ft.Params.List {
		names := f.Names
		if len(names) == 0 {
			names = []*ast.Ident{nil}
		}
		for _, n := range names {
			pname := fmt.Sprintf("arg%d", idx)
			if n != nil && n.Name != "_" {
				pname = n.Name
			}
			idx++
			param := model.Param{Name: pname}
			typ := f.Type
			if el, ok := typ.(*ast.Ellipsis); ok {
				param.Variadic = true
				typ = el.Elt
			}
			param.Type = types.ExprString(typ)
			if star, ok := typ.(*ast.StarExpr); ok && !param.Variadic {
				param.Pass = model.ByRef
				param.Elem = types.ExprString(star.X)
			}
			if margs.IsMut(pname) {
				if param.Pass != model.ByRef {
					p.diags.Structural(p.position(f.Pos()), subject,
						"%s: %s:mut %s needs a pointer parameter, found %s", subject, p.opts.Prefix, pname, param.DeclType())
					return model.Method{}, false
				}
				param.Pass = model.ByMutRef
			}
			seen[pname] = true
			m.Params = append(m.Params, param)
		}
	}
	for _, mut := range margs.Mut {
		if !seen[mut] {
			p.diags.Structural(m.Pos, subject, "%s: %s:mut names unknown parameter %s", subject, p.opts.Prefix, mut)
			return model.Method{}, false
		}
	}

	if ft.Results != nil {
		for _, f := range ft.Results.List {
			typ := types.ExprString(f.Type)
			if len(f.Names) == 0 {
				m.Results = append(m.Results, model.Result{Type: typ})
				continue
			}
			for _, n := range f.Names {
				m.Results = append(m.Results, model.Result{Name: n.Name, Type: typ})
			}
		}
	}
	return m, true
}

// attachBodies binds the methods declared on module interfaces to their
// signatures.
func (p *fileParser) attachBodies() {
	for _, mod := range p.file.Modules {
		for _, fd := range p.bodies[mod.Name] {
			subject := mod.Name + "." + fd.Name.Name
			pos := p.position(fd.Pos())
			m, ok := mod.Method(fd.Name.Name)
			if !ok {
				p.diags.Structural(pos, subject, "body for %s has no matching method in interface %s", subject, mod.Name)
				continue
			}
			if m.Visibility == model.Public {
				p.diags.Warn(pos, subject, "body of public method %s is ignored: public methods always forward to the current implementation", subject)
				continue
			}
			if err := sameSignature(m, fd.Type); err != nil {
				p.diags.Structural(pos, subject, "body for %s does not match the interface method: %v", subject, err)
				continue
			}
			body := &model.Body{
				Sig: string(p.src[p.offset(fd.Type.Params.Pos()):p.offset(fd.Type.End())]),
				Src: string(p.src[p.offset(fd.Body.Lbrace) : p.offset(fd.Body.Rbrace)+1]),
				Pos: pos,
			}
			if names := fd.Recv.List[0].Names; len(names) > 0 && names[0].Name != "_" {
				body.Recv = names[0].Name
			}
			m.Body = body
		}
		delete(p.bodies, mod.Name)
	}
}

func (p *fileParser) offset(pos token.Pos) int { return p.fset.Position(pos).Offset }

// sameSignature compares parameter and result types; names may differ.
func sameSignature(m *model.Method, ft *ast.FuncType) error {
	var params []string
	for _, f := range ft.Params.List {
		typ := types.ExprString(f.Type)
		for range max(1, len(f.Names)) {
			params = append(params, typ)
		}
	}
	if len(params) != len(m.Params) {
		return fmt.Errorf("%d parameters, want %d", len(params), len(m.Params))
	}
	for i, p := range m.Params {
		if params[i] != p.DeclType() {
			return fmt.Errorf("parameter %d is %s, want %s", i+1, params[i], p.DeclType())
		}
	}
	var results []string
	if ft.Results != nil {
		for _, f := range ft.Results.List {
			typ := types.ExprString(f.Type)
			for range max(1, len(f.Names)) {
				results = append(results, typ)
			}
		}
	}
	if len(results) != len(m.Results) {
		return fmt.Errorf("%d results, want %d", len(results), len(m.Results))
	}
	for i, r := range m.Results {
		if results[i] != r.Type {
			return fmt.Errorf("result %d is %s, want %s", i+1, results[i], r.Type)
		}
	}
	return nil
}

// -------------------------
// targets
// -------------------------

func (p *fileParser) target(ts *ast.TypeSpec, doc []string, dir directive) {
	name := ts.Name.Name
	pos := p.position(ts.Pos())
	if _, ok := ts.Type.(*ast.StructType); !ok {
		p.diags.Structural(pos, name, "%s:derive must annotate a struct type, found %s type %s",
			p.opts.Prefix, kindOf(ts.Type), name)
		return
	}
	if ts.TypeParams != nil {
		p.diags.Structural(pos, name, "generic struct %s cannot derive contract traits", name)
		return
	}
	args, err := attr.ParseDerive(dir.args)
	if err != nil {
		p.diags.Structural(p.position(dir.pos), name, "%s: %v", name, err)
		return
	}

	t := &model.Target{
		Name: name,
		Doc:  doc,
		Src:  string(p.src[p.offset(ts.Pos()):p.offset(ts.End())]),
		Pos:  pos,
	}
	dirPos := p.position(dir.pos)
	for _, ma := range args.Modules {
		qual, mname := "", ma.Name
		if i := strings.LastIndexByte(ma.Name, '.'); i >= 0 {
			qual, mname = ma.Name[:i], ma.Name[i+1:]
		}
		if strings.Contains(qual, ".") {
			p.diags.Structural(dirPos, name, "%s: module reference %s must be Name or pkg.Name", name, ma.Name)
			return
		}
		t.Modules = append(t.Modules, model.ModuleRef{
			Qualifier: qual,
			Name:      mname,
			Exts:      ma.Exts,
			Default:   ma.Default,
			Pos:       dirPos,
		})
	}
	p.file.Targets = append(p.file.Targets, t)
}

func kindOf(e ast.Expr) string {
	switch x := e.(type) {
	case *ast.StructType:
		return "struct"
	case *ast.InterfaceType:
		return "interface"
	case *ast.FuncType:
		return "func"
	case *ast.MapType:
		return "map"
	case *ast.ChanType:
		return "chan"
	case *ast.ArrayType:
		if x.Len == nil {
			return "slice"
		}
		return "array"
	case *ast.StarExpr:
		return "pointer"
	case *ast.ParenExpr:
		return kindOf(x.X)
	default:
		return "named"
	}
}
