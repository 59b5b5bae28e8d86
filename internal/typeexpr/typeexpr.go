// Package typeexpr rewrites Go type expressions declared in one package so they
// can be written in another.
package typeexpr

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/types"
	"sort"

	"golang.org/x/tools/go/ast/astutil"
)

// Qualify returns src with every package-local type name prefixed by
// qualifier. Predeclared names (int, error, any, ...) and already-qualified
// names are kept. It also returns the package qualifiers src already used, so
// callers can carry the matching imports.
//
// An empty qualifier only normalizes the spelling of src.
func Qualify(src, qualifier string) (string, []string, error) {
	expr, err := parser.ParseExpr(src)
	if err != nil {
		return "", nil, fmt.Errorf("typeexpr: parse %q: %w", src, err)
	}
	used := map[string]bool{}
	out := qualifyNode(expr, qualifier, used)
	return types.ExprString(out), sortedKeys(used), nil
}

func qualifyNode(n ast.Expr, qualifier string, used map[string]bool) ast.Expr {
	if n == nil {
		return nil
	}
	res := astutil.Apply(n, func(c *astutil.Cursor) bool {
		switch x := c.Node().(type) {
		case *ast.SelectorExpr:
			if id, ok := x.X.(*ast.Ident); ok {
				used[id.Name] = true
			}
			return false
		case *ast.Field:
			x.Type = qualifyNode(x.Type, qualifier, used)
			return false
		case *ast.Ident:
			if qualifier != "" && !isPredeclared(x.Name) && x.Name != "_" {
				c.Replace(&ast.SelectorExpr{X: ast.NewIdent(qualifier), Sel: ast.NewIdent(x.Name)})
			}
			return false
		}
		return true
	}, nil)
	return res.(ast.Expr)
}

// Must is Qualify for callers that already validated src.
func Must(src, qualifier string) string {
	out, _, err := Qualify(src, qualifier)
	if err != nil {
		panic(err)
	}
	return out
}

// Qualifiers returns the package qualifiers used by src.
func Qualifiers(src string) ([]string, error) {
	_, used, err := Qualify(src, "")
	return used, err
}

func isPredeclared(name string) bool {
	obj := types.Universe.Lookup(name)
	if obj == nil {
		return false
	}
	switch obj.(type) {
	case *types.TypeName, *types.Const, *types.Nil:
		return true
	}
	return false
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Idents returns every unqualified identifier src refers to, predeclared ones
// included. Generated code uses it to pick names that cannot shadow a type the
// signature mentions.
func Idents(src string) ([]string, error) {
	expr, err := parser.ParseExpr(src)
	if err != nil {
		return nil, fmt.Errorf("typeexpr: parse %q: %w", src, err)
	}
	seen := map[string]bool{}
	ast.Inspect(expr, func(n ast.Node) bool {
		switch x := n.(type) {
		case *ast.SelectorExpr:
			if id, ok := x.X.(*ast.Ident); ok {
				seen[id.Name] = true
				return false
			}
			ast.Inspect(x.X, func(n ast.Node) bool {
				if id, ok := n.(*ast.Ident); ok {
					seen[id.Name] = true
				}
				return true
			})
			return false
		case *ast.Ident:
			seen[x.Name] = true
		}
		return true
	})
	return sortedKeys(seen), nil
}
