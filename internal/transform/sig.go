package transform

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sghaida/contractgen/internal/model"
	"github.com/sghaida/contractgen/internal/typeexpr"
)

// Entry is a rendered method signature plus the argument list that forwards
// its parameters to a method of the same shape.
type Entry struct {
	Name    string
	Doc     string // comment block, newline terminated, may be empty
	Params  string // "env *host.Env, newAdmin host.Address"
	Args    string // "env, newAdmin"
	Results string // "", " host.Address" or " (n int, err error)"
	Return  bool   // forwarding needs "return"
	Local   string // forwarding local that cannot clash with a parameter

	method   model.Method
	boundary bool
}

// Avoid returns e with every parameter and result named like one of names
// renamed, so a forwarding body can refer to names.
func (e Entry) Avoid(names ...string) Entry {
	reserved := map[string]bool{}
	mark(reserved, names)
	clash := reserved[e.Local]
	for _, p := range e.method.Params {
		clash = clash || reserved[p.Name]
	}
	for _, r := range e.method.Results {
		clash = clash || reserved[r.Name]
	}
	if !clash {
		return e
	}

	m := e.method
	taken := map[string]bool{}
	mark(taken, names)
	mark(taken, signatureNames(m))
	m.Params = append([]model.Param(nil), m.Params...)
	for i, p := range m.Params {
		if reserved[p.Name] {
			m.Params[i].Name = fresh(p.Name, taken)
			taken[m.Params[i].Name] = true
		}
	}
	m.Results = append([]model.Result(nil), m.Results...)
	for i, r := range m.Results {
		if reserved[r.Name] {
			m.Results[i].Name = fresh(r.Name, taken)
			taken[m.Results[i].Name] = true
		}
	}
	out := newEntry(m, e.boundary)
	out.Local = fresh("impl", taken)
	return out
}

// Entries holds both shapes of a module's methods as seen from one package.
type Entries struct {
	// Forward holds every method with its natural signature.
	Forward []Entry
	// Boundary holds the Public methods with ABI-normalized signatures:
	// pointer params are taken by value and forwarded as &p.
	Boundary []Entry
	// Qualifiers are the package names the signatures use.
	Qualifiers []string
}

// EntriesFor renders the methods of m for a package that reaches m's package
// through qualifier ("" for m's own package).
func EntriesFor(m *model.ModuleInterface, qualifier string) (Entries, error) {
	var out Entries
	used := map[string]bool{}
	for _, meth := range m.Methods {
		q, err := qualifyMethod(meth, qualifier, used)
		if err != nil {
			return Entries{}, fmt.Errorf("%s.%s: %w", m.Name, meth.Name, err)
		}
		out.Forward = append(out.Forward, newEntry(q, false))
		if q.Visibility == model.Public {
			out.Boundary = append(out.Boundary, newEntry(q, true))
		}
	}
	if qualifier != "" {
		used[qualifier] = true
	}
	for k := range used {
		out.Qualifiers = append(out.Qualifiers, k)
	}
	sort.Strings(out.Qualifiers)
	return out, nil
}

func qualifyMethod(m model.Method, qualifier string, used map[string]bool) (model.Method, error) {
	q := m
	q.Params = make([]model.Param, len(m.Params))
	for i, p := range m.Params {
		typ, quals, err := typeexpr.Qualify(p.Type, qualifier)
		if err != nil {
			return q, err
		}
		mark(used, quals)
		p.Type = typ
		if p.Elem != "" {
			if p.Elem, _, err = typeexpr.Qualify(p.Elem, qualifier); err != nil {
				return q, err
			}
		}
		q.Params[i] = p
	}
	q.Results = make([]model.Result, len(m.Results))
	for i, r := range m.Results {
		typ, quals, err := typeexpr.Qualify(r.Type, qualifier)
		if err != nil {
			return q, err
		}
		mark(used, quals)
		r.Type = typ
		q.Results[i] = r
	}
	return q, nil
}

func mark(set map[string]bool, keys []string) {
	for _, k := range keys {
		set[k] = true
	}
}

// newEntry renders m. Boundary entries take pointer params by value and
// forward them as &p.
func newEntry(m model.Method, boundary bool) Entry {
	params := make([]string, len(m.Params))
	args := make([]string, len(m.Params))
	for i, p := range m.Params {
		if boundary && (p.Pass == model.ByRef || p.Pass == model.ByMutRef) {
			params[i] = p.Name + " " + p.Elem
			args[i] = "&" + p.Name
			continue
		}
		params[i] = p.Name + " " + p.DeclType()
		args[i] = forwardArg(p.Name, p.Variadic)
	}
	return Entry{
		Name:     m.Name,
		Doc:      model.CommentBlock(m.Doc),
		Params:   strings.Join(params, ", "),
		Args:     strings.Join(args, ", "),
		Results:  results(m.Results),
		Return:   m.HasResults(),
		Local:    localName(m),
		method:   m,
		boundary: boundary,
	}
}

func forwardArg(name string, variadic bool) string {
	if variadic {
		return name + "..."
	}
	return name
}

func results(rs []model.Result) string {
	switch {
	case len(rs) == 0:
		return ""
	case len(rs) == 1 && rs[0].Name == "":
		return " " + rs[0].Type
	}
	parts := make([]string, len(rs))
	for i, r := range rs {
		if r.Name == "" {
			parts[i] = r.Type
		} else {
			parts[i] = r.Name + " " + r.Type
		}
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

// localName picks the forwarding variable name, "impl" unless a parameter
// or result already has it.
func localName(m model.Method) string {
	taken := map[string]bool{}
	mark(taken, signatureNames(m))
	return fresh("impl", taken)
}

// signatureNames lists the parameter and result names of m.
func signatureNames(m model.Method) []string {
	var out []string
	for _, p := range m.Params {
		out = append(out, p.Name)
	}
	for _, r := range m.Results {
		if r.Name != "" {
			out = append(out, r.Name)
		}
	}
	return out
}

func fresh(base string, taken map[string]bool) string {
	if !taken[base] {
		return base
	}
	for i := 0; ; i++ {
		name := fmt.Sprintf("%s%d", base, i)
		if !taken[name] {
			return name
		}
	}
}
