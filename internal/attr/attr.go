// Package attr defines the options recognized on contractgen directives and
// decodes directive arguments into them.
//
// Module declaration:
//
//	//contract:trait default=Admin extension_required is_extension
//
// Method markers (in the method's doc comment):
//
//	//contract:internal
//	//contract:mut newAdmin
//
// Target declaration:
//
//	//contract:derive Administratable Upgradable(ext=AdministratableExt, default=Upgrader)
//
// A bare key means true. ext may repeat; its order is kept.
package attr

import (
	"errors"
	"fmt"
	"go/token"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// TraitArgs configures a module declaration.
type TraitArgs struct {
	Default           string `attr:"default" validate:"omitempty,goident"`
	ExtensionRequired bool   `attr:"extension_required"`
	IsExtension       bool   `attr:"is_extension"`
}

// ModuleArgs is one module entry of a derive directive.
type ModuleArgs struct {
	Name    string   `attr:"-" validate:"required,typepath"`
	Exts    []string `attr:"ext" validate:"dive,typepath"`
	Default string   `attr:"default" validate:"omitempty,typepath"`
}

// DeriveArgs configures a target declaration. Modules keep declaration order.
type DeriveArgs struct {
	Modules []ModuleArgs `validate:"required,dive"`
}

// MethodArgs collects the markers of one method.
type MethodArgs struct {
	Internal bool
	Mut      []string
}

var traitAliases = map[string]string{
	"ext_required": "extension_required",
	"is_ext":       "is_extension",
}

// Error reports a directive that could not be decoded.
type Error struct {
	Directive string // trait, derive, internal, mut
	Stage     string // scan, decode, validate
	Err       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s directive %s error: %v", e.Directive, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("attr"), ",", 2)[0]
		if name == "-" || name == "" {
			return strings.ToLower(f.Name)
		}
		return name
	})
	_ = v.RegisterValidation("goident", func(fl validator.FieldLevel) bool {
		return token.IsIdentifier(fl.Field().String())
	})
	_ = v.RegisterValidation("typepath", func(fl validator.FieldLevel) bool {
		return IsTypePath(fl.Field().String())
	})
	return v
}

// IsTypePath reports whether s is an identifier optionally qualified by
// dot-separated identifiers, e.g. "contractlib.AdministratableExt".
func IsTypePath(s string) bool {
	if s == "" {
		return false
	}
	for _, part := range strings.Split(s, ".") {
		if !token.IsIdentifier(part) {
			return false
		}
	}
	return true
}

// ParseTrait decodes the arguments of a trait directive.
func ParseTrait(args string) (TraitArgs, error) {
	var out TraitArgs
	pairs, err := newScanner(args).options(false)
	if err != nil {
		return out, &Error{Directive: "trait", Stage: "scan", Err: err}
	}
	raw := map[string]any{}
	for _, p := range pairs {
		key := p.key
		if alias, ok := traitAliases[key]; ok {
			key = alias
		}
		if _, dup := raw[key]; dup {
			return out, &Error{Directive: "trait", Stage: "decode", Err: fmt.Errorf("duplicate option %q", key)}
		}
		raw[key] = p.value
	}
	if err := decode(raw, &out); err != nil {
		return out, &Error{Directive: "trait", Stage: "decode", Err: err}
	}
	if err := validate.Struct(out); err != nil {
		return out, &Error{Directive: "trait", Stage: "validate", Err: describe(err)}
	}
	return out, nil
}

// ParseDerive decodes the arguments of a derive directive.
func ParseDerive(args string) (DeriveArgs, error) {
	var out DeriveArgs
	entries, err := newScanner(args).modules()
	if err != nil {
		return out, &Error{Directive: "derive", Stage: "scan", Err: err}
	}
	seen := map[string]bool{}
	for _, e := range entries {
		if seen[e.name] {
			return out, &Error{Directive: "derive", Stage: "decode", Err: fmt.Errorf("module %q listed twice", e.name)}
		}
		seen[e.name] = true

		raw := map[string]any{}
		var exts []string
		for _, p := range e.options {
			if p.key == "ext" {
				exts = append(exts, p.value)
				continue
			}
			if _, dup := raw[p.key]; dup {
				return out, &Error{Directive: "derive", Stage: "decode", Err: fmt.Errorf("%s: duplicate option %q", e.name, p.key)}
			}
			raw[p.key] = p.value
		}
		if len(exts) > 0 {
			raw["ext"] = exts
		}
		m := ModuleArgs{Name: e.name}
		if err := decode(raw, &m); err != nil {
			return out, &Error{Directive: "derive", Stage: "decode", Err: fmt.Errorf("%s: %w", e.name, err)}
		}
		out.Modules = append(out.Modules, m)
	}
	if err := validate.Struct(out); err != nil {
		return out, &Error{Directive: "derive", Stage: "validate", Err: describe(err)}
	}
	return out, nil
}

// Apply records one method marker: name is the directive keyword after the
// prefix ("internal" or "mut"), args the rest of the line.
func (m *MethodArgs) Apply(name, args string) error {
	switch name {
	case "internal":
		if strings.TrimSpace(args) != "" {
			return &Error{Directive: name, Stage: "scan", Err: fmt.Errorf("unexpected arguments %q", args)}
		}
		m.Internal = true
	case "mut":
		fields := strings.FieldsFunc(args, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' })
		if len(fields) == 0 {
			return &Error{Directive: name, Stage: "scan", Err: fmt.Errorf("expected parameter names")}
		}
		for _, f := range fields {
			if !token.IsIdentifier(f) {
				return &Error{Directive: name, Stage: "validate", Err: fmt.Errorf("%q is not a parameter name", f)}
			}
			m.Mut = append(m.Mut, f)
		}
	default:
		return &Error{Directive: name, Stage: "scan", Err: fmt.Errorf("unknown method directive")}
	}
	return nil
}

// IsMut reports whether param was tagged with //contract:mut.
func (m MethodArgs) IsMut(param string) bool {
	for _, p := range m.Mut {
		if p == param {
			return true
		}
	}
	return false
}

func decode(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		TagName:          "attr",
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "goident":
			msgs = append(msgs, fmt.Sprintf("%s=%v is not a Go identifier", fe.Field(), fe.Value()))
		case "typepath":
			msgs = append(msgs, fmt.Sprintf("%s=%v is not a type path", fe.Field(), fe.Value()))
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s fails %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
