package attr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTrait(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args string
		want TraitArgs
	}{
		{name: "empty", args: "", want: TraitArgs{}},
		{name: "default_only", args: "default=Admin", want: TraitArgs{Default: "Admin"}},
		{name: "all", args: "default=Admin extension_required is_extension", want: TraitArgs{Default: "Admin", ExtensionRequired: true, IsExtension: true}},
		{name: "commas_and_aliases", args: "is_ext, ext_required", want: TraitArgs{ExtensionRequired: true, IsExtension: true}},
		{name: "explicit_bool", args: "is_extension=false default=\"Admin\"", want: TraitArgs{Default: "Admin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseTrait(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTrait_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		args  string
		stage string
		want  string
	}{
		{name: "unknown_option", args: "defualt=Admin", stage: "decode", want: "defualt"},
		{name: "duplicate", args: "is_ext is_extension", stage: "decode", want: `duplicate option "is_extension"`},
		{name: "qualified_default", args: "default=lib.Admin", stage: "validate", want: "default=lib.Admin is not a Go identifier"},
		{name: "missing_value", args: "default=", stage: "scan", want: "expected value"},
		{name: "stray_token", args: "default=Admin ;", stage: "scan", want: "expected option name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseTrait(tt.args)
			require.Error(t, err)
			var ae *Error
			require.True(t, errors.As(err, &ae))
			assert.Equal(t, "trait", ae.Directive)
			assert.Equal(t, tt.stage, ae.Stage)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseDerive(t *testing.T) {
	t.Parallel()

	got, err := ParseDerive("contractlib.Administratable contractlib.Upgradable(ext=contractlib.AdministratableExt, ext=Audit, default=MyUpgrader), Pausable()")
	require.NoError(t, err)
	assert.Equal(t, DeriveArgs{Modules: []ModuleArgs{
		{Name: "contractlib.Administratable"},
		{Name: "contractlib.Upgradable", Exts: []string{"contractlib.AdministratableExt", "Audit"}, Default: "MyUpgrader"},
		{Name: "Pausable"},
	}}, got)
}

func TestParseDerive_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		args  string
		stage string
		want  string
	}{
		{name: "empty", args: "", stage: "validate", want: "modules is required"},
		{name: "twice", args: "A B A", stage: "decode", want: `module "A" listed twice`},
		{name: "unknown_option", args: "A(extension=B)", stage: "decode", want: "A: "},
		{name: "duplicate_default", args: "A(default=B, default=C)", stage: "decode", want: `A: duplicate option "default"`},
		{name: "unclosed", args: "A(ext=B", stage: "scan", want: "missing ')'"},
		{name: "dangling_dot", args: "lib.", stage: "scan", want: "expected identifier after '.'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseDerive(tt.args)
			require.Error(t, err)
			var ae *Error
			require.True(t, errors.As(err, &ae))
			assert.Equal(t, "derive", ae.Directive)
			assert.Equal(t, tt.stage, ae.Stage)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMethodArgs_Apply(t *testing.T) {
	t.Parallel()

	var m MethodArgs
	require.NoError(t, m.Apply("internal", ""))
	require.NoError(t, m.Apply("mut", "env, other"))
	require.NoError(t, m.Apply("mut", "third"))
	assert.True(t, m.Internal)
	assert.Equal(t, []string{"env", "other", "third"}, m.Mut)
	assert.True(t, m.IsMut("other"))
	assert.False(t, m.IsMut("wasmHash"))

	assert.EqualError(t, m.Apply("internal", "yes"), `internal directive scan error: unexpected arguments "yes"`)
	assert.EqualError(t, m.Apply("mut", ""), "mut directive scan error: expected parameter names")
	assert.EqualError(t, m.Apply("mut", "1x"), `mut directive validate error: "1x" is not a parameter name`)
	assert.EqualError(t, m.Apply("pure", ""), "pure directive scan error: unknown method directive")
}

func TestIsTypePath(t *testing.T) {
	t.Parallel()

	for s, want := range map[string]bool{
		"Admin":             true,
		"contractlib.Admin": true,
		"a.b.C":             true,
		"":                  false,
		"lib.":              false,
		"lib..Admin":        false,
		"Admin[T]":          false,
		"func":              false,
	} {
		assert.Equal(t, want, IsTypePath(s), s)
	}
}
