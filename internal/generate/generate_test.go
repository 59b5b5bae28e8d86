package generate

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sghaida/contractgen/internal/config"
	"github.com/sghaida/contractgen/internal/diag"
	"github.com/sghaida/contractgen/internal/testutil"
)

const libDecl = `//go:build contractgen

package contractlib

import "example.com/proj/host"

// Administratable keeps one admin address.
//
//contract:trait default=Admin is_extension
type Administratable interface {
	// Admin returns the current admin.
	Admin(env *host.Env) host.Address
	//contract:mut env
	SetAdmin(env *host.Env, newAdmin host.Address)
	//contract:internal
	RequireAdmin(env *host.Env)
}

func (self Administratable) RequireAdmin(env *host.Env) {
	self.Admin(env).RequireAuth(env)
}

//contract:trait default=Upgrader extension_required
type Upgradable interface {
	//contract:mut env
	Upgrade(env *host.Env, wasmHash host.Hash)
}
`

const contractDecl = `//go:build contractgen

package contract

import "example.com/proj/contractlib"

// Contract is the deployed contract.
//
//contract:derive contractlib.Administratable contractlib.Upgradable(ext=contractlib.AdministratableUpgrade)
type Contract struct{}
`

func project(t *testing.T, contract string) *testutil.Pkg {
	t.Helper()
	p := testutil.NewPkg(t)
	p.GoMod("example.com/proj")
	p.Write("host/host.go", "package host\n")
	p.Write("contractlib/decl.go", libDecl)
	p.Write("contractlib/admin.go", "package contractlib\n\ntype Admin struct{}\n")
	p.Write("contract/decl.go", contract)
	p.Write("_scratch/decl.go", contractDecl)
	return p
}

func quietConfig() config.Config {
	c := config.Default()
	c.Jobs = 2
	return c
}

func TestRun_GeneratesAndIsIdempotent(t *testing.T) {
	t.Parallel()

	p := project(t, contractDecl)
	g := New(quietConfig(), nil)

	rep, err := g.Run(context.Background(), []string{p.Dir + "/..."}, false)
	require.NoError(t, err)
	require.Empty(t, rep.Diags)
	assert.ElementsMatch(t, []string{
		p.Path("contract/decl_contract.gen.go"),
		p.Path("contractlib/decl_contract.gen.go"),
	}, rep.Written)
	assert.NoFileExists(t, p.Path("_scratch/decl_contract.gen.go"))

	lib := testutil.Squash(p.Read("contractlib/decl_contract.gen.go"))
	testutil.AssertContainsInOrder(t, lib,
		"// Code generated by contractgen; DO NOT EDIT.",
		"//go:build !contractgen",
		"package contractlib",
		`import "example.com/proj/host"`,
		"type Administratable interface {",
		"type AdministratableDispatch[I Administratable] struct{}",
		"func (self AdministratableDispatch[I]) RequireAdmin(env *host.Env) { self.Admin(env).RequireAuth(env) }",
		"type AdministratableExt[T Administratable, N any] struct{}",
		"type UpgradableNever[N Upgradable] struct{}",
	)

	out := testutil.Squash(p.Read("contract/decl_contract.gen.go"))
	testutil.AssertContainsInOrder(t, out,
		"package contract",
		`"example.com/proj/contractlib"`,
		`"example.com/proj/host"`,
		"// Contract is the deployed contract. type Contract struct{}",
		"type ContractABI struct{}",
		"type ContractAdministratableImpl = contractlib.AdministratableDispatch[contractlib.Admin]",
		"type ContractUpgradableImpl = contractlib.UpgradableDispatch[contractlib.AdministratableUpgrade[Contract, contractlib.Upgrader]]",
		"func (ContractABI) Upgrade(env host.Env, wasmHash host.Hash) { var impl Contract impl.Upgrade(&env, wasmHash) }",
	)

	rep, err = g.Run(context.Background(), []string{p.Dir + "/..."}, false)
	require.NoError(t, err)
	assert.Empty(t, rep.Written)
	assert.Len(t, rep.Unchanged, 2)

	rep, err = g.Run(context.Background(), []string{p.Dir + "/..."}, true)
	require.NoError(t, err)
	assert.Empty(t, rep.Stale)
}

func TestRun_CheckedInExamplesAreUpToDate(t *testing.T) {
	t.Parallel()

	rep, err := New(quietConfig(), nil).Run(context.Background(), []string{"../../examples/..."}, true)
	require.NoError(t, err)
	assert.Empty(t, rep.Diags)
	assert.Empty(t, rep.Stale)
	assert.Len(t, rep.Unchanged, 2)
}

func TestRun_CheckReportsStaleFiles(t *testing.T) {
	t.Parallel()

	p := project(t, contractDecl)
	g := New(quietConfig(), nil)
	_, err := g.Run(context.Background(), []string{p.Dir + "/..."}, false)
	require.NoError(t, err)

	p.Write("contract/decl.go", contractDecl+"\n//contract:derive contractlib.Administratable\ntype Other struct{}\n")
	rep, err := g.Run(context.Background(), []string{p.Path("contract")}, true)
	require.Error(t, err)
	var se *StaleError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, []string{p.Path("contract/decl_contract.gen.go")}, rep.Stale)
	assert.NotContains(t, p.Read("contract/decl_contract.gen.go"), "Other", "check mode never writes")
}

func TestRun_ConfigurationErrorsAreEmbedded(t *testing.T) {
	t.Parallel()

	p := project(t, `//go:build contractgen

package contract

import "example.com/proj/contractlib"

//contract:derive contractlib.Upgradable contractlib.Missing contractlib.Administratable
type Contract struct{}
`)
	rep, err := New(quietConfig(), nil).Run(context.Background(), []string{p.Dir + "/..."}, false)
	require.Error(t, err)
	var de *diag.Error
	require.True(t, errors.As(err, &de))
	require.Len(t, rep.Diags, 2)
	assert.Equal(t, diag.Configuration, rep.Diags[0].Kind)

	out := p.Read("contract/decl_contract.gen.go")
	testutil.AssertContainsInOrder(t, out,
		"var _ = contractgen_Contract_Upgradable_missing_extension",
		"contractlib.UpgradableNever[contractlib.Upgrader]",
		"var _ = contractgen_Contract_Missing_unknown_module",
		"type ContractAdministratableImpl = contractlib.AdministratableDispatch[contractlib.Admin]",
	)
}

func TestRun_StructuralErrorsKeepOtherFiles(t *testing.T) {
	t.Parallel()

	p := project(t, contractDecl)
	p.Write("broken/decl.go", "//go:build contractgen\n\npackage broken\n\n//contract:trait\ntype NotAnInterface struct{}\n")
	rep, err := New(quietConfig(), nil).Run(context.Background(), []string{p.Dir + "/..."}, false)
	require.Error(t, err)
	require.Len(t, rep.Diags, 1)
	assert.Equal(t, diag.Structural, rep.Diags[0].Kind)
	assert.Contains(t, rep.Diags[0].Message, "must annotate an interface type")
	assert.Len(t, rep.Written, 2)
	assert.NoFileExists(t, p.Path("broken/decl_contract.gen.go"))
}

func TestRun_WarnsAboutUnguardedDeclarations(t *testing.T) {
	t.Parallel()

	p := project(t, contractDecl[len("//go:build contractgen\n\n"):])
	rep, err := New(quietConfig(), nil).Run(context.Background(), []string{p.Path("contract/decl.go")}, false)
	require.NoError(t, err, "warnings do not fail the run")
	require.Len(t, rep.Diags, 1)
	assert.Equal(t, diag.Warning, rep.Diags[0].Kind)
	assert.Contains(t, rep.Diags[0].Message, "is not guarded by //go:build contractgen")
}

func TestRun_CanceledContext(t *testing.T) {
	t.Parallel()

	p := project(t, contractDecl)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(quietConfig(), nil).Run(ctx, []string{p.Dir + "/..."}, false)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExpand(t *testing.T) {
	t.Parallel()

	p := testutil.NewPkg(t)
	for _, f := range []string{
		"a/decl.go", "a/decl_contract.gen.go", "a/decl_test.go", "a/notes.txt",
		"a/b/decl.go", "_hidden/decl.go", ".git/decl.go", "vendor/x/decl.go", "testdata/decl.go",
	} {
		p.Write(f, "package x\n")
	}
	cfg := config.Default()

	got, err := Expand([]string{p.Dir + "/..."}, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{p.Path("a/b/decl.go"), p.Path("a/decl.go")}, got)

	got, err = Expand([]string{p.Path("a")}, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{p.Path("a/decl.go")}, got, "a directory is not recursive")

	got, err = Expand([]string{filepath.ToSlash(p.Dir) + "/**/decl.go", p.Path("a/decl.go")}, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{p.Path("a/b/decl.go"), p.Path("a/decl.go")}, got, "duplicates are dropped")

	root := filepath.ToSlash(p.Dir)
	cfg.Exclude = []string{root + "/a/b/*.go"}
	got, err = Expand([]string{p.Dir + "/..."}, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{p.Path("a/decl.go")}, got)

	cfg.Exclude = nil
	cfg.Include = []string{root + "/a/b/**"}
	got, err = Expand([]string{p.Dir + "/..."}, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{p.Path("a/b/decl.go")}, got)

	_, err = Expand([]string{p.Path("missing")}, cfg)
	require.Error(t, err)
}
