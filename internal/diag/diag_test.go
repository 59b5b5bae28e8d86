package diag

import (
	"bytes"
	"errors"
	"go/token"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(file string, line, col int) token.Position {
	return token.Position{Filename: file, Line: line, Column: col}
}

func TestKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "structural", Structural.String())
	assert.Equal(t, "configuration", Configuration.String())
	assert.Equal(t, "warning", Warning.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
}

func TestDiagnostic_Error(t *testing.T) {
	t.Parallel()

	d := Diagnostic{Pos: at("decl.go", 3, 2), Kind: Configuration, Message: "no default"}
	assert.Equal(t, "decl.go:3:2: configuration: no default", d.Error())
	assert.True(t, d.IsError())

	w := Diagnostic{Kind: Warning, Message: "unguarded"}
	assert.Equal(t, "warning: unguarded", w.Error())
	assert.False(t, w.IsError())
}

func TestList(t *testing.T) {
	t.Parallel()

	var l List
	l.Warn(at("b.go", 1, 1), "b.go", "not guarded by %s", "contractgen")
	assert.False(t, l.HasErrors())
	assert.NoError(t, l.Err(), "warnings never fail a run")

	l.Structural(at("a.go", 9, 1), "Admin", "must annotate an interface type")
	var other List
	other.Add(Diagnostic{Pos: at("a.go", 2, 5), Kind: Configuration, Subject: "Upgradable", Message: "missing extension"})
	other.Add(Diagnostic{Pos: at("a.go", 2, 5), Kind: Configuration, Subject: "Pausable", Message: "missing default"})
	l.Append(other)

	require.Len(t, l, 4)
	assert.True(t, l.HasErrors())
	assert.Len(t, l.Errors(), 3)

	l.Sort()
	var subjects []string
	for _, d := range l {
		subjects = append(subjects, d.Subject)
	}
	assert.Equal(t, []string{"Upgradable", "Pausable", "Admin", "b.go"}, subjects, "ties keep insertion order")
}

func TestList_Err(t *testing.T) {
	t.Parallel()

	var l List
	l.Structural(at("a.go", 1, 1), "A", "first")
	err := l.Err()
	require.Error(t, err)
	assert.Equal(t, "a.go:1:1: structural: first", err.Error())

	l.Add(MissingDefault(at("a.go", 4, 1), "Pausable", "contract"))
	err = l.Err()
	assert.Equal(t, "a.go:1:1: structural: first (and 1 more errors)", err.Error())

	var de *Error
	require.True(t, errors.As(err, &de))
	assert.Len(t, de.List, 2)

	var d Diagnostic
	require.True(t, errors.As(err, &d), "diagnostics are reachable through Unwrap")
	assert.Equal(t, Structural, d.Kind)

	assert.Equal(t, "contractgen: no errors", (&Error{}).Error())
}

func TestList_Log(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	var l List
	l.Add(MissingExtension(at("decl.go", 7, 1), "Upgradable", "contract"))
	l.Warn(token.Position{}, "decl.go", "unguarded")
	l.Log(logger)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"level":"ERROR"`)
	assert.Contains(t, lines[0], `"kind":"configuration"`)
	assert.Contains(t, lines[0], `"pos":"decl.go:7:1"`)
	assert.Contains(t, lines[0], `"example":"//contract:derive Administratable Upgradable(ext=AdministratableExt)"`)
	assert.Contains(t, lines[1], `"level":"WARN"`)
	assert.NotContains(t, lines[1], `"pos"`)
}

func TestConfigurationDiagnostics(t *testing.T) {
	t.Parallel()

	pos := at("decl.go", 5, 1)

	ext := MissingExtension(pos, "Upgradable", "contract")
	assert.Equal(t, Configuration, ext.Kind)
	assert.Equal(t, "Upgradable", ext.Subject)
	assert.Equal(t, "The contract trait `Upgradable` requires an extension for authentication but none were provided. E.g. //contract:derive Administratable Upgradable(ext=AdministratableExt)", ext.Message)

	def := MissingDefault(pos, "Pausable", "trait")
	assert.Equal(t, "//trait:derive Pausable(default=MyPausable)", def.Example)
	assert.Equal(t, "The contract trait `Pausable` does not provide default implementation. One should be passed, e.g. //trait:derive Pausable(default=MyPausable)", def.Message)

	unk := UnknownModule(pos, "lib.Missing", errors.New("no such interface"))
	assert.Equal(t, Configuration, unk.Kind)
	assert.Equal(t, "cannot resolve contract trait `lib.Missing`: no such interface", unk.Message)
	assert.Empty(t, unk.Example)
}

func TestSentinel(t *testing.T) {
	t.Parallel()

	ident := SentinelIdent("Contract", "contractlib.Upgradable", ReasonMissingExtension)
	assert.Equal(t, "contractgen_Contract_contractlib_Upgradable_missing_extension", ident)

	src := Sentinel(ident, Diagnostic{Message: "needs an extension"})
	assert.Equal(t, "// contractgen: needs an extension\nvar _ = contractgen_Contract_contractlib_Upgradable_missing_extension\n", src)
}
