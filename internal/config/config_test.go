package config

import (
	"errors"
	"os"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sghaida/contractgen/internal/testutil"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	c := Default()
	assert.Equal(t, "contract", c.DirectivePrefix)
	assert.Equal(t, "contractgen", c.BuildTag)
	assert.Equal(t, "_contract.gen.go", c.OutputSuffix)
	assert.Equal(t, "ABI", c.ABISuffix)
	assert.Equal(t, "Impl", c.ImplSuffix)
	assert.True(t, c.Embed())
	assert.Equal(t, runtime.GOMAXPROCS(0), c.Jobs)
	assert.Equal(t, Log{Level: "info", Format: "text"}, c.Log)
	require.NoError(t, c.Validate())
}

func TestApplyDefaults_KeepsSetFields(t *testing.T) {
	t.Parallel()

	off := false
	c := Config{BuildTag: "gen", Jobs: 3, EmbedDiagnostics: &off}
	ApplyDefaults(&c)
	assert.Equal(t, "gen", c.BuildTag)
	assert.Equal(t, 3, c.Jobs)
	assert.False(t, c.Embed())

	ApplyDefaults(nil)
}

func TestParse(t *testing.T) {
	t.Parallel()

	c, err := Parse([]byte(`
directive_prefix: trait
output_suffix: _gen.go
embed_diagnostics: "false"
jobs: "4"
include: ["contracts/**/*.go"]
exclude: contracts/legacy/*.go,contracts/tmp/*.go
log:
  level: debug
  format: json
`))
	require.NoError(t, err)
	assert.Equal(t, "trait", c.DirectivePrefix)
	assert.Equal(t, "contractgen", c.BuildTag, "defaults fill the rest")
	assert.Equal(t, "_gen.go", c.OutputSuffix)
	assert.False(t, c.Embed())
	assert.Equal(t, 4, c.Jobs)
	assert.Equal(t, []string{"contracts/**/*.go"}, c.Include)
	assert.Equal(t, []string{"contracts/legacy/*.go", "contracts/tmp/*.go"}, c.Exclude)
	assert.Equal(t, Log{Level: "debug", Format: "json"}, c.Log)
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		src   string
		stage string
		want  string
	}{
		{name: "bad_yaml", src: "jobs: [", stage: "parse"},
		{name: "unknown_key", src: "bogus: 1", stage: "decode", want: "bogus"},
		{name: "bad_type", src: "jobs: many", stage: "decode", want: "jobs"},
		{name: "bad_level", src: "log: {level: loud}", stage: "validate", want: "Log.Level"},
		{name: "bad_suffix", src: "output_suffix: .txt", stage: "validate", want: "OutputSuffix"},
		{name: "bad_prefix", src: "directive_prefix: Con-tract", stage: "validate", want: "DirectivePrefix"},
		{name: "bad_glob", src: "include: [\"a/[\"]", stage: "validate", want: "Include[0]"},
		{name: "too_many_jobs", src: "jobs: 1000", stage: "validate", want: "Jobs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.src))
			require.Error(t, err)
			var ce *Error
			require.True(t, errors.As(err, &ce), "got %T", err)
			assert.Equal(t, tt.stage, ce.Stage)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	p := testutil.NewPkg(t)
	p.Write(FileName, "build_tag: gen\n")

	c, err := Load(p.Path(FileName), false)
	require.NoError(t, err)
	assert.Equal(t, "gen", c.BuildTag)

	c, err = Load("", false)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)

	c, err = Load(p.Path("missing.yaml"), true)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)

	_, err = Load(p.Path("missing.yaml"), false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	p.Write("bad.yaml", "log: {format: xml}\n")
	_, err = Load(p.Path("bad.yaml"), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validate error in "+p.Path("bad.yaml"))
}
