package typeexpr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQualify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src       string
		qualifier string
		want      string
		used      []string
	}{
		{src: "Address", qualifier: "lib", want: "lib.Address", used: []string{}},
		{src: "*host.Env", qualifier: "lib", want: "*host.Env", used: []string{"host"}},
		{src: "map[string]Hash", qualifier: "lib", want: "map[string]lib.Hash", used: []string{}},
		{src: "[]error", qualifier: "lib", want: "[]error", used: []string{}},
		{src: "Dispatch[Admin]", qualifier: "lib", want: "lib.Dispatch[lib.Admin]", used: []string{}},
		{src: "func(a Key) (bool, error)", qualifier: "lib", want: "func(a lib.Key) (bool, error)", used: []string{}},
		{src: "map[host.Address]Key", qualifier: "", want: "map[host.Address]Key", used: []string{"host"}},
		{src: "map[ string ]int", qualifier: "", want: "map[string]int", used: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			t.Parallel()

			got, used, err := Qualify(tt.src, tt.qualifier)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.used, used)
		})
	}
}

func TestQualify_Error(t *testing.T) {
	t.Parallel()

	_, _, err := Qualify("map[", "lib")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `typeexpr: parse "map["`)

	assert.Panics(t, func() { Must("map[", "lib") })
	assert.Equal(t, "*lib.Key", Must("*Key", "lib"))
}

func TestQualifiers(t *testing.T) {
	t.Parallel()

	got, err := Qualifiers("map[host.Address][]lib.Hash")
	require.NoError(t, err)
	assert.Equal(t, []string{"host", "lib"}, got)
}

func TestIdents(t *testing.T) {
	t.Parallel()

	got, err := Idents("map[Key][]lib.Value")
	require.NoError(t, err)
	assert.Equal(t, []string{"Key", "lib"}, got)

	got, err = Idents("chan int")
	require.NoError(t, err)
	assert.Equal(t, []string{"int"}, got)

	got, err = Idents("func(env *host.Env) { self.Admin(env).Require(env) }")
	require.NoError(t, err)
	assert.Equal(t, []string{"Admin", "env", "host", "self"}, got)

	_, err = Idents("chan")
	require.Error(t, err)
}
