package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ralph-pm/ralph/internal/version"
)

func mustVersion(t *testing.T, s string) *version.Version {
	t.Helper()
	v, err := version.Parse(s)
	require.NoError(t, err)
	return v
}

func TestParseManifest(t *testing.T) {
	pkg, err := ParseManifest([]byte(`{
		"name": "foo",
		"version": "1.2.3",
		"dependencies": [["bar", ">=1.0,<2"], ["baz"]],
		"buildSystem": "cmake",
		"vcs": "git",
		"homepage": "https://example.invalid/foo"
	}`))
	require.NoError(t, err)

	assert.Equal(t, "foo", pkg.Name)
	assert.Equal(t, "1.2.3", pkg.Version.String())
	assert.Equal(t, "cmake", pkg.BuildSystem)
	assert.Equal(t, "git", pkg.VCS)

	require.Len(t, pkg.Dependencies, 2)
	assert.Equal(t, "bar", pkg.Dependencies[0].Name)
	assert.True(t, pkg.Dependencies[0].Requirement.Matches(mustVersion(t, "1.5")))
	assert.False(t, pkg.Dependencies[0].Requirement.Matches(mustVersion(t, "2.0")))
	assert.Equal(t, "baz", pkg.Dependencies[1].Name)
	assert.True(t, pkg.Dependencies[1].Requirement.MatchesAll())

	// Unknown fields survive verbatim.
	raw, ok := pkg.Extra["homepage"]
	require.True(t, ok)
	var homepage string
	require.NoError(t, json.Unmarshal(raw, &homepage))
	assert.Equal(t, "https://example.invalid/foo", homepage)
}

func TestParseManifestErrors(t *testing.T) {
	for name, manifest := range map[string]string{
		"empty object":    `{}`,
		"no name":         `{"version": "1.0"}`,
		"bad version":     `{"name": "foo", "version": "one"}`,
		"bad dependency":  `{"name": "foo", "version": "1.0", "dependencies": [["a", "b", "c"]]}`,
		"bad requirement": `{"name": "foo", "version": "1.0", "dependencies": [["a", "wat"]]}`,
		"not json":        `ni!`,
	} {
		_, err := ParseManifest([]byte(manifest))
		assert.Error(t, err, name)
	}
}

func TestManifestRoundTrip(t *testing.T) {
	original := `{
		"name": "foo",
		"version": "1.2.3",
		"dependencies": [["bar", ">=1.0,<2"]],
		"buildSystem": "cmake",
		"homepage": "https://example.invalid/foo"
	}`
	pkg, err := ParseManifest([]byte(original))
	require.NoError(t, err)

	out, err := pkg.MarshalManifest()
	require.NoError(t, err)
	reparsed, err := ParseManifest(out)
	require.NoError(t, err)

	assert.Equal(t, pkg.Name, reparsed.Name)
	assert.True(t, pkg.Version.Equal(reparsed.Version))
	assert.Equal(t, pkg.BuildSystem, reparsed.BuildSystem)
	require.Len(t, reparsed.Dependencies, 1)
	assert.Equal(t, "bar", reparsed.Dependencies[0].Name)
	assert.Contains(t, string(out), "\"homepage\"")
	assert.Equal(t, byte('\n'), out[len(out)-1])
}

func TestConfigurationFromItems(t *testing.T) {
	c := ConfigurationFromItems([]string{"with-foo=on", "threads=4", "debug"})
	v, ok := c.Get("with-foo")
	require.True(t, ok)
	assert.Equal(t, "on", v)
	v, ok = c.Get("threads")
	require.True(t, ok)
	assert.Equal(t, "4", v)
	v, ok = c.Get("debug")
	require.True(t, ok)
	assert.Equal(t, "on", v)
	assert.Equal(t, []string{"with-foo", "threads", "debug"}, c.Keys())
}

func TestConfigurationEqualIsOrderInsensitive(t *testing.T) {
	a := ConfigurationFromItems([]string{"x=1", "y=2"})
	b := ConfigurationFromItems([]string{"y=2", "x=1"})
	c := ConfigurationFromItems([]string{"x=1", "y=3"})
	d := ConfigurationFromItems([]string{"x=1"})

	assert.True(t, a.Equal(b))
	assert.True(t, b.Equal(a))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(d))
}

func TestConfigurationJSONHasSortedKeys(t *testing.T) {
	c := ConfigurationFromItems([]string{"zeta=1", "alpha=2"})
	out, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":"2","zeta":"1"}`, string(out))

	var back PackageConfiguration
	require.NoError(t, json.Unmarshal(out, &back))
	assert.True(t, c.Equal(back))
}
