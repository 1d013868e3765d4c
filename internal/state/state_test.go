package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ralph-pm/ralph/internal/api"
	"github.com/ralph-pm/ralph/internal/database"
	"github.com/ralph-pm/ralph/internal/source"
)

// testState pins the user and system scopes to temp directories so
// nothing outside the test tree is touched.
func testState(t *testing.T) *State {
	t.Helper()
	t.Setenv("RALPH_USER_DATABASE", filepath.Join(t.TempDir(), "user"))
	t.Setenv("RALPH_SYSTEM_DATABASE", filepath.Join(t.TempDir(), "system"))
	return New(t.TempDir(), RuntimeConfig{})
}

// seedScope registers a source in one scope and fills its working
// tree with manifests.
func seedScope(t *testing.T, s *State, scope database.Scope, srcName string, manifests map[string]string) {
	t.Helper()
	root, ok := database.Path(scope, s.Dir())
	require.True(t, ok)

	db, err := database.OpenOrCreate(root, scope).Get()
	require.NoError(t, err)
	_, err = db.RegisterSource(source.NewGitSource(srcName, "https://example.invalid/"+srcName+".git")).Get()
	require.NoError(t, err)

	for name, ver := range manifests {
		dir := filepath.Join(root, "sources", srcName, name+"-"+ver)
		require.NoError(t, os.MkdirAll(dir, 0777))
		manifest := `{"name": "` + name + `", "version": "` + ver + `"}`
		require.NoError(t, os.WriteFile(filepath.Join(dir, source.ManifestName), []byte(manifest), 0666))
	}
}

func readGroup(t *testing.T, s *State, group string) []api.InstalledPackage {
	t.Helper()
	root, _ := database.Path(database.ScopeProject, s.Dir())
	data, err := os.ReadFile(filepath.Join(root, "groups", group+".json"))
	require.NoError(t, err)
	var records []api.InstalledPackage
	require.NoError(t, json.Unmarshal(data, &records))
	return records
}

func TestInstallResolvesHighestVersion(t *testing.T) {
	s := testState(t)
	seedScope(t, s, database.ScopeProject, "ex", map[string]string{"foo": "1.0"})
	// Additional versions of the same package.
	root, _ := database.Path(database.ScopeProject, s.Dir())
	for _, ver := range []string{"1.1", "2.0"} {
		dir := filepath.Join(root, "sources", "ex", "foo-"+ver)
		require.NoError(t, os.MkdirAll(dir, 0777))
		manifest := `{"name": "foo", "version": "` + ver + `"}`
		require.NoError(t, os.WriteFile(filepath.Join(dir, source.ManifestName), []byte(manifest), 0666))
	}

	require.NoError(t, s.InstallPackages("project", []string{"foo@>=1.0"}, "default", nil))

	records := readGroup(t, s, "default")
	require.Len(t, records, 1)
	assert.Equal(t, "foo", records[0].Name)
	assert.Equal(t, "2.0", records[0].Version)
	assert.Equal(t, "ex", records[0].Source)
}

func TestInstallUnknownPackage(t *testing.T) {
	s := testState(t)
	seedScope(t, s, database.ScopeProject, "ex", map[string]string{"foo": "1.0"})

	err := s.InstallPackages("project", []string{"bar"}, "default", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No package found for bar")
}

func TestInstallNoVersionMatches(t *testing.T) {
	s := testState(t)
	seedScope(t, s, database.ScopeProject, "ex", map[string]string{"foo": "1.0"})

	err := s.InstallPackages("project", []string{"foo@>=2"}, "default", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No package found for foo@>=2, but other versions are available")
}

func TestRemoveAndCheck(t *testing.T) {
	s := testState(t)
	seedScope(t, s, database.ScopeProject, "ex", map[string]string{"foo": "1.0"})

	require.NoError(t, s.InstallPackages("project", []string{"foo"}, "default", nil))
	require.NoError(t, s.CheckPackages("project", []string{"foo"}, "default"))

	require.NoError(t, s.RemovePackages("project", []string{"foo"}, "default"))
	err := s.CheckPackages("project", []string{"foo"}, "default")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "foo is not installed")
	assert.Empty(t, readGroup(t, s, "default"))
}

func TestSourceRemoveProtection(t *testing.T) {
	s := testState(t)
	seedScope(t, s, database.ScopeProject, "ex", map[string]string{"foo": "1.0"})

	require.NoError(t, s.InstallPackages("project", []string{"foo"}, "default", nil))

	err := s.RemoveSource("project", "ex")
	require.Error(t, err)
	assert.ErrorIs(t, err, database.ErrInUse)

	require.NoError(t, s.RemovePackages("project", []string{"foo"}, "default"))
	require.NoError(t, s.RemoveSource("project", "ex"))
}

func TestScopeComposition(t *testing.T) {
	s := testState(t)
	seedScope(t, s, database.ScopeSystem, "sys", map[string]string{"tool": "1.0"})
	seedScope(t, s, database.ScopeUser, "usr", map[string]string{"tool": "2.0"})

	names, err := s.SearchPackages("tool")
	require.NoError(t, err)
	assert.Equal(t, []string{"tool"}, names)

	require.NoError(t, s.InstallPackages("project", []string{"tool"}, "default", nil))
	records := readGroup(t, s, "default")
	require.Len(t, records, 1)
	assert.Equal(t, "2.0", records[0].Version)
	assert.Equal(t, "usr", records[0].Source)
}

func TestSearchWildcards(t *testing.T) {
	s := testState(t)
	seedScope(t, s, database.ScopeProject, "ex", map[string]string{
		"libfoo": "1.0",
		"libbar": "1.0",
		"tool":   "1.0",
	})

	names, err := s.SearchPackages("lib*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"libfoo", "libbar"}, names)

	// A bare word searches as a substring.
	names, err = s.SearchPackages("foo")
	require.NoError(t, err)
	assert.Equal(t, []string{"libfoo"}, names)

	// Case-insensitive.
	names, err = s.SearchPackages("TOOL")
	require.NoError(t, err)
	assert.Equal(t, []string{"tool"}, names)

	all, err := s.SearchPackages("")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestAddSourceValidatesURL(t *testing.T) {
	s := testState(t)
	err := s.AddSource("project", "bad", "not a url")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid URL")
}

func TestAddSourceWritesMetadata(t *testing.T) {
	s := testState(t)
	require.NoError(t, s.AddSource("project", "ex", "https://example.invalid/repo.git"))

	root, _ := database.Path(database.ScopeProject, s.Dir())
	data, err := os.ReadFile(filepath.Join(root, "sources.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name": "ex"`)
	assert.Contains(t, string(data), `"url": "https://example.invalid/repo.git"`)

	// Duplicate registration is rejected.
	err = s.AddSource("project", "ex", "https://example.invalid/repo.git")
	assert.ErrorIs(t, err, database.ErrDuplicateSource)
}

func TestUnknownScope(t *testing.T) {
	s := testState(t)
	err := s.InstallPackages("galaxy", []string{"foo"}, "default", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown database")
}

func TestInstallIntoNamedGroup(t *testing.T) {
	s := testState(t)
	seedScope(t, s, database.ScopeProject, "ex", map[string]string{"foo": "1.0"})

	require.NoError(t, s.InstallPackages("project", []string{"foo"}, "tools", []string{"with-docs=on"}))

	records := readGroup(t, s, "tools")
	require.Len(t, records, 1)
	v, ok := records[0].Config.Get("with-docs")
	require.True(t, ok)
	assert.Equal(t, "on", v)
}
