package source

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0777))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestName), []byte(contents), 0666))
}

func TestIngestTree(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, filepath.Join(dir, "foo-1.0"), `{"name": "foo", "version": "1.0"}`)
	writeManifest(t, filepath.Join(dir, "foo-1.1"), `{"name": "foo", "version": "1.1"}`)
	writeManifest(t, filepath.Join(dir, "bar"), `{"name": "bar", "version": "0.2", "dependencies": [["foo", ">=1.0"]]}`)

	// Manifests under .git must be ignored.
	writeManifest(t, filepath.Join(dir, ".git", "deep"), `{"name": "ghost", "version": "9.9"}`)

	var warnings []string
	pkgs, err := ingestTree(dir, func(w string) { warnings = append(warnings, w) })
	require.NoError(t, err)
	assert.Empty(t, warnings)

	require.Len(t, pkgs, 3)
	assert.Equal(t, "bar", pkgs[0].Name)
	assert.Equal(t, "foo", pkgs[1].Name)
	assert.Equal(t, "1.0", pkgs[1].Version.String())
	assert.Equal(t, "1.1", pkgs[2].Version.String())
}

func TestIngestTreeDegradesParseErrorsToWarnings(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, filepath.Join(dir, "good"), `{"name": "good", "version": "1.0"}`)
	writeManifest(t, filepath.Join(dir, "broken"), `{not json`)
	writeManifest(t, filepath.Join(dir, "versionless"), `{"name": "nope"}`)

	var warnings []string
	pkgs, err := ingestTree(dir, func(w string) { warnings = append(warnings, w) })
	require.NoError(t, err)

	require.Len(t, pkgs, 1)
	assert.Equal(t, "good", pkgs[0].Name)
	assert.Len(t, warnings, 2)
}

func TestIngestTreeDuplicateIdentityFirstWins(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, filepath.Join(dir, "a"), `{"name": "dup", "version": "1.0"}`)
	writeManifest(t, filepath.Join(dir, "b"), `{"name": "dup", "version": "1.0"}`)

	var warnings []string
	pkgs, err := ingestTree(dir, func(w string) { warnings = append(warnings, w) })
	require.NoError(t, err)
	assert.Len(t, pkgs, 1)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "duplicate")
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, filepath.Join(dir, "foo"), `{"name": "foo", "version": "1.0"}`)

	src := NewGitSource("ex", "https://example.invalid/repo.git")
	require.NoError(t, src.LoadCatalog(dir))
	require.Len(t, src.Packages(), 1)

	// A missing clone dir is not an error, just an empty catalog.
	empty := NewGitSource("empty", "https://example.invalid/empty.git")
	require.NoError(t, empty.LoadCatalog(filepath.Join(dir, "does-not-exist")))
	assert.Empty(t, empty.Packages())
}

func TestMarshalRoundTrip(t *testing.T) {
	src := NewGitSource("ex", "https://example.invalid/repo.git")
	src.SetLastUpdated(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	out, err := Marshal([]Source{src})
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), out[len(out)-1])

	var entries []map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "ex", entries[0]["name"])
	assert.Equal(t, "git", entries[0]["type"])
	assert.Equal(t, "2025-06-01T12:00:00Z", entries[0]["lastUpdated"])

	back, err := Unmarshal(out)
	require.NoError(t, err)
	require.Len(t, back, 1)
	assert.Equal(t, "ex", back[0].Name())
	assert.Equal(t, TypeGit, back[0].TypeString())
	assert.True(t, back[0].LastUpdated().Equal(src.LastUpdated()))
}

func TestUnmarshalUnknownType(t *testing.T) {
	_, err := Unmarshal([]byte(`[{"name": "x", "type": "carrier-pigeon", "url": ""}]`))
	assert.Error(t, err)
}

func TestUpdateFailureLeavesSourceUntouched(t *testing.T) {
	src := NewGitSource("ex", "https://127.0.0.1:1/repo.git")
	before := src.LastUpdated()

	_, err := src.Update(t.TempDir()).Get()
	require.Error(t, err)

	var updateErr *UpdateError
	require.ErrorAs(t, err, &updateErr)
	assert.Equal(t, "ex", updateErr.Source)

	assert.True(t, src.LastUpdated().Equal(before))
	assert.Empty(t, src.Packages())
}

func TestCommitAppliesSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, filepath.Join(dir, "foo"), `{"name": "foo", "version": "1.0"}`)

	src := NewGitSource("ex", "https://example.invalid/repo.git")
	pkgs, err := ingestTree(dir, func(string) {})
	require.NoError(t, err)

	now := time.Now().UTC()
	src.Commit(&Snapshot{Packages: pkgs, UpdatedAt: now})
	assert.Len(t, src.Packages(), 1)
	assert.True(t, src.LastUpdated().Equal(now))
}

func TestAllowedTypes(t *testing.T) {
	types, username := allowedTypes("https://user@example.invalid/repo.git")
	assert.NotZero(t, types&CredentialUsernamePassword)
	assert.Zero(t, types&CredentialSSHKey)
	assert.Equal(t, "user", username)

	types, username = allowedTypes("ssh://git@example.invalid/repo.git")
	assert.NotZero(t, types&CredentialSSHKey)
	assert.Equal(t, "git", username)

	types, username = allowedTypes("git@example.invalid:org/repo.git")
	assert.NotZero(t, types&CredentialSSHKey)
	assert.Equal(t, "git", username)
}

func TestAuthForUsesCallback(t *testing.T) {
	defer SetCredentialsCallback(nil)

	var seen CredentialQuery
	SetCredentialsCallback(func(q CredentialQuery) CredentialResponse {
		seen = q
		return CredentialsForUsernamePassword("alice", "hunter2")
	})

	auth, err := authFor("https://example.invalid/repo.git")
	require.NoError(t, err)
	basic, ok := auth.(*githttp.BasicAuth)
	require.True(t, ok)
	assert.Equal(t, "alice", basic.Username)
	assert.Equal(t, "hunter2", basic.Password)
	assert.Equal(t, "https://example.invalid/repo.git", seen.URL)
}

func TestAuthForCallbackError(t *testing.T) {
	defer SetCredentialsCallback(nil)

	SetCredentialsCallback(func(CredentialQuery) CredentialResponse {
		return CredentialsError()
	})
	_, err := authFor("https://example.invalid/repo.git")
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestAuthForInvalidFallsThrough(t *testing.T) {
	defer SetCredentialsCallback(nil)

	calls := 0
	SetCredentialsCallback(func(CredentialQuery) CredentialResponse {
		calls++
		return CredentialsInvalid()
	})
	auth, err := authFor("https://example.invalid/repo.git")
	require.NoError(t, err)
	assert.Nil(t, auth)
	assert.Greater(t, calls, 1)
}
