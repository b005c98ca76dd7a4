package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/sous/internal/domain/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCredentials(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "credentials")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadProfile_ReadsNamedSection(t *testing.T) {
	t.Parallel()

	path := writeCredentials(t, `
[personal]
provider   = directory
root       = /srv/sous
passphrase = hunter2

[family]
provider = memory
`)

	profile, err := config.LoadProfile(path, "personal")

	require.NoError(t, err)
	assert.Equal(t, "personal", profile.Name)
	assert.Equal(t, config.ProviderDirectory, profile.Provider)
	assert.Equal(t, "/srv/sous", profile.Root)
	assert.Equal(t, "hunter2", profile.Passphrase)
}

func TestLoadProfile_DefaultsProviderToDirectory(t *testing.T) {
	t.Parallel()

	path := writeCredentials(t, `
[personal]
root = /srv/sous
`)

	profile, err := config.LoadProfile(path, "personal")

	require.NoError(t, err)
	assert.Equal(t, config.ProviderDirectory, profile.Provider)
}

func TestLoadProfile_MissingSection_ListsAvailable(t *testing.T) {
	t.Parallel()

	path := writeCredentials(t, `
[personal]
root = /srv/sous

[family]
provider = memory
`)

	_, err := config.LoadProfile(path, "work")

	require.Error(t, err)
	assert.True(t, config.IsUserError(err, config.ErrCodeProfileNotFound))
	assert.Contains(t, err.Error(), "work")

	ue := config.GetUserError(err)
	require.NotNil(t, ue)
	assert.Contains(t, ue.Suggestion, "personal")
	assert.Contains(t, ue.Suggestion, "family")
}

func TestLoadProfile_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadProfile(filepath.Join(t.TempDir(), "credentials"), "personal")

	require.Error(t, err)
	assert.True(t, config.IsUserError(err, config.ErrCodeProfileNotFound))
}

func TestLoadProfile_UnknownProvider(t *testing.T) {
	t.Parallel()

	path := writeCredentials(t, `
[personal]
provider = s3
root     = bucket
`)

	_, err := config.LoadProfile(path, "personal")

	require.Error(t, err)
	assert.True(t, config.IsUserError(err, config.ErrCodeProfileInvalid))
}

func TestLoadProfile_DirectoryWithoutRoot(t *testing.T) {
	t.Parallel()

	path := writeCredentials(t, `
[personal]
provider = directory
`)

	_, err := config.LoadProfile(path, "personal")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "root")
}

func TestProfile_Apply_OverlaysStorage(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	profile := &config.Profile{
		Name:     "personal",
		Provider: config.ProviderDirectory,
		Root:     "/mnt/shared/sous",
	}

	profile.Apply(cfg)

	assert.Equal(t, config.ProviderDirectory, cfg.Storage.Provider)
	assert.Equal(t, "/mnt/shared/sous", cfg.Storage.Path)
}

func TestWriteDefaultCredentials(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "credentials")

	require.NoError(t, config.WriteDefaultCredentials(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[personal]")
	assert.Contains(t, string(data), "passphrase")
}

func TestWriteDefaultCredentials_RefusesOverwrite(t *testing.T) {
	t.Parallel()

	path := writeCredentials(t, "[personal]\nroot = /srv/sous\n")

	err := config.WriteDefaultCredentials(path)

	require.Error(t, err)
	assert.True(t, config.IsUserError(err, config.ErrCodeProfileInvalid))
}
