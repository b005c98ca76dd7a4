package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/sous/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, ProviderDirectory, cfg.Storage.Provider)
	assert.NotEmpty(t, cfg.Storage.Path)
	assert.NotEmpty(t, cfg.Database.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Sync.Auto)
	assert.False(t, cfg.Sync.Encrypt)
	assert.Equal(t, DefaultSyncInterval, cfg.SyncInterval())
}

func TestConfig_Normalize_FillsOnlyEmptyFields(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Storage: StorageConfig{Path: "/srv/sous"},
		Sync:    SyncConfig{Interval: "30s"},
		Log:     LogConfig{Level: "debug"},
	}
	cfg.Normalize()

	assert.Equal(t, ProviderDirectory, cfg.Storage.Provider)
	assert.Equal(t, "/srv/sous", cfg.Storage.Path)
	assert.Equal(t, "30s", cfg.Sync.Interval)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.NotEmpty(t, cfg.Database.Path)
}

func TestConfig_Normalize_ExpandsHome(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Storage:  StorageConfig{Path: "~/Dropbox/sous"},
		Database: DatabaseConfig{Path: "~/.local/share/sous/sous.db"},
		Log:      LogConfig{File: "~/sous.log"},
	}
	cfg.Normalize()

	assert.False(t, strings.HasPrefix(cfg.Storage.Path, "~"))
	assert.False(t, strings.HasPrefix(cfg.Database.Path, "~"))
	assert.False(t, strings.HasPrefix(cfg.Log.File, "~"))
	assert.True(t, strings.HasSuffix(cfg.Storage.Path, filepath.FromSlash("Dropbox/sous")))
}

func TestConfig_Normalize_MemoryProviderNeedsNoPath(t *testing.T) {
	t.Parallel()

	cfg := &Config{Storage: StorageConfig{Provider: ProviderMemory}}
	cfg.Normalize()

	assert.Empty(t, cfg.Storage.Path)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate_ReportsAllProblems(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Storage: StorageConfig{Provider: "ftp"},
		Sync:    SyncConfig{Interval: "whenever"},
		Log:     LogConfig{Level: "loud"},
	}

	err := cfg.Validate()
	require.Error(t, err)

	var list *ErrorList
	require.ErrorAs(t, err, &list)
	assert.Equal(t, 3, list.Len())
	assert.Contains(t, err.Error(), "storage.provider")
	assert.Contains(t, err.Error(), "sync.interval")
	assert.Contains(t, err.Error(), "log.level")
}

func TestConfig_Validate_DirectoryProviderRequiresPath(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Storage: StorageConfig{Provider: ProviderDirectory},
		Sync:    SyncConfig{Interval: "5m"},
		Log:     LogConfig{Level: "info"},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.path")
}

func TestConfig_Validate_NegativeInterval(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Sync.Interval = "-5m"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "positive")
}

func TestConfig_SyncInterval(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		interval string
		expected time.Duration
	}{
		{"parses valid duration", "90s", 90 * time.Second},
		{"empty falls back to default", "", DefaultSyncInterval},
		{"garbage falls back to default", "whenever", DefaultSyncInterval},
		{"negative falls back to default", "-1m", DefaultSyncInterval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := &Config{Sync: SyncConfig{Interval: tt.interval}}
			assert.Equal(t, tt.expected, cfg.SyncInterval())
		})
	}
}

func TestConfig_LogLevel(t *testing.T) {
	t.Parallel()

	cfg := &Config{Log: LogConfig{Level: "warn"}}
	assert.Equal(t, ports.LevelWarn, cfg.LogLevel())

	cfg.Log.Level = "nonsense"
	assert.Equal(t, ports.LevelInfo, cfg.LogLevel())
}

func TestDefaultPath_EndsWithConfigYAML(t *testing.T) {
	t.Parallel()

	path := DefaultPath()
	assert.True(t, strings.HasSuffix(path, filepath.Join("sous", "config.yaml")))
}

func TestDefaultCredentialsPath_SitsNextToConfig(t *testing.T) {
	t.Parallel()

	assert.Equal(t, filepath.Dir(DefaultPath()), filepath.Dir(DefaultCredentialsPath()))
	assert.True(t, strings.HasSuffix(DefaultCredentialsPath(), "credentials"))
}

func TestExpandPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/absolute/path", ExpandPath("/absolute/path"))
	assert.Equal(t, "relative/path", ExpandPath("relative/path"))
	assert.Equal(t, "", ExpandPath(""))

	expanded := ExpandPath("~/recipes")
	assert.False(t, strings.HasPrefix(expanded, "~"))
	assert.True(t, strings.HasSuffix(expanded, "recipes"))
}
