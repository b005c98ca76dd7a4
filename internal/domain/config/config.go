// Package config defines the sous configuration model: where snapshots are
// stored, how sync behaves, and where local state lives. Configuration is
// loaded from YAML with defaults applied before validation, and validation
// failures are reported as user-friendly errors with suggestions.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/felixgeelhaar/sous/internal/ports"
)

// Storage provider names.
const (
	ProviderDirectory = "directory"
	ProviderMemory    = "memory"
)

// DefaultSyncInterval is the agent sync interval when none is configured.
const DefaultSyncInterval = 5 * time.Minute

// StorageConfig selects where the shared snapshot blob lives.
type StorageConfig struct {
	Provider string `yaml:"provider,omitempty"` // "directory" or "memory"
	Path     string `yaml:"path,omitempty"`     // blob directory for the directory provider
	Profile  string `yaml:"profile,omitempty"`  // optional named profile from the credentials file
}

// SyncConfig controls sync behavior.
type SyncConfig struct {
	Auto     bool   `yaml:"auto,omitempty"`     // agent syncs automatically when true
	Interval string `yaml:"interval,omitempty"` // agent sync interval, e.g. "5m"
	Encrypt  bool   `yaml:"encrypt,omitempty"`  // encrypt the snapshot blob at rest
}

// DatabaseConfig locates the local SQLite database.
type DatabaseConfig struct {
	Path string `yaml:"path,omitempty"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level string `yaml:"level,omitempty"` // debug, info, warn, error
	File  string `yaml:"file,omitempty"`  // optional log file for the agent
}

// Config is the root sous configuration (config.yaml).
type Config struct {
	Storage  StorageConfig  `yaml:"storage,omitempty"`
	Sync     SyncConfig     `yaml:"sync,omitempty"`
	Database DatabaseConfig `yaml:"database,omitempty"`
	Log      LogConfig      `yaml:"log,omitempty"`
}

// Default returns a Config with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.Normalize()
	return cfg
}

// Normalize fills empty fields with defaults and expands '~' in paths.
// It is idempotent and safe to call on a freshly parsed Config.
func (c *Config) Normalize() {
	if c.Storage.Provider == "" {
		c.Storage.Provider = ProviderDirectory
	}
	if c.Storage.Path == "" && c.Storage.Provider == ProviderDirectory {
		c.Storage.Path = filepath.Join(DefaultDataDir(), "remote")
	}
	if c.Sync.Interval == "" {
		c.Sync.Interval = DefaultSyncInterval.String()
	}
	if c.Database.Path == "" {
		c.Database.Path = filepath.Join(DefaultDataDir(), "sous.db")
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	c.Storage.Path = ExpandPath(c.Storage.Path)
	c.Database.Path = ExpandPath(c.Database.Path)
	c.Log.File = ExpandPath(c.Log.File)
}

// Validate checks the Config and reports all problems at once.
func (c *Config) Validate() error {
	errs := NewErrorList()

	switch c.Storage.Provider {
	case ProviderDirectory, ProviderMemory:
	default:
		errs.AddValidation("storage.provider",
			fmt.Sprintf("unknown provider %q", c.Storage.Provider),
			fmt.Sprintf("Use %q for a shared folder (Dropbox, Syncthing, NFS) or %q for testing.", ProviderDirectory, ProviderMemory))
	}

	if c.Storage.Provider == ProviderDirectory && c.Storage.Path == "" {
		errs.AddValidation("storage.path",
			"a blob directory is required for the directory provider",
			"Set storage.path to a folder shared between your devices.")
	}

	if c.Sync.Interval != "" {
		d, err := time.ParseDuration(c.Sync.Interval)
		switch {
		case err != nil:
			errs.AddValidation("sync.interval",
				fmt.Sprintf("invalid duration %q", c.Sync.Interval),
				`Use a Go duration such as "30s", "5m", or "1h".`)
		case d <= 0:
			errs.AddValidation("sync.interval",
				"interval must be positive",
				`Use a Go duration such as "30s", "5m", or "1h".`)
		}
	}

	if _, err := ports.ParseLevel(c.Log.Level); err != nil {
		errs.AddValidation("log.level",
			fmt.Sprintf("unknown level %q", c.Log.Level),
			"Use one of: debug, info, warn, error.")
	}

	return errs.AsError()
}

// SyncInterval returns the parsed sync interval, falling back to the default
// when unset or invalid.
func (c *Config) SyncInterval() time.Duration {
	if c.Sync.Interval == "" {
		return DefaultSyncInterval
	}
	d, err := time.ParseDuration(c.Sync.Interval)
	if err != nil || d <= 0 {
		return DefaultSyncInterval
	}
	return d
}

// LogLevel returns the parsed log level, falling back to info when invalid.
func (c *Config) LogLevel() ports.Level {
	level, _ := ports.ParseLevel(c.Log.Level)
	return level
}

// DefaultPath returns the default config file location
// (~/.config/sous/config.yaml or the platform equivalent).
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "sous", "config.yaml")
}

// DefaultCredentialsPath returns the default credentials file location next
// to the config file.
func DefaultCredentialsPath() string {
	return filepath.Join(filepath.Dir(DefaultPath()), "credentials")
}

// DefaultDataDir returns the directory for local state (database, base
// snapshot, agent log). Respects XDG_DATA_HOME when set.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "sous")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "sous")
}

// ExpandPath expands a leading '~' to the user's home directory.
func ExpandPath(path string) string {
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
