package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader loads configuration from the filesystem.
type Loader struct{}

// NewLoader creates a new Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Parse parses a Config from YAML bytes, normalizes, and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load loads a Config from the given path.
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewConfigNotFoundError(path)
		}
		if os.IsPermission(err) {
			return nil, NewUserError(ErrCodeFilePermission, "cannot read configuration file").
				WithContext(path).
				WithSuggestion("Check the file permissions.").
				WithUnderlying(err)
		}
		return nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		// Translate YAML parsing errors to user-friendly messages
		if strings.Contains(err.Error(), "yaml:") || strings.Contains(err.Error(), "unmarshal") {
			return nil, NewYAMLParseError(path, err)
		}
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads a Config from the given path, returning defaults when
// the file does not exist. Parse and validation errors are still reported.
func (l *Loader) LoadOrDefault(path string) (*Config, error) {
	cfg, err := l.Load(path)
	if IsUserError(err, ErrCodeConfigNotFound) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Write marshals the Config to YAML and writes it atomically, creating
// parent directories as needed.
func (l *Loader) Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return writeFileAtomic(path, data)
}

// WriteDefault writes a commented starter configuration. It refuses to
// overwrite an existing file.
func (l *Loader) WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return NewUserError(ErrCodeConfigInvalid, "configuration file already exists").
			WithContext(path).
			WithSuggestion("Edit the existing file, or remove it first to start over.")
	}
	starter := fmt.Sprintf(defaultConfigTemplate,
		filepath.Join(DefaultDataDir(), "remote"),
		DefaultSyncInterval.String(),
		filepath.Join(DefaultDataDir(), "sous.db"))
	return writeFileAtomic(path, []byte(starter))
}

// writeFileAtomic writes data to path via a temp file and rename so readers
// never observe a partial file.
func writeFileAtomic(path string, data []byte) error {
	return writeFileAtomicMode(path, data, 0o644)
}

func writeFileAtomicMode(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return fmt.Errorf("failed to set config permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}

const defaultConfigTemplate = `# sous configuration
#
# storage selects where the shared snapshot blob lives. Point path at a
# folder synced between your devices (Dropbox, Syncthing, a network mount).
storage:
  provider: directory
  path: %s
  # profile: personal    # named profile from the credentials file

sync:
  auto: false            # let 'sous agent' sync automatically
  interval: %s           # how often the agent syncs
  encrypt: false         # encrypt the snapshot blob (requires a profile passphrase)

database:
  path: %s

log:
  level: info
  # file: ~/.local/share/sous/agent.log
`
