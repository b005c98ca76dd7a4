package config

import (
	"fmt"
	"os"

	"gopkg.in/ini.v1"
)

// Profile is a named storage profile from the credentials file. Profiles keep
// secrets (the encryption passphrase) and per-device paths out of config.yaml
// so the config itself can be checked into a dotfiles repo.
//
//	[personal]
//	provider   = directory
//	root       = ~/Dropbox/sous
//	passphrase = hunter2
type Profile struct {
	Name       string
	Provider   string
	Root       string
	Passphrase string
}

// LoadProfile reads a named profile from an INI credentials file.
func LoadProfile(path, name string) (*Profile, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, NewUserError(ErrCodeProfileNotFound, "cannot read credentials file").
			WithContext(path).
			WithSuggestion(fmt.Sprintf("Create %s with a [%s] section, or remove storage.profile from your config.", path, name)).
			WithUnderlying(err)
	}

	section, err := cfg.GetSection(name)
	if err != nil {
		return nil, NewProfileNotFoundError(name, profileNames(cfg)).WithContext(path)
	}

	profile := &Profile{
		Name:       name,
		Provider:   section.Key("provider").String(),
		Root:       ExpandPath(section.Key("root").String()),
		Passphrase: section.Key("passphrase").String(),
	}
	if profile.Provider == "" {
		profile.Provider = ProviderDirectory
	}

	switch profile.Provider {
	case ProviderDirectory, ProviderMemory:
	default:
		return nil, NewUserError(ErrCodeProfileInvalid,
			fmt.Sprintf("profile '%s' has unknown provider %q", name, profile.Provider)).
			WithContext(path).
			WithSuggestion(fmt.Sprintf("Use %q or %q.", ProviderDirectory, ProviderMemory))
	}
	if profile.Provider == ProviderDirectory && profile.Root == "" {
		return nil, NewUserError(ErrCodeProfileInvalid,
			fmt.Sprintf("profile '%s' is missing the root directory", name)).
			WithContext(path).
			WithSuggestion("Set root to the folder shared between your devices.")
	}

	return profile, nil
}

// Apply overlays the profile onto the Config's storage settings.
func (p *Profile) Apply(cfg *Config) {
	cfg.Storage.Provider = p.Provider
	if p.Root != "" {
		cfg.Storage.Path = p.Root
	}
}

func profileNames(cfg *ini.File) []string {
	names := make([]string, 0, len(cfg.Sections()))
	for _, s := range cfg.Sections() {
		if s.Name() == ini.DefaultSection {
			continue
		}
		names = append(names, s.Name())
	}
	return names
}

// WriteDefaultCredentials writes a commented credentials template with owner
// only permissions. It refuses to overwrite an existing file.
func WriteDefaultCredentials(path string) error {
	if _, err := os.Stat(path); err == nil {
		return NewUserError(ErrCodeProfileInvalid, "credentials file already exists").
			WithContext(path).
			WithSuggestion("Edit the existing file instead.")
	}
	return writeFileAtomicMode(path, []byte(defaultCredentialsTemplate), 0o600)
}

const defaultCredentialsTemplate = `# sous credentials
#
# Named storage profiles referenced by storage.profile in config.yaml.
# Keep this file out of version control; it may hold passphrases.
#
# [personal]
# provider   = directory
# root       = ~/Dropbox/sous
# passphrase = correct-horse-battery-staple
`
