package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/sous/internal/adapters/blobstore"
	"github.com/felixgeelhaar/sous/internal/adapters/logging"
	"github.com/felixgeelhaar/sous/internal/adapters/payload"
	"github.com/felixgeelhaar/sous/internal/adapters/sqlite"
	"github.com/felixgeelhaar/sous/internal/app"
	"github.com/felixgeelhaar/sous/internal/domain/config"
	"github.com/felixgeelhaar/sous/internal/ports"
)

var (
	// Global flags
	cfgFile string
	verbose bool
	yesFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "sous",
	Short: "Plan meals, build grocery lists, and sync between your devices",
	Long: `Sous keeps recipes, meal plans and grocery lists in a local database
and reconciles them with your other devices through a snapshot file in
a shared folder (Dropbox, Syncthing, a network mount).

Every command works offline. Run 'sous sync' whenever you want to
exchange changes; conflicting edits are reported and resolved with
'sous sync resolve'.`,
	SilenceErrors: true, // We handle error formatting ourselves
	SilenceUsage:  true, // Don't show usage on error
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError(err)
	}
	return err
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/sous/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&yesFlag, "yes", "y", false, "auto-confirm all prompts")

	// Register flag completions
	registerFlagCompletions()

	rootCmd.AddCommand(versionCmd)
}

// formatError returns a user-friendly error message.
// With verbose=false: shows only the user message and suggestion.
// With verbose=true: also shows the underlying technical error.
func formatError(err error) string {
	var userErr *config.UserError
	if errors.As(err, &userErr) {
		msg := userErr.Message
		if userErr.Context != "" {
			msg += fmt.Sprintf(" (at %s)", userErr.Context)
		}
		if userErr.Suggestion != "" {
			msg += fmt.Sprintf("\n\nSuggestion: %s", userErr.Suggestion)
		}
		if verbose && userErr.Underlying != nil {
			msg += fmt.Sprintf("\n\nTechnical details: %v", userErr.Underlying)
		}
		return msg
	}
	return err.Error()
}

// printError prints an error message to stderr with proper formatting.
func printError(err error) {
	printErrorTo(os.Stderr, err)
}

// printErrorTo prints an error message to the given writer.
func printErrorTo(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "Error: %s\n", formatError(err))
}

// registerFlagCompletions sets up custom completions for global flags.
func registerFlagCompletions() {
	// Complete --config with YAML files
	_ = rootCmd.RegisterFlagCompletionFunc("config", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"yaml", "yml"}, cobra.ShellCompDirectiveFilterFileExt
	})
}

// appEnv bundles the services a command runs against. Close releases the
// local database.
type appEnv struct {
	cfg     *config.Config
	store   *sqlite.Store
	blobs   ports.BlobStore
	codec   *payload.Codec
	planner *app.Planner
	grocery *app.Grocery
	syncer  *app.SyncService
}

// Close releases the environment's resources.
func (e *appEnv) Close() error {
	return e.store.Close()
}

// openEnv loads the configuration, opens the local database and wires the
// application services, including the sync targets derived from the storage
// settings.
func openEnv() (*appEnv, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	store, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	blobs, codec, err := buildSyncTargets(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	var syncOpts []app.SyncServiceOption
	if verbose {
		logger := logging.NewConsoleLogger(
			logging.WithOutput(os.Stderr),
			logging.WithLevel(ports.LevelDebug),
		)
		syncOpts = append(syncOpts, app.WithSyncLogger(logger))
	}

	return &appEnv{
		cfg:     cfg,
		store:   store,
		blobs:   blobs,
		codec:   codec,
		planner: app.NewPlanner(store),
		grocery: app.NewGrocery(store),
		syncer:  app.NewSyncService(store, blobs, codec, syncOpts...),
	}, nil
}

// loadConfig reads the file named by --config, or the default path. A
// missing default file yields the built-in defaults so commands work before
// 'sous init' ever ran; a missing --config file is an error.
func loadConfig() (*config.Config, error) {
	loader := config.NewLoader()
	if cfgFile != "" {
		return loader.Load(cfgFile)
	}
	return loader.LoadOrDefault(config.DefaultPath())
}

// buildSyncTargets resolves the blob store and payload codec from the
// storage settings, overlaying the credential profile when one is named.
// The passphrase comes from the profile or the SOUS_PASSPHRASE environment
// variable; sync.encrypt requires one of the two.
func buildSyncTargets(cfg *config.Config) (ports.BlobStore, *payload.Codec, error) {
	passphrase := os.Getenv("SOUS_PASSPHRASE")

	if cfg.Storage.Profile != "" {
		profile, err := config.LoadProfile(config.DefaultCredentialsPath(), cfg.Storage.Profile)
		if err != nil {
			return nil, nil, err
		}
		profile.Apply(cfg)
		if profile.Passphrase != "" {
			passphrase = profile.Passphrase
		}
	}

	if cfg.Sync.Encrypt && passphrase == "" {
		return nil, nil, config.NewUserError(config.ErrCodeConfigInvalid,
			"encryption is enabled but no passphrase is configured").
			WithContext("sync.encrypt").
			WithSuggestion("Add a passphrase to your credential profile or export SOUS_PASSPHRASE.")
	}

	var codecOpts []payload.CodecOption
	if passphrase != "" {
		codecOpts = append(codecOpts, payload.WithPassphrase(passphrase))
	}
	codec := payload.NewCodec(codecOpts...)

	switch cfg.Storage.Provider {
	case config.ProviderMemory:
		return blobstore.NewMemStore(), codec, nil
	case config.ProviderDirectory:
		store, err := blobstore.NewDirStore(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, codec, nil
	default:
		return nil, nil, config.NewUserError(config.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown storage provider %q", cfg.Storage.Provider)).
			WithContext("storage.provider").
			WithSuggestion(fmt.Sprintf("Use %q or %q.", config.ProviderDirectory, config.ProviderMemory))
	}
}
