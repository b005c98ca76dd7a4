package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/sous/internal/adapters/sqlite"
	"github.com/felixgeelhaar/sous/internal/domain/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Set up the config file and the local database",
	Long: `Init writes a commented starter config and creates the local database.

The starter config keeps everything under your data directory. To link
devices, point storage.path at a folder they all sync (Dropbox,
Syncthing, a network mount) and run 'sous sync' on each of them.

Examples:
  sous init                        # Create config and database
  sous init --config ./sous.yaml   # Create the config somewhere else`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(_ *cobra.Command, _ []string) error {
	path := cfgFile
	if path == "" {
		path = config.DefaultPath()
	}

	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("%s already exists.\n", path)
		fmt.Println("Edit it directly, or remove it first to start over.")
		return nil
	}

	loader := config.NewLoader()
	if err := loader.WriteDefault(path); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)

	credPath := config.DefaultCredentialsPath()
	if _, err := os.Stat(credPath); os.IsNotExist(err) {
		if err := config.WriteDefaultCredentials(credPath); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", credPath)
	}

	cfg, err := loader.Load(path)
	if err != nil {
		return err
	}

	store, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	if err := store.Close(); err != nil {
		return err
	}
	fmt.Printf("Created local database at %s\n", cfg.Database.Path)

	fmt.Println("\nNext steps:")
	fmt.Println("  1. Add a recipe:       sous recipe add \"Pasta Carbonara\" --servings 2")
	fmt.Println("  2. Plan your week:     sous plan add --recipe <id> --on tomorrow --slot dinner")
	fmt.Println("  3. Build the list:     sous grocery generate")
	fmt.Printf("  4. Link your devices:  point storage.path in %s at a synced folder\n", path)
	return nil
}
