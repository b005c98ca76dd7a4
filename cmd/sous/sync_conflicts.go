package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/sous/internal/domain/snapshot"
	"github.com/felixgeelhaar/sous/internal/domain/sync"
	"github.com/felixgeelhaar/sous/internal/tui"
)

// ConflictJSON represents one conflict in JSON output format.
type ConflictJSON struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Entity   string `json:"entity"`
	EntityID string `json:"entity_id"`
	Local    string `json:"local"`
	Remote   string `json:"remote"`
}

// ConflictsOutputJSON is the JSON output for the sync conflicts command.
type ConflictsOutputJSON struct {
	TotalConflicts int            `json:"total_conflicts"`
	Conflicts      []ConflictJSON `json:"conflicts"`
}

var syncConflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Show the conflicts a sync would stop on",
	Long: `Conflicts re-runs the merge without writing anything and lists every
record edited on both sides since the last sync.

A conflict names the record, how the two sides diverged (update-update,
update-delete, delete-update) and its conflict id. Use 'sous sync
resolve' to settle them.

Examples:
  sous sync conflicts          # Show all conflicts
  sous sync conflicts --json   # Output as JSON`,
	Args: cobra.NoArgs,
	RunE: runSyncConflicts,
}

var syncResolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Settle sync conflicts",
	Long: `Resolve re-runs the conflicted merge, applies one choice per conflict
and commits the result to the local store and the shared snapshot.

Every outstanding conflict is settled in one pass: walk them one by
one in the interactive resolver (the default), or take the same side
for all of them with --local or --remote. Choosing the side that
deleted a record deletes it; choosing the side that kept it brings it
back.

Examples:
  sous sync resolve            # Decide each conflict interactively
  sous sync resolve --local    # Keep this device's version everywhere
  sous sync resolve --remote   # Take the shared version everywhere`,
	Args: cobra.NoArgs,
	RunE: runSyncResolve,
}

var (
	conflictsJSONFlag bool
	resolveLocal      bool
	resolveRemote     bool
)

func init() {
	syncCmd.AddCommand(syncConflictsCmd)
	syncCmd.AddCommand(syncResolveCmd)

	syncConflictsCmd.Flags().BoolVar(&conflictsJSONFlag, "json", false, "Output as JSON for CI/automation")

	syncResolveCmd.Flags().BoolVar(&resolveLocal, "local", false, "Keep this device's version for all conflicts")
	syncResolveCmd.Flags().BoolVar(&resolveRemote, "remote", false, "Take the shared version for all conflicts")
}

func runSyncConflicts(_ *cobra.Command, _ []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	conflicts, err := env.syncer.Conflicts(context.Background())
	if err != nil {
		return err
	}

	if conflictsJSONFlag {
		output := ConflictsOutputJSON{
			TotalConflicts: len(conflicts),
			Conflicts:      make([]ConflictJSON, 0, len(conflicts)),
		}
		for _, c := range conflicts {
			output.Conflicts = append(output.Conflicts, ConflictJSON{
				ID:       c.ID(),
				Kind:     c.Kind().String(),
				Entity:   string(c.Entity()),
				EntityID: c.EntityID(),
				Local:    describeVersion(c.LocalVersion()),
				Remote:   describeVersion(c.RemoteVersion()),
			})
		}
		return printJSONOutput(output)
	}

	if len(conflicts) == 0 {
		fmt.Println("No conflicts. A sync would go through cleanly.")
		return nil
	}

	fmt.Printf("Found %d conflict(s):\n\n", len(conflicts))
	printConflicts(conflicts)
	fmt.Println()
	fmt.Println("Settle them interactively with 'sous sync resolve',")
	fmt.Println("or in bulk with 'sous sync resolve --local' / '--remote'.")
	return nil
}

func printJSONOutput(output ConflictsOutputJSON) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func runSyncResolve(_ *cobra.Command, _ []string) error {
	if resolveLocal && resolveRemote {
		return fmt.Errorf("--local and --remote are mutually exclusive")
	}

	env, err := openEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	ctx := context.Background()
	conflicts, err := env.syncer.Conflicts(ctx)
	if err != nil {
		return err
	}
	if len(conflicts) == 0 {
		fmt.Println("No conflicts to resolve.")
		return nil
	}

	resolutions := make(map[string]sync.Resolution, len(conflicts))
	switch {
	case resolveLocal:
		for _, c := range conflicts {
			resolutions[c.ID()] = sync.ChooseLocal
		}
	case resolveRemote:
		for _, c := range conflicts {
			resolutions[c.ID()] = sync.ChooseRemote
		}
	default:
		result, err := tui.RunConflictResolver(ctx, conflicts)
		if err != nil {
			return err
		}
		if result.Cancelled {
			fmt.Println("Resolution cancelled. Nothing was written.")
			return nil
		}
		resolutions = result.Resolutions
	}

	out, err := env.syncer.Resolve(ctx, resolutions)
	if err != nil {
		return err
	}

	fmt.Printf("Resolved %d conflict(s).\n", len(conflicts))
	printOutcome(out)
	return nil
}

// printConflicts renders conflicts as a table keyed by conflict id.
func printConflicts(conflicts []sync.Conflict) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tKIND\tLOCAL\tREMOTE")
	for _, c := range conflicts {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			c.ID(), c.Kind(), describeVersion(c.LocalVersion()), describeVersion(c.RemoteVersion()))
	}
	_ = w.Flush()
}

// describeVersion summarizes one side of a conflict. A nil version means
// that side deleted (or never had) the record.
func describeVersion(v any) string {
	switch rec := v.(type) {
	case nil:
		return "deleted"
	case snapshot.Recipe:
		return "kept: " + rec.Name
	case snapshot.Ingredient:
		return "kept: " + rec.Name
	case snapshot.MealPlan:
		if rec.Title != "" {
			return "kept: " + rec.Title
		}
		return fmt.Sprintf("kept: %s %s", rec.Date, rec.Slot)
	case snapshot.GroceryList:
		return "kept: " + rec.Name
	case snapshot.GroceryItem:
		return "kept: " + rec.Name
	default:
		return "kept"
	}
}
