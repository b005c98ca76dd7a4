package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/sous/internal/app"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile local data with the shared snapshot",
	Long: `Sync merges this device's changes with the shared snapshot in the
configured storage location.

The sync process:
  1. Load the local snapshot, the shared snapshot and the last synced base
  2. Merge both sides three-way against the base
  3. Write a clean merge to the local store and the shared location
  4. Stop on conflicting edits without writing anything

Conflicting edits are listed with 'sous sync conflicts' and settled
with 'sous sync resolve'.

Examples:
  sous sync                # Merge with the shared snapshot
  sous sync status         # Show where this device stands
  sous sync push --yes     # Overwrite the shared snapshot with local data
  sous sync pull --yes     # Overwrite local data with the shared snapshot`,
	RunE: runSync,
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show how this device relates to the shared snapshot",
	Args:  cobra.NoArgs,
	RunE:  runSyncStatus,
}

var syncPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Overwrite the shared snapshot with this device's data",
	Long: `Push publishes the local snapshot to the shared location, replacing
whatever is there. Use it to recover from a bad shared state; the
normal flow is 'sous sync'.`,
	Args: cobra.NoArgs,
	RunE: runSyncPush,
}

var syncPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Replace this device's data with the shared snapshot",
	Long: `Pull overwrites the local store with the shared snapshot, discarding
every local change since the last sync. Use it to reset a device; the
normal flow is 'sous sync'.`,
	Args: cobra.NoArgs,
	RunE: runSyncPull,
}

var syncStatusJSONFlag bool

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.AddCommand(syncStatusCmd)
	syncCmd.AddCommand(syncPushCmd)
	syncCmd.AddCommand(syncPullCmd)

	syncStatusCmd.Flags().BoolVar(&syncStatusJSONFlag, "json", false, "Output as JSON for CI/automation")
}

func runSync(_ *cobra.Command, _ []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	out, err := env.syncer.Sync(context.Background())
	if err != nil {
		return err
	}
	printOutcome(out)
	return nil
}

// SyncStatusJSON is the JSON shape of 'sous sync status --json'.
type SyncStatusJSON struct {
	DeviceID       string `json:"device_id"`
	State          string `json:"state"`
	RecordCount    int    `json:"record_count"`
	LocalModified  int64  `json:"local_modified_ms"`
	RemoteModified int64  `json:"remote_modified_ms"`
	LocalChanges   int    `json:"local_changes"`
	RemoteChanges  int    `json:"remote_changes"`
	Conflicts      int    `json:"conflicts"`
}

func runSyncStatus(_ *cobra.Command, _ []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	st, err := env.syncer.Status(context.Background())
	if err != nil {
		return err
	}

	if syncStatusJSONFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(SyncStatusJSON{
			DeviceID:       st.DeviceID,
			State:          string(st.State),
			RecordCount:    st.RecordCount,
			LocalModified:  st.LocalModified,
			RemoteModified: st.RemoteModified,
			LocalChanges:   st.LocalChanges.Total(),
			RemoteChanges:  st.RemoteChanges.Total(),
			Conflicts:      st.Conflicts,
		})
	}

	fmt.Println("Sync Status")
	fmt.Println("───────────")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Device:\t%s\n", st.DeviceID)
	_, _ = fmt.Fprintf(w, "State:\t%s\n", st.State)
	_, _ = fmt.Fprintf(w, "Records:\t%d\n", st.RecordCount)
	_, _ = fmt.Fprintf(w, "Local modified:\t%s\n", formatStamp(st.LocalModified))
	_, _ = fmt.Fprintf(w, "Shared modified:\t%s\n", formatStamp(st.RemoteModified))
	if st.LocalChanges.HasChanges() {
		_, _ = fmt.Fprintf(w, "Local changes:\t%s\n", st.LocalChanges)
	}
	if st.RemoteChanges.HasChanges() {
		_, _ = fmt.Fprintf(w, "Shared changes:\t%s\n", st.RemoteChanges)
	}
	if st.Conflicts > 0 {
		_, _ = fmt.Fprintf(w, "Conflicts:\t%d\n", st.Conflicts)
	}
	_ = w.Flush()

	fmt.Println()
	switch st.State {
	case app.StateUnlinked:
		fmt.Println("No shared snapshot yet. Run 'sous sync' to publish this device's data.")
	case app.StateInSync:
		fmt.Println("Everything is in sync.")
	case app.StateAhead:
		fmt.Println("Local changes are waiting. Run 'sous sync' to share them.")
	case app.StateBehind:
		fmt.Println("Shared changes are waiting. Run 'sous sync' to apply them.")
	case app.StateDiverged:
		if st.Conflicts > 0 {
			fmt.Printf("Both sides changed; a sync would stop on %d conflict(s). Run 'sous sync' and then 'sous sync resolve'.\n", st.Conflicts)
		} else {
			fmt.Println("Both sides changed without overlap. Run 'sous sync' to merge.")
		}
	}
	return nil
}

func runSyncPush(_ *cobra.Command, _ []string) error {
	if !confirmDestructive("Overwrite the shared snapshot with this device's data?") {
		fmt.Println("Cancelled.")
		return nil
	}

	env, err := openEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	out, err := env.syncer.Push(context.Background())
	if err != nil {
		return err
	}
	printOutcome(out)
	return nil
}

func runSyncPull(_ *cobra.Command, _ []string) error {
	if !confirmDestructive("Replace this device's data with the shared snapshot? Local changes are discarded.") {
		fmt.Println("Cancelled.")
		return nil
	}

	env, err := openEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	out, err := env.syncer.Pull(context.Background())
	if err != nil {
		return err
	}
	printOutcome(out)
	return nil
}

// printOutcome renders a sync outcome for humans.
func printOutcome(out *app.Outcome) {
	switch out.Action {
	case app.ActionUpToDate:
		fmt.Println("Already up to date.")
	case app.ActionInitialized:
		fmt.Printf("Published the first shared snapshot: %s.\n", out.Pushed)
	case app.ActionPushed:
		fmt.Printf("Pushed local changes: %s.\n", out.Pushed)
	case app.ActionPulled:
		fmt.Printf("Pulled shared changes: %s.\n", out.Applied)
	case app.ActionMerged:
		fmt.Printf("Merged. Applied locally: %s. Pushed: %s.\n", out.Applied, out.Pushed)
	case app.ActionConflicts:
		fmt.Printf("Sync stopped on %d conflict(s). Nothing was written.\n\n", len(out.Conflicts))
		printConflicts(out.Conflicts)
		fmt.Println()
		fmt.Println("Settle them interactively with 'sous sync resolve',")
		fmt.Println("or in bulk with 'sous sync resolve --local' / '--remote'.")
	}
}

// formatStamp renders a Unix-millisecond stamp in local time.
func formatStamp(ms int64) string {
	if ms == 0 {
		return "never"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04:05")
}
