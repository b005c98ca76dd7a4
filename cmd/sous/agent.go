package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/sous/internal/adapters/ipc"
	"github.com/felixgeelhaar/sous/internal/adapters/logging"
	"github.com/felixgeelhaar/sous/internal/adapters/watch"
	"github.com/felixgeelhaar/sous/internal/app"
	"github.com/felixgeelhaar/sous/internal/domain/agent"
	"github.com/felixgeelhaar/sous/internal/domain/config"
	"github.com/felixgeelhaar/sous/internal/ports"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Manage the background sync agent",
	Long: `Manage the background agent that keeps this device in sync.

The agent syncs on a schedule, and immediately when the shared snapshot
changes. Conflicts block it until they are resolved; it keeps retrying
in case another device resolves them first.`,
}

// Agent start command flags
var (
	agentForeground bool
	agentInterval   time.Duration
)

var agentStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the background agent",
	Long: `Start the sync agent.

By default the agent runs as a background daemon. Use --foreground to
run it in the current terminal for debugging.

Examples:
  sous agent start                 # Start with the configured interval
  sous agent start --interval 1m   # Sync every minute
  sous agent start --foreground    # Run in foreground`,
	RunE: runAgentStart,
}

// Agent stop command flags
var agentStopForce bool

var agentStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background agent",
	Long: `Stop the running agent, waiting for an in-progress sync to finish.

Examples:
  sous agent stop           # Graceful stop
  sous agent stop --force   # Stop without waiting long`,
	RunE: runAgentStop,
}

// Agent status command flags
var (
	agentStatusJSON  bool
	agentStatusWatch bool
)

var agentStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show agent status",
	Long: `Display whether the agent is running, its current state and recent
sync statistics.

Examples:
  sous agent status          # Show status
  sous agent status --json   # Output as JSON
  sous agent status --watch  # Continuously update`,
	RunE: runAgentStatus,
}

var agentSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Ask the running agent to sync now",
	Args:  cobra.NoArgs,
	RunE:  runAgentSync,
}

func init() {
	rootCmd.AddCommand(agentCmd)
	agentCmd.AddCommand(agentStartCmd)
	agentCmd.AddCommand(agentStopCmd)
	agentCmd.AddCommand(agentStatusCmd)
	agentCmd.AddCommand(agentSyncCmd)

	// Start command flags
	agentStartCmd.Flags().BoolVar(&agentForeground, "foreground", false, "Run in foreground (don't daemonize)")
	agentStartCmd.Flags().DurationVar(&agentInterval, "interval", 0, "Sync interval (default: the configured sync.interval)")

	// Stop command flags
	agentStopCmd.Flags().BoolVar(&agentStopForce, "force", false, "Stop without waiting long")

	// Status command flags
	agentStatusCmd.Flags().BoolVar(&agentStatusJSON, "json", false, "Output as JSON")
	agentStatusCmd.Flags().BoolVar(&agentStatusWatch, "watch", false, "Continuously update status")
}

func runAgentStart(_ *cobra.Command, _ []string) error {
	client := ipc.NewClient(ipc.ClientConfig{})

	// Check if already running
	if client.IsAgentRunning() {
		return fmt.Errorf("agent is already running (PID %d)", client.GetAgentPID())
	}

	if agentForeground {
		return runAgentForeground()
	}

	// Start as daemon — re-exec self with --foreground
	fmt.Println("Starting agent as background daemon...")

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	args := []string{"agent", "start", "--foreground"}
	if cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}
	if agentInterval > 0 {
		args = append(args, "--interval", agentInterval.String())
	}

	// #nosec G204 -- arguments are validated flags from this CLI, not user-controlled input.
	cmd := exec.Command(execPath, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil
	cmd.SysProcAttr = daemonProcAttr()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	fmt.Printf("Agent started (PID %d)\n", cmd.Process.Pid)
	fmt.Println("Check on it with 'sous agent status'.")

	_ = cmd.Process.Release()
	return nil
}

func runAgentForeground() error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := agent.DefaultConfig().WithInterval(env.cfg.SyncInterval())
	if agentInterval > 0 {
		cfg = cfg.WithInterval(agentInterval)
	}

	ag, err := agent.NewAgent(cfg)
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	// The agent gets its own sync service so progress goes to the log
	// file instead of the terminal the daemon was detached from.
	logger := agentLogger(env.cfg)
	syncer := app.NewSyncService(env.store, env.blobs, env.codec, app.WithSyncLogger(logger))
	ag.SetSyncHandler(func(sctx context.Context) (*agent.SyncReport, error) {
		out, err := syncer.Sync(sctx)
		if err != nil {
			return nil, err
		}
		return &agent.SyncReport{
			Action:    string(out.Action),
			Applied:   out.Applied.Total(),
			Pushed:    out.Pushed.Total(),
			Conflicts: len(out.Conflicts),
		}, nil
	})

	// Watch the shared directory so remote edits sync immediately.
	if env.cfg.Storage.Provider == config.ProviderDirectory {
		watcher, werr := watch.NewWatcher()
		if werr != nil {
			return fmt.Errorf("failed to create watcher: %w", werr)
		}
		if werr := watcher.Start(env.cfg.Storage.Path, app.BlobKey); werr != nil {
			return fmt.Errorf("failed to watch %s: %w", env.cfg.Storage.Path, werr)
		}
		defer func() { _ = watcher.Stop() }()

		go func() {
			for {
				select {
				case _, ok := <-watcher.Changes():
					if !ok {
						return
					}
					logger.Debug(ctx, "shared snapshot changed")
					ag.NotifyRemote()
				case err, ok := <-watcher.Errors():
					if !ok {
						return
					}
					logger.Warn(ctx, "watcher error", ports.F("error", err.Error()))
				}
			}
		}()
	}

	provider := &agentProvider{agent: ag, shutdown: cancel}
	server := ipc.NewServer(ipc.ServerConfig{Version: version}, provider)
	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start IPC server: %w", err)
	}
	defer func() { _ = server.Stop() }()

	if err := ag.Start(ctx); err != nil {
		return fmt.Errorf("failed to start agent: %w", err)
	}

	fmt.Printf("Agent is running (sync every %s). Press Ctrl+C to stop.\n", cfg.Interval)
	logger.Info(ctx, "agent started", ports.F("interval", cfg.Interval.String()))

	<-ctx.Done()

	fmt.Println("\nShutting down agent...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	_ = ag.Stop(shutdownCtx)

	return nil
}

// agentLogger builds the agent's logger: the configured log file when set,
// otherwise stderr.
func agentLogger(cfg *config.Config) ports.Logger {
	if cfg.Log.File != "" {
		return logging.NewFileLogger(cfg.Log.File, cfg.LogLevel())
	}
	return logging.NewConsoleLogger(
		logging.WithOutput(os.Stderr),
		logging.WithLevel(cfg.LogLevel()),
	)
}

func runAgentStop(_ *cobra.Command, _ []string) error {
	client := ipc.NewClient(ipc.ClientConfig{})

	if !client.IsAgentRunning() {
		fmt.Println("Agent is not running.")
		return nil
	}

	fmt.Println("Stopping agent...")

	timeout := 30 * time.Second
	if agentStopForce {
		timeout = 5 * time.Second
	}

	resp, err := client.Stop(agentStopForce, timeout)
	if err != nil {
		return fmt.Errorf("failed to stop agent: %w", err)
	}

	if resp.Success {
		fmt.Println("Agent stopped.")
	} else {
		fmt.Printf("Agent stop failed: %s\n", resp.Message)
	}

	return nil
}

func runAgentStatus(_ *cobra.Command, _ []string) error {
	client := ipc.NewClient(ipc.ClientConfig{})

	if agentStatusWatch {
		return runAgentStatusWatch(client)
	}

	if !client.IsAgentRunning() {
		if agentStatusJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]interface{}{
				"running": false,
			})
		}
		fmt.Println("Agent is not running.")
		fmt.Println("")
		fmt.Println("Start the agent with:")
		fmt.Println("  sous agent start")
		return nil
	}

	resp, err := client.Status()
	if err != nil {
		return fmt.Errorf("failed to get agent status: %w", err)
	}

	if agentStatusJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{
			"running":    true,
			"pid":        resp.PID,
			"version":    resp.Version,
			"state":      resp.Status.State,
			"syncCount":  resp.Status.SyncCount,
			"errorCount": resp.Status.ErrorCount,
			"conflicts":  resp.Status.Conflicts,
			"lastSync":   resp.Status.LastSyncAt,
			"nextSync":   resp.Status.NextSyncAt,
			"health":     resp.Status.Health.Status,
		})
	}

	// Human-readable output
	fmt.Printf("Agent Status\n")
	fmt.Println("────────────")
	fmt.Printf("Running:     yes (PID %d)\n", resp.PID)
	fmt.Printf("Version:     %s\n", resp.Version)
	fmt.Printf("State:       %s\n", resp.Status.State)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Health:\t%s\n", formatHealth(resp.Status.Health))
	_, _ = fmt.Fprintf(w, "Syncs:\t%d\n", resp.Status.SyncCount)

	if !resp.Status.LastSyncAt.IsZero() {
		_, _ = fmt.Fprintf(w, "Last Sync:\t%s (%s ago)\n",
			resp.Status.LastSyncAt.Format("2006-01-02 15:04:05"),
			formatDuration(time.Since(resp.Status.LastSyncAt)))
	}
	if !resp.Status.NextSyncAt.IsZero() {
		_, _ = fmt.Fprintf(w, "Next Sync:\t%s (in %s)\n",
			resp.Status.NextSyncAt.Format("2006-01-02 15:04:05"),
			formatDuration(time.Until(resp.Status.NextSyncAt)))
	}
	if resp.Status.LastReport != nil {
		_, _ = fmt.Fprintf(w, "Last Result:\t%s\n", resp.Status.LastReport.Action)
	}
	if resp.Status.ErrorCount > 0 {
		_, _ = fmt.Fprintf(w, "Errors:\t%d\n", resp.Status.ErrorCount)
	}

	_ = w.Flush()

	if resp.Status.Conflicts > 0 {
		fmt.Println()
		fmt.Printf("Blocked on %d conflict(s). Run 'sous sync resolve' to unblock.\n", resp.Status.Conflicts)
	}

	return nil
}

func runAgentStatusWatch(client *ipc.Client) error {
	fmt.Println("Watching agent status (Ctrl+C to stop)...")
	fmt.Println()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		// Clear screen (basic implementation)
		fmt.Print("\033[H\033[2J")

		if !client.IsAgentRunning() {
			fmt.Println("Agent is not running.")
			fmt.Println("Waiting for agent to start...")
		} else {
			resp, err := client.Status()
			if err != nil {
				fmt.Printf("Error: %v\n", err)
			} else {
				fmt.Printf("Agent Status (updated %s)\n", time.Now().Format("15:04:05"))
				fmt.Println("────────────────────────────────")
				fmt.Printf("State:      %s\n", resp.Status.State)
				fmt.Printf("Health:     %s\n", formatHealth(resp.Status.Health))
				fmt.Printf("Syncs:      %d\n", resp.Status.SyncCount)
				if resp.Status.Conflicts > 0 {
					fmt.Printf("Conflicts:  %d\n", resp.Status.Conflicts)
				}
				if !resp.Status.NextSyncAt.IsZero() {
					fmt.Printf("Next Sync:  in %s\n", formatDuration(time.Until(resp.Status.NextSyncAt)))
				}
			}
		}

		<-ticker.C
	}
}

func runAgentSync(_ *cobra.Command, _ []string) error {
	client := ipc.NewClient(ipc.ClientConfig{})

	if !client.IsAgentRunning() {
		return fmt.Errorf("agent is not running")
	}

	resp, err := client.SyncNow()
	if err != nil {
		return fmt.Errorf("failed to request sync: %w", err)
	}

	if resp.Success {
		fmt.Println("Sync requested. Check 'sous agent status' for the result.")
	} else {
		fmt.Printf("Sync request failed: %s\n", resp.Message)
	}

	return nil
}

// agentProvider bridges the running Agent to the IPC Server.
type agentProvider struct {
	agent    *agent.Agent
	shutdown context.CancelFunc
}

func (p *agentProvider) Status() agent.Status {
	return p.agent.Status()
}

func (p *agentProvider) Stop(ctx context.Context) error {
	err := p.agent.Stop(ctx)
	// Unblock the foreground loop so the process exits.
	p.shutdown()
	return err
}

func (p *agentProvider) SyncNow() error {
	p.agent.SyncNow()
	return nil
}

// Helper functions

func formatHealth(health agent.HealthStatus) string {
	switch health.Status {
	case agent.HealthHealthy:
		return "healthy"
	case agent.HealthDegraded:
		return fmt.Sprintf("degraded (%s)", health.Message)
	case agent.HealthBlocked:
		return fmt.Sprintf("blocked (%s)", health.Message)
	default:
		return "unknown"
	}
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		return "now"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	return fmt.Sprintf("%dd %dh", int(d.Hours())/24, int(d.Hours())%24)
}
