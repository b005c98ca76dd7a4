package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/sous/internal/domain/agent"
)

func TestAgentCommand_Structure(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "agent", agentCmd.Use)

	subcommands := agentCmd.Commands()
	names := make([]string, len(subcommands))
	for i, cmd := range subcommands {
		names[i] = cmd.Name()
	}
	for _, exp := range []string{"start", "stop", "status", "sync"} {
		assert.Contains(t, names, exp)
	}
}

func TestAgentStartCommand_Flags(t *testing.T) {
	t.Parallel()

	flags := agentStartCmd.Flags()
	assert.NotNil(t, flags.Lookup("foreground"))
	assert.NotNil(t, flags.Lookup("interval"))
}

func TestAgentStatusCommand_Flags(t *testing.T) {
	t.Parallel()

	flags := agentStatusCmd.Flags()
	assert.NotNil(t, flags.Lookup("json"))
	assert.NotNil(t, flags.Lookup("watch"))
}

func TestFormatHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		health agent.HealthStatus
		want   string
	}{
		{
			name:   "healthy",
			health: agent.HealthStatus{Status: agent.HealthHealthy},
			want:   "healthy",
		},
		{
			name:   "degraded with message",
			health: agent.HealthStatus{Status: agent.HealthDegraded, Message: "2 consecutive sync errors"},
			want:   "degraded (2 consecutive sync errors)",
		},
		{
			name:   "blocked with message",
			health: agent.HealthStatus{Status: agent.HealthBlocked, Message: "3 unresolved conflicts"},
			want:   "blocked (3 unresolved conflicts)",
		},
		{
			name:   "unknown",
			health: agent.HealthStatus{Status: "???"},
			want:   "unknown",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, formatHealth(tt.health))
		})
	}
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		d    time.Duration
		want string
	}{
		{-1 * time.Second, "now"},
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{90 * time.Minute, "1h 30m"},
		{36 * time.Hour, "1d 12h"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d), "formatDuration(%s)", tt.d)
	}
}

func TestAgentProvider(t *testing.T) {
	t.Parallel()

	ag, err := agent.NewAgent(agent.DefaultConfig())
	require.NoError(t, err)

	shutdownCalled := false
	provider := &agentProvider{
		agent:    ag,
		shutdown: func() { shutdownCalled = true },
	}

	status := provider.Status()
	assert.Equal(t, agent.StateStopped, status.State)

	assert.NoError(t, provider.SyncNow())

	require.NoError(t, provider.Stop(context.Background()))
	assert.True(t, shutdownCalled, "Stop should cancel the foreground context")
}
