package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAgent(t *testing.T) {
	t.Run("creates agent with valid config", func(t *testing.T) {
		cfg := DefaultConfig()
		agent, err := NewAgent(cfg)

		require.NoError(t, err)
		assert.NotNil(t, agent)
		assert.Equal(t, StateStopped, agent.State())
	})

	t.Run("returns error with nil config", func(t *testing.T) {
		agent, err := NewAgent(nil)

		require.Error(t, err)
		assert.Nil(t, agent)
		assert.Contains(t, err.Error(), "config is required")
	})
}

func TestAgent_StartStop(t *testing.T) {
	cfg := DefaultConfig().WithInterval(100 * time.Millisecond) // Fast for testing
	agent, err := NewAgent(cfg)
	require.NoError(t, err)

	ctx := context.Background()

	// Start agent
	err = agent.Start(ctx)
	require.NoError(t, err)

	// Wait for agent to be running
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, StateRunning, agent.State())

	// Stop agent
	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	err = agent.Stop(stopCtx)
	require.NoError(t, err)

	// Agent should be stopped (interpreter is nil after stop)
	assert.Equal(t, StateStopped, agent.State())
}

func TestAgent_Status(t *testing.T) {
	cfg := DefaultConfig().WithInterval(1 * time.Hour) // Long interval
	agent, err := NewAgent(cfg)
	require.NoError(t, err)

	// Status before start - interpreter not created yet
	status := agent.Status()
	assert.Equal(t, StateStopped, status.State)
	assert.True(t, status.StartedAt.IsZero())
	assert.Equal(t, 0, status.SyncCount)

	// Start agent
	ctx := context.Background()
	err = agent.Start(ctx)
	require.NoError(t, err)

	// Wait for agent to be running
	time.Sleep(150 * time.Millisecond)

	// Status after start
	status = agent.Status()
	assert.Equal(t, StateRunning, status.State)
	assert.False(t, status.StartedAt.IsZero())
	assert.Equal(t, HealthHealthy, status.Health.Status)
	assert.Equal(t, status.StartedAt.Add(cfg.Interval), status.NextSyncAt)
	assert.Positive(t, status.Uptime)

	// Cleanup
	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_ = agent.Stop(stopCtx)
}

func TestAgent_SetSyncHandler(t *testing.T) {
	cfg := DefaultConfig().WithInterval(50 * time.Millisecond) // Fast for testing
	agent, err := NewAgent(cfg)
	require.NoError(t, err)

	syncCount := 0
	agent.SetSyncHandler(func(_ context.Context) (*SyncReport, error) {
		syncCount++
		return &SyncReport{Action: "up-to-date"}, nil
	})

	ctx := context.Background()
	err = agent.Start(ctx)
	require.NoError(t, err)

	// Wait for at least one sync cycle
	time.Sleep(500 * time.Millisecond)

	// Cleanup
	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_ = agent.Stop(stopCtx)

	// Should have synced at least once
	assert.Positive(t, syncCount)

	status := agent.Status()
	assert.Positive(t, status.SyncCount)
	require.NotNil(t, status.LastReport)
	assert.Equal(t, "up-to-date", status.LastReport.Action)
	assert.Equal(t, HealthHealthy, status.Health.Status)
}

func TestAgent_NotifyRemote(t *testing.T) {
	cfg := DefaultConfig().WithInterval(1 * time.Hour) // Ticker never fires
	agent, err := NewAgent(cfg)
	require.NoError(t, err)

	syncCount := 0
	agent.SetSyncHandler(func(_ context.Context) (*SyncReport, error) {
		syncCount++
		return &SyncReport{Action: "pulled", Applied: 1}, nil
	})

	ctx := context.Background()
	err = agent.Start(ctx)
	require.NoError(t, err)
	time.Sleep(300 * time.Millisecond)

	// Remote signal should trigger a sync without waiting for the ticker
	agent.NotifyRemote()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StateRunning, agent.State())

	// SyncNow is the same trigger
	agent.SyncNow()
	time.Sleep(100 * time.Millisecond)

	// Cleanup
	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_ = agent.Stop(stopCtx)

	assert.Equal(t, 2, syncCount)
}

func TestAgent_SyncError(t *testing.T) {
	cfg := DefaultConfig().WithInterval(1 * time.Hour)
	agent, err := NewAgent(cfg)
	require.NoError(t, err)

	expectedErr := errors.New("shared location unreachable")
	agent.SetSyncHandler(func(_ context.Context) (*SyncReport, error) {
		return nil, expectedErr
	})

	ctx := context.Background()
	err = agent.Start(ctx)
	require.NoError(t, err)
	time.Sleep(300 * time.Millisecond)

	agent.NotifyRemote()
	time.Sleep(100 * time.Millisecond)

	// Agent should be in error state
	assert.Equal(t, StateError, agent.State(), "expected error state after failed sync")

	// Context should reflect error (modified by closure in action)
	runtimeCtx := agent.Runtime().GetContext()
	assert.Positive(t, runtimeCtx.ErrorCount, "expected error count > 0")
	assert.Equal(t, 1, runtimeCtx.ConsecutiveErrors)
	assert.Equal(t, HealthDegraded, runtimeCtx.Health.Status)
	assert.Equal(t, expectedErr, runtimeCtx.LastError)

	// Cleanup
	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_ = agent.Stop(stopCtx)
}

func TestAgent_SyncConflicts(t *testing.T) {
	cfg := DefaultConfig().WithInterval(50 * time.Millisecond)
	agent, err := NewAgent(cfg)
	require.NoError(t, err)

	callCount := 0
	agent.SetSyncHandler(func(_ context.Context) (*SyncReport, error) {
		callCount++
		return &SyncReport{Action: "conflicts", Conflicts: 2}, nil
	})

	ctx := context.Background()
	err = agent.Start(ctx)
	require.NoError(t, err)

	time.Sleep(500 * time.Millisecond)

	// Agent should be blocked on conflicts
	assert.Equal(t, StateBlocked, agent.State())
	status := agent.Status()
	assert.Equal(t, 2, status.Conflicts)
	assert.Equal(t, HealthBlocked, status.Health.Status)
	assert.Contains(t, status.Health.Message, "2 conflicts")

	// Cleanup
	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_ = agent.Stop(stopCtx)

	// Blocked agent keeps retrying in case conflicts resolve elsewhere
	assert.GreaterOrEqual(t, callCount, 2)
}

func TestAgent_BlockedClears(t *testing.T) {
	cfg := DefaultConfig().WithInterval(50 * time.Millisecond)
	agent, err := NewAgent(cfg)
	require.NoError(t, err)

	// First cycle hits conflicts, later cycles find them resolved
	callCount := 0
	agent.SetSyncHandler(func(_ context.Context) (*SyncReport, error) {
		callCount++
		if callCount == 1 {
			return &SyncReport{Action: "conflicts", Conflicts: 1}, nil
		}
		return &SyncReport{Action: "merged", Applied: 1, Pushed: 1}, nil
	})

	ctx := context.Background()
	err = agent.Start(ctx)
	require.NoError(t, err)

	time.Sleep(600 * time.Millisecond)

	assert.Equal(t, StateRunning, agent.State(), "expected running state once conflicts cleared")
	status := agent.Status()
	assert.Equal(t, 0, status.Conflicts)
	assert.Equal(t, HealthHealthy, status.Health.Status)

	// Cleanup
	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_ = agent.Stop(stopCtx)
}

func TestAgent_Recover(t *testing.T) {
	cfg := DefaultConfig().WithInterval(1 * time.Hour)
	agent, err := NewAgent(cfg)
	require.NoError(t, err)

	// First call fails, subsequent calls succeed
	callCount := 0
	agent.SetSyncHandler(func(_ context.Context) (*SyncReport, error) {
		callCount++
		if callCount == 1 {
			return nil, errors.New("first call fails")
		}
		return &SyncReport{Action: "up-to-date"}, nil
	})

	ctx := context.Background()
	err = agent.Start(ctx)
	require.NoError(t, err)
	time.Sleep(300 * time.Millisecond)

	agent.NotifyRemote()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StateError, agent.State(), "expected error state after first sync")

	// Recover
	agent.Recover()

	// Wait for recovery
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, StateRunning, agent.State(), "expected running state after recovery")

	// Agent syncs normally again
	agent.NotifyRemote()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StateRunning, agent.State())
	assert.Equal(t, 0, agent.Runtime().GetContext().ConsecutiveErrors)

	// Cleanup
	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_ = agent.Stop(stopCtx)
}

func TestAgent_ErrorRetryBackoff(t *testing.T) {
	cfg := DefaultConfig().WithInterval(50 * time.Millisecond)
	agent, err := NewAgent(cfg)
	require.NoError(t, err)

	// First call fails, retry succeeds once the backoff elapses
	callCount := 0
	agent.SetSyncHandler(func(_ context.Context) (*SyncReport, error) {
		callCount++
		if callCount == 1 {
			return nil, errors.New("transient failure")
		}
		return &SyncReport{Action: "up-to-date"}, nil
	})

	var transitions []State
	agent.SetStateChangeHandler(func(_, to State) {
		transitions = append(transitions, to)
	})

	ctx := context.Background()
	err = agent.Start(ctx)
	require.NoError(t, err)

	time.Sleep(600 * time.Millisecond)

	// Cleanup before reading handler-side state
	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_ = agent.Stop(stopCtx)

	assert.GreaterOrEqual(t, callCount, 2, "expected a retry after the failure")
	assert.Contains(t, transitions, StateError)
	assert.Equal(t, StateRunning, transitions[len(transitions)-1])
	assert.Equal(t, 0, agent.Runtime().GetContext().ConsecutiveErrors)
}

func TestAgent_StopWithoutStart(t *testing.T) {
	cfg := DefaultConfig()
	agent, err := NewAgent(cfg)
	require.NoError(t, err)

	// Stop without starting should not error
	ctx := context.Background()
	err = agent.Stop(ctx)
	require.NoError(t, err)
}

func TestRuntimeContext_RecordStart(t *testing.T) {
	runtime := NewRuntimeContext(DefaultConfig())

	ctx := runtime.GetContext()
	assert.True(t, ctx.StartedAt.IsZero())
	assert.Equal(t, HealthUnknown, ctx.Health.Status)

	runtime.RecordStart()

	ctx = runtime.GetContext()
	assert.False(t, ctx.StartedAt.IsZero())
	assert.Equal(t, HealthHealthy, ctx.Health.Status)
	assert.False(t, ctx.Health.LastCheck.IsZero())
}

func TestRuntimeContext_RecordSync(t *testing.T) {
	runtime := NewRuntimeContext(DefaultConfig())

	ctx := runtime.GetContext()
	assert.Equal(t, 0, ctx.SyncCount)
	assert.True(t, ctx.LastSyncAt.IsZero())

	// A clean sync resets error and conflict tracking
	runtime.RecordError(errors.New("old failure"))
	runtime.RecordConflicts(&SyncReport{Action: "conflicts", Conflicts: 3})

	report := &SyncReport{Action: "merged", Applied: 2, Pushed: 1}
	runtime.RecordSync(report)

	ctx = runtime.GetContext()
	assert.Equal(t, 1, ctx.SyncCount)
	assert.False(t, ctx.LastSyncAt.IsZero())
	assert.Equal(t, report, ctx.LastReport)
	assert.Equal(t, 0, ctx.ConsecutiveErrors)
	assert.Equal(t, 0, ctx.Conflicts)
	assert.Equal(t, HealthHealthy, ctx.Health.Status)
	assert.Empty(t, ctx.Health.Message)
}

func TestRuntimeContext_RecordConflicts(t *testing.T) {
	runtime := NewRuntimeContext(DefaultConfig())

	runtime.RecordConflicts(&SyncReport{Action: "conflicts", Conflicts: 3})

	ctx := runtime.GetContext()
	assert.Equal(t, 3, ctx.Conflicts)
	assert.Equal(t, HealthBlocked, ctx.Health.Status)
	assert.Contains(t, ctx.Health.Message, "3 conflicts")
	assert.Contains(t, ctx.Health.Message, "sous sync resolve")
}

func TestRuntimeContext_RecordError(t *testing.T) {
	runtime := NewRuntimeContext(DefaultConfig())
	// Initial state: HealthUnknown
	ctx := runtime.GetContext()
	assert.Equal(t, 0, ctx.ErrorCount)
	assert.NoError(t, ctx.LastError)

	testErr := errors.New("test error")
	runtime.RecordError(testErr)
	runtime.RecordError(testErr)

	ctx = runtime.GetContext()
	assert.Equal(t, 2, ctx.ErrorCount)
	assert.Equal(t, 2, ctx.ConsecutiveErrors)
	assert.Equal(t, testErr, ctx.LastError)
	assert.Equal(t, HealthDegraded, ctx.Health.Status)
	assert.Equal(t, "test error", ctx.Health.Message)
}

func TestRuntimeContext_GetStatus(t *testing.T) {
	runtime := NewRuntimeContext(DefaultConfig())
	runtime.RecordStart()

	// Record multiple syncs to set counts
	report := &SyncReport{Action: "up-to-date"}
	for i := 0; i < 5; i++ {
		runtime.RecordSync(report)
	}
	// Record errors
	for i := 0; i < 2; i++ {
		runtime.RecordError(errors.New("test"))
	}

	status := runtime.GetStatus()

	assert.False(t, status.StartedAt.IsZero())
	assert.Equal(t, 5, status.SyncCount)
	assert.Equal(t, 2, status.ErrorCount)
	// After recording errors, health is degraded
	assert.Equal(t, HealthDegraded, status.Health.Status)
}

func TestBackoffDelay(t *testing.T) {
	cfg := &Config{Interval: 5 * time.Minute, MaxBackoff: 40 * time.Minute}

	tests := []struct {
		name        string
		consecutive int
		want        time.Duration
	}{
		{name: "first failure", consecutive: 1, want: 5 * time.Minute},
		{name: "second failure doubles", consecutive: 2, want: 10 * time.Minute},
		{name: "third failure doubles again", consecutive: 3, want: 20 * time.Minute},
		{name: "fourth failure hits the cap", consecutive: 4, want: 40 * time.Minute},
		{name: "stays capped", consecutive: 10, want: 40 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, backoffDelay(cfg, tt.consecutive))
		})
	}
}
