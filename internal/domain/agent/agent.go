// Package agent provides the background sync agent: a state machine that
// keeps the local store reconciled with the shared snapshot on a schedule
// and on remote activity.
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/felixgeelhaar/statekit"
)

// State represents the agent's current state.
type State string

const (
	// StateStopped indicates the agent is not running.
	StateStopped State = "stopped"
	// StateStarting indicates the agent is initializing.
	StateStarting State = "starting"
	// StateRunning indicates the agent is idle until the next sync trigger.
	StateRunning State = "running"
	// StateSyncing indicates a sync cycle is in progress.
	StateSyncing State = "syncing"
	// StateBlocked indicates the last sync stopped on conflicts that need
	// manual resolution. The agent keeps retrying in case another device
	// resolves them.
	StateBlocked State = "blocked"
	// StateStopping indicates the agent is shutting down.
	StateStopping State = "stopping"
	// StateError indicates the last sync failed. Retries continue with
	// backoff.
	StateError State = "error"
)

// Event types for the agent state machine.
const (
	EventStart         = "START"
	EventStarted       = "STARTED"
	EventStop          = "STOP"
	EventTick          = "TICK"
	EventSyncClean     = "SYNC_CLEAN"
	EventSyncConflicts = "SYNC_CONFLICTS"
	EventError         = "ERROR"
	EventRecover       = "RECOVER"
)

// SyncReport is what one sync cycle tells the agent. The agent does not
// depend on the sync implementation; callers adapt their result type.
type SyncReport struct {
	// Action names what the cycle did (up-to-date, pushed, pulled, ...).
	Action string
	// Applied is the number of records changed in the local store.
	Applied int
	// Pushed is the number of records changed in the shared snapshot.
	Pushed int
	// Conflicts is the number of unresolved conflicts; non-zero blocks.
	Conflicts int
}

// Context holds the runtime context for the agent state machine.
type Context struct {
	Config *Config

	StartedAt         time.Time
	LastSyncAt        time.Time
	LastAttemptAt     time.Time
	SyncCount         int
	ErrorCount        int
	ConsecutiveErrors int
	Conflicts         int
	LastError         error
	LastReport        *SyncReport

	Health HealthStatus
}

// RuntimeContext wraps Context with thread-safe access.
type RuntimeContext struct {
	mu  sync.RWMutex
	ctx Context
}

// NewRuntimeContext creates a new runtime context with the given configuration.
func NewRuntimeContext(cfg *Config) *RuntimeContext {
	return &RuntimeContext{
		ctx: Context{
			Config: cfg,
			Health: HealthStatus{Status: HealthUnknown},
		},
	}
}

// RecordStart records the agent start time.
func (c *RuntimeContext) RecordStart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctx.StartedAt = time.Now()
	c.ctx.Health.Status = HealthHealthy
	c.ctx.Health.LastCheck = time.Now()
}

// RecordAttempt records that a sync cycle began.
func (c *RuntimeContext) RecordAttempt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctx.LastAttemptAt = time.Now()
}

// RecordSync records a clean sync cycle.
func (c *RuntimeContext) RecordSync(report *SyncReport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctx.LastSyncAt = time.Now()
	c.ctx.SyncCount++
	c.ctx.ConsecutiveErrors = 0
	c.ctx.Conflicts = 0
	c.ctx.LastReport = report
	c.ctx.Health.Status = HealthHealthy
	c.ctx.Health.LastCheck = time.Now()
	c.ctx.Health.Message = ""
}

// RecordConflicts records a sync cycle that stopped on conflicts.
func (c *RuntimeContext) RecordConflicts(report *SyncReport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctx.ConsecutiveErrors = 0
	c.ctx.Conflicts = report.Conflicts
	c.ctx.LastReport = report
	c.ctx.Health.Status = HealthBlocked
	c.ctx.Health.LastCheck = time.Now()
	c.ctx.Health.Message = fmt.Sprintf("%d conflicts need resolution, run 'sous sync resolve'", report.Conflicts)
}

// RecordError records a failed sync cycle.
func (c *RuntimeContext) RecordError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctx.ErrorCount++
	c.ctx.ConsecutiveErrors++
	c.ctx.LastError = err
	c.ctx.Health.Status = HealthDegraded
	c.ctx.Health.LastCheck = time.Now()
	c.ctx.Health.Message = err.Error()
}

// GetStatus returns a snapshot of the current status.
func (c *RuntimeContext) GetStatus() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status{
		StartedAt:  c.ctx.StartedAt,
		LastSyncAt: c.ctx.LastSyncAt,
		SyncCount:  c.ctx.SyncCount,
		ErrorCount: c.ctx.ErrorCount,
		Conflicts:  c.ctx.Conflicts,
		LastError:  c.ctx.LastError,
		LastReport: c.ctx.LastReport,
		Health:     c.ctx.Health,
	}
}

// GetContext returns a copy of the current context.
func (c *RuntimeContext) GetContext() Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ctx
}

// Status represents a snapshot of the agent's status.
type Status struct {
	State      State         `json:"state"`
	StartedAt  time.Time     `json:"started_at,omitempty"`
	LastSyncAt time.Time     `json:"last_sync_at,omitempty"`
	SyncCount  int           `json:"sync_count"`
	ErrorCount int           `json:"error_count"`
	Conflicts  int           `json:"conflicts"`
	LastError  error         `json:"last_error,omitempty"`
	LastReport *SyncReport   `json:"last_report,omitempty"`
	Health     HealthStatus  `json:"health"`
	NextSyncAt time.Time     `json:"next_sync_at,omitempty"`
	Uptime     time.Duration `json:"uptime,omitempty"`
}

// Agent is the background sync agent with its state machine.
type Agent struct {
	interp  *statekit.Interpreter[Context]
	runtime *RuntimeContext

	onSync        func(ctx context.Context) (*SyncReport, error)
	onStateChange func(from, to State)

	remoteCh  chan struct{}
	stopCh    chan struct{}
	stoppedCh chan struct{}
	mu        sync.RWMutex
}

// NewAgent creates a new sync agent with the given configuration.
func NewAgent(cfg *Config) (*Agent, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	return &Agent{
		runtime:   NewRuntimeContext(cfg),
		remoteCh:  make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}, nil
}

// buildAgentMachine constructs the agent state machine using statekit.
// The runtime pointer is captured by closures so actions modify the
// original context rather than the machine's copy.
func buildAgentMachine(runtime *RuntimeContext) (*statekit.Interpreter[Context], error) {
	machine, err := statekit.NewMachine[Context]("sous-agent").
		WithInitial("stopped").
		WithContext(runtime.GetContext()).
		WithAction("recordStart", func(_ *Context, _ statekit.Event) {
			runtime.RecordStart()
		}).
		WithAction("recordError", func(_ *Context, event statekit.Event) {
			if payload, ok := event.Payload.(map[string]interface{}); ok {
				if err, ok := payload["error"].(error); ok {
					runtime.RecordError(err)
				}
			}
		}).
		State("stopped").
		On(EventStart).Target("starting").Done().
		State("starting").
		OnEntry("recordStart").
		On(EventStarted).Target("running").
		On(EventError).Target("error").Done().
		State("running").
		On(EventTick).Target("syncing").
		On(EventStop).Target("stopping").
		On(EventError).Target("error").Done().
		State("syncing").
		On(EventSyncClean).Target("running").
		On(EventSyncConflicts).Target("blocked").
		On(EventStop).Target("stopping").
		On(EventError).Target("error").Done().
		State("blocked").
		On(EventTick).Target("syncing").
		On(EventStop).Target("stopping").
		On(EventError).Target("error").Done().
		State("stopping").
		After(100 * time.Millisecond).Target("stopped").Done().
		State("error").
		OnEntry("recordError").
		On(EventTick).Target("syncing").
		On(EventRecover).Target("running").
		On(EventStop).Target("stopped").Done().
		Build()

	if err != nil {
		return nil, err
	}

	return statekit.NewInterpreter(machine), nil
}

// SetSyncHandler sets the function to call for each sync cycle.
func (a *Agent) SetSyncHandler(fn func(ctx context.Context) (*SyncReport, error)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onSync = fn
}

// SetStateChangeHandler sets the callback for state changes.
func (a *Agent) SetStateChangeHandler(fn func(from, to State)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onStateChange = fn
}

// Start starts the agent.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	interp, err := buildAgentMachine(a.runtime)
	if err != nil {
		return fmt.Errorf("failed to build state machine: %w", err)
	}
	a.interp = interp

	a.stopCh = make(chan struct{})
	a.stoppedCh = make(chan struct{})

	a.interp.Start()
	a.send(statekit.Event{Type: EventStart})

	// Let the starting entry action run, then move to running.
	time.AfterFunc(50*time.Millisecond, func() {
		a.mu.RLock()
		interp := a.interp
		a.mu.RUnlock()
		if interp != nil {
			interp.Send(statekit.Event{Type: EventStarted})
		}
	})

	go a.runScheduler(ctx)

	return nil
}

// Stop stops the agent gracefully.
func (a *Agent) Stop(ctx context.Context) error {
	a.mu.Lock()
	interp := a.interp
	stopCh := a.stopCh
	stoppedCh := a.stoppedCh

	if interp == nil {
		a.mu.Unlock()
		return nil
	}

	select {
	case <-stopCh:
	default:
		close(stopCh)
	}
	a.mu.Unlock()

	interp.Send(statekit.Event{Type: EventStop})

	select {
	case <-stoppedCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	a.mu.Lock()
	interp.Stop()
	a.interp = nil
	a.mu.Unlock()

	return nil
}

// State returns the current state.
func (a *Agent) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.interp == nil {
		return StateStopped
	}
	return State(a.interp.State().Value)
}

// Status returns the current agent status.
func (a *Agent) Status() Status {
	status := a.runtime.GetStatus()
	status.State = a.State()

	if !status.StartedAt.IsZero() {
		status.Uptime = time.Since(status.StartedAt)
	}

	ctx := a.runtime.GetContext()
	if ctx.Config != nil && status.State == StateRunning {
		if !status.LastSyncAt.IsZero() {
			status.NextSyncAt = status.LastSyncAt.Add(ctx.Config.Interval)
		} else {
			status.NextSyncAt = status.StartedAt.Add(ctx.Config.Interval)
		}
	}

	return status
}

// NotifyRemote signals that the shared snapshot changed. The next sync runs
// immediately instead of waiting for the ticker. Safe to call from any
// goroutine; signals coalesce while a sync is pending.
func (a *Agent) NotifyRemote() {
	select {
	case a.remoteCh <- struct{}{}:
	default:
	}
}

// SyncNow triggers an immediate sync cycle, same as a remote signal.
func (a *Agent) SyncNow() {
	a.NotifyRemote()
}

// Recover attempts to move the agent out of the error state.
func (a *Agent) Recover() {
	a.send(statekit.Event{Type: EventRecover})
}

// Runtime returns the runtime context, mainly for tests and status surfaces.
func (a *Agent) Runtime() *RuntimeContext {
	return a.runtime
}

// runScheduler drives sync cycles from the ticker and remote signals.
func (a *Agent) runScheduler(ctx context.Context) {
	defer close(a.stoppedCh)

	// Give the machine a moment to reach running.
	select {
	case <-time.After(200 * time.Millisecond):
	case <-ctx.Done():
		return
	case <-a.stopCh:
		return
	}

	interval := a.runtime.GetContext().Config.Interval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stopCh:
			return
		case <-ticker.C:
			a.triggerSync(ctx)
		case <-a.remoteCh:
			a.triggerSync(ctx)
		}
	}
}

// triggerSync runs one sync cycle if the agent is in a state that allows it.
func (a *Agent) triggerSync(ctx context.Context) {
	from := a.State()
	switch from {
	case StateRunning, StateBlocked:
	case StateError:
		if !a.retryDue() {
			return
		}
	default:
		return
	}

	a.send(statekit.Event{Type: EventTick})
	a.notifyStateChange(from, StateSyncing)

	a.mu.RLock()
	handler := a.onSync
	a.mu.RUnlock()

	if handler == nil {
		a.send(statekit.Event{Type: EventSyncClean})
		a.notifyStateChange(StateSyncing, StateRunning)
		return
	}

	a.runtime.RecordAttempt()
	report, err := handler(ctx)
	switch {
	case err != nil:
		a.send(statekit.Event{
			Type:    EventError,
			Payload: map[string]interface{}{"error": err},
		})
		a.notifyStateChange(StateSyncing, StateError)
	case report != nil && report.Conflicts > 0:
		a.runtime.RecordConflicts(report)
		a.send(statekit.Event{Type: EventSyncConflicts})
		a.notifyStateChange(StateSyncing, StateBlocked)
	default:
		a.runtime.RecordSync(report)
		a.send(statekit.Event{Type: EventSyncClean})
		a.notifyStateChange(StateSyncing, StateRunning)
	}
}

// retryDue reports whether enough backoff elapsed since the last failed
// attempt. The delay doubles per consecutive failure, capped by MaxBackoff.
func (a *Agent) retryDue() bool {
	ctx := a.runtime.GetContext()
	if ctx.ConsecutiveErrors == 0 || ctx.LastAttemptAt.IsZero() {
		return true
	}
	return time.Since(ctx.LastAttemptAt) >= backoffDelay(ctx.Config, ctx.ConsecutiveErrors)
}

// backoffDelay returns the wait before retry attempt n+1 after n consecutive
// failures.
func backoffDelay(cfg *Config, consecutive int) time.Duration {
	delay := cfg.Interval
	for i := 1; i < consecutive; i++ {
		delay *= 2
		if delay >= cfg.MaxBackoff {
			return cfg.MaxBackoff
		}
	}
	if delay > cfg.MaxBackoff {
		return cfg.MaxBackoff
	}
	return delay
}

func (a *Agent) send(event statekit.Event) {
	a.mu.RLock()
	interp := a.interp
	a.mu.RUnlock()
	if interp != nil {
		interp.Send(event)
	}
}

func (a *Agent) notifyStateChange(from, to State) {
	a.mu.RLock()
	fn := a.onStateChange
	a.mu.RUnlock()
	if fn != nil && from != to {
		fn(from, to)
	}
}
