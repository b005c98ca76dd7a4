package agent

import "time"

// Health represents the health level of the agent.
type Health string

const (
	// HealthUnknown indicates health status is not yet determined.
	HealthUnknown Health = "unknown"
	// HealthHealthy indicates the agent is syncing normally.
	HealthHealthy Health = "healthy"
	// HealthBlocked indicates syncs are paused on unresolved conflicts.
	HealthBlocked Health = "blocked"
	// HealthDegraded indicates recent syncs failed but the agent is
	// still retrying.
	HealthDegraded Health = "degraded"
)

// HealthStatus represents the current health of the agent.
type HealthStatus struct {
	// Status is the overall health level.
	Status Health `json:"status"`
	// LastCheck is when health was last evaluated.
	LastCheck time.Time `json:"last_check"`
	// Message provides additional context about the health status.
	Message string `json:"message,omitempty"`
}
