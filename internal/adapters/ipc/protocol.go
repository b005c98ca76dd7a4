// Package ipc lets the CLI talk to a running sync agent over a Unix socket.
package ipc

import (
	"encoding/json"
	"time"

	"github.com/felixgeelhaar/sous/internal/domain/agent"
)

// MessageType identifies the type of IPC message.
type MessageType string

const (
	// MessageTypeStatusRequest requests agent status.
	MessageTypeStatusRequest MessageType = "status_request"
	// MessageTypeStopRequest requests agent stop.
	MessageTypeStopRequest MessageType = "stop_request"
	// MessageTypeSyncRequest asks the agent to sync immediately.
	MessageTypeSyncRequest MessageType = "sync_request"

	// MessageTypeStatusResponse contains agent status.
	MessageTypeStatusResponse MessageType = "status_response"
	// MessageTypeStopResponse contains stop result.
	MessageTypeStopResponse MessageType = "stop_response"
	// MessageTypeSyncResponse contains the sync trigger result.
	MessageTypeSyncResponse MessageType = "sync_response"
	// MessageTypeErrorResponse contains error details.
	MessageTypeErrorResponse MessageType = "error_response"
)

// Message is the envelope for all IPC messages.
type Message struct {
	Type      MessageType     `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewMessage creates a new message with the given type and payload.
func NewMessage(msgType MessageType, requestID string, payload interface{}) (*Message, error) {
	var payloadBytes json.RawMessage
	if payload != nil {
		var err error
		payloadBytes, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}

	return &Message{
		Type:      msgType,
		RequestID: requestID,
		Timestamp: time.Now(),
		Payload:   payloadBytes,
	}, nil
}

// StatusRequest is the payload for a status request.
type StatusRequest struct{}

// StatusResponse is the payload for a status response.
type StatusResponse struct {
	Status  agent.Status `json:"status"`
	Version string       `json:"version,omitempty"`
	PID     int          `json:"pid"`
}

// StopRequest is the payload for a stop request.
type StopRequest struct {
	// Force indicates whether to force stop without waiting
	Force bool `json:"force,omitempty"`
	// TimeoutSeconds is the max time to wait for graceful shutdown
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// StopResponse is the payload for a stop response.
type StopResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// SyncRequest is the payload for a sync trigger.
type SyncRequest struct{}

// SyncResponse is the payload for a sync trigger response. The sync itself
// runs asynchronously in the agent; Success only means it was queued.
type SyncResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the payload for an error response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes
const (
	ErrorCodeInvalidRequest = "invalid_request"
	ErrorCodeNotRunning     = "not_running"
	ErrorCodeInternalError  = "internal_error"
)
