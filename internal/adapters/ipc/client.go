package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrAgentNotRunning indicates the agent is not running.
var ErrAgentNotRunning = errors.New("agent is not running")

// Client communicates with the agent via IPC.
type Client struct {
	socketPath string
	lockPath   string
	timeout    time.Duration
}

// ClientConfig contains configuration for the IPC client.
type ClientConfig struct {
	SocketPath string
	LockPath   string
	Timeout    time.Duration
}

// NewClient creates a new IPC client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.SocketPath == "" {
		cfg.SocketPath = DefaultSocketPath()
	}
	if cfg.LockPath == "" {
		cfg.LockPath = DefaultLockPath()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		socketPath: cfg.SocketPath,
		lockPath:   cfg.LockPath,
		timeout:    cfg.Timeout,
	}
}

// IsAgentRunning checks if the agent is currently running.
func (c *Client) IsAgentRunning() bool {
	if _, err := os.Stat(c.lockPath); err != nil {
		return false
	}
	if _, err := os.Stat(c.socketPath); err != nil {
		return false
	}

	// Connect to verify the server is actually listening, not just a stale
	// socket left by a crash.
	conn, err := net.DialTimeout("unix", c.socketPath, 500*time.Millisecond)
	if err != nil {
		return false
	}
	_ = conn.Close()

	return true
}

// GetAgentPID returns the PID of the running agent, or 0 if not running.
func (c *Client) GetAgentPID() int {
	data, err := os.ReadFile(c.lockPath)
	if err != nil {
		return 0
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}

	return pid
}

// Status requests the agent status.
func (c *Client) Status() (*StatusResponse, error) {
	if !c.IsAgentRunning() {
		return nil, ErrAgentNotRunning
	}

	resp, err := c.sendRequest(MessageTypeStatusRequest, StatusRequest{})
	if err != nil {
		return nil, err
	}
	if err := respError(resp); err != nil {
		return nil, err
	}

	var statusResp StatusResponse
	if err := json.Unmarshal(resp.Payload, &statusResp); err != nil {
		return nil, fmt.Errorf("failed to parse status response: %w", err)
	}

	return &statusResp, nil
}

// Stop requests the agent to stop.
func (c *Client) Stop(force bool, timeout time.Duration) (*StopResponse, error) {
	if !c.IsAgentRunning() {
		return nil, ErrAgentNotRunning
	}

	req := StopRequest{
		Force:          force,
		TimeoutSeconds: int(timeout.Seconds()),
	}

	resp, err := c.sendRequest(MessageTypeStopRequest, req)
	if err != nil {
		return nil, err
	}
	if err := respError(resp); err != nil {
		return nil, err
	}

	var stopResp StopResponse
	if err := json.Unmarshal(resp.Payload, &stopResp); err != nil {
		return nil, fmt.Errorf("failed to parse stop response: %w", err)
	}

	return &stopResp, nil
}

// SyncNow asks the agent to run a sync cycle immediately.
func (c *Client) SyncNow() (*SyncResponse, error) {
	if !c.IsAgentRunning() {
		return nil, ErrAgentNotRunning
	}

	resp, err := c.sendRequest(MessageTypeSyncRequest, SyncRequest{})
	if err != nil {
		return nil, err
	}
	if err := respError(resp); err != nil {
		return nil, err
	}

	var syncResp SyncResponse
	if err := json.Unmarshal(resp.Payload, &syncResp); err != nil {
		return nil, fmt.Errorf("failed to parse sync response: %w", err)
	}

	return &syncResp, nil
}

// respError converts an error response message into a Go error.
func respError(resp *Message) error {
	if resp.Type != MessageTypeErrorResponse {
		return nil
	}
	var errResp ErrorResponse
	if err := json.Unmarshal(resp.Payload, &errResp); err != nil {
		return fmt.Errorf("failed to parse error response: %w", err)
	}
	return fmt.Errorf("%s: %s", errResp.Code, errResp.Message)
}

// sendRequest sends a request and waits for a response.
func (c *Client) sendRequest(msgType MessageType, payload interface{}) (*Message, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to agent: %w", err)
	}
	defer func() { _ = conn.Close() }()

	_ = conn.SetDeadline(time.Now().Add(c.timeout))

	msg, err := NewMessage(msgType, uuid.New().String(), payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	if err := json.NewEncoder(conn).Encode(msg); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	var resp Message
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &resp, nil
}
