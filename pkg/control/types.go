// Package control is the daemon's REST surface: a small JSON API served on
// a UNIX socket, plus the client the command line tool talks through.
package control

import (
	"time"

	"github.com/sockvisor/sockvisor/pkg/supervisor"
)

const (
	// APIBasePath prefixes all control routes
	APIBasePath = "/api/v1"

	// RequestIDHeader carries the per-request correlation id
	RequestIDHeader = "X-Request-Id"
)

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// ProgramListResponse lists all managed programs
type ProgramListResponse struct {
	Programs map[string]supervisor.Status `json:"programs"`
}

// OperationResponse acknowledges a start/stop/restart request
type OperationResponse struct {
	Name      string `json:"name"`
	Operation string `json:"operation"`
	Result    string `json:"result"`
}

// SupervisorInfo describes the daemon itself
type SupervisorInfo struct {
	State        supervisor.SupervisorState `json:"state"`
	ProgramCount int                        `json:"program_count"`
	StartedAt    time.Time                  `json:"started_at"`
}
