package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/sockvisor/sockvisor/pkg/errors"
	"github.com/sockvisor/sockvisor/pkg/logging"
	"github.com/sockvisor/sockvisor/pkg/supervisor"
)

// Client talks to the daemon's control API over its UNIX socket
type Client struct {
	resty  *resty.Client
	logger logging.Logger
}

func NewClient(socketPath string, logger logging.Logger) *Client {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			var dialer net.Dialer
			return dialer.DialContext(ctx, "unix", socketPath)
		},
	}

	// The host part is a placeholder; the transport always dials the socket
	client := resty.New().
		SetTransport(transport).
		SetBaseURL("http://sockvisord" + APIBasePath).
		SetTimeout(2 * defaultOperationTimeout)

	return &Client{resty: client, logger: logger}
}

// SupervisorInfo fetches the daemon's own state
func (c *Client) SupervisorInfo(ctx context.Context) (*SupervisorInfo, error) {
	var info SupervisorInfo
	if err := c.get(ctx, "/supervisor", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ListPrograms fetches status snapshots of all programs
func (c *Client) ListPrograms(ctx context.Context) (map[string]supervisor.Status, error) {
	var response ProgramListResponse
	if err := c.get(ctx, "/programs", &response); err != nil {
		return nil, err
	}
	return response.Programs, nil
}

// ProgramStatus fetches the status snapshot of one program
func (c *Client) ProgramStatus(ctx context.Context, name string) (*supervisor.Status, error) {
	var status supervisor.Status
	if err := c.get(ctx, "/programs/"+name, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// StartProgram asks the daemon to start a program
func (c *Client) StartProgram(ctx context.Context, name string) error {
	return c.post(ctx, fmt.Sprintf("/programs/%s/start", name))
}

// StopProgram asks the daemon to stop a program
func (c *Client) StopProgram(ctx context.Context, name string) error {
	return c.post(ctx, fmt.Sprintf("/programs/%s/stop", name))
}

// RestartProgram asks the daemon to restart a program
func (c *Client) RestartProgram(ctx context.Context, name string) error {
	return c.post(ctx, fmt.Sprintf("/programs/%s/restart", name))
}

// WaitReachable polls until the control API answers, bounded by ctx
func (c *Client) WaitReachable(ctx context.Context) error {
	for {
		if _, err := c.SupervisorInfo(ctx); err == nil {
			return nil
		}
		select {
		case <-time.After(250 * time.Millisecond):
		case <-ctx.Done():
			return errors.NewTimeoutError("control API did not become reachable", ctx.Err())
		}
	}
}

func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	response, err := c.resty.R().SetContext(ctx).SetResult(result).Get(path)
	return c.checkResponse(response, err, path)
}

func (c *Client) post(ctx context.Context, path string) error {
	response, err := c.resty.R().SetContext(ctx).Post(path)
	return c.checkResponse(response, err, path)
}

func (c *Client) checkResponse(response *resty.Response, err error, path string) error {
	if err != nil {
		return errors.NewNetworkError("control request failed", err).WithContext("path", path)
	}
	if response.IsSuccess() {
		return nil
	}

	var errorResponse ErrorResponse
	if jsonErr := json.Unmarshal(response.Body(), &errorResponse); jsonErr == nil && errorResponse.Error != "" {
		return errors.NewInternalError(errorResponse.Error, nil).
			WithContext("path", path).
			WithContext("status", response.Status())
	}
	return errors.NewInternalError("control request rejected", nil).
		WithContext("path", path).
		WithContext("status", response.Status())
}
