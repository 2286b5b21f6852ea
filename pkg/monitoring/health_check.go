package monitoring

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sockvisor/sockvisor/pkg/errors"
	"github.com/sockvisor/sockvisor/pkg/logging"
	"github.com/sockvisor/sockvisor/pkg/processstate"
	"github.com/sockvisor/sockvisor/pkg/socket"
)

type HealthCheckType string

const (
	HealthCheckTypeProcess HealthCheckType = "process"
	HealthCheckTypeSocket  HealthCheckType = "socket"
	HealthCheckTypeHTTP    HealthCheckType = "http"
	HealthCheckTypeRedis   HealthCheckType = "redis"
)

// SocketHealthCheckConfig probes a UNIX domain socket for an accepting server
type SocketHealthCheckConfig struct {
	Path string `yaml:"path"`
}

// HTTPHealthCheckConfig probes an HTTP endpoint. If SocketPath is set the
// request is carried over the UNIX socket instead of TCP, matching how the
// reverse proxy reaches the worker pool.
type HTTPHealthCheckConfig struct {
	URL        string            `yaml:"url"`
	Method     string            `yaml:"method,omitempty"`
	Headers    map[string]string `yaml:"headers,omitempty"`
	SocketPath string            `yaml:"socket_path,omitempty"`
}

// RedisHealthCheckConfig pings the provisioned queueing engine
type RedisHealthCheckConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

type HealthCheckConfig struct {
	Type HealthCheckType `yaml:"type"`

	Socket SocketHealthCheckConfig `yaml:"socket,omitempty"`

	HTTP HTTPHealthCheckConfig `yaml:"http,omitempty"`

	Redis RedisHealthCheckConfig `yaml:"redis,omitempty"`

	RunOptions HealthCheckRunOptions `yaml:"run_options,omitempty"`
}

type HealthCheckRunOptions struct {
	Enabled      bool          `yaml:"enabled,omitempty"`
	Interval     time.Duration `yaml:"interval,omitempty"`
	Timeout      time.Duration `yaml:"timeout,omitempty"`
	InitialDelay time.Duration `yaml:"initial_delay,omitempty"`
}

type HealthCheckStatus string

const (
	HealthCheckStatusUnknown   HealthCheckStatus = "unknown"
	HealthCheckStatusHealthy   HealthCheckStatus = "healthy"
	HealthCheckStatusDegraded  HealthCheckStatus = "degraded"
	HealthCheckStatusUnhealthy HealthCheckStatus = "unhealthy"
)

type HealthCheckState struct {
	Status               HealthCheckStatus
	LastCheck            time.Time
	Message              string
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
}

// HealthRestartCallback is invoked when sustained failures warrant a restart
type HealthRestartCallback func(reason string) error

// HealthRecoveryCallback is invoked when health recovers after failures
type HealthRecoveryCallback func()

type HealthMonitor interface {
	Start(ctx context.Context) error
	Stop()
	State() *HealthCheckState
	SetRestartCallback(callback HealthRestartCallback)
	SetRecoveryCallback(callback HealthRecoveryCallback)
}

type healthMonitor struct {
	config           *HealthCheckConfig
	state            *HealthCheckState
	stopChan         chan struct{}
	stopOnce         sync.Once
	wg               sync.WaitGroup
	mutex            sync.Mutex
	logger           logging.Logger
	id               string
	pid              int
	restartCallback  HealthRestartCallback
	recoveryCallback HealthRecoveryCallback
}

// NewHealthMonitor creates a monitor for the given program. pid is used by
// the process check type and may be zero for the others.
func NewHealthMonitor(config *HealthCheckConfig, id string, pid int, logger logging.Logger) HealthMonitor {
	return &healthMonitor{
		config:   config,
		state:    &HealthCheckState{Status: HealthCheckStatusUnknown},
		stopChan: make(chan struct{}),
		logger:   logger,
		id:       id,
		pid:      pid,
	}
}

func (h *healthMonitor) Start(ctx context.Context) error {
	h.logger.Infof("Starting health monitor, id: %s, type: %s, interval: %v", h.id, h.config.Type, h.config.RunOptions.Interval)

	if err := ValidateHealthCheckConfig(*h.config); err != nil {
		h.logger.Errorf("Health check configuration validation failed, id: %s, error: %v", h.id, err)
		return errors.NewValidationError("invalid health check configuration", err).WithContext("id", h.id)
	}

	h.wg.Add(1)
	go h.loop()
	return nil
}

func (h *healthMonitor) Stop() {
	h.stopOnce.Do(func() {
		h.logger.Infof("Stopping health monitor, id: %s", h.id)
		close(h.stopChan)
	})
	h.wg.Wait()
}

func (h *healthMonitor) State() *HealthCheckState {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	stateCopy := *h.state
	return &stateCopy
}

func (h *healthMonitor) SetRestartCallback(callback HealthRestartCallback) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.restartCallback = callback
}

func (h *healthMonitor) SetRecoveryCallback(callback HealthRecoveryCallback) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.recoveryCallback = callback
}

func (h *healthMonitor) loop() {
	defer h.wg.Done()

	if h.config.Type == "" {
		h.logger.Debugf("Health monitor loop is disabled due to empty type, id: %s", h.id)
		return
	}

	if h.config.RunOptions.InitialDelay > 0 {
		select {
		case <-time.After(h.config.RunOptions.InitialDelay):
		case <-h.stopChan:
			return
		}
	}

	interval := h.config.RunOptions.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.performCheck()

	for {
		select {
		case <-ticker.C:
			h.performCheck()
		case <-h.stopChan:
			h.logger.Debugf("Health monitor loop stopping, id: %s", h.id)
			return
		}
	}
}

func (h *healthMonitor) performCheck() {
	h.mutex.Lock()
	h.state.LastCheck = time.Now()
	h.mutex.Unlock()

	var isHealthy bool
	var message string

	switch h.config.Type {
	case HealthCheckTypeProcess:
		isHealthy, message = h.checkProcess()
	case HealthCheckTypeSocket:
		isHealthy, message = h.checkSocket()
	case HealthCheckTypeHTTP:
		isHealthy, message = h.checkHTTP()
	case HealthCheckTypeRedis:
		isHealthy, message = h.checkRedis()
	default:
		isHealthy = false
		message = "Unknown health check type: " + string(h.config.Type)
		h.logger.Errorf("Unknown health check type, id: %s, type: %s", h.id, h.config.Type)
	}

	h.updateState(isHealthy, message)
}

func (h *healthMonitor) updateState(isHealthy bool, message string) {
	h.mutex.Lock()

	previousStatus := h.state.Status

	var triggerRecovery, triggerRestart bool

	if isHealthy {
		h.state.ConsecutiveSuccesses++
		h.state.ConsecutiveFailures = 0

		previousWasUnhealthy := previousStatus == HealthCheckStatusDegraded || previousStatus == HealthCheckStatusUnhealthy

		if h.state.Status != HealthCheckStatusHealthy {
			h.state.Status = HealthCheckStatusHealthy
			h.logger.Infof("Health check recovered, id: %s, previous: %s", h.id, previousStatus)
			triggerRecovery = previousWasUnhealthy && h.recoveryCallback != nil
		}
	} else {
		h.state.ConsecutiveFailures++
		h.state.ConsecutiveSuccesses = 0

		var newStatus HealthCheckStatus
		if h.state.ConsecutiveFailures == 1 {
			newStatus = HealthCheckStatusDegraded
		} else {
			newStatus = HealthCheckStatusUnhealthy
		}

		if h.state.Status != newStatus {
			h.state.Status = newStatus
			h.logger.Warnf("Health check status changed, id: %s, status: %s->%s, consecutive_failures: %d, message: %s",
				h.id, previousStatus, newStatus, h.state.ConsecutiveFailures, message)
		}

		triggerRestart = h.state.Status == HealthCheckStatusUnhealthy && h.restartCallback != nil
	}

	h.state.Message = message
	restartCallback := h.restartCallback
	recoveryCallback := h.recoveryCallback
	h.mutex.Unlock()

	if triggerRecovery {
		go recoveryCallback()
	}
	if triggerRestart {
		go func() {
			if err := restartCallback(fmt.Sprintf("health check failure: %s", message)); err != nil {
				h.logger.Errorf("Failed to trigger restart, id: %s, error: %v", h.id, err)
			}
		}()
	}
}

func (h *healthMonitor) checkProcess() (bool, string) {
	if h.pid <= 0 {
		return false, "process health check has no PID"
	}
	running, err := processstate.IsProcessRunning(h.pid)
	if err != nil {
		return false, fmt.Sprintf("process check failed: PID %d: %v", h.pid, err)
	}
	if !running {
		return false, fmt.Sprintf("process not running: PID %d", h.pid)
	}
	return true, fmt.Sprintf("process is running: PID %d", h.pid)
}

func (h *healthMonitor) checkSocket() (bool, string) {
	path := h.config.Socket.Path
	if socket.IsAccepting(path) {
		return true, "socket is accepting connections: " + path
	}
	return false, "socket is not accepting connections: " + path
}

func (h *healthMonitor) checkHTTP() (bool, string) {
	client := resty.New().SetTimeout(h.checkTimeout())

	// Carry the request over the worker pool's UNIX socket when configured
	if h.config.HTTP.SocketPath != "" {
		socketPath := h.config.HTTP.SocketPath
		client.SetTransport(&http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				var dialer net.Dialer
				return dialer.DialContext(ctx, "unix", socketPath)
			},
		})
	}

	method := h.config.HTTP.Method
	if method == "" {
		method = http.MethodGet
	}

	request := client.R().SetHeaders(h.config.HTTP.Headers)
	response, err := request.Execute(method, h.config.HTTP.URL)
	if err != nil {
		return false, fmt.Sprintf("HTTP request failed: %v", err)
	}

	if response.StatusCode() >= 200 && response.StatusCode() < 300 {
		return true, fmt.Sprintf("HTTP health check passed: %s", response.Status())
	}
	return false, fmt.Sprintf("HTTP health check failed: %s", response.Status())
}

func (h *healthMonitor) checkRedis() (bool, string) {
	client := redis.NewClient(&redis.Options{
		Addr:     h.config.Redis.Address,
		Password: h.config.Redis.Password,
		DB:       h.config.Redis.DB,
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), h.checkTimeout())
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return false, fmt.Sprintf("redis ping failed: %v", err)
	}
	return true, "redis ping succeeded: " + h.config.Redis.Address
}

func (h *healthMonitor) checkTimeout() time.Duration {
	if h.config.RunOptions.Timeout > 0 {
		return h.config.RunOptions.Timeout
	}
	return 5 * time.Second
}
