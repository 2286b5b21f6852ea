package supervisor

import (
	"time"

	"github.com/sockvisor/sockvisor/pkg/errors"
	"github.com/sockvisor/sockvisor/pkg/monitoring"
	"github.com/sockvisor/sockvisor/pkg/process"
	"github.com/sockvisor/sockvisor/pkg/socket"
)

// RestartPolicy defines when an exited program is respawned
type RestartPolicy string

const (
	RestartNever         RestartPolicy = "never"
	RestartOnFailure     RestartPolicy = "on-failure"
	RestartAlways        RestartPolicy = "always"
	RestartUnlessStopped RestartPolicy = "unless-stopped"
)

// SocketConfig describes the UNIX socket contract of a worker-pool program.
// The server process owns the socket file; the supervisor clears stale
// leftovers before spawning and can verify readiness after.
type SocketConfig struct {
	Path         string        `yaml:"path"`
	ReadyTimeout time.Duration `yaml:"ready_timeout,omitempty"` // 0 disables the readiness probe
}

// BackoffConfig shapes the capped exponential delay between respawns.
// MaxRetries bounds consecutive failed runs before the program goes FATAL;
// 0 means unlimited.
type BackoffConfig struct {
	InitialInterval time.Duration `yaml:"initial_interval,omitempty"`
	MaxInterval     time.Duration `yaml:"max_interval,omitempty"`
	Multiplier      float64       `yaml:"multiplier,omitempty"`
	Jitter          float64       `yaml:"jitter,omitempty"`
	MaxRetries      int           `yaml:"max_retries,omitempty"`

	// A run that stays up at least this long resets the backoff sequence
	ResetAfter time.Duration `yaml:"reset_after,omitempty"`
}

// ProgramSpec is the static description of one supervised program
type ProgramSpec struct {
	Name        string                  `yaml:"name"`
	Execution   process.ExecutionConfig `yaml:"execution"`
	Autostart   bool                    `yaml:"autostart"`
	Autorestart RestartPolicy           `yaml:"autorestart"`

	// Named stop signal, e.g. "QUIT" for a graceful worker-pool drain.
	// Empty defaults to TERM.
	StopSignal string `yaml:"stopsignal,omitempty"`

	// How long to wait after the stop signal before escalating to a kill
	StopWaitTimeout time.Duration `yaml:"stopwaitsecs,omitempty"`

	Backoff BackoffConfig `yaml:"backoff,omitempty"`

	Socket *SocketConfig `yaml:"socket,omitempty"`

	HealthCheck *monitoring.HealthCheckConfig `yaml:"health_check,omitempty"`
}

// ValidateProgramSpec validates a program spec before it is registered
func ValidateProgramSpec(spec ProgramSpec) error {
	if err := ValidateProgramName(spec.Name); err != nil {
		return err
	}

	if err := process.ValidateExecutionConfig(spec.Execution); err != nil {
		return errors.NewValidationError("invalid execution configuration", err).WithContext("program", spec.Name)
	}

	switch spec.Autorestart {
	case "", RestartNever, RestartOnFailure, RestartAlways, RestartUnlessStopped:
	default:
		return errors.NewValidationError("unsupported restart policy: "+string(spec.Autorestart), nil).
			WithContext("program", spec.Name).
			WithContext("supported_policies", "never, on-failure, always, unless-stopped")
	}

	if _, err := process.ParseSignalName(spec.StopSignal); err != nil {
		return errors.NewValidationError("invalid stop signal", err).WithContext("program", spec.Name)
	}

	if spec.StopWaitTimeout < 0 {
		return errors.NewValidationError("stop wait timeout cannot be negative", nil).WithContext("program", spec.Name)
	}

	if spec.Socket != nil {
		if err := socket.ValidatePath(spec.Socket.Path); err != nil {
			return errors.NewValidationError("invalid socket configuration", err).WithContext("program", spec.Name)
		}
	}

	if spec.HealthCheck != nil {
		if err := monitoring.ValidateHealthCheckConfig(*spec.HealthCheck); err != nil {
			return errors.NewValidationError("invalid health check configuration", err).WithContext("program", spec.Name)
		}
	}

	return nil
}

// ValidateProgramName validates a program identifier
func ValidateProgramName(name string) error {
	if name == "" {
		return errors.NewValidationError("program name cannot be empty", nil)
	}
	for _, r := range name {
		valid := r == '-' || r == '_' || r == '.' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !valid {
			return errors.NewValidationError("program name contains invalid character: "+string(r), nil).WithContext("name", name)
		}
	}
	return nil
}
