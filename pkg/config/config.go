package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sockvisor/sockvisor/pkg/errors"
	"github.com/sockvisor/sockvisor/pkg/pidfile"
	"github.com/sockvisor/sockvisor/pkg/socket"
	"github.com/sockvisor/sockvisor/pkg/supervisor"
)

// SupervisorOptions configures the daemon itself, not the managed programs
type SupervisorOptions struct {
	// UNIX socket path the control REST API listens on
	ControlSocket string `yaml:"control_socket,omitempty"`

	LogLevel string `yaml:"log_level,omitempty"`

	// The daemon's own log file, rotated. Managed program logs are separate
	// and append-only.
	LogFile string `yaml:"log_file,omitempty"`

	ForceShutdownTimeout   time.Duration `yaml:"force_shutdown_timeout,omitempty"`
	DefaultStopWaitTimeout time.Duration `yaml:"default_stop_wait_timeout,omitempty"`

	PIDFile pidfile.Config `yaml:"pid_file,omitempty"`
}

// Config is the top-level daemon configuration
type Config struct {
	Supervisor SupervisorOptions `yaml:"supervisor,omitempty"`

	// Application install root. Components receive this through config and
	// the template context, never through ambient environment lookup.
	AppRoot string `yaml:"app_root,omitempty"`

	LogDir string `yaml:"log_dir,omitempty"`
	RunDir string `yaml:"run_dir,omitempty"`

	Programs []supervisor.ProgramSpec `yaml:"programs"`
}

// Load reads, defaults, renders and validates a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIOError("failed to read config file", err).WithContext("path", path)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.NewValidationError("failed to parse config file", err).WithContext("path", path)
	}

	config.setDefaults()

	if err := config.render(); err != nil {
		return nil, errors.NewValidationError("failed to render config templates", err).WithContext("path", path)
	}

	if err := config.Validate(); err != nil {
		return nil, errors.NewValidationError("config validation failed", err).WithContext("path", path)
	}

	return &config, nil
}

func (c *Config) setDefaults() {
	if c.LogDir == "" {
		c.LogDir = "/var/log/sockvisor"
	}
	if c.RunDir == "" {
		c.RunDir = "/var/run/sockvisor"
	}
	if c.Supervisor.ControlSocket == "" {
		c.Supervisor.ControlSocket = "%(run_dir)s/sockvisord.sock"
	}
	if c.Supervisor.LogLevel == "" {
		c.Supervisor.LogLevel = "info"
	}
	if c.Supervisor.ForceShutdownTimeout <= 0 {
		c.Supervisor.ForceShutdownTimeout = 30 * time.Second
	}
	if c.Supervisor.DefaultStopWaitTimeout <= 0 {
		c.Supervisor.DefaultStopWaitTimeout = 10 * time.Second
	}

	for i := range c.Programs {
		program := &c.Programs[i]
		if program.Autorestart == "" {
			program.Autorestart = supervisor.RestartOnFailure
		}
		if program.Execution.StdoutLogFile == "" && program.Name != "" {
			program.Execution.StdoutLogFile = "%(log_dir)s/%(program_name)s.log"
		}
	}
}

// render resolves %(name)s placeholders in every path-like and command field.
// The context carries app_root, log_dir and run_dir plus a per-program
// program_name binding.
func (c *Config) render() error {
	base := NewRenderer(map[string]string{
		"app_root": c.AppRoot,
		"log_dir":  c.LogDir,
		"run_dir":  c.RunDir,
	})

	var err error
	if c.Supervisor.ControlSocket, err = base.Render(c.Supervisor.ControlSocket); err != nil {
		return err
	}
	if c.Supervisor.LogFile, err = base.Render(c.Supervisor.LogFile); err != nil {
		return err
	}
	if c.Supervisor.PIDFile.BaseDirectory, err = base.Render(c.Supervisor.PIDFile.BaseDirectory); err != nil {
		return err
	}

	for i := range c.Programs {
		program := &c.Programs[i]
		renderer := base.With("program_name", program.Name)

		if program.Execution.Command, err = renderer.Render(program.Execution.Command); err != nil {
			return err
		}
		if program.Execution.Args, err = renderer.RenderAll(program.Execution.Args); err != nil {
			return err
		}
		if program.Execution.WorkingDirectory, err = renderer.Render(program.Execution.WorkingDirectory); err != nil {
			return err
		}
		if program.Execution.Environment, err = renderer.RenderAll(program.Execution.Environment); err != nil {
			return err
		}
		if program.Execution.StdoutLogFile, err = renderer.Render(program.Execution.StdoutLogFile); err != nil {
			return err
		}
		if program.Execution.StderrLogFile, err = renderer.Render(program.Execution.StderrLogFile); err != nil {
			return err
		}

		if program.Socket != nil {
			if program.Socket.Path, err = renderer.Render(program.Socket.Path); err != nil {
				return err
			}
		}
		if program.HealthCheck != nil {
			healthCheck := program.HealthCheck
			if healthCheck.Socket.Path, err = renderer.Render(healthCheck.Socket.Path); err != nil {
				return err
			}
			if healthCheck.HTTP.SocketPath, err = renderer.Render(healthCheck.HTTP.SocketPath); err != nil {
				return err
			}
		}

		c.injectAppRoot(program)
	}

	return nil
}

// injectAppRoot makes the application root visible to the child through its
// environment without the child reaching for ambient daemon state
func (c *Config) injectAppRoot(program *supervisor.ProgramSpec) {
	if c.AppRoot == "" {
		return
	}
	for _, entry := range program.Execution.Environment {
		if strings.HasPrefix(entry, "APP_ROOT=") {
			return
		}
	}
	program.Execution.Environment = append(program.Execution.Environment, "APP_ROOT="+c.AppRoot)
}

func (c *Config) Validate() error {
	if c.AppRoot != "" && !filepath.IsAbs(c.AppRoot) {
		return errors.NewValidationError("app_root must be an absolute path", nil).WithContext("app_root", c.AppRoot)
	}
	if !filepath.IsAbs(c.LogDir) {
		return errors.NewValidationError("log_dir must be an absolute path", nil).WithContext("log_dir", c.LogDir)
	}
	if !filepath.IsAbs(c.RunDir) {
		return errors.NewValidationError("run_dir must be an absolute path", nil).WithContext("run_dir", c.RunDir)
	}

	if err := socket.ValidatePath(c.Supervisor.ControlSocket); err != nil {
		return errors.NewValidationError("invalid control socket path", err)
	}
	if c.Supervisor.LogFile != "" && !filepath.IsAbs(c.Supervisor.LogFile) {
		return errors.NewValidationError("supervisor log file must be an absolute path", nil).
			WithContext("log_file", c.Supervisor.LogFile)
	}

	switch c.Supervisor.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errors.NewValidationError("unsupported log level: "+c.Supervisor.LogLevel, nil).
			WithContext("supported_levels", "debug, info, warn, error")
	}

	if len(c.Programs) == 0 {
		return errors.NewValidationError("at least one program must be configured", nil)
	}

	seen := make(map[string]bool, len(c.Programs))
	for i := range c.Programs {
		program := &c.Programs[i]
		if seen[program.Name] {
			return errors.NewValidationError(
				fmt.Sprintf("duplicate program name: %s", program.Name), nil)
		}
		seen[program.Name] = true

		if err := supervisor.ValidateProgramSpec(*program); err != nil {
			return err
		}
	}

	return nil
}
