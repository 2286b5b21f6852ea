package pidfile

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/sockvisor/sockvisor/pkg/errors"
	"github.com/sockvisor/sockvisor/pkg/logging"
)

const DefaultAppName = "sockvisor"

// Config holds configuration for PID file path generation.
type Config struct {
	// Base directory for PID files. If empty, uses OS-appropriate default
	BaseDirectory string `yaml:"base_directory,omitempty"`

	// Application name for subdirectory creation
	AppName string `yaml:"app_name,omitempty"`

	// Create subdirectory for the app (recommended for system services)
	UseSubdirectory bool `yaml:"use_subdirectory,omitempty"`
}

// Manager generates and manages PID file paths for the daemon and for
// managed programs.
type Manager struct {
	config Config
	logger logging.Logger
}

func NewManager(config Config, logger logging.Logger) *Manager {
	if config.AppName == "" {
		config.AppName = DefaultAppName
	}
	return &Manager{
		config: config,
		logger: logger,
	}
}

// PIDFilePath generates the PID file path for the given name
func (m *Manager) PIDFilePath(name string) string {
	baseDir := m.getBaseDirectory()

	if m.config.UseSubdirectory {
		baseDir = filepath.Join(baseDir, m.config.AppName)
	}

	return filepath.Join(baseDir, name+".pid")
}

// Write records pid in the PID file for name, creating directories as needed.
func (m *Manager) Write(name string, pid int) error {
	path := m.PIDFilePath(name)
	m.logger.Debugf("Writing PID file, name: %s, pid: %d, path: %s", name, pid, path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.NewIOError("failed to create PID file directory", err).WithContext("pid_file", path)
	}

	data := strconv.Itoa(pid) + "\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		return errors.NewIOError("failed to write PID file", err).WithContext("pid_file", path)
	}

	return nil
}

// Read returns the PID recorded for name.
func (m *Manager) Read(name string) (int, error) {
	path := m.PIDFilePath(name)

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.NewIOError("failed to read PID file", err).WithContext("pid_file", path)
	}

	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return 0, errors.NewValidationError("invalid PID format: "+pidStr, err).WithContext("pid_file", path)
	}
	if pid <= 0 {
		return 0, errors.NewValidationError("PID must be positive: "+pidStr, nil).WithContext("pid_file", path)
	}

	return pid, nil
}

// Remove deletes the PID file for name. A missing file is not an error.
func (m *Manager) Remove(name string) error {
	path := m.PIDFilePath(name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.NewIOError("failed to remove PID file", err).WithContext("pid_file", path)
	}
	return nil
}

func (m *Manager) getBaseDirectory() string {
	if m.config.BaseDirectory != "" {
		return m.config.BaseDirectory
	}

	switch runtime.GOOS {
	case "windows":
		if programData := os.Getenv("ProgramData"); programData != "" {
			return programData
		}
		return os.TempDir()
	default:
		return "/var/run"
	}
}
