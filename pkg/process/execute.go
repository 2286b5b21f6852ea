package process

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/sockvisor/sockvisor/pkg/errors"
	"github.com/sockvisor/sockvisor/pkg/logging"
)

// ExecutionConfig describes how a managed process is spawned. Stdout and
// stderr go to append-only log files; if StderrLogFile is empty stderr is
// merged into the stdout file.
type ExecutionConfig struct {
	Command          string        `yaml:"command"`
	Args             []string      `yaml:"args,omitempty"`
	Environment      []string      `yaml:"environment,omitempty"`
	WorkingDirectory string        `yaml:"working_directory,omitempty"`
	User             string        `yaml:"user,omitempty"`
	StdoutLogFile    string        `yaml:"stdout_logfile,omitempty"`
	StderrLogFile    string        `yaml:"stderr_logfile,omitempty"`
	WaitDelay        time.Duration `yaml:"wait_delay,omitempty"`
}

// StdSpawnCmd spawns the configured command and returns the running process
// plus a closer for the opened log files.
type StdSpawnCmd func(ctx context.Context) (*os.Process, io.Closer, error)

func NewStdSpawnCmd(execution ExecutionConfig, id string, logger logging.Logger) StdSpawnCmd {
	return func(ctx context.Context) (*os.Process, io.Closer, error) {
		if ctx == nil {
			logger.Errorf("Context cannot be nil, id: %s", id)
			return nil, nil, errors.NewValidationError("context cannot be nil", nil).WithContext("id", id)
		}

		if err := ValidateExecutionConfig(execution); err != nil {
			logger.Errorf("Execution configuration validation failed, id: %s, error: %v", id, err)
			return nil, nil, errors.NewValidationError("invalid execution configuration", err).WithContext("id", id)
		}

		logger.Infof("Spawning process, id: %s, command: '%s', args: %v", id, execution.Command, execution.Args)

		workDir := execution.WorkingDirectory
		if workDir == "" {
			absPath, err := filepath.Abs(execution.Command)
			if err != nil {
				return nil, nil, errors.NewIOError("failed to get absolute path", err).WithContext("id", id).WithContext("command", execution.Command)
			}
			workDir = filepath.Dir(absPath)
		}

		env := os.Environ()
		env = append(env, execution.Environment...)

		cmd := exec.CommandContext(ctx, execution.Command, execution.Args...)
		cmd.Dir = workDir
		cmd.Env = env

		// Platform-specific setup (process group, credentials) is handled in
		// execute_unix.go / execute_windows.go
		if err := setupProcessAttributes(cmd, execution.User); err != nil {
			return nil, nil, errors.NewPermissionError("failed to set process attributes", err).WithContext("id", id).WithContext("user", execution.User)
		}

		// wait after sending the interrupt signal, before sending the kill signal
		cmd.WaitDelay = execution.WaitDelay

		logFiles, err := openLogFiles(execution)
		if err != nil {
			return nil, nil, err
		}
		cmd.Stdout = logFiles.stdout
		cmd.Stderr = logFiles.stderr

		err = cmd.Start()
		if err != nil {
			logFiles.Close()
			return nil, nil, errors.NewSpawnError("failed to start the process", err).WithContext("id", id).WithContext("command", execution.Command)
		}

		logger.Infof("Successfully spawned process, id: %s, PID: %d", id, cmd.Process.Pid)

		return cmd.Process, logFiles, nil
	}
}

// logFileSet holds the opened log destinations of one managed process.
type logFileSet struct {
	stdout *os.File
	stderr *os.File
}

func (s *logFileSet) Close() error {
	collection := errors.NewErrorCollection()
	if s.stdout != nil {
		collection.Add(s.stdout.Close())
	}
	if s.stderr != nil && s.stderr != s.stdout {
		collection.Add(s.stderr.Close())
	}
	s.stdout = nil
	s.stderr = nil
	return collection.ToError()
}

// openLogFiles opens the configured log files in append mode. Rotation is
// out of scope: files grow until an external tool truncates them.
func openLogFiles(execution ExecutionConfig) (*logFileSet, error) {
	set := &logFileSet{}

	if execution.StdoutLogFile != "" {
		f, err := openAppend(execution.StdoutLogFile)
		if err != nil {
			return nil, err
		}
		set.stdout = f
	}

	if execution.StderrLogFile == "" || execution.StderrLogFile == execution.StdoutLogFile {
		set.stderr = set.stdout
		return set, nil
	}

	f, err := openAppend(execution.StderrLogFile)
	if err != nil {
		set.Close()
		return nil, err
	}
	set.stderr = f
	return set, nil
}

func openAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.NewIOError("failed to open log file", err).WithContext("path", path)
	}
	return f, nil
}
