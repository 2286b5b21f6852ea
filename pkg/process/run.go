package process

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/sockvisor/sockvisor/pkg/errors"
	"github.com/sockvisor/sockvisor/pkg/logging"
)

// RunCommand runs the configured command to completion, streaming output to
// the given writers. Unlike StdSpawnCmd this is for foreground steps whose
// caller waits for the result, not for supervised programs.
func RunCommand(ctx context.Context, execution ExecutionConfig, stdout, stderr io.Writer, logger logging.Logger) error {
	if ctx == nil {
		return errors.NewValidationError("context cannot be nil", nil)
	}

	cmd, err := newForegroundCmd(ctx, execution)
	if err != nil {
		return err
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	logger.Infof("Running command: '%s', args: %v", execution.Command, execution.Args)

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			return errors.NewProcessError("command failed", err).
				WithContext("command", execution.Command).
				WithContext("exit_code", exitErr.ExitCode())
		}
		return errors.NewSpawnError("failed to run command", err).WithContext("command", execution.Command)
	}
	return nil
}

// CaptureCommand runs the configured command and returns its trimmed stdout
func CaptureCommand(ctx context.Context, execution ExecutionConfig, logger logging.Logger) (string, error) {
	var stdout, stderr bytes.Buffer
	if err := RunCommand(ctx, execution, &stdout, &stderr, logger); err != nil {
		if stderr.Len() > 0 {
			return "", errors.NewProcessError("command failed: "+strings.TrimSpace(stderr.String()), err).
				WithContext("command", execution.Command)
		}
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}

func newForegroundCmd(ctx context.Context, execution ExecutionConfig) (*exec.Cmd, error) {
	if execution.Command == "" {
		return nil, errors.NewValidationError("command cannot be empty", nil)
	}

	cmd := exec.CommandContext(ctx, execution.Command, execution.Args...)
	cmd.Dir = execution.WorkingDirectory
	if len(execution.Environment) > 0 {
		cmd.Env = append(os.Environ(), execution.Environment...)
	}
	if err := setupProcessAttributes(cmd, execution.User); err != nil {
		return nil, errors.NewPermissionError("failed to set process attributes", err).
			WithContext("user", execution.User)
	}
	return cmd, nil
}
