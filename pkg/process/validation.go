package process

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sockvisor/sockvisor/pkg/errors"
)

// ValidateExecutionConfig validates execution configuration
func ValidateExecutionConfig(config ExecutionConfig) error {
	if config.Command == "" {
		return errors.NewValidationError("command is required", nil)
	}

	// A bare command name is resolved via PATH; an explicit path must exist
	if strings.ContainsRune(config.Command, os.PathSeparator) {
		if _, err := os.Stat(config.Command); os.IsNotExist(err) {
			return errors.NewValidationError("command not found: "+config.Command, err)
		}
	}

	if config.WorkingDirectory != "" {
		if !filepath.IsAbs(config.WorkingDirectory) {
			return errors.NewValidationError("working directory must be absolute path", nil)
		}

		if info, err := os.Stat(config.WorkingDirectory); err != nil {
			return errors.NewValidationError("working directory not accessible: "+config.WorkingDirectory, err)
		} else if !info.IsDir() {
			return errors.NewValidationError("working directory is not a directory: "+config.WorkingDirectory, nil)
		}
	}

	for _, env := range config.Environment {
		if !strings.Contains(env, "=") {
			return errors.NewValidationError("invalid environment variable format: "+env, nil)
		}
	}

	for _, path := range []string{config.StdoutLogFile, config.StderrLogFile} {
		if path != "" && !filepath.IsAbs(path) {
			return errors.NewValidationError("log file path must be absolute: "+path, nil)
		}
	}

	if config.WaitDelay < 0 {
		return errors.NewValidationError("wait delay cannot be negative", nil)
	}

	return nil
}
