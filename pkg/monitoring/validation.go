package monitoring

import (
	"strings"

	"github.com/sockvisor/sockvisor/pkg/errors"
	"github.com/sockvisor/sockvisor/pkg/socket"
)

// ValidateHealthCheckConfig validates health check configuration
func ValidateHealthCheckConfig(config HealthCheckConfig) error {
	switch config.Type {
	case HealthCheckTypeProcess:
		// PID is supplied at monitor construction, nothing static to check

	case HealthCheckTypeSocket:
		if err := socket.ValidatePath(config.Socket.Path); err != nil {
			return errors.NewValidationError("invalid socket health check path", err)
		}

	case HealthCheckTypeHTTP:
		if config.HTTP.URL == "" {
			return errors.NewValidationError("URL is required for HTTP health check", nil)
		}
		if !strings.HasPrefix(config.HTTP.URL, "http://") && !strings.HasPrefix(config.HTTP.URL, "https://") {
			return errors.NewValidationError("HTTP health check URL must start with http:// or https://", nil)
		}
		if config.HTTP.SocketPath != "" {
			if err := socket.ValidatePath(config.HTTP.SocketPath); err != nil {
				return errors.NewValidationError("invalid HTTP health check socket path", err)
			}
		}

	case HealthCheckTypeRedis:
		if config.Redis.Address == "" {
			return errors.NewValidationError("address is required for redis health check", nil)
		}

	default:
		return errors.NewValidationError("unsupported health check type: "+string(config.Type), nil)
	}

	if config.RunOptions.Interval < 0 {
		return errors.NewValidationError("health check interval cannot be negative", nil)
	}
	if config.RunOptions.Timeout < 0 {
		return errors.NewValidationError("health check timeout cannot be negative", nil)
	}
	if config.RunOptions.InitialDelay < 0 {
		return errors.NewValidationError("health check initial delay cannot be negative", nil)
	}

	return nil
}
