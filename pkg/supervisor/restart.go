package supervisor

import (
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sockvisor/sockvisor/pkg/logging"
)

// RestartBackoff is the pluggable delay policy between respawns of one
// program. Next returns the delay before the next attempt and false once
// the retry budget is exhausted. Reset is called after a run that stayed
// up long enough to count as healthy.
type RestartBackoff interface {
	Next() (time.Duration, bool)
	Reset()
	Attempts() int
}

const (
	defaultInitialInterval = 1 * time.Second
	defaultMaxInterval     = 30 * time.Second
	defaultMultiplier      = backoff.DefaultMultiplier
	defaultJitter          = 0.10
	defaultResetAfter      = 10 * time.Second
)

type exponentialRestartBackoff struct {
	exponential *backoff.ExponentialBackOff
	maxRetries  int
	attempts    int
	logger      logging.Logger
	id          string
}

// NewRestartBackoff builds the default capped exponential policy from config
func NewRestartBackoff(config BackoffConfig, id string, logger logging.Logger) RestartBackoff {
	exponential := backoff.NewExponentialBackOff()
	exponential.InitialInterval = config.InitialInterval
	if exponential.InitialInterval <= 0 {
		exponential.InitialInterval = defaultInitialInterval
	}
	exponential.MaxInterval = config.MaxInterval
	if exponential.MaxInterval <= 0 {
		exponential.MaxInterval = defaultMaxInterval
	}
	exponential.Multiplier = config.Multiplier
	if exponential.Multiplier <= 0 {
		exponential.Multiplier = defaultMultiplier
	}
	// Jitter 0 selects the default; negative disables randomization
	switch {
	case config.Jitter > 0:
		exponential.RandomizationFactor = config.Jitter
	case config.Jitter < 0:
		exponential.RandomizationFactor = 0
	default:
		exponential.RandomizationFactor = defaultJitter
	}
	// Retry ceiling is attempt-counted, not time-bounded
	exponential.MaxElapsedTime = 0
	exponential.Reset()

	return &exponentialRestartBackoff{
		exponential: exponential,
		maxRetries:  config.MaxRetries,
		logger:      logger,
		id:          id,
	}
}

func (b *exponentialRestartBackoff) Next() (time.Duration, bool) {
	if b.maxRetries > 0 && b.attempts >= b.maxRetries {
		b.logger.Errorf("Restart retry budget exhausted, program: %s, attempts: %d, max: %d",
			b.id, b.attempts, b.maxRetries)
		return 0, false
	}
	b.attempts++
	delay := b.exponential.NextBackOff()
	if delay == backoff.Stop {
		return 0, false
	}
	return delay, true
}

func (b *exponentialRestartBackoff) Reset() {
	if b.attempts > 0 {
		b.logger.Debugf("Resetting restart backoff, program: %s, previous attempts: %d", b.id, b.attempts)
	}
	b.attempts = 0
	b.exponential.Reset()
}

func (b *exponentialRestartBackoff) Attempts() int {
	return b.attempts
}

// shouldRestart evaluates the restart policy against how the run ended.
// An explicit stop never restarts regardless of policy.
func shouldRestart(policy RestartPolicy, exitState *os.ProcessState, stopRequested bool) bool {
	if stopRequested {
		return false
	}
	switch policy {
	case RestartAlways, RestartUnlessStopped:
		return true
	case RestartOnFailure:
		return exitState == nil || !exitState.Success()
	case RestartNever:
		return false
	default:
		return false
	}
}
