//go:build !windows

package process

import (
	"strings"
	"syscall"

	"github.com/sockvisor/sockvisor/pkg/errors"
)

var signalsByName = map[string]syscall.Signal{
	"HUP":  syscall.SIGHUP,
	"INT":  syscall.SIGINT,
	"QUIT": syscall.SIGQUIT,
	"KILL": syscall.SIGKILL,
	"TERM": syscall.SIGTERM,
	"USR1": syscall.SIGUSR1,
	"USR2": syscall.SIGUSR2,
}

// ParseSignalName resolves a named stop signal ("QUIT", "SIGTERM", ...) to
// the OS signal. An empty name defaults to SIGTERM.
func ParseSignalName(name string) (syscall.Signal, error) {
	if name == "" {
		return syscall.SIGTERM, nil
	}
	normalized := strings.TrimPrefix(strings.ToUpper(name), "SIG")
	sig, ok := signalsByName[normalized]
	if !ok {
		return 0, errors.NewValidationError("unknown signal name: "+name, nil).WithContext("signal", name)
	}
	return sig, nil
}

// SendSignal delivers sig to the process group of pid so the whole worker
// pool receives it, not just the pool parent.
func SendSignal(pid int, sig syscall.Signal) error {
	return syscall.Kill(-pid, sig)
}

// SendTerminationSignal sends SIGTERM to the process group
func SendTerminationSignal(pid int) error {
	return SendSignal(pid, syscall.SIGTERM)
}
