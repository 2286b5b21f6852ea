//go:build windows

package process

import (
	"os"
	"strings"
	"syscall"

	"github.com/sockvisor/sockvisor/pkg/errors"
)

// ParseSignalName resolves a named stop signal. Windows only understands
// the termination-style signals; everything else maps to SIGTERM semantics.
func ParseSignalName(name string) (syscall.Signal, error) {
	if name == "" {
		return syscall.SIGTERM, nil
	}
	normalized := strings.TrimPrefix(strings.ToUpper(name), "SIG")
	switch normalized {
	case "INT":
		return syscall.SIGINT, nil
	case "TERM", "QUIT", "HUP", "USR1", "USR2":
		return syscall.SIGTERM, nil
	case "KILL":
		return syscall.SIGKILL, nil
	}
	return 0, errors.NewValidationError("unknown signal name: "+name, nil).WithContext("signal", name)
}

// SendSignal delivers a console control event to the process group.
func SendSignal(pid int, sig syscall.Signal) error {
	if sig == syscall.SIGKILL {
		process, err := os.FindProcess(pid)
		if err != nil {
			return err
		}
		return process.Kill()
	}
	return sendCtrlBreak(pid)
}

// SendTerminationSignal sends a Ctrl-Break event to the process group
func SendTerminationSignal(pid int) error {
	return sendCtrlBreak(pid)
}

func sendCtrlBreak(pid int) error {
	dll, err := syscall.LoadDLL("kernel32.dll")
	if err != nil {
		return err
	}
	proc, err := dll.FindProc("GenerateConsoleCtrlEvent")
	if err != nil {
		return err
	}
	r, _, err := proc.Call(syscall.CTRL_BREAK_EVENT, uintptr(pid))
	if r == 0 {
		return err
	}
	return nil
}
