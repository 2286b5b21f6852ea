//go:build !windows

package process

import (
	"os/exec"
	"os/user"
	"strconv"
	"syscall"

	"github.com/sockvisor/sockvisor/pkg/errors"
)

// setupProcessAttributes configures Unix-specific process attributes
func setupProcessAttributes(cmd *exec.Cmd, username string) error {
	// Create a new process group so that signals sent to -pid reach the
	// entire process tree (parent plus all pool workers)
	attr := &syscall.SysProcAttr{
		Setpgid: true,
	}

	if username != "" {
		uid, gid, err := lookupCredential(username)
		if err != nil {
			return err
		}
		attr.Credential = &syscall.Credential{
			Uid: uid,
			Gid: gid,
		}
	}

	cmd.SysProcAttr = attr
	return nil
}

func lookupCredential(username string) (uint32, uint32, error) {
	u, err := user.Lookup(username)
	if err != nil {
		return 0, 0, errors.NewNotFoundError("user not found", err).WithContext("user", username)
	}
	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return 0, 0, errors.NewInternalError("invalid uid", err).WithContext("uid", u.Uid)
	}
	gid, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return 0, 0, errors.NewInternalError("invalid gid", err).WithContext("gid", u.Gid)
	}
	return uint32(uid), uint32(gid), nil
}
