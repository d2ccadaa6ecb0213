//go:build linux || darwin || freebsd || netbsd || openbsd

package runner

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup starts cmd in its own process group so cancellation
// can kill everything it spawned, not just the direct child.
func setProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
	cmd.Cancel = func() error {
		return killProcessGroup(cmd.Process)
	}
}

func killProcessGroup(p *os.Process) error {
	if p == nil {
		return os.ErrProcessDone
	}
	// Negative PID means process group.
	err := unix.Kill(-p.Pid, unix.SIGKILL)
	if err == nil {
		return nil
	}
	if errors.Is(err, unix.ESRCH) {
		return os.ErrProcessDone
	}
	return p.Kill()
}
