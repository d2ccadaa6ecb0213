//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package runner

import "os/exec"

// setProcessGroup is a no-op; cancellation falls back to killing the
// direct child.
func setProcessGroup(cmd *exec.Cmd) {}
