//go:build !windows

package exec

import (
	"errors"
	osexec "os/exec"
	"syscall"
)

// kill terminates a started process according to mode. It is best-effort:
// every platform error, including the process having already exited, is
// swallowed so the caller's cancellation or timeout error is never replaced.
func kill(cmd *osexec.Cmd, mode KillMode) {
	if mode == KillNone || cmd.Process == nil {
		return
	}
	if mode == KillTree {
		// The child was started in its own process group, so a negative
		// pid signals the child and all of its descendants.
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if err == nil || errors.Is(err, syscall.ESRCH) {
			return
		}
		// Group signalling failed for another reason; fall back to the
		// root process.
	}
	_ = cmd.Process.Kill()
}
