//go:build windows

package exec

import osexec "os/exec"

// kill terminates a started process according to mode. Windows offers no
// process-group signalling without job objects, so KillTree degrades to
// terminating the root process. Errors are swallowed; termination is always
// best-effort.
func kill(cmd *osexec.Cmd, mode KillMode) {
	if mode == KillNone || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}
