//go:build !windows

package exec

import (
	osexec "os/exec"
	"syscall"
)

// configureSysProcAttr places the child in its own process group so KillTree
// can signal the whole tree at once.
func configureSysProcAttr(cmd *osexec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
