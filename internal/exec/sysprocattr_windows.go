//go:build windows

package exec

import osexec "os/exec"

func configureSysProcAttr(cmd *osexec.Cmd) {}
