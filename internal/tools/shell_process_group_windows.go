//go:build windows

package tools

import (
	"os/exec"
	"syscall"
)

// Windows has no process groups to signal; the runner falls back to
// killing the shell itself.
func configureProcessGroup(cmd *exec.Cmd) {}

func getProcessGroupID(cmd *exec.Cmd) int { return 0 }

func signalProcessGroup(pgid int, sig syscall.Signal) error {
	return syscall.EWINDOWS
}
