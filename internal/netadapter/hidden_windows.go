//go:build windows

package netadapter

import (
	"os/exec"
	"syscall"
)

// hideWindow sets CREATE_NO_WINDOW so subprocesses spawned from a
// desktop session do not flash a console.
func hideWindow(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: 0x08000000, // CREATE_NO_WINDOW
	}
}
