//go:build !windows

package netadapter

import "os/exec"

func hideWindow(*exec.Cmd) {}
