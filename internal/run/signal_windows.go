//go:build windows

package run

import "os/exec"

// Windows has no POSIX signals or process groups; both paths kill directly.

func terminate(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}

func kill(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
