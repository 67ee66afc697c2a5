//go:build windows

package job

import "os/exec"

func setProcGroup(cmd *exec.Cmd) {}
