//go:build !windows

package job

import (
	"os/exec"
	"syscall"
)

// setProcGroup puts the child in its own process group so stop requests can
// signal the whole tree.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
