//go:build unix

package sandbox

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcAttrs puts the worker in its own process group so the pool can
// kill the worker together with any interpreter processes it spawned.
func setProcAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcessGroup(pid int) {
	_ = unix.Kill(-pid, unix.SIGKILL)
}
