//go:build !unix

package sandbox

import (
	"os"
	"os/exec"
)

func setProcAttrs(_ *exec.Cmd) {}

// killProcessGroup falls back to killing just the worker process on
// platforms without process groups; spawned interpreters may outlive it.
func killProcessGroup(pid int) {
	if proc, err := os.FindProcess(pid); err == nil {
		_ = proc.Kill()
	}
}
