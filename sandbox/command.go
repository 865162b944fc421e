package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/isdmx/runbox/config"
)

// CommandRunner executes source by writing it to a freshly created
// temporary file and spawning an external interpreter process against it.
type CommandRunner struct {
	runtime config.Runtime
}

// NewCommandRunner creates a runner for one external runtime.
func NewCommandRunner(rt config.Runtime) *CommandRunner {
	return &CommandRunner{runtime: rt}
}

// Run spawns the interpreter and waits for it to exit, capturing both
// output streams in full. Success means exit code zero. The temporary file
// is removed on every path, including spawn failures.
func (r *CommandRunner) Run(ctx context.Context, source string) Result {
	tmp, err := os.CreateTemp("", "runbox-*"+r.runtime.Extension)
	if err != nil {
		return Result{Error: fmt.Sprintf("create source file: %v", err)}
	}
	path := tmp.Name()
	defer os.Remove(path)

	if _, err := tmp.WriteString(source); err != nil {
		tmp.Close()
		return Result{Error: fmt.Sprintf("write source file: %v", err)}
	}
	if err := tmp.Close(); err != nil {
		return Result{Error: fmt.Sprintf("write source file: %v", err)}
	}

	args := make([]string, 0, len(r.runtime.Args)+1)
	args = append(args, r.runtime.Args...)
	args = append(args, path)

	cmd := exec.CommandContext(ctx, r.runtime.Command, args...)
	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err = cmd.Run()

	res := Result{Stdout: stdoutBuf.String()}
	if err == nil {
		res.Success = true
		return res
	}

	if _, ok := err.(*exec.ExitError); ok {
		res.Error = stderrBuf.String()
		if res.Error == "" {
			res.Error = err.Error()
		}
		return res
	}

	res.Error = fmt.Sprintf("spawn %s: %v", r.runtime.Command, err)
	return res
}
