package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// LuaRunner executes source with the Lua interpreter embedded in the
// worker process. Each call gets a fresh interpreter state with an empty
// environment; no state survives between executions.
type LuaRunner struct{}

// Run executes Lua source with stdout/stderr redirected into in-memory
// buffers for the duration of the call. Uncaught errors become a failure
// Result carrying the message and the interpreter traceback together with
// whatever partial stdout was produced. Non-empty captured stderr is
// returned as Error even on success: a side-channel warning, not a failure.
func (LuaRunner) Run(ctx context.Context, source string) Result {
	stdout, stderr, err := captureStdio(func() error {
		return runLua(ctx, source)
	})

	res := Result{Stdout: stdout}
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Success = true
	res.Error = stderr
	return res
}

// runLua must execute under captureStdio: the interpreter binds its io
// library to the process stdio globals at state creation time.
func runLua(ctx context.Context, source string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("interpreter panic: %v", r)
		}
	}()

	state := lua.NewState()
	defer state.Close()
	state.SetContext(ctx)

	return state.DoString(source)
}

// captureStdio swaps the process stdout/stderr globals for pipes draining
// into in-memory buffers, runs fn, and restores the originals afterward
// even when fn fails. Output is not truncated. The worker executes one job
// at a time, which is what makes the global swap safe.
func captureStdio(fn func() error) (stdout, stderr string, err error) {
	outR, outW, pipeErr := os.Pipe()
	if pipeErr != nil {
		return "", "", fmt.Errorf("stdout capture: %w", pipeErr)
	}
	errR, errW, pipeErr := os.Pipe()
	if pipeErr != nil {
		outR.Close()
		outW.Close()
		return "", "", fmt.Errorf("stderr capture: %w", pipeErr)
	}

	origOut, origErr := os.Stdout, os.Stderr
	os.Stdout, os.Stderr = outW, errW

	var outBuf, errBuf bytes.Buffer
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		io.Copy(&outBuf, outR) //nolint:errcheck
	}()
	go func() {
		defer wg.Done()
		io.Copy(&errBuf, errR) //nolint:errcheck
	}()

	func() {
		defer func() {
			os.Stdout, os.Stderr = origOut, origErr
			outW.Close()
			errW.Close()
		}()
		err = fn()
	}()

	wg.Wait()
	outR.Close()
	errR.Close()
	return outBuf.String(), errBuf.String(), err
}
