package sandbox

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/isdmx/runbox/config"
)

func shellRuntime() config.Runtime {
	return config.Runtime{
		Name:      "sh",
		Kind:      config.RuntimeExternal,
		Command:   "sh",
		Extension: ".sh",
	}
}

func TestCommandRunner(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available on this host")
	}

	ctx := context.Background()

	t.Run("ExitZeroIsSuccess", func(t *testing.T) {
		runner := NewCommandRunner(shellRuntime())

		res := runner.Run(ctx, "echo hi")

		assert.True(t, res.Success)
		assert.Equal(t, "hi\n", res.Stdout)
		assert.Empty(t, res.Error)
	})

	t.Run("EmptySourceIsSuccess", func(t *testing.T) {
		runner := NewCommandRunner(shellRuntime())

		res := runner.Run(ctx, "")

		assert.True(t, res.Success)
		assert.Empty(t, res.Stdout)
	})

	t.Run("NonZeroExitCarriesStderr", func(t *testing.T) {
		runner := NewCommandRunner(shellRuntime())

		res := runner.Run(ctx, "echo oops >&2; exit 3")

		assert.False(t, res.Success)
		assert.Equal(t, "oops\n", res.Error)
	})

	t.Run("PartialStdoutKeptOnFailure", func(t *testing.T) {
		runner := NewCommandRunner(shellRuntime())

		res := runner.Run(ctx, "echo before; exit 7")

		assert.False(t, res.Success)
		assert.Equal(t, "before\n", res.Stdout)
	})

	t.Run("SilentNonZeroExitStillReported", func(t *testing.T) {
		runner := NewCommandRunner(shellRuntime())

		res := runner.Run(ctx, "exit 5")

		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "exit status 5")
	})

	t.Run("StderrDroppedOnSuccess", func(t *testing.T) {
		runner := NewCommandRunner(shellRuntime())

		res := runner.Run(ctx, "echo warn >&2; echo ok")

		assert.True(t, res.Success)
		assert.Equal(t, "ok\n", res.Stdout)
		assert.Empty(t, res.Error)
	})

	t.Run("MissingInterpreterIsSpawnFailure", func(t *testing.T) {
		rt := shellRuntime()
		rt.Command = "runbox-no-such-interpreter"
		runner := NewCommandRunner(rt)

		res := runner.Run(ctx, "echo hi")

		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "spawn runbox-no-such-interpreter")
	})

	t.Run("ArgsPrecedeScriptPath", func(t *testing.T) {
		rt := shellRuntime()
		rt.Args = []string{"-e"}
		runner := NewCommandRunner(rt)

		res := runner.Run(ctx, "false\necho unreachable")

		assert.False(t, res.Success)
		assert.Empty(t, res.Stdout)
	})
}
