package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/runbox/config"
)

type panickingRunner struct{}

func (panickingRunner) Run(context.Context, string) Result {
	panic("interpreter blew up")
}

func TestRunJob(t *testing.T) {
	log := zaptest.NewLogger(t)
	runners := map[string]Runner{
		"lua":    LuaRunner{},
		"broken": panickingRunner{},
	}

	t.Run("Success", func(t *testing.T) {
		res := runJob(runners, workerJob{ID: "1", Language: "lua", Source: `print("hi")`}, log)

		assert.True(t, res.Success)
		assert.Equal(t, "hi\n", res.Stdout)
	})

	t.Run("UnknownLanguage", func(t *testing.T) {
		res := runJob(runners, workerJob{ID: "2", Language: "cobol"}, log)

		assert.False(t, res.Success)
		assert.Equal(t, "unsupported language: cobol", res.Error)
	})

	t.Run("RunnerPanicBecomesResult", func(t *testing.T) {
		res := runJob(runners, workerJob{ID: "3", Language: "broken"}, log)

		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "worker panic: interpreter blew up")
	})
}

func TestRunWorkerLoop(t *testing.T) {
	log := zaptest.NewLogger(t)
	runners := buildRunners(config.DefaultRuntimes())

	t.Run("AnswersJobsInOrderUntilEOF", func(t *testing.T) {
		var in bytes.Buffer
		enc := json.NewEncoder(&in)
		require.NoError(t, enc.Encode(workerJob{ID: "a", Language: "lua", Source: `print(1 + 1)`}))
		require.NoError(t, enc.Encode(workerJob{ID: "b", Language: "lua", Source: `error("nope")`}))

		var out bytes.Buffer
		require.NoError(t, runWorkerLoop(&in, &out, runners, log))

		dec := json.NewDecoder(&out)

		var first workerReply
		require.NoError(t, dec.Decode(&first))
		assert.Equal(t, "a", first.ID)
		assert.True(t, first.Result.Success)
		assert.Equal(t, "2\n", first.Result.Stdout)

		var second workerReply
		require.NoError(t, dec.Decode(&second))
		assert.Equal(t, "b", second.ID)
		assert.False(t, second.Result.Success)
		assert.Contains(t, second.Result.Error, "nope")
	})

	t.Run("EmptyInputIsCleanShutdown", func(t *testing.T) {
		var out bytes.Buffer
		assert.NoError(t, runWorkerLoop(strings.NewReader(""), &out, runners, log))
		assert.Zero(t, out.Len())
	})

	t.Run("GarbageInputIsAnError", func(t *testing.T) {
		var out bytes.Buffer
		err := runWorkerLoop(strings.NewReader("not json"), &out, runners, log)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode job")
	})
}

func TestBuildRunners(t *testing.T) {
	runners := buildRunners(config.DefaultRuntimes())

	require.Contains(t, runners, "lua")
	assert.IsType(t, LuaRunner{}, runners["lua"])

	require.Contains(t, runners, "python3")
	assert.IsType(t, &CommandRunner{}, runners["python3"])

	require.Contains(t, runners, "nodejs")
	assert.IsType(t, &CommandRunner{}, runners["nodejs"])
}
