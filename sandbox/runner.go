package sandbox

import (
	"context"
	"os/exec"

	"go.uber.org/zap"

	"github.com/isdmx/runbox/config"
)

// Request describes one execution. It is immutable once accepted.
//
// Preload and EnableNetwork are accepted on the wire but not enforced by
// any runner; they are configuration hooks for a future sandboxed runner
// variant.
type Request struct {
	Language      string
	Source        string
	Preload       string
	EnableNetwork bool
}

// Result is the normalized outcome of one execution. Success=false with a
// non-empty Error covers both code-level failures (exception, non-zero
// exit) and infrastructure failures (timeout, worker crash); the Error
// text distinguishes them.
type Result struct {
	Success bool   `json:"success"`
	Stdout  string `json:"stdout"`
	Error   string `json:"error,omitempty"`
}

// Runner executes source text inside one worker slot. Implementations
// never fail out-of-band: every failure is converted into a Result.
type Runner interface {
	Run(ctx context.Context, source string) Result
}

// buildRunners constructs the language table used inside a worker process.
func buildRunners(runtimes []config.Runtime) map[string]Runner {
	runners := make(map[string]Runner, len(runtimes))
	for _, rt := range runtimes {
		switch rt.Kind {
		case config.RuntimeEmbedded:
			runners[rt.Name] = LuaRunner{}
		case config.RuntimeExternal:
			runners[rt.Name] = NewCommandRunner(rt)
		}
	}
	return runners
}

// probeRuntimes checks, once at startup, which external interpreter
// binaries are present on the host. An unavailable interpreter disables
// that language without affecting others.
func probeRuntimes(runtimes []config.Runtime, log *zap.Logger) map[string]bool {
	available := make(map[string]bool, len(runtimes))
	for _, rt := range runtimes {
		if rt.Kind == config.RuntimeEmbedded {
			available[rt.Name] = true
			continue
		}
		path, err := exec.LookPath(rt.Command)
		if err != nil {
			available[rt.Name] = false
			log.Warn("runtime unavailable, language disabled",
				zap.String("language", rt.Name),
				zap.String("command", rt.Command))
			continue
		}
		available[rt.Name] = true
		log.Info("runtime available",
			zap.String("language", rt.Name),
			zap.String("path", path))
	}
	return available
}
