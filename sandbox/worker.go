package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/isdmx/runbox/config"
)

// WorkerArg is the argv[1] value that switches the server binary into
// worker mode.
const WorkerArg = "worker"

// runtimesEnv carries the language runtime table from the pool to its
// worker processes, so workers never need to re-read configuration files.
const runtimesEnv = "RUNBOX_RUNTIMES"

// workerJob is one dispatched execution, sent to a worker as a JSON line
// on its stdin.
type workerJob struct {
	ID       string `json:"id"`
	Language string `json:"language"`
	Source   string `json:"source"`
}

// workerReply answers one job on the worker's stdout.
type workerReply struct {
	ID     string `json:"id"`
	Result Result `json:"result"`
}

// RunWorker runs the worker process loop: decode a job from stdin, execute
// it, encode the reply to stdout, repeat until stdin closes. It returns
// nil on a clean shutdown (parent closed the pipe).
func RunWorker(log *zap.Logger) error {
	var runtimes []config.Runtime
	if err := json.Unmarshal([]byte(os.Getenv(runtimesEnv)), &runtimes); err != nil {
		return fmt.Errorf("decode %s: %w", runtimesEnv, err)
	}

	// The protocol stream references are taken here, before any embedded
	// execution swaps the stdio globals for capture.
	return runWorkerLoop(os.Stdin, os.Stdout, buildRunners(runtimes), log)
}

func runWorkerLoop(in io.Reader, out io.Writer, runners map[string]Runner, log *zap.Logger) error {
	dec := json.NewDecoder(in)
	enc := json.NewEncoder(out)

	for {
		var job workerJob
		if err := dec.Decode(&job); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode job: %w", err)
		}

		reply := workerReply{ID: job.ID, Result: runJob(runners, job, log)}
		if err := enc.Encode(&reply); err != nil {
			return fmt.Errorf("encode reply: %w", err)
		}
	}
}

// runJob executes one job and never lets a failure escape as anything but
// a Result.
func runJob(runners map[string]Runner, job workerJob, log *zap.Logger) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("runner panic",
				zap.String("id", job.ID),
				zap.String("language", job.Language),
				zap.Any("panic", r))
			res = Result{Error: fmt.Sprintf("worker panic: %v", r)}
		}
	}()

	runner, ok := runners[job.Language]
	if !ok {
		// The coordinator validates languages before dispatch; hitting this
		// means the parent and worker run different manifests.
		return Result{Error: fmt.Sprintf("unsupported language: %s", job.Language)}
	}

	log.Debug("executing job",
		zap.String("id", job.ID),
		zap.String("language", job.Language),
		zap.Int("source_len", len(job.Source)))

	return runner.Run(context.Background(), job.Source)
}
