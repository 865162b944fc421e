package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isdmx/runbox/config"
)

// ErrPoolClosed is returned for executions dispatched after Close.
var ErrPoolClosed = errors.New("worker pool closed")

// workerProc is one live worker process plus its protocol streams. A proc
// is owned by exactly one dispatch at a time; ownership is transferred
// through the pool's slot channel.
type workerProc struct {
	enc  *json.Encoder
	dec  *json.Decoder
	stop func()
}

// Pool is a fixed-size pool of OS-level worker processes created at
// startup and reused across requests. Processes, not goroutines, carry
// executions: a runner that corrupts interpreter state or dies takes down
// only its own worker, and the slot is refilled with a fresh process.
type Pool struct {
	size  int
	log   *zap.Logger
	slots chan *workerProc // a nil element marks a slot needing a respawn
	spawn func() (*workerProc, error)

	closeOnce sync.Once
	closed    chan struct{}
}

// NewPool starts size worker processes by re-executing the server binary
// in worker mode. The language runtime table travels to workers through
// the environment.
func NewPool(cfg *config.Config, log *zap.Logger) (*Pool, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate server binary: %w", err)
	}

	payload, err := json.Marshal(cfg.Languages)
	if err != nil {
		return nil, fmt.Errorf("encode runtime table: %w", err)
	}

	spawn := func() (*workerProc, error) {
		return startWorkerProc(exe, string(payload), log)
	}

	p := newPool(cfg.Engine.MaxWorkers, spawn, log)
	for i := 0; i < p.size; i++ {
		w, err := p.spawn()
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("start worker %d/%d: %w", i+1, p.size, err)
		}
		p.slots <- w
	}

	log.Info("worker pool started", zap.Int("size", p.size))
	return p, nil
}

func newPool(size int, spawn func() (*workerProc, error), log *zap.Logger) *Pool {
	return &Pool{
		size:   size,
		log:    log,
		slots:  make(chan *workerProc, size),
		spawn:  spawn,
		closed: make(chan struct{}),
	}
}

// Execute dispatches one job to a free worker and waits for its reply or
// for ctx to end. A worker slot is always returned to the pool: healthy
// workers are re-queued, crashed or deadline-killed ones leave a nil slot
// that the next dispatch respawns lazily.
func (p *Pool) Execute(ctx context.Context, language, source string) (Result, error) {
	select {
	case <-p.closed:
		return Result{}, ErrPoolClosed
	default:
	}

	select {
	case w := <-p.slots:
		return p.dispatch(ctx, w, language, source)
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-p.closed:
		return Result{}, ErrPoolClosed
	}
}

func (p *Pool) dispatch(ctx context.Context, w *workerProc, language, source string) (Result, error) {
	if w == nil {
		var err error
		w, err = p.spawn()
		if err != nil {
			p.release(nil)
			return Result{}, fmt.Errorf("respawn worker: %w", err)
		}
	}

	job := workerJob{ID: uuid.NewString(), Language: language, Source: source}
	if err := w.enc.Encode(&job); err != nil {
		p.discard(w)
		return Result{}, fmt.Errorf("send job to worker: %w", err)
	}

	type outcome struct {
		reply workerReply
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		var reply workerReply
		err := w.dec.Decode(&reply)
		done <- outcome{reply: reply, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			// The worker died mid-job. Contain the crash: report it for
			// this request only and refill the slot.
			p.discard(w)
			return Result{}, fmt.Errorf("worker exited during execution: %w", o.err)
		}
		if o.reply.ID != job.ID {
			p.discard(w)
			return Result{}, fmt.Errorf("worker protocol desync: reply %s for job %s", o.reply.ID, job.ID)
		}
		p.release(w)
		return o.reply.Result, nil

	case <-ctx.Done():
		// Deadline policy: kill the owning worker process (and anything it
		// spawned) instead of leaving it running past the deadline, then
		// replace its slot.
		p.discard(w)
		return Result{}, ctx.Err()
	}
}

// release returns a healthy worker to the pool, or a nil marker when the
// slot needs a respawn.
func (p *Pool) release(w *workerProc) {
	select {
	case <-p.closed:
		if w != nil {
			w.stop()
		}
	default:
		p.slots <- w
	}
}

// discard kills a worker and marks its slot for respawn.
func (p *Pool) discard(w *workerProc) {
	w.stop()
	p.release(nil)
}

// Close shuts the pool down. Idle workers are stopped immediately;
// in-flight workers are stopped as their executions finish.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
		for {
			select {
			case w := <-p.slots:
				if w != nil {
					w.stop()
				}
			default:
				p.log.Info("worker pool stopped")
				return
			}
		}
	})
}

// startWorkerProc launches one worker process in its own process group,
// wiring stdin/stdout as the protocol stream. Worker stderr passes through
// to the server's stderr so worker logs surface normally.
func startWorkerProc(exe, runtimesPayload string, log *zap.Logger) (*workerProc, error) {
	cmd := exec.Command(exe, WorkerArg)
	cmd.Env = append(os.Environ(), runtimesEnv+"="+runtimesPayload)
	cmd.Stderr = os.Stderr
	setProcAttrs(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker: %w", err)
	}

	pid := cmd.Process.Pid
	log.Debug("worker started", zap.Int("pid", pid))

	var stopOnce sync.Once
	stop := func() {
		stopOnce.Do(func() {
			// Kill the whole group so interpreters the worker spawned die
			// with it, then reap. Timeout responses depend on this being
			// immediate, so no grace period.
			stdin.Close()
			killProcessGroup(pid)
			cmd.Wait() //nolint:errcheck
			log.Debug("worker stopped", zap.Int("pid", pid))
		})
	}

	return &workerProc{
		enc:  json.NewEncoder(stdin),
		dec:  json.NewDecoder(stdout),
		stop: stop,
	}, nil
}
