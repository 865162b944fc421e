package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/runbox/config"
	"github.com/isdmx/runbox/metrics"
)

// Sentinel errors reported by the coordinator before any execution starts.
// Transports map them to distinct response codes; every other outcome is a
// normalized Result.
var (
	// ErrUnsupportedLanguage rejects a language outside the runtime table,
	// before any resource allocation.
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrTooManyRequests rejects a request over the in-flight ceiling,
	// immediately and without queuing.
	ErrTooManyRequests = errors.New("too many requests")
)

// Executor is the engine's public contract. Execute returns one of the
// sentinel errors above for pre-admission rejections; in every other case
// the error is nil and the Result is well-formed.
type Executor interface {
	Execute(ctx context.Context, req Request) (Result, error)
}

// dispatcher is the seam between the coordinator and the worker pool.
type dispatcher interface {
	Execute(ctx context.Context, language, source string) (Result, error)
}

// Coordinator routes requests to language runners through the worker pool,
// enforcing two-tier admission control (in-flight ceiling, then a
// concurrency semaphore sized to the pool) and the per-execution deadline.
// No failure crosses it unconverted: code errors, timeouts, worker crashes
// and dispatch panics all come back as Results.
type Coordinator struct {
	pool      dispatcher
	log       *zap.Logger
	metrics   *metrics.Metrics
	timeout   time.Duration
	runtimes  map[string]config.Runtime
	available map[string]bool

	maxInFlight int64
	inFlight    atomic.Int64
	sem         chan struct{}
}

// NewCoordinator builds the coordinator and probes external interpreter
// availability once; missing interpreters disable their language without
// affecting others.
func NewCoordinator(cfg *config.Config, log *zap.Logger, m *metrics.Metrics, pool *Pool) *Coordinator {
	return newCoordinator(cfg, log, m, pool)
}

func newCoordinator(cfg *config.Config, log *zap.Logger, m *metrics.Metrics, pool dispatcher) *Coordinator {
	runtimes := make(map[string]config.Runtime, len(cfg.Languages))
	for _, rt := range cfg.Languages {
		runtimes[rt.Name] = rt
	}

	return &Coordinator{
		pool:        pool,
		log:         log,
		metrics:     m,
		timeout:     cfg.GetTimeout(),
		runtimes:    runtimes,
		available:   probeRuntimes(cfg.Languages, log),
		maxInFlight: int64(cfg.Engine.MaxRequests),
		sem:         make(chan struct{}, cfg.Engine.MaxWorkers),
	}
}

// Execute runs one request end to end: validate the language, admit, wait
// for a worker slot, dispatch under the deadline, normalize the outcome.
func (c *Coordinator) Execute(ctx context.Context, req Request) (Result, error) {
	rt, ok := c.runtimes[req.Language]
	if !ok {
		c.metrics.IncRejection(metrics.ReasonUnsupportedLanguage)
		return Result{}, ErrUnsupportedLanguage
	}

	if !c.available[req.Language] {
		// Fail fast: no ticket, no slot, no spawn attempt.
		return Result{
			Error: fmt.Sprintf("runtime unavailable: %s interpreter not found on host", rt.Command),
		}, nil
	}

	if req.Preload != "" || req.EnableNetwork {
		c.log.Debug("preload and enable_network accepted but not enforced",
			zap.String("language", req.Language),
			zap.Bool("enable_network", req.EnableNetwork),
			zap.Int("preload_len", len(req.Preload)))
	}

	// Admission ticket: counts this request against the in-flight ceiling
	// from here until Execute returns, on every path.
	if n := c.inFlight.Add(1); n > c.maxInFlight {
		c.inFlight.Add(-1)
		c.metrics.IncRejection(metrics.ReasonOverloaded)
		return Result{}, ErrTooManyRequests
	}
	defer c.inFlight.Add(-1)
	c.metrics.InFlightAdd(1)
	defer c.metrics.InFlightAdd(-1)

	// Concurrency semaphore, sized to the pool: blocks rather than
	// rejects when all workers are busy.
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return Result{Error: "request canceled while waiting for a worker slot"}, nil
	}
	defer func() { <-c.sem }()

	start := time.Now()
	res, outcome := c.dispatch(ctx, req)
	c.metrics.ObserveExecution(req.Language, outcome, time.Since(start))
	return res, nil
}

// dispatch runs the request under the wall-clock deadline and collapses
// the three outcome classes (runner-reported failure, timeout, plumbing
// failure) into one Result shape.
func (c *Coordinator) dispatch(ctx context.Context, req Request) (res Result, outcome string) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("panic during dispatch",
				zap.String("language", req.Language),
				zap.Any("panic", r),
				zap.Stack("stack"))
			res = Result{Error: fmt.Sprintf("internal error: %v", r)}
			outcome = metrics.OutcomeError
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.pool.Execute(runCtx, req.Language, req.Source)
	switch {
	case err == nil:
		if res.Success {
			return res, metrics.OutcomeSuccess
		}
		return res, metrics.OutcomeFailure

	case errors.Is(err, context.DeadlineExceeded):
		c.log.Warn("execution timed out, worker replaced",
			zap.String("language", req.Language),
			zap.Duration("timeout", c.timeout))
		return Result{Error: fmt.Sprintf("execution timed out after %s", c.timeout)}, metrics.OutcomeTimeout

	case errors.Is(err, context.Canceled):
		return Result{Error: "execution canceled"}, metrics.OutcomeError

	default:
		// Dispatch plumbing failure (worker crash, spawn error). A bug
		// signal, monitored separately from user code failures.
		c.log.Error("dispatch failed",
			zap.String("language", req.Language),
			zap.Error(err))
		return Result{Error: fmt.Sprintf("execution failed: %v", err)}, metrics.OutcomeError
	}
}
