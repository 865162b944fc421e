// Package sandbox provides the untrusted code execution engine.
//
// The sandbox package combines four pieces: language runners (an embedded
// Lua interpreter and spawned external interpreters), a fixed-size pool of
// OS-level worker processes that gives crash containment, a per-execution
// wall-clock deadline that kills and replaces the owning worker on expiry,
// and two-tier admission control (a global in-flight ceiling that rejects,
// and a concurrency semaphore sized to the pool that queues).
//
// The Coordinator is the single entry point; no failure of any class
// crosses it as anything but a well-formed Result or one of the two
// pre-admission sentinel errors.
//
// Usage:
//
//	pool, err := sandbox.NewPool(cfg, log)
//	coord := sandbox.NewCoordinator(cfg, log, m, pool)
//	res, err := coord.Execute(ctx, sandbox.Request{
//	    Language: "lua",
//	    Source:   `print("Hello, World!")`,
//	})
//
// Isolation is the OS process boundary only. Stronger isolation (resource
// limits, restricted filesystem or network) belongs in an additional
// Runner variant; the coordinator would not change.
package sandbox
