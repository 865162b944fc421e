// Package main is the entry point for the runbox server.
//
// Runbox executes untrusted, short-lived code snippets (Lua embedded,
// Python and Node.js via spawned interpreters) inside a fixed-size pool of
// worker processes, with per-execution timeouts and two-tier admission
// control. Requests arrive over an authenticated REST API or over MCP.
//
// The same binary doubles as the worker process: when started with the
// single argument "worker" it runs the dispatch loop instead of the
// server. The server uses Uber's fx framework for dependency injection and
// lifecycle management, with zap for structured logging and viper for
// configuration.
package main
