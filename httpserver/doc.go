// Package httpserver provides the REST transport for the execution engine.
//
// The httpserver package exposes POST /v1/sandbox/run behind shared-secret
// authentication, plus open /health and /metrics endpoints. It is a thin
// pass-through: request decoding, envelope encoding and the API-key check
// live here; every execution rule (admission, timeout, language routing)
// lives in the sandbox package.
package httpserver
