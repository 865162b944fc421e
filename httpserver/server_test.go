package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/runbox/config"
	"github.com/isdmx/runbox/metrics"
	"github.com/isdmx/runbox/sandbox"
)

const testAPIKey = "test-key"

type stubExecutor struct {
	fn   func(ctx context.Context, req sandbox.Request) (sandbox.Result, error)
	last sandbox.Request
}

func (s *stubExecutor) Execute(ctx context.Context, req sandbox.Request) (sandbox.Result, error) {
	s.last = req
	if s.fn == nil {
		return sandbox.Result{Success: true, Stdout: "hi\n"}, nil
	}
	return s.fn(ctx, req)
}

func testServer(t *testing.T, exec sandbox.Executor) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Server: config.Server{
			Transport: config.TransportHTTP,
			HTTPPort:  8194,
			APIKey:    testAPIKey,
		},
		Engine:    config.Engine{MaxWorkers: 2, MaxRequests: 10, TimeoutSec: 10},
		Languages: config.DefaultRuntimes(),
	}
	return New(cfg, zaptest.NewLogger(t), metrics.New(), exec).Handler()
}

func doRun(t *testing.T, h http.Handler, body, apiKey string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/sandbox/run", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set(APIKeyHeader, apiKey)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthEndpointIsOpen(t *testing.T) {
	h := testServer(t, &stubExecutor{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestMetricsEndpointIsOpen(t *testing.T) {
	h := testServer(t, &stubExecutor{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRunAuthentication(t *testing.T) {
	t.Run("MissingKey", func(t *testing.T) {
		h := testServer(t, &stubExecutor{})

		rec := doRun(t, h, `{"language":"lua","code":"print(1)"}`, "")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		resp := decodeResponse(t, rec)
		assert.Equal(t, CodeUnauthorized, resp.Code)
		assert.Equal(t, "Unauthorized", resp.Message)
		assert.Nil(t, resp.Data)
	})

	t.Run("WrongKey", func(t *testing.T) {
		h := testServer(t, &stubExecutor{})

		rec := doRun(t, h, `{"language":"lua","code":"print(1)"}`, "nope")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("ValidKey", func(t *testing.T) {
		h := testServer(t, &stubExecutor{})

		rec := doRun(t, h, `{"language":"lua","code":"print(1)"}`, testAPIKey)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestHandleRun(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		exec := &stubExecutor{}
		h := testServer(t, exec)

		rec := doRun(t, h, `{"language":"lua","code":"print('hi')"}`, testAPIKey)

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeResponse(t, rec)
		assert.Equal(t, CodeOK, resp.Code)
		assert.Equal(t, "success", resp.Message)

		data, ok := resp.Data.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "hi\n", data["stdout"])
		assert.Equal(t, "", data["error"])

		assert.Equal(t, "lua", exec.last.Language)
		assert.Equal(t, "print('hi')", exec.last.Source)
	})

	t.Run("CodeErrorStillEnvelopeOK", func(t *testing.T) {
		exec := &stubExecutor{fn: func(context.Context, sandbox.Request) (sandbox.Result, error) {
			return sandbox.Result{Stdout: "partial", Error: "boom"}, nil
		}}
		h := testServer(t, exec)

		rec := doRun(t, h, `{"language":"lua","code":"error('boom')"}`, testAPIKey)

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeResponse(t, rec)
		assert.Equal(t, CodeOK, resp.Code)

		data, ok := resp.Data.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "partial", data["stdout"])
		assert.Equal(t, "boom", data["error"])
	})

	t.Run("UnsupportedLanguage", func(t *testing.T) {
		exec := &stubExecutor{fn: func(context.Context, sandbox.Request) (sandbox.Result, error) {
			return sandbox.Result{}, sandbox.ErrUnsupportedLanguage
		}}
		h := testServer(t, exec)

		rec := doRun(t, h, `{"language":"cobol","code":"x"}`, testAPIKey)

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeResponse(t, rec)
		assert.Equal(t, CodeUnsupportedLanguage, resp.Code)
		assert.Equal(t, "unsupported language", resp.Message)
		assert.Nil(t, resp.Data)
	})

	t.Run("Overloaded", func(t *testing.T) {
		exec := &stubExecutor{fn: func(context.Context, sandbox.Request) (sandbox.Result, error) {
			return sandbox.Result{}, sandbox.ErrTooManyRequests
		}}
		h := testServer(t, exec)

		rec := doRun(t, h, `{"language":"lua","code":"x"}`, testAPIKey)

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		resp := decodeResponse(t, rec)
		assert.Equal(t, CodeOverloaded, resp.Code)
		assert.Equal(t, "too many requests", resp.Message)
	})

	t.Run("UnexpectedExecutorError", func(t *testing.T) {
		exec := &stubExecutor{fn: func(context.Context, sandbox.Request) (sandbox.Result, error) {
			return sandbox.Result{}, context.Canceled
		}}
		h := testServer(t, exec)

		rec := doRun(t, h, `{"language":"lua","code":"x"}`, testAPIKey)

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		resp := decodeResponse(t, rec)
		assert.Equal(t, CodeInternal, resp.Code)
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		h := testServer(t, &stubExecutor{})

		rec := doRun(t, h, `{"language":`, testAPIKey)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("MissingLanguage", func(t *testing.T) {
		h := testServer(t, &stubExecutor{})

		rec := doRun(t, h, `{"code":"print(1)"}`, testAPIKey)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeResponse(t, rec)
		assert.Equal(t, CodeUnsupportedLanguage, resp.Code)
	})

	t.Run("EmptyCodeIsValid", func(t *testing.T) {
		exec := &stubExecutor{fn: func(_ context.Context, req sandbox.Request) (sandbox.Result, error) {
			return sandbox.Result{Success: true}, nil
		}}
		h := testServer(t, exec)

		rec := doRun(t, h, `{"language":"lua","code":""}`, testAPIKey)

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeResponse(t, rec)
		assert.Equal(t, CodeOK, resp.Code)
	})

	t.Run("OptionalFieldsForwarded", func(t *testing.T) {
		exec := &stubExecutor{}
		h := testServer(t, exec)

		doRun(t, h, `{"language":"lua","code":"x","preload":"init","enable_network":true}`, testAPIKey)

		assert.Equal(t, "init", exec.last.Preload)
		assert.True(t, exec.last.EnableNetwork)
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "abcde", truncate("abcde", 5))
	assert.Equal(t, "abcde...", truncate("abcdef", 5))
}
