package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/isdmx/runbox/config"
	"github.com/isdmx/runbox/metrics"
	"github.com/isdmx/runbox/sandbox"
)

// Server is the REST transport in front of the execution engine.
type Server struct {
	cfg    *config.Config
	log    *zap.Logger
	exec   sandbox.Executor
	engine *gin.Engine
	srv    *http.Server
}

// runRequest is the inbound payload of POST /v1/sandbox/run. Code may be
// empty: an empty snippet is a valid no-op execution.
type runRequest struct {
	Language      string `json:"language" binding:"required"`
	Code          string `json:"code"`
	Preload       string `json:"preload"`
	EnableNetwork bool   `json:"enable_network"`
}

// New builds the HTTP server and its routes. Authentication guards the
// /v1/sandbox prefix only; health and metrics stay open.
func New(cfg *config.Config, log *zap.Logger, m *metrics.Metrics, exec sandbox.Executor) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{cfg: cfg, log: log, exec: exec}

	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	if reg := m.Registry(); reg != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	v1 := engine.Group("/v1/sandbox", apiKeyAuth(cfg.Server.APIKey))
	v1.POST("/run", s.handleRun)

	s.engine = engine
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown. It returns http.ErrServerClosed on a clean
// stop.
func (s *Server) Start() error {
	s.log.Info("http server listening",
		zap.String("addr", s.srv.Addr),
		zap.String("run_endpoint", "/v1/sandbox/run"))
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleRun(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Code:    CodeUnsupportedLanguage,
			Message: fmt.Sprintf("invalid request: %v", err),
			Data:    nil,
		})
		return
	}

	s.log.Info("code execution requested",
		zap.String("language", req.Language),
		zap.Int("code_len", len(req.Code)),
		zap.Bool("enable_network", req.EnableNetwork))

	res, err := s.exec.Execute(c.Request.Context(), sandbox.Request{
		Language:      req.Language,
		Source:        req.Code,
		Preload:       req.Preload,
		EnableNetwork: req.EnableNetwork,
	})

	switch {
	case errors.Is(err, sandbox.ErrUnsupportedLanguage):
		s.log.Warn("unsupported language", zap.String("language", req.Language))
		c.JSON(http.StatusOK, Response{
			Code:    CodeUnsupportedLanguage,
			Message: "unsupported language",
			Data:    nil,
		})

	case errors.Is(err, sandbox.ErrTooManyRequests):
		c.JSON(http.StatusServiceUnavailable, Response{
			Code:    CodeOverloaded,
			Message: "too many requests",
			Data:    nil,
		})

	case err != nil:
		// Unreachable by the Executor contract; kept as a belt against
		// future regressions in the engine.
		s.log.Error("executor returned unexpected error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{
			Code:    CodeInternal,
			Message: "internal error",
			Data:    nil,
		})

	default:
		if !res.Success {
			s.log.Warn("execution failed",
				zap.String("language", req.Language),
				zap.String("error", truncate(res.Error, 1000)))
		}
		c.JSON(http.StatusOK, Response{
			Code:    CodeOK,
			Message: "success",
			Data: RunData{
				Stdout: res.Stdout,
				Error:  res.Error,
			},
		})
	}
}

// truncate bounds log field size; responses are never truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
