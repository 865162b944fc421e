package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/runbox/config"
	"github.com/isdmx/runbox/httpserver"
	"github.com/isdmx/runbox/logger"
	"github.com/isdmx/runbox/mcpserver"
	"github.com/isdmx/runbox/metrics"
	"github.com/isdmx/runbox/sandbox"
)

func main() {
	// Worker mode: the pool re-executes this binary with a single "worker"
	// argument. Branch before fx so workers never touch transports.
	if len(os.Args) > 1 && os.Args[1] == sandbox.WorkerArg {
		runWorker()
		return
	}

	app := fx.New(
		// Provide dependencies
		fx.Provide(
			config.New,
			logger.NewFromConfig,
			metrics.New,
			sandbox.NewPool,
			fx.Annotate(sandbox.NewCoordinator, fx.As(new(sandbox.Executor))),
			httpserver.New,
			mcpserver.New,
		),

		// Start the appropriate transport based on config
		fx.Invoke(
			func(lc fx.Lifecycle, cfg *config.Config, hs *httpserver.Server, ms *mcpserver.MCPServer, pool *sandbox.Pool) {
				switch cfg.Server.Transport {
				case config.TransportHTTP:
					lc.Append(fx.Hook{
						OnStart: func(context.Context) error {
							go func() {
								if err := hs.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
									panic(err)
								}
							}()
							return nil
						},
						OnStop: hs.Shutdown,
					})
				case config.TransportMCPStdio:
					go func() {
						if err := ms.ServeStdio(); err != nil {
							panic(err)
						}
					}()
				case config.TransportMCPHTTP:
					go func() {
						if err := ms.ServeHTTP(); err != nil {
							panic(err)
						}
					}()
				default:
					panic("unsupported transport: " + cfg.Server.Transport)
				}

				lc.Append(fx.Hook{
					OnStop: func(context.Context) error {
						pool.Close()
						return nil
					},
				})
			},
		),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	app.Run()
}

// runWorker runs the worker process loop until the parent closes stdin.
func runWorker() {
	mode := os.Getenv("LOG_MODE")
	if mode == "" {
		mode = "production"
	}
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}

	log, err := logger.New(mode, level)
	if err != nil {
		os.Stderr.WriteString("worker logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	if err := sandbox.RunWorker(log.Named("worker")); err != nil {
		log.Error("worker terminated", zap.Error(err))
		os.Exit(1)
	}
}
