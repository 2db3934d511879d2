// Command kette runs a demo kette application over HTTP.
//
// Configuration is read from a YAML file and KETTE_* environment variables
// (see pkg/config). A .env file in the working directory is loaded first
// when present.
//
//	KETTE_CONFIG    - Path to the config file
//	KETTE_PORT      - Listen port (default: 8080)
//	KETTE_AUTH_TYPE - "none", "apikey" or "jwt" (default: "none")
//	KETTE_LOG_LEVEL - ERROR, WARN, INFO, DEBUG, TRACE (default: INFO)
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/rhuss/kette/pkg/app"
	"github.com/rhuss/kette/pkg/config"
	"github.com/rhuss/kette/pkg/debug"
	"github.com/rhuss/kette/pkg/observability"
	transporthttp "github.com/rhuss/kette/pkg/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := config.Load("")
	if err != nil {
		return err
	}

	logger := debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)

	if cfg.Observability.Tracing.Enabled {
		shutdown, err := observability.InitTracer(cfg.Observability.Tracing.ServiceName, nil, logger)
		if err != nil {
			return fmt.Errorf("initializing tracing: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(ctx)
		}()
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	p, err := a.Build()
	if err != nil {
		return err
	}

	opts := []transporthttp.ServerOption{
		transporthttp.WithAddr(cfg.Server.Addr()),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithReadTimeout(cfg.Server.ReadTimeout),
		transporthttp.WithWriteTimeout(cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithLogger(logger),
		transporthttp.WithBeforeStart(a.Hooks(app.BeforeStart)...),
		transporthttp.WithAfterStart(a.Hooks(app.AfterStart)...),
	}
	if cfg.Observability.Metrics.Enabled {
		opts = append(opts, transporthttp.WithMetrics(cfg.Observability.Metrics.Path))
	}

	return transporthttp.NewServer(p, opts...).ListenAndServe()
}
