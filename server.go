package strata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Jack4Code/strata/config"
	"github.com/prometheus/client_golang/prometheus"
)

// RunOption configures Run and Serve.
type RunOption func(*runOptions)

type runOptions struct {
	onStart         func(ctx context.Context) error
	onStop          func(ctx context.Context) error
	gatherer        prometheus.Gatherer
	shutdownTimeout time.Duration
}

// OnStart runs fn after the health server is up and before the application
// starts accepting traffic. An error aborts startup.
func OnStart(fn func(ctx context.Context) error) RunOption {
	return func(o *runOptions) {
		o.onStart = fn
	}
}

// OnStop runs fn after both servers have shut down.
func OnStop(fn func(ctx context.Context) error) RunOption {
	return func(o *runOptions) {
		o.onStop = fn
	}
}

// WithGatherer sets the registry exposed on /metrics. Defaults to
// prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) RunOption {
	return func(o *runOptions) {
		o.gatherer = g
	}
}

// WithShutdownTimeout bounds graceful shutdown. Defaults to 30s.
func WithShutdownTimeout(d time.Duration) RunOption {
	return func(o *runOptions) {
		o.shutdownTimeout = d
	}
}

// Run serves app until SIGINT or SIGTERM.
//
// Example:
//
//	app := strata.New(strata.WithConfig(cfg.Strata))
//	app.Use(strata.RequestID())
//	if err := strata.Run(app, cfg.Strata); err != nil {
//	    log.Fatal(err)
//	}
func Run(app *Application, cfg config.BaseConfig, opts ...RunOption) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return Serve(ctx, app, cfg, opts...)
}

// Serve runs the lifecycle until ctx is done or the main server fails:
// the ops server (health, readiness and metrics) starts first so orchestrators
// can see the process is alive, then OnStart, then the application server.
// Metrics move to their own server when MetricsPort differs from HealthPort.
// Shutdown marks the process not ready, drains the servers and calls OnStop.
func Serve(ctx context.Context, app *Application, cfg config.BaseConfig, opts ...RunOption) error {
	o := runOptions{
		gatherer:        prometheus.DefaultGatherer,
		shutdownTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	logger := app.Logger()

	status := NewHealthStatus()
	healthPort := cfg.GetHealthPort()

	// Metrics get their own server only when a distinct port is configured.
	gatherer := o.gatherer
	var aux []*http.Server
	if metricsPort := cfg.GetMetricsPort(); metricsPort != 0 && metricsPort != healthPort {
		aux = append(aux, startAuxServer("metrics", metricsPort, MetricsRouter(gatherer), logger))
		gatherer = nil
	}
	aux = append(aux, startAuxServer("ops", healthPort, OpsRouter(status, gatherer), logger))

	if o.onStart != nil {
		if err := o.onStart(ctx); err != nil {
			for _, srv := range aux {
				shutdownServer(srv, o.shutdownTimeout)
			}
			return fmt.Errorf("failed to start app: %w", err)
		}
	}
	status.SetHealthy(true)

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.GetHTTPPort()),
		Handler:           app,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	status.SetReady(true)

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		logger.Error("server error", "error", serveErr)
	}

	logger.Info("shutting down servers")
	status.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), o.shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("main server forced to shutdown", "error", err)
	}
	for _, srv := range aux {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("ops server forced to shutdown", "addr", srv.Addr, "error", err)
		}
	}

	if o.onStop != nil {
		if err := o.onStop(shutdownCtx); err != nil {
			logger.Error("error during OnStop", "error", err)
		}
	}

	logger.Info("servers stopped")
	return serveErr
}

func shutdownServer(srv *http.Server, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
