// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/domainhive/domainhive/internal/auth"
	"github.com/domainhive/domainhive/internal/auth/postgres"
	"github.com/domainhive/domainhive/internal/config"
	authgrpc "github.com/domainhive/domainhive/internal/grpc"
	"github.com/domainhive/domainhive/internal/logging"
	"github.com/domainhive/domainhive/internal/observability"
	"github.com/domainhive/domainhive/internal/registry"
	"github.com/domainhive/domainhive/internal/rest"
	"github.com/domainhive/domainhive/internal/store"
	"github.com/domainhive/domainhive/internal/tls"
)

const (
	serviceName     = "domainhive"
	shutdownTimeout = 10 * time.Second
)

// Module names inside the hive.
const (
	moduleAuth    = "auth"
	moduleMetrics = "metrics"
	moduleHTTP    = "http"
	moduleGRPC    = "grpc"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the auth service",
		Long: `Run the auth module behind its HTTP and gRPC transports, with
Prometheus metrics and health probes on a separate listener.

Settings come from built-in defaults, the config file, the environment
(DOMAINHIVE_AUTH_SECRET_KEY, DATABASE_URL) and flags, later sources winning.`,
		RunE: runServe,
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return oops.Code(config.CodeInvalid).Wrap(err)
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.SetDefault(serviceName, version, cfg.Log.Format, logging.WithLevel(level))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		a.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	for name, errCh := range a.errorChannels() {
		go monitorServerErrors(ctx, cancel, errCh, name, logger)
	}

	cmd.Println("DomainHive started")
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer shutdownCancel()
	if err := a.Stop(shutdownCtx); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// app is a fully wired service: the auth module plus the transports that
// expose it, held in a registry hive that owns their lifecycle.
type app struct {
	logger  *slog.Logger
	module  *auth.Module
	hive    *registry.Hive
	metrics *metricsServer
	http    *rest.Server
	grpc    *authgrpc.Server
	ready   atomic.Bool
	closers []func()
}

// newApp builds the service described by cfg without starting any listener.
func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{logger: logger, hive: registry.New(nil, registry.WithLogger(logger))}

	userStore, err := a.openStore(ctx, cfg.Database)
	if err != nil {
		a.Close()
		return nil, err
	}

	module, err := auth.NewModule(cfg.Auth.ModuleConfig(), auth.WithStore(userStore), auth.WithLogger(logger))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.module = module
	a.closers = append(a.closers, module.Close)
	if err := a.hive.Register(moduleAuth, module); err != nil {
		a.Close()
		return nil, err
	}

	if err := a.wireTransports(cfg); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// openStore picks the user store. An empty database URL keeps users in memory.
func (a *app) openStore(ctx context.Context, db config.DatabaseConfig) (auth.Store, error) {
	if db.URL == "" {
		a.logger.Warn("no database configured, users are kept in memory")
		return auth.NewMemoryStore(), nil
	}

	if db.AutoMigrate {
		if err := migrateUp(db.URL); err != nil {
			return nil, err
		}
	}

	pool, err := store.Connect(ctx, db.URL, store.ConnectOptions{MaxRetries: db.ConnectRetries, Logger: a.logger})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pool.Close)
	a.logger.Info("connected to database")
	return postgres.NewUserStore(pool), nil
}

func (a *app) wireTransports(cfg config.Config) error {
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obs := observability.NewServer(cfg.Metrics.Addr, a.ready.Load, a.logger)
		if err := obs.RegisterGauge("domainhive_active_tokens", "Tokens issued and not yet logged out or expired.", func() float64 {
			return float64(a.module.ActiveTokens())
		}); err != nil {
			return err
		}
		metrics = obs.Metrics()
		a.metrics = &metricsServer{Server: obs, events: a.module}
		if err := a.hive.Register(moduleMetrics, a.metrics); err != nil {
			return err
		}
	}

	if cfg.HTTP.Addr != "" {
		h := rest.NewHandler(a.module, rest.WithLogger(a.logger), rest.WithMetrics(metrics))
		a.http = rest.NewServer(cfg.HTTP.Addr, h)
		if err := a.hive.Register(moduleHTTP, a.http); err != nil {
			return err
		}
	}

	if cfg.GRPC.Addr != "" {
		opts := authgrpc.ServerOptions{Metrics: metrics}
		if cfg.GRPC.TLS {
			tlsConfig, err := tls.LoadServerTLS(cfg.GRPC.CertsDir, cfg.GRPC.CertName)
			if err != nil {
				return err
			}
			opts.TLSConfig = tlsConfig
		}
		a.grpc = authgrpc.NewServer(a.module, a.logger, opts).Listen(cfg.GRPC.Addr)
		if err := a.hive.Register(moduleGRPC, a.grpc); err != nil {
			return err
		}
	}
	return nil
}

// Start starts every listener in registration order and marks the service ready.
func (a *app) Start(ctx context.Context) error {
	if err := a.hive.Start(ctx); err != nil {
		return err
	}
	a.ready.Store(true)
	a.logger.Info("domainhive ready", "modules", a.hive.Names())
	return nil
}

// Stop stops the listeners in reverse order, then releases the module and store.
func (a *app) Stop(ctx context.Context) error {
	a.ready.Store(false)
	err := a.hive.Stop(ctx)
	a.Close()
	return err
}

// Close releases resources acquired by newApp, most recent first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) errorChannels() map[string]<-chan error {
	chans := make(map[string]<-chan error)
	if a.metrics != nil && a.metrics.errCh != nil {
		chans[moduleMetrics] = a.metrics.errCh
	}
	if a.http != nil && a.http.Errors() != nil {
		chans[moduleHTTP] = a.http.Errors()
	}
	if a.grpc != nil && a.grpc.Errors() != nil {
		chans[moduleGRPC] = a.grpc.Errors()
	}
	return chans
}

// eventSource is the part of auth.Module the metrics server consumes.
type eventSource interface {
	Subscribe() <-chan auth.Event
	Unsubscribe(ch <-chan auth.Event)
}

// metricsServer adapts observability.Server to the hive lifecycle and
// counts auth events while it runs.
type metricsServer struct {
	*observability.Server
	events eventSource
	errCh  <-chan error
	cancel context.CancelFunc
	done   chan struct{}
}

// Start binds the metrics listener and starts counting auth events.
func (m *metricsServer) Start(ctx context.Context) error {
	errCh, err := m.Server.Start()
	if err != nil {
		return err
	}
	m.errCh = errCh

	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel
	m.done = make(chan struct{})
	ch := m.events.Subscribe()
	go func() {
		defer close(m.done)
		defer m.events.Unsubscribe(ch)
		m.Metrics().Watch(watchCtx, ch)
	}()
	return nil
}

// Stop stops counting events and shuts the listener down.
func (m *metricsServer) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
		<-m.done
		m.cancel = nil
	}
	return m.Server.Stop(ctx)
}

// monitorServerErrors cancels ctx when a server reports an error after start.
// It exits when an error arrives, the channel closes or ctx ends.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, name string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown", "server", name, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
