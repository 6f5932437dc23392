// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

// Package grpc exposes the auth module over gRPC with bearer-token
// interceptors and the standard health service.
package grpc

import (
	"context"
	cryptotls "crypto/tls"
	"errors"
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/samber/oops"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/domainhive/domainhive/internal/auth"
	"github.com/domainhive/domainhive/internal/observability"
)

// ServerOptions tunes NewServer.
type ServerOptions struct {
	// TLSConfig enables TLS when set.
	TLSConfig *cryptotls.Config
	// Metrics counts unary calls when set.
	Metrics *observability.Metrics
	// Extra are appended to the generated server options.
	Extra []grpc.ServerOption
}

// Server owns a grpc.Server running the auth and health services.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	logger     *slog.Logger
	addr       string
	listener   net.Listener
	running    atomic.Bool
	errCh      chan error
}

// NewServer builds a server for module with both auth interceptors installed.
func NewServer(module *auth.Module, logger *slog.Logger, opts ServerOptions) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	unary := []grpc.UnaryServerInterceptor{UnaryAuthInterceptor(module)}
	if opts.Metrics != nil {
		unary = append([]grpc.UnaryServerInterceptor{UnaryMetricsInterceptor(opts.Metrics)}, unary...)
	}
	serverOpts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(StreamAuthInterceptor(module)),
	}
	if opts.TLSConfig != nil {
		serverOpts = append(serverOpts, grpc.Creds(credentials.NewTLS(opts.TLSConfig)))
	}
	serverOpts = append(serverOpts, opts.Extra...)

	gs := grpc.NewServer(serverOpts...)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	RegisterAuthServer(gs, NewAuthService(module, logger))
	hs.SetServingStatus(AuthServiceName, healthpb.HealthCheckResponse_SERVING)

	return &Server{grpcServer: gs, health: hs, logger: logger}
}

// GRPCServer returns the underlying server.
func (s *Server) GRPCServer() *grpc.Server {
	return s.grpcServer
}

// Serve accepts connections on lis until the server stops.
func (s *Server) Serve(lis net.Listener) error {
	if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return oops.With("operation", "serve_grpc").Wrap(err)
	}
	return nil
}

// Listen sets the address Start binds to.
func (s *Server) Listen(addr string) *Server {
	s.addr = addr
	return s
}

// Start binds the configured address and serves in the background.
func (s *Server) Start(_ context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return oops.Errorf("grpc server already running")
	}
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = lis
	s.errCh = make(chan error, 1)

	errCh := s.errCh
	go func() {
		defer close(errCh)
		if serveErr := s.Serve(lis); serveErr != nil {
			s.logger.Error("grpc server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("grpc server started", "addr", lis.Addr().String())
	return nil
}

// Errors reports failures that happen after Start returned.
func (s *Server) Errors() <-chan error {
	return s.errCh
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// Stop marks the services not serving and drains in-flight calls. If ctx
// ends first, remaining calls are cut off.
func (s *Server) Stop(ctx context.Context) error {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.grpcServer.Stop()
		<-done
	}
	if s.running.CompareAndSwap(true, false) {
		s.logger.Info("grpc server stopped")
	}
	return nil
}
