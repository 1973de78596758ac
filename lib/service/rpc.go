// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// RPCServer serves a grpc.Server on a TCP listener and reports its
// state through the standard gRPC health service.
//
// Same lifecycle as SocketServer: Serve(ctx) blocks until ctx is
// cancelled and in-flight calls drain. Health reports NOT_SERVING
// until the listener is bound, SERVING while accepting calls, and
// NOT_SERVING again once shutdown begins.
type RPCServer struct {
	address  string
	server   *grpc.Server
	health   *health.Server
	services []string
	logger   *slog.Logger

	// shutdownTimeout bounds GracefulStop. Calls still running after
	// it are cut off with Stop.
	shutdownTimeout time.Duration

	ready chan struct{}
	addr  net.Addr
}

// RPCServerConfig configures an RPCServer.
type RPCServerConfig struct {
	// Address is the TCP listen address (e.g., ":9001",
	// "127.0.0.1:0"). Required.
	Address string

	// Server carries the application's registered services and
	// interceptors. Required. The health service is registered on it
	// by NewRPCServer, so it must not have been started.
	Server *grpc.Server

	// Services are the fully qualified service names whose health
	// status follows the server's lifecycle. The overall status ("")
	// is always reported.
	Services []string

	// ShutdownTimeout defaults to 10 seconds if zero.
	ShutdownTimeout time.Duration

	// Logger is required.
	Logger *slog.Logger
}

// NewRPCServer registers the health service on config.Server and
// returns a server ready to Serve.
func NewRPCServer(config RPCServerConfig) *RPCServer {
	if config.Address == "" {
		panic("service.RPCServer: Address is required")
	}
	if config.Server == nil {
		panic("service.RPCServer: Server is required")
	}
	if config.Logger == nil {
		panic("service.RPCServer: Logger is required")
	}

	timeout := config.ShutdownTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	healthServer := health.NewServer()
	services := append([]string{""}, config.Services...)
	for _, name := range services {
		healthServer.SetServingStatus(name, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	healthpb.RegisterHealthServer(config.Server, healthServer)

	return &RPCServer{
		address:         config.Address,
		server:          config.Server,
		health:          healthServer,
		services:        services,
		logger:          config.Logger,
		shutdownTimeout: timeout,
		ready:           make(chan struct{}),
	}
}

// Ready is closed once the listener is bound and health reports
// SERVING.
func (s *RPCServer) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address. Valid after Ready is closed; useful
// when Address uses port 0.
func (s *RPCServer) Addr() net.Addr {
	return s.addr
}

// Serve binds the listener and serves until ctx is cancelled. A bind
// failure is returned immediately, before Ready closes.
func (s *RPCServer) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.address, err)
	}
	s.addr = listener.Addr()

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- s.server.Serve(listener)
	}()

	s.setStatus(healthpb.HealthCheckResponse_SERVING)
	s.logger.Info("rpc server listening", "address", s.addr.String())
	close(s.ready)

	select {
	case <-ctx.Done():
		s.logger.Info("rpc server shutting down")
	case err := <-serveDone:
		s.health.Shutdown()
		if err != nil {
			return fmt.Errorf("rpc server: %w", err)
		}
		return nil
	}

	// Shutdown sets every status to NOT_SERVING and keeps it there.
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	timer := time.NewTimer(s.shutdownTimeout)
	defer timer.Stop()
	select {
	case <-stopped:
	case <-timer.C:
		s.logger.Warn("rpc server graceful stop timed out, closing active calls",
			"timeout", s.shutdownTimeout,
		)
		s.server.Stop()
		<-stopped
	}

	if err := <-serveDone; err != nil {
		return fmt.Errorf("rpc server: %w", err)
	}
	s.logger.Info("rpc server stopped")
	return nil
}

func (s *RPCServer) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	for _, name := range s.services {
		s.health.SetServingStatus(name, status)
	}
}
