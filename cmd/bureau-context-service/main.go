// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"
	"google.golang.org/grpc"

	"github.com/bureau-foundation/wscontext/lib/auth"
	"github.com/bureau-foundation/wscontext/lib/clock"
	"github.com/bureau-foundation/wscontext/lib/config"
	"github.com/bureau-foundation/wscontext/lib/contextapi"
	"github.com/bureau-foundation/wscontext/lib/process"
	"github.com/bureau-foundation/wscontext/lib/provision"
	"github.com/bureau-foundation/wscontext/lib/sealed"
	"github.com/bureau-foundation/wscontext/lib/secret"
	"github.com/bureau-foundation/wscontext/lib/service"
	"github.com/bureau-foundation/wscontext/lib/userstore"
	"github.com/bureau-foundation/wscontext/lib/version"
	"github.com/bureau-foundation/wscontext/lib/workspaceclient"
)

func main() {
	process.Main(run)
}

func run(ctx context.Context) error {
	var configPath string
	var showVersion bool

	flagSet := pflag.NewFlagSet("bureau-context-service", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the YAML config file (default: $"+config.EnvironmentVariable+" or "+config.DefaultPath+")")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		version.Print("bureau-context-service")
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	return serve(ctx, cfg, clock.Real(), logger)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// serve wires the service from cfg and runs it until ctx is cancelled.
// Failing to open the store, read the sealing key, or bind the listener
// ends the process.
func serve(ctx context.Context, cfg *config.Config, clk clock.Clock, logger *slog.Logger) error {
	opener, err := loadOpener(cfg.Store.SealingKeyPath)
	if err != nil {
		return err
	}

	store, err := userstore.Open(userstore.Config{
		Path:     cfg.Store.Path,
		PoolSize: cfg.Store.PoolSize,
		Opener:   opener,
		Clock:    clk,
		Logger:   logger.With("component", "userstore"),
	})
	if err != nil {
		return err
	}
	defer store.Close()

	collaborators, err := dialCollaborators(cfg.Collaborators)
	if err != nil {
		return err
	}

	orchestrator, err := provision.NewOrchestrator(provision.Config{
		ContextResolver:  collaborators.resolver,
		WorkspaceFactory: collaborators.factory,
		InstanceStarter:  collaborators.starter,
		EnvVars:          store,
		Clock:            clk,
		Logger:           logger.With("component", "provision"),
	})
	if err != nil {
		return err
	}

	contextService := newContextService(
		auth.NewResolver(store, logger.With("component", "auth")),
		orchestrator,
		logger,
	)

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(clk, logger)))
	contextapi.RegisterWorkspaceContextServer(grpcServer, contextService)

	rpcServer := service.NewRPCServer(service.RPCServerConfig{
		Address:         cfg.Server.Address,
		Server:          grpcServer,
		Services:        []string{contextapi.ServiceName},
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Logger:          logger,
	})

	logger.Info("context service starting",
		"version", version.Info(),
		"environment", string(cfg.Environment),
		"address", cfg.Server.Address,
		"store", cfg.Store.Path,
	)
	return rpcServer.Serve(ctx)
}

// loadOpener reads the sealing identity. The key buffer is released as
// soon as the opener has parsed it.
func loadOpener(path string) (*sealed.Opener, error) {
	key, err := secret.ReadFromPath(path)
	if err != nil {
		return nil, fmt.Errorf("reading sealing key: %w", err)
	}
	defer key.Close()

	return sealed.NewOpener(key)
}

type collaboratorClients struct {
	resolver *workspaceclient.ContextResolver
	factory  *workspaceclient.WorkspaceFactory
	starter  *workspaceclient.InstanceStarter
}

func dialCollaborators(cfg config.CollaboratorsConfig) (*collaboratorClients, error) {
	resolverTransport, err := newTransport(cfg.ContextResolver, cfg.TokenPath)
	if err != nil {
		return nil, err
	}
	factoryTransport, err := newTransport(cfg.WorkspaceFactory, cfg.TokenPath)
	if err != nil {
		return nil, err
	}
	starterTransport, err := newTransport(cfg.InstanceStarter, cfg.TokenPath)
	if err != nil {
		return nil, err
	}

	return &collaboratorClients{
		resolver: workspaceclient.NewContextResolver(resolverTransport, cfg.CallTimeout),
		factory:  workspaceclient.NewWorkspaceFactory(factoryTransport, cfg.CallTimeout),
		starter:  workspaceclient.NewInstanceStarter(starterTransport, cfg.CallTimeout),
	}, nil
}

// newTransport returns a socket client for socketPath that presents the
// token at tokenPath, or no token when tokenPath is empty.
func newTransport(socketPath, tokenPath string) (*service.ServiceClient, error) {
	if tokenPath == "" {
		return service.NewServiceClientFromToken(socketPath, nil), nil
	}
	return service.NewServiceClient(socketPath, tokenPath)
}
