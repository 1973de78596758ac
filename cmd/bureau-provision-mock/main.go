// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Bureau-provision-mock stands in for the three provisioning
// collaborators of the context service during local development and
// integration tests. It serves the collaborator socket protocol on
// three sockets and keeps everything in memory:
//
//   - context resolver: resolve-context, for https://host/owner/name
//     repository URLs (optionally /tree/<ref>)
//   - workspace factory: create-workspace
//   - instance starter: start-instance and build-spec, applying each
//     stored environment variable whose repository pattern matches
//
// Point the context service's collaborators section at the same three
// socket paths. With --token-path, every socket refuses requests that
// do not present the token in that file; give the context service the
// same file as collaborators.token_path.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/wscontext/lib/clock"
	"github.com/bureau-foundation/wscontext/lib/process"
	"github.com/bureau-foundation/wscontext/lib/service"
	"github.com/bureau-foundation/wscontext/lib/version"
)

func main() {
	process.Main(run)
}

func run(ctx context.Context) error {
	var (
		resolverSocket string
		factorySocket  string
		starterSocket  string
		workspaceImage string
		ideImage       string
		tokenPath      string
		debug          bool
		showVersion    bool
	)

	flagSet := pflag.NewFlagSet("bureau-provision-mock", pflag.ContinueOnError)
	flagSet.StringVar(&resolverSocket, "context-resolver", "/run/bureau/context-resolver.sock", "socket path for the context resolver")
	flagSet.StringVar(&factorySocket, "workspace-factory", "/run/bureau/workspace-factory.sock", "socket path for the workspace factory")
	flagSet.StringVar(&starterSocket, "instance-starter", "/run/bureau/instance-starter.sock", "socket path for the instance starter")
	flagSet.StringVar(&workspaceImage, "workspace-image", "registry.bureau.local/workspace-full:latest", "workspace image written into start specs")
	flagSet.StringVar(&ideImage, "ide-image", "registry.bureau.local/ide/web:latest", "web IDE image written into start specs")
	flagSet.StringVar(&tokenPath, "token-path", "", "file holding the token callers must present (empty accepts any caller)")
	flagSet.BoolVar(&debug, "debug", false, "log at debug level")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		version.Print("bureau-provision-mock")
		return nil
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	token, err := loadToken(tokenPath)
	if err != nil {
		return err
	}

	mock := newProvisionMock(clock.Real(), workspaceImage, ideImage)

	resolver := service.NewSocketServer(resolverSocket, logger.With("collaborator", "context-resolver"))
	mock.registerResolver(resolver)
	factory := service.NewSocketServer(factorySocket, logger.With("collaborator", "workspace-factory"))
	mock.registerFactory(factory)
	starter := service.NewSocketServer(starterSocket, logger.With("collaborator", "instance-starter"))
	mock.registerStarter(starter)

	logger.Info("provision mock running",
		"context_resolver", resolverSocket,
		"workspace_factory", factorySocket,
		"instance_starter", starterSocket,
	)

	if token != nil {
		for _, server := range []*service.SocketServer{resolver, factory, starter} {
			server.RequireToken(token)
		}
	}

	// One server failing to listen takes the others down with it.
	group, groupCtx := errgroup.WithContext(ctx)
	for _, server := range []*service.SocketServer{resolver, factory, starter} {
		group.Go(func() error { return server.Serve(groupCtx) })
	}
	err = group.Wait()
	logger.Info("provision mock stopped")
	return err
}

// loadToken reads the caller token byte for byte, the way
// service.NewServiceClient reads it on the other side. An empty path
// disables the check.
func loadToken(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	token, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading caller token: %w", err)
	}
	if len(token) == 0 {
		return nil, fmt.Errorf("caller token file %s is empty", path)
	}
	return token, nil
}
