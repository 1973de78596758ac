// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/bureau-foundation/wscontext/lib/auth"
	"github.com/bureau-foundation/wscontext/lib/contextapi"
	"github.com/bureau-foundation/wscontext/lib/provision"
	"github.com/bureau-foundation/wscontext/lib/schema/telemetry"
)

// identityResolver is satisfied by *auth.Resolver.
type identityResolver interface {
	Resolve(ctx context.Context, header auth.Header) (auth.Identity, error)
}

// provisioner is satisfied by *provision.Orchestrator.
type provisioner interface {
	Provision(ctx context.Context, user auth.Identity, contextURL string) (*provision.Result, error)
}

// ContextService adapts the resolver and orchestrator to the gRPC
// surface. It owns the mapping from internal failures to status codes:
// an unidentified caller is Unauthenticated, anything the orchestrator
// reports is Internal. Neither carries collaborator detail back to the
// caller; the trace ID in the Internal message joins it to the logs.
type ContextService struct {
	resolver    identityResolver
	provisioner provisioner
	logger      *slog.Logger
}

var _ contextapi.WorkspaceContextServer = (*ContextService)(nil)

func newContextService(resolver identityResolver, provisioner provisioner, logger *slog.Logger) *ContextService {
	return &ContextService{
		resolver:    resolver,
		provisioner: provisioner,
		logger:      logger,
	}
}

// GetWorkspaceContext authenticates the caller and provisions a
// workspace for the requested context URL.
func (s *ContextService) GetWorkspaceContext(ctx context.Context, request *contextapi.GetWorkspaceContextRequest) (*contextapi.GetWorkspaceContextResponse, error) {
	trace, ok := telemetry.TraceFromContext(ctx)
	if !ok {
		trace = telemetry.NewTrace()
		ctx = telemetry.WithTrace(ctx, trace)
	}

	incoming, _ := metadata.FromIncomingContext(ctx)
	identity, err := s.resolver.Resolve(ctx, auth.Header(incoming))
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "unauthenticated")
	}

	result, err := s.provisioner.Provision(ctx, identity, request.ContextURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, status.FromContextError(ctxErr).Err()
		}
		s.logger.ErrorContext(ctx, "get workspace context failed",
			"user", identity.UserID,
			"trace_id", trace.TraceID.String(),
			"error", err,
		)
		return nil, status.Errorf(codes.Internal, "workspace provisioning failed (trace %s)", trace.TraceID)
	}

	return contextapi.NewResponse(result.Workspace, result.Instance, result.Spec), nil
}
