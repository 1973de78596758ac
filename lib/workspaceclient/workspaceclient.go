// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package workspaceclient implements the provisioning collaborators
// (lib/provision's ContextResolver, WorkspaceFactory, InstanceStarter)
// as clients of Bureau services reached over the CBOR socket protocol.
//
// Each collaborator lives behind its own socket. Every call is bounded
// by the client's call timeout (or an earlier ctx deadline) and
// carries the trace from ctx, so the collaborator's logs line up with
// the context service's.
//
// Actions and their request fields:
//
//	resolve-context   user_id, context_url               -> workspace.Context
//	create-workspace  user_id, context_url, context       -> workspace.Workspace
//	start-instance    user_id, workspace                  -> workspace.Instance
//	build-spec        workspace, instance, env_vars       -> workspace.StartSpec
package workspaceclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bureau-foundation/wscontext/lib/auth"
	"github.com/bureau-foundation/wscontext/lib/schema/workspace"
	"github.com/bureau-foundation/wscontext/lib/service"
)

// Action names understood by the collaborator services.
const (
	ActionResolveContext  = "resolve-context"
	ActionCreateWorkspace = "create-workspace"
	ActionStartInstance   = "start-instance"
	ActionBuildSpec       = "build-spec"
)

// DefaultCallTimeout applies when a client is constructed with a zero
// timeout.
const DefaultCallTimeout = 30 * time.Second

// Caller is the transport used by the clients. *service.ServiceClient
// implements it.
type Caller interface {
	Call(ctx context.Context, action string, fields map[string]any, result any) error
}

var _ Caller = (*service.ServiceClient)(nil)

type caller struct {
	transport Caller
	timeout   time.Duration
}

func newCaller(transport Caller, timeout time.Duration) caller {
	if transport == nil {
		panic("workspaceclient: transport is required")
	}
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return caller{transport: transport, timeout: timeout}
}

func (c caller) call(ctx context.Context, action string, fields map[string]any, result any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.transport.Call(ctx, action, fields, result); err != nil {
		return fmt.Errorf("workspaceclient: %s: %w", action, err)
	}
	return nil
}

// ContextResolver normalizes context URLs locally and resolves them
// through the context resolution service.
type ContextResolver struct {
	caller
}

// NewContextResolver creates a resolver calling through transport.
func NewContextResolver(transport Caller, timeout time.Duration) *ContextResolver {
	return &ContextResolver{caller: newCaller(transport, timeout)}
}

// Normalize trims surrounding whitespace and the leading "#" that
// dashboard links put in front of a context URL.
func (r *ContextResolver) Normalize(contextURL string) string {
	normalized := strings.TrimSpace(contextURL)
	normalized = strings.TrimPrefix(normalized, "#")
	return strings.TrimSpace(normalized)
}

// ResolveContext asks the resolution service to resolve normalizedURL
// for user.
func (r *ContextResolver) ResolveContext(ctx context.Context, user auth.Identity, normalizedURL string) (*workspace.Context, error) {
	var resolved workspace.Context
	err := r.call(ctx, ActionResolveContext, map[string]any{
		"user_id":     user.UserID,
		"context_url": normalizedURL,
	}, &resolved)
	if err != nil {
		return nil, err
	}
	if resolved.NormalizedURL == "" {
		resolved.NormalizedURL = normalizedURL
	}
	return &resolved, nil
}

// WorkspaceFactory creates workspace records through the workspace
// service.
type WorkspaceFactory struct {
	caller
}

// NewWorkspaceFactory creates a factory calling through transport.
func NewWorkspaceFactory(transport Caller, timeout time.Duration) *WorkspaceFactory {
	return &WorkspaceFactory{caller: newCaller(transport, timeout)}
}

// CreateWorkspace creates a workspace owned by user for the resolved
// context.
func (f *WorkspaceFactory) CreateWorkspace(ctx context.Context, user auth.Identity, resolved *workspace.Context, normalizedURL string) (*workspace.Workspace, error) {
	var record workspace.Workspace
	err := f.call(ctx, ActionCreateWorkspace, map[string]any{
		"user_id":     user.UserID,
		"context_url": normalizedURL,
		"context":     resolved,
	}, &record)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// InstanceStarter allocates instances and builds their start
// specifications through the instance service.
type InstanceStarter struct {
	caller
}

// NewInstanceStarter creates a starter calling through transport.
func NewInstanceStarter(transport Caller, timeout time.Duration) *InstanceStarter {
	return &InstanceStarter{caller: newCaller(transport, timeout)}
}

// StartInstance allocates a new instance of record.
func (s *InstanceStarter) StartInstance(ctx context.Context, user auth.Identity, record *workspace.Workspace) (*workspace.Instance, error) {
	var instance workspace.Instance
	err := s.call(ctx, ActionStartInstance, map[string]any{
		"user_id":   user.UserID,
		"workspace": record,
	}, &instance)
	if err != nil {
		return nil, err
	}
	return &instance, nil
}

// BuildSpec assembles the start specification for instance. envVars
// are the owner's stored variables; the service decides which apply.
func (s *InstanceStarter) BuildSpec(ctx context.Context, record *workspace.Workspace, instance *workspace.Instance, envVars []workspace.UserEnvVar) (*workspace.StartSpec, error) {
	var spec workspace.StartSpec
	err := s.call(ctx, ActionBuildSpec, map[string]any{
		"workspace": record,
		"instance":  instance,
		"env_vars":  envVars,
	}, &spec)
	if err != nil {
		return nil, err
	}
	return &spec, nil
}
