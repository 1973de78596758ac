// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package provision sequences the collaborator calls that turn a raw
// context URL into a started workspace instance and its start
// specification.
//
// The [Orchestrator] runs six steps in a fixed order, each consuming
// the previous step's output:
//
//  1. normalize the context URL (local, pure)
//  2. resolve it into a workspace.Context
//  3. create the workspace record
//  4. allocate an instance for it
//  5. fetch the caller's stored environment variables
//  6. build the internal start specification
//
// There is no fan-out: every step depends on the one before it. The
// first failure aborts the sequence and is returned as a [*StepError]
// matching [ErrUpstream]; nothing created by earlier steps is returned
// to the caller. Rolling back records created before the failure is
// the owning collaborator's responsibility. Nothing is retried.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/wscontext/lib/auth"
	"github.com/bureau-foundation/wscontext/lib/clock"
	"github.com/bureau-foundation/wscontext/lib/schema/workspace"
)

// ContextResolver normalizes and resolves context URLs.
type ContextResolver interface {
	// Normalize cleans a caller-supplied context URL. Local and pure.
	Normalize(contextURL string) string

	// ResolveContext turns a normalized URL into a resolved context
	// on behalf of user.
	ResolveContext(ctx context.Context, user auth.Identity, normalizedURL string) (*workspace.Context, error)
}

// WorkspaceFactory creates workspace records.
type WorkspaceFactory interface {
	CreateWorkspace(ctx context.Context, user auth.Identity, resolved *workspace.Context, normalizedURL string) (*workspace.Workspace, error)
}

// InstanceStarter allocates instances and assembles their start
// specifications.
type InstanceStarter interface {
	StartInstance(ctx context.Context, user auth.Identity, record *workspace.Workspace) (*workspace.Instance, error)
	BuildSpec(ctx context.Context, record *workspace.Workspace, instance *workspace.Instance, envVars []workspace.UserEnvVar) (*workspace.StartSpec, error)
}

// EnvVarSource returns the environment variables stored for a user.
type EnvVarSource interface {
	EnvVars(ctx context.Context, user auth.Identity) ([]workspace.UserEnvVar, error)
}

// Step names one stage of the sequence. Used in errors and logs.
type Step string

const (
	StepResolveContext  Step = "resolve-context"
	StepCreateWorkspace Step = "create-workspace"
	StepStartInstance   Step = "start-instance"
	StepFetchEnvVars    Step = "fetch-env-vars"
	StepBuildSpec       Step = "build-spec"
)

// ErrUpstream matches every error returned by Provision.
var ErrUpstream = errors.New("provision: upstream collaborator failed")

// errEmptyResult is the cause recorded when a collaborator reports
// success but returns nothing.
var errEmptyResult = errors.New("collaborator returned no result")

// StepError reports which step failed. It matches both ErrUpstream and
// the collaborator's own error under errors.Is.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("provision: %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() []error {
	return []error{ErrUpstream, e.Err}
}

// Result is everything a successful Provision produced.
type Result struct {
	Workspace *workspace.Workspace
	Instance  *workspace.Instance
	Spec      *workspace.StartSpec
}

// Config wires an Orchestrator. All collaborators are required.
type Config struct {
	ContextResolver  ContextResolver
	WorkspaceFactory WorkspaceFactory
	InstanceStarter  InstanceStarter
	EnvVars          EnvVarSource

	// Clock measures the sequence duration for logging. Defaults to
	// clock.Real().
	Clock clock.Clock

	// Logger defaults to a discarding logger.
	Logger *slog.Logger
}

// Orchestrator runs the provisioning sequence. It holds no per-call
// state and is safe for concurrent use when its collaborators are.
type Orchestrator struct {
	resolver ContextResolver
	factory  WorkspaceFactory
	starter  InstanceStarter
	envVars  EnvVarSource
	clock    clock.Clock
	logger   *slog.Logger
}

// NewOrchestrator validates config and returns an Orchestrator.
func NewOrchestrator(config Config) (*Orchestrator, error) {
	var missing []error
	if config.ContextResolver == nil {
		missing = append(missing, errors.New("ContextResolver is required"))
	}
	if config.WorkspaceFactory == nil {
		missing = append(missing, errors.New("WorkspaceFactory is required"))
	}
	if config.InstanceStarter == nil {
		missing = append(missing, errors.New("InstanceStarter is required"))
	}
	if config.EnvVars == nil {
		missing = append(missing, errors.New("EnvVars is required"))
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("provision: invalid config: %w", errors.Join(missing...))
	}

	orchestrator := &Orchestrator{
		resolver: config.ContextResolver,
		factory:  config.WorkspaceFactory,
		starter:  config.InstanceStarter,
		envVars:  config.EnvVars,
		clock:    config.Clock,
		logger:   config.Logger,
	}
	if orchestrator.clock == nil {
		orchestrator.clock = clock.Real()
	}
	if orchestrator.logger == nil {
		orchestrator.logger = slog.New(slog.DiscardHandler)
	}
	return orchestrator, nil
}

// Provision runs the full sequence for user and contextURL.
func (o *Orchestrator) Provision(ctx context.Context, user auth.Identity, contextURL string) (*Result, error) {
	started := o.clock.Now()

	normalized := o.resolver.Normalize(contextURL)

	resolved, err := o.resolver.ResolveContext(ctx, user, normalized)
	if err = check(resolved == nil, err); err != nil {
		return nil, o.fail(ctx, StepResolveContext, user, err)
	}
	o.logger.DebugContext(ctx, "context resolved", "user", user.UserID, "context_url", normalized)

	record, err := o.factory.CreateWorkspace(ctx, user, resolved, normalized)
	if err = check(record == nil, err); err == nil {
		err = record.Validate()
	}
	if err != nil {
		return nil, o.fail(ctx, StepCreateWorkspace, user, err)
	}
	o.logger.DebugContext(ctx, "workspace created", "user", user.UserID, "workspace", record.ID)

	instance, err := o.starter.StartInstance(ctx, user, record)
	if err = check(instance == nil, err); err == nil {
		err = instance.Validate()
	}
	if err != nil {
		return nil, o.fail(ctx, StepStartInstance, user, err)
	}
	o.logger.DebugContext(ctx, "instance allocated", "workspace", record.ID, "instance", instance.ID)

	envVars, err := o.envVars.EnvVars(ctx, user)
	if err != nil {
		return nil, o.fail(ctx, StepFetchEnvVars, user, err)
	}

	spec, err := o.starter.BuildSpec(ctx, record, instance, envVars)
	if err = check(spec == nil, err); err != nil {
		return nil, o.fail(ctx, StepBuildSpec, user, err)
	}

	o.logger.InfoContext(ctx, "workspace provisioned",
		"user", user.UserID,
		"workspace", record.ID,
		"instance", instance.ID,
		"env_vars", len(envVars),
		"duration", clock.Since(o.clock, started),
	)

	return &Result{
		Workspace: record,
		Instance:  instance,
		Spec:      spec,
	}, nil
}

// check folds a nil result reported alongside a nil error into an
// error.
func check(empty bool, err error) error {
	if err != nil {
		return err
	}
	if empty {
		return errEmptyResult
	}
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, step Step, user auth.Identity, err error) error {
	o.logger.InfoContext(ctx, "provisioning failed",
		"step", string(step),
		"user", user.UserID,
		"error", err,
	)
	return &StepError{Step: step, Err: err}
}
