// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/wscontext/lib/clock"
	"github.com/bureau-foundation/wscontext/lib/codec"
	"github.com/bureau-foundation/wscontext/lib/schema/workspace"
	"github.com/bureau-foundation/wscontext/lib/service"
	"github.com/bureau-foundation/wscontext/lib/workspaceclient"
)

// instanceTimeout is the idle timeout written into every start spec.
const instanceTimeout = 30 * time.Minute

// provisionMock plays all three provisioning collaborators with
// in-memory state. Workspaces and instances live until the process
// exits.
type provisionMock struct {
	clock          clock.Clock
	workspaceImage string
	ideImage       string

	mu         sync.Mutex
	workspaces map[string]*workspace.Workspace
	instances  map[string]*workspace.Instance
}

func newProvisionMock(clk clock.Clock, workspaceImage, ideImage string) *provisionMock {
	return &provisionMock{
		clock:          clk,
		workspaceImage: workspaceImage,
		ideImage:       ideImage,
		workspaces:     make(map[string]*workspace.Workspace),
		instances:      make(map[string]*workspace.Instance),
	}
}

// registerResolver, registerFactory and registerStarter attach the
// actions of one collaborator to its socket.
func (m *provisionMock) registerResolver(server *service.SocketServer) {
	server.Handle(workspaceclient.ActionResolveContext, m.handleResolveContext)
}

func (m *provisionMock) registerFactory(server *service.SocketServer) {
	server.Handle(workspaceclient.ActionCreateWorkspace, m.handleCreateWorkspace)
}

func (m *provisionMock) registerStarter(server *service.SocketServer) {
	server.Handle(workspaceclient.ActionStartInstance, m.handleStartInstance)
	server.Handle(workspaceclient.ActionBuildSpec, m.handleBuildSpec)
}

type resolveContextRequest struct {
	UserID     string `cbor:"user_id"`
	ContextURL string `cbor:"context_url"`
}

// handleResolveContext understands repository URLs of the form
// https://host/owner/name, optionally followed by /tree/<ref>.
func (m *provisionMock) handleResolveContext(ctx context.Context, raw []byte) (any, error) {
	var request resolveContextRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if request.UserID == "" {
		return nil, errors.New("user_id is required")
	}
	return parseRepositoryContext(request.ContextURL)
}

func parseRepositoryContext(contextURL string) (*workspace.Context, error) {
	parsed, err := url.Parse(contextURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "https" && parsed.Scheme != "http") {
		return nil, fmt.Errorf("unsupported context URL %q", contextURL)
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segments) < 2 || segments[0] == "" || segments[1] == "" {
		return nil, fmt.Errorf("context URL %q does not name a repository", contextURL)
	}
	owner, name := segments[0], strings.TrimSuffix(segments[1], ".git")

	resolved := &workspace.Context{
		NormalizedURL: contextURL,
		Title:         owner + "/" + name,
		Repository: &workspace.Repository{
			Host:     parsed.Host,
			Owner:    owner,
			Name:     name,
			CloneURL: fmt.Sprintf("https://%s/%s/%s.git", parsed.Host, owner, name),
		},
	}
	if len(segments) >= 4 && segments[2] == "tree" {
		resolved.Ref = strings.Join(segments[3:], "/")
		resolved.Title += " - " + resolved.Ref
	}
	return resolved, nil
}

type createWorkspaceRequest struct {
	UserID     string             `cbor:"user_id"`
	ContextURL string             `cbor:"context_url"`
	Context    *workspace.Context `cbor:"context"`
}

func (m *provisionMock) handleCreateWorkspace(ctx context.Context, raw []byte) (any, error) {
	var request createWorkspaceRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if request.UserID == "" {
		return nil, errors.New("user_id is required")
	}
	if request.Context == nil {
		return nil, errors.New("context is required")
	}

	record := &workspace.Workspace{
		ID:         "ws-" + uuid.NewString(),
		OwnerID:    request.UserID,
		ContextURL: request.ContextURL,
		Context:    request.Context,
		CreatedAt:  m.clock.Now().UTC(),
	}

	m.mu.Lock()
	m.workspaces[record.ID] = record
	m.mu.Unlock()
	return record, nil
}

type startInstanceRequest struct {
	UserID    string               `cbor:"user_id"`
	Workspace *workspace.Workspace `cbor:"workspace"`
}

func (m *provisionMock) handleStartInstance(ctx context.Context, raw []byte) (any, error) {
	var request startInstanceRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if request.Workspace == nil {
		return nil, errors.New("workspace is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.workspaces[request.Workspace.ID]
	if !ok {
		return nil, fmt.Errorf("workspace %q not found", request.Workspace.ID)
	}
	if record.OwnerID != request.UserID {
		return nil, fmt.Errorf("workspace %q is not owned by %q", record.ID, request.UserID)
	}

	instance := &workspace.Instance{
		ID:          "inst-" + uuid.NewString(),
		WorkspaceID: record.ID,
		CreatedAt:   m.clock.Now().UTC(),
	}
	m.instances[instance.ID] = instance
	return instance, nil
}

type buildSpecRequest struct {
	Workspace *workspace.Workspace   `cbor:"workspace"`
	Instance  *workspace.Instance    `cbor:"instance"`
	EnvVars   []workspace.UserEnvVar `cbor:"env_vars"`
}

func (m *provisionMock) handleBuildSpec(ctx context.Context, raw []byte) (any, error) {
	var request buildSpecRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if request.Workspace == nil || request.Instance == nil {
		return nil, errors.New("workspace and instance are required")
	}

	m.mu.Lock()
	record, workspaceKnown := m.workspaces[request.Workspace.ID]
	instance, instanceKnown := m.instances[request.Instance.ID]
	m.mu.Unlock()
	if !workspaceKnown {
		return nil, fmt.Errorf("workspace %q not found", request.Workspace.ID)
	}
	if !instanceKnown || instance.WorkspaceID != record.ID {
		return nil, fmt.Errorf("instance %q not found in workspace %q", request.Instance.ID, record.ID)
	}

	return m.buildSpec(record, request.EnvVars), nil
}

func (m *provisionMock) buildSpec(record *workspace.Workspace, envVars []workspace.UserEnvVar) *workspace.StartSpec {
	spec := &workspace.StartSpec{
		Admission:      workspace.AdmissionOwnerOnly,
		WorkspaceImage: m.workspaceImage,
		IDEImage:       &workspace.IDEImage{WebRef: m.ideImage},
		Timeout:        instanceTimeout,
		Initializer:    &workspace.Initializer{Empty: true},
	}

	var owner, name string
	if record.Context != nil && record.Context.Repository != nil {
		repository := record.Context.Repository
		owner, name = repository.Owner, repository.Name

		target := workspace.CloneTargetRemoteHead
		if record.Context.Ref != "" {
			target = workspace.CloneTargetRemoteBranch
		}
		spec.CheckoutLocation = name
		spec.WorkspaceLocation = name
		spec.Initializer = &workspace.Initializer{
			Git: &workspace.GitInitializer{
				RemoteURI:        repository.CloneURL,
				TargetMode:       target,
				CloneTarget:      record.Context.Ref,
				CheckoutLocation: name,
			},
		}
	}

	for _, variable := range selectEnvVars(envVars, owner, name) {
		spec.Envvars = append(spec.Envvars, workspace.EnvironmentVariable{
			Name:  variable.Name,
			Value: variable.Value,
		})
	}
	return spec
}

// selectEnvVars keeps the variables whose pattern matches owner/name.
// When several patterns for one name match, the one with fewer
// wildcards wins. Output keeps the first-seen order of names.
func selectEnvVars(envVars []workspace.UserEnvVar, owner, name string) []workspace.UserEnvVar {
	chosen := make(map[string]workspace.UserEnvVar)
	var order []string
	for _, variable := range envVars {
		if !variable.Matches(owner, name) {
			continue
		}
		current, seen := chosen[variable.Name]
		if !seen {
			order = append(order, variable.Name)
		}
		if !seen || wildcards(variable.RepositoryPattern) < wildcards(current.RepositoryPattern) {
			chosen[variable.Name] = variable
		}
	}

	selected := make([]workspace.UserEnvVar, 0, len(order))
	for _, variableName := range order {
		selected = append(selected, chosen[variableName])
	}
	return selected
}

func wildcards(pattern string) int {
	return strings.Count(pattern, "*")
}
