// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package workspaceclient

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/wscontext/lib/auth"
	"github.com/bureau-foundation/wscontext/lib/codec"
	"github.com/bureau-foundation/wscontext/lib/schema/telemetry"
	"github.com/bureau-foundation/wscontext/lib/schema/workspace"
	"github.com/bureau-foundation/wscontext/lib/service"
	"github.com/bureau-foundation/wscontext/lib/testutil"
)

// startCollaborator serves handlers on a fresh socket and returns a
// client for it.
func startCollaborator(t *testing.T, handlers map[string]service.ActionFunc) *service.ServiceClient {
	t.Helper()
	socketPath := filepath.Join(testutil.SocketDir(t), "collaborator.sock")
	server := service.NewSocketServer(socketPath, nil)
	for action, handler := range handlers {
		server.Handle(action, handler)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		testutil.RequireReceive(t, done, 5*time.Second, "collaborator shutdown")
	})
	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "collaborator ready")

	return service.NewServiceClientFromToken(socketPath, nil)
}

func TestNormalize(t *testing.T) {
	resolver := NewContextResolver(&recordingCaller{}, 0)
	tests := []struct {
		input string
		want  string
	}{
		{"https://git.example/acme/widgets", "https://git.example/acme/widgets"},
		{"  https://git.example/acme/widgets\n", "https://git.example/acme/widgets"},
		{"#https://git.example/acme/widgets", "https://git.example/acme/widgets"},
		{" # https://git.example/acme/widgets", "https://git.example/acme/widgets"},
		{"https://git.example/acme/widgets#readme", "https://git.example/acme/widgets#readme"},
		{"", ""},
	}
	for _, test := range tests {
		if got := resolver.Normalize(test.input); got != test.want {
			t.Errorf("Normalize(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestResolveContext(t *testing.T) {
	traces := make(chan telemetry.Trace, 1)
	client := startCollaborator(t, map[string]service.ActionFunc{
		ActionResolveContext: func(ctx context.Context, raw []byte) (any, error) {
			var request struct {
				UserID     string `cbor:"user_id"`
				ContextURL string `cbor:"context_url"`
			}
			if err := codec.Unmarshal(raw, &request); err != nil {
				return nil, err
			}
			if request.UserID != "U1" {
				return nil, errors.New("unexpected user " + request.UserID)
			}
			trace, _ := telemetry.TraceFromContext(ctx)
			traces <- trace
			return workspace.Context{
				NormalizedURL: request.ContextURL,
				Title:         "acme/widgets - main",
				Repository: &workspace.Repository{
					Host:     "git.example",
					Owner:    "acme",
					Name:     "widgets",
					CloneURL: "https://git.example/acme/widgets.git",
				},
				Ref:        "main",
				Attributes: map[string]any{"prebuild": "pb-7"},
			}, nil
		},
	})

	trace := telemetry.NewTrace()
	ctx := telemetry.WithTrace(context.Background(), trace)
	resolver := NewContextResolver(client, time.Second)

	resolved, err := resolver.ResolveContext(ctx, auth.Identity{UserID: "U1"}, "https://git.example/acme/widgets")
	if err != nil {
		t.Fatalf("ResolveContext: %v", err)
	}
	if resolved.Repository == nil || resolved.Repository.Name != "widgets" || resolved.Ref != "main" {
		t.Errorf("resolved = %+v", resolved)
	}
	if resolved.Attributes["prebuild"] != "pb-7" {
		t.Errorf("attributes = %v", resolved.Attributes)
	}
	if got := testutil.RequireReceive(t, traces, 5*time.Second, "trace"); got != trace {
		t.Errorf("collaborator saw trace %+v, want %+v", got, trace)
	}
}

func TestResolveContextFillsNormalizedURL(t *testing.T) {
	client := startCollaborator(t, map[string]service.ActionFunc{
		ActionResolveContext: func(ctx context.Context, raw []byte) (any, error) {
			return workspace.Context{Title: "untitled"}, nil
		},
	})
	resolved, err := NewContextResolver(client, 0).ResolveContext(context.Background(), auth.Identity{UserID: "U1"}, "acme/widgets")
	if err != nil {
		t.Fatalf("ResolveContext: %v", err)
	}
	if resolved.NormalizedURL != "acme/widgets" {
		t.Errorf("NormalizedURL = %q, want the requested URL", resolved.NormalizedURL)
	}
}

func TestCreateWorkspaceAndStartInstance(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	client := startCollaborator(t, map[string]service.ActionFunc{
		ActionCreateWorkspace: func(ctx context.Context, raw []byte) (any, error) {
			var request struct {
				UserID     string             `cbor:"user_id"`
				ContextURL string             `cbor:"context_url"`
				Context    *workspace.Context `cbor:"context"`
			}
			if err := codec.Unmarshal(raw, &request); err != nil {
				return nil, err
			}
			if request.Context == nil || request.Context.Title != "widgets" {
				return nil, errors.New("context not forwarded")
			}
			return workspace.Workspace{
				ID:         "ws1",
				OwnerID:    request.UserID,
				ContextURL: request.ContextURL,
				CreatedAt:  created,
			}, nil
		},
		ActionStartInstance: func(ctx context.Context, raw []byte) (any, error) {
			var request struct {
				Workspace workspace.Workspace `cbor:"workspace"`
			}
			if err := codec.Unmarshal(raw, &request); err != nil {
				return nil, err
			}
			return workspace.Instance{ID: "inst1", WorkspaceID: request.Workspace.ID, CreatedAt: created}, nil
		},
	})

	user := auth.Identity{UserID: "U1"}
	record, err := NewWorkspaceFactory(client, 0).CreateWorkspace(context.Background(), user,
		&workspace.Context{Title: "widgets"}, "https://git.example/acme/widgets")
	if err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	if record.ID != "ws1" || record.OwnerID != "U1" || !record.CreatedAt.Equal(created) {
		t.Errorf("workspace = %+v", record)
	}

	instance, err := NewInstanceStarter(client, 0).StartInstance(context.Background(), user, record)
	if err != nil {
		t.Fatalf("StartInstance: %v", err)
	}
	if instance.ID != "inst1" || instance.WorkspaceID != "ws1" {
		t.Errorf("instance = %+v", instance)
	}
}

func TestBuildSpec(t *testing.T) {
	client := startCollaborator(t, map[string]service.ActionFunc{
		ActionBuildSpec: func(ctx context.Context, raw []byte) (any, error) {
			var request struct {
				Workspace workspace.Workspace    `cbor:"workspace"`
				Instance  workspace.Instance     `cbor:"instance"`
				EnvVars   []workspace.UserEnvVar `cbor:"env_vars"`
			}
			if err := codec.Unmarshal(raw, &request); err != nil {
				return nil, err
			}
			spec := workspace.StartSpec{
				WorkspaceLocation: request.Workspace.ID,
				Timeout:           30 * time.Minute,
			}
			for _, variable := range request.EnvVars {
				spec.Envvars = append(spec.Envvars, workspace.EnvironmentVariable{
					Name:  variable.Name,
					Value: variable.Value,
					Mode:  workspace.EnvVarModeAppend,
				})
			}
			return spec, nil
		},
	})

	spec, err := NewInstanceStarter(client, 0).BuildSpec(context.Background(),
		&workspace.Workspace{ID: "ws1", OwnerID: "U1"},
		&workspace.Instance{ID: "inst1", WorkspaceID: "ws1"},
		[]workspace.UserEnvVar{{Name: "FOO", Value: "bar", RepositoryPattern: "*/*"}},
	)
	if err != nil {
		t.Fatalf("BuildSpec: %v", err)
	}
	if spec.WorkspaceLocation != "ws1" || spec.Timeout != 30*time.Minute {
		t.Errorf("spec = %+v", spec)
	}
	if len(spec.Envvars) != 1 || spec.Envvars[0].Mode != workspace.EnvVarModeAppend {
		t.Errorf("envvars = %+v", spec.Envvars)
	}
}

func TestCollaboratorErrorIsWrapped(t *testing.T) {
	client := startCollaborator(t, map[string]service.ActionFunc{
		ActionStartInstance: func(ctx context.Context, raw []byte) (any, error) {
			return nil, errors.New("no capacity")
		},
	})

	_, err := NewInstanceStarter(client, 0).StartInstance(context.Background(), auth.Identity{UserID: "U1"}, &workspace.Workspace{ID: "ws1"})
	var serviceErr *service.ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("error = %v, want wrapped *service.ServiceError", err)
	}
	if serviceErr.Message != "no capacity" {
		t.Errorf("message = %q", serviceErr.Message)
	}
}

// recordingCaller captures the deadline each call ran under.
type recordingCaller struct {
	deadline time.Time
	action   string
}

func (r *recordingCaller) Call(ctx context.Context, action string, fields map[string]any, result any) error {
	r.action = action
	r.deadline, _ = ctx.Deadline()
	return nil
}

func TestCallTimeoutApplied(t *testing.T) {
	transport := &recordingCaller{}
	factory := NewWorkspaceFactory(transport, 250*time.Millisecond)

	before := time.Now()
	if _, err := factory.CreateWorkspace(context.Background(), auth.Identity{UserID: "U1"}, &workspace.Context{}, "x"); err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	if transport.action != ActionCreateWorkspace {
		t.Errorf("action = %q", transport.action)
	}
	if transport.deadline.IsZero() {
		t.Fatal("call ran without a deadline")
	}
	if remaining := transport.deadline.Sub(before); remaining > 250*time.Millisecond+time.Second {
		t.Errorf("deadline %v after start, want about 250ms", remaining)
	}

	// A zero timeout falls back to the default rather than no deadline.
	transport = &recordingCaller{}
	if _, err := NewWorkspaceFactory(transport, 0).CreateWorkspace(context.Background(), auth.Identity{}, nil, "x"); err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	if transport.deadline.IsZero() {
		t.Error("default timeout not applied")
	}
}
