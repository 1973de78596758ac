// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package contextapi

import (
	"github.com/bureau-foundation/wscontext/lib/schema/workspace"
)

// TranslateSpec converts an internal start specification into its wire
// form. The result is a deep copy: it shares no slices or pointers with
// spec. Every field is carried over unchanged except environment
// variable modes, which are all set to [EnvVarModeOverwrite]. A nil
// spec yields an empty, non-nil wire spec.
func TranslateSpec(spec *workspace.StartSpec) *StartSpec {
	if spec == nil {
		return &StartSpec{}
	}

	wire := &StartSpec{
		Admission:         string(spec.Admission),
		CheckoutLocation:  spec.CheckoutLocation,
		WorkspaceImage:    spec.WorkspaceImage,
		WorkspaceLocation: spec.WorkspaceLocation,
		Git:               translateGit(spec.Git),
		IDEImage:          translateIDEImage(spec.IDEImage),
		Initializer:       translateInitializer(spec.Initializer),
	}
	if spec.Timeout > 0 {
		wire.Timeout = spec.Timeout.String()
	}

	if spec.Envvars != nil {
		wire.Envvars = make([]EnvironmentVariable, len(spec.Envvars))
		for i, variable := range spec.Envvars {
			wire.Envvars[i] = EnvironmentVariable{
				Name:  variable.Name,
				Value: variable.Value,
				Mode:  EnvVarModeOverwrite,
			}
		}
	}

	if spec.Ports != nil {
		wire.Ports = make([]PortSpec, len(spec.Ports))
		for i, port := range spec.Ports {
			wire.Ports[i] = PortSpec{
				Port:       port.Port,
				Visibility: string(port.Visibility),
			}
		}
	}

	return wire
}

func translateGit(git *workspace.GitSpec) *GitSpec {
	if git == nil {
		return nil
	}
	return &GitSpec{Username: git.Username, Email: git.Email}
}

func translateIDEImage(image *workspace.IDEImage) *IDEImage {
	if image == nil {
		return nil
	}
	return &IDEImage{
		WebRef:        image.WebRef,
		DesktopRef:    image.DesktopRef,
		SupervisorRef: image.SupervisorRef,
	}
}

func translateInitializer(initializer *workspace.Initializer) *Initializer {
	if initializer == nil {
		return nil
	}
	wire := &Initializer{Empty: initializer.Empty}
	if git := initializer.Git; git != nil {
		wire.Git = &GitInitializer{
			RemoteURI:        git.RemoteURI,
			TargetMode:       string(git.TargetMode),
			CloneTarget:      git.CloneTarget,
			CheckoutLocation: git.CheckoutLocation,
		}
	}
	return wire
}

// NewResponse assembles the response for a provisioned instance. The
// service prefix and metadata id are the workspace id; the top-level
// id is the instance id.
func NewResponse(record *workspace.Workspace, instance *workspace.Instance, spec *workspace.StartSpec) *GetWorkspaceContextResponse {
	return &GetWorkspaceContextResponse{
		ID: instance.ID,
		Metadata: Metadata{
			MetaID: record.ID,
			Owner:  record.OwnerID,
		},
		ServicePrefix: record.ID,
		Spec:          TranslateSpec(spec),
	}
}
