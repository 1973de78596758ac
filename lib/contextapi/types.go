// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package contextapi

// Field names follow the JSON shape of the public API (camelCase). The
// CBOR codec reads the json tags when no cbor tag is present, so both
// renderings of a message agree.

// GetWorkspaceContextRequest asks for a workspace to be provisioned
// from a context URL.
type GetWorkspaceContextRequest struct {
	ContextURL string `json:"contextUrl"`
}

// GetWorkspaceContextResponse describes the provisioned instance.
//
// ID is the instance identifier. Metadata.MetaID and ServicePrefix are
// both the workspace identifier; an instance is addressed through the
// workspace it belongs to.
type GetWorkspaceContextResponse struct {
	ID            string     `json:"id"`
	Metadata      Metadata   `json:"metadata"`
	ServicePrefix string     `json:"servicePrefix"`
	Spec          *StartSpec `json:"spec"`
}

// Metadata identifies the workspace and its owner.
type Metadata struct {
	MetaID string `json:"metaId"`
	Owner  string `json:"owner"`
}

// StartSpec is the wire form of a start specification.
type StartSpec struct {
	Admission         string                `json:"admission,omitempty"`
	CheckoutLocation  string                `json:"checkoutLocation,omitempty"`
	Envvars           []EnvironmentVariable `json:"envvars,omitempty"`
	Git               *GitSpec              `json:"git,omitempty"`
	IDEImage          *IDEImage             `json:"ideImage,omitempty"`
	Initializer       *Initializer          `json:"initializer,omitempty"`
	Ports             []PortSpec            `json:"ports,omitempty"`
	Timeout           string                `json:"timeout,omitempty"`
	WorkspaceImage    string                `json:"workspaceImage,omitempty"`
	WorkspaceLocation string                `json:"workspaceLocation,omitempty"`
}

// EnvVarMode is how the supervisor applies an environment variable.
// Responses only ever carry [EnvVarModeOverwrite].
type EnvVarMode string

const EnvVarModeOverwrite EnvVarMode = "overwrite"

// EnvironmentVariable is one variable set in the instance.
type EnvironmentVariable struct {
	Name  string     `json:"name"`
	Value string     `json:"value"`
	Mode  EnvVarMode `json:"mode"`
}

type GitSpec struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type IDEImage struct {
	WebRef        string `json:"webRef"`
	DesktopRef    string `json:"desktopRef,omitempty"`
	SupervisorRef string `json:"supervisorRef,omitempty"`
}

// Initializer populates the workspace content. At most one member is
// set.
type Initializer struct {
	Git   *GitInitializer `json:"git,omitempty"`
	Empty bool            `json:"empty,omitempty"`
}

type GitInitializer struct {
	RemoteURI        string `json:"remoteUri"`
	TargetMode       string `json:"targetMode"`
	CloneTarget      string `json:"cloneTarget,omitempty"`
	CheckoutLocation string `json:"checkoutLocation"`
}

type PortSpec struct {
	Port       uint32 `json:"port"`
	Visibility string `json:"visibility"`
}
