// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import "time"

// StartSpec is the full startup description of an Instance, built by
// the instance starter. It is the internal form; lib/contextapi
// converts it into the wire form returned to callers.
type StartSpec struct {
	Admission         AdmissionLevel        `cbor:"admission"`
	CheckoutLocation  string                `cbor:"checkout_location"`
	Envvars           []EnvironmentVariable `cbor:"envvars,omitempty"`
	Git               *GitSpec              `cbor:"git,omitempty"`
	IDEImage          *IDEImage             `cbor:"ide_image,omitempty"`
	Initializer       *Initializer          `cbor:"initializer,omitempty"`
	Ports             []PortSpec            `cbor:"ports,omitempty"`
	Timeout           time.Duration         `cbor:"timeout"`
	WorkspaceImage    string                `cbor:"workspace_image"`
	WorkspaceLocation string                `cbor:"workspace_location"`
}

// AdmissionLevel controls who may connect to a running instance.
type AdmissionLevel string

const (
	AdmissionOwnerOnly AdmissionLevel = "owner_only"
	AdmissionEveryone  AdmissionLevel = "everyone"
)

// EnvVarMode is how an environment variable is applied on top of any
// value already present in the workspace image.
type EnvVarMode string

const (
	EnvVarModeUnspecified EnvVarMode = ""
	EnvVarModeOverwrite   EnvVarMode = "overwrite"
	EnvVarModeAppend      EnvVarMode = "append"
	EnvVarModePrepend     EnvVarMode = "prepend"
)

// EnvironmentVariable is one variable in a StartSpec.
type EnvironmentVariable struct {
	Name  string     `cbor:"name"`
	Value string     `cbor:"value"`
	Mode  EnvVarMode `cbor:"mode,omitempty"`
}

// GitSpec is the source control identity configured in the instance.
type GitSpec struct {
	Username string `cbor:"username"`
	Email    string `cbor:"email"`
}

// IDEImage names the images that provide the editor surfaces.
type IDEImage struct {
	WebRef        string `cbor:"web_ref"`
	DesktopRef    string `cbor:"desktop_ref,omitempty"`
	SupervisorRef string `cbor:"supervisor_ref,omitempty"`
}

// Initializer describes how the workspace content is populated on
// first start. Exactly one of the members is set.
type Initializer struct {
	Git   *GitInitializer `cbor:"git,omitempty"`
	Empty bool            `cbor:"empty,omitempty"`
}

// CloneTargetMode selects what the git initializer checks out.
type CloneTargetMode string

const (
	CloneTargetRemoteHead   CloneTargetMode = "remote_head"
	CloneTargetRemoteCommit CloneTargetMode = "remote_commit"
	CloneTargetRemoteBranch CloneTargetMode = "remote_branch"
	CloneTargetLocalBranch  CloneTargetMode = "local_branch"
)

// GitInitializer clones a repository into the workspace.
type GitInitializer struct {
	RemoteURI        string          `cbor:"remote_uri"`
	TargetMode       CloneTargetMode `cbor:"target_mode"`
	CloneTarget      string          `cbor:"clone_target,omitempty"`
	CheckoutLocation string          `cbor:"checkout_location"`
}

// PortVisibility controls whether an exposed port requires the owner's
// session.
type PortVisibility string

const (
	PortVisibilityPrivate PortVisibility = "private"
	PortVisibilityPublic  PortVisibility = "public"
)

// PortSpec is one port the instance exposes.
type PortSpec struct {
	Port       uint32         `cbor:"port"`
	Visibility PortVisibility `cbor:"visibility"`
}
