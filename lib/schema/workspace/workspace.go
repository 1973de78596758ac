// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"errors"
	"path"
	"strings"
	"time"
)

// Context is a resolved description of what to provision, produced by
// the context resolver from a normalized context URL. The context
// service passes it from the resolver to the workspace factory without
// interpreting it.
type Context struct {
	// NormalizedURL is the context URL after local normalization.
	NormalizedURL string `cbor:"normalized_url"`

	// Title is a human-readable label (e.g., "acme/widgets - main").
	Title string `cbor:"title,omitempty"`

	// Repository identifies the source repository for repository
	// contexts. Nil for contexts that are not backed by a repository.
	Repository *Repository `cbor:"repository,omitempty"`

	// Ref is the branch or tag to check out. Empty means the
	// repository's default branch.
	Ref string `cbor:"ref,omitempty"`

	// Revision is a pinned commit, if the context URL named one.
	Revision string `cbor:"revision,omitempty"`

	// Attributes carries resolver-specific data (issue numbers, pull
	// request heads, prebuild references) that only the factory and
	// starter understand.
	Attributes map[string]any `cbor:"attributes,omitempty"`
}

// Repository identifies a hosted source repository.
type Repository struct {
	Host     string `cbor:"host"`
	Owner    string `cbor:"owner"`
	Name     string `cbor:"name"`
	CloneURL string `cbor:"clone_url"`
}

// Workspace is the persisted identity of a provisioned development
// environment. Created by the workspace factory.
type Workspace struct {
	ID         string    `cbor:"id"`
	OwnerID    string    `cbor:"owner_id"`
	ContextURL string    `cbor:"context_url"`
	Context    *Context  `cbor:"context,omitempty"`
	CreatedAt  time.Time `cbor:"created_at"`
}

// Instance is one runtime allocation of a Workspace. Created by the
// instance starter.
type Instance struct {
	ID          string    `cbor:"id"`
	WorkspaceID string    `cbor:"workspace_id"`
	CreatedAt   time.Time `cbor:"created_at"`
}

// Errors returned by the Validate methods.
var (
	ErrMissingID    = errors.New("workspace: record has no id")
	ErrMissingOwner = errors.New("workspace: record has no owner")
)

// Validate checks the fields the context service relies on. A factory
// that answers with an incomplete record is treated as failed.
func (w *Workspace) Validate() error {
	if w.ID == "" {
		return ErrMissingID
	}
	if w.OwnerID == "" {
		return ErrMissingOwner
	}
	return nil
}

// Validate checks that the instance carries an identifier.
func (i *Instance) Validate() error {
	if i.ID == "" {
		return ErrMissingID
	}
	return nil
}

// UserEnvVar is an environment variable stored for a user. The value
// is plaintext here; the user store seals it at rest.
type UserEnvVar struct {
	Name  string `cbor:"name"`
	Value string `cbor:"value"`

	// RepositoryPattern scopes the variable to repositories, written
	// as "owner/repo" where either segment may be "*". "*/*" applies
	// the variable everywhere.
	RepositoryPattern string `cbor:"repository_pattern"`
}

// Matches reports whether the variable applies to the repository
// owner/name. Matching is per path segment and case-insensitive.
func (v UserEnvVar) Matches(owner, name string) bool {
	pattern := strings.ToLower(strings.TrimSpace(v.RepositoryPattern))
	if strings.Count(pattern, "/") != 1 {
		return false
	}
	matched, err := path.Match(pattern, strings.ToLower(owner)+"/"+strings.ToLower(name))
	return err == nil && matched
}
