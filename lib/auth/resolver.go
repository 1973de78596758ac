// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
)

// AuthorizationHeader is the metadata key carrying the bearer token.
// gRPC lowercases metadata keys on the wire.
const AuthorizationHeader = "authorization"

// bearerPrefix is matched case-sensitively, with exactly one space.
const bearerPrefix = "Bearer "

// CredentialKind scopes a credential lookup. The numeric values match
// the token types of the credential store's issuing system and are
// persisted; do not renumber.
type CredentialKind int

const (
	KindAPIAuthToken     CredentialKind = 0
	KindMachineAuthToken CredentialKind = 1
)

func (kind CredentialKind) String() string {
	switch kind {
	case KindAPIAuthToken:
		return "api_auth_token"
	case KindMachineAuthToken:
		return "machine_auth_token"
	default:
		return "unknown"
	}
}

// ErrUnresolved is returned by Resolve for every request whose caller
// cannot be identified. Callers must not distinguish between causes.
var ErrUnresolved = errors.New("auth: caller identity could not be resolved")

// Identity is an authenticated principal.
type Identity struct {
	UserID string
}

// CredentialStore looks up the owner of a credential by its digest.
// Implementations return an error (any error) when no credential of
// the given kind has that digest.
type CredentialStore interface {
	FindCredentialOwner(ctx context.Context, kind CredentialKind, digest string) (string, error)
}

// Header is request metadata: header name to values. Names are matched
// case-insensitively.
type Header map[string][]string

// Get returns the first value for name, or "" if there is none.
func (h Header) Get(name string) string {
	if values, ok := h[strings.ToLower(name)]; ok {
		return first(values)
	}
	for key, values := range h {
		if strings.EqualFold(key, name) {
			return first(values)
		}
	}
	return ""
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Digest returns the lowercase hex SHA-256 of token.
func Digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// DigestPrefix returns the first eight characters of a digest: enough
// to correlate log lines, useless for recovering the token.
func DigestPrefix(digest string) string {
	if len(digest) <= 8 {
		return digest
	}
	return digest[:8]
}

// Resolver maps request metadata to a caller Identity.
type Resolver struct {
	store  CredentialStore
	logger *slog.Logger
}

// NewResolver creates a Resolver backed by store. Panics if store is
// nil; a resolver without a store would reject everything silently.
func NewResolver(store CredentialStore, logger *slog.Logger) *Resolver {
	if store == nil {
		panic("auth.NewResolver: store is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{store: store, logger: logger}
}

// Resolve authenticates the request described by header. On success it
// returns the owner of the machine auth token presented as a bearer
// credential. On any failure it returns ErrUnresolved. A single store
// lookup is made; it is never retried.
func (r *Resolver) Resolve(ctx context.Context, header Header) (Identity, error) {
	value := header.Get(AuthorizationHeader)
	if value == "" {
		r.logger.DebugContext(ctx, "credential rejected", "reason", "missing authorization")
		return Identity{}, ErrUnresolved
	}

	token, ok := strings.CutPrefix(value, bearerPrefix)
	if !ok {
		r.logger.DebugContext(ctx, "credential rejected", "reason", "not a bearer credential")
		return Identity{}, ErrUnresolved
	}
	if token == "" {
		r.logger.DebugContext(ctx, "credential rejected", "reason", "empty bearer token")
		return Identity{}, ErrUnresolved
	}

	digest := Digest(token)
	owner, err := r.store.FindCredentialOwner(ctx, KindMachineAuthToken, digest)
	if err != nil {
		r.logger.DebugContext(ctx, "credential rejected",
			"reason", "lookup failed",
			"digest_prefix", DigestPrefix(digest),
			"error", err,
		)
		return Identity{}, ErrUnresolved
	}
	if owner == "" {
		r.logger.WarnContext(ctx, "credential store returned empty owner",
			"digest_prefix", DigestPrefix(digest),
		)
		return Identity{}, ErrUnresolved
	}

	r.logger.DebugContext(ctx, "credential resolved",
		"user", owner,
		"digest_prefix", DigestPrefix(digest),
	)
	return Identity{UserID: owner}, nil
}
