// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package auth resolves the caller of a GetWorkspaceContext call from
// its request metadata.
//
// Callers authenticate with a machine auth token sent as
//
//	authorization: Bearer <token>
//
// The raw token is never stored or logged. [Resolver] hashes it with
// SHA-256 and looks the hex digest up in a [CredentialStore], scoped to
// [KindMachineAuthToken]; the owner of the matching credential is the
// caller's [Identity]. Every failure (missing header, wrong scheme,
// unknown digest, store error) collapses to [ErrUnresolved] so that the
// RPC layer can answer with a bare unauthenticated status. The only
// trace of a token that may reach the logs is [DigestPrefix], the first
// eight hex characters of its digest.
package auth
