// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package workspace defines the records exchanged between the context
// service and its provisioning collaborators: the resolved [Context],
// the [Workspace] record, the [Instance] allocated for it, the user's
// stored [UserEnvVar] values, and the internal [StartSpec].
//
// These are the collaborator-facing shapes. They travel as CBOR over
// the collaborator sockets and are never sent to RPC callers directly;
// lib/contextapi translates a StartSpec into the public wire form.
//
// The context service treats every type here as read-only. Records are
// built by the collaborator that owns them (the context resolver, the
// workspace factory, the instance starter) and passed along unchanged.
package workspace
