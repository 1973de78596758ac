// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package contextapi defines the public surface of the workspace
// context service: the wire messages, the gRPC service description, a
// client, and [TranslateSpec], which converts the internal start
// specification built by the instance starter into its wire form.
//
// The service has one method, GetWorkspaceContext. A caller presents a
// machine auth token as a bearer credential and a context URL; the
// service provisions a workspace and instance and answers with the
// instance's start specification.
package contextapi
