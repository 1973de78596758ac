// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Bureau-context-service serves the workspace context RPC: given a
// caller's machine auth token and a context URL, it provisions a
// workspace and returns the start specification of its new instance.
//
// # Request flow
//
// The caller presents "authorization: Bearer <token>" metadata. The
// token is hashed (SHA-256, lowercase hex) and looked up among the
// machine auth tokens in the user store; the raw token is never logged
// or stored. An unidentified caller gets Unauthenticated without any
// collaborator being contacted.
//
// For an identified caller the service then runs, strictly in order:
// normalize the context URL, resolve it (context resolver socket),
// create the workspace (workspace factory socket), start an instance
// (instance starter socket), read the caller's environment variables
// from the user store, and have the starter build the start
// specification. The first failure ends the request with Internal; the
// message carries only the trace ID of the request.
//
// The returned specification is a copy of the starter's with every
// environment variable mode set to overwrite.
//
// # Wire format
//
// Messages are CBOR under the "cbor" content subtype (lib/grpcwire);
// zstd compression is available to clients that ask for it. The
// standard grpc.health.v1 service reports SERVING while the listener
// is accepting calls.
//
// # Configuration
//
// A single YAML file, from --config or $BUREAU_CONTEXT_CONFIG, falling
// back to /config/config.yaml. See lib/config. A listener that cannot
// bind ends the process.
package main
