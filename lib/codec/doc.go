// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the single CBOR configuration shared by every
// wire format in the context service.
//
// CBOR carries both protocols the service speaks: the public
// GetWorkspaceContext RPC (registered with gRPC as the "cbor" codec by
// lib/grpcwire) and the request/response socket protocol used to reach
// the provisioning collaborators (lib/service, lib/workspaceclient).
// Keeping one encoder and one decoder configuration means a value
// encoded on one path decodes identically on the other.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2), so
// the same logical value always produces identical bytes. Decoding
// caps nesting depth and container sizes so a malformed collaborator
// frame fails fast instead of allocating without bound.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// # Struct tags
//
// Types that only ever travel as CBOR use `cbor` tags. Types that may
// also be rendered as JSON (the public RPC messages, which operators
// inspect with JSON tooling) use `json` tags; fxamacker/cbor falls back
// to `json` tags when no `cbor` tag is present. Never put both tags on
// one field.
package codec
