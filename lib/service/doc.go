// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the serving scaffolding shared by Bureau
// binaries.
//
//   - [RPCServer]: runs a grpc.Server on a TCP listener with the
//     standard health service, readiness signalling, and graceful
//     shutdown bounded by a timeout.
//   - [SocketServer]: Bureau's CBOR request-response protocol on a Unix
//     socket, one exchange per connection, dispatched by the request's
//     "action" field.
//   - [ServiceClient]: the client side of that protocol. It stamps each
//     request with the caller's token and the trace carried by ctx.
//
// Binaries compose these in their own main() rather than subclassing a
// framework. The package provides building blocks, not a runtime.
package service
