// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports which build of a binary is running.
//
// Release builds stamp [GitCommit], [GitDirty], [BuildTime] and
// [Version] with the linker:
//
//	go build -ldflags "-X github.com/bureau-foundation/wscontext/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Unstamped builds fall back to the VCS metadata in the binary's build
// info. Both binaries answer --version through [Print].
package version
