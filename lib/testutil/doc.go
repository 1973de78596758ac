// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Bureau packages.
//
// [SocketDir] creates a temporary directory in /tmp suitable for Unix
// domain sockets, whose paths are limited to 108 bytes (sun_path in
// sockaddr_un). [WriteFile] drops a private file into a test's temp
// directory.
//
// [RequireReceive] and [RequireClosed] bound every wait on a channel
// with a timer, so a hung server fails the test instead of the whole
// binary. They are the only place in the test suite that waits on the
// wall clock.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
