// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"time"
)

// TB is the subset of testing.TB the wait helpers need. Tests pass
// *testing.T; the helpers' own tests pass a recorder.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive returns the next value sent on ch. The test fails if
// nothing arrives within timeout or if ch is closed first.
//
//	err := testutil.RequireReceive(t, serveDone, 5*time.Second, "waiting for Serve to return")
func RequireReceive[T any](t TB, ch <-chan T, timeout time.Duration, msgAndArgs ...any) T {
	t.Helper()
	deadline := time.NewTimer(timeout) //nolint:realclock hang guard
	defer deadline.Stop()

	select {
	case value, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed before a value arrived: %s", describe(msgAndArgs))
		}
		return value
	case <-deadline.C:
		t.Fatalf("no value after %v: %s", timeout, describe(msgAndArgs))
	}
	var zero T
	return zero
}

// RequireClosed waits for a readiness channel to fire. A close and a
// send both count.
//
//	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "waiting for %s socket", name)
func RequireClosed(t TB, ch <-chan struct{}, timeout time.Duration, msgAndArgs ...any) {
	t.Helper()
	deadline := time.NewTimer(timeout) //nolint:realclock hang guard
	defer deadline.Stop()

	select {
	case <-ch:
	case <-deadline.C:
		t.Fatalf("still open after %v: %s", timeout, describe(msgAndArgs))
	}
}

// describe renders the optional trailing message. A leading string is
// used as a format when more arguments follow it.
func describe(msgAndArgs []any) string {
	switch {
	case len(msgAndArgs) == 0:
		return "(no message)"
	case len(msgAndArgs) == 1:
		return fmt.Sprint(msgAndArgs[0])
	}
	if format, ok := msgAndArgs[0].(string); ok {
		return fmt.Sprintf(format, msgAndArgs[1:]...)
	}
	return fmt.Sprint(msgAndArgs...)
}
