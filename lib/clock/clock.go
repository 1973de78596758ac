// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Code that stamps records or measures call durations takes a Clock
// instead of calling time.Now directly. Production wiring passes
// Real(); tests pass Fake() and move time explicitly with Advance, so
// logged durations and stored timestamps are deterministic.
package clock

import "time"

// Clock abstracts the current time.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// Since returns the time elapsed since start according to c.
func Since(c Clock, start time.Time) time.Duration {
	return c.Now().Sub(start)
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
