// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"time"
)

// FakeClock is a manually driven Clock. It is safe for concurrent use.
type FakeClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// Fake returns a FakeClock frozen at initial.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{now: initial}
}

// Now reports the fake time, then moves it forward by the configured
// step (zero unless AutoStep was called).
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	current := c.now
	c.now = c.now.Add(c.step)
	return current
}

// AutoStep makes every Now call advance the clock by step, so a
// start/finish pair measures exactly step without a second goroutine.
func (c *FakeClock) AutoStep(step time.Duration) {
	if step < 0 {
		panic("clock: negative AutoStep")
	}
	c.mu.Lock()
	c.step = step
	c.mu.Unlock()
}

// Advance moves the clock forward. The real clock never runs
// backwards, so a negative d panics.
func (c *FakeClock) Advance(d time.Duration) {
	if d < 0 {
		panic("clock: Advance with negative duration")
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set jumps to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}
