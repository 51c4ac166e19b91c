// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source with a
// deterministic fake for tests.
package clock

import "time"

// Clock abstracts time operations so that expiry logic can be tested
// deterministically. Production code injects Real(); tests inject
// Fake() and advance it by hand.
//
// Any function that would call time.Now, time.After, time.NewTicker,
// or time.Sleep takes a Clock parameter (or is a method on a struct
// with a Clock field) instead of calling the time package directly.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once
	// duration d has elapsed. If d <= 0 the channel receives
	// immediately.
	After(d time.Duration) <-chan time.Time

	// NewTicker returns a Ticker that delivers ticks on its C channel
	// at the given interval. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker

	// Sleep pauses the calling goroutine for at least duration d.
	Sleep(d time.Duration)
}

// Ticker wraps a periodic timer. Read ticks from C. Call Stop when the
// Ticker is no longer needed.
//
// C has capacity 1, matching time.Ticker: if the consumer falls
// behind, ticks are dropped rather than queued.
type Ticker struct {
	// C delivers ticks.
	C <-chan time.Time

	stopFunc func()
}

// Stop turns off the ticker. No more ticks are sent on C after Stop
// returns. Stop does not close C.
func (t *Ticker) Stop() { t.stopFunc() }
