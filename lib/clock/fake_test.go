// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"

	"github.com/latchkey-dev/latchkey/lib/testutil"
)

var testEpoch = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

func TestFakeNowAdvances(t *testing.T) {
	fake := Fake(testEpoch)
	if got := fake.Now(); !got.Equal(testEpoch) {
		t.Fatalf("Now() = %v, want %v", got, testEpoch)
	}
	fake.Advance(90 * time.Second)
	want := testEpoch.Add(90 * time.Second)
	if got := fake.Now(); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestFakeAfterFiresOnDeadline(t *testing.T) {
	fake := Fake(testEpoch)
	ch := fake.After(2 * time.Minute)

	fake.Advance(time.Minute)
	select {
	case fired := <-ch:
		t.Fatalf("After fired early at %v", fired)
	default:
	}

	fake.Advance(time.Minute)
	select {
	case fired := <-ch:
		want := testEpoch.Add(2 * time.Minute)
		if !fired.Equal(want) {
			t.Fatalf("After delivered %v, want %v", fired, want)
		}
	default:
		t.Fatal("After did not fire at its deadline")
	}
}

func TestFakeAfterNonPositive(t *testing.T) {
	fake := Fake(testEpoch)
	select {
	case <-fake.After(0):
	default:
		t.Fatal("After(0) should deliver immediately")
	}
}

func TestFakeTicker(t *testing.T) {
	fake := Fake(testEpoch)
	ticker := fake.NewTicker(time.Minute)
	defer ticker.Stop()

	fake.Advance(time.Minute)
	select {
	case <-ticker.C:
	default:
		t.Fatal("ticker did not fire after one interval")
	}

	// A 3-minute jump with a capacity-1 channel delivers exactly one
	// pending tick, matching time.Ticker's drop behavior.
	fake.Advance(3 * time.Minute)
	ticks := 0
	for {
		select {
		case <-ticker.C:
			ticks++
			continue
		default:
		}
		break
	}
	if ticks != 1 {
		t.Fatalf("got %d buffered ticks, want 1", ticks)
	}

	ticker.Stop()
	fake.Advance(time.Minute)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestFakeSleepUnblocks(t *testing.T) {
	fake := Fake(testEpoch)
	done := make(chan struct{})
	go func() {
		fake.Sleep(30 * time.Second)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for fake.PendingCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("sleeper never registered")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	fake.Advance(30 * time.Second)
	testutil.RequireClosed(t, done, 5*time.Second, "Sleep returning after Advance")
}

func TestFakePendingCount(t *testing.T) {
	fake := Fake(testEpoch)
	if got := fake.PendingCount(); got != 0 {
		t.Fatalf("PendingCount = %d, want 0", got)
	}
	fake.After(time.Hour)
	fake.After(time.Hour)
	if got := fake.PendingCount(); got != 2 {
		t.Fatalf("PendingCount = %d, want 2", got)
	}
	fake.Advance(time.Hour)
	if got := fake.PendingCount(); got != 0 {
		t.Fatalf("PendingCount after fire = %d, want 0", got)
	}
}
