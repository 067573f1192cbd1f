// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClock_NowAdvances(t *testing.T) {
	clock := Fake(epoch)
	clock.Advance(90 * time.Second)
	if got := clock.Now(); !got.Equal(epoch.Add(90 * time.Second)) {
		t.Errorf("Now() = %v", got)
	}
}

func TestFakeClock_AfterFiresOnlyAtDeadline(t *testing.T) {
	clock := Fake(epoch)
	fired := clock.After(10 * time.Second)

	clock.Advance(9 * time.Second)
	select {
	case <-fired:
		t.Fatal("fired before deadline")
	default:
	}

	clock.Advance(time.Second)
	select {
	case at := <-fired:
		if !at.Equal(epoch.Add(10 * time.Second)) {
			t.Errorf("fired at %v", at)
		}
	default:
		t.Fatal("did not fire at deadline")
	}
}

func TestFakeClock_AfterNonPositive(t *testing.T) {
	clock := Fake(epoch)
	select {
	case <-clock.After(0):
	default:
		t.Fatal("After(0) did not fire immediately")
	}
}

func TestFakeClock_TickerRepeatsUntilStopped(t *testing.T) {
	clock := Fake(epoch)
	ticker := clock.NewTicker(time.Second)

	for index := 0; index < 3; index++ {
		clock.Advance(time.Second)
		select {
		case <-ticker.C:
		default:
			t.Fatalf("tick %d missing", index)
		}
	}

	ticker.Stop()
	clock.Advance(time.Second)
	select {
	case <-ticker.C:
		t.Fatal("tick after Stop")
	default:
	}
}

func TestFakeClock_WaitForTimers(t *testing.T) {
	clock := Fake(epoch)
	done := make(chan struct{})
	go func() {
		<-clock.After(time.Minute)
		close(done)
	}()

	clock.WaitForTimers(1)
	clock.Advance(time.Minute)
	select {
	case <-done:
	case <-time.After(5 * time.Second): //nolint:realclock test hang prevention
		t.Fatal("waiter never released")
	}
}

func TestOrReal(t *testing.T) {
	if _, ok := OrReal(nil).(realClock); !ok {
		t.Error("OrReal(nil) is not the real clock")
	}
	fake := Fake(epoch)
	if OrReal(fake) != Clock(fake) {
		t.Error("OrReal(fake) did not return fake")
	}
}

func TestFakeClock_LargeAdvanceCoalescesTicks(t *testing.T) {
	clock := Fake(epoch)
	ticker := clock.NewTicker(time.Second)
	defer ticker.Stop()

	clock.Advance(5 * time.Second)
	<-ticker.C
	select {
	case <-ticker.C:
		t.Fatal("more than one tick buffered")
	default:
	}

	clock.Advance(500 * time.Millisecond)
	select {
	case <-ticker.C:
		t.Fatal("ticked before next period")
	default:
	}
	clock.Advance(500 * time.Millisecond)
	select {
	case <-ticker.C:
	default:
		t.Fatal("missing tick at next period")
	}
}
