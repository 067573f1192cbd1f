// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"slices"
	"sync"
	"time"
)

// FakeClock is a Clock whose time moves only when a test calls Advance.
// Safe for concurrent use.
type FakeClock struct {
	mu       sync.Mutex
	now      time.Time
	schedule []*alarm
	changed  *sync.Cond
}

// alarm is one pending After channel or ticker.
type alarm struct {
	at     time.Time
	period time.Duration // zero for one-shot alarms
	fire   chan time.Time
	off    bool
}

// Fake returns a FakeClock reading start.
func Fake(start time.Time) *FakeClock {
	c := &FakeClock{now: start}
	c.changed = sync.NewCond(&c.mu)
	return c
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	fire := make(chan time.Time, 1)
	if d <= 0 {
		fire <- c.now
		return fire
	}
	c.scheduleLocked(&alarm{at: c.now.Add(d), fire: fire})
	return fire
}

func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	a := &alarm{at: c.now.Add(d), period: d, fire: make(chan time.Time, 1)}
	c.scheduleLocked(a)
	return &Ticker{C: a.fire, stopFunc: func() {
		c.mu.Lock()
		a.off = true
		c.mu.Unlock()
	}}
}

// Advance moves time forward by d. Alarms that come due fire in
// deadline order with the new time; a full channel drops the tick.
// Tickers are rescheduled to their next period after the new time.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	var due []*alarm
	kept := c.schedule[:0]
	for _, a := range c.schedule {
		if a.off {
			continue
		}
		if a.at.After(now) {
			kept = append(kept, a)
			continue
		}
		due = append(due, a)
	}
	c.schedule = kept
	slices.SortStableFunc(due, func(x, y *alarm) int { return x.at.Compare(y.at) })
	for _, a := range due {
		if a.period == 0 {
			continue
		}
		for !a.at.After(now) {
			a.at = a.at.Add(a.period)
		}
		c.schedule = append(c.schedule, a)
	}
	c.mu.Unlock()

	for _, a := range due {
		select {
		case a.fire <- now:
		default:
		}
	}
}

// WaitForTimers blocks until n or more alarms are pending. Tests call
// it before Advance so the code under test has registered its wait.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pendingLocked() < n {
		c.changed.Wait()
	}
}

func (c *FakeClock) scheduleLocked(a *alarm) {
	c.schedule = append(c.schedule, a)
	c.changed.Broadcast()
}

func (c *FakeClock) pendingLocked() int {
	n := 0
	for _, a := range c.schedule {
		if !a.off {
			n++
		}
	}
	return n
}
