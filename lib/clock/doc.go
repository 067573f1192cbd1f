// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time so that time-dependent code can be tested
// without sleeping.
//
// Production code takes a [Clock] and is handed [Real]. Tests hand it a
// [FakeClock] from [Fake], which stands still until [FakeClock.Advance]
// moves it. [FakeClock.WaitForTimers] closes the race between a
// goroutine registering a timer and the test advancing past it.
//
// Tether uses it for signal freshness checks, rendezvous expiry, and the
// debug bridge's wait for the local diagnostic listener.
package clock
