// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"time"
)

// TB is the part of testing.TB these helpers use.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive returns the next value from ch. The test fails if ch
// is closed first or nothing arrives within timeout.
//
//	state := testutil.RequireReceive(t, states, 5*time.Second, "state after %s", step)
func RequireReceive[T any](t TB, ch <-chan T, timeout time.Duration, msgAndArgs ...any) T {
	t.Helper()
	expired := time.After(timeout) //nolint:realclock test hang prevention
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("%s: channel closed with no value", describe(msgAndArgs))
		}
		return v
	case <-expired:
		t.Fatalf("%s: nothing received within %v", describe(msgAndArgs), timeout)
	}
	var zero T
	return zero
}

// RequireClosed waits for ch to close or deliver, failing the test
// after timeout.
func RequireClosed(t TB, ch <-chan struct{}, timeout time.Duration, msgAndArgs ...any) {
	t.Helper()
	expired := time.After(timeout) //nolint:realclock test hang prevention
	select {
	case <-ch:
	case <-expired:
		t.Fatalf("%s: still open after %v", describe(msgAndArgs), timeout)
	}
}

// describe renders the optional trailing message: nothing, a value, or
// a format string with arguments.
func describe(msgAndArgs []any) string {
	switch {
	case len(msgAndArgs) == 0:
		return "wait"
	case len(msgAndArgs) == 1:
		return fmt.Sprint(msgAndArgs[0])
	}
	format, ok := msgAndArgs[0].(string)
	if !ok {
		return fmt.Sprint(msgAndArgs...)
	}
	return fmt.Sprintf(format, msgAndArgs[1:]...)
}
