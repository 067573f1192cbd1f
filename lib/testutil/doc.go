// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for tether packages.
//
// [RequireReceive] and [RequireClosed] wrap the select
// with a time.After fallback so a wedged goroutine fails the test
// instead of hanging it. They are the only place tests use real
// wall-clock timeouts.
//
// [Loopback] hands out a TCP listener on 127.0.0.1 that is closed
// with the test. [Discard] returns a logger for code under test that
// must not write to the test output.
//
// All helpers call t.Fatalf on failure.
package testutil
