// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package session bridges an accepted channel connection to its local
// endpoint.
//
// [ShellBridge] runs the shell evaluator over the connection against
// the host's shared context and keeps a sealed per-key history file.
// [DebugBridge] activates the local diagnostic listener, waits for it
// to accept, and relays bytes unmodified in both directions.
//
// Both bridges contain every failure inside the session: Handle logs
// and returns, it never panics into the caller. Liveness of the remote
// end (idle timeout and keepalive) is enforced by the transport, which
// closes the connection when the peer goes silent; the bridges treat
// that like any other stream end.
//
// Session counts per channel are published through expvar as
// tether_sessions, which the debugger serves at /debug/vars.
package session
