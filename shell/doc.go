// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package shell is the interactive evaluator a tether shell session
// runs against the host's [Context].
//
// The host exposes named values and [Func] bindings through a Context.
// Every shell session sees the same Context, so a value set in one
// session is visible to the others and to the host. The map itself is
// guarded by a mutex, but nothing orders updates between sessions: a
// read-modify-write in one session can be overwritten by another, and
// the last writer wins.
//
// [REPL] reads lines with golang.org/x/term, so remote users get line
// editing and history navigation. Values are printed as YAML, colored
// when the session asks for it. A panicking Func is recovered and
// reported in the session instead of taking down the host.
package shell
