// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package host is the embedding API: a process calls [Attach] once to
// expose its shell channel, and optionally its debug channel, under
// identities derived from one seed.
//
// Attach prints the seed to the operator as part of the startup notice.
// That notice is the only place the seed is ever written; anyone who
// reads it can attach.
package host
