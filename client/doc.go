// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package client is the connecting side of tether. [AttachShell] turns
// the local terminal into the remote shell's terminal, and [ServeDebug]
// exposes the remote debug channel as a local TCP port.
package client
