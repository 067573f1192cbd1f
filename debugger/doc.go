// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package debugger runs the local diagnostic listener that the debug
// channel tunnels to.
//
// [Server] serves net/http/pprof and expvar on a loopback address. It
// starts on the first [Server.Activate] call; later calls return the
// same address. The debug channel never interprets the bytes it
// relays, so any local service that speaks TCP can stand in through
// the [Activator] interface, and [External] names one that some other
// component already runs.
package debugger
