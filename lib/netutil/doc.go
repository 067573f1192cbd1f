// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides connection and HTTP I/O helpers shared by the
// tether session bridges and the rendezvous relay.
//
// [Bridge] relays bytes between two connections and tears both down as
// soon as either direction ends. [IsExpectedCloseError] classifies the
// errors that teardown produces so callers do not log them as failures.
// [ReadBounded] and [ErrorBody] bound HTTP body reads.
package netutil
