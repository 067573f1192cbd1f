// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"crypto/ed25519"
	"crypto/subtle"
)

// Authorize reports whether remote is the one key channel admits: the
// channel's own public key. Any other key, including a malformed one,
// is refused.
func Authorize(channel KeyPair, remote ed25519.PublicKey) bool {
	if len(remote) != ed25519.PublicKeySize || len(channel.PublicKey) != ed25519.PublicKeySize {
		return false
	}
	return subtle.ConstantTimeCompare(channel.PublicKey, remote) == 1
}

// Gate returns Authorize bound to channel, in the shape the transport
// evaluates before it answers a connection attempt.
func Gate(channel KeyPair) func(remote ed25519.PublicKey) bool {
	return func(remote ed25519.PublicKey) bool {
		return Authorize(channel, remote)
	}
}
