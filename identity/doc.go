// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity turns one 32-byte seed into the key pairs that name
// tether's channels, and decides which remote keys a channel admits.
//
// A [Seed] is the only credential. [Derive] expands it into two Ed25519
// key pairs: the shell key pair uses the seed directly, the debug key
// pair uses BLAKE2b-256(seed). Derivation is pure, so a client holding
// the same seed reconstructs the same identities on any host, and
// neither key pair reveals the other without the seed.
//
// Channels are addressed by public key rather than by network address.
// A channel admits exactly one remote key: its own public key. A peer
// that can sign with that key has proven it derived the same key pair,
// which is to say that it holds the seed. [Authorize] is that predicate
// and [Gate] packages it as a transport firewall.
package identity
