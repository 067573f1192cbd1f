// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed encrypts small files at rest with filippo.io/age.
//
// Tether uses it for shell history, which lands in a shared temporary
// directory by default. Each file is sealed to an age scrypt recipient
// whose passphrase is derived from the channel's Ed25519 private key
// ([PassphraseFor]), so only a holder of the seed can read it back.
//
// Passphrases live in [secret.Buffer] memory and are zeroed on Close.
package sealed
