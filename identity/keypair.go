// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
)

// Channel is a logical role with its own key pair.
type Channel string

const (
	// ChannelShell carries an interactive command session.
	ChannelShell Channel = "shell"

	// ChannelDebug tunnels raw bytes to the local diagnostic listener.
	ChannelDebug Channel = "debug"
)

func (c Channel) String() string { return string(c) }

// KeyPair is an Ed25519 key pair naming one channel.
type KeyPair struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

// KeyPairFromSeed derives the Ed25519 key pair for a 32-byte seed.
func KeyPairFromSeed(seed []byte) (KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return KeyPair{}, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidSeed, len(seed), ed25519.SeedSize)
	}
	privateKey := ed25519.NewKeyFromSeed(seed)
	return KeyPair{
		PublicKey:  privateKey.Public().(ed25519.PublicKey),
		PrivateKey: privateKey,
	}, nil
}

// PublicHex returns the hex encoding of the public key. History files
// and log lines name a channel by this value.
func (k KeyPair) PublicHex() string {
	return hex.EncodeToString(k.PublicKey)
}

// Fingerprint is a short, non-secret label for the key pair: the first
// four bytes of BLAKE3(publicKey) in hex.
func (k KeyPair) Fingerprint() string {
	digest := blake3.Sum256(k.PublicKey)
	return hex.EncodeToString(digest[:4])
}

// Sign signs message with the private key.
func (k KeyPair) Sign(message []byte) []byte {
	return ed25519.Sign(k.PrivateKey, message)
}

// KeyPairs holds one key pair per channel.
type KeyPairs struct {
	Shell KeyPair
	Debug KeyPair
}

// For returns the key pair for channel.
func (k KeyPairs) For(channel Channel) (KeyPair, error) {
	switch channel {
	case ChannelShell:
		return k.Shell, nil
	case ChannelDebug:
		return k.Debug, nil
	default:
		return KeyPair{}, fmt.Errorf("unknown channel %q", channel)
	}
}

// Derive expands seed into the shell and debug key pairs. The shell key
// pair derives from the seed itself and the debug key pair from
// BLAKE2b-256(seed). The result depends on nothing but the seed bytes.
func Derive(seed *Seed) (KeyPairs, error) {
	if seed == nil {
		return KeyPairs{}, fmt.Errorf("%w: missing", ErrInvalidSeed)
	}
	return DeriveBytes(seed.Bytes())
}

// DeriveBytes is Derive for a raw seed.
func DeriveBytes(seed []byte) (KeyPairs, error) {
	if len(seed) != SeedSize {
		return KeyPairs{}, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidSeed, len(seed), SeedSize)
	}

	shell, err := KeyPairFromSeed(seed)
	if err != nil {
		return KeyPairs{}, err
	}

	debugSeed := blake2b.Sum256(seed)
	defer clear(debugSeed[:])
	debug, err := KeyPairFromSeed(debugSeed[:])
	if err != nil {
		return KeyPairs{}, err
	}

	return KeyPairs{Shell: shell, Debug: debug}, nil
}
