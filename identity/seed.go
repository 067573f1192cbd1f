// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/bureau-foundation/tether/lib/secret"
)

// SeedSize is the length of a seed in bytes.
const SeedSize = 32

// ErrInvalidSeed reports a seed that is missing, not hex, or not
// exactly SeedSize bytes.
var ErrInvalidSeed = errors.New("invalid seed")

// Seed is the root secret from which every channel identity derives.
// The bytes live in a [secret.Buffer] and are released by Close.
type Seed struct {
	buffer *secret.Buffer
}

// NewSeed moves raw into protected memory. raw is zeroed on success.
func NewSeed(raw []byte) (*Seed, error) {
	if len(raw) != SeedSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidSeed, len(raw), SeedSize)
	}
	buffer, err := secret.NewFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("protecting seed: %w", err)
	}
	return &Seed{buffer: buffer}, nil
}

// ParseSeed decodes the hex form printed by [Seed.Hex].
func ParseSeed(text string) (*Seed, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidSeed)
	}
	raw, err := hex.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	return NewSeed(raw)
}

// GenerateSeed returns a fresh random seed.
func GenerateSeed() (*Seed, error) {
	raw := make([]byte, SeedSize)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generating seed: %w", err)
	}
	return NewSeed(raw)
}

// Bytes returns the raw seed. The slice aliases protected memory and is
// invalid after Close.
func (s *Seed) Bytes() []byte {
	return s.buffer.Bytes()
}

// Hex returns the operator-facing encoding of the seed.
func (s *Seed) Hex() string {
	return hex.EncodeToString(s.buffer.Bytes())
}

// Equal reports whether two seeds hold the same bytes.
func (s *Seed) Equal(other *Seed) bool {
	return s.buffer.Equal(other.Bytes())
}

// Close zeroes and releases the seed.
func (s *Seed) Close() error {
	return s.buffer.Close()
}
