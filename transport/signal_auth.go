// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/bureau-foundation/tether/identity"
	"github.com/bureau-foundation/tether/lib/codec"
)

// signalDomain separates signal signatures from any other use of the
// channel key.
const signalDomain = "tether/signal/v1"

// SignalTTL is how long a signal stays acceptable after it was signed.
// Offers outside the window in either direction are dropped, which also
// bounds how long the listener must remember offer IDs to refuse
// replays.
const SignalTTL = 2 * time.Minute

var (
	// ErrUnauthorized classifies offers from keys the firewall refuses.
	// It is logged locally and never reported to the peer.
	ErrUnauthorized = errors.New("peer not authorized")

	// ErrBadSignature is returned for malformed or forged signals.
	ErrBadSignature = errors.New("invalid signal signature")

	// ErrStaleSignal is returned for signals outside SignalTTL.
	ErrStaleSignal = errors.New("stale signal")
)

// signedFields is the canonical content covered by a signal signature.
type signedFields struct {
	_         struct{} `cbor:",toarray"`
	Domain    string
	ID        string
	Kind      SignalKind
	From      []byte
	To        []byte
	SDP       string
	Timestamp int64
}

func signingPayload(message SignalMessage) ([]byte, error) {
	return codec.Marshal(signedFields{
		Domain:    signalDomain,
		ID:        message.ID,
		Kind:      message.Kind,
		From:      message.From,
		To:        message.To,
		SDP:       message.SDP,
		Timestamp: message.Timestamp,
	})
}

// SignSignal sets From and Signature on message using keyPair.
func SignSignal(message *SignalMessage, keyPair identity.KeyPair) error {
	message.From = append([]byte(nil), keyPair.PublicKey...)
	payload, err := signingPayload(*message)
	if err != nil {
		return fmt.Errorf("encoding signal for signing: %w", err)
	}
	message.Signature = keyPair.Sign(payload)
	return nil
}

// VerifySignal checks that message is well formed and signed by the key
// in its From field. It says nothing about whether that key is welcome.
func VerifySignal(message SignalMessage) error {
	if len(message.From) != ed25519.PublicKeySize || len(message.To) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: malformed key", ErrBadSignature)
	}
	if len(message.Signature) != ed25519.SignatureSize {
		return fmt.Errorf("%w: malformed signature", ErrBadSignature)
	}
	if message.Kind != KindOffer && message.Kind != KindAnswer {
		return fmt.Errorf("%w: unknown kind %q", ErrBadSignature, message.Kind)
	}
	payload, err := signingPayload(message)
	if err != nil {
		return fmt.Errorf("encoding signal for verification: %w", err)
	}
	if !ed25519.Verify(message.From, payload, message.Signature) {
		return ErrBadSignature
	}
	return nil
}

// CheckFresh reports ErrStaleSignal when message was signed more than
// SignalTTL before or after now.
func CheckFresh(message SignalMessage, now time.Time) error {
	age := now.Sub(message.Time())
	if age > SignalTTL || age < -SignalTTL {
		return fmt.Errorf("%w: signed %s ago", ErrStaleSignal, age.Round(time.Second))
	}
	return nil
}

// newOfferID returns a random 128-bit identifier.
func newOfferID() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("generating offer id: %w", err)
	}
	return hex.EncodeToString(raw[:]), nil
}
