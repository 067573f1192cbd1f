// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"time"
)

// SignalKind distinguishes offers from answers.
type SignalKind string

const (
	KindOffer  SignalKind = "offer"
	KindAnswer SignalKind = "answer"
)

// SignalMessage is one half of the offer/answer exchange.
type SignalMessage struct {
	// ID names the exchange. The offerer picks it; the answer repeats it.
	ID   string     `cbor:"id"`
	Kind SignalKind `cbor:"kind"`

	// From is the signer's public key; To is the addressee's.
	From []byte `cbor:"from"`
	To   []byte `cbor:"to"`

	// SDP is the complete session description with every ICE
	// candidate embedded.
	SDP string `cbor:"sdp"`

	// Timestamp is the signing time in Unix milliseconds.
	Timestamp int64 `cbor:"ts"`

	Signature []byte `cbor:"sig"`
}

// Time returns Timestamp as a time.Time.
func (m SignalMessage) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// Signaler moves signed offers and answers between peers. It does not
// need to be trusted: every message is verified by its consumer.
type Signaler interface {
	// PublishOffer queues offer for the key in offer.To.
	PublishOffer(ctx context.Context, offer SignalMessage) error

	// PollOffers removes and returns the offers queued for target.
	PollOffers(ctx context.Context, target ed25519.PublicKey) ([]SignalMessage, error)

	// PublishAnswer stores answer under answer.ID.
	PublishAnswer(ctx context.Context, answer SignalMessage) error

	// PollAnswer removes and returns the answer for offerID. ok is false
	// when none has arrived yet.
	PollAnswer(ctx context.Context, offerID string) (answer SignalMessage, ok bool, err error)
}

// TargetKey is the hex form of a public key used to address offers.
func TargetKey(publicKey ed25519.PublicKey) string {
	return hex.EncodeToString(publicKey)
}
