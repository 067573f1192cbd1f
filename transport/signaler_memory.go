// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"crypto/ed25519"
	"sync"
)

var _ Signaler = (*MemorySignaler)(nil)

// MemorySignaler is an in-process Signaler. Nodes sharing one can reach
// each other without a relay.
type MemorySignaler struct {
	mu      sync.Mutex
	offers  map[string][]SignalMessage // key: TargetKey(to)
	answers map[string]SignalMessage   // key: offer ID
}

// NewMemorySignaler creates an empty signaler.
func NewMemorySignaler() *MemorySignaler {
	return &MemorySignaler{
		offers:  make(map[string][]SignalMessage),
		answers: make(map[string]SignalMessage),
	}
}

func (s *MemorySignaler) PublishOffer(_ context.Context, offer SignalMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := TargetKey(offer.To)
	s.offers[key] = append(s.offers[key], offer)
	return nil
}

func (s *MemorySignaler) PollOffers(_ context.Context, target ed25519.PublicKey) ([]SignalMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := TargetKey(target)
	offers := s.offers[key]
	delete(s.offers, key)
	return offers, nil
}

func (s *MemorySignaler) PublishAnswer(_ context.Context, answer SignalMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[answer.ID] = answer
	return nil
}

func (s *MemorySignaler) PollAnswer(_ context.Context, offerID string) (SignalMessage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	answer, ok := s.answers[offerID]
	if ok {
		delete(s.answers, offerID)
	}
	return answer, ok, nil
}
