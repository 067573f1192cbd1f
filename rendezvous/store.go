// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rendezvous

import (
	"errors"
	"sync"
	"time"

	"github.com/bureau-foundation/tether/lib/clock"
	"github.com/bureau-foundation/tether/transport"
)

// Relay limits.
const (
	// MaxBodySize bounds request and response bodies.
	MaxBodySize = 64 << 10

	// MaxOffersPerTarget bounds the offer queue of one listener.
	MaxOffersPerTarget = 32

	// MaxTargets bounds how many listeners may have queued offers.
	MaxTargets = 4096

	// MaxAnswers bounds unclaimed answers.
	MaxAnswers = 4096
)

// ErrQueueFull is returned when a limit would be exceeded.
var ErrQueueFull = errors.New("rendezvous queue full")

type entry struct {
	message transport.SignalMessage
	expires time.Time
}

// Store holds signals until they are claimed or expire after
// transport.SignalTTL. It is safe for concurrent use.
type Store struct {
	clock clock.Clock

	mu      sync.Mutex
	offers  map[string][]entry // key: hex target
	answers map[string]entry   // key: offer ID
}

// NewStore returns an empty store. A nil clock means the real clock.
func NewStore(c clock.Clock) *Store {
	return &Store{
		clock:   clock.OrReal(c),
		offers:  make(map[string][]entry),
		answers: make(map[string]entry),
	}
}

// PutOffer queues offer under target.
func (s *Store) PutOffer(target string, offer transport.SignalMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	s.pruneLocked(now)

	queue, exists := s.offers[target]
	if !exists && len(s.offers) >= MaxTargets {
		return ErrQueueFull
	}
	if len(queue) >= MaxOffersPerTarget {
		return ErrQueueFull
	}
	s.offers[target] = append(queue, entry{message: offer, expires: now.Add(transport.SignalTTL)})
	return nil
}

// TakeOffers removes and returns the live offers queued for target.
func (s *Store) TakeOffers(target string) []transport.SignalMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(s.clock.Now())

	queue := s.offers[target]
	delete(s.offers, target)
	offers := make([]transport.SignalMessage, 0, len(queue))
	for _, queued := range queue {
		offers = append(offers, queued.message)
	}
	return offers
}

// PutAnswer stores answer under its offer ID, replacing any earlier one.
func (s *Store) PutAnswer(answer transport.SignalMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	s.pruneLocked(now)

	if _, exists := s.answers[answer.ID]; !exists && len(s.answers) >= MaxAnswers {
		return ErrQueueFull
	}
	s.answers[answer.ID] = entry{message: answer, expires: now.Add(transport.SignalTTL)}
	return nil
}

// TakeAnswer removes and returns the answer for offerID.
func (s *Store) TakeAnswer(offerID string) (transport.SignalMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(s.clock.Now())

	stored, ok := s.answers[offerID]
	if !ok {
		return transport.SignalMessage{}, false
	}
	delete(s.answers, offerID)
	return stored.message, true
}

// Len returns the number of queued offers and stored answers.
func (s *Store) Len() (offers, answers int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(s.clock.Now())
	for _, queue := range s.offers {
		offers += len(queue)
	}
	return offers, len(s.answers)
}

func (s *Store) pruneLocked(now time.Time) {
	for target, queue := range s.offers {
		live := queue[:0]
		for _, queued := range queue {
			if now.Before(queued.expires) {
				live = append(live, queued)
			}
		}
		if len(live) == 0 {
			delete(s.offers, target)
		} else {
			s.offers[target] = live
		}
	}
	for id, stored := range s.answers {
		if !now.Before(stored.expires) {
			delete(s.answers, id)
		}
	}
}
