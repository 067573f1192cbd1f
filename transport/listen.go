// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/bureau-foundation/tether/identity"
)

// Firewall decides whether an offer signed by remote is answered.
type Firewall func(remote ed25519.PublicKey) bool

var _ net.Listener = (*Server)(nil)

// Server answers offers addressed to one key pair and hands out the
// resulting channels. It implements net.Listener.
type Server struct {
	node     *Node
	keyPair  identity.KeyPair
	firewall Firewall
	logger   *slog.Logger

	cancel    context.CancelFunc
	accepted  chan net.Conn
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu      sync.Mutex
	pending map[*peer]struct{}
	// seen maps accepted offer IDs to their signing time. Entries older
	// than SignalTTL are pruned; CheckFresh refuses those offers anyway.
	seen map[string]time.Time

	answered atomic.Uint64
	rejected atomic.Uint64
}

// ServerStats counts offers handled by a Server.
type ServerStats struct {
	Answered uint64
	Rejected uint64
}

// Listen starts answering offers addressed to keyPair. A nil firewall
// admits only keyPair's own public key.
func (n *Node) Listen(ctx context.Context, keyPair identity.KeyPair, firewall Firewall) (*Server, error) {
	if len(keyPair.PrivateKey) != ed25519.PrivateKeySize {
		return nil, errors.New("transport: listener key pair has no private key")
	}
	if firewall == nil {
		firewall = identity.Gate(keyPair)
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Server{
		node:     n,
		keyPair:  keyPair,
		firewall: firewall,
		logger:   n.logger.With("listener", keyPair.Fingerprint()),
		cancel:   cancel,
		accepted: make(chan net.Conn, 16),
		closed:   make(chan struct{}),
		pending:  make(map[*peer]struct{}),
		seen:     make(map[string]time.Time),
	}
	s.wg.Add(1)
	go s.pollOffers(ctx)
	return s, nil
}

// Accept returns the next channel opened by an admitted peer.
func (s *Server) Accept() (net.Conn, error) {
	select {
	case conn := <-s.accepted:
		return conn, nil
	case <-s.closed:
		return nil, net.ErrClosed
	}
}

// Serve calls handler in a new goroutine for each accepted channel
// until ctx is cancelled or the server is closed. It returns nil on
// shutdown. The handler owns the conn.
func (s *Server) Serve(ctx context.Context, handler func(context.Context, net.Conn)) error {
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	for {
		conn, err := s.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go handler(ctx, conn)
	}
}

// Addr names the listener by its key fingerprint.
func (s *Server) Addr() net.Addr {
	return dataChannelAddr("tether/" + s.keyPair.Fingerprint())
}

// Stats returns the offer counters.
func (s *Server) Stats() ServerStats {
	return ServerStats{Answered: s.answered.Load(), Rejected: s.rejected.Load()}
}

// Close stops polling and tears down peers whose channel has not yet
// been accepted. Channels already returned by Accept stay open.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		close(s.closed)
		s.mu.Lock()
		for p := range s.pending {
			p.close()
		}
		s.mu.Unlock()
	})
	s.wg.Wait()
	return nil
}

func (s *Server) pollOffers(ctx context.Context) {
	defer s.wg.Done()
	ticker := s.node.clock.NewTicker(s.node.pollInterval)
	defer ticker.Stop()

	for {
		s.processOffers(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) processOffers(ctx context.Context) {
	offers, err := s.node.signaler.PollOffers(ctx, s.keyPair.PublicKey)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("polling for offers failed", "error", err)
		}
		return
	}
	for _, offer := range offers {
		if err := s.admit(offer); err != nil {
			s.rejected.Add(1)
			s.logger.Debug("offer dropped", "offer", shortID(offer.ID), "reason", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.answer(ctx, offer); err != nil && ctx.Err() == nil {
				s.logger.Warn("answering offer failed", "offer", shortID(offer.ID), "error", err)
			}
		}()
	}
}

// admit runs every check an offer must pass before it is answered.
func (s *Server) admit(offer SignalMessage) error {
	if offer.Kind != KindOffer {
		return fmt.Errorf("%w: not an offer", ErrBadSignature)
	}
	if !bytes.Equal(offer.To, s.keyPair.PublicKey) {
		return fmt.Errorf("%w: addressed to another key", ErrBadSignature)
	}
	now := s.node.clock.Now()
	if err := CheckFresh(offer, now); err != nil {
		return err
	}

	s.mu.Lock()
	for id, signed := range s.seen {
		if now.Sub(signed) > SignalTTL {
			delete(s.seen, id)
		}
	}
	_, replayed := s.seen[offer.ID]
	s.mu.Unlock()
	if replayed {
		return fmt.Errorf("%w: replayed offer", ErrStaleSignal)
	}

	if err := VerifySignal(offer); err != nil {
		return err
	}

	// Recorded only once the signature holds, so forged offers cannot
	// reserve IDs.
	s.mu.Lock()
	s.seen[offer.ID] = offer.Time()
	s.mu.Unlock()

	if !s.firewall(ed25519.PublicKey(offer.From)) {
		return ErrUnauthorized
	}
	return nil
}

// answer creates the answering PeerConnection and publishes its signed
// SDP. The channel is delivered to Accept once the peer opens it.
func (s *Server) answer(ctx context.Context, offer SignalMessage) error {
	logger := s.logger.With("offer", shortID(offer.ID))
	p, err := s.node.newPeer(logger)
	if err != nil {
		return fmt.Errorf("creating peer connection: %w", err)
	}
	if !s.track(p) {
		p.close()
		return net.ErrClosed
	}

	delivered := make(chan struct{})
	var claimOnce sync.Once
	p.connection.OnDataChannel(func(channel *webrtc.DataChannel) {
		channel.OnOpen(func() {
			claimed := false
			claimOnce.Do(func() { claimed = true })
			if !claimed || channel.Label() != channelLabel {
				channel.Close()
				return
			}
			raw, err := channel.Detach()
			if err != nil {
				logger.Warn("detaching data channel failed", "error", err)
				p.close()
				return
			}
			conn := p.attach(raw, s.Addr().String(), "offer/"+shortID(offer.ID))
			s.untrack(p)
			close(delivered)
			select {
			case s.accepted <- conn:
			case <-s.closed:
				conn.Close()
			}
		})
	})

	if err := p.connection.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offer.SDP,
	}); err != nil {
		s.drop(p)
		return fmt.Errorf("setting remote description: %w", err)
	}
	description, err := p.connection.CreateAnswer(nil)
	if err != nil {
		s.drop(p)
		return fmt.Errorf("creating SDP answer: %w", err)
	}
	sdp, err := s.node.completeLocalDescription(ctx, p.connection, description)
	if err != nil {
		s.drop(p)
		return err
	}

	reply := SignalMessage{
		ID:        offer.ID,
		Kind:      KindAnswer,
		To:        offer.From,
		SDP:       sdp,
		Timestamp: s.node.clock.Now().UnixMilli(),
	}
	if err := SignSignal(&reply, s.keyPair); err != nil {
		s.drop(p)
		return err
	}
	if err := s.node.signaler.PublishAnswer(ctx, reply); err != nil {
		s.drop(p)
		return fmt.Errorf("publishing answer: %w", err)
	}
	s.answered.Add(1)
	logger.Debug("offer answered")

	select {
	case <-delivered:
	case <-p.dead:
		s.drop(p)
	case <-s.node.clock.After(s.node.connectTimeout):
		logger.Debug("peer never opened a channel")
		s.drop(p)
	case <-ctx.Done():
		s.drop(p)
	}
	return nil
}

// track registers a pending peer; false once the server is closed.
func (s *Server) track(p *peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.closed:
		return false
	default:
	}
	s.pending[p] = struct{}{}
	return true
}

func (s *Server) untrack(p *peer) {
	s.mu.Lock()
	delete(s.pending, p)
	s.mu.Unlock()
}

func (s *Server) drop(p *peer) {
	s.untrack(p)
	p.close()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
