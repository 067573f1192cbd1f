// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/bureau-foundation/tether/identity"
)

// ErrNoAnswer is returned by Connect when no valid answer arrives in
// time. A listener that refused the offer looks exactly like one that
// is not running.
var ErrNoAnswer = errors.New("no answer from peer")

// Connect opens a channel to the listener holding remote, signing the
// offer with local. The returned conn owns its PeerConnection.
func (n *Node) Connect(ctx context.Context, remote ed25519.PublicKey, local identity.KeyPair) (net.Conn, error) {
	offerID, err := newOfferID()
	if err != nil {
		return nil, err
	}
	logger := n.logger.With("offer", offerID[:8])

	p, err := n.newPeer(logger)
	if err != nil {
		return nil, fmt.Errorf("creating peer connection: %w", err)
	}
	connected := false
	defer func() {
		if !connected {
			p.close()
		}
	}()

	ordered := true
	channel, err := p.connection.CreateDataChannel(channelLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return nil, fmt.Errorf("creating data channel: %w", err)
	}
	opened := make(chan struct{})
	var openOnce sync.Once
	channel.OnOpen(func() { openOnce.Do(func() { close(opened) }) })

	description, err := p.connection.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("creating SDP offer: %w", err)
	}
	sdp, err := n.completeLocalDescription(ctx, p.connection, description)
	if err != nil {
		return nil, err
	}

	offer := SignalMessage{
		ID:        offerID,
		Kind:      KindOffer,
		To:        append([]byte(nil), remote...),
		SDP:       sdp,
		Timestamp: n.clock.Now().UnixMilli(),
	}
	if err := SignSignal(&offer, local); err != nil {
		return nil, err
	}
	if err := n.signaler.PublishOffer(ctx, offer); err != nil {
		return nil, fmt.Errorf("publishing offer: %w", err)
	}
	logger.Debug("offer published")

	answerSDP, err := n.waitForAnswer(ctx, offerID, remote, local.PublicKey)
	if err != nil {
		return nil, err
	}
	if err := p.connection.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answerSDP,
	}); err != nil {
		return nil, fmt.Errorf("setting remote description: %w", err)
	}

	select {
	case <-opened:
	case <-p.dead:
		return nil, errors.New("peer connection failed before the channel opened")
	case <-n.clock.After(n.connectTimeout):
		return nil, fmt.Errorf("channel did not open within %s", n.connectTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	raw, err := channel.Detach()
	if err != nil {
		return nil, fmt.Errorf("detaching data channel: %w", err)
	}
	connected = true
	logger.Debug("channel open")
	return p.attach(raw, "client/"+offerID[:8], "listener/"+TargetKey(remote)[:8]), nil
}

// waitForAnswer polls for the answer to offerID and returns the SDP of
// the first one that verifies as signed by remote.
func (n *Node) waitForAnswer(ctx context.Context, offerID string, remote, local ed25519.PublicKey) (string, error) {
	deadline := n.clock.After(n.answerTimeout)
	ticker := n.clock.NewTicker(n.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			return "", fmt.Errorf("%w within %s", ErrNoAnswer, n.answerTimeout)
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
			answer, ok, err := n.signaler.PollAnswer(ctx, offerID)
			if err != nil {
				n.logger.Warn("polling for answer failed", "error", err)
				continue
			}
			if !ok {
				continue
			}
			// Anyone can post an answer under a known offer ID, so a bad
			// one is skipped rather than failing the connection.
			if err := n.checkAnswer(answer, offerID, remote, local); err != nil {
				n.logger.Debug("ignoring answer", "offer", shortID(offerID), "reason", err)
				continue
			}
			return answer.SDP, nil
		}
	}
}

func (n *Node) checkAnswer(answer SignalMessage, offerID string, remote, local ed25519.PublicKey) error {
	if answer.Kind != KindAnswer || answer.ID != offerID {
		return fmt.Errorf("%w: answer does not match offer", ErrBadSignature)
	}
	if !bytes.Equal(answer.From, remote) || !bytes.Equal(answer.To, local) {
		return fmt.Errorf("%w: answer from unexpected key", ErrBadSignature)
	}
	if err := VerifySignal(answer); err != nil {
		return err
	}
	return CheckFresh(answer, n.clock.Now())
}
