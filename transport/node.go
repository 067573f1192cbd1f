// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/bureau-foundation/tether/lib/clock"
	"github.com/bureau-foundation/tether/lib/logging"
)

// channelLabel is the label of the single data channel each
// PeerConnection carries.
const channelLabel = "tether"

// iceGatherTimeout bounds candidate gathering before the SDP is
// published.
const iceGatherTimeout = 15 * time.Second

// Timeouts control liveness detection on established channels.
type Timeouts struct {
	// Idle is how long a PeerConnection may go without receiving
	// anything before it is declared dead.
	Idle time.Duration

	// KeepAlive is the interval between ICE keepalive probes. It must be
	// shorter than Idle so a live but quiet peer is never dropped.
	KeepAlive time.Duration
}

// DefaultTimeouts detect a dead peer within 30 seconds.
var DefaultTimeouts = Timeouts{Idle: 30 * time.Second, KeepAlive: 20 * time.Second}

// Options configure a Node.
type Options struct {
	// Signaler carries offers and answers. Required.
	Signaler Signaler

	ICE ICEConfig

	// Timeouts defaults to DefaultTimeouts.
	Timeouts Timeouts

	// PollInterval is how often signals are polled. Defaults to 250ms.
	PollInterval time.Duration

	// AnswerTimeout bounds Connect's wait for an answer. Defaults to 30s.
	AnswerTimeout time.Duration

	// ConnectTimeout bounds the wait for the data channel to open once
	// the offer and answer have been exchanged. Defaults to 30s.
	ConnectTimeout time.Duration

	Logger *slog.Logger
	Clock  clock.Clock
}

// Node creates listeners and outbound connections over one signaler.
type Node struct {
	signaler       Signaler
	iceConfig      ICEConfig
	timeouts       Timeouts
	pollInterval   time.Duration
	answerTimeout  time.Duration
	connectTimeout time.Duration
	logger         *slog.Logger
	clock          clock.Clock
}

// NewNode validates options and fills in defaults.
func NewNode(options Options) (*Node, error) {
	if options.Signaler == nil {
		return nil, errors.New("transport: Signaler is required")
	}
	timeouts := options.Timeouts
	if timeouts.Idle == 0 && timeouts.KeepAlive == 0 {
		timeouts = DefaultTimeouts
	}
	if timeouts.Idle <= 0 || timeouts.KeepAlive <= 0 || timeouts.KeepAlive >= timeouts.Idle {
		return nil, fmt.Errorf("transport: keepalive %s must be positive and shorter than idle timeout %s",
			timeouts.KeepAlive, timeouts.Idle)
	}
	node := &Node{
		signaler:       options.Signaler,
		iceConfig:      options.ICE,
		timeouts:       timeouts,
		pollInterval:   options.PollInterval,
		answerTimeout:  options.AnswerTimeout,
		connectTimeout: options.ConnectTimeout,
		logger:         logging.OrDefault(options.Logger),
		clock:          clock.OrReal(options.Clock),
	}
	if node.pollInterval <= 0 {
		node.pollInterval = 250 * time.Millisecond
	}
	if node.answerTimeout <= 0 {
		node.answerTimeout = 30 * time.Second
	}
	if node.connectTimeout <= 0 {
		node.connectTimeout = 30 * time.Second
	}
	return node, nil
}

// newPeerConnection creates a PeerConnection with detached data
// channels, loopback candidates, and the node's liveness timeouts.
func (n *Node) newPeerConnection() (*webrtc.PeerConnection, error) {
	settingEngine := webrtc.SettingEngine{}
	settingEngine.DetachDataChannels()
	settingEngine.SetIncludeLoopbackCandidate(true)
	settingEngine.SetICETimeouts(n.timeouts.Idle, n.timeouts.Idle, n.timeouts.KeepAlive)

	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))
	return api.NewPeerConnection(webrtc.Configuration{ICEServers: n.iceConfig.Servers})
}

// completeLocalDescription sets description as local and waits for ICE
// gathering, returning the SDP with every candidate embedded.
func (n *Node) completeLocalDescription(ctx context.Context, connection *webrtc.PeerConnection, description webrtc.SessionDescription) (string, error) {
	gatherComplete := webrtc.GatheringCompletePromise(connection)
	if err := connection.SetLocalDescription(description); err != nil {
		return "", fmt.Errorf("setting local description: %w", err)
	}
	select {
	case <-gatherComplete:
	case <-n.clock.After(iceGatherTimeout):
		return "", fmt.Errorf("ICE gathering timed out after %s", iceGatherTimeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return connection.LocalDescription().SDP, nil
}
