// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
)

// closeLinger is how long a PeerConnection is kept after its channel
// closes, so the stream reset reaches the peer and it reads end-of-stream
// instead of a DTLS failure. The peer closing its side ends it early.
const closeLinger = 2 * time.Second

// peer is one PeerConnection and the single conn it carries. The conn
// owns the PeerConnection: closing either tears down both.
type peer struct {
	connection *webrtc.PeerConnection

	dead     chan struct{}
	deadOnce sync.Once

	mu   sync.Mutex
	conn *DataChannelConn
}

func (n *Node) newPeer(logger *slog.Logger) (*peer, error) {
	connection, err := n.newPeerConnection()
	if err != nil {
		return nil, err
	}
	p := &peer{connection: connection, dead: make(chan struct{})}

	// Disconnected fires after Timeouts.Idle without inbound traffic.
	connection.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		logger.Debug("peer connection state", "state", state.String())
		switch state {
		case webrtc.PeerConnectionStateDisconnected,
			webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed:
			p.markDead()
		}
	})
	return p, nil
}

func (p *peer) markDead() {
	p.deadOnce.Do(func() {
		close(p.dead)
		p.mu.Lock()
		conn := p.conn
		p.mu.Unlock()
		if conn != nil {
			go conn.Close()
		}
	})
}

// attach wraps a detached data channel as the peer's conn.
func (p *peer) attach(rwc io.ReadWriteCloser, localLabel, peerLabel string) *DataChannelConn {
	conn := NewDataChannelConn(rwc, localLabel, peerLabel, p.closeAfterLinger)
	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()
	select {
	case <-p.dead:
		go conn.Close()
	default:
	}
	return conn
}

func (p *peer) closeAfterLinger() {
	go func() {
		linger := time.NewTimer(closeLinger) //nolint:realclock transport teardown
		defer linger.Stop()
		select {
		case <-p.dead:
		case <-linger.C:
		}
		p.connection.Close()
	}()
}

func (p *peer) close() {
	p.connection.Close()
}
