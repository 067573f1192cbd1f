// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"io"
	"net"
	"sync"
	"time"
)

var _ net.Conn = (*DataChannelConn)(nil)

// maxMessageSize is the largest SCTP message a peer may send. The
// detached channel fails a Read whose buffer is smaller than the next
// message, so every message is first read whole into a buffer this big.
const maxMessageSize = 64 << 10

// writeChunkSize splits large writes into messages every WebRTC stack
// accepts.
const writeChunkSize = 16 << 10

// DataChannelConn presents one detached, ordered data channel as a
// net.Conn. Both tether channels carry byte streams: writes are split
// into messages and reads are served from the current message, so
// callers may use any buffer size.
//
// A data channel cannot abort a single blocked Read, so deadlines are
// coarse: when either deadline passes the stream is closed and the conn
// is finished.
type DataChannelConn struct {
	stream  io.ReadWriteCloser
	local   dataChannelAddr
	remote  dataChannelAddr
	release func()

	readMu  sync.Mutex
	message []byte
	unread  []byte

	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error

	mu      sync.Mutex
	reading deadline
	writing deadline
	expired bool
}

// deadline is one direction's pending expiry.
type deadline struct {
	timer *time.Timer
}

func (d *deadline) stop() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// NewDataChannelConn wraps stream. The labels are reported by LocalAddr
// and RemoteAddr. release, if non-nil, runs once after the stream is
// closed; a conn that owns its PeerConnection tears it down there. The
// stream is closed first so the peer reads end-of-stream before the
// connection goes away.
func NewDataChannelConn(stream io.ReadWriteCloser, localLabel, peerLabel string, release func()) *DataChannelConn {
	return &DataChannelConn{
		stream:  stream,
		local:   dataChannelAddr(localLabel),
		remote:  dataChannelAddr(peerLabel),
		release: release,
	}
}

func (c *DataChannelConn) Read(p []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	if len(p) == 0 {
		return 0, nil
	}
	if c.message == nil {
		c.message = make([]byte, maxMessageSize)
	}
	for len(c.unread) == 0 {
		n, err := c.stream.Read(c.message)
		if err != nil {
			return 0, err
		}
		c.unread = c.message[:n]
	}
	n := copy(p, c.unread)
	c.unread = c.unread[n:]
	return n, nil
}

func (c *DataChannelConn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	written := 0
	for written < len(p) {
		chunk := p[written:min(len(p), written+writeChunkSize)]
		n, err := c.stream.Write(chunk)
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// Close is idempotent and may be called from PeerConnection callbacks.
func (c *DataChannelConn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.reading.stop()
		c.writing.stop()
		c.mu.Unlock()

		c.closeErr = c.stream.Close()
		if c.release != nil {
			c.release()
		}
	})
	return c.closeErr
}

func (c *DataChannelConn) LocalAddr() net.Addr  { return c.local }
func (c *DataChannelConn) RemoteAddr() net.Addr { return c.remote }

// SetDeadline sets both deadlines. The zero time clears them.
func (c *DataChannelConn) SetDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armLocked(&c.reading, t)
	c.armLocked(&c.writing, t)
	return nil
}

func (c *DataChannelConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armLocked(&c.reading, t)
	return nil
}

func (c *DataChannelConn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armLocked(&c.writing, t)
	return nil
}

func (c *DataChannelConn) armLocked(d *deadline, t time.Time) {
	d.stop()
	if t.IsZero() || c.expired {
		return
	}
	wait := time.Until(t)
	if wait <= 0 {
		c.expireLocked()
		return
	}
	d.timer = time.AfterFunc(wait, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.expireLocked()
	})
}

// expireLocked closes the stream without running release. Close still
// has to be called to free the PeerConnection.
func (c *DataChannelConn) expireLocked() {
	if c.expired {
		return
	}
	c.expired = true
	c.stream.Close()
}

// dataChannelAddr is a label such as "host/shell" rather than a socket
// address.
type dataChannelAddr string

func (a dataChannelAddr) Network() string { return "webrtc" }
func (a dataChannelAddr) String() string  { return string(a) }
