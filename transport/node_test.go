// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/tether/identity"
	"github.com/bureau-foundation/tether/lib/testutil"
)

func newTestNode(t *testing.T, signaler Signaler, answerTimeout time.Duration) *Node {
	t.Helper()
	node, err := NewNode(Options{
		Signaler:      signaler,
		PollInterval:  20 * time.Millisecond,
		AnswerTimeout: answerTimeout,
		Logger:        testutil.Discard(),
	})
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	return node
}

func listen(t *testing.T, node *Node, keyPair identity.KeyPair, firewall Firewall) *Server {
	t.Helper()
	server, err := node.Listen(context.Background(), keyPair, firewall)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { server.Close() })
	return server
}

func acceptAsync(server *Server) <-chan net.Conn {
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := server.Accept()
		if err == nil {
			accepted <- conn
		}
	}()
	return accepted
}

func TestNewNode_Validation(t *testing.T) {
	if _, err := NewNode(Options{}); err == nil {
		t.Error("NewNode without a signaler succeeded")
	}
	_, err := NewNode(Options{
		Signaler: NewMemorySignaler(),
		Timeouts: Timeouts{Idle: 10 * time.Second, KeepAlive: 20 * time.Second},
	})
	if err == nil {
		t.Error("NewNode accepted keepalive longer than idle")
	}
}

// TestConnect_SameKeyExchangesBytes is the normal tether case: both ends
// derive the same key pair from one seed.
func TestConnect_SameKeyExchangesBytes(t *testing.T) {
	signaler := NewMemorySignaler()
	keyPair := testKeyPair(t, 7)
	server := listen(t, newTestNode(t, signaler, 30*time.Second), keyPair, nil)
	accepted := acceptAsync(server)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	client, err := newTestNode(t, signaler, 30*time.Second).Connect(ctx, keyPair.PublicKey, keyPair)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	hostConn := testutil.RequireReceive(t, accepted, 30*time.Second, "accepted channel")
	defer hostConn.Close()

	go client.Write([]byte("help\r"))
	buffer := make([]byte, 5)
	if _, err := io.ReadFull(hostConn, buffer); err != nil {
		t.Fatalf("host read: %v", err)
	}
	if string(buffer) != "help\r" {
		t.Errorf("host read %q", buffer)
	}

	go hostConn.Write([]byte("> "))
	buffer = make([]byte, 2)
	if _, err := io.ReadFull(client, buffer); err != nil {
		t.Fatalf("client read: %v", err)
	}

	if stats := server.Stats(); stats.Answered != 1 || stats.Rejected != 0 {
		t.Errorf("stats = %+v, want one answered", stats)
	}
}

// TestConnect_WrongSeedNeverAnswered checks the firewall runs before any
// reply: a peer holding another key gets no answer at all.
func TestConnect_WrongSeedNeverAnswered(t *testing.T) {
	signaler := NewMemorySignaler()
	hostKey := testKeyPair(t, 1)
	server := listen(t, newTestNode(t, signaler, 30*time.Second), hostKey, nil)

	intruder := testKeyPair(t, 2)
	_, err := newTestNode(t, signaler, 2*time.Second).Connect(context.Background(), hostKey.PublicKey, intruder)
	if !errors.Is(err, ErrNoAnswer) {
		t.Fatalf("Connect = %v, want ErrNoAnswer", err)
	}

	stats := server.Stats()
	if stats.Answered != 0 {
		t.Errorf("server answered %d offers from a foreign key", stats.Answered)
	}
	if stats.Rejected == 0 {
		t.Error("server did not record the rejection")
	}
}

func TestConnect_FirewallConsulted(t *testing.T) {
	signaler := NewMemorySignaler()
	keyPair := testKeyPair(t, 3)
	consulted := make(chan ed25519.PublicKey, 1)
	listen(t, newTestNode(t, signaler, 30*time.Second), keyPair, func(remote ed25519.PublicKey) bool {
		consulted <- remote
		return false
	})

	_, err := newTestNode(t, signaler, time.Second).Connect(context.Background(), keyPair.PublicKey, keyPair)
	if !errors.Is(err, ErrNoAnswer) {
		t.Fatalf("Connect = %v, want ErrNoAnswer", err)
	}
	remote := testutil.RequireReceive(t, consulted, time.Second, "firewall call")
	if !remote.Equal(keyPair.PublicKey) {
		t.Error("firewall saw the wrong key")
	}
}

func TestServer_DropsForgedAndReplayedOffers(t *testing.T) {
	signaler := NewMemorySignaler()
	keyPair := testKeyPair(t, 4)
	server := listen(t, newTestNode(t, signaler, 30*time.Second), keyPair, func(ed25519.PublicKey) bool {
		return true
	})

	// Claims to be keyPair but is signed by someone else.
	forged := signedOffer(t, testKeyPair(t, 5), keyPair, time.Now())
	forged.From = keyPair.PublicKey
	forged.ID = testutil.UniqueID("forged")

	stale := signedOffer(t, keyPair, keyPair, time.Now().Add(-SignalTTL-time.Minute))
	stale.ID = testutil.UniqueID("stale")
	if err := SignSignal(&stale, keyPair); err != nil {
		t.Fatalf("SignSignal: %v", err)
	}

	ctx := context.Background()
	signaler.PublishOffer(ctx, forged)
	signaler.PublishOffer(ctx, stale)

	deadline := time.Now().Add(5 * time.Second)
	for server.Stats().Rejected < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("stats = %+v, want two rejections", server.Stats())
		}
		time.Sleep(10 * time.Millisecond)
	}
	if server.Stats().Answered != 0 {
		t.Errorf("answered a forged or stale offer")
	}
	if _, ok, _ := signaler.PollAnswer(ctx, forged.ID); ok {
		t.Error("an answer was published for the forged offer")
	}
}

func TestConnect_SequentialSessions(t *testing.T) {
	signaler := NewMemorySignaler()
	keyPair := testKeyPair(t, 6)
	server := listen(t, newTestNode(t, signaler, 30*time.Second), keyPair, nil)
	clientNode := newTestNode(t, signaler, 30*time.Second)

	for index := 0; index < 2; index++ {
		accepted := acceptAsync(server)
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		client, err := clientNode.Connect(ctx, keyPair.PublicKey, keyPair)
		cancel()
		if err != nil {
			t.Fatalf("session %d: Connect: %v", index, err)
		}
		hostConn := testutil.RequireReceive(t, accepted, 30*time.Second, "session %d accepted", index)

		// Closing the client must end the host side.
		client.Close()
		readErr := make(chan error, 1)
		go func() {
			_, err := hostConn.Read(make([]byte, 1))
			readErr <- err
		}()
		if err := testutil.RequireReceive(t, readErr, 30*time.Second, "session %d host read", index); err == nil {
			t.Fatalf("session %d: host read succeeded after client close", index)
		}
		hostConn.Close()
	}
}

func TestServer_CloseUnblocksAccept(t *testing.T) {
	server := listen(t, newTestNode(t, NewMemorySignaler(), time.Second), testKeyPair(t, 8), nil)
	errs := make(chan error, 1)
	go func() {
		_, err := server.Accept()
		errs <- err
	}()
	server.Close()
	if err := testutil.RequireReceive(t, errs, 5*time.Second, "Accept after Close"); !errors.Is(err, net.ErrClosed) {
		t.Fatalf("Accept = %v, want net.ErrClosed", err)
	}
}

// interceptingSignaler answers the first poll for each offer with an
// answer signed by an outsider, then behaves like its MemorySignaler.
type interceptingSignaler struct {
	*MemorySignaler
	t        *testing.T
	outsider identity.KeyPair

	mu          sync.Mutex
	intercepted map[string]bool
}

func (s *interceptingSignaler) PollAnswer(ctx context.Context, offerID string) (SignalMessage, bool, error) {
	s.mu.Lock()
	first := !s.intercepted[offerID]
	s.intercepted[offerID] = true
	s.mu.Unlock()
	if !first {
		return s.MemorySignaler.PollAnswer(ctx, offerID)
	}
	answer := SignalMessage{
		ID:        offerID,
		Kind:      KindAnswer,
		SDP:       "v=0\r\n",
		Timestamp: time.Now().UnixMilli(),
	}
	if err := SignSignal(&answer, s.outsider); err != nil {
		s.t.Errorf("SignSignal: %v", err)
	}
	return answer, true, nil
}

func TestConnect_SkipsAnswerFromOutsider(t *testing.T) {
	signaler := &interceptingSignaler{
		MemorySignaler: NewMemorySignaler(),
		t:              t,
		outsider:       testKeyPair(t, 12),
		intercepted:    make(map[string]bool),
	}
	keyPair := testKeyPair(t, 11)
	server := listen(t, newTestNode(t, signaler, 30*time.Second), keyPair, nil)
	accepted := acceptAsync(server)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	client, err := newTestNode(t, signaler, 30*time.Second).Connect(ctx, keyPair.PublicKey, keyPair)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()
	hostConn := testutil.RequireReceive(t, accepted, 30*time.Second, "accepted channel")
	defer hostConn.Close()
}

// TestConnect_LargeWritesReadInSmallPieces sends more than one message
// worth of bytes and reads them back through buffers smaller than a
// message, as a line editor does.
func TestConnect_LargeWritesReadInSmallPieces(t *testing.T) {
	signaler := NewMemorySignaler()
	keyPair := testKeyPair(t, 9)
	server := listen(t, newTestNode(t, signaler, 30*time.Second), keyPair, nil)
	accepted := acceptAsync(server)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	client, err := newTestNode(t, signaler, 30*time.Second).Connect(ctx, keyPair.PublicKey, keyPair)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()
	hostConn := testutil.RequireReceive(t, accepted, 30*time.Second, "accepted channel")
	defer hostConn.Close()

	for _, size := range []int{1024, 100 << 10} {
		payload := make([]byte, size)
		for index := range payload {
			payload[index] = byte(index % 251)
		}
		go client.Write(payload)

		received := make([]byte, 0, size)
		buffer := make([]byte, 256)
		for len(received) < size {
			n, err := hostConn.Read(buffer)
			if err != nil {
				t.Fatalf("size %d: read after %d bytes: %v", size, len(received), err)
			}
			received = append(received, buffer[:n]...)
		}
		if !bytes.Equal(received, payload) {
			t.Fatalf("size %d: payload corrupted", size)
		}
	}
}

// TestConnect_CloseDeliversEndOfStream checks a graceful close reaches
// the other side as io.EOF rather than a transport failure.
func TestConnect_CloseDeliversEndOfStream(t *testing.T) {
	signaler := NewMemorySignaler()
	keyPair := testKeyPair(t, 10)
	server := listen(t, newTestNode(t, signaler, 30*time.Second), keyPair, nil)
	accepted := acceptAsync(server)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	client, err := newTestNode(t, signaler, 30*time.Second).Connect(ctx, keyPair.PublicKey, keyPair)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()
	hostConn := testutil.RequireReceive(t, accepted, 30*time.Second, "accepted channel")

	if _, err := hostConn.Write([]byte("bye\r\n")); err != nil {
		t.Fatalf("host write: %v", err)
	}
	hostConn.Close()

	received, err := io.ReadAll(client)
	if err != nil {
		t.Fatalf("client read ended with %v, want end-of-stream", err)
	}
	if string(received) != "bye\r\n" {
		t.Errorf("client read %q", received)
	}
}

func TestServer_Addr(t *testing.T) {
	keyPair := testKeyPair(t, 13)
	server := listen(t, newTestNode(t, NewMemorySignaler(), time.Second), keyPair, nil)
	address := server.Addr()
	if address.Network() != "webrtc" || address.String() != "tether/"+keyPair.Fingerprint() {
		t.Errorf("Addr = %s %s", address.Network(), address)
	}
}
