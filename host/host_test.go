// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/tether/client"
	"github.com/bureau-foundation/tether/debugger"
	"github.com/bureau-foundation/tether/identity"
	"github.com/bureau-foundation/tether/lib/config"
	"github.com/bureau-foundation/tether/lib/testutil"
	"github.com/bureau-foundation/tether/shell"
	"github.com/bureau-foundation/tether/transport"
)

var zeroSeed = strings.Repeat("00", identity.SeedSize)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.HistoryDir = t.TempDir()
	return cfg
}

func attach(t *testing.T, options Options) *Host {
	t.Helper()
	if options.Config == nil {
		options.Config = testConfig(t)
	}
	if options.Logger == nil {
		options.Logger = testutil.Discard()
	}
	if options.Notices == nil {
		options.Notices = io.Discard
	}
	h, err := Attach(context.Background(), options)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func connect(t *testing.T, signaler transport.Signaler, remote, local identity.KeyPair, answerTimeout time.Duration) (net.Conn, error) {
	t.Helper()
	node, err := transport.NewNode(transport.Options{
		Signaler:      signaler,
		PollInterval:  20 * time.Millisecond,
		AnswerTimeout: answerTimeout,
		Logger:        testutil.Discard(),
	})
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	return node.Connect(ctx, remote.PublicKey, local)
}

func readUntil(t *testing.T, conn net.Conn, want string) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	defer conn.SetReadDeadline(time.Time{})
	var seen []byte
	buffer := make([]byte, 1024)
	for !bytes.Contains(seen, []byte(want)) {
		n, err := conn.Read(buffer)
		seen = append(seen, buffer[:n]...)
		if err != nil {
			t.Fatalf("reading for %q: %v (got %q)", want, err, seen)
		}
	}
}

func TestAttachWritesNotices(t *testing.T) {
	var notices bytes.Buffer
	cfg := testConfig(t)
	cfg.DebugAddress = "127.0.0.1:9339"
	attach(t, Options{
		Seed:     zeroSeed,
		Signaler: transport.NewMemorySignaler(),
		Config:   cfg,
		Devtools: true,
		Notices:  &notices,
	})

	want := "[tether] Attached. To connect run:\n" +
		"         tether " + zeroSeed + "\n" +
		"[tether] Devtools channel ready. To connect run:\n" +
		"         tether " + zeroSeed + " --devtools\n" +
		"         Then point go tool pprof at http://127.0.0.1:9339/debug/pprof/\n"
	if notices.String() != want {
		t.Errorf("notices =\n%s\nwant\n%s", notices.String(), want)
	}
}

func TestAttachWithoutDevtoolsOmitsDebugNotice(t *testing.T) {
	var notices bytes.Buffer
	attach(t, Options{
		Seed:          zeroSeed,
		Signaler:      transport.NewMemorySignaler(),
		Notices:       &notices,
		ClientCommand: "./tether",
	})
	if strings.Contains(notices.String(), "Devtools") {
		t.Errorf("devtools notice written without devtools: %q", notices.String())
	}
	if !strings.Contains(notices.String(), "./tether "+zeroSeed) {
		t.Errorf("notice does not use the client command: %q", notices.String())
	}
}

func TestAttachSeedSources(t *testing.T) {
	envSeed := strings.Repeat("11", identity.SeedSize)
	t.Setenv(EnvSeed, envSeed)
	if got := attach(t, Options{Signaler: transport.NewMemorySignaler()}).Seed(); got != envSeed {
		t.Errorf("seed from environment = %s, want %s", got, envSeed)
	}
	if got := attach(t, Options{Seed: zeroSeed, Signaler: transport.NewMemorySignaler()}).Seed(); got != zeroSeed {
		t.Errorf("explicit seed = %s, want %s", got, zeroSeed)
	}

	t.Setenv(EnvSeed, "")
	first := attach(t, Options{Signaler: transport.NewMemorySignaler()}).Seed()
	second := attach(t, Options{Signaler: transport.NewMemorySignaler()}).Seed()
	if raw, err := hex.DecodeString(first); err != nil || len(raw) != identity.SeedSize {
		t.Errorf("generated seed %q is not %d hex bytes", first, identity.SeedSize)
	}
	if first == second {
		t.Error("two generated seeds are equal")
	}
}

func TestAttachInvalidSeed(t *testing.T) {
	for _, seed := range []string{"abc", "zz" + zeroSeed[2:], zeroSeed + "00"} {
		_, err := Attach(context.Background(), Options{
			Seed:     seed,
			Signaler: transport.NewMemorySignaler(),
			Config:   testConfig(t),
			Logger:   testutil.Discard(),
			Notices:  io.Discard,
		})
		if !errors.Is(err, identity.ErrInvalidSeed) {
			t.Errorf("Attach(seed=%q) = %v, want ErrInvalidSeed", seed, err)
		}
	}
}

func TestShellChannelEndToEnd(t *testing.T) {
	signaler := transport.NewMemorySignaler()
	h := attach(t, Options{
		Seed:     zeroSeed,
		Signaler: signaler,
		Context:  shell.NewContext(map[string]any{"answer": "forty-two"}),
	})
	keyPairs, err := identity.DeriveBytes(make([]byte, identity.SeedSize))
	if err != nil {
		t.Fatal(err)
	}

	conn, err := connect(t, signaler, keyPairs.Shell, keyPairs.Shell, 30*time.Second)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	readUntil(t, conn, "> ")
	if _, err := conn.Write([]byte("answer\r")); err != nil {
		t.Fatalf("write: %v", err)
	}
	readUntil(t, conn, "forty-two")

	h.Close()
	h.Wait()
	drained := make(chan struct{})
	go func() {
		io.Copy(io.Discard, conn)
		close(drained)
	}()
	testutil.RequireClosed(t, drained, 30*time.Second, "shell stream still open after host Close")
}

func TestShellChannelLongInputLine(t *testing.T) {
	signaler := transport.NewMemorySignaler()
	bindings := shell.NewContext(nil)
	attach(t, Options{Seed: zeroSeed, Signaler: signaler, Context: bindings})
	keyPairs, err := identity.DeriveBytes(make([]byte, identity.SeedSize))
	if err != nil {
		t.Fatal(err)
	}

	conn, err := connect(t, signaler, keyPairs.Shell, keyPairs.Shell, 30*time.Second)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	readUntil(t, conn, "> ")
	long := strings.Repeat("x", 300)
	if _, err := conn.Write([]byte("set big " + long + "\r")); err != nil {
		t.Fatalf("write: %v", err)
	}
	readUntil(t, conn, "big = ")
	if value, _ := bindings.Get("big"); value != long {
		t.Fatalf("big = %q, want %d x characters", value, len(long))
	}
}

// scriptedTerminal is a client terminal fed from a pipe.
type scriptedTerminal struct {
	keys   *io.PipeReader
	mu     sync.Mutex
	output bytes.Buffer
}

func (s *scriptedTerminal) Read(buffer []byte) (int, error) { return s.keys.Read(buffer) }

func (s *scriptedTerminal) Write(buffer []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.output.Write(buffer)
}

func (s *scriptedTerminal) MakeRaw() (func() error, error) {
	return func() error { return nil }, nil
}

func TestShellExitEndsClientAttach(t *testing.T) {
	signaler := transport.NewMemorySignaler()
	attach(t, Options{Seed: zeroSeed, Signaler: signaler})
	keyPairs, err := identity.DeriveBytes(make([]byte, identity.SeedSize))
	if err != nil {
		t.Fatal(err)
	}

	conn, err := connect(t, signaler, keyPairs.Shell, keyPairs.Shell, 30*time.Second)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	keys, keyboard := io.Pipe()
	defer keyboard.Close()
	terminal := &scriptedTerminal{keys: keys}

	result := make(chan error, 1)
	go func() { result <- client.AttachShell(context.Background(), conn, terminal) }()
	go keyboard.Write([]byte("exit\r"))

	if err := testutil.RequireReceive(t, result, 30*time.Second, "AttachShell after exit"); err != nil {
		t.Fatalf("AttachShell after remote exit = %v, want nil", err)
	}
}

func TestShellChannelRejectsOtherSeed(t *testing.T) {
	signaler := transport.NewMemorySignaler()
	attach(t, Options{Seed: zeroSeed, Signaler: signaler})

	owner, err := identity.DeriveBytes(make([]byte, identity.SeedSize))
	if err != nil {
		t.Fatal(err)
	}
	other, err := identity.DeriveBytes(bytes.Repeat([]byte{0x42}, identity.SeedSize))
	if err != nil {
		t.Fatal(err)
	}
	_, err = connect(t, signaler, owner.Shell, other.Shell, 2*time.Second)
	if !errors.Is(err, transport.ErrNoAnswer) {
		t.Fatalf("Connect with another seed = %v, want ErrNoAnswer", err)
	}
}

func TestDebugChannelEndToEnd(t *testing.T) {
	listener := testutil.Loopback(t)
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				io.Copy(conn, conn)
			}()
		}
	}()

	signaler := transport.NewMemorySignaler()
	attach(t, Options{
		Seed:     zeroSeed,
		Signaler: signaler,
		Devtools: true,
		Debugger: debugger.External(listener.Addr().String()),
	})
	keyPairs, err := identity.DeriveBytes(make([]byte, identity.SeedSize))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := connect(t, signaler, keyPairs.Debug, keyPairs.Shell, 2*time.Second); !errors.Is(err, transport.ErrNoAnswer) {
		t.Fatalf("debug channel answered a shell-key offer: %v", err)
	}

	conn, err := connect(t, signaler, keyPairs.Debug, keyPairs.Debug, 30*time.Second)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}
	readUntil(t, conn, "ping")
}

func TestDebugChannelEndsWhenLocalListenerDrops(t *testing.T) {
	listener := testutil.Loopback(t)
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	signaler := transport.NewMemorySignaler()
	attach(t, Options{
		Seed:     zeroSeed,
		Signaler: signaler,
		Devtools: true,
		Debugger: debugger.External(listener.Addr().String()),
	})
	keyPairs, err := identity.DeriveBytes(make([]byte, identity.SeedSize))
	if err != nil {
		t.Fatal(err)
	}

	conn, err := connect(t, signaler, keyPairs.Debug, keyPairs.Debug, 30*time.Second)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}
	local := testutil.RequireReceive(t, accepted, 30*time.Second, "debug session never dialed the local listener")
	local.SetReadDeadline(time.Now().Add(30 * time.Second))
	received := make([]byte, 4)
	if _, err := io.ReadFull(local, received); err != nil || string(received) != "ping" {
		t.Fatalf("local listener read %q, %v; want ping", received, err)
	}

	local.Close()
	listener.Close()
	drained := make(chan struct{})
	go func() {
		io.Copy(io.Discard, conn)
		close(drained)
	}()
	testutil.RequireClosed(t, drained, 30*time.Second, "debug channel still open after the local listener went away")
}

func TestCloseIsIdempotent(t *testing.T) {
	h := attach(t, Options{Seed: zeroSeed, Signaler: transport.NewMemorySignaler()})
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	h.Wait()
	h.Close()
}

func TestCancelDetaches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h, err := Attach(ctx, Options{
		Seed:     zeroSeed,
		Signaler: transport.NewMemorySignaler(),
		Config:   testConfig(t),
		Logger:   testutil.Discard(),
		Notices:  io.Discard,
	})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	cancel()
	done := make(chan struct{})
	go func() {
		h.Wait()
		close(done)
	}()
	testutil.RequireClosed(t, done, 10*time.Second, "host still attached after context cancellation")
}
