// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/bureau-foundation/tether/debugger"
	"github.com/bureau-foundation/tether/identity"
	"github.com/bureau-foundation/tether/lib/clock"
	"github.com/bureau-foundation/tether/lib/logging"
	"github.com/bureau-foundation/tether/lib/netutil"
)

const (
	// DefaultRetryInterval is the pause between local dial attempts.
	DefaultRetryInterval = 100 * time.Millisecond

	// DefaultReadyTimeout is how long the local listener has to start
	// accepting after activation.
	DefaultReadyTimeout = 10 * time.Second
)

// DebugBridge tunnels each accepted debug-channel connection to the
// local diagnostic listener.
type DebugBridge struct {
	// Activator starts the listener and names its address. Required.
	Activator debugger.Activator

	RetryInterval time.Duration
	ReadyTimeout  time.Duration

	// Dial opens the local connection. Defaults to a TCP dial.
	Dial func(ctx context.Context, address string) (net.Conn, error)

	Clock  clock.Clock
	Logger *slog.Logger

	// OnStateChange, if set, observes every transition of every
	// session.
	OnStateChange func(State)
}

// Handle relays conn to the local listener until either side closes or
// ctx is cancelled. Tunnel errors end the session and are logged, never
// returned.
func (b *DebugBridge) Handle(ctx context.Context, conn net.Conn) {
	session := newTracker(identity.ChannelDebug, conn, logging.OrDefault(b.Logger), b.OnStateChange)
	defer session.recoverPanic(conn)

	session.transition(StateConnecting)
	local, err := b.connectLocal(ctx, session.logger)
	if err != nil {
		conn.Close()
		session.fail(err)
		session.transition(StateClosed)
		return
	}

	session.transition(StateActive)
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
		local.Close()
	})
	defer stop()

	result := netutil.Bridge(conn, local)
	ended := "remote"
	if result.Ended == netutil.SideB {
		ended = "local"
	}
	session.logger.Debug("debug tunnel ended",
		"ended_by", ended,
		"remote_to_local", result.AToB,
		"local_to_remote", result.BToA,
	)
	if result.Err != nil {
		session.logger.Debug("debug tunnel error", "error", result.Err)
	}
	session.transition(StateClosed)
}

// connectLocal activates the listener, then dials until it accepts or
// the ready timeout passes.
func (b *DebugBridge) connectLocal(ctx context.Context, logger *slog.Logger) (net.Conn, error) {
	if b.Activator == nil {
		return nil, fmt.Errorf("%w: no activator configured", ErrLocalBridgeUnavailable)
	}
	address, err := b.Activator.Activate(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLocalBridgeUnavailable, err)
	}

	retryInterval := b.RetryInterval
	if retryInterval <= 0 {
		retryInterval = DefaultRetryInterval
	}
	readyTimeout := b.ReadyTimeout
	if readyTimeout <= 0 {
		readyTimeout = DefaultReadyTimeout
	}
	dial := b.Dial
	if dial == nil {
		var dialer net.Dialer
		dial = func(ctx context.Context, address string) (net.Conn, error) {
			return dialer.DialContext(ctx, "tcp", address)
		}
	}
	clk := clock.OrReal(b.Clock)
	deadline := clk.Now().Add(readyTimeout)

	for attempt := 1; ; attempt++ {
		local, err := dial(ctx, address)
		if err == nil {
			logger.Debug("connected to local debugger", "address", address, "attempts", attempt)
			return local, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrLocalBridgeUnavailable, ctx.Err())
		}
		if !clk.Now().Before(deadline) {
			return nil, fmt.Errorf("%w: %s not accepting after %s: %w",
				ErrLocalBridgeUnavailable, address, readyTimeout, err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrLocalBridgeUnavailable, ctx.Err())
		case <-clk.After(retryInterval):
		}
	}
}
