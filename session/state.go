// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"expvar"
	"fmt"
	"log/slog"
	"net"
	"runtime/debug"
	"sync/atomic"

	"github.com/bureau-foundation/tether/identity"
	"github.com/bureau-foundation/tether/lib/netutil"
)

var (
	// ErrSessionIO marks a stream failure in the middle of a session.
	ErrSessionIO = errors.New("session I/O error")

	// ErrLocalBridgeUnavailable means the local diagnostic listener
	// never accepted a connection.
	ErrLocalBridgeUnavailable = errors.New("local diagnostic listener unavailable")
)

// State is a session's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// counters holds <channel>.opened, <channel>.closed and
// <channel>.failed.
var counters = expvar.NewMap("tether_sessions")

var sessionSequence atomic.Uint64

// tracker carries one session's state, logger and counters.
type tracker struct {
	channel  identity.Channel
	state    State
	logger   *slog.Logger
	observer func(State)
	failed   bool
}

func newTracker(channel identity.Channel, conn net.Conn, logger *slog.Logger, observer func(State)) *tracker {
	id := sessionSequence.Add(1)
	return &tracker{
		channel: channel,
		state:   StateIdle,
		logger: logger.With(
			"channel", channel.String(),
			"session", id,
			"peer", conn.RemoteAddr().String(),
		),
		observer: observer,
	}
}

func (t *tracker) transition(next State) {
	t.logger.Debug("session state", "from", t.state.String(), "to", next.String())
	t.state = next
	switch next {
	case StateActive:
		counters.Add(t.channel.String()+".opened", 1)
		t.logger.Info("session opened")
	case StateClosed:
		counters.Add(t.channel.String()+".closed", 1)
		t.logger.Info("session closed")
	}
	if t.observer != nil {
		t.observer(next)
	}
}

// fail records a session failure. Normal teardown errors are logged at
// Debug and do not count as failures.
func (t *tracker) fail(err error) {
	if err == nil {
		return
	}
	if netutil.IsExpectedCloseError(err) {
		t.logger.Debug("session stream ended", "error", err)
		return
	}
	if !t.failed {
		t.failed = true
		counters.Add(t.channel.String()+".failed", 1)
	}
	t.logger.Warn("session failed", "error", err)
}

// recoverPanic turns a panic in the session goroutine into a logged
// failure. Deferred directly by Handle.
func (t *tracker) recoverPanic(conn net.Conn) {
	recovered := recover()
	if recovered == nil {
		return
	}
	conn.Close()
	t.fail(fmt.Errorf("panic: %v", recovered))
	t.logger.Error("session panicked", "stack", string(debug.Stack()))
	if t.state != StateClosed {
		t.transition(StateClosed)
	}
}
