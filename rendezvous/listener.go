// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rendezvous

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/bureau-foundation/tether/lib/logging"
)

// DefaultShutdownTimeout bounds how long Serve waits for in-flight
// requests after its context is cancelled.
const DefaultShutdownTimeout = 10 * time.Second

// Listener serves a relay on a TCP address.
type Listener struct {
	address         string
	server          *Server
	logger          *slog.Logger
	shutdownTimeout time.Duration

	ready chan struct{}
	// addr is set before ready is closed.
	addr net.Addr
}

// NewListener returns a Listener for server on address. Call Serve to
// start it.
func NewListener(address string, server *Server, logger *slog.Logger) *Listener {
	return &Listener{
		address:         address,
		server:          server,
		logger:          logging.OrDefault(logger),
		shutdownTimeout: DefaultShutdownTimeout,
		ready:           make(chan struct{}),
	}
}

// Ready is closed once the listener is bound.
func (l *Listener) Ready() <-chan struct{} {
	return l.ready
}

// Addr is the bound address. Valid once Ready is closed; with port 0
// it carries the assigned port.
func (l *Listener) Addr() net.Addr {
	return l.addr
}

// Serve accepts requests until ctx is cancelled, then shuts down
// gracefully.
func (l *Listener) Serve(ctx context.Context) error {
	var listenConfig net.ListenConfig
	listener, err := listenConfig.Listen(ctx, "tcp", l.address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", l.address, err)
	}
	l.addr = listener.Addr()
	close(l.ready)

	// Signals are small and polled often; a slow client gets no
	// slack beyond one body.
	httpServer := &http.Server{
		Handler:           l.server,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	l.logger.Info("rendezvous listening", "address", l.addr.String())

	serveDone := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveDone <- err
		}
		close(serveDone)
	}()

	select {
	case <-ctx.Done():
		l.logger.Info("rendezvous shutting down")
	case err := <-serveDone:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("rendezvous shutdown: %w", err)
	}
	offers, answers := l.server.Store().Len()
	l.logger.Info("rendezvous stopped", "pending_offers", offers, "pending_answers", answers)
	return nil
}
