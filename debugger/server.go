// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package debugger

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"sync"
	"time"

	"github.com/bureau-foundation/tether/lib/logging"
)

// DefaultAddress is where the listener binds unless configured.
const DefaultAddress = "127.0.0.1:9229"

// Activator starts a local diagnostic service if it is not already
// running and returns the TCP address to dial.
type Activator interface {
	Activate(ctx context.Context) (string, error)
}

// External is an Activator for a listener owned elsewhere. Activate
// returns the address without starting anything.
type External string

func (e External) Activate(context.Context) (string, error) {
	if e == "" {
		return "", errors.New("debugger: external address is empty")
	}
	return string(e), nil
}

// Server is the built-in diagnostic listener.
type Server struct {
	address string
	logger  *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	http     *http.Server
	served   chan struct{}
}

// New returns an inactive Server for address. An empty address means
// DefaultAddress.
func New(address string, logger *slog.Logger) *Server {
	if address == "" {
		address = DefaultAddress
	}
	return &Server{address: address, logger: logging.OrDefault(logger)}
}

// Activate binds and starts serving on the first call. It is safe for
// concurrent use; every caller gets the bound address.
func (s *Server) Activate(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String(), nil
	}
	if err := RequireLoopback(s.address); err != nil {
		return "", err
	}

	var listenConfig net.ListenConfig
	listener, err := listenConfig.Listen(ctx, "tcp", s.address)
	if err != nil {
		return "", fmt.Errorf("debugger: listening on %s: %w", s.address, err)
	}
	server := &http.Server{
		Handler:           Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	served := make(chan struct{})
	s.listener, s.http, s.served = listener, server, served

	// Close may clear the fields before this goroutine runs.
	go func() {
		defer close(served)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("debugger stopped", "address", listener.Addr().String(), "error", err)
		}
	}()
	s.logger.Info("debugger listening", "address", listener.Addr().String())
	return listener.Addr().String(), nil
}

// Addr returns the bound address, or "" before activation.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close stops the listener. Profiles in flight are cut off. Activate
// after Close starts a fresh listener.
func (s *Server) Close() error {
	s.mu.Lock()
	server, served := s.http, s.served
	s.listener, s.http, s.served = nil, nil, nil
	s.mu.Unlock()
	if server == nil {
		return nil
	}
	err := server.Close()
	<-served
	return err
}

// Handler serves the pprof index under /debug/pprof/ and expvar at
// /debug/vars.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/debug/vars", expvar.Handler())
	return mux
}

// RequireLoopback rejects addresses that are not bound to a loopback
// interface.
func RequireLoopback(address string) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("debugger: address %q: %w", address, err)
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("debugger: address %q is not loopback", address)
	}
	return nil
}
