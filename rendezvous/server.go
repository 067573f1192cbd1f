// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rendezvous

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bureau-foundation/tether/lib/clock"
	"github.com/bureau-foundation/tether/lib/codec"
	"github.com/bureau-foundation/tether/lib/logging"
	"github.com/bureau-foundation/tether/lib/netutil"
	"github.com/bureau-foundation/tether/transport"
)

// ServerOptions configure a relay Server.
type ServerOptions struct {
	Logger *slog.Logger
	Clock  clock.Clock
}

// Server is the relay's HTTP handler.
type Server struct {
	store  *Store
	clock  clock.Clock
	logger *slog.Logger
	mux    *http.ServeMux
}

// NewServer creates a relay with an empty store.
func NewServer(options ServerOptions) *Server {
	s := &Server{
		store:  NewStore(options.Clock),
		clock:  clock.OrReal(options.Clock),
		logger: logging.OrDefault(options.Logger),
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /v1/offers/{target}", s.handlePostOffer)
	s.mux.HandleFunc("GET /v1/offers/{target}", s.handleGetOffers)
	s.mux.HandleFunc("POST /v1/answers/{id}", s.handlePostAnswer)
	s.mux.HandleFunc("GET /v1/answers/{id}", s.handleGetAnswer)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok\n"))
	})
	return s
}

// Store exposes the signal store.
func (s *Server) Store() *Store { return s.store }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handlePostOffer(w http.ResponseWriter, r *http.Request) {
	target := strings.ToLower(r.PathValue("target"))
	if !validTarget(target) {
		http.Error(w, "target must be a hex Ed25519 public key", http.StatusBadRequest)
		return
	}
	offer, ok := s.readSignal(w, r, transport.KindOffer)
	if !ok {
		return
	}
	if transport.TargetKey(offer.To) != target {
		http.Error(w, "offer is addressed to another key", http.StatusBadRequest)
		return
	}
	if err := s.store.PutOffer(target, offer); err != nil {
		http.Error(w, err.Error(), http.StatusTooManyRequests)
		return
	}
	s.logger.Debug("offer queued", "target", target[:8])
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleGetOffers(w http.ResponseWriter, r *http.Request) {
	target := strings.ToLower(r.PathValue("target"))
	if !validTarget(target) {
		http.Error(w, "target must be a hex Ed25519 public key", http.StatusBadRequest)
		return
	}
	s.writeCBOR(w, r, s.store.TakeOffers(target))
}

func (s *Server) handlePostAnswer(w http.ResponseWriter, r *http.Request) {
	answer, ok := s.readSignal(w, r, transport.KindAnswer)
	if !ok {
		return
	}
	if answer.ID != r.PathValue("id") {
		http.Error(w, "answer ID does not match path", http.StatusBadRequest)
		return
	}
	if err := s.store.PutAnswer(answer); err != nil {
		http.Error(w, err.Error(), http.StatusTooManyRequests)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleGetAnswer(w http.ResponseWriter, r *http.Request) {
	answer, ok := s.store.TakeAnswer(r.PathValue("id"))
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeCBOR(w, r, answer)
}

// readSignal decodes and verifies a signal body. On failure it writes
// the response and returns false.
func (s *Server) readSignal(w http.ResponseWriter, r *http.Request, kind transport.SignalKind) (transport.SignalMessage, bool) {
	var message transport.SignalMessage
	body, err := decodeBody(r.Body, r.Header.Get("Content-Encoding"), MaxBodySize)
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, netutil.ErrBodyTooLarge):
			status = http.StatusRequestEntityTooLarge
		case errors.Is(err, ErrUnsupportedEncoding):
			status = http.StatusUnsupportedMediaType
		}
		http.Error(w, err.Error(), status)
		return message, false
	}
	if err := codec.Unmarshal(body, &message); err != nil {
		http.Error(w, "malformed signal: "+err.Error(), http.StatusBadRequest)
		return message, false
	}
	if message.Kind != kind {
		http.Error(w, "unexpected signal kind", http.StatusBadRequest)
		return message, false
	}
	if err := transport.VerifySignal(message); err != nil {
		s.logger.Debug("forged signal refused", "kind", kind, "error", err)
		http.Error(w, err.Error(), http.StatusForbidden)
		return message, false
	}
	if err := transport.CheckFresh(message, s.clock.Now()); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return message, false
	}
	return message, true
}

func (s *Server) writeCBOR(w http.ResponseWriter, r *http.Request, v any) {
	data, err := codec.Marshal(v)
	if err != nil {
		s.logger.Error("encoding response failed", "error", err)
		http.Error(w, "encoding response", http.StatusInternalServerError)
		return
	}
	encoding := negotiate(r.Header.Get("Accept-Encoding"))
	body, err := encodeBody(data, encoding)
	if err != nil {
		s.logger.Error("compressing response failed", "error", err)
		http.Error(w, "compressing response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	if encoding != EncodingIdentity {
		w.Header().Set("Content-Encoding", encoding)
	}
	w.Header().Add("Vary", "Accept-Encoding")
	w.Write(body)
}

func validTarget(target string) bool {
	decoded, err := hex.DecodeString(target)
	return err == nil && len(decoded) == ed25519.PublicKeySize
}
