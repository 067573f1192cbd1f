// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package rendezvous is the signaling relay tether peers use to find
// each other across hosts.
//
// The relay stores signed offers by target key and signed answers by
// offer ID, and hands each out once. It verifies signatures so it
// cannot be used to flood a listener with forgeries, but it makes no
// authorization decision and never sees a seed: a compromised relay can
// drop or delay signals, not impersonate a peer.
//
// API (bodies are CBOR, optionally zstd or lz4 compressed):
//
//	POST /v1/offers/{target}   queue an offer for a hex public key
//	GET  /v1/offers/{target}   drain queued offers
//	POST /v1/answers/{id}      store the answer to an offer
//	GET  /v1/answers/{id}      take the answer, 204 when none yet
//	GET  /healthz
//
// [Client] implements transport.Signaler over this API.
package rendezvous
