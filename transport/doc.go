// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport carries tether channels over WebRTC data channels.
//
// A channel is addressed by an Ed25519 public key. A [Server] created by
// [Node.Listen] polls a [Signaler] for SDP offers addressed to its key;
// [Node.Connect] publishes an offer and waits for the answer. Signaling
// is vanilla ICE: every candidate is gathered before the SDP is
// published, so one offer and one answer establish the connection.
//
// Every [SignalMessage] is signed with the sender's Ed25519 key over a
// domain-separated deterministic CBOR encoding. The SDP carries the DTLS
// certificate fingerprint, so the signature binds the encrypted
// transport to the key holder and the relay in between is untrusted.
//
// The server checks each offer before answering it: stale or replayed
// offers, bad signatures, and senders its [Firewall] refuses are dropped
// without a reply. A rejected peer never receives an answer, so no ICE
// or DTLS exchange ever starts with it.
//
// Accepted channels are ordered, reliable data channels detached into
// [DataChannelConn], a net.Conn. ICE keepalives run every
// [Timeouts].KeepAlive; a PeerConnection that sees no traffic for
// [Timeouts].Idle is torn down and the conn on it closed, so a silently
// dead peer is noticed by either side.
//
// [MemorySignaler] exchanges signals in process for tests and
// single-process demos. The rendezvous package provides the HTTP relay
// used between hosts.
package transport
