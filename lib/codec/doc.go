// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides tether's CBOR configuration.
//
// Two things depend on it. Signaling messages are signed over their
// CBOR encoding, so the encoder uses Core Deterministic Encoding (RFC
// 8949 §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. The same message always produces the same
// bytes, on both ends of a connection. The rendezvous relay also speaks
// CBOR on the wire.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Types that only travel as CBOR carry `cbor` struct tags with short
// keys. Unknown fields are ignored on decode so older peers keep working
// when a message grows a field.
package codec
