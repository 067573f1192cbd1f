// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds key material outside the Go heap.
//
// [Buffer] allocates an anonymous mmap region, locks it into RAM
// (mlock) and excludes it from core dumps (MADV_DONTDUMP). Close zeroes,
// unlocks and unmaps it. Tether keeps the channel seed and the history
// sealing passphrase in a Buffer for the life of the process; the seed
// is never written to disk.
//
// Constructors: [New] for a zero-filled buffer, [NewFromBytes] to move
// existing bytes in (the source is zeroed), [ReadFromPath] to read a
// secret from a file or stdin. [Buffer.Equal] compares in constant time.
// Any access after Close panics.
package secret
