// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Buffer holds a seed or passphrase in anonymous memory that is pinned
// in RAM and excluded from core dumps. Do not copy a Buffer.
type Buffer struct {
	mu     sync.Mutex
	region []byte
	closed bool
}

// New returns a zeroed Buffer of size bytes. Close it when done.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secret: buffer size must be positive, got %d", size)
	}
	region, err := mapPinned(size)
	if err != nil {
		return nil, err
	}
	return &Buffer{region: region}, nil
}

// NewFromBytes moves source into a new Buffer. source is zeroed whether
// or not the call succeeds.
func NewFromBytes(source []byte) (*Buffer, error) {
	defer Zero(source)
	if len(source) == 0 {
		return nil, errors.New("secret: cannot create buffer from empty source")
	}
	buffer, err := New(len(source))
	if err != nil {
		return nil, err
	}
	copy(buffer.region, source)
	return buffer, nil
}

// Bytes returns the locked region itself. The slice is invalid after
// Close. Panics on a closed buffer.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mustBeOpenLocked()
	return b.region
}

// Len is the secret's size in bytes, or zero after Close.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.region)
}

// Equal compares the contents to other in constant time.
func (b *Buffer) Equal(other []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mustBeOpenLocked()
	return subtle.ConstantTimeCompare(b.region, other) == 1
}

// Close wipes and unmaps the region. Later calls return nil.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	region := b.region
	b.region = nil
	return unmapPinned(region)
}

func (b *Buffer) mustBeOpenLocked() {
	if b.closed {
		panic("secret: read from closed buffer")
	}
}

// mapPinned maps size anonymous bytes, pins them and marks them
// MADV_DONTDUMP. Partial progress is undone on failure.
func mapPinned(size int) ([]byte, error) {
	region, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secret: mapping %d bytes: %w", size, err)
	}
	if err := unix.Mlock(region); err != nil {
		unix.Munmap(region)
		return nil, fmt.Errorf("secret: pinning %d bytes: %w", size, err)
	}
	if err := unix.Madvise(region, unix.MADV_DONTDUMP); err != nil {
		unlockAndUnmap(region)
		return nil, fmt.Errorf("secret: excluding region from core dumps: %w", err)
	}
	return region, nil
}

func unmapPinned(region []byte) error {
	Zero(region)
	return unlockAndUnmap(region)
}

func unlockAndUnmap(region []byte) error {
	var errs []error
	if err := unix.Munlock(region); err != nil {
		errs = append(errs, fmt.Errorf("secret: unpinning region: %w", err))
	}
	if err := unix.Munmap(region); err != nil {
		errs = append(errs, fmt.Errorf("secret: unmapping region: %w", err))
	}
	return errors.Join(errs...)
}

// Zero overwrites data with zeros.
func Zero(data []byte) {
	clear(data)
}
