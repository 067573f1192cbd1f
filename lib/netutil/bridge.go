// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"io"
	"net"
)

// Side names one end of a [Bridge].
type Side int

const (
	SideA Side = iota
	SideB
)

func (s Side) String() string {
	if s == SideA {
		return "a"
	}
	return "b"
}

// BridgeResult describes how a [Bridge] ended.
type BridgeResult struct {
	// Ended is the side whose read finished first. Its copy ran from
	// that side into the other.
	Ended Side

	// Err is the error from the direction that finished first, or nil
	// when it ended with a normal close.
	Err error

	// AToB and BToA count bytes relayed in each direction.
	AToB int64
	BToA int64
}

type bridgeCopyResult struct {
	source      Side
	bytesCopied int64
	err         error
}

// Bridge copies bytes in both directions between a and b. It returns
// when either direction finishes, after closing both connections to
// unblock the other direction and waiting for it to drain.
func Bridge(a, b net.Conn) BridgeResult {
	done := make(chan bridgeCopyResult, 2)

	go func() {
		bytesCopied, err := io.Copy(b, a)
		done <- bridgeCopyResult{SideA, bytesCopied, err}
	}()
	go func() {
		bytesCopied, err := io.Copy(a, b)
		done <- bridgeCopyResult{SideB, bytesCopied, err}
	}()

	first := <-done
	a.Close()
	b.Close()
	second := <-done

	result := BridgeResult{Ended: first.source}
	if first.err != nil && !IsExpectedCloseError(first.err) {
		result.Err = first.err
	}
	for _, copied := range []bridgeCopyResult{first, second} {
		if copied.source == SideA {
			result.AToB = copied.bytesCopied
		} else {
			result.BToA = copied.bytesCopied
		}
	}
	return result
}
