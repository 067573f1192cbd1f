// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/bureau-foundation/tether/lib/netutil"
)

// interruptByte is Ctrl-C as read from a raw terminal.
const interruptByte = 0x03

// ErrInterrupted reports that the user pressed Ctrl-C.
var ErrInterrupted = errors.New("interrupted")

// AttachShell copies conn to the terminal and, from the first byte the
// remote sends, the terminal to conn with the terminal in raw mode.
// It returns nil when the remote closes the stream, ErrInterrupted on
// a lone Ctrl-C, and an error for anything else. conn is closed and
// raw mode is restored before it returns.
//
// A terminal read in progress when AttachShell returns is abandoned;
// the goroutine doing it ends with the process.
func AttachShell(ctx context.Context, conn net.Conn, terminal Terminal) (err error) {
	defer conn.Close()

	remoteDone := make(chan error, 1)
	firstByte := make(chan struct{})
	go func() {
		var once sync.Once
		buffer := make([]byte, 32*1024)
		for {
			n, readErr := conn.Read(buffer)
			if n > 0 {
				once.Do(func() { close(firstByte) })
				if _, writeErr := terminal.Write(buffer[:n]); writeErr != nil {
					remoteDone <- fmt.Errorf("writing to terminal: %w", writeErr)
					return
				}
			}
			if readErr != nil {
				remoteDone <- readErr
				return
			}
		}
	}()

	select {
	case <-firstByte:
	case remoteErr := <-remoteDone:
		return remoteEnded(remoteErr)
	case <-ctx.Done():
		return ctx.Err()
	}

	restore, err := terminal.MakeRaw()
	if err != nil {
		return err
	}
	defer func() {
		if restoreErr := restore(); restoreErr != nil && err == nil {
			err = fmt.Errorf("restoring terminal: %w", restoreErr)
		}
	}()

	localDone := make(chan error, 1)
	go func() {
		buffer := make([]byte, 1024)
		for {
			n, readErr := terminal.Read(buffer)
			if n == 1 && buffer[0] == interruptByte {
				localDone <- ErrInterrupted
				return
			}
			if n > 0 {
				if _, writeErr := conn.Write(buffer[:n]); writeErr != nil {
					localDone <- writeErr
					return
				}
			}
			if readErr != nil {
				localDone <- readErr
				return
			}
		}
	}()

	select {
	case remoteErr := <-remoteDone:
		return remoteEnded(remoteErr)
	case localErr := <-localDone:
		switch {
		case errors.Is(localErr, ErrInterrupted):
			return ErrInterrupted
		case netutil.IsExpectedCloseError(localErr):
			return nil
		default:
			return fmt.Errorf("sending input: %w", localErr)
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func remoteEnded(err error) error {
	if err == nil || netutil.IsExpectedCloseError(err) {
		return nil
	}
	return fmt.Errorf("remote stream: %w", err)
}
