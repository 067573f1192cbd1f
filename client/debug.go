// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/bureau-foundation/tether/identity"
	"github.com/bureau-foundation/tether/lib/logging"
	"github.com/bureau-foundation/tether/lib/netutil"
	"github.com/bureau-foundation/tether/transport"
)

// DialFunc opens a fresh channel connection.
type DialFunc func(ctx context.Context) (net.Conn, error)

// Dialer returns a DialFunc connecting node to the channel identified
// by keyPair. Client and host derive the same key pair from the seed,
// so it names the remote end and signs the offer.
func Dialer(node *transport.Node, keyPair identity.KeyPair) DialFunc {
	return func(ctx context.Context) (net.Conn, error) {
		return node.Connect(ctx, keyPair.PublicKey, keyPair)
	}
}

// ServeDebug accepts local connections on listener and bridges each
// one to a new channel connection from dial. Per-connection failures
// are logged and dropped. It returns nil once ctx is cancelled, after
// closing every bridge it started.
func ServeDebug(ctx context.Context, listener net.Listener, dial DialFunc, logger *slog.Logger) error {
	logger = logging.OrDefault(logger)
	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()

	var bridges sync.WaitGroup
	defer bridges.Wait()

	for {
		local, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		bridges.Add(1)
		go func() {
			defer bridges.Done()
			bridgeDebug(ctx, local, dial, logger.With("local", local.RemoteAddr().String()))
		}()
	}
}

func bridgeDebug(ctx context.Context, local net.Conn, dial DialFunc, logger *slog.Logger) {
	remote, err := dial(ctx)
	if err != nil {
		local.Close()
		logger.Warn("debug channel connection failed", "error", err)
		return
	}
	stop := context.AfterFunc(ctx, func() {
		local.Close()
		remote.Close()
	})
	defer stop()

	logger.Debug("debug tunnel open")
	result := netutil.Bridge(local, remote)
	if result.Err != nil {
		logger.Debug("debug tunnel error", "error", result.Err)
	}
	logger.Debug("debug tunnel closed", "sent", result.AToB, "received", result.BToA)
}
