// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/bureau-foundation/tether/debugger"
	"github.com/bureau-foundation/tether/identity"
	"github.com/bureau-foundation/tether/lib/config"
	"github.com/bureau-foundation/tether/lib/logging"
	"github.com/bureau-foundation/tether/rendezvous"
	"github.com/bureau-foundation/tether/session"
	"github.com/bureau-foundation/tether/shell"
	"github.com/bureau-foundation/tether/transport"
)

// EnvSeed supplies the seed when Options.Seed is empty.
const EnvSeed = "TETHER_SEED"

// Options configure Attach.
type Options struct {
	// Seed is the hex seed. Empty falls back to $TETHER_SEED, then to a
	// freshly generated seed.
	Seed string

	// Context is exposed to every shell session. Nil starts empty.
	Context *shell.Context

	// Devtools opens the debug channel and enables the shell's
	// devtools command.
	Devtools bool

	// Debugger replaces the built-in pprof and expvar listener as the
	// debug channel's local endpoint.
	Debugger debugger.Activator

	// Config defaults to config.Load().
	Config *config.Config

	// Signaler defaults to a rendezvous client for Config.Rendezvous.
	Signaler transport.Signaler

	// Color enables highlighted shell output.
	Color bool

	// Notices receives the startup notice. Defaults to os.Stderr.
	Notices io.Writer

	// ClientCommand is the command named in notices. Defaults to
	// "tether".
	ClientCommand string

	Logger *slog.Logger
}

// Host is an attached process. Close detaches it.
type Host struct {
	seed     *identity.Seed
	keyPairs identity.KeyPairs
	logger   *slog.Logger

	cancel   context.CancelFunc
	servers  []*transport.Server
	debugger *debugger.Server
	sessions sync.WaitGroup
	serving  sync.WaitGroup

	closeOnce sync.Once
	done      chan struct{}
}

// Attach derives the channel identities, starts a listener per channel
// and writes the startup notice. Only a bad seed or bad configuration
// fails Attach; session failures are logged.
func Attach(ctx context.Context, options Options) (*Host, error) {
	logger := logging.OrDefault(options.Logger)
	cfg := options.Config
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	seed, err := resolveSeed(options.Seed)
	if err != nil {
		return nil, err
	}
	keyPairs, err := identity.Derive(seed)
	if err != nil {
		seed.Close()
		return nil, err
	}

	node, err := newNode(cfg, options.Signaler, logger)
	if err != nil {
		seed.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	h := &Host{
		seed:     seed,
		keyPairs: keyPairs,
		logger:   logger,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	shared := options.Context
	if shared == nil {
		shared = shell.NewContext(nil)
	}
	command := options.ClientCommand
	if command == "" {
		command = "tether"
	}

	var activator debugger.Activator
	if options.Devtools {
		activator = options.Debugger
		if activator == nil {
			h.debugger = debugger.New(cfg.DebugAddress, logger)
			activator = h.debugger
		}
	}

	shellBridge := &session.ShellBridge{
		Context:    shared,
		KeyPair:    keyPairs.Shell,
		HistoryDir: cfg.HistoryDir,
		Color:      options.Color,
		Debugger:   activator,
		DevtoolsNotice: func(string) string {
			return devtoolsNotice(command, seed.Hex(), cfg.DebugAddress)
		},
		Logger: logger,
	}
	if err := h.serve(ctx, node, identity.ChannelShell, shellBridge.Handle); err != nil {
		h.Close()
		return nil, err
	}

	if options.Devtools {
		debugBridge := &session.DebugBridge{
			Activator:    activator,
			ReadyTimeout: cfg.DebugReadyTimeout(),
			Logger:       logger,
		}
		if err := h.serve(ctx, node, identity.ChannelDebug, debugBridge.Handle); err != nil {
			h.Close()
			return nil, err
		}
	}

	notices := options.Notices
	if notices == nil {
		notices = os.Stderr
	}
	fmt.Fprint(notices, attachedNotice(command, seed.Hex()))
	if options.Devtools {
		fmt.Fprint(notices, devtoolsNotice(command, seed.Hex(), cfg.DebugAddress))
	}
	// Cancelling the caller's context detaches, same as Close.
	context.AfterFunc(ctx, func() { h.Close() })

	logger.Info("tether attached",
		"shell", keyPairs.Shell.Fingerprint(),
		"devtools", options.Devtools,
		"rendezvous", cfg.Rendezvous,
	)
	return h, nil
}

func resolveSeed(text string) (*identity.Seed, error) {
	if text == "" {
		text = os.Getenv(EnvSeed)
	}
	if text == "" {
		return identity.GenerateSeed()
	}
	return identity.ParseSeed(text)
}

func newNode(cfg *config.Config, signaler transport.Signaler, logger *slog.Logger) (*transport.Node, error) {
	if signaler == nil {
		client, err := rendezvous.NewClient(cfg.Rendezvous, rendezvous.ClientOptions{})
		if err != nil {
			return nil, err
		}
		signaler = client
	}
	ice, err := transport.ICEConfigFromURLs(cfg.ICEServers)
	if err != nil {
		return nil, err
	}
	return transport.NewNode(transport.Options{
		Signaler: signaler,
		ICE:      ice,
		Timeouts: transport.Timeouts{Idle: cfg.IdleTimeout(), KeepAlive: cfg.KeepAliveInterval()},
		Logger:   logger,
	})
}

// serve listens on channel and runs handler for every admitted
// connection.
func (h *Host) serve(ctx context.Context, node *transport.Node, channel identity.Channel, handler func(context.Context, net.Conn)) error {
	keyPair, err := h.keyPairs.For(channel)
	if err != nil {
		return err
	}
	server, err := node.Listen(ctx, keyPair, identity.Gate(keyPair))
	if err != nil {
		return fmt.Errorf("listening on %s channel: %w", channel, err)
	}
	h.servers = append(h.servers, server)

	h.serving.Add(1)
	go func() {
		defer h.serving.Done()
		for {
			conn, err := server.Accept()
			if err != nil {
				if !errors.Is(err, net.ErrClosed) {
					h.logger.Error("channel listener stopped", "channel", channel.String(), "error", err)
				}
				return
			}
			h.sessions.Add(1)
			go func() {
				defer h.sessions.Done()
				handler(ctx, conn)
			}()
		}
	}()
	h.logger.Debug("channel listening", "channel", channel.String(), "address", server.Addr().String())
	return nil
}

// Seed returns the hex seed clients attach with.
func (h *Host) Seed() string {
	return h.seed.Hex()
}

// KeyPairs returns the derived channel identities.
func (h *Host) KeyPairs() identity.KeyPairs {
	return h.keyPairs
}

// Close stops both listeners, ends every session and releases the
// seed. It is safe to call more than once.
func (h *Host) Close() error {
	var errs []error
	h.closeOnce.Do(func() {
		h.cancel()
		for _, server := range h.servers {
			errs = append(errs, server.Close())
		}
		h.serving.Wait()
		h.sessions.Wait()
		if h.debugger != nil {
			errs = append(errs, h.debugger.Close())
		}
		errs = append(errs, h.seed.Close())
		close(h.done)
		h.logger.Info("tether detached")
	})
	return errors.Join(errs...)
}

// Wait blocks until Close has finished.
func (h *Host) Wait() {
	<-h.done
}
