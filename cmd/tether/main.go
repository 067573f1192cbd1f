// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// tether connects to a process that called host.Attach.
//
// Without --devtools it attaches the local terminal to the remote
// shell. With --devtools it listens on a local port and tunnels every
// connection to the remote debug channel, so go tool pprof and curl
// can reach the remote process as if it were local.
//
// Usage:
//
//	tether [flags] <hexSeed> [--devtools]
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/tether/client"
	"github.com/bureau-foundation/tether/host"
	"github.com/bureau-foundation/tether/identity"
	"github.com/bureau-foundation/tether/lib/config"
	"github.com/bureau-foundation/tether/lib/logging"
	"github.com/bureau-foundation/tether/lib/process"
	"github.com/bureau-foundation/tether/lib/secret"
	"github.com/bureau-foundation/tether/lib/version"
	"github.com/bureau-foundation/tether/rendezvous"
	"github.com/bureau-foundation/tether/transport"
)

func main() {
	process.Fatal(run(os.Args[1:]))
}

type options struct {
	devtools   bool
	listen     string
	rendezvous string
	ice        []string
	seedFile   string
	verbose    bool
}

func run(args []string) error {
	var opts options
	flagSet := pflag.NewFlagSet("tether", pflag.ContinueOnError)
	flagSet.BoolVar(&opts.devtools, "devtools", false, "tunnel the debug channel to a local port instead of attaching the shell")
	flagSet.StringVar(&opts.listen, "listen", "", "local address for --devtools (default: debug_address from config, 127.0.0.1:9229)")
	flagSet.StringVar(&opts.rendezvous, "rendezvous", "", "rendezvous relay URL (default: $TETHER_RENDEZVOUS or config)")
	flagSet.StringArrayVar(&opts.ice, "ice", nil, "STUN or TURN server URL, repeatable (turn:user:pass@host:port)")
	flagSet.StringVar(&opts.seedFile, "seed-file", "", "read the hex seed from a file, or - for stdin")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "log connection details to stderr")
	showVersion := flagSet.Bool("version", false, "print version and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return &process.ExitError{Code: 2, Err: err}
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if *showVersion {
		fmt.Println(version.Banner("tether"))
		return nil
	}

	logger := logging.NewInteractive(opts.verbose)

	seed, err := readSeed(flagSet.Args(), opts.seedFile)
	if err != nil {
		return err
	}
	defer seed.Close()
	keyPairs, err := identity.Derive(seed)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if opts.rendezvous != "" {
		cfg.Rendezvous = opts.rendezvous
	}
	if len(opts.ice) > 0 {
		cfg.ICEServers = opts.ice
	}
	if opts.listen != "" {
		cfg.DebugAddress = opts.listen
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	node, err := newNode(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.devtools {
		return serveDevtools(ctx, node, keyPairs.Debug, cfg.DebugAddress, logger)
	}
	return attachShell(ctx, node, keyPairs.Shell)
}

// readSeed takes the seed from the first argument, --seed-file, or
// $TETHER_SEED, in that order.
func readSeed(args []string, seedFile string) (*identity.Seed, error) {
	if len(args) > 1 {
		return nil, &process.ExitError{Code: 2, Err: fmt.Errorf("unexpected argument %q", args[1])}
	}
	switch {
	case len(args) == 1:
		return identity.ParseSeed(args[0])
	case seedFile != "":
		buffer, err := secret.ReadFromPath(seedFile)
		if err != nil {
			return nil, fmt.Errorf("reading seed: %w", err)
		}
		defer buffer.Close()
		raw := make([]byte, hex.DecodedLen(buffer.Len()))
		if _, err := hex.Decode(raw, buffer.Bytes()); err != nil {
			secret.Zero(raw)
			return nil, fmt.Errorf("%w: %v", identity.ErrInvalidSeed, err)
		}
		seed, err := identity.NewSeed(raw)
		if err != nil {
			secret.Zero(raw)
		}
		return seed, err
	case os.Getenv(host.EnvSeed) != "":
		return identity.ParseSeed(os.Getenv(host.EnvSeed))
	default:
		return nil, &process.ExitError{Code: 2, Err: fmt.Errorf("missing seed: pass it as an argument, with --seed-file, or in $%s", host.EnvSeed)}
	}
}

func newNode(cfg *config.Config, logger *slog.Logger) (*transport.Node, error) {
	signaler, err := rendezvous.NewClient(cfg.Rendezvous, rendezvous.ClientOptions{})
	if err != nil {
		return nil, err
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

func attachShell(ctx context.Context, node *transport.Node, keyPair identity.KeyPair) error {
	conn, err := node.Connect(ctx, keyPair.PublicKey, keyPair)
	if err != nil {
		if errors.Is(err, transport.ErrNoAnswer) {
			return fmt.Errorf("connecting to shell %s: %w (is the host attached with this seed and using the same rendezvous?)",
				keyPair.Fingerprint(), err)
		}
		return fmt.Errorf("connecting to shell %s: %w", keyPair.Fingerprint(), err)
	}
	err = client.AttachShell(ctx, conn, client.Stdio())
	if errors.Is(err, client.ErrInterrupted) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func serveDevtools(ctx context.Context, node *transport.Node, keyPair identity.KeyPair, address string, logger *slog.Logger) error {
	var listenConfig net.ListenConfig
	listener, err := listenConfig.Listen(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", address, err)
	}
	fmt.Fprintf(os.Stderr, "[tether] Debug channel %s tunnelled to %s\n", keyPair.Fingerprint(), listener.Addr())
	fmt.Fprintf(os.Stderr, "         Run: go tool pprof http://%s/debug/pprof/heap\n", listener.Addr())
	return client.ServeDebug(ctx, listener, client.Dialer(node, keyPair), logger)
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `tether - attach to a process exposed with host.Attach

The seed printed by the host names both of its channels. Anyone holding
it can attach, so pass it through --seed-file or $%s rather than the
command line on shared machines.

Usage:
  tether [flags] <hexSeed>
  tether [flags] <hexSeed> --devtools

Examples:
  # Open the remote shell
  tether 3f9a...c2

  # Tunnel the debug channel and profile the remote process
  tether 3f9a...c2 --devtools
  go tool pprof http://127.0.0.1:9229/debug/pprof/profile

Exit status is 0 when the remote closes the session or you press
Ctrl-C, and 1 when the connection fails.

Flags:
`, host.EnvSeed)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
