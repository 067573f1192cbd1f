// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// tether-rendezvous relays signed WebRTC offers and answers between
// tether hosts and clients.
//
// The relay is untrusted: it checks signatures so it cannot be used to
// spam a target with forged offers, but it never sees a seed and
// cannot decide who connects. Any number of hosts can share one relay.
//
// Usage:
//
//	tether-rendezvous [--listen 127.0.0.1:7420] [--verbose]
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/tether/lib/logging"
	"github.com/bureau-foundation/tether/lib/process"
	"github.com/bureau-foundation/tether/lib/version"
	"github.com/bureau-foundation/tether/rendezvous"
)

func main() {
	process.Fatal(run(os.Args[1:]))
}

func run(args []string) error {
	var (
		listenAddress string
		verbose       bool
		showVersion   bool
	)
	flagSet := pflag.NewFlagSet("tether-rendezvous", pflag.ContinueOnError)
	flagSet.StringVar(&listenAddress, "listen", "127.0.0.1:7420", "TCP address to serve the relay on")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log every signal")
	flagSet.BoolVar(&showVersion, "version", false, "print version and exit")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return &process.ExitError{Code: 2, Err: err}
	}
	if showVersion {
		fmt.Println(version.Banner("tether-rendezvous"))
		return nil
	}
	if flagSet.NArg() > 0 {
		return &process.ExitError{Code: 2, Err: fmt.Errorf("unexpected argument %q", flagSet.Arg(0))}
	}

	logger := logging.New(verbose).With("component", "rendezvous")
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := rendezvous.NewServer(rendezvous.ServerOptions{Logger: logger})
	logger.Info("starting tether-rendezvous", "version", version.Info())
	return rendezvous.NewListener(listenAddress, server, logger).Serve(ctx)
}
