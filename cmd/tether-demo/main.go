// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// tether-demo is a small long-running process that embeds host.Attach.
// Start a relay, run the demo, and attach with the command it prints:
//
//	tether-rendezvous &
//	tether-demo --devtools
//	tether <hexSeed>
//
// The shell context holds a counter, an uptime function and build
// information to poke at.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/tether/host"
	"github.com/bureau-foundation/tether/lib/logging"
	"github.com/bureau-foundation/tether/lib/process"
	"github.com/bureau-foundation/tether/lib/version"
	"github.com/bureau-foundation/tether/shell"
)

func main() {
	process.Fatal(run(os.Args[1:]))
}

func run(args []string) error {
	var (
		devtools bool
		verbose  bool
	)
	flagSet := pflag.NewFlagSet("tether-demo", pflag.ContinueOnError)
	flagSet.BoolVar(&devtools, "devtools", false, "also open the debug channel")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return &process.ExitError{Code: 2, Err: err}
	}

	logger := logging.New(verbose)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	h, err := host.Attach(ctx, host.Options{
		Context:  demoContext(started),
		Devtools: devtools,
		Color:    true,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		fmt.Fprintln(os.Stderr, "Press Ctrl-C to detach.")
	}
	h.Wait()
	return nil
}

func demoContext(started time.Time) *shell.Context {
	shared := shell.NewContext(map[string]any{
		"counter": int64(0),
		"build": map[string]any{
			"version":  version.Info(),
			"go":       runtime.Version(),
			"platform": runtime.GOOS + "/" + runtime.GOARCH,
		},
	})
	shared.Set("uptime", shell.Func(func([]string) (any, error) {
		return time.Since(started).Round(time.Second).String(), nil
	}))
	shared.Set("increment", shell.Func(func(args []string) (any, error) {
		step := int64(1)
		if len(args) > 0 {
			parsed, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("increment: step %q is not an integer", args[0])
			}
			step = parsed
		}
		return shared.Update("counter", func(current any, _ bool) any {
			value, _ := current.(int64)
			return value + step
		}), nil
	}))
	shared.Set("goroutines", shell.Func(func([]string) (any, error) {
		return runtime.NumGoroutine(), nil
	}))
	return shared
}
