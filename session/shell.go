// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/bureau-foundation/tether/debugger"
	"github.com/bureau-foundation/tether/identity"
	"github.com/bureau-foundation/tether/lib/logging"
	"github.com/bureau-foundation/tether/lib/sealed"
	"github.com/bureau-foundation/tether/shell"
)

// historyPurpose separates the history passphrase from any other
// secret sealed under the same key.
const historyPurpose = "shell history"

// evaluatorStopTimeout bounds the wait for an evaluator to notice its
// stream was closed.
const evaluatorStopTimeout = 5 * time.Second

// Evaluator runs an interactive session until it ends.
type Evaluator interface {
	Run() error
}

// ShellBridge runs a shell evaluator for each accepted shell-channel
// connection. Configure the fields before the first Handle call.
type ShellBridge struct {
	// Context is shared by every session.
	Context *shell.Context

	// KeyPair is the shell channel's key pair. It names the history
	// file and seals its contents.
	KeyPair identity.KeyPair

	// HistoryDir holds history files. Defaults to os.TempDir().
	HistoryDir string

	// Color enables highlighted output in the default evaluator.
	Color bool

	// Debugger backs the devtools command. Nil disables it.
	Debugger debugger.Activator

	// DevtoolsNotice formats what devtools prints once the debugger is
	// listening on address.
	DevtoolsNotice func(address string) string

	// NewEvaluator replaces the default shell.REPL.
	NewEvaluator func(stream io.ReadWriter, history *shell.History) Evaluator

	Logger *slog.Logger

	// OnStateChange, if set, observes every transition of every
	// session.
	OnStateChange func(State)
}

// HistoryPath is the sealed history file for the bridge's key pair.
func (b *ShellBridge) HistoryPath() string {
	directory := b.HistoryDir
	if directory == "" {
		directory = os.TempDir()
	}
	return filepath.Join(directory, "tether-"+b.KeyPair.PublicHex())
}

// Handle runs one shell session over conn and returns once it is
// closed. The session ends when the evaluator returns, the stream
// fails, or ctx is cancelled; conn is closed in every case.
func (b *ShellBridge) Handle(ctx context.Context, conn net.Conn) {
	session := newTracker(identity.ChannelShell, conn, logging.OrDefault(b.Logger), b.OnStateChange)
	defer session.recoverPanic(conn)

	history := b.loadHistory(session.logger)
	evaluator := b.evaluator(ctx, conn, history, session.logger)
	session.transition(StateActive)

	done := make(chan error, 1)
	go func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				done <- fmt.Errorf("evaluator panicked: %v", recovered)
			}
		}()
		done <- evaluator.Run()
	}()

	var runErr error
	finished := false
	select {
	case runErr = <-done:
		finished = true
	case <-ctx.Done():
		session.logger.Debug("closing session on shutdown")
	}

	session.transition(StateClosing)
	conn.Close()
	if !finished {
		select {
		case <-done:
		case <-time.After(evaluatorStopTimeout):
			session.logger.Warn("evaluator still running after stream close")
		}
	}
	if runErr != nil {
		session.fail(fmt.Errorf("%w: %w", ErrSessionIO, runErr))
	}

	b.saveHistory(history, session.logger)
	session.transition(StateClosed)
}

func (b *ShellBridge) evaluator(ctx context.Context, conn net.Conn, history *shell.History, logger *slog.Logger) Evaluator {
	if b.NewEvaluator != nil {
		return b.NewEvaluator(conn, history)
	}
	shared := b.Context
	if shared == nil {
		shared = shell.NewContext(nil)
	}
	repl := shell.NewREPL(conn, shared, shell.Options{
		Prompt:  "tether:" + b.KeyPair.Fingerprint() + "> ",
		Color:   b.Color,
		History: history,
		Logger:  logger,
	})
	repl.Register("devtools", "start the debugger and print how to reach it", func(out io.Writer, _ []string) error {
		if b.Debugger == nil {
			return errors.New("devtools are not enabled on this host")
		}
		address, err := b.Debugger.Activate(ctx)
		if err != nil {
			return fmt.Errorf("starting debugger: %w", err)
		}
		logger.Info("devtools activated from shell", "address", address)
		notice := "Debugger listening on " + address
		if b.DevtoolsNotice != nil {
			notice = b.DevtoolsNotice(address)
		}
		_, err = fmt.Fprintln(out, notice)
		return err
	})
	return repl
}

func (b *ShellBridge) loadHistory(logger *slog.Logger) *shell.History {
	history := shell.NewHistory()
	passphrase, err := sealed.PassphraseFor(b.KeyPair.PrivateKey, historyPurpose)
	if err != nil {
		logger.Warn("shell history disabled", "error", err)
		return history
	}
	defer passphrase.Close()

	path := b.HistoryPath()
	data, err := sealed.ReadFile(path, passphrase)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		logger.Warn("starting with empty shell history", "path", path, "error", err)
	default:
		history.Load(data)
		logger.Debug("loaded shell history", "path", path, "entries", history.Len())
	}
	return history
}

// saveHistory writes history back. Concurrent sessions on one key
// overwrite each other; the file is replaced atomically so the last
// session to close wins.
func (b *ShellBridge) saveHistory(history *shell.History, logger *slog.Logger) {
	data := history.Bytes()
	if len(data) == 0 {
		return
	}
	passphrase, err := sealed.PassphraseFor(b.KeyPair.PrivateKey, historyPurpose)
	if err != nil {
		logger.Warn("shell history not saved", "error", err)
		return
	}
	defer passphrase.Close()

	path := b.HistoryPath()
	if err := sealed.WriteFile(path, data, passphrase); err != nil {
		logger.Warn("shell history not saved", "path", path, "error", err)
		return
	}
	logger.Debug("saved shell history", "path", path, "entries", history.Len())
}
