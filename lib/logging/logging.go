// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the structured loggers used by the tether
// binaries.
package logging

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// New returns a logger writing to stderr: human-readable text when
// stderr is a terminal, JSON when it is piped or redirected. verbose
// lowers the level from Info to Debug.
//
// Callers scope it with With:
//
//	logger := logging.New(verbose).With("component", "host")
func New(verbose bool) *slog.Logger {
	return NewWriter(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())), verbose)
}

// NewWriter is New for an arbitrary writer. text selects the text
// handler.
func NewWriter(w io.Writer, text, verbose bool) *slog.Logger {
	options := &slog.HandlerOptions{Level: Level(verbose)}
	var handler slog.Handler
	if text {
		handler = slog.NewTextHandler(w, options)
	} else {
		handler = slog.NewJSONHandler(w, options)
	}
	return slog.New(handler)
}

// NewInteractive is the logger for a process that shares its terminal
// with a remote session: text on stderr, warnings and above unless
// verbose.
func NewInteractive(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Level maps the --verbose flag to a slog level.
func Level(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// OrDefault returns logger, or slog.Default when logger is nil.
func OrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
