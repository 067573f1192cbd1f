// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Terminal is the local end of a shell attach.
type Terminal interface {
	io.Reader
	io.Writer

	// MakeRaw switches input to raw mode and returns the function that
	// restores it.
	MakeRaw() (restore func() error, err error)
}

// StdioTerminal is the process's standard input and output.
type StdioTerminal struct {
	In  *os.File
	Out *os.File
}

// Stdio returns the process terminal.
func Stdio() *StdioTerminal {
	return &StdioTerminal{In: os.Stdin, Out: os.Stdout}
}

func (s *StdioTerminal) Read(buffer []byte) (int, error)  { return s.In.Read(buffer) }
func (s *StdioTerminal) Write(buffer []byte) (int, error) { return s.Out.Write(buffer) }

// MakeRaw puts a terminal stdin into raw mode. When stdin is not a
// terminal it does nothing.
func (s *StdioTerminal) MakeRaw() (func() error, error) {
	fd := int(s.In.Fd())
	if !term.IsTerminal(fd) {
		return func() error { return nil }, nil
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting terminal raw mode: %w", err)
	}
	return func() error { return term.Restore(fd, state) }, nil
}
