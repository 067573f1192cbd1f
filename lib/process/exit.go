// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ExitCoder is implemented by errors that carry their own exit status.
type ExitCoder interface {
	ExitCode() int
}

// ExitError ends the process with Code. A nil Err exits silently.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func (e *ExitError) ExitCode() int { return e.Code }

// ExitCode maps err to a process exit status: 0 for nil, the carried
// code for an ExitCoder anywhere in the chain, and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var coder ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return 1
}

// Report writes "error: err" to w unless err is nil or a silent
// ExitError, and returns the exit status for err.
func Report(w io.Writer, err error) int {
	code := ExitCode(err)
	var exitErr *ExitError
	if err != nil && !(errors.As(err, &exitErr) && exitErr.Err == nil) {
		fmt.Fprintf(w, "error: %v\n", err)
	}
	return code
}

// Fatal reports err on stderr and exits with its status. main calls it
// with the result of run(), where the logger may not exist yet.
func Fatal(err error) {
	os.Exit(Report(os.Stderr, err))
}
