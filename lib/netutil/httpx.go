// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"fmt"
	"io"
)

// ErrBodyTooLarge is returned by [ReadBounded] when the body exceeds the
// limit.
var ErrBodyTooLarge = errors.New("body exceeds size limit")

// maxErrorBody bounds the bytes of an error response kept for messages.
const maxErrorBody = 4 << 10

// ReadBounded reads all of body, failing with ErrBodyTooLarge rather
// than truncating when it holds more than limit bytes.
func ReadBounded(body io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, limit)
	}
	return data, nil
}

// ErrorBody reads the start of an HTTP error response for use in an
// error message. Read errors are ignored; a partial body is still
// useful.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
	return string(data)
}
