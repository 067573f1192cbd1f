// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shell

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/term"
)

// MaxHistory bounds the lines a History keeps.
const MaxHistory = 1000

var _ term.History = (*History)(nil)

// History is a bounded line history for term.Terminal that can be
// persisted between sessions.
type History struct {
	mu sync.Mutex
	// entries is oldest first.
	entries []string
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{}
}

// Add appends entry, dropping blanks and immediate repeats.
func (h *History) Add(entry string) {
	if strings.TrimSpace(entry) == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) > 0 && h.entries[len(h.entries)-1] == entry {
		return
	}
	h.entries = append(h.entries, entry)
	if overflow := len(h.entries) - MaxHistory; overflow > 0 {
		h.entries = append(h.entries[:0:0], h.entries[overflow:]...)
	}
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// At returns the entry idx steps back; 0 is the most recent.
func (h *History) At(idx int) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if idx < 0 || idx >= len(h.entries) {
		panic(fmt.Sprintf("shell: history index [%d] out of range [0,%d)", idx, len(h.entries)))
	}
	return h.entries[len(h.entries)-1-idx]
}

// Load replaces the history with newline-separated entries, oldest
// first, as written by Bytes.
func (h *History) Load(data []byte) {
	fresh := &History{}
	for _, line := range strings.Split(string(data), "\n") {
		fresh.Add(line)
	}
	h.mu.Lock()
	h.entries = fresh.entries
	h.mu.Unlock()
}

// Bytes returns the history in the form Load reads.
func (h *History) Bytes() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		return nil
	}
	return []byte(strings.Join(h.entries, "\n") + "\n")
}
