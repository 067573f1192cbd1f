// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package debugger

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/bureau-foundation/tether/lib/testutil"
)

func TestActivateServesExpvarAndPprof(t *testing.T) {
	server := New("127.0.0.1:0", testutil.Discard())
	t.Cleanup(func() { server.Close() })

	address, err := server.Activate(context.Background())
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	for path, want := range map[string]string{
		"/debug/vars":   "memstats",
		"/debug/pprof/": "goroutine",
	} {
		response, err := http.Get("http://" + address + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		body, _ := io.ReadAll(response.Body)
		response.Body.Close()
		if response.StatusCode != http.StatusOK || !strings.Contains(string(body), want) {
			t.Errorf("GET %s = %d, body missing %q", path, response.StatusCode, want)
		}
	}
}

func TestActivateIsIdempotent(t *testing.T) {
	server := New("127.0.0.1:0", testutil.Discard())
	t.Cleanup(func() { server.Close() })

	var wg sync.WaitGroup
	addresses := make([]string, 8)
	for i := range addresses {
		wg.Add(1)
		go func() {
			defer wg.Done()
			address, err := server.Activate(context.Background())
			if err != nil {
				t.Errorf("Activate: %v", err)
			}
			addresses[i] = address
		}()
	}
	wg.Wait()
	for _, address := range addresses {
		if address != addresses[0] {
			t.Fatalf("Activate returned different addresses: %v", addresses)
		}
	}
	if server.Addr() != addresses[0] {
		t.Errorf("Addr() = %q, want %q", server.Addr(), addresses[0])
	}
}

func TestCloseStopsListener(t *testing.T) {
	server := New("127.0.0.1:0", testutil.Discard())
	address, err := server.Activate(context.Background())
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := server.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if server.Addr() != "" {
		t.Errorf("Addr() after Close = %q", server.Addr())
	}
	if _, err := http.Get("http://" + address + "/debug/vars"); err == nil {
		t.Error("listener still serving after Close")
	}
	if err := server.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestCloseImmediatelyAfterActivate(t *testing.T) {
	server := New("127.0.0.1:0", testutil.Discard())
	for cycle := 0; cycle < 50; cycle++ {
		if _, err := server.Activate(context.Background()); err != nil {
			t.Fatalf("cycle %d: Activate: %v", cycle, err)
		}
		if err := server.Close(); err != nil {
			t.Fatalf("cycle %d: Close: %v", cycle, err)
		}
	}
}

func TestRequireLoopback(t *testing.T) {
	tests := []struct {
		address string
		ok      bool
	}{
		{"127.0.0.1:9229", true},
		{"[::1]:9229", true},
		{"localhost:9229", true},
		{"0.0.0.0:9229", false},
		{"10.0.0.1:9229", false},
		{"example.com:9229", false},
		{"no-port", false},
	}
	for _, test := range tests {
		err := RequireLoopback(test.address)
		if (err == nil) != test.ok {
			t.Errorf("RequireLoopback(%q) = %v, want ok=%v", test.address, err, test.ok)
		}
	}
	if _, err := New("0.0.0.0:0", testutil.Discard()).Activate(context.Background()); err == nil {
		t.Error("Activate on a wildcard address succeeded")
	}
}

func TestExternal(t *testing.T) {
	address, err := External("127.0.0.1:4000").Activate(context.Background())
	if err != nil || address != "127.0.0.1:4000" {
		t.Errorf("Activate() = %q, %v", address, err)
	}
	if _, err := External("").Activate(context.Background()); err == nil {
		t.Error("empty External activated")
	}
}
