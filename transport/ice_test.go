// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import "testing"

func TestICEConfigFromURLs(t *testing.T) {
	config, err := ICEConfigFromURLs([]string{
		"stun:stun.example.net:3478",
		" ",
		"turn:operator:hunter2@turn.example.net:3478?transport=tcp",
	})
	if err != nil {
		t.Fatalf("ICEConfigFromURLs: %v", err)
	}
	if len(config.Servers) != 2 {
		t.Fatalf("got %d servers, want 2", len(config.Servers))
	}
	if config.Servers[0].URLs[0] != "stun:stun.example.net:3478" || config.Servers[0].Username != "" {
		t.Errorf("stun server = %+v", config.Servers[0])
	}
	turn := config.Servers[1]
	if turn.URLs[0] != "turn:turn.example.net:3478?transport=tcp" {
		t.Errorf("turn URL = %q", turn.URLs[0])
	}
	if turn.Username != "operator" || turn.Credential != "hunter2" {
		t.Errorf("turn credentials = %q/%v", turn.Username, turn.Credential)
	}
}

func TestICEConfigFromURLs_Empty(t *testing.T) {
	config, err := ICEConfigFromURLs(nil)
	if err != nil || len(config.Servers) != 0 {
		t.Fatalf("ICEConfigFromURLs(nil) = %+v, %v", config, err)
	}
}

func TestICEConfigFromURLs_Invalid(t *testing.T) {
	for _, raw := range []string{"stun.example.net", "http://stun.example.net", "turn:nopassword@turn.example.net"} {
		if _, err := ICEConfigFromURLs([]string{raw}); err == nil {
			t.Errorf("ICEConfigFromURLs(%q) succeeded", raw)
		}
	}
}
