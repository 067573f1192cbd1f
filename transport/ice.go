// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4"
)

// ICEConfig holds the STUN and TURN servers used during candidate
// gathering. The zero value gathers host candidates only, which is
// enough for loopback and a shared LAN.
type ICEConfig struct {
	Servers []webrtc.ICEServer
}

// ICEConfigFromURLs builds an ICEConfig from configuration strings.
// TURN credentials may be embedded as "turn:user:password@host:port".
func ICEConfigFromURLs(urls []string) (ICEConfig, error) {
	var config ICEConfig
	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		scheme, rest, ok := strings.Cut(raw, ":")
		if !ok {
			return ICEConfig{}, fmt.Errorf("ICE server %q: missing scheme", raw)
		}

		server := webrtc.ICEServer{URLs: []string{raw}}
		switch scheme {
		case "stun", "stuns":
		case "turn", "turns":
			if at := strings.LastIndex(rest, "@"); at >= 0 {
				username, credential, found := strings.Cut(rest[:at], ":")
				if !found {
					return ICEConfig{}, fmt.Errorf("ICE server %q: credentials must be user:password", scheme+":...")
				}
				server.URLs = []string{scheme + ":" + rest[at+1:]}
				server.Username = username
				server.Credential = credential
			}
		default:
			return ICEConfig{}, fmt.Errorf("ICE server %q: unsupported scheme %q", raw, scheme)
		}
		config.Servers = append(config.Servers, server)
	}
	return config, nil
}
