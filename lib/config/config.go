// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvConfig     = "TETHER_CONFIG"
	EnvRendezvous = "TETHER_RENDEZVOUS"
	EnvICEServers = "TETHER_ICE_SERVERS"
	EnvDebugPort  = "TETHER_DEBUG_PORT"
	EnvHistoryDir = "TETHER_HISTORY_DIR"
)

// Config is the tether configuration shared by hosts and clients.
type Config struct {
	// Rendezvous is the base URL of the signaling relay.
	Rendezvous string `yaml:"rendezvous"`

	// ICEServers lists stun:, turn: and turns: URLs. Empty means host
	// candidates only, which reaches loopback and the local network.
	ICEServers []string `yaml:"ice_servers"`

	// DebugAddress is the loopback address of the local diagnostic
	// listener, and the default local listen address of
	// "tether --devtools".
	DebugAddress string `yaml:"debug_address"`

	// HistoryDir holds the sealed shell history files.
	HistoryDir string `yaml:"history_dir"`

	Timeouts TimeoutsConfig `yaml:"timeouts"`
}

// TimeoutsConfig holds durations in time.ParseDuration syntax.
type TimeoutsConfig struct {
	// Idle closes a stream that has received nothing, keepalives
	// included, for this long.
	Idle string `yaml:"idle"`

	// KeepAlive is the interval between liveness probes.
	KeepAlive string `yaml:"keepalive"`

	// DebugReady bounds the wait for the local diagnostic listener.
	DebugReady string `yaml:"debug_ready"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Rendezvous:   "http://127.0.0.1:7420",
		DebugAddress: "127.0.0.1:9229",
		HistoryDir:   "${TMPDIR:-/tmp}",
		Timeouts: TimeoutsConfig{
			Idle:       "30s",
			KeepAlive:  "20s",
			DebugReady: "10s",
		},
	}
}

// Load builds the configuration from defaults, the file named by
// TETHER_CONFIG, and these environment overrides:
//
//   - TETHER_RENDEZVOUS replaces rendezvous
//   - TETHER_ICE_SERVERS replaces ice_servers (comma separated)
//   - TETHER_DEBUG_PORT moves debug_address to that loopback port
//   - TETHER_HISTORY_DIR replaces history_dir
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv(EnvConfig); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnvironment(os.Getenv); err != nil {
		return nil, err
	}
	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads defaults overlaid with the file at path. Environment
// overrides are not applied.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvironment(getenv func(string) string) error {
	if value := getenv(EnvRendezvous); value != "" {
		c.Rendezvous = value
	}
	if value := getenv(EnvICEServers); value != "" {
		c.ICEServers = nil
		for _, server := range strings.Split(value, ",") {
			if server = strings.TrimSpace(server); server != "" {
				c.ICEServers = append(c.ICEServers, server)
			}
		}
	}
	if value := getenv(EnvDebugPort); value != "" {
		port, err := strconv.ParseUint(value, 10, 16)
		if err != nil || port == 0 {
			return fmt.Errorf("%s: invalid port %q", EnvDebugPort, value)
		}
		c.DebugAddress = net.JoinHostPort("127.0.0.1", strconv.FormatUint(port, 10))
	}
	if value := getenv(EnvHistoryDir); value != "" {
		c.HistoryDir = value
	}
	return nil
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func (c *Config) expandVariables() {
	c.HistoryDir = varPattern.ReplaceAllStringFunc(c.HistoryDir, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Rendezvous != "" {
		parsed, err := url.Parse(c.Rendezvous)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			errs = append(errs, fmt.Errorf("rendezvous: %q is not an http(s) URL", c.Rendezvous))
		}
	}

	for _, server := range c.ICEServers {
		parsed, err := url.Parse(server)
		if err != nil {
			errs = append(errs, fmt.Errorf("ice_servers: %q: %w", server, err))
			continue
		}
		switch parsed.Scheme {
		case "stun", "stuns", "turn", "turns":
		default:
			errs = append(errs, fmt.Errorf("ice_servers: %q has unsupported scheme %q", server, parsed.Scheme))
		}
	}

	host, port, err := net.SplitHostPort(c.DebugAddress)
	if err != nil {
		errs = append(errs, fmt.Errorf("debug_address: %w", err))
	} else {
		if ip := net.ParseIP(host); host != "localhost" && (ip == nil || !ip.IsLoopback()) {
			errs = append(errs, fmt.Errorf("debug_address: %q is not a loopback address", c.DebugAddress))
		}
		if number, err := strconv.ParseUint(port, 10, 16); err != nil || number == 0 {
			errs = append(errs, fmt.Errorf("debug_address: invalid port %q", port))
		}
	}

	if c.HistoryDir == "" {
		errs = append(errs, errors.New("history_dir is required"))
	}

	for name, value := range map[string]string{
		"timeouts.idle":        c.Timeouts.Idle,
		"timeouts.keepalive":   c.Timeouts.KeepAlive,
		"timeouts.debug_ready": c.Timeouts.DebugReady,
	} {
		if duration, err := time.ParseDuration(value); err != nil || duration <= 0 {
			errs = append(errs, fmt.Errorf("%s: %q is not a positive duration", name, value))
		}
	}
	if c.idle() > 0 && c.keepAlive() >= c.idle() {
		errs = append(errs, fmt.Errorf("timeouts.keepalive (%s) must be shorter than timeouts.idle (%s)", c.Timeouts.KeepAlive, c.Timeouts.Idle))
	}

	return errors.Join(errs...)
}

// IdleTimeout returns the parsed idle timeout.
func (c *Config) IdleTimeout() time.Duration { return c.idle() }

// KeepAliveInterval returns the parsed keepalive interval.
func (c *Config) KeepAliveInterval() time.Duration { return c.keepAlive() }

// DebugReadyTimeout returns the parsed wait for the diagnostic listener.
func (c *Config) DebugReadyTimeout() time.Duration {
	duration, _ := time.ParseDuration(c.Timeouts.DebugReady)
	return duration
}

func (c *Config) idle() time.Duration {
	duration, _ := time.ParseDuration(c.Timeouts.Idle)
	return duration
}

func (c *Config) keepAlive() time.Duration {
	duration, _ := time.ParseDuration(c.Timeouts.KeepAlive)
	return duration
}
