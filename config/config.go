// Copyright (C) 2026 waveline-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package config holds the tunables of the companion-protocol client.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Window is a relative deadline range for the keep-alive timer. The timer
// fires at Max; a pending deadline inside [Min, Max] is left untouched on
// re-arm to avoid resetting the timer on every inbound frame.
type Window struct {
	Min time.Duration `yaml:"min" json:"min"`
	Max time.Duration `yaml:"max" json:"max"`
}

// Config is the main configuration structure.
type Config struct {
	// Endpoint is the websocket URL of the web-companion endpoint.
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// Origin is sent as the Origin header on dial.
	Origin string `yaml:"origin" json:"origin"`

	// ReconnectFloor is the minimum delay between connection attempt
	// starts.
	ReconnectFloor time.Duration `yaml:"reconnect_floor" json:"reconnect_floor"`

	// PingWindow is the idle span after which a keep-alive probe is sent.
	PingWindow Window `yaml:"ping_window" json:"ping_window"`
	// DeathlineWindow is the span after a probe within which the peer
	// must answer before the socket is closed.
	DeathlineWindow Window `yaml:"deathline_window" json:"deathline_window"`

	Logging *LoggingConfig `yaml:"logging" json:"logging"`
	Metrics *MetricsConfig `yaml:"metrics" json:"metrics"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Pretty bool   `yaml:"pretty" json:"pretty"`
}

// MetricsConfig represents metrics configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}

// Default returns the production defaults.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// LoadFromFile loads configuration from a YAML (or JSON) file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file (tried YAML and JSON): %w", err)
		}
	}

	setDefaults(cfg)
	cfg.applyEnv()
	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "wss://w7.web.whatsapp.com/ws"
	}
	if cfg.Origin == "" {
		cfg.Origin = "https://web.whatsapp.com"
	}
	if cfg.ReconnectFloor == 0 {
		cfg.ReconnectFloor = 10 * time.Second
	}
	if cfg.PingWindow == (Window{}) {
		cfg.PingWindow = Window{Min: 12 * time.Second, Max: 16 * time.Second}
	}
	if cfg.DeathlineWindow == (Window{}) {
		cfg.DeathlineWindow = Window{Min: 3 * time.Second, Max: 5500 * time.Millisecond}
	}
	if cfg.Logging == nil {
		cfg.Logging = &LoggingConfig{Level: "info"}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{Path: "/metrics", Port: 9090}
	}
}

// Validate checks the configuration for consistency.
func (cfg *Config) Validate() error {
	if !strings.HasPrefix(cfg.Endpoint, "ws://") && !strings.HasPrefix(cfg.Endpoint, "wss://") {
		return fmt.Errorf("endpoint %q is not a websocket url", cfg.Endpoint)
	}
	for _, w := range []Window{cfg.PingWindow, cfg.DeathlineWindow} {
		if w.Min <= 0 || w.Max < w.Min {
			return fmt.Errorf("invalid timer window %v", w)
		}
	}
	if cfg.ReconnectFloor < 0 {
		return fmt.Errorf("negative reconnect floor")
	}
	return nil
}
