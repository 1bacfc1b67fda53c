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

package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnvFile reads a .env file into the process environment, ignoring a
// missing file.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// applyEnv overrides configuration from WAVELINE_* variables.
func (cfg *Config) applyEnv() {
	if v := os.Getenv("WAVELINE_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv("WAVELINE_ORIGIN"); v != "" {
		cfg.Origin = v
	}
	if v := os.Getenv("WAVELINE_RECONNECT_FLOOR"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ReconnectFloor = d
		}
	}
	if v := os.Getenv("WAVELINE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
