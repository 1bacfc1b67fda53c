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

package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/waveline-project/waveline/config"
	"github.com/waveline-project/waveline/internal/logger"
	"github.com/waveline-project/waveline/internal/metrics"
)

var (
	configFile  string
	sessionFile string
)

var rootCmd = &cobra.Command{
	Use:   "waveline",
	Short: "Waveline - web-companion chat client",
	Long: `Waveline speaks the proprietary protocol of a consumer chat service's
web-companion endpoint. Pair once by QR code, then resume with the stored
session file.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnvFile(""); err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := logger.NewDefaultLogger()
		log.SetLevel(logger.ParseLevel(cfg.Logging.Level))
		log.SetPrettyPrint(cfg.Logging.Pretty)
		logger.SetDefaultLogger(log)

		if cfg.Metrics.Enabled {
			mux := http.NewServeMux()
			mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
			go func() {
				addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
				if err := http.ListenAndServe(addr, mux); err != nil {
					logger.Warn("metrics listener stopped", logger.Error(err))
				}
			}()
		}
		return nil
	},
}

func loadConfig() (*config.Config, error) {
	if configFile == "" {
		return config.Default(), nil
	}
	return config.LoadFromFile(configFile)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVarP(&sessionFile, "session", "s", "waveline-session.json", "path of the stored session blob")
}
