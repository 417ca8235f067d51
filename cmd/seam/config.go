// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DefaultConfigFileName is the config file name (seam.yaml).
const DefaultConfigFileName = "seam"

// Config holds all configuration for the seam daemon and CLI.
// Priority: CLI flags > config file > env vars > defaults.
type Config struct {
	// Store is the head-office control-plane store.
	Store StoreConfig `mapstructure:"store"`

	// Reconciler drives the background sweep loop.
	Reconciler ReconcilerConfig `mapstructure:"reconciler"`

	// Logging configuration.
	Logging LoggingConfig `mapstructure:"logging"`
}

// StoreConfig selects and locates the head-office store backend.
type StoreConfig struct {
	// Backend is "sqlite" (dev, single node) or "postgres" (production).
	Backend string `mapstructure:"backend"`

	// Path is the sqlite database file. Used only with the sqlite backend.
	Path string `mapstructure:"path"`

	// DSN is the postgres connection string. Used only with the postgres
	// backend.
	DSN string `mapstructure:"dsn"`
}

// ReconcilerConfig holds the sweep schedule.
type ReconcilerConfig struct {
	// Enabled turns the background loop on under `seam serve`.
	Enabled bool `mapstructure:"enabled"`

	// CronSpec is a robfig/cron spec; "@every 5m" by default.
	CronSpec string `mapstructure:"cron_spec"`

	// StartupDelaySeconds defers the first sweep after process start.
	StartupDelaySeconds int `mapstructure:"startup_delay_seconds"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `mapstructure:"level"`

	// Format is "text" or "json".
	Format string `mapstructure:"format"`
}

func setDefaults() {
	viper.SetDefault("store.backend", "sqlite")
	viper.SetDefault("store.path", "seam.db")
	viper.SetDefault("store.dsn", "")

	viper.SetDefault("reconciler.enabled", true)
	viper.SetDefault("reconciler.cron_spec", "@every 5m")
	viper.SetDefault("reconciler.startup_delay_seconds", 30)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
}

// loadConfig reads the config file (if any), environment and defaults.
func loadConfig() (*Config, error) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.seam")
		viper.AddConfigPath("/etc/seam/")
		viper.SetConfigName(DefaultConfigFileName)
		viper.SetConfigType("yaml")
	}

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file %s: %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.SetEnvPrefix("SEAM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	switch config.Store.Backend {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unknown store backend %q (want sqlite or postgres)", config.Store.Backend)
	}
	return &config, nil
}
