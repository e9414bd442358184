// Copyright (C) 2025 sage-x-project
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
	"encoding/json"
	"fmt"
	"io/ioutil"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sage-x-project/nearbylink/internal/logger"
)

// Config represents the main configuration structure
type Config struct {
	Environment string          `yaml:"environment" json:"environment"`
	Transport   *TransportConfig `yaml:"transport" json:"transport"`
	Identity    *IdentityConfig  `yaml:"identity" json:"identity"`
	Logging     *LoggingConfig  `yaml:"logging" json:"logging"`
	Metrics     *MetricsConfig  `yaml:"metrics" json:"metrics"`
	Health      *HealthConfig   `yaml:"health" json:"health"`
}

// TransportConfig controls the TCP dial/listen side of the offline
// transfer protocol.
type TransportConfig struct {
	ListenAddr     string        `yaml:"listen_addr" json:"listen_addr"`
	DialTimeout    time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	HandshakeDeadline time.Duration `yaml:"handshake_deadline" json:"handshake_deadline"`
	KeepaliveEvery time.Duration `yaml:"keepalive_every" json:"keepalive_every"`
}

// IdentityConfig advertises this device to discovered peers.
type IdentityConfig struct {
	Hostname   string `yaml:"hostname" json:"hostname"`
	DeviceType string `yaml:"device_type" json:"device_type"` // phone, laptop, tablet
	Medium     string `yaml:"medium" json:"medium"`           // wifi_lan, bluetooth, ...
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// MetricsConfig represents metrics configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}

// HealthConfig represents health check configuration
type HealthConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Port    int      `yaml:"port" json:"port"`
	Path    string   `yaml:"path" json:"path"`
	Checks  []string `yaml:"checks" json:"checks"`
}

// LoadFromFile loads configuration from a file
func LoadFromFile(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}

	// Try to parse as YAML first
	if err := yaml.Unmarshal(data, cfg); err != nil {
		// Try JSON if YAML fails
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			sageErr := logger.NewSageError(logger.ErrCodeConfigurationError, "failed to parse config file", jsonErr).
				WithDetails("path", path).
				WithDetails("yaml_error", err.Error())
			return nil, sageErr
		}
	}

	// Set defaults
	setDefaults(cfg)

	return cfg, nil
}

// SaveToFile saves configuration to a file
func SaveToFile(cfg *Config, path string) error {
	// Determine format by extension
	var data []byte
	var err error

	if path[len(path)-5:] == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}

	if err != nil {
		return logger.NewSageError(logger.ErrCodeConfigurationError, "failed to marshal config", err).WithDetails("path", path)
	}

	if err := ioutil.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setDefaults sets default values for configuration
func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.Transport != nil {
		if cfg.Transport.ListenAddr == "" {
			cfg.Transport.ListenAddr = ":0"
		}
		if cfg.Transport.DialTimeout == 0 {
			cfg.Transport.DialTimeout = 10 * time.Second
		}
		if cfg.Transport.HandshakeDeadline == 0 {
			cfg.Transport.HandshakeDeadline = 15 * time.Second
		}
		if cfg.Transport.KeepaliveEvery == 0 {
			cfg.Transport.KeepaliveEvery = 30 * time.Second
		}
	}

	if cfg.Identity != nil {
		if cfg.Identity.DeviceType == "" {
			cfg.Identity.DeviceType = "laptop"
		}
		if cfg.Identity.Medium == "" {
			cfg.Identity.Medium = "wifi_lan"
		}
	}

	if cfg.Logging != nil {
		if cfg.Logging.Level == "" {
			cfg.Logging.Level = "info"
		}
		if cfg.Logging.Format == "" {
			cfg.Logging.Format = "json"
		}
		if cfg.Logging.Output == "" {
			cfg.Logging.Output = "stdout"
		}
	}
}