// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config bounds a vfsmuxd instance, layered by viper from (in increasing
// priority) a config file, environment variables prefixed VFSMUXD_, and
// command-line flags.
type Config struct {
	ClientAddr          string `mapstructure:"client-addr"`
	BackendAddr         string `mapstructure:"backend-addr"`
	DescriptorTableSize int    `mapstructure:"descriptor-table-size"`
	MtabPath            string `mapstructure:"mtab-path"`
	MtabLoadTimeout     int    `mapstructure:"mtab-load-timeout-seconds"`
	LogLevel            string `mapstructure:"log-level"`
}

func defaultConfig() Config {
	return Config{
		ClientAddr:          "/var/run/vfsmuxd/client.sock",
		BackendAddr:         "/var/run/vfsmuxd/backend.sock",
		DescriptorTableSize: 64,
		MtabPath:            "/var/lib/vfsmuxd/mtab.gob",
		MtabLoadTimeout:     10,
		LogLevel:            "info",
	}
}

func loadConfig(v *viper.Viper) (Config, error) {
	cfg := defaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("vfsmuxd: parsing config: %w", err)
	}
	if cfg.DescriptorTableSize <= 0 {
		return Config{}, fmt.Errorf("vfsmuxd: descriptor-table-size must be positive, got %d", cfg.DescriptorTableSize)
	}
	return cfg, nil
}
