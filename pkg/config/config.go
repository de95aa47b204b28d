// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
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

package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the immutable exporter configuration. It is populated once at
// startup (flags, environment, optional YAML file) and passed by value to
// the components that consume it.
type Config struct {
	// ListenAddress is the host:port the HTTP listener binds.
	ListenAddress string `yaml:"listen-address"`

	// Devices is the glob pattern matched against controller device paths.
	Devices string `yaml:"devices"`

	// DiscoveryInterval is the cadence of the controller enumeration timer,
	// independent of scrape cadence.
	DiscoveryInterval time.Duration `yaml:"discovery-interval"`

	// StaleDeviceGrace is how long a device keeps reporting last-known
	// values after its last successful poll before it turns stale.
	StaleDeviceGrace time.Duration `yaml:"stale-device-grace"`

	// DeviceEvictHorizon is the additional window beyond the grace period
	// after which a stale device is removed from the registry entirely.
	// Zero disables eviction.
	DeviceEvictHorizon time.Duration `yaml:"device-evict-horizon"`

	// IoctlTimeout bounds the per-device wait for a single admin command.
	IoctlTimeout time.Duration `yaml:"ioctl-timeout"`

	// ScrapeConcurrency bounds the number of devices polled in parallel.
	ScrapeConcurrency int `yaml:"scrape-concurrency"`

	// Optional collections beyond the SMART / health log.
	CollectNamespace bool `yaml:"collect-namespace"`
	CollectErrorLog  bool `yaml:"collect-error-log"`
	CollectSelfTest  bool `yaml:"collect-self-test"`

	// Logging surface; consumed by the CLI layer, not by the core.
	LogLevel  string `yaml:"log-level"`
	LogFormat string `yaml:"log-format"`
}

// Default returns the exporter defaults, matching the documented flag
// defaults one for one.
func Default() Config {
	return Config{
		ListenAddress:      "0.0.0.0:9998",
		Devices:            "/dev/nvme*",
		DiscoveryInterval:  30 * time.Second,
		StaleDeviceGrace:   300 * time.Second,
		DeviceEvictHorizon: 600 * time.Second,
		IoctlTimeout:       5 * time.Second,
		ScrapeConcurrency:  4,
		CollectNamespace:   true,
		CollectErrorLog:    true,
		CollectSelfTest:    true,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// LoadFile overlays YAML file contents on top of c. Unknown keys are
// rejected so typos fail fast instead of silently using defaults.
func (c *Config) LoadFile(path string) error {
	contents, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(contents))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks invariants the rest of the tree relies on.
func (c Config) Validate() error {
	if c.ListenAddress == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.Devices == "" {
		return fmt.Errorf("device pattern must not be empty")
	}
	if c.DiscoveryInterval <= 0 {
		return fmt.Errorf("discovery interval must be greater than zero")
	}
	if c.StaleDeviceGrace <= 0 {
		return fmt.Errorf("stale-device-grace must be greater than zero")
	}
	if c.DeviceEvictHorizon < 0 {
		return fmt.Errorf("device-evict-horizon must not be negative")
	}
	if c.IoctlTimeout <= 0 {
		return fmt.Errorf("ioctl timeout must be greater than zero")
	}
	if c.ScrapeConcurrency <= 0 {
		return fmt.Errorf("scrape concurrency must be greater than zero")
	}
	return nil
}
