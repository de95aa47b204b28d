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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "0.0.0.0:9998", cfg.ListenAddress)
	assert.Equal(t, "/dev/nvme*", cfg.Devices)
	assert.Equal(t, 30*time.Second, cfg.DiscoveryInterval)
	assert.Equal(t, 300*time.Second, cfg.StaleDeviceGrace)
	assert.Equal(t, 600*time.Second, cfg.DeviceEvictHorizon)
	assert.Equal(t, 5*time.Second, cfg.IoctlTimeout)
	assert.Equal(t, 4, cfg.ScrapeConcurrency)
	assert.True(t, cfg.CollectNamespace)
	assert.True(t, cfg.CollectErrorLog)
	assert.True(t, cfg.CollectSelfTest)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)

	assert.NoError(t, cfg.Validate())
}

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	path := writeConfigFile(t, `
listen-address: 127.0.0.1:9999
devices: /dev/nvme1*
ioctl-timeout: 2s
collect-self-test: false
`)

	cfg := Default()
	require.NoError(t, cfg.LoadFile(path))

	assert.Equal(t, "127.0.0.1:9999", cfg.ListenAddress)
	assert.Equal(t, "/dev/nvme1*", cfg.Devices)
	assert.Equal(t, 2*time.Second, cfg.IoctlTimeout)
	assert.False(t, cfg.CollectSelfTest)

	// Untouched keys keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.DiscoveryInterval)
	assert.True(t, cfg.CollectErrorLog)
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := writeConfigFile(t, "listen-adress: 127.0.0.1:9999\n")

	cfg := Default()
	assert.Error(t, cfg.LoadFile(path))
}

func TestLoadFileMissing(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.LoadFile("/nonexistent/config.yaml"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen address", func(c *Config) { c.ListenAddress = "" }},
		{"empty device pattern", func(c *Config) { c.Devices = "" }},
		{"zero discovery interval", func(c *Config) { c.DiscoveryInterval = 0 }},
		{"zero grace", func(c *Config) { c.StaleDeviceGrace = 0 }},
		{"negative evict horizon", func(c *Config) { c.DeviceEvictHorizon = -time.Second }},
		{"zero ioctl timeout", func(c *Config) { c.IoctlTimeout = 0 }},
		{"zero concurrency", func(c *Config) { c.ScrapeConcurrency = 0 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("zero evict horizon disables eviction", func(t *testing.T) {
		cfg := Default()
		cfg.DeviceEvictHorizon = 0
		assert.NoError(t, cfg.Validate())
	})
}
