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

package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/nvme-exporter/pkg/registry"
)

func TestRenderTextExposition(t *testing.T) {
	snap := &Snapshot{
		Taken: time.Now(),
		Points: []Point{
			{Name: "nvme_temperature_celsius", Help: "Composite temperature in Celsius",
				Kind: Gauge, Labels: map[string]string{"device": "nvme0"}, Value: 45},
			{Name: "nvme_data_units_read_total", Help: "Data units read",
				Kind: Counter, Labels: map[string]string{"device": "nvme0"}, Value: 1000},
			{Name: "nvme_scrape_success", Help: "Scrape success", Kind: Gauge, Value: 1},
		},
	}

	out, err := Render(snap)
	require.NoError(t, err)

	assert.Contains(t, out, `nvme_temperature_celsius{device="nvme0"} 45`)
	assert.Contains(t, out, `nvme_data_units_read_total{device="nvme0"} 1000`)
	assert.Contains(t, out, "nvme_scrape_success 1")
	assert.Contains(t, out, "# HELP nvme_temperature_celsius Composite temperature in Celsius")
	assert.Contains(t, out, "# TYPE nvme_temperature_celsius gauge")
	assert.Contains(t, out, "# TYPE nvme_data_units_read_total counter")
}

func TestRenderMultipleDevices(t *testing.T) {
	snap := &Snapshot{
		Points: []Point{
			{Name: "nvme_device_accessible", Help: "accessible", Kind: Gauge,
				Labels: map[string]string{"device": "nvme0"}, Value: 1},
			{Name: "nvme_device_accessible", Help: "accessible", Kind: Gauge,
				Labels: map[string]string{"device": "nvme1"}, Value: 0},
		},
	}

	out, err := Render(snap)
	require.NoError(t, err)

	assert.Contains(t, out, `nvme_device_accessible{device="nvme0"} 1`)
	assert.Contains(t, out, `nvme_device_accessible{device="nvme1"} 0`)
	// One family, one HELP line.
	assert.Equal(t, 1, strings.Count(out, "# HELP nvme_device_accessible"))
}

func TestRenderEmptySnapshot(t *testing.T) {
	out, err := Render(&Snapshot{})
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(out))
}

func TestRenderNoStaleSeriesAcrossSnapshots(t *testing.T) {
	// A departed device simply stops appearing: rendering is stateless.
	first := Build(buildInput(ScrapeResult{
		Device:  registry.Device{Name: "nvme0", State: registry.StateActive},
		Records: healthyRecords(),
	}))
	out1, err := Render(first)
	require.NoError(t, err)
	assert.Contains(t, out1, `device="nvme0"`)

	second := Build(BuildInput{Success: true})
	out2, err := Render(second)
	require.NoError(t, err)
	assert.NotContains(t, out2, `device="nvme0"`)
	assert.Contains(t, out2, "nvme_device_count 0")
}

func TestRenderFoldsExtraGatherers(t *testing.T) {
	internal := prometheus.NewRegistry()
	abandoned := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "nvme_collector_abandoned_workers",
		Help: "Poll workers abandoned after timeout, still blocked in the kernel",
	})
	require.NoError(t, internal.Register(abandoned))
	abandoned.Set(2)

	snap := &Snapshot{
		Points: []Point{
			{Name: "nvme_scrape_success", Help: "Scrape success", Kind: Gauge, Value: 1},
		},
	}

	out, err := Render(snap, internal)
	require.NoError(t, err)

	// Snapshot points and instrumentation share one exposition.
	assert.Contains(t, out, "nvme_scrape_success 1")
	assert.Contains(t, out, "nvme_collector_abandoned_workers 2")
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/plain; version=0.0.4; charset=utf-8", ContentType)
}
