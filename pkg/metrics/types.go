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
	"time"

	"github.com/NVIDIA/nvme-exporter/pkg/registry"
)

// Kind distinguishes gauge and counter points for exposition.
type Kind int

const (
	// Gauge points carry an instantaneous value.
	Gauge Kind = iota
	// Counter points carry a monotonically increasing total.
	Counter
)

// Point is one named, labeled metric value. The device label is always
// present on device-scoped points.
type Point struct {
	Name   string
	Help   string
	Kind   Kind
	Labels map[string]string
	Value  float64
}

// Snapshot is the ordered result of one collection pass. It is built fresh
// every scrape and has no relationship to prior snapshots.
type Snapshot struct {
	Points []Point
	Taken  time.Time
}

// ScrapeResult is one device's outcome from a collection pass: the
// registry state observed at scrape time, the freshly decoded records on
// success, and the classified error otherwise.
type ScrapeResult struct {
	Device   registry.Device
	Records  *registry.Records
	Err      error
	Duration time.Duration
	// Skipped devices (permission-denied since last discovery) were not
	// polled this cycle at all.
	Skipped bool
}

// Accessible reports whether the device responded in this cycle.
func (r ScrapeResult) Accessible() bool {
	return r.Err == nil && !r.Skipped
}

// BuildInput carries everything the builder needs beyond per-device results.
type BuildInput struct {
	Results         []ScrapeResult
	DiscoveredCount int
	Duration        time.Duration
	Success         bool
	At              time.Time

	CollectNamespace bool
	CollectErrorLog  bool
	CollectSelfTest  bool
}
