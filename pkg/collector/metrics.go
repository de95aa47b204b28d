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

package collector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Collection pass metrics
	scrapeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nvme_collector_scrapes_total",
			Help: "Total number of collection passes",
		},
		[]string{"status"}, // success or error
	)

	devicePollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nvme_collector_device_poll_duration_seconds",
			Help:    "Time taken to poll individual devices",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
	)

	devicePollFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nvme_collector_device_poll_failures_total",
			Help: "Per-device poll failures by classification code",
		},
		[]string{"code"},
	)

	// Workers abandoned after a per-device timeout. The blocking ioctl has
	// no cancellation; the goroutine runs until the syscall returns.
	abandonedWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nvme_collector_abandoned_workers",
			Help: "Poll workers abandoned after timeout, still blocked in the kernel",
		},
	)
)
