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
	"bytes"
	"fmt"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// ContentType is the Prometheus text exposition content type served on
// /metrics.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

// Render encodes a snapshot in Prometheus text exposition format. Every
// scrape gets a fresh registry of const metrics, so stale series from
// departed devices can never linger between scrapes. Extra gatherers
// (the process-default registry carrying the exporter's own
// instrumentation) are folded into the same exposition.
func Render(snap *Snapshot, extras ...prometheus.Gatherer) (string, error) {
	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(&snapshotCollector{snap: snap}); err != nil {
		return "", fmt.Errorf("failed to register snapshot collector: %w", err)
	}

	gatherers := make(prometheus.Gatherers, 0, len(extras)+1)
	gatherers = append(gatherers, reg)
	gatherers = append(gatherers, extras...)

	families, err := gatherers.Gather()
	if err != nil {
		return "", fmt.Errorf("failed to gather snapshot metrics: %w", err)
	}

	var buf bytes.Buffer
	encoder := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := encoder.Encode(family); err != nil {
			return "", fmt.Errorf("failed to encode metric family %s: %w", family.GetName(), err)
		}
	}

	return buf.String(), nil
}

// snapshotCollector adapts a Snapshot to the prometheus.Collector
// interface so the standard gather/encode machinery does the formatting.
type snapshotCollector struct {
	snap *Snapshot
}

func (c *snapshotCollector) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(c, ch)
}

func (c *snapshotCollector) Collect(ch chan<- prometheus.Metric) {
	for _, p := range c.snap.Points {
		names, values := splitLabels(p.Labels)

		valueType := prometheus.GaugeValue
		if p.Kind == Counter {
			valueType = prometheus.CounterValue
		}

		desc := prometheus.NewDesc(p.Name, p.Help, names, nil)
		ch <- prometheus.MustNewConstMetric(desc, valueType, p.Value, values...)
	}
}

// splitLabels returns label names sorted with values in matching order,
// the deterministic ordering const metric descriptors require.
func splitLabels(labels map[string]string) ([]string, []string) {
	if len(labels) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make([]string, len(names))
	for i, name := range names {
		values[i] = labels[name]
	}
	return names, values
}
