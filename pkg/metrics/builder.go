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
	"strconv"
)

// Build is the pure transform from per-device scrape results and registry
// state to a flat metric snapshot. No side effects, no I/O.
func Build(in BuildInput) *Snapshot {
	b := &builder{snap: &Snapshot{Taken: in.At}}

	for _, result := range in.Results {
		b.buildDevice(result, in)
	}

	b.gauge("nvme_device_count", "Number of NVMe controllers discovered", nil,
		float64(in.DiscoveredCount))
	b.gauge("nvme_scrape_duration_seconds", "Time spent collecting all device metrics", nil,
		in.Duration.Seconds())
	b.gauge("nvme_scrape_success", "1 if the collection pass had no device failures, 0 otherwise", nil,
		boolValue(in.Success))

	return b.snap
}

type builder struct {
	snap *Snapshot
}

func (b *builder) buildDevice(result ScrapeResult, in BuildInput) {
	d := result.Device
	device := map[string]string{"device": d.Name}

	b.gauge("nvme_info", "NVMe device identity", map[string]string{
		"device":   d.Name,
		"model":    orUnknown(d.Model),
		"serial":   orUnknown(d.Serial),
		"firmware": orUnknown(d.Firmware),
	}, 1)

	b.gauge("nvme_device_accessible", "Whether the device responded in this collection cycle",
		device, boolValue(result.Accessible()))
	b.gauge("nvme_device_scrape_duration_seconds", "Time spent polling this device",
		device, result.Duration.Seconds())

	// A fresh decode wins; a device failing inside the grace window falls
	// back to its last-known records with accessible=0 for this cycle.
	records := result.Records
	if records == nil {
		records = d.LastKnown
	}
	if records == nil {
		return
	}

	if health := records.Health; health != nil {
		b.gauge("nvme_critical_warning", "Raw critical warning bitfield", device,
			float64(health.CriticalWarning))
		b.gauge("nvme_critical_warning_available_spare", "Critical warning: spare capacity low",
			device, boolValue(health.SpareLow))
		b.gauge("nvme_critical_warning_temperature", "Critical warning: temperature over threshold",
			device, boolValue(health.TemperatureThreshold))
		b.gauge("nvme_critical_warning_reliability", "Critical warning: reliability degraded",
			device, boolValue(health.ReliabilityDegraded))
		b.gauge("nvme_critical_warning_read_only", "Critical warning: media in read-only mode",
			device, boolValue(health.ReadOnly))
		b.gauge("nvme_critical_warning_volatile_backup", "Critical warning: volatile memory backup failed",
			device, boolValue(health.VolatileBackupFailed))

		b.gauge("nvme_device_health", "1 when the device reports no health degradation",
			device, boolValue(health.Healthy()))

		if temp, ok := health.TemperatureCelsius(); ok {
			b.gauge("nvme_temperature_celsius", "Composite temperature in Celsius", device, temp)
		}
		for i := range health.TemperatureSensorsKelvin {
			if temp, ok := health.SensorCelsius(i); ok {
				b.gauge("nvme_temperature_sensor_celsius", "Temperature sensor reading in Celsius",
					map[string]string{"device": d.Name, "sensor": strconv.Itoa(i + 1)}, temp)
			}
		}

		b.gauge("nvme_available_spare_percent", "Available spare capacity percent",
			device, float64(health.AvailableSpare))
		b.gauge("nvme_spare_threshold_percent", "Available spare threshold percent",
			device, float64(health.SpareThreshold))
		b.gauge("nvme_percentage_used", "Vendor estimate of life used percent, may exceed 100",
			device, float64(health.PercentageUsed))

		b.counter("nvme_data_units_read_total", "Data units read (512,000 byte units)",
			device, health.DataUnitsRead.Float64())
		b.counter("nvme_data_units_written_total", "Data units written (512,000 byte units)",
			device, health.DataUnitsWritten.Float64())
		b.counter("nvme_host_read_commands_total", "Host read commands completed",
			device, health.HostReadCommands.Float64())
		b.counter("nvme_host_write_commands_total", "Host write commands completed",
			device, health.HostWriteCommands.Float64())
		b.counter("nvme_controller_busy_time_seconds_total", "Controller busy time in seconds",
			device, health.ControllerBusyTime.Float64()*60)
		b.counter("nvme_power_cycles_total", "Power cycle count",
			device, health.PowerCycles.Float64())
		b.counter("nvme_power_on_hours", "Power on hours",
			device, health.PowerOnHours.Float64())
		b.counter("nvme_unsafe_shutdowns_total", "Unsafe shutdown count",
			device, health.UnsafeShutdowns.Float64())
		b.counter("nvme_media_errors_total", "Detected media error count",
			device, health.MediaErrors.Float64())
		b.counter("nvme_error_log_entries_total", "Lifetime error information log entries",
			device, health.ErrorLogEntryCount.Float64())
		b.counter("nvme_warning_temperature_time_minutes_total", "Minutes at or above warning temperature",
			device, float64(health.WarningTempMinutes))
		b.counter("nvme_critical_temperature_time_minutes_total", "Minutes at or above critical temperature",
			device, float64(health.CriticalTempMinutes))
		b.counter("nvme_thermal_mgmt_t1_transitions_total", "Thermal management T1 transitions",
			device, float64(health.ThermalMgmtT1Transitions))
		b.counter("nvme_thermal_mgmt_t2_transitions_total", "Thermal management T2 transitions",
			device, float64(health.ThermalMgmtT2Transitions))
		b.counter("nvme_thermal_mgmt_t1_time_seconds_total", "Seconds spent in thermal management T1",
			device, float64(health.ThermalMgmtT1Seconds))
		b.counter("nvme_thermal_mgmt_t2_time_seconds_total", "Seconds spent in thermal management T2",
			device, float64(health.ThermalMgmtT2Seconds))

		if health.DataUnitsRead.Overflow || health.DataUnitsWritten.Overflow ||
			health.HostReadCommands.Overflow || health.HostWriteCommands.Overflow {
			b.gauge("nvme_counter_overflow", "1 when a 128-bit counter exceeded the 64-bit range",
				device, 1)
		}
	}

	if in.CollectNamespace {
		for _, ns := range records.Namespaces {
			if ns.Info == nil {
				continue
			}
			labels := map[string]string{"device": d.Name, "namespace": ns.Name}
			b.gauge("nvme_namespace_size_sectors", "Namespace size in LBAs",
				labels, float64(ns.Info.Size))
			b.gauge("nvme_namespace_capacity_sectors", "Namespace capacity in LBAs",
				labels, float64(ns.Info.Capacity))
			b.gauge("nvme_namespace_utilization_sectors", "Namespace utilization in LBAs",
				labels, float64(ns.Info.Utilization))
		}
	}

	if in.CollectErrorLog && records.ErrorLog != nil {
		b.gauge("nvme_error_log_non_zero_entries", "Populated entries in the error information log",
			device, float64(records.ErrorLog.NonZeroEntries))
		b.gauge("nvme_error_log_max_error_count", "Largest error count in the error information log",
			device, float64(records.ErrorLog.MaxErrorCount))
	}

	if in.CollectSelfTest && records.SelfTest != nil {
		b.gauge("nvme_self_test_current_operation", "Self-test operation in progress, 0 when idle",
			device, float64(records.SelfTest.CurrentOperation))
		b.gauge("nvme_self_test_current_completion_ratio", "Completion ratio of the in-progress self-test",
			device, records.SelfTest.CurrentCompletionRatio)
		if records.SelfTest.MostRecent.Valid {
			b.gauge("nvme_self_test_last_result", "Result code of the most recent self-test",
				device, float64(records.SelfTest.MostRecent.Result))
		}
	}
}

func (b *builder) gauge(name, help string, labels map[string]string, value float64) {
	b.add(Point{Name: name, Help: help, Kind: Gauge, Labels: labels, Value: value})
}

func (b *builder) counter(name, help string, labels map[string]string, value float64) {
	b.add(Point{Name: name, Help: help, Kind: Counter, Labels: labels, Value: value})
}

func (b *builder) add(p Point) {
	b.snap.Points = append(b.snap.Points, p)
}

func boolValue(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
