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
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/NVIDIA/nvme-exporter/pkg/config"
	"github.com/NVIDIA/nvme-exporter/pkg/metrics"
	"github.com/NVIDIA/nvme-exporter/pkg/nvme"
	"github.com/NVIDIA/nvme-exporter/pkg/registry"
)

// PollFunc polls one device and returns its decoded records. The default
// implementation issues admin commands against the device node; tests
// substitute synthetic records.
type PollFunc func(device registry.Device, timeout time.Duration) (*registry.Records, error)

// Collector orchestrates collection passes: it fans per-device work out to
// a bounded pool, enforces per-device timeouts around the non-cancellable
// ioctl path, reports outcomes back to the registry, and builds the metric
// snapshot.
type Collector struct {
	cfg      config.Config
	registry *registry.Registry
	poll     PollFunc

	// Concurrent scrape requests are coalesced into one collection pass so
	// overlapping HTTP scrapes never contend on the same device.
	flight singleflight.Group

	now func() time.Time
}

// Option configures a Collector.
type Option func(*Collector)

// WithPollFunc overrides the device poll implementation, for tests.
func WithPollFunc(poll PollFunc) Option {
	return func(c *Collector) {
		c.poll = poll
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) {
		c.now = now
	}
}

// New creates a Collector reading devices from reg.
func New(cfg config.Config, reg *registry.Registry, opts ...Option) *Collector {
	c := &Collector{
		cfg:      cfg,
		registry: reg,
		now:      time.Now,
	}
	c.poll = c.pollDevice
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ValidateStartup verifies at least one discovered controller answers a
// SMART log request. The process must fail fast rather than serve empty
// metrics when it cannot read any device.
func (c *Collector) ValidateStartup() error {
	controllers, err := c.registry.Discover()
	if err != nil {
		return err
	}
	if len(controllers) == 0 {
		return nvme.NewError(nvme.ErrCodeNoDevices,
			fmt.Sprintf("no NVMe controllers match %s", c.cfg.Devices))
	}

	timeoutMS := uint32(c.cfg.IoctlTimeout.Milliseconds())
	for _, ctrl := range controllers {
		device, err := nvme.Open(ctrl.DevPath)
		if err != nil {
			slog.Warn("startup probe cannot open device", "device", ctrl.Name, "error", err)
			continue
		}
		_, err = device.SmartHealthLog(timeoutMS)
		_ = device.Close()
		if err == nil {
			return nil
		}
		slog.Warn("startup probe failed", "device", ctrl.Name, "error", err)
	}

	return nvme.NewError(nvme.ErrCodeNoDevices,
		"no readable NVMe controllers found, ensure CAP_SYS_RAWIO or run as root")
}

// Scrape runs one collection pass and returns the metric snapshot. The
// pass never fails outright on device errors; failed devices surface as
// inaccessible. Concurrent callers share a single in-flight pass.
func (c *Collector) Scrape(ctx context.Context) *metrics.Snapshot {
	// The pass is shared by every coalesced caller, so it must not run under
	// any one caller's request context: a single client disconnect would
	// otherwise fail the pass for the others and feed a bogus timeout into
	// outcome reporting.
	passCtx := context.WithoutCancel(ctx)
	snap, _, _ := c.flight.Do("scrape", func() (any, error) {
		return c.scrape(passCtx), nil
	})
	return snap.(*metrics.Snapshot)
}

func (c *Collector) scrape(ctx context.Context) *metrics.Snapshot {
	start := c.now()
	devices := c.registry.Snapshot()
	results := make([]metrics.ScrapeResult, len(devices))

	// All device units are issued before any outcome is reported, so the
	// snapshot reflects one consistent collection pass.
	g := new(errgroup.Group)
	g.SetLimit(c.cfg.ScrapeConcurrency)

	for i, device := range devices {
		if device.PermissionDenied {
			results[i] = metrics.ScrapeResult{Device: device, Skipped: true,
				Err: nvme.NewError(nvme.ErrCodePermissionDenied,
					fmt.Sprintf("device %s skipped until rediscovery", device.Name))}
			continue
		}

		g.Go(func() error {
			pollStart := time.Now()
			records, err := c.pollWithTimeout(ctx, device)
			duration := time.Since(pollStart)

			devicePollDuration.Observe(duration.Seconds())
			if err != nil {
				devicePollFailures.WithLabelValues(string(nvme.CodeOf(err))).Inc()
				slog.Warn("device poll failed", "device", device.Name,
					"path", device.Path, "error", err)
			}

			results[i] = metrics.ScrapeResult{
				Device:   device,
				Records:  records,
				Err:      err,
				Duration: duration,
			}
			return nil
		})
	}

	_ = g.Wait()

	success := true
	reportedAt := c.now()
	for _, result := range results {
		if !result.Skipped {
			c.registry.ReportOutcome(result.Device.Path, result.Err, reportedAt, result.Records)
		}
		if !result.Accessible() {
			success = false
		}
	}

	// Re-read registry state so the snapshot reflects outcome transitions
	// (identity updates, staleness) from this very pass.
	updated := make(map[string]registry.Device, c.registry.Len())
	for _, d := range c.registry.Snapshot() {
		updated[d.Path] = d
	}
	kept := results[:0]
	for _, result := range results {
		d, ok := updated[result.Device.Path]
		if !ok {
			// Evicted during this pass.
			continue
		}
		result.Device = d
		kept = append(kept, result)
	}

	if success {
		scrapeTotal.WithLabelValues("success").Inc()
	} else {
		scrapeTotal.WithLabelValues("error").Inc()
	}

	return metrics.Build(metrics.BuildInput{
		Results:          kept,
		DiscoveredCount:  len(devices),
		Duration:         c.now().Sub(start),
		Success:          success,
		At:               start,
		CollectNamespace: c.cfg.CollectNamespace,
		CollectErrorLog:  c.cfg.CollectErrorLog,
		CollectSelfTest:  c.cfg.CollectSelfTest,
	})
}

// pollWithTimeout isolates one device's poll in its own goroutine and
// waits up to the unit budget. The underlying ioctl cannot be canceled;
// on timeout the worker is abandoned and reclaimed whenever the syscall
// returns.
func (c *Collector) pollWithTimeout(ctx context.Context, device registry.Device) (*registry.Records, error) {
	done := make(chan pollOutcome, 1)
	go func() {
		records, err := c.poll(device, c.cfg.IoctlTimeout)
		done <- pollOutcome{records: records, err: err}
	}()

	timer := time.NewTimer(c.unitBudget(device))
	defer timer.Stop()

	select {
	case out := <-done:
		return out.records, out.err
	case <-ctx.Done():
		c.abandon(done)
		return nil, nvme.WrapError(nvme.ErrCodeTimeout,
			fmt.Sprintf("poll of %s canceled", device.Name), ctx.Err())
	case <-timer.C:
		c.abandon(done)
		return nil, nvme.NewError(nvme.ErrCodeTimeout,
			fmt.Sprintf("device %s did not respond within %s", device.Name, c.cfg.IoctlTimeout))
	}
}

// unitBudget is the wall-clock allowance for one device's whole poll.
// IoctlTimeout bounds each admin command individually, so the unit gets
// one IoctlTimeout per command it will issue, plus scheduling slack. A
// device answering every command slowly but successfully stays inside it.
func (c *Collector) unitBudget(device registry.Device) time.Duration {
	commands := 2 // identify controller + SMART log
	if c.cfg.CollectNamespace {
		commands += len(device.Namespaces)
	}
	if c.cfg.CollectErrorLog {
		commands++
	}
	if c.cfg.CollectSelfTest {
		commands++
	}
	return time.Duration(commands)*c.cfg.IoctlTimeout + 500*time.Millisecond
}

type pollOutcome struct {
	records *registry.Records
	err     error
}

func (c *Collector) abandon(done <-chan pollOutcome) {
	abandonedWorkers.Inc()
	go func() {
		<-done
		abandonedWorkers.Dec()
	}()
}

// pollDevice is the production PollFunc: open the device node, fetch the
// mandatory SMART log plus identity, then the optional pages. Optional
// page failures omit their metrics but do not fail the device as long as
// the SMART command itself succeeded.
func (c *Collector) pollDevice(rd registry.Device, timeout time.Duration) (*registry.Records, error) {
	device, err := nvme.Open(rd.Path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = device.Close()
	}()

	timeoutMS := uint32(timeout.Milliseconds())
	records := &registry.Records{}

	// Identity is nice to have; discovery attributes remain the fallback.
	info, err := device.IdentifyController(timeoutMS)
	if err != nil {
		slog.Debug("identify controller failed, using discovery labels",
			"device", rd.Name, "error", err)
	} else {
		records.Info = info
	}

	health, err := device.SmartHealthLog(timeoutMS)
	if err != nil {
		return nil, err
	}
	records.Health = health

	if c.cfg.CollectNamespace {
		for _, ns := range rd.Namespaces {
			nsInfo, err := device.IdentifyNamespace(ns.ID, timeoutMS)
			if err != nil {
				slog.Warn("identify namespace failed", "device", rd.Name,
					"namespace", ns.Name, "error", err)
				continue
			}
			records.Namespaces = append(records.Namespaces,
				registry.NamespaceRecord{Name: ns.Name, Info: nsInfo})
		}
	}

	if c.cfg.CollectErrorLog {
		entries, err := device.ErrorLog(timeoutMS)
		if err != nil {
			slog.Warn("error log collection failed", "device", rd.Name, "error", err)
		} else {
			summary := nvme.SummarizeErrorLog(entries)
			records.ErrorLog = &summary
		}
	}

	if c.cfg.CollectSelfTest {
		selfTest, err := device.SelfTestLog(timeoutMS)
		if err != nil {
			slog.Warn("self-test log collection failed", "device", rd.Name, "error", err)
		} else {
			records.SelfTest = selfTest
		}
	}

	return records, nil
}
