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

package registry

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/NVIDIA/nvme-exporter/pkg/nvme"
)

// DeviceState is the coarse liveness state of a known device.
type DeviceState string

const (
	// StateActive means the device responded within the grace window.
	StateActive DeviceState = "active"
	// StateStale means poll failures have outlasted the grace window; the
	// device is retained, reported inaccessible, and eventually evicted.
	StateStale DeviceState = "stale"
)

// NamespaceRecord pairs a namespace name with its decoded identify data.
type NamespaceRecord struct {
	Name string
	Info *nvme.NamespaceInfo
}

// Records holds the decoded log pages from a device's most recent
// successful poll. Decoded records are immutable; a fresh Records value
// replaces the previous one wholesale.
type Records struct {
	Info       *nvme.ControllerInfo
	Health     *nvme.SmartHealthLog
	Namespaces []NamespaceRecord
	ErrorLog   *nvme.ErrorLogSummary
	SelfTest   *nvme.SelfTestLog
}

// Device is one known NVMe controller and its liveness bookkeeping.
// Devices are owned exclusively by the Registry; callers receive copies.
type Device struct {
	Name     string
	Path     string
	Model    string
	Serial   string
	Firmware string

	Namespaces []nvme.Namespace

	State          DeviceState
	LastDiscovered time.Time
	LastSuccess    time.Time
	LastOutcome    nvme.ErrorCode

	// PermissionDenied devices are skipped until rediscovery confirms them;
	// retrying a denied ioctl every scrape is pointless noise.
	PermissionDenied bool

	// LastKnown carries the records from the most recent successful poll so
	// a device failing inside the grace window still exposes values.
	LastKnown *Records
}

// Registry owns the authoritative set of known devices. It is mutated by
// the discovery timer (Reconcile) and by scrape outcome reporting
// (ReportOutcome); all access goes through one mutex so concurrent
// discovery and scraping never observe a torn state.
type Registry struct {
	pattern      string
	grace        time.Duration
	evictHorizon time.Duration

	mu      sync.RWMutex
	devices map[string]*Device

	now      func() time.Time
	discover DiscoverFunc
}

// DiscoverFunc enumerates controllers matching a device glob pattern.
type DiscoverFunc func(pattern string) ([]nvme.Controller, error)

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithDiscoverFunc overrides controller enumeration, for tests.
func WithDiscoverFunc(discover DiscoverFunc) Option {
	return func(r *Registry) {
		r.discover = discover
	}
}

// New creates a Registry. The grace window controls the Active→Stale
// transition; evictHorizon is the additional window after which a stale
// device is dropped entirely (zero disables eviction).
func New(pattern string, grace, evictHorizon time.Duration, opts ...Option) *Registry {
	r := &Registry{
		pattern:      pattern,
		grace:        grace,
		evictHorizon: evictHorizon,
		devices:      make(map[string]*Device),
		now:          time.Now,
		discover:     nvme.DiscoverControllers,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Discover enumerates controllers matching the configured pattern. It is
// purely informational and does not mutate registry state.
func (r *Registry) Discover() ([]nvme.Controller, error) {
	return r.discover(r.pattern)
}

// Reconcile folds discovery candidates into the registry: new controllers
// are added as Active, known ones get their identity attributes and
// namespace topology refreshed. Known devices absent from candidates are
// left untouched; their absence surfaces as poll failures handled by
// ReportOutcome. Stale devices past the eviction horizon are dropped here
// as well, so eviction proceeds even when scrapes are idle.
func (r *Registry) Reconcile(candidates []nvme.Controller) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range candidates {
		d, ok := r.devices[c.DevPath]
		if !ok {
			d = &Device{
				Name:        c.Name,
				Path:        c.DevPath,
				State:       StateActive,
				LastSuccess: now,
			}
			r.devices[c.DevPath] = d
			slog.Info("device discovered", "device", c.Name, "path", c.DevPath)
		}

		d.LastDiscovered = now
		d.Namespaces = c.Namespaces
		// Sysfs attributes are a fallback; identify controller data wins
		// once a poll succeeds.
		if c.Model != "" {
			d.Model = c.Model
		}
		if c.Serial != "" {
			d.Serial = c.Serial
		}
		if c.Firmware != "" {
			d.Firmware = c.Firmware
		}
		// A device seen again by discovery gets another chance even if a
		// previous poll was denied.
		d.PermissionDenied = false
	}

	r.evictExpiredLocked(now)
}

// ReportOutcome records the result of one scrape cycle's poll of a device.
// Success resets the device to Active and stores its fresh records.
// Failure leaves last-known values in place; the state degrades to Stale
// once the grace window since the last success has elapsed, and the device
// is evicted once staleness outlasts the eviction horizon.
func (r *Registry) ReportOutcome(path string, err error, at time.Time, records *Records) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[path]
	if !ok {
		return
	}

	if err == nil {
		d.State = StateActive
		d.LastSuccess = at
		d.LastOutcome = ""
		d.PermissionDenied = false
		if records != nil {
			d.LastKnown = records
			if records.Info != nil {
				if records.Info.Model != "" {
					d.Model = records.Info.Model
				}
				if records.Info.Serial != "" {
					d.Serial = records.Info.Serial
				}
				if records.Info.Firmware != "" {
					d.Firmware = records.Info.Firmware
				}
			}
		}
		return
	}

	code := nvme.CodeOf(err)
	d.LastOutcome = code

	switch code {
	case nvme.ErrCodeDeviceGone:
		// Removal mid-operation skips the remaining grace time.
		d.State = StateStale
	case nvme.ErrCodePermissionDenied:
		d.PermissionDenied = true
	}

	if at.Sub(d.LastSuccess) > r.grace {
		d.State = StateStale
	}

	r.evictExpiredLocked(at)
}

func (r *Registry) evictExpiredLocked(now time.Time) {
	if r.evictHorizon <= 0 {
		return
	}
	for path, d := range r.devices {
		if d.State != StateStale {
			continue
		}
		if now.Sub(d.LastSuccess) > r.grace+r.evictHorizon {
			slog.Warn("evicting stale device", "device", d.Name, "path", path,
				"lastSuccess", d.LastSuccess)
			delete(r.devices, path)
		}
	}
}

// Snapshot returns a copy of all known devices ordered by name. It is safe
// to call concurrently with Reconcile and ReportOutcome.
func (r *Registry) Snapshot() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, *d)
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Name < devices[j].Name
	})
	return devices
}

// Len returns the number of known devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Run drives the discovery timer until the context is canceled. An initial
// reconcile happens immediately; enumeration failures are logged and
// retried on the next tick. A scrape never blocks on this loop.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	r.refresh()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh()
		}
	}
}

func (r *Registry) refresh() {
	controllers, err := r.Discover()
	if err != nil {
		slog.Error("device discovery failed", "error", err)
		return
	}
	r.Reconcile(controllers)
	slog.Debug("discovery complete", "controllers", len(controllers))
}
