/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package cli

import (
	"context"
	"log/slog"

	"github.com/NVIDIA/nvme-exporter/pkg/collector"
	"github.com/NVIDIA/nvme-exporter/pkg/config"
	"github.com/NVIDIA/nvme-exporter/pkg/registry"
	"github.com/NVIDIA/nvme-exporter/pkg/server"
)

// serve wires the registry, collector and HTTP server together and blocks
// until shutdown. Startup fails fast when no controller is readable so a
// misconfigured unit exits non-zero instead of serving empty metrics.
func serve(ctx context.Context, cfg config.Config) error {
	reg := registry.New(cfg.Devices, cfg.StaleDeviceGrace, cfg.DeviceEvictHorizon)

	controllers, err := reg.Discover()
	if err != nil {
		return err
	}
	reg.Reconcile(controllers)
	slog.Info("initial discovery complete", "controllers", reg.Len(), "pattern", cfg.Devices)

	col := collector.New(cfg, reg)
	if err := col.ValidateStartup(); err != nil {
		slog.Error("startup validation failed", "error", err)
		return err
	}

	srv := server.New(
		server.WithName(name),
		server.WithVersion(version),
		server.WithListenAddress(cfg.ListenAddress),
		server.WithScraper(col),
	)

	discoveryLoop := func(ctx context.Context) error {
		reg.Run(ctx, cfg.DiscoveryInterval)
		return nil
	}

	if err := server.RunGroup(ctx, srv, discoveryLoop); err != nil {
		slog.Error("server exited with error", "error", err)
		return err
	}
	return nil
}
