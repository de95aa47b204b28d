/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/nvme-exporter/pkg/config"
	"github.com/NVIDIA/nvme-exporter/pkg/logging"
)

const (
	name           = "nvme-exporter"
	versionDefault = "dev"
)

var (
	// overridden during build with ldflags
	version = versionDefault
	commit  = "unknown"
	date    = "unknown"
)

func rootCmd() *cli.Command {
	return &cli.Command{
		Name:                  name,
		EnableShellCompletion: true,
		Usage:                 "Prometheus exporter for NVMe drive health",
		Description: fmt.Sprintf(`Prometheus exporter for NVMe drive health telemetry.

Version: %s
Commit:  %s
Built:   %s

Collects SMART / health log pages, controller identity, namespace
utilization, error log and self-test results directly from the kernel's
NVMe admin command interface. No external CLI tooling is required, but
the process needs CAP_SYS_RAWIO (or root) to issue admin commands.`,
			version, commit, date),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Optional YAML config file; flags override file values",
				Sources: cli.EnvVars("NVME_EXPORTER_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "listen-address",
				Usage:   "Address for the HTTP metrics listener",
				Sources: cli.EnvVars("NVME_EXPORTER_LISTEN_ADDRESS"),
				Value:   "0.0.0.0:9998",
			},
			&cli.StringFlag{
				Name:    "devices",
				Usage:   "Glob pattern selecting NVMe controller device nodes",
				Sources: cli.EnvVars("NVME_EXPORTER_DEVICES"),
				Value:   "/dev/nvme*",
			},
			&cli.DurationFlag{
				Name:    "discovery-interval",
				Usage:   "Cadence of background controller enumeration",
				Sources: cli.EnvVars("NVME_EXPORTER_DISCOVERY_INTERVAL"),
				Value:   30 * time.Second,
			},
			&cli.DurationFlag{
				Name:    "stale-device-grace",
				Usage:   "How long last-known values are served after poll failures",
				Sources: cli.EnvVars("NVME_EXPORTER_STALE_DEVICE_GRACE"),
				Value:   300 * time.Second,
			},
			&cli.DurationFlag{
				Name:    "device-evict-horizon",
				Usage:   "Extra window beyond the grace period before a stale device is dropped (0 disables)",
				Sources: cli.EnvVars("NVME_EXPORTER_DEVICE_EVICT_HORIZON"),
				Value:   600 * time.Second,
			},
			&cli.DurationFlag{
				Name:    "ioctl-timeout",
				Usage:   "Per-device admin command timeout",
				Sources: cli.EnvVars("NVME_EXPORTER_IOCTL_TIMEOUT"),
				Value:   5 * time.Second,
			},
			&cli.IntFlag{
				Name:    "scrape-concurrency",
				Usage:   "Maximum devices polled in parallel per scrape",
				Sources: cli.EnvVars("NVME_EXPORTER_SCRAPE_CONCURRENCY"),
				Value:   4,
			},
			&cli.BoolFlag{
				Name:    "collect-namespace",
				Usage:   "Collect per-namespace size and utilization",
				Sources: cli.EnvVars("NVME_EXPORTER_COLLECT_NAMESPACE"),
				Value:   true,
			},
			&cli.BoolFlag{
				Name:    "collect-error-log",
				Usage:   "Collect the error information log page",
				Sources: cli.EnvVars("NVME_EXPORTER_COLLECT_ERROR_LOG"),
				Value:   true,
			},
			&cli.BoolFlag{
				Name:    "collect-self-test",
				Usage:   "Collect the device self-test log page",
				Sources: cli.EnvVars("NVME_EXPORTER_COLLECT_SELF_TEST"),
				Value:   true,
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Sources: cli.EnvVars("NVME_EXPORTER_LOG_LEVEL"),
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Sources: cli.EnvVars("NVME_EXPORTER_LOG_FORMAT"),
				Value:   "text",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := buildConfig(cmd)
			if err != nil {
				return err
			}

			logging.SetDefaultStructuredLogger(name, version, cfg.LogLevel, logging.ParseFormat(cfg.LogFormat))
			slog.Info("starting",
				"name", name,
				"version", version,
				"commit", commit,
				"date", date,
			)

			return serve(ctx, cfg)
		},
	}
}

// buildConfig layers defaults, the optional config file and explicit flag
// values into the final exporter configuration.
func buildConfig(cmd *cli.Command) (config.Config, error) {
	cfg := config.Default()

	if path := cmd.String("config"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return cfg, err
		}
	}

	// Flags set on the command line (or via environment) win over the file.
	if cmd.IsSet("listen-address") || cfg.ListenAddress == "" {
		cfg.ListenAddress = cmd.String("listen-address")
	}
	if cmd.IsSet("devices") || cfg.Devices == "" {
		cfg.Devices = cmd.String("devices")
	}
	if cmd.IsSet("discovery-interval") {
		cfg.DiscoveryInterval = cmd.Duration("discovery-interval")
	}
	if cmd.IsSet("stale-device-grace") {
		cfg.StaleDeviceGrace = cmd.Duration("stale-device-grace")
	}
	if cmd.IsSet("device-evict-horizon") {
		cfg.DeviceEvictHorizon = cmd.Duration("device-evict-horizon")
	}
	if cmd.IsSet("ioctl-timeout") {
		cfg.IoctlTimeout = cmd.Duration("ioctl-timeout")
	}
	if cmd.IsSet("scrape-concurrency") {
		cfg.ScrapeConcurrency = cmd.Int("scrape-concurrency")
	}
	if cmd.IsSet("collect-namespace") {
		cfg.CollectNamespace = cmd.Bool("collect-namespace")
	}
	if cmd.IsSet("collect-error-log") {
		cfg.CollectErrorLog = cmd.Bool("collect-error-log")
	}
	if cmd.IsSet("collect-self-test") {
		cfg.CollectSelfTest = cmd.Bool("collect-self-test")
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}
	if cmd.IsSet("log-format") {
		cfg.LogFormat = cmd.String("log-format")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Execute runs the exporter command. This is called by main.main().
func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle SIGINT/SIGTERM for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, shutting down gracefully...")
		cancel()
	}()

	if err := rootCmd().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
