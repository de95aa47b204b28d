// Package logging configures structured logging for the exporter.
//
// It wraps the standard library slog package with exporter defaults:
// structured output to stderr (JSON or logfmt-style text), flexible log
// level parsing, module/version context on every record, and source
// location tracking when debug logging is enabled.
//
// Typical usage from main:
//
//	logging.SetDefaultStructuredLogger("nvme-exporter", version, "info", logging.FormatText)
//	slog.Info("starting", "devices", pattern)
//
// The LOG_LEVEL environment variable overrides the configured level when
// set, which keeps one-off debugging runs from requiring a flag change.
package logging
