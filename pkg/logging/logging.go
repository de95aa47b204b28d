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

package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Format selects the log record encoding.
type Format string

const (
	// FormatText emits logfmt-style records.
	FormatText Format = "text"
	// FormatJSON emits one JSON object per record.
	FormatJSON Format = "json"
)

// ParseFormat converts a string to a Format, defaulting to text.
func ParseFormat(value string) Format {
	if strings.EqualFold(value, string(FormatJSON)) {
		return FormatJSON
	}
	return FormatText
}

// ParseLevel converts a level string (case-insensitive) to a slog.Level.
// Unknown values fall back to INFO.
func ParseLevel(value string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO", "":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewStructuredLogger creates a logger writing structured records to stderr
// with module and version context attached to every record.
func NewStructuredLogger(module, version, level string, format Format) *slog.Logger {
	lvl := ParseLevel(level)

	// LOG_LEVEL overrides the configured level for ad-hoc debugging.
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		lvl = ParseLevel(env)
	}

	opts := &slog.HandlerOptions{
		Level: lvl,
		// Source location is only worth the record size at debug level.
		AddSource: lvl == slog.LevelDebug,
	}

	var handler slog.Handler
	if format == FormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler).With(
		"module", module,
		"version", version,
	)
}

// SetDefaultStructuredLogger installs the structured logger as the process
// default so the rest of the tree can use the slog package functions directly.
func SetDefaultStructuredLogger(module, version, level string, format Format) {
	slog.SetDefault(NewStructuredLogger(module, version, level, format))
}
