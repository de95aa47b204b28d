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

// Package server provides the HTTP exposition surface of the exporter.
//
// Endpoints:
//   - GET /metrics - runs one collection pass and serves the snapshot in
//     Prometheus text exposition format (rate limited)
//   - GET /health  - liveness probe
//   - GET /ready   - readiness probe
//   - GET /        - static info page (name, version, routes)
//
// The /metrics handler is wrapped in the standard middleware chain: request
// metrics, request IDs, panic recovery, rate limiting and debug logging.
// Graceful shutdown honors SHUTDOWN_TIMEOUT_SECONDS so the drain window can
// match a systemd stop grace period, and readiness is signaled over sd_notify
// for Type=notify units.
package server
