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

package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/NVIDIA/nvme-exporter/pkg/metrics"
)

// Scraper produces a fresh metric snapshot for each exposition request.
type Scraper interface {
	Scrape(ctx context.Context) *metrics.Snapshot
}

// Server is the HTTP exposition surface: /metrics, /health, /ready and a
// static info page on /.
type Server struct {
	config      *Config
	httpServer  *http.Server
	rateLimiter *rate.Limiter
	scraper     Scraper

	mu    sync.RWMutex
	ready bool
}

// Option configures the server.
type Option func(*Server)

// WithName sets the server name used in the info page.
func WithName(name string) Option {
	return func(s *Server) {
		s.config.Name = name
	}
}

// WithVersion sets the reported version.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.config.Version = version
	}
}

// WithListenAddress sets the bind address.
func WithListenAddress(addr string) Option {
	return func(s *Server) {
		s.config.ListenAddress = addr
	}
}

// WithScraper wires the metric source serving /metrics.
func WithScraper(scraper Scraper) Option {
	return func(s *Server) {
		s.scraper = scraper
	}
}

// New creates a server instance with the given options.
func New(opts ...Option) *Server {
	s := &Server{
		config: NewConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.rateLimiter = rate.NewLimiter(s.config.RateLimit, s.config.RateLimitBurst)
	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddress,
		Handler:      s.setupRoutes(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	return s
}

// setReady marks the server as ready to serve traffic.
func (s *Server) setReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

func (s *Server) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Run starts the listener and blocks until the context is canceled or the
// server fails. Shutdown is graceful within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("server starting", "address", s.config.ListenAddress)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	s.setReady(true)

	// Readiness for systemd units with Type=notify; a no-op elsewhere.
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		slog.Debug("sd_notify not available", "error", err)
	}

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errChan:
		return err
	}
}

func (s *Server) shutdown() error {
	s.setReady(false)
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	slog.Info("server shutting down")
	return s.httpServer.Shutdown(shutdownCtx)
}

// RunGroup runs the server alongside companion loops (the discovery timer)
// under one errgroup, returning when any member fails or ctx is canceled.
func RunGroup(ctx context.Context, s *Server, loops ...func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.Run(gctx)
	})
	for _, loop := range loops {
		g.Go(func() error {
			return loop(gctx)
		})
	}

	return g.Wait()
}
