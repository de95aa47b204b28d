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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/NVIDIA/nvme-exporter/pkg/metrics"
)

// fakeScraper returns a canned snapshot.
type fakeScraper struct {
	snap *metrics.Snapshot
}

func (f *fakeScraper) Scrape(ctx context.Context) *metrics.Snapshot {
	return f.snap
}

func testSnapshot() *metrics.Snapshot {
	return &metrics.Snapshot{
		Taken: time.Now(),
		Points: []metrics.Point{
			{Name: "nvme_temperature_celsius", Help: "Composite temperature in Celsius",
				Kind: metrics.Gauge, Labels: map[string]string{"device": "nvme0"}, Value: 45},
			{Name: "nvme_scrape_success", Help: "Scrape success", Kind: metrics.Gauge, Value: 1},
		},
	}
}

func testServer() *Server {
	return New(
		WithName("nvme-exporter"),
		WithVersion("test"),
		WithScraper(&fakeScraper{snap: testSnapshot()}),
	)
}

func TestHandleMetrics(t *testing.T) {
	s := testServer()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.handleMetrics(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != metrics.ContentType {
		t.Errorf("expected content type %q, got %q", metrics.ContentType, ct)
	}

	body := rec.Body.String()
	if !strings.Contains(body, `nvme_temperature_celsius{device="nvme0"} 45`) {
		t.Errorf("expected temperature sample in body, got:\n%s", body)
	}
	if !strings.Contains(body, "nvme_scrape_success 1") {
		t.Errorf("expected scrape success sample in body, got:\n%s", body)
	}

	// The exporter's own instrumentation from the default registry is part
	// of the same exposition.
	if !strings.Contains(body, "nvme_exporter_rate_limit_rejects_total") {
		t.Errorf("expected internal instrumentation in body, got:\n%s", body)
	}
	if !strings.Contains(body, "nvme_exporter_http_requests_in_flight") {
		t.Errorf("expected in-flight gauge in body, got:\n%s", body)
	}
}

func TestHandleMetricsMethodNotAllowed(t *testing.T) {
	s := testServer()

	req := httptest.NewRequest(http.MethodPost, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.handleMetrics(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rec.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.Code != errCodeMethodNotAllowed {
		t.Errorf("expected code %s, got %s", errCodeMethodNotAllowed, resp.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	s := testServer()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.handleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("expected status healthy, got %s", resp.Status)
	}
}

func TestHandleReady(t *testing.T) {
	s := testServer()

	t.Run("not ready before startup", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		rec := httptest.NewRecorder()
		s.handleReady(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected status 503, got %d", rec.Code)
		}
	})

	t.Run("ready after startup", func(t *testing.T) {
		s.setReady(true)

		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		rec := httptest.NewRecorder()
		s.handleReady(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
	})
}

func TestHandleDefault(t *testing.T) {
	s := testServer()
	s.setReady(true)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.handleDefault(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp struct {
		Name    string   `json:"name"`
		Version string   `json:"version"`
		Ready   bool     `json:"ready"`
		Routes  []string `json:"routes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Name != "nvme-exporter" {
		t.Errorf("expected name nvme-exporter, got %s", resp.Name)
	}
	if !resp.Ready {
		t.Error("expected ready true")
	}
	if len(resp.Routes) == 0 {
		t.Error("expected routes listed")
	}
}

func TestRoutesWired(t *testing.T) {
	s := testServer()
	s.setReady(true)
	handler := s.setupRoutes()

	for _, path := range []string{"/", "/health", "/ready", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s: expected status 200, got %d", path, rec.Code)
		}
	}
}
