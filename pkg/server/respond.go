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
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Error codes returned in JSON error responses.
const (
	errCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	errCodeInternalError     = "INTERNAL_ERROR"
	errCodeMethodNotAllowed  = "METHOD_NOT_ALLOWED"
	errCodeScrapeFailed      = "SCRAPE_FAILED"
)

// ErrorResponse is the JSON body for failed requests.
type ErrorResponse struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"requestId,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// respondJSON writes v as a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// respondError writes a structured JSON error.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	requestID, _ := r.Context().Value(contextKeyRequestID).(string)
	respondJSON(w, status, ErrorResponse{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
		Details:   details,
	})
}
