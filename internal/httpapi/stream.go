// Copyright 2025 The urlmd Authors.
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

package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"urlmd/internal/apperr"
	"urlmd/internal/convert"
)

// sseWriter emits one named SSE event per call, flushing immediately.
type sseWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, bool) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	return &sseWriter{w: w, f: f}, true
}

func (s *sseWriter) emit(event string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, body)
	s.f.Flush()
}

// handleStream implements GET /api/stream?url=…&selector=…: a single
// conversion reported as start/progress/done/fail SSE frames.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sw, ok := newSSEWriter(w)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, string(apperr.Internal), "streaming unsupported")
		return
	}

	q := r.URL.Query()
	targetURL := q.Get("url")
	if targetURL == "" {
		sw.emit("fail", map[string]any{"title": "InvalidRequest", "message": "url is required"})
		return
	}

	sw.emit("start", map[string]any{"url": targetURL})

	timeout := s.StreamFetchTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	sw.emit("progress", map[string]any{"stage": "fetching"})

	req := convert.Request{
		URL:          targetURL,
		Format:       convert.Format(q.Get("format")),
		Selector:     q.Get("selector"),
		ForceBrowser: q.Get("force_browser") == "true",
		NoCache:      q.Get("no_cache") == "true",
	}

	start := time.Now()
	result, err := s.Orchestrator.Convert(ctx, req)
	if s.Metrics != nil {
		s.Metrics.RecordConvert(time.Since(start))
	}
	if err != nil {
		title := string(apperr.Internal)
		status := http.StatusInternalServerError
		if e, ok := apperr.As(err); ok {
			title = string(e.Kind)
			status = e.Status
		}
		if s.Metrics != nil {
			s.Metrics.IncConversionFailures()
		}
		sw.emit("fail", map[string]any{"title": title, "message": err.Error(), "status": status})
		return
	}
	if s.Metrics != nil {
		s.Metrics.IncConversions()
	}

	sw.emit("done", map[string]any{
		"url":     result.URLFinal,
		"title":   result.Title,
		"method":  result.Method,
		"content": result.Content,
		"cached":  result.Cached,
	})
}
