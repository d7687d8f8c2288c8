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
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"urlmd/internal/apperr"
	"urlmd/internal/convert"
)

// controlParams are the query parameters this service reserves for
// itself; everything else in the query string belongs
// to the target URL and is passed through untouched.
var controlParams = map[string]bool{
	"format": true, "selector": true, "raw": true,
	"force_browser": true, "no_cache": true,
}

// targetURLFromPath reconstructs the caller-supplied URL from a "/<url>"
// style path, re-attaching any non-control query parameters the
// original URL carried (they arrived merged with this service's own
// query string, since there is only one '?' on the wire).
func targetURLFromPath(r *http.Request) string {
	raw := chi.URLParam(r, "*")
	q := r.URL.Query()
	rest := make([]string, 0)
	for k, vs := range q {
		if controlParams[k] {
			continue
		}
		for _, v := range vs {
			rest = append(rest, k+"="+v)
		}
	}
	if len(rest) == 0 {
		return raw
	}
	joined := rest[0]
	for _, p := range rest[1:] {
		joined += "&" + p
	}
	return raw + "?" + joined
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	targetURL := targetURLFromPath(r)
	if targetURL == "" {
		writeJSONError(w, http.StatusBadRequest, string(apperr.InvalidURL), "no URL supplied")
		return
	}

	q := r.URL.Query()
	req := convert.Request{
		URL:          targetURL,
		Format:       convert.Format(q.Get("format")),
		Selector:     q.Get("selector"),
		ForceBrowser: q.Get("force_browser") == "true",
		NoCache:      q.Get("no_cache") == "true",
	}

	start := time.Now()
	result, err := s.Orchestrator.Convert(r.Context(), req)
	if s.Metrics != nil {
		s.Metrics.RecordConvert(time.Since(start))
		if err != nil {
			s.Metrics.IncConversionFailures()
		} else {
			s.Metrics.IncConversions()
		}
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeConvertResult(w, result)
}

func writeConvertResult(w http.ResponseWriter, result *convert.Result) {
	if result.Method == convert.MethodNative {
		w.Header().Set("X-Markdown-Native", "true")
	}
	w.Header().Set("X-Conversion-Method", string(result.Method))
	if result.Cached {
		w.Header().Set("X-Cache", "hit")
	}

	switch result.Format {
	case convert.FormatHTML:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	case convert.FormatJSON:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"url":     result.URLFinal,
			"title":   result.Title,
			"content": result.Content,
			"method":  result.Method,
			"cached":  result.Cached,
		})
		return
	case convert.FormatText:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	default:
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(result.Content))
}
