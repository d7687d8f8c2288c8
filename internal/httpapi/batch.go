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
	"io"
	"net/http"

	"urlmd/internal/apperr"
	"urlmd/internal/convert"
	"urlmd/internal/dispatcher"
)

// batchConcurrency bounds how many batch items convert at once; kept
// well under maxBatchItems so a single batch never monopolizes the
// shared browser gate.
const batchConcurrency = 4

// maxBatchBytes is the request-body cap for a batch request.
const maxBatchBytes = 100_000

// maxBatchItems is the per-request URL count cap for a batch request.
const maxBatchItems = 10

// batchItem accepts either a bare URL string or an object with
// per-item overrides; UnmarshalJSON handles the union.
type batchItem struct {
	URL          string
	Format       string
	Selector     string
	ForceBrowser bool
	NoCache      bool
}

func (b *batchItem) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		b.URL = asString
		return nil
	}
	var asObject struct {
		URL          string `json:"url"`
		Format       string `json:"format"`
		Selector     string `json:"selector"`
		ForceBrowser bool   `json:"force_browser"`
		NoCache      bool   `json:"no_cache"`
	}
	if err := json.Unmarshal(data, &asObject); err != nil {
		return err
	}
	b.URL = asObject.URL
	b.Format = asObject.Format
	b.Selector = asObject.Selector
	b.ForceBrowser = asObject.ForceBrowser
	b.NoCache = asObject.NoCache
	return nil
}

type batchRequest struct {
	URLs []batchItem `json:"urls"`
}

// batchItemResult is the per-item shape: "{url,
// format?, content | markdown, method?, cached?, title?, error?}".
type batchItemResult struct {
	URL      string `json:"url"`
	Format   string `json:"format,omitempty"`
	Content  string `json:"content,omitempty"`
	Markdown string `json:"markdown,omitempty"`
	Method   string `json:"method,omitempty"`
	Cached   bool   `json:"cached,omitempty"`
	Title    string `json:"title,omitempty"`
	Error    string `json:"error,omitempty"`
}

// handleBatch implements POST /api/batch. The batch request itself
// always returns 200; failures are per-item.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > maxBatchBytes {
		writeJSONError(w, http.StatusRequestEntityTooLarge, string(apperr.RequestTooLarge), "Request too large")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBatchBytes+1))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, string(apperr.InvalidRequest), err.Error())
		return
	}
	if len(body) > maxBatchBytes {
		writeJSONError(w, http.StatusRequestEntityTooLarge, string(apperr.RequestTooLarge), "Request too large")
		return
	}

	var req batchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, string(apperr.InvalidRequest), "invalid JSON body")
		return
	}
	if len(req.URLs) == 0 {
		writeJSONError(w, http.StatusBadRequest, string(apperr.InvalidRequest), "urls is required")
		return
	}
	if len(req.URLs) > maxBatchItems {
		writeJSONError(w, http.StatusBadRequest, string(apperr.InvalidRequest), "Maximum 10 URLs per batch")
		return
	}

	tasks := make([]dispatcher.Task, len(req.URLs))
	for i, item := range req.URLs {
		tasks[i] = dispatcher.Task{URL: item.URL, Arg: item}
	}

	outcomes := dispatcher.RunTasks(r.Context(), tasks, s.executeBatchItem, dispatcher.Options{
		Concurrency: batchConcurrency,
	})

	results := make([]batchItemResult, len(outcomes))
	for i, outcome := range outcomes {
		results[i] = batchResultFromOutcome(req.URLs[i], outcome)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
}

// executeBatchItem adapts a single batch conversion to dispatcher.Executor
// so C9's per-host pacing and bounded concurrency apply across the batch.
func (s *Server) executeBatchItem(ctx context.Context, t dispatcher.Task) (any, int, error) {
	item := t.Arg.(batchItem)
	if item.URL == "" {
		return nil, 0, apperr.New(apperr.InvalidRequest, "url is required")
	}

	result, err := s.Orchestrator.Convert(ctx, convert.Request{
		URL:          item.URL,
		Format:       convert.Format(item.Format),
		Selector:     item.Selector,
		ForceBrowser: item.ForceBrowser,
		NoCache:      item.NoCache,
	})
	if s.Metrics != nil {
		if err != nil {
			s.Metrics.IncConversionFailures()
		} else {
			s.Metrics.IncConversions()
		}
	}
	if err != nil {
		status := 0
		if e, ok := apperr.As(err); ok {
			status = e.Status
		}
		return nil, status, err
	}
	return result, 0, nil
}

func batchResultFromOutcome(item batchItem, outcome dispatcher.Result) batchItemResult {
	out := batchItemResult{URL: item.URL, Format: item.Format}
	if outcome.Err != nil {
		out.Error = outcome.Err.Error()
		return out
	}

	result := outcome.Value.(*convert.Result)
	out.Content = result.Content
	out.Markdown = result.Content
	out.Method = string(result.Method)
	out.Cached = result.Cached
	out.Title = result.Title
	return out
}
