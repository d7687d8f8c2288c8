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

	"urlmd/internal/apperr"
	"urlmd/internal/crawler"
)

// deepcrawlRequest is the wire shape of a deep-crawl request.
type deepcrawlRequest struct {
	Seed     string `json:"seed"`
	MaxDepth int    `json:"max_depth"`
	MaxPages int    `json:"max_pages"`
	Strategy string `json:"strategy"`
	Filters  struct {
		AllowDomains []string `json:"allow_domains"`
		DenyDomains  []string `json:"deny_domains"`
		AllowPaths   []string `json:"allow_paths"`
		DenyPaths    []string `json:"deny_paths"`
	} `json:"filters"`
	Scorer struct {
		Keywords       []string `json:"keywords"`
		Weight         float64  `json:"weight"`
		ScoreThreshold float64  `json:"score_threshold"`
	} `json:"scorer"`
	Output struct {
		IncludeMarkdown bool `json:"include_markdown"`
	} `json:"output"`
	Checkpoint struct {
		CrawlID          string `json:"crawl_id"`
		Resume           bool   `json:"resume"`
		SnapshotInterval int    `json:"snapshot_interval"`
	} `json:"checkpoint"`
	Stream bool `json:"stream"`
}

func (d deepcrawlRequest) toCrawlerRequest() crawler.Request {
	return crawler.Request{
		Seed:     d.Seed,
		MaxDepth: d.MaxDepth,
		MaxPages: d.MaxPages,
		Strategy: crawler.Strategy(d.Strategy),
		Filters: crawler.Filters{
			AllowDomains: d.Filters.AllowDomains,
			DenyDomains:  d.Filters.DenyDomains,
			AllowPaths:   d.Filters.AllowPaths,
			DenyPaths:    d.Filters.DenyPaths,
		},
		Scorer: crawler.Scorer{
			Keywords:       d.Scorer.Keywords,
			Weight:         d.Scorer.Weight,
			ScoreThreshold: d.Scorer.ScoreThreshold,
		},
		Output: crawler.Output{IncludeMarkdown: d.Output.IncludeMarkdown},
		Checkpoint: crawler.Checkpoint{
			CrawlID:          d.Checkpoint.CrawlID,
			Resume:           d.Checkpoint.Resume,
			SnapshotInterval: d.Checkpoint.SnapshotInterval,
		},
		Stream: d.Stream,
	}
}

// handleDeepcrawl implements POST /api/deepcrawl.
func (s *Server) handleDeepcrawl(w http.ResponseWriter, r *http.Request) {
	var body deepcrawlRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, string(apperr.InvalidRequest), "invalid JSON body")
		return
	}

	req := body.toCrawlerRequest()
	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}

	if req.Stream {
		s.runDeepcrawlStreaming(w, r, req)
		return
	}
	s.runDeepcrawlSummary(w, r, req)
}

func (s *Server) runDeepcrawlSummary(w http.ResponseWriter, r *http.Request, req crawler.Request) {
	events := make(chan crawler.Event, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range events {
		}
	}()

	state, err := crawler.Run(r.Context(), req, s.Orchestrator, nil, s.Snapshots, events)
	close(events)
	<-done

	if err != nil {
		writeError(w, err)
		return
	}

	// state.Results carries every node attempted across every run of this
	// crawl ID, so a resumed crawl reports on pages fetched before the
	// resume too, not just the ones fetched this run.
	results := make([]map[string]any, 0, len(state.Results))
	for _, n := range state.Results {
		item := map[string]any{"url": n.URL, "depth": n.Depth, "score": n.Score, "success": n.Success}
		if n.Title != "" {
			item["title"] = n.Title
		}
		if n.Markdown != "" {
			item["markdown"] = n.Markdown
		}
		if n.Error != "" {
			item["error"] = n.Error
		}
		results = append(results, item)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"stats":   state.Stats,
		"resumed": req.Checkpoint.Resume,
		"results": results,
		"visited": len(state.Visited),
	})
}

func (s *Server) runDeepcrawlStreaming(w http.ResponseWriter, r *http.Request, req crawler.Request) {
	sw, ok := newSSEWriter(w)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, string(apperr.Internal), "streaming unsupported")
		return
	}

	events := make(chan crawler.Event, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range events {
			sw.emit(string(e.Kind), e)
		}
	}()

	_, err := crawler.Run(r.Context(), req, s.Orchestrator, nil, s.Snapshots, events)
	close(events)
	<-done

	if err != nil {
		sw.emit("fail", map[string]any{"title": "Internal", "message": err.Error()})
	}
}
