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

package crawler

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/google/uuid"

	"urlmd/internal/convert"
)

// EventKind is one of the three SSE frame kinds streamed to a client.
type EventKind string

const (
	EventStart EventKind = "start"
	EventNode  EventKind = "node"
	EventDone  EventKind = "done"
)

// Event is one crawl progress frame; the httpapi layer encodes these as
// SSE "Crawl SSE events".
type Event struct {
	Kind EventKind

	CrawlID  string
	Seed     string
	MaxDepth int
	MaxPages int

	URL     string
	Depth   int
	Score   float64
	Success bool
	Title   string
	Markdown string
	Error   string

	Stats   Stats
	Resumed bool
}

// markdownLinkRe extracts `[text](href)` pairs from the converted
// markdown, the practical substitute this repository uses for "extract
// links from contentHtml plus raw HTML": the html→markdown black box
// already rendered every anchor into this form, so no second fetch of
// the raw HTML is needed to discover outbound links.
var markdownLinkRe = regexp.MustCompile(`\[([^\]]*)\]\(([^)\s]+)\)`)

// Fetcher is C8's conversion entrypoint, the collaborator the crawl loop
// calls per node. *convert.Orchestrator satisfies this.
type Fetcher interface {
	Convert(ctx context.Context, req convert.Request) (*convert.Result, error)
}

// Run executes the crawl loop: best-first/bfs/dfs
// expansion through fetcher (C8), domain/path filtering, keyword
// scoring, robots.txt consultation, and optional checkpointing. Progress
// frames are sent to events if non-nil; Run always populates and returns
// the final State regardless of whether streaming is requested.
func Run(ctx context.Context, req Request, fetcher Fetcher, httpClient *http.Client, snaps Snapshotter, events chan<- Event) (State, error) {
	if err := req.Validate(); err != nil {
		return State{}, err
	}

	crawlID := req.Checkpoint.CrawlID
	if crawlID == "" {
		crawlID = uuid.NewString()
	}

	strategy := req.Strategy
	if strategy == "" {
		strategy = StrategyBestFirst
	}

	seedURL, err := url.Parse(req.Seed)
	if err != nil {
		return State{}, err
	}

	visited := make(map[string]bool)
	frontier := NewFrontier(strategy)
	var stats Stats
	var results []NodeResult
	resumed := false

	if req.Checkpoint.Resume && snaps != nil {
		if prior, ok := snaps.LoadSnapshot(CheckpointKey(crawlID)); ok {
			for _, v := range prior.Visited {
				visited[v] = true
			}
			frontier.Restore(prior.Frontier)
			stats = prior.Stats
			results = append(results, prior.Results...)
			resumed = true
		}
	}
	if !resumed {
		frontier.Push(req.Seed, 0, 0)
	}

	emit(events, Event{Kind: EventStart, CrawlID: crawlID, Seed: req.Seed, MaxDepth: req.MaxDepth, MaxPages: req.MaxPages})

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	robots := newRobotsCache(httpClient)

	completed := 0
	for stats.SucceededPages < req.MaxPages {
		select {
		case <-ctx.Done():
			emit(events, Event{Kind: EventDone, CrawlID: crawlID, Stats: stats, Resumed: resumed})
			return snapshotState(visited, frontier, stats, results), ctx.Err()
		default:
		}

		node, ok := frontier.Pop()
		if !ok {
			break
		}
		if visited[node.URL] || node.Depth > req.MaxDepth {
			continue
		}
		visited[node.URL] = true
		stats.CrawledPages++

		nodeURL, parseErr := url.Parse(node.URL)
		if parseErr != nil || !robots.Allowed(ctx, nodeURL) {
			stats.FailedPages++
			emit(events, Event{Kind: EventNode, URL: node.URL, Depth: node.Depth, Score: node.Score, Success: false, Error: "blocked by robots.txt or invalid URL"})
			results = append(results, NodeResult{URL: node.URL, Depth: node.Depth, Score: node.Score, Success: false, Error: "blocked by robots.txt or invalid URL"})
			continue
		}

		result, convErr := fetcher.Convert(ctx, convert.Request{URL: node.URL, Format: convert.FormatMarkdown})
		if convErr != nil {
			stats.FailedPages++
			emit(events, Event{Kind: EventNode, URL: node.URL, Depth: node.Depth, Score: node.Score, Success: false, Error: convErr.Error()})
			results = append(results, NodeResult{URL: node.URL, Depth: node.Depth, Score: node.Score, Success: false, Error: convErr.Error()})
			continue
		}
		stats.SucceededPages++
		completed++

		ev := Event{Kind: EventNode, URL: result.URLFinal, Depth: node.Depth, Score: node.Score, Success: true, Title: result.Title}
		nr := NodeResult{URL: result.URLFinal, Depth: node.Depth, Score: node.Score, Success: true, Title: result.Title}
		if req.Output.IncludeMarkdown {
			ev.Markdown = result.Content
			nr.Markdown = result.Content
		}
		emit(events, ev)
		results = append(results, nr)

		if node.Depth < req.MaxDepth {
			expand(result, nodeURL, seedURL, req, node.Depth, visited, frontier)
		}

		if snaps != nil && req.Checkpoint.SnapshotInterval > 0 && completed%req.Checkpoint.SnapshotInterval == 0 {
			snaps.SaveSnapshot(CheckpointKey(crawlID), snapshotState(visited, frontier, stats, results))
		}
	}

	final := snapshotState(visited, frontier, stats, results)
	if snaps != nil && req.Checkpoint.CrawlID != "" {
		snaps.SaveSnapshot(CheckpointKey(crawlID), final)
	}
	emit(events, Event{Kind: EventDone, CrawlID: crawlID, Stats: stats, Resumed: resumed})
	return final, nil
}

func expand(result *convert.Result, nodeURL, seedURL *url.URL, req Request, depth int, visited map[string]bool, frontier *Frontier) {
	for _, m := range markdownLinkRe.FindAllStringSubmatch(result.Content, -1) {
		anchorText, href := m[1], m[2]
		resolved, err := nodeURL.Parse(href)
		if err != nil {
			continue
		}
		resolved.Fragment = ""
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			continue
		}
		candidate := resolved.String()
		if visited[candidate] {
			continue
		}
		if !passesFilters(resolved, seedURL, req.Filters) {
			continue
		}
		s := score(link{url: candidate, anchorText: anchorText}, resolved.Path, req.Scorer)
		if len(req.Scorer.Keywords) > 0 && s < req.Scorer.ScoreThreshold {
			continue
		}
		frontier.Push(candidate, s, depth+1)
	}
}

func snapshotState(visited map[string]bool, frontier *Frontier, stats Stats, results []NodeResult) State {
	urls := make([]string, 0, len(visited))
	for u := range visited {
		urls = append(urls, u)
	}
	return State{Visited: urls, Frontier: frontier.Snapshot(), Stats: stats, Results: results}
}

func emit(events chan<- Event, e Event) {
	if events == nil {
		return
	}
	events <- e
}
