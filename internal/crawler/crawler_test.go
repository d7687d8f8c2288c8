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
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"urlmd/internal/convert"
)

// fakeFetcher serves canned convert.Result values keyed by URL, so the
// crawl loop can be exercised without a real C8 pipeline or network.
type fakeFetcher struct {
	pages map[string]string // url -> markdown content (with [text](href) links)
	calls []string
}

func (f *fakeFetcher) Convert(_ context.Context, req convert.Request) (*convert.Result, error) {
	f.calls = append(f.calls, req.URL)
	content, ok := f.pages[req.URL]
	if !ok {
		return nil, fmt.Errorf("no such page: %s", req.URL)
	}
	return &convert.Result{URLFinal: req.URL, Format: req.Format, Content: content, Title: "t:" + req.URL}, nil
}

func TestRequest_ValidateRejectsMalformedInput(t *testing.T) {
	base := Request{Seed: "https://example.com/", MaxDepth: 2, MaxPages: 10}

	missing := base
	missing.Seed = ""
	assert.Error(t, missing.Validate())

	badDepth := base
	badDepth.MaxDepth = 7
	assert.Error(t, badDepth.Validate())

	badPages := base
	badPages.MaxPages = 0
	assert.Error(t, badPages.Validate())

	badStrategy := base
	badStrategy.Strategy = "random"
	assert.Error(t, badStrategy.Validate())

	longFilter := base
	longFilter.Filters.AllowPaths = []string{string(make([]byte, 600))}
	assert.Error(t, longFilter.Validate())

	resumeNoID := base
	resumeNoID.Checkpoint.Resume = true
	assert.Error(t, resumeNoID.Validate())

	badCrawlID := base
	badCrawlID.Checkpoint.CrawlID = "has a space"
	assert.Error(t, badCrawlID.Validate())

	assert.NoError(t, base.Validate())
}

func TestFrontier_BestFirstOrdersByScoreThenDepthThenInsertion(t *testing.T) {
	f := NewFrontier(StrategyBestFirst)
	f.Push("low", 1, 0)
	f.Push("high", 5, 1)
	f.Push("mid", 3, 0)

	n, ok := f.Pop()
	require.True(t, ok)
	assert.Equal(t, "high", n.URL)

	n, ok = f.Pop()
	require.True(t, ok)
	assert.Equal(t, "mid", n.URL)

	n, ok = f.Pop()
	require.True(t, ok)
	assert.Equal(t, "low", n.URL)
}

func TestFrontier_BFSIsFIFO(t *testing.T) {
	f := NewFrontier(StrategyBFS)
	f.Push("a", 0, 0)
	f.Push("b", 0, 0)
	f.Push("c", 0, 0)

	var order []string
	for {
		n, ok := f.Pop()
		if !ok {
			break
		}
		order = append(order, n.URL)
	}
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestFrontier_DFSIsLIFO(t *testing.T) {
	f := NewFrontier(StrategyDFS)
	f.Push("a", 0, 0)
	f.Push("b", 0, 0)
	f.Push("c", 0, 0)

	var order []string
	for {
		n, ok := f.Pop()
		if !ok {
			break
		}
		order = append(order, n.URL)
	}
	assert.Equal(t, []string{"c", "b", "a"}, order)
}

func TestFrontier_SnapshotRestorePreservesOrdering(t *testing.T) {
	f := NewFrontier(StrategyBestFirst)
	f.Push("a", 2, 0)
	f.Push("b", 5, 0)

	snap := f.Snapshot()
	restored := NewFrontier(StrategyBestFirst)
	restored.Restore(snap)
	restored.Push("c", 9, 0)

	n, ok := restored.Pop()
	require.True(t, ok)
	assert.Equal(t, "c", n.URL)
}

func TestRun_MonotonicVisitedAndRespectsMaxPages(t *testing.T) {
	pages := map[string]string{
		"https://example.com/":  "home [a](https://example.com/a) [b](https://example.com/b)",
		"https://example.com/a": "page a [c](https://example.com/c)",
		"https://example.com/b": "page b",
		"https://example.com/c": "page c",
	}
	f := &fakeFetcher{pages: pages}
	req := Request{Seed: "https://example.com/", MaxDepth: 3, MaxPages: 2, Strategy: StrategyBFS}

	state, err := Run(context.Background(), req, f, nil, nil, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(state.Visited), req.MaxPages+1)
	assert.Equal(t, req.MaxPages, state.Stats.SucceededPages)
}

func TestRun_SkipsNodesBeyondMaxDepth(t *testing.T) {
	pages := map[string]string{
		"https://example.com/":  "home [a](https://example.com/a)",
		"https://example.com/a": "a [b](https://example.com/b)",
		"https://example.com/b": "b",
	}
	f := &fakeFetcher{pages: pages}
	req := Request{Seed: "https://example.com/", MaxDepth: 1, MaxPages: 10, Strategy: StrategyBFS}

	state, err := Run(context.Background(), req, f, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, state.Stats.SucceededPages)
	assert.NotContains(t, f.calls, "https://example.com/b")
}

func TestRun_FiltersRestrictToSeedDomainByDefault(t *testing.T) {
	pages := map[string]string{
		"https://example.com/": "home [ext](https://other.com/x) [in](https://example.com/a)",
		"https://example.com/a": "a",
	}
	f := &fakeFetcher{pages: pages}
	req := Request{Seed: "https://example.com/", MaxDepth: 2, MaxPages: 10, Strategy: StrategyBFS}

	_, err := Run(context.Background(), req, f, nil, nil, nil)
	require.NoError(t, err)
	assert.NotContains(t, f.calls, "https://other.com/x")
}

func TestRun_EmitsStartNodeDoneEvents(t *testing.T) {
	pages := map[string]string{"https://example.com/": "home"}
	f := &fakeFetcher{pages: pages}
	req := Request{Seed: "https://example.com/", MaxDepth: 0, MaxPages: 1, Strategy: StrategyBFS}

	events := make(chan Event, 16)
	_, err := Run(context.Background(), req, f, nil, nil, events)
	require.NoError(t, err)
	close(events)

	var kinds []EventKind
	for e := range events {
		kinds = append(kinds, e.Kind)
	}
	require.GreaterOrEqual(t, len(kinds), 3)
	assert.Equal(t, EventStart, kinds[0])
	assert.Equal(t, EventDone, kinds[len(kinds)-1])
}

func TestRun_CheckpointResumeContinuesFromSnapshot(t *testing.T) {
	pages := map[string]string{
		"https://example.com/":  "home [a](https://example.com/a)",
		"https://example.com/a": "a [b](https://example.com/b)",
		"https://example.com/b": "b",
	}
	snaps := NewMemorySnapshotStore()
	f := &fakeFetcher{pages: pages}
	req := Request{
		Seed: "https://example.com/", MaxDepth: 2, MaxPages: 1, Strategy: StrategyBFS,
		Checkpoint: Checkpoint{CrawlID: "resume-test", SnapshotInterval: 1},
	}

	_, err := Run(context.Background(), req, f, nil, snaps, nil)
	require.NoError(t, err)

	resumeReq := req
	resumeReq.MaxPages = 2
	resumeReq.Checkpoint.Resume = true

	state, err := Run(context.Background(), resumeReq, f, nil, snaps, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, state.Stats.SucceededPages, 1)
}

func TestScore_SumsKeywordOccurrencesWeighted(t *testing.T) {
	l := link{url: "https://example.com/docs/api", anchorText: "API docs and more docs"}
	s := Scorer{Keywords: []string{"docs", "api"}, Weight: 2}
	got := score(l, "/docs/api", s)
	assert.Greater(t, got, 0.0)
}

func TestPassesFilters_DenyListWins(t *testing.T) {
	seed, err := url.Parse("https://example.com/")
	require.NoError(t, err)
	candidate, err := url.Parse("https://example.com/blocked/x")
	require.NoError(t, err)
	f := Filters{DenyPaths: []string{"/blocked"}}
	assert.False(t, passesFilters(candidate, seed, f))
}
