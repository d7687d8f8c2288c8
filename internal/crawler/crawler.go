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

// Package crawler implements C10: the best-first/bfs/dfs deep-crawl
// scheduler, with keyword scoring, domain/path filters, resumable
// checkpoints, and streaming progress events.
package crawler

import (
	"regexp"
	"strings"

	"urlmd/internal/apperr"
)

// Strategy is one of the three frontier disciplines the crawler supports.
type Strategy string

const (
	StrategyBestFirst Strategy = "best_first"
	StrategyBFS       Strategy = "bfs"
	StrategyDFS       Strategy = "dfs"
)

const (
	MaxDepth = 6
	MaxPages = 200
	// maxFilterEntryLen bounds each filters.* string.
	maxFilterEntryLen = 512
)

var crawlIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Filters scopes link expansion by domain and path.
type Filters struct {
	AllowDomains []string
	DenyDomains  []string
	AllowPaths   []string // plain substrings matched against URL path
	DenyPaths    []string
}

// Scorer weights keyword hits in anchor text and URL path.
type Scorer struct {
	Keywords       []string
	Weight         float64
	ScoreThreshold float64
}

// Checkpoint controls snapshot persistence and resume.
type Checkpoint struct {
	CrawlID          string
	Resume           bool
	SnapshotInterval int
}

// Output selects what per-node payload to include.
type Output struct {
	IncludeMarkdown bool
}

// Request is the full deep-crawl input shape accepted by Run.
type Request struct {
	Seed       string
	MaxDepth   int
	MaxPages   int
	Strategy   Strategy
	Filters    Filters
	Scorer     Scorer
	Output     Output
	Checkpoint Checkpoint
	Stream     bool
}

// Validate rejects malformed input validation clause.
func (r Request) Validate() error {
	if r.Seed == "" {
		return apperr.New(apperr.InvalidRequest, "seed is required")
	}
	if r.MaxDepth < 0 || r.MaxDepth > MaxDepth {
		return apperr.New(apperr.InvalidRequest, "max_depth must be in [0,6]")
	}
	if r.MaxPages < 1 || r.MaxPages > MaxPages {
		return apperr.New(apperr.InvalidRequest, "max_pages must be in [1,200]")
	}
	switch r.Strategy {
	case StrategyBestFirst, StrategyBFS, StrategyDFS, "":
	default:
		return apperr.New(apperr.InvalidRequest, "unknown strategy: "+string(r.Strategy))
	}
	for _, entry := range concatFilterEntries(r.Filters) {
		if len(entry) > maxFilterEntryLen {
			return apperr.New(apperr.InvalidRequest, "filter entry exceeds 512 characters")
		}
	}
	for _, d := range append(append([]string{}, r.Filters.AllowDomains...), r.Filters.DenyDomains...) {
		if !validDomainSyntax(d) {
			return apperr.New(apperr.InvalidRequest, "invalid domain syntax: "+d)
		}
	}
	if r.Checkpoint.Resume && r.Checkpoint.CrawlID == "" {
		return apperr.New(apperr.InvalidRequest, "resume=true requires crawl_id")
	}
	if r.Checkpoint.CrawlID != "" && !crawlIDRe.MatchString(r.Checkpoint.CrawlID) {
		return apperr.New(apperr.InvalidRequest, "crawl_id must match [A-Za-z0-9_-]+")
	}
	return nil
}

func concatFilterEntries(f Filters) []string {
	out := make([]string, 0, len(f.AllowDomains)+len(f.DenyDomains)+len(f.AllowPaths)+len(f.DenyPaths))
	out = append(out, f.AllowDomains...)
	out = append(out, f.DenyDomains...)
	out = append(out, f.AllowPaths...)
	out = append(out, f.DenyPaths...)
	return out
}

func validDomainSyntax(d string) bool {
	d = strings.TrimSpace(d)
	if d == "" || strings.ContainsAny(d, " \t/@") {
		return false
	}
	return strings.Contains(d, ".") || d == "localhost"
}

// CheckpointKey builds the persisted-state key:
// "deepcrawl:v1:<crawl_id>".
func CheckpointKey(crawlID string) string {
	return "deepcrawl:v1:" + crawlID
}
