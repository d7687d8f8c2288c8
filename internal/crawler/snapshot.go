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

import "sync"

// State is the persisted shape calls out: visited set,
// frontier, run stats, and per-node results, keyed by
// CheckpointKey(crawlId). Results carries every node attempted across
// every run of this crawl ID (not just the run that produced this
// snapshot), so a resumed crawl's final State.Results still reports on
// pages fetched before the resume.
type State struct {
	Visited  []string     `json:"visited"`
	Frontier []Node       `json:"frontier"`
	Stats    Stats        `json:"stats"`
	Results  []NodeResult `json:"results"`
}

// NodeResult is the persisted outcome of one attempted frontier node.
type NodeResult struct {
	URL      string  `json:"url"`
	Depth    int     `json:"depth"`
	Score    float64 `json:"score"`
	Success  bool    `json:"success"`
	Title    string  `json:"title,omitempty"`
	Markdown string  `json:"markdown,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// Stats summarizes one crawl run, echoed in the "done" SSE event and the
// non-streaming summary response.
type Stats struct {
	CrawledPages   int `json:"crawledPages"`
	SucceededPages int `json:"succeededPages"`
	FailedPages    int `json:"failedPages"`
}

// Snapshotter persists/retrieves crawl State under an opaque key
// ("deepcrawl:v1:<crawl_id>"); the in-memory implementation below is the
// default, matching C11's "absence of a configured cache is not an
// error" posture — checkpointing without a Snapshotter simply means
// resume is unavailable.
type Snapshotter interface {
	SaveSnapshot(key string, state State)
	LoadSnapshot(key string) (State, bool)
}

// MemorySnapshotStore is the default in-process Snapshotter.
type MemorySnapshotStore struct {
	mu    sync.Mutex
	byKey map[string]State
}

// NewMemorySnapshotStore builds an empty MemorySnapshotStore.
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{byKey: make(map[string]State)}
}

// SaveSnapshot implements Snapshotter.
func (s *MemorySnapshotStore) SaveSnapshot(key string, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byKey[key] = state
}

// LoadSnapshot implements Snapshotter.
func (s *MemorySnapshotStore) LoadSnapshot(key string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.byKey[key]
	return st, ok
}
