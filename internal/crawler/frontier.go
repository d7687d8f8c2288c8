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

import "container/heap"

// Node is one frontier entry: a candidate URL awaiting expansion. Seq is
// exported (with a JSON tag) so it survives a Snapshotter round-trip —
// a resumed crawl needs it to reproduce the original insertion-order
// tie-breaking, not just the in-memory run that produced the snapshot.
type Node struct {
	URL   string  `json:"url"`
	Score float64 `json:"score"`
	Depth int     `json:"depth"`
	Seq   int     `json:"seq"`
}

// frontierHeap is a container/heap.Interface adapter; Frontier wraps it
// so callers never see heap internals, matching the priority-queue
// contract ("Frontier. Priority queue keyed by score").
type frontierHeap struct {
	nodes    []Node
	strategy Strategy
}

func (h frontierHeap) Len() int { return len(h.nodes) }

func (h frontierHeap) Less(i, j int) bool {
	a, b := h.nodes[i], h.nodes[j]
	switch h.strategy {
	case StrategyBFS:
		// FIFO: lower sequence number (earlier insertion) first.
		return a.Seq < b.Seq
	case StrategyDFS:
		// LIFO: higher sequence number (later insertion) first.
		return a.Seq > b.Seq
	default: // best_first
		if a.Score != b.Score {
			return a.Score > b.Score // descending by score
		}
		if a.Depth != b.Depth {
			return a.Depth < b.Depth // ties broken by depth
		}
		return a.Seq < b.Seq // then insertion order
	}
}

func (h frontierHeap) Swap(i, j int) { h.nodes[i], h.nodes[j] = h.nodes[j], h.nodes[i] }

func (h *frontierHeap) Push(x any) { h.nodes = append(h.nodes, x.(Node)) }

func (h *frontierHeap) Pop() any {
	old := h.nodes
	n := len(old)
	item := old[n-1]
	h.nodes = old[:n-1]
	return item
}

// Frontier is the best-first/bfs/dfs priority queue driving crawl order.
type Frontier struct {
	h       *frontierHeap
	nextSeq int
}

// NewFrontier builds an empty Frontier for the given strategy ("" means
// best_first).
func NewFrontier(strategy Strategy) *Frontier {
	h := &frontierHeap{strategy: strategy}
	heap.Init(h)
	return &Frontier{h: h}
}

// Push enqueues a node, assigning it the next insertion sequence number.
func (f *Frontier) Push(url string, score float64, depth int) {
	node := Node{URL: url, Score: score, Depth: depth, Seq: f.nextSeq}
	f.nextSeq++
	heap.Push(f.h, node)
}

// Pop removes and returns the highest-priority node. ok is false when
// the frontier is empty.
func (f *Frontier) Pop() (Node, bool) {
	if f.h.Len() == 0 {
		return Node{}, false
	}
	return heap.Pop(f.h).(Node), true
}

// Len reports the number of queued nodes.
func (f *Frontier) Len() int { return f.h.Len() }

// Snapshot returns the currently queued nodes, for checkpointing.
func (f *Frontier) Snapshot() []Node {
	out := make([]Node, len(f.h.nodes))
	copy(out, f.h.nodes)
	return out
}

// Restore re-seeds the frontier from a prior snapshot, preserving each
// node's original sequence number so tie-breaking stays consistent with
// the run that produced the snapshot.
func (f *Frontier) Restore(nodes []Node) {
	for _, n := range nodes {
		heap.Push(f.h, n)
		if n.Seq >= f.nextSeq {
			f.nextSeq = n.Seq + 1
		}
	}
}
