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

// Package browsergate implements C4: a per-process capacity gate for the
// single headless-browser isolate, with a FIFO wait queue, a queue
// timeout, and an optional maximum queue length.
//
// A channel-based ticket queue is used instead of golang.org/x/sync/semaphore
// to keep queue length introspectable, attach per-waiter labels to timeout
// error messages, and preserve release-before-the-next-waiter FIFO ordering —
// guarantees a generic weighted semaphore does not expose.
package browsergate

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Gate is a FIFO capacity limiter.
type Gate struct {
	maxConcurrent  int
	queueTimeout   time.Duration
	maxQueueLength int // 0 means unbounded

	mu     sync.Mutex
	active int
	queue  []*waiter
}

type waiter struct {
	label   string
	granted chan struct{}
}

// New constructs a Gate. maxConcurrent must be >= 1, queueTimeout must be
// >= 1ms. maxQueueLength of 0 means unbounded.
func New(maxConcurrent int, queueTimeout time.Duration, maxQueueLength int) *Gate {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if queueTimeout < time.Millisecond {
		queueTimeout = time.Millisecond
	}
	return &Gate{
		maxConcurrent:  maxConcurrent,
		queueTimeout:   queueTimeout,
		maxQueueLength: maxQueueLength,
	}
}

// QueueFullError is returned by Acquire when the queue is already at
// maxQueueLength.
type QueueFullError struct{ Label string }

func (e *QueueFullError) Error() string {
	return fmt.Sprintf("browser gate queue is full (label=%q)", e.Label)
}

// QueueTimeoutError is returned by Acquire when a queued waiter's
// timeout elapses before a permit becomes available.
type QueueTimeoutError struct {
	Label    string
	WaitedMs int64
}

func (e *QueueTimeoutError) Error() string {
	return fmt.Sprintf("browser gate timeout for %q after waiting %dms", e.Label, e.WaitedMs)
}

// Release is returned by Acquire; call it exactly once (extra calls are
// safe no-ops) when the caller's work is done.
type Release func()

// Acquire blocks until a permit is available, the queue timeout elapses,
// the queue is full, or ctx is canceled. On success it returns a Release
// handle that MUST be called to free the permit.
func (g *Gate) Acquire(ctx context.Context, label string) (Release, error) {
	g.mu.Lock()
	if g.active < g.maxConcurrent {
		g.active++
		g.mu.Unlock()
		return g.releaseFunc(), nil
	}
	if g.maxQueueLength > 0 && len(g.queue) >= g.maxQueueLength {
		g.mu.Unlock()
		return nil, &QueueFullError{Label: label}
	}
	w := &waiter{label: label, granted: make(chan struct{}, 1)}
	g.queue = append(g.queue, w)
	g.mu.Unlock()

	start := time.Now()
	timer := time.NewTimer(g.queueTimeout)
	defer timer.Stop()

	select {
	case <-w.granted:
		return g.releaseFunc(), nil
	case <-timer.C:
		g.removeWaiter(w)
		return nil, &QueueTimeoutError{Label: label, WaitedMs: time.Since(start).Milliseconds()}
	case <-ctx.Done():
		g.removeWaiter(w)
		return nil, ctx.Err()
	}
}

// removeWaiter drops w from the queue if it is still there (i.e. it was
// not already granted a permit), without disturbing FIFO order for the
// remaining waiters.
func (g *Gate) removeWaiter(w *waiter) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, qw := range g.queue {
		if qw == w {
			g.queue = append(g.queue[:i], g.queue[i+1:]...)
			return
		}
	}
	// Already dequeued and granted a permit concurrently with the
	// timeout firing; treat as an immediate release so active count
	// stays correct.
	select {
	case <-w.granted:
		g.active--
	default:
	}
}

func (g *Gate) releaseFunc() Release {
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			if len(g.queue) > 0 {
				next := g.queue[0]
				g.queue = g.queue[1:]
				next.granted <- struct{}{}
				// active stays the same: the permit transfers directly
				// to the next waiter.
				return
			}
			g.active--
		})
	}
}

// Run acquires a permit, invokes task, and releases on every exit path
// including a panic.
func (g *Gate) Run(ctx context.Context, label string, task func(context.Context) error) error {
	release, err := g.Acquire(ctx, label)
	if err != nil {
		return err
	}
	defer release()
	return task(ctx)
}

// Stats is a snapshot of the gate's current occupancy, for C12.
type Stats struct {
	Active int
	Queued int
}

// Snapshot returns the current active/queued counts.
func (g *Gate) Snapshot() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Stats{Active: g.active, Queued: len(g.queue)}
}
