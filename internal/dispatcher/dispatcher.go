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

// Package dispatcher implements C9: a concurrency-bounded task executor
// with per-host exponential backoff on rate-limit responses. Workers are
// fanned out with golang.org/x/sync/errgroup, a common idiom for bounded
// worker pools; per-host pacing state is funneled through a single
// owning goroutine so no locking is needed across hosts.
package dispatcher

import (
	"context"
	"math/rand"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultRateLimitCodes are the HTTP statuses that trigger backoff+retry.
var DefaultRateLimitCodes = map[int]bool{429: true, 503: true}

const defaultBucket = "__default__"

// Task is one unit of work; URL is used only to derive the per-host
// pacing bucket (missing/unparseable URL falls back to defaultBucket).
type Task struct {
	URL string
	Arg any
}

// Result carries a task outcome back to the caller.
type Result struct {
	Task       Task
	Value      any
	Err        error
	StatusCode int // 0 when the executor did not report one
	Attempts   int
}

// Executor runs a single task, returning a value, an optional HTTP
// status code (0 if not applicable), and an error.
type Executor func(ctx context.Context, t Task) (value any, statusCode int, err error)

// Options configures a dispatcher run.
type Options struct {
	Concurrency     int
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	RateLimitCodes  map[int]bool
	Now             func() time.Time // injectable for tests
	JitterSource    *rand.Rand       // injectable for deterministic tests
}

type hostState struct {
	currentDelay  time.Duration
	nextAllowedAt time.Time
}

// hostPacer owns all per-host state and serializes access to it through
// a single goroutine, avoiding a mutex pinning option.
type hostPacer struct {
	requests chan func(map[string]*hostState)
	done     chan struct{}
}

func newHostPacer() *hostPacer {
	p := &hostPacer{
		requests: make(chan func(map[string]*hostState)),
		done:     make(chan struct{}),
	}
	go p.loop()
	return p
}

func (p *hostPacer) loop() {
	states := make(map[string]*hostState)
	for fn := range p.requests {
		fn(states)
	}
	close(p.done)
}

func (p *hostPacer) with(fn func(map[string]*hostState)) {
	done := make(chan struct{})
	p.requests <- func(s map[string]*hostState) {
		fn(s)
		close(done)
	}
	<-done
}

func (p *hostPacer) close() {
	close(p.requests)
	<-p.done
}

// RunTasks executes tasks with a bounded worker pool, pacing each host
// bucket independently with exponential backoff on rate-limit failures.
func RunTasks(ctx context.Context, tasks []Task, exec Executor, opts Options) []Result {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 200 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	if opts.RateLimitCodes == nil {
		opts.RateLimitCodes = DefaultRateLimitCodes
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	jitter := opts.JitterSource
	if jitter == nil {
		jitter = rand.New(rand.NewSource(now().UnixNano()))
	}

	results := make([]Result, len(tasks))
	pacer := newHostPacer()
	defer pacer.close()

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, opts.Concurrency)

	for i, task := range tasks {
		i, task := i, task
		sem <- struct{}{}
		g.Go(func() error {
			defer func() { <-sem }()
			results[i] = runOneTask(gctx, pacer, task, exec, opts, now, jitter)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func runOneTask(ctx context.Context, pacer *hostPacer, task Task, exec Executor, opts Options, now func() time.Time, jitter *rand.Rand) Result {
	host := hostBucket(task.URL)

	var last Result
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if err := awaitHostSlot(ctx, pacer, host, now); err != nil {
			return Result{Task: task, Err: err, Attempts: attempt}
		}

		value, status, err := exec(ctx, task)
		last = Result{Task: task, Value: value, Err: err, StatusCode: status, Attempts: attempt + 1}

		if err == nil {
			recordSuccess(pacer, host, opts, now)
			return last
		}

		retryable := status == 0 || opts.RateLimitCodes[status]
		recordFailure(pacer, host, opts, now, jitter)
		if !retryable || attempt == opts.MaxRetries {
			return last
		}

		select {
		case <-ctx.Done():
			return Result{Task: task, Err: ctx.Err(), Attempts: attempt + 1}
		default:
		}
	}
	return last
}

func awaitHostSlot(ctx context.Context, pacer *hostPacer, host string, now func() time.Time) error {
	var wait time.Duration
	pacer.with(func(states map[string]*hostState) {
		st, ok := states[host]
		if !ok {
			return
		}
		if d := st.nextAllowedAt.Sub(now()); d > 0 {
			wait = d
		}
	})
	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func recordSuccess(pacer *hostPacer, host string, opts Options, now func() time.Time) {
	pacer.with(func(states map[string]*hostState) {
		st, ok := states[host]
		if !ok {
			st = &hostState{currentDelay: opts.BaseDelay}
			states[host] = st
		}
		reduced := time.Duration(float64(st.currentDelay) * 0.75)
		if reduced < opts.BaseDelay {
			reduced = opts.BaseDelay
		}
		st.currentDelay = reduced
		next := opts.BaseDelay
		if st.currentDelay < next {
			next = st.currentDelay
		}
		st.nextAllowedAt = now().Add(next)
	})
}

func recordFailure(pacer *hostPacer, host string, opts Options, now func() time.Time, jitter *rand.Rand) {
	pacer.with(func(states map[string]*hostState) {
		st, ok := states[host]
		if !ok {
			st = &hostState{currentDelay: opts.BaseDelay}
			states[host] = st
		}
		j := 0.75 + jitter.Float64()*0.5 // [0.75, 1.25)
		next := time.Duration(float64(st.currentDelay) * 2 * j)
		if next > opts.MaxDelay {
			next = opts.MaxDelay
		}
		if next < opts.BaseDelay {
			next = opts.BaseDelay
		}
		st.currentDelay = next
		st.nextAllowedAt = now().Add(st.currentDelay)
	})
}

func hostBucket(rawURL string) string {
	if rawURL == "" {
		return defaultBucket
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return defaultBucket
	}
	return u.Hostname()
}
