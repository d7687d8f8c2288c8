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

package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the process-wide C12 collaborator: three latency ring
// buffers plus the monotonic counters tracked below.
type Registry struct {
	convertLatency   ring
	jobRunLatency    ring
	deepcrawlLatency ring

	requestsTotal      atomic.Int64
	conversionsTotal   atomic.Int64
	conversionFailures atomic.Int64
	rateLimited        atomic.Int64
	jobsCreated        atomic.Int64
	jobsExecuted       atomic.Int64
	jobRetryAttempts   atomic.Int64

	startedAt time.Time
	prom      *promCollectors
}

// New builds a Registry and, if enablePrometheus is true, registers a
// Prometheus collector mirroring the same counters via
// github.com/prometheus/client_golang.
func New(enablePrometheus bool) *Registry {
	r := &Registry{startedAt: time.Now()}
	if enablePrometheus {
		r.prom = newPromCollectors()
	}
	return r
}

// RecordConvert records one conversion's wall-clock duration.
func (r *Registry) RecordConvert(d time.Duration) {
	r.convertLatency.add(d)
	if r.prom != nil {
		r.prom.convertDuration.Observe(d.Seconds())
	}
}

// RecordJobRun records one dispatcher task's wall-clock duration.
func (r *Registry) RecordJobRun(d time.Duration) {
	r.jobRunLatency.add(d)
	if r.prom != nil {
		r.prom.jobRunDuration.Observe(d.Seconds())
	}
}

// RecordDeepcrawl records one crawl node's wall-clock duration.
func (r *Registry) RecordDeepcrawl(d time.Duration) {
	r.deepcrawlLatency.add(d)
	if r.prom != nil {
		r.prom.deepcrawlDuration.Observe(d.Seconds())
	}
}

// Prometheus returns the Prometheus registry backing this Registry's
// counters, or nil if it was built with enablePrometheus=false.
func (r *Registry) Prometheus() *prometheus.Registry {
	if r.prom == nil {
		return nil
	}
	return r.prom.registry
}

// IncRequests increments requestsTotal.
func (r *Registry) IncRequests() {
	r.requestsTotal.Add(1)
	if r.prom != nil {
		r.prom.requestsTotal.Inc()
	}
}

// IncConversions increments conversionsTotal.
func (r *Registry) IncConversions() {
	r.conversionsTotal.Add(1)
	if r.prom != nil {
		r.prom.conversionsTotal.Inc()
	}
}

// IncConversionFailures increments conversionFailures.
func (r *Registry) IncConversionFailures() {
	r.conversionFailures.Add(1)
	if r.prom != nil {
		r.prom.conversionFailures.Inc()
	}
}

// IncRateLimited increments rateLimited.
func (r *Registry) IncRateLimited() {
	r.rateLimited.Add(1)
	if r.prom != nil {
		r.prom.rateLimited.Inc()
	}
}

// IncJobsCreated increments jobsCreated.
func (r *Registry) IncJobsCreated() {
	r.jobsCreated.Add(1)
	if r.prom != nil {
		r.prom.jobsCreated.Inc()
	}
}

// IncJobsExecuted increments jobsExecuted.
func (r *Registry) IncJobsExecuted() {
	r.jobsExecuted.Add(1)
	if r.prom != nil {
		r.prom.jobsExecuted.Inc()
	}
}

// IncJobRetryAttempts increments jobRetryAttempts.
func (r *Registry) IncJobRetryAttempts() {
	r.jobRetryAttempts.Add(1)
	if r.prom != nil {
		r.prom.jobRetryAttempts.Inc()
	}
}

// Snapshot is the derived-metrics shape returned by Registry.Snapshot.
type Snapshot struct {
	UptimeSeconds      float64
	RequestsTotal      int64
	ConversionsTotal   int64
	ConversionFailures int64
	RateLimited        int64
	JobsCreated        int64
	JobsExecuted       int64
	JobRetryAttempts   int64

	ConvertLatency   LatencyStats
	JobRunLatency    LatencyStats
	DeepcrawlLatency LatencyStats

	ThroughputPerMinute float64
	SuccessRate         float64
	RetryRate           float64
	Backlog             int64
}

// GateStats is the subset of browsergate.Stats the backlog formula needs;
// declared here (rather than importing browsergate) to keep this package
// free of a dependency on the component it's observing.
type GateStats struct {
	Queued int
}

// Snapshot derives the per-minute throughput, success-rate, retry-rate,
// and backlog figures, given the browser gate's
// current queue depth (queued is 0 if no gate is wired).
func (r *Registry) Snapshot(gate GateStats) Snapshot {
	uptime := time.Since(r.startedAt).Seconds()

	conversions := r.conversionsTotal.Load()
	failures := r.conversionFailures.Load()
	successes := conversions - failures
	var successRate float64
	if conversions > 0 {
		successRate = float64(successes) / float64(conversions)
	}

	created := r.jobsCreated.Load()
	executed := r.jobsExecuted.Load()
	retries := r.jobRetryAttempts.Load()
	var retryRate float64
	if executed > 0 {
		retryRate = float64(retries) / float64(executed)
	}

	var throughput float64
	if uptime > 0 {
		throughput = float64(conversions) / (uptime / 60)
	}

	return Snapshot{
		UptimeSeconds:      uptime,
		RequestsTotal:      r.requestsTotal.Load(),
		ConversionsTotal:   conversions,
		ConversionFailures: failures,
		RateLimited:        r.rateLimited.Load(),
		JobsCreated:        created,
		JobsExecuted:       executed,
		JobRetryAttempts:   retries,
		ConvertLatency:     statsFromSorted(r.convertLatency.snapshot()),
		JobRunLatency:      statsFromSorted(r.jobRunLatency.snapshot()),
		DeepcrawlLatency:   statsFromSorted(r.deepcrawlLatency.snapshot()),
		ThroughputPerMinute: throughput,
		SuccessRate:         successRate,
		RetryRate:           retryRate,
		Backlog:             int64(gate.Queued) + (created - executed),
	}
}
