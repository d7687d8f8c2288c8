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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// promCollectors mirrors Registry's counters/ring buffers as real
// Prometheus instruments, registered against this package's own
// registry (see newPromCollectors), which internal/httpapi exposes at
// /metrics via promhttp.HandlerFor alongside the custom Snapshot builder.
type promCollectors struct {
	registry *prometheus.Registry

	requestsTotal      prometheus.Counter
	conversionsTotal   prometheus.Counter
	conversionFailures prometheus.Counter
	rateLimited        prometheus.Counter
	jobsCreated        prometheus.Counter
	jobsExecuted       prometheus.Counter
	jobRetryAttempts   prometheus.Counter

	convertDuration   prometheus.Histogram
	jobRunDuration    prometheus.Histogram
	deepcrawlDuration prometheus.Histogram
}

// newPromCollectors builds its own prometheus.Registry rather than
// registering against the global default, so multiple Registry instances
// (e.g. one per test) never collide on duplicate metric names.
func newPromCollectors() *promCollectors {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	namespace := "urlmd"
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
	}
	histogram := func(name, help string) prometheus.Histogram {
		return factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
			Buckets:   prometheus.DefBuckets,
		})
	}
	return &promCollectors{
		registry:           reg,
		requestsTotal:      counter("requests_total", "Total HTTP requests handled."),
		conversionsTotal:   counter("conversions_total", "Total conversion attempts."),
		conversionFailures: counter("conversion_failures_total", "Total conversion failures."),
		rateLimited:        counter("rate_limited_total", "Total dispatcher rate-limit backoffs."),
		jobsCreated:        counter("jobs_created_total", "Total dispatcher tasks created."),
		jobsExecuted:       counter("jobs_executed_total", "Total dispatcher tasks executed."),
		jobRetryAttempts:   counter("job_retry_attempts_total", "Total dispatcher retry attempts."),
		convertDuration:    histogram("convert_duration_seconds", "Conversion wall-clock duration."),
		jobRunDuration:     histogram("job_run_duration_seconds", "Dispatcher task wall-clock duration."),
		deepcrawlDuration:  histogram("deepcrawl_node_duration_seconds", "Deep-crawl node wall-clock duration."),
	}
}
