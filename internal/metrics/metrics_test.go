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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing_PercentilesMatchSortedFormula(t *testing.T) {
	var r ring
	for i := 1; i <= 100; i++ {
		r.add(time.Duration(i) * time.Millisecond)
	}
	stats := statsFromSorted(r.snapshot())
	assert.Equal(t, 100, stats.Count)
	assert.InDelta(t, 50, stats.P50Ms, 0.001)
	assert.InDelta(t, 95, stats.P95Ms, 0.001)
	assert.InDelta(t, 99, stats.P99Ms, 0.001)
}

func TestRing_OverwritesOldestWhenFull(t *testing.T) {
	var r ring
	for i := 0; i < ringSize+10; i++ {
		r.add(time.Duration(i) * time.Millisecond)
	}
	snap := r.snapshot()
	require.Len(t, snap, ringSize)
	// the 10 oldest samples (0..9ms) were overwritten.
	assert.GreaterOrEqual(t, snap[0], 10*time.Millisecond)
}

func TestRegistry_SnapshotDerivesRates(t *testing.T) {
	reg := New(false)
	reg.IncConversions()
	reg.IncConversions()
	reg.IncConversionFailures()
	reg.IncJobsCreated()
	reg.IncJobsCreated()
	reg.IncJobsExecuted()
	reg.IncJobRetryAttempts()

	snap := reg.Snapshot(GateStats{Queued: 3})
	assert.Equal(t, int64(2), snap.ConversionsTotal)
	assert.Equal(t, int64(1), snap.ConversionFailures)
	assert.InDelta(t, 0.5, snap.SuccessRate, 0.001)
	assert.InDelta(t, 1.0, snap.RetryRate, 0.001)
	assert.Equal(t, int64(3+(2-1)), snap.Backlog)
}

func TestRegistry_PrometheusDisabledByDefault(t *testing.T) {
	reg := New(false)
	assert.Nil(t, reg.Prometheus())
}

func TestRegistry_PrometheusEnabledExposesCounters(t *testing.T) {
	reg := New(true)
	reg.IncRequests()
	require.NotNil(t, reg.Prometheus())

	families, err := reg.Prometheus().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
