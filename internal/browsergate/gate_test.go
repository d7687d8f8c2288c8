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

package browsergate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_FIFOReleaseOrder(t *testing.T) {
	g := New(1, 2*time.Second, 0)
	ctx := context.Background()

	release0, err := g.Acquire(ctx, "first")
	require.NoError(t, err)

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 1; i <= 3; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			rel, err := g.Acquire(ctx, "waiter")
			if err != nil {
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			rel()
		}()
		time.Sleep(5 * time.Millisecond) // ensure enqueue order
	}

	time.Sleep(10 * time.Millisecond)
	release0()
	wg.Wait()

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestGate_ReleaseIdempotent(t *testing.T) {
	g := New(1, time.Second, 0)
	release, err := g.Acquire(context.Background(), "a")
	require.NoError(t, err)
	release()
	release()
	release()
	assert.Equal(t, 0, g.Snapshot().Active)
}

func TestGate_QueueTimeout(t *testing.T) {
	g := New(1, 20*time.Millisecond, 0)
	release, err := g.Acquire(context.Background(), "holder")
	require.NoError(t, err)
	defer release()

	_, err = g.Acquire(context.Background(), "late")
	require.Error(t, err)
	var te *QueueTimeoutError
	assert.ErrorAs(t, err, &te)
	assert.Equal(t, "late", te.Label)
}

func TestGate_QueueFull(t *testing.T) {
	g := New(1, time.Second, 1)
	release, err := g.Acquire(context.Background(), "holder")
	require.NoError(t, err)
	defer release()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = g.Acquire(context.Background(), "queued")
	}()
	time.Sleep(10 * time.Millisecond)

	_, err = g.Acquire(context.Background(), "overflow")
	require.Error(t, err)
	var qf *QueueFullError
	assert.ErrorAs(t, err, &qf)
}

func TestGate_Run_ReleasesOnPanic(t *testing.T) {
	g := New(1, time.Second, 0)
	func() {
		defer func() { _ = recover() }()
		_ = g.Run(context.Background(), "x", func(ctx context.Context) error {
			panic("boom")
		})
	}()
	assert.Equal(t, 0, g.Snapshot().Active)
}

func TestGate_AcquireCancelledContext(t *testing.T) {
	g := New(1, time.Second, 0)
	release, err := g.Acquire(context.Background(), "holder")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Acquire(ctx, "cancelled")
	assert.ErrorIs(t, err, context.Canceled)
}
