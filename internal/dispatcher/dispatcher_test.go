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

package dispatcher

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunTasks_RetriesOnRateLimitCodes(t *testing.T) {
	var calls int32
	exec := func(ctx context.Context, task Task) (any, int, error) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			return nil, 429, errors.New("rate limited")
		}
		return "ok", 200, nil
	}

	results := RunTasks(context.Background(), []Task{{URL: "https://a.example.com/x"}}, exec, Options{
		Concurrency: 1,
		MaxRetries:  5,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	})

	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "ok", results[0].Value)
	assert.EqualValues(t, 3, calls)
}

func TestRunTasks_NonRateLimitCodeAttemptsOnce(t *testing.T) {
	var calls int32
	exec := func(ctx context.Context, task Task) (any, int, error) {
		atomic.AddInt32(&calls, 1)
		return nil, 404, errors.New("not found")
	}

	results := RunTasks(context.Background(), []Task{{URL: "https://b.example.com/x"}}, exec, Options{
		Concurrency: 1,
		MaxRetries:  5,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	})

	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
	assert.EqualValues(t, 1, calls)
}

func TestRunTasks_MissingURLUsesDefaultBucket(t *testing.T) {
	exec := func(ctx context.Context, task Task) (any, int, error) {
		return task.Arg, 200, nil
	}
	results := RunTasks(context.Background(), []Task{{Arg: 1}, {Arg: 2}}, exec, Options{
		Concurrency: 2,
		BaseDelay:   time.Millisecond,
	})
	require.Len(t, results, 2)
	for _, r := range results {
		assert.NoError(t, r.Err)
	}
}

func TestHostBucket(t *testing.T) {
	assert.Equal(t, "example.com", hostBucket("https://example.com/a"))
	assert.Equal(t, defaultBucket, hostBucket(""))
	assert.Equal(t, defaultBucket, hostBucket("not a url"))
}
