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

package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"urlmd/internal/convert"
)

func TestMemoryCache_PutGetRoundtrip(t *testing.T) {
	c := NewMemoryCache()
	c.Put("fp1", convert.CacheEntry{Content: "hello", Title: "T", Method: convert.MethodNative}, time.Hour)

	entry, ok := c.Get("fp1")
	require.True(t, ok)
	assert.Equal(t, "hello", entry.Content)
	assert.Equal(t, "T", entry.Title)
}

func TestMemoryCache_MissReturnsFalse(t *testing.T) {
	c := NewMemoryCache()
	_, ok := c.Get("nope")
	assert.False(t, ok)
}

func TestMemoryCache_ExpiresAfterTTL(t *testing.T) {
	clock := time.Now()
	c := NewMemoryCache()
	c.now = func() time.Time { return clock }
	c.Put("fp1", convert.CacheEntry{Content: "hello"}, time.Minute)

	clock = clock.Add(2 * time.Minute)
	_, ok := c.Get("fp1")
	assert.False(t, ok)
}

func TestMemoryImageStore_PutGetRoundtrip(t *testing.T) {
	s := NewMemoryImageStore()
	key := s.Put("https://example.com/a.png", []byte("pngbytes"), "image/png")
	assert.NotEmpty(t, key)

	bytes, mime, ok := s.Get(key)
	require.True(t, ok)
	assert.Equal(t, []byte("pngbytes"), bytes)
	assert.Equal(t, "image/png", mime)
}

func TestMemoryImageStore_SameURLSameKey(t *testing.T) {
	s := NewMemoryImageStore()
	k1 := s.Put("https://example.com/a.png", []byte("a"), "image/png")
	k2 := s.Put("https://example.com/a.png", []byte("b"), "image/png")
	assert.Equal(t, k1, k2)
}
