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
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"urlmd/internal/convert"
)

const (
	cacheKeyPrefix = "urlmd:cache:"
	imageKeyPrefix = "urlmd:img:"
)

// RedisCache backs convert.Cache with a Redis client, the optional
// external-collaborator backend leaves unspecified at the
// implementation level; this repo wires github.com/redis/go-redis/v9,
// the same client etalazz-vsa uses for its own cache layer.
type RedisCache struct {
	rdb *redis.Client
	ctx context.Context
}

// NewRedisCache builds a RedisCache from a redis:// URL (e.g.
// "redis://localhost:6379/0").
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisCache{rdb: redis.NewClient(opt), ctx: context.Background()}, nil
}

// Get implements convert.Cache.
func (c *RedisCache) Get(fingerprint string) (convert.CacheEntry, bool) {
	raw, err := c.rdb.Get(c.ctx, cacheKeyPrefix+fingerprint).Bytes()
	if err != nil {
		return convert.CacheEntry{}, false
	}
	var entry convert.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return convert.CacheEntry{}, false
	}
	return entry, true
}

// Put implements convert.Cache.
func (c *RedisCache) Put(fingerprint string, entry convert.CacheEntry, ttl time.Duration) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	c.rdb.Set(c.ctx, cacheKeyPrefix+fingerprint, raw, ttl)
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error { return c.rdb.Close() }

// RedisImageStore backs the image store with the same Redis client.
type RedisImageStore struct {
	rdb *redis.Client
	ctx context.Context
}

// NewRedisImageStore builds a RedisImageStore sharing redisURL's config.
func NewRedisImageStore(redisURL string) (*RedisImageStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisImageStore{rdb: redis.NewClient(opt), ctx: context.Background()}, nil
}

type redisImageRecord struct {
	Bytes []byte `json:"bytes"`
	Mime  string `json:"mime"`
}

// Put stores bytes under a key derived from url and returns that key.
func (s *RedisImageStore) Put(url string, bytes []byte, mime string) string {
	key := imageKey(url)
	raw, err := json.Marshal(redisImageRecord{Bytes: bytes, Mime: mime})
	if err != nil {
		return key
	}
	s.rdb.Set(s.ctx, imageKeyPrefix+key, raw, 24*time.Hour)
	return key
}

// Get returns the stored bytes and mime type for key, if present.
func (s *RedisImageStore) Get(key string) ([]byte, string, bool) {
	raw, err := s.rdb.Get(s.ctx, imageKeyPrefix+key).Bytes()
	if err != nil {
		return nil, "", false
	}
	var rec redisImageRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, "", false
	}
	return rec.Bytes, rec.Mime, true
}

// Close releases the underlying connection pool.
func (s *RedisImageStore) Close() error { return s.rdb.Close() }
