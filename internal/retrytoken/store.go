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

// Package retrytoken implements C5: a bounded, TTL'd store mapping
// opaque tokens to cookie headers, used by browser adapters to signal a
// second-chance HTTP-proxy retry without ever putting cookies in an
// error message or a log line.
package retrytoken

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TTL is how long a retry token remains valid.
const TTL = 2 * time.Minute

// MaxEntries bounds the store; the oldest entry (by createdAt) is
// evicted when a new one would exceed the bound.
const MaxEntries = 256

// TokenPrefix is the marker embedded in adapter error messages.
const TokenPrefix = "PROXY_RETRY_TOKEN:"

// legacyPrefix is the deprecated in-band cookie marker, accepted for
// backward compatibility but always redacted before logging.
const legacyPrefix = "PROXY_RETRY:"

type entry struct {
	cookieHeader string
	createdAt    time.Time
	expiresAt    time.Time
}

// Store is the process-wide, mutex-guarded retry-token store.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
}

// New constructs an empty Store.
func New() *Store {
	return &Store{entries: make(map[string]entry)}
}

// Cookie is a single cookie name/value pair, as supplied by a browser
// adapter after rendering.
type Cookie struct {
	Name  string
	Value string
}

// CreateRetrySignal normalizes cookies into a single "name=v; ..."
// header string, stores it under a fresh token, and returns the opaque
// marker to embed in an adapter's error message.
func (s *Store) CreateRetrySignal(cookies []Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, fmt.Sprintf("%s=%s", c.Name, c.Value))
	}
	header := strings.Join(parts, "; ")

	token := uuid.NewString()
	now := time.Now()

	s.mu.Lock()
	s.prune(now)
	if len(s.entries) >= MaxEntries {
		s.evictOldestLocked()
	}
	s.entries[token] = entry{cookieHeader: header, createdAt: now, expiresAt: now.Add(TTL)}
	s.mu.Unlock()

	return TokenPrefix + token
}

// ExtractToken parses message for a PROXY_RETRY_TOKEN:<tok> marker,
// returning the token and true if found.
func ExtractToken(message string) (string, bool) {
	idx := strings.Index(message, TokenPrefix)
	if idx < 0 {
		return "", false
	}
	rest := message[idx+len(TokenPrefix):]
	end := len(rest)
	for i, r := range rest {
		if r == ' ' || r == '\n' || r == '\t' || r == '"' || r == '\'' {
			end = i
			break
		}
	}
	tok := rest[:end]
	if tok == "" {
		return "", false
	}
	return tok, true
}

var legacyRe = regexp.MustCompile(regexp.QuoteMeta(legacyPrefix) + `([^\s"']+)`)

// ExtractLegacyCookies parses a legacy in-band marker
// "PROXY_RETRY:cookie=val" from message, returning the cookie string.
// Callers MUST redact this marker before logging the original message.
func ExtractLegacyCookies(message string) (string, bool) {
	m := legacyRe.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// RedactLegacyMarkers replaces any legacy PROXY_RETRY:<cookies> marker in
// message with a redacted placeholder, safe for logging.
func RedactLegacyMarkers(message string) string {
	return legacyRe.ReplaceAllString(message, legacyPrefix+"[redacted]")
}

// ConsumeCookies returns the cookie header for token and deletes the
// entry (delete-on-read, at most once per token), or ("", false) if the
// token is unknown, expired, or already consumed.
func (s *Store) ConsumeCookies(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune(time.Now())

	e, ok := s.entries[token]
	if !ok {
		return "", false
	}
	delete(s.entries, token)
	if time.Now().After(e.expiresAt) {
		return "", false
	}
	return e.cookieHeader, true
}

// prune removes expired entries. Caller must hold s.mu.
func (s *Store) prune(now time.Time) {
	for tok, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, tok)
		}
	}
}

// evictOldestLocked removes the entry with the smallest createdAt.
// Caller must hold s.mu.
func (s *Store) evictOldestLocked() {
	var oldestTok string
	var oldestAt time.Time
	first := true
	for tok, e := range s.entries {
		if first || e.createdAt.Before(oldestAt) {
			oldestTok, oldestAt = tok, e.createdAt
			first = false
		}
	}
	if oldestTok != "" {
		delete(s.entries, oldestTok)
	}
}

// Len reports the current entry count, for tests and observability.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
