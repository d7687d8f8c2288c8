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

// Package config loads process configuration from the environment.
// There is no config-file format; every knob is an env var.
package config

import (
	"os"
	"strings"
)

// Config holds the environment-derived settings consumed across the
// pipeline.
type Config struct {
	// APIToken gates /api/batch and /api/deepcrawl (Bearer auth).
	APIToken string
	// ProxyURL is a single "user:pass@host:port" forward proxy.
	ProxyURL string
	// ProxyPool is a comma/newline separated list of proxy URLs.
	ProxyPool []string
	// PaywallRulesJSON, if set, replaces the default paywall rule table
	// at startup.
	PaywallRulesJSON string
	// RedisURL, if set, backs the cache/image store with Redis instead
	// of the in-memory default.
	RedisURL string
	// ListenAddr is the HTTP listen address for the main API.
	ListenAddr string
	// MetricsAddr, if non-empty, exposes Prometheus /metrics separately.
	MetricsAddr string
	// Env selects logging posture ("development" or "" for production).
	Env string
}

// FromEnv reads a Config from the process environment.
func FromEnv() Config {
	return Config{
		APIToken:         os.Getenv("API_TOKEN"),
		ProxyURL:         os.Getenv("PROXY_URL"),
		ProxyPool:        splitPool(os.Getenv("PROXY_POOL")),
		PaywallRulesJSON: os.Getenv("PAYWALL_RULES_JSON"),
		RedisURL:         os.Getenv("REDIS_URL"),
		ListenAddr:       envOr("LISTEN_ADDR", ":8080"),
		MetricsAddr:      os.Getenv("METRICS_ADDR"),
		Env:              os.Getenv("URLMD_ENV"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitPool(raw string) []string {
	if raw == "" {
		return nil
	}
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
