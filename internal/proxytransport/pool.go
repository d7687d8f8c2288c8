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

package proxytransport

import (
	"context"
	"fmt"
	"strings"
)

// Variant is a named set of headers layered onto a proxy fetch during
// pool rotation.
type Variant struct {
	Name    string
	Headers map[string]string
}

// Pool is an ordered, deduplicated list of proxy configs.
type Pool struct {
	configs []Config
}

// NewPool builds a Pool from raw "user:pass@host:port" strings,
// de-duplicating case-insensitively on (user, pass, lowercase host,
// port) while preserving first-seen order.
func NewPool(raw []string) (*Pool, error) {
	seen := make(map[string]struct{}, len(raw))
	p := &Pool{}
	for _, r := range raw {
		cfg, err := ParseConfig(r)
		if err != nil {
			return nil, fmt.Errorf("parsing proxy %q: %w", r, err)
		}
		key := strings.ToLower(cfg.Username) + "\x00" + cfg.Password + "\x00" +
			strings.ToLower(cfg.Host) + "\x00" + fmt.Sprint(cfg.Port)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		p.configs = append(p.configs, cfg)
	}
	return p, nil
}

// Len returns the number of distinct proxies in the pool.
func (p *Pool) Len() int { return len(p.configs) }

// Configs returns the ordered, deduplicated proxy list.
func (p *Pool) Configs() []Config { return p.configs }

// Attempt records one (proxy index, variant) combination and its
// outcome, surfaced on total exhaustion.
type Attempt struct {
	ProxyIndex  int
	VariantName string
	Error       string
}

// PoolExhausted is returned when every (proxy, variant) combination in a
// pool fetch fails or is rejected by acceptResult.
type PoolExhausted struct {
	Attempts []Attempt
}

func (e *PoolExhausted) Error() string {
	return fmt.Sprintf("proxy pool exhausted after %d attempts", len(e.Attempts))
}

// AcceptFunc decides whether a Response should be accepted as the final
// result of a pool fetch. The default accepts any 200<=status<400.
type AcceptFunc func(*Response) bool

// DefaultAccept is the default acceptance predicate: 200 <= status < 400.
func DefaultAccept(r *Response) bool {
	return r.Status >= 200 && r.Status < 400
}

// FetchViaPool iterates (proxy_i, variant_j) in order, invoking Fetch
// with each variant's header overlay, accepting the first response for
// which accept returns true. If accept is nil, DefaultAccept is used.
func FetchViaPool(ctx context.Context, pool *Pool, targetURL string, variants []Variant, accept AcceptFunc) (*Response, int, string, error) {
	if accept == nil {
		accept = DefaultAccept
	}
	if len(variants) == 0 {
		variants = []Variant{{Name: "default"}}
	}

	var attempts []Attempt
	for i, cfg := range pool.Configs() {
		for _, v := range variants {
			select {
			case <-ctx.Done():
				return nil, 0, "", ctx.Err()
			default:
			}
			resp, err := Fetch(ctx, cfg, targetURL, v.Headers)
			if err != nil {
				attempts = append(attempts, Attempt{ProxyIndex: i, VariantName: v.Name, Error: err.Error()})
				continue
			}
			if accept(resp) {
				return resp, i, v.Name, nil
			}
			attempts = append(attempts, Attempt{
				ProxyIndex:  i,
				VariantName: v.Name,
				Error:       fmt.Sprintf("rejected by acceptResult (status %d)", resp.Status),
			})
		}
	}
	return nil, 0, "", &PoolExhausted{Attempts: attempts}
}
