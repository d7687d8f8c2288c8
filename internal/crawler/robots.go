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

package crawler

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// crawlerUA is the user-agent robots.txt rules are evaluated against;
// the page fetches themselves go through the Fetcher with its own
// user-agent.
const crawlerUA = "urlmd-crawler"

// robotsCache fetches and memoizes robots.txt per host, fetched once
// per host per crawl. Absence or a fetch error is
// treated as "allow everything" — robots.txt is advisory input, not a
// hard dependency.
type robotsCache struct {
	client *http.Client
	mu     sync.Mutex
	byHost map[string]*robotstxt.RobotsData
}

func newRobotsCache(client *http.Client) *robotsCache {
	return &robotsCache{client: client, byHost: make(map[string]*robotstxt.RobotsData)}
}

// Allowed reports whether target may be fetched according to its host's
// robots.txt, caching the parsed result per host for the crawl's
// lifetime.
func (c *robotsCache) Allowed(ctx context.Context, target *url.URL) bool {
	data := c.get(ctx, target)
	if data == nil {
		return true
	}
	return data.TestAgent(target.Path, crawlerUA)
}

func (c *robotsCache) get(ctx context.Context, target *url.URL) *robotstxt.RobotsData {
	host := target.Hostname()

	c.mu.Lock()
	if data, ok := c.byHost[host]; ok {
		c.mu.Unlock()
		return data
	}
	c.mu.Unlock()

	robotsURL := (&url.URL{Scheme: target.Scheme, Host: target.Host, Path: "/robots.txt"}).String()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return c.store(host, nil)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return c.store(host, nil)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return c.store(host, nil)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return c.store(host, nil)
	}
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return c.store(host, nil)
	}
	return c.store(host, data)
}

func (c *robotsCache) store(host string, data *robotstxt.RobotsData) *robotstxt.RobotsData {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byHost[host] = data
	return data
}
