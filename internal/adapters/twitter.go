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

package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var tweetPathRe = regexp.MustCompile(`^/[^/]+/status/(\d+)`)

// Twitter synthesizes article-like HTML from the public syndication
// endpoint instead of rendering x.com's client app.
// "provides FetchDirect for API synthesis." It falls through (returns
// "", nil) for anything that isn't a single-tweet permalink (profile
// pages, search, home), letting the orchestrator use the normal
// static/browser path for those.
func Twitter() Adapter {
	return Adapter{
		Name: "twitter",
		Match: func(u *url.URL) bool {
			h := strings.ToLower(u.Hostname())
			return h == "twitter.com" || h == "www.twitter.com" || h == "x.com" || h == "www.x.com"
		},
		FetchDirect: fetchTweet,
	}
}

type syndicationTweet struct {
	Text string `json:"text"`
	User struct {
		Name       string `json:"name"`
		ScreenName string `json:"screen_name"`
	} `json:"user"`
	CreatedAt string `json:"created_at"`
}

var twitterHTTPClient = &http.Client{Timeout: 10 * time.Second}

// fetchTweet returns ("", nil) for non-status URLs so the caller falls
// through to the normal fetch path.
func fetchTweet(ctx context.Context, u *url.URL) (string, error) {
	m := tweetPathRe.FindStringSubmatch(u.Path)
	if m == nil {
		return "", nil
	}
	tweetID := m[1]
	endpoint := fmt.Sprintf("https://cdn.syndication.twimg.com/tweet-result?id=%s&lang=en", tweetID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := twitterHTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("twitter syndication returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	var tw syndicationTweet
	if err := json.Unmarshal(body, &tw); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("<article>")
	fmt.Fprintf(&b, "<h1>%s (@%s)</h1>", htmlEscape(tw.User.Name), htmlEscape(tw.User.ScreenName))
	fmt.Fprintf(&b, "<p>%s</p>", htmlEscape(tw.Text))
	if tw.CreatedAt != "" {
		fmt.Fprintf(&b, "<time>%s</time>", htmlEscape(tw.CreatedAt))
	}
	b.WriteString("</article>")
	return b.String(), nil
}

func htmlEscape(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
	)
	return r.Replace(s)
}
