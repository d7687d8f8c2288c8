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
	"net/url"
	"regexp"
	"strings"
)

// Reddit rewrites www.reddit.com links to old.reddit.com (a far lighter,
// server-rendered page that needs no browser) and strips the global
// header and the comment thread from the fetched HTML; the siteTable
// listing is kept.
func Reddit() Adapter {
	return Adapter{
		Name: "reddit",
		Match: func(u *url.URL) bool {
			h := strings.ToLower(u.Hostname())
			return h == "www.reddit.com" || h == "reddit.com" || h == "old.reddit.com"
		},
		TransformURL: func(u *url.URL) *url.URL {
			out := *u
			out.Host = "old.reddit.com"
			return &out
		},
		PostProcess: redditPostProcess,
	}
}

var (
	redditHeaderRe      = regexp.MustCompile(`(?is)<div[^>]*\bid=["']header["'][^>]*>.*?</div>\s*`)
	redditCommentAreaRe = regexp.MustCompile(`(?is)<div[^>]*\bid=["']commentarea["'][^>]*>.*?</div>`)
)

func redditPostProcess(html string) string {
	html = redditHeaderRe.ReplaceAllString(html, "")
	html = redditCommentAreaRe.ReplaceAllString(html, "")
	return html
}
