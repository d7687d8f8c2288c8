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
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"urlmd/internal/safety"
)

// link is a candidate discovered on a page: its resolved absolute URL
// and the anchor text it was found under (used for scoring).
type link struct {
	url        string
	anchorText string
}

// extractLinks finds every <a href> in html, resolved against base.
func extractLinks(html string, base *url.URL) []link {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	var out []link
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		resolved.Fragment = ""
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		out = append(out, link{url: resolved.String(), anchorText: strings.TrimSpace(s.Text())})
	})
	return out
}

// passesFilters applies allow/deny domain and path
// lists, defaulting to same-registerable-domain-as-seed when no
// allow_domains is set.
func passesFilters(candidate *url.URL, seed *url.URL, f Filters) bool {
	host := strings.ToLower(candidate.Hostname())

	if len(f.DenyDomains) > 0 && matchesAnyDomain(host, f.DenyDomains) {
		return false
	}
	if len(f.AllowDomains) > 0 {
		if !matchesAnyDomain(host, f.AllowDomains) {
			return false
		}
	} else if safety.RegisterableDomain(host) != safety.RegisterableDomain(seed.Hostname()) {
		return false
	}

	path := candidate.Path
	if len(f.DenyPaths) > 0 && matchesAnySubstring(path, f.DenyPaths) {
		return false
	}
	if len(f.AllowPaths) > 0 && !matchesAnySubstring(path, f.AllowPaths) {
		return false
	}
	return true
}

func matchesAnyDomain(host string, domains []string) bool {
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func matchesAnySubstring(path string, substrings []string) bool {
	for _, s := range substrings {
		if s != "" && strings.Contains(path, s) {
			return true
		}
	}
	return false
}

// score computes Σ (keyword occurrence in anchor-text and URL path) × weight.
func score(l link, candidatePath string, s Scorer) float64 {
	if len(s.Keywords) == 0 {
		return 0
	}
	weight := s.Weight
	if weight == 0 {
		weight = 1
	}
	haystack := strings.ToLower(l.anchorText + " " + candidatePath)
	var total float64
	for _, kw := range s.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		total += float64(strings.Count(haystack, kw)) * weight
	}
	return total
}
