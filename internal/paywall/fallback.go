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

package paywall

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"
)

const snapshotLengthFloor = 1000

var httpClient = &http.Client{Timeout: 15 * time.Second}

type waybackResponse struct {
	ArchivedSnapshots struct {
		Closest struct {
			Available bool   `json:"available"`
			URL       string `json:"url"`
			Timestamp string `json:"timestamp"`
			Status    string `json:"status"`
		} `json:"closest"`
	} `json:"archived_snapshots"`
}

// FetchWaybackSnapshot queries archive.org's availability API and, on a
// closest.available snapshot, fetches the id_-suffixed raw URL (the
// unmodified-page variant, without Wayback's injected toolbar).
// Returns ("", false) on any failure or when the snapshot body is not
// longer than snapshotLengthFloor (1000) bytes.
func FetchWaybackSnapshot(ctx context.Context, targetURL string) (string, bool) {
	apiURL := "https://archive.org/wayback/available?url=" + url.QueryEscape(targetURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return "", false
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", false
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", false
	}

	var parsed waybackResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", false
	}
	if !parsed.ArchivedSnapshots.Closest.Available || parsed.ArchivedSnapshots.Closest.URL == "" {
		return "", false
	}

	rawURL := toRawSnapshotURL(parsed.ArchivedSnapshots.Closest.URL)
	return fetchIfLongEnough(ctx, rawURL)
}

var waybackTimestampSuffixRe = regexp.MustCompile(`(/web/\d+)/`)

// toRawSnapshotURL inserts the "id_" suffix Wayback uses to serve the
// unmodified captured page instead of the toolbar-injected replay.
func toRawSnapshotURL(snapshotURL string) string {
	if waybackTimestampSuffixRe.MatchString(snapshotURL) {
		return waybackTimestampSuffixRe.ReplaceAllString(snapshotURL, "${1}id_/")
	}
	return snapshotURL
}

// FetchArchiveToday fetches archive.today's "newest" redirect for
// targetURL, following redirects to the archived copy, subject to the
// same length floor as the Wayback fallback.
func FetchArchiveToday(ctx context.Context, targetURL string) (string, bool) {
	newestURL := "https://archive.today/newest/" + targetURL
	return fetchIfLongEnough(ctx, newestURL)
}

func fetchIfLongEnough(ctx context.Context, targetURL string) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return "", false
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", false
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", false
	}
	if len(body) <= snapshotLengthFloor {
		return "", false
	}
	return string(body), true
}

var ampLinkRe = regexp.MustCompile(`(?is)<link[^>]*\brel=["']amphtml["'][^>]*\bhref=["']([^"']+)["']`)

// ExtractAmpLink finds <link rel=amphtml href=…> in either quote style.
func ExtractAmpLink(htmlDoc string) (string, bool) {
	m := ampLinkRe.FindStringSubmatch(htmlDoc)
	if m == nil {
		return "", false
	}
	return m[1], true
}

var (
	ampSubscriptionsSectionRe = regexp.MustCompile(`(?i)\s*subscriptions-section=["'][^"']*content-not-granted[^"']*["']`)
	ampAccessHideRe           = regexp.MustCompile(`(?i)\s*amp-access-hide(=["'][^"']*["'])?`)
	ampSubscriptionsDisplayRe = regexp.MustCompile(`(?i)\s*subscriptions-display=["'][^"']*["']`)
)

// StripAmpAccessControls removes the AMP subscription-gating attributes
// names, leaving the underlying (previously hidden) markup
// intact.
func StripAmpAccessControls(htmlDoc string) string {
	htmlDoc = ampSubscriptionsSectionRe.ReplaceAllString(htmlDoc, "")
	htmlDoc = ampAccessHideRe.ReplaceAllString(htmlDoc, "")
	htmlDoc = ampSubscriptionsDisplayRe.ReplaceAllString(htmlDoc, "")
	return htmlDoc
}
