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
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// strippedTextLenThreshold and rawHTMLLenThreshold are the pair
// (500/10000) LooksPaywalled's length heuristic uses, kept as named,
// tunable constants rather than inlined magic numbers.
const (
	strippedTextLenThreshold = 500
	rawHTMLLenThreshold      = 10000
)

// paywallPhrases is the fixed phrase list LooksPaywalled scans for.
var paywallPhrases = []string{
	"subscribe to continue reading",
	"this content is reserved for subscribers",
	"you have reached your limit of free articles",
	"to continue reading this article",
	"become a member to read",
	"sign in to continue reading",
}

var noarchiveRe = regexp.MustCompile(`(?is)<meta[^>]*name=["']robots["'][^>]*content=["'][^"']*noarchive[^"']*["']`)

// LooksPaywalled reports whether html shows known paywall signals: a
// large raw document whose visible text is implausibly short, a phrase
// from the fixed list, or a noarchive robots directive
// (this service's own supplement — sites that mark themselves
// noarchive are, in practice, signalling "don't bother caching this,
// it's gated").
func LooksPaywalled(html string) bool {
	if noarchiveRe.MatchString(html) {
		return true
	}
	lower := strings.ToLower(html)
	for _, p := range paywallPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	if len(html) > rawHTMLLenThreshold {
		if stripped := stripText(html); len(stripped) < strippedTextLenThreshold {
			return true
		}
	}
	return false
}

// stripText reduces html to its visible text, the same minimal
// "strip tags, collapse whitespace" pass used only for the length
// heuristic above — it intentionally does not attempt a faithful
// markdown conversion (that's C8's job).
func stripText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(collapseWhitespace(doc.Text()))
}

var whitespaceRunRe = regexp.MustCompile(`\s+`)

func collapseWhitespace(s string) string {
	return whitespaceRunRe.ReplaceAllString(s, " ")
}

// removeSelectors is the fixed selector list of class, id, and
// attribute forms covering common paywall overlay markup across news
// CMSes.
var removeSelectors = []string{
	".paywall",
	"#paywall",
	".piano-offer",
	".tp-modal",
	"[data-paywall]",
	".subscriber-only-overlay",
	".meter-wall",
	".regwall",
}

var articleBodyTruncationStyleRe = regexp.MustCompile(`(?is)(<[a-z0-9]+[^>]*\bclass=["'][^"']*\barticle-body\b[^"']*["'][^>]*\bstyle=["'][^"']*)(max-height\s*:\s*[^;"']+;?|overflow\s*:\s*hidden;?)([^"']*["'])`)

// RemovePaywallElements strips elements matching the fixed selector
// list and neutralizes CSS truncation styles (max-height/overflow:
// hidden) on article-body containers. Selector matches are removed from
// a goquery DOM; the truncation styles are neutralized with a regex over
// the re-serialized HTML (or over the input if it cannot be parsed).
func RemovePaywallElements(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return articleBodyTruncationStyleRe.ReplaceAllString(html, "$1$3")
	}
	for _, sel := range removeSelectors {
		doc.Find(sel).Remove()
	}
	out, err := doc.Html()
	if err != nil {
		return html
	}
	return articleBodyTruncationStyleRe.ReplaceAllString(out, "$1$3")
}
