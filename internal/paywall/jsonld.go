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
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// articleTypes is the recognized JSON-LD @type set.
var articleTypes = map[string]bool{
	"Article":        true,
	"NewsArticle":    true,
	"BlogPosting":    true,
	"ReportageNewsArticle": true,
	"ScholarlyArticle": true,
}

const minArticleBodyLen = 200

// ldNode is a loosely-typed JSON-LD node; @type may be a string or an
// array of strings, so it is decoded separately via rawType.
type ldNode struct {
	Type        json.RawMessage   `json:"@type"`
	ArticleBody string            `json:"articleBody"`
	Headline    string            `json:"headline"`
	Graph       []json.RawMessage `json:"@graph"`
}

func (n ldNode) types() []string {
	if len(n.Type) == 0 {
		return nil
	}
	var single string
	if json.Unmarshal(n.Type, &single) == nil {
		return []string{single}
	}
	var many []string
	if json.Unmarshal(n.Type, &many) == nil {
		return many
	}
	return nil
}

func (n ldNode) isArticleType() bool {
	for _, t := range n.types() {
		if articleTypes[t] {
			return true
		}
	}
	return false
}

// ExtractJSONLDArticle finds every <script type="application/ld+json">
// block, walks @graph entries and top-level arrays, and among nodes
// whose @type intersects the recognized article-type set with an
// articleBody of at least minArticleBodyLen characters, picks the one
// with the longest articleBody. Returns ("", false) when nothing
// qualifies.
func ExtractJSONLDArticle(htmlDoc string) (synthesized string, ok bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlDoc))
	if err != nil {
		return "", false
	}

	var best ldNode
	bestLen := 0

	consider := func(raw json.RawMessage) {
		var node ldNode
		if err := json.Unmarshal(raw, &node); err != nil {
			return
		}
		if node.isArticleType() && len(node.ArticleBody) >= minArticleBodyLen && len(node.ArticleBody) > bestLen {
			best = node
			bestLen = len(node.ArticleBody)
		}
		for _, g := range node.Graph {
			var inner ldNode
			if err := json.Unmarshal(g, &inner); err != nil {
				continue
			}
			if inner.isArticleType() && len(inner.ArticleBody) >= minArticleBodyLen && len(inner.ArticleBody) > bestLen {
				best = inner
				bestLen = len(inner.ArticleBody)
			}
		}
	}

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := []byte(s.Text())

		var arr []json.RawMessage
		if err := json.Unmarshal(raw, &arr); err == nil {
			for _, item := range arr {
				consider(item)
			}
			return
		}
		consider(json.RawMessage(raw))
	})

	if bestLen == 0 {
		return "", false
	}
	return renderArticle(best.Headline, best.ArticleBody), true
}

// renderArticle builds paragraph-split HTML with the headline, the
// synthesized document C8 re-runs conversion over.
// jsonld fallback branch.
func renderArticle(headline, body string) string {
	var b strings.Builder
	if headline != "" {
		fmt.Fprintf(&b, "<h1>%s</h1>", html.EscapeString(headline))
	}
	for _, para := range strings.Split(body, "\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(para))
	}
	return b.String()
}
