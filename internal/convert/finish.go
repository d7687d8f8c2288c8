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

package convert

import (
	"html"
	"net/url"
	"regexp"
	"strings"

	"urlmd/internal/apperr"
	"urlmd/internal/extract"
	"urlmd/internal/paywall"
)

var wechatCDNImgRe = regexp.MustCompile(`(?i)(src|data-src)=["'](https?://mmbiz\.qpic\.cn/[^"']+)["']`)

// finish runs: adapter post-process, paywall element stripping, the
// optional C7 extraction, conversion to markdown, format serialization,
// and cache persistence.
func (r *run) finish(finalURL, rawHTML string, method Method, _ string) (*Result, error) {
	parsedFinal, err := url.Parse(finalURL)
	if err != nil {
		parsedFinal = &url.URL{}
	}
	adapter := r.registry.GetAdapter(parsedFinal)
	if adapter.PostProcess != nil {
		rawHTML = adapter.PostProcess(rawHTML)
	}
	rawHTML = paywall.RemovePaywallElements(rawHTML)

	if method == "" {
		method = MethodReadabilityTurndown
	}
	if looksLikeNativeMarkdown(rawHTML) {
		method = MethodNative
	}

	var extracted extract.Result
	if r.req.ExtractStrategy != "" {
		extracted, err = extract.Extract(r.req.ExtractStrategy, rawHTML, r.req.ExtractSchema, r.req.ExtractRegexSchema, r.req.ExtractSelectorRoot)
		if err != nil {
			return nil, err
		}
	}

	markdown, title, contentHTML, err := r.o.HTMLToMarkdown(rawHTML, r.req.Selector)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err)
	}
	markdown = rewriteProxiedImages(markdown)

	content, err := serialize(r.format, markdown, contentHTML)
	if err != nil {
		return nil, err
	}

	result := &Result{
		URLFinal:  finalURL,
		Format:    r.format,
		Content:   content,
		Title:     title,
		Method:    method,
		Cached:    false,
		Fallbacks: r.fallbacks,
		Extracted: extracted,
	}

	if r.o.Cache != nil && !r.req.NoCache {
		ttl := r.o.DefaultTTL
		if method == MethodBrowserReadability {
			ttl = r.o.DynamicTTL
		}
		r.o.Cache.Put(r.fp, CacheEntry{Content: content, Method: method, Title: title}, ttl)
	}

	return result, nil
}

// looksLikeNativeMarkdown is a light heuristic: if the fetched body has
// no HTML tags at all but does have markdown-ish punctuation, treat it
// as already-markdown source (e.g. a raw .md file served as
// text/plain) "native" method.
func looksLikeNativeMarkdown(body string) bool {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return false
	}
	if strings.Contains(trimmed, "<html") || strings.Contains(trimmed, "<body") || strings.Contains(trimmed, "<div") {
		return false
	}
	return strings.HasPrefix(trimmed, "#") || strings.Contains(trimmed, "\n#")
}

// rewriteProxiedImages rewrites WeChat CDN image URLs that appear as
// src=/data-src= attributes in the final markdown to route through this
// service's /img/ endpoint. Markdown image links (![alt](url)) are not
// rewritten; for WeChat pages the adapter's PostProcess has already
// rewritten the HTML before conversion.
func rewriteProxiedImages(markdown string) string {
	return wechatCDNImgRe.ReplaceAllStringFunc(markdown, func(m string) string {
		sub := wechatCDNImgRe.FindStringSubmatch(m)
		if len(sub) != 3 {
			return m
		}
		return sub[1] + `="/img/` + url.QueryEscape(sub[2]) + `"`
	})
}

func serialize(format Format, markdown, contentHTML string) (string, error) {
	switch format {
	case FormatMarkdown, "":
		return markdown, nil
	case FormatHTML:
		return "<pre>" + html.EscapeString(markdown) + "</pre>", nil
	case FormatText:
		return stripMarkdownPunctuation(markdown), nil
	case FormatJSON:
		return markdown, nil // the httpapi layer wraps this into a JSON envelope
	default:
		return "", apperr.New(apperr.InvalidFormat, "unknown format: "+string(format))
	}
}

var markdownPunctuationRe = regexp.MustCompile("[*_`#>\\[\\]()!-]")

func stripMarkdownPunctuation(markdown string) string {
	return strings.TrimSpace(markdownPunctuationRe.ReplaceAllString(markdown, ""))
}
