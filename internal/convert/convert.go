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

// Package convert implements C8, the conversion orchestrator: the
// decision graph that sequences C1 (safety), C2 (proxy retry
// transport), C3 (adapters), C4 (browser gate), C5 (retry tokens), C6
// (paywall) and C11 (cache) into one request's fetch-and-convert
// pipeline.
package convert

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"

	"urlmd/internal/adapters"
	"urlmd/internal/apperr"
	"urlmd/internal/browsergate"
	"urlmd/internal/extract"
	"urlmd/internal/paywall"
	"urlmd/internal/proxytransport"
	"urlmd/internal/retrytoken"
	"urlmd/internal/safety"
)

// Format is one of the four output shapes a conversion can produce.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatText     Format = "text"
	FormatJSON     Format = "json"
)

// Method identifies which acquisition path ultimately produced the
// result. It is not the renderer: paywall and
// archive fallbacks still report their own method even though the HTML
// they produce is rendered by the same readability+turndown step.
type Method string

const (
	MethodNative               Method = "native"
	MethodReadabilityTurndown  Method = "readability+turndown"
	MethodBrowserReadability   Method = "browser+readability+turndown"
	MethodAdapterDirect        Method = "adapter_direct"
	MethodJSONLD               Method = "jsonld"
	MethodAMP                  Method = "amp"
	MethodWayback              Method = "wayback"
	MethodArchiveToday         Method = "archive_today"
	MethodProxy                Method = "proxy"
	MethodProxyPoolPrefix      Method = "proxy_pool_" // suffixed "_<i>_<variant>"
)

// Request is the conversion request shape accepted by Orchestrator.Convert.
type Request struct {
	URL          string
	Format       Format
	Selector     string
	ForceBrowser bool
	NoCache      bool

	// ExtractStrategy, when non-empty, runs C7 structured extraction
	// against the fetched (post adapter/paywall-stripped) HTML in
	// addition to the normal markdown/html/text/json conversion.
	// ExtractSchema feeds the css/xpath strategies; ExtractRegexSchema
	// feeds the regex strategy. ExtractSelectorRoot scopes extraction
	// the same way Selector scopes the markdown conversion.
	ExtractStrategy     extract.Strategy
	ExtractSchema       extract.Schema
	ExtractRegexSchema  extract.RegexSchema
	ExtractSelectorRoot string
}

const maxSelectorLen = 256

// Result is the conversion result shape returned by Orchestrator.Convert.
type Result struct {
	URLFinal  string
	Format    Format
	Content   string
	Title     string
	Method    Method
	Cached    bool
	Fallbacks []string
	ElapsedMs int64

	// Extracted holds the C7 structured-extraction result when
	// req.ExtractStrategy was set; nil otherwise.
	Extracted extract.Result
}

// CacheEntry is what C11's Cache stores/returns.
type CacheEntry struct {
	Content string
	Method  Method
	Title   string
}

// Cache is C11's minimal collaborator interface; absence of a
// configured cache is not an error, so implementations may pass nil.
type Cache interface {
	Get(fingerprint string) (CacheEntry, bool)
	Put(fingerprint string, entry CacheEntry, ttl time.Duration)
}

// Browser is the headless-render collaborator C4 gates access to; it
// hands back an adapters.Page bound to targetURL.
type Browser interface {
	NewPage(ctx context.Context, targetURL string) (adapters.Page, func(), error)
}

// Orchestrator wires C1/C2/C3/C4/C5/C6/C11 together to execute the
// decision graph. It holds no per-request state; all mutable state
// lives in its collaborators (gate, retry-token store, paywall table,
// cache).
type Orchestrator struct {
	Adapters    *adapters.Registry
	Gate        *browsergate.Gate
	RetryTokens *retrytoken.Store
	Paywall     *paywall.Table
	Cache       Cache
	Browser     Browser
	ProxyURL    string   // single-proxy config string, empty if unset
	ProxyPool   []string // pool entries, empty if unset

	// HTTPClient performs the static (non-proxied) fetch. Defaults to
	// http.DefaultClient's transport semantics (redirects followed) via
	// NewOrchestrator.
	HTTPClient *http.Client

	// HTMLToMarkdown is the external collaborator with signature
	// html → {markdown, title, contentHtml}. Defaults to the
	// in-repo readability-ish converter in htmltomd.go.
	HTMLToMarkdown func(html string, selector string) (markdown, title, contentHTML string, err error)

	DefaultTTL     time.Duration
	DynamicTTL     time.Duration
	StaticTimeout  time.Duration
	ArchiveTimeout time.Duration

	// sf collapses concurrent Convert calls that share a fingerprint into
	// a single upstream fetch, guarding the cache in Cache against a
	// stampede when many requests for the same URL arrive at once.
	sf singleflight.Group
}

// NewOrchestrator builds an Orchestrator with default
// timeouts and TTLs (20s static fetch, 1h cache, 10m for
// browser/dynamic-rendered content).
func NewOrchestrator() *Orchestrator {
	return &Orchestrator{
		HTTPClient:     &http.Client{Timeout: 20 * time.Second},
		HTMLToMarkdown: ConvertHTML,
		DefaultTTL:     time.Hour,
		DynamicTTL:     10 * time.Minute,
		StaticTimeout:  20 * time.Second,
		ArchiveTimeout: 10 * time.Second,
	}
}

// Fingerprint computes the cache key invariant:
// hash(normalized_url, format, selector, force_browser).
func Fingerprint(normalizedURL string, format Format, selector string, forceBrowser bool) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%t", normalizedURL, format, selector, forceBrowser)
	return hex.EncodeToString(h.Sum(nil))
}

// Convert runs the full decision graph for req.
func (o *Orchestrator) Convert(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	if len(req.Selector) > maxSelectorLen {
		return nil, apperr.New(apperr.InvalidRequest, "selector exceeds 256 characters")
	}

	desc, err := safety.Validate(req.URL)
	if err != nil {
		if u, perr := url.Parse(req.URL); perr == nil && u.Host != "" && !safety.IsSafeHost(u.Hostname()) {
			return nil, apperr.Wrap(apperr.Blocked, err)
		}
		return nil, apperr.Wrap(apperr.InvalidURL, err)
	}
	normalized, err := safety.Normalize(req.URL)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidURL, err)
	}

	format := req.Format
	if format == "" {
		format = FormatMarkdown
	}
	if !validFormat(format) {
		return nil, apperr.New(apperr.InvalidFormat, "unknown format: "+string(format))
	}

	fp := Fingerprint(normalized, format, req.Selector, req.ForceBrowser)

	if !req.NoCache && req.ExtractStrategy == "" && o.Cache != nil {
		if entry, ok := o.Cache.Get(fp); ok {
			return &Result{
				URLFinal:  normalized,
				Format:    format,
				Content:   entry.Content,
				Title:     entry.Title,
				Method:    entry.Method,
				Cached:    true,
				ElapsedMs: time.Since(start).Milliseconds(),
			}, nil
		}
	}

	run := &run{
		o:        o,
		ctx:      ctx,
		req:      req,
		format:   format,
		fp:       fp,
		registry: o.Adapters,
	}
	if run.registry == nil {
		run.registry = adapters.Default()
	}

	// Concurrent requests for the same fingerprint share one execute()
	// call instead of each issuing their own upstream fetch.
	v, err, _ := o.sf.Do(fp, func() (any, error) {
		return run.execute(desc)
	})
	if err != nil {
		return nil, err
	}
	// Copy before annotating: singleflight hands the same *Result to every
	// waiter on this fingerprint, and each needs its own ElapsedMs.
	result := *v.(*Result)
	result.ElapsedMs = time.Since(start).Milliseconds()
	return &result, nil
}

func validFormat(f Format) bool {
	switch f {
	case FormatMarkdown, FormatHTML, FormatText, FormatJSON:
		return true
	default:
		return false
	}
}

// run carries per-request working state through the decision graph;
// Orchestrator itself stays stateless across requests.
type run struct {
	o        *Orchestrator
	ctx      context.Context
	req      Request
	format   Format
	fp       string
	registry *adapters.Registry

	fallbacks []string
}

func (r *run) addFallback(tag string) { r.fallbacks = append(r.fallbacks, tag) }

// proxyRetrySignal is an error type carrying cookies recovered for a
// proxy-retry restart. No path in this package constructs it: execute
// reads the PROXY_RETRY_TOKEN (or legacy) marker from the browser
// error message directly.
type proxyRetrySignal struct {
	cookieHeader string
}

func (proxyRetrySignal) Error() string { return "internal: proxy retry signal" }
