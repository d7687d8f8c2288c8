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

// Package adapters implements C3: the per-host adapter registry. Each
// Adapter is a tagged record of optional callables, the same capability-
// set-as-struct-of-funcs pattern caddy uses for pluggable handlers
// (modules implement only the interfaces they need); here, a nil field
// simply means "this adapter has no opinion about that stage."
package adapters

import (
	"context"
	"net/url"
)

// PageState carries whatever a browser-rendering stage needs to hand
// between ConfigurePage and Extract; it is intentionally an opaque
// interface{} bag because its shape is adapter-specific (UA string,
// cookies, viewport, captured images).
type PageState map[string]any

// Page is the minimal browser-page capability an adapter needs: enough
// to navigate, run script-level configuration, and read back content.
// The concrete renderer (headless Chrome, etc.) is an external
// collaborator; this interface is the seam.
type Page interface {
	Navigate(ctx context.Context, targetURL string) error
	SetUserAgent(ctx context.Context, ua string) error
	SetExtraHeaders(ctx context.Context, headers map[string]string) error
	Content(ctx context.Context) (string, error)
	Evaluate(ctx context.Context, script string) (any, error)
	Cookies(ctx context.Context) ([]PageCookie, error)
}

// PageCookie mirrors retrytoken.Cookie without importing it, keeping
// this package's dependency surface to stdlib + the Page interface.
type PageCookie struct {
	Name  string
	Value string
}

// ExtractResult is what Adapter.Extract returns on success.
type ExtractResult struct {
	HTML   string
	Images []string // image URLs captured in-browser, if any
}

// Adapter is the per-domain capability set a site can customize. Every
// field is optional; Generic sets none of them except Match (always true).
type Adapter struct {
	Name string

	// Match reports whether this adapter claims u.
	Match func(u *url.URL) bool

	// AlwaysBrowser forces the browser-required path regardless of the
	// static-fetch outcome.
	AlwaysBrowser bool

	// TransformURL rewrites the working URL before fetch (e.g. mobile
	// host swap, canonicalization).
	TransformURL func(u *url.URL) *url.URL

	// ConfigurePage runs before Extract, to set UA/headers/viewport or
	// kick off a harvest loop (e.g. virtual-scroll capture).
	ConfigurePage func(ctx context.Context, page Page, state PageState) error

	// Extract pulls the final HTML (and optional captured images) from
	// a configured page. Returning (nil, nil) signals "nothing to
	// extract, fall through."
	Extract func(ctx context.Context, page Page, state PageState) (*ExtractResult, error)

	// PostProcess rewrites already-fetched HTML (strip chrome, rewrite
	// image URLs, etc.) before conversion.
	PostProcess func(html string) string

	// FetchDirect synthesizes content without browser rendering at all
	// (e.g. hitting a public API). Returning ("", nil) means "no direct
	// path available, fall through to static/browser."
	FetchDirect func(ctx context.Context, u *url.URL) (string, error)
}

// Registry is the ordered, first-match-wins adapter list Default() builds.
type Registry struct {
	adapters []Adapter
}

// NewRegistry builds a Registry from adapters in priority order. The
// caller is responsible for appending Generic() last.
func NewRegistry(adapters ...Adapter) *Registry {
	return &Registry{adapters: adapters}
}

// GetAdapter returns the first adapter whose Match reports true for u.
func (r *Registry) GetAdapter(u *url.URL) Adapter {
	for _, a := range r.adapters {
		if a.Match != nil && a.Match(u) {
			return a
		}
	}
	return Generic()
}

// AlwaysNeedsBrowser reports adapter.AlwaysBrowser for u's matched adapter.
func (r *Registry) AlwaysNeedsBrowser(u *url.URL) bool {
	return r.GetAdapter(u).AlwaysBrowser
}
