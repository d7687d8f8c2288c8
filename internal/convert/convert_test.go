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
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"urlmd/internal/adapters"
	"urlmd/internal/apperr"
	"urlmd/internal/browsergate"
	"urlmd/internal/safety"
)

// memCache is a trivial in-memory Cache for tests; the real store-backed
// implementation lives in internal/store.
type memCache struct {
	entries map[string]CacheEntry
}

func newMemCache() *memCache { return &memCache{entries: map[string]CacheEntry{}} }

func (m *memCache) Get(fp string) (CacheEntry, bool) {
	e, ok := m.entries[fp]
	return e, ok
}

func (m *memCache) Put(fp string, entry CacheEntry, _ time.Duration) {
	m.entries[fp] = entry
}

// newTestRun builds a run against rawURL directly, bypassing Convert's
// safety.Validate (httptest.Server addresses are loopback, which C1
// correctly refuses as a top-level request target; execute's decision
// graph itself has no opinion about that check, so exercising it
// against a local server is still faithful to).
func newTestRun(o *Orchestrator, rawURL string, req Request) (*run, *safety.Descriptor) {
	u, err := url.Parse(rawURL)
	if err != nil {
		panic(err)
	}
	desc := &safety.Descriptor{Raw: rawURL, URL: u, Host: u.Hostname(), Scheme: u.Scheme}

	format := req.Format
	if format == "" {
		format = FormatMarkdown
	}
	req.Format = format

	r := &run{
		o:        o,
		ctx:      context.Background(),
		req:      req,
		format:   format,
		fp:       Fingerprint(rawURL, format, req.Selector, req.ForceBrowser),
		registry: o.Adapters,
	}
	if r.registry == nil {
		r.registry = adapters.Default()
	}
	return r, desc
}

func TestFingerprint_DeterministicAndSensitiveToInputs(t *testing.T) {
	a := Fingerprint("https://example.com/a", FormatMarkdown, "", false)
	b := Fingerprint("https://example.com/a", FormatMarkdown, "", false)
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, Fingerprint("https://example.com/a", FormatHTML, "", false))
	assert.NotEqual(t, a, Fingerprint("https://example.com/a", FormatMarkdown, ".body", false))
	assert.NotEqual(t, a, Fingerprint("https://example.com/a", FormatMarkdown, "", true))
	assert.NotEqual(t, a, Fingerprint("https://example.com/b", FormatMarkdown, "", false))
}

func TestValidFormat(t *testing.T) {
	assert.True(t, validFormat(FormatMarkdown))
	assert.True(t, validFormat(FormatHTML))
	assert.True(t, validFormat(FormatText))
	assert.True(t, validFormat(FormatJSON))
	assert.False(t, validFormat(Format("yaml")))
}

func TestConvert_RejectsOversizedSelector(t *testing.T) {
	o := NewOrchestrator()
	_, err := o.Convert(context.Background(), Request{
		URL:      "https://example.com/",
		Selector: string(make([]byte, maxSelectorLen+1)),
	})
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.InvalidRequest, e.Kind)
}

func TestConvert_RejectsUnsafeURL(t *testing.T) {
	o := NewOrchestrator()
	_, err := o.Convert(context.Background(), Request{URL: "http://169.254.169.254/latest/meta-data"})
	require.Error(t, err)
	_, ok := apperr.As(err)
	require.True(t, ok)
}

func TestConvert_RejectsUnknownFormat(t *testing.T) {
	o := NewOrchestrator()
	_, err := o.Convert(context.Background(), Request{URL: "https://example.com/", Format: Format("yaml")})
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.InvalidFormat, e.Kind)
}

func TestConvert_CacheHitShortCircuits(t *testing.T) {
	o := NewOrchestrator()
	cache := newMemCache()
	o.Cache = cache

	fp := Fingerprint("https://example.com/", FormatMarkdown, "", false)
	cache.entries[fp] = CacheEntry{Content: "# Cached", Title: "Cached", Method: MethodReadabilityTurndown}

	result, err := o.Convert(context.Background(), Request{URL: "https://example.com/"})
	require.NoError(t, err)
	assert.True(t, result.Cached)
	assert.Equal(t, "# Cached", result.Content)
	assert.Equal(t, "Cached", result.Title)
}

func TestRun_StaticFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Example Page</title></head>
<body><article><h1>Hello</h1><p>World <strong>bold</strong></p></article></body></html>`))
	}))
	defer srv.Close()

	o := NewOrchestrator()
	o.Adapters = adapters.NewRegistry(adapters.Generic())

	r, desc := newTestRun(o, srv.URL, Request{Format: FormatMarkdown})
	result, err := r.execute(desc)
	require.NoError(t, err)
	assert.Equal(t, MethodReadabilityTurndown, result.Method)
	assert.Contains(t, result.Content, "# Hello")
	assert.Contains(t, result.Content, "**bold**")
	assert.Equal(t, "Example Page", result.Title)
}

func TestRun_TextFormatStripsPunctuation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><h1>Title</h1><p>Body text</p></body></html>`))
	}))
	defer srv.Close()

	o := NewOrchestrator()
	o.Adapters = adapters.NewRegistry(adapters.Generic())

	r, desc := newTestRun(o, srv.URL, Request{Format: FormatText})
	result, err := r.execute(desc)
	require.NoError(t, err)
	assert.NotContains(t, result.Content, "#")
	assert.Contains(t, result.Content, "Title")
	assert.Contains(t, result.Content, "Body text")
}

func TestRun_HTMLFormatWrapsEscapedMarkdownInPre(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><h1>Title</h1><p>Body</p></body></html>`))
	}))
	defer srv.Close()

	o := NewOrchestrator()
	o.Adapters = adapters.NewRegistry(adapters.Generic())

	r, desc := newTestRun(o, srv.URL, Request{Format: FormatHTML})
	result, err := r.execute(desc)
	require.NoError(t, err)
	assert.Contains(t, result.Content, "<pre># Title")
}

func TestRun_NativeMarkdownDetected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("# A Raw Markdown File\n\nSome body text.\n"))
	}))
	defer srv.Close()

	o := NewOrchestrator()
	o.Adapters = adapters.NewRegistry(adapters.Generic())

	r, desc := newTestRun(o, srv.URL, Request{Format: FormatMarkdown})
	result, err := r.execute(desc)
	require.NoError(t, err)
	assert.Equal(t, MethodNative, result.Method)
}

func TestRun_CachesResultAfterFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><h1>Hi</h1></body></html>`))
	}))
	defer srv.Close()

	o := NewOrchestrator()
	o.Adapters = adapters.NewRegistry(adapters.Generic())
	cache := newMemCache()
	o.Cache = cache

	r, desc := newTestRun(o, srv.URL, Request{Format: FormatMarkdown})
	_, err := r.execute(desc)
	require.NoError(t, err)
	assert.Len(t, cache.entries, 1)
}

func TestRun_UpstreamErrorIsFetchFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	o := NewOrchestrator()
	o.Adapters = adapters.NewRegistry(adapters.Generic())

	r, desc := newTestRun(o, srv.URL, Request{})
	_, err := r.execute(desc)
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.FetchFailed, e.Kind)
}

func TestRun_UnsupportedContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	o := NewOrchestrator()
	o.Adapters = adapters.NewRegistry(adapters.Generic())

	r, desc := newTestRun(o, srv.URL, Request{})
	_, err := r.execute(desc)
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.UnsupportedContent, e.Kind)
}

// fakePage and fakeBrowser implement the Browser/adapters.Page seams for
// the browser-required path, standing in for the out-of-scope headless
// renderer treats as an external collaborator.
type fakePage struct {
	content string
}

func (p *fakePage) Navigate(ctx context.Context, targetURL string) error           { return nil }
func (p *fakePage) SetUserAgent(ctx context.Context, ua string) error              { return nil }
func (p *fakePage) SetExtraHeaders(ctx context.Context, h map[string]string) error { return nil }
func (p *fakePage) Content(ctx context.Context) (string, error)                    { return p.content, nil }
func (p *fakePage) Evaluate(ctx context.Context, script string) (any, error)       { return nil, nil }
func (p *fakePage) Cookies(ctx context.Context) ([]adapters.PageCookie, error)      { return nil, nil }

type fakeBrowser struct {
	page *fakePage
}

func (b *fakeBrowser) NewPage(ctx context.Context, targetURL string) (adapters.Page, func(), error) {
	return b.page, func() {}, nil
}

func TestRun_BrowserPathUsedWhenForced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("should not be fetched statically"))
	}))
	defer srv.Close()

	o := NewOrchestrator()
	o.Adapters = adapters.NewRegistry(adapters.Generic())
	o.Browser = &fakeBrowser{page: &fakePage{content: "<html><body><h1>Rendered</h1></body></html>"}}
	o.Gate = browsergate.New(1, time.Second, 0)

	r, desc := newTestRun(o, srv.URL, Request{ForceBrowser: true})
	result, err := r.execute(desc)
	require.NoError(t, err)
	assert.Equal(t, MethodBrowserReadability, result.Method)
	assert.Contains(t, result.Content, "# Rendered")
}

func TestRun_BrowserPathFailsCleanlyWithoutGate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("irrelevant"))
	}))
	defer srv.Close()

	o := NewOrchestrator()
	o.Adapters = adapters.NewRegistry(adapters.Generic())

	r, desc := newTestRun(o, srv.URL, Request{ForceBrowser: true})
	_, err := r.execute(desc)
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.FetchFailed, e.Kind)
}
