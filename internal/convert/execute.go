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
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"urlmd/internal/adapters"
	"urlmd/internal/apperr"
	"urlmd/internal/paywall"
	"urlmd/internal/proxytransport"
	"urlmd/internal/retrytoken"
	"urlmd/internal/safety"
)

// challengeMarkers are substrings that flag a static-fetch body as an
// interstitial bot challenge rather than real content.
var challengeMarkers = []string{"cf-challenge", "document.location='/'", "document.location=\"/\""}

// acceptableContentTypes are the content-types the static path treats
// as convertible.
var acceptableContentTypes = []string{"text/html", "text/markdown", "text/plain"}

// execute runs the decision graph for a
// single (already cache-missed) request.
func (r *run) execute(desc *safety.Descriptor) (*Result, error) {
	workingURL := desc.URL
	adapter := r.registry.GetAdapter(workingURL)
	if adapter.TransformURL != nil {
		workingURL = adapter.TransformURL(workingURL)
	}

	// Step 3: direct path.
	if adapter.FetchDirect != nil {
		html, err := adapter.FetchDirect(r.ctx, workingURL)
		if err == nil && html != "" {
			return r.finish(workingURL.String(), html, MethodAdapterDirect, "")
		}
		// failure (or empty, meaning "no direct path") falls through.
	}

	var (
		fetchedHTML string
		finalURL    = workingURL.String()
		method      Method
		cookieRetry string
	)

	needsBrowser := adapter.AlwaysBrowser || r.req.ForceBrowser

	if !needsBrowser {
		html, urlAfterRedirects, staticErr := r.staticFetch(workingURL)
		switch {
		case staticErr == nil && looksLikeChallenge(html):
			needsBrowser = true
		case staticErr == nil:
			fetchedHTML = html
			finalURL = urlAfterRedirects
			method = MethodReadabilityTurndown
		default:
			if e, ok := apperr.As(staticErr); ok && (e.Kind == apperr.UnsupportedContent) {
				return nil, staticErr
			}
			// Step 7 paywall handling may still recover a FetchFailed-style
			// static error below; remember it but don't fail immediately
			// unless nothing else works.
			needsBrowser = r.o.Browser != nil && needsBrowserOnFailure(staticErr)
			if fetchedHTML == "" && !needsBrowser {
				if recovered, rmethod, ok := r.tryPaywallFallback(workingURL, ""); ok {
					fetchedHTML = recovered
					method = rmethod
				} else {
					return nil, staticErr
				}
			}
		}
	}

	if needsBrowser && fetchedHTML == "" {
		if r.o.Browser == nil || r.o.Gate == nil {
			return nil, apperr.New(apperr.FetchFailed, "configure PROXY_URL")
		}
		html, retryHeader, err := r.browserFetch(workingURL, adapter)
		if err != nil {
			if strings.Contains(err.Error(), retrytoken.TokenPrefix) {
				if tok, ok := retrytoken.ExtractToken(err.Error()); ok {
					if cookies, ok := r.o.RetryTokens.ConsumeCookies(tok); ok {
						cookieRetry = cookies
					}
				}
			} else if legacyCookies, ok := retrytoken.ExtractLegacyCookies(err.Error()); ok {
				cookieRetry = legacyCookies
			}
			if cookieRetry == "" {
				return nil, apperr.Wrap(apperr.FetchFailed, err)
			}
			// fall through to proxy retry below using recovered cookies.
		} else {
			fetchedHTML = html
			method = MethodBrowserReadability
			_ = retryHeader
		}
	}

	// Step 6: proxy retry, taken only when the browser path signaled a
	// cookie retry (PROXY_RETRY_TOKEN or the legacy marker); an outright
	// static or browser failure does not reach the proxy.
	if fetchedHTML == "" && cookieRetry != "" {
		html, proxyMethod, err := r.proxyRetry(workingURL, cookieRetry)
		if err != nil {
			return nil, apperr.Wrap(apperr.FetchFailed, err)
		}
		fetchedHTML = html
		method = proxyMethod
	}

	if fetchedHTML == "" {
		return nil, apperr.New(apperr.FetchFailed, "no acquisition path produced content")
	}

	// Step 7: paywall fallback chain, tried only when the rule applies and
	// the content we already have looks paywalled.
	if r.o.Paywall != nil {
		if _, ok := r.o.Paywall.Lookup(workingURL.Hostname()); ok && paywall.LooksPaywalled(fetchedHTML) {
			if better, betterMethod, ok := r.tryPaywallFallback(workingURL, fetchedHTML); ok {
				fetchedHTML = better
				method = betterMethod
			}
		}
	}

	return r.finish(finalURL, fetchedHTML, method, "")
}

func needsBrowserOnFailure(err error) bool {
	e, ok := apperr.As(err)
	if !ok {
		return true
	}
	return e.Kind == apperr.FetchFailed || e.Kind == apperr.FetchTimeout
}

func looksLikeChallenge(html string) bool {
	if len(html) >= 2000 {
		return false
	}
	lower := strings.ToLower(html)
	for _, m := range challengeMarkers {
		if strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

// staticFetch performs the direct HTTPS GET,
// with paywall header augmentation applied when a rule matches.
func (r *run) staticFetch(target *url.URL) (html string, finalURL string, err error) {
	ctx, cancel := context.WithTimeout(r.ctx, r.o.StaticTimeout)
	defer cancel()
	return r.doStaticFetch(ctx, target, true)
}

// staticFetchNoAugment performs the same direct GET without paywall
// header augmentation, used by the AMP fallback which fetches a
// different (amphtml) URL than the one the paywall rule table was
// matched against.
func (r *run) staticFetchNoAugment(ctx context.Context, target *url.URL) (html string, finalURL string, err error) {
	return r.doStaticFetch(ctx, target, false)
}

func (r *run) doStaticFetch(ctx context.Context, target *url.URL, augment bool) (html string, finalURL string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return "", "", apperr.Wrap(apperr.FetchFailed, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; urlmd/1.0)")

	if augment && r.o.Paywall != nil {
		if rule, ok := r.o.Paywall.Lookup(target.Hostname()); ok {
			headers := map[string]string{}
			paywall.ApplyHeaders(rule, headers)
			for k, v := range headers {
				req.Header.Set(k, v)
			}
		}
	}

	resp, err := r.o.HTTPClient.Do(req)
	if err != nil {
		if isTimeoutErr(err) {
			return "", "", apperr.New(apperr.FetchTimeout, err.Error())
		}
		return "", "", apperr.Wrap(apperr.FetchFailed, err)
	}
	defer resp.Body.Close()

	finalURL = resp.Request.URL.String()
	// Convert validated the primary target before execute ran; here a
	// redirect target, or an AMP URL taken from page content, is checked.
	if (finalURL != target.String() || !augment) && !safety.IsSafeURL(finalURL) {
		return "", "", apperr.New(apperr.Blocked, "redirect target is not a safe address")
	}

	ct := resp.Header.Get("Content-Type")
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", apperr.New(apperr.FetchFailed, fmt.Sprintf("Status: %d %s", resp.StatusCode, target.Host))
	}
	if !acceptableContentType(ct) {
		return "", "", apperr.New(apperr.UnsupportedContent, "unsupported content-type: "+ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, proxytransport.MaxResponseBytes))
	if err != nil {
		return "", "", apperr.Wrap(apperr.FetchFailed, err)
	}
	return string(body), finalURL, nil
}

func acceptableContentType(ct string) bool {
	if ct == "" {
		return true
	}
	lower := strings.ToLower(ct)
	for _, a := range acceptableContentTypes {
		if strings.Contains(lower, a) {
			return true
		}
	}
	return false
}

func isTimeoutErr(err error) bool {
	type timeouter interface{ Timeout() bool }
	var t timeouter
	for e := err; e != nil; {
		if tt, ok := e.(timeouter); ok {
			t = tt
			break
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return t != nil && t.Timeout()
}

// browserFetch runs adapter.ConfigurePage/Extract behind the C4 gate
// (step 4 of), returning the extracted HTML. If Extract's
// error embeds a PROXY_RETRY_TOKEN (or legacy PROXY_RETRY:) marker, that
// error is returned unmodified so execute can recover cookies and
// restart at the proxy-retry step.
func (r *run) browserFetch(target *url.URL, adapter adapters.Adapter) (string, string, error) {
	var extracted string
	label := target.Hostname()

	err := r.o.Gate.Run(r.ctx, label, func(ctx context.Context) error {
		page, closePage, err := r.o.Browser.NewPage(ctx, target.String())
		if err != nil {
			return err
		}
		defer closePage()

		state := adapters.PageState{}
		if adapter.ConfigurePage != nil {
			if err := adapter.ConfigurePage(ctx, page, state); err != nil {
				return err
			}
		}

		if adapter.Extract != nil {
			result, err := adapter.Extract(ctx, page, state)
			if err != nil {
				return err
			}
			if result != nil {
				extracted = result.HTML
			}
			return nil
		}

		content, err := page.Content(ctx)
		if err != nil {
			return err
		}
		extracted = content
		return nil
	})
	if err != nil {
		return "", "", err
	}
	return extracted, "", nil
}
