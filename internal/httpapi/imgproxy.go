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

package httpapi

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"urlmd/internal/apperr"
	"urlmd/internal/safety"
)

// maxImageBytes bounds the image proxy response, mirroring the size
// discipline the conversion pipeline applies to HTML bodies.
const maxImageBytes = 10 << 20

var imageProxyClient = &http.Client{
	Timeout: 15 * time.Second,
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		if !safety.IsSafeURL(req.URL.String()) {
			return apperr.New(apperr.Blocked, "redirect target is not a safe address")
		}
		if len(via) >= 5 {
			return http.ErrUseLastResponse
		}
		return nil
	},
}

// handleImageProxy implements GET /img/<encoded_url>: fetches the target
// image, rejects SVG (an XSS vector when re-served same-origin), and
// streams the body through with the upstream content-type.
func (s *Server) handleImageProxy(w http.ResponseWriter, r *http.Request) {
	encoded := chi.URLParam(r, "*")
	target, err := url.QueryUnescape(encoded)
	if err != nil || target == "" {
		writeJSONError(w, http.StatusBadRequest, string(apperr.InvalidURL), "malformed image URL")
		return
	}
	if !safety.IsSafeURL(target) {
		writeJSONError(w, http.StatusForbidden, string(apperr.Blocked), "image host is not a safe address")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, string(apperr.FetchFailed), err.Error())
		return
	}
	resp, err := imageProxyClient.Do(req)
	if err != nil {
		if e, ok := apperr.As(err); ok && e.Kind == apperr.Blocked {
			writeJSONError(w, http.StatusForbidden, string(apperr.Blocked), e.Message)
			return
		}
		writeJSONError(w, http.StatusBadGateway, string(apperr.FetchFailed), err.Error())
		return
	}
	defer resp.Body.Close()

	ct := resp.Header.Get("Content-Type")
	if strings.Contains(strings.ToLower(ct), "svg") {
		writeJSONError(w, http.StatusForbidden, string(apperr.Blocked), "svg images are rejected")
		return
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		writeJSONError(w, http.StatusBadGateway, string(apperr.FetchFailed), "upstream returned "+resp.Status)
		return
	}

	if ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, io.LimitReader(resp.Body, maxImageBytes))
}

// handleStoredImage implements GET /r2img/<key>: serves a previously
// cached image object from C11's image store.
func (s *Server) handleStoredImage(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if s.Images == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	bytes, mime, ok := s.Images.Get(key)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if mime != "" {
		w.Header().Set("Content-Type", mime)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(bytes)
}
