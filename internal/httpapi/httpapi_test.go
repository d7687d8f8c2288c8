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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"urlmd/internal/convert"
	"urlmd/internal/metrics"
	"urlmd/internal/store"
)

func newTestServer(apiToken string) *Server {
	return &Server{
		Orchestrator: convert.NewOrchestrator(),
		Metrics:      metrics.New(false),
		Images:       store.NewMemoryImageStore(),
		APIToken:     apiToken,
	}
}

func TestHandleLanding_Returns200HTML(t *testing.T) {
	s := newTestServer("")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	s.NewRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
}

func TestHandleConvert_RejectsUnsafeURL(t *testing.T) {
	s := newTestServer("")
	req := httptest.NewRequest(http.MethodGet, "/http://169.254.169.254/latest/meta-data", nil)
	w := httptest.NewRecorder()
	s.NewRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Blocked", body.Error)
}

func TestHandleBatch_RequiresBearerToken(t *testing.T) {
	s := newTestServer("secret")
	req := httptest.NewRequest(http.MethodPost, "/api/batch", bytes.NewBufferString(`{"urls":["https://example.com/"]}`))
	w := httptest.NewRecorder()
	s.NewRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleBatch_MisconfiguredWithoutToken(t *testing.T) {
	s := newTestServer("")
	req := httptest.NewRequest(http.MethodPost, "/api/batch", bytes.NewBufferString(`{"urls":["https://example.com/"]}`))
	w := httptest.NewRecorder()
	s.NewRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleBatch_RejectsOversizedBody(t *testing.T) {
	s := newTestServer("secret")
	body := `{"urls":["` + strings.Repeat("a", 100_001) + `"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/batch", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer secret")
	req.ContentLength = int64(len(body))
	w := httptest.NewRecorder()
	s.NewRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestHandleBatch_RejectsMoreThanTenURLs(t *testing.T) {
	s := newTestServer("secret")
	urls := make([]string, 11)
	for i := range urls {
		urls[i] = `"https://example.com/"`
	}
	body := `{"urls":[` + strings.Join(urls, ",") + `]}`
	req := httptest.NewRequest(http.MethodPost, "/api/batch", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	s.NewRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Maximum 10 URLs")
}

func TestHandleDeepcrawl_RejectsInvalidRequest(t *testing.T) {
	s := newTestServer("secret")
	req := httptest.NewRequest(http.MethodPost, "/api/deepcrawl", bytes.NewBufferString(`{"seed":"","max_depth":1,"max_pages":1}`))
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	s.NewRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleStoredImage_404WhenMissing(t *testing.T) {
	s := newTestServer("")
	req := httptest.NewRequest(http.MethodGet, "/r2img/nonexistent", nil)
	w := httptest.NewRecorder()
	s.NewRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleStoredImage_ServesPutImage(t *testing.T) {
	images := store.NewMemoryImageStore()
	key := images.Put("https://example.com/a.png", []byte("fakepng"), "image/png")
	s := newTestServer("")
	s.Images = images

	req := httptest.NewRequest(http.MethodGet, "/r2img/"+key, nil)
	w := httptest.NewRecorder()
	s.NewRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "fakepng", w.Body.String())
}

func TestHandleImageProxy_RejectsUnsafeHost(t *testing.T) {
	s := newTestServer("")
	req := httptest.NewRequest(http.MethodGet, "/img/http%3A%2F%2F127.0.0.1%2Fx.png", nil)
	w := httptest.NewRecorder()
	s.NewRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHandleOGImage_ReturnsSVG(t *testing.T) {
	s := newTestServer("")
	req := httptest.NewRequest(http.MethodGet, "/api/og?title=Hello%20World", nil)
	w := httptest.NewRecorder()
	s.NewRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "svg")
	assert.Contains(t, w.Body.String(), "Hello World")
}

func TestHandleStream_FailsOnMissingURL(t *testing.T) {
	s := newTestServer("")
	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil)
	w := httptest.NewRecorder()
	s.NewRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "event: fail")
}
