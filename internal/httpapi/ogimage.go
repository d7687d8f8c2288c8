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
	"text/template"

	"net/http"

	"urlmd/internal/safety"
)

var ogTemplate = template.Must(template.New("og").Parse(`<svg xmlns="http://www.w3.org/2000/svg" width="1200" height="630" viewBox="0 0 1200 630">
  <rect width="1200" height="630" fill="#0f172a"/>
  <text x="60" y="330" font-family="sans-serif" font-size="48" fill="#f8fafc">{{.Title}}</text>
</svg>`))

// handleOGImage implements GET /api/og?title=…: a generated SVG card.
// text/template does no escaping on its own, so Title is run through
// safety.EscapeHTML before it ever reaches the template, keeping
// arbitrary query input from breaking out of the SVG document.
func (s *Server) handleOGImage(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if title == "" {
		title = "urlmd"
	}
	title = safety.EscapeHTML(title)

	var buf bytes.Buffer
	if err := ogTemplate.Execute(&buf, struct{ Title string }{Title: title}); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
