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

import "net/http"

const landingHTML = `<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>urlmd</title></head>
<body>
<h1>urlmd</h1>
<p>Convert any URL to clean Markdown: <code>GET /&lt;url&gt;</code></p>
<p>Query parameters: <code>format</code>, <code>selector</code>, <code>raw</code>, <code>force_browser</code>, <code>no_cache</code>.</p>
</body>
</html>`

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(landingHTML))
}
