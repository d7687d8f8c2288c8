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
	"net/http"
	"strings"

	"urlmd/internal/apperr"
)

// requireBearer wraps handler with the Bearer-token check that batch
// and deepcrawl require. An empty configured APIToken disables the
// endpoint entirely (503 Misconfigured) rather than silently accepting
// any request.
func (s *Server) requireBearer(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.APIToken == "" {
			writeJSONError(w, http.StatusServiceUnavailable, string(apperr.Misconfigured), "API_TOKEN is not configured")
			return
		}
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) || strings.TrimPrefix(auth, prefix) != s.APIToken {
			writeJSONError(w, http.StatusUnauthorized, string(apperr.Unauthorized), "missing or invalid bearer token")
			return
		}
		handler(w, r)
	}
}
