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
	"encoding/json"
	"net/http"

	"urlmd/internal/apperr"
)

// errorBody is the wire shape: {error, message?, status?}.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Status  int    `json:"status,omitempty"`
}

// writeError serializes err as the JSON error response,
// deriving the status from its apperr.Kind when present.
func writeError(w http.ResponseWriter, err error) {
	kind := string(apperr.Internal)
	message := err.Error()
	status := http.StatusInternalServerError

	if e, ok := apperr.As(err); ok {
		kind = string(e.Kind)
		message = e.Message
		status = e.Status
		if status == 0 {
			status = e.Kind.Status()
		}
	}

	writeJSONError(w, status, kind, message)
}

func writeJSONError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: kind, Message: message, Status: status})
}
