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

// Package apperr defines the stable error taxonomy shared by every stage
// of the conversion pipeline, and the HTTP status each kind maps to.
package apperr

import (
	"errors"
	"fmt"
	weakrand "math/rand"
	"net/http"
	"strings"
)

// Kind is one of the stable error kinds from the conversion pipeline's
// error taxonomy. Implementations elsewhere may add context but must not
// invent new kinds without updating this table.
type Kind string

const (
	InvalidURL         Kind = "InvalidURL"
	Blocked            Kind = "Blocked"
	InvalidFormat      Kind = "InvalidFormat"
	InvalidSelector    Kind = "InvalidSelector"
	InvalidRequest     Kind = "InvalidRequest"
	Unauthorized       Kind = "Unauthorized"
	RequestTooLarge    Kind = "RequestTooLarge"
	UnsupportedContent Kind = "UnsupportedContent"
	FetchFailed        Kind = "FetchFailed"
	FetchTimeout       Kind = "FetchTimeout"
	Misconfigured      Kind = "Misconfigured"
	Internal           Kind = "Internal"
	UnsupportedXPath   Kind = "UnsupportedXPath"
)

var statusByKind = map[Kind]int{
	InvalidURL:         http.StatusBadRequest,
	Blocked:            http.StatusForbidden,
	InvalidFormat:      http.StatusBadRequest,
	InvalidSelector:    http.StatusBadRequest,
	InvalidRequest:     http.StatusBadRequest,
	Unauthorized:       http.StatusUnauthorized,
	RequestTooLarge:    http.StatusRequestEntityTooLarge,
	UnsupportedContent: http.StatusUnsupportedMediaType,
	FetchFailed:        http.StatusBadGateway,
	FetchTimeout:       http.StatusGatewayTimeout,
	Misconfigured:      http.StatusServiceUnavailable,
	Internal:           http.StatusInternalServerError,
	UnsupportedXPath:   http.StatusBadRequest,
}

// Status returns the HTTP status code associated with a Kind, defaulting
// to 500 for unrecognized kinds.
func (k Kind) Status() int {
	if s, ok := statusByKind[k]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Error is the structured, serializable error shape that flows out of
// every pipeline stage. It mirrors the shape of caddy's HandlerError:
// a stable identifying Kind plus an ID for log correlation.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	ID      string
	Err     error // wrapped cause, if any
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.ID != "" {
		fmt.Fprintf(&b, "{id=%s} ", e.ID)
	}
	fmt.Fprintf(&b, "%s", e.Kind)
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error for kind with the given message, generating a
// fresh correlation ID and deriving the HTTP status from the kind.
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Status:  kind.Status(),
		ID:      randID(),
	}
}

// Wrap builds an *Error from kind and cause. If cause is already an
// *Error, its Kind/ID/Status are preserved unless explicitly empty.
func Wrap(kind Kind, cause error) *Error {
	var existing *Error
	if errors.As(cause, &existing) {
		if existing.Kind == "" {
			existing.Kind = kind
		}
		if existing.ID == "" {
			existing.ID = randID()
		}
		if existing.Status == 0 {
			existing.Status = existing.Kind.Status()
		}
		return existing
	}
	return &Error{
		Kind:    kind,
		Message: cause.Error(),
		Status:  kind.Status(),
		ID:      randID(),
		Err:     cause,
	}
}

// As extracts an *Error from err, if present.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

const idAlphabet = "abcdefghijkmnpqrstuvwxyz0123456789"

func randID() string {
	const n = 9
	b := make([]byte, n)
	for i := range b {
		//nolint:gosec
		b[i] = idAlphabet[weakrand.Int63()%int64(len(idAlphabet))]
	}
	return string(b)
}
