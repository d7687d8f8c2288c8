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

// Package httpapi implements the HTTP surface: the
// landing page, synchronous and streaming conversion, image proxying,
// batch conversion, and deep-crawl endpoints, wired on top of C1-C12.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"urlmd/internal/convert"
	"urlmd/internal/crawler"
	"urlmd/internal/logging"
	"urlmd/internal/metrics"
	"urlmd/internal/store"
)

// Server holds every collaborator the HTTP surface dispatches to. It is
// built once at startup and is safe for concurrent use: all mutable
// state lives in its collaborators shared-resource
// policy.
type Server struct {
	Orchestrator *convert.Orchestrator
	Metrics      *metrics.Registry
	Images       store.Images
	Snapshots    crawler.Snapshotter
	APIToken     string

	// StreamFetchTimeout bounds how long an /api/stream request waits for
	// a single conversion before emitting a fail frame.
	StreamFetchTimeout time.Duration
}

// NewRouter builds the chi router for every route this service exposes.
func (s *Server) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(s.countRequests)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleLanding)
	if s.Metrics != nil && s.Metrics.Prometheus() != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Metrics.Prometheus(), promhttp.HandlerOpts{}))
	}
	r.Get("/api/stream", s.handleStream)
	r.Get("/api/og", s.handleOGImage)
	r.Get("/img/*", s.handleImageProxy)
	r.Get("/r2img/{key}", s.handleStoredImage)
	r.Post("/api/batch", s.requireBearer(s.handleBatch))
	r.Post("/api/deepcrawl", s.requireBearer(s.handleDeepcrawl))
	r.Post("/api/extract", s.requireBearer(s.handleExtract))
	r.Get("/*", s.handleConvert)

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, req)
		logging.L().Debug("request",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if s.Metrics != nil {
			s.Metrics.IncRequests()
		}
		next.ServeHTTP(w, req)
	})
}
