// Copyright 2026 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"github.com/edrlab/analytics-server/pkg/api"
	"github.com/edrlab/analytics-server/pkg/throttle"
)

func (s *Server) setRoutes() *chi.Mux {

	// Set api controller dependencies
	a := api.NewAPICtrl(s.Config, s.Store, s.Fetcher)

	// Define the router
	r := chi.NewRouter()

	// Recovery middleware
	r.Use(middleware.Recoverer)

	// Heartbeat (excluded from logs)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	// Group for all other routes
	r.Group(func(r chi.Router) {
		// Logger middleware
		r.Use(middleware.Logger)

		r.NotFound(notFoundProblemDetail)

		// CORS Configuration
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.Config.Origins, // URLs of the React frontend
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300, // Maximum value not ignored by any of major browsers
		}))

		// Rate limiting: a general window for all API routes, and a
		// tighter window applied to ingestion on top of it
		apiLimiter := throttle.NewLimiter(
			s.Config.RateLimit.APIRequests,
			time.Duration(s.Config.RateLimit.APIWindowMin)*time.Minute,
			"Too many requests from this address, retry later",
		)
		ingestLimiter := throttle.NewLimiter(
			s.Config.RateLimit.IngestRequests,
			time.Duration(s.Config.RateLimit.IngestWindowSec)*time.Second,
			"Events are accepted at most once per minute per address",
		)
		if s.Config.TrustedProxy {
			apiLimiter.TrustProxy(true)
			ingestLimiter.TrustProxy(true)
		}

		r.Route("/api/v1", func(r chi.Router) {
			r.Use(render.SetContentType(render.ContentTypeJSON))

			// Analytics events
			r.Route("/analytics", func(r chi.Router) {
				r.Use(apiLimiter.Handler)
				r.With(ingestLimiter.Handler).Post("/", a.CreateEvent) // POST /api/v1/analytics
				r.Get("/stats", a.GetStats)                            // GET /api/v1/analytics/stats
				r.Get("/summary", a.GetSummary)                        // GET /api/v1/analytics/summary
			})

			// Content proxy, outside the analytics rate limit window:
			// one page load fetches several snippets
			r.Get("/content/{cid}", a.GetContent) // GET /api/v1/content/bafy...
		})
	})

	return r
}

// notFoundProblemDetail formats not found errors as problem details, for the sake of consistency.
func notFoundProblemDetail(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{"type": "about:blank", "title": "Endpoint not found."}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)

	json.NewEncoder(w).Encode(response)
}
