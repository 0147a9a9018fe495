// Copyright 2026 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

// The throttle package bounds request volume per client address
// over fixed time windows.
package throttle

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Limiter counts requests per key over a fixed window.
type Limiter struct {
	mu         sync.Mutex
	limit      int
	window     time.Duration
	message    string
	trustProxy bool
	buckets    map[string]*bucket
	now        func() time.Time
}

type bucket struct {
	count   int
	started time.Time
}

// NewLimiter returns a limiter accepting at most limit requests
// per window and key.
func NewLimiter(limit int, window time.Duration, message string) *Limiter {
	return &Limiter{
		limit:   limit,
		window:  window,
		message: message,
		buckets: map[string]*bucket{},
		now:     time.Now,
	}
}

// TrustProxy keys the limiter on the X-Forwarded-For header instead of the
// socket address. Only enable it when the server sits behind a reverse proxy
// overwriting that header; a direct client can forge it at will.
func (l *Limiter) TrustProxy(trust bool) {
	l.trustProxy = trust
}

// Allow records one request for the key and reports whether it fits in the
// current window. A rejected request still consumes a slot: retrying before
// the window elapses cannot be used to slip through.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok || now.Sub(b.started) >= l.window {
		// new key, or the window has elapsed
		l.buckets[key] = &bucket{count: 1, started: now}
		return true
	}
	b.count++
	return b.count <= l.limit
}

// Handler is a middleware rejecting over-limit requests with a 429.
func (l *Limiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(ClientIP(r, l.trustProxy)) {
			response := map[string]string{
				"error":   "Too many requests",
				"message": l.message,
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(response)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP resolves the client network address used as limiter key.
// The X-Forwarded-For header is honored only when a trusted proxy sets it;
// otherwise the socket address is authoritative.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		// behind a reverse proxy, the original address comes first
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			if i := strings.IndexByte(fwd, ','); i > 0 {
				return strings.TrimSpace(fwd[:i])
			}
			return strings.TrimSpace(fwd)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
