package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/aice-relay/internal/metrics"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// Metrics returns middleware that records Prometheus metrics. The wrapped
// writer keeps Flusher and Hijacker so streaming endpoints still work.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		path := normalizePath(r.URL.Path)

		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath collapses ids so labels stay low-cardinality.
func normalizePath(path string) string {
	patterns := []struct{ prefix, normalized string }{
		{"/api/chat/rooms/", "/api/chat/rooms/:id"},
		{"/sse/chat/", "/sse/chat/:id"},
		{"/ws/chat/", "/ws/chat/:id"},
	}
	for _, p := range patterns {
		if strings.HasPrefix(path, p.prefix) && len(path) > len(p.prefix) {
			if strings.HasSuffix(path, "/messages") {
				return p.normalized + "/messages"
			}
			return p.normalized
		}
	}
	return path
}
