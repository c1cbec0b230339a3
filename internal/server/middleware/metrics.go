package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/artemis-health/artemis/internal/metrics"
)

type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.written {
		rw.status = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Metrics records request count and latency under a fixed endpoint label.
func Metrics(endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			status := strconv.Itoa(rec.status)
			metrics.HTTPRequestsTotal.WithLabelValues(endpoint, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(endpoint, status).Observe(time.Since(start).Seconds())
		})
	}
}
