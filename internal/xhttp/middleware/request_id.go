package middleware

import (
	"net/http"

	"github.com/artemis-health/artemis/internal/xcontext"
	"github.com/artemis-health/artemis/internal/xhttp"
	"github.com/google/uuid"
)

type requestIDConfig struct {
	trustHeader bool
	newID       func() string
}

type RequestIDOption func(*requestIDConfig)

// WithInboundRequestID reuses a caller-supplied X-Request-Id when it is a
// UUID, so the app and the API log the same id for one user action.
func WithInboundRequestID() RequestIDOption {
	return func(c *requestIDConfig) { c.trustHeader = true }
}

func RequestID(opts ...RequestIDOption) func(http.Handler) http.Handler {
	cfg := requestIDConfig{newID: uuid.NewString}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if cfg.trustHeader {
				if v := r.Header.Get(xhttp.XRequestID); v != "" {
					if _, err := uuid.Parse(v); err == nil {
						id = v
					}
				}
			}
			if id == "" {
				id = cfg.newID()
			}

			ctx := xcontext.SetRequestID(r.Context(), id)
			xhttp.SetHeaderRequestID(w, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
