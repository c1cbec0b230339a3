package middleware

import (
	"net/http"
	"strings"

	"github.com/artemis-health/artemis/internal/xhttp"
)

// SecurityHeaders sets hardening headers. Responses under /api carry health
// data and must never be cached by intermediaries.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set(xhttp.XContentTypeOpts, "nosniff")
		h.Set(xhttp.XFrameOpts, "DENY")
		h.Set(xhttp.ReferrerPolicy, "no-referrer")
		if strings.HasPrefix(r.URL.Path, "/api/") {
			h.Set(xhttp.CacheControl, "no-store")
		}
		next.ServeHTTP(w, r)
	})
}
