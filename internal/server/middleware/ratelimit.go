package middleware

import (
	"net/http"

	"github.com/artemis-health/artemis/internal/storage"
	"github.com/artemis-health/artemis/internal/xerrors"
	"github.com/artemis-health/artemis/internal/xhttp"
	"github.com/artemis-health/artemis/internal/xslog"
)

// RateLimitWithBackend applies IP-based rate limiting.
func RateLimitWithBackend(backend storage.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := xhttp.GetRequestIP(r)

			result, err := backend.Allow(ctx, "ip:"+ip)
			if err != nil {
				xslog.FromContext(ctx).ErrorContext(ctx, "rate limit check failed",
					xslog.ErrorGroup(err),
					xslog.IP(ip),
				)
				xerrors.WriteError(ctx, w, xerrors.ServiceUnavailable(xerrors.WithMessage("rate limit check failed"), xerrors.WithCause(err)))
				return
			}

			if !result.Allowed {
				xerrors.WriteError(ctx, w, xerrors.TooManyRequests(xerrors.WithRetryAfter(result.RetryAfter), xerrors.WithReason("ip_rate_limit")))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
