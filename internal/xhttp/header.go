package xhttp

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	XForwardedFor    = "X-Forwarded-For"
	XContentTypeOpts = "X-Content-Type-Options"
	XFrameOpts       = "X-Frame-Options"
	ReferrerPolicy   = "Referrer-Policy"
	CacheControl     = "Cache-Control"
	XRequestID       = "X-Request-Id"
	XRateLimitReason = "X-RateLimit-Reason"
	Authorization    = "Authorization"
	Accept           = "Accept"
)

const (
	ContentType     = "Content-Type"
	ContentEncoding = "Content-Encoding"
	ContentLength   = "Content-Length"
	AcceptEncoding  = "Accept-Encoding"
	Vary            = "Vary"
	Location        = "Location"
)

func SetHeaderRequestID(w http.ResponseWriter, requestID string) {
	w.Header().Set(XRequestID, requestID)
}

func SetHeaderContentTypeApplicationJSON(w http.ResponseWriter) {
	const applicationJSON = "application/json"
	w.Header().Set(ContentType, applicationJSON)
}

const RetryAfter = "Retry-After"

func SetHeaderRetryAfter(w http.ResponseWriter, retryAfter time.Duration) {
	const retryAfterHeader = RetryAfter
	retryAfterSeconds := int(retryAfter.Seconds())
	w.Header().Set(retryAfterHeader, fmt.Sprintf("%d", retryAfterSeconds))
}

// SetRequestHeaderBearer sets a bearer Authorization header on an outbound request.
func SetRequestHeaderBearer(req *http.Request, token string) {
	req.Header.Set(Authorization, "Bearer "+token)
}

func SetRequestHeaderAcceptJSON(req *http.Request) {
	const applicationJSON = "application/json"
	req.Header.Set(Accept, applicationJSON)
}

// ParseRetryAfter reads a Retry-After header in either delay-seconds or
// HTTP-date form. Returns 0 when absent or unparseable.
func ParseRetryAfter(h http.Header, now time.Time) time.Duration {
	v := h.Get(RetryAfter)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
