package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/artemis-health/artemis/internal/metrics"
	"github.com/artemis-health/artemis/internal/storage"
	"github.com/artemis-health/artemis/internal/wearable"
	"github.com/artemis-health/artemis/internal/xhttp"
	"github.com/artemis-health/artemis/internal/xslog"
)

// QuotaHeaders names the response headers a vendor uses to report its
// request budget. Reset is in seconds until the window resets.
type QuotaHeaders struct {
	Limit     string
	Remaining string
	Reset     string
}

var (
	WhoopQuotaHeaders = QuotaHeaders{
		Limit:     "X-Ratelimit-Limit",
		Remaining: "X-Ratelimit-Remaining",
		Reset:     "X-Ratelimit-Reset",
	}
	FitbitQuotaHeaders = QuotaHeaders{
		Limit:     "Fitbit-Rate-Limit-Limit",
		Remaining: "Fitbit-Rate-Limit-Remaining",
		Reset:     "Fitbit-Rate-Limit-Reset",
	}
)

// QuotaInfo is the budget parsed from one response.
type QuotaInfo struct {
	Limit     int
	Remaining int
	Reset     time.Duration
}

// ParseQuotaHeaders returns nil, nil when the vendor did not send all three headers.
func ParseQuotaHeaders(h http.Header, names QuotaHeaders) (*QuotaInfo, error) {
	var (
		limitStr     = h.Get(names.Limit)
		remainingStr = h.Get(names.Remaining)
		resetStr     = h.Get(names.Reset)
	)

	if limitStr == "" || remainingStr == "" || resetStr == "" {
		return nil, nil
	}

	limit, err := parseQuotaValue(limitStr)
	if err != nil {
		return nil, err
	}

	remaining, err := parseQuotaValue(remainingStr)
	if err != nil {
		return nil, err
	}

	resetSeconds, err := strconv.ParseInt(strings.TrimSpace(resetStr), 10, 64)
	if err != nil {
		return nil, err
	}

	return &QuotaInfo{
		Limit:     limit,
		Remaining: remaining,
		Reset:     time.Duration(resetSeconds) * time.Second,
	}, nil
}

// parseQuotaValue extracts the primary integer value from a quota header.
// Handles formats like:
//   - "100" (simple)
//   - "100, 100;window=60, 10000;window=86400" (complex)
func parseQuotaValue(s string) (int, error) {
	parts := strings.Split(s, ",")
	if len(parts) == 0 {
		return 0, strconv.ErrSyntax
	}

	value := strings.TrimSpace(parts[0])
	if idx := strings.Index(value, ";"); idx != -1 {
		value = value[:idx]
	}

	return strconv.Atoi(value)
}

// QuotaTracker remembers the last budget a vendor reported for each access
// token and refuses to spend a request once it is exhausted. Budgets live in
// the storage backend so every instance sees the same numbers.
type QuotaTracker struct {
	provider wearable.Provider
	headers  QuotaHeaders
	store    storage.QuotaStore
	now      func() time.Time
}

func NewQuotaTracker(p wearable.Provider, headers QuotaHeaders, store storage.QuotaStore) *QuotaTracker {
	return &QuotaTracker{
		provider: p,
		headers:  headers,
		store:    store,
		now:      time.Now,
	}
}

// Check returns a *wearable.RateLimitError when the budget for accessToken is
// spent and the window has not reset yet. Store failures are logged and do not
// block the request.
func (q *QuotaTracker) Check(ctx context.Context, accessToken string) error {
	if q == nil {
		return nil
	}

	quota, err := q.store.GetQuota(ctx, q.key(accessToken))
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		xslog.FromContext(ctx).WarnContext(ctx, "failed to read provider quota",
			xslog.Provider(q.provider), xslog.Error(err))
		return nil
	}

	now := q.now()
	if quota.Exhausted(now) {
		metrics.ProviderRateLimitedTotal.WithLabelValues(string(q.provider)).Inc()
		return &wearable.RateLimitError{Provider: q.provider, RetryAfter: quota.ResetAt.Sub(now)}
	}
	return nil
}

// Observe records the budget reported on resp. A 429 without budget headers
// marks the budget spent until Retry-After.
func (q *QuotaTracker) Observe(ctx context.Context, accessToken string, resp *http.Response) {
	if q == nil || resp == nil {
		return
	}

	now := q.now()
	logger := xslog.FromContext(ctx)

	info, err := ParseQuotaHeaders(resp.Header, q.headers)
	if err != nil {
		logger.DebugContext(ctx, "failed to parse quota headers", xslog.Provider(q.provider), xslog.Error(err))
	}

	var quota storage.Quota
	switch {
	case info != nil:
		quota = storage.Quota{Limit: info.Limit, Remaining: info.Remaining, ResetAt: now.Add(info.Reset)}
		if resp.StatusCode == http.StatusTooManyRequests {
			quota.Remaining = 0
		}
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := xhttp.ParseRetryAfter(resp.Header, now)
		if retryAfter <= 0 {
			retryAfter = time.Minute
		}
		quota = storage.Quota{Remaining: 0, ResetAt: now.Add(retryAfter)}
	default:
		return
	}

	metrics.ProviderQuotaRemaining.WithLabelValues(string(q.provider)).Set(float64(quota.Remaining))

	if err := q.store.SetQuota(ctx, q.key(accessToken), quota); err != nil {
		logger.WarnContext(ctx, "failed to store provider quota", xslog.Provider(q.provider), xslog.Error(err))
	}
}

func (q *QuotaTracker) key(accessToken string) string {
	h := sha256.Sum256([]byte(accessToken))
	return string(q.provider) + ":" + hex.EncodeToString(h[:16])
}
