package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/artemis-health/artemis/internal/service/auth"
	"github.com/artemis-health/artemis/internal/service/unified"
	"github.com/artemis-health/artemis/internal/wearable"
	"github.com/artemis-health/artemis/internal/xerrors"
)

func TestToHTTPError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
		code string
	}{
		{name: "invalid range", err: fmt.Errorf("%w: end before start", unified.ErrInvalidRange), want: http.StatusBadRequest, code: CodeInvalidRange},
		{name: "unknown provider", err: fmt.Errorf("%w: polar", wearable.ErrUnknownProvider), want: http.StatusBadRequest, code: CodeUnknownProvider},
		{name: "disabled provider", err: wearable.ErrProviderDisabled, want: http.StatusNotFound, code: CodeProviderDisabled},
		{name: "not connected", err: fmt.Errorf("oura: %w", wearable.ErrNotConnected), want: http.StatusNotFound, code: CodeNotConnected},
		{name: "no integrations", err: wearable.ErrNoIntegrations, want: http.StatusNotFound, code: CodeNoIntegrations},
		{name: "forbidden", err: wearable.ErrForbidden, want: http.StatusForbidden, code: CodeForbidden},
		{name: "rate limited", err: &wearable.RateLimitError{Provider: wearable.ProviderFitbit, RetryAfter: time.Minute}, want: http.StatusTooManyRequests, code: CodeRateLimited},
		{name: "no live data", err: wearable.ErrNoLiveData, want: http.StatusServiceUnavailable, code: CodeNoLiveData},
		{name: "provider unavailable", err: wearable.ErrProviderUnavailable, want: http.StatusServiceUnavailable, code: CodeProviderUnavailable},
		{name: "invalid state", err: auth.ErrInvalidState, want: http.StatusBadRequest, code: CodeInvalidState},
		{name: "deadline", err: context.DeadlineExceeded, want: http.StatusServiceUnavailable, code: CodeTimeout},
		{name: "already mapped", err: xerrors.Forbidden(), want: http.StatusForbidden},
		{name: "unknown", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := xerrors.As(toHTTPError(tt.err))
			if got == nil {
				t.Fatalf("toHTTPError(%v) is not an *xerrors.Error", tt.err)
			}
			if got.StatusCode != tt.want {
				t.Errorf("StatusCode = %d, want %d", got.StatusCode, tt.want)
			}
			if got.Code != tt.code {
				t.Errorf("Code = %q, want %q", got.Code, tt.code)
			}
		})
	}
}

func TestToHTTPError_RetryAfter(t *testing.T) {
	t.Parallel()

	got := xerrors.As(toHTTPError(fmt.Errorf("sync: %w",
		&wearable.RateLimitError{Provider: wearable.ProviderWhoop, RetryAfter: 90 * time.Second})))
	if got == nil || got.RateLimit == nil {
		t.Fatalf("toHTTPError() = %v, want rate limit info", got)
	}
	if got.RateLimit.RetryAfter != 90*time.Second {
		t.Errorf("RetryAfter = %s, want 1m30s", got.RateLimit.RetryAfter)
	}
}
