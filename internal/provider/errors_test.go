package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/artemis-health/artemis/internal/wearable"
	"golang.org/x/oauth2"
)

func TestClassifyTokenError(t *testing.T) {
	t.Parallel()

	retrieve := func(status int, code string) error {
		return &oauth2.RetrieveError{
			Response:  &http.Response{StatusCode: status, Header: http.Header{"Retry-After": []string{"5"}}},
			ErrorCode: code,
		}
	}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "invalid grant", err: retrieve(http.StatusBadRequest, "invalid_grant"), want: wearable.ErrNotConnected},
		{name: "unauthorized client", err: retrieve(http.StatusUnauthorized, ""), want: wearable.ErrNotConnected},
		{name: "server error", err: retrieve(http.StatusBadGateway, ""), want: wearable.ErrProviderUnavailable},
		{name: "throttled", err: retrieve(http.StatusTooManyRequests, ""), want: wearable.ErrRateLimited},
		{name: "timeout", err: fmt.Errorf("post: %w", context.DeadlineExceeded), want: wearable.ErrProviderUnavailable},
		{name: "network", err: errors.New("connection refused"), want: wearable.ErrProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ClassifyTokenError(wearable.ProviderWhoop, tt.err)
			if !errors.Is(got, tt.want) {
				t.Errorf("ClassifyTokenError() = %v, want errors.Is %v", got, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("ClassifyTokenError() = %v, lost cause %v", got, tt.err)
			}
		})
	}
}

func TestClassifyTokenError_RetryAfter(t *testing.T) {
	t.Parallel()

	err := ClassifyTokenError(wearable.ProviderOura, &oauth2.RetrieveError{
		Response: &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{"Retry-After": []string{"30"}}},
	})
	rl, ok := wearable.AsRateLimit(err)
	if !ok {
		t.Fatalf("ClassifyTokenError() = %v, want *RateLimitError", err)
	}
	if rl.RetryAfter != 30*time.Second {
		t.Errorf("RetryAfter = %v, want 30s", rl.RetryAfter)
	}
}

func TestClassifyResponse(t *testing.T) {
	t.Parallel()

	cause := errors.New("vendor said no")
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, want: wearable.ErrNotConnected},
		{name: "too many requests", status: http.StatusTooManyRequests, want: wearable.ErrRateLimited},
		{name: "unavailable", status: http.StatusServiceUnavailable, want: wearable.ErrProviderUnavailable},
		{name: "bad request", status: http.StatusBadRequest, want: cause},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp := &http.Response{StatusCode: tt.status, Header: http.Header{}}
			got := ClassifyResponse(wearable.ProviderFitbit, resp, cause)
			if !errors.Is(got, tt.want) {
				t.Errorf("ClassifyResponse() = %v, want errors.Is %v", got, tt.want)
			}
		})
	}
}

func TestClassifyTransport_CallerCanceled(t *testing.T) {
	t.Parallel()

	err := ClassifyTransport(fmt.Errorf("get: %w", context.Canceled))
	if errors.Is(err, wearable.ErrProviderUnavailable) {
		t.Errorf("ClassifyTransport() = %v, caller cancellation is not transient", err)
	}
}
