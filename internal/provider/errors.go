package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/artemis-health/artemis/internal/wearable"
	"github.com/artemis-health/artemis/internal/xhttp"
	"golang.org/x/oauth2"
)

// ClassifyTokenError maps a token endpoint failure onto the error taxonomy.
// Only a definitive rejection from the vendor becomes wearable.ErrNotConnected.
func ClassifyTokenError(p wearable.Provider, err error) error {
	if err == nil {
		return nil
	}

	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		switch {
		case status == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", rateLimitFromResponse(p, re.Response), err)
		case status >= 500:
			return fmt.Errorf("%w: %w", wearable.ErrProviderUnavailable, err)
		case status >= 400, re.ErrorCode != "":
			return fmt.Errorf("%w: %w", wearable.ErrNotConnected, err)
		}
	}

	return ClassifyTransport(err)
}

// ClassifyResponse maps a non-2xx data API response onto the error taxonomy.
// cause is the vendor-specific error parsed from the body.
func ClassifyResponse(p wearable.Provider, resp *http.Response, cause error) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %w", wearable.ErrNotConnected, cause)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", rateLimitFromResponse(p, resp), cause)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %w", wearable.ErrProviderUnavailable, cause)
	default:
		return cause
	}
}

// ClassifyTransport treats anything that never produced a response as
// transient, including deadline expiry.
func ClassifyTransport(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, wearable.ErrProviderUnavailable) {
		return err
	}
	if errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", wearable.ErrProviderUnavailable, err)
}

func rateLimitFromResponse(p wearable.Provider, resp *http.Response) *wearable.RateLimitError {
	rl := &wearable.RateLimitError{Provider: p}
	if resp != nil {
		rl.RetryAfter = xhttp.ParseRetryAfter(resp.Header, time.Now())
	}
	return rl
}
