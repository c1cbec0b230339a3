package wearable

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotConnected means the user has no usable integration for a provider.
	// The integration has been deactivated and the user must re-authorize.
	ErrNotConnected = errors.New("provider not connected")

	ErrRateLimited         = errors.New("provider rate limited")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrUnsupportedDataType = errors.New("data type not supported by provider")
	ErrUnknownProvider     = errors.New("unknown provider")
	ErrProviderDisabled    = errors.New("provider not configured")

	ErrForbidden      = errors.New("no active trainer relationship")
	ErrNoIntegrations = errors.New("no connected wearables")
	ErrNoLiveData     = errors.New("could not fetch live data from any provider")
)

// RateLimitError is returned when a provider's quota is exhausted, either as
// reported by the vendor or as tracked locally before a request is sent.
type RateLimitError struct {
	Provider   Provider
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limited, retry after %s", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("%s rate limited", e.Provider)
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

func AsRateLimit(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
