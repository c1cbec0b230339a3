package auth

import (
	"context"
	"errors"

	"github.com/artemis-health/artemis/internal/wearable"
)

var (
	ErrInvalidState = errors.New("invalid or expired state")
	ErrAuthDenied   = errors.New("authorization denied")
)

type StartConnectRequest struct {
	UserID   string
	Provider wearable.Provider
}

type StartConnectResult struct {
	AuthURL string `json:"authUrl"`
}

type CallbackRequest struct {
	Provider  wearable.Provider
	State     string
	Code      string
	ErrorCode string
	ErrorDesc string
}

type CallbackResult struct {
	UserID      string
	Integration *wearable.Integration
}

// AuthError is a callback failure the user should be told about on redirect.
type AuthError struct {
	Err       error
	Provider  wearable.Provider
	ErrorCode string
	ErrorDesc string
}

func (e *AuthError) Error() string {
	return e.Err.Error()
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

type Service interface {
	// StartConnect stores a one-time state for the user and returns the
	// vendor consent URL.
	// Returns wearable.ErrProviderDisabled if the provider is not configured.
	StartConnect(ctx context.Context, req StartConnectRequest) (*StartConnectResult, error)

	// HandleCallback completes the consent flow and stores the integration.
	// Returns ErrInvalidState if the state is missing, expired or was issued
	// for another provider.
	// Returns *AuthError wrapping ErrAuthDenied if the user declined.
	HandleCallback(ctx context.Context, req CallbackRequest) (*CallbackResult, error)
}
