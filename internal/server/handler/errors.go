package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/artemis-health/artemis/internal/service/auth"
	"github.com/artemis-health/artemis/internal/service/unified"
	"github.com/artemis-health/artemis/internal/wearable"
	"github.com/artemis-health/artemis/internal/xcontext"
	"github.com/artemis-health/artemis/internal/xerrors"
)

// writeError maps domain errors onto HTTP errors. Anything unrecognized is
// a 500.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	if xcontext.IsShutdownInProgress(ctx) && errors.Is(err, context.Canceled) {
		xerrors.WriteError(ctx, w, xerrors.ServiceUnavailable(xerrors.WithCode(CodeShuttingDown), xerrors.WithMessage("server shutting down")))
		return
	}
	xerrors.WriteError(ctx, w, toHTTPError(err))
}

// Error codes returned in the "error" field of JSON error bodies.
const (
	CodeInvalidRange        = "invalid_range"
	CodeUnknownProvider     = "unknown_provider"
	CodeProviderDisabled    = "provider_disabled"
	CodeNotConnected        = "not_connected"
	CodeNoIntegrations      = "no_integrations"
	CodeForbidden           = "forbidden"
	CodeRateLimited         = "rate_limited"
	CodeNoLiveData          = "no_live_data"
	CodeProviderUnavailable = "provider_unavailable"
	CodeInvalidState        = "invalid_state"
	CodeTimeout             = "timeout"
	CodeShuttingDown        = "shutting_down"
)

func toHTTPError(err error) error {
	if rl, ok := wearable.AsRateLimit(err); ok {
		return xerrors.TooManyRequests(
			xerrors.WithCode(CodeRateLimited),
			xerrors.WithMessage(rl.Error()),
			xerrors.WithRetryAfter(rl.RetryAfter),
			xerrors.WithReason("provider_rate_limit"),
			xerrors.WithCause(err),
		)
	}

	msg := xerrors.WithMessage(err.Error())
	switch {
	case xerrors.As(err) != nil:
		return err
	case errors.Is(err, unified.ErrInvalidRange):
		return xerrors.BadRequest(xerrors.WithCode(CodeInvalidRange), msg)
	case errors.Is(err, wearable.ErrUnknownProvider):
		return xerrors.BadRequest(xerrors.WithCode(CodeUnknownProvider), msg)
	case errors.Is(err, wearable.ErrProviderDisabled):
		return xerrors.NotFound(xerrors.WithCode(CodeProviderDisabled), msg)
	case errors.Is(err, wearable.ErrNotConnected):
		return xerrors.NotFound(xerrors.WithCode(CodeNotConnected), msg)
	case errors.Is(err, wearable.ErrNoIntegrations):
		return xerrors.NotFound(xerrors.WithCode(CodeNoIntegrations), msg)
	case errors.Is(err, wearable.ErrForbidden):
		return xerrors.Forbidden(xerrors.WithCode(CodeForbidden), msg)
	case errors.Is(err, wearable.ErrRateLimited):
		return xerrors.TooManyRequests(xerrors.WithCode(CodeRateLimited), msg, xerrors.WithReason("provider_rate_limit"))
	case errors.Is(err, wearable.ErrNoLiveData):
		return xerrors.ServiceUnavailable(xerrors.WithCode(CodeNoLiveData), msg, xerrors.WithCause(err))
	case errors.Is(err, wearable.ErrProviderUnavailable):
		return xerrors.ServiceUnavailable(xerrors.WithCode(CodeProviderUnavailable), msg, xerrors.WithCause(err))
	case errors.Is(err, auth.ErrInvalidState):
		return xerrors.BadRequest(xerrors.WithCode(CodeInvalidState), msg)
	case errors.Is(err, context.DeadlineExceeded):
		return xerrors.ServiceUnavailable(xerrors.WithCode(CodeTimeout), xerrors.WithMessage("request timed out"), xerrors.WithCause(err))
	default:
		return xerrors.Internal(xerrors.WithCause(err))
	}
}

// requireUser returns the authenticated user id, writing a 401 if it is
// missing.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	ctx := r.Context()
	userID, ok := xcontext.GetUserID(ctx)
	if !ok || userID == "" {
		xerrors.WriteError(ctx, w, xerrors.Unauthorized(xerrors.WithMessage("missing user context")))
		return "", false
	}
	return userID, true
}
