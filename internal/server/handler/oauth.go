package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/artemis-health/artemis/internal/service/auth"
	"github.com/artemis-health/artemis/internal/wearable"
	"github.com/artemis-health/artemis/internal/xslog"
	"github.com/go-chi/chi/v5"
)

const (
	ParamConnected        = "connected"
	ParamError            = "error"
	ParamErrorDescription = "error_description"
	ParamProvider         = "provider"
)

// Callback error codes sent back to the app.
const (
	ErrorCodeInvalidState    = "invalid_state"
	ErrorCodeUnknownProvider = "unknown_provider"
	ErrorCodeServerError     = "server_error"
)

type OAuth struct {
	service auth.Service
	appURL  string
}

func NewOAuth(service auth.Service, appURL string) *OAuth {
	return &OAuth{service: service, appURL: appURL}
}

// HandleCallback handles GET /oauth/{provider}/callback. Every outcome is a
// redirect to the app so the user never lands on a bare error page.
func (h *OAuth) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := xslog.FromContext(ctx)

	p, err := wearable.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		h.redirectWithError(w, r, "", ErrorCodeUnknownProvider, err.Error())
		return
	}

	q := r.URL.Query()
	req := auth.CallbackRequest{
		Provider:  p,
		State:     q.Get("state"),
		Code:      q.Get("code"),
		ErrorCode: q.Get(ParamError),
		ErrorDesc: q.Get(ParamErrorDescription),
	}

	result, err := h.service.HandleCallback(ctx, req)
	if err != nil {
		var authErr *auth.AuthError
		switch {
		case errors.As(err, &authErr):
			logger.WarnContext(ctx, "provider authorization failed",
				xslog.Provider(p), xslog.Error(err))
			h.redirectWithError(w, r, p, authErr.ErrorCode, authErr.ErrorDesc)
		case errors.Is(err, auth.ErrInvalidState):
			h.redirectWithError(w, r, p, ErrorCodeInvalidState, "invalid or expired state parameter")
		default:
			logger.ErrorContext(ctx, "oauth callback error", xslog.Provider(p), xslog.Error(err))
			h.redirectWithError(w, r, p, ErrorCodeServerError, "failed to connect provider")
		}
		return
	}

	logger.InfoContext(ctx, "connected provider",
		xslog.UserID(result.UserID), xslog.Provider(p))

	u := h.redirectURL()
	v := u.Query()
	v.Set(ParamConnected, string(p))
	u.RawQuery = v.Encode()
	http.Redirect(w, r, u.String(), http.StatusTemporaryRedirect)
}

func (h *OAuth) redirectWithError(w http.ResponseWriter, r *http.Request, p wearable.Provider, code, desc string) {
	u := h.redirectURL()
	v := u.Query()
	v.Set(ParamError, code)
	if desc != "" {
		v.Set(ParamErrorDescription, desc)
	}
	if p != "" {
		v.Set(ParamProvider, string(p))
	}
	u.RawQuery = v.Encode()
	http.Redirect(w, r, u.String(), http.StatusTemporaryRedirect)
}

func (h *OAuth) redirectURL() *url.URL {
	u, err := url.Parse(h.appURL)
	if err != nil {
		return &url.URL{Path: "/"}
	}
	return u
}
