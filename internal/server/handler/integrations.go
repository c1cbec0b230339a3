package handler

import (
	"context"
	"net/http"

	"github.com/artemis-health/artemis/internal/service/auth"
	"github.com/artemis-health/artemis/internal/wearable"
	"github.com/artemis-health/artemis/internal/xhttp"
	"github.com/artemis-health/artemis/internal/xslog"
	"github.com/go-chi/chi/v5"
)

type IntegrationLister interface {
	ListActive(ctx context.Context, userID string) ([]wearable.Integration, error)
}

type Disconnector interface {
	Disconnect(ctx context.Context, userID string, p wearable.Provider) error
}

type Integrations struct {
	lister IntegrationLister
	auth   auth.Service
	tokens Disconnector
}

func NewIntegrations(lister IntegrationLister, authService auth.Service, tokens Disconnector) *Integrations {
	return &Integrations{lister: lister, auth: authService, tokens: tokens}
}

type integrationsResponse struct {
	Integrations []wearable.Integration `json:"integrations"`
}

// HandleList handles GET /api/integrations.
func (h *Integrations) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	list, err := h.lister.ListActive(r.Context(), userID)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	if list == nil {
		list = []wearable.Integration{}
	}

	xhttp.WriteOK(w, integrationsResponse{Integrations: list})
}

// HandleConnect handles GET /api/integrations/{provider}/connect.
func (h *Integrations) HandleConnect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	p, err := wearable.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := h.auth.StartConnect(ctx, auth.StartConnectRequest{UserID: userID, Provider: p})
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	xslog.FromContext(ctx).InfoContext(ctx, "started provider connect", xslog.Provider(p))
	xhttp.WriteOK(w, result)
}

// HandleDisconnect handles DELETE /api/integrations/{provider}.
func (h *Integrations) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	p, err := wearable.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	if err := h.tokens.Disconnect(ctx, userID, p); err != nil {
		writeError(ctx, w, err)
		return
	}

	xslog.FromContext(ctx).InfoContext(ctx, "disconnected provider", xslog.Provider(p))
	xhttp.WriteNoContent(w)
}
