package server

import (
	"log/slog"
	"net/http"

	"github.com/artemis-health/artemis/internal/metrics"
	"github.com/artemis-health/artemis/internal/server/handler"
	servermw "github.com/artemis-health/artemis/internal/server/middleware"
	"github.com/artemis-health/artemis/internal/storage"
	"github.com/artemis-health/artemis/internal/xhttp/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Health       *handler.Health
	OAuth        *handler.OAuth
	Integrations *handler.Integrations
	Sync         *handler.Sync
	Wearables    *handler.Wearables
}

type RouterConfig struct {
	Logger *slog.Logger
	// Limiter guards the unauthenticated routes by client IP.
	Limiter  storage.RateLimiter
	Verifier *servermw.JWTVerifier
}

func NewRouter(cfg RouterConfig, h Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recovery,
		middleware.RequestID(middleware.WithInboundRequestID()),
		middleware.Logger(cfg.Logger),
		middleware.Logging,
		middleware.ShutdownContext,
		middleware.SecurityHeaders,
		middleware.Gzip,
	)

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(servermw.RateLimitWithBackend(cfg.Limiter))

		r.With(servermw.Metrics(metrics.EndpointHealth)).
			Get("/health", h.Health.HandleHealth)
		r.With(servermw.Metrics(metrics.EndpointOAuthCallback)).
			Get("/oauth/{provider}/callback", h.OAuth.HandleCallback)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(servermw.JWTAuth(cfg.Verifier))

		r.With(servermw.Metrics(metrics.EndpointIntegrations)).
			Get("/integrations", h.Integrations.HandleList)
		r.With(servermw.Metrics(metrics.EndpointConnect)).
			Get("/integrations/{provider}/connect", h.Integrations.HandleConnect)
		r.With(servermw.Metrics(metrics.EndpointDisconnect)).
			Delete("/integrations/{provider}", h.Integrations.HandleDisconnect)

		r.With(servermw.Metrics(metrics.EndpointSync)).
			Post("/sync", h.Sync.HandleSync)
		r.With(servermw.Metrics(metrics.EndpointSyncStatus)).
			Get("/sync/status", h.Sync.HandleStatus)

		r.With(servermw.Metrics(metrics.EndpointWearables)).
			Get("/wearables", h.Wearables.HandleWearables)
		r.With(servermw.Metrics(metrics.EndpointWearables)).
			Get("/clients/{clientID}/wearables", h.Wearables.HandleClientWearables)
	})

	return r
}
