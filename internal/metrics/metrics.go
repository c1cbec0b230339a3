package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label value constants to prevent typos
const (
	// HTTP endpoints
	EndpointHealth        = "health"
	EndpointIntegrations  = "integrations"
	EndpointConnect       = "connect"
	EndpointOAuthCallback = "oauth_callback"
	EndpointDisconnect    = "disconnect"
	EndpointSync          = "sync"
	EndpointSyncStatus    = "sync_status"
	EndpointWearables     = "wearables"

	// Provider API operations
	OpExchangeCode  = "exchange_code"
	OpRefreshToken  = "refresh_token"
	OpRevokeToken   = "revoke_token"
	OpGetUser       = "get_user"
	OpListRecovery  = "list_recovery"
	OpListSleep     = "list_sleep"
	OpListActivity  = "list_activity"
	OpListDaily     = "list_daily"
	OpListWorkout   = "list_workout"
	OpListHeartRate = "list_heart_rate"

	// Token refresh results
	RefreshSuccess     = "success"
	RefreshDeactivated = "deactivated"
	RefreshTransient   = "transient"
	RefreshShared      = "shared"

	// Status label for requests that never produced a response
	StatusTransportError = "transport_error"
)

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint", "status_code"},
	)
)

// Provider API Metrics
var (
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_api_requests_total",
			Help: "Total number of wearable provider API requests",
		},
		[]string{"provider", "operation", "status_code"},
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_api_request_duration_seconds",
			Help:    "Wearable provider API request latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider", "operation"},
	)

	ProviderQuotaRemaining = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "provider_quota_remaining",
			Help: "Last reported remaining request quota for a provider",
		},
		[]string{"provider"},
	)

	ProviderRateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_rate_limited_total",
			Help: "Requests refused because a provider quota was exhausted",
		},
		[]string{"provider"},
	)
)

// Sync Metrics
var (
	SyncCellsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_cells_total",
			Help: "Total number of (provider, data type) sync attempts by outcome",
		},
		[]string{"provider", "data_type", "outcome"},
	)

	SyncCellDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_cell_duration_seconds",
			Help:    "Time spent syncing one (provider, data type) cell",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"provider", "data_type"},
	)

	RecordsUpsertedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_upserted_total",
			Help: "Total number of unified records written",
		},
		[]string{"provider", "data_type"},
	)

	RecordsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_skipped_total",
			Help: "Vendor payloads that could not be normalized",
		},
		[]string{"provider", "data_type"},
	)

	TokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_refresh_total",
			Help: "Token refresh attempts by result",
		},
		[]string{"provider", "result"},
	)

	SyncPassesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_passes_in_flight",
			Help: "Number of user sync passes currently running",
		},
	)
)

func ObserveProviderRequest(provider, operation string, status int, d time.Duration) {
	code := StatusTransportError
	if status > 0 {
		code = strconv.Itoa(status)
	}
	ProviderRequestsTotal.WithLabelValues(provider, operation, code).Inc()
	ProviderRequestDuration.WithLabelValues(provider, operation).Observe(d.Seconds())
}
