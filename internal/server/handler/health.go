package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/artemis-health/artemis/internal/version"
	"github.com/artemis-health/artemis/internal/xerrors"
	"github.com/artemis-health/artemis/internal/xhttp"
)

const healthTimeout = 2 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

type Health struct {
	checks map[string]Pinger
}

// NewHealth checks each named dependency on every request. Nil entries are
// skipped.
func NewHealth(checks map[string]Pinger) *Health {
	return &Health{checks: checks}
}

type healthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// HandleHealth handles GET /health.
func (h *Health) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Version: version.Get(), Checks: map[string]string{}}
	var failed error
	for name, p := range h.checks {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			resp.Checks[name] = err.Error()
			failed = err
			continue
		}
		resp.Checks[name] = "ok"
	}

	if failed != nil {
		xerrors.WriteError(r.Context(), w, xerrors.ServiceUnavailable(
			xerrors.WithMessage("dependency check failed"), xerrors.WithCause(failed)))
		return
	}
	xhttp.WriteOK(w, resp)
}
