package handler

import (
	"context"
	"net/http"

	"github.com/artemis-health/artemis/internal/wearable"
	"github.com/artemis-health/artemis/internal/xhttp"
	"github.com/artemis-health/artemis/internal/xslog"
	"github.com/artemis-health/artemis/internal/xsync"
)

type StatusLister interface {
	List(ctx context.Context, userID string) ([]wearable.SyncStatus, error)
}

type Sync struct {
	sync     xsync.SyncService
	statuses StatusLister
}

func NewSync(sync xsync.SyncService, statuses StatusLister) *Sync {
	return &Sync{sync: sync, statuses: statuses}
}

type syncResponse struct {
	Results xsync.Result `json:"results"`
	Partial bool         `json:"partial"`
}

// HandleSync handles POST /api/sync. Cell failures are part of the body; the
// status is 200 unless the pass itself could not run.
func (h *Sync) HandleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	result, err := h.sync.SyncUser(ctx, userID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	if result.Failed() {
		xslog.FromContext(ctx).WarnContext(ctx, "sync finished with failed cells")
	}
	xhttp.WriteOK(w, syncResponse{Results: result, Partial: result.Failed()})
}

type statusResponse struct {
	Statuses []wearable.SyncStatus `json:"statuses"`
}

// HandleStatus handles GET /api/sync/status.
func (h *Sync) HandleStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	statuses, err := h.statuses.List(r.Context(), userID)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	if statuses == nil {
		statuses = []wearable.SyncStatus{}
	}
	xhttp.WriteOK(w, statusResponse{Statuses: statuses})
}
