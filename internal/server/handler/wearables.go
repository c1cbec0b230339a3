package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/artemis-health/artemis/internal/service/unified"
	"github.com/artemis-health/artemis/internal/validator"
	"github.com/artemis-health/artemis/internal/wearable"
	"github.com/artemis-health/artemis/internal/xerrors"
	"github.com/artemis-health/artemis/internal/xhttp"
	"github.com/go-chi/chi/v5"
)

// DefaultDays is the window served when no dates are given.
const DefaultDays = 7

type Wearables struct {
	reader unified.Reader
	now    func() time.Time
}

func NewWearables(reader unified.Reader, now func() time.Time) *Wearables {
	if now == nil {
		now = time.Now
	}
	return &Wearables{reader: reader, now: now}
}

// HandleWearables handles GET /api/wearables?start=&end=&client_id=&sync=.
func (h *Wearables) HandleWearables(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, r.URL.Query().Get("client_id"))
}

// HandleClientWearables handles GET /api/clients/{clientID}/wearables.
func (h *Wearables) HandleClientWearables(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, chi.URLParam(r, "clientID"))
}

func (h *Wearables) serve(w http.ResponseWriter, r *http.Request, clientID string) {
	ctx := r.Context()
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	q := &wearablesQuery{
		Start: query.Get("start"),
		End:   query.Get("end"),
		Sync:  query.Get("sync"),
		now:   h.now(),
	}
	if verr := validator.Validate(q); verr != nil {
		xerrors.WriteError(ctx, w, verr)
		return
	}

	resp, err := h.reader.Get(ctx, unified.Request{
		RequesterID: userID,
		ClientID:    clientID,
		Range:       q.dateRange,
		Sync:        q.sync,
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	xhttp.WriteOK(w, resp)
}

// wearablesQuery reads inclusive calendar-day bounds. A missing end is today;
// a missing start makes the range DefaultDays long. Sync defaults to true.
type wearablesQuery struct {
	Start string
	End   string
	Sync  string

	now       time.Time
	dateRange wearable.DateRange
	sync      bool
}

func (q *wearablesQuery) Validate() map[string]string {
	fields := map[string]string{}
	dateMsg := fmt.Sprintf("must be a date in %s format", wearable.DateLayout)

	q.dateRange = wearable.DateRange{End: q.now.UTC()}
	if q.End != "" {
		t, err := time.Parse(wearable.DateLayout, q.End)
		if err != nil {
			fields["end"] = dateMsg
		}
		q.dateRange.End = t
	}

	if q.Start != "" {
		t, err := time.Parse(wearable.DateLayout, q.Start)
		if err != nil {
			fields["start"] = dateMsg
		}
		q.dateRange.Start = t
	} else {
		q.dateRange.Start = q.dateRange.End.AddDate(0, 0, 1-DefaultDays)
	}

	q.sync = true
	if q.Sync != "" {
		b, err := strconv.ParseBool(q.Sync)
		if err != nil {
			fields["sync"] = "must be a boolean"
		}
		q.sync = b
	}

	return fields
}
