package xerrors_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/artemis-health/artemis/internal/xerrors"
	"github.com/artemis-health/artemis/internal/xhttp"
	go_json "github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
)

type body struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

func TestWriteError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   body
		wantRetry  string
	}{
		{
			name:       "plain error becomes internal",
			err:        errors.New("db exploded"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   body{Message: "internal server error"},
		},
		{
			name:       "code and message",
			err:        xerrors.NotFound(xerrors.WithCode("not_connected"), xerrors.WithMessage("oura is not connected")),
			wantStatus: http.StatusNotFound,
			wantBody:   body{Error: "not_connected", Message: "oura is not connected"},
		},
		{
			name:       "validation fields",
			err:        xerrors.Validation(map[string]string{"start": "must be YYYY-MM-DD"}),
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   body{Message: "unprocessable entity", Fields: map[string]string{"start": "must be YYYY-MM-DD"}},
		},
		{
			name:       "retry after",
			err:        xerrors.TooManyRequests(xerrors.WithRetryAfter(90 * time.Second)),
			wantStatus: http.StatusTooManyRequests,
			wantBody:   body{Message: "too many requests"},
			wantRetry:  "90",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			xerrors.WriteError(t.Context(), rec, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get(xhttp.RetryAfter); got != tt.wantRetry {
				t.Errorf("Retry-After = %q, want %q", got, tt.wantRetry)
			}
			var got body
			if err := go_json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if diff := cmp.Diff(tt.wantBody, got); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
