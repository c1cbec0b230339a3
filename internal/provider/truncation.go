package provider

import (
	"context"
	"sync"
	"time"
)

type truncationKey struct{}

// Truncation collects the page-limit cuts reported while a fetch runs.
type Truncation struct {
	mu      sync.Mutex
	cut     bool
	through time.Time
}

// WithTruncation returns a context that listings report page-limit cuts to.
func WithTruncation(ctx context.Context) (context.Context, *Truncation) {
	t := &Truncation{}
	return context.WithValue(ctx, truncationKey{}, t), t
}

// ReportTruncated records that a listing stopped at its page limit. through
// is the time up to which the listing is complete from the window start; the
// zero time means nothing is, as when the vendor pages newest first.
// Without a Truncation on ctx it does nothing.
func ReportTruncated(ctx context.Context, through time.Time) {
	t, ok := ctx.Value(truncationKey{}).(*Truncation)
	if !ok {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.cut || through.Before(t.through) {
		t.through = through
	}
	t.cut = true
}

// Cut reports whether any listing was truncated and the earliest point the
// fetch is complete through.
func (t *Truncation) Cut() (through time.Time, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.through, t.cut
}
