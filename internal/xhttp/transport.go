package xhttp

import (
	"fmt"
	"net/http"

	"github.com/artemis-health/artemis/internal/version"
)

type artemisTransport struct {
	base http.RoundTripper
}

var _ http.RoundTripper = (*artemisTransport)(nil)

func (t *artemisTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", "artemis/"+version.Get())
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform round trip: %w", err)
	}
	return resp, nil
}

// NewTransport returns an http.RoundTripper with the artemis User-Agent.
func NewTransport() http.RoundTripper {
	return &artemisTransport{base: http.DefaultTransport}
}
